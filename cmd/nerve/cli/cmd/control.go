package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/balaji-balu/nerve-cli/internal/nodes"
)

// newControlCmd builds start, stop and restart. They share everything but
// the action; stop can force.
func newControlCmd(a *app, action string) *cobra.Command {
	var (
		file  string
		yes   bool
		force bool
	)
	c := &cobra.Command{
		Use:   action,
		Short: fmt.Sprintf("%s the workloads listed in a node file", titleCase(action)),
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			act := action
			if force {
				act = nodes.ActionForceStop
			}
			client, err := a.client()
			if err != nil {
				return err
			}
			targets, err := a.loadTargets(cmd.Context(), client, file, true)
			if err != nil {
				return err
			}
			total := 0
			for _, n := range targets {
				total += len(n.Workloads)
			}
			if total > 1 {
				ok, err := a.confirm(yes, "This will %s %d workloads. Are you sure?", action, total)
				if err != nil || !ok {
					return err
				}
			}

			count, failed := 0, 0
			for _, n := range targets {
				for _, wl := range n.Workloads {
					a.log.Debug("controlling workload",
						zap.String("action", act),
						zap.String("device_id", wl.DeviceID),
						zap.String("serial", n.SerialNumber),
					)
					err := nodes.ControlWorkload(cmd.Context(), client, act, n.SerialNumber, wl.DeviceID)
					a.record(act, n.SerialNumber+"/"+wl.DeviceID, err)
					if err != nil {
						failed++
						a.printer.Error("%v", err)
						continue
					}
					count++
				}
			}
			switch {
			case failed > 0:
				return fmt.Errorf("succeeded to initialize '%s' command on %d workload%s, failed on %d",
					action, count, plural(count), failed)
			case count == 0:
				a.printer.Println("No workloads to control.")
			default:
				a.printer.Success("Succeeded to initialize '%s' command on all workloads.", action)
			}
			return nil
		},
	}
	c.Flags().StringVarP(&file, "input-file", "f", "nodes.json", "node file")
	c.Flags().BoolVarP(&yes, "yes", "y", false, "do not ask for confirmation")
	if action == nodes.ActionStop {
		c.Flags().BoolVar(&force, "force", false, "force stop the workloads")
	}
	return c
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
