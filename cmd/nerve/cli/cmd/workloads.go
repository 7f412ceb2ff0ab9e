package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/balaji-balu/nerve-cli/internal/store"
	"github.com/balaji-balu/nerve-cli/internal/workloads"
	"github.com/balaji-balu/nerve-cli/pkg/model"
)

const outputNone = "none"

func newListWorkloadsCmd(a *app) *cobra.Command {
	var (
		f      workloads.Filter
		human  bool
		output string
	)
	c := &cobra.Command{
		Use:   "list-workloads",
		Short: "List workloads of the catalogue and store them",
		Long: `Lists the workloads of the management system, filtered by name, id, type
and version. Name, id and version filters are patterns: a literal matches a
whole word, "regex:" switches to a regular expression. The result is written
to the output file unless it is "none".`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := a.client()
			if err != nil {
				return err
			}
			res, err := workloads.Query(cmd.Context(), client, f, a.zap())
			if err != nil {
				return err
			}
			a.log.Info("workloads listed",
				zap.Int("total", res.Total),
				zap.Int("selected", res.Selected),
				zap.Int("result", len(res.Workloads)),
			)
			if res.Unsupported {
				a.printer.Warning("Some workloads are of unsupported type. Their details are not complete.")
			}
			if human {
				if len(res.Workloads) == 0 {
					a.printer.Println("No workloads found.")
				}
				a.printer.Workloads(res.Workloads)
			}
			if output == outputNone {
				return nil
			}
			path := store.AppendEnding(output, store.ExtJSON)
			if err := store.Save(path, res.Workloads); err != nil {
				return err
			}
			n := len(res.Workloads)
			a.printer.Printf("Saved result to %s. Contains %d workload%s.\n", path, n, plural(n))
			return nil
		},
	}
	fl := c.Flags()
	fl.StringVarP(&f.Type, "type", "t", "", "only workloads of this type, e.g. docker, vm, codesys")
	fl.StringVarP(&f.Name, "name", "n", "", "filter by name")
	fl.StringVar(&f.ID, "id", "", "filter by id")
	fl.BoolVarP(&f.ShowDisabled, "disabled", "d", false, "include disabled workloads")
	fl.StringVarP(&f.VersionName, "version-name", "v", "", "filter by version name")
	fl.StringVar(&f.VersionID, "version-id", "", "filter by version id")
	fl.BoolVarP(&human, "human", "H", false, "print the result as text")
	fl.StringVarP(&output, "output", "o", "workloads.json", `output file, "none" to skip writing`)
	return c
}

func newCreateWorkloadCmd(a *app) *cobra.Command {
	var (
		template   string
		sequential bool
	)
	c := &cobra.Command{
		Use:   "create-workload",
		Short: "Create a workload, or add versions to it, from a definition file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path := store.AppendEnding(template, store.ExtJSON)
			def, err := store.Load[model.WorkloadDefinition](path)
			if err != nil {
				return fmt.Errorf("error creating workload definition from template file: %w", err)
			}
			client, err := a.client()
			if err != nil {
				return err
			}
			tracker := workloads.NewDownloadTracker(client,
				workloads.WithPolling(a.cfg.Download.Interval, a.cfg.Download.Timeout),
				workloads.WithTrackerLogger(a.zap()),
			)
			a.log.Debug("creating workload", zap.String("name", def.Name))

			id, err := workloads.NewCreator(client, tracker, a.zap()).Create(cmd.Context(), def, sequential)
			a.record("create_workload", def.Name, err)
			if err != nil {
				return err
			}
			a.printer.Success("Workload created.")
			a.log.Info("workload created", zap.String("id", id))
			return nil
		},
	}
	c.Flags().StringVarP(&template, "template", "t", "wl_def.json", "workload definition file")
	c.Flags().BoolVarP(&sequential, "sequential", "s", false,
		"wait for each version to finish downloading before adding the next")
	return c
}

func newCreateTemplateCmd(a *app) *cobra.Command {
	var input, output string
	c := &cobra.Command{
		Use:   "create-wl-template",
		Short: "Create a workload definition from an existing docker workload",
		Long: `Reads a workload list as written by list-workloads and turns the first
workload, with the versions listed for it, into a definition file for
create-workload.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			list, err := store.Load[[]model.Workload](store.AppendEnding(input, store.ExtJSON))
			if err != nil {
				return err
			}
			if len(list) == 0 {
				return errors.New("the input list is empty")
			}
			if len(list) > 1 {
				a.printer.Warning("Multiple workloads in the input list. The template will be created only from the first one.")
			}
			client, err := a.client()
			if err != nil {
				return err
			}
			wl, err := workloads.FetchForTemplate(cmd.Context(), client, list[0])
			if err != nil {
				return err
			}
			def, err := workloads.TemplateFromWorkload(*wl, a.zap())
			if err != nil {
				return err
			}
			path := store.AppendEnding(output, store.ExtJSON)
			if err := store.Save(path, def); err != nil {
				return err
			}
			a.printer.Printf("Template saved to %s.\n", path)
			return nil
		},
	}
	c.Flags().StringVarP(&input, "input-file", "i", "workloads.json", "workload list")
	c.Flags().StringVarP(&output, "output-file", "o", "wl_def.json", "definition file to write")
	return c
}

func newDeleteWorkloadsCmd(a *app) *cobra.Command {
	var (
		input string
		yes   bool
	)
	c := &cobra.Command{
		Use:   "delete-workloads",
		Short: "Delete every workload of a workload list",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			list, err := store.Load[[]model.Workload](store.AppendEnding(input, store.ExtJSON))
			if err != nil {
				return err
			}
			if len(list) > 1 {
				ok, err := a.confirm(yes, "This will delete %d items. Are you sure?", len(list))
				if err != nil || !ok {
					return err
				}
			}
			client, err := a.client()
			if err != nil {
				return err
			}
			deleted := make([]string, 0, len(list))
			for _, wl := range list {
				a.log.Debug("deleting workload", zap.String("name", wl.Name), zap.String("id", wl.ID))
				err := workloads.Delete(cmd.Context(), client, wl.ID)
				a.record("delete_workload", wl.ID, err)
				if err != nil {
					return err
				}
				deleted = append(deleted, wl.ID)
			}
			a.printer.Success("Deleted: %v", deleted)
			return nil
		},
	}
	c.Flags().StringVarP(&input, "input-file", "i", "workloads.json", "workload list")
	c.Flags().BoolVarP(&yes, "yes", "y", false, "do not ask for confirmation")
	return c
}
