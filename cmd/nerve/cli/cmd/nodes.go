package cmd

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/balaji-balu/nerve-cli/internal/labels"
	"github.com/balaji-balu/nerve-cli/internal/msapi"
	"github.com/balaji-balu/nerve-cli/internal/nodes"
	"github.com/balaji-balu/nerve-cli/internal/store"
	"github.com/balaji-balu/nerve-cli/pkg/model"
)

func newListNodesCmd(a *app) *cobra.Command {
	var (
		q     nodes.Query
		file  string
		add   bool
		human bool
	)
	c := &cobra.Command{
		Use:   "list-nodes",
		Short: "List nodes and their deployed workloads and store them",
		Long: `Walks the management tree, filters the nodes, reads the workloads deployed
on every online node and filters those. Offline nodes are counted but not
written. All filters are patterns: a literal matches a whole word, "regex:"
switches to a regular expression.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := a.client()
			if err != nil {
				return err
			}
			q.WarnThreshold = a.cfg.Nodes.WarnThreshold
			res, err := nodes.ListNodes(cmd.Context(), client, q, a.walkerOptions()...)
			if err != nil {
				return err
			}
			if a.v.GetBool("verbose") {
				a.printer.Summary(res)
			}
			if human {
				a.printer.Nodes(res.Nodes)
			}

			path := store.AppendEnding(file, store.ExtJSON)
			result := []json.RawMessage{}
			if add {
				result = store.LoadOrEmpty[json.RawMessage](path, a.zap())
			}
			if len(res.Nodes) == 0 {
				a.printer.Println("No nodes/workloads found matching the criteria.")
			}
			found, err := store.RawList(res.Nodes)
			if err != nil {
				return err
			}
			result = append(result, found...)
			if err := store.Save(path, result); err != nil {
				return err
			}
			a.printer.Printf("Created result file %s with %d node%s.\n", path, len(result), plural(len(result)))
			return nil
		},
	}
	fl := c.Flags()
	fl.StringVarP(&file, "file-name", "f", "nodes.json", "result file")
	fl.BoolVarP(&add, "add", "a", false, "append to the result file instead of replacing it")
	fl.BoolVarP(&human, "human", "H", false, "also print the result as text")
	fl.StringVar(&q.Nodes.Name, "node-name", "", "filter by node name")
	fl.StringVar(&q.Nodes.Path, "node-path", "", "filter by folder path, e.g. root/plant")
	fl.StringVar(&q.Nodes.Version, "node-version", "", "filter by node version")
	fl.StringVar(&q.Nodes.Model, "node-model", "", "filter by node model")
	fl.StringVar(&q.Nodes.Label, "node-labels", "", "filter by node label, key:value")
	fl.StringVar(&q.Workloads.Name, "workload-name", "", "filter by workload name")
	fl.StringVar(&q.Workloads.ID, "workload-id", "", "filter by workload id")
	fl.StringVar(&q.Workloads.VersionName, "workload-version-name", "", "filter by workload version name")
	fl.StringVar(&q.Workloads.VersionID, "workload-version-id", "", "filter by workload version id")
	fl.StringVar(&q.Workloads.Status, "workload-status", "", "filter by workload state, e.g. started")
	fl.StringVar(&q.Workloads.Type, "workload-type", "", "filter by workload type")
	return c
}

func newTreeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "tree",
		Short: "Print the management tree with its folders and nodes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := a.client()
			if err != nil {
				return err
			}
			dict, err := labels.Fetch(cmd.Context(), client)
			if err != nil {
				return err
			}
			root, all, err := nodes.NewWalker(client, dict, a.walkerOptions()...).BuildTreeAndNodeList(cmd.Context())
			if err != nil {
				return err
			}
			a.printer.Tree(root)
			a.log.Info("tree printed", zap.Int("nodes", len(all)))
			return nil
		},
	}
}

// loadTargets reads a node file and resolves the entries that lack a serial
// number, or a device id when withWorkloads is set, against the tree.
func (a *app) loadTargets(ctx context.Context, client *msapi.Client, file string, withWorkloads bool) ([]model.Node, error) {
	path := store.AppendEnding(file, store.ExtJSON)
	refs, err := store.Load[[]model.NodeRef](path)
	if err != nil {
		return nil, fmt.Errorf("could not read input file: %w", err)
	}
	if nodes.NeedsReconcile(refs, withWorkloads) {
		a.log.Info("some nodes miss their serial number or workloads their device id, looking them up")
		w := nodes.NewWalker(client, nil, a.walkerOptions()...)
		return nodes.NewReconciler(w, client, a.zap()).Reconcile(ctx, refs, withWorkloads)
	}
	out := make([]model.Node, 0, len(refs))
	for _, ref := range refs {
		n := model.Node{ID: ref.ID, Name: ref.Name, SerialNumber: ref.SerialNumber, Workloads: []model.DeployedWorkload{}}
		for _, wl := range ref.Workloads {
			n.Workloads = append(n.Workloads, model.DeployedWorkload{
				DeviceID:    wl.DeviceID,
				Name:        wl.Name,
				VersionName: wl.VersionName,
			})
		}
		out = append(out, n)
	}
	return out, nil
}

func newRebootNodesCmd(a *app) *cobra.Command {
	var (
		file string
		yes  bool
	)
	c := &cobra.Command{
		Use:   "reboot-nodes",
		Short: "Reboot every node of a node file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := a.client()
			if err != nil {
				return err
			}
			targets, err := a.loadTargets(cmd.Context(), client, file, false)
			if err != nil {
				return err
			}
			if len(targets) > 1 {
				ok, err := a.confirm(yes, "This will reboot %d nodes. Are you sure?", len(targets))
				if err != nil || !ok {
					return err
				}
			}

			count := 0
			for _, n := range targets {
				a.log.Debug("rebooting node", zap.String("name", n.Name), zap.String("serial", n.SerialNumber))
				err := nodes.Reboot(cmd.Context(), client, n.SerialNumber)
				a.record("reboot", n.SerialNumber, err)
				if err != nil {
					a.printer.Error("%v", err)
					continue
				}
				count++
			}
			if failed := len(targets) - count; failed > 0 {
				return fmt.Errorf("rebooted %d node%s, failed to reboot %d node%s",
					count, plural(count), failed, plural(failed))
			}
			a.printer.Success("Rebooted all nodes.")
			return nil
		},
	}
	c.Flags().StringVarP(&file, "input-file", "f", "nodes.json", "node file")
	c.Flags().BoolVarP(&yes, "yes", "y", false, "do not ask for confirmation")
	return c
}
