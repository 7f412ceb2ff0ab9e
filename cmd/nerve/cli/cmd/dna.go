package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/balaji-balu/nerve-cli/internal/dna"
	"github.com/balaji-balu/nerve-cli/internal/msapi"
	"github.com/balaji-balu/nerve-cli/internal/nodes"
	"github.com/balaji-balu/nerve-cli/internal/store"
	"github.com/balaji-balu/nerve-cli/pkg/model"
)

// selectOnlineNode walks the tree and picks the single online node whose
// name matches nameFilter.
func (a *app) selectOnlineNode(ctx context.Context, client *msapi.Client, nameFilter string) (model.Node, error) {
	_, all, err := nodes.NewWalker(client, nil, a.walkerOptions()...).BuildTreeAndNodeList(ctx)
	if err != nil {
		return model.Node{}, err
	}
	n, err := dna.SelectNode(all, nameFilter, a.zap())
	if err != nil {
		return model.Node{}, err
	}
	a.printer.Printf("Node %s selected.\n", n.Name)
	return n, nil
}

func newGetDNACmd(a *app) *cobra.Command {
	var (
		nodeName  string
		output    string
		stripHash bool
	)
	c := &cobra.Command{
		Use:   "get-dna",
		Short: "Download the DNA file a node is running",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := a.client()
			if err != nil {
				return err
			}
			n, err := a.selectOnlineNode(cmd.Context(), client, nodeName)
			if err != nil {
				return err
			}
			doc, err := dna.Current(cmd.Context(), client, n.SerialNumber)
			if err != nil {
				return err
			}
			a.printer.Println("DNA file loaded.")
			if stripHash {
				doc.StripHashes()
			}
			data, err := doc.Marshal()
			if err != nil {
				return fmt.Errorf("could not write output file: %w", err)
			}
			path := store.AppendEnding(output, store.ExtYAML)
			if err := os.WriteFile(path, data, 0o644); err != nil {
				return fmt.Errorf("could not open output file %s: %w", path, err)
			}
			a.printer.Success("Successfully written DNA file to %s.", path)
			return nil
		},
	}
	c.Flags().StringVar(&nodeName, "node-name", "", "name filter selecting exactly one online node")
	c.Flags().StringVarP(&output, "output", "o", "dna.yaml", "file to write")
	c.Flags().BoolVar(&stripHash, "strip-hash", false, "remove the hash of every workload")
	c.MarkFlagRequired("node-name")
	return c
}

func newPutDNACmd(a *app) *cobra.Command {
	var (
		nodeName   string
		file       string
		restartAll bool
	)
	c := &cobra.Command{
		Use:   "put-dna",
		Short: "Deploy a DNA file as the target state of a node",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path := store.AppendEnding(file, store.ExtYAML)
			data, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("could not read input file: %w", err)
			}
			doc, err := dna.Parse(data)
			if err != nil {
				return fmt.Errorf("could not read input file: %w", err)
			}
			client, err := a.client()
			if err != nil {
				return err
			}
			n, err := a.selectOnlineNode(cmd.Context(), client, nodeName)
			if err != nil {
				return err
			}
			err = dna.PushTarget(cmd.Context(), client, n.SerialNumber, doc, restartAll)
			a.record("put_dna", n.SerialNumber, err)
			if err != nil {
				return err
			}
			a.printer.Success("Successfully pushed DNA File.")
			return nil
		},
	}
	c.Flags().StringVar(&nodeName, "node-name", "", "name filter selecting exactly one online node")
	c.Flags().StringVarP(&file, "file-name", "f", "dna.yaml", "DNA file to deploy")
	c.Flags().BoolVar(&restartAll, "restart-all-workloads", false, "restart every workload of the node")
	c.MarkFlagRequired("node-name")
	return c
}
