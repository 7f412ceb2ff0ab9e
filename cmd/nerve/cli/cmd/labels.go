package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/balaji-balu/nerve-cli/internal/labels"
)

func newCreateLabelCmd(a *app) *cobra.Command {
	var key, value string
	c := &cobra.Command{
		Use:   "create-label",
		Short: "Create a label",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := a.client()
			if err != nil {
				return err
			}
			err = labels.Create(cmd.Context(), client, key, value)
			a.record("create_label", key+":"+value, err)
			if err != nil {
				return fmt.Errorf("failed to create label: %w", err)
			}
			a.printer.Success("Label %s:%s created.", key, value)
			return nil
		},
	}
	c.Flags().StringVarP(&key, "key", "k", "", "label key")
	c.Flags().StringVarP(&value, "value", "v", "", "label value")
	c.MarkFlagRequired("key")
	c.MarkFlagRequired("value")
	return c
}

func newGetLabelsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "get-labels",
		Short: "List the labels of the management system",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := a.client()
			if err != nil {
				return err
			}
			records, err := labels.List(cmd.Context(), client)
			if err != nil {
				return fmt.Errorf("failed to get labels: %w", err)
			}
			a.printer.Labels(records)
			return nil
		},
	}
}

func newDeleteLabelCmd(a *app) *cobra.Command {
	var id, key, value string
	c := &cobra.Command{
		Use:   "delete-label",
		Short: "Delete a label by id or by key and value",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if id == "" && key == "" {
				return errors.New("either --id or --key is required")
			}
			client, err := a.client()
			if err != nil {
				return err
			}
			if id == "" {
				records, err := labels.List(cmd.Context(), client)
				if err != nil {
					return err
				}
				rec, ok := labels.Find(records, key, value)
				if !ok {
					return fmt.Errorf("label %s:%s not found", key, value)
				}
				id = rec.ID
			}
			err = labels.Delete(cmd.Context(), client, id)
			a.record("delete_label", id, err)
			if err != nil {
				return fmt.Errorf("failed to delete label: %w", err)
			}
			a.printer.Success("Label %s deleted.", id)
			return nil
		},
	}
	c.Flags().StringVar(&id, "id", "", "label id")
	c.Flags().StringVarP(&key, "key", "k", "", "label key, used with --value when no id is given")
	c.Flags().StringVarP(&value, "value", "v", "", "label value")
	c.MarkFlagsMutuallyExclusive("id", "key")
	return c
}
