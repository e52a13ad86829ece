package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/facturo/facturo-backend/internal/report/domain"
	"github.com/facturo/facturo-backend/internal/report/service"
)

func newFieldsCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fields",
		Short: "List and edit the field registry",
	}

	cmd.AddCommand(
		newFieldsListCmd(opts),
		newFieldsToggleCmd(opts),
		newFieldsSelectCmd(opts),
		newFieldsAddCmd(opts),
		newFieldsReorderCmd(opts),
		newFieldsResetCmd(opts),
	)
	return cmd
}

func newFieldsListCmd(opts *options) *cobra.Command {
	var (
		category     string
		selectedOnly bool
		asJSON       bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List fields in display order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := opts.newService(cmd)
			if err != nil {
				return err
			}

			var fields []domain.FieldDescriptor
			if selectedOnly {
				fields, err = svc.SelectedFields(cmd.Context(), opts.collection)
			} else {
				fields, err = svc.Fields(cmd.Context(), opts.collection, domain.Category(category))
			}
			if err != nil {
				return err
			}

			if asJSON {
				return writeJSON(cmd.OutOrStdout(), fields)
			}
			return writeFieldTable(cmd.OutOrStdout(), fields)
		},
	}

	cmd.Flags().StringVar(&category, "category", "", "only fields of this category")
	cmd.Flags().BoolVar(&selectedOnly, "selected", false, "only selected fields")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}

func newFieldsToggleCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "toggle <field-id>",
		Short: "Flip whether a field is selected",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := opts.newService(cmd)
			if err != nil {
				return err
			}

			fd, err := svc.ToggleField(cmd.Context(), opts.collection, args[0])
			if err != nil {
				return err
			}

			state := "deselected"
			if fd.Selected {
				state = "selected"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", fd.ID, state)
			return nil
		},
	}
}

func newFieldsSelectCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "select <field-id>...",
		Short: "Select exactly the given fields",
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := opts.newService(cmd)
			if err != nil {
				return err
			}

			fields, err := svc.SetSelected(cmd.Context(), opts.collection, args)
			if err != nil {
				return err
			}
			return writeFieldTable(cmd.OutOrStdout(), fields)
		},
	}
}

func newFieldsAddCmd(opts *options) *cobra.Command {
	var req service.AddFieldRequest

	cmd := &cobra.Command{
		Use:   "add <field-id>",
		Short: "Add a custom field",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := opts.newService(cmd)
			if err != nil {
				return err
			}

			req.ID = args[0]
			fd, err := svc.AddCustomField(cmd.Context(), opts.collection, req)
			if err != nil {
				return err
			}
			return writeFieldTable(cmd.OutOrStdout(), []domain.FieldDescriptor{fd})
		},
	}

	cmd.Flags().StringVar(&req.Label, "label", "", "display label (derived from the path when empty)")
	cmd.Flags().StringVar(&req.Path, "path", "", "document path (defaults to the id)")
	cmd.Flags().StringVar((*string)(&req.Category), "category", string(domain.CategoryOther), "category")
	cmd.Flags().BoolVar(&req.Selected, "selected", false, "select the field")
	return cmd
}

func newFieldsReorderCmd(opts *options) *cobra.Command {
	var req service.ReorderRequest

	cmd := &cobra.Command{
		Use:   "reorder",
		Short: "Move a field within its category",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := opts.newService(cmd)
			if err != nil {
				return err
			}

			fields, err := svc.ReorderFields(cmd.Context(), opts.collection, req)
			if err != nil {
				return err
			}
			return writeFieldTable(cmd.OutOrStdout(), fields)
		},
	}

	cmd.Flags().StringVar((*string)(&req.Category), "category", "", "category to reorder")
	cmd.Flags().IntVar(&req.From, "from", 0, "current position, from 0")
	cmd.Flags().IntVar(&req.To, "to", 0, "new position, from 0")
	_ = cmd.MarkFlagRequired("category")
	return cmd
}

func newFieldsResetCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Restore the default fields, dropping custom ones",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := opts.newService(cmd)
			if err != nil {
				return err
			}

			fields, err := svc.ResetFields(cmd.Context(), opts.collection)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "reset %s to %d default fields\n", opts.collection, len(fields))
			return nil
		},
	}
}

func writeFieldTable(w io.Writer, fields []domain.FieldDescriptor) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ORDER\tSEL\tID\tLABEL\tCATEGORY\tCUSTOM")
	for _, f := range fields {
		sel := " "
		if f.Selected {
			sel = "x"
		}
		custom := ""
		if f.IsCustom {
			custom = "yes"
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\n", f.Order, sel, f.ID, f.Label, f.Category, custom)
	}
	return tw.Flush()
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
