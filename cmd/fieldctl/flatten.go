package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/facturo/facturo-backend/internal/report/domain"
	"github.com/facturo/facturo-backend/internal/report/projection"
	"github.com/facturo/facturo-backend/pkg/docpath"
)

func newFlattenCmd(opts *options) *cobra.Command {
	var (
		format string
		raw    bool
	)

	cmd := &cobra.Command{
		Use:   "flatten <file|->",
		Short: "Flatten documents onto the selected fields",
		Long: "flatten projects every document onto the selected fields, one row per document " +
			"or per line item when a line-item field is selected.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if format != "csv" && format != "json" {
				return fmt.Errorf("unknown format %q, want csv or json", format)
			}

			docs, err := readDocuments(args[0], cmd.InOrStdin())
			if err != nil {
				return err
			}
			svc, err := opts.newService(cmd)
			if err != nil {
				return err
			}
			fields, err := svc.SelectedFields(cmd.Context(), opts.collection)
			if err != nil {
				return err
			}
			if len(fields) == 0 {
				return fmt.Errorf("no fields selected in %s", opts.collection)
			}

			engine := projection.NewEngine(projection.NewFormatter(opts.locale), docpath.DefaultAliases)
			out := cmd.OutOrStdout()

			if raw && format == "json" {
				return writeJSON(out, engine.Flatten(docs, fields))
			}

			rows := engine.FlattenFormatted(docs, fields)
			if format == "json" {
				return writeJSON(out, domain.ReportTable{Columns: domain.ColumnsFor(fields), Rows: rows})
			}
			return projection.WriteCSV(out, domain.ColumnsFor(fields), rows)
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "csv", "output format: csv or json")
	cmd.Flags().BoolVar(&raw, "raw", false, "with --format json, print unformatted values")
	return cmd
}
