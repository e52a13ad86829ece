package main

import (
	"github.com/spf13/cobra"

	"github.com/facturo/facturo-backend/internal/report/domain"
)

func newDiscoverCmd(opts *options) *cobra.Command {
	var (
		merge  bool
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "discover <file|->",
		Short: "Find fields in sample documents that the registry does not know",
		Long: "discover walks every sample document and lists the leaf fields missing from the registry. " +
			"With --merge they are added, unselected, and saved.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			docs, err := readDocuments(args[0], cmd.InOrStdin())
			if err != nil {
				return err
			}
			svc, err := opts.newService(cmd)
			if err != nil {
				return err
			}

			var found []domain.FieldDescriptor
			for _, doc := range docs {
				fields, err := svc.DiscoverFields(cmd.Context(), opts.collection, doc, merge)
				if err != nil {
					return err
				}
				found = appendNew(found, fields)
			}

			if asJSON {
				return writeJSON(cmd.OutOrStdout(), found)
			}
			return writeFieldTable(cmd.OutOrStdout(), found)
		},
	}

	cmd.Flags().BoolVar(&merge, "merge", false, "add the fields found to the registry")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}

// appendNew appends the fields whose ids are not in dst yet. Without merging,
// every sample reports the same unknown fields again.
func appendNew(dst, fields []domain.FieldDescriptor) []domain.FieldDescriptor {
	seen := make(map[string]struct{}, len(dst))
	for _, f := range dst {
		seen[f.ID] = struct{}{}
	}
	for _, f := range fields {
		if _, ok := seen[f.ID]; ok {
			continue
		}
		seen[f.ID] = struct{}{}
		dst = append(dst, f)
	}
	return dst
}
