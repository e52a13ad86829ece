package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/facturo/facturo-backend/internal/report/domain"
	"github.com/facturo/facturo-backend/internal/report/repository"
	"github.com/facturo/facturo-backend/internal/report/schema"
	"github.com/facturo/facturo-backend/internal/report/service"
	"github.com/facturo/facturo-backend/internal/report/settingsfile"
	"github.com/facturo/facturo-backend/pkg/config"
	"github.com/facturo/facturo-backend/pkg/logger"
)

const settingsEnv = "FACTURO_FIELDCTL_SETTINGS"

// options are the persistent flags shared by every command.
type options struct {
	settingsPath string
	defaultsPath string
	collection   string
	locale       string
	verbose      bool
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:           "fieldctl",
		Short:         "Manage invoice report fields",
		Long:          "fieldctl edits the field registry of a document collection and flattens invoice documents into report rows.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	defaultSettings := os.Getenv(settingsEnv)
	if defaultSettings == "" {
		defaultSettings = "fieldctl.yaml"
	}

	flags := root.PersistentFlags()
	flags.StringVarP(&opts.settingsPath, "settings", "s", defaultSettings, "settings file (env "+settingsEnv+")")
	flags.StringVar(&opts.defaultsPath, "defaults", "", "YAML file replacing the built-in default fields")
	flags.StringVarP(&opts.collection, "collection", "c", "invoices", "document collection")
	flags.StringVar(&opts.locale, "locale", "es", "locale for formatted values (es, en)")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "log to stderr")

	root.AddCommand(newFieldsCmd(opts))
	root.AddCommand(newDiscoverCmd(opts))
	root.AddCommand(newFlattenCmd(opts))

	return root
}

// newService builds a report service over the settings file and an empty
// in-memory document store.
func (o *options) newService(cmd *cobra.Command) (*service.ReportService, error) {
	log := logger.Nop()
	if o.verbose {
		log = logger.NewWithWriter("fieldctl", cmd.ErrOrStderr())
	}

	var defaults []domain.FieldDescriptor
	if o.defaultsPath != "" {
		data, err := os.ReadFile(o.defaultsPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read defaults: %w", err)
		}
		if defaults, err = schema.ParseDefaults(data); err != nil {
			return nil, err
		}
	}

	return service.NewReportService(service.Dependencies{
		Stores:   repository.NewMemoryCatalog(),
		Settings: settingsfile.New(o.settingsPath),
		Defaults: defaults,
		Logger:   log,
	}, config.ReportConfig{
		DefaultPageSize: 10,
		MaxPageSize:     100,
		Locale:          o.locale,
	}), nil
}
