package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/kailas-cloud/hybridex/internal/config"
	"github.com/kailas-cloud/hybridex/internal/version"
)

// newRootCmd builds the CLI. Without a subcommand it serves.
func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:          "hybridex",
		Short:        "Hybrid lexical and multi-encoder vector search server",
		Version:      version.Version,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), configPath)
		},
	}
	root.SetVersionTemplate("hybridex {{.Version}}\n")
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "",
		"config file (default: config/$ENV.yaml)")

	root.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Run the HTTP server",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return runServe(cmd.Context(), configPath)
			},
		},
		&cobra.Command{
			Use:   "version",
			Short: "Print build information",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				_, err := fmt.Fprintf(cmd.OutOrStdout(), "hybridex %s\n", version.String())
				return err
			},
		},
		&cobra.Command{
			Use:   "check-config",
			Short: "Load and validate the configuration, then print a summary",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				cfg, err := loadConfig(configPath)
				if err != nil {
					return err
				}
				return printSummary(cmd.OutOrStdout(), cfg)
			},
		},
	)
	return root
}

// loadConfig reads an explicit path when given, else config/<ENV>.yaml.
func loadConfig(path string) (config.Config, error) {
	if path != "" {
		return config.LoadFile(path)
	}
	return config.Load(config.GetEnv())
}

func printSummary(w io.Writer, cfg config.Config) error {
	sch, err := cfg.BuildSchema()
	if err != nil {
		return fmt.Errorf("build schema: %w", err)
	}
	if _, err := fmt.Fprintf(w, "config ok\nbackend: %s\nmetric: %s\nauth: %s\n",
		cfg.Backend.Driver, sch.Metric(), cfg.Auth.Provider); err != nil {
		return err
	}
	for _, enc := range sch.Encoders() {
		provider := cfg.Schema.Encoders[enc.Name()].Provider
		if provider == "" {
			provider = "-"
		}
		if _, err := fmt.Fprintf(w, "encoder %s: %d dims, %d fields, provider %s\n",
			enc.Name(), enc.Dimensions(), len(enc.Fields()), provider); err != nil {
			return err
		}
	}
	for _, f := range sch.FilterFields() {
		if _, err := fmt.Fprintf(w, "filter %s: %s\n", f.Name(), f.FieldType()); err != nil {
			return err
		}
	}
	return nil
}
