package cli

import (
	"fmt"
	"os"

	"github.com/ds124wfegd/crossedpaths/config"
	"github.com/ds124wfegd/crossedpaths/internal/appServer"

	"github.com/spf13/cobra"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	ConfigDir string
	LogLevel  string
}

// NewRootCommand creates the root command for the crossedpaths CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:           "crossedpaths",
		Short:         "Event admission and co-location matching engine",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags
	cmd.PersistentFlags().StringVar(&opts.ConfigDir, "config-dir", "", "directory containing config.yaml")
	cmd.PersistentFlags().StringVar(&opts.LogLevel, "log-level", "", "override log.level")

	// Add subcommands
	cmd.AddCommand(NewServeCommand(opts))
	cmd.AddCommand(NewMigrateCommand(opts))
	cmd.AddCommand(NewReconcileCommand(opts))

	return cmd
}

// loadConfig reads config.yaml plus environment overrides and sets up logging.
func loadConfig(opts *RootOptions) (*config.Config, error) {
	if opts.ConfigDir != "" {
		if err := os.Setenv("CROSSEDPATHS_CONFIG_DIR", opts.ConfigDir); err != nil {
			return nil, err
		}
	}

	viperInstance, err := config.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("cannot load config: %w", err)
	}
	if opts.LogLevel != "" {
		viperInstance.Set("log.level", opts.LogLevel)
	}

	cfg, err := config.ParseConfig(viperInstance)
	if err != nil {
		return nil, fmt.Errorf("cannot parse config: %w", err)
	}

	appServer.SetupLogging(&cfg.Log)
	return cfg, nil
}

func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API with the queue consumer and background workers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(rootOpts)
			if err != nil {
				return err
			}
			return appServer.NewServer(cfg)
		},
	}
}

func NewMigrateCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(rootOpts)
			if err != nil {
				return err
			}

			db, err := appServer.OpenStore(&cfg.Database)
			if err != nil {
				return err
			}
			defer db.Close()

			fmt.Fprintf(cmd.OutOrStdout(), "schema is up to date (%s)\n", cfg.Database.Driver)
			return nil
		},
	}
}

func NewReconcileCommand(rootOpts *RootOptions) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Reconcile visits whose matching never completed",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if limit <= 0 {
				return fmt.Errorf("limit must be positive, got %d", limit)
			}

			cfg, err := loadConfig(rootOpts)
			if err != nil {
				return err
			}

			app, err := appServer.Build(cfg)
			if err != nil {
				return err
			}
			defer app.Close()

			n, err := app.ReconcileBacklog(cmd.Context(), limit)
			fmt.Fprintf(cmd.OutOrStdout(), "reconciled %d visits\n", n)
			return err
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 500, "maximum number of visits to reconcile")
	return cmd
}
