package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/featureboard/backend/internal/config"
	"github.com/featureboard/backend/internal/models"
	"github.com/featureboard/backend/pkg/logger"
	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

// rootOptions holds global flags for all commands.
type rootOptions struct {
	ConfigPath string
	Format     string // "text" | "json"
}

var validFormats = []string{"text", "json"}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "featurectl",
		Short:         "Administer a featureboard database",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			for _, f := range validFormats {
				if f == opts.Format {
					return nil
				}
			}
			return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, validFormats)
		},
	}

	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", os.Getenv("CONFIG_PATH"), "path to config.yaml")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")

	cmd.AddCommand(newMigrateCommand(opts))
	cmd.AddCommand(newUserCommand(opts))
	cmd.AddCommand(newFeaturesCommand(opts))

	return cmd
}

// withDB loads the configuration, opens the database and closes it after fn.
func (o *rootOptions) withDB(fn func(cfg *config.Config, db *gorm.DB) error) error {
	cfg, err := config.Load(o.ConfigPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger.Init(cfg.Log.Level, cfg.Log.Format)

	db, err := models.Open(&cfg.Database)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	return fn(cfg, db)
}

// print writes v as indented JSON, or text() in text mode.
func (o *rootOptions) print(w io.Writer, v interface{}, text func(io.Writer) error) error {
	if o.Format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	return text(w)
}

func newMigrateCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withDB(func(cfg *config.Config, db *gorm.DB) error {
				if err := models.Migrate(db); err != nil {
					return fmt.Errorf("migrate: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "schema up to date (%s)\n", cfg.Database.Driver)
				return nil
			})
		},
	}
}
