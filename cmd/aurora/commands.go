package main

import (
	"fmt"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/igapp/aurora/internal/config"
	"github.com/igapp/aurora/internal/database"
	"github.com/igapp/aurora/internal/logging"
	"github.com/igapp/aurora/internal/metrics"
	"github.com/igapp/aurora/internal/services"
	"github.com/igapp/aurora/internal/utils"
)

// app carries what every subcommand needs once the root has set it up
type app struct {
	cfg         *config.Config
	log         *zap.SugaredLogger
	restore     func()
	metricsFile string
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:               "aurora",
		Short:             "Security event record keeping backend",
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE:  a.setup,
		PersistentPostRunE: a.writeMetrics,
	}
	root.PersistentFlags().StringVar(&a.metricsFile, "metrics-file", "", "write Prometheus counters to this file after the command succeeds")
	root.AddCommand(a.migrateCmd(), a.seedCmd(), a.statsCmd())
	return root
}

func (a *app) setup(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	a.cfg = cfg

	logger, restore := logging.Install(cfg.Log.Level, cfg.Log.Format)
	a.log = logger.Sugar()
	a.restore = restore
	return nil
}

// writeMetrics dumps the counters collected by the command when --metrics-file is set
func (a *app) writeMetrics(_ *cobra.Command, _ []string) error {
	if a.metricsFile == "" {
		return nil
	}
	if err := metrics.WriteTextfile(a.metricsFile); err != nil {
		return errors.Wrapf(err, "failed to write metrics to %s", a.metricsFile)
	}
	return nil
}

// withDB opens the configured store around fn and releases it afterwards
func (a *app) withDB(fn func(cmd *cobra.Command, db *gorm.DB) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, _ []string) error {
		defer func() {
			if a.restore != nil {
				a.restore()
			}
		}()

		if err := database.Connect(a.cfg.Database.Driver, a.cfg.Database.URL, database.ParseLogLevel(a.cfg.Database.LogLevel)); err != nil {
			return errors.WithHint(err, "check DATABASE_DRIVER and DATABASE_URL")
		}
		defer func() {
			if err := database.Close(); err != nil {
				a.log.Warnw("Failed to close database", "error", err)
			}
		}()
		return fn(cmd, database.GetDB())
	}
}

func (a *app) migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		Args:  cobra.NoArgs,
		RunE: a.withDB(func(cmd *cobra.Command, db *gorm.DB) error {
			started := time.Now()
			if err := database.AutoMigrate(db); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Migrated %d tables in %s\n", len(database.AllModels()), utils.FormatDuration(time.Since(started)))
			return nil
		}),
	}
}

func (a *app) seedCmd() *cobra.Command {
	var file string
	var migrate bool
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Insert or refresh the severity and status catalogs",
		Args:  cobra.NoArgs,
		RunE: a.withDB(func(cmd *cobra.Command, db *gorm.DB) error {
			if file == "" {
				file = a.cfg.Seed.File
			}

			var seed *database.CatalogSeed
			var err error
			if file == "" {
				seed, err = database.DefaultCatalogSeed()
			} else {
				seed, err = database.LoadCatalogSeed(file)
			}
			if err != nil {
				return err
			}

			if migrate {
				if err := database.AutoMigrate(db); err != nil {
					return err
				}
			}

			result, err := database.SeedCatalogs(db, seed)
			if err != nil {
				return errors.WithHint(err, "run `aurora migrate` first or pass --migrate")
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Catalogs seeded: %d created, %d updated\n", result.Created, result.Updated)
			return nil
		}),
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "catalog seed YAML file (default: SEED_FILE or built-in catalogs)")
	cmd.Flags().BoolVar(&migrate, "migrate", false, "migrate the schema before seeding")
	return cmd
}

func (a *app) statsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Print live row counts per entity",
		Args:  cobra.NoArgs,
		RunE: a.withDB(func(cmd *cobra.Command, db *gorm.DB) error {
			stats, err := services.New(db, a.log).Stats(cmd.Context())
			if err != nil {
				return err
			}

			width := len("ENTITY")
			for _, s := range stats {
				if len(s.Entity) > width {
					width = len(s.Entity)
				}
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s  %s\n", utils.Pad("ENTITY", width), "COUNT")
			for _, s := range stats {
				fmt.Fprintf(out, "%s  %s\n", utils.Pad(s.Entity, width), utils.FormatCount(s.Count))
			}
			return nil
		}),
	}
}
