package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"phoneqa-importer/internal/ingest"
	"phoneqa-importer/internal/refdata"
	"phoneqa-importer/internal/roster"
	"phoneqa-importer/internal/scan"
	"phoneqa-importer/internal/shared/config"
	"phoneqa-importer/internal/shared/metrics"
	"phoneqa-importer/internal/shared/storage/db"
	"phoneqa-importer/internal/shared/telemetry"
)

var (
	flagPath string
	flagRoot string
)

var rootCmd = &cobra.Command{
	Use:           "phoneqa-importer",
	Short:         "Import PhoneQA call-analysis JSON reports into the database",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          run,
}

func init() {
	rootCmd.Flags().StringVar(&flagPath, "path", "", "full path to a 'Week of YYYY-MM-DD' folder to process")
	rootCmd.Flags().StringVar(&flagRoot, "root", "", "root directory containing 'Week of ...' folders (default from config)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	log := telemetry.New(cfg.Env, cfg.LogLevel)
	log.Info("phoneqa importer starting")

	// No timeout or cancellation by design: a hung database call blocks the run.
	ctx := context.Background()

	rosterByExt, err := roster.Load(cfg.ExtListPath, log)
	if err != nil {
		log.WithError(err).Error("failed to load roster")
		return err
	}

	target := flagPath
	if target != "" {
		info, err := os.Stat(target)
		if err != nil || !info.IsDir() {
			log.WithField("path", target).Error("provided path is not a valid directory")
			return fmt.Errorf("invalid --path %q", target)
		}
		log.WithField("folder", target).Info("processing user-specified folder")
	} else {
		root := flagRoot
		if root == "" {
			root = cfg.SourceRoot
		}
		target, err = scan.FindLatestWeekFolder(root, log)
		if err != nil {
			if errors.Is(err, scan.ErrNoWeekFolders) || os.IsNotExist(err) {
				log.WithField("root", root).WithError(err).Warn("no folder to process; exiting")
				return nil
			}
			log.WithError(err).Error("failed to scan for week folders")
			return err
		}
		log.WithField("folder", target).Info("found latest week folder")
	}

	sqlDB, err := db.Connect(ctx, cfg.DatabaseURL, db.OptionsFromEnv(db.DefaultImporterOptions()))
	if err != nil {
		log.WithError(err).Error("database connection failed")
		return err
	}
	defer func() {
		sqlDB.Close()
		log.Info("database connection closed")
	}()

	proc := ingest.NewProcessor(sqlDB, rosterByExt, refdata.NewResolver(log), log)
	summary, err := proc.ProcessFolder(ctx, target)
	if err != nil {
		log.WithError(err).Error("folder processing failed")
		return err
	}

	log.WithField("eligible", summary.Eligible).
		WithField("stored", summary.Stored).
		WithField("failed", summary.Failed).
		Info("import run finished")
	log.WithField("metrics", "\n"+metrics.Render()).Debug("run metrics")
	return nil
}
