package main

import (
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/megamp15/Space-Images-Dataset-Generator/internal/app"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Fetch metadata, download images and export the dataset",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if cfg.DevMode && !verbose {
			slog.SetDefault(newLogger(cmd.ErrOrStderr(), true))
		}

		runID := uuid.NewString()
		log := slog.Default().With("run", runID)
		log.Info("space-images starting", "version", Version, "dev_mode", cfg.DevMode, "download_images", cfg.Images.Download)

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		sum, err := app.New(cfg, log, runID).Run(ctx)
		if err != nil {
			return err
		}
		log.Info("run complete",
			"fetched", sum.Fetched,
			"failed_images", len(sum.FailedImages),
			"exported", sum.Exported,
			"json", cfg.Output.JSONPath,
			"csv", cfg.Output.CSVPath)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
}
