package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/harborside/cranetrack/internal/ingest"
)

var (
	ingestDir      string
	ingestWorkers  int
	ingestMaxFiles int
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Parse crane logs into the telemetry store",
	Long:  "Scans the log directory for .log and .zip files (newest first), extracts tracked statistic tags, and loads them with idempotent writes. Safe to re-run over the same files.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ingestCfg := cfg.Ingest
		if ingestDir != "" {
			ingestCfg.LogDir = ingestDir
		}
		if ingestWorkers > 0 {
			ingestCfg.Workers = ingestWorkers
		}
		if ingestMaxFiles > 0 {
			ingestCfg.MaxFiles = ingestMaxFiles
		}

		st, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		runner, err := ingest.NewRunner(ingestCfg, st, log)
		if err != nil {
			return err
		}

		run, err := runner.Run(cmd.Context())
		if err != nil {
			return err
		}
		log.Info("batch done",
			zap.String("run_id", run.ID),
			zap.Int("samples_inserted", run.SamplesInserted),
			zap.Int("duplicates_skipped", run.DuplicatesSkipped),
		)
		return nil
	},
}

func init() {
	ingestCmd.Flags().StringVar(&ingestDir, "dir", "", "log directory (default from config)")
	ingestCmd.Flags().IntVar(&ingestWorkers, "workers", 0, "per-file worker pool size (default from config)")
	ingestCmd.Flags().IntVar(&ingestMaxFiles, "max-files", 0, "cap on files scanned, newest first (default from config)")
	rootCmd.AddCommand(ingestCmd)
}
