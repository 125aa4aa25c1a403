package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/harborside/cranetrack/internal/httpserver"
	"github.com/harborside/cranetrack/internal/ingest"
	"github.com/harborside/cranetrack/internal/predict"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API for the maintenance dashboard",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		engine := predict.NewEngine(st, log)

		// The ingest trigger is optional: without a tag ids file the server
		// still answers predictions over previously loaded data.
		var trigger httpserver.TriggerFunc
		if cfg.Ingest.TagIDsFile != "" {
			runner, err := ingest.NewRunner(cfg.Ingest, st, log)
			if err != nil {
				return err
			}
			trigger = func(ctx context.Context) {
				if _, err := runner.Run(ctx); err != nil {
					log.Error("triggered ingest run failed", zap.Error(err))
				}
			}
		} else {
			log.Warn("no tag ids file configured, POST /ingest disabled")
		}

		interval := time.Duration(cfg.Server.IngestTriggerIntervalSecs) * time.Second
		server := httpserver.New(st, engine, trigger, interval, log)

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}
		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: server.Handler(),
		}

		go func() {
			<-ctx.Done()
			log.Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			srv.Shutdown(shutdownCtx) //nolint:errcheck
		}()

		log.Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}
		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
