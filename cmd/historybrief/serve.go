package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/pevans/historybrief/api"
	"github.com/pevans/historybrief/logger"
	"github.com/pevans/historybrief/sink"
)

// shutdownTimeout bounds a graceful shutdown.
const shutdownTimeout = 10 * time.Second

func newServeCmd(opts *options) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the run archive over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(opts)
			if err != nil {
				return err
			}
			defer func() { _ = a.log.Sync() }()

			if addr == "" {
				addr = a.cfg.API.Addr
			}

			archive, err := sink.NewArchive(a.cfg.ArchiveDir)
			if err != nil {
				return err
			}

			srv := &http.Server{
				Addr:              addr,
				Handler:           api.NewServer(archive, a.sources).SetupRouter(),
				ReadHeaderTimeout: 10 * time.Second,
			}

			ctx, stop := signalContext(cmd.Context())
			defer stop()

			errChan := make(chan error, 1)
			go func() {
				a.log.Info("Starting archive API", logger.String("addr", addr), logger.String("archive", archive.Dir()))
				errChan <- srv.ListenAndServe()
			}()

			select {
			case err := <-errChan:
				if !errors.Is(err, http.ErrServerClosed) {
					return fmt.Errorf("server failed: %w", err)
				}
				return nil
			case <-ctx.Done():
				a.log.Info("Shutting down gracefully...")
				shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
				defer cancel()
				return srv.Shutdown(shutdownCtx)
			}
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from config, :8080)")

	return cmd
}
