package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	apperrors "github.com/charlesng35/urlcache/pkg/errors"
)

const shutdownTimeout = 15 * time.Second

func newServeCmd(state *cliState) *cobra.Command {
	var listen string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Expose Prometheus metrics and readiness for the cache database",
		Long: `Serve Prometheus metrics and a /healthz readiness report. Cache statistics are
sampled on monitoring.report_schedule. Requires monitoring.enabled.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := state.cfg
			log := state.log
			if !cfg.Monitoring.Enabled {
				return apperrors.ErrInvalidConfig.WithMessage(
					"serve: monitoring is disabled; set monitoring.enabled or URLCACHE_MONITORING_ENABLED=true")
			}
			if addr := strings.TrimSpace(listen); addr != "" {
				cfg.Monitoring.Listen = addr
			}

			stack, err := bootstrapRuntime(cfg, log, cfg.Monitoring.Enabled)
			if err != nil {
				return err
			}
			defer stack.Shutdown(log)

			if _, err := stack.Reporter.RunOnce(cmd.Context()); err != nil {
				log.Warn("initial stats report failed", zap.Error(err))
			}

			server := &http.Server{
				Addr:              cfg.Monitoring.Listen,
				Handler:           stack.Monitoring.Mux(cfg.Monitoring.Endpoint),
				ReadHeaderTimeout: 10 * time.Second,
			}

			return serve(cmd.Context(), server, log)
		},
	}

	cmd.Flags().StringVar(&listen, "listen", "", "listen address (overrides monitoring.listen)")
	return cmd
}

func serve(ctx context.Context, server *http.Server, log *zap.Logger) error {
	serverErr := make(chan error, 1)
	go func() {
		log.Info("metrics server listening", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received")
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("graceful shutdown: %w", err)
	}

	if err, ok := <-serverErr; ok && err != nil {
		return fmt.Errorf("server error: %w", err)
	}

	log.Info("server stopped gracefully")
	return nil
}
