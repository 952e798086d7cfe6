package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/prometheus/common/version"
	"github.com/spf13/cobra"

	"github.com/alertrelay/alertrelay/server/internal/alerts"
	"github.com/alertrelay/alertrelay/server/internal/api"
	"github.com/alertrelay/alertrelay/server/internal/auth"
	"github.com/alertrelay/alertrelay/server/internal/config"
	"github.com/alertrelay/alertrelay/server/internal/logging"
	"github.com/alertrelay/alertrelay/server/internal/metrics"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the alert relay HTTP server",
		Args:  cobra.NoArgs,
		RunE:  runServe,
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, watchPath, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	level := setupLogging(cfg)

	slog.Info("alertrelay starting",
		"version", version.Info(),
		"build_context", version.BuildContext(),
		"config", watchPath,
	)
	slog.Info("config loaded",
		"http_port", cfg.Server.HTTPPort,
		"path", cfg.Server.Path,
		"auth_mode", cfg.Auth.Mode,
		"webhook_format", cfg.Webhook.EffectiveFormat(),
		"metrics", cfg.Metrics.Enabled,
	)

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New()
	}

	newForwarder := func(wc config.WebhookConfig) (*alerts.Forwarder, error) {
		f, err := alerts.New(wc, alerts.WithMetrics(m), alerts.WithUserAgent(userAgent()))
		if err != nil {
			return nil, err
		}
		if !f.Configured() {
			slog.Warn("webhook URL not set; alerts will fail with 502", "env", wc.URLEnv)
		}
		return f, nil
	}

	fwd, err := newForwarder(cfg.Webhook)
	if err != nil {
		slog.Error("failed to build webhook forwarder", "err", err)
		return err
	}
	guard := auth.NewGuard(cfg.Auth, m)
	handler := api.New(cfg.Server, fwd, guard, m)

	ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Webhook, auth and log level reload in place; server settings need a restart.
	if watchPath != "" {
		go func() {
			err := config.Watch(ctx, watchPath, func(next *config.Config) {
				f, err := newForwarder(next.Webhook)
				if err != nil {
					slog.Error("config: webhook settings rejected, keeping previous", "err", err)
					return
				}
				level.Set(logging.ParseLevel(next.Log.Level))
				handler.SetForwarder(f)
				guard.Update(next.Auth)
				slog.Info("config applied",
					"auth_mode", next.Auth.Mode,
					"webhook_format", next.Webhook.EffectiveFormat(),
				)
			})
			if err != nil {
				slog.Error("config watcher stopped", "err", err)
			}
		}()
	}

	httpSrv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.HTTPPort),
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("HTTP server listening", "port", cfg.Server.HTTPPort, "path", cfg.Server.Path)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			slog.Error("HTTP server stopped", "err", err)
			return err
		}
	}

	slog.Info("alertrelay shutting down")
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancelShutdown()
	return httpSrv.Shutdown(shutdownCtx)
}
