package cmd

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"github.com/joescharf/crev/internal/api"
	"github.com/joescharf/crev/internal/config"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the review HTTP server",
	Long: `Start an HTTP server exposing POST /review/ (multipart field "file"),
GET /health and the embedded upload page.

By default it listens on :8000. Use --addr or CREV_SERVER_ADDR to change it.
Without an API key the server still starts, but reviews return 503 and
/health reports unhealthy.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		ctx, stop := signal.NotifyContext(cmd.Context(), shutdownSignals()...)
		defer stop()
		return serveRun(ctx, cfg, nil)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("addr", ":8000", "address to listen on")
	_ = viper.BindPFlag("server.addr", serveCmd.Flags().Lookup("addr"))
}

// serveRun serves until ctx is cancelled, then drains in-flight requests.
// When ready is non-nil it receives the bound address once listening.
func serveRun(ctx context.Context, cfg config.Config, ready chan<- string) error {
	log := newLogger(cfg)

	rv, err := newReviewer(cfg, log)
	if err != nil {
		return fmt.Errorf("create reviewer: %w", err)
	}
	if rv == nil {
		ui.Warning("No API key configured for %s; reviews will return 503", cfg.Provider)
	}

	srv := &http.Server{
		Handler:           api.NewServer(rv, cfg, log, buildVersion).Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ln, err := net.Listen("tcp", cfg.Server.Addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", cfg.Server.Addr, err)
	}
	addr := ln.Addr().String()
	ui.Info("Serving crev at http://%s (provider %s, model %s)", addr, cfg.Provider, cfg.Model)
	if ready != nil {
		ready <- addr
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down", "timeout", cfg.Server.ShutdownTimeout)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
