package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/ctxguard/ctxguard/internal/audit"
	"github.com/ctxguard/ctxguard/internal/di"
	"github.com/ctxguard/ctxguard/internal/engine"
	"github.com/ctxguard/ctxguard/internal/securestore"
	"github.com/ctxguard/ctxguard/internal/server"
)

// Starts the engine as an HTTP service.
func cmdRun() *cobra.Command {
	var port int
	var enableCORS bool
	var sweepEvery time.Duration

	c := &cobra.Command{
		Use:   "run",
		Short: "Start the authorization engine",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cfgPath)
			if err != nil {
				return err
			}
			return runServer(cmd.Context(), cfg, port, enableCORS, sweepEvery)
		},
	}
	c.Flags().IntVar(&port, "port", 8086, "listen port")
	c.Flags().BoolVar(&enableCORS, "cors", false, "enable permissive CORS (dev only)")
	c.Flags().DurationVar(&sweepEvery, "sweep-interval", time.Minute, "expired record sweep interval")
	return c
}

func runServer(ctx context.Context, cfg *Config, port int, enableCORS bool, sweepEvery time.Duration) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	var store securestore.SecureStore
	if cfg.DataDir != "" {
		fs, err := securestore.NewFS(cfg.DataDir)
		if err != nil {
			return fmt.Errorf("open secure store: %w", err)
		}
		store = fs
	} else {
		store = di.ProvideSecureStore()
	}

	sinks := []audit.Sink{&audit.SlogSink{}}
	if cfg.AuditURL != "" {
		sinks = append(sinks, audit.NewHTTPSink(cfg.AuditURL))
	} else {
		sinks = di.ProvideSinks()
	}

	eng := engine.New(engine.Options{
		Sinks:      sinks,
		Authorizer: di.ProvideAuthorizer(),
		Store:      store,
	})
	if err := eng.Restore(ctx); err != nil {
		return fmt.Errorf("restore snapshot: %w", err)
	}

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: server.BuildRouter(server.Deps{Engine: eng}, server.Options{EnableCORS: enableCORS}),
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		t := time.NewTicker(sweepEvery)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-t.C:
				res := eng.CleanupExpired(ctx)
				if res.Permissions > 0 || res.Consents > 0 {
					slog.Info("sweep", "permissions", res.Permissions, "consents", res.Consents)
				}
			}
		}
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := eng.Snapshot(shutdownCtx); err != nil {
			slog.Error("snapshot on shutdown", "err", err)
		}
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
