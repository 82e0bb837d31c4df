package main

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
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/sagarc03/cryptosheet"
	"github.com/sagarc03/cryptosheet/config"
	cryptohttp "github.com/sagarc03/cryptosheet/http"
	"github.com/sagarc03/cryptosheet/keybackend"
	"github.com/sagarc03/cryptosheet/proxy"
	"github.com/sagarc03/cryptosheet/ratelimit"
	"github.com/sagarc03/cryptosheet/sandbox"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	Long: `Start the cryptosheet HTTP gateway.

The server shuts down gracefully on SIGINT or SIGTERM: in-flight requests
get up to server.shutdown_timeout to finish before the store is closed.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().Int("port", 3000, "HTTP server port (env: CRYPTOSHEET_SERVER_PORT)")
	serveCmd.Flags().String("secret-file", "", "file holding the shared secret (env: CRYPTOSHEET_AUTH_SECRET_FILE)")
	serveCmd.Flags().Bool("protect-reads", true, "require the shared secret on GET /{key} and GET /basic (--protect-reads=false opens reads)")

	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) (err error) {
	cfg, err := config.FromContext(cmd.Context())
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	secret, err := keybackend.ResolveSecret(cfg.Auth.SecretConfig)
	if err != nil {
		return fmt.Errorf("resolve secret: %w", err)
	}
	if secret == "" {
		slog.Warn("no shared secret configured, every route is open")
	}

	db, err := openStore(ctx, cfg, cfg.Store.AutoMigrate)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, db.Close()) }()
	slog.Info("connected to store", "type", cfg.Store.Type)

	service := cryptosheet.NewService(db.GetStore())

	handler, limiter, err := buildHandler(cfg, secret, service)
	if err != nil {
		return err
	}

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	server := &http.Server{
		Addr:              addr,
		Handler:           handler.Router(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       120 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		slog.Info("starting server", "addr", addr, "tls", cfg.Server.TLS.Enabled(), "protect_reads", cfg.Auth.ProtectReads)

		var serveErr error
		if cfg.Server.TLS.Enabled() {
			serveErr = server.ListenAndServeTLS(cfg.Server.TLS.CertFile, cfg.Server.TLS.KeyFile)
		} else {
			serveErr = server.ListenAndServe()
		}
		if errors.Is(serveErr, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server error: %w", serveErr)
	})

	if limiter != nil {
		g.Go(func() error {
			sweepLimiter(gctx, limiter)
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()

		slog.Info("shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown: %w", err)
		}
		return nil
	})

	return g.Wait()
}

// buildHandler wires the HTTP handler and its collaborators from cfg.
// The limiter is returned so the caller can sweep it; it is nil when rate
// limiting is disabled.
func buildHandler(cfg *config.Config, secret string, service cryptohttp.Service) (*cryptohttp.Handler, *ratelimit.Limiter, error) {
	var limiter *ratelimit.Limiter
	if cfg.RateLimit.Enabled {
		l, err := ratelimit.New(ratelimit.Config{
			Requests:      cfg.RateLimit.Requests,
			Window:        cfg.RateLimit.Window,
			MaxIdentities: cfg.RateLimit.MaxIdentities,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("create rate limiter: %w", err)
		}
		limiter = l
	}

	policy, err := proxy.NewPolicy(proxy.PolicyConfig{
		AllowedHosts: cfg.Proxy.AllowedHosts,
		BlockPrivate: cfg.Proxy.BlockPrivate,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("create proxy policy: %w", err)
	}
	fetcher := proxy.NewClient(proxy.Config{
		Timeout:      cfg.Proxy.Timeout,
		MaxBodyBytes: cfg.Proxy.MaxBodyBytes,
		MaxRedirects: cfg.Proxy.MaxRedirects,
		Policy:       policy,
	})

	var metrics *cryptohttp.Metrics
	if cfg.Metrics.Enabled {
		metrics = cryptohttp.NewMetrics()
	}

	sandboxCfg := sandbox.Config{
		DefaultTimeout: cfg.Sandbox.DefaultTimeout,
		MaxTimeout:     cfg.Sandbox.MaxTimeout,
		MaxConcurrent:  cfg.Sandbox.MaxConcurrent,
		MaxCallStack:   cfg.Sandbox.MaxCallStack,
	}
	if metrics != nil {
		sandboxCfg.Observe = metrics.ObserveSandbox
	}
	runner := sandbox.New(sandboxCfg)

	handlerConfig := cryptohttp.HandlerConfig{
		Secret:            secret,
		ProtectReads:      cfg.Auth.ProtectReads,
		Limiter:           limiter,
		MaxUploadBytes:    cfg.Upload.MaxSize,
		TrustProxyHeaders: cfg.Server.TrustProxyHeaders,
		CORS:              cfg.CORS,
		Metrics:           metrics,
	}

	return cryptohttp.NewHandler(&handlerConfig, service, fetcher, runner), limiter, nil
}

// sweepLimiter drops idle limiter buckets once per window until ctx ends.
func sweepLimiter(ctx context.Context, limiter *ratelimit.Limiter) {
	ticker := time.NewTicker(limiter.Window())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			slog.Debug("rate limiter sweep", "tracked", limiter.Sweep())
		}
	}
}
