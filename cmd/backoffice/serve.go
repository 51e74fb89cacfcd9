package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/sportscouncil/backoffice/internal/httpapi"
	"github.com/sportscouncil/backoffice/internal/ratelimit"
)

var servePort string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	RunE:  runServe,
}

func init() {
	// Registered on both root and serve so `backoffice --port` works too.
	for _, cmd := range []*cobra.Command{rootCmd, serveCmd} {
		cmd.Flags().StringVar(&servePort, "port", "", "override HTTP listen address (e.g. :8080)")
	}
}

// runServe starts the HTTP API and the integration prober.
func runServe(_ *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if servePort != "" {
		cfg.HTTP.ListenAddr = servePort
	}
	logger := newLogger(cfg)
	logger.Info("starting back office", slog.String("version", version))

	sc, err := initShared(cfg, logger)
	if err != nil {
		return err
	}
	defer sc.Cleanup()

	// Signal-aware context.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if sc.Prober != nil {
		cancelProbe := sc.Prober.Start(ctx)
		defer cancelProbe()
	}

	srv := buildServer(sc)

	errs := make(chan error, 1)
	go func() {
		errs <- srv.Start(ctx)
	}()

	// Wait for signal or server error.
	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-errs:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http api exited with error", slog.String("error", err.Error()))
			return err
		}
	}

	// Graceful shutdown with deadline.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Stop(shutdownCtx); err != nil {
		logger.Error("stopping http api", slog.String("error", err.Error()))
	}
	return nil
}

func buildServer(sc *SharedComponents) *httpapi.Server {
	cfg := sc.Config
	rpm, burst := cfg.HTTP.Contact.RateLimit.Limits()
	limiter := ratelimit.NewLimiter(ratelimit.Config{
		RequestsPerMinute: rpm,
		BurstSize:         burst,
	})

	httpCfg := httpapi.Config{
		ListenAddr:     cfg.ListenAddr(),
		EnableDocs:     cfg.HTTP.EnableDocs,
		APIKeys:        cfg.HTTP.APIKeys,
		MaxRequestSize: cfg.MaxRequestSize(),
		Contact: httpapi.ContactConfig{
			Enabled:   cfg.HTTP.Contact.Enabled,
			Recipient: cfg.HTTP.Contact.Recipient,
			Template:  cfg.HTTP.Contact.TemplateName(),
		},
		MetricsPath: cfg.MetricsPath(),
	}
	if sc.Obs != nil {
		httpCfg.HealthChecker = sc.Obs.Health
		httpCfg.Metrics = sc.Obs.Metrics
		if ts := sc.Obs.TracerOrNil(); ts != nil {
			httpCfg.Tracer = ts.Tracer()
		}
		if sc.Obs.Metrics != nil {
			httpCfg.MetricsRegistry = sc.Obs.Metrics.Registry
		}
	}
	if len(httpCfg.APIKeys) == 0 {
		sc.Logger.Warn("no API keys configured; all /v1 requests will be rejected")
	}

	deps := httpapi.Deps{
		Files:         sc.Files,
		Mail:          sc.Mail,
		Templates:     sc.Store.Templates(),
		Settings:      sc.Settings,
		Integrations:  sc.Registry,
		OAuth:         sc.Authorizer,
		Observability: sc.Obs,
	}
	if sc.Prober != nil {
		deps.Probes = sc.Prober
	}
	return httpapi.New(httpCfg, deps, limiter, sc.Logger)
}
