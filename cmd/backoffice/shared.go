package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	goutils "github.com/jkaninda/go-utils"

	"github.com/sportscouncil/backoffice/internal/config"
	"github.com/sportscouncil/backoffice/internal/credentials"
	"github.com/sportscouncil/backoffice/internal/mailer"
	"github.com/sportscouncil/backoffice/internal/objectstore"
	"github.com/sportscouncil/backoffice/internal/observability"
	"github.com/sportscouncil/backoffice/internal/probe"
	"github.com/sportscouncil/backoffice/internal/secrets"
	"github.com/sportscouncil/backoffice/internal/settings"
	"github.com/sportscouncil/backoffice/internal/storage"
	pgstore "github.com/sportscouncil/backoffice/internal/storage/postgres"
	sqlitestore "github.com/sportscouncil/backoffice/internal/storage/sqlite"
)

var configPath string

// loadConfig reads the config file named by BACKOFFICE_CONFIG or --config.
func loadConfig() (*config.Config, error) {
	path := configPath
	if path == "" {
		path = config.DefaultConfigPath()
	}
	return config.Load(goutils.Env("BACKOFFICE_CONFIG", path))
}

func newLogger(cfg *config.Config) *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: cfg.Logging.SlogLevel(),
	}))
}

// SharedComponents holds the initialized subsystems. Built once by
// initShared, torn down by Cleanup.
type SharedComponents struct {
	Config *config.Config
	Logger *slog.Logger
	Store  storage.Store // Unified store (SQLite or PostgreSQL).
	Obs    *observability.Observability
	Cipher *secrets.Cipher

	Registry   *credentials.Registry
	Settings   *settings.Service
	Files      *objectstore.Service
	Mail       *mailer.Service
	Authorizer *mailer.Authorizer
	Prober     *probe.Prober // nil = periodic checks disabled.

	cleanups []func()
}

// Cleanup runs all deferred cleanup functions in reverse order.
func (sc *SharedComponents) Cleanup() {
	for i := len(sc.cleanups) - 1; i >= 0; i-- {
		sc.cleanups[i]()
	}
}

func (sc *SharedComponents) addCleanup(fn func()) {
	sc.cleanups = append(sc.cleanups, fn)
}

// initShared opens the store, builds the cipher and wires both integrations.
// Callers must call sc.Cleanup() when done.
func initShared(cfg *config.Config, logger *slog.Logger) (*SharedComponents, error) {
	sc := &SharedComponents{
		Config: cfg,
		Logger: logger,
	}

	// Ensure data directory exists.
	dataDir := cfg.ResolvedDataDir()
	if err := os.MkdirAll(dataDir, 0750); err != nil {
		return nil, fmt.Errorf("creating data directory %s: %w", dataDir, err)
	}

	// The master key is required: without it no stored secret can be read.
	cipher, err := secrets.NewCipher(cfg.Encryption.MasterKey)
	if err != nil {
		return nil, fmt.Errorf("initializing secret cipher: %w", err)
	}
	sc.Cipher = cipher

	// Observability.
	obs, err := observability.New(cfg.Observability, logger)
	if err != nil {
		return nil, fmt.Errorf("initializing observability: %w", err)
	}
	sc.Obs = obs
	sc.addCleanup(func() {
		if obs != nil {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			obs.Shutdown(shutdownCtx)
		}
	})
	if obs != nil {
		logger.Debug("observability initialized",
			slog.Bool("metrics", obs.Metrics != nil),
			slog.Bool("tracing", obs.Tracer != nil),
			slog.Bool("anomaly", obs.Anomaly != nil),
		)
	}

	// Storage (SQLite default, PostgreSQL optional).
	store, err := initStore(cfg, logger)
	if err != nil {
		sc.Cleanup()
		return nil, fmt.Errorf("initializing storage: %w", err)
	}
	sc.Store = store
	sc.addCleanup(func() {
		if err := store.Close(); err != nil {
			logger.Error("closing store", slog.String("error", err.Error()))
		}
	})
	if err := store.Migrate(context.Background()); err != nil {
		sc.Cleanup()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	// Credential managers. Stored values win over the environment as a whole bundle.
	opts := credentials.Options{
		Store:    store.Settings(),
		Env:      settings.NewEnvSource(nil),
		Cipher:   cipher,
		TTL:      cfg.Integrations.CacheTTL(),
		Logger:   logger,
		Observer: obs,
	}
	buckets := credentials.NewManager(objectstore.NewSpec(nil), opts)
	transports := credentials.NewManager(mailer.NewSpec(nil), opts)
	sc.Registry = credentials.NewRegistry(buckets, transports)

	sc.Settings = settings.NewService(store.Settings(), cipher, sc.Registry, logger)
	sc.Files = objectstore.NewService(buckets, objectstore.Config{
		Timeout:                 cfg.Integrations.OperationTimeout(),
		DefaultSignedURLMinutes: cfg.Integrations.SignedURLDefault(),
	}, obs, logger)
	sc.Mail = mailer.NewService(transports, store.Templates(), cfg.Integrations.OperationTimeout(), obs, logger)
	sc.Authorizer = mailer.NewAuthorizer(sc.Settings, cfg.Integrations.GmailRedirectURL, logger)

	// Health checks: the database gates readiness, integrations are reported only.
	if obs != nil && obs.Health != nil {
		includeDB, includeIntegrations := true, false
		if h := cfg.Observability.Health; h != nil {
			includeDB, includeIntegrations = h.IncludeDB, h.IncludeIntegrations
		}
		if includeDB {
			obs.Health.AddCheck("database", store.Ping)
		}
		if includeIntegrations {
			obs.Health.AddOptionalCheck(objectstore.Integration, outcomeCheck(sc.Files.Check))
			obs.Health.AddOptionalCheck(mailer.Integration, outcomeCheck(sc.Mail.Check))
		}
	}

	// Periodic integration probe.
	if cfg.Probe != nil && cfg.Probe.Enabled {
		var probeMetrics *probe.Metrics
		if obs != nil && obs.Metrics != nil {
			probeMetrics = probe.NewMetrics(obs.Metrics.Registry)
		}
		prober, err := probe.New(cfg.Probe.CronSchedule(), sc.checks(), obs, probeMetrics, logger)
		if err != nil {
			sc.Cleanup()
			return nil, err
		}
		sc.Prober = prober
	}

	logger.Debug("integrations initialized",
		slog.Any("integrations", sc.Registry.Names()),
		slog.Duration("cache_ttl", cfg.Integrations.CacheTTL()),
	)
	return sc, nil
}

// checks returns the verification of each integration, keyed by name.
func (sc *SharedComponents) checks() map[string]probe.CheckFunc {
	return map[string]probe.CheckFunc{
		objectstore.Integration: sc.Files.Check,
		mailer.Integration:      sc.Mail.Check,
	}
}

// outcomeCheck adapts an integration check to a health check.
func outcomeCheck(check func(context.Context) credentials.Outcome) func(context.Context) error {
	return func(ctx context.Context) error {
		if out := check(ctx); !out.Success {
			return fmt.Errorf("%s", out.Error)
		}
		return nil
	}
}

func initStore(cfg *config.Config, logger *slog.Logger) (storage.Store, error) {
	driver := cfg.StorageDriverName()

	switch driver {
	case storage.DriverPostgres:
		return initPostgresStore(cfg, logger)
	case storage.DriverSQLite:
		return initSQLiteStore(cfg, logger)
	default:
		return nil, fmt.Errorf("unknown storage driver: %q", driver)
	}
}

func initSQLiteStore(cfg *config.Config, logger *slog.Logger) (storage.Store, error) {
	journalMode := "wal"
	if cfg.Storage != nil && cfg.Storage.SQLite != nil && cfg.Storage.SQLite.JournalMode != "" {
		journalMode = cfg.Storage.SQLite.JournalMode
	}

	return sqlitestore.Open(sqlitestore.Config{
		Path:        cfg.DatabasePath(),
		JournalMode: journalMode,
	}, logger)
}

func initPostgresStore(cfg *config.Config, logger *slog.Logger) (storage.Store, error) {
	if cfg.Storage == nil || cfg.Storage.Postgres == nil || cfg.Storage.Postgres.DSN == "" {
		return nil, fmt.Errorf("postgres DSN is required (set storage.postgres.dsn or BACKOFFICE_DB_DSN)")
	}
	pg := cfg.Storage.Postgres

	pgDB, err := pgstore.Open(pgstore.Config{
		DSN:             pg.DSN,
		MaxOpenConns:    pg.MaxOpenConns,
		MaxIdleConns:    pg.MaxIdleConns,
		ConnMaxLifetime: time.Duration(pg.ConnMaxLifetimeS) * time.Second,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("opening postgres: %w", err)
	}

	return pgstore.NewStore(pgDB), nil
}
