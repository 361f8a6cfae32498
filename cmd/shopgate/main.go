// shopgate is a stateless JWT authentication and authorization gateway in
// front of a small product catalog.
//
// Configuration is read from SHOPGATE_CONFIG (default configs/config.yaml)
// and SHOPGATE_* environment overrides.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/nerrad567/shopgate/internal/api"
	"github.com/nerrad567/shopgate/internal/audit"
	"github.com/nerrad567/shopgate/internal/auth"
	"github.com/nerrad567/shopgate/internal/catalog"
	"github.com/nerrad567/shopgate/internal/infrastructure/config"
	"github.com/nerrad567/shopgate/internal/infrastructure/database"
	"github.com/nerrad567/shopgate/internal/infrastructure/influxdb"
	"github.com/nerrad567/shopgate/internal/infrastructure/logging"
	"github.com/nerrad567/shopgate/internal/infrastructure/mqtt"
	"github.com/nerrad567/shopgate/internal/infrastructure/postgres"
	"github.com/nerrad567/shopgate/internal/infrastructure/redis"
	"github.com/nerrad567/shopgate/internal/metrics"
	"github.com/nerrad567/shopgate/internal/throttle"
	_ "github.com/nerrad567/shopgate/migrations"
)

// Set at build time:
//
//	go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

const defaultConfigPath = "configs/config.yaml"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// pingFunc adapts a ping method to api.HealthChecker.
type pingFunc func(ctx context.Context) error

func (f pingFunc) HealthCheck(ctx context.Context) error { return f(ctx) }

// closers runs cleanup functions in reverse registration order.
type closers []func()

func (c *closers) add(f func()) { *c = append(*c, f) }

func (c closers) run() {
	for i := len(c) - 1; i >= 0; i-- {
		c[i]()
	}
}

func run(ctx context.Context) error {
	log := logging.Default()
	log.Info("starting shopgate",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	log = logging.New(cfg.Logging, version)
	log.Info("configuration loaded",
		"path", configPath,
		"credentials_backend", cfg.Credentials.Backend,
		"console", cfg.Console.Enabled,
	)

	var cleanup closers
	defer cleanup.run()

	db, err := database.Open(database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	cleanup.add(func() {
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	})
	if err := db.Migrate(ctx); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	log.Info("database ready", "path", cfg.Database.Path)

	health := map[string]api.HealthChecker{"database": db}

	store, err := openCredentialStore(ctx, cfg, db, health, &cleanup)
	if err != nil {
		return err
	}

	hasher, err := auth.NewHasher(cfg.Security.Password.Algorithm, cfg.Security.Password.BcryptCost)
	if err != nil {
		return fmt.Errorf("creating password hasher: %w", err)
	}
	codec, err := auth.NewTokenCodec(cfg.Security.JWT.Secret, cfg.GetTokenLifetime())
	if err != nil {
		return fmt.Errorf("creating token codec: %w", err)
	}
	svc := auth.NewService(store, hasher, codec)

	if cfg.Security.Bootstrap.Enabled {
		if _, err := auth.SeedAdmin(ctx, store, hasher,
			cfg.Security.Bootstrap.Username, cfg.Security.Bootstrap.Password, log.Logger); err != nil {
			return fmt.Errorf("seeding admin: %w", err)
		}
	}

	var limiter api.LoginLimiter
	if cfg.Security.LoginThrottle.Enabled {
		rdb, err := redis.NewClient(ctx, cfg.Redis.URL)
		if err != nil {
			return fmt.Errorf("connecting to redis: %w", err)
		}
		cleanup.add(func() { rdb.Close() }) //nolint:errcheck // shutdown
		health["redis"] = pingFunc(func(ctx context.Context) error { return rdb.Ping(ctx).Err() })
		limiter = throttle.NewRedisLimiter(rdb, throttle.Config{
			MaxAttempts: cfg.Security.LoginThrottle.MaxAttempts,
			Window:      cfg.GetThrottleWindow(),
		})
		log.Info("login throttle enabled",
			"max_attempts", cfg.Security.LoginThrottle.MaxAttempts,
			"window", cfg.GetThrottleWindow(),
		)
	}

	auditLog := audit.NewSQLiteRepository(db.DB)
	dispatcher := audit.NewDispatcher(audit.DefaultBufferSize, log.Logger)
	dispatcher.AddSink("database", auditLog)

	if cfg.MQTT.Enabled {
		client, err := mqtt.Connect(cfg.MQTT)
		if err != nil {
			return fmt.Errorf("connecting to MQTT: %w", err)
		}
		client.SetLogger(log)
		cleanup.add(func() {
			if closeErr := client.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		})
		health["mqtt"] = client
		// #nosec G115 -- qos validated to 0-2 by config
		dispatcher.AddSink("mqtt", audit.NewMQTTSink(client, client.Topics().Prefix(), byte(cfg.MQTT.QoS)))
		log.Info("MQTT connected",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
			"topic", client.Topics().AllAuthEvents(),
		)
	}

	if cfg.InfluxDB.Enabled {
		influx, err := influxdb.Connect(cfg.InfluxDB)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		influx.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		cleanup.add(func() { influx.Close() }) //nolint:errcheck // Close always returns nil
		health["influxdb"] = influx
		dispatcher.AddSink("influxdb", audit.NewInfluxSink(influx))
		log.Info("InfluxDB connected", "url", cfg.InfluxDB.URL, "bucket", cfg.InfluxDB.Bucket)
	}

	hub := api.NewHub(cfg.WebSocket, log)
	dispatcher.AddSink("websocket", hub)

	var collector *metrics.Collector
	if cfg.Metrics.Enabled {
		collector = metrics.New()
		collector.RegisterAuditDropped(dispatcher.Dropped)
		dispatcher.AddSink("metrics", collector)
	}

	srv, err := api.New(api.Deps{
		Config:     cfg.API,
		WS:         cfg.WebSocket,
		Console:    cfg.Console,
		Logger:     log,
		Auth:       svc,
		Catalog:    catalog.NewSQLiteRepository(db),
		Audit:      dispatcher,
		AuditLog:   auditLog,
		Throttle:   limiter,
		Metrics:    collector,
		Health:     health,
		Migrations: db,
		Hub:        hub,
		Version:    version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		hub.Run(gctx)
		return nil
	})
	g.Go(func() error { return dispatcher.Run(gctx) })
	if collector != nil {
		g.Go(func() error {
			log.Info("metrics listener starting", "host", cfg.Metrics.Host, "port", cfg.Metrics.Port)
			return collector.Serve(gctx, cfg.Metrics.Host, cfg.Metrics.Port)
		})
	}

	if err := srv.Start(gctx); err != nil {
		return fmt.Errorf("starting API server: %w", err)
	}
	g.Go(func() error {
		<-gctx.Done()
		return srv.Close()
	})

	log.Info("shopgate ready", "address", fmt.Sprintf("%s:%d", cfg.API.Host, cfg.API.Port))

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	log.Info("shopgate stopped")
	return nil
}

// openCredentialStore returns the configured credential backend and
// registers its health check and cleanup.
func openCredentialStore(ctx context.Context, cfg *config.Config, db *database.DB, health map[string]api.HealthChecker, cleanup *closers) (auth.CredentialStore, error) {
	if cfg.Credentials.Backend != config.CredentialBackendPostgres {
		return auth.NewSQLiteCredentialStore(db), nil
	}

	pool, err := postgres.Connect(ctx, cfg.Credentials.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("connecting to postgres: %w", err)
	}
	cleanup.add(pool.Close)
	health["postgres"] = pingFunc(pool.Ping)

	store := auth.NewPostgresCredentialStore(pool)
	if err := store.EnsureSchema(ctx); err != nil {
		return nil, fmt.Errorf("preparing postgres schema: %w", err)
	}
	return store, nil
}

// getConfigPath returns SHOPGATE_CONFIG if set, otherwise the default path.
func getConfigPath() string {
	if path := os.Getenv("SHOPGATE_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}
