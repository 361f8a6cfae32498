package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/nerrad567/shopgate/internal/audit"
	"github.com/nerrad567/shopgate/internal/auth"
	"github.com/nerrad567/shopgate/internal/catalog"
	"github.com/nerrad567/shopgate/internal/infrastructure/config"
	"github.com/nerrad567/shopgate/internal/infrastructure/database"
	"github.com/nerrad567/shopgate/internal/infrastructure/logging"
	"github.com/nerrad567/shopgate/internal/metrics"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// WebSocket defaults applied when the configuration leaves them unset.
const (
	defaultWSPingInterval   = 30 // seconds
	defaultWSPongTimeout    = 10 // seconds
	defaultWSMaxMessageSize = 8192
)

// Authenticator is the part of the authentication service the HTTP layer uses.
type Authenticator interface {
	Login(ctx context.Context, username, password string) (string, error)
	Register(ctx context.Context, username, password string) error
	ResolvePrincipal(token string) (*auth.Principal, error)
	TokenLifetime() time.Duration
}

// LoginLimiter throttles repeated failed logins.
type LoginLimiter interface {
	Check(ctx context.Context, username, ip string) error
	RecordFailure(ctx context.Context, username, ip string) error
	Reset(ctx context.Context, username string) error
	RetryAfter(ctx context.Context, username, ip string) time.Duration
}

// HealthChecker is implemented by every component the console reports on.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// MigrationReporter lists applied and pending schema migrations.
type MigrationReporter interface {
	GetMigrationStatus(ctx context.Context) (applied []database.MigrationRecord, pending []database.Migration, err error)
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config     config.APIConfig
	WS         config.WebSocketConfig
	Console    config.ConsoleConfig
	Logger     *logging.Logger
	Auth       Authenticator
	Policy     *auth.AccessPolicy // defaults to auth.DefaultAccessPolicy(Console.Enabled)
	Catalog    catalog.Repository
	Audit      *audit.Dispatcher // optional
	AuditLog   audit.Repository  // optional, backs /console/audit
	Throttle   LoginLimiter      // optional
	Metrics    *metrics.Collector
	Health     map[string]HealthChecker
	Migrations MigrationReporter
	Hub        *Hub // If set, the server uses this hub instead of creating its own
	Version    string
}

// Server is the HTTP API server for shopgate.
//
// It manages the HTTP listener, routes, middleware, and WebSocket hub.
// The server is created with New() and started with Start().
type Server struct {
	cfg         config.APIConfig
	wsCfg       config.WebSocketConfig
	consoleCfg  config.ConsoleConfig
	logger      *logging.Logger
	auth        Authenticator
	policy      *auth.AccessPolicy
	catalog     catalog.Repository
	audit       *audit.Dispatcher
	auditLog    audit.Repository
	throttle    LoginLimiter
	metrics     *metrics.Collector
	health      map[string]HealthChecker
	migrations  MigrationReporter
	version     string
	server      *http.Server
	hub         *Hub
	externalHub bool               // true if hub was injected externally
	cancel      context.CancelFunc // cancels background goroutines on Close()
}

// New creates a new API server with the given dependencies.
//
// The server is not started until Start() is called.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Auth == nil {
		return nil, fmt.Errorf("authentication service is required")
	}
	if deps.Catalog == nil {
		return nil, fmt.Errorf("catalog repository is required")
	}

	if deps.WS.PingInterval <= 0 {
		deps.WS.PingInterval = defaultWSPingInterval
	}
	if deps.WS.PongTimeout <= 0 {
		deps.WS.PongTimeout = defaultWSPongTimeout
	}
	if deps.WS.MaxMessageSize <= 0 {
		deps.WS.MaxMessageSize = defaultWSMaxMessageSize
	}

	policy := deps.Policy
	if policy == nil {
		policy = auth.DefaultAccessPolicy(deps.Console.Enabled)
	}

	s := &Server{
		cfg:        deps.Config,
		wsCfg:      deps.WS,
		consoleCfg: deps.Console,
		logger:     deps.Logger,
		auth:       deps.Auth,
		policy:     policy,
		catalog:    deps.Catalog,
		audit:      deps.Audit,
		auditLog:   deps.AuditLog,
		throttle:   deps.Throttle,
		metrics:    deps.Metrics,
		health:     deps.Health,
		migrations: deps.Migrations,
		version:    deps.Version,
	}

	// The hub is usually injected so it can also be registered as an audit sink.
	if deps.Hub != nil {
		s.hub = deps.Hub
		s.externalHub = true
	}

	return s, nil
}

// Start begins listening for HTTP connections.
//
// It sets up the router, starts the WebSocket hub when none was injected,
// and launches the HTTP listener in a background goroutine. The server can
// be stopped with Close().
func (s *Server) Start(ctx context.Context) error {
	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)

	if s.hub == nil {
		s.hub = NewHub(s.wsCfg, s.logger)
		go s.hub.Run(srvCtx)
	}

	if s.consoleCfg.Enabled {
		s.logger.Warn("development console is enabled; /console is reachable without authentication")
	}

	router := s.buildRouter()

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           router,
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	go func() {
		var err error
		if s.cfg.TLS.Enabled {
			s.logger.Info("API server starting with TLS",
				"address", s.server.Addr,
				"cert", s.cfg.TLS.CertFile,
			)
			err = s.server.ListenAndServeTLS(s.cfg.TLS.CertFile, s.cfg.TLS.KeyFile)
		} else {
			s.logger.Info("API server starting", "address", s.server.Addr)
			err = s.server.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// Close gracefully shuts down the API server.
//
// It waits up to 10 seconds for in-flight requests to complete,
// then forcefully closes remaining connections.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

	if s.cancel != nil {
		s.cancel()
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}

// HealthCheck verifies the API server is running and responsive.
func (s *Server) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("api health check: %w", ctx.Err())
	default:
	}

	if s.server == nil {
		return fmt.Errorf("api server not started")
	}

	return nil
}

// emit records an audit event when a dispatcher is configured.
func (s *Server) emit(action, username string, details map[string]any) {
	s.audit.Emit(action, username, details)
}
