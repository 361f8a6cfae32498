package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for shopgate.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Database    DatabaseConfig    `yaml:"database"`
	Credentials CredentialsConfig `yaml:"credentials"`
	API         APIConfig         `yaml:"api"`
	Console     ConsoleConfig     `yaml:"console"`
	WebSocket   WebSocketConfig   `yaml:"websocket"`
	Metrics     MetricsConfig     `yaml:"metrics"`
	MQTT        MQTTConfig        `yaml:"mqtt"`
	InfluxDB    InfluxDBConfig    `yaml:"influxdb"`
	Redis       RedisConfig       `yaml:"redis"`
	Logging     LoggingConfig     `yaml:"logging"`
	Security    SecurityConfig    `yaml:"security"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// Credential store backends.
const (
	CredentialBackendSQLite   = "sqlite"
	CredentialBackendPostgres = "postgres"
)

// CredentialsConfig selects where user credentials live.
// The catalog and audit trail always use the SQLite database.
type CredentialsConfig struct {
	Backend     string `yaml:"backend"`
	PostgresDSN string `yaml:"postgres_dsn"`
}

// APIConfig contains HTTP API server settings.
type APIConfig struct {
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	TLS      TLSConfig        `yaml:"tls"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
	CORS     CORSConfig       `yaml:"cors"`
}

// TLSConfig contains TLS certificate settings.
type TLSConfig struct {
	Enabled  bool   `yaml:"enabled"`
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

// APITimeoutConfig contains HTTP timeout settings in seconds.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// CORSConfig contains Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
	AllowedMethods []string `yaml:"allowed_methods"`
	AllowedHeaders []string `yaml:"allowed_headers"`
}

// ConsoleConfig controls the development console under /console.
// It is unauthenticated while enabled and must stay off in production.
type ConsoleConfig struct {
	Enabled bool `yaml:"enabled"`
}

// WebSocketConfig contains settings for the admin event feed.
type WebSocketConfig struct {
	MaxMessageSize int `yaml:"max_message_size"`
	PingInterval   int `yaml:"ping_interval"`
	PongTimeout    int `yaml:"pong_timeout"`
}

// MetricsConfig contains the Prometheus listener settings.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Host    string `yaml:"host"`
	Port    int    `yaml:"port"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Enabled     bool                `yaml:"enabled"`
	Broker      MQTTBrokerConfig    `yaml:"broker"`
	Auth        MQTTAuthConfig      `yaml:"auth"`
	QoS         int                 `yaml:"qos"`
	TopicPrefix string              `yaml:"topic_prefix"`
	Reconnect   MQTTReconnectConfig `yaml:"reconnect"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains MQTT reconnection settings.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
}

// InfluxDBConfig contains InfluxDB connection settings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// RedisConfig contains the Redis connection used by the login throttle.
type RedisConfig struct {
	URL string `yaml:"url"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// SecurityConfig contains security settings.
type SecurityConfig struct {
	JWT           JWTConfig           `yaml:"jwt"`
	Password      PasswordConfig      `yaml:"password"`
	Bootstrap     BootstrapConfig     `yaml:"bootstrap"`
	LoginThrottle LoginThrottleConfig `yaml:"login_throttle"`
}

// JWTConfig contains JWT token settings.
type JWTConfig struct {
	Secret string `yaml:"secret"`
	// TokenLifetime is the access token lifetime in minutes.
	TokenLifetime int `yaml:"token_lifetime"`
}

// Password hashing algorithms.
const (
	PasswordAlgorithmArgon2id = "argon2id"
	PasswordAlgorithmBcrypt   = "bcrypt"
)

// PasswordConfig selects the algorithm used for new password hashes.
type PasswordConfig struct {
	Algorithm  string `yaml:"algorithm"`
	BcryptCost int    `yaml:"bcrypt_cost"`
}

// BootstrapConfig controls the admin account created on an empty credential store.
type BootstrapConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// LoginThrottleConfig contains the Redis-backed failed-login limiter settings.
type LoginThrottleConfig struct {
	Enabled     bool `yaml:"enabled"`
	MaxAttempts int  `yaml:"max_attempts"`
	// Window is the counting window in seconds.
	Window int `yaml:"window"`
}

// Bcrypt cost bounds accepted by golang.org/x/crypto/bcrypt.
const (
	minBcryptCost = 4
	maxBcryptCost = 31
)

// minJWTSecretLength is the shortest HMAC secret accepted.
const minJWTSecretLength = 32

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: SHOPGATE_SECTION_KEY
// For example: SHOPGATE_DATABASE_PATH, SHOPGATE_JWT_SECRET
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Path:        "./data/shopgate.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		Credentials: CredentialsConfig{
			Backend: CredentialBackendSQLite,
		},
		API: APIConfig{
			Host: "0.0.0.0",
			Port: 8080,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
		},
		WebSocket: WebSocketConfig{
			MaxMessageSize: 8192,
			PingInterval:   30,
			PongTimeout:    10,
		},
		Metrics: MetricsConfig{
			Host: "127.0.0.1",
			Port: 9090,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "shopgate",
			},
			QoS:         1,
			TopicPrefix: "shopgate",
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Security: SecurityConfig{
			JWT: JWTConfig{
				TokenLifetime: 60,
			},
			Password: PasswordConfig{
				Algorithm:  PasswordAlgorithmArgon2id,
				BcryptCost: 12,
			},
			Bootstrap: BootstrapConfig{
				Enabled:  true,
				Username: "admin",
			},
			LoginThrottle: LoginThrottleConfig{
				MaxAttempts: 5,
				Window:      300,
			},
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: SHOPGATE_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("SHOPGATE_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	if v := os.Getenv("SHOPGATE_CREDENTIALS_BACKEND"); v != "" {
		cfg.Credentials.Backend = v
	}
	if v := os.Getenv("SHOPGATE_POSTGRES_DSN"); v != "" {
		cfg.Credentials.PostgresDSN = v
	}

	if v := os.Getenv("SHOPGATE_API_HOST"); v != "" {
		cfg.API.Host = v
	}
	if v := os.Getenv("SHOPGATE_API_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.API.Port = port
		}
	}

	if v := os.Getenv("SHOPGATE_CONSOLE_ENABLED"); v != "" {
		cfg.Console.Enabled = parseBool(v)
	}

	if v := os.Getenv("SHOPGATE_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("SHOPGATE_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("SHOPGATE_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	if v := os.Getenv("SHOPGATE_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	if v := os.Getenv("SHOPGATE_REDIS_URL"); v != "" {
		cfg.Redis.URL = v
	}

	// Always override the secret in production.
	if v := os.Getenv("SHOPGATE_JWT_SECRET"); v != "" {
		cfg.Security.JWT.Secret = v
	}
	if v := os.Getenv("SHOPGATE_BOOTSTRAP_PASSWORD"); v != "" {
		cfg.Security.Bootstrap.Password = v
	}
}

// parseBool accepts the usual truthy spellings; anything else is false.
func parseBool(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}

// Validate checks the configuration for errors and security issues.
// All problems are reported together.
func (c *Config) Validate() error {
	var errs []string

	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}

	switch c.Credentials.Backend {
	case CredentialBackendSQLite:
	case CredentialBackendPostgres:
		if c.Credentials.PostgresDSN == "" {
			errs = append(errs, "credentials.postgres_dsn is required when credentials.backend is postgres")
		}
	default:
		errs = append(errs, fmt.Sprintf("credentials.backend %q is not supported (use sqlite or postgres)", c.Credentials.Backend))
	}

	if c.API.Port < 1 || c.API.Port > 65535 {
		errs = append(errs, "api.port must be between 1 and 65535")
	}
	if c.API.TLS.Enabled && (c.API.TLS.CertFile == "" || c.API.TLS.KeyFile == "") {
		errs = append(errs, "api.tls.cert_file and api.tls.key_file are required when TLS is enabled")
	}

	if c.Metrics.Enabled && (c.Metrics.Port < 1 || c.Metrics.Port > 65535) {
		errs = append(errs, "metrics.port must be between 1 and 65535")
	}

	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}

	if c.InfluxDB.Enabled && c.InfluxDB.URL == "" {
		errs = append(errs, "influxdb.url is required when influxdb is enabled")
	}

	// A weak secret lets anyone forge tokens with arbitrary roles.
	if c.Security.JWT.Secret == "" {
		errs = append(errs, "security.jwt.secret is required (set SHOPGATE_JWT_SECRET environment variable)")
	} else if len(c.Security.JWT.Secret) < minJWTSecretLength {
		errs = append(errs, "security.jwt.secret must be at least 32 characters for adequate security")
	}
	if c.Security.JWT.TokenLifetime <= 0 {
		errs = append(errs, "security.jwt.token_lifetime must be positive")
	}

	switch c.Security.Password.Algorithm {
	case PasswordAlgorithmArgon2id:
	case PasswordAlgorithmBcrypt:
		if c.Security.Password.BcryptCost < minBcryptCost || c.Security.Password.BcryptCost > maxBcryptCost {
			errs = append(errs, "security.password.bcrypt_cost must be between 4 and 31")
		}
	default:
		errs = append(errs, fmt.Sprintf("security.password.algorithm %q is not supported (use argon2id or bcrypt)", c.Security.Password.Algorithm))
	}

	if c.Security.Bootstrap.Enabled && c.Security.Bootstrap.Username == "" {
		errs = append(errs, "security.bootstrap.username is required when bootstrap is enabled")
	}

	if c.Security.LoginThrottle.Enabled {
		if c.Redis.URL == "" {
			errs = append(errs, "redis.url is required when security.login_throttle is enabled")
		}
		if c.Security.LoginThrottle.MaxAttempts <= 0 {
			errs = append(errs, "security.login_throttle.max_attempts must be positive")
		}
		if c.Security.LoginThrottle.Window <= 0 {
			errs = append(errs, "security.login_throttle.window must be positive")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// GetReadTimeout returns the API read timeout as a Duration.
func (c *Config) GetReadTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Read) * time.Second
}

// GetWriteTimeout returns the API write timeout as a Duration.
func (c *Config) GetWriteTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Write) * time.Second
}

// GetIdleTimeout returns the API idle timeout as a Duration.
func (c *Config) GetIdleTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Idle) * time.Second
}

// GetTokenLifetime returns the access token lifetime as a Duration.
func (c *Config) GetTokenLifetime() time.Duration {
	return time.Duration(c.Security.JWT.TokenLifetime) * time.Minute
}

// GetThrottleWindow returns the login throttle window as a Duration.
func (c *Config) GetThrottleWindow() time.Duration {
	return time.Duration(c.Security.LoginThrottle.Window) * time.Second
}
