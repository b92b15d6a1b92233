package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	App         AppConfig
	Database    DatabaseConfig
	Redis       RedisConfig
	JWT         JWTConfig
	Log         LogConfig
	HTTP        HTTPConfig
	Vault       VaultConfig
	Marketplace MarketplaceConfig
	Webhook     WebhookConfig
	Sync        SyncConfig
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, console
	Output string // stdout, stderr, or file path
}

// AppConfig holds application-specific settings
type AppConfig struct {
	Name string
	Env  string
	Port string
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	DBName          string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime int // in minutes
	ConnMaxIdleTime int // in minutes
}

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// JWTConfig holds JWT settings
type JWTConfig struct {
	Secret                 string
	AccessTokenExpiration  time.Duration
	RefreshTokenExpiration time.Duration
	Issuer                 string
	RefreshSecret          string
	MaxRefreshCount        int
	ExpirationHours        int // Deprecated: use AccessTokenExpiration instead
}

// HTTPConfig holds HTTP server configuration
type HTTPConfig struct {
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	MaxHeaderBytes    int
	MaxBodySize       int64
	RateLimitEnabled  bool
	RateLimitRequests int
	RateLimitWindow   time.Duration
	CORSAllowOrigins  []string
	CORSAllowMethods  []string
	CORSAllowHeaders  []string
	TrustedProxies    []string
}

// VaultConfig holds credential vault settings
type VaultConfig struct {
	// EncryptionKey is the hex-encoded 256-bit master key used to encrypt
	// stored marketplace secrets field by field
	EncryptionKey string
}

// MarketplaceConfig holds settings for outbound marketplace calls
type MarketplaceConfig struct {
	// RequestTimeout bounds one HTTP round trip to a provider
	RequestTimeout time.Duration
}

// WebhookConfig holds webhook receiver and maintenance settings
type WebhookConfig struct {
	// CallbackBaseURL is the public base URL providers deliver webhooks to
	CallbackBaseURL string
	// MaxBodySize bounds one webhook delivery body in bytes
	MaxBodySize int64
	// SweepInterval is how often the maintenance sweep runs
	SweepInterval time.Duration
	// RegistrationStaleAfter is how old a verified registration may get
	// before it is re-registered with the provider
	RegistrationStaleAfter time.Duration
	// RetryBatchSize bounds how many stuck notifications one sweep retries
	RetryBatchSize int
}

// SyncConfig holds order poll scheduler settings
type SyncConfig struct {
	Enabled           bool
	PollInterval      time.Duration
	MinPollInterval   time.Duration
	MaxPollInterval   time.Duration
	CheckInterval     time.Duration
	MaxConcurrentJobs int
	JobTimeout        time.Duration
	RetryAttempts     int
	RetryDelay        time.Duration
	Lookback          time.Duration
	FirstPollLookback time.Duration
}

// Load loads configuration from TOML file and environment variables
// Priority (highest to lowest):
// 1. Environment variables with BRICKSYNC_ prefix (e.g., BRICKSYNC_DATABASE_PASSWORD)
// 2. config.toml
// 3. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()

	// Set config file settings
	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	v.AddConfigPath("./backend")
	v.AddConfigPath("/app")

	// Read config file
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found is OK, we'll use defaults and env vars
	}

	// Enable environment variable override
	v.SetEnvPrefix("BRICKSYNC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Build config struct
	cfg := &Config{
		App: AppConfig{
			Name: v.GetString("app.name"),
			Env:  v.GetString("app.env"),
			Port: v.GetString("app.port"),
		},
		Database: DatabaseConfig{
			Host:            v.GetString("database.host"),
			Port:            v.GetInt("database.port"),
			User:            v.GetString("database.user"),
			Password:        v.GetString("database.password"),
			DBName:          v.GetString("database.dbname"),
			SSLMode:         v.GetString("database.sslmode"),
			MaxOpenConns:    v.GetInt("database.max_open_conns"),
			MaxIdleConns:    v.GetInt("database.max_idle_conns"),
			ConnMaxLifetime: v.GetInt("database.conn_max_lifetime"),
			ConnMaxIdleTime: v.GetInt("database.conn_max_idle_time"),
		},
		Redis: RedisConfig{
			Host:     v.GetString("redis.host"),
			Port:     v.GetInt("redis.port"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		JWT: JWTConfig{
			Secret:                 v.GetString("jwt.secret"),
			AccessTokenExpiration:  v.GetDuration("jwt.access_token_expiration"),
			RefreshTokenExpiration: v.GetDuration("jwt.refresh_token_expiration"),
			Issuer:                 v.GetString("jwt.issuer"),
			RefreshSecret:          v.GetString("jwt.refresh_secret"),
			MaxRefreshCount:        v.GetInt("jwt.max_refresh_count"),
			ExpirationHours:        v.GetInt("jwt.expiration_hours"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
		HTTP: HTTPConfig{
			ReadTimeout:       v.GetDuration("http.read_timeout"),
			WriteTimeout:      v.GetDuration("http.write_timeout"),
			IdleTimeout:       v.GetDuration("http.idle_timeout"),
			MaxHeaderBytes:    v.GetInt("http.max_header_bytes"),
			MaxBodySize:       v.GetInt64("http.max_body_size"),
			RateLimitEnabled:  v.GetBool("http.rate_limit_enabled"),
			RateLimitRequests: v.GetInt("http.rate_limit_requests"),
			RateLimitWindow:   v.GetDuration("http.rate_limit_window"),
			CORSAllowOrigins:  v.GetStringSlice("http.cors_allow_origins"),
			CORSAllowMethods:  v.GetStringSlice("http.cors_allow_methods"),
			CORSAllowHeaders:  v.GetStringSlice("http.cors_allow_headers"),
			TrustedProxies:    v.GetStringSlice("http.trusted_proxies"),
		},
		Vault: VaultConfig{
			EncryptionKey: v.GetString("vault.encryption_key"),
		},
		Marketplace: MarketplaceConfig{
			RequestTimeout: v.GetDuration("marketplace.request_timeout"),
		},
		Webhook: WebhookConfig{
			CallbackBaseURL:        v.GetString("webhook.callback_base_url"),
			MaxBodySize:            v.GetInt64("webhook.max_body_size"),
			SweepInterval:          v.GetDuration("webhook.sweep_interval"),
			RegistrationStaleAfter: v.GetDuration("webhook.registration_stale_after"),
			RetryBatchSize:         v.GetInt("webhook.retry_batch_size"),
		},
		Sync: SyncConfig{
			Enabled:           v.GetBool("sync.enabled"),
			PollInterval:      v.GetDuration("sync.poll_interval"),
			MinPollInterval:   v.GetDuration("sync.min_poll_interval"),
			MaxPollInterval:   v.GetDuration("sync.max_poll_interval"),
			CheckInterval:     v.GetDuration("sync.check_interval"),
			MaxConcurrentJobs: v.GetInt("sync.max_concurrent_jobs"),
			JobTimeout:        v.GetDuration("sync.job_timeout"),
			RetryAttempts:     v.GetInt("sync.retry_attempts"),
			RetryDelay:        v.GetDuration("sync.retry_delay"),
			Lookback:          v.GetDuration("sync.lookback"),
			FirstPollLookback: v.GetDuration("sync.first_poll_lookback"),
		},
	}

	// Apply defaults for empty values
	applyDefaults(cfg)

	// Validate configuration
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// applyDefaults sets default values for any empty config fields
func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "bricksync-backend"
	}
	if cfg.App.Env == "" {
		cfg.App.Env = "development"
	}
	if cfg.App.Port == "" {
		cfg.App.Port = "8080"
	}
	if cfg.Database.Host == "" {
		cfg.Database.Host = "localhost"
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.Database.User == "" {
		cfg.Database.User = "postgres"
	}
	if cfg.Database.DBName == "" {
		cfg.Database.DBName = "bricksync"
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 25
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 5
	}
	if cfg.Database.ConnMaxLifetime == 0 {
		cfg.Database.ConnMaxLifetime = 60
	}
	if cfg.Database.ConnMaxIdleTime == 0 {
		cfg.Database.ConnMaxIdleTime = 30
	}
	if cfg.Redis.Host == "" {
		cfg.Redis.Host = "localhost"
	}
	if cfg.Redis.Port == 0 {
		cfg.Redis.Port = 6379
	}
	if cfg.JWT.AccessTokenExpiration == 0 {
		cfg.JWT.AccessTokenExpiration = 15 * time.Minute
	}
	if cfg.JWT.RefreshTokenExpiration == 0 {
		cfg.JWT.RefreshTokenExpiration = 168 * time.Hour
	}
	if cfg.JWT.Issuer == "" {
		cfg.JWT.Issuer = "bricksync-backend"
	}
	if cfg.JWT.MaxRefreshCount == 0 {
		cfg.JWT.MaxRefreshCount = 10
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "console"
	}
	if cfg.Log.Output == "" {
		cfg.Log.Output = "stdout"
	}
	if cfg.HTTP.ReadTimeout == 0 {
		cfg.HTTP.ReadTimeout = 15 * time.Second
	}
	if cfg.HTTP.WriteTimeout == 0 {
		cfg.HTTP.WriteTimeout = 15 * time.Second
	}
	if cfg.HTTP.IdleTimeout == 0 {
		cfg.HTTP.IdleTimeout = 60 * time.Second
	}
	if cfg.HTTP.MaxHeaderBytes == 0 {
		cfg.HTTP.MaxHeaderBytes = 1 << 20 // 1MB
	}
	if cfg.HTTP.MaxBodySize == 0 {
		cfg.HTTP.MaxBodySize = 10 << 20 // 10MB
	}
	if cfg.HTTP.RateLimitRequests == 0 {
		cfg.HTTP.RateLimitRequests = 100
	}
	if cfg.HTTP.RateLimitWindow == 0 {
		cfg.HTTP.RateLimitWindow = time.Minute
	}
	// NOTE: CORS origins are intentionally not given a default fallback to "*".
	// An empty list means no cross-origin requests are allowed until explicitly configured.
	if len(cfg.HTTP.CORSAllowMethods) == 0 {
		cfg.HTTP.CORSAllowMethods = []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"}
	}
	if len(cfg.HTTP.CORSAllowHeaders) == 0 {
		cfg.HTTP.CORSAllowHeaders = []string{"Content-Type", "Authorization", "X-Request-ID", "X-Tenant-ID"}
	}
	if cfg.Marketplace.RequestTimeout == 0 {
		cfg.Marketplace.RequestTimeout = 30 * time.Second
	}
	if cfg.Webhook.MaxBodySize == 0 {
		cfg.Webhook.MaxBodySize = 64 << 10 // 64KB
	}
	if cfg.Webhook.SweepInterval == 0 {
		cfg.Webhook.SweepInterval = 10 * time.Minute
	}
	if cfg.Webhook.RegistrationStaleAfter == 0 {
		cfg.Webhook.RegistrationStaleAfter = 24 * time.Hour
	}
	if cfg.Webhook.RetryBatchSize == 0 {
		cfg.Webhook.RetryBatchSize = 50
	}
	if cfg.Sync.PollInterval == 0 {
		cfg.Sync.PollInterval = 15 * time.Minute
	}
	if cfg.Sync.MinPollInterval == 0 {
		cfg.Sync.MinPollInterval = 5 * time.Minute
	}
	if cfg.Sync.MaxPollInterval == 0 {
		cfg.Sync.MaxPollInterval = 60 * time.Minute
	}
	if cfg.Sync.CheckInterval == 0 {
		cfg.Sync.CheckInterval = time.Minute
	}
	if cfg.Sync.MaxConcurrentJobs == 0 {
		cfg.Sync.MaxConcurrentJobs = 5
	}
	if cfg.Sync.JobTimeout == 0 {
		cfg.Sync.JobTimeout = 10 * time.Minute
	}
	if cfg.Sync.RetryAttempts == 0 {
		cfg.Sync.RetryAttempts = 3
	}
	if cfg.Sync.RetryDelay == 0 {
		cfg.Sync.RetryDelay = time.Minute
	}
	if cfg.Sync.Lookback == 0 {
		cfg.Sync.Lookback = 5 * time.Minute
	}
	if cfg.Sync.FirstPollLookback == 0 {
		cfg.Sync.FirstPollLookback = 24 * time.Hour
	}
}

// validate performs validation on the configuration
func (c *Config) validate() error {
	// Validate connection pool settings
	if c.Database.MaxOpenConns <= 0 {
		return fmt.Errorf("database.max_open_conns must be positive")
	}
	if c.Database.MaxIdleConns < 0 {
		return fmt.Errorf("database.max_idle_conns cannot be negative")
	}
	if c.Database.MaxIdleConns > c.Database.MaxOpenConns {
		return fmt.Errorf("database.max_idle_conns (%d) cannot exceed database.max_open_conns (%d)",
			c.Database.MaxIdleConns, c.Database.MaxOpenConns)
	}

	// The vault cannot run without a master key
	if c.Vault.EncryptionKey == "" {
		return fmt.Errorf("vault.encryption_key is required")
	}
	if len(c.Vault.EncryptionKey) != 64 {
		return fmt.Errorf("vault.encryption_key must be 64 hex characters (256 bits)")
	}

	if c.Sync.MaxPollInterval < c.Sync.MinPollInterval {
		return fmt.Errorf("sync.max_poll_interval (%s) cannot be below sync.min_poll_interval (%s)",
			c.Sync.MaxPollInterval, c.Sync.MinPollInterval)
	}

	// Production-specific validations
	if c.App.Env == "production" {
		if c.JWT.Secret == "" {
			return fmt.Errorf("jwt.secret is required in production")
		}
		if len(c.JWT.Secret) < 32 {
			return fmt.Errorf("jwt.secret must be at least 32 characters in production")
		}
		if c.Database.Password == "" {
			return fmt.Errorf("database.password is required in production")
		}
		if c.Database.SSLMode == "disable" {
			return fmt.Errorf("database.sslmode cannot be 'disable' in production")
		}
		// CORS must not use wildcard with credentials
		for _, origin := range c.HTTP.CORSAllowOrigins {
			if origin == "*" {
				return fmt.Errorf("cors_allow_origins cannot be '*' in production (use specific origins)")
			}
		}
		// Providers only deliver webhooks over HTTPS
		if c.Webhook.CallbackBaseURL == "" {
			return fmt.Errorf("webhook.callback_base_url is required in production")
		}
		if !strings.HasPrefix(c.Webhook.CallbackBaseURL, "https://") {
			return fmt.Errorf("webhook.callback_base_url must be an https URL in production")
		}
	}

	return nil
}

// DSN returns the database connection string with properly escaped values
func (d *DatabaseConfig) DSN() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(d.User, d.Password),
		Host:   fmt.Sprintf("%s:%d", d.Host, d.Port),
		Path:   d.DBName,
	}
	q := u.Query()
	q.Set("sslmode", d.SSLMode)
	u.RawQuery = q.Encode()
	return u.String()
}
