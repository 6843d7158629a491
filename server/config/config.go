package config

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/sethvargo/go-envconfig"
)

// Config holds all application configuration
type Config struct {
	GatewayName     string          `env:"GATEWAY_NAME,default=menu-agents-gateway"`
	GatewayVersion  string          // Build-time metadata, not configurable via environment
	Debug           bool            `env:"DEBUG,default=false"`
	ServerConfig    ServerConfig    `env:",prefix=SERVER_"`
	AuthConfig      AuthConfig      `env:",prefix=AUTH_"`
	ThrottleConfig  ThrottleConfig  `env:",prefix=THROTTLE_"`
	StorageConfig   StorageConfig   `env:",prefix=STORAGE_"`
	FilesConfig     FilesConfig     `env:",prefix=FILES_"`
	TelemetryConfig TelemetryConfig `env:",prefix=TELEMETRY_"`
	ClientConfig    ClientConfig    `env:",prefix=CLIENT_"`
	NotifyConfig    NotifyConfig    `env:",prefix=NOTIFY_"`
}

// TLSConfig holds TLS configuration
type TLSConfig struct {
	Enable   bool   `env:"ENABLE,default=false"`
	CertPath string `env:"CERT_PATH" description:"TLS certificate path"`
	KeyPath  string `env:"KEY_PATH" description:"TLS key path"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port                  string        `env:"PORT,default=8080" description:"HTTP server port"`
	ReadTimeout           time.Duration `env:"READ_TIMEOUT,default=120s" description:"HTTP server read timeout"`
	WriteTimeout          time.Duration `env:"WRITE_TIMEOUT,default=120s" description:"HTTP server write timeout"`
	IdleTimeout           time.Duration `env:"IDLE_TIMEOUT,default=120s" description:"HTTP server idle timeout"`
	DisableHealthcheckLog bool          `env:"DISABLE_HEALTHCHECK_LOG,default=true" description:"Disable logging for health check requests"`
	TLSConfig             TLSConfig     `env:",prefix=TLS_"`
}

// AuthConfig holds inbound credential configuration
type AuthConfig struct {
	Enable       bool     `env:"ENABLE,default=true" description:"Require a credential on agent calls"`
	APIKeys      []string `env:"API_KEYS" description:"Comma separated list of accepted x-api-key values"`
	OIDCEnable   bool     `env:"OIDC_ENABLE,default=false" description:"Also accept OIDC bearer tokens"`
	IssuerURL    string   `env:"ISSUER_URL,default=http://keycloak:8080/realms/inference-gateway-realm"`
	ClientID     string   `env:"CLIENT_ID,default=inference-gateway-client"`
	ClientSecret string   `env:"CLIENT_SECRET"`
}

// ThrottleConfig limits calls per credential (0 disables a limit)
type ThrottleConfig struct {
	RPS int `env:"RPS,default=0" description:"Requests per second per credential"`
	RPM int `env:"RPM,default=0" description:"Requests per minute per credential"`
}

// StorageConfig selects the repository backing agent state
type StorageConfig struct {
	Provider    string            `env:"PROVIDER,default=memory" description:"Repository provider (memory, redis, postgres)"`
	URL         string            `env:"URL" description:"Connection URL for the repository backend"`
	KeyPrefix   string            `env:"KEY_PREFIX,default=menu-agents:" description:"Prefix applied to every stored key"`
	Credentials map[string]string `env:"CREDENTIALS" description:"Provider-specific credentials"`
	Options     map[string]string `env:"OPTIONS" description:"Provider-specific configuration options"`
}

// FilesConfig holds storage configuration for uploaded files
type FilesConfig struct {
	Provider   string `env:"PROVIDER,default=filesystem" description:"File store provider (filesystem, minio)"`
	BasePath   string `env:"BASE_PATH,default=./uploads" description:"Base path for filesystem storage"`
	BaseURL    string `env:"BASE_URL,default=http://localhost:8080" description:"Base URL used to build file links"`
	Endpoint   string `env:"ENDPOINT" description:"Storage endpoint (MinIO, S3)"`
	AccessKey  string `env:"ACCESS_KEY" description:"Storage access key"`
	SecretKey  string `env:"SECRET_KEY" description:"Storage secret key"`
	BucketName string `env:"BUCKET_NAME,default=menu-uploads" description:"Storage bucket name"`
	UseSSL     bool   `env:"USE_SSL,default=true" description:"Use SSL for storage connections"`
	MaxSize    int64  `env:"MAX_SIZE,default=5242880" description:"Maximum decoded upload size in bytes"`
}

// MetricsConfig holds metrics server configuration
type MetricsConfig struct {
	Port         string        `env:"PORT,default=9090" description:"Metrics server port"`
	Host         string        `env:"HOST,default=" description:"Metrics server host (empty for all interfaces)"`
	ReadTimeout  time.Duration `env:"READ_TIMEOUT,default=30s" description:"Metrics server read timeout"`
	WriteTimeout time.Duration `env:"WRITE_TIMEOUT,default=30s" description:"Metrics server write timeout"`
	IdleTimeout  time.Duration `env:"IDLE_TIMEOUT,default=60s" description:"Metrics server idle timeout"`
}

// TelemetryConfig holds telemetry configuration
type TelemetryConfig struct {
	Enable        bool          `env:"ENABLE,default=false" description:"Enable telemetry collection"`
	MetricsConfig MetricsConfig `env:",prefix=METRICS_"`
}

// ClientConfig configures the outbound dispatcher
type ClientConfig struct {
	GatewayURL   string        `env:"GATEWAY_URL,default=http://localhost:8080" description:"Base URL agent addresses are resolved against"`
	APIKey       string        `env:"API_KEY" description:"Process-wide credential used when a call supplies none"`
	Timeout      time.Duration `env:"TIMEOUT,default=30s" description:"Transport timeout for agent calls"`
	ResolverFile string        `env:"RESOLVER_FILE" description:"YAML file mapping agent addresses to endpoints"`
}

// NotifyConfig configures delivery of subscription events
type NotifyConfig struct {
	WebhookURL string        `env:"WEBHOOK_URL" description:"Fallback webhook for subscription events"`
	Timeout    time.Duration `env:"TIMEOUT,default=10s" description:"Webhook delivery timeout"`
}

// Load loads configuration from environment variables, merging with the provided base config.
func Load(ctx context.Context, baseConfig *Config) (*Config, error) {
	return LoadWithLookuper(ctx, baseConfig, envconfig.OsLookuper())
}

// LoadWithLookuper creates and loads configuration using a custom lookuper and merges with user config
func LoadWithLookuper(ctx context.Context, baseConfig *Config, lookuper envconfig.Lookuper) (*Config, error) {
	var cfg Config

	if baseConfig != nil {
		cfg = *baseConfig
	}

	err := envconfig.ProcessWith(ctx, &envconfig.Config{
		Target:   &cfg,
		Lookuper: lookuper,
	})
	if err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// NewWithDefaults creates a new config with defaults applied from struct tags.
func NewWithDefaults(ctx context.Context, baseConfig *Config) (*Config, error) {
	return LoadWithLookuper(ctx, baseConfig, &emptyLookuper{})
}

// emptyLookuper ensures that only default values from struct tags are used
type emptyLookuper struct{}

func (e *emptyLookuper) Lookup(key string) (string, bool) {
	return "", false
}

// Validate validates the configuration and applies corrections for invalid values
func (c *Config) Validate() error {
	if c.ThrottleConfig.RPS < 0 {
		c.ThrottleConfig.RPS = 0
	}
	if c.ThrottleConfig.RPM < 0 {
		c.ThrottleConfig.RPM = 0
	}

	switch c.StorageConfig.Provider {
	case "memory", "redis", "postgres":
	default:
		return fmt.Errorf("unsupported storage provider '%s'", c.StorageConfig.Provider)
	}

	switch c.FilesConfig.Provider {
	case "filesystem", "minio":
	default:
		return fmt.Errorf("unsupported files provider '%s'", c.FilesConfig.Provider)
	}

	if c.ClientConfig.GatewayURL != "" {
		if _, err := url.ParseRequestURI(c.ClientConfig.GatewayURL); err != nil {
			return fmt.Errorf("invalid client gateway url '%s': %w", c.ClientConfig.GatewayURL, err)
		}
	}

	return nil
}
