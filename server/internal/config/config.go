package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Default values for the relay configuration.
const (
	DefaultHTTPPort        = 8080
	DefaultPath            = "/api/v1/alerts"
	DefaultMaxBodyBytes    = 1 << 20
	DefaultReadTimeout     = 15 * time.Second
	DefaultWriteTimeout    = 30 * time.Second
	DefaultShutdownTimeout = 10 * time.Second
	DefaultWebhookTimeout  = 10 * time.Second
	DefaultWebhookURLEnv   = "ALERTRELAY_WEBHOOK_URL"
	DefaultKeyEnv          = "ALERTRELAY_FUNCTION_KEY"
	DefaultKeyHeader       = "x-functions-key"
)

// Routes registered by the server alongside the alert endpoint.
const (
	HealthPath  = "/healthz"
	MetricsPath = "/metrics"
)

// Webhook body formats.
const (
	FormatText    = "text"
	FormatTeams   = "teams"
	FormatDiscord = "discord"
)

// Config holds the relay configuration parsed from config.yaml.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Auth    AuthConfig    `yaml:"auth"`
	Webhook WebhookConfig `yaml:"webhook"`
	Metrics MetricsConfig `yaml:"metrics"`
	Log     LogConfig     `yaml:"log"`
}

// ServerConfig holds the inbound HTTP listener settings.
type ServerConfig struct {
	// HTTPPort is the port the alert endpoint listens on (default 8080).
	HTTPPort int `yaml:"http_port"`

	// Path is the route that accepts alert POSTs (default /api/v1/alerts).
	Path string `yaml:"path"`

	// MaxBodyBytes caps the size of an inbound alert body (default 1 MiB).
	MaxBodyBytes int64 `yaml:"max_body_bytes"`

	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// AuthConfig controls the static function key on the alert endpoint.
type AuthConfig struct {
	// Mode is one of: apikey | none.
	Mode string `yaml:"mode"`

	// KeyEnv is the name of the environment variable that holds the expected key.
	KeyEnv string `yaml:"key_env"`

	// Header is the HTTP header to read the key from.
	// Defaults to "x-functions-key" if empty. The "code" query
	// parameter is always accepted as well.
	Header string `yaml:"header"`
}

// Key returns the expected function key resolved from the environment.
func (a AuthConfig) Key() string {
	return lookupEnv(a.KeyEnv)
}

// EffectiveHeader returns the configured header name, or the default "x-functions-key".
func (a AuthConfig) EffectiveHeader() string {
	if a.Header != "" {
		return a.Header
	}
	return DefaultKeyHeader
}

// WebhookConfig describes the single downstream chat webhook.
type WebhookConfig struct {
	// URLEnv is the name of the environment variable that holds the webhook URL.
	URLEnv string `yaml:"url_env"`

	// Format is one of: text | teams | discord.
	Format string `yaml:"format"`

	// Timeout bounds one delivery attempt (default 10s).
	Timeout time.Duration `yaml:"timeout"`

	// Auth configures how the relay authenticates to the webhook. Most chat
	// webhooks embed their secret in the URL and need none.
	Auth OutboundAuthConfig `yaml:"auth"`

	// TLS holds optional TLS dial options for the webhook connection.
	TLS TLSConfig `yaml:"tls"`
}

// OutboundAuthConfig specifies the authentication mode for webhook requests.
type OutboundAuthConfig struct {
	// Mode is one of: mtls | apikey | bearer | basic | none.
	Mode string `yaml:"mode"`

	// mTLS fields, used when Mode == "mtls".
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`

	// API key fields, used when Mode == "apikey".
	// Header is the HTTP header name to send the key in.
	Header string `yaml:"header"`
	// KeyEnv is the name of the environment variable that holds the key value.
	KeyEnv string `yaml:"key_env"`

	// TokenEnv names the environment variable holding the bearer token.
	TokenEnv string `yaml:"token_env"`

	// Basic auth fields, used when Mode == "basic".
	Username    string `yaml:"username"`
	PasswordEnv string `yaml:"password_env"`
}

// Key returns the API key value resolved from the environment.
func (a OutboundAuthConfig) Key() string {
	return lookupEnv(a.KeyEnv)
}

// Token returns the bearer token value resolved from the environment.
func (a OutboundAuthConfig) Token() string {
	return lookupEnv(a.TokenEnv)
}

// Password returns the basic-auth password resolved from the environment.
func (a OutboundAuthConfig) Password() string {
	return lookupEnv(a.PasswordEnv)
}

// TLSConfig holds TLS dial options for the webhook.
type TLSConfig struct {
	// CAFile is a PEM bundle used instead of the system roots.
	CAFile string `yaml:"ca_file"`

	// InsecureSkipVerify disables TLS certificate verification.
	// Only use this for internal CAs in development environments.
	InsecureSkipVerify bool `yaml:"insecure_skip_verify"`
}

func lookupEnv(name string) string {
	if name == "" {
		return ""
	}
	return os.Getenv(name)
}

// URL returns the webhook URL resolved from the environment.
func (w WebhookConfig) URL() string {
	if w.URLEnv == "" {
		return ""
	}
	return strings.TrimSpace(os.Getenv(w.URLEnv))
}

// EffectiveFormat returns the configured body format, or "text".
func (w WebhookConfig) EffectiveFormat() string {
	if w.Format != "" {
		return w.Format
	}
	return FormatText
}

// MetricsConfig toggles the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
}

// LogConfig selects the slog level and handler.
type LogConfig struct {
	// Level is one of: debug | info | warn | error.
	Level string `yaml:"level"`

	// Format is one of: json | text.
	Format string `yaml:"format"`
}

// Load reads and parses the config file at path.
// Missing fields are filled with defaults before validation.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("server config: read %q: %w", path, err)
	}
	return parse(data)
}

// parse decodes data over the defaults and validates the result.
func parse(data []byte) (*Config, error) {
	cfg := defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("server config: parse yaml: %w", err)
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("server config: %w", err)
	}

	return cfg, nil
}

// Default returns the configuration used when no config file is present.
func Default() *Config {
	return defaults()
}

// defaults returns a Config pre-populated with default values.
func defaults() *Config {
	return &Config{
		Server: ServerConfig{
			HTTPPort:        DefaultHTTPPort,
			Path:            DefaultPath,
			MaxBodyBytes:    DefaultMaxBodyBytes,
			ReadTimeout:     DefaultReadTimeout,
			WriteTimeout:    DefaultWriteTimeout,
			ShutdownTimeout: DefaultShutdownTimeout,
		},
		Auth: AuthConfig{
			Mode:   "none",
			KeyEnv: DefaultKeyEnv,
		},
		Webhook: WebhookConfig{
			URLEnv:  DefaultWebhookURLEnv,
			Format:  FormatText,
			Timeout: DefaultWebhookTimeout,
		},
		Metrics: MetricsConfig{Enabled: true},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// validate checks structural constraints on the parsed configuration.
func validate(cfg *Config) error {
	if cfg.Server.HTTPPort <= 0 || cfg.Server.HTTPPort > 65535 {
		return fmt.Errorf("server.http_port %d is out of range [1, 65535]", cfg.Server.HTTPPort)
	}
	if !strings.HasPrefix(cfg.Server.Path, "/") {
		return fmt.Errorf("server.path %q must start with /", cfg.Server.Path)
	}
	if strings.ContainsAny(cfg.Server.Path, " \t{}") {
		return fmt.Errorf("server.path %q must not contain whitespace or braces", cfg.Server.Path)
	}
	if cfg.Server.Path == HealthPath || (cfg.Metrics.Enabled && cfg.Server.Path == MetricsPath) {
		return fmt.Errorf("server.path %q is reserved", cfg.Server.Path)
	}
	if cfg.Server.MaxBodyBytes <= 0 {
		return fmt.Errorf("server.max_body_bytes must be positive")
	}
	if cfg.Server.ReadTimeout < 0 || cfg.Server.WriteTimeout < 0 || cfg.Server.ShutdownTimeout < 0 {
		return fmt.Errorf("server timeouts must not be negative")
	}
	switch cfg.Auth.Mode {
	case "apikey", "none", "":
	default:
		return fmt.Errorf("auth.mode %q unknown: want apikey|none", cfg.Auth.Mode)
	}
	switch cfg.Webhook.Format {
	case FormatText, FormatTeams, FormatDiscord, "":
	default:
		return fmt.Errorf("webhook.format %q unknown: want text|teams|discord", cfg.Webhook.Format)
	}
	if cfg.Webhook.Timeout <= 0 {
		return fmt.Errorf("webhook.timeout must be positive")
	}
	wa := cfg.Webhook.Auth
	switch wa.Mode {
	case "none", "", "bearer":
	case "apikey":
		if wa.Header == "" {
			return fmt.Errorf("webhook.auth: apikey mode requires header")
		}
	case "basic":
		if wa.Username == "" {
			return fmt.Errorf("webhook.auth: basic mode requires username")
		}
	case "mtls":
		if wa.CertFile == "" || wa.KeyFile == "" {
			return fmt.Errorf("webhook.auth: mtls mode requires cert_file and key_file")
		}
	default:
		return fmt.Errorf("webhook.auth.mode %q unknown: want mtls|apikey|bearer|basic|none", wa.Mode)
	}
	switch cfg.Log.Level {
	case "debug", "info", "warn", "error", "":
	default:
		return fmt.Errorf("log.level %q unknown: want debug|info|warn|error", cfg.Log.Level)
	}
	switch cfg.Log.Format {
	case "json", "text", "":
	default:
		return fmt.Errorf("log.format %q unknown: want json|text", cfg.Log.Format)
	}
	return nil
}
