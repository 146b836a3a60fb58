// Package config loads the service configuration once at start up from
// defaults, an optional config.yaml, a .env file and JOBS_ environment
// variables, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. JOBS_AUTH_SIGNING_KEY
const EnvPrefix = "JOBS"

// Config holds all configuration for the application.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Auth      AuthConfig      `mapstructure:"auth"`
	URLs      URLConfig       `mapstructure:"urls"`
	Google    GoogleConfig    `mapstructure:"google"`
	Geo       GeoConfig       `mapstructure:"geo"`
	Mail      MailConfig      `mapstructure:"mail"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	RateLimit RateLimitConfig `mapstructure:"ratelimit"`
	Log       LogConfig       `mapstructure:"log"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host           string        `mapstructure:"host"`
	Port           int           `mapstructure:"port"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	AllowedOrigins []string      `mapstructure:"allowed_origins"`
	ProxyHeader    string        `mapstructure:"proxy_header"`
	SecureCookies  bool          `mapstructure:"secure_cookies"`
}

// Addr returns host:port
func (c ServerConfig) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// AuthConfig holds token settings
type AuthConfig struct {
	SigningKey        string        `mapstructure:"signing_key"`
	Issuer            string        `mapstructure:"issuer"`
	TokenTTL          time.Duration `mapstructure:"token_ttl"`
	ExtendedTokenTTL  time.Duration `mapstructure:"extended_token_ttl"`
	VerificationTTL   time.Duration `mapstructure:"verification_ttl"`
	ResetTTL          time.Duration `mapstructure:"reset_ttl"`
	ContextKey        string        `mapstructure:"context_key"`
	TokenLookup       string        `mapstructure:"token_lookup"`
	BcryptCost        int           `mapstructure:"bcrypt_cost"`
	OAuthStateTimeout time.Duration `mapstructure:"oauth_state_timeout"`
}

// URLConfig holds the public base URLs used in links and redirects
type URLConfig struct {
	Frontend string `mapstructure:"frontend"`
	Backend  string `mapstructure:"backend"`
}

// GoogleConfig holds the OAuth client registration
type GoogleConfig struct {
	ClientID     string `mapstructure:"client_id"`
	ClientSecret string `mapstructure:"client_secret"`
	CallbackURL  string `mapstructure:"callback_url"`
	TokenInfoURL string `mapstructure:"tokeninfo_url"`
}

// Enabled reports whether the redirect flow can run
func (c GoogleConfig) Enabled() bool {
	return c.ClientID != "" && c.ClientSecret != ""
}

// GeoConfig holds the IP geolocation service settings
type GeoConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// MailConfig selects and configures the mail driver
type MailConfig struct {
	Driver       string `mapstructure:"driver"`
	FromName     string `mapstructure:"from_name"`
	From         string `mapstructure:"from"`
	SendGridKey  string `mapstructure:"sendgrid_key"`
	SendGridHost string `mapstructure:"sendgrid_host"`
	SMTPHost     string `mapstructure:"smtp_host"`
	SMTPPort     int    `mapstructure:"smtp_port"`
	SMTPUser     string `mapstructure:"smtp_user"`
	SMTPPassword string `mapstructure:"smtp_password"`
}

// DatabaseConfig selects the storage driver
type DatabaseConfig struct {
	Driver       string `mapstructure:"driver"`
	DSN          string `mapstructure:"dsn"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
}

// RedisConfig holds Redis configuration. An empty Addr keeps revocations
// in process.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// RateLimitConfig bounds requests per client IP on the sign in routes
type RateLimitConfig struct {
	RequestsPerSecond float64 `mapstructure:"rps"`
	Burst             int     `mapstructure:"burst"`
}

// LogConfig configures the zap logger
type LogConfig struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
}

// Options tweak Load, mostly for tests
type Options struct {
	// ConfigPaths are searched for config.yaml, defaults to . and ./config
	ConfigPaths []string
	// EnvFiles are loaded with godotenv before reading the environment
	EnvFiles []string
}

// Load reads configuration from files and environment variables.
func Load(opts ...Options) (*Config, error) {
	var o Options
	if len(opts) > 0 {
		o = opts[0]
	}
	if o.ConfigPaths == nil {
		o.ConfigPaths = []string{".", "./config"}
	}

	if len(o.EnvFiles) > 0 {
		if err := godotenv.Load(o.EnvFiles...); err != nil {
			return nil, fmt.Errorf("failed to load env files: %w", err)
		}
	} else {
		// a missing .env is fine
		_ = godotenv.Load()
	}

	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	for _, p := range o.ConfigPaths {
		v.AddConfigPath(p)
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// env values for lists arrive as a single comma separated string
	cfg.Server.AllowedOrigins = splitList(cfg.Server.AllowedOrigins)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate rejects configurations the service cannot run with
func (c *Config) Validate() error {
	if len(c.Auth.SigningKey) < 16 {
		return errors.New("auth.signing_key must be at least 16 characters")
	}
	if c.Auth.TokenTTL <= 0 || c.Auth.ExtendedTokenTTL <= 0 {
		return errors.New("auth token TTLs must be positive")
	}
	switch c.Database.Driver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("unknown database.driver %q", c.Database.Driver)
	}
	switch c.Mail.Driver {
	case "sendgrid":
		if c.Mail.SendGridKey == "" {
			return errors.New("mail.sendgrid_key is required for the sendgrid driver")
		}
	case "smtp":
		if c.Mail.SMTPHost == "" {
			return errors.New("mail.smtp_host is required for the smtp driver")
		}
	case "log":
	default:
		return fmt.Errorf("unknown mail.driver %q", c.Mail.Driver)
	}
	return nil
}

// setDefaults configures default values for all settings.
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 5000)
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "15s")
	v.SetDefault("server.allowed_origins", []string{"http://localhost:3000", "http://localhost:5173"})
	v.SetDefault("server.proxy_header", "")
	v.SetDefault("server.secure_cookies", true)

	v.SetDefault("auth.signing_key", "")
	v.SetDefault("auth.issuer", "jobsculpt")
	v.SetDefault("auth.token_ttl", "1h")
	v.SetDefault("auth.extended_token_ttl", "8760h")
	v.SetDefault("auth.verification_ttl", "1h")
	v.SetDefault("auth.reset_ttl", "1h")
	v.SetDefault("auth.context_key", "user")
	v.SetDefault("auth.token_lookup", "header:x-auth-token")
	v.SetDefault("auth.bcrypt_cost", 0)
	v.SetDefault("auth.oauth_state_timeout", "10m")

	v.SetDefault("urls.frontend", "http://localhost:5173")
	v.SetDefault("urls.backend", "http://localhost:5000")

	v.SetDefault("google.client_id", "")
	v.SetDefault("google.client_secret", "")
	v.SetDefault("google.callback_url", "http://localhost:5000/api/auth/google/callback")
	v.SetDefault("google.tokeninfo_url", "https://www.googleapis.com/oauth2/v3/tokeninfo")

	v.SetDefault("geo.base_url", "http://ip-api.com/json")
	v.SetDefault("geo.timeout", "3s")

	v.SetDefault("mail.driver", "log")
	v.SetDefault("mail.from_name", "JobSculpt")
	v.SetDefault("mail.from", "no-reply@jobsculpt.local")
	v.SetDefault("mail.sendgrid_key", "")
	v.SetDefault("mail.sendgrid_host", "https://api.sendgrid.com")
	v.SetDefault("mail.smtp_host", "")
	v.SetDefault("mail.smtp_port", 587)
	v.SetDefault("mail.smtp_user", "")
	v.SetDefault("mail.smtp_password", "")

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "file:jobsculpt.db?cache=shared")
	v.SetDefault("database.max_open_conns", 0)

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("ratelimit.rps", 5)
	v.SetDefault("ratelimit.burst", 10)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.development", false)
}

func splitList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, item := range in {
		for _, part := range strings.Split(item, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

func (c *Config) GetSigningKey() string {
	return c.Auth.SigningKey
}

func (c *Config) GetIssuer() string {
	return c.Auth.Issuer
}

func (c *Config) GetTokenExpiration() time.Duration {
	return c.Auth.TokenTTL
}

func (c *Config) GetExtendedTokenExpiration() time.Duration {
	return c.Auth.ExtendedTokenTTL
}

func (c *Config) GetVerificationTokenExpiration() time.Duration {
	return c.Auth.VerificationTTL
}

func (c *Config) GetResetTokenExpiration() time.Duration {
	return c.Auth.ResetTTL
}

func (c *Config) GetContextKey() string {
	return c.Auth.ContextKey
}

func (c *Config) GetTokenLookup() string {
	return c.Auth.TokenLookup
}

func (c *Config) GetFrontendURL() string {
	return c.URLs.Frontend
}

func (c *Config) GetBackendURL() string {
	return c.URLs.Backend
}
