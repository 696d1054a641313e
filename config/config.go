// config/config.go
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

type Config struct {
	Server   ServerConfig   `toml:"server"`
	Google   GoogleConfig   `toml:"google"`
	Database DatabaseConfig `toml:"database"`
	Security SecurityConfig `toml:"security"`
	Mailbox  MailboxConfig  `toml:"mailbox"`
	AI       AIConfig       `toml:"ai"`
	Log      LogConfig      `toml:"log"`
}

type ServerConfig struct {
	Host            string   `toml:"host"`
	Port            int      `toml:"port"`
	BaseURL         string   `toml:"base_url"`
	CookieSecure    bool     `toml:"cookie_secure"`
	BodyLimit       int      `toml:"body_limit"` // In bytes
	ShutdownTimeout Duration `toml:"shutdown_timeout"`
	AllowOrigins    string   `toml:"allow_origins"`
	// ProxyHeader names the client-IP header set by a reverse proxy. It is
	// only honored for requests from TrustedProxies.
	ProxyHeader    string   `toml:"proxy_header"`
	TrustedProxies []string `toml:"trusted_proxies"`
}

type GoogleConfig struct {
	ClientID     string `toml:"client_id"`
	ClientSecret string `toml:"client_secret"`
	RedirectURL  string `toml:"redirect_url"`
	Issuer       string `toml:"issuer"`
}

type DatabaseConfig struct {
	Path string `toml:"path"`
}

type SecurityConfig struct {
	JWTSecret        string   `toml:"jwt_secret"`
	EncryptionKey    string   `toml:"encryption_key"`
	SessionTimeout   Duration `toml:"session_timeout"`
	TokenTTL         Duration `toml:"token_ttl"`
	MaxLoginAttempts int      `toml:"max_login_attempts"`
	RateLimitWindow  Duration `toml:"rate_limit_window"`
}

type MailboxConfig struct {
	PageSize         int64    `toml:"page_size"`
	PrefetchInterval Duration `toml:"prefetch_interval"`
	PrefetchBurst    int      `toml:"prefetch_burst"`
	BulkConcurrency  int      `toml:"bulk_concurrency"`
	ListConcurrency  int      `toml:"list_concurrency"`
	PageCache        bool     `toml:"page_cache"`
}

type AIConfig struct {
	APIKey  string   `toml:"api_key"`
	Model   string   `toml:"model"`
	Timeout Duration `toml:"timeout"`
}

type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// Duration decodes TOML strings such as "1s" or "12h".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Default configuration values
var defaultConfig = Config{
	Server: ServerConfig{
		Host:            "localhost",
		Port:            8080,
		BaseURL:         "http://localhost:8080",
		BodyLimit:       4 * 1024 * 1024,
		ShutdownTimeout: Duration{10 * time.Second},
		AllowOrigins:    "*",
	},
	Google: GoogleConfig{
		Issuer: "https://accounts.google.com",
	},
	Database: DatabaseConfig{
		Path: "inboxai.db",
	},
	Security: SecurityConfig{
		SessionTimeout:   Duration{12 * time.Hour},
		TokenTTL:         Duration{12 * time.Hour},
		MaxLoginAttempts: 5,
		RateLimitWindow:  Duration{15 * time.Minute},
	},
	Mailbox: MailboxConfig{
		PageSize:         50,
		PrefetchInterval: Duration{time.Second},
		PrefetchBurst:    1,
		BulkConcurrency:  5,
		ListConcurrency:  10,
		PageCache:        true,
	},
	AI: AIConfig{
		Model:   "gemini-2.0-flash",
		Timeout: Duration{30 * time.Second},
	},
	Log: LogConfig{
		Level:  "info",
		Format: "text",
	},
}

// Default returns a copy of the built-in configuration.
func Default() *Config {
	c := defaultConfig
	return &c
}

// Load loads the configuration from the specified path
func Load(path string) (*Config, error) {
	config := defaultConfig

	if path == "" {
		// Try standard config locations
		configLocations := []string{
			"./config.toml",
			"~/.config/inboxai/config.toml",
			"/etc/inboxai/config.toml",
		}

		for _, loc := range configLocations {
			expanded, err := expandPath(loc)
			if err != nil {
				continue
			}
			if _, err := os.Stat(expanded); err == nil {
				path = expanded
				break
			}
		}
	}

	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return nil, err
		}
		if _, err := toml.DecodeFile(expanded, &config); err != nil {
			return nil, fmt.Errorf("error loading config: %w", err)
		}
	}

	config.applyEnv(os.LookupEnv)

	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// applyEnv overrides secrets and paths from the environment.
func (c *Config) applyEnv(lookup func(string) (string, bool)) {
	overrides := []struct {
		key string
		dst *string
	}{
		{"GOOGLE_CLIENT_ID", &c.Google.ClientID},
		{"GOOGLE_CLIENT_SECRET", &c.Google.ClientSecret},
		{"GEMINI_API_KEY", &c.AI.APIKey},
		{"INBOXAI_JWT_SECRET", &c.Security.JWTSecret},
		{"INBOXAI_ENCRYPTION_KEY", &c.Security.EncryptionKey},
		{"INBOXAI_DATABASE", &c.Database.Path},
	}
	for _, o := range overrides {
		if v, ok := lookup(o.key); ok && v != "" {
			*o.dst = v
		}
	}
}

// validate checks if the configuration is valid
func (c *Config) validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid port number: %d", c.Server.Port)
	}

	if c.Google.ClientID == "" || c.Google.ClientSecret == "" {
		return fmt.Errorf("google client_id and client_secret are required")
	}

	if c.Google.RedirectURL == "" {
		c.Google.RedirectURL = strings.TrimRight(c.Server.BaseURL, "/") + "/auth/google/callback"
	}

	if len(c.Security.JWTSecret) < 32 {
		return fmt.Errorf("jwt secret must be at least 32 characters")
	}

	if len(c.Security.EncryptionKey) < 16 {
		return fmt.Errorf("encryption key must be at least 16 characters")
	}

	if c.Security.SessionTimeout.Duration < time.Minute {
		return fmt.Errorf("session timeout must be at least 1 minute")
	}

	if c.Security.MaxLoginAttempts < 1 {
		return fmt.Errorf("max login attempts must be positive")
	}

	if c.Mailbox.PageSize < 1 || c.Mailbox.PageSize > 500 {
		return fmt.Errorf("mailbox page size must be between 1 and 500")
	}

	if c.Mailbox.PrefetchInterval.Duration < 0 {
		return fmt.Errorf("prefetch interval must not be negative")
	}

	if c.Mailbox.PrefetchBurst < 1 {
		c.Mailbox.PrefetchBurst = 1
	}

	if c.Mailbox.BulkConcurrency < 1 || c.Mailbox.ListConcurrency < 1 {
		return fmt.Errorf("mailbox concurrency must be positive")
	}

	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("unknown log format %q", c.Log.Format)
	}

	return nil
}

// Addr is the listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// expandPath expands the ~ in paths to the user's home directory
func expandPath(path string) (string, error) {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, path[2:]), nil
	}
	return path, nil
}

// Save saves the current configuration to a file
func (c *Config) Save(path string) error {
	expanded, err := expandPath(path)
	if err != nil {
		return err
	}

	// Ensure directory exists
	dir := filepath.Dir(expanded)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	f, err := os.OpenFile(expanded, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	encoder := toml.NewEncoder(f)
	return encoder.Encode(c)
}
