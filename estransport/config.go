package estransport

import (
	"time"

	"github.com/goyal15rajat/es-query-builder/retry"
)

// Config holds connection settings for a search cluster.
type Config struct {
	// URL is the cluster endpoint (e.g. http://elasticsearch:9200).
	URL string `yaml:"url" env:"SEARCH_URL"`

	// Username is the optional basic auth username.
	Username string `yaml:"username" env:"SEARCH_USERNAME"`

	// Password is the optional basic auth password.
	Password string `yaml:"password" env:"SEARCH_PASSWORD"`

	// APIKey is the optional API key for authentication. Takes precedence
	// over basic auth when set.
	APIKey string `yaml:"api_key" env:"SEARCH_API_KEY"`

	// TLS configuration for secure connections.
	TLS *TLSConfig `yaml:"tls"`

	// MaxRetries is the maximum number of retries for client operations.
	MaxRetries int `yaml:"max_retries" env:"SEARCH_MAX_RETRIES"`

	// PingTimeout bounds the connection verification ping.
	PingTimeout time.Duration `yaml:"ping_timeout" env:"SEARCH_PING_TIMEOUT"`

	// RetryConfig controls connection verification retries. If nil, a
	// default of 5 attempts with 2s initial delay is used.
	RetryConfig *retry.Config `yaml:"retry"`
}

// TLSConfig holds TLS settings for cluster connections.
type TLSConfig struct {
	Enabled            bool   `yaml:"enabled" env:"SEARCH_TLS_ENABLED"`
	InsecureSkipVerify bool   `yaml:"insecure_skip_verify" env:"SEARCH_TLS_INSECURE"`
	CertFile           string `yaml:"cert_file" env:"SEARCH_TLS_CERT_FILE"`
	KeyFile            string `yaml:"key_file" env:"SEARCH_TLS_KEY_FILE"`
}

// SetDefaults applies default values to unset fields.
func (c *Config) SetDefaults() {
	if c.URL == "" {
		c.URL = "http://localhost:9200"
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = 3
	}
	if c.PingTimeout == 0 {
		c.PingTimeout = 5 * time.Second
	}
	if c.RetryConfig == nil {
		c.RetryConfig = &retry.Config{
			MaxAttempts:  5,
			InitialDelay: 2 * time.Second,
			MaxDelay:     10 * time.Second,
		}
	}
}
