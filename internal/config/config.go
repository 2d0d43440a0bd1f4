package config

import (
	"fmt"
	"os"
	"time"

	"github.com/goccy/go-yaml"
	"github.com/mitchellh/mapstructure"
)

// Config is the service configuration. One binary serves two deployment
// modes: every instance verifies tokens and serves the protected API; only
// an instance configured with a signing key additionally issues tokens and
// publishes its JWKS.
type Config struct {
	Server     ServerConfig   `yaml:"server"`
	Auth       AuthConfig     `yaml:"auth"`
	Identity   *IdentityConfig `yaml:"identity,omitempty"`
	Roles      RolesConfig    `yaml:"roles"`
	Requests   RequestsConfig `yaml:"requests"`
	Protection []RouteGuard   `yaml:"protection"`
}

type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// AuthConfig drives token verification.
type AuthConfig struct {
	// IssuerURL is the identity provider base URL; the key set is fetched
	// from its /.well-known/jwks.json endpoint.
	IssuerURL string `yaml:"issuer_url"`

	// LegacySecret enables the HS256 compatibility scheme. Leave empty to
	// reject legacy tokens outright.
	LegacySecret string `yaml:"legacy_secret"`

	// KeySetTTL is the cache freshness window. Default 10m.
	KeySetTTL time.Duration `yaml:"keyset_ttl"`

	// KeySetMaxStale bounds the fallback to a stale cached set when a
	// refresh fails. Default 1h.
	KeySetMaxStale time.Duration `yaml:"keyset_max_stale"`

	// FetchTimeout bounds the JWKS request. Default 3s.
	FetchTimeout time.Duration `yaml:"fetch_timeout"`
}

// IdentityConfig is only set on the identity-provider deployment.
type IdentityConfig struct {
	// SigningKeyPath points to the PEM-encoded RSA private key.
	SigningKeyPath string `yaml:"signing_key_path"`

	// KID is published in issued token headers and the JWKS document.
	KID string `yaml:"kid"`

	// Audience stamped into issued tokens.
	Audience string `yaml:"audience"`

	// TokenTTL is the default lifetime of issued tokens.
	TokenTTL time.Duration `yaml:"token_ttl"`
}

type RolesConfig struct {
	URL     string        `yaml:"url"`
	APIKey  string        `yaml:"api_key"`
	Timeout time.Duration `yaml:"timeout"`
}

// RequestsConfig selects and parameterizes the sharing-request store.
type RequestsConfig struct {
	Store StoreConfig `yaml:"store"`
}

// StoreConfig carries the backend type plus its backend-specific settings
// as an inline map, decoded per type.
type StoreConfig struct {
	Type   string         `yaml:"type"` // "memory" or "redis"
	Config map[string]any `yaml:",inline"`
}

// RedisStoreConfig is the decoded form of StoreConfig.Config for
// type "redis".
type RedisStoreConfig struct {
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	TTL      time.Duration `mapstructure:"ttl"`
}

// DecodeRedis extracts the redis settings from the inline config map.
func (s StoreConfig) DecodeRedis() (RedisStoreConfig, error) {
	var out RedisStoreConfig
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:     &out,
		DecodeHook: mapstructure.StringToTimeDurationHookFunc(),
	})
	if err != nil {
		return out, fmt.Errorf("building store config decoder: %w", err)
	}
	if err := dec.Decode(s.Config); err != nil {
		return out, fmt.Errorf("decoding redis store config: %w", err)
	}
	if out.Addr == "" {
		return out, fmt.Errorf("redis store requires 'addr'")
	}
	return out, nil
}

// RouteGuard overrides or extends the protection of one route.
type RouteGuard struct {
	// Route is the mux pattern, e.g. "GET /v1/requests".
	Route string `yaml:"route"`

	// Level is "admin" or "super-admin".
	Level string `yaml:"level"`

	// Condition is an optional expression over the verified claims that
	// must additionally hold, e.g. `claims.Scope contains "ops"`.
	Condition string `yaml:"condition"`
}

func (g RouteGuard) Validate() error {
	if g.Route == "" {
		return fmt.Errorf("guard route is required")
	}
	switch g.Level {
	case "admin", "super-admin":
	default:
		return fmt.Errorf("guard for %q: unknown level %q", g.Route, g.Level)
	}
	return nil
}

func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Auth.IssuerURL == "" {
		return fmt.Errorf("auth.issuer_url is required")
	}
	if c.Identity != nil {
		if c.Identity.SigningKeyPath == "" {
			return fmt.Errorf("identity.signing_key_path is required")
		}
		if c.Identity.KID == "" {
			return fmt.Errorf("identity.kid is required")
		}
		if c.Identity.TokenTTL <= 0 {
			c.Identity.TokenTTL = time.Hour
		}
	}
	if c.Roles.URL == "" {
		return fmt.Errorf("roles.url is required")
	}
	switch c.Requests.Store.Type {
	case "", "memory":
		c.Requests.Store.Type = "memory"
	case "redis":
		if _, err := c.Requests.Store.DecodeRedis(); err != nil {
			return err
		}
	default:
		return fmt.Errorf("unknown request store type %q", c.Requests.Store.Type)
	}
	for _, g := range c.Protection {
		if err := g.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// Load reads and parses the configuration file at the given path.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file '%s': %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file '%s': %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return &cfg, nil
}
