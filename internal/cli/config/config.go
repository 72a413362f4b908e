package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/conduit-lang/remoterecord/internal/remoterecord/auth"
	rrconfig "github.com/conduit-lang/remoterecord/internal/remoterecord/config"
	"github.com/conduit-lang/remoterecord/internal/remoterecord/logging"
	"github.com/conduit-lang/remoterecord/internal/remoterecord/transform"
)

// FileName is the project file looked up in the working directory
const FileName = "remoterecord"

// Config represents a remoterecord project file
type Config struct {
	Database DatabaseConfig           `mapstructure:"database"`
	Cache    CacheConfig              `mapstructure:"cache"`
	Log      logging.Config           `mapstructure:"log"`
	Handlers map[string]HandlerConfig `mapstructure:"handlers"`
}

// DatabaseConfig selects where local records live
type DatabaseConfig struct {
	Dialect string `mapstructure:"dialect"`
	URL     string `mapstructure:"url"`
	Table   string `mapstructure:"table"`
}

// CacheConfig selects the shared payload cache
type CacheConfig struct {
	Backend  string        `mapstructure:"backend"` // none, memory or redis
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	TTL      time.Duration `mapstructure:"ttl"`
}

// HandlerConfig declares one HTTP-backed handler type and its defaults
type HandlerConfig struct {
	BaseURL          string   `mapstructure:"base_url"`
	Path             string   `mapstructure:"path"`
	Envelope         string   `mapstructure:"envelope"`
	Memoize          *bool    `mapstructure:"memoize"`
	IDField          string   `mapstructure:"id_field"`
	Transform        []string `mapstructure:"transform"`
	AuthorizationEnv string   `mapstructure:"authorization_env"`
	// JWTSecretEnv names a signing secret; each request then carries a
	// freshly minted HS256 token instead of a static credential
	JWTSecretEnv string `mapstructure:"jwt_secret_env"`
	JWTSubject   string `mapstructure:"jwt_subject"`
}

// Layer converts the handler entry into the handler type's default config.
// Authorization is read from the named environment variable on each call.
func (h HandlerConfig) Layer() (rrconfig.Config, error) {
	values := map[rrconfig.Key]any{}
	if h.Memoize != nil {
		values[rrconfig.KeyMemoize] = *h.Memoize
	}
	if h.IDField != "" {
		values[rrconfig.KeyIDField] = h.IDField
	}
	if len(h.Transform) > 0 {
		values[rrconfig.KeyTransform] = h.Transform
	}
	switch {
	case h.AuthorizationEnv != "":
		values[rrconfig.KeyAuthorization] = auth.Env(h.AuthorizationEnv)
	case h.JWTSecretEnv != "":
		values[rrconfig.KeyAuthorization] = auth.SignedJWT(auth.Env(h.JWTSecretEnv), h.JWTSubject, 0)
	}
	return rrconfig.New(values)
}

// Load reads the project file. An empty path searches the working directory
// for remoterecord.yml; a missing file leaves every setting at its default.
// Environment variables prefixed REMOTERECORD_ override file values.
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetDefault("database.dialect", "sqlite")
	v.SetDefault("database.url", "remoterecord.db")
	v.SetDefault("database.table", "remote_records")
	v.SetDefault("cache.backend", "none")
	v.SetDefault("cache.addr", "localhost:6379")
	v.SetDefault("cache.ttl", "5m")
	v.SetDefault("log.level", "warn")
	v.SetDefault("log.encoding", "console")

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(FileName)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("REMOTERECORD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validateConfig(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// HandlerNames returns the declared handler types in order
func (c *Config) HandlerNames() []string {
	names := make([]string, 0, len(c.Handlers))
	for name := range c.Handlers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Handler returns the entry for a handler type. Handler names are matched
// case-insensitively because viper lowercases map keys.
func (c *Config) Handler(name string) (HandlerConfig, bool) {
	if h, ok := c.Handlers[name]; ok {
		return h, true
	}
	for key, h := range c.Handlers {
		if strings.EqualFold(key, name) {
			return h, true
		}
	}
	return HandlerConfig{}, false
}

// FindConfigFile walks up from the working directory to the nearest
// remoterecord.yml or remoterecord.yaml
func FindConfigFile() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}

	for {
		for _, ext := range []string{".yml", ".yaml"} {
			candidate := filepath.Join(dir, FileName+ext)
			if _, err := os.Stat(candidate); err == nil {
				return candidate, nil
			}
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("no %s.yml found in this directory or any parent", FileName)
		}
		dir = parent
	}
}

func validateConfig(cfg *Config) error {
	switch cfg.Database.Dialect {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("database.dialect must be sqlite or postgres, got: %s", cfg.Database.Dialect)
	}

	switch cfg.Cache.Backend {
	case "none", "memory", "redis":
	default:
		return fmt.Errorf("cache.backend must be none, memory or redis, got: %s", cfg.Cache.Backend)
	}

	for name, h := range cfg.Handlers {
		if h.BaseURL == "" {
			return fmt.Errorf("handlers.%s.base_url is required", name)
		}
		if h.Path == "" {
			return fmt.Errorf("handlers.%s.path is required", name)
		}
		if h.AuthorizationEnv != "" && h.JWTSecretEnv != "" {
			return fmt.Errorf("handlers.%s: authorization_env and jwt_secret_env are mutually exclusive", name)
		}
		for _, step := range h.Transform {
			if _, ok := transform.Lookup(step); !ok {
				return fmt.Errorf("handlers.%s.transform: unknown step %q", name, step)
			}
		}
	}
	return nil
}
