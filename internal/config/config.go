// Package config loads wbs settings from defaults, an optional wbs.yaml,
// a .env file and WBS_* environment variables, in increasing precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/alexanderramin/wbs/internal/permission"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const envPrefix = "WBS"

// Feed drivers.
const (
	FeedMemory = "memory"
	FeedRedis  = "redis"
)

type Config struct {
	DB          DBConfig          `mapstructure:"db"`
	Log         LogConfig         `mapstructure:"log"`
	Permissions PermissionsConfig `mapstructure:"permissions"`
	Identity    IdentityConfig    `mapstructure:"identity"`
	Feed        FeedConfig        `mapstructure:"feed"`
}

type DBConfig struct {
	Path string `mapstructure:"path"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type PermissionsConfig struct {
	// DefaultPolicy answers permission checks when no grants are loaded.
	DefaultPolicy string `mapstructure:"default_policy"`
}

type IdentityConfig struct {
	UserID    string `mapstructure:"user_id"`
	CompanyID string `mapstructure:"company_id"`
}

type FeedConfig struct {
	Driver        string `mapstructure:"driver"`
	RedisAddr     string `mapstructure:"redis_addr"`
	RedisPassword string `mapstructure:"redis_password"`
	RedisDB       int    `mapstructure:"redis_db"`
}

// Policy returns the parsed fallback policy. Load has already validated it.
func (c Config) Policy() permission.Policy {
	p, _ := permission.ParsePolicy(c.Permissions.DefaultPolicy)
	return p
}

// Options controls where Load looks. Zero values use the standard
// locations.
type Options struct {
	// ConfigFile is an explicit wbs.yaml path; it must exist when set.
	ConfigFile string
	// EnvFile is loaded into the process environment if it exists.
	// Defaults to ".env".
	EnvFile string
	// Home overrides the user home directory.
	Home string
}

func setDefaults(v *viper.Viper, home string) {
	v.SetDefault("db.path", filepath.Join(home, ".wbs", "wbs.db"))
	v.SetDefault("log.level", "warn")
	v.SetDefault("log.format", "console")
	v.SetDefault("permissions.default_policy", string(permission.PolicyAllow))
	v.SetDefault("identity.user_id", "")
	v.SetDefault("identity.company_id", "")
	v.SetDefault("feed.driver", FeedMemory)
	v.SetDefault("feed.redis_addr", "localhost:6379")
	v.SetDefault("feed.redis_password", "")
	v.SetDefault("feed.redis_db", 0)
}

// Load resolves the configuration and validates it.
func Load(opts Options) (Config, error) {
	home := opts.Home
	if home == "" {
		h, err := os.UserHomeDir()
		if err != nil {
			return Config{}, fmt.Errorf("finding home directory: %w", err)
		}
		home = h
	}

	envFile := opts.EnvFile
	if envFile == "" {
		envFile = ".env"
	}
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("loading %s: %w", envFile, err)
	}

	v := viper.New()
	setDefaults(v, home)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if opts.ConfigFile != "" {
		v.SetConfigFile(opts.ConfigFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("reading %s: %w", opts.ConfigFile, err)
		}
	} else {
		v.SetConfigName("wbs")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath(filepath.Join(home, ".wbs"))
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return Config{}, fmt.Errorf("reading wbs.yaml: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decoding config: %w", err)
	}
	cfg.DB.Path = expandHome(cfg.DB.Path, home)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects values the rest of the program cannot act on.
func (c Config) Validate() error {
	if _, err := permission.ParsePolicy(c.Permissions.DefaultPolicy); err != nil {
		return fmt.Errorf("permissions.default_policy: %w", err)
	}
	switch strings.ToLower(strings.TrimSpace(c.Feed.Driver)) {
	case FeedMemory, FeedRedis:
	default:
		return fmt.Errorf("feed.driver: unknown driver %q (want memory or redis)", c.Feed.Driver)
	}
	if strings.TrimSpace(c.DB.Path) == "" {
		return errors.New("db.path: must not be empty")
	}
	return nil
}

func expandHome(path, home string) string {
	if path == "~" {
		return home
	}
	if strings.HasPrefix(path, "~/") {
		return filepath.Join(home, path[2:])
	}
	return path
}
