// Package config loads CLI settings from .sqlsrv.yaml, SQLSRV_* environment
// variables and .env files.
package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/mitchellh/go-homedir"
	"github.com/spf13/afero"
	"github.com/spf13/viper"

	"github.com/satishbabariya/sqlsrv-go/internal/debug"
	"github.com/satishbabariya/sqlsrv-go/query/cache"
	"github.com/satishbabariya/sqlsrv-go/query/rewrite"
	"github.com/satishbabariya/sqlsrv-go/runtime/client"
)

var AppFs = afero.NewOsFs()

// FileName is the config file name without extension.
const FileName = ".sqlsrv"

// Config holds the application configuration
type Config struct {
	Driver      string
	DSN         string
	TablePrefix string

	Cache cache.Config

	Threshold int
	Schema    string
	Functions []string

	LogLevel  string
	LogFormat string
}

// SetDefaults registers the default value of every key on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("driver", "sqlserver")
	v.SetDefault("table_prefix", "")
	v.SetDefault("cache.backend", cache.BackendMemory)
	v.SetDefault("cache.prefix", cache.DefaultPrefix)
	v.SetDefault("cache.size", cache.DefaultMemorySize)
	v.SetDefault("cache.redis.db", 0)
	v.SetDefault("rewrite.threshold", rewrite.DefaultThreshold)
	v.SetDefault("rewrite.schema", rewrite.DefaultSchema)
	v.SetDefault("rewrite.functions", rewrite.DefaultFunctions)
	v.SetDefault("log.level", "warn")
	v.SetDefault("log.format", "text")
}

// Setup points v at the config search path and the SQLSRV environment.
// An explicit file overrides the search path.
func Setup(v *viper.Viper, file string) error {
	SetDefaults(v)

	v.SetEnvPrefix("SQLSRV")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if file != "" {
		v.SetConfigFile(file)
		return nil
	}

	home, err := homedir.Dir()
	if err != nil {
		return err
	}
	v.SetConfigName(FileName)
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath(home)
	v.AddConfigPath(filepath.Join(home, ".config", "sqlsrv"))
	return nil
}

// LoadEnvFiles loads .env and then .env.local (higher priority) when they
// exist in the working directory.
func LoadEnvFiles() {
	if _, err := AppFs.Stat(".env"); err == nil {
		// a malformed .env is not fatal
		_ = godotenv.Load()
	}
	if _, err := AppFs.Stat(".env.local"); err == nil {
		_ = godotenv.Overload(".env.local")
	}
}

// LoadConfig reads the config file if there is one and returns the merged
// settings. A missing config file is not an error.
func LoadConfig(v *viper.Viper) (*Config, error) {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && !os.IsNotExist(err) {
			return nil, err
		}
	}
	return FromViper(v), nil
}

// FromViper builds a Config from the values already in v.
func FromViper(v *viper.Viper) *Config {
	cfg := &Config{
		Driver:      v.GetString("driver"),
		DSN:         v.GetString("dsn"),
		TablePrefix: v.GetString("table_prefix"),
		Cache: cache.Config{
			Backend: v.GetString("cache.backend"),
			Prefix:  v.GetString("cache.prefix"),
			Size:    v.GetInt("cache.size"),
			Redis: cache.RedisConfig{
				Addr:     v.GetString("cache.redis.addr"),
				Password: v.GetString("cache.redis.password"),
				DB:       v.GetInt("cache.redis.db"),
			},
			Dir: v.GetString("cache.file.dir"),
			Fs:  AppFs,
		},
		Threshold: v.GetInt("rewrite.threshold"),
		Schema:    v.GetString("rewrite.schema"),
		Functions: v.GetStringSlice("rewrite.functions"),
		LogLevel:  v.GetString("log.level"),
		LogFormat: v.GetString("log.format"),
	}
	if cfg.DSN == "" {
		cfg.DSN = os.Getenv("DATABASE_URL")
	}
	return cfg
}

// RewriteOptions returns the rewriter settings.
func (c *Config) RewriteOptions() []rewrite.Option {
	return []rewrite.Option{
		rewrite.WithThreshold(c.Threshold),
		rewrite.WithSchema(c.Schema),
		rewrite.WithFunctions(c.Functions...),
	}
}

// ClientOptions returns the connection settings.
func (c *Config) ClientOptions() []client.Option {
	opts := []client.Option{
		client.WithDriver(c.Driver),
		client.WithDSN(c.DSN),
		client.WithCache(c.Cache),
		client.WithThreshold(c.Threshold),
		client.WithSchema(c.Schema),
		client.WithFunctions(c.Functions...),
	}
	if c.TablePrefix != "" {
		opts = append(opts, client.WithTablePrefix(c.TablePrefix))
	}
	return opts
}

// LogOptions returns the logger settings.
func (c *Config) LogOptions() debug.Options {
	return debug.Options{Level: c.LogLevel, Format: c.LogFormat, Writer: os.Stderr}
}

// SaveConfig writes cfg to $HOME/.config/sqlsrv/.sqlsrv.yaml and returns
// the path. The DSN is not written.
func SaveConfig(cfg *Config) (string, error) {
	v := viper.New()
	v.SetFs(AppFs)
	v.Set("driver", cfg.Driver)
	v.Set("table_prefix", cfg.TablePrefix)
	v.Set("cache.backend", cfg.Cache.Backend)
	v.Set("cache.prefix", cfg.Cache.Prefix)
	v.Set("cache.size", cfg.Cache.Size)
	if cfg.Cache.Redis.Addr != "" {
		v.Set("cache.redis.addr", cfg.Cache.Redis.Addr)
		v.Set("cache.redis.db", cfg.Cache.Redis.DB)
	}
	if cfg.Cache.Dir != "" {
		v.Set("cache.file.dir", cfg.Cache.Dir)
	}
	v.Set("rewrite.threshold", cfg.Threshold)
	v.Set("rewrite.schema", cfg.Schema)
	v.Set("rewrite.functions", cfg.Functions)
	v.Set("log.level", cfg.LogLevel)
	v.Set("log.format", cfg.LogFormat)

	home, err := homedir.Dir()
	if err != nil {
		return "", err
	}

	configPath := filepath.Join(home, ".config", "sqlsrv")
	if err := AppFs.MkdirAll(configPath, 0755); err != nil {
		return "", err
	}

	configFile := filepath.Join(configPath, FileName+".yaml")
	return configFile, v.WriteConfigAs(configFile)
}
