package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/datallboy/execlogs/internal/domain"
)

const (
	DefaultPageSize    = 1024 * 1024
	DefaultConcurrency = 1
	DefaultConfigFile  = "execlogs.yaml"
)

type Config struct {
	Spark    SparkConfig    `mapstructure:"spark" yaml:"spark"`
	Download DownloadConfig `mapstructure:"download" yaml:"download"`
	Archive  ArchiveConfig  `mapstructure:"archive" yaml:"archive"`
	Log      LogConfig      `mapstructure:"log" yaml:"log"`
	Store    StoreConfig    `mapstructure:"store" yaml:"store"`
	Server   ServerConfig   `mapstructure:"server" yaml:"server"`
}

type SparkConfig struct {
	Master  string                  `mapstructure:"master" yaml:"master"`
	AppID   string                  `mapstructure:"app_id" yaml:"app_id"`
	Targets []domain.ExecutorTarget `mapstructure:"targets" yaml:"targets"`
}

type DownloadConfig struct {
	Dir               string        `mapstructure:"dir" yaml:"dir"`
	Concurrency       int           `mapstructure:"concurrency" yaml:"concurrency"`
	PageSize          int64         `mapstructure:"page_size" yaml:"page_size"`
	FetchTimeout      time.Duration `mapstructure:"fetch_timeout" yaml:"fetch_timeout"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second" yaml:"requests_per_second"`
}

type ArchiveConfig struct {
	Name      string `mapstructure:"name" yaml:"name"`
	UploadURL string `mapstructure:"upload_url" yaml:"upload_url"`
}

type LogConfig struct {
	Path          string `mapstructure:"path" yaml:"path"`
	Level         string `mapstructure:"level" yaml:"level"`
	IncludeStdout bool   `mapstructure:"include_stdout" yaml:"include_stdout"`
}

type StoreConfig struct {
	Driver string `mapstructure:"driver" yaml:"driver"` // sqlite, postgres or none
	DSN    string `mapstructure:"dsn" yaml:"dsn"`
}

type ServerConfig struct {
	Port string `mapstructure:"port" yaml:"port"`
}

// Load reads configuration from defaults, an optional YAML file, EXECLOGS_*
// environment variables and finally any flags bound through flagKeys.
// A missing file is only an error when path was given explicitly.
func Load(path string, flags *pflag.FlagSet, flagKeys map[string]string) (*Config, error) {
	return LoadWithDefaults(path, flags, flagKeys, nil)
}

// LoadWithDefaults is Load with per-command defaults replacing the built-in
// ones. The file, the environment and flags still take precedence.
func LoadWithDefaults(path string, flags *pflag.FlagSet, flagKeys map[string]string, defaults map[string]any) (*Config, error) {
	v := viper.New()

	// Set Defaults
	v.SetDefault("spark.master", "")
	v.SetDefault("spark.app_id", "")
	v.SetDefault("download.dir", ".")
	v.SetDefault("download.concurrency", DefaultConcurrency)
	v.SetDefault("download.page_size", DefaultPageSize)
	v.SetDefault("download.fetch_timeout", time.Duration(0))
	v.SetDefault("download.requests_per_second", 0.0)
	v.SetDefault("archive.name", "")
	v.SetDefault("archive.upload_url", "")
	v.SetDefault("log.path", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.include_stdout", true)
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.dsn", "execlogs.db")
	v.SetDefault("server.port", "8080")
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	explicit := path != ""
	if !explicit {
		path = DefaultConfigFile
	}

	if _, err := os.Stat(path); err == nil {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", path, err)
		}
	} else if explicit {
		return nil, fmt.Errorf("config file not found: %s", path)
	}

	// Support Environment Variables
	v.SetEnvPrefix("EXECLOGS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if flags != nil {
		for key, name := range flagKeys {
			f := flags.Lookup(name)
			if f == nil {
				return nil, fmt.Errorf("unknown flag %q for key %s", name, key)
			}
			if err := v.BindPFlag(key, f); err != nil {
				return nil, fmt.Errorf("bind flag %s: %w", name, err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Download.Concurrency == 0 {
		c.Download.Concurrency = DefaultConcurrency
	}
	if c.Download.Concurrency < 0 {
		return fmt.Errorf("download.concurrency must be at least 1, got %d", c.Download.Concurrency)
	}

	if c.Download.PageSize == 0 {
		c.Download.PageSize = DefaultPageSize
	}
	if c.Download.PageSize < 0 {
		return fmt.Errorf("download.page_size must be positive, got %d", c.Download.PageSize)
	}

	if c.Download.FetchTimeout < 0 {
		return errors.New("download.fetch_timeout cannot be negative")
	}

	if c.Download.RequestsPerSecond < 0 {
		return errors.New("download.requests_per_second cannot be negative")
	}

	if c.Download.Dir == "" {
		c.Download.Dir = "."
	}

	for i, t := range c.Spark.Targets {
		if t.Worker == "" {
			return fmt.Errorf("spark.targets[%d]: worker is required", i)
		}
		if t.ExecutorID < 0 {
			return fmt.Errorf("spark.targets[%d]: executor_id cannot be negative", i)
		}
	}

	c.Spark.Master = NormalizeMaster(c.Spark.Master)

	switch c.Store.Driver {
	case "", "none":
		c.Store.Driver = "none"
	case "sqlite", "postgres":
		if c.Store.DSN == "" {
			return fmt.Errorf("store.dsn is required for driver %s", c.Store.Driver)
		}
	default:
		return fmt.Errorf("unknown store.driver %q", c.Store.Driver)
	}

	return nil
}

// ValidateRun checks the settings a single download needs.
func (c *Config) ValidateRun() error {
	if c.Spark.AppID == "" {
		return errors.New("application id is required")
	}
	if c.Spark.Master == "" && len(c.Spark.Targets) == 0 {
		return errors.New("either a master url or static targets are required")
	}
	return nil
}

// TargetDir is where the executor directories of appID are written.
func (c *Config) TargetDir(appID string) (string, error) {
	return filepath.Abs(filepath.Join(c.Download.Dir, appID))
}

// NormalizeMaster makes sure a non-empty master url ends with a slash.
func NormalizeMaster(master string) string {
	master = strings.TrimSpace(master)
	if master != "" && !strings.HasSuffix(master, "/") {
		master += "/"
	}
	return master
}
