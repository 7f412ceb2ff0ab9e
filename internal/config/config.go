package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const EnvPrefix = "NERVE"

type Config struct {
	// URL, Username and Password map to NERVE_URL, NERVE_USERNAME and
	// NERVE_PASSWORD.
	URL      string `mapstructure:"url" yaml:"url,omitempty"`
	Username string `mapstructure:"username" yaml:"username,omitempty"`
	Password string `mapstructure:"password" yaml:"-"`

	API         API         `mapstructure:"api" yaml:"api"`
	Session     Session     `mapstructure:"session" yaml:"session"`
	Credentials Credentials `mapstructure:"credentials" yaml:"credentials"`
	MS          MS          `mapstructure:"ms" yaml:"ms"`
	Walk        Walk        `mapstructure:"walk" yaml:"walk"`
	Nodes       Nodes       `mapstructure:"nodes" yaml:"nodes"`
	Download    Download    `mapstructure:"download" yaml:"download"`
	Journal     Journal     `mapstructure:"journal" yaml:"journal"`
	Telemetry   Telemetry   `mapstructure:"telemetry" yaml:"telemetry"`
	Metrics     Metrics     `mapstructure:"metrics" yaml:"metrics"`
	Log         Log         `mapstructure:"log" yaml:"log"`
}

type API struct {
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

type Session struct {
	File string `mapstructure:"file" yaml:"file"`
}

type Credentials struct {
	File string `mapstructure:"file" yaml:"file"`
}

type MS struct {
	TestedVersion string `mapstructure:"tested_version" yaml:"tested_version"`
}

type Walk struct {
	MaxDepth int `mapstructure:"max_depth" yaml:"max_depth"`
}

type Nodes struct {
	WarnThreshold int `mapstructure:"warn_threshold" yaml:"warn_threshold"`
}

type Download struct {
	Interval time.Duration `mapstructure:"interval" yaml:"interval"`
	Timeout  time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

type Journal struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Path    string `mapstructure:"path" yaml:"path"`
}

type Telemetry struct {
	// Exporter is one of none, stdout or otlp.
	Exporter string `mapstructure:"exporter" yaml:"exporter"`
	Endpoint string `mapstructure:"endpoint" yaml:"endpoint"`
}

type Metrics struct {
	File string `mapstructure:"file" yaml:"file,omitempty"`
}

type Log struct {
	Env  string `mapstructure:"env" yaml:"env"`
	File string `mapstructure:"file" yaml:"file,omitempty"`
}

// SetDefaults registers every key so AutomaticEnv can override it.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("url", "")
	v.SetDefault("username", "")
	v.SetDefault("password", "")
	v.SetDefault("api.timeout", 30*time.Second)
	v.SetDefault("session.file", "session_id.ini")
	v.SetDefault("credentials.file", "credentials.ini")
	v.SetDefault("ms.tested_version", "2.8.0")
	v.SetDefault("walk.max_depth", 64)
	v.SetDefault("nodes.warn_threshold", 9)
	v.SetDefault("download.interval", time.Second)
	v.SetDefault("download.timeout", 300*time.Second)
	v.SetDefault("journal.enabled", true)
	v.SetDefault("journal.path", "nerve_journal.db")
	v.SetDefault("telemetry.exporter", "none")
	v.SetDefault("telemetry.endpoint", "localhost:4317")
	v.SetDefault("metrics.file", "")
	v.SetDefault("log.env", "production")
	v.SetDefault("log.file", "")
}

// Load resolves the configuration from defaults, the config file and the
// environment. An explicit path must exist; without one a missing
// nerve.yaml is not an error.
func Load(v *viper.Viper, path string) (*Config, error) {
	SetDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("nerve")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if dir, err := os.UserConfigDir(); err == nil {
			v.AddConfigPath(filepath.Join(dir, "nerve"))
		}
	}

	v.SetEnvPrefix(EnvPrefix)
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
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.API.Timeout <= 0 {
		return fmt.Errorf("api.timeout must be positive, got %s", c.API.Timeout)
	}
	if c.Walk.MaxDepth <= 0 {
		return fmt.Errorf("walk.max_depth must be positive, got %d", c.Walk.MaxDepth)
	}
	if c.Download.Interval <= 0 || c.Download.Timeout < c.Download.Interval {
		return fmt.Errorf("download.interval (%s) must be positive and not exceed download.timeout (%s)",
			c.Download.Interval, c.Download.Timeout)
	}
	switch c.Telemetry.Exporter {
	case "none", "stdout", "otlp":
	default:
		return fmt.Errorf("telemetry.exporter must be none, stdout or otlp, got %q", c.Telemetry.Exporter)
	}
	return nil
}

// LoadDotEnv loads a .env file into the process environment if present.
func LoadDotEnv(path string) {
	if err := godotenv.Load(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("ignoring %s: %v", path, err)
	}
}
