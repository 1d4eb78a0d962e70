// Package config loads the bs1200ctl configuration file.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/roffe/gobs1200"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Adapter      AdapterConfig `yaml:"adapter"`
	Units        []int         `yaml:"units"`
	Scan         ScanConfig    `yaml:"scan"`
	OpenAttempts uint          `yaml:"open_attempts"`
	Log          LogConfig     `yaml:"log"`
	Metrics      MetricsConfig `yaml:"metrics"`
	Redis        RedisConfig   `yaml:"redis"`
}

type AdapterConfig struct {
	Name     string            `yaml:"name"`
	Port     string            `yaml:"port"`
	Baudrate int               `yaml:"baudrate"`
	CANRate  float64           `yaml:"canrate"`
	Extended bool              `yaml:"extended"`
	Options  map[string]string `yaml:"options"`
}

type ScanConfig struct {
	MaxFrames int           `yaml:"max_frames"`
	Timeout   time.Duration `yaml:"timeout"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Listen  string `yaml:"listen"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Channel  string `yaml:"channel"`
	History  int64  `yaml:"history"`
}

func Default() *Config {
	return &Config{
		Adapter: AdapterConfig{
			Name:     "SocketCAN",
			Port:     "can0",
			Baudrate: 115200,
			CANRate:  1000,
			Options:  map[string]string{},
		},
		Units: []int{1},
		Scan: ScanConfig{
			MaxFrames: bs1200.DefaultMaxScanFrames,
			Timeout:   bs1200.DefaultScanTimeout,
		},
		OpenAttempts: 1,
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Metrics: MetricsConfig{
			Listen: ":9120",
		},
		Redis: RedisConfig{
			Addr:    "localhost:6379",
			Channel: "bs1200.readings",
			History: 1000,
		},
	}
}

// Load reads path on top of the defaults and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if len(c.Units) == 0 {
		return fmt.Errorf("no units configured")
	}
	for _, u := range c.Units {
		if u < bs1200.MinUnitID || u > bs1200.MaxUnitID {
			return &bs1200.UnitIDError{ID: u}
		}
	}
	if c.Scan.MaxFrames < 0 || c.Scan.Timeout < 0 {
		return fmt.Errorf("scan bounds must not be negative")
	}
	if c.Scan.MaxFrames == 0 && c.Scan.Timeout == 0 {
		return fmt.Errorf("scan needs max_frames or timeout")
	}
	if c.OpenAttempts == 0 {
		return fmt.Errorf("open_attempts must be at least 1")
	}
	if _, err := logrus.ParseLevel(c.Log.Level); err != nil {
		return err
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("unknown log format %q", c.Log.Format)
	}
	return nil
}

// AdapterConfig converts the adapter section for bs1200.NewAdapter.
func (c *Config) AdapterConfig() *bs1200.AdapterConfig {
	opts := make(map[string]string, len(c.Adapter.Options))
	for k, v := range c.Adapter.Options {
		opts[k] = v
	}
	return &bs1200.AdapterConfig{
		Port:             c.Adapter.Port,
		PortBaudrate:     c.Adapter.Baudrate,
		CANRate:          c.Adapter.CANRate,
		UseExtendedID:    c.Adapter.Extended,
		AdditionalConfig: opts,
	}
}

// Logger builds a logrus logger from the log section.
func (c *Config) Logger() *logrus.Logger {
	l := logrus.New()
	level, err := logrus.ParseLevel(c.Log.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	l.SetLevel(level)
	if c.Log.Format == "json" {
		l.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: "2006-01-02 15:04:05.000",
		})
	} else {
		l.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "2006-01-02 15:04:05.000",
		})
	}
	return l
}
