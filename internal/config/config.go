// Package config loads sharedlog settings from defaults, an optional YAML file,
// a .env file and SHAREDLOG_* environment variables, in increasing precedence.
// Command-line flags are applied on top by the CLI.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. SHAREDLOG_MONITOR_INTERVAL.
const EnvPrefix = "SHAREDLOG"

// DefaultPath is the primary log location relative to the working directory.
const DefaultPath = "./shared/shared_context.json"

// Config holds all sharedlog settings.
type Config struct {
	Path    string        `mapstructure:"path" json:"path" yaml:"path"`
	Monitor MonitorConfig `mapstructure:"monitor" json:"monitor" yaml:"monitor"`
	Lock    LockConfig    `mapstructure:"lock" json:"lock" yaml:"lock"`
	Repair  RepairConfig  `mapstructure:"repair" json:"repair" yaml:"repair"`

	// Source is the config file that was read, empty when none was found.
	Source string `mapstructure:"-" json:"source,omitempty" yaml:"source,omitempty"`
}

// MonitorConfig configures the integrity daemon.
type MonitorConfig struct {
	Interval    time.Duration `mapstructure:"interval" json:"interval" yaml:"interval"`
	Snapshot    bool          `mapstructure:"snapshot" json:"snapshot" yaml:"snapshot"`
	Watch       bool          `mapstructure:"watch" json:"watch" yaml:"watch"`
	Debounce    time.Duration `mapstructure:"debounce" json:"debounce" yaml:"debounce"`
	HistoryDB   string        `mapstructure:"history_db" json:"history_db" yaml:"history_db"`
	MetricsAddr string        `mapstructure:"metrics_addr" json:"metrics_addr" yaml:"metrics_addr"`
}

// LockConfig configures the cross-process file lock.
type LockConfig struct {
	Timeout time.Duration `mapstructure:"timeout" json:"timeout" yaml:"timeout"`
}

// RepairConfig configures the offline repair tool.
type RepairConfig struct {
	TailLines int `mapstructure:"tail_lines" json:"tail_lines" yaml:"tail_lines"`
}

// Default returns the built-in settings.
func Default() *Config {
	return &Config{
		Path: DefaultPath,
		Monitor: MonitorConfig{
			Interval: 5 * time.Second,
			Snapshot: true,
			Watch:    true,
			Debounce: 250 * time.Millisecond,
		},
		Lock:   LockConfig{Timeout: 10 * time.Second},
		Repair: RepairConfig{TailLines: 20},
	}
}

func setDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("path", d.Path)
	v.SetDefault("monitor.interval", d.Monitor.Interval)
	v.SetDefault("monitor.snapshot", d.Monitor.Snapshot)
	v.SetDefault("monitor.watch", d.Monitor.Watch)
	v.SetDefault("monitor.debounce", d.Monitor.Debounce)
	v.SetDefault("monitor.history_db", d.Monitor.HistoryDB)
	v.SetDefault("monitor.metrics_addr", d.Monitor.MetricsAddr)
	v.SetDefault("lock.timeout", d.Lock.Timeout)
	v.SetDefault("repair.tail_lines", d.Repair.TailLines)
}

// LoadDotEnv loads KEY=VALUE pairs from path into the process environment.
// Variables already set are not overridden. A missing file is not an error.
func LoadDotEnv(path string) error {
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// Load reads configuration.
//
// When configFile is set it must exist. Otherwise ./sharedlog.yaml is read if
// present. SHAREDLOG_* environment variables override file values, with dots
// in keys replaced by underscores.
func Load(configFile string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("sharedlog")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.Source = v.ConfigFileUsed()

	return cfg, nil
}

// Validate rejects settings the commands cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Path) == "" {
		errs = append(errs, errors.New("path must not be empty"))
	}
	if c.Monitor.Interval <= 0 {
		errs = append(errs, fmt.Errorf("monitor.interval must be positive, got %v", c.Monitor.Interval))
	}
	if c.Monitor.Debounce < 0 {
		errs = append(errs, fmt.Errorf("monitor.debounce must not be negative, got %v", c.Monitor.Debounce))
	}
	if c.Lock.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("lock.timeout must be positive, got %v", c.Lock.Timeout))
	}
	if c.Repair.TailLines < 0 {
		errs = append(errs, fmt.Errorf("repair.tail_lines must not be negative, got %d", c.Repair.TailLines))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}
