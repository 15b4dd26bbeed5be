// Package config loads server configuration from a YAML file and
// TASKBOARD_* environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override, e.g. TASKBOARD_LISTEN.
const EnvPrefix = "TASKBOARD"

// DatabaseFile is the name of the SQLite file inside DataDir.
const DatabaseFile = "taskboard.db"

// Config is the server configuration.
type Config struct {
	Listen    string `yaml:"listen" mapstructure:"listen"`
	DataDir   string `yaml:"data_dir" mapstructure:"data_dir"`
	StaticDir string `yaml:"static_dir" mapstructure:"static_dir"`

	// RosterCacheTTL bounds how long workspace member lists are reused when
	// resolving task assignees.
	RosterCacheTTL time.Duration `yaml:"roster_cache_ttl" mapstructure:"roster_cache_ttl"`

	// ReminderCron schedules the due-soon scan (robfig/cron syntax with seconds).
	ReminderCron         string `yaml:"reminder_cron" mapstructure:"reminder_cron"`
	ReminderHorizonHours int    `yaml:"reminder_horizon_hours" mapstructure:"reminder_horizon_hours"`

	// URLImport allows importing calendars by URL. Feeds on loopback,
	// private and link-local addresses also need URLImportPrivate.
	URLImport        bool `yaml:"url_import" mapstructure:"url_import"`
	URLImportPrivate bool `yaml:"url_import_private" mapstructure:"url_import_private"`

	// Defaults for users who have not saved their own settings.
	WeekStart string `yaml:"week_start" mapstructure:"week_start"`
	Timezone  string `yaml:"timezone" mapstructure:"timezone"`
}

// DefaultConfig returns the built-in configuration.
func DefaultConfig() *Config {
	return &Config{
		Listen:               ":8099",
		DataDir:              "/data",
		StaticDir:            "./static",
		RosterCacheTTL:       5 * time.Minute,
		ReminderCron:         "0 */15 * * * *",
		ReminderHorizonHours: 24,
		URLImport:            true,
		WeekStart:            "monday",
		Timezone:             "UTC",
	}
}

// Load reads path, if given and present, over the defaults and applies
// environment overrides.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindDefaults(v, cfg)

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			v.SetConfigFile(path)
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("reading config %s: %w", path, err)
			}
		} else if !os.IsNotExist(err) {
			return nil, fmt.Errorf("checking config %s: %w", path, err)
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}

	if err := cfg.Normalize(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// bindDefaults registers every key so that AutomaticEnv can see it during
// Unmarshal.
func bindDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("listen", cfg.Listen)
	v.SetDefault("data_dir", cfg.DataDir)
	v.SetDefault("static_dir", cfg.StaticDir)
	v.SetDefault("roster_cache_ttl", cfg.RosterCacheTTL)
	v.SetDefault("reminder_cron", cfg.ReminderCron)
	v.SetDefault("reminder_horizon_hours", cfg.ReminderHorizonHours)
	v.SetDefault("url_import", cfg.URLImport)
	v.SetDefault("url_import_private", cfg.URLImportPrivate)
	v.SetDefault("week_start", cfg.WeekStart)
	v.SetDefault("timezone", cfg.Timezone)
}

// Normalize fills empty values with defaults and validates the rest.
func (c *Config) Normalize() error {
	def := DefaultConfig()

	if c.Listen == "" {
		c.Listen = def.Listen
	}
	if c.DataDir == "" {
		c.DataDir = def.DataDir
	}
	if c.RosterCacheTTL < 0 {
		c.RosterCacheTTL = 0
	}
	if c.ReminderHorizonHours <= 0 {
		c.ReminderHorizonHours = def.ReminderHorizonHours
	}

	c.WeekStart = strings.ToLower(strings.TrimSpace(c.WeekStart))
	if c.WeekStart == "" {
		c.WeekStart = def.WeekStart
	}
	if !ValidWeekStart(c.WeekStart) {
		return fmt.Errorf("week_start must be monday or sunday, got %q", c.WeekStart)
	}

	if c.Timezone == "" {
		c.Timezone = def.Timezone
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("invalid timezone %q: %w", c.Timezone, err)
	}

	return nil
}

// ValidWeekStart reports whether s names a supported first day of the week.
func ValidWeekStart(s string) bool {
	return s == "monday" || s == "sunday"
}

// Location returns the default display timezone.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// DatabasePath returns the path of the SQLite database.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.DataDir, DatabaseFile)
}

// ReminderHorizon returns the due-soon look-ahead window.
func (c *Config) ReminderHorizon() time.Duration {
	return time.Duration(c.ReminderHorizonHours) * time.Hour
}

// WriteDefault writes the default configuration to path as YAML. An existing
// file is left untouched.
func WriteDefault(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config %s already exists", path)
	}

	data, err := yaml.Marshal(DefaultConfig().document())
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	header := []byte("# Taskboard server configuration\n")
	return os.WriteFile(path, append(header, data...), 0o644)
}

// document is the YAML form of a Config, with durations written the way
// viper reads them back.
type document struct {
	Listen               string `yaml:"listen"`
	DataDir              string `yaml:"data_dir"`
	StaticDir            string `yaml:"static_dir"`
	RosterCacheTTL       string `yaml:"roster_cache_ttl"`
	ReminderCron         string `yaml:"reminder_cron"`
	ReminderHorizonHours int    `yaml:"reminder_horizon_hours"`
	URLImport            bool   `yaml:"url_import"`
	URLImportPrivate     bool   `yaml:"url_import_private"`
	WeekStart            string `yaml:"week_start"`
	Timezone             string `yaml:"timezone"`
}

func (c *Config) document() document {
	return document{
		Listen:               c.Listen,
		DataDir:              c.DataDir,
		StaticDir:            c.StaticDir,
		RosterCacheTTL:       c.RosterCacheTTL.String(),
		ReminderCron:         c.ReminderCron,
		ReminderHorizonHours: c.ReminderHorizonHours,
		URLImport:            c.URLImport,
		URLImportPrivate:     c.URLImportPrivate,
		WeekStart:            c.WeekStart,
		Timezone:             c.Timezone,
	}
}
