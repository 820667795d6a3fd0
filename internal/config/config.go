// Package config provides Viper-based configuration loading for the offer
// console host.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// DatabaseConfig holds PostgreSQL connection settings for the key price
// store.
type DatabaseConfig struct {
	// Enabled selects the PostgreSQL store; when false key prices live in memory.
	Enabled         bool          `mapstructure:"enabled"`
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Name            string        `mapstructure:"name"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
}

// DSN returns the PostgreSQL connection string.
//
// Precondition: Host, Port, User, and Name must be non-empty.
// Postcondition: Returns a valid PostgreSQL DSN string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Name, d.SSLMode,
	)
}

// ConsoleConfig holds the telnet console listener settings.
type ConsoleConfig struct {
	// Host is the bind address for the console listener.
	Host string `mapstructure:"host"`
	// Port is the TCP port for the console listener.
	Port int `mapstructure:"port"`
	// ReadTimeout is the per-read timeout for console connections.
	ReadTimeout time.Duration `mapstructure:"read_timeout"`
	// WriteTimeout is the per-write timeout for console connections.
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	// SnapshotDir holds the inventory snapshot files the "load" command may
	// read; empty disables loading.
	SnapshotDir string `mapstructure:"snapshot_dir"`
}

// Addr returns the "host:port" listen address.
func (c ConsoleConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: "debug", "info", "warn", "error".
	Level string `mapstructure:"level"`
	// Format is the log output format: "json" or "console".
	Format string `mapstructure:"format"`
}

// MetricsConfig holds the Prometheus endpoint settings.
type MetricsConfig struct {
	// Addr is the listen address of the /metrics endpoint; empty disables it.
	Addr string `mapstructure:"addr"`
}

// OfferConfig holds the pacing and debounce settings of the offer core.
type OfferConfig struct {
	// ApplyInterval is the spacing between successive offer mutations.
	ApplyInterval time.Duration `mapstructure:"apply_interval"`
	// SummaryStaleAfter is the summary age that forces an immediate recompute.
	SummaryStaleAfter time.Duration `mapstructure:"summary_stale_after"`
	// SummaryDeferDelay is the delay of a deferred summary recompute.
	SummaryDeferDelay time.Duration `mapstructure:"summary_defer_delay"`
	// SummarySmallOfferLimit is the item count at or below which the summary
	// is always recomputed immediately.
	SummarySmallOfferLimit int `mapstructure:"summary_small_offer_limit"`
}

// ScriptingConfig holds Lua predicate settings.
type ScriptingConfig struct {
	// PredicateDir is scanned for *.lua predicate scripts; empty disables scripting.
	PredicateDir string `mapstructure:"predicate_dir"`
	// InstructionLimit bounds the VM instructions of one predicate call.
	InstructionLimit int `mapstructure:"instruction_limit"`
}

// Config is the top-level application configuration.
type Config struct {
	Logging   LoggingConfig   `mapstructure:"logging"`
	Console   ConsoleConfig   `mapstructure:"console"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	Offer     OfferConfig     `mapstructure:"offer"`
	Scripting ScriptingConfig `mapstructure:"scripting"`
}

// Validate checks all configuration invariants.
//
// Postcondition: Returns nil if configuration is valid, or an error describing all violations.
func (c Config) Validate() error {
	var errs []string

	if err := validateLogging(c.Logging); err != nil {
		errs = append(errs, err.Error())
	}
	if err := validateConsole(c.Console); err != nil {
		errs = append(errs, err.Error())
	}
	if c.Database.Enabled {
		if err := validateDatabase(c.Database); err != nil {
			errs = append(errs, err.Error())
		}
	}
	if err := validateOffer(c.Offer); err != nil {
		errs = append(errs, err.Error())
	}
	if c.Scripting.InstructionLimit < 0 {
		errs = append(errs, fmt.Sprintf("scripting.instruction_limit must be >= 0, got %d", c.Scripting.InstructionLimit))
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

func validateDatabase(d DatabaseConfig) error {
	var errs []string
	if d.Host == "" {
		errs = append(errs, "database.host must not be empty")
	}
	if d.Port < 1 || d.Port > 65535 {
		errs = append(errs, fmt.Sprintf("database.port must be 1-65535, got %d", d.Port))
	}
	if d.User == "" {
		errs = append(errs, "database.user must not be empty")
	}
	if d.Name == "" {
		errs = append(errs, "database.name must not be empty")
	}
	validSSL := map[string]bool{"disable": true, "require": true, "verify-ca": true, "verify-full": true}
	if !validSSL[d.SSLMode] {
		errs = append(errs, fmt.Sprintf("database.sslmode must be one of [disable, require, verify-ca, verify-full], got %q", d.SSLMode))
	}
	if d.MaxConns < 1 {
		errs = append(errs, fmt.Sprintf("database.max_conns must be >= 1, got %d", d.MaxConns))
	}
	if d.MinConns < 0 {
		errs = append(errs, fmt.Sprintf("database.min_conns must be >= 0, got %d", d.MinConns))
	}
	if d.MinConns > d.MaxConns {
		errs = append(errs, "database.min_conns must not exceed database.max_conns")
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

func validateConsole(c ConsoleConfig) error {
	var errs []string
	if c.Port < 1 || c.Port > 65535 {
		errs = append(errs, fmt.Sprintf("console.port must be 1-65535, got %d", c.Port))
	}
	if c.ReadTimeout < 0 {
		errs = append(errs, "console.read_timeout must not be negative")
	}
	if c.WriteTimeout < 0 {
		errs = append(errs, "console.write_timeout must not be negative")
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

func validateOffer(o OfferConfig) error {
	var errs []string
	if o.ApplyInterval <= 0 {
		errs = append(errs, fmt.Sprintf("offer.apply_interval must be > 0, got %s", o.ApplyInterval))
	}
	if o.SummaryStaleAfter <= 0 {
		errs = append(errs, fmt.Sprintf("offer.summary_stale_after must be > 0, got %s", o.SummaryStaleAfter))
	}
	if o.SummaryDeferDelay <= 0 {
		errs = append(errs, fmt.Sprintf("offer.summary_defer_delay must be > 0, got %s", o.SummaryDeferDelay))
	}
	if o.SummarySmallOfferLimit < 0 {
		errs = append(errs, fmt.Sprintf("offer.summary_small_offer_limit must be >= 0, got %d", o.SummarySmallOfferLimit))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

func validateLogging(l LoggingConfig) error {
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[l.Level] {
		return fmt.Errorf("logging.level must be one of [debug, info, warn, error], got %q", l.Level)
	}
	validFormats := map[string]bool{"json": true, "console": true}
	if !validFormats[l.Format] {
		return fmt.Errorf("logging.format must be one of [json, console], got %q", l.Format)
	}
	return nil
}

// Load reads configuration from the given file path, applies environment variable
// overrides, and validates the result.
//
// Precondition: path must be a valid file path to a YAML configuration file.
// Postcondition: Returns a valid Config or a non-nil error.
func Load(path string) (Config, error) {
	v := NewViper()
	v.SetConfigFile(path)

	if err := v.ReadInConfig(); err != nil {
		return Config{}, fmt.Errorf("reading config file: %w", err)
	}
	return LoadFromViper(v)
}

// NewViper returns a Viper instance with defaults and OFFER_ environment
// overrides applied, e.g. OFFER_OFFER_APPLY_INTERVAL for offer.apply_interval.
func NewViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix("OFFER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)
	return v
}

// LoadFromViper builds a Config from an already-configured Viper instance.
//
// Precondition: v must be non-nil and have configuration values set.
// Postcondition: Returns a valid Config or a non-nil error.
func LoadFromViper(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshalling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("console.host", "127.0.0.1")
	v.SetDefault("console.port", 4040)
	v.SetDefault("console.read_timeout", "10m")
	v.SetDefault("console.write_timeout", "30s")
	v.SetDefault("console.snapshot_dir", "")

	v.SetDefault("database.enabled", false)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "offer")
	v.SetDefault("database.password", "offer")
	v.SetDefault("database.name", "offer")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_conns", 4)
	v.SetDefault("database.min_conns", 1)
	v.SetDefault("database.max_conn_lifetime", "1h")

	v.SetDefault("metrics.addr", "")

	v.SetDefault("offer.apply_interval", "50ms")
	v.SetDefault("offer.summary_stale_after", "200ms")
	v.SetDefault("offer.summary_defer_delay", "400ms")
	v.SetDefault("offer.summary_small_offer_limit", 204)

	v.SetDefault("scripting.predicate_dir", "")
	v.SetDefault("scripting.instruction_limit", 100000)
}
