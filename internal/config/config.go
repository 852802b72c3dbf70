// File: internal/config/config.go
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix of environment overrides, e.g. REPEATER_SERVER_ADDR.
const EnvPrefix = "REPEATER"

// Interface defines the contract for accessing application configuration.
type Interface interface {
	Logger() LoggerConfig
	Template() TemplateConfig
	Output() OutputConfig
	Server() ServerConfig
}

// Config holds the entire application configuration.
type Config struct {
	LoggerCfg   LoggerConfig   `mapstructure:"logger" yaml:"logger"`
	TemplateCfg TemplateConfig `mapstructure:"template" yaml:"template"`
	OutputCfg   OutputConfig   `mapstructure:"output" yaml:"output"`
	ServerCfg   ServerConfig   `mapstructure:"server" yaml:"server"`
}

func (c *Config) Logger() LoggerConfig     { return c.LoggerCfg }
func (c *Config) Template() TemplateConfig { return c.TemplateCfg }
func (c *Config) Output() OutputConfig     { return c.OutputCfg }
func (c *Config) Server() ServerConfig     { return c.ServerCfg }

// LoggerConfig holds all the configuration for the logger.
type LoggerConfig struct {
	Level       string      `mapstructure:"level" yaml:"level"`
	Format      string      `mapstructure:"format" yaml:"format"`
	AddSource   bool        `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string      `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string      `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int         `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int         `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int         `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool        `mapstructure:"compress" yaml:"compress"`
	Colors      ColorConfig `mapstructure:"colors" yaml:"colors"`
}

// ColorConfig defines the color names for different log levels.
type ColorConfig struct {
	Debug  string `mapstructure:"debug" yaml:"debug"`
	Info   string `mapstructure:"info" yaml:"info"`
	Warn   string `mapstructure:"warn" yaml:"warn"`
	Error  string `mapstructure:"error" yaml:"error"`
	DPanic string `mapstructure:"dpanic" yaml:"dpanic"`
	Panic  string `mapstructure:"panic" yaml:"panic"`
	Fatal  string `mapstructure:"fatal" yaml:"fatal"`
}

// TemplateConfig controls how templates are read and rendered.
type TemplateConfig struct {
	// ID of the <template> element holding the layout metadata.
	ID        string `mapstructure:"id" yaml:"id"`
	PageBreak string `mapstructure:"page_break" yaml:"page_break"`
	Paper     string `mapstructure:"paper" yaml:"paper"`
	// Engine is "expr" or "go".
	Engine string `mapstructure:"engine" yaml:"engine"`
	Escape bool   `mapstructure:"escape" yaml:"escape"`
	// Partials maps sub-template names to bodies for the go engine. Viper
	// lowercases map keys, so names are referenced in lowercase.
	Partials map[string]string `mapstructure:"partials" yaml:"partials"`
}

// OutputConfig controls where flushed sheets go.
type OutputConfig struct {
	Dir     string `mapstructure:"dir" yaml:"dir"`
	Pattern string `mapstructure:"pattern" yaml:"pattern"`
	Minify  bool   `mapstructure:"minify" yaml:"minify"`
}

// ServerConfig configures the HTTP surface.
type ServerConfig struct {
	Addr            string        `mapstructure:"addr" yaml:"addr"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout" yaml:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout" yaml:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
	// RateLimit is the sustained number of render requests per second; 0 disables limiting.
	RateLimit    float64 `mapstructure:"rate_limit" yaml:"rate_limit"`
	Burst        int     `mapstructure:"burst" yaml:"burst"`
	MaxBodyBytes int64   `mapstructure:"max_body_bytes" yaml:"max_body_bytes"`
}

// NewDefaultConfig creates a new configuration struct populated with default values.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// SetDefaults initializes default values for every configuration key.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "repeater")
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)
	v.SetDefault("logger.colors.debug", "cyan")
	v.SetDefault("logger.colors.info", "green")
	v.SetDefault("logger.colors.warn", "yellow")
	v.SetDefault("logger.colors.error", "red")
	v.SetDefault("logger.colors.dpanic", "magenta")
	v.SetDefault("logger.colors.panic", "magenta")
	v.SetDefault("logger.colors.fatal", "magenta")

	// -- Template --
	v.SetDefault("template.id", "h-template")
	v.SetDefault("template.page_break", "<pagebreak></pagebreak>")
	v.SetDefault("template.paper", "A4")
	v.SetDefault("template.engine", "expr")
	v.SetDefault("template.escape", true)

	// -- Output --
	v.SetDefault("output.dir", "output")
	v.SetDefault("output.pattern", "sheet-%04d.html")
	v.SetDefault("output.minify", false)

	// -- Server --
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "60s")
	v.SetDefault("server.shutdown_timeout", "10s")
	v.SetDefault("server.rate_limit", 20.0)
	v.SetDefault("server.burst", 40)
	v.SetDefault("server.max_body_bytes", 8<<20)
}

// NewConfigFromViper creates a new configuration instance from a viper object.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	if err := cfg.expandPaths(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

func (c *Config) expandPaths() error {
	var err error
	if c.OutputCfg.Dir != "" && c.OutputCfg.Dir != "stdout" {
		if c.OutputCfg.Dir, err = homedir.Expand(c.OutputCfg.Dir); err != nil {
			return fmt.Errorf("output.dir: %w", err)
		}
	}
	if c.LoggerCfg.LogFile != "" {
		if c.LoggerCfg.LogFile, err = homedir.Expand(c.LoggerCfg.LogFile); err != nil {
			return fmt.Errorf("logger.log_file: %w", err)
		}
	}
	return nil
}

// Validate checks the configuration for required fields and sane values.
func (c *Config) Validate() error {
	if err := c.TemplateCfg.Validate(); err != nil {
		return fmt.Errorf("template configuration invalid: %w", err)
	}
	if !strings.Contains(c.OutputCfg.Pattern, "%") {
		return fmt.Errorf("output.pattern must contain a verb for the sheet index, e.g. sheet-%%04d.html")
	}
	if err := c.ServerCfg.Validate(); err != nil {
		return fmt.Errorf("server configuration invalid: %w", err)
	}
	switch c.LoggerCfg.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logger.format must be console or json, got %q", c.LoggerCfg.Format)
	}
	return nil
}

// Validate checks the template settings.
func (t *TemplateConfig) Validate() error {
	if strings.TrimSpace(t.ID) == "" {
		return fmt.Errorf("id cannot be blank")
	}
	switch strings.ToLower(t.Engine) {
	case "expr", "go":
	default:
		return fmt.Errorf("engine must be expr or go, got %q", t.Engine)
	}
	return nil
}

// Validate checks the server settings.
func (s *ServerConfig) Validate() error {
	if s.RateLimit < 0 {
		return fmt.Errorf("rate_limit cannot be negative")
	}
	if s.RateLimit > 0 && s.Burst <= 0 {
		return fmt.Errorf("burst must be positive when rate_limit is set")
	}
	if s.MaxBodyBytes <= 0 {
		return fmt.Errorf("max_body_bytes must be positive")
	}
	return nil
}

// BindEnv enables REPEATER_* environment overrides for every known key.
func BindEnv(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}
