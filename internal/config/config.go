// Package config loads process-wide settings from a YAML file and environment
// variables. Settings are read once at startup; the resulting Config is
// passed explicitly to every component that needs it.
package config

import (
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/spf13/viper"
)

const (
	LogLevelDebug = "debug"
	LogLevelInfo  = "info"
	LogLevelWarn  = "warn"
	LogLevelError = "error"
)

type DevOpsConfig struct {
	// Organization is the Azure DevOps organization name.
	Organization string `mapstructure:"organization"`

	// Projects is a comma-separated allow-list of project names.
	Projects string `mapstructure:"projects"`

	// DefaultProject is used when a tool call names no project. Falls back
	// to the first entry of Projects.
	DefaultProject string `mapstructure:"default_project"`

	// MIClientID selects a user-assigned managed identity. Empty means the
	// system-assigned identity (or a static token for local development).
	MIClientID string `mapstructure:"mi_client_id"`
}

type RetryConfig struct {
	Attempts int           `mapstructure:"attempts"`
	Delay    time.Duration `mapstructure:"delay"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

type RateLimitConfig struct {
	MaxRequests int           `mapstructure:"max_requests"`
	Window      time.Duration `mapstructure:"window"`
}

type BreakerConfig struct {
	FailureThreshold int           `mapstructure:"failure_threshold"`
	Cooldown         time.Duration `mapstructure:"cooldown"`
	SuccessThreshold int           `mapstructure:"success_threshold"`
}

type ServerConfig struct {
	Address string `mapstructure:"address"`
}

type LoggingConfig struct {
	Level string `mapstructure:"level"`
}

type Config struct {
	DevOps    DevOpsConfig    `mapstructure:"devops"`
	Retry     RetryConfig     `mapstructure:"retry"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Breaker   BreakerConfig   `mapstructure:"breaker"`
	Server    ServerConfig    `mapstructure:"server"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// Load reads configuration from ./config.yaml (if present) and environment
// variables (DEVOPS_ORGANIZATION, RETRY_ATTEMPTS, ...), applies defaults,
// and validates the result.
func Load() (*Config, error) {
	v := viper.New()

	v.SetDefault("retry.attempts", 3)
	v.SetDefault("retry.delay", "2s")
	v.SetDefault("retry.timeout", "30s")
	v.SetDefault("rate_limit.max_requests", 30)
	v.SetDefault("rate_limit.window", "60s")
	v.SetDefault("breaker.failure_threshold", 5)
	v.SetDefault("breaker.cooldown", "60s")
	v.SetDefault("breaker.success_threshold", 1)
	v.SetDefault("server.address", ":8080")
	v.SetDefault("logging.level", LogLevelInfo)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Environment-only keys need explicit binding for Unmarshal to see them.
	for _, key := range []string{
		"devops.organization", "devops.projects", "devops.default_project",
		"devops.mi_client_id", "retry.attempts", "retry.delay", "retry.timeout",
		"rate_limit.max_requests", "rate_limit.window",
		"breaker.failure_threshold", "breaker.cooldown", "breaker.success_threshold",
		"server.address", "logging.level",
	} {
		_ = v.BindEnv(key)
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// AllowedProjects returns the parsed project allow-list.
func (c *Config) AllowedProjects() []string {
	var projects []string
	for _, p := range strings.Split(c.DevOps.Projects, ",") {
		if p = strings.TrimSpace(p); p != "" {
			projects = append(projects, p)
		}
	}
	if len(projects) == 0 && c.DevOps.DefaultProject != "" {
		projects = []string{c.DevOps.DefaultProject}
	}
	return projects
}

// Default returns the project used when a call names none.
func (c *Config) Default() string {
	if c.DevOps.DefaultProject != "" {
		return c.DevOps.DefaultProject
	}
	if projects := c.AllowedProjects(); len(projects) > 0 {
		return projects[0]
	}
	return ""
}

func (c *Config) Validate() error {
	return validation.Errors{
		"devops.organization": validation.Validate(c.DevOps.Organization, validation.Required),
		"logging.level": validation.Validate(c.Logging.Level,
			validation.Required,
			validation.In(LogLevelDebug, LogLevelInfo, LogLevelWarn, LogLevelError),
		),
		// Required precedes Min so explicit zeros are rejected; ozzo skips
		// non-Required rules on zero values.
		"retry.attempts":          validation.Validate(c.Retry.Attempts, validation.Required, validation.Min(1)),
		"retry.delay":             validation.Validate(int64(c.Retry.Delay), validation.Required, validation.Min(int64(1))),
		"retry.timeout":           validation.Validate(int64(c.Retry.Timeout), validation.Required, validation.Min(int64(1))),
		"rate_limit.max_requests": validation.Validate(c.RateLimit.MaxRequests, validation.Required, validation.Min(1)),
		"rate_limit.window":       validation.Validate(int64(c.RateLimit.Window), validation.Required, validation.Min(int64(1))),
		"breaker.failure_threshold": validation.Validate(c.Breaker.FailureThreshold,
			validation.Required, validation.Min(1)),
		"breaker.success_threshold": validation.Validate(c.Breaker.SuccessThreshold,
			validation.Required, validation.Min(1)),
		"breaker.cooldown": validation.Validate(int64(c.Breaker.Cooldown), validation.Required, validation.Min(int64(1))),
		"server.address":   validation.Validate(c.Server.Address, validation.Required),
	}.Filter()
}
