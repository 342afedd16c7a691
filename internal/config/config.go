package config

import (
	"fmt"
	"net/url"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Database   DatabaseConfig   `yaml:"database"`
	Pipeline   PipelineConfig   `yaml:"pipeline"`
	Retry      RetryConfig      `yaml:"retry"`
	Logging    LoggingConfig    `yaml:"logging"`
	Monitoring MonitoringConfig `yaml:"monitoring"`
}

type DatabaseConfig struct {
	URL                 string        `yaml:"url"`
	MaxConns            int32         `yaml:"max_conns"`
	MinConns            int32         `yaml:"min_conns"`
	ConnectTimeout      time.Duration `yaml:"connect_timeout"`
	HealthCheckInterval time.Duration `yaml:"health_check_interval"`
}

type PipelineConfig struct {
	Name          string `yaml:"name"`
	SummaryStages *bool  `yaml:"summary_stages"`
}

type RetryConfig struct {
	MaxAttempts int           `yaml:"max_attempts"`
	BaseDelay   time.Duration `yaml:"base_delay"`
	MaxDelay    time.Duration `yaml:"max_delay"`
}

type LoggingConfig struct {
	Level      string `yaml:"level"`
	Format     string `yaml:"format"`
	EventTable *bool  `yaml:"event_table"`
}

type MonitoringConfig struct {
	PrometheusEnabled bool   `yaml:"prometheus_enabled"`
	ListenAddress     string `yaml:"listen_address"`
}

// UnmarshalYAML implements custom unmarshaling for DatabaseConfig so
// timeouts can be written as duration strings ("5s", "1m") in yaml.
func (d *DatabaseConfig) UnmarshalYAML(value *yaml.Node) error {
	type tempConfig struct {
		URL                 string `yaml:"url"`
		MaxConns            int32  `yaml:"max_conns"`
		MinConns            int32  `yaml:"min_conns"`
		ConnectTimeout      string `yaml:"connect_timeout"`
		HealthCheckInterval string `yaml:"health_check_interval"`
	}

	var temp tempConfig
	if err := value.Decode(&temp); err != nil {
		return err
	}

	d.URL = temp.URL
	d.MaxConns = temp.MaxConns
	d.MinConns = temp.MinConns

	var err error
	if d.ConnectTimeout, err = parseDuration(temp.ConnectTimeout); err != nil {
		return fmt.Errorf("invalid connect_timeout: %w", err)
	}
	if d.HealthCheckInterval, err = parseDuration(temp.HealthCheckInterval); err != nil {
		return fmt.Errorf("invalid health_check_interval: %w", err)
	}

	return nil
}

// UnmarshalYAML implements custom unmarshaling for RetryConfig
func (r *RetryConfig) UnmarshalYAML(value *yaml.Node) error {
	type tempConfig struct {
		MaxAttempts int    `yaml:"max_attempts"`
		BaseDelay   string `yaml:"base_delay"`
		MaxDelay    string `yaml:"max_delay"`
	}

	var temp tempConfig
	if err := value.Decode(&temp); err != nil {
		return err
	}

	r.MaxAttempts = temp.MaxAttempts

	var err error
	if r.BaseDelay, err = parseDuration(temp.BaseDelay); err != nil {
		return fmt.Errorf("invalid base_delay: %w", err)
	}
	if r.MaxDelay, err = parseDuration(temp.MaxDelay); err != nil {
		return fmt.Errorf("invalid max_delay: %w", err)
	}

	return nil
}

func parseDuration(s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	return time.ParseDuration(s)
}

// Load reads configuration from path, applies environment overrides and
// defaults, and validates the result. An empty path skips the file and
// configures from environment plus defaults alone.
func Load(path string) (*Config, error) {
	var cfg Config

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	cfg.applyEnvOverrides()
	cfg.Normalize()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// applyEnvOverrides lets deployment environment variables win over the
// file. DATABASE_URL takes the whole connection string; otherwise the
// DB_* variables compose one. LOG_LEVEL overrides logging.level.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("DATABASE_URL"); v != "" {
		c.Database.URL = v
	} else if host := os.Getenv("DB_HOST"); host != "" {
		c.Database.URL = composeDatabaseURL(host)
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
}

func composeDatabaseURL(host string) string {
	port := os.Getenv("DB_PORT")
	if port == "" {
		port = "5432"
	}
	name := os.Getenv("DB_NAME")
	if name == "" {
		name = "retail_dw"
	}
	user := os.Getenv("DB_USER")
	if user == "" {
		user = "postgres"
	}

	auth := url.User(user)
	if password := os.Getenv("DB_PASSWORD"); password != "" {
		auth = url.UserPassword(user, password)
	}

	u := url.URL{
		Scheme: "postgresql",
		User:   auth,
		Host:   fmt.Sprintf("%s:%s", host, port),
		Path:   "/" + name,
	}
	return u.String()
}

// Normalize fills defaults for everything left unset
func (c *Config) Normalize() {
	if c.Database.MaxConns == 0 {
		c.Database.MaxConns = 10
	}
	if c.Database.MinConns == 0 {
		c.Database.MinConns = 2
	}
	if c.Database.ConnectTimeout == 0 {
		c.Database.ConnectTimeout = 5 * time.Second
	}
	if c.Database.HealthCheckInterval == 0 {
		c.Database.HealthCheckInterval = 10 * time.Second
	}

	if c.Pipeline.Name == "" {
		c.Pipeline.Name = "gold_monthly_rollup"
	}
	if c.Pipeline.SummaryStages == nil {
		enabled := true
		c.Pipeline.SummaryStages = &enabled
	}

	if c.Retry.MaxAttempts == 0 {
		c.Retry.MaxAttempts = 3
	}
	if c.Retry.BaseDelay == 0 {
		c.Retry.BaseDelay = time.Second
	}
	if c.Retry.MaxDelay == 0 {
		c.Retry.MaxDelay = 30 * time.Second
	}

	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}
	if c.Logging.EventTable == nil {
		enabled := true
		c.Logging.EventTable = &enabled
	}

	if c.Monitoring.ListenAddress == "" {
		c.Monitoring.ListenAddress = ":9090"
	}
}

func (c *Config) Validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("database url is required (set database.url, DATABASE_URL or DB_HOST)")
	}
	parsed, err := url.Parse(c.Database.URL)
	if err != nil {
		return fmt.Errorf("invalid database url: %w", err)
	}
	if parsed.Scheme != "postgres" && parsed.Scheme != "postgresql" {
		return fmt.Errorf("database url must use postgres or postgresql scheme, got: %s", parsed.Scheme)
	}

	if c.Database.MinConns > c.Database.MaxConns {
		return fmt.Errorf("min_conns (%d) exceeds max_conns (%d)", c.Database.MinConns, c.Database.MaxConns)
	}

	if c.Retry.MaxAttempts < 1 {
		return fmt.Errorf("invalid max_attempts: %d", c.Retry.MaxAttempts)
	}
	if c.Retry.BaseDelay <= 0 {
		return fmt.Errorf("invalid base_delay: %v", c.Retry.BaseDelay)
	}
	if c.Retry.MaxDelay < c.Retry.BaseDelay {
		return fmt.Errorf("max_delay (%v) is below base_delay (%v)", c.Retry.MaxDelay, c.Retry.BaseDelay)
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warning": true, "error": true, "critical": true}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("invalid logging level: %s", c.Logging.Level)
	}
	if c.Logging.Format != "text" && c.Logging.Format != "json" {
		return fmt.Errorf("invalid logging format: %s (must be text or json)", c.Logging.Format)
	}

	return nil
}

// SummaryStagesEnabled reports whether the post-unit summary stages run
func (c *Config) SummaryStagesEnabled() bool {
	return c.Pipeline.SummaryStages != nil && *c.Pipeline.SummaryStages
}

// EventTableEnabled reports whether events are persisted to ops.pipeline_logs
func (c *Config) EventTableEnabled() bool {
	return c.Logging.EventTable != nil && *c.Logging.EventTable
}
