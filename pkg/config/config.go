package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Environment string           `yaml:"environment" default:"development" validate:"required,oneof=development staging production"`
	Server      ServerConfig     `yaml:"server"`
	Logging     LoggingConfig    `yaml:"logging"`
	Compliance  ComplianceConfig `yaml:"compliance"`
	Cache       CacheConfig      `yaml:"cache"`
	RateLimit   RateLimitConfig  `yaml:"rate_limit"`
	Provider    ProviderConfig   `yaml:"provider"`
	Workflow    WorkflowConfig   `yaml:"workflow"`
	Audit       AuditConfig      `yaml:"audit"`
	Metrics     MetricsConfig    `yaml:"metrics"`
}

type ServerConfig struct {
	Port            int           `yaml:"port" default:"8080" validate:"gt=0,lte=65535"`
	ReadTimeout     time.Duration `yaml:"read_timeout" default:"10s"`
	WriteTimeout    time.Duration `yaml:"write_timeout" default:"30s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"15s"`
}

type LoggingConfig struct {
	Level  string `yaml:"level" default:"info" validate:"oneof=debug info warn error fatal panic"`
	Format string `yaml:"format" default:"json" validate:"oneof=json console"`
	Output string `yaml:"output" default:"stdout"`
}

// ComplianceConfig carries the screening policy. The lists are policy data,
// not code; changing them must never require a rebuild.
type ComplianceConfig struct {
	Blocklist         []string                 `yaml:"blocklist"`
	Watchlist         map[string]WatchlistItem `yaml:"watchlist" validate:"dive"`
	OwnershipPatterns map[string]string        `yaml:"ownership_patterns"`
}

type WatchlistItem struct {
	Alert     string `yaml:"alert"`
	Concern   string `yaml:"concern"`
	RiskLevel string `yaml:"risk_level" validate:"omitempty,oneof=LOW MEDIUM HIGH"`
}

type CacheConfig struct {
	Backend       string        `yaml:"backend" default:"memory" validate:"oneof=memory redis"`
	TTL           time.Duration `yaml:"ttl" default:"300s" validate:"gt=0"`
	SweepInterval time.Duration `yaml:"sweep_interval" default:"60s"`
	Redis         RedisConfig   `yaml:"redis"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr" default:"localhost:6379"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type RateLimitConfig struct {
	Window   time.Duration `yaml:"window" default:"60s" validate:"gt=0"`
	MaxCalls int           `yaml:"max_calls" default:"30" validate:"gt=0"`
}

type ProviderConfig struct {
	BaseURL      string        `yaml:"base_url"`
	FetchTimeout time.Duration `yaml:"fetch_timeout" default:"15s"`
	Workers      int           `yaml:"workers" default:"8" validate:"gt=0"`
	QueueSize    int           `yaml:"queue_size" default:"64"`
}

type WorkflowConfig struct {
	ApprovalTimeout time.Duration   `yaml:"approval_timeout" default:"2m" validate:"gt=0"`
	Approvals       ApprovalsConfig `yaml:"approvals"`
}

// ApprovalsConfig configures the optional Kafka channel for human approval
// decisions. When disabled, holds resolve only through the HTTP endpoint.
type ApprovalsConfig struct {
	Enabled bool     `yaml:"enabled"`
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic" default:"marketgate.approvals"`
	GroupID string   `yaml:"group_id" default:"marketgate"`
}

type AuditConfig struct {
	Kafka      KafkaAuditConfig      `yaml:"kafka"`
	ClickHouse ClickHouseAuditConfig `yaml:"clickhouse"`
}

type KafkaAuditConfig struct {
	Enabled       bool     `yaml:"enabled"`
	Brokers       []string `yaml:"brokers"`
	Topic         string   `yaml:"topic" default:"marketgate.audit"`
	SecurityTopic string   `yaml:"security_topic" default:"marketgate.audit.security"`
}

type ClickHouseAuditConfig struct {
	Enabled      bool          `yaml:"enabled"`
	Host         string        `yaml:"host" default:"localhost"`
	Port         int           `yaml:"port" default:"9000"`
	Database     string        `yaml:"database" default:"marketgate"`
	User         string        `yaml:"user" default:"default"`
	Password     string        `yaml:"password"`
	DialTimeout  time.Duration `yaml:"dial_timeout" default:"5s"`
	BatchTimeout time.Duration `yaml:"batch_timeout" default:"2s"`
}

type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" default:"true"`
	Path    string `yaml:"path" default:"/metrics"`
}

// Load reads a YAML config file, applies defaults, and validates the result.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("apply defaults: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &c, nil
}

// LoadWithEnv loads config from YAML and overrides secrets and addresses
// with environment variables.
func LoadWithEnv(path string) (*Config, error) {
	c, err := Load(path)
	if err != nil {
		return nil, err
	}

	if v := os.Getenv("MARKETGATE_PROVIDER_BASE_URL"); v != "" {
		c.Provider.BaseURL = v
	}
	if v := os.Getenv("MARKETGATE_REDIS_ADDR"); v != "" {
		c.Cache.Redis.Addr = v
	}
	if v := os.Getenv("MARKETGATE_REDIS_PASSWORD"); v != "" {
		c.Cache.Redis.Password = v
	}
	if v := os.Getenv("MARKETGATE_KAFKA_BROKERS"); v != "" {
		c.Audit.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("MARKETGATE_CLICKHOUSE_PASSWORD"); v != "" {
		c.Audit.ClickHouse.Password = v
	}
	return c, nil
}

// Validate checks structural constraints plus the cross-field rules the tag
// language cannot express.
func (c *Config) Validate() error {
	v := validator.New()
	if err := v.Struct(c); err != nil {
		return err
	}
	if c.Audit.Kafka.Enabled && len(c.Audit.Kafka.Brokers) == 0 {
		return fmt.Errorf("audit.kafka.brokers cannot be empty when kafka audit is enabled")
	}
	if c.Workflow.Approvals.Enabled && len(c.Workflow.Approvals.Brokers) == 0 {
		return fmt.Errorf("workflow.approvals.brokers cannot be empty when the approvals consumer is enabled")
	}
	if c.Cache.Backend == "redis" && c.Cache.Redis.Addr == "" {
		return fmt.Errorf("cache.redis.addr is required for the redis backend")
	}
	return nil
}
