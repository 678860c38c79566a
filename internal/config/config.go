// Package config loads service configuration from the environment, an
// optional .env file and an optional YAML overlay.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the root configuration of the marketplace service.
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Database    DatabaseConfig    `yaml:"database"`
	Logging     LoggingConfig     `yaml:"logging"`
	Auth        AuthConfig        `yaml:"auth"`
	RateLimit   RateLimitConfig   `yaml:"rate_limit"`
	Redis       RedisConfig       `yaml:"redis"`
	Marketplace MarketplaceConfig `yaml:"marketplace"`
}

type ServerConfig struct {
	Host            string        `env:"SERVER_HOST,default=0.0.0.0" yaml:"host"`
	Port            int           `env:"SERVER_PORT,default=8080" yaml:"port"`
	ReadTimeout     time.Duration `env:"SERVER_READ_TIMEOUT,default=15s" yaml:"read_timeout"`
	WriteTimeout    time.Duration `env:"SERVER_WRITE_TIMEOUT,default=15s" yaml:"write_timeout"`
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT,default=10s" yaml:"shutdown_timeout"`
	CORSOrigins     []string      `env:"CORS_ALLOWED_ORIGINS,default=*" yaml:"cors_origins"`
	// AuditLogPath appends audit entries as JSON lines when set.
	AuditLogPath string `env:"AUDIT_LOG_PATH" yaml:"audit_log_path"`
}

// Addr returns the listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

type DatabaseConfig struct {
	// Driver is "memory" or "postgres".
	Driver          string        `env:"DATABASE_DRIVER,default=memory" yaml:"driver"`
	DSN             string        `env:"DATABASE_URL" yaml:"dsn"`
	MaxOpenConns    int           `env:"DATABASE_MAX_OPEN_CONNS,default=20" yaml:"max_open_conns"`
	MaxIdleConns    int           `env:"DATABASE_MAX_IDLE_CONNS,default=5" yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `env:"DATABASE_CONN_MAX_LIFETIME,default=30m" yaml:"conn_max_lifetime"`
	MigrateOnStart  bool          `env:"DATABASE_MIGRATE_ON_START,default=true" yaml:"migrate_on_start"`
}

type LoggingConfig struct {
	Level      string `env:"LOG_LEVEL,default=info" yaml:"level"`
	Format     string `env:"LOG_FORMAT,default=json" yaml:"format"`
	Output     string `env:"LOG_OUTPUT,default=stdout" yaml:"output"`
	FilePrefix string `env:"LOG_FILE_PREFIX,default=somoo" yaml:"file_prefix"`
}

type AuthConfig struct {
	JWTSecret string        `env:"JWT_SECRET" yaml:"jwt_secret"`
	TokenTTL  time.Duration `env:"JWT_TOKEN_TTL,default=24h" yaml:"token_ttl"`
	Issuer    string        `env:"JWT_ISSUER,default=somoo" yaml:"issuer"`
	// AdminEmail and AdminPassword seed an administrator on start when set.
	AdminEmail    string `env:"ADMIN_EMAIL" yaml:"admin_email"`
	AdminPassword string `env:"ADMIN_PASSWORD" yaml:"admin_password"`
}

type RateLimitConfig struct {
	Enabled           bool `env:"RATE_LIMIT_ENABLED,default=true" yaml:"enabled"`
	RequestsPerMinute int  `env:"RATE_LIMIT_RPM,default=120" yaml:"requests_per_minute"`
	Burst             int  `env:"RATE_LIMIT_BURST,default=20" yaml:"burst"`
}

type RedisConfig struct {
	Addr     string `env:"REDIS_ADDR" yaml:"addr"`
	Password string `env:"REDIS_PASSWORD" yaml:"password"`
	DB       int    `env:"REDIS_DB,default=0" yaml:"db"`
}

// Enabled reports whether a Redis backend is configured.
func (r RedisConfig) Enabled() bool { return strings.TrimSpace(r.Addr) != "" }

type MarketplaceConfig struct {
	LeaderPercent    int64         `env:"SPLIT_LEADER_PERCENT,default=30" yaml:"leader_percent"`
	PlatformPercent  int64         `env:"SPLIT_PLATFORM_PERCENT,default=10" yaml:"platform_percent"`
	MemberPercent    int64         `env:"SPLIT_MEMBER_PERCENT,default=60" yaml:"member_percent"`
	GroupMaxMembers  int           `env:"GROUP_MAX_MEMBERS,default=10" yaml:"group_max_members"`
	ProposalTTL      time.Duration `env:"PROPOSAL_TTL,default=168h" yaml:"proposal_ttl"`
	AssignmentTTL    time.Duration `env:"ASSIGNMENT_TTL,default=72h" yaml:"assignment_ttl"`
	IdempotencyTTL   time.Duration `env:"IDEMPOTENCY_TTL,default=24h" yaml:"idempotency_ttl"`
	ExpirySchedule   string        `env:"PROPOSAL_EXPIRY_SCHEDULE,default=@every 1m" yaml:"expiry_schedule"`
	AssignmentSweep  string        `env:"ASSIGNMENT_SWEEP_SCHEDULE,default=@every 5m" yaml:"assignment_sweep"`
	MaxMessageLength int           `env:"CHAT_MAX_MESSAGE_LENGTH,default=4000" yaml:"max_message_length"`
}

// Load reads an optional .env file, decodes the environment and applies the
// YAML overlay named by SOMOO_CONFIG_FILE.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	cfg := &Config{}
	if err := envdecode.Decode(cfg); err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return nil, fmt.Errorf("decode environment: %w", err)
	}
	if path := strings.TrimSpace(os.Getenv("SOMOO_CONFIG_FILE")); path != "" {
		if err := cfg.ApplyFile(path); err != nil {
			return nil, err
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyFile overlays values from a YAML file. Keys absent from the file keep
// their current values.
func (c *Config) ApplyFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	return c.ApplyYAML(data)
}

func (c *Config) ApplyYAML(data []byte) error {
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	return nil
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	m := c.Marketplace
	if m.LeaderPercent < 0 || m.PlatformPercent < 0 || m.MemberPercent < 0 {
		return fmt.Errorf("split percentages must not be negative")
	}
	if sum := m.LeaderPercent + m.PlatformPercent + m.MemberPercent; sum != 100 {
		return fmt.Errorf("split percentages must sum to 100, got %d", sum)
	}
	switch strings.ToLower(c.Database.Driver) {
	case "memory", "":
	case "postgres":
		if strings.TrimSpace(c.Database.DSN) == "" {
			return fmt.Errorf("DATABASE_URL is required for the postgres driver")
		}
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}
	if strings.TrimSpace(c.Auth.JWTSecret) == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if c.Marketplace.GroupMaxMembers <= 0 {
		return fmt.Errorf("group max members must be positive")
	}
	return nil
}
