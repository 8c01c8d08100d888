// internal/common/config/config.go
package config

import (
	"fmt"
	"time"
)

// Config is the main application configuration struct.
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Delivery  DeliveryConfig  `mapstructure:"delivery"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// --- Core App/Infrastructure Config ---
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

type ServerConfig struct {
	Address      string `mapstructure:"address"`
	ReadTimeout  int    `mapstructure:"read_timeout"`  // milliseconds
	WriteTimeout int    `mapstructure:"write_timeout"` // milliseconds
	IdleTimeout  int    `mapstructure:"idle_timeout"`  // milliseconds
	// Operator endpoints listen separately and stay off when OpsToken is empty.
	OpsAddress string `mapstructure:"ops_address"`
	OpsToken   string `mapstructure:"ops_token"`
}

type DatabaseConfig struct {
	Postgres PostgresConfig `mapstructure:"postgres"`
	Redis    RedisConfig    `mapstructure:"redis"`
}

type PostgresConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Database       string `mapstructure:"database"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	MaxConnections int    `mapstructure:"max_connections"`
	MaxIdle        int    `mapstructure:"max_idle"`
	SSLMode        string `mapstructure:"sslmode"`
}

// GetDSN returns the PostgreSQL connection string
func (p PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

type RedisConfig struct {
	Address      string `mapstructure:"address"` // comma-separated for cluster mode
	Password     string `mapstructure:"password"`
	DB           int    `mapstructure:"db"`
	PoolSize     int    `mapstructure:"pool_size"`
	MinIdleConns int    `mapstructure:"min_idle_conns"`
	DialTimeout  int    `mapstructure:"dial_timeout"` // milliseconds
}

// --- Domain Configuration ---

const (
	StorageDriverPostgres = "postgres"
	StorageDriverMemory   = "memory"
)

// StorageConfig selects where notifications and finance data live.
type StorageConfig struct {
	Driver string `mapstructure:"driver"`
	// Migrate applies notification.Schema at startup.
	Migrate bool `mapstructure:"migrate"`
}

// SchedulerConfig drives the rule engine sweep.
type SchedulerConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	Interval    int    `mapstructure:"interval"`     // milliseconds
	UserTimeout int    `mapstructure:"user_timeout"` // milliseconds
	Concurrency int    `mapstructure:"concurrency"`
	NearEndDays int    `mapstructure:"near_end_days"`
	Timezone    string `mapstructure:"timezone"`
}

// RateLimitConfig holds the token bucket settings.
type RateLimitConfig struct {
	Enabled         bool `mapstructure:"enabled"`
	Capacity        int  `mapstructure:"capacity"`
	RefillPeriod    int  `mapstructure:"refill_period"`    // milliseconds
	CleanupInterval int  `mapstructure:"cleanup_interval"` // milliseconds
	IdleTTL         int  `mapstructure:"idle_ttl"`         // milliseconds
	Shards          int  `mapstructure:"shards"`
}

// DeliveryConfig selects the push transports.
type DeliveryConfig struct {
	Redis struct {
		Enabled        bool   `mapstructure:"enabled"`
		ChannelPrefix  string `mapstructure:"channel_prefix"`
		BroadcastTopic string `mapstructure:"broadcast_topic"`
		PublishTimeout int    `mapstructure:"publish_timeout"` // milliseconds
	} `mapstructure:"redis"`
	SNS struct {
		Enabled  bool   `mapstructure:"enabled"`
		Region   string `mapstructure:"region"`
		TopicARN string `mapstructure:"topic_arn"`
	} `mapstructure:"sns"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

// Location resolves the scheduler timezone, falling back to UTC.
func (s SchedulerConfig) Location() *time.Location {
	if s.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(s.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
