package config

import (
	"errors"
	"time"
)

// Config holds server configuration values.
type Config struct {
	Addr              string        `mapstructure:"addr" yaml:"addr"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout" yaml:"read_header_timeout"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`

	LogLevel  string `mapstructure:"log_level" yaml:"log_level"`
	LogFormat string `mapstructure:"log_format" yaml:"log_format"`

	Redis     RedisConfig     `mapstructure:"redis" yaml:"redis"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit" yaml:"rate_limit"`

	// NickTTL is how long a nickname survives without a heartbeat.
	NickTTL         time.Duration `mapstructure:"nick_ttl" yaml:"nick_ttl"`
	CookieName      string        `mapstructure:"cookie_name" yaml:"cookie_name"`
	StreamKeepalive time.Duration `mapstructure:"stream_keepalive" yaml:"stream_keepalive"`
}

// RedisConfig describes the shared store connection.
type RedisConfig struct {
	Addr        string        `mapstructure:"addr" yaml:"addr"`
	Password    string        `mapstructure:"password" yaml:"password"`
	DB          int           `mapstructure:"db" yaml:"db"`
	PoolSize    int           `mapstructure:"pool_size" yaml:"pool_size"`
	DialTimeout time.Duration `mapstructure:"dial_timeout" yaml:"dial_timeout"`
}

// RateLimitConfig bounds how many requests one session may make per window.
type RateLimitConfig struct {
	Limit  int           `mapstructure:"limit" yaml:"limit"`
	Window time.Duration `mapstructure:"window" yaml:"window"`
}

var (
	ErrInvalidRateLimit = errors.New("rate_limit.limit and rate_limit.window must be positive")
	ErrInvalidNickTTL   = errors.New("nick_ttl must be positive")
	ErrMissingRedisAddr = errors.New("redis.addr is required")
)

// Default returns configuration with reasonable starter defaults.
func Default() Config {
	return Config{
		Addr:              ":8080",
		ReadHeaderTimeout: 5 * time.Second,
		ShutdownTimeout:   5 * time.Second,
		LogLevel:          "info",
		LogFormat:         "console",
		Redis: RedisConfig{
			Addr:        "localhost:6379",
			PoolSize:    50,
			DialTimeout: 5 * time.Second,
		},
		RateLimit: RateLimitConfig{
			Limit:  30,
			Window: time.Minute,
		},
		NickTTL:         90 * time.Second,
		CookieName:      "chatterbox",
		StreamKeepalive: 15 * time.Second,
	}
}

// UpdateFrom overwrites non-zero values from other config into receiver.
func (c *Config) UpdateFrom(other Config) {
	if other.Addr != "" {
		c.Addr = other.Addr
	}
	if other.ReadHeaderTimeout != 0 {
		c.ReadHeaderTimeout = other.ReadHeaderTimeout
	}
	if other.ShutdownTimeout != 0 {
		c.ShutdownTimeout = other.ShutdownTimeout
	}
	if other.LogLevel != "" {
		c.LogLevel = other.LogLevel
	}
	if other.LogFormat != "" {
		c.LogFormat = other.LogFormat
	}
	if other.Redis.Addr != "" {
		c.Redis.Addr = other.Redis.Addr
	}
	if other.Redis.Password != "" {
		c.Redis.Password = other.Redis.Password
	}
	if other.Redis.DB != 0 {
		c.Redis.DB = other.Redis.DB
	}
	if other.Redis.PoolSize != 0 {
		c.Redis.PoolSize = other.Redis.PoolSize
	}
	if other.Redis.DialTimeout != 0 {
		c.Redis.DialTimeout = other.Redis.DialTimeout
	}
	if other.RateLimit.Limit != 0 {
		c.RateLimit.Limit = other.RateLimit.Limit
	}
	if other.RateLimit.Window != 0 {
		c.RateLimit.Window = other.RateLimit.Window
	}
	if other.NickTTL != 0 {
		c.NickTTL = other.NickTTL
	}
	if other.CookieName != "" {
		c.CookieName = other.CookieName
	}
	if other.StreamKeepalive != 0 {
		c.StreamKeepalive = other.StreamKeepalive
	}
}

// Validate reports settings the server cannot run with.
func (c *Config) Validate() error {
	if c.RateLimit.Limit <= 0 || c.RateLimit.Window <= 0 {
		return ErrInvalidRateLimit
	}
	if c.NickTTL <= 0 {
		return ErrInvalidNickTTL
	}
	if c.Redis.Addr == "" {
		return ErrMissingRedisAddr
	}
	return nil
}
