package config

import (
	"fmt"
	"time"
)

// Config represents the global configuration
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Log       LogConfig       `mapstructure:"log"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	Tracing   TracingConfig   `mapstructure:"tracing"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Security  SecurityConfig  `mapstructure:"security"`
	Seckill   SeckillConfig   `mapstructure:"seckill"`
}

// ServerConfig represents HTTP server configuration
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	Mode         string        `mapstructure:"mode"` // debug, release, test
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
}

// DatabaseConfig represents database configuration
type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	Username        string        `mapstructure:"username"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"dbname"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// RedisConfig represents Redis configuration
type RedisConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	Password     string        `mapstructure:"password"`
	DB           int           `mapstructure:"db"`
	PoolSize     int           `mapstructure:"pool_size"`
	MinIdleConns int           `mapstructure:"min_idle_conns"`
	MaxRetries   int           `mapstructure:"max_retries"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// LogConfig represents logging configuration
type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	Output     string `mapstructure:"output"`
	Filename   string `mapstructure:"filename"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxAge     int    `mapstructure:"max_age"`
	MaxBackups int    `mapstructure:"max_backups"`
	Compress   bool   `mapstructure:"compress"`
}

// MetricsConfig represents metrics configuration
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// TracingConfig represents tracing configuration
type TracingConfig struct {
	Enabled     bool    `mapstructure:"enabled"`
	ServiceName string  `mapstructure:"service_name"`
	Endpoint    string  `mapstructure:"endpoint"`
	SampleRate  float64 `mapstructure:"sample_rate"`
}

// RateLimitConfig represents rate limiting configuration
type RateLimitConfig struct {
	Enabled bool `mapstructure:"enabled"`
	PerUser struct {
		Limit  int           `mapstructure:"limit"`
		Window time.Duration `mapstructure:"window"`
	} `mapstructure:"per_user"`
	Local struct {
		RPS   int `mapstructure:"rps"`
		Burst int `mapstructure:"burst"`
	} `mapstructure:"local"`
}

// SecurityConfig represents security configuration
type SecurityConfig struct {
	JWT struct {
		Secret string        `mapstructure:"secret"`
		Expire time.Duration `mapstructure:"expire"`
		Issuer string        `mapstructure:"issuer"`
	} `mapstructure:"jwt"`
	CORS struct {
		Enabled      bool     `mapstructure:"enabled"`
		AllowOrigins []string `mapstructure:"allow_origins"`
	} `mapstructure:"cors"`
}

// SeckillConfig represents flash-sale business configuration
type SeckillConfig struct {
	// QueueCapacity bounds the number of admitted orders awaiting durable
	// fulfillment. Admissions beyond it are rejected as overload.
	QueueCapacity int `mapstructure:"queue_capacity"`
	// OrderLockTTL is the TTL of the per-user fulfillment lock.
	OrderLockTTL time.Duration `mapstructure:"order_lock_ttl"`
	// VoucherCacheTTL is the Redis TTL of cached voucher configs.
	VoucherCacheTTL time.Duration `mapstructure:"voucher_cache_ttl"`
	// LocalCacheTTL is the lifetime of the in-process voucher config cache.
	LocalCacheTTL time.Duration `mapstructure:"local_cache_ttl"`
	// ShopCacheTTL is the Redis TTL of cached shops.
	ShopCacheTTL time.Duration `mapstructure:"shop_cache_ttl"`
	// ReconcileInterval is how often Redis and MySQL stock are cross-checked.
	ReconcileInterval time.Duration `mapstructure:"reconcile_interval"`
}

// GetAddr returns the server address
func (s *ServerConfig) GetAddr() string {
	if s.Host == "" {
		s.Host = "0.0.0.0"
	}
	if s.Port == 0 {
		s.Port = 8080
	}
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// GetDSN returns the database DSN
func (d *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		d.Username, d.Password, d.Host, d.Port, d.DBName)
}

// GetAddr returns the Redis address
func (r *RedisConfig) GetAddr() string {
	if r.Host == "" {
		r.Host = "localhost"
	}
	if r.Port == 0 {
		r.Port = 6379
	}
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	if c.Database.Host == "" {
		return fmt.Errorf("database host is required")
	}

	if c.Database.Username == "" {
		return fmt.Errorf("database username is required")
	}

	if c.Database.DBName == "" {
		return fmt.Errorf("database name is required")
	}

	if c.Redis.Host == "" {
		return fmt.Errorf("redis host is required")
	}

	if c.Security.JWT.Secret == "" {
		return fmt.Errorf("JWT secret is required")
	}

	if c.Seckill.QueueCapacity < 0 {
		return fmt.Errorf("invalid seckill queue capacity: %d", c.Seckill.QueueCapacity)
	}

	return nil
}

// SetDefaults sets default values for configuration
func (c *Config) SetDefaults() {
	if c.Server.Host == "" {
		c.Server.Host = "localhost"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.Mode == "" {
		c.Server.Mode = "debug"
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = 30 * time.Second
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = 30 * time.Second
	}
	if c.Server.IdleTimeout == 0 {
		c.Server.IdleTimeout = 60 * time.Second
	}

	if c.Database.Host == "" {
		c.Database.Host = "localhost"
	}
	if c.Database.Port == 0 {
		c.Database.Port = 3306
	}
	if c.Database.MaxOpenConns == 0 {
		c.Database.MaxOpenConns = 100
	}
	if c.Database.MaxIdleConns == 0 {
		c.Database.MaxIdleConns = 10
	}
	if c.Database.ConnMaxLifetime == 0 {
		c.Database.ConnMaxLifetime = time.Hour
	}

	if c.Redis.Host == "" {
		c.Redis.Host = "localhost"
	}
	if c.Redis.Port == 0 {
		c.Redis.Port = 6379
	}
	if c.Redis.PoolSize == 0 {
		c.Redis.PoolSize = 100
	}
	if c.Redis.MinIdleConns == 0 {
		c.Redis.MinIdleConns = 10
	}
	if c.Redis.MaxRetries == 0 {
		c.Redis.MaxRetries = 3
	}
	if c.Redis.DialTimeout == 0 {
		c.Redis.DialTimeout = 5 * time.Second
	}
	if c.Redis.ReadTimeout == 0 {
		c.Redis.ReadTimeout = 3 * time.Second
	}
	if c.Redis.WriteTimeout == 0 {
		c.Redis.WriteTimeout = 3 * time.Second
	}

	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "json"
	}
	if c.Log.Output == "" {
		c.Log.Output = "stdout"
	}

	if c.Metrics.Path == "" {
		c.Metrics.Path = "/metrics"
	}

	if c.RateLimit.PerUser.Limit == 0 {
		c.RateLimit.PerUser.Limit = 20
	}
	if c.RateLimit.PerUser.Window == 0 {
		c.RateLimit.PerUser.Window = time.Minute
	}
	if c.RateLimit.Local.RPS == 0 {
		c.RateLimit.Local.RPS = 10000
	}
	if c.RateLimit.Local.Burst == 0 {
		c.RateLimit.Local.Burst = 20000
	}

	if c.Security.JWT.Expire == 0 {
		c.Security.JWT.Expire = 2 * time.Hour
	}
	if c.Security.JWT.Issuer == "" {
		c.Security.JWT.Issuer = "flashsale"
	}

	if c.Seckill.QueueCapacity == 0 {
		c.Seckill.QueueCapacity = 16384
	}
	if c.Seckill.OrderLockTTL == 0 {
		c.Seckill.OrderLockTTL = 10 * time.Second
	}
	if c.Seckill.VoucherCacheTTL == 0 {
		c.Seckill.VoucherCacheTTL = 24 * time.Hour
	}
	if c.Seckill.LocalCacheTTL == 0 {
		c.Seckill.LocalCacheTTL = time.Minute
	}
	if c.Seckill.ShopCacheTTL == 0 {
		c.Seckill.ShopCacheTTL = 30 * time.Minute
	}
	if c.Seckill.ReconcileInterval == 0 {
		c.Seckill.ReconcileInterval = time.Minute
	}
}
