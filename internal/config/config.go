// Package config 提供配置管理
//
// 优先级从低到高：内置默认值、CONFIG_FILE 指定的 YAML、.env 文件、进程环境变量。
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/paiban/nurseshift/pkg/logger"
	"github.com/paiban/nurseshift/pkg/scheduler/optimizer"
)

// Config 应用配置
type Config struct {
	App       AppConfig       `yaml:"app"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	Auth      AuthConfig      `yaml:"auth"`
	API       APIConfig       `yaml:"api"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Storage   StorageConfig   `yaml:"storage"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Log       logger.Config   `yaml:"log"`
}

// AppConfig 应用基础配置
type AppConfig struct {
	Name    string `yaml:"name" validate:"required"`
	Env     string `yaml:"env" validate:"oneof=development test production"`
	Port    int    `yaml:"port" validate:"min=1,max=65535"`
	Version string `yaml:"version"`
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	Name            string        `yaml:"name"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	SSLMode         string        `yaml:"ssl_mode"`
	MaxOpenConns    int           `yaml:"max_open_conns" validate:"min=1"`
	MaxIdleConns    int           `yaml:"max_idle_conns" validate:"min=0"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	SlowQuery       time.Duration `yaml:"slow_query"`
}

// DSN 返回数据库连接字符串
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

// RedisConfig Redis配置；未启用时锁与限流退化为进程内实现
type RedisConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db" validate:"min=0"`
}

// Addr 返回Redis地址
func (c *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// AuthConfig JWT 鉴权配置
type AuthConfig struct {
	Disabled  bool          `yaml:"disabled"`
	JWTSecret string        `yaml:"jwt_secret" validate:"required_unless=Disabled true"`
	Issuer    string        `yaml:"issuer"`
	TokenTTL  time.Duration `yaml:"token_ttl" validate:"min=0"`
}

// APIConfig API配置
type APIConfig struct {
	Timeout time.Duration `yaml:"timeout"`
	CORS    CORSConfig    `yaml:"cors"`
}

// CORSConfig 跨域配置
type CORSConfig struct {
	Enabled bool     `yaml:"enabled"`
	Origins []string `yaml:"origins"`
}

// SchedulerConfig 排班引擎配置
type SchedulerConfig struct {
	GenerateTimeout time.Duration    `yaml:"generate_timeout"`
	LockTTL         time.Duration    `yaml:"lock_ttl"`
	LockWait        time.Duration    `yaml:"lock_wait"`
	DefaultStrategy string           `yaml:"default_strategy" validate:"oneof=greedy annealing"`
	Annealing       optimizer.Config `yaml:"annealing"`
}

// StorageConfig 存储后端
type StorageConfig struct {
	Driver string `yaml:"driver" validate:"oneof=postgres memory"`
}

// RateLimitConfig 每个客户端在窗口内的请求上限，0 表示不限流
type RateLimitConfig struct {
	Requests int           `yaml:"requests" validate:"min=0"`
	Window   time.Duration `yaml:"window"`
}

// MetricsConfig 监控配置
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

var validate = validator.New()

// Default 内置默认配置
func Default() *Config {
	return &Config{
		App: AppConfig{Name: "nurseshift", Env: "development", Port: 7012, Version: "dev"},
		Database: DatabaseConfig{
			Host:            "localhost",
			Port:            5432,
			Name:            "nurseshift",
			User:            "nurseshift",
			Password:        "nurseshift",
			SSLMode:         "disable",
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
			SlowQuery:       100 * time.Millisecond,
		},
		Redis: RedisConfig{Host: "localhost", Port: 6379},
		Auth:  AuthConfig{Issuer: "nurseshift", TokenTTL: 12 * time.Hour},
		API: APIConfig{
			Timeout: 30 * time.Second,
			CORS:    CORSConfig{Enabled: true, Origins: []string{"*"}},
		},
		Scheduler: SchedulerConfig{
			GenerateTimeout: 2 * time.Minute,
			LockTTL:         5 * time.Minute,
			LockWait:        5 * time.Second,
			DefaultStrategy: "greedy",
			Annealing:       optimizer.DefaultConfig(),
		},
		Storage:   StorageConfig{Driver: "postgres"},
		RateLimit: RateLimitConfig{Requests: 100, Window: time.Minute},
		Metrics:   MetricsConfig{Enabled: true, Path: "/metrics"},
		Log:       logger.DefaultConfig(),
	}
}

// Load 按层次加载配置并校验
func Load() (*Config, error) {
	cfg := Default()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.mergeFile(path); err != nil {
			return nil, err
		}
	}

	// .env 不覆盖已存在的环境变量
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("读取 .env 失败: %w", err)
	}
	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// mergeFile 读取 YAML，文件中出现的字段覆盖默认值
func (c *Config) mergeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("读取配置文件失败: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("解析配置文件失败: %w", err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.App.Name = getEnv("APP_NAME", c.App.Name)
	c.App.Env = getEnv("APP_ENV", c.App.Env)
	c.App.Port = getEnvInt("APP_PORT", c.App.Port)
	c.App.Version = getEnv("APP_VERSION", c.App.Version)

	c.Database.Host = getEnv("DB_HOST", c.Database.Host)
	c.Database.Port = getEnvInt("DB_PORT", c.Database.Port)
	c.Database.Name = getEnv("DB_NAME", c.Database.Name)
	c.Database.User = getEnv("DB_USER", c.Database.User)
	c.Database.Password = getEnv("DB_PASSWORD", c.Database.Password)
	c.Database.SSLMode = getEnv("DB_SSL_MODE", c.Database.SSLMode)
	c.Database.MaxOpenConns = getEnvInt("DB_MAX_OPEN_CONNS", c.Database.MaxOpenConns)
	c.Database.MaxIdleConns = getEnvInt("DB_MAX_IDLE_CONNS", c.Database.MaxIdleConns)
	c.Database.ConnMaxLifetime = getEnvDuration("DB_CONN_MAX_LIFETIME", c.Database.ConnMaxLifetime)
	c.Database.SlowQuery = getEnvDuration("DB_SLOW_QUERY", c.Database.SlowQuery)

	c.Redis.Enabled = getEnvBool("REDIS_ENABLED", c.Redis.Enabled)
	c.Redis.Host = getEnv("REDIS_HOST", c.Redis.Host)
	c.Redis.Port = getEnvInt("REDIS_PORT", c.Redis.Port)
	c.Redis.Password = getEnv("REDIS_PASSWORD", c.Redis.Password)
	c.Redis.DB = getEnvInt("REDIS_DB", c.Redis.DB)

	c.Auth.Disabled = getEnvBool("AUTH_DISABLED", c.Auth.Disabled)
	c.Auth.JWTSecret = getEnv("JWT_SECRET", c.Auth.JWTSecret)
	c.Auth.Issuer = getEnv("JWT_ISSUER", c.Auth.Issuer)
	c.Auth.TokenTTL = getEnvDuration("JWT_TOKEN_TTL", c.Auth.TokenTTL)

	c.API.Timeout = getEnvDuration("API_TIMEOUT", c.API.Timeout)
	c.API.CORS.Enabled = getEnvBool("API_CORS_ENABLED", c.API.CORS.Enabled)
	if origins := os.Getenv("API_CORS_ORIGINS"); origins != "" {
		c.API.CORS.Origins = splitList(origins)
	}

	c.Scheduler.GenerateTimeout = getEnvDuration("SCHEDULER_TIMEOUT", c.Scheduler.GenerateTimeout)
	c.Scheduler.LockTTL = getEnvDuration("SCHEDULER_LOCK_TTL", c.Scheduler.LockTTL)
	c.Scheduler.LockWait = getEnvDuration("SCHEDULER_LOCK_WAIT", c.Scheduler.LockWait)
	c.Scheduler.DefaultStrategy = getEnv("SCHEDULER_STRATEGY", c.Scheduler.DefaultStrategy)
	c.Scheduler.Annealing.MaxIterations = getEnvInt("SCHEDULER_MAX_ITERATIONS", c.Scheduler.Annealing.MaxIterations)
	c.Scheduler.Annealing.MaxTime = getEnvDuration("SCHEDULER_MAX_TIME", c.Scheduler.Annealing.MaxTime)
	c.Scheduler.Annealing.Islands = getEnvInt("SCHEDULER_ISLANDS", c.Scheduler.Annealing.Islands)
	c.Scheduler.Annealing.Seed = int64(getEnvInt("SCHEDULER_SEED", int(c.Scheduler.Annealing.Seed)))

	c.Storage.Driver = getEnv("STORAGE_DRIVER", c.Storage.Driver)

	c.RateLimit.Requests = getEnvInt("RATE_LIMIT_REQUESTS", c.RateLimit.Requests)
	c.RateLimit.Window = getEnvDuration("RATE_LIMIT_WINDOW", c.RateLimit.Window)

	c.Metrics.Enabled = getEnvBool("METRICS_ENABLED", c.Metrics.Enabled)
	c.Metrics.Path = getEnv("METRICS_PATH", c.Metrics.Path)

	c.Log.Level = getEnv("LOG_LEVEL", c.Log.Level)
	c.Log.Format = getEnv("LOG_FORMAT", c.Log.Format)
	c.Log.Output = getEnv("LOG_OUTPUT", c.Log.Output)
	c.Log.FilePath = getEnv("LOG_FILE", c.Log.FilePath)
}

// Validate 校验配置
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("配置校验失败: %w", err)
	}
	return nil
}

// IsDevelopment 检查是否为开发环境
func (c *Config) IsDevelopment() bool {
	return c.App.Env == "development"
}

// IsProduction 检查是否为生产环境
func (c *Config) IsProduction() bool {
	return c.App.Env == "production"
}

// UseMemoryStore 是否使用内存存储
func (c *Config) UseMemoryStore() bool {
	return c.Storage.Driver == "memory"
}

// 辅助函数
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
