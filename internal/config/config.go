package config

import (
	"fmt"
	"time"

	"edu_platform_backend/internal/runner"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	JWT       JWTConfig
	Redis     RedisConfig
	Runner    RunnerConfig    `mapstructure:"runner"`
	Tracing   TracingConfig   `mapstructure:"tracing"`
	CORS      CORSConfig      `mapstructure:"cors"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Log       LogConfig       `mapstructure:"log"`

	// Runtime flags set from the command line, not from the file.
	MigrateOnly bool   `mapstructure:"-"`
	Path        string `mapstructure:"-"`
}

type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type RateLimitConfig struct {
	MaxRequests   int `mapstructure:"max_requests"`
	WindowMinutes int `mapstructure:"window_minutes"`
}

type ServerConfig struct {
	Port string
	Mode string
}

// DatabaseConfig selects the gorm dialector. Path is used by sqlite only.
type DatabaseConfig struct {
	Driver    string
	Host      string
	Port      int
	User      string
	Password  string
	DBName    string
	Charset   string
	ParseTime bool `mapstructure:"parse_time"`
	Path      string
}

type JWTConfig struct {
	Secret string `mapstructure:"secret"`
}

type TracingConfig struct {
	Enabled           bool   `mapstructure:"enabled"`
	CollectorEndpoint string `mapstructure:"collector_endpoint"`
}

type RedisConfig struct {
	Enabled         bool
	Host            string
	Port            int
	Password        string
	DB              int
	CacheTTLSeconds int `mapstructure:"cache_ttl_seconds"`
}

func (c RedisConfig) CacheTTL() time.Duration {
	return time.Duration(c.CacheTTLSeconds) * time.Second
}

type RunnerConfig struct {
	Interpreter         string `mapstructure:"interpreter"`
	TimeoutSeconds      int    `mapstructure:"timeout_seconds"`
	MaxConcurrent       int    `mapstructure:"max_concurrent"`
	QueueTimeoutSeconds int    `mapstructure:"queue_timeout_seconds"`
	ScratchDir          string `mapstructure:"scratch_dir"`
	LineLabel           string `mapstructure:"line_label"`
	TimeoutMessage      string `mapstructure:"timeout_message"`
	MaxOutputBytes      int    `mapstructure:"max_output_bytes"`
}

// RunnerSettings converts the file section into runner settings. Zero fields
// are filled with defaults by the runner.
func (c RunnerConfig) RunnerSettings() runner.Config {
	return runner.Config{
		Interpreter:    c.Interpreter,
		Timeout:        time.Duration(c.TimeoutSeconds) * time.Second,
		MaxConcurrent:  c.MaxConcurrent,
		QueueTimeout:   time.Duration(c.QueueTimeoutSeconds) * time.Second,
		ScratchDir:     c.ScratchDir,
		LineLabel:      c.LineLabel,
		TimeoutMessage: c.TimeoutMessage,
		MaxOutputBytes: c.MaxOutputBytes,
	}
}

type LogConfig struct {
	Path  string `mapstructure:"path"`
	Level string `mapstructure:"level"`
}

// LoadConfig reads config.yaml from path. Each call uses a fresh viper
// instance so a reload never sees stale keys.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	v.SetEnvPrefix("EDU_PLATFORM")
	v.AutomaticEnv()

	v.SetDefault("server.port", "8080")
	v.SetDefault("server.mode", "debug")
	v.SetDefault("database.driver", "mysql")
	v.SetDefault("database.charset", "utf8mb4")
	v.SetDefault("database.parse_time", true)
	v.SetDefault("redis.cache_ttl_seconds", 600)
	v.SetDefault("log.path", "logs/app.log")
	v.SetDefault("rate_limit.max_requests", 300)
	v.SetDefault("rate_limit.window_minutes", 1)

	// Database
	v.BindEnv("database.driver", "DATABASE_DRIVER")
	v.BindEnv("database.host", "DATABASE_HOST")
	v.BindEnv("database.port", "DATABASE_PORT")
	v.BindEnv("database.user", "DATABASE_USER")
	v.BindEnv("database.password", "DATABASE_PASSWORD")
	v.BindEnv("database.dbname", "DATABASE_NAME")
	v.BindEnv("database.path", "DATABASE_PATH")

	// JWT
	v.BindEnv("jwt.secret", "JWT_SECRET")

	// Redis
	v.BindEnv("redis.enabled", "REDIS_ENABLED")
	v.BindEnv("redis.host", "REDIS_HOST")
	v.BindEnv("redis.port", "REDIS_PORT")
	v.BindEnv("redis.password", "REDIS_PASSWORD")

	// Server
	v.BindEnv("server.mode", "SERVER_MODE")

	// Runner
	v.BindEnv("runner.interpreter", "RUNNER_INTERPRETER")
	v.BindEnv("runner.scratch_dir", "RUNNER_SCRATCH_DIR")

	// Tracing
	v.BindEnv("tracing.enabled", "TRACING_ENABLED")
	v.BindEnv("tracing.collector_endpoint", "TRACING_COLLECTOR_ENDPOINT")

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	cfg.Path = v.ConfigFileUsed()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.Server.Mode == "release" && len(c.JWT.Secret) < 32 {
		return fmt.Errorf("JWT secret is too short (%d chars), must be at least 32 characters in release mode", len(c.JWT.Secret))
	}
	switch c.Database.Driver {
	case "mysql", "postgres":
	case "sqlite":
		if c.Database.Path == "" {
			return fmt.Errorf("database.path is required for the sqlite driver")
		}
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}
	return nil
}
