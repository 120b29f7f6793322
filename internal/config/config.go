package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/viper"

	redisbroker "github.com/jwalitptl/consult-api/pkg/messaging/redis"
	"github.com/jwalitptl/consult-api/pkg/worker"
)

type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`
	SSLMode  string `mapstructure:"sslmode"`
}

type ServerConfig struct {
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

type RedisConfig struct {
	URL          string        `mapstructure:"url"`
	MaxRetries   int           `mapstructure:"max_retries"`
	RetryBackoff time.Duration `mapstructure:"retry_backoff"`
	PoolSize     int           `mapstructure:"pool_size"`
	MinIdleConns int           `mapstructure:"min_idle_conns"`
}

// ProviderConfig configures one external AI provider. Timeouts are long
// on purpose: large audio files and large-model generation both run for
// minutes.
type ProviderConfig struct {
	APIKey    string        `mapstructure:"api_key"`
	BaseURL   string        `mapstructure:"base_url"`
	Model     string        `mapstructure:"model"`
	Language  string        `mapstructure:"language"`
	MaxTokens int           `mapstructure:"max_tokens"`
	Timeout   time.Duration `mapstructure:"timeout"`
}

type AIConfig struct {
	Transcription ProviderConfig `mapstructure:"transcription"`
	Generation    ProviderConfig `mapstructure:"generation"`
}

type StorageConfig struct {
	UploadsDir   string `mapstructure:"uploads_dir"`
	MaxSizeBytes int64  `mapstructure:"max_size_bytes"`
}

type SMTPConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	From     string `mapstructure:"from"`
}

type PipelineConfig struct {
	Channel      string        `mapstructure:"channel"`
	Concurrency  int           `mapstructure:"concurrency"`
	MaxAttempts  int           `mapstructure:"max_attempts"`
	RetryBackoff time.Duration `mapstructure:"retry_backoff"`
	// SystemActorID is the audit actor for state changes made by the
	// pipeline itself rather than a signed-in user.
	SystemActorID string `mapstructure:"system_actor_id"`
}

type AuditConfig struct {
	RetentionDays   int           `mapstructure:"retention_days"`
	CleanupInterval time.Duration `mapstructure:"cleanup_interval"`
}

type RateLimitConfig struct {
	Enabled           bool    `mapstructure:"enabled"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	Burst             int     `mapstructure:"burst"`
}

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	AI        AIConfig        `mapstructure:"ai"`
	Storage   StorageConfig   `mapstructure:"storage"`
	SMTP      SMTPConfig      `mapstructure:"smtp"`
	Pipeline  PipelineConfig  `mapstructure:"pipeline"`
	Audit     AuditConfig     `mapstructure:"audit"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
}

func LoadConfig() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	viper.AddConfigPath("/app")
	viper.AddConfigPath("/app/config")

	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Secrets and deploy-specific values come from the environment
	if host := os.Getenv("DB_HOST"); host != "" {
		config.Database.Host = host
	}
	if port := os.Getenv("DB_PORT"); port != "" {
		config.Database.Port, _ = strconv.Atoi(port)
	}
	if password := os.Getenv("DB_PASSWORD"); password != "" {
		config.Database.Password = password
	}
	if url := os.Getenv("REDIS_URL"); url != "" {
		config.Redis.URL = url
	}
	if key := os.Getenv("TRANSCRIPTION_API_KEY"); key != "" {
		config.AI.Transcription.APIKey = key
	}
	if key := os.Getenv("GENERATION_API_KEY"); key != "" {
		config.AI.Generation.APIKey = key
	}
	if password := os.Getenv("SMTP_PASSWORD"); password != "" {
		config.SMTP.Password = password
	}

	applyDefaults(&config)
	return &config, nil
}

func applyDefaults(config *Config) {
	if config.Pipeline.Channel == "" {
		config.Pipeline.Channel = "pipeline.tasks"
	}
	if config.Pipeline.Concurrency <= 0 {
		config.Pipeline.Concurrency = 4
	}
	if config.Pipeline.MaxAttempts <= 0 {
		config.Pipeline.MaxAttempts = 3
	}
	if config.Pipeline.RetryBackoff <= 0 {
		config.Pipeline.RetryBackoff = 5 * time.Second
	}
	if config.AI.Transcription.Model == "" {
		config.AI.Transcription.Model = "whisper-1"
	}
	if config.AI.Transcription.Language == "" {
		config.AI.Transcription.Language = "en"
	}
	if config.AI.Transcription.Timeout <= 0 {
		config.AI.Transcription.Timeout = 5 * time.Minute
	}
	if config.AI.Generation.MaxTokens <= 0 {
		config.AI.Generation.MaxTokens = 4096
	}
	if config.AI.Generation.Timeout <= 0 {
		config.AI.Generation.Timeout = 2 * time.Minute
	}
	if config.Storage.MaxSizeBytes <= 0 {
		config.Storage.MaxSizeBytes = 500 << 20 // 500MB
	}
}

// Conversion methods to the pkg-level config types
func (c *RedisConfig) ToBrokerConfig() redisbroker.Config {
	return redisbroker.Config{
		URL:          c.URL,
		MaxRetries:   c.MaxRetries,
		RetryBackoff: c.RetryBackoff,
		PoolSize:     c.PoolSize,
		MinIdleConns: c.MinIdleConns,
	}
}

func (c *PipelineConfig) ToRunnerConfig() worker.RunnerConfig {
	return worker.RunnerConfig{
		Channel:      c.Channel,
		Concurrency:  c.Concurrency,
		MaxAttempts:  c.MaxAttempts,
		RetryBackoff: c.RetryBackoff,
	}
}
