package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Port        string `mapstructure:"PORT"`
	Env         string `mapstructure:"ENV"`
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	DBMaxConns  int32  `mapstructure:"DB_MAX_CONNS"`
	DBMinConns  int32  `mapstructure:"DB_MIN_CONNS"`

	BlobDir string `mapstructure:"BLOB_DIR"`

	OpenAIAPIKey         string        `mapstructure:"OPENAI_API_KEY"`
	OpenAIModel          string        `mapstructure:"OPENAI_MODEL"`
	LLMTimeout           time.Duration `mapstructure:"LLM_TIMEOUT"`
	LLMMaxTokens         int           `mapstructure:"LLM_MAX_TOKENS"`
	LLMRequestsPerSecond float64       `mapstructure:"LLM_REQUESTS_PER_SECOND"`

	SummaryConcurrency  int           `mapstructure:"SUMMARY_CONCURRENCY"`
	TokenLimitPerMinute int           `mapstructure:"TOKEN_LIMIT_PER_MINUTE"`
	TokenBuffer         int           `mapstructure:"TOKEN_BUFFER"`
	ThrottleBaseWait    time.Duration `mapstructure:"THROTTLE_BASE_WAIT"`
	ThrottleMaxWait     time.Duration `mapstructure:"THROTTLE_MAX_WAIT"`

	WorkerPollInterval time.Duration `mapstructure:"WORKER_POLL_INTERVAL"`

	WatermarkText string `mapstructure:"WATERMARK_TEXT"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 5)
	v.SetDefault("BLOB_DIR", "./blobs")
	v.SetDefault("OPENAI_MODEL", "gpt-4o")
	v.SetDefault("LLM_TIMEOUT", "120s")
	v.SetDefault("LLM_MAX_TOKENS", 1600)
	v.SetDefault("LLM_REQUESTS_PER_SECOND", 2)
	v.SetDefault("SUMMARY_CONCURRENCY", 3)
	v.SetDefault("TOKEN_LIMIT_PER_MINUTE", 30000)
	v.SetDefault("TOKEN_BUFFER", 10000)
	v.SetDefault("THROTTLE_BASE_WAIT", "2s")
	v.SetDefault("THROTTLE_MAX_WAIT", "60s")
	v.SetDefault("WORKER_POLL_INTERVAL", "5s")
	v.SetDefault("WATERMARK_TEXT", "CONFIDENTIAL")

	// Bind env vars explicitly so Unmarshal picks them up
	v.BindEnv("PORT")
	v.BindEnv("ENV")
	v.BindEnv("DATABASE_URL")
	v.BindEnv("DB_MAX_CONNS")
	v.BindEnv("DB_MIN_CONNS")
	v.BindEnv("BLOB_DIR")
	v.BindEnv("OPENAI_API_KEY")
	v.BindEnv("OPENAI_MODEL")
	v.BindEnv("LLM_TIMEOUT")
	v.BindEnv("LLM_MAX_TOKENS")
	v.BindEnv("LLM_REQUESTS_PER_SECOND")
	v.BindEnv("SUMMARY_CONCURRENCY")
	v.BindEnv("TOKEN_LIMIT_PER_MINUTE")
	v.BindEnv("TOKEN_BUFFER")
	v.BindEnv("THROTTLE_BASE_WAIT")
	v.BindEnv("THROTTLE_MAX_WAIT")
	v.BindEnv("WORKER_POLL_INTERVAL")
	v.BindEnv("WATERMARK_TEXT")

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// Validate checks that the configuration describes a runnable pipeline.
// The token buffer must leave headroom below the per-minute limit, otherwise
// the throttle gate can never open.
func (c *Config) Validate() error {
	if c.SummaryConcurrency < 1 {
		return fmt.Errorf("SUMMARY_CONCURRENCY must be >= 1, got %d", c.SummaryConcurrency)
	}
	if c.TokenLimitPerMinute <= 0 {
		return fmt.Errorf("TOKEN_LIMIT_PER_MINUTE must be positive, got %d", c.TokenLimitPerMinute)
	}
	if c.TokenBuffer < 0 {
		return fmt.Errorf("TOKEN_BUFFER must not be negative, got %d", c.TokenBuffer)
	}
	if c.TokenBuffer >= c.TokenLimitPerMinute {
		return fmt.Errorf("TOKEN_BUFFER (%d) must be smaller than TOKEN_LIMIT_PER_MINUTE (%d)",
			c.TokenBuffer, c.TokenLimitPerMinute)
	}
	if c.ThrottleBaseWait <= 0 {
		return fmt.Errorf("THROTTLE_BASE_WAIT must be positive, got %s", c.ThrottleBaseWait)
	}
	if c.ThrottleMaxWait < c.ThrottleBaseWait {
		return fmt.Errorf("THROTTLE_MAX_WAIT (%s) must be >= THROTTLE_BASE_WAIT (%s)",
			c.ThrottleMaxWait, c.ThrottleBaseWait)
	}
	if c.LLMTimeout <= 0 {
		return fmt.Errorf("LLM_TIMEOUT must be positive, got %s", c.LLMTimeout)
	}
	return nil
}
