// Package config loads the orchestrator's configuration: env > local
// config file > defaults, via spf13/viper, the same layering style as the
// teacher's config.Load.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config is the complete application configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Log       LogConfig       `mapstructure:"log"`
	Webhook   WebhookConfig   `mapstructure:"webhook"`
	LLM       LLMConfig       `mapstructure:"llm"`
	Pipeline  PipelineConfig  `mapstructure:"pipeline"`
	Ladder    LadderConfig    `mapstructure:"ladder"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Operator  OperatorConfig  `mapstructure:"operator"`
	Business  BusinessConfig  `mapstructure:"business"`
}

// ServerConfig is the HTTP bind address for cmd/orchestratord serve.
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// DatabaseConfig selects gorm's dialector and connection string.
type DatabaseConfig struct {
	Type string `mapstructure:"type"` // sqlite, postgres
	DSN  string `mapstructure:"dsn"`
}

// LogConfig controls the zap logger's mode.
type LogConfig struct {
	Level string `mapstructure:"level"`
	Mode  string `mapstructure:"mode"` // development, production
}

// WebhookConfig covers the Transport Gateway (spec §4.A).
type WebhookConfig struct {
	Path          string `mapstructure:"path"`
	VerifyToken   string `mapstructure:"verify_token"`
	APIBaseURL    string `mapstructure:"api_base_url"`
	APIVersion    string `mapstructure:"api_version"`
	AccessToken   string `mapstructure:"access_token"`
	RedisAddr     string `mapstructure:"redis_addr"`
	QueueSize     int    `mapstructure:"queue_size"`
	WorkerCount   int    `mapstructure:"worker_count"`
	LRUFallbackSz int    `mapstructure:"lru_fallback_size"`
}

// LLMConfig selects and configures the pipeline's completion provider.
type LLMConfig struct {
	Primary  string         `mapstructure:"primary"` // anthropic, openai
	Anthropic ProviderConfig `mapstructure:"anthropic"`
	OpenAI    ProviderConfig `mapstructure:"openai"`
}

// ProviderConfig configures one concrete LLM SDK client.
type ProviderConfig struct {
	APIKey  string `mapstructure:"api_key"`
	BaseURL string `mapstructure:"base_url"`
	Model   string `mapstructure:"model"`
}

// PipelineConfig tunes the retry/backoff envelope around each stage call.
type PipelineConfig struct {
	MaxRetries    int           `mapstructure:"max_retries"`
	RetryBaseWait time.Duration `mapstructure:"retry_base_wait"`
	CallDeadline  time.Duration `mapstructure:"call_deadline"`
}

// LadderConfig drives the follow-up ladder's offsets.
type LadderConfig struct {
	Offsets []time.Duration `mapstructure:"offsets"`
}

// SchedulerConfig tunes the poller and optional quiet-hours window.
type SchedulerConfig struct {
	PollInterval     time.Duration `mapstructure:"poll_interval"`
	ClaimLimit       int           `mapstructure:"claim_limit"`
	QuietHoursStart  string        `mapstructure:"quiet_hours_start"` // cron expr, empty disables
	QuietHoursEnd    string        `mapstructure:"quiet_hours_end"`
}

// OperatorConfig secures the operator websocket surface.
type OperatorConfig struct {
	JWTSecret string `mapstructure:"jwt_secret"`
}

// BusinessConfig is the tenant-level identity and CTA menu baked into every
// pipeline prompt (spec §4.D) — single-tenant for now, one business per
// deployment.
type BusinessConfig struct {
	Name            string      `mapstructure:"name"`
	Description     string      `mapstructure:"description"`
	CTAs            []CTAConfig `mapstructure:"ctas"`
	MaxWords        int         `mapstructure:"max_words"`
	QuestionsPerMsg int         `mapstructure:"questions_per_message"`
	Language        string      `mapstructure:"language"`
}

// CTAConfig is one available call-to-action the Generate stage may select.
type CTAConfig struct {
	ID          string `mapstructure:"id"`
	Label       string `mapstructure:"label"`
	Description string `mapstructure:"description"`
}

// Load reads configuration from (in increasing priority): built-in
// defaults, a local config.yaml / ./config/config.yaml, a .env file in
// dev, and NGOCLAW_-prefixed environment variables.
func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	for _, dir := range []string{"./config", "."} {
		path := filepath.Join(dir, "config.yaml")
		if _, err := os.Stat(path); err == nil {
			v.SetConfigFile(path)
			break
		}
	}
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	v.SetEnvPrefix("NGOCLAW")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// Unmarshal only sees keys viper already knows; bind the secrets so they
	// can come from the environment alone.
	for _, key := range []string{"database.dsn", "webhook.verify_token", "webhook.access_token", "llm.anthropic.api_key", "llm.openai.api_key", "operator.jwt_secret"} {
		_ = v.BindEnv(key)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)

	v.SetDefault("database.type", "sqlite")
	v.SetDefault("database.dsn", "orchestrator.db")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.mode", "production")

	v.SetDefault("webhook.path", "/webhook")
	v.SetDefault("webhook.api_version", "v20.0")
	v.SetDefault("webhook.queue_size", 1000)
	v.SetDefault("webhook.worker_count", 8)
	v.SetDefault("webhook.lru_fallback_size", 10000)

	v.SetDefault("llm.primary", "anthropic")

	v.SetDefault("pipeline.max_retries", 2)
	v.SetDefault("pipeline.retry_base_wait", "500ms")
	v.SetDefault("pipeline.call_deadline", "15s")

	v.SetDefault("ladder.offsets", []time.Duration{10 * time.Minute, 180 * time.Minute, 360 * time.Minute})

	v.SetDefault("scheduler.poll_interval", "10s")
	v.SetDefault("scheduler.claim_limit", 50)

	v.SetDefault("business.max_words", 80)
	v.SetDefault("business.questions_per_message", 1)
	v.SetDefault("business.language", "en")
}
