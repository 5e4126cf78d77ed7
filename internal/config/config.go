// Package config loads the gemrelay configuration from a TOML file with
// environment overrides for credentials.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/go-playground/validator/v10"
)

const (
	DefaultConfigPath          = "config.toml"
	DefaultHTTPAddr            = ":8080"
	DefaultResetKeyword        = "RESET"
	DefaultHistoryDepth        = 30
	DefaultModelID             = "gemini-2.0-flash-exp"
	DefaultBackendTimeout      = 60
	DefaultFetchTimeout        = 30
	DefaultImageMaxBytes       = 4 * 1024 * 1024
	DefaultImageStepPercent    = 10
	DefaultImageMaxIterations  = 10
	DefaultAttachmentMaxBytes  = 25 * 1024 * 1024
	DefaultDiscordMaxLength    = 2000
	DefaultTelegramMaxLength   = 4096
	DefaultGeminiTemperature   = 1.0
	DefaultGeminiTopP          = 0.95
	DefaultGeminiMaxOutputToks = 8192
)

type Config struct {
	Log        LogConfig        `toml:"log"`
	Server     ServerConfig     `toml:"server"`
	Bot        BotConfig        `toml:"bot"`
	History    HistoryConfig    `toml:"history"`
	Gemini     GeminiConfig     `toml:"gemini"`
	Image      ImageConfig      `toml:"image"`
	Attachment AttachmentConfig `toml:"attachment"`
	Discord    DiscordConfig    `toml:"discord"`
	Telegram   TelegramConfig   `toml:"telegram"`
}

type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

type ServerConfig struct {
	Addr string `toml:"addr"`
}

type BotConfig struct {
	ResetKeyword string `toml:"reset_keyword" validate:"required"`
}

type HistoryConfig struct {
	// Depth is the number of retained exchange pairs; 0 disables history.
	Depth int `toml:"depth" validate:"min=0"`
}

type GeminiConfig struct {
	Model           string  `toml:"model" validate:"required"`
	APIKey          string  `toml:"-"`
	UseVertex       bool    `toml:"use_vertex"`
	Project         string  `toml:"-"`
	Region          string  `toml:"-"`
	TimeoutSeconds  int     `toml:"timeout_seconds" validate:"gt=0"`
	Temperature     float32 `toml:"temperature"`
	TopP            float32 `toml:"top_p"`
	MaxOutputTokens int32   `toml:"max_output_tokens" validate:"gt=0"`
}

func (c GeminiConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

type ImageConfig struct {
	Enabled       bool  `toml:"enabled"`
	MaxBytes      int64 `toml:"max_bytes" validate:"gt=0"`
	StepPercent   int   `toml:"step_percent" validate:"gt=0,lt=100"`
	MaxIterations int   `toml:"max_iterations" validate:"gt=0"`
}

type AttachmentConfig struct {
	MaxBytes            int64 `toml:"max_bytes" validate:"gt=0"`
	FetchTimeoutSeconds int   `toml:"fetch_timeout_seconds" validate:"gt=0"`
}

func (c AttachmentConfig) FetchTimeout() time.Duration {
	return time.Duration(c.FetchTimeoutSeconds) * time.Second
}

type DiscordConfig struct {
	Enabled          bool   `toml:"enabled"`
	BotToken         string `toml:"-"`
	MaxMessageLength int    `toml:"max_message_length" validate:"gt=0"`
}

type TelegramConfig struct {
	Enabled          bool   `toml:"enabled"`
	BotToken         string `toml:"-"`
	MaxMessageLength int    `toml:"max_message_length" validate:"gt=0"`
}

// Load reads the configuration file at path, falling back to defaults when
// the file does not exist, then applies environment overrides for secrets
// and validates the result.
func Load(path string) (Config, error) {
	cfg := Config{
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Server: ServerConfig{
			Addr: DefaultHTTPAddr,
		},
		Bot: BotConfig{
			ResetKeyword: DefaultResetKeyword,
		},
		History: HistoryConfig{
			Depth: DefaultHistoryDepth,
		},
		Gemini: GeminiConfig{
			Model:           DefaultModelID,
			TimeoutSeconds:  DefaultBackendTimeout,
			Temperature:     DefaultGeminiTemperature,
			TopP:            DefaultGeminiTopP,
			MaxOutputTokens: DefaultGeminiMaxOutputToks,
		},
		Image: ImageConfig{
			Enabled:       true,
			MaxBytes:      DefaultImageMaxBytes,
			StepPercent:   DefaultImageStepPercent,
			MaxIterations: DefaultImageMaxIterations,
		},
		Attachment: AttachmentConfig{
			MaxBytes:            DefaultAttachmentMaxBytes,
			FetchTimeoutSeconds: DefaultFetchTimeout,
		},
		Discord: DiscordConfig{
			Enabled:          true,
			MaxMessageLength: DefaultDiscordMaxLength,
		},
		Telegram: TelegramConfig{
			MaxMessageLength: DefaultTelegramMaxLength,
		},
	}

	if path == "" {
		path = DefaultConfigPath
	}

	if _, err := os.Stat(path); err != nil {
		if !os.IsNotExist(err) {
			return cfg, err
		}
	} else if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return cfg, fmt.Errorf("decode config: %w", err)
	}

	applyEnv(&cfg)

	if err := validator.New().Struct(cfg); err != nil {
		return cfg, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

// applyEnv copies credentials from the environment. Secrets never live in
// the config file.
func applyEnv(cfg *Config) {
	if v := os.Getenv("DISCORD_BOT_TOKEN"); v != "" {
		cfg.Discord.BotToken = v
	}
	if v := os.Getenv("TELEGRAM_BOT_TOKEN"); v != "" {
		cfg.Telegram.BotToken = v
	}
	if v := os.Getenv("GOOGLE_AI_KEY"); v != "" {
		cfg.Gemini.APIKey = v
	}
	if v := os.Getenv("GCP_PROJECT_ID"); v != "" {
		cfg.Gemini.Project = v
	}
	if v := os.Getenv("GCP_REGION"); v != "" {
		cfg.Gemini.Region = v
	}
}
