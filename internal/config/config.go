// Package config builds the process-wide configuration once at startup.
// Nothing reads configuration from global state after Load returns.
package config

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/joescharf/crev/internal/llm"
	"github.com/joescharf/crev/internal/review"
)

// EnvPrefix is prepended to every environment variable bound to a key.
const EnvPrefix = "CREV"

// Provider names.
const (
	ProviderAnthropic = "anthropic"
	ProviderGemini    = "gemini"
)

// Config is the immutable runtime configuration.
type Config struct {
	Provider   string
	Model      string
	APIKey     string
	BaseURL    string
	MaxRetries int

	Server ServerConfig
	Review review.Config
	Log    LogConfig
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Addr            string
	CORSOrigins     []string
	ShutdownTimeout time.Duration
}

// LogConfig selects the slog handler.
type LogConfig struct {
	Level  string
	Format string
}

// SetDefaults registers every key with its default so env overrides resolve.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("provider", "")
	v.SetDefault("model", "")
	v.SetDefault("api_key", "")
	v.SetDefault("base_url", "")
	v.SetDefault("llm.max_retries", 1)
	v.SetDefault("llm.max_tokens", llm.DefaultMaxTokens)
	v.SetDefault("server.addr", ":8000")
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("server.shutdown_timeout", "10s")
	v.SetDefault("review.max_upload_bytes", review.DefaultMaxUploadBytes)
	v.SetDefault("review.timeout", review.DefaultTimeout.String())
	v.SetDefault("review.max_source_bytes", review.DefaultMaxSourceBytes)
	v.SetDefault("review.redact_secrets", false)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

// BindEnv wires CREV_* environment variables to nested keys (review.timeout → CREV_REVIEW_TIMEOUT).
func BindEnv(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}

// Load reads the effective configuration from v and validates it.
func Load(v *viper.Viper) (Config, error) {
	cfg := Config{
		Provider:   strings.ToLower(strings.TrimSpace(v.GetString("provider"))),
		Model:      v.GetString("model"),
		APIKey:     v.GetString("api_key"),
		BaseURL:    v.GetString("base_url"),
		MaxRetries: v.GetInt("llm.max_retries"),
		Server: ServerConfig{
			Addr:            v.GetString("server.addr"),
			CORSOrigins:     StringList(v, "server.cors_origins"),
			ShutdownTimeout: v.GetDuration("server.shutdown_timeout"),
		},
		Review: review.Config{
			MaxUploadBytes: v.GetInt64("review.max_upload_bytes"),
			Timeout:        v.GetDuration("review.timeout"),
			MaxSourceBytes: v.GetInt("review.max_source_bytes"),
			MaxTokens:      v.GetInt("llm.max_tokens"),
			RedactSecrets:  v.GetBool("review.redact_secrets"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
		},
	}

	if cfg.Provider == "" {
		cfg.Provider = detectProvider()
	}
	switch cfg.Provider {
	case "claude":
		cfg.Provider = ProviderAnthropic
	case "google":
		cfg.Provider = ProviderGemini
	case ProviderAnthropic, ProviderGemini:
	default:
		return Config{}, fmt.Errorf("unknown provider %q (use %s or %s)", cfg.Provider, ProviderAnthropic, ProviderGemini)
	}

	if cfg.APIKey == "" {
		cfg.APIKey = providerKey(cfg.Provider)
	}
	if cfg.Model == "" {
		cfg.Model = defaultModel(cfg.Provider)
	}

	if cfg.Review.MaxUploadBytes <= 0 {
		return Config{}, fmt.Errorf("review.max_upload_bytes must be positive, got %d", cfg.Review.MaxUploadBytes)
	}
	if cfg.Review.Timeout <= 0 {
		return Config{}, fmt.Errorf("review.timeout must be positive, got %s", cfg.Review.Timeout)
	}
	if cfg.MaxRetries < 0 {
		return Config{}, fmt.Errorf("llm.max_retries must not be negative, got %d", cfg.MaxRetries)
	}
	return cfg, nil
}

// StringList reads a list-valued key. A YAML list is taken as is; a plain
// string, as set through the environment, is split on commas.
func StringList(v *viper.Viper, key string) []string {
	raw, ok := v.Get(key).(string)
	if !ok {
		return v.GetStringSlice(key)
	}
	var out []string
	for _, item := range strings.Split(raw, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// APIKeyConfigured reports whether a credential is available for the provider.
func (c Config) APIKeyConfigured() bool {
	return c.APIKey != ""
}

// NewProvider constructs the configured LLM provider with the retry policy applied.
func (c Config) NewProvider() (llm.Provider, error) {
	p, err := llm.New(c.Provider, llm.Options{
		APIKey:  c.APIKey,
		Model:   c.Model,
		BaseURL: c.BaseURL,
	})
	if err != nil {
		return nil, err
	}
	return llm.WithRetry(p, c.MaxRetries), nil
}

// NewLogger builds the slog logger described by the log settings.
func (c LogConfig) NewLogger(w io.Writer) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Level)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(c.Format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// detectProvider picks a provider from whichever vendor key is present,
// preferring Anthropic.
func detectProvider() string {
	if os.Getenv("ANTHROPIC_API_KEY") == "" && providerKey(ProviderGemini) != "" {
		return ProviderGemini
	}
	return ProviderAnthropic
}

func providerKey(provider string) string {
	switch provider {
	case ProviderAnthropic:
		return os.Getenv("ANTHROPIC_API_KEY")
	case ProviderGemini:
		if k := os.Getenv("GEMINI_API_KEY"); k != "" {
			return k
		}
		return os.Getenv("GOOGLE_API_KEY")
	}
	return ""
}

func defaultModel(provider string) string {
	if provider == ProviderGemini {
		if m := os.Getenv("GEMINI_MODEL"); m != "" {
			return m
		}
		return llm.DefaultGeminiModel
	}
	return llm.DefaultAnthropicModel
}
