package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config contains all runtime settings for the persona backend.
type Config struct {
	BindAddr         string
	ShutdownTimeout  time.Duration
	Environment      string
	Debug            bool
	LogLevel         string
	MetricsNamespace string
	Version          string

	ProviderMode string

	OpenAIAPIKey       string
	OpenAIBaseURL      string
	OpenAIModel        string
	OpenAITTSModel     string
	OpenAITTSVoice     string
	OpenAIWhisperModel string
	OpenAIMaxTokens    int
	OpenAITemperature  float64
	OpenAITimeout      time.Duration
	TTSSpeed           float64

	MaxConversationLength int
	SessionTimeout        time.Duration
	SessionSweepInterval  time.Duration

	AudioCacheDir           string
	AudioCacheMaxAge        time.Duration
	AudioCacheSweepInterval time.Duration
	MaxAudioUploadBytes     int64

	RateLimitPerMinute int

	CORSOrigins []string

	PersonaName  string
	PersonaTitle string
	PersonaEmail string
	PersonaPhone string
	PersonaBio   string
}

// IsProduction reports whether the service runs with hardened error output.
func (c Config) IsProduction() bool {
	return strings.EqualFold(c.Environment, "production")
}

// Load reads environment variables and applies safe defaults.
func Load() (Config, error) {
	cfg := Config{
		BindAddr:         envOrDefault("APP_BIND_ADDR", ":8080"),
		Environment:      envOrDefault("APP_ENV", "development"),
		LogLevel:         envOrDefault("APP_LOG_LEVEL", "info"),
		MetricsNamespace: envOrDefault("APP_METRICS_NAMESPACE", "iris"),
		Version:          envOrDefault("APP_VERSION", "1.0.0"),
		ShutdownTimeout:  15 * time.Second,
		Debug:            true,

		ProviderMode: envOrDefault("PROVIDER_MODE", "auto"),

		OpenAIAPIKey:       trimmedEnv("OPENAI_API_KEY"),
		OpenAIBaseURL:      trimmedEnv("OPENAI_BASE_URL"),
		OpenAIModel:        envOrDefault("OPENAI_MODEL", "gpt-4o-mini"),
		OpenAITTSModel:     envOrDefault("OPENAI_TTS_MODEL", "tts-1"),
		OpenAITTSVoice:     envOrDefault("OPENAI_TTS_VOICE", "alloy"),
		OpenAIWhisperModel: envOrDefault("OPENAI_WHISPER_MODEL", "whisper-1"),
		OpenAIMaxTokens:    1000,
		OpenAITemperature:  0.7,
		OpenAITimeout:      30 * time.Second,
		// Biased faster than realtime so spoken replies feel snappy.
		TTSSpeed: 1.25,

		MaxConversationLength: 20,
		SessionTimeout:        time.Hour,
		SessionSweepInterval:  5 * time.Minute,

		AudioCacheDir:           envOrDefault("AUDIO_CACHE_DIR", "temp_audio"),
		AudioCacheMaxAge:        2 * time.Hour,
		AudioCacheSweepInterval: time.Hour,
		MaxAudioUploadBytes:     25 << 20,

		RateLimitPerMinute: 30,

		PersonaName:  envOrDefault("PERSONA_NAME", "Iris"),
		PersonaTitle: trimmedEnv("PERSONA_TITLE"),
		PersonaEmail: trimmedEnv("PERSONA_EMAIL"),
		PersonaPhone: trimmedEnv("PERSONA_PHONE"),
		PersonaBio:   trimmedEnv("PERSONA_BIO"),
	}

	var err error
	if cfg.ShutdownTimeout, err = durationFromEnv("APP_SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout); err != nil {
		return Config{}, err
	}
	if cfg.Debug, err = boolFromEnv("APP_DEBUG", cfg.Debug); err != nil {
		return Config{}, err
	}
	if cfg.OpenAIMaxTokens, err = intFromEnv("OPENAI_MAX_TOKENS", cfg.OpenAIMaxTokens); err != nil {
		return Config{}, err
	}
	if cfg.OpenAITemperature, err = floatFromEnv("OPENAI_TEMPERATURE", cfg.OpenAITemperature); err != nil {
		return Config{}, err
	}
	if cfg.OpenAITimeout, err = durationFromEnv("OPENAI_TIMEOUT", cfg.OpenAITimeout); err != nil {
		return Config{}, err
	}
	if cfg.TTSSpeed, err = floatFromEnv("TTS_SPEED", cfg.TTSSpeed); err != nil {
		return Config{}, err
	}
	if cfg.MaxConversationLength, err = intFromEnv("MAX_CONVERSATION_LENGTH", cfg.MaxConversationLength); err != nil {
		return Config{}, err
	}
	if cfg.SessionTimeout, err = durationFromEnv("SESSION_TIMEOUT", cfg.SessionTimeout); err != nil {
		return Config{}, err
	}
	if cfg.SessionSweepInterval, err = durationFromEnv("SESSION_SWEEP_INTERVAL", cfg.SessionSweepInterval); err != nil {
		return Config{}, err
	}
	if cfg.AudioCacheMaxAge, err = durationFromEnv("AUDIO_CACHE_MAX_AGE", cfg.AudioCacheMaxAge); err != nil {
		return Config{}, err
	}
	if cfg.AudioCacheSweepInterval, err = durationFromEnv("AUDIO_CACHE_SWEEP_INTERVAL", cfg.AudioCacheSweepInterval); err != nil {
		return Config{}, err
	}

	maxUploadMB, err := intFromEnv("MAX_AUDIO_FILE_SIZE_MB", 25)
	if err != nil {
		return Config{}, err
	}
	cfg.MaxAudioUploadBytes = int64(maxUploadMB) << 20

	if cfg.RateLimitPerMinute, err = intFromEnv("RATE_LIMIT_PER_MINUTE", cfg.RateLimitPerMinute); err != nil {
		return Config{}, err
	}

	cfg.CORSOrigins = splitList(envOrDefault("CORS_ORIGINS", "http://localhost:3000,http://localhost:5173"))

	if cfg.SessionTimeout < 5*time.Second {
		return Config{}, fmt.Errorf("SESSION_TIMEOUT must be at least 5s")
	}
	if cfg.MaxConversationLength <= 0 {
		return Config{}, fmt.Errorf("MAX_CONVERSATION_LENGTH must be positive")
	}
	if cfg.OpenAITemperature < 0 || cfg.OpenAITemperature > 2 {
		return Config{}, fmt.Errorf("OPENAI_TEMPERATURE must be in [0, 2]")
	}
	if cfg.OpenAIMaxTokens <= 0 {
		return Config{}, fmt.Errorf("OPENAI_MAX_TOKENS must be positive")
	}
	if cfg.TTSSpeed < 0.25 || cfg.TTSSpeed > 4.0 {
		return Config{}, fmt.Errorf("TTS_SPEED must be in [0.25, 4.0]")
	}
	if cfg.MaxAudioUploadBytes <= 0 {
		return Config{}, fmt.Errorf("MAX_AUDIO_FILE_SIZE_MB must be positive")
	}
	if cfg.RateLimitPerMinute < 0 {
		return Config{}, fmt.Errorf("RATE_LIMIT_PER_MINUTE must be >= 0")
	}
	switch strings.ToLower(cfg.ProviderMode) {
	case "auto", "openai", "mock":
	default:
		return Config{}, fmt.Errorf("invalid PROVIDER_MODE: %q (expected auto|openai|mock)", cfg.ProviderMode)
	}

	return cfg, nil
}

func envOrDefault(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func trimmedEnv(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func durationFromEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := trimmedEnv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return d, nil
}

func intFromEnv(key string, fallback int) (int, error) {
	v := trimmedEnv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return n, nil
}

func floatFromEnv(key string, fallback float64) (float64, error) {
	v := trimmedEnv(key)
	if v == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return f, nil
}

func boolFromEnv(key string, fallback bool) (bool, error) {
	v := strings.ToLower(trimmedEnv(key))
	if v == "" {
		return fallback, nil
	}
	switch v {
	case "1", "true", "t", "yes", "y", "on":
		return true, nil
	case "0", "false", "f", "no", "n", "off":
		return false, nil
	default:
		return false, fmt.Errorf("%s parse error: expected bool", key)
	}
}
