package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	setCoreEnvEmpty(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.BindAddr != ":8080" {
		t.Fatalf("BindAddr = %q, want :8080", cfg.BindAddr)
	}
	if cfg.OpenAIModel != "gpt-4o-mini" {
		t.Fatalf("OpenAIModel = %q, want gpt-4o-mini", cfg.OpenAIModel)
	}
	if cfg.MaxConversationLength != 20 {
		t.Fatalf("MaxConversationLength = %d, want 20", cfg.MaxConversationLength)
	}
	if cfg.SessionTimeout != time.Hour {
		t.Fatalf("SessionTimeout = %v, want 1h", cfg.SessionTimeout)
	}
	if cfg.MaxAudioUploadBytes != 25<<20 {
		t.Fatalf("MaxAudioUploadBytes = %d, want 25MiB", cfg.MaxAudioUploadBytes)
	}
	if cfg.TTSSpeed != 1.25 {
		t.Fatalf("TTSSpeed = %v, want 1.25", cfg.TTSSpeed)
	}
	if len(cfg.CORSOrigins) != 2 {
		t.Fatalf("CORSOrigins = %v, want two localhost defaults", cfg.CORSOrigins)
	}
	if cfg.IsProduction() {
		t.Fatalf("IsProduction() = true for development default")
	}
}

func TestLoadOverrides(t *testing.T) {
	setCoreEnvEmpty(t)
	t.Setenv("SESSION_TIMEOUT", "30m")
	t.Setenv("MAX_CONVERSATION_LENGTH", "4")
	t.Setenv("MAX_AUDIO_FILE_SIZE_MB", "1")
	t.Setenv("CORS_ORIGINS", "https://persona.example.com")
	t.Setenv("APP_ENV", "production")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.SessionTimeout != 30*time.Minute {
		t.Fatalf("SessionTimeout = %v, want 30m", cfg.SessionTimeout)
	}
	if cfg.MaxConversationLength != 4 {
		t.Fatalf("MaxConversationLength = %d, want 4", cfg.MaxConversationLength)
	}
	if cfg.MaxAudioUploadBytes != 1<<20 {
		t.Fatalf("MaxAudioUploadBytes = %d, want 1MiB", cfg.MaxAudioUploadBytes)
	}
	if len(cfg.CORSOrigins) != 1 || cfg.CORSOrigins[0] != "https://persona.example.com" {
		t.Fatalf("CORSOrigins = %v", cfg.CORSOrigins)
	}
	if !cfg.IsProduction() {
		t.Fatalf("IsProduction() = false, want true")
	}
}

func TestLoadRejectsBadValues(t *testing.T) {
	cases := []struct {
		key, value string
	}{
		{"SESSION_TIMEOUT", "1s"},
		{"SESSION_TIMEOUT", "not-a-duration"},
		{"OPENAI_TEMPERATURE", "3.5"},
		{"TTS_SPEED", "9"},
		{"MAX_CONVERSATION_LENGTH", "0"},
		{"PROVIDER_MODE", "bedrock"},
		{"APP_DEBUG", "maybe"},
	}
	for _, tc := range cases {
		t.Run(tc.key+"="+tc.value, func(t *testing.T) {
			setCoreEnvEmpty(t)
			t.Setenv(tc.key, tc.value)
			if _, err := Load(); err == nil {
				t.Fatalf("Load() with %s=%s should fail", tc.key, tc.value)
			}
		})
	}
}

func setCoreEnvEmpty(t *testing.T) {
	t.Helper()
	keys := []string{
		"APP_BIND_ADDR",
		"APP_SHUTDOWN_TIMEOUT",
		"APP_ENV",
		"APP_DEBUG",
		"APP_LOG_LEVEL",
		"APP_METRICS_NAMESPACE",
		"APP_VERSION",
		"PROVIDER_MODE",
		"OPENAI_API_KEY",
		"OPENAI_BASE_URL",
		"OPENAI_MODEL",
		"OPENAI_TTS_MODEL",
		"OPENAI_TTS_VOICE",
		"OPENAI_WHISPER_MODEL",
		"OPENAI_MAX_TOKENS",
		"OPENAI_TEMPERATURE",
		"OPENAI_TIMEOUT",
		"TTS_SPEED",
		"MAX_CONVERSATION_LENGTH",
		"SESSION_TIMEOUT",
		"SESSION_SWEEP_INTERVAL",
		"AUDIO_CACHE_DIR",
		"AUDIO_CACHE_MAX_AGE",
		"AUDIO_CACHE_SWEEP_INTERVAL",
		"MAX_AUDIO_FILE_SIZE_MB",
		"RATE_LIMIT_PER_MINUTE",
		"CORS_ORIGINS",
		"PERSONA_NAME",
		"PERSONA_TITLE",
		"PERSONA_EMAIL",
		"PERSONA_PHONE",
		"PERSONA_BIO",
	}
	for _, key := range keys {
		t.Setenv(key, "")
	}
}
