package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/irislabs/iris/internal/audiocache"
	"github.com/irislabs/iris/internal/config"
	"github.com/irislabs/iris/internal/dialog"
	"github.com/irislabs/iris/internal/httpapi"
	"github.com/irislabs/iris/internal/logging"
	"github.com/irislabs/iris/internal/observability"
	"github.com/irislabs/iris/internal/prompt"
	"github.com/irislabs/iris/internal/provider"
	"github.com/irislabs/iris/internal/session"
)

func main() {
	dotenvErr := godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		logging.New("info", "").Fatalf("config error: %v", err)
	}

	log := logging.New(cfg.LogLevel, cfg.Environment)
	if dotenvErr != nil {
		log.Debug("no .env file found, using process environment")
	}
	metrics := observability.NewMetrics(cfg.MetricsNamespace)

	var gateway provider.Gateway
	providerMode := strings.ToLower(strings.TrimSpace(cfg.ProviderMode))
	if providerMode == "" {
		providerMode = "auto"
	}

	tryOpenAI := func(fatal bool) bool {
		g, err := provider.NewOpenAIGateway(provider.OpenAIConfig{
			APIKey:       cfg.OpenAIAPIKey,
			BaseURL:      cfg.OpenAIBaseURL,
			Model:        cfg.OpenAIModel,
			TTSModel:     cfg.OpenAITTSModel,
			WhisperModel: cfg.OpenAIWhisperModel,
			Voice:        cfg.OpenAITTSVoice,
			Temperature:  float32(cfg.OpenAITemperature),
			MaxTokens:    cfg.OpenAIMaxTokens,
			Timeout:      cfg.OpenAITimeout,
		})
		if err != nil {
			if fatal {
				log.Fatalf("openai provider init failed: %v", err)
			}
			log.Warnf("openai provider unavailable: %v", err)
			return false
		}
		gateway = g
		log.WithField("model", cfg.OpenAIModel).Info("provider: openai")
		return true
	}

	switch providerMode {
	case "openai":
		tryOpenAI(true)
	case "mock":
		gateway = provider.NewMock()
		log.Info("provider: mock")
	case "auto":
		if !tryOpenAI(false) {
			gateway = provider.NewMock()
			log.Info("provider: mock (no openai key configured)")
		}
	default:
		log.Fatalf("invalid PROVIDER_MODE: %q (expected auto|openai|mock)", cfg.ProviderMode)
	}

	systemPrompt := prompt.Render(prompt.Persona{
		Name:  cfg.PersonaName,
		Title: cfg.PersonaTitle,
		Email: cfg.PersonaEmail,
		Phone: cfg.PersonaPhone,
		Bio:   cfg.PersonaBio,
	})

	sessions := session.NewManager(systemPrompt, cfg.MaxConversationLength, cfg.SessionTimeout)
	sessions.SetExpireHook(func(_ *session.Session) {
		metrics.SessionEvents.WithLabelValues("expired").Inc()
		metrics.ActiveSessions.Set(float64(sessions.Stats().ActiveSessions))
	})

	cache, err := audiocache.New(cfg.AudioCacheDir, gateway, cfg.OpenAITTSVoice, cfg.TTSSpeed, log)
	if err != nil {
		log.Fatalf("audio cache init failed: %v", err)
	}

	orchestrator := dialog.NewOrchestrator(sessions, gateway, cache, metrics, log, cfg.OpenAITTSVoice)
	api := httpapi.New(cfg, sessions, orchestrator, cache, metrics, log)

	httpServer := &http.Server{
		Addr:    cfg.BindAddr,
		Handler: api.Router(),
	}

	runCtx, runCancel := context.WithCancel(context.Background())
	defer runCancel()
	sessions.StartJanitor(runCtx, cfg.SessionSweepInterval)
	cache.StartJanitor(runCtx, cfg.AudioCacheSweepInterval, cfg.AudioCacheMaxAge)

	go func() {
		log.WithField("addr", cfg.BindAddr).Info("server listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("listen error: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	log.Info("shutdown signal received")

	runCancel()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Warnf("graceful shutdown failed: %v", err)
		_ = httpServer.Close()
	}

	log.Info("shutdown complete")
}
