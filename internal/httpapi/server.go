package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/sirupsen/logrus"

	"github.com/irislabs/iris/internal/audio"
	"github.com/irislabs/iris/internal/audiocache"
	"github.com/irislabs/iris/internal/config"
	"github.com/irislabs/iris/internal/dialog"
	"github.com/irislabs/iris/internal/observability"
	"github.com/irislabs/iris/internal/protocol"
	"github.com/irislabs/iris/internal/provider"
	"github.com/irislabs/iris/internal/session"
)

const healthPingTimeout = 5 * time.Second

type Server struct {
	cfg          config.Config
	sessions     *session.Manager
	orchestrator *dialog.Orchestrator
	cache        *audiocache.Cache
	metrics      *observability.Metrics
	log          *logrus.Logger
	limiter      *ipRateLimiter
}

func New(
	cfg config.Config,
	sessions *session.Manager,
	orchestrator *dialog.Orchestrator,
	cache *audiocache.Cache,
	metrics *observability.Metrics,
	log *logrus.Logger,
) *Server {
	return &Server{
		cfg:          cfg,
		sessions:     sessions,
		orchestrator: orchestrator,
		cache:        cache,
		metrics:      metrics,
		log:          log,
		limiter:      newIPRateLimiter(cfg.RateLimitPerMinute),
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.cfg.CORSOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"*"},
		ExposedHeaders:   []string{"*"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(s.requestLogger)

	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		observability.MetricsHandler().ServeHTTP(w, r)
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/stats", s.handleStats)

		r.Group(func(r chi.Router) {
			r.Use(s.rateLimit)
			r.Post("/chat", s.handleChat)
			r.Delete("/session/{id}", s.handleDeleteSession)
			r.Get("/session/{id}/messages", s.handleSessionMessages)
			r.Post("/voice-chat", s.handleVoiceChat)
			r.Post("/tts", s.handleTTS)
			r.Get("/audio/{id}", s.handleGetAudio)
			r.Delete("/audio/{id}", s.handleDeleteAudio)
		})
	})

	return r
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req protocol.ChatRequest
	if err := decodeJSON(r, &req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	if err := req.Validate(); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid chat request", err.Error())
		return
	}

	result, err := s.orchestrator.Chat(r.Context(), req.SessionID, req.Message)
	if err != nil {
		s.respondTurnError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, protocol.ChatResponse{
		Response:   result.Reply,
		SessionID:  result.SessionID,
		Timestamp:  time.Now().UTC(),
		TokensUsed: result.TokensUsed,
	})
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !s.sessions.Delete(id) {
		s.respondError(w, http.StatusNotFound, "session not found", fmt.Sprintf("session %s not found", id))
		return
	}
	s.metrics.SessionEvents.WithLabelValues("deleted").Inc()
	s.metrics.ActiveSessions.Set(float64(s.sessions.Stats().ActiveSessions))
	respondJSON(w, http.StatusOK, protocol.DeletedResponse{
		Message:   "session deleted successfully",
		SessionID: id,
	})
}

func (s *Server) handleSessionMessages(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	messages, err := s.sessions.Messages(id)
	if err != nil {
		s.respondError(w, http.StatusNotFound, "session not found", fmt.Sprintf("session %s not found", id))
		return
	}

	// The pinned system message is internal and never exposed.
	visible := make([]protocol.SessionMessage, 0, len(messages))
	for _, m := range messages {
		if m.Role == session.RoleSystem {
			continue
		}
		visible = append(visible, protocol.SessionMessage{
			Role:      string(m.Role),
			Content:   m.Content,
			Timestamp: m.Timestamp,
		})
	}

	respondJSON(w, http.StatusOK, protocol.SessionMessagesResponse{
		SessionID:    id,
		MessageCount: len(visible),
		Messages:     visible,
	})
}

func (s *Server) handleVoiceChat(w http.ResponseWriter, r *http.Request) {
	// Cap the whole request body a little above the audio ceiling so the
	// multipart framing itself cannot blow past the limit.
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxAudioUploadBytes+64<<10)

	if err := r.ParseMultipartForm(s.cfg.MaxAudioUploadBytes + 64<<10); err != nil {
		s.respondError(w, http.StatusRequestEntityTooLarge, "audio file too large",
			fmt.Sprintf("max size: %d bytes", s.cfg.MaxAudioUploadBytes))
		return
	}

	file, header, err := r.FormFile("audio")
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "missing audio file", "multipart field 'audio' is required")
		return
	}
	defer file.Close()

	if !audio.Supported(header.Filename) {
		s.respondError(w, http.StatusBadRequest, "unsupported audio format",
			"supported extensions: "+strings.Join(audio.SupportedExtensions(), ", "))
		return
	}

	// Size is checked before any provider call is made.
	payload, err := io.ReadAll(io.LimitReader(file, s.cfg.MaxAudioUploadBytes+1))
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "unreadable audio file", err.Error())
		return
	}
	if int64(len(payload)) > s.cfg.MaxAudioUploadBytes {
		s.respondError(w, http.StatusRequestEntityTooLarge, "audio file too large",
			fmt.Sprintf("max size: %d bytes", s.cfg.MaxAudioUploadBytes))
		return
	}

	result, err := s.orchestrator.VoiceChat(r.Context(), payload, header.Filename, r.FormValue("session_id"))
	if err != nil {
		s.respondTurnError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, protocol.VoiceChatResponse{
		Transcription: result.Transcription,
		Response:      result.Reply,
		AudioBase64:   result.AudioDataURI,
		SessionID:     result.SessionID,
		Timestamp:     time.Now().UTC(),
	})
}

func (s *Server) handleTTS(w http.ResponseWriter, r *http.Request) {
	var req protocol.TTSRequest
	if err := decodeJSON(r, &req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	if err := req.Validate(); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid tts request", err.Error())
		return
	}

	id, speech, err := s.orchestrator.Speak(r.Context(), req.Text, req.Voice)
	if err != nil {
		s.respondTurnError(w, err)
		return
	}

	w.Header().Set("Content-Type", "audio/mpeg")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s.mp3", id))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(speech)
}

func (s *Server) handleGetAudio(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	speech, ok := s.cache.Get(id)
	if !ok {
		s.respondError(w, http.StatusNotFound, "audio not found", fmt.Sprintf("audio file %s not found", id))
		return
	}
	s.metrics.AudioCacheOps.WithLabelValues("get").Inc()

	w.Header().Set("Content-Type", "audio/mpeg")
	w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=%s.mp3", id))
	w.Header().Set("Cache-Control", "public, max-age=3600")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(speech)
}

func (s *Server) handleDeleteAudio(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !s.cache.Delete(id) {
		s.respondError(w, http.StatusNotFound, "audio not found", fmt.Sprintf("audio file %s not found", id))
		return
	}
	s.metrics.AudioCacheOps.WithLabelValues("delete").Inc()
	respondJSON(w, http.StatusOK, protocol.DeletedResponse{
		Message: "audio file deleted successfully",
		AudioID: id,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthPingTimeout)
	defer cancel()

	connected := s.orchestrator.Ping(ctx)
	status := "healthy"
	if !connected {
		status = "degraded"
	}

	respondJSON(w, http.StatusOK, protocol.HealthResponse{
		Status:          status,
		OpenAIConnected: connected,
		Timestamp:       time.Now().UTC(),
		Version:         s.cfg.Version,
	})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthPingTimeout)
	defer cancel()

	respondJSON(w, http.StatusOK, map[string]any{
		"sessions":         s.sessions.Stats(),
		"storage":          s.cache.Stats(),
		"openai_connected": s.orchestrator.Ping(ctx),
	})
}

// respondTurnError maps orchestration failures onto the error taxonomy:
// vanished sessions are 404, provider failures and everything unexpected
// are 500. Detail is withheld in production unless debug is on.
func (s *Server) respondTurnError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, session.ErrNotFound):
		s.respondError(w, http.StatusNotFound, "session not found", err.Error())
	case provider.IsProviderError(err):
		s.respondError(w, http.StatusInternalServerError, "provider request failed", err.Error())
	default:
		s.respondError(w, http.StatusInternalServerError, "internal error", err.Error())
	}
}

func (s *Server) respondError(w http.ResponseWriter, status int, message, detail string) {
	if status >= http.StatusInternalServerError && s.cfg.IsProduction() && !s.cfg.Debug {
		detail = "an unexpected error occurred"
	}
	respondJSON(w, status, protocol.ErrorResponse{
		Error:     message,
		Detail:    detail,
		Timestamp: time.Now().UTC(),
	})
}

func decodeJSON(r *http.Request, out any) error {
	if r.Body == nil {
		return errors.New("empty body")
	}
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(out)
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
