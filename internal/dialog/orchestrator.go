// Package dialog composes the session store, the provider gateway and the
// audio cache into complete conversation turns.
package dialog

import (
	"context"
	"encoding/base64"
	"errors"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/irislabs/iris/internal/audiocache"
	"github.com/irislabs/iris/internal/observability"
	"github.com/irislabs/iris/internal/policy"
	"github.com/irislabs/iris/internal/provider"
	"github.com/irislabs/iris/internal/session"
)

type Orchestrator struct {
	sessions *session.Manager
	gateway  provider.Gateway
	cache    *audiocache.Cache
	metrics  *observability.Metrics
	log      *logrus.Logger
	voice    string
}

func NewOrchestrator(
	sessions *session.Manager,
	gateway provider.Gateway,
	cache *audiocache.Cache,
	metrics *observability.Metrics,
	log *logrus.Logger,
	defaultVoice string,
) *Orchestrator {
	return &Orchestrator{
		sessions: sessions,
		gateway:  gateway,
		cache:    cache,
		metrics:  metrics,
		log:      log,
		voice:    defaultVoice,
	}
}

type ChatResult struct {
	Reply      string
	SessionID  string
	TokensUsed int
}

type VoiceResult struct {
	Transcription string
	Reply         string
	AudioDataURI  string
	SessionID     string
}

// Chat runs one text turn. The candidate user message is only committed to
// the session together with the assistant reply, after the provider call
// succeeds; a failed turn leaves the log untouched.
func (o *Orchestrator) Chat(ctx context.Context, sessionID, message string) (ChatResult, error) {
	sess := o.resolve(sessionID)

	history := append(sess.Messages, session.Message{
		Role:      session.RoleUser,
		Content:   message,
		Timestamp: time.Now().UTC(),
	})

	comp, err := o.gateway.Complete(ctx, history, provider.CompleteOptions{})
	if err != nil {
		o.observeProviderErr("complete", err)
		return ChatResult{}, err
	}

	if err := o.sessions.Append(sess.ID, session.RoleUser, message); err != nil {
		// Session expired while the provider call was in flight.
		return ChatResult{}, err
	}
	if err := o.sessions.Append(sess.ID, session.RoleAssistant, comp.Content); err != nil {
		return ChatResult{}, err
	}

	o.metrics.TokensUsed.Add(float64(comp.TokensUsed))
	o.log.WithFields(logrus.Fields{
		"session_id":    sess.ID,
		"tokens_used":   comp.TokensUsed,
		"finish_reason": comp.FinishReason,
		"reply_preview": policy.LogSafe(comp.Content, 80),
	}).Debug("chat turn complete")

	return ChatResult{
		Reply:      comp.Content,
		SessionID:  sess.ID,
		TokensUsed: comp.TokensUsed,
	}, nil
}

// VoiceChat transcribes the uploaded audio, runs a chat turn on the
// transcription and speaks the reply. The spoken reply is ephemeral: it is
// neither served from nor written to the audio cache, since live utterances
// rarely repeat.
func (o *Orchestrator) VoiceChat(ctx context.Context, audio []byte, filename, sessionID string) (VoiceResult, error) {
	transcription, err := o.gateway.Transcribe(ctx, audio, filename)
	if err != nil {
		o.observeProviderErr("transcribe", err)
		return VoiceResult{}, err
	}
	o.log.WithFields(logrus.Fields{
		"filename":      filename,
		"bytes":         len(audio),
		"transcription": policy.LogSafe(transcription, 80),
	}).Info("voice input transcribed")

	turn, err := o.Chat(ctx, sessionID, transcription)
	if err != nil {
		return VoiceResult{}, err
	}

	_, speech, err := o.cache.FetchOrSynthesize(ctx, turn.Reply, o.voice, false, false)
	if err != nil {
		o.observeProviderErr("synthesize", err)
		return VoiceResult{}, err
	}
	o.metrics.AudioCacheOps.WithLabelValues("ephemeral").Inc()

	return VoiceResult{
		Transcription: transcription,
		Reply:         turn.Reply,
		AudioDataURI:  "data:audio/mpeg;base64," + base64.StdEncoding.EncodeToString(speech),
		SessionID:     turn.SessionID,
	}, nil
}

// Speak synthesizes standalone speech through the cache, persisting the
// artifact so repeated requests are served from disk.
func (o *Orchestrator) Speak(ctx context.Context, text, voice string) (string, []byte, error) {
	id, speech, err := o.cache.FetchOrSynthesize(ctx, text, voice, true, true)
	if err != nil {
		o.observeProviderErr("synthesize", err)
		return "", nil, err
	}
	o.metrics.AudioCacheOps.WithLabelValues("persist").Inc()
	return id, speech, nil
}

// Ping reports provider liveness.
func (o *Orchestrator) Ping(ctx context.Context) bool {
	return o.gateway.Ping(ctx)
}

// resolve returns the live session for the id, or a fresh one when the id
// is empty, unknown or expired. An expired id silently rolls over to a new
// session rather than failing the turn.
func (o *Orchestrator) resolve(sessionID string) *session.Session {
	if sessionID != "" {
		if sess, err := o.sessions.Get(sessionID); err == nil {
			return sess
		}
		o.log.WithField("session_id", sessionID).Warn("session missing or expired, starting a new one")
	}
	sess := o.sessions.Create()
	o.metrics.SessionEvents.WithLabelValues("created").Inc()
	o.metrics.ActiveSessions.Set(float64(o.sessions.Stats().ActiveSessions))
	o.log.WithField("session_id", sess.ID).Info("session created")
	return sess
}

func (o *Orchestrator) observeProviderErr(op string, err error) {
	status := "unknown"
	var pe *provider.Error
	if errors.As(err, &pe) && pe.StatusCode > 0 {
		status = strconv.Itoa(pe.StatusCode)
	}
	o.metrics.ProviderErrors.WithLabelValues(op, status).Inc()
	o.log.WithError(err).WithField("operation", op).Error("provider call failed")
}
