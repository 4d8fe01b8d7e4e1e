// Package protocol defines the JSON request and response shapes of the
// public API.
package protocol

import (
	"errors"
	"strings"
	"time"
)

const (
	MaxChatMessageLen = 2000
	MaxTTSTextLen     = 4096
)

type ChatRequest struct {
	Message   string `json:"message"`
	SessionID string `json:"session_id,omitempty"`
}

// Validate reports the first problem with the request, if any.
func (r ChatRequest) Validate() error {
	msg := strings.TrimSpace(r.Message)
	if msg == "" {
		return errors.New("message must not be empty")
	}
	if len(r.Message) > MaxChatMessageLen {
		return errors.New("message exceeds maximum length")
	}
	return nil
}

type ChatResponse struct {
	Response   string    `json:"response"`
	SessionID  string    `json:"session_id"`
	Timestamp  time.Time `json:"timestamp"`
	TokensUsed int       `json:"tokens_used,omitempty"`
}

type VoiceChatResponse struct {
	Transcription string    `json:"transcription"`
	Response      string    `json:"response"`
	AudioBase64   string    `json:"audio_base64"`
	SessionID     string    `json:"session_id"`
	Timestamp     time.Time `json:"timestamp"`
}

type TTSRequest struct {
	Text  string `json:"text"`
	Voice string `json:"voice,omitempty"`
}

func (r TTSRequest) Validate() error {
	if strings.TrimSpace(r.Text) == "" {
		return errors.New("text must not be empty")
	}
	if len(r.Text) > MaxTTSTextLen {
		return errors.New("text exceeds maximum length")
	}
	return nil
}

type SessionMessage struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

type SessionMessagesResponse struct {
	SessionID    string           `json:"session_id"`
	MessageCount int              `json:"message_count"`
	Messages     []SessionMessage `json:"messages"`
}

type DeletedResponse struct {
	Message   string `json:"message"`
	SessionID string `json:"session_id,omitempty"`
	AudioID   string `json:"audio_id,omitempty"`
}

type HealthResponse struct {
	Status          string    `json:"status"`
	OpenAIConnected bool      `json:"openai_connected"`
	Timestamp       time.Time `json:"timestamp"`
	Version         string    `json:"version"`
}

type ErrorResponse struct {
	Error     string    `json:"error"`
	Detail    string    `json:"detail,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}
