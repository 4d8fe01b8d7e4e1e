package dialog

import (
	"context"
	"fmt"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/irislabs/iris/internal/audiocache"
	"github.com/irislabs/iris/internal/observability"
	"github.com/irislabs/iris/internal/provider"
	"github.com/irislabs/iris/internal/session"
)

var metricsSeq int

func newTestOrchestrator(t *testing.T) (*Orchestrator, *session.Manager, *provider.Mock) {
	t.Helper()
	metricsSeq++
	log := logrus.New()
	log.SetOutput(io.Discard)
	sessions := session.NewManager("persona prompt", 20, time.Minute)
	gateway := provider.NewMock()
	cache, err := audiocache.New(t.TempDir(), gateway, "alloy", 1.25, log)
	if err != nil {
		t.Fatalf("audiocache.New() error = %v", err)
	}
	metrics := observability.NewMetrics(fmt.Sprintf("test_dialog_%d_%d", time.Now().UnixNano(), metricsSeq))
	return NewOrchestrator(sessions, gateway, cache, metrics, log, "alloy"), sessions, gateway
}

func TestChatCreatesSessionAndCommitsTurn(t *testing.T) {
	o, sessions, gateway := newTestOrchestrator(t)

	got, err := o.Chat(context.Background(), "", "hello there")
	if err != nil {
		t.Fatalf("Chat() error = %v", err)
	}
	if got.SessionID == "" {
		t.Fatalf("SessionID should not be empty")
	}
	if got.Reply != "simulated assistant reply" {
		t.Fatalf("Reply = %q", got.Reply)
	}

	sess, err := sessions.Get(got.SessionID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if sess.MessageCount != 2 {
		t.Fatalf("MessageCount = %d, want 2", sess.MessageCount)
	}
	if sess.Messages[1].Role != session.RoleUser || sess.Messages[1].Content != "hello there" {
		t.Fatalf("user message not committed: %+v", sess.Messages[1])
	}
	if sess.Messages[2].Role != session.RoleAssistant {
		t.Fatalf("assistant message not committed: %+v", sess.Messages[2])
	}

	// The provider saw the pinned system message plus the candidate turn.
	hist := gateway.LastMessages()
	if len(hist) != 2 || hist[0].Role != session.RoleSystem || hist[1].Content != "hello there" {
		t.Fatalf("unexpected history sent to provider: %+v", hist)
	}
}

func TestChatReusesExistingSession(t *testing.T) {
	o, _, _ := newTestOrchestrator(t)
	ctx := context.Background()

	first, err := o.Chat(ctx, "", "first")
	if err != nil {
		t.Fatalf("Chat(first) error = %v", err)
	}
	second, err := o.Chat(ctx, first.SessionID, "second")
	if err != nil {
		t.Fatalf("Chat(second) error = %v", err)
	}
	if second.SessionID != first.SessionID {
		t.Fatalf("session rolled over unexpectedly: %q vs %q", second.SessionID, first.SessionID)
	}
}

func TestChatUnknownSessionRollsOver(t *testing.T) {
	o, _, _ := newTestOrchestrator(t)

	got, err := o.Chat(context.Background(), "no-such-session", "hello")
	if err != nil {
		t.Fatalf("Chat() error = %v", err)
	}
	if got.SessionID == "no-such-session" {
		t.Fatalf("expired id must not be resurrected")
	}
}

func TestChatProviderFailureCommitsNothing(t *testing.T) {
	o, sessions, gateway := newTestOrchestrator(t)
	ctx := context.Background()

	first, err := o.Chat(ctx, "", "first")
	if err != nil {
		t.Fatalf("Chat(first) error = %v", err)
	}

	gateway.CompleteErr = &provider.Error{Op: "complete", StatusCode: 500, Retryable: true, Err: fmt.Errorf("upstream down")}
	if _, err := o.Chat(ctx, first.SessionID, "second"); err == nil {
		t.Fatalf("Chat() with failing provider should error")
	}

	sess, err := sessions.Get(first.SessionID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if sess.MessageCount != 2 {
		t.Fatalf("MessageCount = %d, want 2 (failed turn must not commit)", sess.MessageCount)
	}
}

func TestVoiceChatProducesDataURIAndNoArtifact(t *testing.T) {
	o, _, gateway := newTestOrchestrator(t)

	got, err := o.VoiceChat(context.Background(), []byte{0x01, 0x02}, "clip.wav", "")
	if err != nil {
		t.Fatalf("VoiceChat() error = %v", err)
	}
	if got.Transcription != "simulated voice input" {
		t.Fatalf("Transcription = %q", got.Transcription)
	}
	if !strings.HasPrefix(got.AudioDataURI, "data:audio/mpeg;base64,") {
		t.Fatalf("AudioDataURI = %q", got.AudioDataURI)
	}
	if gateway.SynthesizeCalls() != 1 {
		t.Fatalf("SynthesizeCalls() = %d, want 1", gateway.SynthesizeCalls())
	}

	// Ephemeral replies never become retrievable artifacts.
	if _, ok := o.cache.Get(audiocache.Key(got.Reply, "alloy")); ok {
		t.Fatalf("voice reply was persisted to the cache")
	}
}

func TestVoiceChatTranscriptionFailureStopsTurn(t *testing.T) {
	o, sessions, gateway := newTestOrchestrator(t)
	gateway.TranscribeErr = &provider.Error{Op: "transcribe", Err: fmt.Errorf("bad format")}

	if _, err := o.VoiceChat(context.Background(), []byte{0x01}, "clip.wav", ""); err == nil {
		t.Fatalf("VoiceChat() with failing transcription should error")
	}
	if st := sessions.Stats(); st.ActiveSessions != 0 {
		t.Fatalf("ActiveSessions = %d, want 0 (no session for failed transcription)", st.ActiveSessions)
	}
}

func TestSpeakPersistsArtifact(t *testing.T) {
	o, _, gateway := newTestOrchestrator(t)

	id, speech, err := o.Speak(context.Background(), "hello world", "")
	if err != nil {
		t.Fatalf("Speak() error = %v", err)
	}
	if len(speech) == 0 {
		t.Fatalf("speech should not be empty")
	}
	if _, ok := o.cache.Get(id); !ok {
		t.Fatalf("artifact %q should be retrievable after Speak", id)
	}

	if _, _, err := o.Speak(context.Background(), "hello world", ""); err != nil {
		t.Fatalf("second Speak() error = %v", err)
	}
	if gateway.SynthesizeCalls() != 1 {
		t.Fatalf("SynthesizeCalls() = %d, want 1 (second call served from cache)", gateway.SynthesizeCalls())
	}
}
