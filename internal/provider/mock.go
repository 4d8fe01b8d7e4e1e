package provider

import (
	"context"
	"fmt"
	"sync"

	"github.com/irislabs/iris/internal/session"
)

// fakeMPEGFrame is a minimal valid-looking MPEG audio frame header, enough
// for clients that only sniff the first bytes.
var fakeMPEGFrame = []byte{0xFF, 0xFB, 0x90, 0x00, 0x00, 0x00, 0x00, 0x00}

// Mock is an in-process Gateway used in tests and as the fallback provider
// when no API key is configured, so the service stays bootable offline.
type Mock struct {
	mu sync.Mutex

	Reply         string
	Transcription string
	Audio         []byte

	CompleteErr   error
	TranscribeErr error
	SynthesizeErr error
	Down          bool

	completeCalls   int
	transcribeCalls int
	synthesizeCalls int
	lastMessages    []session.Message
}

func NewMock() *Mock {
	return &Mock{
		Reply:         "simulated assistant reply",
		Transcription: "simulated voice input",
		Audio:         append([]byte(nil), fakeMPEGFrame...),
	}
}

func (m *Mock) Complete(_ context.Context, messages []session.Message, _ CompleteOptions) (Completion, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.completeCalls++
	m.lastMessages = append([]session.Message(nil), messages...)
	if m.CompleteErr != nil {
		return Completion{}, m.CompleteErr
	}
	return Completion{
		Content:      m.Reply,
		TokensUsed:   7 * len(messages),
		Model:        "mock",
		FinishReason: "stop",
	}, nil
}

func (m *Mock) Transcribe(_ context.Context, audio []byte, filename string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.transcribeCalls++
	if m.TranscribeErr != nil {
		return "", m.TranscribeErr
	}
	if len(audio) == 0 {
		return "", &Error{Op: "transcribe", Err: fmt.Errorf("empty audio payload (%s)", filename)}
	}
	return m.Transcription, nil
}

func (m *Mock) Synthesize(_ context.Context, text, voice string, _ float64) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.synthesizeCalls++
	if m.SynthesizeErr != nil {
		return nil, m.SynthesizeErr
	}
	// Vary the payload with the input so cache tests can tell artifacts apart.
	out := append([]byte(nil), m.Audio...)
	out = append(out, []byte(voice+":"+text)...)
	return out, nil
}

func (m *Mock) Ping(_ context.Context) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return !m.Down
}

func (m *Mock) CompleteCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.completeCalls
}

func (m *Mock) TranscribeCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.transcribeCalls
}

func (m *Mock) SynthesizeCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.synthesizeCalls
}

// LastMessages returns the history passed to the most recent Complete call.
func (m *Mock) LastMessages() []session.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]session.Message(nil), m.lastMessages...)
}
