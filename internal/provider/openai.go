package provider

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/irislabs/iris/internal/reliability"
	"github.com/irislabs/iris/internal/session"
)

const (
	// Speech rate bounds accepted by the TTS endpoint.
	minSpeechSpeed = 0.25
	maxSpeechSpeed = 4.0
)

// OpenAIConfig holds credentials and model selection for the OpenAI gateway.
type OpenAIConfig struct {
	APIKey       string
	BaseURL      string
	Model        string
	TTSModel     string
	WhisperModel string
	Voice        string
	Temperature  float32
	MaxTokens    int
	Timeout      time.Duration
}

// OpenAIGateway implements Gateway against the OpenAI API.
type OpenAIGateway struct {
	client *openai.Client
	cfg    OpenAIConfig
}

func NewOpenAIGateway(cfg OpenAIConfig) (*OpenAIGateway, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("openai api key is required")
	}
	if cfg.Model == "" {
		cfg.Model = openai.GPT4oMini
	}
	if cfg.TTSModel == "" {
		cfg.TTSModel = string(openai.TTSModel1)
	}
	if cfg.WhisperModel == "" {
		cfg.WhisperModel = openai.Whisper1
	}
	if cfg.Voice == "" {
		cfg.Voice = string(openai.VoiceAlloy)
	}
	if cfg.Temperature == 0 {
		cfg.Temperature = 0.7
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 1000
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	clientCfg.HTTPClient = &http.Client{Timeout: cfg.Timeout}

	return &OpenAIGateway{
		client: openai.NewClientWithConfig(clientCfg),
		cfg:    cfg,
	}, nil
}

func (g *OpenAIGateway) Complete(ctx context.Context, messages []session.Message, opts CompleteOptions) (Completion, error) {
	req := openai.ChatCompletionRequest{
		Model:       g.cfg.Model,
		Messages:    toChatMessages(messages),
		Temperature: g.cfg.Temperature,
		MaxTokens:   g.cfg.MaxTokens,
	}
	if opts.Temperature != 0 {
		req.Temperature = opts.Temperature
	}
	if opts.MaxTokens > 0 {
		req.MaxTokens = opts.MaxTokens
	}

	resp, err := g.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return Completion{}, wrapErr("complete", err)
	}
	if len(resp.Choices) == 0 {
		return Completion{}, &Error{Op: "complete", Err: errors.New("empty choices in completion response")}
	}

	choice := resp.Choices[0]
	return Completion{
		Content:      choice.Message.Content,
		TokensUsed:   resp.Usage.TotalTokens,
		Model:        resp.Model,
		FinishReason: string(choice.FinishReason),
	}, nil
}

func (g *OpenAIGateway) Transcribe(ctx context.Context, audio []byte, filename string) (string, error) {
	if filename == "" {
		filename = "audio.wav"
	}
	resp, err := g.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    g.cfg.WhisperModel,
		FilePath: filename,
		Reader:   bytes.NewReader(audio),
	})
	if err != nil {
		return "", wrapErr("transcribe", err)
	}
	return resp.Text, nil
}

func (g *OpenAIGateway) Synthesize(ctx context.Context, text, voice string, speed float64) ([]byte, error) {
	if voice == "" {
		voice = g.cfg.Voice
	}
	if speed < minSpeechSpeed || speed > maxSpeechSpeed {
		return nil, &Error{Op: "synthesize", Err: fmt.Errorf("speed %.2f outside [%.2f, %.2f]", speed, minSpeechSpeed, maxSpeechSpeed)}
	}

	resp, err := g.client.CreateSpeech(ctx, openai.CreateSpeechRequest{
		Model:          openai.SpeechModel(g.cfg.TTSModel),
		Input:          text,
		Voice:          openai.SpeechVoice(voice),
		Speed:          speed,
		ResponseFormat: openai.SpeechResponseFormatMp3,
	})
	if err != nil {
		return nil, wrapErr("synthesize", err)
	}
	defer resp.Close()

	audio, err := io.ReadAll(resp)
	if err != nil {
		return nil, &Error{Op: "synthesize", Err: fmt.Errorf("read speech body: %w", err)}
	}
	return audio, nil
}

// Ping probes the provider with a models listing. It never returns an
// error; any failure collapses to false.
func (g *OpenAIGateway) Ping(ctx context.Context) bool {
	_, err := g.client.ListModels(ctx)
	return err == nil
}

func toChatMessages(messages []session.Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, len(messages))
	for i, m := range messages {
		out[i] = openai.ChatCompletionMessage{
			Role:    string(m.Role),
			Content: m.Content,
		}
	}
	return out
}

func wrapErr(op string, err error) *Error {
	e := &Error{Op: op, Err: err}

	var apiErr *openai.APIError
	var reqErr *openai.RequestError
	switch {
	case errors.As(err, &apiErr):
		e.StatusCode = apiErr.HTTPStatusCode
	case errors.As(err, &reqErr):
		e.StatusCode = reqErr.HTTPStatusCode
	}

	if e.StatusCode > 0 {
		e.Retryable = reliability.IsRetryableHTTPStatus(e.StatusCode)
	} else if errors.Is(err, context.DeadlineExceeded) {
		e.Retryable = true
	}
	return e
}
