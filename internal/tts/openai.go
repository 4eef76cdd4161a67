package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	openAIBaseURL     = "https://api.openai.com/v1"
	openAITTSEndpoint = "/audio/speech"

	// ModelTTS1 is the OpenAI TTS model optimized for speed.
	ModelTTS1 = "tts-1"

	defaultOpenAITimeout = 30 * time.Second
)

// OpenAIBackend implements Synthesizer using OpenAI's text-to-speech API,
// requesting raw PCM so the caller's boundary never needs a decoder.
// Adapted from the teacher's tts.OpenAIService.Synthesize.
type OpenAIBackend struct {
	apiKey  string
	baseURL string
	client  *http.Client
	model   string
}

// OpenAIOption configures an OpenAIBackend.
type OpenAIOption func(*OpenAIBackend)

// WithOpenAIBaseURL overrides the API base URL.
func WithOpenAIBaseURL(url string) OpenAIOption {
	return func(b *OpenAIBackend) { b.baseURL = url }
}

// WithOpenAIClient overrides the HTTP client.
func WithOpenAIClient(client *http.Client) OpenAIOption {
	return func(b *OpenAIBackend) { b.client = client }
}

// NewOpenAI creates an OpenAI-backed Synthesizer.
func NewOpenAI(apiKey string, opts ...OpenAIOption) *OpenAIBackend {
	b := &OpenAIBackend{
		apiKey:  apiKey,
		baseURL: openAIBaseURL,
		client:  &http.Client{Timeout: defaultOpenAITimeout},
		model:   ModelTTS1,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Name returns the provider identifier.
func (b *OpenAIBackend) Name() string { return "openai-tts" }

// Synthesize requests PCM audio for text from OpenAI's TTS endpoint.
func (b *OpenAIBackend) Synthesize(ctx context.Context, text string, cfg SynthesisConfig) ([]byte, error) {
	voice := cfg.Voice
	if voice == "" {
		voice = "alloy"
	}
	reqBody, err := json.Marshal(map[string]any{
		"model":           b.model,
		"input":           text,
		"voice":           voice,
		"response_format": "pcm",
		"speed":           cfg.Speed,
	})
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.baseURL+openAITTSEndpoint, bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+b.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("openai tts: status %d: %s", resp.StatusCode, string(body))
	}
	return body, nil
}
