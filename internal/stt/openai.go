package stt

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"sync"
	"time"
)

const (
	openAIBaseURL            = "https://api.openai.com/v1"
	openAITranscribeEndpoint = "/audio/transcriptions"

	// ModelWhisper1 is the OpenAI Whisper model for transcription.
	ModelWhisper1 = "whisper-1"

	defaultOpenAITimeout = 60 * time.Second
)

// OpenAIBackend transcribes fed audio with OpenAI's Whisper API, one HTTP
// request per Feed call, reporting each response as a single Final Result
// on the channel Results returns. Adapted from the teacher's
// OpenAIService.Transcribe (same multipart/WAV-wrapping request shape)
// into the asynchronous Feed/Results seam internal/stages/asr consumes.
type OpenAIBackend struct {
	apiKey  string
	baseURL string
	client  *http.Client
	model   string

	results chan Result
	wg      sync.WaitGroup

	closeOnce sync.Once
	closed    chan struct{}
}

// OpenAIOption configures an OpenAIBackend.
type OpenAIOption func(*OpenAIBackend)

// WithOpenAIBaseURL overrides the API base URL (testing, proxies).
func WithOpenAIBaseURL(url string) OpenAIOption {
	return func(b *OpenAIBackend) { b.baseURL = url }
}

// WithOpenAIClient overrides the HTTP client.
func WithOpenAIClient(client *http.Client) OpenAIOption {
	return func(b *OpenAIBackend) { b.client = client }
}

// WithOpenAIModel overrides the transcription model.
func WithOpenAIModel(model string) OpenAIOption {
	return func(b *OpenAIBackend) { b.model = model }
}

// NewOpenAI creates an OpenAI-backed Transcriber.
func NewOpenAI(apiKey string, opts ...OpenAIOption) *OpenAIBackend {
	b := &OpenAIBackend{
		apiKey:  apiKey,
		baseURL: openAIBaseURL,
		client:  &http.Client{Timeout: defaultOpenAITimeout},
		model:   ModelWhisper1,
		results: make(chan Result, 8),
		closed:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Name returns the provider identifier.
func (b *OpenAIBackend) Name() string { return "openai-whisper" }

// Feed submits one chunk's audio for transcription in the background; the
// resulting Result arrives later on Results. A request that fails is
// dropped: no Result is reported for it, and its error is neither logged
// nor surfaced to the caller.
func (b *OpenAIBackend) Feed(ctx context.Context, start, end time.Duration, pcm []byte) error {
	if len(pcm) == 0 {
		return ErrEmptyAudio
	}
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		text, err := b.transcribe(ctx, pcm)
		select {
		case <-b.closed:
			return
		default:
		}
		if err != nil {
			return
		}
		select {
		case b.results <- Result{Start: start, End: end, Text: text, Final: true}:
		case <-b.closed:
		}
	}()
	return nil
}

func (b *OpenAIBackend) transcribe(ctx context.Context, pcm []byte) (string, error) {
	wav := wrapPCMAsWAV(pcm, DefaultSampleRate, DefaultChannels, DefaultBitDepth)

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", "audio.wav")
	if err != nil {
		return "", fmt.Errorf("create form file: %w", err)
	}
	if _, err := part.Write(wav); err != nil {
		return "", fmt.Errorf("write audio data: %w", err)
	}
	if err := writer.WriteField("model", b.model); err != nil {
		return "", fmt.Errorf("write model field: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.baseURL+openAITranscribeEndpoint, &buf)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+b.apiKey)
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := b.client.Do(req)
	if err != nil {
		return "", NewTranscriptionError("openai", "", "request failed", err, true)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", NewTranscriptionError("openai", fmt.Sprintf("%d", resp.StatusCode), string(body), nil, resp.StatusCode >= 500)
	}

	var parsed struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("parse response: %w", err)
	}
	return parsed.Text, nil
}

// Results returns the channel asynchronous transcripts arrive on.
func (b *OpenAIBackend) Results() <-chan Result { return b.results }

// Close waits for in-flight requests to settle, then closes Results.
func (b *OpenAIBackend) Close(ctx context.Context) error {
	b.closeOnce.Do(func() {
		done := make(chan struct{})
		go func() {
			b.wg.Wait()
			close(done)
		}()
		select {
		case <-done:
		case <-ctx.Done():
		}
		close(b.closed)
		close(b.results)
	})
	return nil
}

// wrapPCMAsWAV prepends a minimal canonical WAV header to raw PCM16 data.
func wrapPCMAsWAV(pcm []byte, sampleRate, channels, bitDepth int) []byte {
	byteRate := sampleRate * channels * bitDepth / 8
	blockAlign := channels * bitDepth / 8
	dataLen := len(pcm)

	buf := new(bytes.Buffer)
	buf.WriteString("RIFF")
	writeUint32(buf, uint32(36+dataLen))
	buf.WriteString("WAVE")
	buf.WriteString("fmt ")
	writeUint32(buf, 16)
	writeUint16(buf, 1) // PCM
	writeUint16(buf, uint16(channels))
	writeUint32(buf, uint32(sampleRate))
	writeUint32(buf, uint32(byteRate))
	writeUint16(buf, uint16(blockAlign))
	writeUint16(buf, uint16(bitDepth))
	buf.WriteString("data")
	writeUint32(buf, uint32(dataLen))
	buf.Write(pcm)
	return buf.Bytes()
}

func writeUint32(buf *bytes.Buffer, v uint32) {
	b := make([]byte, 4)
	b[0] = byte(v)
	b[1] = byte(v >> 8)
	b[2] = byte(v >> 16)
	b[3] = byte(v >> 24)
	buf.Write(b)
}

func writeUint16(buf *bytes.Buffer, v uint16) {
	b := make([]byte, 2)
	b[0] = byte(v)
	b[1] = byte(v >> 8)
	buf.Write(b)
}
