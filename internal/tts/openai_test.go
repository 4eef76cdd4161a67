package tts_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/speechflow/speechflow/internal/tts"
)

func TestOpenAIBackendSynthesize(t *testing.T) {
	want := []byte{1, 2, 3, 4}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(want)
	}))
	defer srv.Close()

	b := tts.NewOpenAI("test-key", tts.WithOpenAIBaseURL(srv.URL), tts.WithOpenAIClient(srv.Client()))
	require.Equal(t, "openai-tts", b.Name())

	got, err := b.Synthesize(context.Background(), "hello", tts.DefaultSynthesisConfig())
	require.NoError(t, err)
	assert.Equal(t, want, got)
}
