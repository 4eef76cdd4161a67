package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRedactMasksSecretShapedNames(t *testing.T) {
	tests := []struct {
		name string
		key  string
		want any
	}{
		{"api key", "apiKey", "[REDACTED]"},
		{"secret", "client_secret", "[REDACTED]"},
		{"token", "authToken", "[REDACTED]"},
		{"password", "password", "[REDACTED]"},
		{"unrelated", "sampleRate", 48000},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Redact(tt.key, tt.want)
			if tt.key == "sampleRate" {
				assert.Equal(t, 48000, got)
				return
			}
			assert.Equal(t, "[REDACTED]", got)
		})
	}
}

func TestRedactMapLeavesNonSecretValuesIntact(t *testing.T) {
	in := map[string]any{"model": "tiny", "apiKey": "sk-abc123"}
	out := RedactMap(in)
	assert.Equal(t, "tiny", out["model"])
	assert.Equal(t, "[REDACTED]", out["apiKey"])
}

func TestSetLevelNoneDisablesOutput(t *testing.T) {
	t.Cleanup(func() { SetLevel(LevelInfo) })
	SetLevel(LevelNone)
	assert.Equal(t, LevelNone, CurrentLevel())
}

func TestStageReturnsUsableLogger(t *testing.T) {
	l := Stage("vad:1")
	assert.NotNil(t, l)
}
