package chunk

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAudioCopiesBuffer(t *testing.T) {
	samples := []byte{1, 2, 3, 4}
	c := NewAudio(0, time.Millisecond, KindFinal, samples)
	samples[0] = 0xff
	assert.Equal(t, []byte{1, 2, 3, 4}, c.Audio(), "NewAudio must copy, not alias, the caller's buffer")
}

func TestNewTextRoundtrip(t *testing.T) {
	c := NewText(0, time.Second, KindIntermediate, "hello")
	assert.Equal(t, "hello", c.Text())
	assert.Empty(t, c.Audio())
	assert.Equal(t, time.Second, c.Duration())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		c       Chunk
		wantErr error
	}{
		{"valid audio", NewAudio(0, time.Millisecond, KindFinal, []byte{1}), nil},
		{"valid text", NewText(0, time.Millisecond, KindFinal, "x"), nil},
		{"inverted interval", NewText(time.Second, 0, KindFinal, "x"), ErrInvalidInterval},
		{"unset type", Chunk{TimestampStart: 0, TimestampEnd: time.Second}, ErrTypeMismatch},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.c.Validate()
			if tt.wantErr == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}

func TestCloneIsIndependent(t *testing.T) {
	orig := NewAudio(0, time.Millisecond, KindIntermediate, []byte{1, 2, 3})
	orig.Meta["words"] = []string{"a"}

	clone := orig.Clone()
	clone.payloadBytes[0] = 0xff
	clone.Meta["words"] = []string{"b"}

	assert.Equal(t, byte(1), orig.Audio()[0], "mutating the clone's payload must not affect the original")
	assert.Equal(t, []string{"a"}, orig.Meta["words"], "mutating the clone's meta must not affect the original")
}

func TestWithMetaLastWriterWins(t *testing.T) {
	c := NewText(0, time.Second, KindFinal, "hi").WithMeta("speaker", "a")
	c2 := c.WithMeta("speaker", "b")
	assert.Equal(t, "a", c.Meta["speaker"])
	assert.Equal(t, "b", c2.Meta["speaker"])
}

func TestMergeMeta(t *testing.T) {
	out := MergeMeta(
		map[string]any{"a": 1, "b": 1},
		map[string]any{"b": 2, "c": 3},
	)
	require.Len(t, out, 3)
	assert.Equal(t, 1, out["a"])
	assert.Equal(t, 2, out["b"], "later maps must win on key collision")
	assert.Equal(t, 3, out["c"])
}

func TestOverlaps(t *testing.T) {
	c := NewText(time.Second, 2*time.Second, KindFinal, "x")
	assert.True(t, c.Overlaps(500*time.Millisecond, time.Second+1))
	assert.True(t, c.Overlaps(time.Second, 3*time.Second))
	assert.False(t, c.Overlaps(3*time.Second, 4*time.Second))
}
