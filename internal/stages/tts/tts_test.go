package tts_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/speechflow/speechflow/internal/chunk"
	"github.com/speechflow/speechflow/internal/stage"
	"github.com/speechflow/speechflow/internal/stages/tts"
	ttsapi "github.com/speechflow/speechflow/internal/tts"
)

type fakeSynth struct {
	pcm []byte
}

func (f *fakeSynth) Name() string { return "fake" }

func (f *fakeSynth) Synthesize(context.Context, string, ttsapi.SynthesisConfig) ([]byte, error) {
	return f.pcm, nil
}

func TestStageSynthesizesTextChunks(t *testing.T) {
	synth := &fakeSynth{pcm: []byte{9, 9, 9}}
	s := tts.NewWithSynthesizer("tts:1", synth)
	require.NoError(t, s.Open(context.Background(), stage.Env{}))

	ctx := context.Background()
	in := chunk.NewText(time.Second, 2*time.Second, chunk.KindFinal, "hello")
	in.Meta["speaker"] = "bob"

	go func() {
		require.NoError(t, s.Stream().Write(ctx, in))
		s.Stream().CloseWrite()
	}()

	out, err := s.Stream().Read(ctx)
	require.NoError(t, err)
	require.Equal(t, []byte{9, 9, 9}, out.Audio())
	require.Equal(t, time.Second, out.TimestampStart)
	require.Equal(t, 2*time.Second, out.TimestampEnd)
	require.Equal(t, "bob", out.Meta["speaker"])
}

func TestStagePreservesInputOrder(t *testing.T) {
	synth := &fakeSynth{pcm: []byte{1}}
	s := tts.NewWithSynthesizer("tts:1", synth)
	require.NoError(t, s.Open(context.Background(), stage.Env{}))

	ctx := context.Background()
	go func() {
		require.NoError(t, s.Stream().Write(ctx, chunk.NewText(0, time.Second, chunk.KindFinal, "a")))
		require.NoError(t, s.Stream().Write(ctx, chunk.NewText(time.Second, 2*time.Second, chunk.KindFinal, "b")))
		s.Stream().CloseWrite()
	}()

	first, err := s.Stream().Read(ctx)
	require.NoError(t, err)
	require.Equal(t, time.Duration(0), first.TimestampStart)

	second, err := s.Stream().Read(ctx)
	require.NoError(t, err)
	require.Equal(t, time.Second, second.TimestampStart)

	_, err = s.Stream().Read(ctx)
	require.Error(t, err)
}
