// Package tts implements the text-to-speech exemplar stage (spec §4.6):
// text-in, audio-out, synthesizing each incoming chunk through an external
// Synthesizer. Ingestion is decoupled from synthesis via a single-consumer
// FIFO so a slow backend call never blocks the stage from accepting its
// next input chunk, the same asynchronous-worker shape the vad exemplar
// stage uses for its frame annotator.
package tts

import (
	"context"
	"fmt"

	"github.com/speechflow/speechflow/internal/chunk"
	"github.com/speechflow/speechflow/internal/cstream"
	"github.com/speechflow/speechflow/internal/queue"
	"github.com/speechflow/speechflow/internal/stage"
	"github.com/speechflow/speechflow/internal/tts"
)

// Schema is the parameter schema this stage type declares.
var Schema = stage.Schema{
	{Name: "apiKey", Type: stage.ParamString, Positional: -1, Default: ""},
	{Name: "voice", Type: stage.ParamString, Positional: 0, Default: "alloy"},
	{Name: "sampleRate", Type: stage.ParamNumber, Positional: -1, Default: float64(48000)},
	{Name: "speed", Type: stage.ParamNumber, Positional: -1, Default: 1.0},
}

// Stage synthesizes incoming text chunks into audio chunks.
type Stage struct {
	stage.Base

	synth  tts.Synthesizer
	cfg    tts.SynthesisConfig
	jobs   *queue.Single[chunk.Chunk]
	stream *cstream.Stream
}

// New constructs the tts stage's Stage value for the registry: the backend
// is an OpenAI TTS client configured from params.
func New(id string) *Stage {
	return &Stage{Base: stage.NewBase(id, "t2a-tts", stage.IOText, stage.IOAudio, Schema)}
}

// NewWithSynthesizer constructs a tts Stage around a caller-supplied
// Synthesizer, for tests and for registrations of alternative backends.
func NewWithSynthesizer(id string, synth tts.Synthesizer) *Stage {
	return &Stage{Base: stage.NewBase(id, "t2a-tts", stage.IOText, stage.IOAudio, Schema), synth: synth}
}

// Open implements stage.Stage.
func (s *Stage) Open(ctx context.Context, env stage.Env) error {
	s.SetParams(env.Params)
	if s.synth == nil {
		s.synth = tts.NewOpenAI(env.Params.String("apiKey"))
	}
	s.cfg = tts.SynthesisConfig{
		Voice:      env.Params.String("voice"),
		SampleRate: int(env.Params.Number("sampleRate")),
		Speed:      env.Params.Number("speed"),
	}
	if s.cfg.Voice == "" {
		s.cfg.Voice = "alloy"
	}
	if s.cfg.Speed == 0 {
		s.cfg.Speed = 1.0
	}

	s.jobs = queue.NewSingle[chunk.Chunk]()
	s.stream = cstream.NewTransform()
	s.SetStream(s.stream)

	go s.receiveLoop(ctx)
	go s.synthesizeLoop(ctx)
	return nil
}

func (s *Stage) receiveLoop(ctx context.Context) {
	for {
		c, ok := s.stream.Drain(ctx)
		if !ok {
			break
		}
		s.jobs.Write(c)
	}
	s.jobs.Close()
}

func (s *Stage) synthesizeLoop(ctx context.Context) {
	defer s.stream.CloseRead()

	for {
		c, ok := s.jobs.Read()
		if !ok {
			return
		}
		pcm, err := s.synth.Synthesize(ctx, c.Text(), s.cfg)
		if err != nil {
			s.stream.Fault(fmt.Errorf("tts: synthesize: %w", err))
			return
		}
		out := chunk.NewAudio(c.TimestampStart, c.TimestampEnd, c.Kind, pcm)
		out.Meta = chunk.MergeMeta(c.Meta)
		if err := s.stream.Emit(ctx, out); err != nil {
			return
		}
	}
}

// Close implements stage.Stage.
func (s *Stage) Close(ctx context.Context) error {
	if s.stream != nil {
		s.stream.CloseRead()
	}
	return nil
}
