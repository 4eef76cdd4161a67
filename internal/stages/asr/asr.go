// Package asr implements the word-aligned ASR exemplar stage (spec §4.6):
// audio-in, text-out, folding upstream meta onto each transcript via a
// TimeStore and attaching a "words" alignment array. Grounded on the
// teacher's runtime/stt/service.go seam (generalized into the asynchronous
// internal/stt.Transcriber this stage drives) and on internal/queue's
// TimeStore for the interval-keyed meta realignment the spec calls for.
package asr

import (
	"context"
	"fmt"

	"github.com/speechflow/speechflow/internal/chunk"
	"github.com/speechflow/speechflow/internal/cstream"
	"github.com/speechflow/speechflow/internal/queue"
	"github.com/speechflow/speechflow/internal/stage"
	"github.com/speechflow/speechflow/internal/stt"
)

// Schema is the parameter schema this stage type declares. apiKey is
// redacted in logs and the -S status table per its name (spec §4.4).
var Schema = stage.Schema{
	{Name: "apiKey", Type: stage.ParamString, Positional: -1, Default: ""},
	{Name: "model", Type: stage.ParamString, Positional: -1, Default: stt.ModelWhisper1},
	{Name: "language", Type: stage.ParamString, Positional: -1, Default: "en"},
}

// Stage transcribes incoming audio chunks and emits word-aligned text.
type Stage struct {
	stage.Base

	transcriber stt.Transcriber
	metaStore   *queue.TimeStore[map[string]any]

	stream *cstream.Stream
}

// New constructs the asr stage's Stage value for the registry: the
// transcriber backend is an OpenAI Whisper client configured from params.
func New(id string) *Stage {
	return &Stage{Base: stage.NewBase(id, "a2t-asr", stage.IOAudio, stage.IOText, Schema)}
}

// NewWithTranscriber constructs an asr Stage around a caller-supplied
// Transcriber, for tests and for registrations of alternative backends.
func NewWithTranscriber(id string, transcriber stt.Transcriber) *Stage {
	return &Stage{
		Base:        stage.NewBase(id, "a2t-asr", stage.IOAudio, stage.IOText, Schema),
		transcriber: transcriber,
	}
}

// Open implements stage.Stage.
func (s *Stage) Open(ctx context.Context, env stage.Env) error {
	s.SetParams(env.Params)
	if s.transcriber == nil {
		apiKey := env.Params.String("apiKey")
		s.transcriber = stt.NewOpenAI(apiKey,
			stt.WithOpenAIModel(env.Params.String("model")),
		)
	}
	s.metaStore = queue.NewTimeStore[map[string]any]()

	s.stream = cstream.NewTransform()
	s.SetStream(s.stream)

	go s.receiveLoop(ctx)
	go s.resultLoop(ctx)
	return nil
}

func (s *Stage) receiveLoop(ctx context.Context) {
	for {
		c, ok := s.stream.Drain(ctx)
		if !ok {
			break
		}
		if len(c.Meta) > 0 {
			s.metaStore.Store(c.TimestampStart, c.TimestampEnd, c.Meta)
		}
		if err := s.transcriber.Feed(ctx, c.TimestampStart, c.TimestampEnd, c.Audio()); err != nil {
			s.stream.Fault(fmt.Errorf("asr: feed: %w", err))
			return
		}
	}
	_ = s.transcriber.Close(ctx)
}

func (s *Stage) resultLoop(ctx context.Context) {
	defer s.stream.CloseRead()

	for result := range s.transcriber.Results() {
		folded := chunk.MergeMeta(s.metaStore.Fetch(result.Start, result.End)...)
		s.metaStore.Prune(result.Start)

		words := make([]chunk.Word, len(result.Words))
		for i, w := range result.Words {
			words[i] = chunk.Word{Word: w.Word, Start: w.Start, End: w.End}
		}
		if len(words) > 0 {
			folded["words"] = words
		}

		kind := chunk.KindIntermediate
		if result.Final {
			kind = chunk.KindFinal
		}
		out := chunk.NewText(result.Start, result.End, kind, result.Text)
		out.Meta = folded

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
	if s.transcriber != nil {
		return s.transcriber.Close(ctx)
	}
	return nil
}
