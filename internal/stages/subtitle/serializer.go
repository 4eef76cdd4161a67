// Package subtitle implements the subtitle serializer and parser exemplar
// stages (spec §4.6): text-in/text-out stages that render SRT/VTT cue
// blocks from text chunks (optionally word-timed) and, in the other
// direction, parse SRT/VTT source text back into per-cue text chunks.
// Built in the idiom of the other exemplar stages (small stage-internal
// state, a dedicated run loop per stage); no direct teacher analogue exists
// (PromptKit has no subtitle format), so the cue grammar and timestamp
// rules follow the spec's §6/§8 format baselines directly.
package subtitle

import (
	"context"
	"fmt"
	"regexp"

	"github.com/speechflow/speechflow/internal/chunk"
	"github.com/speechflow/speechflow/internal/cstream"
	"github.com/speechflow/speechflow/internal/stage"
)

// Format selects the emitted/parsed subtitle syntax.
type Format string

const (
	FormatSRT Format = "srt"
	FormatVTT Format = "vtt"
)

const webvttHeader = "WEBVTT\n\n"

// SerializerSchema is the parameter schema the serializer stage declares.
var SerializerSchema = stage.Schema{
	{Name: "format", Type: stage.ParamString, Positional: 0, Default: string(FormatSRT), Validate: func(v any) error {
		f, _ := v.(string)
		if f != string(FormatSRT) && f != string(FormatVTT) {
			return fmt.Errorf("subtitle: format must be %q or %q", FormatSRT, FormatVTT)
		}
		return nil
	}},
	{Name: "highlightWords", Type: stage.ParamBoolean, Positional: -1, Default: false},
}

// Serializer renders incoming text chunks as SRT or VTT cue blocks.
type Serializer struct {
	stage.Base

	stream *cstream.Stream
	format Format
	seq    int
}

// NewSerializer constructs the serializer stage's Stage value.
func NewSerializer(id string) *Serializer {
	return &Serializer{Base: stage.NewBase(id, "t2t-subtitle", stage.IOText, stage.IOText, SerializerSchema)}
}

// Open implements stage.Stage.
func (s *Serializer) Open(ctx context.Context, env stage.Env) error {
	s.SetParams(env.Params)
	s.format = Format(env.Params.String("format"))
	if s.format == "" {
		s.format = FormatSRT
	}
	s.seq = 1 // SRT sequence numbers reset per open (spec §8)
	s.stream = cstream.NewTransform()
	s.SetStream(s.stream)
	go s.run(ctx)
	return nil
}

func (s *Serializer) run(ctx context.Context) {
	defer s.stream.CloseRead()

	if s.format == FormatVTT {
		if err := s.stream.Emit(ctx, chunk.NewText(0, 0, chunk.KindFinal, webvttHeader)); err != nil {
			s.stream.Fault(err)
			return
		}
	}

	for {
		c, ok := s.stream.Drain(ctx)
		if !ok {
			break
		}
		if err := s.emitCue(ctx, c); err != nil {
			s.stream.Fault(err)
			return
		}
	}
}

func (s *Serializer) emitCue(ctx context.Context, c chunk.Chunk) error {
	start, end := c.TimestampStart, c.TimestampEnd
	if words, ok := c.Meta["words"].([]chunk.Word); ok && len(words) > 0 {
		start = words[0].Start
		end = words[len(words)-1].End
	}

	var block string
	switch s.format {
	case FormatVTT:
		block = fmt.Sprintf("%s --> %s\n%s\n\n", formatVTTTimestamp(start), formatVTTTimestamp(end), c.Text())
	default:
		block = fmt.Sprintf("%d\n%s --> %s\n%s\n\n", s.seq, formatSRTTimestamp(start), formatSRTTimestamp(end), c.Text())
		s.seq++
	}

	if err := s.stream.Emit(ctx, chunk.NewText(start, end, chunk.KindFinal, block)); err != nil {
		return err
	}

	if s.Params().Bool("highlightWords") {
		return s.emitHighlights(ctx, c)
	}
	return nil
}

// emitHighlights emits one additional cue per word-timing entry, with bold
// markup around that word's Nth occurrence in the cue text (spec §4.6),
// escaping the word for safe use inside the occurrence-counting regex.
func (s *Serializer) emitHighlights(ctx context.Context, c chunk.Chunk) error {
	words, ok := c.Meta["words"].([]chunk.Word)
	if !ok {
		return nil
	}
	text := c.Text()
	occurrence := make(map[string]int)

	for _, w := range words {
		occurrence[w.Word]++
		highlighted, err := boldNthOccurrence(text, w.Word, occurrence[w.Word])
		if err != nil {
			continue
		}
		var block string
		if s.format == FormatVTT {
			block = fmt.Sprintf("%s --> %s\n%s\n\n", formatVTTTimestamp(w.Start), formatVTTTimestamp(w.End), highlighted)
		} else {
			block = fmt.Sprintf("%d\n%s --> %s\n%s\n\n", s.seq, formatSRTTimestamp(w.Start), formatSRTTimestamp(w.End), highlighted)
			s.seq++
		}
		if err := s.stream.Emit(ctx, chunk.NewText(w.Start, w.End, chunk.KindFinal, block)); err != nil {
			return err
		}
	}
	return nil
}

// boldNthOccurrence wraps the n-th (1-indexed) whole-word occurrence of
// word in text with <b></b>, escaping word so it is safe to embed in a
// regexp even when it contains punctuation.
func boldNthOccurrence(text, word string, n int) (string, error) {
	re, err := regexp.Compile(`\b` + regexp.QuoteMeta(word) + `\b`)
	if err != nil {
		return text, err
	}
	count := 0
	return re.ReplaceAllStringFunc(text, func(match string) string {
		count++
		if count == n {
			return "<b>" + match + "</b>"
		}
		return match
	}), nil
}

// Close implements stage.Stage.
func (s *Serializer) Close(ctx context.Context) error {
	if s.stream != nil {
		s.stream.CloseRead()
	}
	return nil
}
