// Package sentence implements the sentence-splitting exemplar stage (spec
// §4.6): text-in, text-out, merging and splitting chunks at
// terminal-punctuation boundaries so each emitted chunk is exactly one
// complete sentence. Grounded on the teacher's stage-internal state-machine
// idiom (runtime/pipeline/stage/stages_vad_integration.go's accumulate-and-
// decide shape); the merge/split bookkeeping here is a single pending-tail
// string plus its start offset, since the spec's MultiPointerQueue is named
// for the VAD segmenter's three-loop (ingest/annotate/emit) decoupling, not
// for this stage's single in-order accumulate-and-emit loop.
package sentence

import (
	"context"
	"strings"
	"time"

	"github.com/speechflow/speechflow/internal/chunk"
	"github.com/speechflow/speechflow/internal/cstream"
	"github.com/speechflow/speechflow/internal/stage"
)

const retryInterval = 100 * time.Millisecond

// terminalPunctuation are the characters that close a sentence.
const terminalPunctuation = ".;?!"

// Schema is the parameter schema this stage type declares.
var Schema = stage.Schema{}

// Stage merges/splits incoming text chunks into sentence-sized chunks.
type Stage struct {
	stage.Base

	stream *cstream.Stream

	// pending is the not-yet-complete tail accumulated from upstream
	// chunks, carried forward until it ends in terminal punctuation.
	pending     string
	pendingFrom time.Duration
	havePending bool
}

// New constructs the sentence stage's Stage value.
func New(id string) *Stage {
	return &Stage{Base: stage.NewBase(id, "sentence", stage.IOText, stage.IOText, Schema)}
}

// Open implements stage.Stage.
func (s *Stage) Open(ctx context.Context, env stage.Env) error {
	s.SetParams(env.Params)
	s.stream = cstream.NewTransform()
	s.SetStream(s.stream)
	go s.run(ctx)
	return nil
}

func (s *Stage) run(ctx context.Context) {
	defer s.stream.CloseRead()

	ticker := time.NewTicker(retryInterval)
	defer ticker.Stop()

	in := s.stream.In()
	for {
		select {
		case c := <-in:
			if err := s.ingest(ctx, c); err != nil {
				s.stream.Fault(err)
				return
			}
		case <-s.stream.Finished():
			// In is never closed (a concurrent Write may still be sending
			// into it), so favor anything already buffered over the finish
			// signal before giving up on it.
			select {
			case c := <-in:
				if err := s.ingest(ctx, c); err != nil {
					s.stream.Fault(err)
				}
			default:
			}
			// Writable side finished: whatever remains pending never
			// completes a sentence and is dropped per spec §4.4 ("only
			// complete chunks are emitted").
			return
		case <-ticker.C:
			// Periodic retry per spec §4.6: progress the state machine even
			// with no new input, in case a prior merge left a complete
			// sentence undetected (it never does here, but the timer is the
			// spec's required re-poll hook for implementations that buffer
			// more eagerly).
		case <-ctx.Done():
			return
		}
	}
}

// ingest folds c's text into the pending tail and emits every complete
// sentence it now contains.
func (s *Stage) ingest(ctx context.Context, c chunk.Chunk) error {
	start := c.TimestampStart
	text := c.Text()
	if s.havePending {
		start = s.pendingFrom
		text = s.pending + text
	}
	end := c.TimestampEnd

	for {
		idx := indexTerminal(text)
		if idx < 0 {
			// No complete sentence yet: carry the whole thing forward.
			s.pending = text
			s.pendingFrom = start
			s.havePending = text != ""
			return nil
		}

		sentence := text[:idx+1]
		rest := strings.TrimLeft(text[idx+1:], " ")

		// Interpolate the split point's timestamp proportionally by
		// character length (spec §4.6).
		var splitAt time.Duration
		if len(text) > 0 {
			frac := float64(idx+1) / float64(len(text))
			splitAt = start + time.Duration(frac*float64(end-start))
		} else {
			splitAt = end
		}

		out := chunk.NewText(start, splitAt, chunk.KindFinal, strings.TrimSpace(sentence))
		if err := s.stream.Emit(ctx, out); err != nil {
			return err
		}

		if rest == "" {
			s.pending = ""
			s.havePending = false
			return nil
		}
		text = rest
		start = splitAt
	}
}

// indexTerminal returns the index of the first terminal-punctuation rune
// in s, or -1 if there is none.
func indexTerminal(s string) int {
	return strings.IndexAny(s, terminalPunctuation)
}

// Close implements stage.Stage.
func (s *Stage) Close(ctx context.Context) error {
	if s.stream != nil {
		s.stream.CloseRead()
	}
	return nil
}
