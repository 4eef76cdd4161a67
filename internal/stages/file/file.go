// Package file implements the file source/sink stage: a stage that reads
// or writes a path (or stdin/stdout when path is "-") as either text lines
// or raw audio chunks, the graph's boundary to the outside filesystem for
// the two-stage pass-through scenario and any other file-backed pipeline.
// Grounded on the teacher's runtime/pipeline/stage source/sink adapters'
// general shape (one goroutine owning the underlying io.Reader/io.Writer,
// reporting completion via the stream's own Finished/CloseRead signals)
// generalized to both read and write modes and both payload types.
package file

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/speechflow/speechflow/internal/chunk"
	"github.com/speechflow/speechflow/internal/cstream"
	"github.com/speechflow/speechflow/internal/stage"
)

// Mode selects whether the stage reads or writes its path.
type Mode string

const (
	ModeRead  Mode = "r"
	ModeWrite Mode = "w"
)

// PayloadType selects whether the stage carries text lines or raw audio.
type PayloadType string

const (
	TypeText  PayloadType = "text"
	TypeAudio PayloadType = "audio"
)

// readChunkBytes is the buffer size a read-mode audio stage chunks its
// input into.
const readChunkBytes = 32 * 1024

// Schema is the parameter schema this stage type declares.
var Schema = stage.Schema{
	{Name: "path", Type: stage.ParamString, Positional: 0, Default: "-"},
	{Name: "mode", Type: stage.ParamString, Positional: 1, Default: string(ModeRead), Validate: func(v any) error {
		m, _ := v.(string)
		if m != string(ModeRead) && m != string(ModeWrite) {
			return fmt.Errorf("file: mode must be %q or %q", ModeRead, ModeWrite)
		}
		return nil
	}},
	{Name: "type", Type: stage.ParamString, Positional: 2, Default: string(TypeText), Validate: func(v any) error {
		t, _ := v.(string)
		if t != string(TypeText) && t != string(TypeAudio) {
			return fmt.Errorf("file: type must be %q or %q", TypeText, TypeAudio)
		}
		return nil
	}},
}

// Stage reads or writes a file path (or stdin/stdout) as a graph boundary.
type Stage struct {
	stage.Base

	path    string
	mode    Mode
	payload PayloadType

	file   *os.File
	owned  bool // true if Stage opened the file itself (not stdin/stdout)
	stream *cstream.Stream
	done   chan struct{} // closed once read/writeLoop has returned
}

// New constructs the file stage's Stage value for the registry. Status()
// reflects the schema's defaults (mode=r, type=text) until Open resolves
// the instance's actual parameters; callers that already know the
// resolved parameters (the registry constructor) should use NewWithParams
// instead so pass 2's edge validation sees the instance's real IO kind.
func New(id string) *Stage {
	return &Stage{Base: stage.NewBase(id, "file", stage.IONone, stage.IOText, Schema)}
}

// NewWithParams constructs the file stage's Stage value with its mode/type
// already resolved, so Status() reports the correct input/output kind
// before Open ever runs. file is the one built-in stage whose declared IO
// depends on a parameter (spec's stage.Stage.IO doc: "may depend on a mode
// parameter but must not change after Open"), so its registry constructor
// must resolve that parameter before the graph's pass-2 edge validation.
func NewWithParams(id string, params stage.Params) *Stage {
	mode := Mode(params.String("mode"))
	if mode == "" {
		mode = ModeRead
	}
	payload := PayloadType(params.String("type"))
	if payload == "" {
		payload = TypeText
	}
	ioKind := stage.IOText
	if payload == TypeAudio {
		ioKind = stage.IOAudio
	}

	var base stage.Base
	if mode == ModeRead {
		base = stage.NewBase(id, "file", stage.IONone, ioKind, Schema)
	} else {
		base = stage.NewBase(id, "file", ioKind, stage.IONone, Schema)
	}
	s := &Stage{Base: base}
	s.SetParams(params)
	return s
}

// Open implements stage.Stage.
func (s *Stage) Open(ctx context.Context, env stage.Env) error {
	s.SetParams(env.Params)
	s.path = env.Params.String("path")
	s.mode = Mode(env.Params.String("mode"))
	s.payload = PayloadType(env.Params.String("type"))
	if s.path == "" {
		s.path = "-"
	}
	if s.mode == "" {
		s.mode = ModeRead
	}
	if s.payload == "" {
		s.payload = TypeText
	}

	ioKind := stage.IOText
	if s.payload == TypeAudio {
		ioKind = stage.IOAudio
	}
	s.done = make(chan struct{})

	switch s.mode {
	case ModeRead:
		s.stream = cstream.NewSource()
		if s.path == "-" {
			s.file = os.Stdin
		} else {
			f, err := os.Open(s.path)
			if err != nil {
				return fmt.Errorf("file: open %s: %w", s.path, err)
			}
			s.file = f
			s.owned = true
		}
		go s.readLoop(ctx)
	case ModeWrite:
		s.stream = cstream.NewSink()
		if s.path == "-" {
			s.file = os.Stdout
		} else {
			f, err := os.Create(s.path)
			if err != nil {
				return fmt.Errorf("file: create %s: %w", s.path, err)
			}
			s.file = f
			s.owned = true
		}
		go s.writeLoop(ctx)
	}

	// file's declared input/output depend on mode: a read stage is a Source
	// (output only), a write stage is a Sink (input only).
	if s.mode == ModeRead {
		s.Base = stage.NewBase(s.ID(), "file", stage.IONone, ioKind, Schema)
	} else {
		s.Base = stage.NewBase(s.ID(), "file", ioKind, stage.IONone, Schema)
	}
	s.SetParams(env.Params)
	s.SetStream(s.stream)
	return nil
}

func (s *Stage) readLoop(ctx context.Context) {
	defer close(s.done)
	defer s.stream.CloseRead()

	if s.payload == TypeAudio {
		s.readAudio(ctx)
		return
	}
	s.readText(ctx)
}

// readText emits one chunk per line. A raw file carries no timing of its
// own, so every text chunk is stamped [0,0]; a downstream stage that needs
// real intervals sits after a stage that actually measures them.
func (s *Stage) readText(ctx context.Context) {
	reader := bufio.NewReader(s.file)
	for {
		line, err := reader.ReadString('\n')
		if len(line) > 0 {
			c := chunk.NewText(0, 0, chunk.KindFinal, line)
			if emitErr := s.stream.Emit(ctx, c); emitErr != nil {
				return
			}
		}
		if err != nil {
			if err != io.EOF {
				s.stream.Fault(fmt.Errorf("file: read %s: %w", s.path, err))
			}
			return
		}
	}
}

// readAudio emits one chunk per fixed-size read, stamped assuming the
// audio baseline's PCM16LE mono 48kHz format (spec §6) since a raw file
// carries no sample-rate header of its own.
func (s *Stage) readAudio(ctx context.Context) {
	const bytesPerSecond = 48000 * 2 // 48kHz, 16-bit mono

	buf := make([]byte, readChunkBytes)
	var offset time.Duration
	for {
		n, err := s.file.Read(buf)
		if n > 0 {
			next := offset + time.Duration(n)*time.Second/bytesPerSecond
			c := chunk.NewAudio(offset, next, chunk.KindFinal, buf[:n])
			if emitErr := s.stream.Emit(ctx, c); emitErr != nil {
				return
			}
			offset = next
		}
		if err != nil {
			if err != io.EOF {
				s.stream.Fault(fmt.Errorf("file: read %s: %w", s.path, err))
			}
			return
		}
	}
}

func (s *Stage) writeLoop(ctx context.Context) {
	defer close(s.done)

	for {
		c, ok := s.stream.Drain(ctx)
		if !ok {
			break
		}
		var err error
		if s.payload == TypeAudio {
			_, err = s.file.Write(c.Audio())
		} else {
			_, err = io.WriteString(s.file, c.Text())
		}
		if err != nil {
			s.stream.Fault(fmt.Errorf("file: write %s: %w", s.path, err))
			return
		}
	}
	if s.owned {
		_ = s.file.Sync()
	}
}

// Close implements stage.Stage. It waits for the read/write loop to settle
// (bounded by ctx) before releasing the underlying file descriptor, so a
// write mid-flight is never truncated by an early close.
func (s *Stage) Close(ctx context.Context) error {
	if s.done != nil {
		select {
		case <-s.done:
		case <-ctx.Done():
		}
	}
	if s.stream != nil {
		s.stream.CloseRead()
	}
	if s.owned && s.file != nil {
		return s.file.Close()
	}
	return nil
}
