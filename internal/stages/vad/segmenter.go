// Package vad implements the voice-activity segmentation exemplar stage
// (spec §4.6): audio-in, audio-out, splitting each incoming chunk into
// fixed-size VAD frames analyzed asynchronously, then re-assembling
// per-chunk speech decisions in order via a MultiPointerQueue: the receive
// loop appends one entry per chunk, the annotator marks entries through a
// separate frame queue, and a single "send" pointer emits and trims them.
// Receiving and annotating do not hold pointers of their own in the
// MultiPointerQueue. Grounded on the teacher's
// VADAccumulatorStage (runtime/pipeline/stage/stages_vad_integration.go)
// for the general "accumulate audio, decide on speech" stage shape, and on
// internal/audio's SimpleVAD/SplitFrames for the frame-level detector.
package vad

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/speechflow/speechflow/internal/audio"
	"github.com/speechflow/speechflow/internal/chunk"
	"github.com/speechflow/speechflow/internal/cstream"
	"github.com/speechflow/speechflow/internal/queue"
	"github.com/speechflow/speechflow/internal/stage"
)

// Mode selects how the segmenter's output differs from its input (spec
// §4.6).
type Mode string

const (
	// ModeSilenced always emits a chunk of identical length; non-speech
	// chunks have their audio replaced with zeroes.
	ModeSilenced Mode = "silenced"
	// ModeUnplugged only emits speech chunks, plus a configurable tail
	// window of non-speech chunks after a speech segment ends.
	ModeUnplugged Mode = "unplugged"
)

const (
	defaultTailSecs = 0.8
	sendPointer     = "send"
)

// Schema is the parameter schema this stage type declares.
var Schema = stage.Schema{
	{Name: "mode", Type: stage.ParamString, Positional: 0, Default: string(ModeSilenced), Validate: func(v any) error {
		s, _ := v.(string)
		if s != string(ModeSilenced) && s != string(ModeUnplugged) {
			return errInvalidMode
		}
		return nil
	}},
	{Name: "tailSecs", Type: stage.ParamNumber, Positional: 1, Default: defaultTailSecs},
	{Name: "confidence", Type: stage.ParamNumber, Positional: -1, Default: audio.DefaultVADConfidence},
	{Name: "startSecs", Type: stage.ParamNumber, Positional: -1, Default: audio.DefaultVADStartSecs},
	{Name: "stopSecs", Type: stage.ParamNumber, Positional: -1, Default: audio.DefaultVADStopSecs},
	{Name: "minVolume", Type: stage.ParamNumber, Positional: -1, Default: audio.DefaultVADMinVolume},
	{Name: "inputSampleRate", Type: stage.ParamNumber, Positional: -1, Default: float64(48000)},
}

var errInvalidMode = errors.New(`vad: mode must be "silenced" or "unplugged"`)

// Stage segments incoming audio into speech/non-speech chunks.
type Stage struct {
	stage.Base

	mode            Mode
	tail            time.Duration
	analyzer        audio.VADAnalyzer
	inputSampleRate int

	mpq    *queue.MultiPointer[*entry]
	frames *queue.Single[frameJob]

	stream   *cstream.Stream
	lastTail time.Duration // wall-clock-independent: last speech-end offset
	hadTail  bool

	log func(stage.LogLevel, string, map[string]any)
}

// entry is one chunk awaiting annotation of all of its VAD frames.
type entry struct {
	c              chunk.Chunk
	frameCount     int32
	annotatedCount atomic.Int32
	anySpeech      atomic.Bool
	ready          chan struct{}
}

// frameJob is one VAD frame queued for the annotator goroutine, which
// processes frames strictly in arrival order so the analyzer's
// start/stop-hysteresis state machine stays coherent across frames from
// the same and successive chunks.
type frameJob struct {
	e     *entry
	frame []byte
}

// New constructs the vad stage's Stage value, used by the registry
// constructor.
func New(id string) *Stage {
	return &Stage{Base: stage.NewBase(id, "vad", stage.IOAudio, stage.IOAudio, Schema)}
}

// Open implements stage.Stage.
func (s *Stage) Open(ctx context.Context, env stage.Env) error {
	s.SetParams(env.Params)
	s.mode = Mode(env.Params.String("mode"))
	if s.mode == "" {
		s.mode = ModeSilenced
	}
	s.tail = time.Duration(env.Params.Number("tailSecs") * float64(time.Second))
	s.inputSampleRate = int(env.Params.Number("inputSampleRate"))
	if s.inputSampleRate <= 0 {
		s.inputSampleRate = 48000
	}

	params := audio.VADParams{
		Confidence: env.Params.Number("confidence"),
		StartSecs:  env.Params.Number("startSecs"),
		StopSecs:   env.Params.Number("stopSecs"),
		MinVolume:  env.Params.Number("minVolume"),
		SampleRate: audio.FrameSampleRate,
	}
	analyzer, err := audio.NewSimpleVAD(params)
	if err != nil {
		return err
	}
	s.analyzer = analyzer
	s.log = env.Log

	s.mpq = queue.NewMultiPointer[*entry]()
	s.mpq.Register(sendPointer)
	s.frames = queue.NewSingle[frameJob]()

	s.stream = cstream.NewTransform()
	s.SetStream(s.stream)

	go s.receiveLoop(ctx)
	go s.annotateLoop(ctx)
	go s.sendLoop(ctx)
	return nil
}

func (s *Stage) receiveLoop(ctx context.Context) {
	for {
		c, ok := s.stream.Drain(ctx)
		if !ok {
			break
		}
		analyzed := c.Audio()
		if s.inputSampleRate != audio.FrameSampleRate {
			if resampled, err := audio.ResampleToFrameRate(analyzed, s.inputSampleRate); err == nil {
				analyzed = resampled
			}
		}
		frames := audio.SplitFrames(analyzed)
		e := &entry{c: c, frameCount: int32(len(frames)), ready: make(chan struct{})}
		if len(frames) == 0 {
			close(e.ready)
		}
		s.mpq.Append(e)

		for _, f := range frames {
			s.frames.Write(frameJob{e: e, frame: f})
		}
	}
	s.frames.Close()
}

// annotateLoop is the single asynchronous detector goroutine the spec
// describes: it runs independently of receiveLoop's ingestion, processing
// frames strictly in order so the analyzer's hysteresis state machine
// never observes frames out of sequence.
func (s *Stage) annotateLoop(ctx context.Context) {
	for {
		job, ok := s.frames.Read()
		if !ok {
			return
		}
		_, err := s.analyzer.Analyze(ctx, job.frame, audio.FrameDuration)
		if err != nil {
			if s.log != nil {
				s.log(stage.LogWarning, "vad analyze failed", map[string]any{"error": err.Error()})
			}
		} else if st := s.analyzer.State(); st == audio.VADStateSpeaking || st == audio.VADStateStarting {
			job.e.anySpeech.Store(true)
		}
		if job.e.annotatedCount.Add(1) == job.e.frameCount {
			close(job.e.ready)
		}
		s.mpq.Touch()
	}
}

func (s *Stage) sendLoop(ctx context.Context) {
	defer s.stream.CloseRead()

	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	for {
		e, ok := s.mpq.Peek(sendPointer)
		if !ok {
			if s.finished() {
				return
			}
			select {
			case <-s.mpq.Writes():
			case <-ticker.C: // re-poll so the readable side never deadlocks
			case <-ctx.Done():
				return
			}
			continue
		}

		select {
		case <-e.ready:
		case <-ctx.Done():
			return
		}

		s.mpq.Advance(sendPointer)
		s.mpq.Trim()

		if err := s.emit(ctx, e); err != nil {
			s.stream.Fault(err)
			return
		}
	}
}

func (s *Stage) emit(ctx context.Context, e *entry) error {
	speech := e.anySpeech.Load()

	switch s.mode {
	case ModeUnplugged:
		if speech {
			s.lastTail = e.c.TimestampEnd
			s.hadTail = true
		} else if !s.hadTail || e.c.TimestampStart-s.lastTail > s.tail {
			return nil // outside the tail window: drop
		}
		return s.stream.Emit(ctx, e.c)
	default: // ModeSilenced
		out := e.c
		if !speech {
			cloned := out.Clone()
			zeros := make([]byte, len(cloned.Audio()))
			silenced := chunk.NewAudio(cloned.TimestampStart, cloned.TimestampEnd, cloned.Kind, zeros)
			silenced.Meta = cloned.Meta
			out = silenced
		}
		return s.stream.Emit(ctx, out)
	}
}

// finished reports whether the writable side has closed. Called only once
// the send pointer has caught up with every entry appended so far: since
// receiveLoop exits (and stops appending) the moment Finished fires, an
// empty queue at that point means there is nothing left to ever send.
func (s *Stage) finished() bool {
	select {
	case <-s.stream.Finished():
		return true
	default:
		return false
	}
}

// Close implements stage.Stage.
func (s *Stage) Close(ctx context.Context) error {
	if s.stream != nil {
		s.stream.CloseRead()
	}
	return nil
}
