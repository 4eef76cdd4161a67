// Package cstream implements ChunkStream: the bidirectional, object-mode,
// backpressured pipe every stage exposes after open. It is built on bare Go
// channels the way the teacher's Stage.Process(ctx, input <-chan, output
// chan<-) contract is, generalized with explicit role metadata, independent
// writable/readable completion signals, and synchronous fault propagation.
package cstream

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/speechflow/speechflow/internal/chunk"
)

// Role identifies which sides of a Stream are live.
type Role int

const (
	// RoleSource streams have a readable side only.
	RoleSource Role = iota
	// RoleSink streams have a writable side only.
	RoleSink
	// RoleDuplex streams have both sides, not necessarily coupled.
	RoleDuplex
	// RoleTransform is a Duplex whose readable side is a deterministic
	// function of what has been written to its writable side.
	RoleTransform
)

func (r Role) String() string {
	switch r {
	case RoleSource:
		return "source"
	case RoleSink:
		return "sink"
	case RoleDuplex:
		return "duplex"
	case RoleTransform:
		return "transform"
	default:
		return "unknown"
	}
}

// ErrNoWritableSide is returned by Write on a Source stream.
var ErrNoWritableSide = errors.New("cstream: stream has no writable side")

// ErrNoReadableSide is returned by Read on a Sink stream.
var ErrNoReadableSide = errors.New("cstream: stream has no readable side")

// ErrEndOfStream is returned by Read once the readable side has ended
// cleanly (no fault).
var ErrEndOfStream = errors.New("cstream: end of stream")

// StreamError wraps a fault delivered to a Stream, satisfying the spec's
// Stream error-taxonomy category (§7).
type StreamError struct {
	Stage string
	Err   error
}

func (e *StreamError) Error() string {
	if e.Stage == "" {
		return fmt.Sprintf("stream fault: %v", e.Err)
	}
	return fmt.Sprintf("stream fault on %s: %v", e.Stage, e.Err)
}

func (e *StreamError) Unwrap() error { return e.Err }

// capacity is the effective highwater bound on every Stream side: one whole
// Chunk. This is what makes a producer that outruns its consumer suspend.
const capacity = 1

// Stream is a ChunkStream. The zero value is not usable; construct with
// NewSource, NewSink, NewDuplex, or NewTransform.
type Stream struct {
	Role Role

	in  chan chunk.Chunk
	out chan chunk.Chunk

	finishOnce sync.Once
	finishCh   chan struct{}
	endOnce    sync.Once
	endCh      chan struct{}

	faultOnce sync.Once
	faultCh   chan struct{}
	mu        sync.Mutex
	fault     error
}

func newStream(role Role, writable, readable bool) *Stream {
	s := &Stream{
		Role:     role,
		finishCh: make(chan struct{}),
		endCh:    make(chan struct{}),
		faultCh:  make(chan struct{}),
	}
	if writable {
		s.in = make(chan chunk.Chunk, capacity)
	}
	if readable {
		s.out = make(chan chunk.Chunk, capacity)
	}
	return s
}

// NewSource creates a read-only Stream.
func NewSource() *Stream { return newStream(RoleSource, false, true) }

// NewSink creates a write-only Stream.
func NewSink() *Stream { return newStream(RoleSink, true, false) }

// NewDuplex creates a Stream with independent writable and readable sides.
func NewDuplex() *Stream { return newStream(RoleDuplex, true, true) }

// NewTransform creates a Duplex Stream tagged as a Transform: its readable
// side is expected to be a deterministic function of what is written to its
// writable side (the tag carries no additional runtime behavior).
func NewTransform() *Stream { return newStream(RoleTransform, true, true) }

// ErrWriteClosed is returned by Write once CloseWrite has run.
var ErrWriteClosed = errors.New("cstream: writable side closed")

// Write pushes a Chunk to the writable side, suspending (per ctx) if the
// single-slot buffer is already full. Returns the stream's fault if one has
// been delivered, ErrWriteClosed once CloseWrite has run, ctx.Err() on
// cancellation, or ErrNoWritableSide for a Source.
//
// The In channel is never closed while a Write may still be sending into
// it (only the sole sender of a channel may safely close it, and Write may
// be called concurrently with CloseWrite from teardown) — so Write instead
// races the send against finishCh and returns an error instead of panicking.
func (s *Stream) Write(ctx context.Context, c chunk.Chunk) error {
	if s.in == nil {
		return ErrNoWritableSide
	}
	// Checked in this order, and individually rather than as arms of one
	// select, so a fault takes priority over a plain close when both have
	// already happened (Fault closes faultCh before finishCh).
	select {
	case <-s.faultCh:
		return s.Err()
	default:
	}
	select {
	case <-s.finishCh:
		return ErrWriteClosed
	default:
	}
	select {
	case <-s.faultCh:
		return s.Err()
	case <-s.finishCh:
		return ErrWriteClosed
	case <-ctx.Done():
		return ctx.Err()
	case s.in <- c:
		return nil
	}
}

// Read pulls the next Chunk from the readable side, suspending (per ctx)
// until one is available. Returns ErrEndOfStream once the readable side has
// ended cleanly (CloseRead) with nothing left buffered, the stream's fault
// if one has been delivered, or ErrNoReadableSide for a Sink.
//
// Out is never closed (the same close-while-sender-blocked hazard Write
// avoids on In applies here: a stage's own Emit call can be in flight when
// a concurrent Fault calls CloseRead), so Read races against Ended() instead,
// draining anything already buffered before reporting end-of-stream.
func (s *Stream) Read(ctx context.Context) (chunk.Chunk, error) {
	if s.out == nil {
		return chunk.Chunk{}, ErrNoReadableSide
	}
	select {
	case c := <-s.out:
		return c, nil
	default:
	}
	select {
	case <-s.faultCh:
		return chunk.Chunk{}, s.Err()
	case <-ctx.Done():
		return chunk.Chunk{}, ctx.Err()
	case c := <-s.out:
		return c, nil
	case <-s.endCh:
		select {
		case c := <-s.out:
			return c, nil
		default:
			if err := s.Err(); err != nil {
				return chunk.Chunk{}, err
			}
			return chunk.Chunk{}, ErrEndOfStream
		}
	}
}

// In exposes the writable-side channel directly, for callers (tests, or a
// select alongside other cases) that want the raw channel rather than
// Drain's blocking call. Nil for a Source. The channel is never closed, so
// a bare `range stream.In()` will not observe completion — use Drain for a
// receive loop that needs to terminate when the writable side closes.
func (s *Stream) In() <-chan chunk.Chunk { return s.in }

// Drain returns the next Chunk written to the writable side, blocking (per
// ctx) until one arrives. ok is false once the writable side has closed
// (CloseWrite) with nothing left buffered, the stream has faulted, or ctx
// is done — the safe replacement for `for c := range stream.In()`, since In
// is never closed while a concurrent Write might still be sending into it.
// Anything already buffered when CloseWrite ran is still delivered before
// ok turns false.
func (s *Stream) Drain(ctx context.Context) (chunk.Chunk, bool) {
	if s.in == nil {
		return chunk.Chunk{}, false
	}
	select {
	case c := <-s.in:
		return c, true
	default:
	}
	select {
	case c := <-s.in:
		return c, true
	case <-s.faultCh:
		return chunk.Chunk{}, false
	case <-ctx.Done():
		return chunk.Chunk{}, false
	case <-s.finishCh:
		select {
		case c := <-s.in:
			return c, true
		default:
			return chunk.Chunk{}, false
		}
	}
}

// Out exposes the readable-side channel directly for a consumer that wants
// to select on it alongside other cases. Nil for a Sink. Never closed; a
// bare `range stream.Out()` will not observe completion — use Read.
func (s *Stream) Out() <-chan chunk.Chunk { return s.out }

// ErrReadClosed is returned by Emit once CloseRead has run.
var ErrReadClosed = errors.New("cstream: readable side closed")

// Emit is the producer-side counterpart of Read: a stage's internal loop
// calls it to publish one output Chunk, suspending under backpressure the
// same way Write does. Returns ErrReadClosed once CloseRead has run.
func (s *Stream) Emit(ctx context.Context, c chunk.Chunk) error {
	if s.out == nil {
		return ErrNoReadableSide
	}
	// Checked individually, not as arms of one select, so a fault takes
	// priority over a plain close when both have already happened.
	select {
	case <-s.faultCh:
		return s.Err()
	default:
	}
	select {
	case <-s.endCh:
		return ErrReadClosed
	default:
	}
	select {
	case <-s.faultCh:
		return s.Err()
	case <-s.endCh:
		return ErrReadClosed
	case <-ctx.Done():
		return ctx.Err()
	case s.out <- c:
		return nil
	}
}

// CloseWrite signals that no further input will ever be written: the
// writable side completes (spec's "finish" signal). Idempotent. Does not
// close the In channel itself — a Pipe goroutine may still be blocked
// sending into it when teardown calls CloseWrite ahead of cancelling that
// goroutine's context (spec §4.5's end-writable-before-unpipe ordering) —
// so Write and Drain watch Finished() instead of relying on channel close.
func (s *Stream) CloseWrite() {
	s.finishOnce.Do(func() {
		close(s.finishCh)
	})
}

// CloseRead signals that no further output will ever be produced: the
// readable side completes (spec's "end" signal, emitted exactly once).
// Idempotent. Does not close the Out channel itself, for the same reason
// CloseWrite does not close In — Read and Emit watch Ended() instead.
func (s *Stream) CloseRead() {
	s.endOnce.Do(func() {
		close(s.endCh)
	})
}

// Finished returns a channel closed once CloseWrite has run.
func (s *Stream) Finished() <-chan struct{} { return s.finishCh }

// Ended returns a channel closed once CloseRead has run.
func (s *Stream) Ended() <-chan struct{} { return s.endCh }

// Fault delivers a fault to both sides of the stream, synchronously and
// exactly once; subsequent Read/Write calls fail fast with the recorded
// error. Also closes both completion signals so downstream Track-pass logic
// does not wait forever on a faulted stage.
func (s *Stream) Fault(err error) {
	if err == nil {
		return
	}
	s.faultOnce.Do(func() {
		s.mu.Lock()
		s.fault = err
		s.mu.Unlock()
		close(s.faultCh)
		s.CloseWrite()
		s.CloseRead()
	})
}

// Faulted returns a channel closed once Fault has been called.
func (s *Stream) Faulted() <-chan struct{} { return s.faultCh }

// Err returns the fault delivered to the stream, or nil if none has been.
func (s *Stream) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fault
}
