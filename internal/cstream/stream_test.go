package cstream

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/speechflow/speechflow/internal/chunk"
)

func TestSourceHasNoWritableSide(t *testing.T) {
	s := NewSource()
	err := s.Write(context.Background(), chunk.NewText(0, 0, chunk.KindFinal, "x"))
	assert.ErrorIs(t, err, ErrNoWritableSide)
}

func TestSinkHasNoReadableSide(t *testing.T) {
	s := NewSink()
	_, err := s.Read(context.Background())
	assert.ErrorIs(t, err, ErrNoReadableSide)
}

func TestDuplexBackpressureSuspendsSecondWrite(t *testing.T) {
	s := NewDuplex()
	ctx := context.Background()
	require.NoError(t, s.Write(ctx, chunk.NewText(0, 0, chunk.KindFinal, "a")))

	done := make(chan error, 1)
	go func() {
		done <- s.Write(ctx, chunk.NewText(0, 0, chunk.KindFinal, "b"))
	}()

	select {
	case <-done:
		t.Fatal("second Write must suspend while the single-slot buffer is full")
	case <-time.After(50 * time.Millisecond):
	}

	got := <-s.in
	assert.Equal(t, "a", got.Text())

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("second Write should unblock once the buffer drains")
	}
}

func TestCloseWriteDrainsBufferedThenEnds(t *testing.T) {
	s := NewDuplex()
	ctx := context.Background()
	require.NoError(t, s.Write(ctx, chunk.NewText(0, 0, chunk.KindFinal, "a")))
	s.CloseWrite()

	var got []string
	for {
		c, ok := s.Drain(ctx)
		if !ok {
			break
		}
		got = append(got, c.Text())
	}
	assert.Equal(t, []string{"a"}, got)

	select {
	case <-s.Finished():
	default:
		t.Fatal("Finished() must be closed after CloseWrite")
	}
}

func TestWriteAfterCloseWriteFails(t *testing.T) {
	s := NewDuplex()
	s.CloseWrite()
	err := s.Write(context.Background(), chunk.NewText(0, 0, chunk.KindFinal, "x"))
	assert.ErrorIs(t, err, ErrWriteClosed)
}

func TestCloseWriteDoesNotPanicConcurrentWrite(t *testing.T) {
	s := NewDuplex()
	ctx := context.Background()
	require.NoError(t, s.Write(ctx, chunk.NewText(0, 0, chunk.KindFinal, "a"))) // fills the single slot

	done := make(chan error, 1)
	go func() {
		done <- s.Write(ctx, chunk.NewText(0, 0, chunk.KindFinal, "b")) // blocks, buffer full
	}()

	// CloseWrite must not close the In channel out from under the blocked
	// sender above: it may only ever return an error, never panic.
	s.CloseWrite()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, ErrWriteClosed)
	case <-time.After(time.Second):
		t.Fatal("blocked Write never returned after CloseWrite")
	}
}

func TestCloseReadYieldsEndOfStream(t *testing.T) {
	s := NewDuplex()
	s.CloseRead()
	_, err := s.Read(context.Background())
	assert.ErrorIs(t, err, ErrEndOfStream)
}

func TestCloseReadDoesNotPanicConcurrentEmit(t *testing.T) {
	s := NewDuplex()
	ctx := context.Background()
	require.NoError(t, s.Emit(ctx, chunk.NewText(0, 0, chunk.KindFinal, "a"))) // fills the single slot

	done := make(chan error, 1)
	go func() {
		done <- s.Emit(ctx, chunk.NewText(0, 0, chunk.KindFinal, "b")) // blocks, buffer full
	}()

	s.CloseRead()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, ErrReadClosed)
	case <-time.After(time.Second):
		t.Fatal("blocked Emit never returned after CloseRead")
	}
}

func TestFaultFailsFastOnBothSides(t *testing.T) {
	s := NewDuplex()
	boom := errors.New("decode failure")
	s.Fault(boom)

	_, err := s.Read(context.Background())
	assert.ErrorIs(t, err, boom)

	err = s.Write(context.Background(), chunk.NewText(0, 0, chunk.KindFinal, "x"))
	assert.ErrorIs(t, err, boom)
}

func TestFaultIsIdempotent(t *testing.T) {
	s := NewDuplex()
	s.Fault(errors.New("first"))
	s.Fault(errors.New("second"))
	assert.Equal(t, "first", s.Err().Error())
}

func TestStreamErrorUnwrap(t *testing.T) {
	inner := errors.New("boom")
	se := &StreamError{Stage: "vad:1", Err: inner}
	assert.ErrorIs(t, se, inner)
	assert.Contains(t, se.Error(), "vad:1")
}
