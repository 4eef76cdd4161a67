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

func TestPipeForwardsInOrderAndEnds(t *testing.T) {
	producer := NewSource()
	consumer := NewDuplex()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	done := make(chan struct{})
	go func() {
		Pipe(ctx, producer, consumer)
		close(done)
	}()

	go func() {
		_ = producer.Emit(ctx, chunk.NewText(0, 0, chunk.KindFinal, "a"))
		_ = producer.Emit(ctx, chunk.NewText(0, 0, chunk.KindFinal, "b"))
		producer.CloseRead()
	}()

	var got []string
	for {
		c, ok := consumer.Drain(ctx)
		if !ok {
			break
		}
		got = append(got, c.Text())
	}
	assert.Equal(t, []string{"a", "b"}, got)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Pipe did not return after producer ended")
	}

	select {
	case <-consumer.Finished():
	default:
		t.Fatal("consumer writable side must be closed once the producer ends")
	}
}

func TestPipeFansOutClonedChunksToEveryConsumer(t *testing.T) {
	producer := NewSource()
	a := NewDuplex()
	b := NewDuplex()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	go Pipe(ctx, producer, a, b)
	go func() {
		_ = producer.Emit(ctx, chunk.NewText(0, 0, chunk.KindFinal, "hello"))
		producer.CloseRead()
	}()

	gotA := <-a.In()
	gotB := <-b.In()
	assert.Equal(t, "hello", gotA.Text())
	assert.Equal(t, "hello", gotB.Text())
}

func TestPipeForwardsFaultToConsumers(t *testing.T) {
	producer := NewDuplex()
	consumer := NewDuplex()
	boom := errors.New("upstream decode error")

	ctx := context.Background()
	done := make(chan struct{})
	go func() {
		Pipe(ctx, producer, consumer)
		close(done)
	}()

	producer.Fault(boom)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Pipe did not return after producer faulted")
	}

	_, err := consumer.Read(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
}
