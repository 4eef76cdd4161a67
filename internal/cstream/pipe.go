package cstream

import (
	"context"
	"sync"
)

// Pipe connects producer's readable side to one or more consumers' writable
// sides (fan-out), running until the producer ends or faults, or ctx is
// cancelled. Each consumer receives its own clone of every Chunk so that a
// downstream Transform mutating its copy never aliases a sibling consumer's
// copy (clone-on-modify, spec §4.1.5).
//
// Per-consumer delivery is FIFO and every consumer observes the same
// producer in the same order (spec §5): Pipe fans each Chunk out to every
// consumer concurrently and waits for all of them to accept it before
// reading the next, so one slow consumer applies backpressure to the whole
// edge rather than silently reordering or dropping for the others.
//
// On producer end, every consumer's writable side is closed (CloseWrite).
// On producer fault, the fault is forwarded to every consumer.
func Pipe(ctx context.Context, producer *Stream, consumers ...*Stream) {
	defer func() {
		for _, c := range consumers {
			c.CloseWrite()
		}
	}()

	for {
		c, err := producer.Read(ctx)
		if err != nil {
			if err == ErrEndOfStream {
				return
			}
			for _, consumer := range consumers {
				consumer.Fault(err)
			}
			return
		}

		var wg sync.WaitGroup
		wg.Add(len(consumers))
		for _, consumer := range consumers {
			consumer := consumer
			clone := c.Clone()
			go func() {
				defer wg.Done()
				_ = consumer.Write(ctx, clone)
			}()
		}
		wg.Wait()
	}
}
