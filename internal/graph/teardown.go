package graph

import (
	"context"
	"sync"
	"time"

	"github.com/speechflow/speechflow/internal/stage"
)

// Shutdown runs the five teardown passes exactly once (spec §4.5: shutdown
// is single-shot; a re-entrant call is a no-op). reason is one of
// "finished", an OS signal's String() text (e.g. "interrupt"), or
// "exception".
func (r *Runtime) Shutdown(reason string) {
	r.shutdownOnce.Do(func() {
		r.mu.Lock()
		r.reason = reason
		if reason != "finished" {
			r.exitCode = 1
		}
		r.mu.Unlock()

		r.endWritableSides()
		r.unpipe()
		r.closeAll()
		r.disconnect()
		r.destroy()

		shutdownsTotal.WithLabelValues(reason).Inc()
		activeStages.Set(0)
		close(r.shutdownCh)
	})
}

// endWritableSides is teardown pass 1.
func (r *Runtime) endWritableSides() {
	r.mu.Lock()
	ids := append([]string(nil), r.order...)
	r.mu.Unlock()

	var wg sync.WaitGroup
	for _, id := range ids {
		s := r.stages[id]
		input, _ := s.IO()
		if input == stage.IONone {
			continue
		}
		stream := s.Stream()
		if stream == nil {
			continue
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			stream.CloseWrite()
			select {
			case <-stream.Finished():
			case <-time.After(endWritableTimeout):
			}
		}()
	}
	wg.Wait()
}

// unpipe is teardown pass 2: stop every Pipe goroutine and drop the edge
// set. No edge is re-piped after this point (spec §4.5 ordering guarantee).
func (r *Runtime) unpipe() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, cancel := range r.cancels {
		cancel()
	}
	r.cancels = make(map[edge]context.CancelFunc)
}

// closeAll is teardown pass 3.
func (r *Runtime) closeAll() {
	r.mu.Lock()
	ids := append([]string(nil), r.order...)
	r.mu.Unlock()

	var wg sync.WaitGroup
	for _, id := range ids {
		id := id
		s := r.stages[id]
		wg.Add(1)
		go func() {
			defer wg.Done()
			ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
			defer cancel()
			start := time.Now()
			err := s.Close(ctx)
			stageCloseSeconds.WithLabelValues(id).Observe(time.Since(start).Seconds())
			if err != nil {
				logStageEvent(id, stage.LogWarning, "close failed", map[string]any{"error": err.Error()})
			}
		}()
	}
	wg.Wait()
}

// disconnect is teardown pass 4.
func (r *Runtime) disconnect() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.edges = nil
}

// destroy is teardown pass 5.
func (r *Runtime) destroy() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.active = make(map[string]bool)
}
