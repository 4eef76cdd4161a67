// Package graph implements GraphRuntime: the five-pass construction and
// five-pass teardown of a SpeechFlow graph (spec §4.5), generalized from
// the teacher's StreamPipeline/PipelineBuilder (runtime/pipeline/stage/
// pipeline.go, builder.go) — same DAG-of-channels shape, same
// bounded-timeout-per-pass discipline, broadened from a single linear/
// fan-out LLM pipeline into the spec's typed five-pass protocol with
// independent writable/readable completion tracking and OS signal-driven
// shutdown.
package graph

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/speechflow/speechflow/internal/cstream"
	"github.com/speechflow/speechflow/internal/logger"
	"github.com/speechflow/speechflow/internal/registry"
	"github.com/speechflow/speechflow/internal/stage"
)

const (
	openTimeout        = 30 * time.Second
	endWritableTimeout = 5 * time.Second
	closeTimeout       = 10 * time.Second
)

type edge struct {
	producer, consumer string
}

// Runtime is GraphRuntime. The zero value is not usable; construct with
// NewRuntime.
type Runtime struct {
	RunID string

	registry *registry.Registry

	mu       sync.Mutex
	stages   map[string]stage.Stage
	params   map[string]stage.Params // resolved per-instance params, from pass 1
	order    []string                // construction order, for deterministic passes
	edges    []edge
	cancels  map[edge]context.CancelFunc
	active   map[string]bool
	timeZero time.Time

	shutdownOnce sync.Once
	shutdownCh   chan struct{}
	reason       string
	exitCode     int

	broadcaster Broadcaster
}

// Broadcaster delivers a stage's outbound NOTIFY/DASHBOARD events (spec
// §4.7) to the control plane. Set it with SetBroadcaster before Construct so
// every stage's Env carries working SendResponse/SendDashboard channels
// from Open onward; a Runtime with no Broadcaster set silently drops both.
type Broadcaster interface {
	SendResponse(stageID string, args []string)
	SendDashboard(evt stage.DashboardEvent)
}

// SetBroadcaster attaches the control plane's outbound event sink. Call
// before Construct.
func (r *Runtime) SetBroadcaster(b Broadcaster) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.broadcaster = b
}

// NewRuntime creates an empty Runtime backed by reg for stage construction.
func NewRuntime(reg *registry.Registry) *Runtime {
	return &Runtime{
		registry:   reg,
		stages:     make(map[string]stage.Stage),
		params:     make(map[string]stage.Params),
		cancels:    make(map[edge]context.CancelFunc),
		active:     make(map[string]bool),
		shutdownCh: make(chan struct{}),
		RunID:      uuid.NewString(),
	}
}

// TimeZero returns the instant captured during Open (pass 3). Zero before
// Construct completes that pass.
func (r *Runtime) TimeZero() time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.timeZero
}

// Construct runs all five construction passes in order. A failure at any
// pass is fatal: the caller should log it and exit non-zero without
// attempting teardown of a never-fully-opened graph, except for stages that
// did successfully Open (Construct best-efforts Close on those before
// returning, since no later Track pass exists to do it).
func (r *Runtime) Construct(ctx context.Context, cfg ConfigSource) error {
	if err := r.materialize(cfg); err != nil {
		return err
	}
	if err := r.pruneAndValidate(); err != nil {
		return err
	}
	opened, err := r.open(ctx)
	if err != nil {
		r.closeOpened(opened)
		return err
	}
	r.pipe(ctx)
	r.track(ctx)
	return nil
}

// materialize is construction pass 1.
func (r *Runtime) materialize(cfg ConfigSource) error {
	nodes := cfg.Nodes()
	edges := cfg.Edges()

	r.mu.Lock()
	defer r.mu.Unlock()

	typeCount := make(map[string]int)
	ids := make([]string, len(nodes))
	for i, n := range nodes {
		typeCount[n.Type]++
		id := n.Type
		if typeCount[n.Type] > 1 {
			id = fmt.Sprintf("%s:%d", n.Type, typeCount[n.Type])
		}
		ids[i] = id

		s, err := r.registry.Build(n.Type, id, n.Options, n.Positional)
		if err != nil {
			return &ConfigError{Reason: fmt.Sprintf("materializing node %d (%s)", i, n.Type), Err: err}
		}
		params, err := s.Status().Params.Parse(n.Options, n.Positional)
		if err != nil {
			return &ConfigError{Reason: fmt.Sprintf("parsing parameters for node %d (%s)", i, n.Type), Err: err}
		}
		r.stages[id] = s
		r.params[id] = params
		r.order = append(r.order, id)
	}

	for _, e := range edges {
		if e.From < 0 || e.From >= len(ids) || e.To < 0 || e.To >= len(ids) {
			return &ConfigError{Reason: fmt.Sprintf("edge references out-of-range node index (%d -> %d)", e.From, e.To)}
		}
		r.edges = append(r.edges, edge{producer: ids[e.From], consumer: ids[e.To]})
	}
	return nil
}

// pruneAndValidate is construction pass 2.
func (r *Runtime) pruneAndValidate() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var kept []edge
	for _, e := range r.edges {
		producer, ok := r.stages[e.producer]
		if !ok {
			return &ConfigError{Reason: fmt.Sprintf("edge references unknown producer %q", e.producer)}
		}
		consumer, ok := r.stages[e.consumer]
		if !ok {
			return &ConfigError{Reason: fmt.Sprintf("edge references unknown consumer %q", e.consumer)}
		}
		_, producerOut := producer.IO()
		consumerIn, _ := consumer.IO()

		if producerOut == stage.IONone {
			continue // producer has no readable side: drop outgoing edges from it
		}
		if consumerIn == stage.IONone {
			continue // consumer has no writable side: drop incoming edges to it
		}
		if producerOut != consumerIn {
			return &ConfigError{Reason: fmt.Sprintf("type mismatch on edge %s(%s) -> %s(%s)", e.producer, producerOut, e.consumer, consumerIn)}
		}
		kept = append(kept, e)
	}
	r.edges = kept

	// Reject fan-in: more than one producer edge into the same consumer's
	// writable side. The configuration language forbids this (spec §4.1);
	// left as an explicit rejection here per the open-question decision
	// to forbid rather than silently merge. Checked against the pruned edge
	// set: an edge dropped above (e.g. a producer with no readable side)
	// must not count toward a fan-in violation that no longer exists.
	producersOf := make(map[string]map[string]bool)
	for _, e := range kept {
		if producersOf[e.consumer] == nil {
			producersOf[e.consumer] = make(map[string]bool)
		}
		producersOf[e.consumer][e.producer] = true
	}
	for consumer, producers := range producersOf {
		if len(producers) > 1 {
			return &ConfigError{Reason: fmt.Sprintf("fan-in is not permitted: %q has %d producers", consumer, len(producers))}
		}
	}

	keptIncoming := make(map[string]int)
	keptOutgoing := make(map[string]int)
	for _, e := range kept {
		keptOutgoing[e.producer]++
		keptIncoming[e.consumer]++
	}
	for id, s := range r.stages {
		in, out := s.IO()
		if in != stage.IONone && keptIncoming[id] == 0 {
			return &ConfigError{Reason: fmt.Sprintf("stage %q declares input %q but has no incoming edge", id, in)}
		}
		if out != stage.IONone && keptOutgoing[id] == 0 {
			return &ConfigError{Reason: fmt.Sprintf("stage %q declares output %q but has no outgoing edge", id, out)}
		}
	}
	return nil
}

// open is construction pass 3.
func (r *Runtime) open(ctx context.Context) ([]string, error) {
	r.mu.Lock()
	r.timeZero = time.Now()
	timeZero := r.timeZero
	order := append([]string(nil), r.order...)
	r.mu.Unlock()

	var opened []string
	for _, id := range order {
		s := r.stages[id]
		env := stage.Env{
			ID:       id,
			Params:   r.params[id],
			TimeZero: timeZero,
			Log: func(level stage.LogLevel, msg string, data map[string]any) {
				logStageEvent(id, level, msg, data)
			},
			Bus:           busAccessor,
			SendResponse:  func(args []string) { r.sendResponse(id, args) },
			SendDashboard: func(evt stage.DashboardEvent) { r.sendDashboard(evt) },
		}
		if err := r.openOne(ctx, s, env); err != nil {
			logger.Fatal(id, err)
			return opened, &OpenError{StageID: id, Err: err}
		}
		opened = append(opened, id)
	}
	return opened, nil
}

func (r *Runtime) openOne(ctx context.Context, s stage.Stage, env stage.Env) error {
	// ctx goes to Open unchanged because stages keep it for their background
	// loops; openTimeout bounds only the wait for Open to return.
	timer := time.NewTimer(openTimeout)
	defer timer.Stop()

	start := time.Now()
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.Open(ctx, env)
	}()

	select {
	case err := <-errCh:
		stageOpenSeconds.WithLabelValues(env.ID).Observe(time.Since(start).Seconds())
		if err == nil && s.Stream() == nil {
			return fmt.Errorf("stage left Stream() nil after a successful Open")
		}
		return err
	case <-timer.C:
		return fmt.Errorf("open did not return within %s: %w", openTimeout, context.DeadlineExceeded)
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Runtime) closeOpened(ids []string) {
	for i := len(ids) - 1; i >= 0; i-- {
		id := ids[i]
		s := r.stages[id]
		ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
		if err := s.Close(ctx); err != nil {
			logStageEvent(id, stage.LogWarning, "close failed during aborted construction", map[string]any{"error": err.Error()})
		}
		cancel()
	}
}

// pipe is construction pass 4.
func (r *Runtime) pipe(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()

	consumersOf := make(map[string][]string)
	for _, e := range r.edges {
		consumersOf[e.producer] = append(consumersOf[e.producer], e.consumer)
	}

	producers := make([]string, 0, len(consumersOf))
	for p := range consumersOf {
		producers = append(producers, p)
	}
	sort.Strings(producers)

	for _, producerID := range producers {
		producerID := producerID
		consumerIDs := consumersOf[producerID]
		producerStream := r.stages[producerID].Stream()

		consumerStreams := make([]*cstream.Stream, len(consumerIDs))
		for i, cid := range consumerIDs {
			consumerStreams[i] = r.stages[cid].Stream()
		}

		pipeCtx, cancel := context.WithCancel(ctx)
		for _, cid := range consumerIDs {
			r.cancels[edge{producer: producerID, consumer: cid}] = cancel
		}
		go cstream.Pipe(pipeCtx, producerStream, consumerStreams...)
	}
}

// track is construction pass 5.
func (r *Runtime) track(ctx context.Context) {
	r.mu.Lock()
	ids := append([]string(nil), r.order...)
	for _, id := range ids {
		r.active[id] = true
	}
	r.mu.Unlock()
	activeStages.Set(float64(len(ids)))

	for _, id := range ids {
		id := id
		s := r.stages[id]
		stream := s.Stream()
		go func() {
			select {
			case <-stream.Finished():
			case <-stream.Ended():
			}
			r.deactivate(id)
		}()
	}
}

func (r *Runtime) deactivate(id string) {
	r.mu.Lock()
	if !r.active[id] {
		r.mu.Unlock()
		return
	}
	delete(r.active, id)
	remaining := len(r.active)
	r.mu.Unlock()
	activeStages.Set(float64(remaining))

	if remaining == 0 {
		r.Shutdown("finished")
	}
}

// Stages returns every stage id this runtime constructed, in construction
// order.
func (r *Runtime) Stages() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.order...)
}

// Stage returns the stage instance for id, or nil.
func (r *Runtime) Stage(id string) stage.Stage {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stages[id]
}

// ErrNodeNotFound is returned by DispatchRequest when node names no stage
// in the graph (spec §4.7: "missing-id errors are reported, not fatal").
var ErrNodeNotFound = fmt.Errorf("graph: node not found")

// ErrNoRequestHandler is returned by DispatchRequest when the addressed
// stage does not implement stage.RequestHandler.
var ErrNoRequestHandler = fmt.Errorf("graph: stage does not accept requests")

// DispatchRequest routes a ControlPlane COMMAND request to the stage
// identified by node, applying the given per-request timeout.
func (r *Runtime) DispatchRequest(ctx context.Context, node string, args []string, timeout time.Duration) ([]string, error) {
	s := r.Stage(node)
	if s == nil {
		return nil, fmt.Errorf("%w: %q", ErrNodeNotFound, node)
	}
	handler, ok := s.(stage.RequestHandler)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNoRequestHandler, node)
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type result struct {
		resp []string
		err  error
	}
	resCh := make(chan result, 1)
	go func() {
		resp, err := handler.ReceiveRequest(ctx, args)
		resCh <- result{resp, err}
	}()

	select {
	case res := <-resCh:
		return res.resp, res.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// BroadcastDashboard delivers evt to every stage implementing
// stage.DashboardHandler, each with its own bounded timeout (spec §4.7).
// Errors from individual handlers are logged as warnings, not returned.
func (r *Runtime) BroadcastDashboard(ctx context.Context, evt stage.DashboardEvent, timeout time.Duration) {
	r.mu.Lock()
	ids := append([]string(nil), r.order...)
	r.mu.Unlock()

	for _, id := range ids {
		handler, ok := r.stages[id].(stage.DashboardHandler)
		if !ok {
			continue
		}
		id := id
		go func() {
			hctx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()
			if err := handler.ReceiveDashboard(hctx, evt); err != nil {
				logStageEvent(id, stage.LogWarning, "receiveDashboard failed", map[string]any{"error": err.Error()})
			}
		}()
	}
}

// InstallSignalHandlers routes SIGINT, SIGTERM, SIGUSR1, and SIGUSR2 into
// Shutdown with the signal's String() text as reason, e.g. "interrupt"
// for SIGINT (spec §4.5).
func (r *Runtime) InstallSignalHandlers() {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM, syscall.SIGUSR1, syscall.SIGUSR2)
	go func() {
		sig := <-ch
		r.Shutdown(sig.String())
	}()
}

// Done returns a channel closed once Shutdown has run to completion.
func (r *Runtime) Done() <-chan struct{} { return r.shutdownCh }

// ExitCode returns the process exit code for the shutdown reason: 0 for
// "finished", 1 otherwise. Valid only after Done() is closed.
func (r *Runtime) ExitCode() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.exitCode
}

// Reason returns the shutdown reason. Valid only after Done() is closed.
func (r *Runtime) Reason() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.reason
}

func logStageEvent(id string, level stage.LogLevel, msg string, data map[string]any) {
	l := logger.Stage(id)
	data = logger.RedactMap(data)
	switch level {
	case stage.LogDebug:
		e := l.Debug()
		for k, v := range data {
			e = e.Interface(k, v)
		}
		e.Msg(msg)
	case stage.LogWarning:
		e := l.Warn()
		for k, v := range data {
			e = e.Interface(k, v)
		}
		e.Msg(msg)
	case stage.LogError:
		e := l.Error()
		for k, v := range data {
			e = e.Interface(k, v)
		}
		e.Msg(msg)
	default:
		e := l.Info()
		for k, v := range data {
			e = e.Interface(k, v)
		}
		e.Msg(msg)
	}
}

func (r *Runtime) sendResponse(stageID string, args []string) {
	r.mu.Lock()
	b := r.broadcaster
	r.mu.Unlock()
	if b != nil {
		b.SendResponse(stageID, args)
	}
}

func (r *Runtime) sendDashboard(evt stage.DashboardEvent) {
	r.mu.Lock()
	b := r.broadcaster
	r.mu.Unlock()
	if b != nil {
		b.SendDashboard(evt)
	}
}

func busAccessor(name string) stage.Bus {
	return eventBusAdapter{name: name}
}
