// Package stage defines the abstract processing unit of a SpeechFlow graph:
// declared input/output kind, parameter schema, lifecycle hooks, and the
// side channels (log, control-plane responses, dashboard, event bus) every
// stage exposes. It generalizes the teacher's Stage/StageType/BaseStage
// trio (stage.Stage, StageType, BaseStage) from a fixed element-processing
// model into the spec's typed-IO, schema-driven, eight-state lifecycle.
package stage

import (
	"context"
	"fmt"
	"time"

	"github.com/speechflow/speechflow/internal/cstream"
)

// IOKind is the payload kind a stage's input or output side accepts or
// produces. IONone means "no such side".
type IOKind string

const (
	IOAudio IOKind = "audio"
	IOText  IOKind = "text"
	IONone  IOKind = "none"
)

// Lifecycle is one of the eight states a Stage instance passes through.
type Lifecycle int

const (
	Declared Lifecycle = iota
	Connected
	Opened
	Piped
	Active
	Draining
	Closed
	Destroyed
)

func (l Lifecycle) String() string {
	switch l {
	case Declared:
		return "declared"
	case Connected:
		return "connected"
	case Opened:
		return "opened"
	case Piped:
		return "piped"
	case Active:
		return "active"
	case Draining:
		return "draining"
	case Closed:
		return "closed"
	case Destroyed:
		return "destroyed"
	default:
		return "unknown"
	}
}

// Status is the one-shot descriptor returned by Stage.Status, usable before
// Open has ever been called (the -S status table walks every registered
// type through this path without opening any of them).
type Status struct {
	Type   string
	Input  IOKind
	Output IOKind
	Params Schema
}

// DashboardEvent is the envelope delivered to a stage's ReceiveDashboard
// hook and broadcast to external peers (spec §4.7).
type DashboardEvent struct {
	Class IOKind // audio | text
	ID    string
	Kind  string // final | intermediate
	Value any
}

// Env is everything the runtime hands a stage at Open: its resolved
// parameters, the graph's time-zero, and its outbound side channels. A
// stage must not reach for ambient globals for any of these so that it
// remains testable in isolation.
type Env struct {
	ID       string
	Params   Params
	TimeZero time.Time

	Log           func(level LogLevel, msg string, data map[string]any)
	SendResponse  func(args []string)
	SendDashboard func(DashboardEvent)
	Bus           func(name string) Bus
}

// Bus is the subset of eventbus.Bus a stage needs, kept as an interface
// here so this package does not import eventbus directly (eventbus has no
// notion of stages; the dependency only runs one way, from the runtime
// wiring Env.Bus, not from this package).
type Bus interface {
	Subscribe(func(payload any)) (unsubscribe func())
	Publish(payload any)
}

// LogLevel mirrors logger.Level without importing the logger package from
// this low-level type definition; the runtime adapts between the two when
// it wires Env.Log.
type LogLevel string

const (
	LogDebug   LogLevel = "debug"
	LogInfo    LogLevel = "info"
	LogWarning LogLevel = "warning"
	LogError   LogLevel = "error"
)

// Stage is the abstract processing unit of a graph.
type Stage interface {
	// ID is this instance's unique identifier (auto-suffixed ":N" by the
	// graph when a type is instantiated more than once).
	ID() string

	// IO returns the declared input and output kinds. These may depend on
	// a mode parameter but must not change after Open.
	IO() (input, output IOKind)

	// Status returns this stage's one-shot descriptor. Callable before
	// Open.
	Status() Status

	// Open constructs the stage's internal state and exposes its stream.
	// Must leave Stream() non-nil or return an error.
	Open(ctx context.Context, env Env) error

	// Stream returns the ChunkStream this stage exposes. Valid only after
	// a successful Open.
	Stream() *cstream.Stream

	// Close tears the stage down, releasing any external resource. Must be
	// idempotent.
	Close(ctx context.Context) error
}

// RequestHandler is implemented by stages that accept ControlPlane COMMAND
// requests (spec §4.7).
type RequestHandler interface {
	ReceiveRequest(ctx context.Context, args []string) ([]string, error)
}

// DashboardHandler is implemented by stages that react to DASHBOARD events
// broadcast by other stages (closed-loop UI stages, spec §4.7).
type DashboardHandler interface {
	ReceiveDashboard(ctx context.Context, evt DashboardEvent) error
}

// ErrNotOpened reports an operation on a stage before Open has run.
// Stream() does not return it: Base.Stream returns nil before Open.
var ErrNotOpened = fmt.Errorf("stage: not opened")

// Base implements the identity/IO/status boilerplate every concrete stage
// embeds, matching the teacher's BaseStage embedding pattern generalized
// with a parameter schema and typed IO declarations instead of a fixed
// StageType enum.
type Base struct {
	id     string
	typ    string
	input  IOKind
	output IOKind
	schema Schema
	params Params
	stream *cstream.Stream
}

// NewBase constructs the embeddable Base. typ is the registry name used to
// construct this instance; id is this instance's unique graph id.
func NewBase(id, typ string, input, output IOKind, schema Schema) Base {
	return Base{id: id, typ: typ, input: input, output: output, schema: schema}
}

func (b *Base) ID() string { return b.id }

func (b *Base) IO() (input, output IOKind) { return b.input, b.output }

func (b *Base) Status() Status {
	return Status{Type: b.typ, Input: b.input, Output: b.output, Params: b.schema}
}

// Stream returns the stream attached by SetStream, or nil before Open.
func (b *Base) Stream() *cstream.Stream { return b.stream }

// SetStream attaches the ChunkStream this stage exposes; concrete stages
// call this once from their Open implementation.
func (b *Base) SetStream(s *cstream.Stream) { b.stream = s }

// SetParams records the parameters this instance was constructed with, so
// Params can be retrieved later (e.g. from a ReceiveRequest handler).
func (b *Base) SetParams(p Params) { b.params = p }

// Params returns this instance's resolved parameters.
func (b *Base) Params() Params { return b.params }
