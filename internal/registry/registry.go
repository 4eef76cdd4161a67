// Package registry implements the stage-type name-to-constructor mapping
// (spec §4.3). It generalizes the teacher's duplicate-name detection in
// pipeline/stage/builder.go (stageNames set, ErrDuplicateStageName) into a
// standalone first-loaded-wins registry independent of any one graph
// instance. It holds the stage types registered with it at startup; it does
// not discover external stage modules.
package registry

import (
	"fmt"
	"sort"
	"sync"

	"github.com/speechflow/speechflow/internal/stage"
)

// Constructor builds a new stage instance with the given graph-unique id,
// from resolved options and positional arguments.
type Constructor func(id string, options map[string]any, positional []any) (stage.Stage, error)

// Registry is a name -> Constructor map. Construct it with New: the zero
// value has no map, so Register on it panics.
type Registry struct {
	mu    sync.RWMutex
	ctors map[string]Constructor
	onLog func(name string, duplicate bool)
}

// New creates an empty Registry. onLog, if non-nil, is called once per
// Register call so the caller can emit the "one log per load" line the
// spec requires, and a warning when a duplicate is rejected.
func New(onLog func(name string, duplicate bool)) *Registry {
	return &Registry{ctors: make(map[string]Constructor), onLog: onLog}
}

// Register adds ctor under name. First-loaded wins: a second Register call
// for the same name is rejected (logged as a warning via onLog, not an
// error) and does not replace the existing constructor.
func (r *Registry) Register(name string, ctor Constructor) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.ctors[name]; exists {
		if r.onLog != nil {
			r.onLog(name, true)
		}
		return
	}
	r.ctors[name] = ctor
	if r.onLog != nil {
		r.onLog(name, false)
	}
}

// Lookup returns the constructor registered under name, or nil if none is.
func (r *Registry) Lookup(name string) Constructor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.ctors[name]
}

// List returns every registered name in sorted order.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.ctors))
	for name := range r.ctors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ErrUnknownStageType is returned by Build when name has no registered
// constructor; the caller treats this as a fatal Configuration error
// (spec §7).
var ErrUnknownStageType error = unknownStageTypeError{}

type unknownStageTypeError struct{}

func (unknownStageTypeError) Error() string { return "registry: unknown stage type" }

// Build looks up name and, if found, invokes its constructor.
func (r *Registry) Build(name, id string, options map[string]any, positional []any) (stage.Stage, error) {
	ctor := r.Lookup(name)
	if ctor == nil {
		return nil, fmt.Errorf("%w: %q", ErrUnknownStageType, name)
	}
	return ctor(id, options, positional)
}
