package graph

import (
	"github.com/speechflow/speechflow/internal/eventbus"
	"github.com/speechflow/speechflow/internal/stage"
)

// eventBusAdapter adapts the process-scoped eventbus.Bus registry to the
// narrow stage.Bus interface a Stage's Env.Bus accessor exposes, so
// internal/stage need not import internal/eventbus directly.
type eventBusAdapter struct {
	name string
}

func (a eventBusAdapter) Subscribe(h func(payload any)) func() {
	return eventbus.Access(a.name).Subscribe(h)
}

func (a eventBusAdapter) Publish(payload any) {
	eventbus.Access(a.name).Publish(payload)
}

var _ stage.Bus = eventBusAdapter{}
