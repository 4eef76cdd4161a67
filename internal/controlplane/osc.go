package controlplane

import (
	"github.com/hypebeast/go-osc/osc"

	"github.com/speechflow/speechflow/internal/logger"
)

// dashboardOSCAddress is the fixed OSC address dashboard events are mirrored
// to (spec §6).
const dashboardOSCAddress = "/speechflow/dashboard"

// oscSink mirrors DASHBOARD events to a UDP OSC peer. Optional: a Server
// with no destination configured simply never constructs one.
type oscSink struct {
	client *osc.Client
}

func newOSCSink(host string, port int) *oscSink {
	return &oscSink{client: osc.NewClient(host, port)}
}

// send mirrors a dashboard event's four arguments (class, id, kind, value)
// to the fixed /speechflow/dashboard address.
func (s *oscSink) send(class, id, kind string, value any) {
	msg := osc.NewMessage(dashboardOSCAddress)
	msg.Append(class)
	msg.Append(id)
	msg.Append(kind)
	if v, ok := value.(int); ok {
		value = int32(v)
	}
	msg.Append(value)

	if err := s.client.Send(msg); err != nil {
		logger.Stage("controlplane").Warn().Err(err).Msg("osc send failed")
	}
}
