package controlplane

import (
	"fmt"
	"strings"

	"github.com/speechflow/speechflow/internal/stage"
)

// DashboardBlock is descriptive metadata for a UI-facing dashboard widget,
// supplied at startup via the "-d type:id:name[,...]" flag, kept by the
// Server and returned by Server.Blocks. The blocks are not included in the
// DASHBOARD messages sent to WS or OSC peers.
type DashboardBlock struct {
	Class stage.IOKind
	ID    string
	Name  string
}

// ParseDashboardBlocks parses the "-d" flag value: a comma-separated list of
// "type:id:name" triples, type being "audio" or "text".
func ParseDashboardBlocks(spec string) ([]DashboardBlock, error) {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return nil, nil
	}

	var blocks []DashboardBlock
	for _, entry := range strings.Split(spec, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		parts := strings.SplitN(entry, ":", 3)
		if len(parts) != 3 {
			return nil, fmt.Errorf("controlplane: malformed dashboard block %q, want type:id:name", entry)
		}
		class := stage.IOKind(parts[0])
		if class != stage.IOAudio && class != stage.IOText {
			return nil, fmt.Errorf("controlplane: unknown dashboard block type %q in %q", parts[0], entry)
		}
		blocks = append(blocks, DashboardBlock{Class: class, ID: parts[1], Name: parts[2]})
	}
	return blocks, nil
}
