package main

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/speechflow/speechflow/internal/graph"
)

// yamlFile is the top-level shape of a "-c" configuration file: a set of
// named pipelines, so one file can hold several graphs and "-c" selects one
// by id. This is the literal-configuration seam's own file format, not the
// expression DSL (spec §6, §12): a real DSL grammar parses "-e"/"-f" input
// into the same NodeSpec/EdgeSpec shape, which this module does not
// implement.
type yamlFile struct {
	Pipelines map[string]yamlPipeline `yaml:"pipelines"`
}

type yamlPipeline struct {
	Nodes []yamlNode `yaml:"nodes"`
	Edges [][2]int   `yaml:"edges"`
	Vars  mapSlice   `yaml:"vars"`
}

// mapItem and mapSlice mirror yaml.v2's MapSlice/MapItem (not present in
// yaml.v3): an ordered list of key/value pairs decoded from a YAML mapping.
type mapItem struct {
	Key   any
	Value any
}

type mapSlice []mapItem

func (m *mapSlice) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.MappingNode {
		return fmt.Errorf("vars: expected mapping, got kind %v", value.Kind)
	}
	out := make(mapSlice, 0, len(value.Content)/2)
	for i := 0; i+1 < len(value.Content); i += 2 {
		var key, val any
		if err := value.Content[i].Decode(&key); err != nil {
			return err
		}
		if err := value.Content[i+1].Decode(&val); err != nil {
			return err
		}
		out = append(out, mapItem{Key: key, Value: val})
	}
	*m = out
	return nil
}

type yamlNode struct {
	Type       string         `yaml:"type"`
	Options    map[string]any `yaml:"options"`
	Positional []any          `yaml:"positional"`
}

// loadYAMLConfig parses "<id>@<path>" into a graph.LiteralSource, binding
// argv from the command's positional arguments.
func loadYAMLConfig(spec string, argv []string) (*graph.LiteralSource, error) {
	id, path, ok := strings.Cut(spec, "@")
	if !ok || id == "" || path == "" {
		return nil, fmt.Errorf("malformed -c value %q, want <id>@<yaml-file>", spec)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	var doc yamlFile
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	pipeline, ok := doc.Pipelines[id]
	if !ok {
		return nil, fmt.Errorf("%s: no pipeline named %q", path, id)
	}

	vars := map[string]any{"argv": toAnySlice(argv)}
	for _, item := range pipeline.Vars {
		if key, ok := item.Key.(string); ok {
			vars[key] = item.Value
		}
	}
	src := &graph.LiteralSource{Vars: vars}
	for _, n := range pipeline.Nodes {
		src.NodeList = append(src.NodeList, graph.NodeSpec{
			Type:       n.Type,
			Options:    n.Options,
			Positional: n.Positional,
		})
	}
	for _, e := range pipeline.Edges {
		src.EdgeList = append(src.EdgeList, graph.EdgeSpec{From: e[0], To: e[1]})
	}
	return src, nil
}

func toAnySlice(args []string) []any {
	out := make([]any, len(args))
	for i, a := range args {
		out[i] = a
	}
	return out
}
