package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/speechflow/speechflow/internal/graph"
)

const sampleYAML = `
pipelines:
  demo:
    nodes:
      - type: file
        options:
          path: "-"
          mode: "r"
      - type: vad
    edges:
      - [0, 1]
`

func TestLoadYAMLConfigSelectsPipelineByID(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "graph.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleYAML), 0o644))

	src, err := loadYAMLConfig("demo@"+path, []string{"in.wav"})
	require.NoError(t, err)
	require.Len(t, src.Nodes(), 2)
	require.Equal(t, "file", src.Nodes()[0].Type)
	require.Equal(t, "vad", src.Nodes()[1].Type)
	require.Equal(t, []graph.EdgeSpec{{From: 0, To: 1}}, src.Edges())

	argv, err := src.Resolve("argv")
	require.NoError(t, err)
	require.Equal(t, []any{"in.wav"}, argv)
}

func TestLoadYAMLConfigRejectsMalformedSpec(t *testing.T) {
	_, err := loadYAMLConfig("no-at-sign", nil)
	require.Error(t, err)
}

func TestLoadYAMLConfigRejectsUnknownPipeline(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "graph.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleYAML), 0o644))

	_, err := loadYAMLConfig("missing@"+path, nil)
	require.Error(t, err)
}
