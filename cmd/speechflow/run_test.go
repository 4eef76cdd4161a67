package main

import (
	"io"
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/speechflow/speechflow/internal/graph"
	"github.com/speechflow/speechflow/internal/registry"
	"github.com/speechflow/speechflow/internal/stages"
)

func resetFlags(t *testing.T) {
	t.Helper()
	old := flags
	t.Cleanup(func() { flags = old })
	flags.expr, flags.file, flags.config = "", "", ""
}

func TestResolveConfigSourceRequiresExactlyOneSource(t *testing.T) {
	resetFlags(t)
	_, err := resolveConfigSource(nil)
	require.Error(t, err)

	flags.expr = "x"
	flags.file = "y"
	_, err = resolveConfigSource(nil)
	require.Error(t, err)
}

func TestResolveConfigSourceRejectsExpressionInputs(t *testing.T) {
	resetFlags(t)
	flags.expr = "t2t-subtitle"
	_, err := resolveConfigSource(nil)
	require.ErrorIs(t, err, graph.ErrDSLUnavailable)
}

func TestPrintStatusTableListsEveryBuiltin(t *testing.T) {
	reg := registry.New(nil)
	stages.RegisterBuiltins(reg)

	out := captureStdout(t, func() { printStatusTable(reg) })
	for _, name := range reg.List() {
		require.Contains(t, out, name)
	}
}

func captureStdout(t *testing.T, fn func()) string {
	t.Helper()
	old := os.Stdout
	r, w, err := os.Pipe()
	require.NoError(t, err)
	os.Stdout = w

	fn()

	require.NoError(t, w.Close())
	os.Stdout = old

	data, err := io.ReadAll(r)
	require.NoError(t, err)
	return string(data)
}
