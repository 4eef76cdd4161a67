package registry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/speechflow/speechflow/internal/cstream"
	"github.com/speechflow/speechflow/internal/stage"
)

type stubStage struct {
	stage.Base
}

func (s *stubStage) Open(ctx context.Context, env stage.Env) error {
	s.SetStream(cstream.NewSource())
	return nil
}
func (s *stubStage) Close(ctx context.Context) error { return nil }

func stubCtor(id string, options map[string]any, positional []any) (stage.Stage, error) {
	return &stubStage{Base: stage.NewBase(id, "stub", stage.IONone, stage.IOText, nil)}, nil
}

func TestRegisterAndLookup(t *testing.T) {
	r := New(nil)
	r.Register("stub", stubCtor)
	assert.NotNil(t, r.Lookup("stub"))
	assert.Nil(t, r.Lookup("missing"))
}

func TestDuplicateRegistrationIsFirstLoadedWins(t *testing.T) {
	var calls []bool // records the `duplicate` flag for each onLog call
	r := New(func(name string, duplicate bool) { calls = append(calls, duplicate) })

	first := 0
	second := 0
	r.Register("stub", func(id string, options map[string]any, positional []any) (stage.Stage, error) {
		first++
		return stubCtor(id, options, positional)
	})
	r.Register("stub", func(id string, options map[string]any, positional []any) (stage.Stage, error) {
		second++
		return stubCtor(id, options, positional)
	})

	_, err := r.Build("stub", "stub:1", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, first, "the first-registered constructor must be the one in effect")
	assert.Equal(t, 0, second)

	require.Len(t, calls, 2)
	assert.False(t, calls[0])
	assert.True(t, calls[1], "the second Register for the same name must be logged as a duplicate")
}

func TestListIsSorted(t *testing.T) {
	r := New(nil)
	r.Register("zzz", stubCtor)
	r.Register("aaa", stubCtor)
	assert.Equal(t, []string{"aaa", "zzz"}, r.List())
}

func TestBuildUnknownStageType(t *testing.T) {
	r := New(nil)
	_, err := r.Build("nope", "nope:1", nil, nil)
	assert.ErrorIs(t, err, ErrUnknownStageType)
}
