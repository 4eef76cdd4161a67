package stage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/speechflow/speechflow/internal/cstream"
)

// fakeStage is a minimal concrete Stage used to exercise Base's embedding
// contract the way a real exemplar stage (vad, sentence, asr, subtitle)
// does.
type fakeStage struct {
	Base
	opened bool
}

func newFakeStage(id string) *fakeStage {
	return &fakeStage{Base: NewBase(id, "fake", IOText, IOText, Schema{
		{Name: "greeting", Type: ParamString, Positional: 0, Default: "hi"},
	})}
}

func (f *fakeStage) Open(ctx context.Context, env Env) error {
	f.SetParams(env.Params)
	f.SetStream(cstream.NewTransform())
	f.opened = true
	return nil
}

func (f *fakeStage) Close(ctx context.Context) error { return nil }

func TestBaseIdentityAndStatus(t *testing.T) {
	s := newFakeStage("fake:1")
	assert.Equal(t, "fake:1", s.ID())

	in, out := s.IO()
	assert.Equal(t, IOText, in)
	assert.Equal(t, IOText, out)

	status := s.Status()
	assert.Equal(t, "fake", status.Type)
	require.Len(t, status.Params, 1)
	assert.Equal(t, "greeting", status.Params[0].Name)
}

func TestStreamNilBeforeOpen(t *testing.T) {
	s := newFakeStage("fake:1")
	assert.Nil(t, s.Stream())
}

func TestOpenAttachesStreamAndParams(t *testing.T) {
	s := newFakeStage("fake:1")
	schema := s.Status().Params
	params, err := schema.Parse(nil, nil)
	require.NoError(t, err)

	err = s.Open(context.Background(), Env{ID: "fake:1", Params: params})
	require.NoError(t, err)
	require.NotNil(t, s.Stream())
	assert.Equal(t, "hi", s.Params().String("greeting"))
}

func TestLifecycleStringer(t *testing.T) {
	assert.Equal(t, "declared", Declared.String())
	assert.Equal(t, "active", Active.String())
	assert.Equal(t, "destroyed", Destroyed.String())
}
