package queue

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDoubleMatchesRegardlessOfArrivalOrder(t *testing.T) {
	t.Run("A before B", func(t *testing.T) {
		q := NewDouble[int, string, int]()
		q.WriteA(1, "hello")
		q.WriteB(1, 42)
		p, ok := q.Read()
		require.True(t, ok)
		assert.Equal(t, "hello", p.A)
		assert.Equal(t, 42, p.B)
	})

	t.Run("B before A", func(t *testing.T) {
		q := NewDouble[int, string, int]()
		q.WriteB(1, 42)
		q.WriteA(1, "hello")
		p, ok := q.Read()
		require.True(t, ok)
		assert.Equal(t, "hello", p.A)
		assert.Equal(t, 42, p.B)
	})
}

func TestDoubleCloseBothEndsEmpty(t *testing.T) {
	q := NewDouble[int, string, int]()
	q.CloseA()
	q.CloseB()
	_, ok := q.Read()
	assert.False(t, ok)
}

func TestDoublePendingCounts(t *testing.T) {
	q := NewDouble[int, string, int]()
	q.WriteA(1, "a")
	q.WriteA(2, "b")
	a, b := q.Pending()
	assert.Equal(t, 2, a)
	assert.Equal(t, 0, b)
}
