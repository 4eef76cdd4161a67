package queue

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSingleFIFOOrder(t *testing.T) {
	q := NewSingle[int]()
	q.Write(1)
	q.Write(2)
	q.Write(3)

	for _, want := range []int{1, 2, 3} {
		got, ok := q.Read()
		assert.True(t, ok)
		assert.Equal(t, want, got)
	}
}

func TestSingleCloseDrainsThenEnds(t *testing.T) {
	q := NewSingle[string]()
	q.Write("a")
	q.Close()

	got, ok := q.Read()
	assert.True(t, ok)
	assert.Equal(t, "a", got)

	_, ok = q.Read()
	assert.False(t, ok, "Read after drain of a closed queue must report ok=false")
}

func TestSingleReadBlocksUntilWrite(t *testing.T) {
	q := NewSingle[int]()
	done := make(chan int, 1)
	go func() {
		v, _ := q.Read()
		done <- v
	}()
	q.Write(42)

	select {
	case v := <-done:
		assert.Equal(t, 42, v)
	case <-time.After(time.Second):
		t.Fatal("Read did not return after Write")
	}
}
