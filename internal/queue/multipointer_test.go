package queue

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMultiPointerIndependentAdvance(t *testing.T) {
	q := NewMultiPointer[int]()
	q.Register("reader")
	q.Register("annotator")

	for _, v := range []int{10, 20, 30} {
		q.Append(v)
	}

	v, ok := q.Advance("reader")
	require.True(t, ok)
	assert.Equal(t, 10, v)

	v, ok = q.Advance("reader")
	require.True(t, ok)
	assert.Equal(t, 20, v)

	// annotator has not advanced; it should still see the first entry.
	v, ok = q.Peek("annotator")
	require.True(t, ok)
	assert.Equal(t, 10, v)
}

func TestMultiPointerTrimRespectsSlowestPointer(t *testing.T) {
	q := NewMultiPointer[int]()
	q.Register("fast")
	q.Register("slow")
	for _, v := range []int{1, 2, 3} {
		q.Append(v)
	}
	q.Advance("fast")
	q.Advance("fast")
	q.Trim()
	assert.Equal(t, 3, q.Len(), "trim must not drop entries the slow pointer has not read")

	q.Advance("slow")
	q.Advance("slow")
	q.Trim()
	assert.Equal(t, 1, q.Len())
}

func TestMultiPointerInsertAndDeleteAt(t *testing.T) {
	q := NewMultiPointer[string]()
	q.Register("r")
	q.Append("a")
	q.Append("c")
	q.InsertAt(1, "b")

	var got []string
	q.Walk("r", func(s string) { got = append(got, s) })
	assert.Equal(t, []string{"a", "b", "c"}, got)

	ok := q.DeleteAt(1)
	require.True(t, ok)
	got = nil
	q.Walk("r", func(s string) { got = append(got, s) })
	assert.Equal(t, []string{"a", "c"}, got)
}

func TestMultiPointerHasUnreadAndTouch(t *testing.T) {
	q := NewMultiPointer[int]()
	q.Register("r")
	assert.False(t, q.HasUnread("r"))
	q.Append(1)
	assert.True(t, q.HasUnread("r"))

	select {
	case <-q.Reads():
		t.Fatal("no read notification should be pending yet")
	default:
	}
	q.Touch()
	select {
	case <-q.Reads():
	default:
		t.Fatal("Touch must emit a read-change notification")
	}
}
