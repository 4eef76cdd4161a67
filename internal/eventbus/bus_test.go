package eventbus

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAccessIsLazyAndStable(t *testing.T) {
	Reset()
	a := Access("dashboard")
	b := Access("dashboard")
	assert.Same(t, a, b, "Access must return the same Bus for a given name")
}

func TestPublishDeliversToAllSubscribers(t *testing.T) {
	Reset()
	b := Access("stage-rendezvous")

	var mu sync.Mutex
	var got []any
	var wg sync.WaitGroup
	wg.Add(2)
	b.Subscribe(func(payload any) {
		defer wg.Done()
		mu.Lock()
		got = append(got, payload)
		mu.Unlock()
	})
	b.Subscribe(func(payload any) {
		defer wg.Done()
		mu.Lock()
		got = append(got, payload)
		mu.Unlock()
	})

	b.Publish("hello")

	done := make(chan struct{})
	go func() { wg.Wait(); close(done) }()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("not all subscribers were notified")
	}

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, got, 2)
	assert.Equal(t, "hello", got[0])
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	Reset()
	b := Access("topic")

	called := false
	unsub := b.Subscribe(func(payload any) { called = true })
	unsub()

	b.Publish("x")
	time.Sleep(20 * time.Millisecond)
	assert.False(t, called)
	assert.Equal(t, 0, b.Subscribers())
}

func TestPanickingSubscriberDoesNotBlockOthers(t *testing.T) {
	Reset()
	b := Access("panicky")

	var wg sync.WaitGroup
	wg.Add(1)
	b.Subscribe(func(payload any) { panic("boom") })
	b.Subscribe(func(payload any) { defer wg.Done() })

	b.Publish("x")

	done := make(chan struct{})
	go func() { wg.Wait(); close(done) }()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("a panicking subscriber must not prevent delivery to others")
	}
}
