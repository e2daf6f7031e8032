package reactive

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSubscribePublish(t *testing.T) {
	o := New[int](10)
	s := o.Subscribe()
	defer s.Cancel()

	o.Publish(42)

	select {
	case v := <-s.Channel():
		assert.Equal(t, 42, v)
	case <-time.After(time.Second):
		assert.FailNow(t, "timed out waiting for published value")
	}
}

func TestCancelRemovesSubscriber(t *testing.T) {
	o := New[int](1)
	s := o.Subscribe()
	s.Cancel()

	_, ok := <-s.Channel()
	assert.False(t, ok)
}

func TestPublishDoesNotBlockOnFullBuffer(t *testing.T) {
	o := New[int](1)
	s := o.Subscribe()
	defer s.Cancel()

	done := make(chan struct{})
	go func() {
		o.Publish(1)
		o.Publish(2)
		o.Publish(3)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		assert.FailNow(t, "publish blocked on a slow subscriber")
	}
}

func TestCloseCancelsAllSubscribers(t *testing.T) {
	o := New[int](1)
	first := o.Subscribe()
	second := o.Subscribe()

	o.Close()

	_, ok := <-first.Channel()
	assert.False(t, ok)
	_, ok = <-second.Channel()
	assert.False(t, ok)

	late := o.Subscribe()
	_, ok = <-late.Channel()
	assert.False(t, ok)
}
