package reactive

import "sync"

type Subscriber[T any] struct {
	c         chan T
	container *Observable[T]
}

// Cancel removes subscriber from the container.
// Not calling this method may result in memory leak.
func (o *Subscriber[T]) Cancel() {
	if o.container.delete(o) {
		close(o.c)
	}
}

// Channel returns channel that can be used to read from observable.
func (o *Subscriber[T]) Channel() <-chan T {
	return o.c
}

// Observable creates a container for subscribers.
// This works in single producer multiple consumer pattern.
type Observable[T any] struct {
	mux         sync.RWMutex
	subscribers map[*Subscriber[T]]struct{}
	size        int
	closed      bool
}

// New creates Observable container that holds channels for all subscribers.
// size is the buffer size of each channel.
func New[T any](size int) *Observable[T] {
	return &Observable[T]{
		mux:         sync.RWMutex{},
		subscribers: make(map[*Subscriber[T]]struct{}),
		size:        size,
	}
}

// Subscribe subscribes to the container.
func (o *Observable[T]) Subscribe() *Subscriber[T] {
	obs := &Subscriber[T]{
		c:         make(chan T, o.size),
		container: o,
	}
	o.mux.Lock()
	defer o.mux.Unlock()
	if o.closed {
		close(obs.c)
		return obs
	}
	o.subscribers[obs] = struct{}{}
	return obs
}

// Publish publishes value to all subscribers.
// A subscriber that does not drain its channel misses the value,
// publishing never blocks the producer.
func (o *Observable[T]) Publish(v T) {
	o.mux.RLock()
	defer o.mux.RUnlock()
	if o.closed {
		return
	}
	for s := range o.subscribers {
		select {
		case s.c <- v:
		default:
		}
	}
}

// Close cancels all subscribers and rejects future subscriptions.
// It is the teardown path of the container owner.
func (o *Observable[T]) Close() {
	o.mux.Lock()
	defer o.mux.Unlock()
	if o.closed {
		return
	}
	o.closed = true
	for s := range o.subscribers {
		delete(o.subscribers, s)
		close(s.c)
	}
}

func (o *Observable[T]) delete(s *Subscriber[T]) bool {
	o.mux.Lock()
	defer o.mux.Unlock()
	if _, ok := o.subscribers[s]; !ok {
		return false
	}
	delete(o.subscribers, s)
	return true
}
