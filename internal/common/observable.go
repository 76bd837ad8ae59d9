package common

import "sync"

// Observable is a single-writer, multi-reader latest-value container.
// Readers either poll Get or subscribe to a channel; a slow subscriber
// never blocks the writer, it just misses intermediate values.
type Observable[T any] struct {
	mu    sync.RWMutex
	value T
	set   bool
	subs  []chan T
}

// NewObservable creates an empty observable.
func NewObservable[T any]() *Observable[T] {
	return &Observable[T]{}
}

// Set publishes a new value to all subscribers.
func (o *Observable[T]) Set(value T) {
	o.mu.Lock()
	o.value = value
	o.set = true
	subs := o.subs
	o.mu.Unlock()

	for _, ch := range subs {
		select {
		case ch <- value:
		default:
		}
	}
}

// Get returns the latest value and whether one has been published.
func (o *Observable[T]) Get() (T, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.value, o.set
}

// Subscribe registers a buffered channel that receives subsequent values.
func (o *Observable[T]) Subscribe() <-chan T {
	ch := make(chan T, 1)
	o.mu.Lock()
	o.subs = append(o.subs, ch)
	o.mu.Unlock()
	return ch
}
