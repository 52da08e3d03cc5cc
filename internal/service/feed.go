package service

import "sync"

// Feed publishes the current value to subscribers. New subscribers receive
// the last published value immediately; slow subscribers only ever see the
// newest value.
type Feed[T any] struct {
	mu     sync.Mutex
	last   T
	has    bool
	nextID int
	subs   map[int]chan T
}

func NewFeed[T any]() *Feed[T] {
	return &Feed[T]{subs: make(map[int]chan T)}
}

// Publish stores v as the current value and delivers it to every subscriber.
func (f *Feed[T]) Publish(v T) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.last = v
	f.has = true
	for _, ch := range f.subs {
		offerLatest(ch, v)
	}
}

// Subscribe returns a channel of updates and a cancel func that closes it.
func (f *Feed[T]) Subscribe() (<-chan T, func()) {
	f.mu.Lock()
	defer f.mu.Unlock()

	ch := make(chan T, 1)
	id := f.nextID
	f.nextID++
	f.subs[id] = ch
	if f.has {
		ch <- f.last
	}

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			f.mu.Lock()
			defer f.mu.Unlock()
			delete(f.subs, id)
			close(ch)
		})
	}
	return ch, cancel
}

// Last returns the current value, if any was published.
func (f *Feed[T]) Last() (T, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.last, f.has
}

// offerLatest replaces any undelivered value in ch with v.
func offerLatest[T any](ch chan T, v T) {
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- v:
	default:
	}
}
