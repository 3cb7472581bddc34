// Package events allows for the registering and receiving of events.
package events

import (
	"fmt"
	"sync"
)

// messageBuffer is the size of every acquired channel. Since a message will
// be dropped if the receiver is not ready to receive, this buffer should give
// the receiver enough time to not lose a message.
const messageBuffer = 100

// Events maintains a mapping of unique id and channels so goroutines
// can register and receive events. Handlers registered with Subscribe
// are called synchronously on every Send and never miss an event.
type Events[T any] struct {
	mu       sync.RWMutex
	m        map[string]chan T
	handlers map[string]func(T)
}

// New constructs an events for registering and receiving events.
func New[T any]() *Events[T] {
	return &Events[T]{
		m:        make(map[string]chan T),
		handlers: make(map[string]func(T)),
	}
}

// Shutdown closes and removes all channels that were provided by
// the call to Acquire and removes every handler.
func (evt *Events[T]) Shutdown() {
	evt.mu.Lock()
	defer evt.mu.Unlock()

	for id, ch := range evt.m {
		delete(evt.m, id)
		close(ch)
	}

	for id := range evt.handlers {
		delete(evt.handlers, id)
	}
}

// Acquire takes a unique id and returns a channel that can be used
// to receive events.
func (evt *Events[T]) Acquire(id string) chan T {
	evt.mu.Lock()
	defer evt.mu.Unlock()

	ch, exists := evt.m[id]
	if exists {
		return ch
	}

	evt.m[id] = make(chan T, messageBuffer)
	return evt.m[id]
}

// Release closes and removes the channel that was provided by
// the call to Acquire.
func (evt *Events[T]) Release(id string) error {
	evt.mu.Lock()
	defer evt.mu.Unlock()

	ch, exists := evt.m[id]
	if !exists {
		return fmt.Errorf("id %q does not exist", id)
	}

	delete(evt.m, id)
	close(ch)
	return nil
}

// Subscribe registers a handler under the unique id. A handler must not
// call back into Subscribe or Unsubscribe.
func (evt *Events[T]) Subscribe(id string, fn func(T)) {
	evt.mu.Lock()
	defer evt.mu.Unlock()

	evt.handlers[id] = fn
}

// Unsubscribe removes the handler registered under the unique id.
func (evt *Events[T]) Unsubscribe(id string) {
	evt.mu.Lock()
	defer evt.mu.Unlock()

	delete(evt.handlers, id)
}

// Send signals a message to every registered channel and handler. Send will
// not block waiting for a receiver on any given channel.
func (evt *Events[T]) Send(v T) {
	evt.mu.RLock()
	handlers := make([]func(T), 0, len(evt.handlers))
	for _, fn := range evt.handlers {
		handlers = append(handlers, fn)
	}

	for _, ch := range evt.m {
		select {
		case ch <- v:
		default:
		}
	}
	evt.mu.RUnlock()

	for _, fn := range handlers {
		fn(v)
	}
}
