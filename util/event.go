package util

import "sync"

// Event is a one-shot signal that can be waited on from multiple goroutines.
type Event struct {
	cond *sync.Cond
	set  bool
}

func NewEvent() *Event {
	return &Event{
		cond: &sync.Cond{L: &sync.Mutex{}},
	}
}

// Set marks the event, waking any waiters. Returns the previous state.
func (e *Event) Set() bool {
	e.cond.L.Lock()
	previous := e.set
	e.set = true
	e.cond.L.Unlock()
	e.cond.Broadcast()
	return previous
}

// Wait blocks until the event is set.
func (e *Event) Wait() {
	e.cond.L.Lock()
	for !e.set {
		e.cond.Wait()
	}
	e.cond.L.Unlock()
}
