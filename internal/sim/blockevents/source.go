// Package blockevents reports furnace placement and removal to registered
// listeners.
package blockevents

import (
	"sync"

	"nearbysmelt/internal/sim/world/kernel/model"
)

// Event describes one furnace placed or destroyed.
type Event struct {
	Pos model.Vec3i
	// Actor is the agent that caused the event; empty for world generation
	// and other non-agent causes.
	Actor    string
	Canceled bool
}

func (e Event) AgentCaused() bool { return e.Actor != "" }

// Listener receives events. Callbacks run on the emitting goroutine and must
// not block.
type Listener interface {
	OnLandmarkAdded(ev Event)
	OnLandmarkRemoved(ev Event)
}

// Source fans events out to registered listeners. Safe for concurrent use.
type Source struct {
	mu        sync.RWMutex
	nextID    uint64
	listeners map[uint64]Listener
}

func NewSource() *Source {
	return &Source{listeners: map[uint64]Listener{}}
}

// Register adds l and returns the function that removes it again.
func (s *Source) Register(l Listener) (unregister func()) {
	s.mu.Lock()
	s.nextID++
	id := s.nextID
	s.listeners[id] = l
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.listeners, id)
			s.mu.Unlock()
		})
	}
}

func (s *Source) Placed(ev Event) {
	for _, l := range s.snapshot() {
		l.OnLandmarkAdded(ev)
	}
}

func (s *Source) Destroyed(ev Event) {
	for _, l := range s.snapshot() {
		l.OnLandmarkRemoved(ev)
	}
}

func (s *Source) Listeners() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.listeners)
}

func (s *Source) snapshot() []Listener {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Listener, 0, len(s.listeners))
	for _, l := range s.listeners {
		out = append(out, l)
	}
	return out
}
