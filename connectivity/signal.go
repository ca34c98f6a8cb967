// Package connectivity models the environment's "is the network reachable"
// signal and its one-shot "connectivity restored" notification.
package connectivity

import "sync"

// Signal reports reachability and notifies once when it is restored.
type Signal interface {
	Online() bool
	// OnRestored registers fn to run once on the next offline to online
	// transition. Listeners registered while online wait for the next one.
	OnRestored(fn func())
}

// Switch is a Signal whose state is set explicitly.
type Switch struct {
	mu        sync.Mutex
	online    bool
	listeners []func()
}

// NewSwitch returns a Switch in the given state.
func NewSwitch(online bool) *Switch {
	return &Switch{online: online}
}

// Online implements Signal.
func (s *Switch) Online() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.online
}

// OnRestored implements Signal.
func (s *Switch) OnRestored(fn func()) {
	if fn == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

// Set updates the state. Going from offline to online runs and clears every
// pending listener, in registration order, on the calling goroutine.
func (s *Switch) Set(online bool) {
	s.mu.Lock()
	restored := online && !s.online
	s.online = online
	var fire []func()
	if restored {
		fire = s.listeners
		s.listeners = nil
	}
	s.mu.Unlock()

	for _, fn := range fire {
		fn()
	}
}

// Pending reports how many listeners are waiting.
func (s *Switch) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.listeners)
}
