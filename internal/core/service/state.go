package service

import (
	"sync"

	"github.com/justexisted/bonitaforward-identity/internal/core/domain"
)

// subscriberBuffer bounds how far a subscriber may lag before it starts
// missing intermediate values.
const subscriberBuffer = 16

// identityState holds the authoritative identity value and the snapshot
// handed to readers. publish replaces both under one lock, so an observer
// can never see a half-applied transition.
type identityState struct {
	mu      sync.RWMutex
	current domain.IdentityContext
	subs    map[int]chan domain.IdentityContext
	nextID  int
}

func newIdentityState() *identityState {
	return &identityState{
		current: domain.LoadingIdentity(),
		subs:    make(map[int]chan domain.IdentityContext),
	}
}

// snapshot returns the latest published context.
func (s *identityState) snapshot() domain.IdentityContext {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// publish replaces the published context and notifies subscribers. A full
// subscriber channel drops the value instead of blocking the reconciler;
// the latest state is always recoverable via snapshot.
func (s *identityState) publish(next domain.IdentityContext) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = next
	for _, ch := range s.subs {
		select {
		case ch <- next:
		default:
		}
	}
}

// subscribe registers a new observer and returns its channel plus a cancel
// function. Cancel closes the channel and drops the registration.
func (s *identityState) subscribe() (<-chan domain.IdentityContext, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextID
	s.nextID++
	ch := make(chan domain.IdentityContext, subscriberBuffer)
	s.subs[id] = ch

	cancel := func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if sub, ok := s.subs[id]; ok {
			delete(s.subs, id)
			close(sub)
		}
	}
	return ch, cancel
}
