package client

import "sync"

// Wildcard subscribes a handler to every non-internal event type.
const Wildcard = "*"

// Handler receives dispatched events.
type Handler func(Event)

// subscriptions is the client-local registry mapping event type to handlers.
type subscriptions struct {
	mu     sync.Mutex
	nextID int
	byType map[string]map[int]Handler
}

func newSubscriptions() *subscriptions {
	return &subscriptions{
		byType: make(map[string]map[int]Handler),
	}
}

// add registers a handler and returns an idempotent unsubscribe closure.
// The closure removes the handler and drops the type's set when it empties.
func (s *subscriptions) add(eventType string, h Handler) func() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	id := s.nextID

	if s.byType[eventType] == nil {
		s.byType[eventType] = make(map[int]Handler)
	}
	s.byType[eventType][id] = h

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if set, ok := s.byType[eventType]; ok {
			delete(set, id)
			if len(set) == 0 {
				delete(s.byType, eventType)
			}
		}
	}
}

// handlersFor returns the handlers registered under the exact type followed
// by the wildcard handlers. The result is a copy so dispatch never races
// with mutation.
func (s *subscriptions) handlersFor(eventType string) []Handler {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []Handler
	for _, h := range s.byType[eventType] {
		out = append(out, h)
	}
	if eventType != Wildcard {
		for _, h := range s.byType[Wildcard] {
			out = append(out, h)
		}
	}
	return out
}
