package relayserver

import (
	"sync"

	"sobre/internal/domain"
)

// memoryStore keeps registered keys and routed messages for the lifetime of
// the process.
type memoryStore struct {
	mu   sync.RWMutex
	keys map[domain.Identity]string
	msgs []domain.Message
}

func newMemoryStore() *memoryStore {
	return &memoryStore{keys: make(map[domain.Identity]string)}
}

// setKey is an idempotent upsert: one current record per identity.
func (s *memoryStore) setKey(id domain.Identity, exported string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.keys[id] = exported
}

func (s *memoryStore) key(id domain.Identity) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	exported, ok := s.keys[id]
	return exported, ok
}

func (s *memoryStore) appendMessage(m domain.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.msgs = append(s.msgs, m)
}

// conversation returns both directions of traffic between a and b, in
// arrival order.
func (s *memoryStore) conversation(a, b domain.Identity) []domain.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Message, 0, 8)
	for _, m := range s.msgs {
		if (m.SenderID == a && m.ReceiverID == b) || (m.SenderID == b && m.ReceiverID == a) {
			out = append(out, m)
		}
	}
	return out
}

// contacts derives the identities id has exchanged messages with.
func (s *memoryStore) contacts(id domain.Identity) []domain.Identity {
	s.mu.RLock()
	defer s.mu.RUnlock()
	seen := make(map[domain.Identity]bool)
	out := make([]domain.Identity, 0, 8)
	for _, m := range s.msgs {
		var other domain.Identity
		switch id {
		case m.SenderID:
			other = m.ReceiverID
		case m.ReceiverID:
			other = m.SenderID
		default:
			continue
		}
		if !seen[other] {
			seen[other] = true
			out = append(out, other)
		}
	}
	return out
}
