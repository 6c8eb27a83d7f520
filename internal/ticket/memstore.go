package ticket

import (
	"context"
	"sync"
	"time"

	"github.com/formflow/formflow/model"
)

// MemoryStore is an in-memory Store with TTL support. Suitable for testing
// and single-instance deployments.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]memEntry
}

type memEntry struct {
	ticket    model.FormRequest
	expiresAt time.Time
}

// NewMemoryStore creates a new in-memory ticket store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]memEntry)}
}

// Save persists a ticket with a TTL.
func (s *MemoryStore) Save(_ context.Context, ticket model.FormRequest, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[ticket.RequestID] = memEntry{
		ticket:    ticket,
		expiresAt: time.Now().Add(expiryOrDefault(ttl)),
	}
	return nil
}

// FindOne returns the ticket for the request id, or TICKET_NOT_FOUND.
func (s *MemoryStore) FindOne(_ context.Context, requestID string) (model.FormRequest, error) {
	s.mu.RLock()
	entry, exists := s.entries[requestID]
	s.mu.RUnlock()

	if !exists {
		return model.FormRequest{}, model.NewTicketNotFoundError()
	}
	if time.Now().After(entry.expiresAt) {
		s.mu.Lock()
		delete(s.entries, requestID)
		s.mu.Unlock()
		return model.FormRequest{}, model.NewTicketNotFoundError()
	}
	return entry.ticket, nil
}

// Len returns the number of entries (including expired ones). For testing.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// HealthCheck always succeeds.
func (s *MemoryStore) HealthCheck(context.Context) error { return nil }
