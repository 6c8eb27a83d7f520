// Package ticket issues, advances, and resolves form request tickets. A
// ticket binds a screen-navigation position to the remote caller it was
// minted for; only that caller can continue or submit it.
package ticket

import (
	"context"
	"time"

	"github.com/formflow/formflow/model"
)

// Store persists tickets. Tickets are write-once; the only mutation is
// expiry, which every backend handles with a TTL.
type Store interface {
	// Save persists a freshly minted ticket.
	Save(ctx context.Context, ticket model.FormRequest, ttl time.Duration) error

	// FindOne returns the ticket with the given request id, or
	// TICKET_NOT_FOUND when the id is unknown or expired.
	FindOne(ctx context.Context, requestID string) (model.FormRequest, error)
}

// expiryOrDefault guards against a zero TTL sneaking a ticket into a backend
// that would never evict it.
func expiryOrDefault(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		return 24 * time.Hour
	}
	return ttl
}
