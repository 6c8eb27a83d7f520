package ticket

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/formflow/formflow/model"
)

// RedisStore is a Redis-backed Store. TTL eviction is delegated to Redis;
// an expired request id is indistinguishable from one never issued.
type RedisStore struct {
	client redis.Cmdable
}

// NewRedisStore creates a Redis-backed ticket store.
func NewRedisStore(client redis.Cmdable) *RedisStore {
	return &RedisStore{client: client}
}

// Save persists a ticket with TTL.
func (s *RedisStore) Save(ctx context.Context, ticket model.FormRequest, ttl time.Duration) error {
	data, err := json.Marshal(ticket)
	if err != nil {
		return fmt.Errorf("marshal ticket: %w", err)
	}

	key := ticketKey(ticket.RequestID)
	if err := s.client.Set(ctx, key, data, expiryOrDefault(ttl)).Err(); err != nil {
		return fmt.Errorf("redis set %q: %w", key, err)
	}
	return nil
}

// FindOne returns the ticket for the request id, or TICKET_NOT_FOUND.
func (s *RedisStore) FindOne(ctx context.Context, requestID string) (model.FormRequest, error) {
	raw, err := s.client.Get(ctx, ticketKey(requestID)).Bytes()
	if err == redis.Nil {
		return model.FormRequest{}, model.NewTicketNotFoundError()
	}
	if err != nil {
		return model.FormRequest{}, fmt.Errorf("redis get %q: %w", ticketKey(requestID), err)
	}

	var ticket model.FormRequest
	if err := json.Unmarshal(raw, &ticket); err != nil {
		return model.FormRequest{}, fmt.Errorf("unmarshal ticket %q: %w", requestID, err)
	}
	return ticket, nil
}

// HealthCheck pings the server.
func (s *RedisStore) HealthCheck(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// ticketKey builds the standard ticket key.
func ticketKey(requestID string) string {
	return fmt.Sprintf("ticket:%s", requestID)
}
