package ticket

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/formflow/formflow/model"
)

// PgStore is a PostgreSQL-backed Store using pgx/v5. Expiry is enforced at
// read time; a background sweep (or pg_cron) can garbage-collect rows.
type PgStore struct {
	pool *pgxpool.Pool
}

// NewPgStore creates a PostgreSQL ticket store.
func NewPgStore(pool *pgxpool.Pool) *PgStore {
	return &PgStore{pool: pool}
}

// Save inserts a ticket row.
func (s *PgStore) Save(ctx context.Context, ticket model.FormRequest, ttl time.Duration) error {
	fpJSON, err := json.Marshal(ticket.Fingerprint)
	if err != nil {
		return fmt.Errorf("marshal fingerprint: %w", err)
	}

	createdAt := ticket.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO form_requests (
			request_id, process_definition_key, process_instance_id, task_id,
			interaction_label, screen_ordinal, submission_type,
			fingerprint, created_at, expires_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		ticket.RequestID, ticket.ProcessDefinitionKey, ticket.ProcessInstanceID, ticket.TaskID,
		ticket.InteractionLabel, ticket.ScreenOrdinal, string(ticket.SubmissionType),
		fpJSON, createdAt, createdAt.Add(expiryOrDefault(ttl)),
	)
	if err != nil {
		return fmt.Errorf("insert ticket: %w", err)
	}
	return nil
}

// FindOne returns the ticket for the request id, or TICKET_NOT_FOUND for an
// unknown or expired id.
func (s *PgStore) FindOne(ctx context.Context, requestID string) (model.FormRequest, error) {
	var (
		ticket         model.FormRequest
		submissionType string
		fpJSON         []byte
	)

	err := s.pool.QueryRow(ctx, `
		SELECT request_id, process_definition_key, process_instance_id, task_id,
		       interaction_label, screen_ordinal, submission_type,
		       fingerprint, created_at
		FROM form_requests
		WHERE request_id = $1 AND expires_at > now()`,
		requestID,
	).Scan(
		&ticket.RequestID, &ticket.ProcessDefinitionKey, &ticket.ProcessInstanceID, &ticket.TaskID,
		&ticket.InteractionLabel, &ticket.ScreenOrdinal, &submissionType,
		&fpJSON, &ticket.CreatedAt,
	)
	if err == pgx.ErrNoRows {
		return model.FormRequest{}, model.NewTicketNotFoundError()
	}
	if err != nil {
		return model.FormRequest{}, fmt.Errorf("query ticket: %w", err)
	}

	ticket.SubmissionType = model.SubmissionType(submissionType)
	if fpJSON != nil {
		if err := json.Unmarshal(fpJSON, &ticket.Fingerprint); err != nil {
			return model.FormRequest{}, fmt.Errorf("unmarshal fingerprint: %w", err)
		}
	}
	return ticket, nil
}

// DeleteExpired removes expired rows; intended for a periodic sweep.
func (s *PgStore) DeleteExpired(ctx context.Context) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM form_requests WHERE expires_at <= now()`)
	if err != nil {
		return 0, fmt.Errorf("delete expired tickets: %w", err)
	}
	return tag.RowsAffected(), nil
}

// HealthCheck pings the pool.
func (s *PgStore) HealthCheck(ctx context.Context) error {
	return s.pool.Ping(ctx)
}
