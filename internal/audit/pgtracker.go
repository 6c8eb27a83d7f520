package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/formflow/formflow/model"
)

// PgTracker persists access events to PostgreSQL using pgx/v5. Insert
// failures are logged and swallowed; audit writes never fail a render.
type PgTracker struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// NewPgTracker creates a PostgreSQL-backed access tracker.
func NewPgTracker(pool *pgxpool.Pool, logger *zap.Logger) *PgTracker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PgTracker{pool: pool, logger: logger}
}

// Track inserts the access event.
func (t *PgTracker) Track(ctx context.Context, event model.AccessEvent) {
	principalID := ""
	principalType := ""
	if event.Principal != nil {
		principalID = event.Principal.ID
		principalType = string(event.Principal.Type)
	}
	at := event.At
	if at.IsZero() {
		at = time.Now().UTC()
	}

	_, err := t.pool.Exec(ctx, `
		INSERT INTO access_events (
			id, process_instance_id, secret_id, field_name,
			reason, principal_id, principal_type, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		uuid.NewString(), event.ProcessInstanceID, event.SecretID, event.FieldName,
		event.Reason, principalID, principalType, at,
	)
	if err != nil {
		t.logger.Error("access event insert failed",
			zap.String("process_instance_id", event.ProcessInstanceID),
			zap.String("field", event.FieldName),
			zap.Error(err))
	}
}

// HealthCheck pings the pool.
func (t *PgTracker) HealthCheck(ctx context.Context) error {
	return t.pool.Ping(ctx)
}
