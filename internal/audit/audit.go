// Package audit records restricted-value access events. Tracking is
// fire-and-forget: a sink logs its own failures and never blocks or fails
// the rendering path that triggered it.
package audit

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/formflow/formflow/model"
)

// LogTracker writes access events to the structured log. It is the default
// sink and the fallback wrapped around every other sink's failure path.
type LogTracker struct {
	logger *zap.Logger
}

// NewLogTracker creates a log-backed access tracker.
func NewLogTracker(logger *zap.Logger) *LogTracker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogTracker{logger: logger}
}

// Track logs the access event at info level.
func (t *LogTracker) Track(ctx context.Context, event model.AccessEvent) {
	t.logger.Info("restricted value accessed", eventFields(event)...)
}

func eventFields(event model.AccessEvent) []zap.Field {
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
	return []zap.Field{
		zap.String("process_instance_id", event.ProcessInstanceID),
		zap.String("secret_id", event.SecretID),
		zap.String("field", event.FieldName),
		zap.String("reason", event.Reason),
		zap.String("principal_id", principalID),
		zap.String("principal_type", principalType),
		zap.Time("at", at),
	}
}
