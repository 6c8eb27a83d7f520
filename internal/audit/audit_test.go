package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/formflow/formflow/model"
)

func newBufferLogger(buf *bytes.Buffer) *zap.Logger {
	enc := zapcore.NewJSONEncoder(zapcore.EncoderConfig{
		MessageKey:  "msg",
		LevelKey:    "level",
		EncodeLevel: zapcore.LowercaseLevelEncoder,
		EncodeTime:  zapcore.ISO8601TimeEncoder,
	})
	return zap.New(zapcore.NewCore(enc, zapcore.AddSync(buf), zapcore.DebugLevel))
}

func TestLogTracker_writesStructuredEvent(t *testing.T) {
	var buf bytes.Buffer
	tracker := NewLogTracker(newBufferLogger(&buf))

	tracker.Track(context.Background(), model.AccessEvent{
		ProcessInstanceID: "inst-1",
		SecretID:          "s1",
		FieldName:         "account",
		Reason:            "instance view",
		Principal:         &model.Entity{ID: "user-1", Type: model.EntityUser},
		At:                time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	})

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("parse log entry: %v", err)
	}

	checks := map[string]string{
		"process_instance_id": "inst-1",
		"secret_id":           "s1",
		"field":               "account",
		"reason":              "instance view",
		"principal_id":        "user-1",
		"principal_type":      "user",
	}
	for key, want := range checks {
		if got, _ := entry[key].(string); got != want {
			t.Errorf("entry[%q] = %q, want %q", key, got, want)
		}
	}
}

func TestLogTracker_anonymousPrincipal(t *testing.T) {
	var buf bytes.Buffer
	tracker := NewLogTracker(newBufferLogger(&buf))

	tracker.Track(context.Background(), model.AccessEvent{
		ProcessInstanceID: "inst-1",
		FieldName:         "f",
	})

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("parse log entry: %v", err)
	}
	if got, _ := entry["principal_id"].(string); got != "" {
		t.Errorf("principal_id = %q, want empty for missing principal", got)
	}
}

func TestNewLogTracker_nilLogger(t *testing.T) {
	tracker := NewLogTracker(nil)
	// Must not panic.
	tracker.Track(context.Background(), model.AccessEvent{FieldName: "f"})
}
