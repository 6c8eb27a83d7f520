package filter

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/formflow/formflow/internal/observability"
	"github.com/formflow/formflow/model"
)

// MaskRune is the character a masked secret is rendered with.
const MaskRune = '*'

// Decrypt replaces Secret values with their plaintext. It is only assembled
// into a pipeline when the caller is the owning task's active assignee; every
// successful decryption is recorded with the AccessTracker.
type Decrypt struct {
	encryption model.EncryptionService
	tracker    model.AccessTracker
	instance   *model.ProcessInstance
	principal  *model.Entity
	reason     string
	logger     *zap.Logger
	metrics    *observability.Metrics
}

// Filter decrypts each Secret value in place of the ciphertext. An anonymous
// caller drops the value with a warning; per-value decryption failures drop
// the value and the pipeline continues, so one corrupt secret cannot take
// down the whole render.
func (d *Decrypt) Filter(ctx context.Context, fieldName string, values []model.Value) []model.Value {
	out := make([]model.Value, 0, len(values))
	for _, v := range values {
		if !v.IsSecret() {
			out = append(out, v)
			continue
		}

		if d.principal.IsAnonymous() {
			// Unreachable when the builder is correct; its occurrence means
			// a caller-authorization bug upstream.
			d.logger.Warn("restricted value requested by anonymous caller",
				zap.String("field", fieldName))
			if d.metrics != nil {
				d.metrics.RecordDroppedValue("anonymous")
			}
			continue
		}

		plaintext, err := d.encryption.Decrypt(ctx, v.Secret)
		if err != nil {
			ee := model.NewDecryptionFailedError(fieldName)
			d.logger.Error(ee.Message,
				zap.String("field", fieldName),
				zap.String("secret_id", v.Secret.ID),
				zap.String("code", ee.Code),
				zap.Error(err))
			if d.metrics != nil {
				d.metrics.RecordDecryption("error")
				d.metrics.RecordDroppedValue("decryption_error")
			}
			continue
		}
		if d.metrics != nil {
			d.metrics.RecordDecryption("ok")
		}

		d.tracker.Track(ctx, model.AccessEvent{
			ProcessInstanceID: instanceID(d.instance),
			SecretID:          v.Secret.ID,
			FieldName:         fieldName,
			Reason:            d.reason,
			Principal:         d.principal,
		})

		out = append(out, model.PlainValue(plaintext))
	}
	return out
}

// Mask replaces each Secret value with a same-length run of MaskRune. The
// plaintext is decrypted internally to learn its length and never leaves the
// filter. A failed decrypt drops the value, never leaving raw ciphertext.
type Mask struct {
	encryption model.EncryptionService
	logger     *zap.Logger
	metrics    *observability.Metrics
}

// Filter masks each Secret value.
func (m *Mask) Filter(ctx context.Context, fieldName string, values []model.Value) []model.Value {
	out := make([]model.Value, 0, len(values))
	for _, v := range values {
		if !v.IsSecret() {
			out = append(out, v)
			continue
		}

		plaintext, err := m.encryption.Decrypt(ctx, v.Secret)
		if err != nil {
			ee := model.NewDecryptionFailedError(fieldName)
			m.logger.Error(ee.Message,
				zap.String("field", fieldName),
				zap.String("secret_id", v.Secret.ID),
				zap.String("code", ee.Code),
				zap.Error(err))
			if m.metrics != nil {
				m.metrics.RecordDecryption("error")
				m.metrics.RecordDroppedValue("decryption_error")
			}
			continue
		}
		if m.metrics != nil {
			m.metrics.RecordDecryption("ok")
			m.metrics.RecordMaskedValue()
		}

		masked := strings.Repeat(string(MaskRune), len([]rune(plaintext)))
		out = append(out, model.PlainValue(masked))
	}
	return out
}

func instanceID(instance *model.ProcessInstance) string {
	if instance == nil {
		return ""
	}
	return instance.ID
}
