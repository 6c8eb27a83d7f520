package filter

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/formflow/formflow/internal/observability"
	"github.com/formflow/formflow/model"
)

// View names used for metrics labels.
const (
	viewInstance   = "instance_view"
	viewValidation = "validation_echo"
	viewExport     = "export"
)

// Builder assembles filter pipelines appropriate to the caller's
// authorization state and the call site requesting the data.
type Builder struct {
	encryption model.EncryptionService
	tracker    model.AccessTracker
	logger     *zap.Logger
	metrics    *observability.Metrics
	now        func() time.Time
}

// NewBuilder creates a pipeline builder. metrics may be nil; now is the clock
// for default-value substitution (nil means time.Now).
func NewBuilder(encryption model.EncryptionService, tracker model.AccessTracker, logger *zap.Logger, metrics *observability.Metrics, now func() time.Time) *Builder {
	if logger == nil {
		logger = zap.NewNop()
	}
	if now == nil {
		now = time.Now
	}
	return &Builder{
		encryption: encryption,
		tracker:    tracker,
		logger:     logger,
		metrics:    metrics,
		now:        now,
	}
}

// Request carries the call-time inputs a pipeline is assembled from.
type Request struct {
	Fields    []model.Field
	Instance  *model.ProcessInstance
	Principal *model.Entity
	Task      *model.Task
	Reason    string
	LinkBase  string
}

// InstanceView assembles the authorized-instance-view pipeline: the field set
// is limited (restricted fields included), Secrets are decrypted for the
// task's active assignee and masked for everyone else, and results are
// decorated.
func (b *Builder) InstanceView(req Request) Pipeline {
	var cryptoStep DataFilter
	if req.Principal.IsActiveAssignee(req.Task) {
		cryptoStep = &Decrypt{
			encryption: b.encryption,
			tracker:    b.tracker,
			instance:   req.Instance,
			principal:  req.Principal,
			reason:     req.Reason,
			logger:     b.logger,
			metrics:    b.metrics,
		}
	} else {
		cryptoStep = &Mask{
			encryption: b.encryption,
			logger:     b.logger,
			metrics:    b.metrics,
		}
	}

	return Pipeline{
		NewLimitFields(req.Fields, true),
		cryptoStep,
		b.decorate(req),
	}
}

// ValidationEcho assembles the pipeline returning a caller their own
// just-submitted data: every field they sent comes back, including restricted
// ones, and no decrypt or mask step runs because the caller already holds the
// plaintext.
func (b *Builder) ValidationEcho(req Request) Pipeline {
	return Pipeline{
		NoOp{},
		b.decorate(req),
	}
}

// Export assembles the trusted system-to-system pipeline: the complete map is
// released with every Secret decrypted.
func (b *Builder) Export(req Request) Pipeline {
	return Pipeline{
		NoOp{},
		&Decrypt{
			encryption: b.encryption,
			tracker:    b.tracker,
			instance:   req.Instance,
			principal:  req.Principal,
			reason:     req.Reason,
			logger:     b.logger,
			metrics:    b.metrics,
		},
		b.decorate(req),
	}
}

// RenderInstanceView applies the authorized-instance-view pipeline over the
// instance data, seeding every screen field so empty fields still receive
// their default values.
func (b *Builder) RenderInstanceView(ctx context.Context, req Request) map[string][]model.Value {
	return b.run(ctx, viewInstance, b.InstanceView(req), req)
}

// RenderValidationEcho applies the validation-echo pipeline.
func (b *Builder) RenderValidationEcho(ctx context.Context, req Request) map[string][]model.Value {
	return b.run(ctx, viewValidation, b.ValidationEcho(req), req)
}

// RenderExport applies the export pipeline.
func (b *Builder) RenderExport(ctx context.Context, req Request) map[string][]model.Value {
	return b.run(ctx, viewExport, b.Export(req), req)
}

func (b *Builder) run(ctx context.Context, view string, p Pipeline, req Request) map[string][]model.Value {
	start := time.Now()
	out := p.Apply(ctx, seedFields(req.Fields, instanceData(req.Instance)))
	if b.metrics != nil {
		b.metrics.RecordFilterRun(view, time.Since(start))
	}
	return out
}

func (b *Builder) decorate(req Request) *DecorateValues {
	return NewDecorateValues(req.Fields, req.Instance, req.Principal, req.Task, req.LinkBase, b.now)
}

// seedFields copies the data map, adding an empty entry for every supplied
// field that has no stored values yet. Default substitution needs the key to
// exist for the pipeline to visit it.
func seedFields(fields []model.Field, data map[string][]model.Value) map[string][]model.Value {
	seeded := make(map[string][]model.Value, len(data)+len(fields))
	for name, values := range data {
		seeded[name] = values
	}
	for _, f := range fields {
		if _, ok := seeded[f.Name]; !ok {
			seeded[f.Name] = []model.Value{}
		}
	}
	return seeded
}

func instanceData(instance *model.ProcessInstance) map[string][]model.Value {
	if instance == nil {
		return nil
	}
	return instance.Data
}
