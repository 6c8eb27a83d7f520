package transport

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/formflow/formflow/internal/config"
	"github.com/formflow/formflow/internal/filter"
	"github.com/formflow/formflow/internal/observability"
	"github.com/formflow/formflow/internal/ticket"
	"github.com/formflow/formflow/model"
)

// Dependencies holds all injected dependencies for the HTTP transport layer.
type Dependencies struct {
	Config       *config.Config
	Logger       *zap.Logger
	Metrics      *observability.Metrics
	Tickets      *ticket.Manager
	Engine       model.ProcessEngine
	Instances    model.InstanceRepository
	Encryption   model.EncryptionService
	Builder      *filter.Builder
	Authenticate func(http.Handler) http.Handler
	Readiness    observability.ReadinessChecks
}

// NewRouter creates a chi.Router with the full middleware pipeline and all
// route registrations. Health, readiness, and metrics endpoints bypass the
// authentication middleware.
func NewRouter(deps Dependencies) chi.Router {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	r := chi.NewRouter()

	r.Use(Recovery(logger))
	r.Use(CORS(deps.Config.Server.CORS))
	r.Use(CorrelationID)
	r.Use(SecurityHeaders)
	if deps.Config.Observability.Tracing.Enabled {
		r.Use(observability.TracingMiddleware)
	}
	if deps.Metrics != nil {
		r.Use(deps.Metrics.MetricsMiddleware)
	}

	// Public routes.
	r.Get("/forms/health", observability.HandleHealth())
	r.Get("/forms/ready", observability.HandleReady(deps.Readiness))
	if deps.Config.Observability.Metrics.Enabled {
		r.Method(http.MethodGet, deps.Config.Observability.Metrics.Path, observability.Handler())
	}

	h := NewHandler(deps.Config, logger, deps.Tickets, deps.Engine, deps.Instances, deps.Encryption, deps.Builder)

	auth := deps.Authenticate
	if auth == nil {
		auth = func(next http.Handler) http.Handler { return next }
	}

	r.Group(func(r chi.Router) {
		r.Use(auth)
		r.Use(BuildPrincipal(deps.Config.Identity.ClaimPaths))
		r.Use(HandlerTimeout(deps.Config.Server.HandlerTimeout))
		r.Use(RequestLogging(logger))

		r.Post("/forms/{processKey}", h.StartForm)
		r.Get("/forms/ticket/{requestId}", h.ResolveTicket)
		r.Post("/forms/ticket/{requestId}/next", h.AdvanceTicket)
		r.Get(h.linkBase()+"/attachment/{instanceId}/{fileName}", h.Attachment)
	})

	return r
}
