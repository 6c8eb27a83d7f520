package ticket

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/formflow/formflow/internal/navigation"
	"github.com/formflow/formflow/internal/observability"
	"github.com/formflow/formflow/model"
)

// Manager mints, advances, and resolves form request tickets.
type Manager struct {
	store       Store
	definitions model.ProcessDefinitionSource
	ttl         time.Duration
	logger      *zap.Logger
	metrics     *observability.Metrics
	newID       func() string
	now         func() time.Time
}

// NewManager creates a ticket manager. metrics may be nil.
func NewManager(store Store, definitions model.ProcessDefinitionSource, ttl time.Duration, logger *zap.Logger, metrics *observability.Metrics) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		store:       store,
		definitions: definitions,
		ttl:         ttl,
		logger:      logger,
		metrics:     metrics,
		newID:       uuid.NewString,
		now:         time.Now,
	}
}

// Create mints a first-screen ticket for a fresh interaction of the given
// process definition.
func (m *Manager) Create(ctx context.Context, fp model.Fingerprint, processDefinitionKey string) (model.FormRequest, error) {
	process, err := m.process(processDefinitionKey)
	if err != nil {
		return model.FormRequest{}, err
	}

	interaction, screen, err := navigation.CurrentScreen(process, nil)
	if err != nil {
		m.recordMisconfigured(processDefinitionKey)
		return model.FormRequest{}, err
	}

	ticket := m.mint(fp, processDefinitionKey, "", "", interaction, screen, nil, model.ActionCreate)
	if err := m.store.Save(ctx, ticket, m.ttl); err != nil {
		return model.FormRequest{}, err
	}

	if m.metrics != nil {
		m.metrics.RecordTicketIssued(processDefinitionKey)
		m.metrics.RecordScreenResolution(processDefinitionKey, "current")
	}
	return ticket, nil
}

// Advance mints the ticket for the next screen of an in-flight interaction.
// With a previous ticket, the next screen is computed from the previous
// position against the snapshot and action; a nil result with a nil error
// means no screen follows and the flow is complete. Without a previous
// ticket, the first interaction and screen of the definition are used.
func (m *Manager) Advance(ctx context.Context, fp model.Fingerprint, processDefinitionKey, processInstanceID, taskID string, previous *model.FormRequest, snapshot map[string][]string, action model.ActionType) (*model.FormRequest, error) {
	process, err := m.process(processDefinitionKey)
	if err != nil {
		return nil, err
	}

	var (
		interaction *model.Interaction
		screen      *model.Screen
	)
	if previous != nil {
		interaction, screen, err = m.position(process, previous)
		if err != nil {
			return nil, err
		}
		screen = navigation.NextScreen(interaction, screen, snapshot, action)
		if screen == nil {
			return nil, nil
		}
	} else {
		interaction, screen, err = navigation.CurrentScreen(process, nil)
		if err != nil {
			m.recordMisconfigured(processDefinitionKey)
			return nil, err
		}
	}

	ticket := m.mint(fp, processDefinitionKey, processInstanceID, taskID, interaction, screen, snapshot, action)
	if err := m.store.Save(ctx, ticket, m.ttl); err != nil {
		return nil, err
	}

	if m.metrics != nil {
		m.metrics.RecordTicketAdvanced(processDefinitionKey, string(ticket.SubmissionType))
		m.metrics.RecordScreenResolution(processDefinitionKey, "next")
	}
	return &ticket, nil
}

// Resolve looks up a previously issued ticket and verifies the resolving
// caller's fingerprint against the one recorded at creation. A remote-user
// or certificate conflict is fatal; address, host, and port differences are
// logged as anomalies only, since NAT and proxy hops legitimately change
// them. An unknown request id maps to the same outcome as a foreign ticket.
func (m *Manager) Resolve(ctx context.Context, fp model.Fingerprint, requestID string) (model.FormRequest, error) {
	start := m.now()

	ticket, err := m.store.FindOne(ctx, requestID)
	if err != nil {
		if model.ErrorCode(err) == model.ErrTicketNotFound && m.metrics != nil {
			m.metrics.RecordTicketNotFound()
		}
		return model.FormRequest{}, err
	}

	if err := m.verifyFingerprint(ctx, ticket, fp); err != nil {
		return model.FormRequest{}, err
	}

	if m.metrics != nil {
		m.metrics.RecordTicketRedeemed(ticket.ProcessDefinitionKey, m.now().Sub(start))
	}
	return ticket, nil
}

// Position resolves the interaction and screen a ticket points at. A ticket
// referencing topology that no longer exists, after a definition reload for
// example, is a MISCONFIGURED_PROCESS condition.
func (m *Manager) Position(ticket model.FormRequest) (*model.Interaction, *model.Screen, error) {
	process, err := m.process(ticket.ProcessDefinitionKey)
	if err != nil {
		return nil, nil, err
	}
	return m.position(process, &ticket)
}

func (m *Manager) verifyFingerprint(ctx context.Context, ticket model.FormRequest, fp model.Fingerprint) error {
	logger := observability.RequestLogger(ctx, m.logger)
	recorded := ticket.Fingerprint

	if recorded.RemoteUser != "" && fp.RemoteUser != "" && recorded.RemoteUser != fp.RemoteUser {
		logger.Error("ticket remote user mismatch",
			zap.String("request_id", ticket.RequestID),
			zap.String("recorded_user", recorded.RemoteUser),
			zap.String("resolving_user", fp.RemoteUser))
		if m.metrics != nil {
			m.metrics.RecordFingerprintMismatch("remote_user", true)
		}
		return model.NewCallerMismatchError()
	}

	if recorded.HasCertificate() {
		if recorded.CertIssuer != fp.CertIssuer || recorded.CertSubject != fp.CertSubject {
			logger.Error("ticket certificate mismatch",
				zap.String("request_id", ticket.RequestID),
				zap.String("recorded_issuer", recorded.CertIssuer),
				zap.String("recorded_subject", recorded.CertSubject),
				zap.String("resolving_issuer", fp.CertIssuer),
				zap.String("resolving_subject", fp.CertSubject))
			if m.metrics != nil {
				m.metrics.RecordFingerprintMismatch("certificate", true)
			}
			return model.NewCertificateMismatchError()
		}
	}

	m.noteAnomaly(logger, ticket.RequestID, "remote_addr", recorded.RemoteAddr, fp.RemoteAddr)
	m.noteAnomaly(logger, ticket.RequestID, "remote_host", recorded.RemoteHost, fp.RemoteHost)
	m.noteAnomaly(logger, ticket.RequestID, "remote_port", recorded.RemotePort, fp.RemotePort)

	return nil
}

// noteAnomaly logs a non-fatal fingerprint difference.
func (m *Manager) noteAnomaly(logger *zap.Logger, requestID, attribute, recorded, resolving string) {
	if recorded == "" || resolving == "" || recorded == resolving {
		return
	}
	logger.Warn("ticket fingerprint anomaly",
		zap.String("request_id", requestID),
		zap.String("attribute", attribute),
		zap.String("recorded", recorded),
		zap.String("resolving", resolving))
	if m.metrics != nil {
		m.metrics.RecordFingerprintMismatch(attribute, false)
	}
}

func (m *Manager) mint(fp model.Fingerprint, processDefinitionKey, processInstanceID, taskID string, interaction *model.Interaction, screen *model.Screen, snapshot map[string][]string, action model.ActionType) model.FormRequest {
	submission := model.SubmissionFinal
	if navigation.HasNextScreen(interaction, screen, snapshot, action) {
		submission = model.SubmissionInterim
	}
	return model.FormRequest{
		RequestID:            m.newID(),
		ProcessDefinitionKey: processDefinitionKey,
		ProcessInstanceID:    processInstanceID,
		TaskID:               taskID,
		InteractionLabel:     interaction.Label,
		ScreenOrdinal:        screen.Ordinal,
		SubmissionType:       submission,
		Fingerprint:          fp,
		CreatedAt:            m.now().UTC(),
	}
}

func (m *Manager) process(processDefinitionKey string) (*model.Process, error) {
	interactions, err := m.definitions.Interactions(processDefinitionKey)
	if err != nil {
		return nil, err
	}
	return &model.Process{
		DefinitionKey: processDefinitionKey,
		Interactions:  interactions,
	}, nil
}

func (m *Manager) position(process *model.Process, ticket *model.FormRequest) (*model.Interaction, *model.Screen, error) {
	for i := range process.Interactions {
		if process.Interactions[i].Label != ticket.InteractionLabel {
			continue
		}
		interaction := &process.Interactions[i]
		screen := interaction.ScreenByOrdinal(ticket.ScreenOrdinal)
		if screen == nil {
			m.recordMisconfigured(ticket.ProcessDefinitionKey)
			return nil, nil, model.NewMisconfiguredProcessError(
				"ticket references a screen that no longer exists")
		}
		return interaction, screen, nil
	}
	m.recordMisconfigured(ticket.ProcessDefinitionKey)
	return nil, nil, model.NewMisconfiguredProcessError(
		"ticket references an interaction that no longer exists")
}

func (m *Manager) recordMisconfigured(processDefinitionKey string) {
	if m.metrics != nil {
		m.metrics.RecordMisconfiguredProcess(processDefinitionKey)
	}
}
