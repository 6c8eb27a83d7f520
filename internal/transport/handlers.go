package transport

import (
	"encoding/json"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/formflow/formflow/internal/config"
	"github.com/formflow/formflow/internal/filter"
	"github.com/formflow/formflow/internal/ticket"
	"github.com/formflow/formflow/model"
)

// Handler serves the form surface: starting a flow, resolving a ticket to
// its screen, and advancing to the next screen.
type Handler struct {
	cfg        *config.Config
	logger     *zap.Logger
	tickets    *ticket.Manager
	engine     model.ProcessEngine
	instances  model.InstanceRepository
	encryption model.EncryptionService
	builder    *filter.Builder
}

// NewHandler wires the request handlers.
func NewHandler(cfg *config.Config, logger *zap.Logger, tickets *ticket.Manager, engine model.ProcessEngine, instances model.InstanceRepository, encryption model.EncryptionService, builder *filter.Builder) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		cfg:        cfg,
		logger:     logger,
		tickets:    tickets,
		engine:     engine,
		instances:  instances,
		encryption: encryption,
		builder:    builder,
	}
}

// linkBase is the prefix attachment retrieval links resolve under.
func (h *Handler) linkBase() string {
	return "/forms/" + h.cfg.Attachments.LinkVersion
}

type screenPayload struct {
	Title             string          `json:"title"`
	Ordinal           int             `json:"ordinal"`
	AttachmentAllowed bool            `json:"attachment_allowed,omitempty"`
	Sections          []model.Section `json:"sections"`
}

type ticketPayload struct {
	RequestID            string                   `json:"request_id"`
	ProcessDefinitionKey string                   `json:"process_definition_key"`
	ProcessInstanceID    string                   `json:"process_instance_id,omitempty"`
	InteractionLabel     string                   `json:"interaction_label"`
	SubmissionType       model.SubmissionType     `json:"submission_type"`
	Screen               screenPayload            `json:"screen"`
	Data                 map[string][]model.Value `json:"data"`
}

type advanceRequest struct {
	Action model.ActionType    `json:"action"`
	Data   map[string][]string `json:"data"`
}

type completionPayload struct {
	Complete          bool                     `json:"complete"`
	ProcessInstanceID string                   `json:"process_instance_id,omitempty"`
	Data              map[string][]model.Value `json:"data"`
}

// StartForm starts a process instance and mints the ticket for its first
// screen.
func (h *Handler) StartForm(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	processKey := chi.URLParam(r, "processKey")
	fp := ticket.FingerprintFromRequest(r)

	inst, err := h.engine.StartInstance(ctx, processKey, nil)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	// The repository and the engine are separate collaborators in remote
	// mode; the instance must land in both.
	if err := h.instances.SaveInstance(ctx, inst); err != nil {
		WriteError(w, r, err)
		return
	}

	tkt, err := h.tickets.Advance(ctx, fp, processKey, inst.ID, "", nil, inst.Snapshot(), model.ActionCreate)
	if err != nil {
		WriteError(w, r, err)
		return
	}

	h.renderTicket(w, r, *tkt, inst, nil)
}

// ResolveTicket verifies the caller against the ticket's fingerprint and
// renders the screen the ticket points at through the filter pipeline.
func (h *Handler) ResolveTicket(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	fp := ticket.FingerprintFromRequest(r)

	tkt, err := h.tickets.Resolve(ctx, fp, chi.URLParam(r, "requestId"))
	if err != nil {
		WriteError(w, r, err)
		return
	}

	inst, task, err := h.loadContext(r, tkt)
	if err != nil {
		WriteError(w, r, err)
		return
	}

	h.renderTicket(w, r, tkt, inst, task)
}

// AdvanceTicket accepts a screen submission, persists it, and mints the
// ticket for the next screen. When no screen follows, the task is completed
// and the submitted data is echoed back.
func (h *Handler) AdvanceTicket(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	fp := ticket.FingerprintFromRequest(r)

	var req advanceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, r, model.NewBadRequestError("Request body is not valid JSON"))
		return
	}
	action := req.Action
	if action == "" {
		action = model.ActionComplete
	}

	previous, err := h.tickets.Resolve(ctx, fp, chi.URLParam(r, "requestId"))
	if err != nil {
		WriteError(w, r, err)
		return
	}

	_, screen, err := h.tickets.Position(previous)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	fields := screen.Fields()

	inst, task, err := h.loadContext(r, previous)
	if err != nil {
		WriteError(w, r, err)
		return
	}

	submitted, plain, err := h.acceptSubmission(r, fields, req.Data)
	if err != nil {
		WriteError(w, r, err)
		return
	}

	if inst == nil {
		inst, err = h.engine.StartInstance(ctx, previous.ProcessDefinitionKey, submitted)
		if err != nil {
			WriteError(w, r, err)
			return
		}
		if err := h.instances.SaveInstance(ctx, inst); err != nil {
			WriteError(w, r, err)
			return
		}
	} else if len(submitted) > 0 {
		if inst.Data == nil {
			inst.Data = make(map[string][]model.Value, len(submitted))
		}
		for name, values := range submitted {
			inst.Data[name] = values
		}
		if err := h.instances.SaveInstance(ctx, inst); err != nil {
			WriteError(w, r, err)
			return
		}
	}

	next, err := h.tickets.Advance(ctx, fp, previous.ProcessDefinitionKey, inst.ID, previous.TaskID, &previous, inst.Snapshot(), action)
	if err != nil {
		WriteError(w, r, err)
		return
	}

	if next == nil {
		if previous.TaskID != "" {
			if err := h.engine.CompleteTask(ctx, previous.TaskID, action, submitted); err != nil {
				WriteError(w, r, err)
				return
			}
		}
		echo := h.builder.RenderValidationEcho(ctx, filter.Request{
			Fields:    fields,
			Instance:  echoInstance(inst, plain),
			Principal: model.PrincipalFrom(ctx),
			Task:      task,
			LinkBase:  h.linkBase(),
		})
		WriteJSON(w, http.StatusOK, completionPayload{
			Complete:          true,
			ProcessInstanceID: inst.ID,
			Data:              echo,
		})
		return
	}

	h.renderTicket(w, r, *next, inst, task)
}

// Attachment streams a previously uploaded file value back to the caller.
func (h *Handler) Attachment(w http.ResponseWriter, r *http.Request) {
	instanceID := chi.URLParam(r, "instanceId")
	fileName := chi.URLParam(r, "fileName")

	inst, err := h.instances.FindInstance(r.Context(), instanceID)
	if err != nil {
		WriteError(w, r, err)
		return
	}

	file := findFile(inst, fileName)
	if file == nil {
		WriteError(w, r, model.NewNotFoundError("No such attachment"))
		return
	}

	location := filepath.Clean(file.Location)
	if location == "" || strings.Contains(location, "..") {
		WriteError(w, r, model.NewNotFoundError("No such attachment"))
		return
	}
	if file.ContentType != "" {
		w.Header().Set("Content-Type", file.ContentType)
	}
	http.ServeFile(w, r, filepath.Join(h.cfg.Attachments.Directory, location))
}

// loadContext resolves the instance and task a ticket is bound to.
func (h *Handler) loadContext(r *http.Request, tkt model.FormRequest) (*model.ProcessInstance, *model.Task, error) {
	var (
		inst *model.ProcessInstance
		task *model.Task
		err  error
	)
	if tkt.ProcessInstanceID != "" {
		inst, err = h.instances.FindInstance(r.Context(), tkt.ProcessInstanceID)
		if err != nil {
			return nil, nil, err
		}
	}
	if tkt.TaskID != "" {
		task, err = h.engine.FindTask(r.Context(), tkt.TaskID)
		if err != nil {
			return nil, nil, err
		}
	}
	return inst, task, nil
}

// acceptSubmission converts submitted strings into stored values, encrypting
// restricted fields. Fields not declared on the submitted screen are dropped.
// The second map keeps every accepted value in plaintext; the validation echo
// is built from it so a caller gets back exactly what they sent, restricted
// fields included.
func (h *Handler) acceptSubmission(r *http.Request, fields []model.Field, data map[string][]string) (map[string][]model.Value, map[string][]model.Value, error) {
	if len(data) == 0 {
		return nil, nil, nil
	}
	byName := make(map[string]model.Field, len(fields))
	for _, f := range fields {
		byName[f.Name] = f
	}

	accepted := make(map[string][]model.Value)
	plain := make(map[string][]model.Value)
	for name, raw := range data {
		field, ok := byName[name]
		if !ok {
			h.logger.Debug("dropping submission for undeclared field", zap.String("field", name))
			continue
		}
		if field.MaxValueCount > 0 && len(raw) > field.MaxValueCount {
			return nil, nil, model.NewValidationError([]model.FieldError{{
				Field:   name,
				Code:    "TOO_MANY_VALUES",
				Message: "More values submitted than the field allows",
			}})
		}

		values := make([]model.Value, 0, len(raw))
		for _, text := range raw {
			if field.Restricted {
				secret, err := h.encryption.Encrypt(r.Context(), text)
				if err != nil {
					return nil, nil, model.NewInternalError()
				}
				values = append(values, model.SecretValue(secret))
				continue
			}
			values = append(values, model.PlainValue(text))
		}
		accepted[name] = values
		plain[name] = plainValues(raw)
	}
	return accepted, plain, nil
}

func plainValues(raw []string) []model.Value {
	values := make([]model.Value, 0, len(raw))
	for _, text := range raw {
		values = append(values, model.PlainValue(text))
	}
	return values
}

func (h *Handler) renderTicket(w http.ResponseWriter, r *http.Request, tkt model.FormRequest, inst *model.ProcessInstance, task *model.Task) {
	ctx := r.Context()

	_, screen, err := h.tickets.Position(tkt)
	if err != nil {
		WriteError(w, r, err)
		return
	}

	data := h.builder.RenderInstanceView(ctx, filter.Request{
		Fields:    screen.Fields(),
		Instance:  inst,
		Principal: model.PrincipalFrom(ctx),
		Task:      task,
		Reason:    "screen render",
		LinkBase:  h.linkBase(),
	})

	WriteJSON(w, http.StatusOK, ticketPayload{
		RequestID:            tkt.RequestID,
		ProcessDefinitionKey: tkt.ProcessDefinitionKey,
		ProcessInstanceID:    tkt.ProcessInstanceID,
		InteractionLabel:     tkt.InteractionLabel,
		SubmissionType:       tkt.SubmissionType,
		Screen: screenPayload{
			Title:             screen.Title,
			Ordinal:           screen.Ordinal,
			AttachmentAllowed: screen.AttachmentAllowed,
			Sections:          screen.Sections,
		},
		Data: data,
	})
}

// echoInstance overlays the plaintext submission on the stored instance data.
// Stored restricted values are Secrets by the time the echo is rendered; the
// caller still holds the plaintext they sent, so the echo returns it.
func echoInstance(inst *model.ProcessInstance, plain map[string][]model.Value) *model.ProcessInstance {
	if inst == nil || len(plain) == 0 {
		return inst
	}
	merged := make(map[string][]model.Value, len(inst.Data)+len(plain))
	for name, values := range inst.Data {
		merged[name] = values
	}
	for name, values := range plain {
		merged[name] = values
	}
	out := *inst
	out.Data = merged
	return &out
}

func findFile(inst *model.ProcessInstance, fileName string) *model.FileRef {
	if inst == nil {
		return nil
	}
	for _, values := range inst.Data {
		for _, v := range values {
			if v.IsFile() && v.File.Name == fileName {
				return v.File
			}
		}
	}
	return nil
}
