package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/formflow/formflow/model"
)

// Remote is an HTTP client for an external process engine. The wire
// contract is a minimal JSON surface: start, find task, complete task,
// cancel instance.
type Remote struct {
	baseURL string
	client  *http.Client
}

// NewRemote creates a remote engine client against the given base URL.
func NewRemote(baseURL string, timeout time.Duration) *Remote {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Remote{
		baseURL: strings.TrimRight(baseURL, "/"),
		client: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxConnsPerHost:     50,
				IdleConnTimeout:     90 * time.Second,
				TLSHandshakeTimeout: 10 * time.Second,
			},
		},
	}
}

type startInstanceRequest struct {
	ProcessDefinitionKey string                 `json:"process_definition_key"`
	Data                 map[string][]wireValue `json:"data,omitempty"`
}

type completeTaskRequest struct {
	Action model.ActionType       `json:"action"`
	Data   map[string][]wireValue `json:"data,omitempty"`
}

type cancelInstanceRequest struct {
	Reason string `json:"reason,omitempty"`
}

// wireValue is the engine-channel representation of a Value. model.Value
// deliberately drops secret ciphertext and file locations when serialized
// toward callers; the engine is a trusted peer and needs both intact.
type wireValue struct {
	Text   string      `json:"text,omitempty"`
	Secret *wireSecret `json:"secret,omitempty"`
	File   *wireFile   `json:"file,omitempty"`
}

type wireSecret struct {
	ID         string `json:"id"`
	Ciphertext []byte `json:"ciphertext,omitempty"`
}

type wireFile struct {
	Name        string `json:"name"`
	ContentType string `json:"content_type,omitempty"`
	Location    string `json:"location,omitempty"`
}

type wireInstance struct {
	ID                   string                 `json:"id"`
	ProcessDefinitionKey string                 `json:"process_definition_key"`
	Label                string                 `json:"label,omitempty"`
	Data                 map[string][]wireValue `json:"data,omitempty"`
}

func toWireData(data map[string][]model.Value) map[string][]wireValue {
	if data == nil {
		return nil
	}
	out := make(map[string][]wireValue, len(data))
	for name, values := range data {
		wired := make([]wireValue, 0, len(values))
		for _, v := range values {
			wv := wireValue{Text: v.Text}
			if v.Secret != nil {
				wv.Secret = &wireSecret{ID: v.Secret.ID, Ciphertext: v.Secret.Ciphertext}
			}
			if v.File != nil {
				wv.File = &wireFile{Name: v.File.Name, ContentType: v.File.ContentType, Location: v.File.Location}
			}
			wired = append(wired, wv)
		}
		out[name] = wired
	}
	return out
}

func fromWireData(data map[string][]wireValue) map[string][]model.Value {
	if data == nil {
		return nil
	}
	out := make(map[string][]model.Value, len(data))
	for name, values := range data {
		restored := make([]model.Value, 0, len(values))
		for _, wv := range values {
			v := model.Value{Text: wv.Text}
			if wv.Secret != nil {
				v.Secret = &model.Secret{ID: wv.Secret.ID, Ciphertext: wv.Secret.Ciphertext}
			}
			if wv.File != nil {
				v.File = &model.FileRef{Name: wv.File.Name, ContentType: wv.File.ContentType, Location: wv.File.Location}
			}
			restored = append(restored, v)
		}
		out[name] = restored
	}
	return out
}

type taskResponse struct {
	ID                string `json:"id"`
	TaskDefinitionKey string `json:"task_definition_key"`
	ProcessInstanceID string `json:"process_instance_id"`
	AssigneeID        string `json:"assignee_id"`
	Active            bool   `json:"active"`
}

// StartInstance starts a process instance on the remote engine.
func (r *Remote) StartInstance(ctx context.Context, processDefinitionKey string, data map[string][]model.Value) (*model.ProcessInstance, error) {
	var resp wireInstance
	err := r.do(ctx, http.MethodPost, "/instances",
		startInstanceRequest{ProcessDefinitionKey: processDefinitionKey, Data: toWireData(data)}, &resp)
	if err != nil {
		return nil, err
	}
	return &model.ProcessInstance{
		ID:                   resp.ID,
		ProcessDefinitionKey: resp.ProcessDefinitionKey,
		Label:                resp.Label,
		Data:                 fromWireData(resp.Data),
	}, nil
}

// FindTask looks up a task on the remote engine.
func (r *Remote) FindTask(ctx context.Context, taskID string) (*model.Task, error) {
	var resp taskResponse
	if err := r.do(ctx, http.MethodGet, "/tasks/"+url.PathEscape(taskID), nil, &resp); err != nil {
		return nil, err
	}
	return &model.Task{
		ID:                resp.ID,
		TaskDefinitionKey: resp.TaskDefinitionKey,
		ProcessInstanceID: resp.ProcessInstanceID,
		AssigneeID:        resp.AssigneeID,
		Active:            resp.Active,
	}, nil
}

// CompleteTask completes a task on the remote engine.
func (r *Remote) CompleteTask(ctx context.Context, taskID string, action model.ActionType, data map[string][]model.Value) error {
	return r.do(ctx, http.MethodPost, "/tasks/"+url.PathEscape(taskID)+"/complete",
		completeTaskRequest{Action: action, Data: toWireData(data)}, nil)
}

// CancelInstance cancels a process instance on the remote engine.
func (r *Remote) CancelInstance(ctx context.Context, processInstanceID, reason string) error {
	return r.do(ctx, http.MethodPost, "/instances/"+url.PathEscape(processInstanceID)+"/cancel",
		cancelInstanceRequest{Reason: reason}, nil)
}

// HealthCheck probes the remote engine's health endpoint.
func (r *Remote) HealthCheck(ctx context.Context) error {
	return r.do(ctx, http.MethodGet, "/health", nil, nil)
}

func (r *Remote) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("engine: encoding request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, r.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("engine: building request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return fmt.Errorf("engine: calling %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return model.NewNotFoundError(fmt.Sprintf("engine: %s not found", path))
	case resp.StatusCode == http.StatusConflict:
		return model.NewConflictError(fmt.Sprintf("engine: conflicting state at %s", path))
	case resp.StatusCode >= 400:
		// Capped read keeps a misbehaving engine from flooding logs.
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("engine: %s %s returned %d: %s", method, path, resp.StatusCode, strings.TrimSpace(string(detail)))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("engine: decoding response: %w", err)
	}
	return nil
}
