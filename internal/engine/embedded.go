// Package engine provides the process engine adapters: an embedded
// in-memory engine so the server can run standalone, and a remote HTTP
// client for an external BPM engine. Task lifecycle semantics beyond
// start, find, complete, and cancel belong to the engine itself.
package engine

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/formflow/formflow/model"
)

// Embedded is an in-memory process engine and instance repository. One
// active task is opened per started instance; completing it closes it.
type Embedded struct {
	mu          sync.RWMutex
	definitions model.ProcessDefinitionSource
	instances   map[string]model.ProcessInstance
	tasks       map[string]model.Task
	newID       func() string
}

// NewEmbedded creates an embedded engine over the given definition source.
func NewEmbedded(definitions model.ProcessDefinitionSource) *Embedded {
	return &Embedded{
		definitions: definitions,
		instances:   make(map[string]model.ProcessInstance),
		tasks:       make(map[string]model.Task),
		newID:       uuid.NewString,
	}
}

// StartInstance creates a process instance with the given initial data and
// opens a task for the first interaction of the definition.
func (e *Embedded) StartInstance(ctx context.Context, processDefinitionKey string, data map[string][]model.Value) (*model.ProcessInstance, error) {
	interactions, err := e.definitions.Interactions(processDefinitionKey)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	inst := model.ProcessInstance{
		ID:                   e.newID(),
		ProcessDefinitionKey: processDefinitionKey,
		Data:                 copyData(data),
	}
	e.instances[inst.ID] = inst

	task := model.Task{
		ID:                e.newID(),
		ProcessInstanceID: inst.ID,
		Active:            true,
	}
	if len(interactions) > 0 && len(interactions[0].TaskDefinitionKeys) > 0 {
		task.TaskDefinitionKey = interactions[0].TaskDefinitionKeys[0]
	}
	e.tasks[task.ID] = task

	out := copyInstance(inst)
	return &out, nil
}

// FindTask returns the task with the given id.
func (e *Embedded) FindTask(_ context.Context, taskID string) (*model.Task, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	task, ok := e.tasks[taskID]
	if !ok {
		return nil, model.NewNotFoundError(fmt.Sprintf("task %q not found", taskID))
	}
	return &task, nil
}

// CompleteTask merges the submitted data into the instance and closes the
// task. Completing an already closed task is a conflict.
func (e *Embedded) CompleteTask(_ context.Context, taskID string, _ model.ActionType, data map[string][]model.Value) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	task, ok := e.tasks[taskID]
	if !ok {
		return model.NewNotFoundError(fmt.Sprintf("task %q not found", taskID))
	}
	if !task.Active {
		return model.NewConflictError(fmt.Sprintf("task %q is already completed", taskID))
	}

	inst, ok := e.instances[task.ProcessInstanceID]
	if !ok {
		return model.NewNotFoundError(fmt.Sprintf("process instance %q not found", task.ProcessInstanceID))
	}
	if inst.Data == nil {
		inst.Data = make(map[string][]model.Value, len(data))
	}
	for name, values := range data {
		inst.Data[name] = append([]model.Value(nil), values...)
	}
	e.instances[inst.ID] = inst

	task.Active = false
	e.tasks[taskID] = task
	return nil
}

// CancelInstance removes the instance and closes its tasks.
func (e *Embedded) CancelInstance(_ context.Context, processInstanceID, _ string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, ok := e.instances[processInstanceID]; !ok {
		return model.NewNotFoundError(fmt.Sprintf("process instance %q not found", processInstanceID))
	}
	delete(e.instances, processInstanceID)
	for id, task := range e.tasks {
		if task.ProcessInstanceID == processInstanceID {
			task.Active = false
			e.tasks[id] = task
		}
	}
	return nil
}

// AssignTask sets the task assignee. The embedded engine has no assignment
// rules of its own.
func (e *Embedded) AssignTask(_ context.Context, taskID, assigneeID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	task, ok := e.tasks[taskID]
	if !ok {
		return model.NewNotFoundError(fmt.Sprintf("task %q not found", taskID))
	}
	task.AssigneeID = assigneeID
	e.tasks[taskID] = task
	return nil
}

// FindInstance returns a copy of the instance with the given id.
func (e *Embedded) FindInstance(_ context.Context, processInstanceID string) (*model.ProcessInstance, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	inst, ok := e.instances[processInstanceID]
	if !ok {
		return nil, model.NewNotFoundError(fmt.Sprintf("process instance %q not found", processInstanceID))
	}
	out := copyInstance(inst)
	return &out, nil
}

// SaveInstance stores a copy of the given instance.
func (e *Embedded) SaveInstance(_ context.Context, instance *model.ProcessInstance) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.instances[instance.ID] = copyInstance(*instance)
	return nil
}

func copyInstance(inst model.ProcessInstance) model.ProcessInstance {
	inst.Data = copyData(inst.Data)
	return inst
}

func copyData(data map[string][]model.Value) map[string][]model.Value {
	if data == nil {
		return nil
	}
	out := make(map[string][]model.Value, len(data))
	for name, values := range data {
		out[name] = append([]model.Value(nil), values...)
	}
	return out
}
