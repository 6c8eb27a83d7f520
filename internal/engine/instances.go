package engine

import (
	"context"
	"fmt"
	"sync"

	"github.com/formflow/formflow/model"
)

// InstanceCache is an in-memory instance repository used when the process
// engine runs remotely and instance state is kept locally between screens.
type InstanceCache struct {
	mu        sync.RWMutex
	instances map[string]model.ProcessInstance
}

func NewInstanceCache() *InstanceCache {
	return &InstanceCache{instances: make(map[string]model.ProcessInstance)}
}

func (c *InstanceCache) FindInstance(_ context.Context, processInstanceID string) (*model.ProcessInstance, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	inst, ok := c.instances[processInstanceID]
	if !ok {
		return nil, model.NewNotFoundError(fmt.Sprintf("process instance %q not found", processInstanceID))
	}
	inst = copyInstance(inst)
	return &inst, nil
}

func (c *InstanceCache) SaveInstance(_ context.Context, instance *model.ProcessInstance) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.instances[instance.ID] = copyInstance(*instance)
	return nil
}

func (c *InstanceCache) HealthCheck(_ context.Context) error { return nil }
