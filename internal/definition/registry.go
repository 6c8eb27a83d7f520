package definition

import (
	"crypto/sha256"
	"fmt"
	"sort"
	"strings"
	"sync/atomic"

	"github.com/formflow/formflow/model"
)

// snapshot is an immutable collection of process definitions indexed by
// definition key.
type snapshot struct {
	processes map[string]model.Process
	checksum  string
}

// Registry is a read-optimized, thread-safe store of loaded process
// definitions. It uses atomic pointer swap for lock-free concurrent reads,
// so in-flight requests keep the snapshot they started with across a reload.
type Registry struct {
	snap atomic.Pointer[snapshot]
}

// NewRegistry creates a Registry from the given process definitions.
func NewRegistry(processes []model.Process) *Registry {
	r := &Registry{}
	r.Replace(processes)
	return r
}

// Replace atomically swaps the registry contents with a new snapshot built
// from the given definitions.
func (r *Registry) Replace(processes []model.Process) {
	s := &snapshot{
		processes: make(map[string]model.Process, len(processes)),
	}

	var checksumParts []string
	for _, p := range processes {
		s.processes[p.DefinitionKey] = p
		checksumParts = append(checksumParts, p.Checksum)
	}

	sort.Strings(checksumParts)
	combined := strings.Join(checksumParts, ":")
	s.checksum = fmt.Sprintf("%x", sha256.Sum256([]byte(combined)))

	r.snap.Store(s)
}

func (r *Registry) current() *snapshot {
	return r.snap.Load()
}

// Get returns the process definition with the given key.
func (r *Registry) Get(definitionKey string) (model.Process, bool) {
	p, ok := r.current().processes[definitionKey]
	return p, ok
}

// Interactions returns the interactions of the process definition with the
// given key, or NOT_FOUND when the key is unknown.
func (r *Registry) Interactions(processDefinitionKey string) ([]model.Interaction, error) {
	p, ok := r.current().processes[processDefinitionKey]
	if !ok {
		return nil, model.NewNotFoundError(
			fmt.Sprintf("unknown process definition %q", processDefinitionKey))
	}
	return p.Interactions, nil
}

// All returns all process definitions, sorted by definition key.
func (r *Registry) All() []model.Process {
	s := r.current()
	processes := make([]model.Process, 0, len(s.processes))
	for _, p := range s.processes {
		processes = append(processes, p)
	}
	sort.Slice(processes, func(i, j int) bool {
		return processes[i].DefinitionKey < processes[j].DefinitionKey
	})
	return processes
}

// Count returns the number of loaded process definitions.
func (r *Registry) Count() int {
	return len(r.current().processes)
}

// Checksum returns the combined checksum of all loaded definitions.
func (r *Registry) Checksum() string {
	return r.current().checksum
}
