package tool

import (
	"os"
	"os/exec"
	"sort"
	"sync"

	"github.com/anandukch/localtoolbox/pkg/errmodel"
)

// Registry is the authoritative mapping from tool identifiers to descriptors.
// It is populated once at startup from config and treated as read-only
// afterwards; the mutex only exists so registration and lookup are safe if
// they ever overlap.
type Registry struct {
	mu   sync.RWMutex
	byID map[string]Descriptor
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{byID: map[string]Descriptor{}}
}

// Register adds a descriptor. Registrations happen at startup, so a duplicate
// ID indicates a configuration bug and is rejected rather than overwritten.
func (r *Registry) Register(d Descriptor) error {
	if d.ID == "" {
		return errmodel.Config("empty_id", "tool id is empty", nil)
	}
	if d.Path == "" {
		return errmodel.Config("empty_path", "tool path is empty", map[string]any{"tool": d.ID})
	}
	if _, err := ParseConvention(string(d.Convention)); err != nil {
		return errmodel.Config("bad_convention", err.Error(), map[string]any{"tool": d.ID})
	}
	if len(d.InputSchema) > 0 {
		if err := CompileJSONSchema(d.InputSchema); err != nil {
			return errmodel.Config("bad_schema", "input schema does not compile", map[string]any{"tool": d.ID, "error": err.Error()})
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.byID[d.ID]; exists {
		return errmodel.Config("conflict", "tool already registered", map[string]any{"tool": d.ID})
	}
	r.byID[d.ID] = d
	return nil
}

// Resolve returns the descriptor for id. Pure lookup, no side effects.
func (r *Registry) Resolve(id string) (Descriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.byID[id]
	return d, ok
}

// Descriptors returns all registered descriptors sorted by ID.
func (r *Registry) Descriptors() []Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Descriptor, 0, len(r.byID))
	for _, d := range r.byID {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Len returns the number of registered tools.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byID)
}

// Verify reports the IDs of tools whose executable cannot currently be
// resolved. Run once at startup; a missing target is surfaced as a warning
// there and as ExecutableMissing at invoke time.
func (r *Registry) Verify() []string {
	var missing []string
	for _, d := range r.Descriptors() {
		if err := checkRunnable(d); err != nil {
			missing = append(missing, d.ID)
		}
	}
	return missing
}

// checkRunnable verifies the descriptor's target resolves to something
// executable without spawning it.
func checkRunnable(d Descriptor) error {
	if d.Interpreter != "" {
		if _, err := exec.LookPath(d.Interpreter); err != nil {
			return err
		}
		_, err := os.Stat(d.Path)
		return err
	}
	_, err := exec.LookPath(d.Path)
	return err
}
