package cognition

import (
	"fmt"
	"sync"
	"time"

	"noesis/internal/logging"

	"github.com/google/uuid"
)

// Registry owns the set of named cognition definitions and their lifecycle.
// All reads return deep copies so callers can never alias registry-owned
// state; all mutation goes through Registry methods under its lock.
type Registry struct {
	mu          sync.RWMutex
	definitions map[string]*Definition
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		definitions: make(map[string]*Definition),
	}
}

// Register adds a new definition. The stored copy is detached from the
// caller's value. An empty ID is assigned a generated one. Registering an
// existing id is an error; definitions are never replaced.
func (r *Registry) Register(def *Definition) (*Definition, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	d := def.clone()
	if d.ID == "" {
		d.ID = "cognition_" + uuid.NewString()
	}
	if _, exists := r.definitions[d.ID]; exists {
		return nil, fmt.Errorf("cognition %s already registered", d.ID)
	}
	if d.Status == "" {
		d.Status = StatusIdle
	}
	if d.Metadata == nil {
		d.Metadata = make(map[string]string)
	}
	now := time.Now().UTC()
	if d.CreatedAt.IsZero() {
		d.CreatedAt = now
	}
	d.UpdatedAt = now

	r.definitions[d.ID] = d
	logging.Registry("Registered cognition %s (%s) with %d phases", d.ID, d.Name, len(d.Phases))

	return d.clone(), nil
}

// Get returns a deep copy of the definition, or NotFoundError.
func (r *Registry) Get(cognitionID string) (*Definition, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	d, ok := r.definitions[cognitionID]
	if !ok {
		return nil, &NotFoundError{Kind: "cognition", ID: cognitionID}
	}
	return d.clone(), nil
}

// ListAll returns a snapshot of all known definitions, including retired
// ones, with their current status. No side effects.
func (r *Registry) ListAll() []*Definition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Definition, 0, len(r.definitions))
	for _, d := range r.definitions {
		out = append(out, d.clone())
	}
	return out
}

// Clone deep-copies the source definition's phases and metadata into a new
// idle definition. The clone does not inherit execution history. newAgents
// and newName override the source values when non-zero.
func (r *Registry) Clone(cognitionID string, newAgents []string, newName string) (*Definition, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	src, ok := r.definitions[cognitionID]
	if !ok {
		return nil, &NotFoundError{Kind: "cognition", ID: cognitionID}
	}

	c := src.clone()
	c.ID = "cognition_clone_" + uuid.NewString()
	c.Status = StatusIdle
	if newName != "" {
		c.Name = newName
	} else {
		c.Name = src.Name + "_clone"
	}
	if len(newAgents) > 0 {
		c.Agents = append([]string(nil), newAgents...)
	}
	now := time.Now().UTC()
	c.CreatedAt = now
	c.UpdatedAt = now

	r.definitions[c.ID] = c
	logging.Registry("Cloned cognition %s -> %s (%s)", cognitionID, c.ID, c.Name)

	return c.clone(), nil
}

// Retire permanently archives a definition so it is never scheduled again.
// Idempotent: retiring a retired cognition is a no-op success.
func (r *Registry) Retire(cognitionID, reason string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	d, ok := r.definitions[cognitionID]
	if !ok {
		return &NotFoundError{Kind: "cognition", ID: cognitionID}
	}
	if d.Status == StatusRetired {
		return nil
	}

	now := time.Now().UTC()
	d.Status = StatusRetired
	d.Metadata["retired_reason"] = reason
	d.Metadata["retired_at"] = now.Format(time.RFC3339)
	d.UpdatedAt = now

	logging.Registry("Retired cognition %s (reason: %s)", cognitionID, reason)
	return nil
}

// SetStatus updates a definition's run status. Used by the engine only.
// Retired definitions are immutable; attempting to move one out of retired
// returns ErrRetired.
func (r *Registry) SetStatus(cognitionID string, status Status) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	d, ok := r.definitions[cognitionID]
	if !ok {
		return &NotFoundError{Kind: "cognition", ID: cognitionID}
	}
	if d.Status == StatusRetired {
		return ErrRetired
	}
	d.Status = status
	d.UpdatedAt = time.Now().UTC()
	return nil
}
