package review

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Dcavise/SEEK-sub000/internal/matcher"
)

// entry pairs a decision with its own lock so bulk transitions serialize
// per decision rather than across the whole registry.
type entry struct {
	mu       sync.Mutex
	decision Decision
}

// Registry holds review decisions and enforces the lifecycle state machine.
// Safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*entry
	order   []string // creation order, for stable listings
}

// NewRegistry creates an empty decision registry
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]*entry)}
}

// CreateFromResults registers a pending decision for every matched result.
// Results with tier none get no decision; there is nothing to approve.
// Returns the new decision IDs in result order.
func (r *Registry) CreateFromResults(results []matcher.MatchResult) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	var ids []string
	now := time.Now().UTC()
	for _, res := range results {
		if !res.Matched() {
			continue
		}
		d := Decision{
			ID:               uuid.NewString(),
			SourceIdentifier: res.SourceIdentifier,
			MatchedAccount:   res.MatchedAccount,
			Confidence:       res.Confidence,
			Tier:             string(res.Tier),
			Status:           StatusPending,
			CreatedAt:        now,
			FieldUpdates:     res.FieldUpdates,
		}
		r.entries[d.ID] = &entry{decision: d}
		r.order = append(r.order, d.ID)
		ids = append(ids, d.ID)
	}
	return ids
}

// Add registers an existing decision, e.g. one rehydrated from storage
func (r *Registry) Add(d Decision) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.entries[d.ID]; exists {
		return
	}
	r.entries[d.ID] = &entry{decision: d}
	r.order = append(r.order, d.ID)
}

// Get returns a copy of the decision with the given ID
func (r *Registry) Get(id string) (Decision, error) {
	r.mu.RLock()
	e, ok := r.entries[id]
	r.mu.RUnlock()
	if !ok {
		return Decision{}, &ErrNotFound{DecisionID: id}
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	return e.decision, nil
}

// List returns all decisions in creation order
func (r *Registry) List() []Decision {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Decision, 0, len(r.order))
	for _, id := range r.order {
		e := r.entries[id]
		e.mu.Lock()
		out = append(out, e.decision)
		e.mu.Unlock()
	}
	return out
}

// Pending returns all decisions still awaiting a review action
func (r *Registry) Pending() []Decision {
	var out []Decision
	for _, d := range r.List() {
		if d.Status == StatusPending {
			out = append(out, d)
		}
	}
	return out
}

// Transition moves a decision to the target status. Transitions to applied
// or rolled_back must carry the field values changed; prior values are the
// caller's responsibility since the engine does not retain them.
func (r *Registry) Transition(id string, target Status, actor string, changes []FieldChange) (Decision, error) {
	r.mu.RLock()
	e, ok := r.entries[id]
	r.mu.RUnlock()
	if !ok {
		return Decision{}, &ErrNotFound{DecisionID: id}
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if !canTransition(e.decision.Status, target) {
		return Decision{}, &InvalidTransitionError{DecisionID: id, From: e.decision.Status, To: target}
	}

	e.decision.Status = target
	e.decision.Actor = actor
	e.decision.DecidedAt = time.Now().UTC()
	if target == StatusApplied || target == StatusRolledBack {
		e.decision.FieldChanges = changes
	}
	return e.decision, nil
}

// BulkResult reports the outcome of a bulk transition
type BulkResult struct {
	Transitioned []Decision
	Failures     map[string]error // keyed by decision ID
}

// BulkTransition applies the target status to every listed decision,
// validating each one individually. Partial application is allowed; each
// failure is reported against its specific ID and never aborts the batch.
// Transitions to applied or rolled_back must record field values, so they
// are rejected here; use Transition per decision instead.
func (r *Registry) BulkTransition(ids []string, target Status, actor string) BulkResult {
	result := BulkResult{Failures: make(map[string]error)}

	if target == StatusApplied || target == StatusRolledBack {
		for _, id := range ids {
			result.Failures[id] = fmt.Errorf("review: bulk transition to %s not allowed, field changes must be recorded per decision", target)
		}
		return result
	}

	for _, id := range ids {
		d, err := r.Transition(id, target, actor, nil)
		if err != nil {
			result.Failures[id] = err
			continue
		}
		result.Transitioned = append(result.Transitioned, d)
	}

	sort.Slice(result.Transitioned, func(i, j int) bool {
		return result.Transitioned[i].ID < result.Transitioned[j].ID
	})
	return result
}
