package review

import (
	"fmt"
	"time"
)

// Status is the lifecycle state of a review decision
type Status string

const (
	StatusPending    Status = "pending"
	StatusApproved   Status = "approved"
	StatusRejected   Status = "rejected"
	StatusApplied    Status = "applied"
	StatusRolledBack Status = "rolled_back"
)

// allowedTransitions is the full transition matrix. rolled_back is terminal.
var allowedTransitions = map[Status][]Status{
	StatusPending:    {StatusApproved, StatusRejected},
	StatusApproved:   {StatusApplied, StatusRejected},
	StatusApplied:    {StatusRolledBack},
	StatusRejected:   {},
	StatusRolledBack: {},
}

// FieldChange records one parcel field changed by applying a match, with the
// prior value retained for rollback fidelity.
type FieldChange struct {
	Field    string `json:"field"`
	OldValue string `json:"old_value"`
	NewValue string `json:"new_value"`
}

// Decision tracks the review lifecycle of one match result. The underlying
// MatchResult is never mutated; decisions reference it by source identifier
// and matched account.
type Decision struct {
	ID               string    `json:"id"`
	SourceIdentifier string    `json:"source_identifier"`
	MatchedAccount   string    `json:"matched_account"`
	Confidence       float64   `json:"confidence"`
	Tier             string    `json:"tier"`
	Status           Status    `json:"status"`
	Actor            string    `json:"actor"`
	CreatedAt        time.Time `json:"created_at"`
	DecidedAt        time.Time `json:"decided_at"`
	// FieldUpdates are the disclosure's requested parcel updates, carried
	// from the source record so apply does not depend on operator input.
	FieldUpdates map[string]string `json:"field_updates,omitempty"`
	FieldChanges []FieldChange     `json:"field_changes,omitempty"`
}

// InvalidTransitionError reports a transition outside the allowed matrix
type InvalidTransitionError struct {
	DecisionID string
	From       Status
	To         Status
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("review: invalid transition %s -> %s for decision %s", e.From, e.To, e.DecisionID)
}

// ErrNotFound is returned when a decision ID is unknown
type ErrNotFound struct {
	DecisionID string
}

func (e *ErrNotFound) Error() string {
	return fmt.Sprintf("review: decision %s not found", e.DecisionID)
}

// canTransition checks the transition matrix
func canTransition(from, to Status) bool {
	for _, allowed := range allowedTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}
