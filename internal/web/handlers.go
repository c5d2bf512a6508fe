package web

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/Dcavise/SEEK-sub000/internal/review"
)

// transitionRequest is the body for single review actions
type transitionRequest struct {
	Actor   string            `json:"actor"`
	Updates map[string]string `json:"updates,omitempty"` // apply only
}

// bulkRequest is the body for bulk review actions
type bulkRequest struct {
	IDs    []string `json:"ids"`
	Action string   `json:"action"` // "approve" or "reject"
	Actor  string   `json:"actor"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	stats := s.stats
	s.mu.RUnlock()

	if stats == nil {
		http.Error(w, "no batch run published", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleResults(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	results := s.results
	s.mu.RUnlock()

	writeJSON(w, http.StatusOK, results)
}

func (s *Server) handleListReviews(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.registry.List())
}

func (s *Server) handlePendingReviews(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.registry.Pending())
}

func (s *Server) handleGetReview(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	d, err := s.registry.Get(id)
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (s *Server) handleApprove(w http.ResponseWriter, r *http.Request) {
	s.transition(w, r, review.StatusApproved, nil)
}

func (s *Server) handleReject(w http.ResponseWriter, r *http.Request) {
	s.transition(w, r, review.StatusRejected, nil)
}

// handleApply commits the field updates to the parcel store and records the
// prior values on the decision for rollback.
func (s *Server) handleApply(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	var req transitionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && err != io.EOF {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	d, err := s.registry.Get(id)
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}

	// disclosure-supplied updates are the default; a request body overrides
	updates := d.FieldUpdates
	if len(req.Updates) > 0 {
		updates = req.Updates
	}

	changes := changesFromUpdates(updates)
	if s.persister != nil {
		changes, err = s.persister.ApplyFieldUpdates(r.Context(), d.MatchedAccount, updates)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
	}

	d, err = s.registry.Transition(id, review.StatusApplied, req.Actor, changes)
	if err != nil {
		writeTransitionError(w, err)
		return
	}
	s.persist(r, d)
	writeJSON(w, http.StatusOK, d)
}

// handleRollback restores the prior values recorded when the decision was
// applied.
func (s *Server) handleRollback(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	var req transitionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && err != io.EOF {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	d, err := s.registry.Get(id)
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}

	var restored []review.FieldChange
	if s.persister != nil && len(d.FieldChanges) > 0 {
		restored, err = s.persister.RollbackFieldUpdates(r.Context(), d.MatchedAccount, d.FieldChanges)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
	} else {
		for _, change := range d.FieldChanges {
			restored = append(restored, review.FieldChange{
				Field:    change.Field,
				OldValue: change.NewValue,
				NewValue: change.OldValue,
			})
		}
	}

	d, err = s.registry.Transition(id, review.StatusRolledBack, req.Actor, restored)
	if err != nil {
		writeTransitionError(w, err)
		return
	}
	s.persist(r, d)
	writeJSON(w, http.StatusOK, d)
}

func (s *Server) handleBulkTransition(w http.ResponseWriter, r *http.Request) {
	var req bulkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	var target review.Status
	switch req.Action {
	case "approve":
		target = review.StatusApproved
	case "reject":
		target = review.StatusRejected
	default:
		http.Error(w, "action must be approve or reject", http.StatusBadRequest)
		return
	}

	result := s.registry.BulkTransition(req.IDs, target, req.Actor)
	for _, d := range result.Transitioned {
		s.persist(r, d)
	}

	failures := make(map[string]string, len(result.Failures))
	for id, err := range result.Failures {
		failures[id] = err.Error()
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"transitioned": result.Transitioned,
		"failures":     failures,
	})
}

func (s *Server) transition(w http.ResponseWriter, r *http.Request, target review.Status, changes []review.FieldChange) {
	id := mux.Vars(r)["id"]

	var req transitionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && err != io.EOF {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	d, err := s.registry.Transition(id, target, req.Actor, changes)
	if err != nil {
		writeTransitionError(w, err)
		return
	}
	s.persist(r, d)
	writeJSON(w, http.StatusOK, d)
}

// persist mirrors a decision to the database when one is attached
func (s *Server) persist(r *http.Request, d review.Decision) {
	if s.persister == nil {
		return
	}
	// best effort: the in-memory registry is authoritative for this session
	_ = s.persister.SaveDecision(r.Context(), d)
}

func changesFromUpdates(updates map[string]string) []review.FieldChange {
	var changes []review.FieldChange
	for field, value := range updates {
		changes = append(changes, review.FieldChange{Field: field, NewValue: value})
	}
	return changes
}

func writeTransitionError(w http.ResponseWriter, err error) {
	var nf *review.ErrNotFound
	if errors.As(err, &nf) {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	var ite *review.InvalidTransitionError
	if errors.As(err, &ite) {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}
	http.Error(w, err.Error(), http.StatusInternalServerError)
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}
