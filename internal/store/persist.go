package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/Dcavise/SEEK-sub000/internal/matcher"
	"github.com/Dcavise/SEEK-sub000/internal/review"
)

// Persister writes run results and review decisions and applies approved
// field updates to the parcel store.
type Persister struct {
	db *sql.DB
}

// NewPersister creates a persister
func NewPersister(db *sql.DB) *Persister {
	return &Persister{db: db}
}

// Parcel fields a disclosure is allowed to update
var updatableFields = map[string]bool{
	"fire_sprinklers": true,
	"zoned_by_right":  true,
	"occupancy_class": true,
}

// SaveRun persists a batch run's stats and every result in one transaction
func (p *Persister) SaveRun(ctx context.Context, stats *matcher.BatchRunStats, results []matcher.MatchResult) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO match_runs (run_id, total, matched, unmatched, manual_review, avg_confidence, duplicate_addrs, duration_ms)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, stats.RunID, stats.Total, stats.Matched, stats.Unmatched, stats.ManualReviewCount,
		stats.AverageConfidence, stats.DuplicateAddresses, stats.Duration.Milliseconds())
	if err != nil {
		return fmt.Errorf("failed to insert match run: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO match_results (run_id, source_identifier, matched_account, confidence, tier, needs_review, original_address, matched_address)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare result insert: %w", err)
	}
	defer stmt.Close()

	for _, res := range results {
		matched := sql.NullString{String: res.MatchedAccount, Valid: res.MatchedAccount != ""}
		_, err := stmt.ExecContext(ctx, stats.RunID, res.SourceIdentifier, matched,
			res.Confidence, string(res.Tier), res.RequiresManualReview, res.OriginalAddress, res.MatchedAddress)
		if err != nil {
			return fmt.Errorf("failed to insert result for %s: %w", res.SourceIdentifier, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit run: %w", err)
	}
	return nil
}

// marshalFieldUpdates encodes a field-update map for the jsonb columns.
// An empty map stores as NULL.
func marshalFieldUpdates(updates map[string]string) (sql.NullString, error) {
	if len(updates) == 0 {
		return sql.NullString{}, nil
	}
	encoded, err := json.Marshal(updates)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("failed to encode field updates: %w", err)
	}
	return sql.NullString{String: string(encoded), Valid: true}, nil
}

// unmarshalFieldUpdates decodes a jsonb field-update column; NULL means none
func unmarshalFieldUpdates(raw sql.NullString) (map[string]string, error) {
	if !raw.Valid || raw.String == "" {
		return nil, nil
	}
	var updates map[string]string
	if err := json.Unmarshal([]byte(raw.String), &updates); err != nil {
		return nil, fmt.Errorf("failed to decode field updates: %w", err)
	}
	return updates, nil
}

// StageSourceRecords inserts parsed disclosure records for audit. Rows already
// staged (same identifier and address) are skipped. Returns the number of new
// rows written.
func (p *Persister) StageSourceRecords(ctx context.Context, records []matcher.SourceRecord) (int, error) {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO source_records (source_identifier, raw_address, latitude, longitude, field_updates)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (source_identifier, raw_address) DO NOTHING
	`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare source insert: %w", err)
	}
	defer stmt.Close()

	staged := 0
	for _, rec := range records {
		lat := sql.NullFloat64{}
		lng := sql.NullFloat64{}
		if rec.Latitude != nil && rec.Longitude != nil {
			lat = sql.NullFloat64{Float64: *rec.Latitude, Valid: true}
			lng = sql.NullFloat64{Float64: *rec.Longitude, Valid: true}
		}
		updates, err := marshalFieldUpdates(rec.FieldUpdates)
		if err != nil {
			return 0, err
		}
		res, err := stmt.ExecContext(ctx, rec.Identifier, rec.RawAddress, lat, lng, updates)
		if err != nil {
			return 0, fmt.Errorf("failed to stage record %s: %w", rec.Identifier, err)
		}
		if n, err := res.RowsAffected(); err == nil {
			staged += int(n)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit staged records: %w", err)
	}
	return staged, nil
}

// SaveDecision upserts a review decision and its recorded field changes
func (p *Persister) SaveDecision(ctx context.Context, d review.Decision) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	decidedAt := sql.NullTime{Time: d.DecidedAt, Valid: !d.DecidedAt.IsZero()}
	updates, err := marshalFieldUpdates(d.FieldUpdates)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO review_decisions (decision_id, source_identifier, matched_account, confidence, tier, status, actor, created_at, decided_at, field_updates)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (decision_id) DO UPDATE SET
			status = EXCLUDED.status,
			actor = EXCLUDED.actor,
			decided_at = EXCLUDED.decided_at
	`, d.ID, d.SourceIdentifier, d.MatchedAccount, d.Confidence, d.Tier, string(d.Status), d.Actor, d.CreatedAt, decidedAt, updates)
	if err != nil {
		return fmt.Errorf("failed to upsert decision %s: %w", d.ID, err)
	}

	if len(d.FieldChanges) > 0 {
		if _, err := tx.ExecContext(ctx, `DELETE FROM review_field_changes WHERE decision_id = $1`, d.ID); err != nil {
			return fmt.Errorf("failed to clear field changes for %s: %w", d.ID, err)
		}
		for _, change := range d.FieldChanges {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO review_field_changes (decision_id, field, old_value, new_value)
				VALUES ($1, $2, $3, $4)
			`, d.ID, change.Field, change.OldValue, change.NewValue)
			if err != nil {
				return fmt.Errorf("failed to record field change for %s: %w", d.ID, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit decision: %w", err)
	}
	return nil
}

// LoadPendingDecisions rehydrates pending decisions, e.g. at web startup
func (p *Persister) LoadPendingDecisions(ctx context.Context) ([]review.Decision, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT decision_id, source_identifier, matched_account, confidence, tier, status, actor, created_at, decided_at, field_updates
		FROM review_decisions
		WHERE status = $1
		ORDER BY created_at, decision_id
	`, string(review.StatusPending))
	if err != nil {
		return nil, fmt.Errorf("failed to load pending decisions: %w", err)
	}
	defer rows.Close()

	var decisions []review.Decision
	for rows.Next() {
		var d review.Decision
		var status string
		var actor, rawUpdates sql.NullString
		var decidedAt sql.NullTime

		if err := rows.Scan(&d.ID, &d.SourceIdentifier, &d.MatchedAccount, &d.Confidence,
			&d.Tier, &status, &actor, &d.CreatedAt, &decidedAt, &rawUpdates); err != nil {
			return nil, fmt.Errorf("failed to scan decision row: %w", err)
		}
		d.Status = review.Status(status)
		d.Actor = actor.String
		if decidedAt.Valid {
			d.DecidedAt = decidedAt.Time
		}
		if d.FieldUpdates, err = unmarshalFieldUpdates(rawUpdates); err != nil {
			return nil, err
		}
		decisions = append(decisions, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read decisions: %w", err)
	}

	return decisions, nil
}

// LoadDecision loads one decision in any status, with its recorded field
// changes. Returns review.ErrNotFound when the ID is unknown.
func (p *Persister) LoadDecision(ctx context.Context, id string) (review.Decision, error) {
	var d review.Decision
	var status string
	var actor, rawUpdates sql.NullString
	var decidedAt sql.NullTime

	err := p.db.QueryRowContext(ctx, `
		SELECT decision_id, source_identifier, matched_account, confidence, tier, status, actor, created_at, decided_at, field_updates
		FROM review_decisions
		WHERE decision_id = $1
	`, id).Scan(&d.ID, &d.SourceIdentifier, &d.MatchedAccount, &d.Confidence,
		&d.Tier, &status, &actor, &d.CreatedAt, &decidedAt, &rawUpdates)
	if err == sql.ErrNoRows {
		return review.Decision{}, &review.ErrNotFound{DecisionID: id}
	}
	if err != nil {
		return review.Decision{}, fmt.Errorf("failed to load decision %s: %w", id, err)
	}
	d.Status = review.Status(status)
	d.Actor = actor.String
	if decidedAt.Valid {
		d.DecidedAt = decidedAt.Time
	}
	if d.FieldUpdates, err = unmarshalFieldUpdates(rawUpdates); err != nil {
		return review.Decision{}, err
	}

	rows, err := p.db.QueryContext(ctx, `
		SELECT field, old_value, new_value
		FROM review_field_changes
		WHERE decision_id = $1
		ORDER BY change_id
	`, id)
	if err != nil {
		return review.Decision{}, fmt.Errorf("failed to load field changes for %s: %w", id, err)
	}
	defer rows.Close()

	for rows.Next() {
		var change review.FieldChange
		var oldVal, newVal sql.NullString
		if err := rows.Scan(&change.Field, &oldVal, &newVal); err != nil {
			return review.Decision{}, fmt.Errorf("failed to scan field change: %w", err)
		}
		change.OldValue = oldVal.String
		change.NewValue = newVal.String
		d.FieldChanges = append(d.FieldChanges, change)
	}
	if err := rows.Err(); err != nil {
		return review.Decision{}, fmt.Errorf("failed to read field changes: %w", err)
	}

	return d, nil
}

// ApplyFieldUpdates commits disclosure-derived field updates to a parcel,
// capturing prior values inside the same transaction so the caller can
// record them for rollback.
func (p *Persister) ApplyFieldUpdates(ctx context.Context, account string, updates map[string]string) ([]review.FieldChange, error) {
	if len(updates) == 0 {
		return nil, nil
	}
	for field := range updates {
		if !updatableFields[field] {
			return nil, fmt.Errorf("field %q is not updatable", field)
		}
	}

	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	fields := make([]string, 0, len(updates))
	for field := range updates {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	var changes []review.FieldChange
	for _, field := range fields {
		newValue := updates[field]
		var old sql.NullString
		query := fmt.Sprintf(`SELECT %s FROM parcels WHERE account_number = $1 FOR UPDATE`, field)
		if err := tx.QueryRowContext(ctx, query, account).Scan(&old); err != nil {
			return nil, fmt.Errorf("failed to read prior value of %s for %s: %w", field, account, err)
		}

		update := fmt.Sprintf(`UPDATE parcels SET %s = $1, updated_at = now() WHERE account_number = $2`, field)
		if _, err := tx.ExecContext(ctx, update, newValue, account); err != nil {
			return nil, fmt.Errorf("failed to update %s for %s: %w", field, account, err)
		}

		changes = append(changes, review.FieldChange{Field: field, OldValue: old.String, NewValue: newValue})
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit field updates: %w", err)
	}
	return changes, nil
}

// RollbackFieldUpdates restores the prior values recorded when a decision
// was applied.
func (p *Persister) RollbackFieldUpdates(ctx context.Context, account string, applied []review.FieldChange) ([]review.FieldChange, error) {
	restore := make(map[string]string, len(applied))
	for _, change := range applied {
		restore[change.Field] = change.OldValue
	}
	return p.ApplyFieldUpdates(ctx, account, restore)
}
