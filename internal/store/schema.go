package store

import (
	"context"
	"database/sql"
	"fmt"
)

// EnsureSchema creates the engine's tables when they do not exist yet.
// Parcel data itself is bulk-loaded by external tooling; this only provisions
// what the matching and review workflows write.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS parcels (
			account_number   text PRIMARY KEY,
			situs_address    text NOT NULL,
			city             text,
			latitude         double precision,
			longitude        double precision,
			fire_sprinklers  text,
			zoned_by_right   text,
			occupancy_class  text,
			updated_at       timestamptz DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS source_records (
			record_id          bigserial PRIMARY KEY,
			source_identifier  text NOT NULL,
			raw_address        text,
			latitude           double precision,
			longitude          double precision,
			field_updates      jsonb,
			imported_at        timestamptz DEFAULT now(),
			UNIQUE (source_identifier, raw_address)
		)`,
		`CREATE TABLE IF NOT EXISTS match_runs (
			run_id             text PRIMARY KEY,
			total              integer NOT NULL,
			matched            integer NOT NULL,
			unmatched          integer NOT NULL,
			manual_review      integer NOT NULL,
			avg_confidence     double precision NOT NULL,
			duplicate_addrs    integer NOT NULL,
			duration_ms        bigint NOT NULL,
			created_at         timestamptz DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS match_results (
			result_id          bigserial PRIMARY KEY,
			run_id             text REFERENCES match_runs(run_id),
			source_identifier  text NOT NULL,
			matched_account    text,
			confidence         double precision NOT NULL,
			tier               text NOT NULL,
			needs_review       boolean NOT NULL,
			original_address   text,
			matched_address    text
		)`,
		`CREATE TABLE IF NOT EXISTS review_decisions (
			decision_id        text PRIMARY KEY,
			source_identifier  text NOT NULL,
			matched_account    text NOT NULL,
			confidence         double precision NOT NULL,
			tier               text NOT NULL,
			status             text NOT NULL,
			actor              text,
			created_at         timestamptz NOT NULL,
			decided_at         timestamptz,
			field_updates      jsonb
		)`,
		`CREATE TABLE IF NOT EXISTS review_field_changes (
			change_id          bigserial PRIMARY KEY,
			decision_id        text REFERENCES review_decisions(decision_id),
			field              text NOT NULL,
			old_value          text,
			new_value          text,
			recorded_at        timestamptz DEFAULT now()
		)`,
	}

	for _, stmt := range statements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to provision schema: %w", err)
		}
	}
	return nil
}
