package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/Dcavise/SEEK-sub000/internal/matcher"
)

// SnapshotLoader reads the canonical parcel snapshot the engine resolves
// against. Partitioning (one city at a time) is the caller's choice.
type SnapshotLoader struct {
	db *sql.DB
}

// NewSnapshotLoader creates a snapshot loader
func NewSnapshotLoader(db *sql.DB) *SnapshotLoader {
	return &SnapshotLoader{db: db}
}

// LoadCanonical returns all parcels, or those of one city when city != ""
func (sl *SnapshotLoader) LoadCanonical(ctx context.Context, city string) ([]matcher.CanonicalRecord, error) {
	query := `
		SELECT account_number, situs_address, latitude, longitude
		FROM parcels
	`
	args := []interface{}{}
	if city != "" {
		query += ` WHERE UPPER(city) = UPPER($1)`
		args = append(args, city)
	}
	query += ` ORDER BY account_number`

	rows, err := sl.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to load canonical snapshot: %w", err)
	}
	defer rows.Close()

	var records []matcher.CanonicalRecord
	for rows.Next() {
		var rec matcher.CanonicalRecord
		var lat, lng sql.NullFloat64

		if err := rows.Scan(&rec.AccountNumber, &rec.SitusAddress, &lat, &lng); err != nil {
			return nil, fmt.Errorf("failed to scan parcel row: %w", err)
		}

		if lat.Valid && lng.Valid {
			latV, lngV := lat.Float64, lng.Float64
			rec.Latitude = &latV
			rec.Longitude = &lngV
		}

		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read canonical snapshot: %w", err)
	}

	return records, nil
}

// CountParcels returns the total parcel count, for connectivity checks
func (sl *SnapshotLoader) CountParcels(ctx context.Context) (int, error) {
	var count int
	err := sl.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM parcels`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count parcels: %w", err)
	}
	return count, nil
}
