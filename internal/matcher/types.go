package matcher

// Tier identifies which matching strategy produced a result
type Tier string

const (
	TierIdentifier Tier = "identifier"
	TierAddress    Tier = "normalized-address"
	TierStructural Tier = "structural"
	TierSpatial    Tier = "spatial"
	TierNone       Tier = "none"
)

// CanonicalRecord is one parcel from the registry snapshot. Read-only to the
// engine; loaded once per batch.
type CanonicalRecord struct {
	AccountNumber string
	SitusAddress  string
	Latitude      *float64 // optional
	Longitude     *float64 // optional
}

// SourceRecord is one row from a disclosure file needing resolution
type SourceRecord struct {
	Identifier   string
	RawAddress   string
	Latitude     *float64          // optional
	Longitude    *float64          // optional
	FieldUpdates map[string]string // parcel fields to apply on an approved match
}

// MatchResult is the resolution outcome for a single source record. Never
// mutated after creation; review decisions reference it separately.
type MatchResult struct {
	SourceIdentifier     string
	MatchedAccount       string  // "" when unmatched
	Confidence           float64 // 0-100
	Tier                 Tier
	RequiresManualReview bool
	OriginalAddress      string
	MatchedAddress       string            // "" when unmatched
	FieldUpdates         map[string]string // carried from the source record
}

// Matched reports whether the result carries an accepted candidate
func (m MatchResult) Matched() bool {
	return m.Tier != TierNone && m.MatchedAccount != ""
}

// requiresReview applies the per-tier manual review policy
func requiresReview(tier Tier, confidence float64) bool {
	switch tier {
	case TierIdentifier, TierAddress:
		return false
	case TierStructural:
		return confidence < 95
	case TierSpatial:
		return confidence < 100
	default:
		return true
	}
}
