package matcher

import (
	"math"

	"github.com/agnivade/levenshtein"

	"github.com/Dcavise/SEEK-sub000/internal/debug"
	"github.com/Dcavise/SEEK-sub000/internal/normalize"
)

// DefaultStructuralMinSimilarity is the street-name similarity floor for the
// structural tier.
const DefaultStructuralMinSimilarity = 0.90

// DefaultSpatialMaxMeters is the acceptance radius for the spatial tier.
const DefaultSpatialMaxMeters = 50.0

// Resolver runs the tiered resolution algorithm against a CandidateIndex.
// Resolvers are stateless apart from thresholds and safe for concurrent use.
type Resolver struct {
	StructuralMinSimilarity float64
	SpatialMaxMeters        float64
}

// NewResolver creates a resolver with the default thresholds
func NewResolver() *Resolver {
	return &Resolver{
		StructuralMinSimilarity: DefaultStructuralMinSimilarity,
		SpatialMaxMeters:        DefaultSpatialMaxMeters,
	}
}

// Resolve runs the textual pipeline (identifier -> normalized address ->
// structural) in strict tier order. The first tier to accept a candidate
// wins; lower tiers are never evaluated. A no-match outcome is returned as
// data, never as an error.
func (r *Resolver) Resolve(source SourceRecord, idx *CandidateIndex) MatchResult {
	return r.ResolveDebug(false, source, idx)
}

// ResolveDebug is Resolve with optional debug output
func (r *Resolver) ResolveDebug(localDebug bool, source SourceRecord, idx *CandidateIndex) MatchResult {
	if idx == nil {
		panic("matcher: Resolve called with nil CandidateIndex")
	}

	debug.DebugHeader(localDebug)
	defer debug.DebugFooter(localDebug)
	debug.DebugOutput(localDebug, "Resolving %s: %s", source.Identifier, source.RawAddress)

	// Tier 1: identifier match
	for _, candidate := range candidateIdentifiers(source.Identifier) {
		if ir, ok := idx.lookupIdentifier(candidate); ok {
			debug.DebugOutput(localDebug, "Tier 1 hit: %s -> %s", candidate, ir.record.AccountNumber)
			return r.accepted(source, ir, TierIdentifier, 100)
		}
	}

	canonical := normalize.CanonicalAddress(source.RawAddress)
	if canonical == "" {
		debug.DebugOutput(localDebug, "Address unmatchable after normalization")
		return r.unmatched(source)
	}

	// Tier 2: normalized-address exact match
	if ir, ok := idx.lookupAddress(canonical); ok {
		debug.DebugOutput(localDebug, "Tier 2 hit: %s -> %s", canonical, ir.record.AccountNumber)
		return r.accepted(source, ir, TierAddress, 95)
	}

	// Tier 3: structural fuzzy match, guarded by an exact street number
	components := normalize.ExtractComponents(canonical)
	if components.Number == "" {
		debug.DebugOutput(localDebug, "No street number, skipping structural tier")
		return r.unmatched(source)
	}

	bestSimilarity := -1.0
	bestOffset := -1
	for offset, ir := range idx.scanList {
		if ir.components.Number == "" || ir.components.Number != components.Number {
			continue
		}
		sim := streetSimilarity(components.Street, ir.components.Street)
		if sim < r.StructuralMinSimilarity {
			continue
		}
		// ties break to the first-encountered candidate
		if sim > bestSimilarity {
			bestSimilarity = sim
			bestOffset = offset
		}
	}

	if bestOffset >= 0 {
		confidence := math.Max(95, math.Min(100, bestSimilarity*100))
		ir := idx.scanList[bestOffset]
		debug.DebugOutput(localDebug, "Tier 3 hit: similarity %.4f -> %s", bestSimilarity, ir.record.AccountNumber)
		return r.accepted(source, ir, TierStructural, confidence)
	}

	debug.DebugOutput(localDebug, "No tier accepted a candidate")
	return r.unmatched(source)
}

// ResolveSpatial runs the spatial proximity tier on its own. Callers choose
// either the textual pipeline or this one; the two are never chained.
func (r *Resolver) ResolveSpatial(source SourceRecord, idx *CandidateIndex) MatchResult {
	return r.ResolveSpatialDebug(false, source, idx)
}

// ResolveSpatialDebug is ResolveSpatial with optional debug output
func (r *Resolver) ResolveSpatialDebug(localDebug bool, source SourceRecord, idx *CandidateIndex) MatchResult {
	if idx == nil {
		panic("matcher: ResolveSpatial called with nil CandidateIndex")
	}

	debug.DebugHeader(localDebug)
	defer debug.DebugFooter(localDebug)

	if source.Latitude == nil || source.Longitude == nil || !validCoordinates(*source.Latitude, *source.Longitude) {
		debug.DebugOutput(localDebug, "Source %s has no usable coordinates", source.Identifier)
		return r.unmatched(source)
	}

	bestDistance := math.Inf(1)
	bestOffset := -1
	for offset, ir := range idx.scanList {
		if !ir.hasCoords {
			continue
		}
		d := haversineMeters(*source.Latitude, *source.Longitude, ir.latitude, ir.longitude)
		if d > r.SpatialMaxMeters {
			continue
		}
		// ties break to the first-encountered candidate
		if d < bestDistance {
			bestDistance = d
			bestOffset = offset
		}
	}

	if bestOffset < 0 {
		debug.DebugOutput(localDebug, "No candidate within %.0fm", r.SpatialMaxMeters)
		return r.unmatched(source)
	}

	confidence := 100 * (1 - bestDistance/r.SpatialMaxMeters)
	ir := idx.scanList[bestOffset]
	debug.DebugOutput(localDebug, "Tier 4 hit: %.1fm -> %s (confidence %.1f)", bestDistance, ir.record.AccountNumber, confidence)
	return r.accepted(source, ir, TierSpatial, confidence)
}

func (r *Resolver) accepted(source SourceRecord, ir indexedRecord, tier Tier, confidence float64) MatchResult {
	return MatchResult{
		SourceIdentifier:     source.Identifier,
		MatchedAccount:       ir.record.AccountNumber,
		Confidence:           confidence,
		Tier:                 tier,
		RequiresManualReview: requiresReview(tier, confidence),
		OriginalAddress:      source.RawAddress,
		MatchedAddress:       ir.record.SitusAddress,
		FieldUpdates:         source.FieldUpdates,
	}
}

func (r *Resolver) unmatched(source SourceRecord) MatchResult {
	return MatchResult{
		SourceIdentifier:     source.Identifier,
		Confidence:           0,
		Tier:                 TierNone,
		RequiresManualReview: true,
		OriginalAddress:      source.RawAddress,
		FieldUpdates:         source.FieldUpdates,
	}
}

// streetSimilarity is a symmetric Levenshtein ratio over street-name strings,
// normalized to [0,1].
func streetSimilarity(a, b string) float64 {
	if a == "" && b == "" {
		return 1.0
	}
	if a == "" || b == "" {
		return 0.0
	}
	distance := levenshtein.ComputeDistance(a, b)
	longest := len([]rune(a))
	if l := len([]rune(b)); l > longest {
		longest = l
	}
	return 1.0 - float64(distance)/float64(longest)
}

const earthRadiusMeters = 6371000.0

// haversineMeters computes the great-circle distance between two points
func haversineMeters(lat1, lng1, lat2, lng2 float64) float64 {
	toRad := func(deg float64) float64 { return deg * math.Pi / 180 }

	dLat := toRad(lat2 - lat1)
	dLng := toRad(lng2 - lng1)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(lat1))*math.Cos(toRad(lat2))*math.Sin(dLng/2)*math.Sin(dLng/2)

	return 2 * earthRadiusMeters * math.Asin(math.Sqrt(a))
}
