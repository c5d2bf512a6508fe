package matcher

import (
	"math"
	"regexp"
	"strings"

	"github.com/Dcavise/SEEK-sub000/internal/normalize"
)

var reDigitRun = regexp.MustCompile(`\d+`)

// indexedRecord is a canonical record with everything the resolver needs
// precomputed at index build time.
type indexedRecord struct {
	record     CanonicalRecord
	canonical  string
	components normalize.Components
	hasCoords  bool
	latitude   float64
	longitude  float64
}

// CandidateIndex is the per-run read-only lookup structure shared by all
// resolution workers. Built once per batch; never mutated afterwards.
type CandidateIndex struct {
	byIdentifier map[string]int // scanList offsets
	byAddress    map[string]int
	scanList     []indexedRecord

	// DuplicateAddresses counts canonical records whose normalized address
	// collided with an earlier record. The first-indexed record wins.
	DuplicateAddresses int
}

// BuildIndex precomputes lookups over the canonical snapshot
func BuildIndex(records []CanonicalRecord) *CandidateIndex {
	idx := &CandidateIndex{
		byIdentifier: make(map[string]int, len(records)),
		byAddress:    make(map[string]int, len(records)),
		scanList:     make([]indexedRecord, 0, len(records)),
	}

	for _, rec := range records {
		ir := indexedRecord{
			record:    rec,
			canonical: normalize.CanonicalAddress(rec.SitusAddress),
		}
		ir.components = normalize.ExtractComponents(ir.canonical)
		if rec.Latitude != nil && rec.Longitude != nil && validCoordinates(*rec.Latitude, *rec.Longitude) {
			ir.hasCoords = true
			ir.latitude = *rec.Latitude
			ir.longitude = *rec.Longitude
		}

		offset := len(idx.scanList)
		idx.scanList = append(idx.scanList, ir)

		for _, key := range identifierIndexKeys(rec.AccountNumber) {
			if _, exists := idx.byIdentifier[key]; !exists {
				idx.byIdentifier[key] = offset
			}
		}

		if ir.canonical != "" {
			if _, exists := idx.byAddress[ir.canonical]; exists {
				idx.DuplicateAddresses++
			} else {
				idx.byAddress[ir.canonical] = offset
			}
		}
	}

	return idx
}

// Size returns the number of canonical records indexed
func (idx *CandidateIndex) Size() int {
	return len(idx.scanList)
}

// lookupIdentifier resolves a derived identifier to its canonical record
func (idx *CandidateIndex) lookupIdentifier(key string) (indexedRecord, bool) {
	if offset, ok := idx.byIdentifier[key]; ok {
		return idx.scanList[offset], true
	}
	return indexedRecord{}, false
}

// lookupAddress resolves a canonical address string to its canonical record
func (idx *CandidateIndex) lookupAddress(canonical string) (indexedRecord, bool) {
	if offset, ok := idx.byAddress[canonical]; ok {
		return idx.scanList[offset], true
	}
	return indexedRecord{}, false
}

// identifierIndexKeys derives the lookup keys a canonical account number is
// reachable under: its digit-run concatenation plus the zero-stripped form.
func identifierIndexKeys(account string) []string {
	runs := reDigitRun.FindAllString(account, -1)
	if len(runs) == 0 {
		trimmed := strings.TrimSpace(account)
		if trimmed == "" {
			return nil
		}
		return []string{trimmed}
	}

	concat := strings.Join(runs, "")
	keys := []string{concat}
	if stripped := strings.TrimLeft(concat, "0"); stripped != "" && stripped != concat {
		keys = append(keys, stripped)
	}
	return keys
}

// candidateIdentifiers derives the identifier strings to try for a source
// record, in lookup order: full concatenation of digit runs, each individual
// run, each run with leading zeros stripped, and for 3+ runs the tail run and
// the concatenation of all runs after the first.
func candidateIdentifiers(raw string) []string {
	runs := reDigitRun.FindAllString(raw, -1)
	if len(runs) == 0 {
		return nil
	}

	seen := make(map[string]bool)
	var out []string
	add := func(s string) {
		if s != "" && !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}

	add(strings.Join(runs, ""))
	for _, run := range runs {
		add(run)
	}
	for _, run := range runs {
		add(strings.TrimLeft(run, "0"))
	}
	if len(runs) >= 3 {
		add(runs[len(runs)-1])
		add(strings.Join(runs[1:], ""))
	}

	return out
}

// validCoordinates rejects non-finite or out-of-bounds coordinate pairs
func validCoordinates(lat, lng float64) bool {
	if math.IsNaN(lat) || math.IsInf(lat, 0) || math.IsNaN(lng) || math.IsInf(lng, 0) {
		return false
	}
	return lat >= -90 && lat <= 90 && lng >= -180 && lng <= 180
}
