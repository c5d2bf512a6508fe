package matcher

import (
	"testing"
)

func floatPtr(v float64) *float64 { return &v }

func testCanonical() []CanonicalRecord {
	return []CanonicalRecord{
		{AccountNumber: "2745", SitusAddress: "7445 Lancaster Ave"},
		{AccountNumber: "10087", SitusAddress: "223 White Settlement Dr"},
		{AccountNumber: "55501", SitusAddress: "901 Rosedale St", Latitude: floatPtr(32.7767), Longitude: floatPtr(-96.7970)},
	}
}

func TestResolveIdentifierTier(t *testing.T) {
	idx := BuildIndex(testCanonical())
	r := NewResolver()

	// leading zeros in the disclosure identifier must not block the match
	res := r.Resolve(SourceRecord{Identifier: "PB01-02745", RawAddress: "nothing useful"}, idx)

	if res.Tier != TierIdentifier {
		t.Fatalf("tier = %s, want %s", res.Tier, TierIdentifier)
	}
	if res.MatchedAccount != "2745" {
		t.Errorf("account = %s, want 2745", res.MatchedAccount)
	}
	if res.Confidence != 100 {
		t.Errorf("confidence = %.1f, want 100", res.Confidence)
	}
	if res.RequiresManualReview {
		t.Error("identifier matches never require review")
	}
}

// The disclosure's field updates ride along on the result so the review
// workflow can apply them without re-reading the source file.
func TestResolveCarriesFieldUpdates(t *testing.T) {
	idx := BuildIndex(testCanonical())
	r := NewResolver()
	updates := map[string]string{"fire_sprinklers": "true"}

	res := r.Resolve(SourceRecord{Identifier: "2745", RawAddress: "nothing useful", FieldUpdates: updates}, idx)
	if res.FieldUpdates["fire_sprinklers"] != "true" {
		t.Errorf("matched result field updates = %v, want the source's", res.FieldUpdates)
	}

	res = r.Resolve(SourceRecord{Identifier: "NO-MATCH", RawAddress: "parking garage", FieldUpdates: updates}, idx)
	if res.Tier != TierNone {
		t.Fatalf("tier = %s, want %s", res.Tier, TierNone)
	}
	if res.FieldUpdates["fire_sprinklers"] != "true" {
		t.Errorf("unmatched result field updates = %v, want the source's", res.FieldUpdates)
	}
}

// A record whose identifier resolves must report the identifier tier even
// when its address would also match exactly.
func TestResolveTierPriority(t *testing.T) {
	idx := BuildIndex(testCanonical())
	r := NewResolver()

	res := r.Resolve(SourceRecord{Identifier: "2745", RawAddress: "7445 Lancaster Ave"}, idx)

	if res.Tier != TierIdentifier {
		t.Errorf("tier = %s, want %s (higher tiers must win)", res.Tier, TierIdentifier)
	}
	if res.Confidence != 100 {
		t.Errorf("confidence = %.1f, want 100", res.Confidence)
	}
}

func TestResolveAddressTier(t *testing.T) {
	idx := BuildIndex(testCanonical())
	r := NewResolver()

	// the directional is stripped by normalization on both sides
	res := r.Resolve(SourceRecord{Identifier: "SRC-A", RawAddress: "7445 E LANCASTER AVE"}, idx)

	if res.Tier != TierAddress {
		t.Fatalf("tier = %s, want %s", res.Tier, TierAddress)
	}
	if res.MatchedAccount != "2745" {
		t.Errorf("account = %s, want 2745", res.MatchedAccount)
	}
	if res.Confidence != 95 {
		t.Errorf("confidence = %.1f, want 95", res.Confidence)
	}
	if res.RequiresManualReview {
		t.Error("normalized-address matches never require review")
	}
	if res.MatchedAddress != "7445 Lancaster Ave" {
		t.Errorf("matched address = %q", res.MatchedAddress)
	}
}

func TestResolveStructuralTier(t *testing.T) {
	idx := BuildIndex(testCanonical())
	r := NewResolver()

	tests := []struct {
		name           string
		address        string
		wantTier       Tier
		wantAccount    string
		wantConfidence float64
	}{
		{
			// suffix differs so the exact tier misses; street names are identical
			name:           "same street different suffix",
			address:        "223 White Settlement Road",
			wantTier:       TierStructural,
			wantAccount:    "10087",
			wantConfidence: 100,
		},
		{
			// one trailing character of drift, similarity exactly 0.90
			name:           "near identical street name",
			address:        "7445 Lancasters Ave",
			wantTier:       TierStructural,
			wantAccount:    "2745",
			wantConfidence: 95,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := r.Resolve(SourceRecord{Identifier: "SRC-B", RawAddress: tt.address}, idx)
			if res.Tier != tt.wantTier {
				t.Fatalf("tier = %s, want %s", res.Tier, tt.wantTier)
			}
			if res.MatchedAccount != tt.wantAccount {
				t.Errorf("account = %s, want %s", res.MatchedAccount, tt.wantAccount)
			}
			if res.Confidence != tt.wantConfidence {
				t.Errorf("confidence = %.1f, want %.1f", res.Confidence, tt.wantConfidence)
			}
			if res.RequiresManualReview {
				t.Error("structural matches at confidence >= 95 do not require review")
			}
		})
	}
}

// Different street numbers must never match structurally, no matter how
// similar the street names are.
func TestResolveStructuralNumberGuard(t *testing.T) {
	idx := BuildIndex([]CanonicalRecord{
		{AccountNumber: "1", SitusAddress: "7445 Lancaster Ave"},
	})
	r := NewResolver()

	res := r.Resolve(SourceRecord{Identifier: "SRC-C", RawAddress: "223 Lancaster Boulevard"}, idx)

	if res.Tier != TierNone {
		t.Errorf("tier = %s, want %s despite identical street name", res.Tier, TierNone)
	}
}

func TestResolveUnmatchable(t *testing.T) {
	idx := BuildIndex(testCanonical())
	r := NewResolver()

	res := r.Resolve(SourceRecord{Identifier: "NO-DIGITS", RawAddress: "#7166 XTO PARKING GARAGE"}, idx)

	if res.Tier != TierNone {
		t.Fatalf("tier = %s, want %s", res.Tier, TierNone)
	}
	if res.Confidence != 0 {
		t.Errorf("confidence = %.1f, want 0", res.Confidence)
	}
	if !res.RequiresManualReview {
		t.Error("unmatched results always require review")
	}
	if res.MatchedAccount != "" {
		t.Errorf("account = %q, want empty", res.MatchedAccount)
	}
	if res.OriginalAddress != "#7166 XTO PARKING GARAGE" {
		t.Errorf("original address not preserved: %q", res.OriginalAddress)
	}
}

func TestResolveSpatial(t *testing.T) {
	idx := BuildIndex(testCanonical())
	r := NewResolver()

	// roughly 30 meters due north of the candidate at account 55501
	source := SourceRecord{
		Identifier: "GEO-1",
		RawAddress: "unparseable",
		Latitude:   floatPtr(32.7767 + 30.0/111320.0),
		Longitude:  floatPtr(-96.7970),
	}

	res := r.ResolveSpatial(source, idx)

	if res.Tier != TierSpatial {
		t.Fatalf("tier = %s, want %s", res.Tier, TierSpatial)
	}
	if res.MatchedAccount != "55501" {
		t.Errorf("account = %s, want 55501", res.MatchedAccount)
	}
	// 30m of 50m threshold gives confidence 40
	if res.Confidence < 39 || res.Confidence > 41 {
		t.Errorf("confidence = %.2f, want ~40", res.Confidence)
	}
	if !res.RequiresManualReview {
		t.Error("spatial matches below confidence 100 require review")
	}
}

func TestResolveSpatialNoCoordinates(t *testing.T) {
	idx := BuildIndex(testCanonical())
	r := NewResolver()

	res := r.ResolveSpatial(SourceRecord{Identifier: "GEO-2", RawAddress: "7445 Lancaster Ave"}, idx)
	if res.Tier != TierNone {
		t.Errorf("tier = %s, want %s for a source without coordinates", res.Tier, TierNone)
	}

	// malformed coordinates are excluded, not fatal
	res = r.ResolveSpatial(SourceRecord{
		Identifier: "GEO-3",
		Latitude:   floatPtr(230.0),
		Longitude:  floatPtr(-96.7970),
	}, idx)
	if res.Tier != TierNone {
		t.Errorf("tier = %s, want %s for out-of-bounds coordinates", res.Tier, TierNone)
	}
}

func TestResolveSpatialBeyondThreshold(t *testing.T) {
	idx := BuildIndex(testCanonical())
	r := NewResolver()

	// roughly 5km away
	res := r.ResolveSpatial(SourceRecord{
		Identifier: "GEO-4",
		Latitude:   floatPtr(32.82),
		Longitude:  floatPtr(-96.7970),
	}, idx)

	if res.Tier != TierNone {
		t.Errorf("tier = %s, want %s beyond the distance threshold", res.Tier, TierNone)
	}
}

func TestResolveNilIndexPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("Resolve with nil index should panic")
		}
	}()
	NewResolver().Resolve(SourceRecord{Identifier: "X"}, nil)
}

func TestStreetSimilarity(t *testing.T) {
	tests := []struct {
		a, b string
		want float64
	}{
		{"LANCASTER", "LANCASTER", 1.0},
		{"LANCASTER", "LANCASTERS", 0.9},
		{"", "", 1.0},
		{"LANCASTER", "", 0.0},
	}

	for _, tt := range tests {
		got := streetSimilarity(tt.a, tt.b)
		if diff := got - tt.want; diff > 1e-9 || diff < -1e-9 {
			t.Errorf("streetSimilarity(%q, %q) = %.4f, want %.4f", tt.a, tt.b, got, tt.want)
		}
		if sym := streetSimilarity(tt.b, tt.a); sym != got {
			t.Errorf("streetSimilarity not symmetric for %q/%q", tt.a, tt.b)
		}
	}
}

func TestHaversineMeters(t *testing.T) {
	// identical points
	if d := haversineMeters(32.7767, -96.7970, 32.7767, -96.7970); d != 0 {
		t.Errorf("distance between identical points = %f, want 0", d)
	}

	// one degree of latitude is about 111.2km
	d := haversineMeters(32.0, -96.0, 33.0, -96.0)
	if d < 110000 || d > 112500 {
		t.Errorf("one degree latitude = %.0fm, want ~111200m", d)
	}
}
