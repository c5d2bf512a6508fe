package matcher

import (
	"context"
	"reflect"
	"testing"
)

func batchSources() []SourceRecord {
	return []SourceRecord{
		{Identifier: "PB01-02745", RawAddress: "7445 Lancaster Ave"},
		{Identifier: "SRC-A", RawAddress: "223 White Settlement Dr"},
		{Identifier: "SRC-B", RawAddress: "#100 CITY PARKING GARAGE"},
		{Identifier: "SRC-C", RawAddress: "9999 Nowhere Blvd"},
	}
}

func TestRunBatch(t *testing.T) {
	r := NewResolver()

	results, stats, err := r.RunBatch(context.Background(), batchSources(), testCanonical(), BatchOptions{Workers: 2})
	if err != nil {
		t.Fatalf("RunBatch error: %v", err)
	}

	if len(results) != 4 {
		t.Fatalf("got %d results, want 4 (a batch of N records always produces N results)", len(results))
	}

	// results come back in input order regardless of worker scheduling
	wantOrder := []string{"PB01-02745", "SRC-A", "SRC-B", "SRC-C"}
	for i, want := range wantOrder {
		if results[i].SourceIdentifier != want {
			t.Errorf("results[%d] = %s, want %s", i, results[i].SourceIdentifier, want)
		}
	}

	if results[0].Tier != TierIdentifier {
		t.Errorf("results[0].Tier = %s, want %s", results[0].Tier, TierIdentifier)
	}
	if results[1].Tier != TierAddress {
		t.Errorf("results[1].Tier = %s, want %s", results[1].Tier, TierAddress)
	}
	if results[2].Tier != TierNone || results[3].Tier != TierNone {
		t.Error("unmatchable and unknown addresses must resolve to tier none")
	}

	if stats.Total != 4 || stats.Matched != 2 || stats.Unmatched != 2 {
		t.Errorf("stats = %+v, want total 4, matched 2, unmatched 2", stats)
	}
	if stats.TierCounts[TierIdentifier] != 1 || stats.TierCounts[TierAddress] != 1 || stats.TierCounts[TierNone] != 2 {
		t.Errorf("tier counts = %v", stats.TierCounts)
	}
	// (100 + 95) / 2
	if stats.AverageConfidence != 97.5 {
		t.Errorf("average confidence = %.2f, want 97.5", stats.AverageConfidence)
	}
	if stats.ManualReviewCount != 2 {
		t.Errorf("manual review count = %d, want 2", stats.ManualReviewCount)
	}
	if stats.RunID == "" {
		t.Error("stats should carry a run ID")
	}
}

// Debug output and timing must not change the run's outcome
func TestRunBatchDebugEnabled(t *testing.T) {
	r := NewResolver()

	results, stats, err := r.RunBatch(context.Background(), batchSources(), testCanonical(), BatchOptions{Workers: 1, Debug: true})
	if err != nil {
		t.Fatalf("RunBatch error: %v", err)
	}
	if len(results) != 4 || stats.Matched != 2 {
		t.Errorf("got %d results, %d matched; want 4 and 2", len(results), stats.Matched)
	}
}

// Two runs over the same inputs must produce identical results even under
// parallel execution.
func TestRunBatchDeterministic(t *testing.T) {
	r := NewResolver()

	first, _, err := r.RunBatch(context.Background(), batchSources(), testCanonical(), BatchOptions{Workers: 4})
	if err != nil {
		t.Fatal(err)
	}
	second, _, err := r.RunBatch(context.Background(), batchSources(), testCanonical(), BatchOptions{Workers: 1})
	if err != nil {
		t.Fatal(err)
	}

	if !reflect.DeepEqual(first, second) {
		t.Errorf("parallel and serial runs differ:\n%+v\n%+v", first, second)
	}
}

func TestRunBatchSpatial(t *testing.T) {
	r := NewResolver()

	sources := []SourceRecord{
		{Identifier: "GEO-1", Latitude: floatPtr(32.7767), Longitude: floatPtr(-96.7970)},
		{Identifier: "GEO-2"},
	}

	results, stats, err := r.RunBatch(context.Background(), sources, testCanonical(), BatchOptions{Spatial: true})
	if err != nil {
		t.Fatal(err)
	}

	if results[0].Tier != TierSpatial || results[0].MatchedAccount != "55501" {
		t.Errorf("results[0] = %+v, want spatial match on 55501", results[0])
	}
	if results[0].Confidence != 100 {
		t.Errorf("confidence at zero distance = %.1f, want 100", results[0].Confidence)
	}
	if results[1].Tier != TierNone {
		t.Errorf("results[1].Tier = %s, want none without coordinates", results[1].Tier)
	}
	if stats.Matched != 1 {
		t.Errorf("stats.Matched = %d, want 1", stats.Matched)
	}
}

func TestRunBatchCancellation(t *testing.T) {
	r := NewResolver()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results, stats, err := r.RunBatch(ctx, batchSources(), testCanonical(), BatchOptions{Workers: 1})
	if err == nil {
		t.Fatal("cancelled run should return the context error")
	}

	// partial results remain valid and stats cover what was computed
	if len(results) > len(batchSources()) {
		t.Errorf("got %d results for %d sources", len(results), len(batchSources()))
	}
	if stats.Total != len(results) {
		t.Errorf("stats.Total = %d, want %d", stats.Total, len(results))
	}
}

// An all-unmatched batch is a reportable outcome, not an engine failure.
func TestRunBatchZeroMatchRate(t *testing.T) {
	r := NewResolver()

	sources := []SourceRecord{
		{Identifier: "X", RawAddress: "PARKING LOT"},
		{Identifier: "Y", RawAddress: ""},
	}

	results, stats, err := r.RunBatch(context.Background(), sources, testCanonical(), BatchOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}
	if stats.Matched != 0 || stats.Unmatched != 2 || stats.AverageConfidence != 0 {
		t.Errorf("stats = %+v, want all unmatched with zero average confidence", stats)
	}
}
