package normalize

import (
	"testing"
)

func TestCanonicalAddress(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "simple address",
			input: "7445 Lancaster Ave",
			want:  "7445 LANCASTER AVE",
		},
		{
			name:  "directional after street number",
			input: "7445 E Lancaster Ave",
			want:  "7445 LANCASTER AVE",
		},
		{
			name:  "full street type expansion",
			input: "7445 E LANCASTER AVENUE",
			want:  "7445 LANCASTER AVE",
		},
		{
			name:  "suite fragment stripped",
			input: "100 Main Street STE 200",
			want:  "100 MAIN ST",
		},
		{
			name:  "hash unit stripped",
			input: "500 Commerce St #7166",
			want:  "500 COMMERCE ST",
		},
		{
			name:  "unit letter stripped",
			input: "42 Oak Dr Unit B",
			want:  "42 OAK DR",
		},
		{
			name:  "trailing directional removed",
			input: "901 Rosedale St S",
			want:  "901 ROSEDALE ST",
		},
		{
			name:  "leading directional without number removed",
			input: "N Beach Street",
			want:  "BEACH ST",
		},
		{
			name:  "punctuation stripped",
			input: "1201 W. Berry St.",
			want:  "1201 BERRY ST",
		},
		{
			name:  "farm to market road",
			input: "10100 Farm To Market Road 1902",
			want:  "10100 FM 1902",
		},
		{
			name:  "loop abbreviation and directional word after number",
			input: "4200 South Loop 820",
			want:  "4200 LP 820",
		},
		{
			name:  "whitespace collapsed",
			input: "  7445   LANCASTER   AVE  ",
			want:  "7445 LANCASTER AVE",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CanonicalAddress(tt.input)
			if got != tt.want {
				t.Errorf("CanonicalAddress(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestCanonicalAddressUnmatchable(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"empty", ""},
		{"whitespace only", "   "},
		{"parking garage", "#7166 XTO PARKING GARAGE"},
		{"parking lot", "CITY CENTER PARKING LOT"},
		{"shopping center", "RIDGMAR SHOPPING CENTER"},
		{"mall as whole name", "NORTH EAST MALL"},
		{"plaza as whole name", "BURNETT PLAZA"},
		{"purely numeric", "76102"},
		{"single token", "LANCASTER"},
		{"directional collapses below two tokens", "E LANCASTER"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CanonicalAddress(tt.input); got != "" {
				t.Errorf("CanonicalAddress(%q) = %q, want empty", tt.input, got)
			}
		})
	}
}

// Differently formatted inputs that describe the same address must
// canonicalize identically.
func TestCanonicalAddressEquivalence(t *testing.T) {
	pairs := []struct {
		a, b string
	}{
		{"7445 E Lancaster Ave", "7445 LANCASTER AVENUE"},
		{"100 Main Street, Ste 200", "100 MAIN ST"},
		{"1201 W. Berry St.", "1201 Berry Street"},
		{"42 Oak Drive Unit B", "42 OAK DR"},
	}

	for _, p := range pairs {
		ca, cb := CanonicalAddress(p.a), CanonicalAddress(p.b)
		if ca == "" || ca != cb {
			t.Errorf("CanonicalAddress(%q) = %q, CanonicalAddress(%q) = %q; want equal non-empty", p.a, ca, p.b, cb)
		}
	}
}

// Running the pipeline over its own output must be a no-op.
func TestCanonicalAddressIdempotent(t *testing.T) {
	inputs := []string{
		"7445 E Lancaster Ave Suite 300",
		"10100 Farm to Market Road 1902",
		"1201 W. Berry St.",
	}

	for _, input := range inputs {
		once := CanonicalAddress(input)
		if once == "" {
			t.Fatalf("CanonicalAddress(%q) unexpectedly empty", input)
		}
		twice := CanonicalAddress(once)
		if twice != once {
			t.Errorf("CanonicalAddress not idempotent: %q -> %q -> %q", input, once, twice)
		}
	}
}

func TestIsBlank(t *testing.T) {
	if !IsBlank("#100 PARKING GARAGE") {
		t.Error("IsBlank should be true for unmatchable input")
	}
	if IsBlank("7445 Lancaster Ave") {
		t.Error("IsBlank should be false for a valid street address")
	}
}
