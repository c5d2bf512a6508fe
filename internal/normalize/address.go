package normalize

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"github.com/Dcavise/SEEK-sub000/internal/debug"
)

// ParseFloat converts string to float64, tolerating surrounding whitespace
func ParseFloat(s string) (float64, error) {
	trimmed := strings.TrimSpace(s)
	return strconv.ParseFloat(trimmed, 64)
}

// AbbrevRules maps full street-type words to the abbreviated forms the
// parcel registry stores. Multi-word rules must run before single-word ones,
// so the table is ordered.
type AbbrevRules struct {
	rules []abbrevRule
}

type abbrevRule struct {
	re     *regexp.Regexp
	abbrev string
}

// NewAbbrevRules creates the Texas street-type abbreviation rules
func NewAbbrevRules() *AbbrevRules {
	patterns := []struct {
		pattern string
		abbrev  string
	}{
		{`\bFARM\s+TO\s+MARKET(?:\s+(?:ROAD|RD))?\b`, "FM"},
		{`\bSTREET\b`, "ST"},
		{`\bAVENUE\b`, "AVE"},
		{`\bBOULEVARD\b`, "BLVD"},
		{`\bDRIVE\b`, "DR"},
		{`\bROAD\b`, "RD"},
		{`\bLANE\b`, "LN"},
		{`\bCOURT\b`, "CT"},
		{`\bPLACE\b`, "PL"},
		{`\bCIRCLE\b`, "CIR"},
		{`\bTRAIL\b`, "TRL"},
		{`\bPARKWAY\b`, "PKWY"},
		{`\bHIGHWAY\b`, "HWY"},
		{`\bEXPRESSWAY\b`, "EXPY"},
		{`\bFREEWAY\b`, "FWY"},
		{`\bTERRACE\b`, "TER"},
		{`\bSQUARE\b`, "SQ"},
		{`\bLOOP\b`, "LP"},
	}

	rules := make([]abbrevRule, 0, len(patterns))
	for _, p := range patterns {
		rules = append(rules, abbrevRule{re: regexp.MustCompile(p.pattern), abbrev: p.abbrev})
	}

	return &AbbrevRules{rules: rules}
}

// Abbreviate applies street-type abbreviation rules to text
func (ar *AbbrevRules) Abbreviate(text string) string {
	result := text
	for _, rule := range ar.rules {
		result = rule.re.ReplaceAllString(result, rule.abbrev)
	}
	return result
}

var defaultAbbrevRules = NewAbbrevRules()

// Unit designator followed by an alphanumeric token (STE 200, UNIT B, FL 2)
var reUnitDesignator = regexp.MustCompile(`\b(?:STE|SUITE|UNIT|APT|APARTMENT|FL|FLOOR|BLDG|BUILDING|RM|ROOM)\.?\s+[0-9A-Z][0-9A-Z-]*\b`)

// Hash-style unit fragments (#7166, # B)
var reUnitHash = regexp.MustCompile(`#\s*[0-9A-Z][0-9A-Z-]*`)

// Strings that describe a facility rather than a street address
var nonStreetPatterns = []*regexp.Regexp{
	regexp.MustCompile(`\bPARKING\s+(?:GARAGE|LOT)\b`),
	regexp.MustCompile(`\bSHOPPING\s+(?:CENTER|CENTRE|CTR)\b`),
	regexp.MustCompile(`^(?:[A-Z]+\s+)*MALL\b\s*$`),
	regexp.MustCompile(`^(?:[A-Z]+\s+)*PLAZA\b\s*$`),
}

const directionalAlt = `(?:N|S|E|W|NE|NW|SE|SW|NORTH|SOUTH|EAST|WEST)`

var (
	reDirAfterNumber = regexp.MustCompile(`^(\d+[A-Z]?)\s+` + directionalAlt + `\.?(?:\s+|$)`)
	reDirTrailing    = regexp.MustCompile(`\s+` + directionalAlt + `\.?\s*$`)
	reDirLeading     = regexp.MustCompile(`^` + directionalAlt + `\.?\s+`)
)

var reDigitsOnly = regexp.MustCompile(`^\d+$`)

// CanonicalAddress normalizes a raw situs or disclosure address to the
// canonical form used for exact matching. Returns "" when the input cannot
// represent a matchable street address.
func CanonicalAddress(raw string) string {
	return CanonicalAddressDebug(false, raw)
}

// CanonicalAddressDebug normalizes an address with optional debug output
func CanonicalAddressDebug(localDebug bool, raw string) string {
	debug.DebugHeader(localDebug)
	defer debug.DebugFooter(localDebug)

	if strings.TrimSpace(raw) == "" {
		return ""
	}

	// Step 1: uppercase, trim, collapse whitespace
	s := strings.ToUpper(strings.TrimSpace(raw))
	s = strings.Join(strings.Fields(s), " ")
	debug.DebugOutput(localDebug, "Input: %s", s)

	// Step 2: strip suite/unit/floor/building fragments
	s = reUnitDesignator.ReplaceAllString(s, " ")
	s = reUnitHash.ReplaceAllString(s, " ")
	s = strings.Join(strings.Fields(s), " ")
	debug.DebugOutput(localDebug, "After unit stripping: %s", s)

	// Step 3: reject facility descriptions that are not street addresses
	for _, re := range nonStreetPatterns {
		if re.MatchString(s) {
			debug.DebugOutput(localDebug, "Rejected non-street address: %s", s)
			return ""
		}
	}

	// Step 4: remove directionals (after leading number, trailing, bare leading)
	s = reDirAfterNumber.ReplaceAllString(s, "$1 ")
	s = reDirTrailing.ReplaceAllString(s, "")
	if len(s) > 0 && !unicode.IsDigit(rune(s[0])) {
		s = reDirLeading.ReplaceAllString(s, "")
	}
	s = strings.TrimSpace(s)
	debug.DebugOutput(localDebug, "After directional removal: %s", s)

	// Step 5: abbreviate street types
	s = defaultAbbrevRules.Abbreviate(s)
	debug.DebugOutput(localDebug, "After street-type abbreviation: %s", s)

	// Step 6: remove punctuation but preserve spaces
	b := strings.Builder{}
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r) {
			b.WriteRune(r)
		} else {
			b.WriteRune(' ')
		}
	}
	s = strings.Join(strings.Fields(b.String()), " ")
	debug.DebugOutput(localDebug, "After punctuation removal: %s", s)

	// Step 7: a matchable street address needs at least a number and a name
	tokens := strings.Fields(s)
	if len(tokens) < 2 {
		debug.DebugOutput(localDebug, "Rejected: fewer than two tokens")
		return ""
	}
	if reDigitsOnly.MatchString(strings.Join(tokens, "")) {
		debug.DebugOutput(localDebug, "Rejected: purely numeric")
		return ""
	}

	debug.DebugOutput(localDebug, "Final canonical: %s", s)
	return s
}

// IsBlank checks if an address is effectively blank after normalization
func IsBlank(addr string) bool {
	return CanonicalAddress(addr) == ""
}
