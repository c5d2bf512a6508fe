package normalize

import (
	"strings"
)

// Components holds the structured parts of a canonical address
type Components struct {
	Number string // leading street number, "" when the address has none
	Street string // street name tokens joined by single spaces
	Suffix string // recognized street-type token, "" when absent
}

// Street-type tokens that terminate street-name accumulation
var suffixTokens = map[string]bool{
	"ST":   true,
	"AVE":  true,
	"BLVD": true,
	"DR":   true,
	"RD":   true,
	"LN":   true,
	"CT":   true,
	"PL":   true,
	"CIR":  true,
	"TRL":  true,
	"PKWY": true,
}

// ExtractComponents splits a canonical address into number, street name and
// suffix. The input is expected to already be canonical (see CanonicalAddress);
// raw strings can be passed but get no cleanup here.
func ExtractComponents(canonical string) Components {
	var c Components

	tokens := strings.Fields(canonical)
	if len(tokens) == 0 {
		return c
	}

	rest := tokens
	if reDigitsOnly.MatchString(tokens[0]) {
		c.Number = tokens[0]
		rest = tokens[1:]
	}

	var street []string
	for _, token := range rest {
		if suffixTokens[token] {
			c.Suffix = token
			break
		}
		street = append(street, token)
	}
	c.Street = strings.Join(street, " ")

	return c
}

// NumberComparable reports whether two component sets can be compared by
// street number. Both numbers must be present.
func NumberComparable(a, b Components) bool {
	return a.Number != "" && b.Number != ""
}
