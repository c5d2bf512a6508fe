//go:build cgo

package main

import (
	"flag"
	"fmt"
	"log"
	"time"

	postal "github.com/openvenues/gopostal/parser"

	"github.com/Dcavise/SEEK-sub000/internal/importer"
	"github.com/Dcavise/SEEK-sub000/internal/normalize"
)

const version = "1.0.0"

// Diagnostic tool comparing the in-house canonicalizer against libpostal's
// statistical parser. Requires libpostal installed (cgo).
func main() {
	var (
		address = flag.String("address", "", "Single address to compare")
		file    = flag.String("file", "", "Disclosure CSV to compare in bulk")
		limit   = flag.Int("limit", 100, "Max records to compare from -file (0 = all)")
	)
	flag.Parse()

	fmt.Printf("SEEK libpostal comparison v%s\n\n", version)

	switch {
	case *address != "":
		compareOne(*address, true)
	case *file != "":
		compareFile(*file, *limit)
	default:
		fmt.Println("Usage:")
		fmt.Println("  libpostal-compare -address \"7445 East Lancaster Avenue\"")
		fmt.Println("  libpostal-compare -file disclosures.csv -limit 500")
	}
}

func compareOne(address string, verbose bool) (agree bool) {
	canonical := normalize.CanonicalAddress(address)

	components := postal.ParseAddress(address)
	var houseNumber, road string
	for _, c := range components {
		switch c.Label {
		case "house_number":
			houseNumber = c.Value
		case "road":
			road = c.Value
		}
	}
	libpostalView := normalize.CanonicalAddress(houseNumber + " " + road)

	agree = canonical != "" && canonical == libpostalView

	if verbose {
		fmt.Printf("Input:       %s\n", address)
		fmt.Printf("Canonical:   %q\n", canonical)
		fmt.Printf("libpostal:   house_number=%q road=%q -> %q\n", houseNumber, road, libpostalView)
		for _, c := range components {
			fmt.Printf("  %-20s %s\n", c.Label, c.Value)
		}
		if agree {
			fmt.Println("AGREE")
		} else {
			fmt.Println("DISAGREE")
		}
	}
	return agree
}

func compareFile(path string, limit int) {
	records, stats, err := importer.ParseDisclosureFile(path)
	if err != nil {
		log.Fatalf("Failed to parse %s: %v", path, err)
	}
	fmt.Printf("Comparing %d records (%d rows skipped)\n\n", stats.Parsed, stats.Skipped)

	start := time.Now()
	agreed, disagreed, skipped := 0, 0, 0
	for i, rec := range records {
		if limit > 0 && i >= limit {
			break
		}
		if normalize.IsBlank(rec.RawAddress) {
			skipped++
			continue
		}
		if compareOne(rec.RawAddress, false) {
			agreed++
		} else {
			disagreed++
			if disagreed <= 20 {
				fmt.Printf("DISAGREE: %s\n", rec.RawAddress)
			}
		}
	}

	total := agreed + disagreed
	fmt.Printf("\nCompared %d addresses in %v (%d skipped)\n", total, time.Since(start), skipped)
	if total > 0 {
		fmt.Printf("Agreement: %d/%d (%.1f%%)\n", agreed, total, float64(agreed)/float64(total)*100)
	}
}
