package importer

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/Dcavise/SEEK-sub000/internal/matcher"
	"github.com/Dcavise/SEEK-sub000/internal/normalize"
)

// Disclosure files arrive with inconsistent header spellings; each canonical
// column accepts several aliases.
var identifierHeaders = []string{"record_id", "identifier", "id", "reference", "permit_number", "account", "account_number"}
var addressHeaders = []string{"address", "situs_address", "property_address", "street_address", "situs"}
var latitudeHeaders = []string{"latitude", "lat"}
var longitudeHeaders = []string{"longitude", "lng", "lon", "long"}

// ParseStats reports how a disclosure file parsed
type ParseStats struct {
	Rows    int
	Parsed  int
	Skipped int
}

// ParseDisclosureFile reads a disclosure CSV from disk
func ParseDisclosureFile(path string) ([]matcher.SourceRecord, *ParseStats, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open disclosure file: %w", err)
	}
	defer f.Close()

	return ParseDisclosure(f)
}

// ParseDisclosure reads disclosure rows into source records. Rows that lack
// both an identifier and an address are skipped and counted, never fatal;
// unparseable coordinates just leave the record without a coordinate pair.
func ParseDisclosure(r io.Reader) ([]matcher.SourceRecord, *ParseStats, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read disclosure header: %w", err)
	}

	columns := make([]string, len(header))
	for i, h := range header {
		columns[i] = normalizeHeader(h)
	}

	idCol := findColumn(columns, identifierHeaders)
	addrCol := findColumn(columns, addressHeaders)
	latCol := findColumn(columns, latitudeHeaders)
	lngCol := findColumn(columns, longitudeHeaders)

	if idCol < 0 && addrCol < 0 {
		return nil, nil, fmt.Errorf("disclosure file has neither an identifier nor an address column (headers: %s)", strings.Join(header, ", "))
	}

	reserved := map[int]bool{idCol: true, addrCol: true, latCol: true, lngCol: true}

	stats := &ParseStats{}
	var records []matcher.SourceRecord
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			stats.Rows++
			stats.Skipped++
			continue
		}
		stats.Rows++

		rec := matcher.SourceRecord{
			Identifier: cell(row, idCol),
			RawAddress: cell(row, addrCol),
		}
		if rec.Identifier == "" && rec.RawAddress == "" {
			stats.Skipped++
			continue
		}

		if lat, err := normalize.ParseFloat(cell(row, latCol)); err == nil {
			if lng, err := normalize.ParseFloat(cell(row, lngCol)); err == nil {
				rec.Latitude = &lat
				rec.Longitude = &lng
			}
		}

		// remaining columns carry the field updates to apply on success
		for i, value := range row {
			if i >= len(columns) || reserved[i] {
				continue
			}
			value = strings.TrimSpace(value)
			if value == "" {
				continue
			}
			if rec.FieldUpdates == nil {
				rec.FieldUpdates = make(map[string]string)
			}
			rec.FieldUpdates[columns[i]] = value
		}

		records = append(records, rec)
		stats.Parsed++
	}

	return records, stats, nil
}

func normalizeHeader(h string) string {
	h = strings.ToLower(strings.TrimSpace(h))
	h = strings.ReplaceAll(h, " ", "_")
	h = strings.ReplaceAll(h, "-", "_")
	return h
}

func findColumn(columns []string, aliases []string) int {
	for _, alias := range aliases {
		for i, col := range columns {
			if col == alias {
				return i
			}
		}
	}
	return -1
}

func cell(row []string, col int) string {
	if col < 0 || col >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[col])
}
