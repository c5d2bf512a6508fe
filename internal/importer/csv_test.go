package importer

import (
	"strings"
	"testing"
)

func TestParseDisclosure(t *testing.T) {
	input := strings.Join([]string{
		"Record ID,Property Address,Lat,Long,Fire Sprinklers,Occupancy Class",
		"PB01-02745,7445 E Lancaster Ave,32.7767,-96.7970,true,B",
		"PB02-00001,223 White Settlement Rd,,,false,",
		",,,,,",
	}, "\n")

	records, stats, err := ParseDisclosure(strings.NewReader(input))
	if err != nil {
		t.Fatalf("ParseDisclosure error: %v", err)
	}

	if stats.Rows != 3 || stats.Parsed != 2 || stats.Skipped != 1 {
		t.Errorf("stats = %+v, want 3 rows, 2 parsed, 1 skipped", stats)
	}
	if len(records) != 2 {
		t.Fatalf("got %d records, want 2", len(records))
	}

	first := records[0]
	if first.Identifier != "PB01-02745" {
		t.Errorf("identifier = %q", first.Identifier)
	}
	if first.RawAddress != "7445 E Lancaster Ave" {
		t.Errorf("address = %q", first.RawAddress)
	}
	if first.Latitude == nil || *first.Latitude != 32.7767 {
		t.Errorf("latitude = %v, want 32.7767", first.Latitude)
	}
	if first.FieldUpdates["fire_sprinklers"] != "true" || first.FieldUpdates["occupancy_class"] != "B" {
		t.Errorf("field updates = %v", first.FieldUpdates)
	}

	second := records[1]
	if second.Latitude != nil || second.Longitude != nil {
		t.Error("blank coordinates should leave the pair unset")
	}
	if _, ok := second.FieldUpdates["occupancy_class"]; ok {
		t.Error("empty cells should not produce field updates")
	}
}

func TestParseDisclosureHeaderAliases(t *testing.T) {
	inputs := []string{
		"id,address\nA1,1 Main St",
		"Reference,Situs Address\nA1,1 Main St",
		"ACCOUNT,street_address\nA1,1 Main St",
	}

	for _, input := range inputs {
		records, _, err := ParseDisclosure(strings.NewReader(input))
		if err != nil {
			t.Fatalf("ParseDisclosure(%q) error: %v", input, err)
		}
		if len(records) != 1 || records[0].Identifier != "A1" || records[0].RawAddress != "1 Main St" {
			t.Errorf("ParseDisclosure(%q) = %+v", input, records)
		}
	}
}

func TestParseDisclosureNoUsableColumns(t *testing.T) {
	_, _, err := ParseDisclosure(strings.NewReader("foo,bar\n1,2"))
	if err == nil {
		t.Fatal("a file without identifier or address columns must fail")
	}
}

func TestParseDisclosureAddressOnly(t *testing.T) {
	records, _, err := ParseDisclosure(strings.NewReader("address\n7445 Lancaster Ave"))
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 1 || records[0].Identifier != "" {
		t.Errorf("records = %+v, want one record with empty identifier", records)
	}
}
