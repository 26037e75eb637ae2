package cmd

import (
	"strings"
	"testing"
)

const wormsSample = "Octopus vulgaris\tOctopus\tAnimalia\tMollusca\tCephalopoda\tOctopoda\tOctopodidae\tOctopus\t\tvulgaris\n" +
	"Octopus maya\tOctopus\tAnimalia\tMollusca\tCephalopoda\tOctopoda\tWrongidae\tOctopus\t\tmaya\n" +
	"short line\twithout\tenough\tcolumns\n" +
	"Sepia officinalis\tSepia\tAnimalia\tMollusca\tCephalopoda\tSepiida\tSepiidae\tSepia\t\tofficinalis\n"

func TestParseWorms(t *testing.T) {
	db, err := parseWorms(strings.NewReader(wormsSample))
	if err != nil {
		t.Fatal(err)
	}
	if len(db.genera) != 2 {
		t.Fatalf("loaded %d genera, want 2", len(db.genera))
	}

	lin, ok := db.lookupGenus(candidate{genus: "Octopus", species: "vulgaris"})
	if !ok {
		t.Fatal("expected octopus genus")
	}
	// First occurrence per genus wins.
	if lin.Family != "Octopodidae" {
		t.Errorf("family = %q, want Octopodidae from the first row", lin.Family)
	}
	if lin.Phylum != "Mollusca" || lin.Domain != "Animalia" {
		t.Errorf("phylum/domain = %q/%q, want Mollusca/Animalia", lin.Phylum, lin.Domain)
	}
	if lin.Species != "Octopus vulgaris" {
		t.Errorf("species = %q, want Octopus vulgaris", lin.Species)
	}

	if _, ok := db.lookupGenus(candidate{genus: "Nautilus"}); ok {
		t.Error("unknown genus must miss")
	}
}
