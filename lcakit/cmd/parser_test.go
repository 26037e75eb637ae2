package cmd

import "testing"

func TestCandidatePairs(t *testing.T) {
	pairs := candidatePairs("Seriola dumerili", "Seriola dumerili voucher ABC-123 cytochrome b")
	if len(pairs) == 0 {
		t.Fatal("expected candidates for a plain binomial")
	}
	if pairs[0].genus != "Seriola" || pairs[0].species != "dumerili" {
		t.Errorf("first pair = %+v, want Seriola/dumerili", pairs[0])
	}
}

func TestCandidatePairsNoBinomial(t *testing.T) {
	// lowercase tokens never start a candidate
	pairs := candidatePairs("uncultured organism", "uncultured eukaryote clone x17")
	if len(pairs) != 0 {
		t.Errorf("expected no candidates, got %v", pairs)
	}
}

func TestCandidatePairsFamilyPlaceholder(t *testing.T) {
	// "Carangidae sp." parses to a candidate pair, but only lookup
	// decides genushood; the parser passes it through untouched.
	pairs := candidatePairs("Carangidae sp.", "")
	if len(pairs) != 1 {
		t.Fatalf("expected one candidate, got %d", len(pairs))
	}
	if pairs[0].genus != "Carangidae" || pairs[0].species != "sp." {
		t.Errorf("pair = %+v, want raw Carangidae/sp.", pairs[0])
	}
}

func TestCandidatePairsAbbreviatedGenusNotNormalized(t *testing.T) {
	pairs := candidatePairs("H. sapiens", "")
	if len(pairs) != 1 {
		t.Fatalf("expected one candidate, got %d", len(pairs))
	}
	if pairs[0].genus != "H." {
		t.Errorf("abbreviated genus must pass through raw, got %q", pairs[0].genus)
	}
}

func TestCandidatePairsScanOrder(t *testing.T) {
	pairs := candidatePairs("", "PREDICTED: Thunnus albacares mitochondrion")
	if len(pairs) < 2 {
		t.Fatalf("expected pairs for both capitalized tokens, got %d", len(pairs))
	}
	if pairs[0].genus != "PREDICTED:" {
		t.Errorf("scan must be left to right, first genus token = %q", pairs[0].genus)
	}
	if pairs[1].genus != "Thunnus" || pairs[1].species != "albacares" {
		t.Errorf("second pair = %+v, want Thunnus/albacares", pairs[1])
	}
}

func TestCorrectionsApply(t *testing.T) {
	fixes, err := loadCorrections("")
	if err != nil {
		t.Fatal(err)
	}
	got := fixes.apply("q1\tPetroschmidtia albonotatus voucher X")
	if got != "q1\tPetroschmidtia albonotata voucher X" {
		t.Errorf("correction not applied: %q", got)
	}
}
