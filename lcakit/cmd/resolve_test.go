package cmd

import "testing"

func testFishbase() *fishbaseDB {
	return &fishbaseDB{
		genera: map[string]Lineage{
			"seriola": {Class: "Actinopteri", Order: "Carangiformes", Family: "Carangidae", Genus: "Seriola"},
		},
		accepted: map[int64]string{
			1001: "Seriola dumerili",
		},
		synonyms: map[string]int64{
			"zonichthys fasciatus": 1001,
		},
	}
}

func testWorms() *wormsDB {
	return &wormsDB{
		genera: map[string]Lineage{
			"octopus": {Domain: "Animalia", Phylum: "Mollusca", Class: "Cephalopoda", Order: "Octopoda", Family: "Octopodidae", Genus: "Octopus"},
			// Also known to worms, but fishbase must win for it.
			"seriola": {Domain: "Animalia", Phylum: "Chordata", Class: "Teleostei", Order: "Carangiformes", Family: "Carangidae", Genus: "Seriola"},
		},
	}
}

func testTaxdump() *taxDump {
	dump := &taxDump{
		nodes: map[int]taxNode{
			1:    {parent: 1, rank: "no rank", name: "root"},
			2759: {parent: 1, rank: "superkingdom", name: "Eukaryota"},
			7711: {parent: 2759, rank: "phylum", name: "Chordata"},
			8030: {parent: 7711, rank: "family", name: "Carangidae"},
		},
		cache: make(map[int]Lineage),
		alias: map[string]string{"superkingdom": "domain"},
	}
	return dump
}

func testRow(query, sciNames, title, taxids string) blastRow {
	return blastRow{
		Query:     query,
		Accession: "ACC123",
		TaxIDs:    taxids,
		SciNames:  sciNames,
		Title:     title,
		Pident:    99.0,
		Coverage:  100.0,
	}
}

func TestResolveFishbaseFirst(t *testing.T) {
	r := newResolver(testFishbase(), testWorms(), testTaxdump(), true)

	hit, ok := r.resolve(testRow("q1", "Seriola dumerili", "Seriola dumerili isolate A", "8240"))
	if !ok {
		t.Fatal("expected a resolved hit")
	}
	if hit.source != SourceFishbase {
		t.Errorf("source = %s, want fishbase (waterfall priority)", hit.source)
	}
	if hit.lineage.Species != "Seriola dumerili" {
		t.Errorf("species = %q, want Seriola dumerili", hit.lineage.Species)
	}
	if hit.lineage.Class != "Actinopteri" {
		t.Errorf("class = %q: lineage fragments must come from one source only", hit.lineage.Class)
	}
	if hit.adjusted != 99.0 {
		t.Errorf("adjusted = %v, want 99.0 at full coverage", hit.adjusted)
	}
}

func TestResolveSynonymRewritesToAcceptedName(t *testing.T) {
	r := newResolver(testFishbase(), nil, nil, true)

	hit, ok := r.resolve(testRow("q1", "Zonichthys fasciatus", "", "N/A"))
	if !ok {
		t.Fatal("expected a resolved hit via the synonym table")
	}
	if hit.source != SourceFishbase {
		t.Errorf("source = %s, want fishbase", hit.source)
	}
	if hit.lineage.Species != "Seriola dumerili" {
		t.Errorf("species = %q, want the accepted name Seriola dumerili", hit.lineage.Species)
	}
	if hit.lineage.Genus != "Seriola" {
		t.Errorf("genus = %q: synonym hits must never mix queried and accepted names", hit.lineage.Genus)
	}
}

func TestResolveWormsFallback(t *testing.T) {
	r := newResolver(testFishbase(), testWorms(), nil, true)

	hit, ok := r.resolve(testRow("q1", "Octopus vulgaris", "", "N/A"))
	if !ok {
		t.Fatal("expected a resolved hit via worms")
	}
	if hit.source != SourceWorms {
		t.Errorf("source = %s, want worms", hit.source)
	}
	if hit.lineage.Species != "Octopus vulgaris" {
		t.Errorf("species = %q, want Octopus vulgaris", hit.lineage.Species)
	}
}

func TestResolveTaxidFallback(t *testing.T) {
	r := newResolver(testFishbase(), testWorms(), testTaxdump(), true)

	// "Carangidae sp." yields no genus match anywhere; the numeric
	// identifier resolves to family rank only.
	hit, ok := r.resolve(testRow("q1", "Carangidae sp.", "Carangidae sp. XYZ", "8030"))
	if !ok {
		t.Fatal("expected a resolved hit via the taxid path")
	}
	if hit.source != SourceNCBI {
		t.Errorf("source = %s, want ncbi", hit.source)
	}
	if hit.lineage.Family != "Carangidae" {
		t.Errorf("family = %q, want Carangidae", hit.lineage.Family)
	}
	if hit.lineage.Genus != "" || hit.lineage.Species != "" {
		t.Errorf("genus/species must stay empty on a family-rank resolution, got %q/%q",
			hit.lineage.Genus, hit.lineage.Species)
	}
	if hit.lineage.Domain != "Eukaryota" {
		t.Errorf("domain = %q, want Eukaryota via superkingdom alias", hit.lineage.Domain)
	}
}

func TestResolveMissing(t *testing.T) {
	r := newResolver(testFishbase(), testWorms(), testTaxdump(), true)

	if _, ok := r.resolve(testRow("q1", "uncultured eukaryote", "uncultured clone", "N/A")); ok {
		t.Error("expected a miss when every source fails")
	}
	// Unknown taxid, unknown names: still a miss, not a partial lineage.
	if _, ok := r.resolve(testRow("q1", "Nosuchus generis", "", "424242")); ok {
		t.Error("expected a miss on an unknown taxid")
	}
}

func TestResolveCaseInsensitiveGenus(t *testing.T) {
	r := newResolver(testFishbase(), nil, nil, true)

	hit, ok := r.resolve(testRow("q1", "SERIOLA dumerili", "", "N/A"))
	if !ok {
		t.Fatal("expected normalized genus key to match")
	}
	if hit.lineage.Genus != "Seriola" {
		t.Errorf("genus = %q, want canonical Seriola", hit.lineage.Genus)
	}
}

func TestFirstTaxID(t *testing.T) {
	cases := []struct {
		in   string
		want int
		ok   bool
	}{
		{"8240", 8240, true},
		{"8240;8241", 8240, true},
		{" 8240 ", 8240, true},
		{"N/A", 0, false},
		{"", 0, false},
		{"0", 0, false},
		{"-5", 0, false},
	}
	for _, c := range cases {
		got, ok := firstTaxID(c.in)
		if got != c.want || ok != c.ok {
			t.Errorf("firstTaxID(%q) = %d,%v want %d,%v", c.in, got, ok, c.want, c.ok)
		}
	}
}
