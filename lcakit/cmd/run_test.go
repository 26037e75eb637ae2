package cmd

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func pipelineFixture(t *testing.T) (pipelineConfig, *resolver) {
	t.Helper()
	dir := t.TempDir()

	lines := []string{
		blastLine(),
		// Different species, same genus, slightly worse hit.
		strings.Replace(strings.Replace(blastLine(), "Seriola dumerili", "Seriola rivoliana", 2), "99.2", "98.8", 1),
		// Unresolvable everywhere.
		strings.Replace(strings.Replace(blastLine(), "Seriola dumerili", "uncultured eukaryote", 2), "8240", "N/A", 1),
		// Malformed: too few columns.
		"ASV_9\tonly\tthree",
	}
	input := filepath.Join(dir, "blast.tsv")
	if err := os.WriteFile(input, []byte(strings.Join(lines, "\n")+"\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := pipelineConfig{
		Input:      input,
		Output:     filepath.Join(dir, "lca.tsv"),
		MissingOut: filepath.Join(dir, "missing.csv"),
		Params:     lcaParams{PidentFloor: 90, CoverageFloor: 90, Cutoff: 1.0},
		Normalize:  true,
		Workers:    2,
		Ranks:      standardRanks,
	}
	return cfg, newResolver(testFishbase(), testWorms(), testTaxdump(), true)
}

func TestResolveInputBuckets(t *testing.T) {
	cfg, res := pipelineFixture(t)
	fixes, _ := loadCorrections("")

	queries, groups, missingByQuery, stats, err := resolveInput(cfg, fixes, res)
	if err != nil {
		t.Fatal(err)
	}
	if stats.Rows != 4 || stats.Resolved != 2 || stats.Missing != 1 || stats.Malformed != 1 {
		t.Errorf("stats = %+v, want rows=4 resolved=2 missing=1 malformed=1", stats)
	}
	if len(queries) != 1 || queries[0] != "ASV_1" {
		t.Errorf("queries = %v", queries)
	}
	if len(groups["ASV_1"]) != 2 {
		t.Errorf("group size = %d, want 2", len(groups["ASV_1"]))
	}
	if missingByQuery["ASV_1"] != 1 {
		t.Errorf("missing count = %v", missingByQuery)
	}

	// Every skipped hit is traceable: the missing file carries the full row.
	missing, err := os.ReadFile(cfg.MissingOut)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(missing), "uncultured eukaryote") {
		t.Errorf("missing file lacks the unresolved row: %q", string(missing))
	}
}

func TestPipelineEndToEnd(t *testing.T) {
	cfg, res := pipelineFixture(t)
	fixes, _ := loadCorrections("")

	queries, groups, _, stats, err := resolveInput(cfg, fixes, res)
	if err != nil {
		t.Fatal(err)
	}
	results, err := collapseGroups(cfg, queries, groups)
	if err != nil {
		t.Fatal(err)
	}
	if err := writeResults(cfg, results, nil, &stats); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(cfg.Output)
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	if len(lines) != 2 {
		t.Fatalf("output lines = %d, want header + one row", len(lines))
	}
	if !strings.HasPrefix(lines[0], "ASV_name\tClass\tOrder\tFamily\tGenus\tSpecies\t") {
		t.Errorf("header = %q", lines[0])
	}

	fields := strings.Split(lines[1], "\t")
	// ASV_name Class Order Family Genus Species PercentageID Coverage Species_In_LCA Sources
	if fields[0] != "ASV_1" {
		t.Errorf("query = %q", fields[0])
	}
	if fields[4] != "Seriola" {
		t.Errorf("genus = %q, want Seriola", fields[4])
	}
	if fields[5] != droppedLabel {
		t.Errorf("species = %q, want %q (two species in band)", fields[5], droppedLabel)
	}
	if fields[6] != "99.20" {
		t.Errorf("pident = %q, want 99.20", fields[6])
	}
	if fields[8] != "Seriola dumerili, Seriola rivoliana" {
		t.Errorf("species in LCA = %q", fields[8])
	}
	if fields[9] != "fishbase" {
		t.Errorf("sources = %q", fields[9])
	}
}

func TestWriteHitTables(t *testing.T) {
	cfg, res := pipelineFixture(t)
	cfg.RawOut = filepath.Join(filepath.Dir(cfg.Output), "raw.tsv")
	cfg.FinalOut = filepath.Join(filepath.Dir(cfg.Output), "final.tsv")
	fixes, _ := loadCorrections("")

	queries, groups, _, _, err := resolveInput(cfg, fixes, res)
	if err != nil {
		t.Fatal(err)
	}
	results, err := collapseGroups(cfg, queries, groups)
	if err != nil {
		t.Fatal(err)
	}
	if err := writeHitTables(cfg, queries, groups, results, nil); err != nil {
		t.Fatal(err)
	}

	raw, err := os.ReadFile(cfg.RawOut)
	if err != nil {
		t.Fatal(err)
	}
	if got := len(strings.Split(strings.TrimRight(string(raw), "\n"), "\n")); got != 3 {
		t.Errorf("raw table lines = %d, want header + 2 hits", got)
	}
	final, err := os.ReadFile(cfg.FinalOut)
	if err != nil {
		t.Fatal(err)
	}
	if got := len(strings.Split(strings.TrimRight(string(final), "\n"), "\n")); got != 3 {
		t.Errorf("final table lines = %d, want header + 2 retained hits", got)
	}
}
