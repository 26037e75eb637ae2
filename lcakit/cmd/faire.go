package cmd

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"
)

func runFaire(args []string) {
	fs := flag.NewFlagSet("faire", flag.ExitOnError)
	input := fs.String("file", "", "Input BLAST tabular result file (.tsv or .tsv.gz)")
	output := fs.String("output", "", "Output file of per-query LCAs, tab delimited")
	asvTable := fs.String("asv-table", "", "ASV-by-sample abundance table to join (first column = query id)")
	rawOut := fs.String("raw-out", "taxa_raw.tsv", "Per-hit identification table, all resolved hits")
	finalOut := fs.String("final-out", "taxa_final.tsv", "Per-hit identification table, hits retained in the LCA")
	pident := fs.Float64("pident", 90, "Minimum percent identity; hits below are ignored")
	minCoverage := fs.Float64("min-coverage", 90, "Minimum query coverage; hits below are ignored")
	cutoff := fs.Float64("cutoff", 1.0, "Identity band below the best hit considered in the LCA")
	normalize := fs.Bool("normalise-identity", true, "Weight percent identity by query coverage for LCA grouping")
	wormsFile := fs.String("worms-file", "worms_species.txt.gz", "WoRMS species export (TSV, optionally gzipped)")
	missingOut := fs.String("missing-out", "missing.csv", "Output file for hits not found in any source")
	corrections := fs.String("corrections", "", "Optional TSV of species-name corrections (wrong<TAB>right)")
	cacheDir := fs.String("cache-dir", "cache", "Reference-data cache directory")
	progressOn := fs.Bool("progress", true, "Show progress bar")
	workers := fs.Int("workers", runtime.GOMAXPROCS(0), "Parallel LCA workers")
	if err := fs.Parse(args); err != nil {
		fatalf("parse args failed: %v", err)
	}

	cfg := pipelineConfig{
		Input:           *input,
		Output:          *output,
		MissingOut:      *missingOut,
		WormsFile:       *wormsFile,
		CorrectionsFile: *corrections,
		CacheDir:        *cacheDir,
		Params: lcaParams{
			PidentFloor:   *pident,
			CoverageFloor: *minCoverage,
			Cutoff:        *cutoff,
		},
		Normalize: *normalize,
		Progress:  *progressOn,
		Workers:   *workers,
		Ranks:     extendedRanks,
		ASVTable:  *asvTable,
		RawOut:    *rawOut,
		FinalOut:  *finalOut,
	}
	validatePipelineConfig(cfg)

	if err := runPipeline(cfg); err != nil {
		fatalf("faire failed: %v", err)
	}
}

// asvTable is the ASV-by-sample abundance table joined into the extended
// output. A column named "sequence" (any case) is treated as the query
// sequence rather than a sample.
type asvTable struct {
	samples   []string
	sequences map[string]string
	rows      map[string][]string
}

func loadASVTable(path string) (*asvTable, error) {
	in, err := openInput(path)
	if err != nil {
		return nil, fmt.Errorf("open asv table: %w", err)
	}
	defer func() {
		_ = in.Close()
	}()

	scanner := bufio.NewScanner(in)
	buf := make([]byte, 0, 1024*1024)
	scanner.Buffer(buf, 10*1024*1024)

	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return nil, fmt.Errorf("read asv table header: %w", err)
		}
		return nil, fmt.Errorf("asv table is empty: %s", path)
	}
	header := strings.Split(scanner.Text(), "\t")
	if len(header) < 2 {
		return nil, fmt.Errorf("asv table needs an id column and at least one sample column")
	}

	seqCol := -1
	var samples []string
	var sampleCols []int
	for i, name := range header[1:] {
		if strings.EqualFold(strings.TrimSpace(name), "sequence") {
			seqCol = i + 1
			continue
		}
		samples = append(samples, name)
		sampleCols = append(sampleCols, i+1)
	}

	tbl := &asvTable{
		samples:   samples,
		sequences: make(map[string]string),
		rows:      make(map[string][]string),
	}
	for scanner.Scan() {
		fields := strings.Split(scanner.Text(), "\t")
		id := strings.TrimSpace(field(fields, 0))
		if id == "" {
			continue
		}
		if seqCol >= 0 {
			tbl.sequences[id] = field(fields, seqCol)
		}
		counts := make([]string, len(sampleCols))
		for i, col := range sampleCols {
			counts[i] = field(fields, col)
		}
		tbl.rows[id] = counts
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan asv table: %w", err)
	}
	return tbl, nil
}

func (t *asvTable) counts(query string) []string {
	if counts, ok := t.rows[query]; ok {
		return counts
	}
	out := make([]string, len(t.samples))
	for i := range out {
		out[i] = "NA"
	}
	return out
}

func (t *asvTable) sequence(query string) string {
	return t.sequences[query]
}

// writeHitTables emits the per-hit identification tables of the extended
// variant: raw carries every resolved hit with a remark saying how the
// collapse treated it, final carries only the hits retained in the LCA
// band.
func writeHitTables(cfg pipelineConfig, queries []string, groups map[string][]resolvedHit, results []*lcaResult, asv *asvTable) error {
	if cfg.RawOut == "" && cfg.FinalOut == "" {
		return nil
	}

	byQuery := make(map[string]*lcaResult, len(results))
	for _, res := range results {
		if res != nil {
			byQuery[res.Query] = res
		}
	}

	if cfg.RawOut != "" {
		if err := writeHitTable(cfg.RawOut, queries, groups, byQuery, cfg.Params, asv, false); err != nil {
			return err
		}
	}
	if cfg.FinalOut != "" {
		if err := writeHitTable(cfg.FinalOut, queries, groups, byQuery, cfg.Params, asv, true); err != nil {
			return err
		}
	}
	return nil
}

var hitTableHeader = []string{
	"seq_id", "sequence", "accession", "taxid", "rank", "scientific_name",
	"pident", "coverage", "confidence", "source", "remarks",
}

func writeHitTable(path string, queries []string, groups map[string][]resolvedHit, byQuery map[string]*lcaResult, params lcaParams, asv *asvTable, finalOnly bool) error {
	out, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create hit table: %w", err)
	}
	defer func() {
		_ = out.Close()
	}()
	writer := bufio.NewWriterSize(out, writerBufferSize)

	if _, err := writer.WriteString(strings.Join(hitTableHeader, "\t") + "\n"); err != nil {
		return fmt.Errorf("write hit table header: %w", err)
	}

	for _, query := range queries {
		res := byQuery[query]
		for _, hit := range groups[query] {
			remark := hitRemark(hit, res, params)
			if finalOnly && remark != "" {
				continue
			}

			rank := ""
			name := ""
			if r, ok := hit.lineage.deepest(); ok {
				rank = r.String()
				name = hit.lineage.At(r)
			}
			sequence := ""
			if asv != nil {
				sequence = asv.sequence(query)
			}
			row := []string{
				query,
				sequence,
				hit.accession,
				hit.taxid,
				rank,
				name,
				strconv.FormatFloat(hit.pident, 'f', 2, 64),
				strconv.FormatFloat(hit.coverage, 'f', 2, 64),
				strconv.FormatFloat(hit.adjusted, 'f', 2, 64),
				hit.source.String(),
				remark,
			}
			if _, err := writer.WriteString(strings.Join(row, "\t") + "\n"); err != nil {
				return fmt.Errorf("write hit table row: %w", err)
			}
		}
	}
	if err := writer.Flush(); err != nil {
		return fmt.Errorf("flush hit table: %w", err)
	}
	logf("hit table written to %s", path)
	return nil
}

// hitRemark explains why a hit did not make it into the LCA band; retained
// hits get an empty remark.
func hitRemark(hit resolvedHit, res *lcaResult, params lcaParams) string {
	if hit.pident < params.PidentFloor {
		return "below pident floor"
	}
	if hit.coverage < params.CoverageFloor {
		return "below coverage floor"
	}
	if res == nil || hit.adjusted < res.Best-params.Cutoff {
		return "outside cutoff band"
	}
	return ""
}
