package cmd

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"
)

type pipelineConfig struct {
	Input           string
	Output          string
	MissingOut      string
	WormsFile       string
	CorrectionsFile string
	CacheDir        string
	Params          lcaParams
	Normalize       bool
	Progress        bool
	Workers         int
	Ranks           []Rank

	// Extended (FAIRe) variant.
	ASVTable string
	RawOut   string
	FinalOut string
}

type runStats struct {
	Rows      int
	Malformed int
	Resolved  int
	Missing   int
	Queries   int
	Written   int
	BySource  map[Source]int
}

func runLCA(args []string) {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	input := fs.String("file", "", "Input BLAST tabular result file (.tsv or .tsv.gz)")
	output := fs.String("output", "", "Output file of per-query LCAs, tab delimited")
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
		Ranks:     standardRanks,
	}
	validatePipelineConfig(cfg)

	if err := runPipeline(cfg); err != nil {
		fatalf("run failed: %v", err)
	}
}

func validatePipelineConfig(cfg pipelineConfig) {
	if cfg.Input == "" || cfg.Output == "" {
		fatalf("file and output are required")
	}
	if cfg.Params.PidentFloor < 0 || cfg.Params.PidentFloor > 100 {
		fatalf("pident must be between 0 and 100")
	}
	if cfg.Params.CoverageFloor < 0 || cfg.Params.CoverageFloor > 100 {
		fatalf("min-coverage must be between 0 and 100")
	}
	if cfg.Params.Cutoff < 0 {
		fatalf("cutoff must be non-negative")
	}
	if cfg.Workers < 1 {
		fatalf("workers must be >= 1")
	}
}

func runPipeline(cfg pipelineConfig) error {
	fixes, err := loadCorrections(cfg.CorrectionsFile)
	if err != nil {
		return err
	}

	res, err := buildResolver(cfg)
	if err != nil {
		return err
	}

	queries, groups, missingByQuery, stats, err := resolveInput(cfg, fixes, res)
	if err != nil {
		return err
	}
	stats.Queries = len(queries)

	results, err := collapseGroups(cfg, queries, groups)
	if err != nil {
		return err
	}

	var asv *asvTable
	if cfg.ASVTable != "" {
		asv, err = loadASVTable(cfg.ASVTable)
		if err != nil {
			return err
		}
	}

	if err := writeResults(cfg, results, asv, &stats); err != nil {
		return err
	}
	if err := writeHitTables(cfg, queries, groups, results, asv); err != nil {
		return err
	}

	for query, n := range missingByQuery {
		logf("query %s: %d hit(s) not found in any source", query, n)
	}
	logf("run: rows=%d resolved=%d (fishbase=%d worms=%d ncbi=%d) missing=%d malformed=%d queries=%d written=%d",
		stats.Rows, stats.Resolved, stats.BySource[SourceFishbase], stats.BySource[SourceWorms],
		stats.BySource[SourceNCBI], stats.Missing, stats.Malformed, stats.Queries, stats.Written)
	return nil
}

// buildResolver loads the three lineage sources. FishBase and the NCBI
// taxdump populate the cache on first use and are fatal on failure; an
// absent WoRMS file only disables that source, matching how operators run
// this without a marine registry export.
func buildResolver(cfg pipelineConfig) (*resolver, error) {
	cache := newCacheConfig(cfg.CacheDir)

	fb, err := loadFishbase(cache)
	if err != nil {
		return nil, fmt.Errorf("load fishbase: %w", err)
	}
	logf("fishbase: %d genera, %d synonyms", len(fb.genera), len(fb.synonyms))

	var worms *wormsDB
	if fileExists(cfg.WormsFile) {
		worms, err = loadWorms(cfg.WormsFile)
		if err != nil {
			return nil, fmt.Errorf("load worms: %w", err)
		}
		logf("worms: %d genera", len(worms.genera))
	} else {
		logf("worms file not found, skipping source: %s", cfg.WormsFile)
	}

	taxonomy, err := ensureTaxdump(cache)
	if err != nil {
		return nil, fmt.Errorf("load ncbi taxdump: %w", err)
	}
	logf("ncbi: %d taxonomy nodes", len(taxonomy.nodes))

	return newResolver(fb, worms, taxonomy, cfg.Normalize), nil
}

// resolveInput streams the BLAST table and buckets resolved hits per query
// in input order. Unresolvable rows go verbatim to the missing side file;
// malformed rows are logged and skipped. Every input row lands in exactly
// one of those buckets.
func resolveInput(cfg pipelineConfig, fixes corrections, res *resolver) ([]string, map[string][]resolvedHit, map[string]int, runStats, error) {
	stats := runStats{BySource: make(map[Source]int)}

	in, err := openInput(cfg.Input)
	if err != nil {
		return nil, nil, nil, stats, fmt.Errorf("open input: %w", err)
	}
	defer func() {
		_ = in.Close()
	}()

	totalRows := -1
	if cfg.Progress {
		if count, err := countLines(cfg.Input); err == nil {
			totalRows = count
		}
	}
	bar := newProgress(totalRows, cfg.Progress)

	if dir := filepath.Dir(cfg.MissingOut); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, nil, nil, stats, fmt.Errorf("create missing dir: %w", err)
		}
	}
	missingFile, err := os.Create(cfg.MissingOut)
	if err != nil {
		return nil, nil, nil, stats, fmt.Errorf("create missing file: %w", err)
	}
	defer func() {
		_ = missingFile.Close()
	}()
	missingWriter := bufio.NewWriterSize(missingFile, writerBufferSize)
	defer func() {
		_ = missingWriter.Flush()
	}()

	var queries []string
	groups := make(map[string][]resolvedHit)
	missingByQuery := make(map[string]int)

	scanner := bufio.NewScanner(in)
	buf := make([]byte, 0, 1024*1024)
	scanner.Buffer(buf, 10*1024*1024)

	lineNum := 0
	for scanner.Scan() {
		lineNum++
		bar.increment()
		line := fixes.apply(scanner.Text())
		if strings.TrimSpace(line) == "" {
			continue
		}
		stats.Rows++

		row, err := parseBlastRow(line, lineNum)
		if err != nil {
			stats.Malformed++
			logf("skipping malformed row: %v", err)
			continue
		}

		hit, ok := res.resolve(row)
		if !ok {
			stats.Missing++
			missingByQuery[row.Query]++
			if _, err := missingWriter.WriteString(row.Raw + "\n"); err != nil {
				return nil, nil, nil, stats, fmt.Errorf("write missing row: %w", err)
			}
			continue
		}

		stats.Resolved++
		stats.BySource[hit.source]++
		if _, seen := groups[hit.query]; !seen {
			queries = append(queries, hit.query)
		}
		groups[hit.query] = append(groups[hit.query], hit)
	}
	if err := scanner.Err(); err != nil {
		return nil, nil, nil, stats, fmt.Errorf("scan input: %w", err)
	}
	bar.finish()

	return queries, groups, missingByQuery, stats, nil
}

// collapseGroups runs the collapse engine over every query group. Groups
// are independent and the lookup tables are read-only by now, so they
// collapse in parallel; output order stays input order.
func collapseGroups(cfg pipelineConfig, queries []string, groups map[string][]resolvedHit) ([]*lcaResult, error) {
	results := make([]*lcaResult, len(queries))

	var g errgroup.Group
	g.SetLimit(cfg.Workers)
	for i, query := range queries {
		g.Go(func() error {
			if res, ok := collapse(query, groups[query], cfg.Ranks, cfg.Params); ok {
				results[i] = &res
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func writeResults(cfg pipelineConfig, results []*lcaResult, asv *asvTable, stats *runStats) error {
	if dir := filepath.Dir(cfg.Output); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
	}
	out, err := os.Create(cfg.Output)
	if err != nil {
		return fmt.Errorf("create output: %w", err)
	}
	defer func() {
		_ = out.Close()
	}()
	writer := bufio.NewWriterSize(out, writerBufferSize)

	header := []string{"ASV_name"}
	for _, r := range cfg.Ranks {
		header = append(header, rankHeader(r))
	}
	header = append(header, "PercentageID", "Coverage", "Species_In_LCA", "Sources")
	if asv != nil {
		header = append(header, asv.samples...)
	}
	if _, err := writer.WriteString(strings.Join(header, "\t") + "\n"); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	for _, res := range results {
		if res == nil {
			continue
		}
		row := []string{res.Query}
		for _, r := range cfg.Ranks {
			row = append(row, res.Names[r])
		}
		row = append(row,
			strconv.FormatFloat(res.Pident, 'f', 2, 64),
			strconv.FormatFloat(res.Coverage, 'f', 2, 64),
			strings.Join(res.SpeciesInLCA, ", "),
			strings.Join(res.Sources, ", "),
		)
		if asv != nil {
			row = append(row, asv.counts(res.Query)...)
		}
		if _, err := writer.WriteString(strings.Join(row, "\t") + "\n"); err != nil {
			return fmt.Errorf("write row: %w", err)
		}
		stats.Written++
	}
	if err := writer.Flush(); err != nil {
		return fmt.Errorf("flush output: %w", err)
	}
	logf("results written to %s", cfg.Output)
	return nil
}
