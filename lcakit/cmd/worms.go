package cmd

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// wormsDB is the marine-registry genus table, loaded from the headerless
// gzipped TSV export (species, genus, kingdom, phylum, class, order,
// family, ...). Read-only after load.
type wormsDB struct {
	genera map[string]Lineage
}

func loadWorms(path string) (*wormsDB, error) {
	in, err := openInput(path)
	if err != nil {
		return nil, fmt.Errorf("open worms file: %w", err)
	}
	defer func() {
		_ = in.Close()
	}()
	return parseWorms(in)
}

func parseWorms(r io.Reader) (*wormsDB, error) {
	db := &wormsDB{genera: make(map[string]Lineage, 1<<16)}

	scanner := bufio.NewScanner(r)
	buf := make([]byte, 0, 1024*1024)
	scanner.Buffer(buf, 10*1024*1024)
	for scanner.Scan() {
		fields := strings.Split(scanner.Text(), "\t")
		if len(fields) < 7 {
			continue
		}
		genus := strings.TrimSpace(fields[1])
		if genus == "" {
			continue
		}
		key := normalizeKey(genus)
		if _, seen := db.genera[key]; seen {
			continue
		}
		db.genera[key] = Lineage{
			Domain: strings.TrimSpace(fields[2]),
			Phylum: strings.TrimSpace(fields[3]),
			Class:  strings.TrimSpace(fields[4]),
			Order:  strings.TrimSpace(fields[5]),
			Family: strings.TrimSpace(fields[6]),
			Genus:  genus,
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan worms file: %w", err)
	}
	return db, nil
}

func (db *wormsDB) lookupGenus(c candidate) (Lineage, bool) {
	lin, ok := db.genera[normalizeKey(c.genus)]
	if !ok {
		return Lineage{}, false
	}
	if c.species != "" {
		lin.Species = lin.Genus + " " + c.species
	}
	return lin, true
}
