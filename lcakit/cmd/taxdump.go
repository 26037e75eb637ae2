package cmd

import (
	"archive/tar"
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/klauspost/pgzip"
)

type taxNode struct {
	parent int
	rank   string
	name   string
}

// taxDump is the general taxonomy source: the NCBI nodes/names tables plus
// a per-taxid lineage memo. The memo is only touched during the sequential
// resolution pass; the collapse stage never consults it.
type taxDump struct {
	nodes map[int]taxNode
	cache map[int]Lineage
	alias map[string]string
}

// ensureTaxdump loads nodes.dmp/names.dmp from the cache, downloading and
// extracting the NCBI taxdump archive first when missing.
func ensureTaxdump(cache cacheConfig) (*taxDump, error) {
	dir := cache.path("ncbi", ncbiVersion)
	nodesPath := filepath.Join(dir, "nodes.dmp")
	namesPath := filepath.Join(dir, "names.dmp")

	if !fileExists(nodesPath) || !fileExists(namesPath) {
		archive := filepath.Join(dir, "taxdump.tar.gz")
		if _, err := cache.ensure(taxdumpURL, archive); err != nil {
			return nil, fmt.Errorf("ncbi taxdump: %w", err)
		}
		if err := extractTaxdump(archive, dir); err != nil {
			return nil, fmt.Errorf("ncbi taxdump: %w", err)
		}
	}
	return loadTaxDump(nodesPath, namesPath)
}

// extractTaxdump pulls nodes.dmp and names.dmp out of the tar.gz archive
// via temp files, so a failed extraction never leaves half-written tables.
func extractTaxdump(archive, dir string) error {
	f, err := os.Open(archive)
	if err != nil {
		return fmt.Errorf("open archive: %w", err)
	}
	defer func() {
		_ = f.Close()
	}()
	gz, err := pgzip.NewReader(f)
	if err != nil {
		return fmt.Errorf("gzip archive: %w", err)
	}
	defer func() {
		_ = gz.Close()
	}()

	wanted := map[string]bool{"nodes.dmp": true, "names.dmp": true}
	tr := tar.NewReader(gz)
	for len(wanted) > 0 {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("read archive: %w", err)
		}
		name := filepath.Base(hdr.Name)
		if !wanted[name] {
			continue
		}
		dest := filepath.Join(dir, name)
		tmp, err := os.CreateTemp(dir, name+".tmp-*")
		if err != nil {
			return fmt.Errorf("create temp file: %w", err)
		}
		if _, err := io.Copy(tmp, tr); err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
			return fmt.Errorf("extract %s: %w", name, err)
		}
		if err := tmp.Close(); err != nil {
			_ = os.Remove(tmp.Name())
			return fmt.Errorf("close %s: %w", name, err)
		}
		if err := os.Rename(tmp.Name(), dest); err != nil {
			_ = os.Remove(tmp.Name())
			return fmt.Errorf("finalize %s: %w", name, err)
		}
		delete(wanted, name)
	}
	if len(wanted) > 0 {
		return fmt.Errorf("archive missing required files: %v", wanted)
	}
	return nil
}

func loadTaxDump(nodesPath, namesPath string) (*taxDump, error) {
	names, err := loadNames(namesPath)
	if err != nil {
		return nil, err
	}
	nodes, err := loadNodes(nodesPath, names)
	if err != nil {
		return nil, err
	}
	return &taxDump{
		nodes: nodes,
		cache: make(map[int]Lineage),
		alias: map[string]string{
			"superkingdom": "domain",
		},
	}, nil
}

func loadNames(path string) (map[int]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open names.dmp: %w", err)
	}
	defer func() {
		_ = f.Close()
	}()

	names := make(map[int]string, 1<<20)
	scanner := bufio.NewScanner(f)
	buf := make([]byte, 0, 1024*1024)
	scanner.Buffer(buf, 10*1024*1024)
	for scanner.Scan() {
		fields := parseDmpLine(scanner.Text())
		if len(fields) < 4 {
			continue
		}
		if fields[3] != "scientific name" {
			continue
		}
		id, err := strconv.Atoi(fields[0])
		if err != nil {
			continue
		}
		if fields[1] == "" {
			continue
		}
		names[id] = fields[1]
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan names.dmp: %w", err)
	}
	return names, nil
}

func loadNodes(path string, names map[int]string) (map[int]taxNode, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open nodes.dmp: %w", err)
	}
	defer func() {
		_ = f.Close()
	}()

	nodes := make(map[int]taxNode, 1<<20)
	scanner := bufio.NewScanner(f)
	buf := make([]byte, 0, 1024*1024)
	scanner.Buffer(buf, 10*1024*1024)
	for scanner.Scan() {
		fields := parseDmpLine(scanner.Text())
		if len(fields) < 3 {
			continue
		}
		id, err := strconv.Atoi(fields[0])
		if err != nil {
			continue
		}
		parent, err := strconv.Atoi(fields[1])
		if err != nil {
			continue
		}
		nodes[id] = taxNode{
			parent: parent,
			rank:   fields[2],
			name:   names[id],
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan nodes.dmp: %w", err)
	}
	return nodes, nil
}

func parseDmpLine(line string) []string {
	raw := strings.Split(line, "|")
	out := make([]string, 0, len(raw))
	for _, part := range raw {
		field := strings.TrimSpace(part)
		if field != "" || len(out) > 0 {
			out = append(out, field)
		}
	}
	return out
}

// rankFromDmp maps an NCBI rank string onto the fixed ladder.
func (t *taxDump) rankFromDmp(rank string) (Rank, bool) {
	if alias, ok := t.alias[rank]; ok {
		rank = alias
	}
	for r, name := range rankNames {
		if name == rank {
			return Rank(r), true
		}
	}
	return 0, false
}

// lineage walks the parent chain of taxid and collects the ladder ranks.
// Ranks outside the ladder are skipped; the first name seen per rank wins.
func (t *taxDump) lineage(taxid int) (Lineage, bool) {
	if taxid <= 0 {
		return Lineage{}, false
	}
	if cached, ok := t.cache[taxid]; ok {
		return cached, cached != (Lineage{})
	}

	var lin Lineage
	cur := taxid
	seen := 0
	for cur > 0 && seen < 64 {
		seen++
		node, ok := t.nodes[cur]
		if !ok {
			break
		}
		if r, ok := t.rankFromDmp(node.rank); ok && node.name != "" {
			if lin.At(r) == "" {
				lin.set(r, node.name)
			}
		}
		if node.parent == cur {
			break
		}
		cur = node.parent
	}
	t.cache[taxid] = lin
	return lin, lin != (Lineage{})
}
