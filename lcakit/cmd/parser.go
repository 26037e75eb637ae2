package cmd

import (
	"bufio"
	"fmt"
	"strings"
)

// candidate is a possible genus/species token pair pulled from a hit's
// descriptive text. Whether the genus token is a real genus is decided by
// the lineage sources, not here.
type candidate struct {
	genus   string
	species string
}

// candidatePairs scans the scientific-name field and the subject title
// left to right and returns every adjacent token pair whose first token
// looks like the start of a binomial (leading uppercase ASCII letter).
// Tokens pass through raw: abbreviated genera ("H. sapiens") and bracketed
// prefixes are not normalized, their lookup misses are expected and end up
// in the missing-species file.
func candidatePairs(sciNames, title string) []candidate {
	tokens := strings.Fields(sciNames)
	tokens = append(tokens, strings.Fields(title)...)

	var out []candidate
	for i := 0; i+1 < len(tokens); i++ {
		if !startsUpper(tokens[i]) {
			continue
		}
		out = append(out, candidate{genus: tokens[i], species: tokens[i+1]})
	}
	return out
}

func startsUpper(token string) bool {
	return len(token) > 0 && token[0] >= 'A' && token[0] <= 'Z'
}

// corrections rewrites known species-name typos on the raw line before any
// parsing happens.
type corrections map[string]string

// defaultCorrections carries the typos found in production data so far.
var defaultCorrections = corrections{
	"Petroschmidtia albonotatus": "Petroschmidtia albonotata",
}

// loadCorrections reads a two-column TSV of wrong<TAB>right pairs. An empty
// path returns the built-in table.
func loadCorrections(path string) (corrections, error) {
	if path == "" {
		out := make(corrections, len(defaultCorrections))
		for k, v := range defaultCorrections {
			out[k] = v
		}
		return out, nil
	}

	in, err := openInput(path)
	if err != nil {
		return nil, fmt.Errorf("open corrections file: %w", err)
	}
	defer func() {
		_ = in.Close()
	}()

	out := make(corrections)
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		wrong, right, ok := strings.Cut(line, "\t")
		if !ok {
			return nil, fmt.Errorf("corrections file: malformed line %q", line)
		}
		out[strings.TrimSpace(wrong)] = strings.TrimSpace(right)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan corrections file: %w", err)
	}
	return out, nil
}

func (c corrections) apply(line string) string {
	for wrong, right := range c {
		line = strings.ReplaceAll(line, wrong, right)
	}
	return line
}
