package cmd

import (
	"fmt"
	"strconv"
	"strings"
)

// Column layout of the expected BLAST invocation:
//
//	-outfmt "6 qseqid sseqid staxids sscinames scomnames sskingdoms pident
//	length qlen slen mismatch gapopen gaps qstart qend sstart send stitle
//	evalue bitscore qcovs qcovhsp"
const (
	colQseqid = iota
	colSseqid
	colStaxids
	colSscinames
	colScomnames
	colSskingdoms
	colPident
	colLength
	colQlen
	colSlen
	colMismatch
	colGapopen
	colGaps
	colQstart
	colQend
	colSstart
	colSend
	colStitle
	colEvalue
	colBitscore
	colQcovs
	colQcovhsp

	blastColumns = colQcovhsp + 1
)

// blastRow is one parsed hit row. Raw keeps the original line for the
// missing-species side file.
type blastRow struct {
	Query     string
	Accession string
	TaxIDs    string
	SciNames  string
	Title     string
	Pident    float64
	Coverage  float64
	Line      int
	Raw       string
}

func parseBlastRow(line string, lineNum int) (blastRow, error) {
	fields := strings.Split(line, "\t")
	if len(fields) < blastColumns {
		return blastRow{}, fmt.Errorf("line %d: expected %d columns, got %d", lineNum, blastColumns, len(fields))
	}

	pident, err := strconv.ParseFloat(strings.TrimSpace(fields[colPident]), 64)
	if err != nil {
		return blastRow{}, fmt.Errorf("line %d: invalid pident %q", lineNum, fields[colPident])
	}
	coverage, err := strconv.ParseFloat(strings.TrimSpace(fields[colQcovs]), 64)
	if err != nil {
		return blastRow{}, fmt.Errorf("line %d: invalid qcovs %q", lineNum, fields[colQcovs])
	}

	return blastRow{
		Query:     fields[colQseqid],
		Accession: fields[colSseqid],
		TaxIDs:    fields[colStaxids],
		SciNames:  fields[colSscinames],
		Title:     fields[colStitle],
		Pident:    pident,
		Coverage:  coverage,
		Line:      lineNum,
		Raw:       line,
	}, nil
}

// firstTaxID picks the leading numeric identifier out of staxids, which
// BLAST may emit as "123;456" or as the "N/A" placeholder.
func firstTaxID(staxids string) (int, bool) {
	first := staxids
	if i := strings.IndexByte(first, ';'); i >= 0 {
		first = first[:i]
	}
	first = strings.TrimSpace(first)
	id, err := strconv.Atoi(first)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
