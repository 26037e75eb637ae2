package cmd

import "strings"

// Rank is a linnean rank on the fixed ladder this tool assigns. Inclusive
// ranks order before exclusive ones, so rank comparisons read naturally:
//
//	if r < Genus { ... }
type Rank uint8

const (
	Domain Rank = iota
	Phylum
	Class
	Order
	Family
	Genus
	Species
)

var rankNames = []string{
	Domain:  "domain",
	Phylum:  "phylum",
	Class:   "class",
	Order:   "order",
	Family:  "family",
	Genus:   "genus",
	Species: "species",
}

func (r Rank) String() string {
	if int(r) >= len(rankNames) {
		return "unranked"
	}
	return rankNames[r]
}

// rankHeader is the output-column spelling of a rank.
func rankHeader(r Rank) string {
	name := r.String()
	return strings.ToUpper(name[:1]) + name[1:]
}

// standardRanks is the ladder of the standard output; extendedRanks adds
// domain and phylum for the FAIRe variant.
var (
	standardRanks = []Rank{Class, Order, Family, Genus, Species}
	extendedRanks = []Rank{Domain, Phylum, Class, Order, Family, Genus, Species}
)

// Lineage is one organism's rank-to-name assignment. Higher ranks may be
// empty in source data; genus and species are normally set. Lookups return
// Lineage by value and never retain a reference, so it is immutable once
// produced.
type Lineage struct {
	Domain  string
	Phylum  string
	Class   string
	Order   string
	Family  string
	Genus   string
	Species string
}

func (l Lineage) At(r Rank) string {
	switch r {
	case Domain:
		return l.Domain
	case Phylum:
		return l.Phylum
	case Class:
		return l.Class
	case Order:
		return l.Order
	case Family:
		return l.Family
	case Genus:
		return l.Genus
	case Species:
		return l.Species
	}
	return ""
}

func (l *Lineage) set(r Rank, name string) {
	switch r {
	case Domain:
		l.Domain = name
	case Phylum:
		l.Phylum = name
	case Class:
		l.Class = name
	case Order:
		l.Order = name
	case Family:
		l.Family = name
	case Genus:
		l.Genus = name
	case Species:
		l.Species = name
	}
}

// deepest returns the most exclusive rank that carries a name.
func (l Lineage) deepest() (Rank, bool) {
	for r := Species; ; r-- {
		if l.At(r) != "" {
			return r, true
		}
		if r == Domain {
			return 0, false
		}
	}
}

// Source tags which reference database produced a hit's lineage.
type Source uint8

const (
	SourceUnresolved Source = iota
	SourceFishbase
	SourceWorms
	SourceNCBI
)

var sourceNames = []string{
	SourceUnresolved: "unresolved",
	SourceFishbase:   "fishbase",
	SourceWorms:      "worms",
	SourceNCBI:       "ncbi",
}

func (s Source) String() string {
	if int(s) >= len(sourceNames) {
		return "unresolved"
	}
	return sourceNames[s]
}

// normalizeKey is the shared lookup-key normalization: lowercased,
// whitespace-trimmed.
func normalizeKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
