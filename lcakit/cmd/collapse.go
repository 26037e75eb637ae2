package cmd

// droppedLabel marks a rank where the retained hits disagree; noHitsLabel
// marks a rank no retained hit has a name for (e.g. a family-only taxid
// resolution leaves genus and species unnamed).
const (
	droppedLabel = "dropped"
	noHitsLabel  = "no_hits"
)

// adjustedIdentity is the score used for cutoff grouping: percent identity
// weighted by query coverage, on the same 0-100 scale. With normalize off
// it is raw pident, matching identity-only legacy behavior.
func adjustedIdentity(pident, qcov float64, normalize bool) float64 {
	if !normalize {
		return pident
	}
	return pident * (qcov / 100)
}

type lcaParams struct {
	PidentFloor   float64
	CoverageFloor float64
	Cutoff        float64
}

// lcaResult is the per-query output row of the collapse engine.
type lcaResult struct {
	Query        string
	Names        map[Rank]string
	Best         float64 // max adjusted identity among surviving hits
	Pident       float64 // max raw pident among retained hits
	Coverage     float64 // max raw coverage among retained hits
	SpeciesInLCA []string
	Sources      []string
	Retained     []resolvedHit
}

// collapse filters one query's hits by the raw floors, keeps the hits
// within the additive cutoff band below the best adjusted identity, and
// contracts each rank to a single name or the dropped label. Ranks are
// evaluated independently: species disagreement does not force genus to
// drop unless the genus set itself disagrees. Returns false when the
// floors leave no hits, in which case the query produces no output row.
func collapse(query string, hits []resolvedHit, ranks []Rank, p lcaParams) (lcaResult, bool) {
	var surviving []resolvedHit
	for _, h := range hits {
		if h.pident < p.PidentFloor || h.coverage < p.CoverageFloor {
			continue
		}
		surviving = append(surviving, h)
	}
	if len(surviving) == 0 {
		return lcaResult{}, false
	}

	best := surviving[0].adjusted
	for _, h := range surviving[1:] {
		if h.adjusted > best {
			best = h.adjusted
		}
	}

	// Direct >= comparison: ties at exactly best are always retained, no
	// epsilon.
	floor := best - p.Cutoff
	var retained []resolvedHit
	for _, h := range surviving {
		if h.adjusted >= floor {
			retained = append(retained, h)
		}
	}

	res := lcaResult{
		Query:    query,
		Names:    make(map[Rank]string, len(ranks)),
		Best:     best,
		Retained: retained,
	}

	for _, rank := range ranks {
		distinct := make(map[string]struct{})
		var single string
		for _, h := range retained {
			name := h.lineage.At(rank)
			if name == "" {
				continue
			}
			distinct[name] = struct{}{}
			single = name
		}
		switch len(distinct) {
		case 0:
			res.Names[rank] = noHitsLabel
		case 1:
			res.Names[rank] = single
		default:
			res.Names[rank] = droppedLabel
		}
	}

	seenSpecies := make(map[string]struct{})
	seenSources := make(map[Source]struct{})
	for _, h := range retained {
		if h.pident > res.Pident {
			res.Pident = h.pident
		}
		if h.coverage > res.Coverage {
			res.Coverage = h.coverage
		}
		if sp := h.lineage.Species; sp != "" {
			if _, ok := seenSpecies[sp]; !ok {
				seenSpecies[sp] = struct{}{}
				res.SpeciesInLCA = append(res.SpeciesInLCA, sp)
			}
		}
		if _, ok := seenSources[h.source]; !ok {
			seenSources[h.source] = struct{}{}
			res.Sources = append(res.Sources, h.source.String())
		}
	}

	return res, true
}
