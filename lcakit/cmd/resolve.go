package cmd

// resolvedHit is one BLAST hit with its lineage, provenance and scores.
// Never mutated after creation; the collapse engine works on derived sets.
type resolvedHit struct {
	query     string
	accession string
	taxid     string
	lineage   Lineage
	source    Source
	pident    float64
	coverage  float64
	adjusted  float64
}

// lineageSource is one entry of the lookup waterfall: a provenance tag plus
// a lookup capability. No subclassing, one dispatch loop.
type lineageSource struct {
	tag    Source
	lookup func(candidate) (Lineage, bool)
}

// resolver tries the genus/species sources in fixed priority order, then
// falls back to the numeric-taxid path against the general taxonomy.
type resolver struct {
	sources   []lineageSource
	taxonomy  *taxDump
	normalize bool
}

func newResolver(fb *fishbaseDB, worms *wormsDB, taxonomy *taxDump, normalize bool) *resolver {
	r := &resolver{taxonomy: taxonomy, normalize: normalize}
	if fb != nil {
		r.sources = append(r.sources,
			lineageSource{tag: SourceFishbase, lookup: fb.lookupGenus},
			lineageSource{tag: SourceFishbase, lookup: fb.lookupSynonym},
		)
	}
	if worms != nil {
		r.sources = append(r.sources, lineageSource{tag: SourceWorms, lookup: worms.lookupGenus})
	}
	return r
}

// resolve maps one hit row to a resolved hit, or reports false when every
// source missed; the caller records the row as missing. Strict waterfall:
// the first source to answer wins and no lineage fragments are merged
// across sources.
func (r *resolver) resolve(row blastRow) (resolvedHit, bool) {
	hit := resolvedHit{
		query:     row.Query,
		accession: row.Accession,
		taxid:     row.TaxIDs,
		pident:    row.Pident,
		coverage:  row.Coverage,
		adjusted:  adjustedIdentity(row.Pident, row.Coverage, r.normalize),
	}

	pairs := candidatePairs(row.SciNames, row.Title)
	for _, src := range r.sources {
		for _, pair := range pairs {
			if lin, ok := src.lookup(pair); ok {
				hit.lineage = lin
				hit.source = src.tag
				return hit, true
			}
		}
	}

	// Last resort: the numeric taxonomy identifier column.
	if r.taxonomy != nil {
		if id, ok := firstTaxID(row.TaxIDs); ok {
			if lin, ok := r.taxonomy.lineage(id); ok {
				hit.lineage = lin
				hit.source = SourceNCBI
				return hit, true
			}
		}
	}

	return resolvedHit{}, false
}
