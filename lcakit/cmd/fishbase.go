package cmd

import (
	"fmt"
	"strings"

	"github.com/apache/arrow/go/v18/arrow"
	"golang.org/x/sync/errgroup"
)

var fishbaseFiles = []string{"species.parquet", "families.parquet", "synonyms.parquet"}

// fishbaseDB holds the FishBase lookup tables: genus to lineage, accepted
// species by SpecCode, and synonym binomial to SpecCode. Built once before
// any resolution begins and never mutated afterwards.
type fishbaseDB struct {
	genera   map[string]Lineage // normalized genus -> lineage (class..genus)
	accepted map[int64]string   // SpecCode -> accepted "Genus species"
	synonyms map[string]int64   // normalized "genus species" -> SpecCode
}

// prefetchFishbase downloads any missing FishBase parquet files into the
// cache. The three files are independent, so they fetch concurrently.
func prefetchFishbase(cache cacheConfig) error {
	var g errgroup.Group
	for _, name := range fishbaseFiles {
		g.Go(func() error {
			dest := cache.path("fishbase", fishbaseVersion, name)
			if _, err := cache.ensure(fishbaseBaseURL+"/"+name, dest); err != nil {
				return fmt.Errorf("fishbase: %w", err)
			}
			return nil
		})
	}
	return g.Wait()
}

func loadFishbase(cache cacheConfig) (*fishbaseDB, error) {
	if err := prefetchFishbase(cache); err != nil {
		return nil, err
	}

	species, err := readParquetTable(cache.path("fishbase", fishbaseVersion, "species.parquet"))
	if err != nil {
		return nil, fmt.Errorf("fishbase species: %w", err)
	}
	defer species.Release()
	families, err := readParquetTable(cache.path("fishbase", fishbaseVersion, "families.parquet"))
	if err != nil {
		return nil, fmt.Errorf("fishbase families: %w", err)
	}
	defer families.Release()
	synonyms, err := readParquetTable(cache.path("fishbase", fishbaseVersion, "synonyms.parquet"))
	if err != nil {
		return nil, fmt.Errorf("fishbase synonyms: %w", err)
	}
	defer synonyms.Release()

	return buildFishbase(species, families, synonyms)
}

func buildFishbase(species, families, synonyms arrow.Table) (*fishbaseDB, error) {
	famCodes, err := int64Column(families, "FamCode")
	if err != nil {
		return nil, fmt.Errorf("fishbase families: %w", err)
	}
	famNames, err := stringColumn(families, "Family")
	if err != nil {
		return nil, fmt.Errorf("fishbase families: %w", err)
	}
	famOrders, err := stringColumn(families, "Order")
	if err != nil {
		return nil, fmt.Errorf("fishbase families: %w", err)
	}
	famClasses, err := stringColumn(families, "Class")
	if err != nil {
		return nil, fmt.Errorf("fishbase families: %w", err)
	}

	type famEntry struct {
		family, order, class string
	}
	byFamCode := make(map[int64]famEntry, len(famCodes))
	for i, code := range famCodes {
		byFamCode[code] = famEntry{family: famNames[i], order: famOrders[i], class: famClasses[i]}
	}

	specCodes, err := int64Column(species, "SpecCode")
	if err != nil {
		return nil, fmt.Errorf("fishbase species: %w", err)
	}
	genera, err := stringColumn(species, "Genus")
	if err != nil {
		return nil, fmt.Errorf("fishbase species: %w", err)
	}
	epithets, err := stringColumn(species, "Species")
	if err != nil {
		return nil, fmt.Errorf("fishbase species: %w", err)
	}
	specFams, err := int64Column(species, "FamCode")
	if err != nil {
		return nil, fmt.Errorf("fishbase species: %w", err)
	}

	db := &fishbaseDB{
		genera:   make(map[string]Lineage, len(specCodes)/4),
		accepted: make(map[int64]string, len(specCodes)),
		synonyms: make(map[string]int64),
	}

	for i, code := range specCodes {
		genus := strings.TrimSpace(genera[i])
		if genus == "" {
			continue
		}
		fam, ok := byFamCode[specFams[i]]
		if !ok {
			continue
		}
		db.accepted[code] = genus + " " + strings.TrimSpace(epithets[i])

		// First row per genus wins, matching the upstream merge order.
		key := normalizeKey(genus)
		if _, seen := db.genera[key]; !seen {
			db.genera[key] = Lineage{
				Class:  fam.class,
				Order:  fam.order,
				Family: fam.family,
				Genus:  genus,
			}
		}
	}

	synGenera, err := stringColumn(synonyms, "SynGenus")
	if err != nil {
		return nil, fmt.Errorf("fishbase synonyms: %w", err)
	}
	synEpithets, err := stringColumn(synonyms, "SynSpecies")
	if err != nil {
		return nil, fmt.Errorf("fishbase synonyms: %w", err)
	}
	synCodes, err := int64Column(synonyms, "SpecCode")
	if err != nil {
		return nil, fmt.Errorf("fishbase synonyms: %w", err)
	}
	for i, code := range synCodes {
		g := strings.TrimSpace(synGenera[i])
		s := strings.TrimSpace(synEpithets[i])
		if g == "" || s == "" {
			continue
		}
		db.synonyms[normalizeKey(g+" "+s)] = code
	}

	if len(db.genera) == 0 {
		return nil, fmt.Errorf("fishbase species table is empty")
	}
	return db, nil
}

// lookupGenus resolves a candidate against the accepted-genus table. The
// species epithet passes through raw; lookup by genus alone is intentional,
// the epithet may be absent from FishBase.
func (db *fishbaseDB) lookupGenus(c candidate) (Lineage, bool) {
	lin, ok := db.genera[normalizeKey(c.genus)]
	if !ok {
		return Lineage{}, false
	}
	if c.species != "" {
		lin.Species = lin.Genus + " " + c.species
	}
	return lin, true
}

// lookupSynonym resolves a candidate binomial through the synonym table.
// A synonym hit rewrites identity to the accepted name before the lineage
// is read: the returned lineage carries the accepted genus and species,
// never the queried ones.
func (db *fishbaseDB) lookupSynonym(c candidate) (Lineage, bool) {
	if c.species == "" {
		return Lineage{}, false
	}
	code, ok := db.synonyms[normalizeKey(c.genus+" "+c.species)]
	if !ok {
		return Lineage{}, false
	}
	accepted, ok := db.accepted[code]
	if !ok {
		return Lineage{}, false
	}
	genus, _, _ := strings.Cut(accepted, " ")
	lin, ok := db.genera[normalizeKey(genus)]
	if !ok {
		return Lineage{}, false
	}
	lin.Species = accepted
	return lin, true
}
