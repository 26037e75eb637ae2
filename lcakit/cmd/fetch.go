package cmd

import "flag"

// runFetch populates the reference cache up front so batch runs can go
// offline afterwards.
func runFetch(args []string) {
	fs := flag.NewFlagSet("fetch", flag.ExitOnError)
	cacheDir := fs.String("cache-dir", "cache", "Reference-data cache directory")
	wormsFile := fs.String("worms-file", "worms_species.txt.gz", "WoRMS species export to verify")
	if err := fs.Parse(args); err != nil {
		fatalf("parse args failed: %v", err)
	}

	cache := newCacheConfig(*cacheDir)

	logf("fetching fishbase tables -> %s", cache.path("fishbase", fishbaseVersion))
	if err := prefetchFishbase(cache); err != nil {
		fatalf("fetch fishbase failed: %v", err)
	}

	logf("fetching ncbi taxdump -> %s", cache.path("ncbi", ncbiVersion))
	if _, err := ensureTaxdump(cache); err != nil {
		fatalf("fetch ncbi taxdump failed: %v", err)
	}

	if !fileExists(*wormsFile) {
		logf("note: worms file not found: %s (the worms source will be skipped at run time)", *wormsFile)
	}

	logf("cache ready: %s", cache.Dir)
}
