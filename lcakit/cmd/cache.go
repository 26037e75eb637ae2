package cmd

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"
)

const (
	fishbaseBaseURL = "https://fishbase.ropensci.org/fishbase"
	taxdumpURL      = "https://ftp.ncbi.nlm.nih.gov/pub/taxonomy/taxdump.tar.gz"

	// Source version keys. Bumping one invalidates that source's cache
	// entries; deleting the cache directory forces a clean re-fetch of
	// everything.
	fishbaseVersion = "fb-latest"
	ncbiVersion     = "ncbi-latest"

	defaultFetchRetries = 3
)

// cacheConfig is the explicit handle to the reference-data cache. It is
// passed into every loader that touches remote data; there is no
// package-level cache state.
type cacheConfig struct {
	Dir     string
	Retries int
}

func newCacheConfig(dir string) cacheConfig {
	return cacheConfig{Dir: dir, Retries: defaultFetchRetries}
}

func (c cacheConfig) path(parts ...string) string {
	return filepath.Join(append([]string{c.Dir}, parts...)...)
}

// ensure returns dest, downloading it first unless a non-empty cached copy
// exists.
func (c cacheConfig) ensure(url, dest string) (string, error) {
	if fileExists(dest) {
		return dest, nil
	}
	if err := c.fetch(url, dest); err != nil {
		return "", err
	}
	return dest, nil
}

// fetch downloads url to dest with a bounded retry count. The payload is
// written to a temporary file and renamed into place, so an interrupted
// download never leaves a partial file the next run would mistake for a
// valid cache entry.
func (c cacheConfig) fetch(url, dest string) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("create cache dir: %w", err)
	}

	retries := c.Retries
	if retries <= 0 {
		retries = defaultFetchRetries
	}

	var lastErr error
	for attempt := 1; attempt <= retries; attempt++ {
		if attempt > 1 {
			time.Sleep(time.Duration(attempt-1) * 2 * time.Second)
			logf("retrying download (%d/%d): %s", attempt, retries, url)
		}
		lastErr = downloadOnce(url, dest)
		if lastErr == nil {
			return nil
		}
	}
	return fmt.Errorf("download %s after %d attempts: %w", url, retries, lastErr)
}

func downloadOnce(url, dest string) error {
	resp, err := http.Get(url)
	if err != nil {
		return err
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %s", resp.Status)
	}

	tmp, err := os.CreateTemp(filepath.Dir(dest), filepath.Base(dest)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := io.Copy(tmp, resp.Body); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("write payload: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, dest); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("finalize cache entry: %w", err)
	}
	return nil
}
