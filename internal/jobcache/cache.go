// Package jobcache maps logical job ids to backend run ids so status checks
// work without the user re-supplying identifiers. The cache is a small JSON
// file holding the last 20 launches, most recent first.
package jobcache

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/unisonhq/unison/internal/log"
)

// MaxEntries bounds the cache; the oldest entry is evicted past this.
const MaxEntries = 20

// Linkage ties a logical job id to the run id the backend assigned.
type Linkage struct {
	JobID string `json:"job_id"`
	RunID string `json:"run_id,omitempty"`
}

type cacheFile struct {
	Jobs []Linkage `json:"jobs"`
}

// Cache is the file-backed linkage store. Not safe for concurrent use; the
// single-process workflow assumption applies to the backing file too.
type Cache struct {
	path string
	jobs []Linkage
}

// DefaultPath returns the cache location under the user's home directory.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	return filepath.Join(home, ".unison", "job_cache.json"), nil
}

// Open loads the cache at path. A missing or corrupt file yields an empty
// cache rather than an error; startup never fails on cache state.
func Open(path string) *Cache {
	c := &Cache{path: path}
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Warn("failed to read job cache, starting empty", "path", path, "error", err)
		}
		return c
	}
	var f cacheFile
	if err := json.Unmarshal(data, &f); err != nil {
		log.Warn("job cache is corrupt, starting empty", "path", path, "error", err)
		return c
	}
	c.jobs = f.Jobs
	if len(c.jobs) > MaxEntries {
		c.jobs = c.jobs[:MaxEntries]
	}
	return c
}

// Add inserts or refreshes a linkage at the front. An existing entry for the
// same job id moves to the front instead of duplicating; the oldest entry is
// evicted when the bound is exceeded. The file is rewritten on every call.
func (c *Cache) Add(jobID, runID string) error {
	if jobID == "" {
		return fmt.Errorf("job id is empty")
	}

	kept := make([]Linkage, 0, len(c.jobs)+1)
	kept = append(kept, Linkage{JobID: jobID, RunID: runID})
	for _, j := range c.jobs {
		if j.JobID == jobID {
			continue
		}
		kept = append(kept, j)
	}
	if len(kept) > MaxEntries {
		kept = kept[:MaxEntries]
	}
	c.jobs = kept
	return c.save()
}

// MostRecent returns the newest linkage, or nil when the cache is empty.
func (c *Cache) MostRecent() *Linkage {
	if len(c.jobs) == 0 {
		return nil
	}
	j := c.jobs[0]
	return &j
}

// Find returns the run id recorded for a job id. The second return is false
// when the job id is unknown or has no run id yet.
func (c *Cache) Find(jobID string) (string, bool) {
	for _, j := range c.jobs {
		if j.JobID == jobID {
			return j.RunID, j.RunID != ""
		}
	}
	return "", false
}

// All returns the cached linkages, most recent first.
func (c *Cache) All() []Linkage {
	out := make([]Linkage, len(c.jobs))
	copy(out, c.jobs)
	return out
}

// Clear removes every entry and rewrites the file.
func (c *Cache) Clear() error {
	c.jobs = nil
	return c.save()
}

func (c *Cache) save() error {
	if dir := filepath.Dir(c.path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create cache directory: %w", err)
		}
	}
	data, err := json.MarshalIndent(cacheFile{Jobs: c.jobs}, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal job cache: %w", err)
	}
	if err := os.WriteFile(c.path, data, 0o644); err != nil {
		return fmt.Errorf("write job cache: %w", err)
	}
	return nil
}
