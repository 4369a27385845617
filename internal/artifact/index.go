package artifact

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"tools.zach/dev/crashwatch/internal/atomicfile"
	"tools.zach/dev/crashwatch/internal/migrate"
)

// ///////////////////////////////////////////////
// Index Types
// ///////////////////////////////////////////////

// Entry is an [Artifact] plus the daemon's bookkeeping about it.
type Entry struct {
	Artifact
	// FirstSeen is the Unix timestamp when the daemon first indexed this
	// artifact.
	FirstSeen int64 `json:"firstSeen"`
	// Reported is true once the collector has acknowledged the artifact.
	Reported bool `json:"reported"`
	// MissingSince is the Unix timestamp when the daemon first noticed
	// the file gone from disk, or zero while it is present. Used by
	// [Index.Prune].
	MissingSince int64 `json:"missingSince,omitempty"`
}

// Index tracks every artifact the daemon has seen, keyed by file name.
// It is persisted as versioned JSON in the data directory so restarts do
// not re-report artifacts.
type Index struct {
	// Version is the schema version, used for migration.
	Version int `json:"$version"`
	// Entries maps artifact file names to their entries.
	Entries map[string]*Entry `json:"entries"`
}

// NewIndex returns an empty index at the current schema version.
func NewIndex() *Index {
	return &Index{
		Version: migrate.Index.CurrentVersion,
		Entries: map[string]*Entry{},
	}
}

// ///////////////////////////////////////////////
// Persistence
// ///////////////////////////////////////////////

// LoadIndex reads the index file at path, applying schema migrations when
// the on-disk version is behind. A missing file yields an empty index.
func LoadIndex(path string) (*Index, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return NewIndex(), nil
		}
		return nil, fmt.Errorf("read index: %w", err)
	}

	var peek struct {
		Version int `json:"$version"`
	}
	if err := json.Unmarshal(data, &peek); err != nil {
		return nil, fmt.Errorf("parse index: %w", err)
	}
	version := peek.Version
	if version == 0 {
		version = 1
	}

	if migrate.Index.NeedsMigration(version) {
		data, version, err = migrate.Index.Run(data, version)
		if err != nil {
			return nil, fmt.Errorf("migrate index: %w", err)
		}
	}

	ix := NewIndex()
	if err := json.Unmarshal(data, ix); err != nil {
		return nil, fmt.Errorf("parse index: %w", err)
	}
	ix.Version = migrate.Index.CurrentVersion
	if ix.Entries == nil {
		ix.Entries = map[string]*Entry{}
	}
	return ix, nil
}

// Save writes the index atomically to path.
func (ix *Index) Save(path string) error {
	if err := atomicfile.WriteJSON(path, ix, 0o644); err != nil {
		return fmt.Errorf("write index: %w", err)
	}
	return nil
}

// ///////////////////////////////////////////////
// Bookkeeping
// ///////////////////////////////////////////////

// Observe records a scanned artifact. It returns true when the artifact is
// new to the index (never seen under this name with these contents). An
// artifact whose contents changed under the same name is treated as new and
// its reported flag is reset.
func (ix *Index) Observe(a Artifact, now time.Time) (isNew bool) {
	e, ok := ix.Entries[a.Name]
	if ok && e.SHA256 == a.SHA256 {
		e.MissingSince = 0
		return false
	}
	ix.Entries[a.Name] = &Entry{
		Artifact:  a,
		FirstSeen: now.Unix(),
	}
	return true
}

// MarkReported flags the named artifact as acknowledged by the collector.
func (ix *Index) MarkReported(name string) {
	if e, ok := ix.Entries[name]; ok {
		e.Reported = true
	}
}

// Unreported returns the entries not yet acknowledged by the collector,
// for re-queueing after failed uploads or a daemon restart.
func (ix *Index) Unreported() []*Entry {
	var out []*Entry
	for _, e := range ix.Entries {
		if !e.Reported {
			out = append(out, e)
		}
	}
	return out
}

// Counts returns the total number of indexed artifacts and how many of
// them have been reported.
func (ix *Index) Counts() (total, reported int) {
	total = len(ix.Entries)
	for _, e := range ix.Entries {
		if e.Reported {
			reported++
		}
	}
	return total, reported
}

// Prune drops entries whose artifact has been absent from disk for longer
// than maxAge. present holds the file names currently on disk; entries in
// it get their MissingSince cleared, entries absent from it get it stamped
// on first notice. A zero maxAge disables dropping (absence is still
// tracked). Returns the number of entries removed.
func (ix *Index) Prune(present map[string]bool, now time.Time, maxAge time.Duration) int {
	removed := 0
	for name, e := range ix.Entries {
		if present[name] {
			e.MissingSince = 0
			continue
		}
		if e.MissingSince == 0 {
			e.MissingSince = now.Unix()
			continue
		}
		if maxAge > 0 && now.Sub(time.Unix(e.MissingSince, 0)) > maxAge {
			delete(ix.Entries, name)
			removed++
		}
	}
	return removed
}
