package scanner

import (
	"sort"

	"dirdiff/hasher"
)

// FileRecord is one hashed file of a tree, keyed by its slash separated path
// relative to the scan root.
type FileRecord struct {
	Path string `json:"path"`
	hasher.Fingerprint
}

// Result maps relative paths to fingerprints. Files that could not be read
// have no entry.
type Result map[string]hasher.Fingerprint

// Records returns the result as records sorted by path.
func (r Result) Records() []FileRecord {
	records := make([]FileRecord, 0, len(r))
	for path, fp := range r {
		records = append(records, FileRecord{Path: path, Fingerprint: fp})
	}
	sort.Slice(records, func(i, j int) bool { return records[i].Path < records[j].Path })
	return records
}

func (r Result) add(rec FileRecord) {
	r[rec.Path] = rec.Fingerprint
}
