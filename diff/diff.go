// Package diff classifies the files of two scanned trees.
package diff

import (
	"sort"

	"dirdiff/scanner"
)

type Kind string

const (
	Added     Kind = "added"
	Removed   Kind = "removed"
	Modified  Kind = "modified"
	Identical Kind = "identical"
)

// Entry is a path present on one side, or on both sides with equal content.
type Entry struct {
	Path string `json:"path"`
	Size uint64 `json:"size"`
}

// Change is a path present on both sides with different content.
type Change struct {
	Path     string `json:"path"`
	FromSize uint64 `json:"from_size"`
	ToSize   uint64 `json:"to_size"`
}

// Report holds every path of both trees in exactly one bucket. Each bucket is
// sorted by path.
type Report struct {
	Added     []Entry  `json:"added"`
	Removed   []Entry  `json:"removed"`
	Modified  []Change `json:"modified"`
	Identical []Entry  `json:"identical"`
}

type Counts struct {
	Added     int `json:"added"`
	Removed   int `json:"removed"`
	Modified  int `json:"modified"`
	Identical int `json:"identical"`
}

// Diff compares the FROM result a with the TO result b. Paths only in a are
// removed, paths only in b are added, and shared paths are identical when
// digest and size both match. Neither input is modified.
func Diff(a, b scanner.Result) Report {
	keys := make(map[string]struct{}, len(a)+len(b))
	for k := range a {
		keys[k] = struct{}{}
	}
	for k := range b {
		keys[k] = struct{}{}
	}

	report := Report{
		Added:     []Entry{},
		Removed:   []Entry{},
		Modified:  []Change{},
		Identical: []Entry{},
	}
	for k := range keys {
		fa, inA := a[k]
		fb, inB := b[k]
		switch {
		case inA && !inB:
			report.Removed = append(report.Removed, Entry{Path: k, Size: fa.Size})
		case !inA && inB:
			report.Added = append(report.Added, Entry{Path: k, Size: fb.Size})
		case fa == fb:
			report.Identical = append(report.Identical, Entry{Path: k, Size: fa.Size})
		default:
			report.Modified = append(report.Modified, Change{Path: k, FromSize: fa.Size, ToSize: fb.Size})
		}
	}
	report.sort()
	return report
}

func (r *Report) sort() {
	sortEntries(r.Added)
	sortEntries(r.Removed)
	sortEntries(r.Identical)
	sort.Slice(r.Modified, func(i, j int) bool { return r.Modified[i].Path < r.Modified[j].Path })
}

func sortEntries(entries []Entry) {
	sort.Slice(entries, func(i, j int) bool { return entries[i].Path < entries[j].Path })
}

// Empty reports whether neither tree had any file.
func (r Report) Empty() bool {
	return len(r.Added) == 0 && len(r.Removed) == 0 && len(r.Modified) == 0 && len(r.Identical) == 0
}

func (r Report) HasDifferences() bool {
	return len(r.Added) > 0 || len(r.Removed) > 0 || len(r.Modified) > 0
}

func (r Report) Counts() Counts {
	return Counts{
		Added:     len(r.Added),
		Removed:   len(r.Removed),
		Modified:  len(r.Modified),
		Identical: len(r.Identical),
	}
}

// Total is the number of distinct paths across both trees.
func (c Counts) Total() int {
	return c.Added + c.Removed + c.Modified + c.Identical
}

// Reverse returns the report of comparing the trees the other way round.
func (r Report) Reverse() Report {
	out := Report{
		Added:     append([]Entry{}, r.Removed...),
		Removed:   append([]Entry{}, r.Added...),
		Modified:  make([]Change, 0, len(r.Modified)),
		Identical: append([]Entry{}, r.Identical...),
	}
	for _, c := range r.Modified {
		out.Modified = append(out.Modified, Change{Path: c.Path, FromSize: c.ToSize, ToSize: c.FromSize})
	}
	return out
}

// Outcome is one classified path, used by renderers that emit a flat stream.
type Outcome struct {
	Kind     Kind
	Path     string
	Size     uint64
	FromSize uint64
	ToSize   uint64
}

// Outcomes flattens the report in the order identical, added, removed,
// modified, each group sorted by path.
func (r Report) Outcomes() []Outcome {
	out := make([]Outcome, 0, r.Counts().Total())
	for _, e := range r.Identical {
		out = append(out, Outcome{Kind: Identical, Path: e.Path, Size: e.Size, FromSize: e.Size, ToSize: e.Size})
	}
	for _, e := range r.Added {
		out = append(out, Outcome{Kind: Added, Path: e.Path, Size: e.Size, ToSize: e.Size})
	}
	for _, e := range r.Removed {
		out = append(out, Outcome{Kind: Removed, Path: e.Path, Size: e.Size, FromSize: e.Size})
	}
	for _, c := range r.Modified {
		out = append(out, Outcome{Kind: Modified, Path: c.Path, Size: c.ToSize, FromSize: c.FromSize, ToSize: c.ToSize})
	}
	return out
}
