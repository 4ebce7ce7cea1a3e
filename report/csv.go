package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"dirdiff/diff"
)

var csvHeader = []string{"kind", "path", "size", "from_size", "to_size"}

// writeCSV emits one row per path and a trailing summary row whose path
// column carries the counts.
func writeCSV(w io.Writer, rep diff.Report, opts Options, m *Metrics) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	for _, o := range rep.Outcomes() {
		if o.Kind == diff.Identical && !opts.ShowIdentical {
			continue
		}
		if err := cw.Write(csvRow(o)); err != nil {
			return err
		}
	}

	s := newSummary(rep, m)
	counts := fmt.Sprintf("added=%d;removed=%d;modified=%d;identical=%d", s.Added, s.Removed, s.Modified, s.Identical)
	if err := cw.Write([]string{"summary", counts, strconv.Itoa(s.Total), "", ""}); err != nil {
		return err
	}
	cw.Flush()
	return cw.Error()
}

func csvRow(o diff.Outcome) []string {
	size := strconv.FormatUint(o.Size, 10)
	from := strconv.FormatUint(o.FromSize, 10)
	to := strconv.FormatUint(o.ToSize, 10)
	switch o.Kind {
	case diff.Added:
		from = ""
	case diff.Removed:
		to = ""
	case diff.Modified:
		size = ""
	}
	return []string{string(o.Kind), o.Path, size, from, to}
}
