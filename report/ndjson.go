package report

import (
	"io"

	"dirdiff/diff"
	"dirdiff/systeminfo"
)

type record struct {
	RecordType    string      `json:"record_type"`
	SchemaVersion string      `json:"schema_version"`
	Payload       interface{} `json:"payload"`
}

type comparisonPayload struct {
	From       string                 `json:"from"`
	To         string                 `json:"to"`
	Algorithm  string                 `json:"algorithm"`
	SystemInfo *systeminfo.SystemInfo `json:"system_info,omitempty"`
}

type filePayload struct {
	Kind     diff.Kind `json:"kind"`
	Path     string    `json:"path"`
	Size     *uint64   `json:"size,omitempty"`
	FromSize *uint64   `json:"from_size,omitempty"`
	ToSize   *uint64   `json:"to_size,omitempty"`
}

func newFilePayload(o diff.Outcome) filePayload {
	p := filePayload{Kind: o.Kind, Path: o.Path}
	switch o.Kind {
	case diff.Modified:
		p.FromSize = uint64Ptr(o.FromSize)
		p.ToSize = uint64Ptr(o.ToSize)
	default:
		p.Size = uint64Ptr(o.Size)
	}
	return p
}

func uint64Ptr(v uint64) *uint64 {
	return &v
}

func writeNDJSON(w io.Writer, rep diff.Report, opts Options, m *Metrics) error {
	if err := writeRecord(w, "comparison", comparisonPayload{
		From:       opts.From,
		To:         opts.To,
		Algorithm:  opts.Algorithm,
		SystemInfo: opts.SystemInfo,
	}); err != nil {
		return err
	}
	for _, o := range rep.Outcomes() {
		if o.Kind == diff.Identical && !opts.ShowIdentical {
			continue
		}
		if err := writeRecord(w, "file", newFilePayload(o)); err != nil {
			return err
		}
	}
	return writeRecord(w, "summary", newSummary(rep, m))
}

func writeRecord(w io.Writer, recordType string, payload interface{}) error {
	data, err := jsonMarshal(record{
		RecordType:    recordType,
		SchemaVersion: SchemaVersion,
		Payload:       payload,
	})
	if err != nil {
		return err
	}
	data = append(data, '\n')
	_, err = w.Write(data)
	return err
}
