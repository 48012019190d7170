package sink

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"io"
)

// CSV writes a header row followed by one line per row.
type CSV struct {
	w       *csv.Writer
	closer  io.Closer
	columns []string
	runID   string
}

// NewCSV writes the header immediately. closer, if non-nil, is closed by
// Close.
func NewCSV(w io.Writer, closer io.Closer, columns []string, runID string) (*CSV, error) {
	s := &CSV{w: csv.NewWriter(w), closer: closer, columns: columns, runID: runID}
	if err := s.w.Write(append(append([]string(nil), columns...), RunIDField)); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *CSV) Write(_ context.Context, row Row) error {
	rec := make([]string, 0, len(s.columns)+1)
	for _, c := range s.columns {
		rec = append(rec, cell(row[c]))
	}
	rec = append(rec, s.runID)
	if err := s.w.Write(rec); err != nil {
		return err
	}
	s.w.Flush()
	return s.w.Error()
}

func (s *CSV) Close() error {
	s.w.Flush()
	err := s.w.Error()
	if s.closer != nil {
		if cerr := s.closer.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

// JSONL writes one JSON object per line.
type JSONL struct {
	enc     *json.Encoder
	closer  io.Closer
	columns []string
	runID   string
}

// NewJSONL returns a JSON lines sink. closer, if non-nil, is closed by Close.
func NewJSONL(w io.Writer, closer io.Closer, columns []string, runID string) *JSONL {
	return &JSONL{enc: json.NewEncoder(w), closer: closer, columns: columns, runID: runID}
}

func (s *JSONL) Write(_ context.Context, row Row) error {
	return s.enc.Encode(project(row, s.columns, s.runID))
}

func (s *JSONL) Close() error {
	if s.closer != nil {
		return s.closer.Close()
	}
	return nil
}
