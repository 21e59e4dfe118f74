package result

import (
	"context"
	"encoding/csv"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/klauspost/compress/gzip"
)

var diffCSVHeader = []string{
	"run_id", "relation_a", "relation_b", "type", "identity", "column", "value_a", "value_b", "row",
}

// CSVSink writes diffs as CSV records. Comparisons are not written.
type CSVSink struct {
	mu      sync.Mutex
	w       *csv.Writer
	closers []io.Closer
}

func NewCSVSink(w io.Writer) (*CSVSink, error) {
	s := &CSVSink{w: csv.NewWriter(w)}
	if err := s.w.Write(diffCSVHeader); err != nil {
		return nil, errors.Wrap(err, "error writing csv header")
	}
	return s, nil
}

// CreateCSVSink creates a file at path and writes diffs to it. Paths ending
// in .gz are gzip compressed.
func CreateCSVSink(path string) (*CSVSink, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, errors.Wrapf(err, "error creating diff file %s", path)
	}
	var w io.Writer = f
	closers := []io.Closer{f}
	if strings.HasSuffix(path, ".gz") {
		gz := gzip.NewWriter(f)
		w = gz
		closers = []io.Closer{gz, f}
	}
	s, err := NewCSVSink(w)
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	s.closers = closers
	return s, nil
}

func (s *CSVSink) WriteDiff(ctx context.Context, d Diff) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write([]string{
		d.RunID, d.RelationA, d.RelationB, string(d.Type), d.Identity, d.Column, d.ValueA, d.ValueB, d.Row,
	})
}

func (s *CSVSink) WriteComparison(ctx context.Context, c Comparison) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.w.Flush()
	return s.w.Error()
}

func (s *CSVSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.w.Flush()
	err := s.w.Error()
	for _, c := range s.closers {
		err = errors.CombineErrors(err, c.Close())
	}
	return err
}
