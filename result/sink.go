package result

import (
	"context"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
)

// CombinedSink fans records out to multiple sinks.
type CombinedSink struct {
	Sinks []Sink
}

func (c CombinedSink) WriteDiff(ctx context.Context, d Diff) error {
	for _, s := range c.Sinks {
		if err := s.WriteDiff(ctx, d); err != nil {
			return err
		}
	}
	return nil
}

func (c CombinedSink) WriteComparison(ctx context.Context, cmp Comparison) error {
	for _, s := range c.Sinks {
		if err := s.WriteComparison(ctx, cmp); err != nil {
			return err
		}
	}
	return nil
}

func (c CombinedSink) Close() error {
	var err error
	for _, s := range c.Sinks {
		err = errors.CombineErrors(err, s.Close())
	}
	return err
}

// LogSink reports to `zerolog`.
type LogSink struct {
	zerolog.Logger
}

func (l LogSink) WriteDiff(ctx context.Context, d Diff) error {
	switch d.Type {
	case DiffOnlyA:
		l.Warn().
			Str("relation_a", d.RelationA).
			Str("relation_b", d.RelationB).
			Str("identity", d.Identity).
			Str("row", d.Row).
			Msgf("row only in relation a")
	case DiffOnlyB:
		l.Warn().
			Str("relation_a", d.RelationA).
			Str("relation_b", d.RelationB).
			Str("identity", d.Identity).
			Str("row", d.Row).
			Msgf("row only in relation b")
	case DiffValueDiff:
		l.Warn().
			Str("relation_a", d.RelationA).
			Str("relation_b", d.RelationB).
			Str("identity", d.Identity).
			Str("column", d.Column).
			Str("value_a", d.ValueA).
			Str("value_b", d.ValueB).
			Msgf("mismatching row value")
	default:
		l.Error().
			Str("type", string(d.Type)).
			Msgf("unknown diff type")
	}
	return nil
}

func (l LogSink) WriteComparison(ctx context.Context, c Comparison) error {
	l.Info().
		Str("run_id", c.RunID).
		Str("relation_a", c.RelationA).
		Str("relation_b", c.RelationB).
		Str("method", c.Method()).
		Int64("row_count_a", c.RowCountA).
		Int64("row_count_b", c.RowCountB).
		Int64("matched", c.MatchedCount).
		Int64("only_a", c.OnlyACount).
		Int64("only_b", c.OnlyBCount).
		Int64("diff_values", c.DiffValueCount).
		Float64("match_percentage", c.MatchPercentage).
		Bool("identical", c.Identical).
		Msgf("comparison complete")
	return nil
}

func (l LogSink) Close() error {
	return nil
}

// MemorySink retains every record in memory.
type MemorySink struct {
	mu          sync.Mutex
	diffs       []Diff
	comparisons []Comparison
}

func (m *MemorySink) WriteDiff(ctx context.Context, d Diff) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.diffs = append(m.diffs, d)
	return nil
}

func (m *MemorySink) WriteComparison(ctx context.Context, c Comparison) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.comparisons = append(m.comparisons, c)
	return nil
}

func (m *MemorySink) Close() error {
	return nil
}

func (m *MemorySink) Diffs() []Diff {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Diff(nil), m.diffs...)
}

func (m *MemorySink) Comparisons() []Comparison {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Comparison(nil), m.comparisons...)
}

// Reset drops all retained records.
func (m *MemorySink) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.diffs = nil
	m.comparisons = nil
}

// DiscardSink drops every record.
type DiscardSink struct{}

func (DiscardSink) WriteDiff(context.Context, Diff) error {
	return nil
}

func (DiscardSink) WriteComparison(context.Context, Comparison) error {
	return nil
}

func (DiscardSink) Close() error {
	return nil
}
