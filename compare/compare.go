// Package compare contains the comparison engine, which partitions the rows
// of two relations into matched, A-only, B-only and value-differing rows.
package compare

import (
	"context"
	"math"
	"strings"
	"time"

	"github.com/cockroachdb/datadiff/compare/hashcmp"
	"github.com/cockroachdb/datadiff/compare/keyedcmp"
	"github.com/cockroachdb/datadiff/compare/scratch"
	"github.com/cockroachdb/datadiff/keyspec"
	"github.com/cockroachdb/datadiff/relation"
	"github.com/cockroachdb/datadiff/result"
	"github.com/cockroachdb/datadiff/rowvalue"
	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Request configures a single comparison.
type Request struct {
	RunID     string
	RelationA string
	RelationB string
	Key       keyspec.Spec
	// Columns lists the columns to compare in order. Empty compares all
	// columns the relations have in common.
	Columns          []string
	NumericTolerance float64
	// RelativeTolerance also accepts numeric differences up to this fraction
	// of the larger absolute value.
	RelativeTolerance float64
	CaseInsensitive   bool
	// NullSentinels overrides the literals treated as null. Nil selects
	// rowvalue.DefaultSentinels.
	NullSentinels []string
	DuplicateKeys DuplicatePolicy
	// SampleRows bounds how many one-sided rows of a hash comparison are
	// reported with their content, split evenly between the sides. Zero
	// selects DefaultSampleRows and a negative value disables samples.
	SampleRows int
}

const DefaultSampleRows = 100

func (r Request) sampleLimit() int {
	switch {
	case r.SampleRows < 0:
		return 0
	case r.SampleRows == 0:
		return (DefaultSampleRows + 1) / 2
	}
	return (r.SampleRows + 1) / 2
}

// Engine runs comparisons between relations of source A and source B.
// An Engine holds no state between calls and may be used concurrently.
type Engine struct {
	sources relation.OrderedSources
	sink    result.Sink
	logger  zerolog.Logger
	scratch scratch.Factory
	now     func() time.Time
}

type EngineOpt func(*Engine)

func WithLogger(logger zerolog.Logger) EngineOpt {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithScratch sets how per-comparison working state is stored.
func WithScratch(f scratch.Factory) EngineOpt {
	return func(e *Engine) {
		e.scratch = f
	}
}

func WithClock(now func() time.Time) EngineOpt {
	return func(e *Engine) {
		e.now = now
	}
}

func NewEngine(sources relation.OrderedSources, sink result.Sink, opts ...EngineOpt) *Engine {
	e := &Engine{
		sources: sources,
		sink:    sink,
		logger:  zerolog.Nop(),
		scratch: scratch.NewMemoryStore,
		now:     time.Now,
	}
	for _, applyOpt := range opts {
		applyOpt(e)
	}
	return e
}

// plan is a validated request resolved against both schemas.
type plan struct {
	opts rowvalue.CompareOptions

	key          keyspec.Resolved
	hasKey       bool
	columnsA     []string
	columnsB     []string
	columnsOnlyA []string
	columnsOnlyB []string
}

// Compare compares the two relations named by the request. Diffs are written
// to the sink while the comparison runs and the comparison is written once it
// completes.
func (e *Engine) Compare(ctx context.Context, req Request) (result.Comparison, error) {
	inProgressMetric.Inc()
	defer inProgressMetric.Dec()

	ret, err := e.compare(ctx, req)
	if err != nil {
		comparisonsMetric.WithLabelValues("error").Inc()
		return result.Comparison{}, err
	}
	if ret.Identical {
		comparisonsMetric.WithLabelValues("identical").Inc()
	} else {
		comparisonsMetric.WithLabelValues("different").Inc()
	}
	return ret, nil
}

func (e *Engine) compare(ctx context.Context, req Request) (result.Comparison, error) {
	start := e.now()
	if req.RunID == "" {
		req.RunID = uuid.New().String()
	}
	logger := e.logger.With().
		Str("run_id", req.RunID).
		Str("relation_a", req.RelationA).
		Str("relation_b", req.RelationB).
		Logger()

	p, err := e.plan(ctx, req)
	if err != nil {
		return result.Comparison{}, err
	}

	countA, err := e.sources[0].RowCount(ctx, req.RelationA)
	if err != nil {
		return result.Comparison{}, &SourceAccessError{Relation: req.RelationA, Op: "row count", Err: err}
	}
	countB, err := e.sources[1].RowCount(ctx, req.RelationB)
	if err != nil {
		return result.Comparison{}, &SourceAccessError{Relation: req.RelationB, Op: "row count", Err: err}
	}

	store, err := e.scratch(ctx)
	if err != nil {
		return result.Comparison{}, errors.Wrap(err, "error opening scratch storage")
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Err(err).Msgf("error releasing scratch storage")
		}
	}()

	emit := func(ctx context.Context, d result.Diff) error {
		d.RunID = req.RunID
		diffsMetric.WithLabelValues(string(d.Type)).Inc()
		if err := e.sink.WriteDiff(ctx, d); err != nil {
			return errors.Wrapf(err, "error writing diff")
		}
		return nil
	}

	ret := result.Comparison{
		RunID:        req.RunID,
		RelationA:    req.RelationA,
		RelationB:    req.RelationB,
		RowCountA:    countA,
		RowCountB:    countB,
		HasKey:       p.hasKey,
		ColumnsOnlyA: p.columnsOnlyA,
		ColumnsOnlyB: p.columnsOnlyB,
		StartTime:    start,
	}
	if p.hasKey {
		logger.Info().Strs("key", p.key.ColumnsA).Strs("columns", p.columnsA).Msgf("starting keyed comparison")
		scanColsA := append(append([]string(nil), p.key.ColumnsA...), p.columnsA...)
		scanColsB := append(append([]string(nil), p.key.ColumnsB...), p.columnsB...)
		stats, err := keyedcmp.Compare(ctx, keyedcmp.Input{
			RelationA:       req.RelationA,
			RelationB:       req.RelationB,
			ScanA:           e.scanFunc(logger, 0, req.RelationA, scanColsA),
			ScanB:           e.scanFunc(logger, 1, req.RelationB, scanColsB),
			NumKeyColumns:   len(p.key.ColumnsA),
			Columns:         p.columnsA,
			Options:         p.opts,
			DuplicatePolicy: req.DuplicateKeys,
			Scratch:         store,
			Emit:            emit,
			Logger:          logger,
		})
		if err != nil {
			return result.Comparison{}, err
		}
		logger.Debug().Str("stats", stats.String()).Msgf("keyed comparison complete")
		ret.KeyColumns = p.key.ColumnsA
		ret.MatchedCount = stats.Matched
		ret.OnlyACount = stats.OnlyA
		ret.OnlyBCount = stats.OnlyB
		ret.DiffValueCount = stats.DiffValues
		ret.DiffRowCount = stats.DiffRows
		ret.DuplicateKeysA = stats.DuplicatesA
		ret.DuplicateKeysB = stats.DuplicatesB
	} else {
		logger.Info().Strs("columns", p.columnsA).Msgf("starting hash comparison")
		stats, err := hashcmp.Compare(ctx, hashcmp.Input{
			RelationA: req.RelationA,
			RelationB: req.RelationB,
			ScanA:     e.scanFunc(logger, 0, req.RelationA, p.columnsA),
			ScanB:     e.scanFunc(logger, 1, req.RelationB, p.columnsB),
			Columns:   p.columnsA,
			Options:   p.opts,
			Scratch:   store,
			Emit:      emit,

			SampleLimit: req.sampleLimit(),
		})
		if err != nil {
			return result.Comparison{}, err
		}
		ret.MatchedCount = stats.Matched
		ret.OnlyACount = stats.OnlyA
		ret.OnlyBCount = stats.OnlyB
	}
	ret.ColumnsCompared = p.columnsA
	ret.MatchPercentage = MatchPercentage(ret.MatchedCount, countA, countB)
	ret.Identical = countA == countB &&
		ret.OnlyACount == 0 &&
		ret.OnlyBCount == 0 &&
		ret.DiffValueCount == 0
	ret.ExecutionTimeSeconds = e.now().Sub(start).Seconds()

	if err := e.sink.WriteComparison(ctx, ret); err != nil {
		return result.Comparison{}, errors.Wrapf(err, "error writing comparison")
	}
	return ret, nil
}

// MatchPercentage is the share of matched rows over the mean row count of
// both sides, rounded to two decimals. Two empty relations match fully.
func MatchPercentage(matched, countA, countB int64) float64 {
	total := countA + countB
	if total == 0 {
		return 100
	}
	pct := 200 * float64(matched) / float64(total)
	return math.Round(pct*100) / 100
}

func (e *Engine) plan(ctx context.Context, req Request) (plan, error) {
	var p plan
	if strings.TrimSpace(req.RelationA) == "" {
		return p, &ConfigurationError{Field: "relation_a", Reason: "must be specified"}
	}
	if strings.TrimSpace(req.RelationB) == "" {
		return p, &ConfigurationError{Field: "relation_b", Reason: "must be specified"}
	}
	opts, err := rowvalue.NewCompareOptions(req.NullSentinels, req.CaseInsensitive, req.NumericTolerance)
	if err != nil {
		return p, &ConfigurationError{Field: "numeric_tolerance", Reason: "must be a number >= 0", Err: err}
	}
	opts, err = opts.WithRelativeTolerance(req.RelativeTolerance)
	if err != nil {
		return p, &ConfigurationError{Field: "relative_tolerance", Reason: "must be a number >= 0", Err: err}
	}
	p.opts = opts
	seen := make(map[string]struct{}, len(req.Columns))
	for _, c := range req.Columns {
		if strings.TrimSpace(c) == "" {
			return p, &ConfigurationError{Field: "columns", Reason: "column names must not be blank"}
		}
		if _, ok := seen[strings.ToLower(c)]; ok {
			return p, &ConfigurationError{Field: "columns", Value: c, Reason: "column specified more than once"}
		}
		seen[strings.ToLower(c)] = struct{}{}
	}

	schemaA, err := e.schema(ctx, 0, req.RelationA, "relation_a")
	if err != nil {
		return p, err
	}
	schemaB, err := e.schema(ctx, 1, req.RelationB, "relation_b")
	if err != nil {
		return p, err
	}

	if req.Key.IsSet() {
		p.key, err = keyspec.Resolve(req.Key, req.RelationA, schemaA, req.RelationB, schemaB)
		if err != nil {
			return p, err
		}
		p.hasKey = true
	}

	for _, c := range schemaA {
		if relation.ColumnIndex(schemaB, c.Name) < 0 {
			p.columnsOnlyA = append(p.columnsOnlyA, c.Name)
		}
	}
	for _, c := range schemaB {
		if relation.ColumnIndex(schemaA, c.Name) < 0 {
			p.columnsOnlyB = append(p.columnsOnlyB, c.Name)
		}
	}

	if len(req.Columns) > 0 {
		for _, c := range req.Columns {
			posA := relation.ColumnIndex(schemaA, c)
			if posA < 0 {
				return p, &InvalidColumnError{Relation: req.RelationA, Column: c}
			}
			posB := relation.ColumnIndex(schemaB, c)
			if posB < 0 {
				return p, &InvalidColumnError{Relation: req.RelationB, Column: c}
			}
			p.columnsA = append(p.columnsA, schemaA[posA].Name)
			p.columnsB = append(p.columnsB, schemaB[posB].Name)
		}
		return p, nil
	}

	for _, c := range schemaA {
		posB := relation.ColumnIndex(schemaB, c.Name)
		if posB < 0 {
			continue
		}
		if p.hasKey && isKeyColumn(p.key, c.Name) {
			continue
		}
		p.columnsA = append(p.columnsA, c.Name)
		p.columnsB = append(p.columnsB, schemaB[posB].Name)
	}
	if !p.hasKey && len(p.columnsA) == 0 {
		return p, &ConfigurationError{Field: "columns", Reason: "relations have no columns in common"}
	}
	return p, nil
}

func isKeyColumn(key keyspec.Resolved, col string) bool {
	for _, k := range key.ColumnsA {
		if strings.EqualFold(k, col) {
			return true
		}
	}
	return false
}

func (e *Engine) schema(
	ctx context.Context, side int, rel string, field string,
) ([]relation.Column, error) {
	schema, err := e.sources[side].Schema(ctx, rel)
	if err != nil {
		if errors.Is(err, relation.ErrNotFound) {
			return nil, &ConfigurationError{Field: field, Value: rel, Reason: "relation not found", Err: err}
		}
		return nil, &SourceAccessError{Relation: rel, Op: "schema", Err: err}
	}
	if len(schema) == 0 {
		return nil, &ConfigurationError{Field: field, Value: rel, Reason: "relation has no columns"}
	}
	return schema, nil
}
