// Package batch runs many comparisons and summarises their outcomes.
package batch

import (
	"context"
	"fmt"
	"time"

	"github.com/cockroachdb/datadiff/compare"
	"github.com/cockroachdb/datadiff/keyspec"
	"github.com/cockroachdb/datadiff/relation"
	"github.com/cockroachdb/datadiff/result"
	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// DefaultTolerance is the numeric tolerance for pairs which do not set one.
const DefaultTolerance = 0.0001

type Outcome string

const (
	OutcomeIdentical Outcome = "IDENTICAL"
	OutcomeDifferent Outcome = "DIFFERENT"
	OutcomeError     Outcome = "ERROR"
	// OutcomeSkipped is recorded when a relation does not exist or the batch
	// stopped before the pair ran.
	OutcomeSkipped Outcome = "SKIPPED"
)

type Comparer interface {
	Compare(ctx context.Context, req compare.Request) (result.Comparison, error)
}

type Config struct {
	// RunID is recorded with every comparison in the batch. Each comparison
	// gets its own identifier if unset.
	RunID            string
	Concurrency      int
	StopOnError      bool
	DefaultTolerance float64
	// DefaultRelTolerance is the relative tolerance for pairs which do not
	// set one.
	DefaultRelTolerance float64
	CaseInsensitive     bool
	NullSentinels       []string
	DuplicateKeys       compare.DuplicatePolicy
	SampleRows          int
}

func DefaultConfig() Config {
	return Config{
		Concurrency:      1,
		DefaultTolerance: DefaultTolerance,
		SampleRows:       compare.DefaultSampleRows,
	}
}

type Result struct {
	Pair       Pair
	Outcome    Outcome
	Comparison result.Comparison
	Err        error
}

type Summary struct {
	Results   []Result
	Total     int
	Identical int
	Different int
	Errors    int
	Skipped   int
	StartTime time.Time
	EndTime   time.Time
}

func (s Summary) Duration() time.Duration {
	return s.EndTime.Sub(s.StartTime)
}

// ExitCode is 2 if any comparison failed, 1 if any pair differs or was
// skipped and 0 otherwise.
func (s Summary) ExitCode() int {
	switch {
	case s.Errors > 0:
		return 2
	case s.Different > 0 || s.Skipped > 0:
		return 1
	}
	return 0
}

// PartialRunError is returned when some pairs could not be compared.
type PartialRunError struct {
	Failed  int
	Skipped int
	Total   int
}

func (e *PartialRunError) Error() string {
	msg := fmt.Sprintf("%d of %d comparisons failed", e.Failed, e.Total)
	if e.Skipped > 0 {
		msg += fmt.Sprintf(", %d skipped", e.Skipped)
	}
	return msg
}

// Run compares every pair, running up to cfg.Concurrency comparisons at once.
// A failed pair is recorded and the batch continues unless cfg.StopOnError
// is set. The summary is complete even when an error is returned.
func Run(
	ctx context.Context, logger zerolog.Logger, c Comparer, pairs []Pair, cfg Config,
) (Summary, error) {
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	summary := Summary{
		Results:   make([]Result, len(pairs)),
		Total:     len(pairs),
		StartTime: time.Now(),
	}
	logger.Info().Int("pairs", len(pairs)).Int("concurrency", cfg.Concurrency).Msgf("starting batch comparison")

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.Concurrency)
	for i, p := range pairs {
		i, p := i, p
		g.Go(func() error {
			if err := gCtx.Err(); err != nil {
				summary.Results[i] = Result{Pair: p, Outcome: OutcomeSkipped, Err: err}
				return nil
			}
			pairLogger := logger.With().Str("source", p.RelationA).Str("target", p.RelationB).Logger()
			pairLogger.Info().Msgf("[%d/%d] comparing", i+1, len(pairs))
			res := runOne(gCtx, c, p, cfg)
			summary.Results[i] = res
			switch res.Outcome {
			case OutcomeError:
				pairLogger.Error().Err(res.Err).Msgf("comparison failed")
				if cfg.StopOnError {
					return errors.Wrapf(res.Err, "error comparing %s", p)
				}
			case OutcomeSkipped:
				pairLogger.Warn().Err(res.Err).Msgf("comparison skipped")
			default:
				pairLogger.Info().
					Str("outcome", string(res.Outcome)).
					Float64("match_percentage", res.Comparison.MatchPercentage).
					Msgf("comparison complete")
			}
			return nil
		})
	}
	err := g.Wait()
	summary.EndTime = time.Now()
	for _, r := range summary.Results {
		switch r.Outcome {
		case OutcomeIdentical:
			summary.Identical++
		case OutcomeDifferent:
			summary.Different++
		case OutcomeError:
			summary.Errors++
		case OutcomeSkipped:
			summary.Skipped++
		}
	}
	logger.Info().
		Int("total", summary.Total).
		Int("identical", summary.Identical).
		Int("different", summary.Different).
		Int("errors", summary.Errors).
		Int("skipped", summary.Skipped).
		Dur("duration", summary.Duration()).
		Msgf("batch comparison complete")
	if err != nil {
		return summary, err
	}
	if summary.Errors > 0 || summary.Skipped > 0 {
		return summary, &PartialRunError{Failed: summary.Errors, Skipped: summary.Skipped, Total: summary.Total}
	}
	return summary, nil
}

func runOne(ctx context.Context, c Comparer, p Pair, cfg Config) Result {
	tolerance := cfg.DefaultTolerance
	if p.Tolerance != nil {
		tolerance = *p.Tolerance
	}
	relTolerance := cfg.DefaultRelTolerance
	if p.RelTolerance != nil {
		relTolerance = *p.RelTolerance
	}
	cmp, err := c.Compare(ctx, compare.Request{
		RunID:             cfg.RunID,
		RelationA:         p.RelationA,
		RelationB:         p.RelationB,
		Key:               keyspec.Parse(p.Key),
		Columns:           p.Columns,
		NumericTolerance:  tolerance,
		RelativeTolerance: relTolerance,
		CaseInsensitive:   p.CaseInsensitive || cfg.CaseInsensitive,
		NullSentinels:     cfg.NullSentinels,
		DuplicateKeys:     cfg.DuplicateKeys,
		SampleRows:        cfg.SampleRows,
	})
	switch {
	case err == nil && cmp.Identical:
		return Result{Pair: p, Outcome: OutcomeIdentical, Comparison: cmp}
	case err == nil:
		return Result{Pair: p, Outcome: OutcomeDifferent, Comparison: cmp}
	case errors.Is(err, relation.ErrNotFound), errors.Is(err, context.Canceled) && ctx.Err() != nil:
		return Result{Pair: p, Outcome: OutcomeSkipped, Err: err}
	}
	return Result{Pair: p, Outcome: OutcomeError, Err: err}
}
