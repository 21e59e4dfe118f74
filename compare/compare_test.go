package compare

import (
	"context"
	"fmt"
	"strconv"
	"testing"
	"time"

	"github.com/cockroachdb/datadiff/compare/scratch"
	"github.com/cockroachdb/datadiff/keyspec"
	"github.com/cockroachdb/datadiff/relation"
	"github.com/cockroachdb/datadiff/relation/memrel"
	"github.com/cockroachdb/datadiff/result"
	"github.com/cockroachdb/datadiff/rowvalue"
	"github.com/cockroachdb/datadiff/testutils"
	"github.com/cockroachdb/datadriven"
	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestDataDriven(t *testing.T) {
	for _, scratchKind := range []string{"memory", "sqlite"} {
		t.Run(scratchKind, func(t *testing.T) {
			datadriven.Walk(t, "testdata/datadriven", func(t *testing.T, path string) {
				ctx := context.Background()
				sources := relation.OrderedSources{memrel.New(), memrel.New()}
				factory := scratch.NewMemoryStore
				if scratchKind == "sqlite" {
					factory = scratch.SQLiteFactory(zerolog.Nop(), t.TempDir())
				}
				var sink result.MemorySink
				engine := NewEngine(sources, &sink, WithScratch(factory))

				datadriven.RunTest(t, path, func(t *testing.T, d *datadriven.TestData) string {
					switch d.Cmd {
					case "relation":
						var side, name string
						d.ScanArgs(t, "side", &side)
						d.ScanArgs(t, "name", &name)
						rel, err := memrel.ParseCSV(d.Input)
						require.NoError(t, err)
						for _, src := range sourcesForSide(t, sources, side) {
							src.(*memrel.Source).Put(name, rel)
						}
						return ""
					case "inject":
						var side, name, op string
						d.ScanArgs(t, "side", &side)
						d.ScanArgs(t, "name", &name)
						d.ScanArgs(t, "op", &op)
						for _, src := range sourcesForSide(t, sources, side) {
							src.(*memrel.Source).InjectError(name, memrel.Op(op), errors.Newf("%s", d.Input))
						}
						return ""
					case "compare":
						req := requestFromArgs(t, d)
						sink.Reset()
						res, err := engine.Compare(ctx, req)
						if err != nil {
							return fmt.Sprintf("%s: %s\n", errorClass(err), err.Error())
						}
						require.Len(t, sink.Comparisons(), 1)
						return testutils.FormatComparison(res, sink.Diffs())
					}
					t.Errorf("unknown command %s", d.Cmd)
					return ""
				})
			})
		})
	}
}

func sourcesForSide(t *testing.T, sources relation.OrderedSources, side string) []relation.Source {
	switch side {
	case "a":
		return []relation.Source{sources[0]}
	case "b":
		return []relation.Source{sources[1]}
	case "both":
		return []relation.Source{sources[0], sources[1]}
	}
	t.Fatalf("unknown side %s", side)
	return nil
}

func requestFromArgs(t *testing.T, d *datadriven.TestData) Request {
	req := Request{RunID: "run"}
	for _, arg := range d.CmdArgs {
		val := ""
		if len(arg.Vals) > 0 {
			val = arg.Vals[0]
		}
		switch arg.Key {
		case "a":
			req.RelationA = val
		case "b":
			req.RelationB = val
		case "key":
			req.Key = keyspec.Columns(arg.Vals...)
		case "columns":
			req.Columns = arg.Vals
		case "tolerance":
			f, err := strconv.ParseFloat(val, 64)
			require.NoError(t, err)
			req.NumericTolerance = f
		case "rel-tolerance":
			f, err := strconv.ParseFloat(val, 64)
			require.NoError(t, err)
			req.RelativeTolerance = f
		case "sample-rows":
			n, err := strconv.Atoi(val)
			require.NoError(t, err)
			req.SampleRows = n
		case "case-insensitive":
			req.CaseInsensitive = true
		case "sentinels":
			req.NullSentinels = arg.Vals
		case "duplicate-keys":
			p, err := ParseDuplicatePolicy(val)
			require.NoError(t, err)
			req.DuplicateKeys = p
		default:
			t.Fatalf("unknown argument %s", arg.Key)
		}
	}
	return req
}

func errorClass(err error) string {
	var srcErr *SourceAccessError
	var dupErr *DuplicateKeyError
	switch {
	case IsConfigurationError(err):
		return "configuration error"
	case errors.As(err, &srcErr):
		return "source access error"
	case errors.As(err, &dupErr):
		return "duplicate key error"
	}
	return "error"
}

func threeRowSources(t *testing.T) (relation.OrderedSources, *memrel.Source) {
	src := memrel.New()
	rel, err := memrel.ParseCSV(`id,name,amount
1,x,10
2,y,20
3,z,30`)
	require.NoError(t, err)
	src.Put("t", rel)
	return relation.OrderedSources{src, src}, src
}

func TestIdempotence(t *testing.T) {
	ctx := context.Background()
	sources, _ := threeRowSources(t)
	engine := NewEngine(sources, result.DiscardSink{})
	for _, key := range []keyspec.Spec{keyspec.None(), keyspec.Columns("id"), keyspec.Columns("name", "amount")} {
		t.Run(key.String(), func(t *testing.T) {
			req := Request{RunID: "run", RelationA: "t", RelationB: "t", Key: key}
			first, err := engine.Compare(ctx, req)
			require.NoError(t, err)
			second, err := engine.Compare(ctx, req)
			require.NoError(t, err)
			for _, c := range []*result.Comparison{&first, &second} {
				c.StartTime = time.Time{}
				c.ExecutionTimeSeconds = 0
			}
			require.Equal(t, first, second)

			// Comparing a relation with itself is always identical.
			require.True(t, first.Identical)
			require.Zero(t, first.OnlyACount)
			require.Zero(t, first.OnlyBCount)
			require.Zero(t, first.DiffValueCount)
			require.Equal(t, 100.0, first.MatchPercentage)
		})
	}
}

func TestRunIDGenerated(t *testing.T) {
	sources, _ := threeRowSources(t)
	var sink result.MemorySink
	engine := NewEngine(sources, &sink)
	res, err := engine.Compare(context.Background(), Request{RelationA: "t", RelationB: "t"})
	require.NoError(t, err)
	require.NotEmpty(t, res.RunID)
	require.Equal(t, res.RunID, sink.Comparisons()[0].RunID)
}

func TestExecutionTime(t *testing.T) {
	sources, _ := threeRowSources(t)
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	calls := 0
	clock := func() time.Time {
		calls++
		return start.Add(time.Duration(calls-1) * 1500 * time.Millisecond)
	}
	engine := NewEngine(sources, result.DiscardSink{}, WithClock(clock))
	res, err := engine.Compare(context.Background(), Request{RelationA: "t", RelationB: "t", Key: keyspec.Columns("id")})
	require.NoError(t, err)
	require.Equal(t, start, res.StartTime)
	require.Equal(t, 1.5, res.ExecutionTimeSeconds)
}

type failingSink struct {
	result.MemorySink
}

func (f *failingSink) WriteComparison(ctx context.Context, c result.Comparison) error {
	return errors.New("sink unavailable")
}

func TestSinkFailureIsReported(t *testing.T) {
	sources, _ := threeRowSources(t)
	engine := NewEngine(sources, &failingSink{})
	_, err := engine.Compare(context.Background(), Request{RelationA: "t", RelationB: "t"})
	require.ErrorContains(t, err, "sink unavailable")
	require.False(t, IsConfigurationError(err))
}

type closeTrackingStore struct {
	scratch.Store
	closed *bool
}

func (s closeTrackingStore) Close() error {
	*s.closed = true
	return s.Store.Close()
}

func TestScratchReleasedOnError(t *testing.T) {
	ctx := context.Background()
	sources, src := threeRowSources(t)
	src.InjectError("t", memrel.OpScan, errors.New("connection reset"))
	closed := false
	engine := NewEngine(sources, result.DiscardSink{}, WithScratch(func(ctx context.Context) (scratch.Store, error) {
		s, err := scratch.NewMemoryStore(ctx)
		return closeTrackingStore{Store: s, closed: &closed}, err
	}))
	_, err := engine.Compare(ctx, Request{RelationA: "t", RelationB: "t", Key: keyspec.Columns("id")})
	var srcErr *SourceAccessError
	require.True(t, errors.As(err, &srcErr))
	require.Equal(t, "t", srcErr.Relation)
	require.ErrorContains(t, err, "connection reset")
	require.True(t, closed)
}

func TestCountsBounded(t *testing.T) {
	ctx := context.Background()
	src := memrel.New()
	for name, text := range map[string]string{
		"a": "id,v\n1,a\n1,a\n2,b\n3,c\n4,d",
		"b": "id,v\n1,a\n2,x\n2,x\n5,e",
	} {
		rel, err := memrel.ParseCSV(text)
		require.NoError(t, err)
		src.Put(name, rel)
	}
	engine := NewEngine(relation.OrderedSources{src, src}, result.DiscardSink{})
	for _, req := range []Request{
		{RelationA: "a", RelationB: "b"},
		{RelationA: "a", RelationB: "b", Key: keyspec.Columns("id"), DuplicateKeys: DuplicatesFirstSeen},
	} {
		res, err := engine.Compare(ctx, req)
		require.NoError(t, err)
		require.LessOrEqual(t, res.MatchedCount+res.OnlyACount, res.RowCountA)
		if res.HasKey {
			require.LessOrEqual(t, res.MatchedCount+res.OnlyBCount, res.RowCountB)
			require.Equal(t, int64(1), res.DuplicateKeysA)
			require.Equal(t, int64(1), res.DuplicateKeysB)
		}
	}
}

func TestMatchPercentage(t *testing.T) {
	for _, tc := range []struct {
		matched, a, b int64
		expected      float64
	}{
		{matched: 0, a: 0, b: 0, expected: 100},
		{matched: 0, a: 0, b: 1, expected: 0},
		{matched: 1, a: 3, b: 3, expected: 33.33},
		{matched: 2, a: 3, b: 3, expected: 66.67},
		{matched: 3, a: 3, b: 3, expected: 100},
		{matched: 2, a: 2, b: 1, expected: 133.33},
	} {
		t.Run(fmt.Sprintf("%d_%d_%d", tc.matched, tc.a, tc.b), func(t *testing.T) {
			require.Equal(t, tc.expected, MatchPercentage(tc.matched, tc.a, tc.b))
		})
	}
}

func TestNullSentinelEquivalence(t *testing.T) {
	ctx := context.Background()
	src := memrel.New()
	src.Put("a", memrel.Relation{
		Columns: []relation.Column{{Name: "id"}, {Name: "v"}},
		Rows: []rowvalue.Row{
			rowvalue.Strings("1", ""),
			rowvalue.Strings("2", "."),
			rowvalue.Strings("3", "NULL"),
		},
	})
	src.Put("b", memrel.Relation{
		Columns: []relation.Column{{Name: "ID"}, {Name: "V"}},
		Rows: []rowvalue.Row{
			{rowvalue.Of("1"), rowvalue.Null()},
			{rowvalue.Of("2"), rowvalue.Null()},
			{rowvalue.Of("3"), rowvalue.Null()},
		},
	})
	engine := NewEngine(relation.OrderedSources{src, src}, result.DiscardSink{})
	for _, key := range []keyspec.Spec{keyspec.None(), keyspec.Columns("id")} {
		res, err := engine.Compare(ctx, Request{RelationA: "a", RelationB: "b", Key: key})
		require.NoError(t, err)
		require.True(t, res.Identical, "key %s", key)
		require.Equal(t, int64(3), res.MatchedCount)
	}
}

func TestRequestColumnsPreserved(t *testing.T) {
	sources, _ := threeRowSources(t)
	engine := NewEngine(sources, result.DiscardSink{})
	res, err := engine.Compare(context.Background(), Request{
		RelationA: "t", RelationB: "t", Key: keyspec.Parse("id"), Columns: []string{"AMOUNT", "name"},
	})
	require.NoError(t, err)
	require.Equal(t, []string{"amount", "name"}, res.ColumnsCompared)
	require.Equal(t, "id", res.KeyString())
	require.Equal(t, "keyed", res.Method())
}

func TestNonUTF8ValuesSpill(t *testing.T) {
	ctx := context.Background()
	src := memrel.New()
	src.Put("blobs", memrel.Relation{
		Columns: []relation.Column{{Name: "id"}, {Name: "payload"}},
		Rows: []rowvalue.Row{
			rowvalue.Strings("1", "\xff\xfe"),
			rowvalue.Strings("2", "caf\xc3"),
			{rowvalue.Of("3"), rowvalue.Null()},
		},
	})
	for name, factory := range map[string]scratch.Factory{
		"memory": scratch.NewMemoryStore,
		"sqlite": scratch.SQLiteFactory(zerolog.Nop(), t.TempDir()),
	} {
		t.Run(name, func(t *testing.T) {
			var sink result.MemorySink
			engine := NewEngine(relation.OrderedSources{src, src}, &sink, WithScratch(factory))
			for _, key := range []keyspec.Spec{keyspec.Columns("id"), keyspec.None()} {
				sink.Reset()
				res, err := engine.Compare(ctx, Request{RelationA: "blobs", RelationB: "blobs", Key: key})
				require.NoError(t, err)
				require.True(t, res.Identical, "key %s", key)
				require.Equal(t, int64(3), res.MatchedCount)
				require.Empty(t, sink.Diffs())
			}
		})
	}
}
