package compare_test

import (
	"context"
	"strconv"
	"testing"

	"github.com/cockroachdb/datadiff/compare"
	"github.com/cockroachdb/datadiff/dbconn"
	"github.com/cockroachdb/datadiff/keyspec"
	"github.com/cockroachdb/datadiff/relation"
	"github.com/cockroachdb/datadiff/relation/sqlrel"
	"github.com/cockroachdb/datadiff/result"
	"github.com/cockroachdb/datadiff/testutils"
	"github.com/cockroachdb/datadriven"
	"github.com/stretchr/testify/require"
)

func TestLiveDataDriven(t *testing.T) {
	testutils.SkipWithoutDatabases(t)
	for _, tc := range []struct {
		name   string
		source string
		target string
	}{
		{name: "pg_mysql", source: testutils.PGConnStr(), target: testutils.MySQLConnStr()},
		{name: "pg_crdb", source: testutils.PGConnStr(), target: testutils.CRDBConnStr()},
	} {
		t.Run(tc.name, func(t *testing.T) {
			datadriven.Walk(t, "testdata/live", func(t *testing.T, path string) {
				ctx := context.Background()
				var conns dbconn.OrderedConns
				for i, c := range []struct {
					id  dbconn.ID
					url string
				}{
					{id: "source", url: tc.source},
					{id: "target", url: tc.target},
				} {
					conn, err := dbconn.TestOnlyCleanDatabase(ctx, c.id, c.url, "compare_test")
					require.NoError(t, err)
					conns[i] = conn
				}
				defer func() {
					for _, conn := range conns {
						require.NoError(t, conn.Close(ctx))
					}
				}()

				var sink result.MemorySink
				engine := compare.NewEngine(
					relation.OrderedSources{sqlrel.New(conns[0]), sqlrel.New(conns[1])},
					&sink,
				)
				datadriven.RunTest(t, path, func(t *testing.T, d *datadriven.TestData) string {
					switch d.Cmd {
					case "exec":
						out := testutils.ExecConnCommand(t, d, conns)
						require.NotContains(t, out, "error")
						return ""
					case "compare":
						req := compare.Request{RunID: "run"}
						d.ScanArgs(t, "a", &req.RelationA)
						d.ScanArgs(t, "b", &req.RelationB)
						var key string
						d.ScanArgs(t, "key", &key)
						req.Key = keyspec.Parse(key)
						if d.HasArg("tolerance") {
							var tol string
							d.ScanArgs(t, "tolerance", &tol)
							f, err := strconv.ParseFloat(tol, 64)
							require.NoError(t, err)
							req.NumericTolerance = f
						}
						sink.Reset()
						res, err := engine.Compare(ctx, req)
						require.NoError(t, err)
						return testutils.FormatComparison(res, sink.Diffs())
					}
					t.Errorf("unknown command %s", d.Cmd)
					return ""
				})
			})
		})
	}
}
