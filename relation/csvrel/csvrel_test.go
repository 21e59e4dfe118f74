package csvrel

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/cockroachdb/datadiff/blobstore"
	"github.com/cockroachdb/datadiff/compare"
	"github.com/cockroachdb/datadiff/keyspec"
	"github.com/cockroachdb/datadiff/relation"
	"github.com/cockroachdb/datadiff/result"
	"github.com/cockroachdb/datadiff/rowvalue"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

const ordersCSV = "id,name,amount\n1,x,10\n2,\"y, z\",\\N\n"

func writeExports(t *testing.T) string {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "orders.csv"), []byte(ordersCSV), 0o644))

	gzFile, err := os.Create(filepath.Join(dir, "orders_gz.csv.gz"))
	require.NoError(t, err)
	gz := gzip.NewWriter(gzFile)
	_, err = io.WriteString(gz, ordersCSV)
	require.NoError(t, err)
	require.NoError(t, gz.Close())
	require.NoError(t, gzFile.Close())

	zstFile, err := os.Create(filepath.Join(dir, "orders_zst.csv.zst"))
	require.NoError(t, err)
	enc, err := zstd.NewWriter(zstFile)
	require.NoError(t, err)
	_, err = io.WriteString(enc, "id,name,amount\n1,x,10\n2,\"y, z\",20\n")
	require.NoError(t, err)
	require.NoError(t, enc.Close())
	require.NoError(t, zstFile.Close())

	require.NoError(t, os.WriteFile(filepath.Join(dir, "empty.csv"), nil, 0o644))
	return dir
}

func TestSource(t *testing.T) {
	ctx := context.Background()
	store, err := blobstore.NewLocalStore(zerolog.Nop(), writeExports(t))
	require.NoError(t, err)
	src := New(store, zerolog.Nop())

	for _, rel := range []string{"orders", "orders.csv", "orders_gz"} {
		t.Run(rel, func(t *testing.T) {
			schema, err := src.Schema(ctx, rel)
			require.NoError(t, err)
			require.Equal(t, []string{"id", "name", "amount"}, relation.ColumnNames(schema))

			count, err := src.RowCount(ctx, rel)
			require.NoError(t, err)
			require.Equal(t, int64(2), count)

			it, err := src.Scan(ctx, rel, []string{"AMOUNT", "name"})
			require.NoError(t, err)
			rows, err := relation.Drain(ctx, it)
			require.NoError(t, err)
			require.Equal(t, []rowvalue.Row{
				rowvalue.Strings("10", "x"),
				{rowvalue.Null(), rowvalue.Of("y, z")},
			}, rows)
		})
	}

	_, err = src.Schema(ctx, "missing")
	require.ErrorIs(t, err, relation.ErrNotFound)

	_, err = src.Schema(ctx, "empty")
	require.EqualError(t, err, "export empty.csv has no header")
}

func TestCompareExports(t *testing.T) {
	ctx := context.Background()
	store, err := blobstore.NewLocalStore(zerolog.Nop(), writeExports(t))
	require.NoError(t, err)
	src := New(store, zerolog.Nop())

	var sink result.MemorySink
	engine := compare.NewEngine(relation.OrderedSources{src, src}, &sink)
	res, err := engine.Compare(ctx, compare.Request{
		RelationA: "orders_gz",
		RelationB: "orders_zst",
		Key:       keyspec.Columns("id"),
	})
	require.NoError(t, err)
	require.False(t, res.Identical)
	require.Equal(t, int64(1), res.MatchedCount)
	require.Equal(t, int64(1), res.DiffValueCount)
	require.Len(t, sink.Diffs(), 1)
	d := sink.Diffs()[0]
	require.Equal(t, `"2"`, d.Identity)
	require.Equal(t, "amount", d.Column)
	require.Equal(t, "NULL", d.ValueA)
	require.Equal(t, "20", d.ValueB)
}
