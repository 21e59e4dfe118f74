package blobstore

import (
	"context"
	"io"
	"path/filepath"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestLocalStore(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	store, err := Open(ctx, zerolog.Nop(), "file://"+dir)
	require.NoError(t, err)
	require.Equal(t, "file://"+dir, store.String())

	_, err = store.Open(ctx, "missing.csv")
	require.True(t, errors.Is(err, ErrNotExist))

	w, err := store.Create(ctx, "exports/orders.csv")
	require.NoError(t, err)
	_, err = io.WriteString(w, "id\n1\n")
	require.NoError(t, err)
	require.NoError(t, w.Close())
	require.FileExists(t, filepath.Join(dir, "exports", "orders.csv"))

	r, err := store.Open(ctx, "exports/orders.csv")
	require.NoError(t, err)
	b, err := io.ReadAll(r)
	require.NoError(t, err)
	require.NoError(t, r.Close())
	require.Equal(t, "id\n1\n", string(b))
}

func TestOpenURL(t *testing.T) {
	_, err := Open(context.Background(), zerolog.Nop(), "ftp://host/dir")
	require.EqualError(t, err, `unsupported store scheme "ftp"`)

	require.True(t, IsURL("s3://bucket/prefix"))
	require.True(t, IsURL("gs://bucket"))
	require.True(t, IsURL("file:///tmp"))
	require.False(t, IsURL("postgres://localhost/db"))

	require.Equal(t, "a/b.csv", joinKey("a", "b.csv"))
	require.Equal(t, "b.csv", joinKey("", "b.csv"))
}
