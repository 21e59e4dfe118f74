// Package csvrel reads relations from CSV exports held in a blob store. The
// relation orders is read from orders.csv, orders.csv.gz or orders.csv.zst.
package csvrel

import (
	"context"
	"encoding/csv"
	"io"
	"strings"
	"sync"

	"github.com/cockroachdb/datadiff/blobstore"
	"github.com/cockroachdb/datadiff/relation"
	"github.com/cockroachdb/datadiff/rowvalue"
	"github.com/cockroachdb/errors"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/rs/zerolog"
)

// NullMarker is the cell text read as a true null, as written by COPY.
const NullMarker = `\N`

var extensions = []string{".csv", ".csv.gz", ".csv.zst"}

type Source struct {
	store  blobstore.Store
	logger zerolog.Logger

	mu struct {
		sync.Mutex
		counts map[string]int64
	}
}

var _ relation.Source = (*Source)(nil)

func New(store blobstore.Store, logger zerolog.Logger) *Source {
	s := &Source{store: store, logger: logger}
	s.mu.counts = make(map[string]int64)
	return s
}

func (s *Source) Schema(ctx context.Context, rel string) ([]relation.Column, error) {
	f, err := s.open(ctx, rel)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return f.columns, nil
}

// RowCount reads the whole export once; the result is cached.
func (s *Source) RowCount(ctx context.Context, rel string) (int64, error) {
	s.mu.Lock()
	count, ok := s.mu.counts[rel]
	s.mu.Unlock()
	if ok {
		return count, nil
	}
	f, err := s.open(ctx, rel)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	for {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		if _, err := f.r.Read(); err != nil {
			if err == io.EOF {
				break
			}
			return 0, errors.Wrapf(err, "error reading %s", f.key)
		}
		count++
	}
	s.mu.Lock()
	s.mu.counts[rel] = count
	s.mu.Unlock()
	return count, nil
}

func (s *Source) Scan(ctx context.Context, rel string, columns []string) (relation.Iterator, error) {
	f, err := s.open(ctx, rel)
	if err != nil {
		return nil, err
	}
	positions, err := relation.Project(f.columns, columns)
	if err != nil {
		f.Close()
		return nil, err
	}
	return &iterator{file: f, positions: positions}, nil
}

type file struct {
	key     string
	r       *csv.Reader
	columns []relation.Column
	closers []io.Closer
}

func (f *file) Close() {
	for i := len(f.closers) - 1; i >= 0; i-- {
		_ = f.closers[i].Close()
	}
}

func (s *Source) open(ctx context.Context, rel string) (*file, error) {
	keys := make([]string, 0, len(extensions)+1)
	for _, ext := range extensions {
		if strings.HasSuffix(rel, ext) {
			keys = append(keys, rel)
			break
		}
	}
	for _, ext := range extensions {
		keys = append(keys, rel+ext)
	}
	for _, key := range keys {
		rc, err := s.store.Open(ctx, key)
		if err != nil {
			if errors.Is(err, blobstore.ErrNotExist) {
				continue
			}
			return nil, err
		}
		s.logger.Debug().Str("key", key).Str("store", s.store.String()).Msgf("reading export")
		f, err := newFile(key, rc)
		if err != nil {
			return nil, err
		}
		return f, nil
	}
	return nil, errors.Wrapf(relation.ErrNotFound, "no export for %s in %s", rel, s.store.String())
}

func newFile(key string, rc io.ReadCloser) (*file, error) {
	f := &file{key: key, closers: []io.Closer{rc}}
	var r io.Reader = rc
	switch {
	case strings.HasSuffix(key, ".gz"):
		gz, err := gzip.NewReader(rc)
		if err != nil {
			f.Close()
			return nil, errors.Wrapf(err, "error decompressing %s", key)
		}
		f.closers = append(f.closers, gz)
		r = gz
	case strings.HasSuffix(key, ".zst"):
		dec, err := zstd.NewReader(rc)
		if err != nil {
			f.Close()
			return nil, errors.Wrapf(err, "error decompressing %s", key)
		}
		zr := dec.IOReadCloser()
		f.closers = append(f.closers, zr)
		r = zr
	}
	f.r = csv.NewReader(r)
	f.r.ReuseRecord = true
	header, err := f.r.Read()
	if err != nil {
		f.Close()
		if err == io.EOF {
			return nil, errors.Newf("export %s has no header", key)
		}
		return nil, errors.Wrapf(err, "error reading header of %s", key)
	}
	for _, h := range header {
		f.columns = append(f.columns, relation.Column{Name: strings.TrimSpace(h), Type: "TEXT"})
	}
	return f, nil
}

type iterator struct {
	file      *file
	positions []int
	row       rowvalue.Row
	err       error
}

func (it *iterator) HasNext(ctx context.Context) bool {
	if it.err != nil {
		return false
	}
	if err := ctx.Err(); err != nil {
		it.err = err
		return false
	}
	rec, err := it.file.r.Read()
	if err != nil {
		if err != io.EOF {
			it.err = errors.Wrapf(err, "error reading %s", it.file.key)
		}
		return false
	}
	row := make(rowvalue.Row, len(it.positions))
	for i, p := range it.positions {
		if rec[p] == NullMarker {
			row[i] = rowvalue.Null()
			continue
		}
		row[i] = rowvalue.Of(rec[p])
	}
	it.row = row
	return true
}

func (it *iterator) Next(ctx context.Context) rowvalue.Row {
	return it.row
}

func (it *iterator) Error() error {
	return it.err
}

func (it *iterator) Close() {
	it.file.Close()
}
