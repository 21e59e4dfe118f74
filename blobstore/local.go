package blobstore

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
)

type localStore struct {
	logger   zerolog.Logger
	basePath string
}

var _ Store = (*localStore)(nil)

func NewLocalStore(logger zerolog.Logger, basePath string) (*localStore, error) {
	if basePath == "" {
		return nil, errors.Newf("local store path must be set")
	}
	if err := os.MkdirAll(basePath, os.ModePerm); err != nil {
		return nil, err
	}
	return &localStore{logger: logger, basePath: basePath}, nil
}

func (l *localStore) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	p := filepath.Join(l.basePath, filepath.FromSlash(key))
	f, err := os.Open(p)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Mark(err, ErrNotExist)
		}
		return nil, err
	}
	return f, nil
}

func (l *localStore) Create(ctx context.Context, key string) (io.WriteCloser, error) {
	p := filepath.Join(l.basePath, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(p), os.ModePerm); err != nil {
		return nil, err
	}
	l.logger.Debug().Str("path", p).Msgf("creating file")
	return os.Create(p)
}

func (l *localStore) String() string {
	return "file://" + l.basePath
}
