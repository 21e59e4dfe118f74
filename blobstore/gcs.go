package blobstore

import (
	"context"
	"io"

	"cloud.google.com/go/storage"
	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
)

type gcsStore struct {
	logger zerolog.Logger
	bucket string
	prefix string
	client *storage.Client
}

var _ Store = (*gcsStore)(nil)

// ConnectGCSStore uses application default credentials.
func ConnectGCSStore(ctx context.Context, logger zerolog.Logger, bucket, prefix string) (*gcsStore, error) {
	creds, err := google.FindDefaultCredentials(ctx, storage.ScopeReadWrite)
	if err != nil {
		return nil, errors.Wrap(err, "error finding GCP credentials")
	}
	client, err := storage.NewClient(ctx, option.WithCredentials(creds))
	if err != nil {
		return nil, errors.Wrap(err, "error creating GCS client")
	}
	return NewGCSStore(logger, client, bucket, prefix), nil
}

func NewGCSStore(logger zerolog.Logger, client *storage.Client, bucket, prefix string) *gcsStore {
	return &gcsStore{
		logger: logger,
		bucket: bucket,
		prefix: prefix,
		client: client,
	}
}

func (s *gcsStore) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	key = joinKey(s.prefix, key)
	r, err := s.client.Bucket(s.bucket).Object(key).NewReader(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return nil, errors.Mark(err, ErrNotExist)
		}
		return nil, errors.Wrapf(err, "error reading gs://%s/%s", s.bucket, key)
	}
	return r, nil
}

func (s *gcsStore) Create(ctx context.Context, key string) (io.WriteCloser, error) {
	key = joinKey(s.prefix, key)
	s.logger.Debug().Str("key", key).Msgf("creating new file")
	return s.client.Bucket(s.bucket).Object(key).NewWriter(ctx), nil
}

func (s *gcsStore) String() string {
	return "gs://" + joinKey(s.bucket, s.prefix)
}
