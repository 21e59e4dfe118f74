// Package blobstore reads and writes objects in a local directory, an S3
// bucket or a GCS bucket.
package blobstore

import (
	"context"
	"io"
	"net/url"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
)

// ErrNotExist is returned (possibly wrapped) when an object does not exist.
var ErrNotExist = errors.New("object does not exist")

type Store interface {
	// Open returns a reader for the object at key.
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	// Create returns a writer for the object at key. The object is complete
	// once the writer is closed without error.
	Create(ctx context.Context, key string) (io.WriteCloser, error)
	// String describes the store for logs.
	String() string
}

// IsURL reports whether u names a location Open supports.
func IsURL(u string) bool {
	for _, scheme := range []string{"file://", "s3://", "gs://"} {
		if strings.HasPrefix(u, scheme) {
			return true
		}
	}
	return false
}

// Open returns the store named by a URL: file:///path, s3://bucket/prefix or
// gs://bucket/prefix.
func Open(ctx context.Context, logger zerolog.Logger, storeURL string) (Store, error) {
	u, err := url.Parse(storeURL)
	if err != nil {
		return nil, errors.Wrapf(err, "error parsing store url")
	}
	prefix := strings.Trim(u.Path, "/")
	switch u.Scheme {
	case "file":
		p := u.Path
		if u.Host != "" {
			p = u.Host + u.Path
		}
		return NewLocalStore(logger, p)
	case "s3":
		return ConnectS3Store(ctx, logger, u.Host, prefix)
	case "gs":
		return ConnectGCSStore(ctx, logger, u.Host, prefix)
	}
	return nil, errors.Newf("unsupported store scheme %q", u.Scheme)
}

func joinKey(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return prefix + "/" + key
}
