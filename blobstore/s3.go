package blobstore

import (
	"context"
	"io"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
)

type s3Store struct {
	logger  zerolog.Logger
	bucket  string
	prefix  string
	session *session.Session
}

var _ Store = (*s3Store)(nil)

// ConnectS3Store uses the default AWS credential chain.
func ConnectS3Store(ctx context.Context, logger zerolog.Logger, bucket, prefix string) (*s3Store, error) {
	sess, err := session.NewSession()
	if err != nil {
		return nil, errors.Wrap(err, "error creating AWS session")
	}
	return NewS3Store(logger, sess, bucket, prefix), nil
}

func NewS3Store(logger zerolog.Logger, session *session.Session, bucket, prefix string) *s3Store {
	return &s3Store{
		logger:  logger,
		bucket:  bucket,
		prefix:  prefix,
		session: session,
	}
}

func (s *s3Store) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	key = joinKey(s.prefix, key)
	out, err := s3.New(s.session).GetObjectWithContext(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var awsErr awserr.Error
		if errors.As(err, &awsErr) && awsErr.Code() == s3.ErrCodeNoSuchKey {
			return nil, errors.Mark(err, ErrNotExist)
		}
		return nil, errors.Wrapf(err, "error reading s3://%s/%s", s.bucket, key)
	}
	return out.Body, nil
}

// Create streams the written bytes to an upload running in the background.
func (s *s3Store) Create(ctx context.Context, key string) (io.WriteCloser, error) {
	key = joinKey(s.prefix, key)
	pr, pw := io.Pipe()
	w := &s3Writer{PipeWriter: pw, done: make(chan error, 1)}
	s.logger.Debug().Str("key", key).Msgf("creating new file")
	go func() {
		_, err := s3manager.NewUploader(s.session).UploadWithContext(ctx, &s3manager.UploadInput{
			Bucket: aws.String(s.bucket),
			Key:    aws.String(key),
			Body:   pr,
		})
		_ = pr.CloseWithError(err)
		w.done <- err
	}()
	return w, nil
}

func (s *s3Store) String() string {
	return "s3://" + joinKey(s.bucket, s.prefix)
}

type s3Writer struct {
	*io.PipeWriter
	done chan error
}

func (w *s3Writer) Close() error {
	if err := w.PipeWriter.Close(); err != nil {
		return err
	}
	return <-w.done
}
