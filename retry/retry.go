// Package retry implements exponential backoff for operations against
// relation sources.
package retry

import (
	"context"
	"math"
	"time"

	"github.com/cockroachdb/errors"
)

type Settings struct {
	InitialBackoff time.Duration
	Multiplier     int
	MaxBackoff     time.Duration
	// MaxRetries bounds the number of attempts. Zero retries forever.
	MaxRetries int
}

func (s Settings) Verify() error {
	if s.InitialBackoff <= 0 {
		return errors.Newf("initial backoff must be set to >= 0, got %s", s.InitialBackoff)
	}
	if s.Multiplier < 1 {
		return errors.Newf("multiplier must be >= 1, got %d", s.Multiplier)
	}
	if s.MaxBackoff > 0 && s.InitialBackoff > s.MaxBackoff {
		return errors.Newf("initial backoff (%s) must be less than max backoff (%s)", s.InitialBackoff, s.MaxBackoff)
	}
	return nil
}

// DefaultSettings is used when connecting to sources.
func DefaultSettings() Settings {
	return Settings{
		InitialBackoff: time.Second,
		Multiplier:     2,
		MaxBackoff:     10 * time.Second,
		MaxRetries:     5,
	}
}

type Retry struct {
	Iteration int
	StartTime time.Time
	NextRetry time.Time

	settings Settings
	now      func() time.Time
}

func NewRetry(settings Settings) (*Retry, error) {
	return NewRetryWithTime(time.Now(), settings)
}

func NewRetryWithTime(t time.Time, settings Settings) (*Retry, error) {
	if err := settings.Verify(); err != nil {
		return nil, err
	}
	return &Retry{
		Iteration: 1,
		StartTime: t,
		NextRetry: t.Add(settings.InitialBackoff),
		settings:  settings,
		now:       time.Now,
	}, nil
}

func (rm *Retry) ShouldContinue() bool {
	if rm.settings.MaxRetries == 0 {
		return true
	}
	return rm.Iteration < rm.settings.MaxRetries
}

func (rm *Retry) Next() {
	nextDuration := rm.settings.InitialBackoff * time.Duration(math.Pow(float64(rm.settings.Multiplier), float64(rm.Iteration)))
	if rm.settings.MaxBackoff > 0 && nextDuration > rm.settings.MaxBackoff {
		nextDuration = rm.settings.MaxBackoff
	}
	rm.Iteration++
	rm.NextRetry = rm.NextRetry.Add(nextDuration)
}

// Do runs fn until it succeeds, the retries are exhausted or ctx is done.
// onErr is called with every error which will be retried. Errors marked
// with Permanent are returned immediately.
func (rm *Retry) Do(ctx context.Context, fn func() error, onErr func(err error)) error {
	for {
		err := fn()
		if err == nil {
			return nil
		}
		if errors.Is(err, errPermanent) || !rm.ShouldContinue() {
			return err
		}
		onErr(err)
		select {
		case <-ctx.Done():
			return errors.WithSecondaryError(ctx.Err(), err)
		case <-time.After(rm.NextRetry.Sub(rm.now())):
		}
		rm.Next()
	}
}

var errPermanent = errors.New("permanent error")

// Permanent marks err so that Do does not retry it.
func Permanent(err error) error {
	return errors.Mark(err, errPermanent)
}
