package task

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Implement operation retrying
type Retry struct {
	ctx                context.Context
	maxElapsedTime     time.Duration
	maxInterval        time.Duration
	acceptableDuration time.Duration
	onError            func(error, bool) error
	startTime          time.Time
}

func NewRetry() *Retry {
	return new(Retry)
}

func (self *Retry) WithMaxElapsedTime(maxElapsedTime time.Duration) *Retry {
	self.maxElapsedTime = maxElapsedTime
	return self
}

func (self *Retry) WithMaxInterval(maxInterval time.Duration) *Retry {
	self.maxInterval = maxInterval
	return self
}

// Errors that happen within this duration since start are reported as acceptable
func (self *Retry) WithAcceptableDuration(acceptableDuration time.Duration) *Retry {
	self.acceptableDuration = acceptableDuration
	return self
}

func (self *Retry) WithContext(ctx context.Context) *Retry {
	self.ctx = ctx
	return self
}

// Callback may return backoff.Permanent to stop retrying
func (self *Retry) WithOnError(v func(error, bool) error) *Retry {
	self.onError = v
	return self
}

func (self *Retry) Run(f func() error) error {
	if self.ctx == nil {
		self.ctx = context.Background()
	}

	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = self.maxElapsedTime
	if self.maxInterval > 0 {
		b.MaxInterval = self.maxInterval
	}

	self.startTime = time.Now()

	return backoff.Retry(func() error {
		err := f()
		if err == nil || self.onError == nil {
			return err
		}
		isDurationAcceptable := time.Since(self.startTime) < self.acceptableDuration
		return self.onError(err, isDurationAcceptable)
	}, backoff.WithContext(b, self.ctx))
}

// Marks the error so it won't be retried
func Permanent(err error) error {
	return backoff.Permanent(err)
}
