package transport

import (
	"context"
	"errors"
	"time"

	"forarchives/internal/components/assert"
	"forarchives/internal/components/chrono"

	"github.com/go-resty/resty/v2"
)

// RetryPolicy is the retry behavior shared by every adapter.
type RetryPolicy struct {
	// MaxAttempts is the number of attempts for transient failures, at least 1.
	MaxAttempts int
	// Backoff is the delay before the second attempt, it grows linearly with
	// every further attempt.
	Backoff  time.Duration
	Classify Classifier
	Clock    chrono.API
}

// DefaultRetryPolicy retries transient failures `retries` times.
func DefaultRetryPolicy(retries int, backoff time.Duration, classify Classifier, clock chrono.API) RetryPolicy {
	assert.Positive("attempts", retries+1)
	return RetryPolicy{
		MaxAttempts: retries + 1,
		Backoff:     backoff,
		Classify:    classify,
		Clock:       clock,
	}
}

// Request issues one attempt, it is called again for every retry so the
// attempt gets a fresh request.
type Request func(ctx context.Context) (*resty.Response, error)

// ChallengeHook is called once when a challenge page is detected, a nil error
// makes the policy retry one more time.
type ChallengeHook func(ctx context.Context) error

// Do runs request until it succeeds, fails permanently or the attempts run
// out. Transient failures are retried with backoff, a challenge calls
// onChallenge and retries once, protocol and malformed responses are returned
// immediately. The returned error wraps one of the Err* sentinels, the
// context error or an error marked Permanent by request.
func (p RetryPolicy) Do(ctx context.Context, request Request, onChallenge ChallengeHook) (*resty.Response, error) {
	classify := p.Classify
	if classify == nil {
		classify = NewClassifier(false, false)
	}
	clock := p.Clock
	if clock == nil {
		clock = chrono.NewStandardImpl()
	}
	maxAttempts := max(p.MaxAttempts, 1)

	challenged := false
	attempt := 0
	for {
		attempt++
		res, err := request(ctx)
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if isPermanent(err) {
			return nil, err
		}

		kind := classify(res, err)
		switch kind {
		case KindOK:
			return res, nil
		case KindTransient:
			if attempt >= maxAttempts {
				return res, describe(kind, res, err)
			}
			if err := clock.Sleep(ctx, p.Backoff*time.Duration(attempt)); err != nil {
				return nil, err
			}
		case KindChallenge:
			if challenged || onChallenge == nil {
				return res, describe(kind, res, err)
			}
			challenged = true
			if hookErr := onChallenge(ctx); hookErr != nil {
				return res, describe(kind, res, hookErr)
			}
		default:
			return res, describe(kind, res, err)
		}
	}
}

type permanentError struct {
	err error
}

func (e permanentError) Error() string {
	return e.err.Error()
}

func (e permanentError) Unwrap() error {
	return e.err
}

// Permanent marks err so RetryPolicy.Do returns it without retrying.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return permanentError{err: err}
}

func isPermanent(err error) bool {
	var p permanentError
	return errors.As(err, &p)
}
