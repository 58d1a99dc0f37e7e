// Package retry implements the bounded wait/retry policy engine used by
// assertion steps. A probe is polled at a growing interval until it
// succeeds, fails terminally, or the cumulative time budget is exhausted.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Policy bounds the polling loop. Interval grows by BackoffFactor after
// each failed attempt, capped so a sleep never exceeds the remaining budget.
type Policy struct {
	Timeout       time.Duration `yaml:"timeout"`
	Interval      time.Duration `yaml:"interval"`
	BackoffFactor float64       `yaml:"backoff"`
}

// DefaultPolicy is applied when an assertion carries no policy of its own.
var DefaultPolicy = Policy{
	Timeout:       10 * time.Second,
	Interval:      100 * time.Millisecond,
	BackoffFactor: 1.5,
}

func (p Policy) withDefaults() Policy {
	if p.Timeout <= 0 {
		p.Timeout = DefaultPolicy.Timeout
	}
	if p.Interval <= 0 {
		p.Interval = DefaultPolicy.Interval
	}
	if p.BackoffFactor < 1 {
		p.BackoffFactor = DefaultPolicy.BackoffFactor
	}
	return p
}

// Probe is a zero-argument check. It returns the satisfying value, or an
// error when the condition is not yet met. Transient errors are retried;
// errors wrapped with Terminal abort the loop immediately.
type Probe func() (any, error)

// TimeoutError is returned when the policy budget is exhausted without the
// probe succeeding. It carries diagnostic state from the last attempt.
type TimeoutError struct {
	LastSeen any
	LastErr  error
	Attempts int
	Elapsed  time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("condition not met after %d attempts in %s (last error: %v)",
		e.Attempts, e.Elapsed.Round(time.Millisecond), e.LastErr)
}

func (e *TimeoutError) Unwrap() error { return e.LastErr }

// terminalError marks a probe failure that polling cannot fix, e.g. a
// malformed selector or an unknown page object.
type terminalError struct {
	err error
}

func (e *terminalError) Error() string { return e.err.Error() }
func (e *terminalError) Unwrap() error { return e.err }

// Terminal wraps err so Await aborts immediately instead of waiting out
// the timeout.
func Terminal(err error) error {
	if err == nil {
		return nil
	}
	return &terminalError{err: err}
}

// IsTerminal reports whether err was marked with Terminal.
func IsTerminal(err error) bool {
	var term *terminalError
	return err != nil && errors.As(err, &term)
}

// Await polls probe under the given policy. On success it returns the
// probe's value and the elapsed time. On a terminal probe error it returns
// the unwrapped cause immediately. On budget exhaustion it returns a
// TimeoutError. Context cancellation interrupts the wait between attempts.
func Await(ctx context.Context, policy Policy, probe Probe) (any, time.Duration, error) {
	p := policy.withDefaults()

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = p.Interval
	bo.Multiplier = p.BackoffFactor
	bo.RandomizationFactor = 0
	bo.MaxInterval = p.Timeout
	bo.MaxElapsedTime = 0 // the budget is enforced against the deadline below
	bo.Reset()

	start := time.Now()
	deadline := start.Add(p.Timeout)

	var lastSeen any
	var lastErr error
	attempts := 0

	for {
		attempts++
		value, err := probe()
		if err == nil {
			return value, time.Since(start), nil
		}
		if value != nil {
			lastSeen = value
		}
		var term *terminalError
		if errors.As(err, &term) {
			return lastSeen, time.Since(start), term.err
		}
		lastErr = err

		wait := bo.NextBackOff()
		if remaining := time.Until(deadline); wait > remaining {
			wait = remaining
		}
		if wait <= 0 {
			return lastSeen, time.Since(start), &TimeoutError{
				LastSeen: lastSeen,
				LastErr:  lastErr,
				Attempts: attempts,
				Elapsed:  time.Since(start),
			}
		}

		select {
		case <-ctx.Done():
			return lastSeen, time.Since(start), ctx.Err()
		case <-time.After(wait):
		}

		if !time.Now().Before(deadline) {
			return lastSeen, time.Since(start), &TimeoutError{
				LastSeen: lastSeen,
				LastErr:  lastErr,
				Attempts: attempts,
				Elapsed:  time.Since(start),
			}
		}
	}
}
