// Package latency simulates the round trip of a remote backend so store
// consumers keep an asynchronous contract while data is still local.
package latency

import (
	"context"
	"time"
)

type Delayer interface {
	Wait(ctx context.Context, d time.Duration) error
}

// Clock waits on a real timer.
type Clock struct{}

func (Clock) Wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// None returns immediately.
type None struct{}

func (None) Wait(ctx context.Context, _ time.Duration) error {
	return ctx.Err()
}

// New returns Clock when enabled and None otherwise.
func New(enabled bool) Delayer {
	if enabled {
		return Clock{}
	}
	return None{}
}
