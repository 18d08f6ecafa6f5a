package ingest

import (
	"context"
	"time"
)

// Source yields raw update payloads.
//
// Next returns exception.ErrNoData when nothing is available yet, io.EOF
// when the source is finished, and any other error when it failed. A
// payload may hold several newline separated records.
type Source interface {
	Next(ctx context.Context) ([]byte, error)
	Close() error
}

// Waiter is implemented by sources that can block until new data may be
// available. Wait returns after at most d, or with ctx.Err() when ctx is done.
type Waiter interface {
	Wait(ctx context.Context, d time.Duration) error
}

// Clock allows deterministic poll control.
type Clock interface {
	Sleep(ctx context.Context, d time.Duration) error
}

type realClock struct{}

func (realClock) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
