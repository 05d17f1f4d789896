package domain

import (
	"context"
	"errors"
	"sync"
)

// ErrStatusCancelled is the resolution of a Status cancelled before it finished.
var ErrStatusCancelled = errors.New("status cancelled")

// Status is a single-resolution completion signal.
// It is created per trigger, resolved exactly once, and observed by the host scheduler.
type Status struct {
	once   sync.Once
	done   chan struct{}
	err    error
	cancel context.CancelFunc
}

// NewStatus returns an unresolved Status.
func NewStatus() *Status {
	return &Status{done: make(chan struct{})}
}

// NewStatusWithContext returns an unresolved Status and a context that is cancelled
// when the Status is cancelled. Background work should run under that context.
func NewStatusWithContext(parent context.Context) (*Status, context.Context) {
	ctx, cancel := context.WithCancel(parent)
	s := NewStatus()
	s.cancel = cancel
	return s, ctx
}

// CompletedStatus returns a Status already resolved with err.
func CompletedStatus(err error) *Status {
	s := NewStatus()
	s.Finish(err)
	return s
}

// Finish resolves the status. Only the first call has an effect; it reports whether it won.
func (s *Status) Finish(err error) bool {
	won := false
	s.once.Do(func() {
		s.err = err
		close(s.done)
		won = true
	})
	if won && s.cancel != nil {
		s.cancel()
	}
	return won
}

// Cancel resolves the status with ErrStatusCancelled and cancels the bound context.
// The context is cancelled even when the status had already resolved.
func (s *Status) Cancel() {
	if !s.Finish(ErrStatusCancelled) && s.cancel != nil {
		s.cancel()
	}
}

// Done is closed once the status is resolved.
func (s *Status) Done() <-chan struct{} {
	return s.done
}

// Resolved reports whether the status has been resolved, without blocking.
func (s *Status) Resolved() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

// Err returns the resolution error. It is nil until the status is resolved.
func (s *Status) Err() error {
	select {
	case <-s.done:
		return s.err
	default:
		return nil
	}
}

// Wait blocks until the status resolves or ctx ends.
// Giving up on ctx does not cancel the underlying work.
func (s *Status) Wait(ctx context.Context) error {
	select {
	case <-s.done:
		return s.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// WaitAll waits for every status and returns the joined errors.
func WaitAll(ctx context.Context, statuses ...*Status) error {
	var errs []error
	for _, s := range statuses {
		if err := s.Wait(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
