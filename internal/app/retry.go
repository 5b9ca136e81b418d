package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/brownjh18/SafeTalk-sub000/internal/domain"
)

// RetryPolicy bounds retries of transient storage failures before they
// surface as domain.ErrStorageUnavailable. Business-rule errors pass
// through untouched on the first attempt.
type RetryPolicy struct {
	Attempts int
	Backoff  time.Duration
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{Attempts: 3, Backoff: 50 * time.Millisecond}
}

var businessErrs = []error{
	domain.ErrSessionNotJoinable,
	domain.ErrNotInvited,
	domain.ErrSessionFull,
	domain.ErrForbidden,
	domain.ErrCannotRemoveCreator,
	domain.ErrCreatorCannotLeave,
	domain.ErrSessionEnded,
	domain.ErrNotAMember,
	domain.ErrNotConnected,
	domain.ErrConflict,
	domain.ErrNotFound,
}

func isBusinessErr(err error) bool {
	for _, be := range businessErrs {
		if errors.Is(err, be) {
			return true
		}
	}
	return false
}

// do runs fn up to Attempts times with exponential backoff.
func (p RetryPolicy) do(ctx context.Context, fn func() error) error {
	attempts := p.Attempts
	if attempts < 1 {
		attempts = 1
	}
	var err error
	for i := 0; i < attempts; i++ {
		if err = fn(); err == nil || isBusinessErr(err) {
			return err
		}
		if i == attempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(p.Backoff << i):
		}
	}
	return fmt.Errorf("%w: %v", domain.ErrStorageUnavailable, err)
}
