package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrInvalidSeats is returned when an administrator supplies a negative seat count.
var ErrInvalidSeats = errors.New("remaining seats must not be negative")

// QuotaState is the singleton record of open-registration capacity.
type QuotaState struct {
	TotalRegistered int64
	RemainingSeats  int
	// OpenUntil is the open-registration deadline; zero means no window.
	OpenUntil time.Time
	UpdatedAt time.Time
}

// WindowOpen reports whether the open-registration window is still running at now.
func (s QuotaState) WindowOpen(now time.Time) bool {
	return !s.OpenUntil.IsZero() && now.Before(s.OpenUntil)
}

// Window is an administrative update; nil fields are left unchanged.
type Window struct {
	Seats     *int
	OpenUntil *time.Time
}

// Repository persists the quota singleton.
type Repository interface {
	GetOrInit(ctx context.Context) (QuotaState, error)
	// Lock is GetOrInit holding a row lock until the enclosing transaction ends.
	Lock(ctx context.Context) (QuotaState, error)
	Save(ctx context.Context, state QuotaState) error
	// ClearWindow resets a deadline that is not after expiredBy. It never
	// touches a deadline that has been moved into the future concurrently.
	ClearWindow(ctx context.Context, expiredBy time.Time) error
}

// Ledger applies quota rules on top of a Repository.
type Ledger struct {
	repo Repository
}

// New builds a Ledger. Bind repo to a transaction when the result of a check
// must stay valid until commit.
func New(repo Repository) *Ledger {
	return &Ledger{repo: repo}
}

// GetOrInit returns the quota singleton, creating a zero state on first use.
func (l *Ledger) GetOrInit(ctx context.Context) (QuotaState, error) {
	return l.repo.GetOrInit(ctx)
}

// Lock returns the quota singleton under a row lock.
func (l *Ledger) Lock(ctx context.Context) (QuotaState, error) {
	return l.repo.Lock(ctx)
}

// Save persists state.
func (l *Ledger) Save(ctx context.Context, state QuotaState) error {
	return l.repo.Save(ctx, state)
}

// HasOpenCapacity reports whether open registration is possible at now. An
// expired deadline is cleared both in state and in storage, whatever the answer.
func (l *Ledger) HasOpenCapacity(ctx context.Context, state *QuotaState, now time.Time) (bool, error) {
	if !state.OpenUntil.IsZero() && !now.Before(state.OpenUntil) {
		if err := l.repo.ClearWindow(ctx, now); err != nil {
			return false, fmt.Errorf("expire window: %w", err)
		}
		state.OpenUntil = time.Time{}
	}
	return state.RemainingSeats > 0 || state.WindowOpen(now), nil
}

// SetWindow applies an administrative update under the row lock.
func (l *Ledger) SetWindow(ctx context.Context, w Window) (QuotaState, error) {
	if w.Seats != nil && *w.Seats < 0 {
		return QuotaState{}, ErrInvalidSeats
	}
	state, err := l.repo.Lock(ctx)
	if err != nil {
		return QuotaState{}, err
	}
	if w.Seats != nil {
		state.RemainingSeats = *w.Seats
	}
	if w.OpenUntil != nil {
		state.OpenUntil = w.OpenUntil.UTC().Truncate(time.Second)
	}
	if err := l.repo.Save(ctx, state); err != nil {
		return QuotaState{}, err
	}
	return state, nil
}

// ConsumeSeatIfNeeded records one granted account. A seat is taken only when
// the identity was not personally entitled.
func ConsumeSeatIfNeeded(state *QuotaState, entitled bool) {
	if !entitled && state.RemainingSeats > 0 {
		state.RemainingSeats--
	}
	state.TotalRegistered++
}
