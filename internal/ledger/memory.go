package ledger

import (
	"context"
	"sync"
	"time"
)

// MemoryRepository keeps the quota singleton in process memory.
type MemoryRepository struct {
	mu    sync.RWMutex
	state *QuotaState
}

// NewMemoryRepository returns an uninitialised in-memory quota store.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{}
}

// Clone returns a copy used as a transaction snapshot.
func (r *MemoryRepository) Clone() *MemoryRepository {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := &MemoryRepository{}
	if r.state != nil {
		st := *r.state
		out.state = &st
	}
	return out
}

func (r *MemoryRepository) GetOrInit(_ context.Context) (QuotaState, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state == nil {
		r.state = &QuotaState{UpdatedAt: time.Now().UTC()}
	}
	return *r.state, nil
}

func (r *MemoryRepository) Lock(ctx context.Context) (QuotaState, error) {
	return r.GetOrInit(ctx)
}

func (r *MemoryRepository) Save(_ context.Context, state QuotaState) error {
	if state.RemainingSeats < 0 {
		return ErrInvalidSeats
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	state.OpenUntil = fromUnix(toUnix(state.OpenUntil))
	state.UpdatedAt = time.Now().UTC()
	r.state = &state
	return nil
}

func (r *MemoryRepository) ClearWindow(_ context.Context, expiredBy time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state == nil || r.state.OpenUntil.IsZero() || r.state.OpenUntil.Unix() > expiredBy.Unix() {
		return nil
	}
	r.state.OpenUntil = time.Time{}
	r.state.UpdatedAt = time.Now().UTC()
	return nil
}
