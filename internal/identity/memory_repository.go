package identity

import (
	"context"
	"sync"
	"time"
)

// MemoryRepository is an in-memory identity store for tests and local runs.
type MemoryRepository struct {
	mu         sync.RWMutex
	nextID     int64
	byID       map[int64]Identity
	byExternal map[int64]int64
}

// NewMemoryRepository builds an empty in-memory identity store.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{byID: make(map[int64]Identity), byExternal: make(map[int64]int64)}
}

// Clone returns a deep copy used as a transaction snapshot.
func (r *MemoryRepository) Clone() *MemoryRepository {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := &MemoryRepository{
		nextID:     r.nextID,
		byID:       make(map[int64]Identity, len(r.byID)),
		byExternal: make(map[int64]int64, len(r.byExternal)),
	}
	for k, v := range r.byID {
		out.byID[k] = v
	}
	for k, v := range r.byExternal {
		out.byExternal[k] = v
	}
	return out
}

func (r *MemoryRepository) FindByExternalID(_ context.Context, externalID int64) (Identity, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byExternal[externalID]
	if !ok {
		return Identity{}, ErrNotFound
	}
	return r.byID[id], nil
}

func (r *MemoryRepository) FindByID(_ context.Context, id int64) (Identity, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	identity, ok := r.byID[id]
	if !ok {
		return Identity{}, ErrNotFound
	}
	return identity, nil
}

// LockByID is FindByID; callers serialise through the store's transaction lock.
func (r *MemoryRepository) LockByID(ctx context.Context, id int64) (Identity, error) {
	return r.FindByID(ctx, id)
}

func (r *MemoryRepository) Create(_ context.Context, identity Identity) (Identity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.byExternal[identity.ExternalID]; exists {
		return Identity{}, ErrDuplicate
	}
	r.nextID++
	now := time.Now().UTC()
	identity.ID = r.nextID
	identity.CreatedAt = now
	identity.UpdatedAt = now
	r.byID[identity.ID] = identity
	r.byExternal[identity.ExternalID] = identity.ID
	return identity, nil
}

func (r *MemoryRepository) Update(_ context.Context, identity Identity) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	current, ok := r.byID[identity.ID]
	if !ok {
		return ErrNotFound
	}
	if identity.AccountID != "" {
		for id, other := range r.byID {
			if id != identity.ID && other.AccountID == identity.AccountID {
				return ErrDuplicate
			}
		}
	}
	identity.ExternalID = current.ExternalID
	identity.CreatedAt = current.CreatedAt
	identity.UpdatedAt = time.Now().UTC()
	r.byID[identity.ID] = identity
	return nil
}

func (r *MemoryRepository) SetBan(_ context.Context, id int64, bannedAt time.Time, reason string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	identity, ok := r.byID[id]
	if !ok {
		return ErrNotFound
	}
	if bannedAt.IsZero() {
		reason = ""
	}
	identity.BannedAt = bannedAt
	identity.BanReason = reason
	identity.UpdatedAt = time.Now().UTC()
	r.byID[id] = identity
	return nil
}
