package token

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// MemoryRepository is an in-memory token store.
type MemoryRepository struct {
	mu     sync.RWMutex
	nextID int64
	byCode map[string]Token
}

// NewMemoryRepository builds an empty in-memory token store.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{byCode: make(map[string]Token)}
}

// Clone returns a copy used as a transaction snapshot.
func (r *MemoryRepository) Clone() *MemoryRepository {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := &MemoryRepository{nextID: r.nextID, byCode: make(map[string]Token, len(r.byCode))}
	for k, v := range r.byCode {
		out.byCode[k] = v
	}
	return out
}

func (r *MemoryRepository) CreateBatch(_ context.Context, tokens []Token) ([]Token, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range tokens {
		if _, exists := r.byCode[t.Code]; exists {
			return nil, fmt.Errorf("insert token: duplicate code %q", t.Code)
		}
	}
	out := make([]Token, len(tokens))
	for i, t := range tokens {
		r.nextID++
		t.ID = r.nextID
		t.CreatedAt = t.CreatedAt.UTC()
		r.byCode[t.Code] = t
		out[i] = t
	}
	return out, nil
}

func (r *MemoryRepository) FindByCode(_ context.Context, code string) (Token, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.byCode[code]
	if !ok {
		return Token{}, ErrNotFound
	}
	return t, nil
}

// LockByCode is FindByCode; callers serialise through the store's transaction lock.
func (r *MemoryRepository) LockByCode(ctx context.Context, code string) (Token, error) {
	return r.FindByCode(ctx, code)
}

func (r *MemoryRepository) MarkUsed(_ context.Context, id, redeemerID int64, usedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for code, t := range r.byCode {
		if t.ID != id {
			continue
		}
		if t.Used {
			return ErrInvalidOrUsedCode
		}
		t.Used = true
		t.UsedAt = usedAt.UTC()
		t.RedeemerID = redeemerID
		r.byCode[code] = t
		return nil
	}
	return ErrNotFound
}
