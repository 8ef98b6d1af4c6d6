package token

import (
	"context"
	"errors"
	"time"
)

// Registry issues and redeems tokens.
type Registry struct {
	repo    Repository
	newCode func(Kind) string
	now     func() time.Time
}

// NewRegistry builds a Registry. Nil newCode and now default to NewCode and
// time.Now.
func NewRegistry(repo Repository, newCode func(Kind) string, now func() time.Time) *Registry {
	if newCode == nil {
		newCode = NewCode
	}
	if now == nil {
		now = time.Now
	}
	return &Registry{repo: repo, newCode: newCode, now: now}
}

// ClampCount bounds a requested batch size to [1, MaxBatch].
func ClampCount(count int) int {
	if count < 1 {
		return 1
	}
	if count > MaxBatch {
		return MaxBatch
	}
	return count
}

// Issue generates count tokens of kind for issuerID and persists them in one batch.
func (r *Registry) Issue(ctx context.Context, issuerID int64, kind Kind, count int) ([]Token, error) {
	if kind.Prefix() == "" {
		return nil, ErrUnknownKind
	}
	count = ClampCount(count)
	createdAt := r.now().UTC()
	tokens := make([]Token, count)
	for i := range tokens {
		tokens[i] = Token{Code: r.newCode(kind), Kind: kind, IssuerID: issuerID, CreatedAt: createdAt}
	}
	return r.repo.CreateBatch(ctx, tokens)
}

// Redeem locks the token for code, runs check against it while the lock is
// held and marks it used by redeemerID. It must run on a repository bound to a
// transaction, and check must only perform work belonging to that transaction.
func (r *Registry) Redeem(ctx context.Context, code string, redeemerID int64, check func(Token) error) (Token, error) {
	kind, err := ValidateCode(code)
	if err != nil {
		return Token{}, err
	}

	t, err := r.repo.LockByCode(ctx, code)
	if errors.Is(err, ErrNotFound) {
		return Token{}, ErrInvalidOrUsedCode
	}
	if err != nil {
		return Token{}, err
	}
	if t.Used || t.Kind != kind {
		return Token{}, ErrInvalidOrUsedCode
	}

	if check != nil {
		if err := check(t); err != nil {
			return Token{}, err
		}
	}

	usedAt := r.now().UTC()
	if err := r.repo.MarkUsed(ctx, t.ID, redeemerID, usedAt); err != nil {
		return Token{}, err
	}
	t.Used = true
	t.UsedAt = usedAt
	t.RedeemerID = redeemerID
	return t, nil
}
