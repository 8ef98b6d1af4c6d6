package store

import (
	"context"
	"sync"
	"time"

	"github.com/embygate/embygate/internal/identity"
	"github.com/embygate/embygate/internal/ledger"
	"github.com/embygate/embygate/internal/token"
)

// Memory is an in-process Store. Transactions are serialised by one mutex and
// run against snapshots that replace the live state only on success, so a
// failed transaction leaves no trace.
type Memory struct {
	mu         sync.Mutex
	identities *identity.MemoryRepository
	tokens     *token.MemoryRepository
	quota      *ledger.MemoryRepository
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		identities: identity.NewMemoryRepository(),
		tokens:     token.NewMemoryRepository(),
		quota:      ledger.NewMemoryRepository(),
	}
}

// Repositories returns autocommit repositories over the live state.
func (m *Memory) Repositories() Repositories {
	return Repositories{
		Identities: lockedIdentities{m},
		Tokens:     lockedTokens{m},
		Quota:      lockedQuota{m},
	}
}

// InTx runs fn against snapshots and publishes them if fn succeeds.
func (m *Memory) InTx(ctx context.Context, fn func(ctx context.Context, repos Repositories) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	ids, toks, quota := m.identities.Clone(), m.tokens.Clone(), m.quota.Clone()
	if err := fn(ctx, Repositories{Identities: ids, Tokens: toks, Quota: quota}); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	m.identities, m.tokens, m.quota = ids, toks, quota
	return nil
}

// Ping always succeeds.
func (m *Memory) Ping(context.Context) error {
	return nil
}

func (m *Memory) with(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	fn()
}

type lockedIdentities struct{ m *Memory }

func (l lockedIdentities) FindByExternalID(ctx context.Context, externalID int64) (out identity.Identity, err error) {
	l.m.with(func() { out, err = l.m.identities.FindByExternalID(ctx, externalID) })
	return
}

func (l lockedIdentities) FindByID(ctx context.Context, id int64) (out identity.Identity, err error) {
	l.m.with(func() { out, err = l.m.identities.FindByID(ctx, id) })
	return
}

func (l lockedIdentities) LockByID(ctx context.Context, id int64) (out identity.Identity, err error) {
	l.m.with(func() { out, err = l.m.identities.LockByID(ctx, id) })
	return
}

func (l lockedIdentities) Create(ctx context.Context, in identity.Identity) (out identity.Identity, err error) {
	l.m.with(func() { out, err = l.m.identities.Create(ctx, in) })
	return
}

func (l lockedIdentities) Update(ctx context.Context, in identity.Identity) (err error) {
	l.m.with(func() { err = l.m.identities.Update(ctx, in) })
	return
}

func (l lockedIdentities) SetBan(ctx context.Context, id int64, bannedAt time.Time, reason string) (err error) {
	l.m.with(func() { err = l.m.identities.SetBan(ctx, id, bannedAt, reason) })
	return
}

type lockedTokens struct{ m *Memory }

func (l lockedTokens) CreateBatch(ctx context.Context, in []token.Token) (out []token.Token, err error) {
	l.m.with(func() { out, err = l.m.tokens.CreateBatch(ctx, in) })
	return
}

func (l lockedTokens) LockByCode(ctx context.Context, code string) (out token.Token, err error) {
	l.m.with(func() { out, err = l.m.tokens.LockByCode(ctx, code) })
	return
}

func (l lockedTokens) MarkUsed(ctx context.Context, id, redeemerID int64, usedAt time.Time) (err error) {
	l.m.with(func() { err = l.m.tokens.MarkUsed(ctx, id, redeemerID, usedAt) })
	return
}

func (l lockedTokens) FindByCode(ctx context.Context, code string) (out token.Token, err error) {
	l.m.with(func() { out, err = l.m.tokens.FindByCode(ctx, code) })
	return
}

type lockedQuota struct{ m *Memory }

func (l lockedQuota) GetOrInit(ctx context.Context) (out ledger.QuotaState, err error) {
	l.m.with(func() { out, err = l.m.quota.GetOrInit(ctx) })
	return
}

func (l lockedQuota) Lock(ctx context.Context) (out ledger.QuotaState, err error) {
	l.m.with(func() { out, err = l.m.quota.Lock(ctx) })
	return
}

func (l lockedQuota) Save(ctx context.Context, state ledger.QuotaState) (err error) {
	l.m.with(func() { err = l.m.quota.Save(ctx, state) })
	return
}

func (l lockedQuota) ClearWindow(ctx context.Context, expiredBy time.Time) (err error) {
	l.m.with(func() { err = l.m.quota.ClearWindow(ctx, expiredBy) })
	return
}
