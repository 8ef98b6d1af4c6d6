package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/embygate/embygate/internal/identity"
	"github.com/embygate/embygate/internal/infra"
	"github.com/embygate/embygate/internal/ledger"
	"github.com/embygate/embygate/internal/token"
)

// Postgres is a Store backed by a pgx connection pool.
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres wraps pool.
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

func bind(db infra.DBTX) Repositories {
	return Repositories{
		Identities: identity.NewPostgresRepository(db),
		Tokens:     token.NewPostgresRepository(db),
		Quota:      ledger.NewPostgresRepository(db),
	}
}

// Repositories returns repositories bound to the pool.
func (p *Postgres) Repositories() Repositories {
	return bind(p.pool)
}

// InTx runs fn with repositories bound to a single pgx transaction.
func (p *Postgres) InTx(ctx context.Context, fn func(ctx context.Context, repos Repositories) error) error {
	tx, err := p.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return fmt.Errorf("begin tx: %w", infra.MapError(err))
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	if err := fn(ctx, bind(tx)); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", infra.MapError(err))
	}
	return nil
}

// Ping checks database connectivity.
func (p *Postgres) Ping(ctx context.Context) error {
	return p.pool.Ping(ctx)
}
