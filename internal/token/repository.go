package token

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/embygate/embygate/internal/infra"
)

// Repository persists tokens.
type Repository interface {
	// CreateBatch inserts tokens and returns them with ids, in input order.
	CreateBatch(ctx context.Context, tokens []Token) ([]Token, error)
	// LockByCode fetches a token and holds a row lock until the enclosing
	// transaction ends.
	LockByCode(ctx context.Context, code string) (Token, error)
	MarkUsed(ctx context.Context, id, redeemerID int64, usedAt time.Time) error
	FindByCode(ctx context.Context, code string) (Token, error)
}

// PostgresRepository implements Repository on PostgreSQL.
type PostgresRepository struct {
	db infra.DBTX
}

// NewPostgresRepository builds a token repository over a pool or transaction.
func NewPostgresRepository(db infra.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// CreateBatch queues one INSERT per token in a single pgx batch.
func (r *PostgresRepository) CreateBatch(ctx context.Context, tokens []Token) ([]Token, error) {
	if len(tokens) == 0 {
		return nil, nil
	}
	batch := &pgx.Batch{}
	for _, t := range tokens {
		batch.Queue(`INSERT INTO tokens (code, kind, issuer_id, created_at) VALUES ($1, $2, $3, $4)
            RETURNING id, created_at`, t.Code, t.Kind.String(), t.IssuerID, t.CreatedAt.UTC())
	}

	results := r.db.SendBatch(ctx, batch)
	out := make([]Token, len(tokens))
	for i, t := range tokens {
		if err := results.QueryRow().Scan(&t.ID, &t.CreatedAt); err != nil {
			_ = results.Close()
			return nil, fmt.Errorf("insert token: %w", infra.MapError(err))
		}
		t.CreatedAt = t.CreatedAt.UTC()
		out[i] = t
	}
	if err := results.Close(); err != nil {
		return nil, fmt.Errorf("close batch: %w", infra.MapError(err))
	}
	return out, nil
}

const selectToken = `SELECT id, code, kind, issuer_id, used, used_at, redeemer_id, created_at FROM tokens WHERE code = $1`

// LockByCode fetches a token with SELECT ... FOR UPDATE.
func (r *PostgresRepository) LockByCode(ctx context.Context, code string) (Token, error) {
	return scanToken(r.db.QueryRow(ctx, selectToken+` FOR UPDATE`, code))
}

// FindByCode fetches a token without locking.
func (r *PostgresRepository) FindByCode(ctx context.Context, code string) (Token, error) {
	return scanToken(r.db.QueryRow(ctx, selectToken, code))
}

// MarkUsed stamps a token as redeemed. Already used tokens are left untouched.
func (r *PostgresRepository) MarkUsed(ctx context.Context, id, redeemerID int64, usedAt time.Time) error {
	cmd, err := r.db.Exec(ctx, `UPDATE tokens SET used = TRUE, used_at = $2, redeemer_id = $3
        WHERE id = $1 AND used = FALSE`, id, usedAt.UTC(), redeemerID)
	if err != nil {
		return fmt.Errorf("mark token used: %w", infra.MapError(err))
	}
	if cmd.RowsAffected() == 0 {
		return ErrInvalidOrUsedCode
	}
	return nil
}

func scanToken(row pgx.Row) (Token, error) {
	var (
		t          Token
		kind       string
		usedAt     *time.Time
		redeemerID *int64
	)
	if err := row.Scan(&t.ID, &t.Code, &kind, &t.IssuerID, &t.Used, &usedAt, &redeemerID, &t.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Token{}, ErrNotFound
		}
		return Token{}, fmt.Errorf("select token: %w", infra.MapError(err))
	}
	k, err := ParseKind(kind)
	if err != nil {
		return Token{}, err
	}
	t.Kind = k
	if usedAt != nil {
		t.UsedAt = usedAt.UTC()
	}
	if redeemerID != nil {
		t.RedeemerID = *redeemerID
	}
	t.CreatedAt = t.CreatedAt.UTC()
	return t, nil
}
