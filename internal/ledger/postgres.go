package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/embygate/embygate/internal/infra"
)

// PostgresRepository stores the quota singleton in the quota_state table.
type PostgresRepository struct {
	db infra.DBTX
}

// NewPostgresRepository constructs a Postgres-backed quota repository.
func NewPostgresRepository(db infra.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const ensureRow = `INSERT INTO quota_state (id, total_registered, remaining_seats, open_until, updated_at)
    VALUES (1, 0, 0, 0, now())
    ON CONFLICT (id) DO NOTHING`

// GetOrInit returns the singleton, inserting zero defaults if missing.
func (r *PostgresRepository) GetOrInit(ctx context.Context) (QuotaState, error) {
	return r.load(ctx, `SELECT total_registered, remaining_seats, open_until, updated_at FROM quota_state WHERE id = 1`)
}

// Lock returns the singleton with SELECT ... FOR UPDATE.
func (r *PostgresRepository) Lock(ctx context.Context) (QuotaState, error) {
	return r.load(ctx, `SELECT total_registered, remaining_seats, open_until, updated_at FROM quota_state WHERE id = 1 FOR UPDATE`)
}

func (r *PostgresRepository) load(ctx context.Context, query string) (QuotaState, error) {
	if _, err := r.db.Exec(ctx, ensureRow); err != nil {
		return QuotaState{}, fmt.Errorf("init quota: %w", infra.MapError(err))
	}
	var (
		state     QuotaState
		openUntil int64
	)
	if err := r.db.QueryRow(ctx, query).Scan(&state.TotalRegistered, &state.RemainingSeats, &openUntil, &state.UpdatedAt); err != nil {
		return QuotaState{}, fmt.Errorf("select quota: %w", infra.MapError(err))
	}
	state.OpenUntil = fromUnix(openUntil)
	state.UpdatedAt = state.UpdatedAt.UTC()
	return state, nil
}

// Save overwrites the singleton.
func (r *PostgresRepository) Save(ctx context.Context, state QuotaState) error {
	_, err := r.db.Exec(ctx, `UPDATE quota_state
        SET total_registered = $1, remaining_seats = $2, open_until = $3, updated_at = now()
        WHERE id = 1`, state.TotalRegistered, state.RemainingSeats, toUnix(state.OpenUntil))
	if err != nil {
		return fmt.Errorf("save quota: %w", infra.MapError(err))
	}
	return nil
}

// ClearWindow zeroes an expired deadline.
func (r *PostgresRepository) ClearWindow(ctx context.Context, expiredBy time.Time) error {
	_, err := r.db.Exec(ctx, `UPDATE quota_state SET open_until = 0, updated_at = now()
        WHERE id = 1 AND open_until > 0 AND open_until <= $1`, expiredBy.Unix())
	if err != nil {
		return fmt.Errorf("clear window: %w", infra.MapError(err))
	}
	return nil
}

func toUnix(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.Unix()
}

func fromUnix(sec int64) time.Time {
	if sec <= 0 {
		return time.Time{}
	}
	return time.Unix(sec, 0).UTC()
}
