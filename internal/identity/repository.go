package identity

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/embygate/embygate/internal/infra"
)

const externalIDConstraint = "identities_external_id_key"

// Repository persists identities.
type Repository interface {
	FindByExternalID(ctx context.Context, externalID int64) (Identity, error)
	FindByID(ctx context.Context, id int64) (Identity, error)
	// LockByID fetches the identity and holds a row lock on it until the
	// enclosing transaction ends.
	LockByID(ctx context.Context, id int64) (Identity, error)
	Create(ctx context.Context, identity Identity) (Identity, error)
	Update(ctx context.Context, identity Identity) error
	SetBan(ctx context.Context, id int64, bannedAt time.Time, reason string) error
}

// PostgresRepository implements Repository using PostgreSQL.
type PostgresRepository struct {
	db infra.DBTX
}

// NewPostgresRepository builds a Postgres-backed identity repository. db may be
// a pool or a transaction.
func NewPostgresRepository(db infra.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const selectIdentity = `SELECT id, external_id, display_name, is_admin, is_whitelist, registration_enabled,
        account_id, account_name, banned_at, ban_reason, created_at, updated_at
    FROM identities`

// FindByExternalID fetches an identity by its external caller id.
func (r *PostgresRepository) FindByExternalID(ctx context.Context, externalID int64) (Identity, error) {
	return r.scanOne(r.db.QueryRow(ctx, selectIdentity+` WHERE external_id = $1`, externalID))
}

// FindByID fetches an identity by local id.
func (r *PostgresRepository) FindByID(ctx context.Context, id int64) (Identity, error) {
	return r.scanOne(r.db.QueryRow(ctx, selectIdentity+` WHERE id = $1`, id))
}

// LockByID fetches an identity with SELECT ... FOR UPDATE.
func (r *PostgresRepository) LockByID(ctx context.Context, id int64) (Identity, error) {
	return r.scanOne(r.db.QueryRow(ctx, selectIdentity+` WHERE id = $1 FOR UPDATE`, id))
}

// Create inserts a new identity and returns it with its assigned id.
func (r *PostgresRepository) Create(ctx context.Context, identity Identity) (Identity, error) {
	now := time.Now().UTC()
	row := r.db.QueryRow(ctx, `INSERT INTO identities (external_id, display_name, is_admin, is_whitelist,
            registration_enabled, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $6)
        RETURNING id, created_at, updated_at`,
		identity.ExternalID, nullString(identity.DisplayName), identity.Administrator,
		identity.Whitelisted, identity.RegistrationEnabled, now)
	if err := row.Scan(&identity.ID, &identity.CreatedAt, &identity.UpdatedAt); err != nil {
		if infra.IsUniqueViolation(err, externalIDConstraint) {
			return Identity{}, ErrDuplicate
		}
		return Identity{}, fmt.Errorf("insert identity: %w", infra.MapError(err))
	}
	identity.CreatedAt = identity.CreatedAt.UTC()
	identity.UpdatedAt = identity.UpdatedAt.UTC()
	return identity, nil
}

// Update stores every mutable field of identity.
func (r *PostgresRepository) Update(ctx context.Context, identity Identity) error {
	cmd, err := r.db.Exec(ctx, `UPDATE identities
        SET display_name = $2, is_admin = $3, is_whitelist = $4, registration_enabled = $5,
            account_id = $6, account_name = $7, banned_at = $8, ban_reason = $9, updated_at = $10
        WHERE id = $1`,
		identity.ID, nullString(identity.DisplayName), identity.Administrator, identity.Whitelisted,
		identity.RegistrationEnabled, nullString(identity.AccountID), nullString(identity.AccountName),
		nullTime(identity.BannedAt), nullString(identity.BanReason), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update identity: %w", infra.MapError(err))
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// SetBan writes only the ban columns. A zero bannedAt clears the ban.
func (r *PostgresRepository) SetBan(ctx context.Context, id int64, bannedAt time.Time, reason string) error {
	if bannedAt.IsZero() {
		reason = ""
	}
	cmd, err := r.db.Exec(ctx, `UPDATE identities SET banned_at = $2, ban_reason = $3, updated_at = $4 WHERE id = $1`,
		id, nullTime(bannedAt), nullString(reason), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update ban: %w", infra.MapError(err))
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PostgresRepository) scanOne(row pgx.Row) (Identity, error) {
	var (
		identity               Identity
		displayName, banReason *string
		accountID, accountName *string
		bannedAt               *time.Time
	)
	err := row.Scan(&identity.ID, &identity.ExternalID, &displayName, &identity.Administrator,
		&identity.Whitelisted, &identity.RegistrationEnabled, &accountID, &accountName,
		&bannedAt, &banReason, &identity.CreatedAt, &identity.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Identity{}, ErrNotFound
		}
		return Identity{}, fmt.Errorf("select identity: %w", infra.MapError(err))
	}
	identity.DisplayName = deref(displayName)
	identity.AccountID = deref(accountID)
	identity.AccountName = deref(accountName)
	identity.BanReason = deref(banReason)
	if bannedAt != nil {
		identity.BannedAt = bannedAt.UTC()
	}
	identity.CreatedAt = identity.CreatedAt.UTC()
	identity.UpdatedAt = identity.UpdatedAt.UTC()
	return identity, nil
}

func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func nullTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	t = t.UTC()
	return &t
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
