package store

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/embygate/embygate/internal/identity"
	"github.com/embygate/embygate/internal/ledger"
	"github.com/embygate/embygate/internal/logging"
)

func TestMemoryInTxCommits(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()

	err := s.InTx(ctx, func(ctx context.Context, repos Repositories) error {
		if _, err := repos.Identities.Create(ctx, identity.Identity{ExternalID: 1}); err != nil {
			return err
		}
		return repos.Quota.Save(ctx, ledger.QuotaState{RemainingSeats: 2})
	})
	require.NoError(t, err)

	got, err := s.Repositories().Identities.FindByExternalID(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, int64(1), got.ExternalID)

	state, err := s.Repositories().Quota.GetOrInit(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, state.RemainingSeats)
}

func TestMemoryInTxRollsBackEverything(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()
	boom := errors.New("boom")

	err := s.InTx(ctx, func(ctx context.Context, repos Repositories) error {
		if _, err := repos.Identities.Create(ctx, identity.Identity{ExternalID: 1}); err != nil {
			return err
		}
		if err := repos.Quota.Save(ctx, ledger.QuotaState{TotalRegistered: 9}); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	_, err = s.Repositories().Identities.FindByExternalID(ctx, 1)
	require.ErrorIs(t, err, identity.ErrNotFound)
	state, err := s.Repositories().Quota.GetOrInit(ctx)
	require.NoError(t, err)
	require.Zero(t, state.TotalRegistered)
}

func TestMemoryInTxRollsBackOnPanic(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()

	require.Panics(t, func() {
		_ = s.InTx(ctx, func(ctx context.Context, repos Repositories) error {
			if _, err := repos.Identities.Create(ctx, identity.Identity{ExternalID: 5}); err != nil {
				return err
			}
			panic("provider exploded")
		})
	})

	_, err := s.Repositories().Identities.FindByExternalID(ctx, 5)
	require.ErrorIs(t, err, identity.ErrNotFound)

	// The store must remain usable after a panicking transaction.
	require.NoError(t, s.InTx(ctx, func(context.Context, Repositories) error { return nil }))
}

func TestMigrationsAreEmbeddedInOrder(t *testing.T) {
	migrations, err := loadMigrations(logging.Discard())
	require.NoError(t, err)
	require.NotEmpty(t, migrations)
	require.Equal(t, 1, migrations[0].version)
	require.Contains(t, migrations[0].content, "CREATE TABLE IF NOT EXISTS identities")
	for i := 1; i < len(migrations); i++ {
		require.Less(t, migrations[i-1].version, migrations[i].version)
	}
}
