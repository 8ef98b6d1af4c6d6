//go:build integration

package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/embygate/embygate/internal/identity"
	"github.com/embygate/embygate/internal/infra"
	"github.com/embygate/embygate/internal/ledger"
	"github.com/embygate/embygate/internal/logging"
	"github.com/embygate/embygate/internal/token"
)

func setupPostgres(t *testing.T, ctx context.Context) *Postgres {
	t.Helper()
	req := testcontainers.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "test",
			"POSTGRES_PASSWORD": "test",
			"POSTGRES_DB":       "embygate",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").WithOccurrence(2),
	}
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5432")
	require.NoError(t, err)

	pool, err := infra.NewPostgresPool(ctx, infra.PoolConfig{
		URL: fmt.Sprintf("postgres://test:test@%s:%s/embygate?sslmode=disable", host, port.Port()),
	})
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	require.NoError(t, Migrate(ctx, pool, logging.Discard()))
	// Second run must be a no-op.
	require.NoError(t, Migrate(ctx, pool, logging.Discard()))
	return NewPostgres(pool)
}

func TestIntegration_Postgres(t *testing.T) {
	ctx := context.Background()
	s := setupPostgres(t, ctx)

	t.Run("concurrent resolve creates one identity", func(t *testing.T) {
		svc := identity.NewService(s.Repositories().Identities, identity.NewAdminList(77))

		const callers = 16
		ids := make([]int64, callers)
		var wg sync.WaitGroup
		for i := 0; i < callers; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				got, err := svc.ResolveOrCreate(ctx, 77, "admin")
				if err != nil {
					t.Errorf("resolve: %v", err)
					return
				}
				ids[i] = got.ID
			}(i)
		}
		wg.Wait()
		for _, id := range ids {
			require.Equal(t, ids[0], id)
		}

		var rows int
		require.NoError(t, s.pool.QueryRow(ctx, `SELECT count(*) FROM identities WHERE external_id = 77`).Scan(&rows))
		require.Equal(t, 1, rows)
	})

	t.Run("concurrent redeem succeeds once", func(t *testing.T) {
		issuer, err := identity.NewService(s.Repositories().Identities, identity.NewAdminList()).ResolveOrCreate(ctx, 1000, "")
		require.NoError(t, err)
		tokens, err := token.NewRegistry(s.Repositories().Tokens, nil, nil).Issue(ctx, issuer.ID, token.KindRegister, 1)
		require.NoError(t, err)

		const racers = 8
		var (
			wg       sync.WaitGroup
			mu       sync.Mutex
			wins     int
			rejected int
		)
		for i := 0; i < racers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				err := s.InTx(ctx, func(ctx context.Context, repos Repositories) error {
					_, err := token.NewRegistry(repos.Tokens, nil, nil).Redeem(ctx, tokens[0].Code, issuer.ID, nil)
					return err
				})
				mu.Lock()
				defer mu.Unlock()
				switch {
				case err == nil:
					wins++
				case errors.Is(err, token.ErrInvalidOrUsedCode):
					rejected++
				default:
					t.Errorf("unexpected error: %v", err)
				}
			}()
		}
		wg.Wait()
		require.Equal(t, 1, wins)
		require.Equal(t, racers-1, rejected)
	})

	t.Run("rollback discards writes", func(t *testing.T) {
		boom := errors.New("boom")
		err := s.InTx(ctx, func(ctx context.Context, repos Repositories) error {
			if _, err := repos.Identities.Create(ctx, identity.Identity{ExternalID: 555}); err != nil {
				return err
			}
			return boom
		})
		require.ErrorIs(t, err, boom)
		_, err = s.Repositories().Identities.FindByExternalID(ctx, 555)
		require.ErrorIs(t, err, identity.ErrNotFound)
	})

	t.Run("quota lazy expiry and seat check", func(t *testing.T) {
		l := ledger.New(s.Repositories().Quota)
		past := time.Now().Add(-time.Hour)
		seats := 0
		require.NoError(t, s.InTx(ctx, func(ctx context.Context, repos Repositories) error {
			_, err := ledger.New(repos.Quota).SetWindow(ctx, ledger.Window{Seats: &seats, OpenUntil: &past})
			return err
		}))

		state, err := l.GetOrInit(ctx)
		require.NoError(t, err)
		open, err := l.HasOpenCapacity(ctx, &state, time.Now())
		require.NoError(t, err)
		require.False(t, open)

		stored, err := l.GetOrInit(ctx)
		require.NoError(t, err)
		require.True(t, stored.OpenUntil.IsZero())

		err = s.Repositories().Quota.Save(ctx, ledger.QuotaState{RemainingSeats: -1})
		require.Error(t, err, "check constraint must reject negative seats")
	})

	t.Run("ban without account is rejected", func(t *testing.T) {
		created, err := s.Repositories().Identities.Create(ctx, identity.Identity{ExternalID: 9001})
		require.NoError(t, err)
		err = s.Repositories().Identities.SetBan(ctx, created.ID, time.Now(), "nope")
		require.Error(t, err)
	})
}
