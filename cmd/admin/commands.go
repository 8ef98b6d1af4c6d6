package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/embygate/embygate/internal/grant"
	"github.com/embygate/embygate/internal/identity"
	"github.com/embygate/embygate/internal/infra"
	"github.com/embygate/embygate/internal/ledger"
	"github.com/embygate/embygate/internal/logging"
	"github.com/embygate/embygate/internal/middleware"
	"github.com/embygate/embygate/internal/store"
	"github.com/embygate/embygate/internal/token"
)

// Globals are shared by every command.
type Globals struct {
	DatabaseURL string  `help:"PostgreSQL connection string" env:"DATABASE_URL"`
	AdminList   []int64 `help:"Administrator external ids" env:"ADMIN_LIST" sep:","`
	LogLevel    string  `help:"Log level" default:"info" env:"LOG_LEVEL"`

	out io.Writer `kong:"-"`
}

func (g *Globals) logger() *slog.Logger {
	return logging.NewWithWriter(os.Stderr, g.LogLevel, "text")
}

func (g *Globals) stdout() io.Writer {
	if g.out != nil {
		return g.out
	}
	return os.Stdout
}

func (g *Globals) connect(ctx context.Context) (*pgxpool.Pool, error) {
	if g.DatabaseURL == "" {
		return nil, fmt.Errorf("--database-url or DATABASE_URL is required")
	}
	return infra.NewPostgresPool(ctx, infra.PoolConfig{URL: g.DatabaseURL, MaxConns: 2, MinConns: 1})
}

func (g *Globals) service(st store.Store) *grant.Service {
	return grant.NewService(grant.Deps{
		Store:  st,
		Admins: identity.NewAdminList(g.AdminList...),
		Logger: logging.Component(g.logger(), "grant"),
	})
}

type MigrateCmd struct{}

func (m *MigrateCmd) Run(ctx context.Context, g *Globals) error {
	pool, err := g.connect(ctx)
	if err != nil {
		return err
	}
	defer pool.Close()
	return store.Migrate(ctx, pool, logging.Component(g.logger(), "migrations"))
}

type IssueCmd struct {
	Operator int64  `help:"External id of the issuing administrator" required:""`
	Kind     string `help:"Token kind" enum:"register,whitelist" default:"register"`
	Count    int    `help:"Number of tokens" default:"1"`
}

func (i *IssueCmd) Run(ctx context.Context, g *Globals) error {
	kind, err := token.ParseKind(i.Kind)
	if err != nil {
		return err
	}
	pool, err := g.connect(ctx)
	if err != nil {
		return err
	}
	defer pool.Close()

	return issue(ctx, g, store.NewPostgres(pool), i.Operator, kind, i.Count)
}

func issue(ctx context.Context, g *Globals, st store.Store, operator int64, kind token.Kind, count int) error {
	issued, err := g.service(st).IssueTokens(ctx, grant.Caller{ExternalID: operator}, kind, count)
	if err != nil {
		return err
	}
	for _, t := range issued {
		fmt.Fprintln(g.stdout(), t.Code)
	}
	return nil
}

type QuotaCmd struct {
	Show QuotaShowCmd `cmd:"" help:"Print the quota state"`
	Set  QuotaSetCmd  `cmd:"" help:"Change remaining seats or the open-registration window"`
}

type QuotaShowCmd struct{}

func (q *QuotaShowCmd) Run(ctx context.Context, g *Globals) error {
	pool, err := g.connect(ctx)
	if err != nil {
		return err
	}
	defer pool.Close()

	return showQuota(ctx, g, store.NewPostgres(pool))
}

func showQuota(ctx context.Context, g *Globals, st store.Store) error {
	q := ledger.New(st.Repositories().Quota)
	state, err := q.GetOrInit(ctx)
	if err != nil {
		return err
	}
	if _, err := q.HasOpenCapacity(ctx, &state, time.Now()); err != nil {
		return err
	}
	printQuota(g.stdout(), state)
	return nil
}

type QuotaSetCmd struct {
	Operator int64         `help:"External id of the administrator" required:""`
	Seats    int           `help:"Remaining seats; negative leaves them unchanged" default:"-1"`
	OpenFor  time.Duration `help:"Open registration for this long from now"`
	Close    bool          `help:"Close the open-registration window"`
}

func (q *QuotaSetCmd) Run(ctx context.Context, g *Globals) error {
	pool, err := g.connect(ctx)
	if err != nil {
		return err
	}
	defer pool.Close()

	return q.apply(ctx, g, store.NewPostgres(pool), time.Now())
}

func (q *QuotaSetCmd) apply(ctx context.Context, g *Globals, st store.Store, now time.Time) error {
	var w ledger.Window
	if q.Seats >= 0 {
		seats := q.Seats
		w.Seats = &seats
	}
	switch {
	case q.Close:
		closed := time.Time{}
		w.OpenUntil = &closed
	case q.OpenFor > 0:
		deadline := now.Add(q.OpenFor)
		w.OpenUntil = &deadline
	}
	if w.Seats == nil && w.OpenUntil == nil {
		return fmt.Errorf("nothing to change: pass --seats, --open-for or --close")
	}

	state, err := g.service(st).SetQuotaConfig(ctx, grant.Caller{ExternalID: q.Operator}, w)
	if err != nil {
		return err
	}
	printQuota(g.stdout(), state)
	return nil
}

func printQuota(w io.Writer, state ledger.QuotaState) {
	fmt.Fprintf(w, "registered:      %d\n", state.TotalRegistered)
	fmt.Fprintf(w, "remaining seats: %d\n", state.RemainingSeats)
	if state.OpenUntil.IsZero() {
		fmt.Fprintln(w, "open until:      closed")
		return
	}
	fmt.Fprintf(w, "open until:      %s\n", state.OpenUntil.UTC().Format(time.RFC3339))
}

type TokenCmd struct {
	Subject    int64         `help:"External caller id" required:""`
	Name       string        `help:"Display name hint"`
	TTL        time.Duration `help:"Token lifetime" default:"1h"`
	SigningKey string        `help:"Gateway signing key" required:"" env:"GATEWAY_JWT_SECRET"`
}

func (t *TokenCmd) Run(g *Globals) error {
	signed, err := middleware.SignCaller([]byte(t.SigningKey), t.Subject, t.Name, t.TTL)
	if err != nil {
		return err
	}
	fmt.Fprintln(g.stdout(), signed)
	return nil
}
