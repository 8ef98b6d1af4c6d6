// Package store binds the domain repositories to a transactional backend.
package store

import (
	"context"

	"github.com/embygate/embygate/internal/identity"
	"github.com/embygate/embygate/internal/ledger"
	"github.com/embygate/embygate/internal/token"
)

// Repositories groups the repositories that share one transaction.
type Repositories struct {
	Identities identity.Repository
	Tokens     token.Repository
	Quota      ledger.Repository
}

// Store runs work either in autocommit mode or inside a single transaction.
type Store interface {
	// Repositories returns autocommit repositories. They must not be used
	// from inside an InTx callback.
	Repositories() Repositories
	// InTx runs fn in one transaction. Any error returned by fn, or a panic,
	// rolls back every write made through the repositories it was given.
	InTx(ctx context.Context, fn func(ctx context.Context, repos Repositories) error) error
}
