package identity

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestResolveOrCreateAssignsAdminFromAllowList(t *testing.T) {
	svc := NewService(NewMemoryRepository(), NewAdminList(42))
	ctx := context.Background()

	admin, err := svc.ResolveOrCreate(ctx, 42, "  root ")
	if err != nil {
		t.Fatalf("resolve admin: %v", err)
	}
	if !admin.Administrator {
		t.Fatalf("expected administrator flag for allow-listed id")
	}
	if admin.DisplayName != "root" {
		t.Fatalf("expected trimmed display name, got %q", admin.DisplayName)
	}

	user, err := svc.ResolveOrCreate(ctx, 7, "")
	if err != nil {
		t.Fatalf("resolve user: %v", err)
	}
	if user.Administrator || user.Whitelisted || user.RegistrationEnabled {
		t.Fatalf("expected zero flags for new identity, got %+v", user)
	}

	again, err := svc.ResolveOrCreate(ctx, 7, "other")
	if err != nil {
		t.Fatalf("resolve again: %v", err)
	}
	if again.ID != user.ID {
		t.Fatalf("expected same local id %d, got %d", user.ID, again.ID)
	}
}

func TestResolveOrCreateConcurrentSameExternalID(t *testing.T) {
	repo := NewMemoryRepository()
	svc := NewService(repo, NewAdminList())
	ctx := context.Background()

	const callers = 32
	ids := make([]int64, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			identity, err := svc.ResolveOrCreate(ctx, 99, "racer")
			if err != nil {
				t.Errorf("resolve: %v", err)
				return
			}
			ids[i] = identity.ID
		}(i)
	}
	wg.Wait()

	for _, id := range ids {
		if id != ids[0] {
			t.Fatalf("expected a single local id, got %v", ids)
		}
	}
	if len(repo.byID) != 1 {
		t.Fatalf("expected one persisted identity, got %d", len(repo.byID))
	}
}

// duplicateOnCreate simulates losing the insert race to another instance.
type duplicateOnCreate struct {
	*MemoryRepository
	winner Identity
}

func (r *duplicateOnCreate) Create(ctx context.Context, identity Identity) (Identity, error) {
	if _, err := r.MemoryRepository.Create(ctx, r.winner); err != nil {
		return Identity{}, err
	}
	return Identity{}, ErrDuplicate
}

func TestResolveOrCreateRetriesDuplicateAsRead(t *testing.T) {
	repo := &duplicateOnCreate{MemoryRepository: NewMemoryRepository(), winner: Identity{ExternalID: 5, DisplayName: "winner"}}
	svc := NewService(repo, NewAdminList())

	identity, err := svc.ResolveOrCreate(context.Background(), 5, "loser")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if identity.DisplayName != "winner" {
		t.Fatalf("expected winner's row, got %+v", identity)
	}
}

func TestRequireDoesNotCreate(t *testing.T) {
	repo := NewMemoryRepository()
	svc := NewService(repo, NewAdminList())

	if _, err := svc.Require(context.Background(), 1); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if len(repo.byID) != 0 {
		t.Fatalf("require must not create identities")
	}
}

func TestRequireLinkedAccount(t *testing.T) {
	repo := NewMemoryRepository()
	svc := NewService(repo, NewAdminList())
	ctx := context.Background()

	identity, err := svc.ResolveOrCreate(ctx, 1, "")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if _, err := svc.RequireLinkedAccount(ctx, 1); !errors.Is(err, ErrNoLinkedAccount) {
		t.Fatalf("expected ErrNoLinkedAccount, got %v", err)
	}

	identity.AccountID = "acc-1"
	identity.AccountName = "alice"
	if err := repo.Update(ctx, identity); err != nil {
		t.Fatalf("update: %v", err)
	}
	if _, err := svc.RequireLinkedAccount(ctx, 1); err != nil {
		t.Fatalf("expected live account, got %v", err)
	}

	if err := repo.SetBan(ctx, identity.ID, time.Now(), "spam"); err != nil {
		t.Fatalf("ban: %v", err)
	}
	if _, err := svc.RequireLinkedAccount(ctx, 1); !errors.Is(err, ErrAccountBanned) {
		t.Fatalf("expected ErrAccountBanned, got %v", err)
	}
}

func TestMemoryCloneIsIsolated(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()
	original, err := repo.Create(ctx, Identity{ExternalID: 3})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	snapshot := repo.Clone()
	original.Whitelisted = true
	if err := snapshot.Update(ctx, original); err != nil {
		t.Fatalf("update snapshot: %v", err)
	}

	live, _ := repo.FindByID(ctx, original.ID)
	if live.Whitelisted {
		t.Fatalf("clone mutation leaked into the live repository")
	}
}
