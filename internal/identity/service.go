package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Service resolves external callers to identities.
type Service struct {
	repo   Repository
	admins AdminList
}

// NewService creates a new identity service.
func NewService(repo Repository, admins AdminList) *Service {
	return &Service{repo: repo, admins: admins}
}

// ResolveOrCreate returns the identity for externalID, creating it on first
// sight. A concurrent creator that loses the insert race reads the winner's row.
func (s *Service) ResolveOrCreate(ctx context.Context, externalID int64, nameHint string) (Identity, error) {
	identity, err := s.repo.FindByExternalID(ctx, externalID)
	if err == nil {
		return identity, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return Identity{}, err
	}

	identity, err = s.repo.Create(ctx, Identity{
		ExternalID:    externalID,
		DisplayName:   strings.TrimSpace(nameHint),
		Administrator: s.admins.Contains(externalID),
	})
	if errors.Is(err, ErrDuplicate) {
		return s.repo.FindByExternalID(ctx, externalID)
	}
	if err != nil {
		return Identity{}, fmt.Errorf("create identity: %w", err)
	}
	return identity, nil
}

// Require looks up an identity without creating one.
func (s *Service) Require(ctx context.Context, externalID int64) (Identity, error) {
	return s.repo.FindByExternalID(ctx, externalID)
}

// RequireLinkedAccount is Require for operations that need a live account.
func (s *Service) RequireLinkedAccount(ctx context.Context, externalID int64) (Identity, error) {
	identity, err := s.Require(ctx, externalID)
	if err != nil {
		return Identity{}, err
	}
	if err := CheckLinkedAccount(identity); err != nil {
		return Identity{}, err
	}
	return identity, nil
}

// CheckLinkedAccount fails unless identity has an unbanned linked account.
func CheckLinkedAccount(identity Identity) error {
	if !identity.HasAccount() {
		return ErrNoLinkedAccount
	}
	if identity.Banned() {
		return ErrAccountBanned
	}
	return nil
}
