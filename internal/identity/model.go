package identity

import (
	"errors"
	"time"
)

var (
	ErrNotFound        = errors.New("identity not found")
	ErrDuplicate       = errors.New("identity already exists")
	ErrAlreadyLinked   = errors.New("identity already has a linked account")
	ErrNoLinkedAccount = errors.New("identity has no linked account")
	ErrAccountBanned   = errors.New("linked account is banned")
)

// Identity represents one external caller known to the service.
type Identity struct {
	ID                  int64
	ExternalID          int64
	DisplayName         string
	Administrator       bool
	Whitelisted         bool
	RegistrationEnabled bool
	AccountID           string
	AccountName         string
	BannedAt            time.Time
	BanReason           string
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// HasAccount reports whether the identity is linked to a provider account.
func (i Identity) HasAccount() bool {
	return i.AccountID != ""
}

// Banned reports whether the linked account is currently banned.
func (i Identity) Banned() bool {
	return !i.BannedAt.IsZero()
}

// AdminList is the static allow-list of administrator external ids.
type AdminList struct {
	ids map[int64]struct{}
}

// NewAdminList builds an allow-list from the configured ids.
func NewAdminList(ids ...int64) AdminList {
	set := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return AdminList{ids: set}
}

// Contains reports whether externalID is an allow-listed administrator.
func (l AdminList) Contains(externalID int64) bool {
	_, ok := l.ids[externalID]
	return ok
}

// Len returns the number of allow-listed ids.
func (l AdminList) Len() int {
	return len(l.ids)
}
