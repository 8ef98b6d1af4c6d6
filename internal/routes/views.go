package routes

import (
	"time"

	"github.com/embygate/embygate/internal/emby"
	"github.com/embygate/embygate/internal/grant"
	"github.com/embygate/embygate/internal/identity"
	"github.com/embygate/embygate/internal/ledger"
	"github.com/embygate/embygate/internal/token"
)

type identityView struct {
	ExternalID          int64      `json:"external_id"`
	DisplayName         string     `json:"display_name,omitempty"`
	Administrator       bool       `json:"administrator"`
	Whitelisted         bool       `json:"whitelisted"`
	RegistrationEnabled bool       `json:"registration_enabled"`
	AccountID           string     `json:"account_id,omitempty"`
	AccountName         string     `json:"account_name,omitempty"`
	BannedAt            *time.Time `json:"banned_at,omitempty"`
	BanReason           string     `json:"ban_reason,omitempty"`
	CreatedAt           time.Time  `json:"created_at"`
}

func newIdentityView(id identity.Identity) identityView {
	v := identityView{
		ExternalID:          id.ExternalID,
		DisplayName:         id.DisplayName,
		Administrator:       id.Administrator,
		Whitelisted:         id.Whitelisted,
		RegistrationEnabled: id.RegistrationEnabled,
		AccountID:           id.AccountID,
		AccountName:         id.AccountName,
		BanReason:           id.BanReason,
		CreatedAt:           id.CreatedAt,
	}
	if id.Banned() {
		bannedAt := id.BannedAt
		v.BannedAt = &bannedAt
	}
	return v
}

type infoView struct {
	Identity identityView `json:"identity"`
	Account  *emby.User   `json:"account,omitempty"`
}

func newInfoView(info grant.Info) infoView {
	return infoView{Identity: newIdentityView(info.Identity), Account: info.Account}
}

type tokenView struct {
	Code      string     `json:"code"`
	Kind      string     `json:"kind"`
	Used      bool       `json:"used"`
	UsedAt    *time.Time `json:"used_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

func newTokenView(t token.Token) tokenView {
	v := tokenView{Code: t.Code, Kind: t.Kind.String(), Used: t.Used, CreatedAt: t.CreatedAt}
	if t.Used {
		usedAt := t.UsedAt
		v.UsedAt = &usedAt
	}
	return v
}

type quotaView struct {
	TotalRegistered int64      `json:"total_registered"`
	RemainingSeats  int        `json:"remaining_seats"`
	OpenUntil       *time.Time `json:"open_until,omitempty"`
	WindowOpen      bool       `json:"window_open"`
}

func newQuotaView(state ledger.QuotaState, now time.Time) quotaView {
	v := quotaView{
		TotalRegistered: state.TotalRegistered,
		RemainingSeats:  state.RemainingSeats,
		WindowOpen:      state.WindowOpen(now),
	}
	if !state.OpenUntil.IsZero() {
		openUntil := state.OpenUntil
		v.OpenUntil = &openUntil
	}
	return v
}
