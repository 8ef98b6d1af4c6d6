// Package grant composes identities, quota, tokens and the access rules into
// the operations exposed to the command surface.
package grant

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"github.com/embygate/embygate/internal/emby"
	"github.com/embygate/embygate/internal/identity"
	"github.com/embygate/embygate/internal/ledger"
	"github.com/embygate/embygate/internal/notification"
	"github.com/embygate/embygate/internal/policy"
	"github.com/embygate/embygate/internal/store"
	"github.com/embygate/embygate/internal/token"
)

// MemberLeftReason is recorded on accounts banned because their owner left the group.
const MemberLeftReason = "left the group"

// Caller identifies who issued a command.
type Caller struct {
	ExternalID int64
	Name       string
}

// Deps collects the collaborators of a Service. Store is required.
type Deps struct {
	Store    store.Store
	Admins   identity.AdminList
	Provider AccountProvider
	Router   LineRouter
	Notifier notification.Notifier
	Observer Observer
	Logger   *slog.Logger
	Now      func() time.Time
	NewCode  func(token.Kind) string
}

// Service implements the grant operations.
type Service struct {
	store    store.Store
	admins   identity.AdminList
	provider AccountProvider
	router   LineRouter
	notifier notification.Notifier
	observer Observer
	logger   *slog.Logger
	now      func() time.Time
	newCode  func(token.Kind) string
}

// NewService wires a Service, filling optional collaborators with inert defaults.
func NewService(deps Deps) *Service {
	s := &Service{
		store:    deps.Store,
		admins:   deps.Admins,
		provider: deps.Provider,
		router:   deps.Router,
		notifier: deps.Notifier,
		observer: deps.Observer,
		logger:   deps.Logger,
		now:      deps.Now,
		newCode:  deps.NewCode,
	}
	if s.provider == nil {
		s.provider = disabledProvider{}
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.notifier == nil {
		s.notifier = notification.NewLoggerNotifier(s.logger)
	}
	if s.observer == nil {
		s.observer = nopObserver{}
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.newCode == nil {
		s.newCode = token.NewCode
	}
	return s
}

func (s *Service) identities() *identity.Service {
	return identity.NewService(s.store.Repositories().Identities, s.admins)
}

func (s *Service) observe(op string, start time.Time, err *error) {
	s.observer.ObserveOperation(op, KindOf(*err), time.Since(start))
}

// CreateAccount provisions a provider account for caller. The identity must
// be personally entitled or find open capacity; seat consumption, the provider
// calls and the identity link happen in one transaction.
func (s *Service) CreateAccount(ctx context.Context, caller Caller, name, password string) (created identity.Identity, err error) {
	defer s.observe("create_account", time.Now(), &err)

	id, err := s.identities().ResolveOrCreate(ctx, caller.ExternalID, caller.Name)
	if err != nil {
		return identity.Identity{}, err
	}
	if err := policy.CanCreateAccount(id); err != nil {
		return identity.Identity{}, err
	}

	// Pre-check outside the transaction so the lazy window expiry persists
	// even when the request is refused.
	quota := ledger.New(s.store.Repositories().Quota)
	state, err := quota.GetOrInit(ctx)
	if err != nil {
		return identity.Identity{}, err
	}
	open, err := quota.HasOpenCapacity(ctx, &state, s.now())
	if err != nil {
		return identity.Identity{}, err
	}
	if !id.RegistrationEnabled && !open {
		return identity.Identity{}, ErrRegistrationNotAllowed
	}

	var (
		accountID string
		after     ledger.QuotaState
	)
	err = s.store.InTx(ctx, func(ctx context.Context, repos store.Repositories) error {
		current, err := repos.Identities.LockByID(ctx, id.ID)
		if err != nil {
			return err
		}
		if err := policy.CanCreateAccount(current); err != nil {
			return err
		}

		txQuota := ledger.New(repos.Quota)
		state, err := txQuota.Lock(ctx)
		if err != nil {
			return err
		}
		entitled := current.RegistrationEnabled
		if !entitled {
			open, err := txQuota.HasOpenCapacity(ctx, &state, s.now())
			if err != nil {
				return err
			}
			if !open {
				return ErrRegistrationNotAllowed
			}
		}
		ledger.ConsumeSeatIfNeeded(&state, entitled)

		accountID, err = s.provider.CreateAccount(ctx, name)
		if err != nil {
			accountID = ""
			return providerErr("create_account", err)
		}
		if err := s.provider.SetPassword(ctx, accountID, password); err != nil {
			return providerErr("set_password", err)
		}
		if err := s.provider.ApplyDefaultPolicy(ctx, accountID); err != nil {
			return providerErr("apply_default_policy", err)
		}

		current.AccountID = accountID
		current.AccountName = name
		current.RegistrationEnabled = false
		if err := repos.Identities.Update(ctx, current); err != nil {
			return err
		}
		if err := txQuota.Save(ctx, state); err != nil {
			return err
		}
		created, after = current, state
		return nil
	})
	if err != nil {
		if accountID != "" {
			s.alert(ctx, notification.KindOrphanAccount, "provider account created but the local grant was rolled back", map[string]string{
				"external_id":  strconv.FormatInt(caller.ExternalID, 10),
				"account_id":   accountID,
				"account_name": name,
				"error":        err.Error(),
			})
		}
		return identity.Identity{}, err
	}

	s.observer.ObserveQuota(after.RemainingSeats, after.TotalRegistered)
	s.logger.Info("account created", "identity_id", created.ID, "account_id", created.AccountID, "remaining_seats", after.RemainingSeats)
	return created, nil
}

// RedeemToken consumes code for caller. The token row is locked first, then the
// identity row; the rule check and the identity update run under both locks.
func (s *Service) RedeemToken(ctx context.Context, caller Caller, code string) (redeemed token.Token, err error) {
	defer s.observe("redeem_token", time.Now(), &err)

	id, err := s.identities().ResolveOrCreate(ctx, caller.ExternalID, caller.Name)
	if err != nil {
		return token.Token{}, err
	}
	if _, err := token.ValidateCode(code); err != nil {
		return token.Token{}, err
	}

	var unbannedAccount string
	err = s.store.InTx(ctx, func(ctx context.Context, repos store.Repositories) error {
		registry := token.NewRegistry(repos.Tokens, s.newCode, s.now)
		t, err := registry.Redeem(ctx, code, id.ID, func(t token.Token) error {
			current, err := repos.Identities.LockByID(ctx, id.ID)
			if err != nil {
				return err
			}
			if err := policy.CanRedeem(current, t.Kind); err != nil {
				return err
			}
			switch t.Kind {
			case token.KindRegister:
				current.RegistrationEnabled = true
			case token.KindWhitelist:
				if current.Banned() {
					if err := s.provider.ApplyDefaultPolicy(ctx, current.AccountID); err != nil {
						return providerErr("unban", err)
					}
					unbannedAccount = current.AccountID
					current.BannedAt = time.Time{}
					current.BanReason = ""
				}
				current.Whitelisted = true
			}
			return repos.Identities.Update(ctx, current)
		})
		redeemed = t
		return err
	})
	if err != nil {
		if unbannedAccount != "" {
			s.alert(ctx, notification.KindBanDivergence, "account unbanned at the provider but the whitelist redemption was rolled back", map[string]string{
				"external_id": strconv.FormatInt(caller.ExternalID, 10),
				"account_id":  unbannedAccount,
				"error":       err.Error(),
			})
		}
		return token.Token{}, err
	}
	s.logger.Info("token redeemed", "identity_id", id.ID, "kind", redeemed.Kind.String(), "token_id", redeemed.ID)
	return redeemed, nil
}

// IssueTokens creates count tokens of kind; count is clamped to [1, token.MaxBatch].
func (s *Service) IssueTokens(ctx context.Context, caller Caller, kind token.Kind, count int) (issued []token.Token, err error) {
	defer s.observe("issue_tokens", time.Now(), &err)

	id, err := s.identities().ResolveOrCreate(ctx, caller.ExternalID, caller.Name)
	if err != nil {
		return nil, err
	}
	if kind.Prefix() == "" {
		return nil, token.ErrUnknownKind
	}
	if err := policy.CanIssueTokens(id, kind); err != nil {
		return nil, err
	}
	issued, err = token.NewRegistry(s.store.Repositories().Tokens, s.newCode, s.now).Issue(ctx, id.ID, kind, count)
	if err != nil {
		return nil, err
	}
	s.logger.Info("tokens issued", "issuer_id", id.ID, "kind", kind.String(), "count", len(issued))
	return issued, nil
}

// Ban disables target's account. When operator is set it must be an
// administrator. The provider call and the local write are separate steps.
func (s *Service) Ban(ctx context.Context, target int64, reason string, operator *int64) (banned identity.Identity, err error) {
	defer s.observe("ban", time.Now(), &err)
	return s.ban(ctx, target, reason, operator)
}

func (s *Service) ban(ctx context.Context, target int64, reason string, operator *int64) (identity.Identity, error) {
	if err := s.requireModerator(ctx, operator); err != nil {
		return identity.Identity{}, err
	}
	id, err := s.identities().Require(ctx, target)
	if err != nil {
		return identity.Identity{}, err
	}
	if err := policy.CanBan(id); err != nil {
		return identity.Identity{}, err
	}
	if err := s.provider.ApplyBannedPolicy(ctx, id.AccountID); err != nil {
		return identity.Identity{}, providerErr("ban", err)
	}

	bannedAt := s.now().UTC()
	if err := s.store.Repositories().Identities.SetBan(ctx, id.ID, bannedAt, reason); err != nil {
		s.alert(ctx, notification.KindBanDivergence, "account banned at the provider but the local ban was not saved", map[string]string{
			"external_id": strconv.FormatInt(target, 10),
			"account_id":  id.AccountID,
			"error":       err.Error(),
		})
		return identity.Identity{}, err
	}
	id.BannedAt = bannedAt
	id.BanReason = reason
	s.logger.Info("account banned", "identity_id", id.ID, "account_id", id.AccountID, "reason", reason)
	return id, nil
}

// Unban restores target's account.
func (s *Service) Unban(ctx context.Context, target int64, operator *int64) (unbanned identity.Identity, err error) {
	defer s.observe("unban", time.Now(), &err)

	if err := s.requireModerator(ctx, operator); err != nil {
		return identity.Identity{}, err
	}
	id, err := s.identities().Require(ctx, target)
	if err != nil {
		return identity.Identity{}, err
	}
	if err := policy.CanUnban(id); err != nil {
		return identity.Identity{}, err
	}
	if err := s.provider.ApplyDefaultPolicy(ctx, id.AccountID); err != nil {
		return identity.Identity{}, providerErr("unban", err)
	}
	if err := s.store.Repositories().Identities.SetBan(ctx, id.ID, time.Time{}, ""); err != nil {
		s.alert(ctx, notification.KindBanDivergence, "account unbanned at the provider but the local ban was not cleared", map[string]string{
			"external_id": strconv.FormatInt(target, 10),
			"account_id":  id.AccountID,
			"error":       err.Error(),
		})
		return identity.Identity{}, err
	}
	id.BannedAt = time.Time{}
	id.BanReason = ""
	s.logger.Info("account unbanned", "identity_id", id.ID, "account_id", id.AccountID)
	return id, nil
}

func (s *Service) requireModerator(ctx context.Context, operator *int64) error {
	if operator == nil {
		return nil
	}
	op, err := s.identities().ResolveOrCreate(ctx, *operator, "")
	if err != nil {
		return err
	}
	return policy.CanModerate(op)
}

// SetQuotaConfig updates the seats and/or the open-registration deadline. A
// zero deadline closes the window.
func (s *Service) SetQuotaConfig(ctx context.Context, caller Caller, w ledger.Window) (state ledger.QuotaState, err error) {
	defer s.observe("set_quota", time.Now(), &err)

	id, err := s.identities().ResolveOrCreate(ctx, caller.ExternalID, caller.Name)
	if err != nil {
		return ledger.QuotaState{}, err
	}
	if err := policy.CanEditQuota(id, s.admins); err != nil {
		return ledger.QuotaState{}, err
	}
	if w.OpenUntil != nil && !w.OpenUntil.IsZero() && !w.OpenUntil.After(s.now()) {
		return ledger.QuotaState{}, ErrInvalidDeadline
	}

	err = s.store.InTx(ctx, func(ctx context.Context, repos store.Repositories) error {
		var err error
		state, err = ledger.New(repos.Quota).SetWindow(ctx, w)
		return err
	})
	if err != nil {
		return ledger.QuotaState{}, err
	}
	s.observer.ObserveQuota(state.RemainingSeats, state.TotalRegistered)
	s.logger.Info("quota updated", "by", id.ID, "remaining_seats", state.RemainingSeats, "open_until", state.OpenUntil)
	return state, nil
}

// Quota returns the current quota after applying lazy window expiry.
func (s *Service) Quota(ctx context.Context, caller Caller) (state ledger.QuotaState, err error) {
	defer s.observe("quota", time.Now(), &err)

	if _, err := s.identities().ResolveOrCreate(ctx, caller.ExternalID, caller.Name); err != nil {
		return ledger.QuotaState{}, err
	}
	quota := ledger.New(s.store.Repositories().Quota)
	state, err = quota.GetOrInit(ctx)
	if err != nil {
		return ledger.QuotaState{}, err
	}
	if _, err := quota.HasOpenCapacity(ctx, &state, s.now()); err != nil {
		return ledger.QuotaState{}, err
	}
	s.observer.ObserveQuota(state.RemainingSeats, state.TotalRegistered)
	return state, nil
}

// Info is an identity with its provider account, when one is linked.
type Info struct {
	Identity identity.Identity
	Account  *emby.User
}

// IdentityInfo returns target as seen by viewer.
func (s *Service) IdentityInfo(ctx context.Context, viewer Caller, target int64) (info Info, err error) {
	defer s.observe("identity_info", time.Now(), &err)

	svc := s.identities()
	self, err := svc.ResolveOrCreate(ctx, viewer.ExternalID, viewer.Name)
	if err != nil {
		return Info{}, err
	}
	subject := self
	if target != viewer.ExternalID {
		if subject, err = svc.Require(ctx, target); err != nil {
			return Info{}, err
		}
	}
	if err := policy.CanViewIdentity(self, subject); err != nil {
		return Info{}, err
	}

	info.Identity = subject
	if subject.HasAccount() {
		account, err := s.provider.AccountInfo(ctx, subject.AccountID)
		if err != nil {
			return Info{}, providerErr("account_info", err)
		}
		info.Account = &account
	}
	return info, nil
}

// CatalogCounts returns the provider's catalog summary.
func (s *Service) CatalogCounts(ctx context.Context) (counts emby.Counts, err error) {
	defer s.observe("catalog_counts", time.Now(), &err)

	counts, err = s.provider.CountCatalog(ctx)
	if err != nil {
		return emby.Counts{}, providerErr("count_catalog", err)
	}
	return counts, nil
}

// ResetPassword replaces the caller's password with a fresh random one and returns it.
func (s *Service) ResetPassword(ctx context.Context, caller Caller) (password string, err error) {
	defer s.observe("reset_password", time.Now(), &err)

	id, err := s.identities().RequireLinkedAccount(ctx, caller.ExternalID)
	if err != nil {
		return "", err
	}
	password, err = NewPassword()
	if err != nil {
		return "", err
	}
	if err := s.provider.SetPassword(ctx, id.AccountID, password); err != nil {
		return "", providerErr("set_password", err)
	}
	s.logger.Info("password reset", "identity_id", id.ID, "account_id", id.AccountID)
	return password, nil
}

// MemberLeft bans the account of a member who left the group. Unknown members,
// members without an account, banned members and whitelisted members are
// skipped. When operator is set it must be an administrator, as for Ban. It
// reports whether a ban was applied.
func (s *Service) MemberLeft(ctx context.Context, externalID int64, operator *int64) (banned bool, err error) {
	defer s.observe("member_left", time.Now(), &err)

	if err := s.requireModerator(ctx, operator); err != nil {
		return false, err
	}
	id, err := s.identities().Require(ctx, externalID)
	if errors.Is(err, identity.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if !id.HasAccount() || id.Banned() || id.Whitelisted {
		return false, nil
	}
	if _, err := s.ban(ctx, externalID, MemberLeftReason, nil); err != nil {
		return false, err
	}
	s.alert(ctx, notification.KindAutoBan, "account banned after its owner left the group", map[string]string{
		"external_id": strconv.FormatInt(externalID, 10),
		"account_id":  id.AccountID,
	})
	return true, nil
}

// LineView lists the available lines and the caller's current one.
type LineView struct {
	Lines   []emby.Line
	Current emby.Line
}

// Lines returns the playback lines for caller's account.
func (s *Service) Lines(ctx context.Context, caller Caller) (view LineView, err error) {
	defer s.observe("lines", time.Now(), &err)

	if s.router == nil {
		return LineView{}, ErrRouterUnavailable
	}
	id, err := s.identities().RequireLinkedAccount(ctx, caller.ExternalID)
	if err != nil {
		return LineView{}, err
	}
	lines, err := s.router.Lines(ctx)
	if err != nil {
		return LineView{}, providerErr("lines", err)
	}
	current, err := s.router.UserLine(ctx, id.AccountID)
	if err != nil {
		return LineView{}, providerErr("user_line", err)
	}
	return LineView{Lines: lines, Current: current}, nil
}

// SelectLine switches caller's account to the line with index.
func (s *Service) SelectLine(ctx context.Context, caller Caller, index string) (line emby.Line, err error) {
	defer s.observe("select_line", time.Now(), &err)

	if s.router == nil {
		return emby.Line{}, ErrRouterUnavailable
	}
	id, err := s.identities().RequireLinkedAccount(ctx, caller.ExternalID)
	if err != nil {
		return emby.Line{}, err
	}
	lines, err := s.router.Lines(ctx)
	if err != nil {
		return emby.Line{}, providerErr("lines", err)
	}
	found := false
	for _, l := range lines {
		if l.Index == index {
			line, found = l, true
			break
		}
	}
	if !found {
		return emby.Line{}, ErrInvalidLine
	}
	if err := s.router.SelectLine(ctx, id.AccountID, index); err != nil {
		return emby.Line{}, providerErr("select_line", err)
	}
	return line, nil
}

func (s *Service) alert(ctx context.Context, kind, body string, fields map[string]string) {
	// Deliver even if the request context is already cancelled.
	if err := s.notifier.Send(context.WithoutCancel(ctx), notification.Message{Kind: kind, Destination: "admins", Body: body, Fields: fields}); err != nil {
		s.logger.Error("notification failed", "kind", kind, "error", err)
	}
}
