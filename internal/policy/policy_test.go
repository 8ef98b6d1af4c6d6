package policy

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/embygate/embygate/internal/identity"
	"github.com/embygate/embygate/internal/token"
)

var (
	fresh   = identity.Identity{ID: 1, ExternalID: 100}
	linked  = identity.Identity{ID: 2, ExternalID: 200, AccountID: "acc"}
	banned  = identity.Identity{ID: 3, ExternalID: 300, AccountID: "acc3", BannedAt: time.Unix(1700000000, 0)}
	admin   = identity.Identity{ID: 4, ExternalID: 400, Administrator: true}
	enabled = identity.Identity{ID: 5, ExternalID: 500, RegistrationEnabled: true}
	whited  = identity.Identity{ID: 6, ExternalID: 600, AccountID: "acc6", Whitelisted: true}
)

func requireRule(t *testing.T, err error, rule Rule) {
	t.Helper()
	require.Error(t, err)
	require.ErrorIs(t, err, ErrViolation)
	var v *Violation
	require.True(t, errors.As(err, &v))
	assert.Equal(t, rule, v.Rule)
	assert.NotEmpty(t, v.Reason)
}

func TestCanIssueTokens(t *testing.T) {
	require.NoError(t, CanIssueTokens(admin, token.KindRegister))
	requireRule(t, CanIssueTokens(fresh, token.KindWhitelist), RuleIssueTokens)
}

func TestCanCreateAccount(t *testing.T) {
	require.NoError(t, CanCreateAccount(fresh))
	err := CanCreateAccount(linked)
	requireRule(t, err, RuleCreateAccount)
	assert.ErrorIs(t, err, identity.ErrAlreadyLinked)
}

func TestCanRedeem(t *testing.T) {
	require.NoError(t, CanRedeem(fresh, token.KindRegister))
	requireRule(t, CanRedeem(enabled, token.KindRegister), RuleRedeemToken)
	assert.ErrorIs(t, CanRedeem(linked, token.KindRegister), identity.ErrAlreadyLinked)

	require.NoError(t, CanRedeem(linked, token.KindWhitelist))
	require.NoError(t, CanRedeem(banned, token.KindWhitelist))
	requireRule(t, CanRedeem(whited, token.KindWhitelist), RuleRedeemToken)
	assert.ErrorIs(t, CanRedeem(fresh, token.KindWhitelist), identity.ErrNoLinkedAccount)
}

func TestCanBanAndUnban(t *testing.T) {
	require.NoError(t, CanBan(linked))
	requireRule(t, CanBan(banned), RuleBan)
	assert.ErrorIs(t, CanBan(fresh), identity.ErrNoLinkedAccount)

	require.NoError(t, CanUnban(banned))
	requireRule(t, CanUnban(linked), RuleUnban)
	requireRule(t, CanUnban(fresh), RuleUnban)
}

func TestCanEditQuota(t *testing.T) {
	admins := identity.NewAdminList(400)
	require.NoError(t, CanEditQuota(admin, admins))

	flagged := identity.Identity{ID: 9, ExternalID: 900, Administrator: true}
	requireRule(t, CanEditQuota(flagged, admins), RuleEditQuota)

	// Listed after the identity row was created.
	listedLater := identity.Identity{ID: 10, ExternalID: 400}
	require.NoError(t, CanEditQuota(listedLater, admins))
}

func TestCanModerateAndView(t *testing.T) {
	require.NoError(t, CanModerate(admin))
	requireRule(t, CanModerate(linked), RuleModerate)

	require.NoError(t, CanViewIdentity(linked, linked))
	require.NoError(t, CanViewIdentity(admin, linked))
	requireRule(t, CanViewIdentity(fresh, linked), RuleViewIdentity)
}
