// Package policy holds the pure access rules consulted before any state change.
package policy

import (
	"errors"
	"fmt"

	"github.com/embygate/embygate/internal/identity"
	"github.com/embygate/embygate/internal/token"
)

// ErrViolation matches every *Violation.
var ErrViolation = errors.New("policy violation")

// Rule names a single access rule.
type Rule string

const (
	RuleIssueTokens   Rule = "issue_tokens"
	RuleCreateAccount Rule = "create_account"
	RuleRedeemToken   Rule = "redeem_token"
	RuleBan           Rule = "ban"
	RuleUnban         Rule = "unban"
	RuleEditQuota     Rule = "edit_quota"
	RuleModerate      Rule = "moderate"
	RuleViewIdentity  Rule = "view_identity"
)

// Violation reports which rule failed and why.
type Violation struct {
	Rule   Rule
	Reason string
	kind   error
}

func (v *Violation) Error() string {
	return fmt.Sprintf("%s: %s", v.Rule, v.Reason)
}

// Unwrap exposes ErrViolation and, when set, a more specific error kind.
func (v *Violation) Unwrap() []error {
	if v.kind != nil {
		return []error{ErrViolation, v.kind}
	}
	return []error{ErrViolation}
}

func violation(rule Rule, reason string) error {
	return &Violation{Rule: rule, Reason: reason}
}

// CanIssueTokens requires an administrator.
func CanIssueTokens(id identity.Identity, kind token.Kind) error {
	if !id.Administrator {
		return violation(RuleIssueTokens, fmt.Sprintf("only administrators may issue %s tokens", kind))
	}
	return nil
}

// CanCreateAccount requires that no account is linked yet.
func CanCreateAccount(id identity.Identity) error {
	if id.HasAccount() {
		return &Violation{Rule: RuleCreateAccount, Reason: "an account is already linked", kind: identity.ErrAlreadyLinked}
	}
	return nil
}

// CanRedeem applies the kind-specific redemption rule.
func CanRedeem(id identity.Identity, kind token.Kind) error {
	switch kind {
	case token.KindRegister:
		if id.HasAccount() {
			return &Violation{Rule: RuleRedeemToken, Reason: "an account is already linked", kind: identity.ErrAlreadyLinked}
		}
		if id.RegistrationEnabled {
			return violation(RuleRedeemToken, "registration is already enabled")
		}
	case token.KindWhitelist:
		if !id.HasAccount() {
			return &Violation{Rule: RuleRedeemToken, Reason: "no linked account", kind: identity.ErrNoLinkedAccount}
		}
		if id.Whitelisted {
			return violation(RuleRedeemToken, "already whitelisted")
		}
	default:
		return violation(RuleRedeemToken, fmt.Sprintf("unsupported token %s", kind))
	}
	return nil
}

// CanBan requires a linked account that is not banned.
func CanBan(id identity.Identity) error {
	if !id.HasAccount() {
		return &Violation{Rule: RuleBan, Reason: "no linked account", kind: identity.ErrNoLinkedAccount}
	}
	if id.Banned() {
		return &Violation{Rule: RuleBan, Reason: "account is already banned", kind: identity.ErrAccountBanned}
	}
	return nil
}

// CanUnban requires a linked account that is banned.
func CanUnban(id identity.Identity) error {
	if !id.HasAccount() {
		return &Violation{Rule: RuleUnban, Reason: "no linked account", kind: identity.ErrNoLinkedAccount}
	}
	if !id.Banned() {
		return violation(RuleUnban, "account is not banned")
	}
	return nil
}

// CanEditQuota requires the caller to be on the current admin allow-list. The
// stored Administrator flag is not consulted, so ids added to the list after
// the identity was created qualify and ids removed from it do not.
func CanEditQuota(id identity.Identity, admins identity.AdminList) error {
	if !admins.Contains(id.ExternalID) {
		return violation(RuleEditQuota, "only bot administrators may change the quota")
	}
	return nil
}

// CanModerate is the operator rule for ban and unban.
func CanModerate(id identity.Identity) error {
	if !id.Administrator {
		return violation(RuleModerate, "only administrators may ban or unban")
	}
	return nil
}

// CanViewIdentity lets callers see themselves and administrators see anyone.
func CanViewIdentity(viewer, target identity.Identity) error {
	if viewer.ID == target.ID || viewer.Administrator {
		return nil
	}
	return violation(RuleViewIdentity, "only administrators may view other identities")
}
