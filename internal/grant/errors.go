package grant

import (
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"

	"github.com/embygate/embygate/internal/identity"
	"github.com/embygate/embygate/internal/ledger"
	"github.com/embygate/embygate/internal/policy"
	"github.com/embygate/embygate/internal/token"
)

var (
	ErrRegistrationNotAllowed = errors.New("registration is not allowed: no personal entitlement and no open seats")
	ErrProvider               = errors.New("account provider error")
	ErrProviderUnavailable    = errors.New("account provider is not configured")
	ErrRouterUnavailable      = errors.New("line router is not configured")
	ErrInvalidLine            = errors.New("unknown line")
	ErrInvalidDeadline        = errors.New("open-registration deadline must be in the future")
)

// ProviderError wraps a failed Account Provider call.
type ProviderError struct {
	Op  string
	Err error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("account provider %s: %v", e.Op, e.Err)
}

func (e *ProviderError) Unwrap() []error {
	return []error{ErrProvider, e.Err}
}

func providerErr(op string, err error) error {
	return &ProviderError{Op: op, Err: err}
}

// Error kinds reported to callers and used as metric outcomes.
const (
	KindOK                     = "ok"
	KindNotFound               = "not_found"
	KindAlreadyLinked          = "already_linked"
	KindNoLinkedAccount        = "no_linked_account"
	KindAccountBanned          = "account_banned"
	KindInvalidOrUsedCode      = "invalid_or_used_code"
	KindRegistrationNotAllowed = "registration_not_allowed"
	KindPolicyViolation        = "policy_violation"
	KindProviderError          = "provider_error"
	KindInvalidArgument        = "invalid_argument"
	KindUnavailable            = "unavailable"
	KindInternal               = "internal"
)

// KindOf classifies err. More specific kinds win over PolicyViolation.
func KindOf(err error) string {
	switch {
	case err == nil:
		return KindOK
	case errors.Is(err, identity.ErrNotFound), errors.Is(err, token.ErrNotFound):
		return KindNotFound
	case errors.Is(err, identity.ErrAlreadyLinked):
		return KindAlreadyLinked
	case errors.Is(err, identity.ErrNoLinkedAccount):
		return KindNoLinkedAccount
	case errors.Is(err, identity.ErrAccountBanned):
		return KindAccountBanned
	case errors.Is(err, token.ErrInvalidOrUsedCode):
		return KindInvalidOrUsedCode
	case errors.Is(err, ErrRegistrationNotAllowed):
		return KindRegistrationNotAllowed
	case errors.Is(err, policy.ErrViolation):
		return KindPolicyViolation
	case errors.Is(err, ErrProviderUnavailable), errors.Is(err, ErrRouterUnavailable):
		return KindUnavailable
	case errors.Is(err, ErrProvider):
		return KindProviderError
	case errors.Is(err, ErrInvalidLine), errors.Is(err, ErrInvalidDeadline),
		errors.Is(err, ledger.ErrInvalidSeats), errors.Is(err, token.ErrUnknownKind):
		return KindInvalidArgument
	default:
		return KindInternal
	}
}

const (
	passwordLength   = 6
	passwordAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
)

// NewPassword returns a random 6-character alphanumeric password.
func NewPassword() (string, error) {
	out := make([]byte, passwordLength)
	limit := big.NewInt(int64(len(passwordAlphabet)))
	for i := range out {
		n, err := rand.Int(rand.Reader, limit)
		if err != nil {
			return "", fmt.Errorf("generate password: %w", err)
		}
		out[i] = passwordAlphabet[n.Int64()]
	}
	return string(out), nil
}
