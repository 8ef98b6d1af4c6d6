package token

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mr-tron/base58"
)

var (
	ErrNotFound          = errors.New("token not found")
	ErrInvalidOrUsedCode = errors.New("token code is invalid or already used")
	ErrUnknownKind       = errors.New("unknown token kind")
)

// MaxBatch bounds a single issuance request.
const MaxBatch = 20

// Kind discriminates what a token grants.
type Kind uint8

const (
	// KindRegister grants the registration-enabled flag.
	KindRegister Kind = iota + 1
	// KindWhitelist grants whitelist status to an identity with an account.
	KindWhitelist
)

// Prefix is the code prefix for the kind.
func (k Kind) Prefix() string {
	switch k {
	case KindRegister:
		return "epr"
	case KindWhitelist:
		return "epw"
	default:
		return ""
	}
}

func (k Kind) String() string {
	switch k {
	case KindRegister:
		return "register"
	case KindWhitelist:
		return "whitelist"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// ParseKind accepts the persisted name of a kind.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "register":
		return KindRegister, nil
	case "whitelist":
		return KindWhitelist, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownKind, s)
	}
}

// Token is a single-use credential.
type Token struct {
	ID         int64
	Code       string
	Kind       Kind
	IssuerID   int64
	Used       bool
	UsedAt     time.Time
	RedeemerID int64
	CreatedAt  time.Time
}

var codePattern = regexp.MustCompile(`^(epr|epw)-[A-Za-z0-9]+$`)

// NewCode returns a fresh code for kind: the prefix and a base58 random suffix.
func NewCode(kind Kind) string {
	id := uuid.New()
	return kind.Prefix() + "-" + base58.Encode(id[:])
}

// ValidateCode checks code syntax and returns the kind its prefix implies.
func ValidateCode(code string) (Kind, error) {
	m := codePattern.FindStringSubmatch(code)
	if m == nil {
		return 0, ErrInvalidOrUsedCode
	}
	if m[1] == KindRegister.Prefix() {
		return KindRegister, nil
	}
	return KindWhitelist, nil
}
