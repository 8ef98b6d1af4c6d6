package middleware

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"

	"github.com/embygate/embygate/internal/grant"
)

const callerLocal = "caller"

// CallerClaims is the assertion the chat gateway signs for every command. The
// subject is the external caller id.
type CallerClaims struct {
	Name string `json:"name,omitempty"`
	jwt.RegisteredClaims
}

// CallerAuth verifies the gateway's HS256 assertion and stores the caller.
func CallerAuth(secret []byte) fiber.Handler {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(30*time.Second),
	)
	keyFunc := func(*jwt.Token) (any, error) { return secret, nil }

	return func(c *fiber.Ctx) error {
		authz := c.Get(fiber.HeaderAuthorization)
		if len(authz) < len("bearer ") || !strings.EqualFold(authz[:len("bearer ")], "bearer ") {
			return fiber.NewError(http.StatusUnauthorized, "missing bearer token")
		}
		raw := strings.TrimSpace(authz[len("bearer "):])

		var claims CallerClaims
		if _, err := parser.ParseWithClaims(raw, &claims, keyFunc); err != nil {
			return fiber.NewError(http.StatusUnauthorized, "invalid caller assertion")
		}
		externalID, err := strconv.ParseInt(claims.Subject, 10, 64)
		if err != nil || externalID == 0 {
			return fiber.NewError(http.StatusUnauthorized, "invalid caller subject")
		}

		c.Locals(callerLocal, grant.Caller{ExternalID: externalID, Name: claims.Name})
		return c.Next()
	}
}

// ErrNoCaller is returned by MustCaller outside CallerAuth.
var ErrNoCaller = errors.New("no authenticated caller")

// CallerFrom returns the caller stored by CallerAuth.
func CallerFrom(c *fiber.Ctx) (grant.Caller, bool) {
	caller, ok := c.Locals(callerLocal).(grant.Caller)
	return caller, ok
}

// MustCaller is CallerFrom for handlers mounted behind CallerAuth.
func MustCaller(c *fiber.Ctx) (grant.Caller, error) {
	caller, ok := CallerFrom(c)
	if !ok {
		return grant.Caller{}, ErrNoCaller
	}
	return caller, nil
}

// SignCaller issues a caller assertion. The chat gateway and the tests use it.
func SignCaller(secret []byte, externalID int64, name string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := CallerClaims{
		Name: name,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(externalID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}
