package routes

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/embygate/embygate/internal/grant"
	"github.com/embygate/embygate/internal/i18n"
)

const (
	kindUnauthorized = "unauthorized"
	kindRateLimited  = "rate_limited"
	kindConflict     = "conflict"
)

var kindStatus = map[string]int{
	grant.KindNotFound:               http.StatusNotFound,
	grant.KindAlreadyLinked:          http.StatusConflict,
	grant.KindNoLinkedAccount:        http.StatusConflict,
	grant.KindAccountBanned:          http.StatusForbidden,
	grant.KindInvalidOrUsedCode:      http.StatusBadRequest,
	grant.KindRegistrationNotAllowed: http.StatusForbidden,
	grant.KindPolicyViolation:        http.StatusForbidden,
	grant.KindProviderError:          http.StatusBadGateway,
	grant.KindInvalidArgument:        http.StatusBadRequest,
	grant.KindUnavailable:            http.StatusServiceUnavailable,
	grant.KindInternal:               http.StatusInternalServerError,
}

// classify maps err to a response status and error kind.
func classify(err error) (int, string) {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		switch {
		case fe.Code == http.StatusUnauthorized:
			return fe.Code, kindUnauthorized
		case fe.Code == http.StatusTooManyRequests:
			return fe.Code, kindRateLimited
		case fe.Code == http.StatusConflict:
			return fe.Code, kindConflict
		case fe.Code == http.StatusNotFound:
			return fe.Code, grant.KindNotFound
		case fe.Code == http.StatusServiceUnavailable:
			return fe.Code, grant.KindUnavailable
		case fe.Code >= http.StatusInternalServerError:
			return fe.Code, grant.KindInternal
		default:
			return fe.Code, grant.KindInvalidArgument
		}
	}

	kind := grant.KindOf(err)
	status, ok := kindStatus[kind]
	if !ok {
		status = http.StatusInternalServerError
	}
	return status, kind
}

// WriteError renders err as {"error": {"kind", "message"}} in the caller's language.
func WriteError(c *fiber.Ctx, err error, logger *slog.Logger) error {
	status, kind := classify(err)
	if status >= http.StatusInternalServerError {
		logger.Error("request failed",
			slog.String("kind", kind),
			slog.String("path", c.Path()),
			slog.Any("error", err),
		)
	}

	printer := i18n.Printer(i18n.ResolveTag(c.Get(fiber.HeaderAcceptLanguage)))
	return c.Status(status).JSON(fiber.Map{
		"error": fiber.Map{
			"kind":    kind,
			"message": printer.Sprintf(i18n.ErrorKey(kind)),
		},
	})
}

// RenderErrors writes handler errors as responses so the metrics and audit
// middleware see the final status.
func RenderErrors(logger *slog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if err := c.Next(); err != nil {
			return WriteError(c, err, logger)
		}
		return nil
	}
}

// ErrorHandler is the fiber error handler for errors raised outside RenderErrors.
func ErrorHandler(logger *slog.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		return WriteError(c, err, logger)
	}
}
