package routes

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/embygate/embygate/internal/grant"
	"github.com/embygate/embygate/internal/middleware"
)

// RegisterModerationRoutes wires administrator bans.
func RegisterModerationRoutes(r fiber.Router, svc *grant.Service) {
	r.Post("/identities/:id/ban", func(c *fiber.Ctx) error {
		caller, err := middleware.MustCaller(c)
		if err != nil {
			return err
		}
		target, err := externalIDParam(c)
		if err != nil {
			return err
		}
		var req struct {
			Reason string `json:"reason"`
		}
		if len(c.Body()) > 0 {
			if err := c.BodyParser(&req); err != nil {
				return fiber.NewError(http.StatusBadRequest, err.Error())
			}
		}

		operator := caller.ExternalID
		banned, err := svc.Ban(c.UserContext(), target, req.Reason, &operator)
		if err != nil {
			return err
		}
		return c.JSON(fiber.Map{"identity": newIdentityView(banned)})
	})

	r.Delete("/identities/:id/ban", func(c *fiber.Ctx) error {
		caller, err := middleware.MustCaller(c)
		if err != nil {
			return err
		}
		target, err := externalIDParam(c)
		if err != nil {
			return err
		}

		operator := caller.ExternalID
		unbanned, err := svc.Unban(c.UserContext(), target, &operator)
		if err != nil {
			return err
		}
		return c.JSON(fiber.Map{"identity": newIdentityView(unbanned)})
	})
}
