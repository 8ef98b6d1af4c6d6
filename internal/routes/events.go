package routes

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/embygate/embygate/internal/grant"
	"github.com/embygate/embygate/internal/middleware"
)

// RegisterEventRoutes wires chat group membership events. The caller must be
// an administrator.
func RegisterEventRoutes(r fiber.Router, svc *grant.Service) {
	r.Post("/events/member-left", func(c *fiber.Ctx) error {
		caller, err := middleware.MustCaller(c)
		if err != nil {
			return err
		}
		var req struct {
			ExternalID int64 `json:"external_id"`
		}
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(http.StatusBadRequest, err.Error())
		}
		if req.ExternalID == 0 {
			return fiber.NewError(http.StatusBadRequest, "external_id is required")
		}

		operator := caller.ExternalID
		banned, err := svc.MemberLeft(c.UserContext(), req.ExternalID, &operator)
		if err != nil {
			return err
		}
		return c.JSON(fiber.Map{"external_id": req.ExternalID, "banned": banned})
	})
}
