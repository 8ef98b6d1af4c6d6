package routes

import (
	"net/http"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/embygate/embygate/internal/grant"
	"github.com/embygate/embygate/internal/middleware"
)

// RegisterIdentityRoutes wires identity lookups.
func RegisterIdentityRoutes(r fiber.Router, svc *grant.Service) {
	r.Get("/me", func(c *fiber.Ctx) error {
		caller, err := middleware.MustCaller(c)
		if err != nil {
			return err
		}
		info, err := svc.IdentityInfo(c.UserContext(), caller, caller.ExternalID)
		if err != nil {
			return err
		}
		return c.JSON(newInfoView(info))
	})

	r.Get("/identities/:id", func(c *fiber.Ctx) error {
		caller, err := middleware.MustCaller(c)
		if err != nil {
			return err
		}
		target, err := externalIDParam(c)
		if err != nil {
			return err
		}
		info, err := svc.IdentityInfo(c.UserContext(), caller, target)
		if err != nil {
			return err
		}
		return c.JSON(newInfoView(info))
	})
}

func externalIDParam(c *fiber.Ctx) (int64, error) {
	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil || id == 0 {
		return 0, fiber.NewError(http.StatusBadRequest, "invalid identity id")
	}
	return id, nil
}
