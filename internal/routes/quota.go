package routes

import (
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/embygate/embygate/internal/grant"
	"github.com/embygate/embygate/internal/ledger"
	"github.com/embygate/embygate/internal/middleware"
)

// RegisterQuotaRoutes wires the quota view and the administrator update.
func RegisterQuotaRoutes(r fiber.Router, svc *grant.Service) {
	r.Get("/quota", func(c *fiber.Ctx) error {
		caller, err := middleware.MustCaller(c)
		if err != nil {
			return err
		}
		state, err := svc.Quota(c.UserContext(), caller)
		if err != nil {
			return err
		}
		return c.JSON(newQuotaView(state, time.Now()))
	})

	r.Put("/quota", func(c *fiber.Ctx) error {
		caller, err := middleware.MustCaller(c)
		if err != nil {
			return err
		}
		// An empty open_until closes the window; an omitted one leaves it unchanged.
		var req struct {
			RemainingSeats *int    `json:"remaining_seats"`
			OpenUntil      *string `json:"open_until"`
		}
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(http.StatusBadRequest, err.Error())
		}

		window := ledger.Window{Seats: req.RemainingSeats}
		if req.OpenUntil != nil {
			var deadline time.Time
			if *req.OpenUntil != "" {
				deadline, err = time.Parse(time.RFC3339, *req.OpenUntil)
				if err != nil {
					return fiber.NewError(http.StatusBadRequest, "open_until must be an RFC 3339 timestamp")
				}
			}
			window.OpenUntil = &deadline
		}
		if window.Seats == nil && window.OpenUntil == nil {
			return fiber.NewError(http.StatusBadRequest, "nothing to update")
		}

		state, err := svc.SetQuotaConfig(c.UserContext(), caller, window)
		if err != nil {
			return err
		}
		return c.JSON(newQuotaView(state, time.Now()))
	})
}
