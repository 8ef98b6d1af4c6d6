package routes

import (
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/embygate/embygate/internal/grant"
	"github.com/embygate/embygate/internal/middleware"
)

// RegisterLineRoutes wires playback line listing and selection.
func RegisterLineRoutes(r fiber.Router, svc *grant.Service) {
	r.Get("/lines", func(c *fiber.Ctx) error {
		caller, err := middleware.MustCaller(c)
		if err != nil {
			return err
		}
		view, err := svc.Lines(c.UserContext(), caller)
		if err != nil {
			return err
		}
		return c.JSON(fiber.Map{"lines": view.Lines, "current": view.Current})
	})

	r.Put("/lines", func(c *fiber.Ctx) error {
		caller, err := middleware.MustCaller(c)
		if err != nil {
			return err
		}
		var req struct {
			Index string `json:"index"`
		}
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(http.StatusBadRequest, err.Error())
		}
		if strings.TrimSpace(req.Index) == "" {
			return fiber.NewError(http.StatusBadRequest, "index is required")
		}

		line, err := svc.SelectLine(c.UserContext(), caller, req.Index)
		if err != nil {
			return err
		}
		return c.JSON(fiber.Map{"current": line})
	})
}
