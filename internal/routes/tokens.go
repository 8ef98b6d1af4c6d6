package routes

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/embygate/embygate/internal/grant"
	"github.com/embygate/embygate/internal/middleware"
	"github.com/embygate/embygate/internal/token"
)

// RegisterTokenRoutes wires token issuance and redemption.
func RegisterTokenRoutes(r fiber.Router, svc *grant.Service) {
	r.Post("/tokens", func(c *fiber.Ctx) error {
		caller, err := middleware.MustCaller(c)
		if err != nil {
			return err
		}
		var req struct {
			Kind  string `json:"kind"`
			Count int    `json:"count"`
		}
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(http.StatusBadRequest, err.Error())
		}
		kind, err := token.ParseKind(req.Kind)
		if err != nil {
			return err
		}

		issued, err := svc.IssueTokens(c.UserContext(), caller, kind, req.Count)
		if err != nil {
			return err
		}
		views := make([]tokenView, 0, len(issued))
		for _, t := range issued {
			views = append(views, newTokenView(t))
		}
		return c.Status(http.StatusCreated).JSON(fiber.Map{"tokens": views})
	})

	r.Post("/tokens/redeem", func(c *fiber.Ctx) error {
		caller, err := middleware.MustCaller(c)
		if err != nil {
			return err
		}
		var req struct {
			Code string `json:"code"`
		}
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(http.StatusBadRequest, err.Error())
		}

		redeemed, err := svc.RedeemToken(c.UserContext(), caller, req.Code)
		if err != nil {
			return err
		}
		return c.JSON(fiber.Map{"token": newTokenView(redeemed)})
	})
}
