package routes

import (
	"net/http"
	"regexp"

	"github.com/gofiber/fiber/v2"

	"github.com/embygate/embygate/internal/grant"
	"github.com/embygate/embygate/internal/i18n"
	"github.com/embygate/embygate/internal/middleware"
)

var accountNamePattern = regexp.MustCompile(`^[A-Za-z0-9_]{5,32}$`)

// RegisterAccountRoutes wires account creation and password reset.
func RegisterAccountRoutes(r fiber.Router, svc *grant.Service) {
	r.Post("/accounts", func(c *fiber.Ctx) error {
		caller, err := middleware.MustCaller(c)
		if err != nil {
			return err
		}
		var req struct {
			Name string `json:"name"`
		}
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(http.StatusBadRequest, err.Error())
		}
		if !accountNamePattern.MatchString(req.Name) {
			return fiber.NewError(http.StatusBadRequest, "name must be 5-32 letters, digits or underscores")
		}

		password, err := grant.NewPassword()
		if err != nil {
			return err
		}
		created, err := svc.CreateAccount(c.UserContext(), caller, req.Name, password)
		if err != nil {
			return err
		}

		middleware.NoReplay(c)
		printer := i18n.Printer(i18n.ResolveTag(c.Get(fiber.HeaderAcceptLanguage)))
		return c.Status(http.StatusCreated).JSON(fiber.Map{
			"identity": newIdentityView(created),
			"name":     created.AccountName,
			"password": password,
			"message":  printer.Sprintf("account.created", created.AccountName),
		})
	})

	r.Post("/accounts/password", func(c *fiber.Ctx) error {
		caller, err := middleware.MustCaller(c)
		if err != nil {
			return err
		}
		password, err := svc.ResetPassword(c.UserContext(), caller)
		if err != nil {
			return err
		}
		middleware.NoReplay(c)
		printer := i18n.Printer(i18n.ResolveTag(c.Get(fiber.HeaderAcceptLanguage)))
		return c.JSON(fiber.Map{
			"password": password,
			"message":  printer.Sprintf("password.reset"),
		})
	})
}
