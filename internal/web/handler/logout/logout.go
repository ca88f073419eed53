// Package logout clears the caller's session.
package logout

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/dinesh-gnapitech/insite/internal/auth"
	"github.com/dinesh-gnapitech/insite/internal/config"
	"github.com/dinesh-gnapitech/insite/internal/web/handler"
	"github.com/dinesh-gnapitech/insite/internal/web/handler/login"
	"github.com/dinesh-gnapitech/insite/internal/web/session"
)

// Path is the logout endpoint.
const Path = "/logout"

// Service is the logout handler.
type Service struct {
	cfg *config.Config
	sub *auth.Subsystem
}

// Handler is the logout handler.
var Handler = Service{}

// Init initializes the logout handler.
func (s *Service) Init(app *fiber.App, cfg *config.Config, sub *auth.Subsystem) error {
	if app == nil || cfg == nil || sub == nil {
		return errors.New(handler.ErrNilACSFatalLogMsg)
	}

	s.cfg = cfg
	s.sub = sub

	app.Get(Path, s.Get)

	return nil
}

// Get drops the session. Safe to repeat; an already-cleared session
// just redirects to the login page.
func (s *Service) Get(c *fiber.Ctx) error {
	redirect := handler.User(c).LogOut(c.Context())

	expire := func(name string) {
		c.Cookie(&fiber.Cookie{
			Name:     name,
			Value:    "",
			Expires:  time.Now().Add(-time.Hour),
			SameSite: fiber.CookieSameSiteLaxMode,
		})
	}

	expire(session.CookieName)
	expire(session.CSRFCookieName)
	expire(session.LoginCookieName)

	if redirect == "" {
		redirect = login.Path
	}

	return c.Redirect(redirect, fiber.StatusFound)
}
