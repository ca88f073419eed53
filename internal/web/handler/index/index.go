// Package index renders the application picker.
package index

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"

	"github.com/dinesh-gnapitech/insite/internal/auth"
	"github.com/dinesh-gnapitech/insite/internal/config"
	"github.com/dinesh-gnapitech/insite/internal/web/handler"
	"github.com/dinesh-gnapitech/insite/internal/web/navigation"
)

// Path is the index page.
const Path = "/index"

// Service is the index handler.
type Service struct {
	cfg *config.Config
	sub *auth.Subsystem
}

// Handler is the index handler.
var Handler = Service{}

// Init initializes the index handler.
func (s *Service) Init(app *fiber.App, cfg *config.Config, sub *auth.Subsystem) error {
	if app == nil || cfg == nil || sub == nil {
		return errors.New(handler.ErrNilACSFatalLogMsg)
	}

	s.cfg = cfg
	s.sub = sub

	app.Get(Path, s.Get)
	app.Get("/", func(c *fiber.Ctx) error {
		return c.Redirect(Path, fiber.StatusFound)
	})

	return nil
}

// Get lists the caller's accessible applications. Anonymous callers
// are redirected to the login page.
func (s *Service) Get(c *fiber.Ctx) error {
	u := handler.User(c)

	if d := u.Authorize(c.Context(), auth.Check{RedirectOnFail: true}); !d.OK {
		return handler.Fail(c, d)
	}

	entries, err := navigation.ForUser(c.Context(), u)
	if err != nil {
		log.Error().Err(err).Msg("navigation build failed")
		return fiber.ErrInternalServerError
	}

	return c.Render("index", fiber.Map{
		"Title":        s.cfg.Title,
		"User":         u.Name(),
		"Applications": entries,
	}, handler.BaseLayout)
}
