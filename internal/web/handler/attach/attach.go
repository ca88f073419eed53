// Package attach lets a native companion app share its server session
// with an embedded browser by setting the session cookie explicitly.
package attach

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/dinesh-gnapitech/insite/internal/auth"
	"github.com/dinesh-gnapitech/insite/internal/config"
	"github.com/dinesh-gnapitech/insite/internal/web/handler"
	"github.com/dinesh-gnapitech/insite/internal/web/session"
)

// Path is the attach endpoint.
const Path = "/auth/attach"

// Service is the attach handler.
type Service struct {
	cfg   *config.Config
	sub   *auth.Subsystem
	store *session.Store
}

// Handler is the attach handler.
var Handler = Service{}

// Init initializes the attach handler. The store is consulted to
// verify the supplied id names an authenticated session.
func (s *Service) Init(app *fiber.App, cfg *config.Config, sub *auth.Subsystem, store *session.Store) error {
	if app == nil || cfg == nil || sub == nil || store == nil {
		return errors.New(handler.ErrNilACSFatalLogMsg)
	}

	s.cfg = cfg
	s.sub = sub
	s.store = store

	app.Post(Path, s.Post)

	return nil
}

// Post sets the session cookie to the supplied session id.
func (s *Service) Post(c *fiber.Ctx) error {
	id := c.FormValue("session_id")
	if id == "" {
		return fiber.ErrBadRequest
	}

	sess, err := s.store.Get(id)
	if err != nil {
		return fiber.ErrInternalServerError
	}

	if sess.Fresh() || !sess.Data.Authenticated() {
		return fiber.ErrForbidden
	}

	c.Cookie(&fiber.Cookie{
		Name:     session.CookieName,
		Value:    id,
		HTTPOnly: true,
		SameSite: fiber.CookieSameSiteLaxMode,
	})

	return c.SendStatus(fiber.StatusNoContent)
}
