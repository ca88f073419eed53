// Package sessionmw loads the caller's session before the handler runs
// and issues the session and CSRF cookies afterwards.
package sessionmw

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"

	"github.com/dinesh-gnapitech/insite/internal/auth"
	"github.com/dinesh-gnapitech/insite/internal/web/session"
)

// Locals keys, mirrored by the web package accessors.
const (
	LocalSession   = "insite_session"
	LocalSubsystem = "insite_auth"
)

// New creates the session middleware.
func New(sub *auth.Subsystem, store *session.Store) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if strings.HasPrefix(c.Path(), "/static") {
			return c.Next()
		}

		sess, err := store.Get(c.Cookies(session.CookieName))
		if err != nil {
			log.Error().Err(err).Msg("session load failed")
			return fiber.ErrInternalServerError
		}

		priorID := sess.ID
		priorCSRF := sess.Data.CSRFToken

		c.Locals(LocalSession, sess)
		c.Locals(LocalSubsystem, sub)

		handlerErr := c.Next()

		// the handler may have invalidated the session (login) or
		// rotated the CSRF token; reflect that in the cookies
		if sess.ID != priorID || sess.Fresh() {
			c.Cookie(&fiber.Cookie{
				Name:     session.CookieName,
				Value:    sess.ID,
				HTTPOnly: true,
				SameSite: fiber.CookieSameSiteLaxMode,
			})
		}

		if sess.Data.CSRFToken != "" && sess.Data.CSRFToken != priorCSRF {
			c.Cookie(&fiber.Cookie{
				Name:     session.CSRFCookieName,
				Value:    sess.Data.CSRFToken,
				SameSite: fiber.CookieSameSiteLaxMode,
			})
		}

		return handlerErr
	}
}
