// Package authenticate handles the interactive login POST.
package authenticate

import (
	"errors"
	"net/url"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"

	"github.com/dinesh-gnapitech/insite/internal/auth"
	"github.com/dinesh-gnapitech/insite/internal/config"
	"github.com/dinesh-gnapitech/insite/internal/web/handler"
	"github.com/dinesh-gnapitech/insite/internal/web/handler/login"
	"github.com/dinesh-gnapitech/insite/internal/web/session"
)

// Path is the authentication endpoint.
const Path = "/auth"

// Service is the authenticate handler.
type Service struct {
	cfg *config.Config
	sub *auth.Subsystem
}

// Handler is the authenticate handler.
var Handler = Service{}

// Init initializes the authenticate handler.
func (s *Service) Init(app *fiber.App, cfg *config.Config, sub *auth.Subsystem) error {
	if app == nil || cfg == nil || sub == nil {
		return errors.New(handler.ErrNilACSFatalLogMsg)
	}

	s.cfg = cfg
	s.sub = sub

	app.Post(Path, s.Post)

	return nil
}

// Post runs the engine chain for an explicit login. On success the
// caller is redirected to the requested application, or receives the
// CSRF token when no redirect was asked for.
func (s *Service) Post(c *fiber.Ctx) error {
	req := handler.AdaptRequest(c)
	req.Interactive = true

	u := s.sub.CurrentUser(handler.Sess(c), req)

	ok, err := u.Authenticate(c.Context())
	if err != nil {
		log.Error().Err(err).Msg("authentication failed")
	}

	redirectTo := firstNonEmpty(c.FormValue("redirect_to"), c.Query("redirect_to"))

	if !ok {
		q := url.Values{}
		q.Set("message_id", "invalid_credentials")

		if user := c.FormValue("user"); user != "" {
			q.Set("user", user)
		}

		if redirectTo != "" {
			q.Set("redirect_to", redirectTo)
		}

		return c.Redirect(login.Path+"?"+q.Encode(), fiber.StatusFound)
	}

	s.setLoginCookie(c)

	return Redirect(c, handler.Sess(c), redirectTo)
}

// setLoginCookie seals the submitted credentials into the auto-login
// cookie when enabled and requested.
func (s *Service) setLoginCookie(c *fiber.Ctx) {
	lc := s.cfg.Auth.LoginCookie
	if !lc.Enabled || c.FormValue("remember_me") == "" {
		return
	}

	sealed, err := session.SealLoginCookie(c.FormValue("user"), c.FormValue("pass"), s.cfg.Webserver.CookieEncryptionKey)
	if err != nil {
		log.Warn().Err(err).Msg("sealing login cookie failed")
		return
	}

	cookie := &fiber.Cookie{
		Name:     session.LoginCookieName,
		Value:    sealed,
		HTTPOnly: true,
		SameSite: fiber.CookieSameSiteLaxMode,
	}
	if lc.TimeoutHours > 0 {
		cookie.Expires = time.Now().Add(time.Duration(lc.TimeoutHours * float64(time.Hour)))
	}

	c.Cookie(cookie)
}

// Redirect finalises a successful authentication: a 302 to the named
// application's page, to /index, or the CSRF token in the body when no
// redirect was requested.
func Redirect(c *fiber.Ctx, sess *session.Session, redirectTo string) error {
	switch redirectTo {
	case "":
		return c.SendString(sess.Data.CSRFToken)
	case "index":
		return c.Redirect("/index", fiber.StatusFound)
	default:
		return c.Redirect("/"+redirectTo+".html", fiber.StatusFound)
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}

	return ""
}
