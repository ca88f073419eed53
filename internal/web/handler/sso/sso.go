// Package sso dispatches single-sign-on flows to the named engine.
package sso

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"

	"github.com/dinesh-gnapitech/insite/internal/auth"
	"github.com/dinesh-gnapitech/insite/internal/config"
	"github.com/dinesh-gnapitech/insite/internal/web/handler"
	"github.com/dinesh-gnapitech/insite/internal/web/handler/authenticate"
)

// Paths served by this handler.
const (
	Path         = "/auth/sso/:engine"
	AnywherePath = "/auth/anywhere/:engine"
)

// Service is the SSO handler.
type Service struct {
	cfg *config.Config
	sub *auth.Subsystem
}

// Handler is the SSO handler.
var Handler = Service{}

// Init initializes the SSO handler.
func (s *Service) Init(app *fiber.App, cfg *config.Config, sub *auth.Subsystem) error {
	if app == nil || cfg == nil || sub == nil {
		return errors.New(handler.ErrNilACSFatalLogMsg)
	}

	s.cfg = cfg
	s.sub = sub

	app.Get(Path, s.Begin)
	app.Post(Path, s.Callback)
	app.Get(AnywherePath, s.Anywhere)
	app.Post(AnywherePath, s.Anywhere)

	return nil
}

func (s *Service) engine(c *fiber.Ctx) auth.Engine {
	return s.sub.Authenticator().Engine(c.Params("engine"))
}

// Begin starts the SSO flow by redirecting to the identity provider.
func (s *Service) Begin(c *fiber.Ctx) error {
	e := s.engine(c)
	if e == nil {
		return fiber.ErrNotFound
	}

	sso, ok := e.(auth.SingleSignOnEngine)
	if !ok {
		return fiber.ErrNotFound
	}

	target, err := sso.SingleSignOn(c.Context(), handler.AdaptRequest(c))
	if err != nil {
		log.Error().Err(err).Str("engine", e.ID()).Msg("sso begin failed")
		return fiber.ErrBadGateway
	}

	return c.Redirect(target, fiber.StatusFound)
}

// Callback consumes the provider's response and establishes the
// session like an interactive login would.
func (s *Service) Callback(c *fiber.Ctx) error {
	if s.engine(c) == nil {
		return fiber.ErrNotFound
	}

	u := handler.UserHTTP(c)

	ok, err := u.Authenticate(c.Context())
	if err != nil {
		log.Error().Err(err).Msg("sso callback failed")
	}

	if !ok {
		return c.Redirect("/login?message_id=invalid_credentials", fiber.StatusFound)
	}

	redirectTo := c.FormValue("RelayState")
	if redirectTo == "" {
		redirectTo = "index"
	}

	return authenticate.Redirect(c, handler.Sess(c), redirectTo)
}

// Anywhere consumes the callback on behalf of a mobile companion app,
// redirecting to the custom-scheme URL the engine builds.
func (s *Service) Anywhere(c *fiber.Ctx) error {
	e := s.engine(c)
	if e == nil {
		return fiber.ErrNotFound
	}

	anywhere, ok := e.(auth.AnywhereEngine)
	if !ok {
		return fiber.ErrNotFound
	}

	target, err := anywhere.AuthenticateAnywhere(c.Context(), handler.AdaptRequestHTTP(c))
	if err != nil {
		log.Error().Err(err).Str("engine", e.ID()).Msg("anywhere callback failed")
		return fiber.ErrBadGateway
	}

	return c.Redirect(target, fiber.StatusFound)
}
