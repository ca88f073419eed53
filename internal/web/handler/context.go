package handler

import (
	"net/http"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
	"github.com/valyala/fasthttp/fasthttpadaptor"

	"github.com/dinesh-gnapitech/insite/internal/auth"
	"github.com/dinesh-gnapitech/insite/internal/web/middleware/sessionmw"
	"github.com/dinesh-gnapitech/insite/internal/web/session"
)

// AdaptRequest exposes a fiber request through the transport-neutral
// view the auth engines consume.
func AdaptRequest(c *fiber.Ctx) *auth.Request {
	return auth.NewRequest(
		c.Method(),
		c.Path(),
		func(name string) string { return c.Get(name) },
		func(name string) string { return c.FormValue(name) },
		func(name string) string { return c.Query(name) },
		func(name string) string { return c.Cookies(name) },
	)
}

// AdaptRequestHTTP additionally attaches a net/http view, needed by
// engines whose library validates the raw request (SAML).
func AdaptRequestHTTP(c *fiber.Ctx) *auth.Request {
	req := AdaptRequest(c)

	var httpReq http.Request
	if err := fasthttpadaptor.ConvertRequest(c.Context(), &httpReq, true); err != nil {
		log.Warn().Err(err).Msg("request conversion failed")
	} else {
		req.HTTP = &httpReq
	}

	return req
}

// Sess returns the request's session, loaded by the middleware.
func Sess(c *fiber.Ctx) *session.Session {
	return c.Locals(sessionmw.LocalSession).(*session.Session)
}

// User builds the current-user facade for this request.
func User(c *fiber.Ctx) *auth.CurrentUser {
	return Subsystem(c).CurrentUser(Sess(c), AdaptRequest(c))
}

// UserHTTP is User with a net/http request view attached, for SSO
// callback handlers.
func UserHTTP(c *fiber.Ctx) *auth.CurrentUser {
	return Subsystem(c).CurrentUser(Sess(c), AdaptRequestHTTP(c))
}

// Subsystem returns the auth subsystem bound by the middleware.
func Subsystem(c *fiber.Ctx) *auth.Subsystem {
	return c.Locals(sessionmw.LocalSubsystem).(*auth.Subsystem)
}

// Fail renders a failed authorization decision: a redirect when the
// evaluator asked for one, otherwise the reason with its status code.
func Fail(c *fiber.Ctx, d auth.Decision) error {
	if d.Redirect != "" {
		return c.Redirect(d.Redirect, fiber.StatusFound)
	}

	return c.Status(d.Code).JSON(fiber.Map{"reason": d.Reason})
}
