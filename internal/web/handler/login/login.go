package login

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/dinesh-gnapitech/insite/internal/auth"
	"github.com/dinesh-gnapitech/insite/internal/config"
	"github.com/dinesh-gnapitech/insite/internal/web/handler"
)

// Path is the path to the login page.
const Path = "/login"

// Service is the login-page handler.
type Service struct {
	cfg *config.Config
	sub *auth.Subsystem
}

// Handler is the login handler.
var Handler = Service{}

// Init initializes the login handler.
func (s *Service) Init(app *fiber.App, cfg *config.Config, sub *auth.Subsystem) error {
	if app == nil || cfg == nil || sub == nil {
		return errors.New(handler.ErrNilACSFatalLogMsg)
	}

	s.cfg = cfg
	s.sub = sub

	app.Get(Path, s.Get)

	return nil
}

// Get renders the interactive login page from the union of every
// engine's fields and controls. A page that reduces to exactly one
// SSO control and no fields redirects straight to that engine.
func (s *Service) Get(c *fiber.Ctx) error {
	var (
		fields   []auth.Field
		controls []auth.Control
	)

	seen := map[string]struct{}{}

	for _, e := range s.sub.Authenticator().Engines() {
		for _, f := range e.AuthFields() {
			if _, ok := seen[f.ID]; ok {
				continue
			}

			seen[f.ID] = struct{}{}
			fields = append(fields, f)
		}

		controls = append(controls, e.AuthControls()...)
	}

	if len(fields) == 0 && len(controls) == 1 {
		return c.Redirect(controls[0].Action, fiber.StatusFound)
	}

	message := c.Query("message")
	if message == "" && c.Query("message_id") == "invalid_credentials" {
		message = "Invalid username or password"
	}

	return c.Render("login", fiber.Map{
		"Title":      s.cfg.Title,
		"Fields":     fields,
		"Controls":   controls,
		"Message":    message,
		"User":       c.Query("user"),
		"RedirectTo": c.Query("redirect_to"),
	}, handler.BaseLayout)
}
