// Package settings provides the admin settings page: server-wide
// key/value settings backed by the settings table. Saving a setting
// bumps the configuration version so cached rights snapshots are
// superseded on the next request.
package settings

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/dinesh-gnapitech/insite/internal/auth"
	"github.com/dinesh-gnapitech/insite/internal/config"
	"github.com/dinesh-gnapitech/insite/internal/db/controller/setting"
	"github.com/dinesh-gnapitech/insite/internal/db/models"
	"github.com/dinesh-gnapitech/insite/internal/web/handler"
)

const (
	// Path is the base path for the settings pages.
	Path = handler.RootPath + "admin/settings"

	// TemplateName is the settings page template.
	TemplateName = "admin/settings"
)

// Service is the settings handler.
type Service struct {
	cfg *config.Config
	sub *auth.Subsystem
	db  *gorm.DB
}

// Handler is the settings handler.
var Handler = Service{}

// Init registers routes.
func (s *Service) Init(app *fiber.App, cfg *config.Config, sub *auth.Subsystem) error {
	if app == nil || cfg == nil || sub == nil {
		return errors.New(handler.ErrNilACSFatalLogMsg)
	}

	s.cfg = cfg
	s.sub = sub
	s.db = sub.DB()

	app.Get(Path, s.Get)
	app.Post(Path, s.Post)
	app.Post(Path+"/delete", s.Delete)

	return nil
}

func (s *Service) authorize(c *fiber.Ctx) *auth.Decision {
	u := handler.User(c)

	d := u.Authorize(c.Context(), auth.Check{
		Right:          models.RightManageUsers,
		Application:    "config",
		RedirectOnFail: c.Method() == fiber.MethodGet,
	})

	return &d
}

// Get renders the settings list.
func (s *Service) Get(c *fiber.Ctx) error {
	if d := s.authorize(c); !d.OK {
		return handler.Fail(c, *d)
	}

	settings, err := setting.GetAll(s.db)
	if err != nil {
		log.Error().Err(err).Msg("load settings failed")
		return fiber.ErrInternalServerError
	}

	return c.Render(TemplateName, fiber.Map{
		"Title":    "Settings",
		"Settings": settings,
	}, handler.BaseLayout)
}

// Post creates or updates a setting and bumps the config version.
func (s *Service) Post(c *fiber.Ctx) error {
	if d := s.authorize(c); !d.OK {
		return handler.Fail(c, *d)
	}

	key := c.FormValue("key")
	value := c.FormValue("value")

	if err := setting.Set(s.db, key, value); err != nil {
		if errors.Is(err, setting.ErrSettingKeyEmpty) {
			return fiber.ErrBadRequest
		}

		log.Error().Err(err).Str("key", key).Msg("save setting failed")

		return fiber.ErrInternalServerError
	}

	if _, err := setting.BumpConfigVersion(s.db); err != nil {
		log.Error().Err(err).Msg("config version bump failed")
	}

	return c.Redirect(Path)
}

// Delete removes a setting and bumps the config version.
func (s *Service) Delete(c *fiber.Ctx) error {
	if d := s.authorize(c); !d.OK {
		return handler.Fail(c, *d)
	}

	key := c.FormValue("key")

	err := setting.Delete(s.db, key)

	switch {
	case err == nil:
	case errors.Is(err, setting.ErrSettingNotFound):
		return fiber.ErrNotFound
	case errors.Is(err, setting.ErrSettingKeyEmpty):
		return fiber.ErrBadRequest
	default:
		log.Error().Err(err).Str("key", key).Msg("delete setting failed")
		return fiber.ErrInternalServerError
	}

	if _, err := setting.BumpConfigVersion(s.db); err != nil {
		log.Error().Err(err).Msg("config version bump failed")
	}

	return c.Redirect(Path)
}
