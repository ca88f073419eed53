// Package feature is the feature data endpoint: reads return the
// caller's effective feature-type descriptor, writes require the edit
// right for the named type.
package feature

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/dinesh-gnapitech/insite/internal/auth"
	"github.com/dinesh-gnapitech/insite/internal/config"
	"github.com/dinesh-gnapitech/insite/internal/db/models"
	"github.com/dinesh-gnapitech/insite/internal/web/handler"
)

// Path is the feature endpoint, parameterised by feature-type name.
const Path = "/feature/:type"

// Service is the feature handler.
type Service struct {
	cfg *config.Config
	sub *auth.Subsystem
}

// Handler is the feature handler.
var Handler = Service{}

// Init initializes the feature handler.
func (s *Service) Init(app *fiber.App, cfg *config.Config, sub *auth.Subsystem) error {
	if app == nil || cfg == nil || sub == nil {
		return errors.New(handler.ErrNilACSFatalLogMsg)
	}

	s.cfg = cfg
	s.sub = sub

	app.Get(Path, s.Get)
	app.Post(Path, s.Post)

	return nil
}

// Get returns the caller's effective descriptor for the type: fields,
// granted filter names and the unfiltered flag.
func (s *Service) Get(c *fiber.Ctx) error {
	typeName := c.Params("type")
	u := handler.User(c)

	d := u.Authorize(c.Context(), auth.Check{
		Application: c.Query("application"),
		FeatureType: typeName,
	})
	if !d.OK {
		return handler.Fail(c, d)
	}

	desc, err := u.FeatureTypeDef(c.Context(), models.DatasourceInternal, typeName)
	if err != nil || desc == nil {
		return fiber.ErrInternalServerError
	}

	filters := make([]string, 0, len(desc.Filters))
	for name := range desc.Filters {
		filters = append(filters, name)
	}

	return c.JSON(fiber.Map{
		"name":       desc.Name,
		"key_field":  desc.KeyField,
		"fields":     desc.Fields,
		"filters":    filters,
		"unfiltered": desc.Unfiltered,
	})
}

// Post is a write to features of the type; it demands the edit right
// under the named application, which also enforces CSRF and
// re-authentication.
func (s *Service) Post(c *fiber.Ctx) error {
	typeName := c.Params("type")
	u := handler.User(c)

	d := u.Authorize(c.Context(), auth.Check{
		Right:       models.RightEditFeatures,
		Application: c.Query("application"),
		FeatureType: typeName,
	})
	if !d.OK {
		return handler.Fail(c, d)
	}

	return c.JSON(fiber.Map{"ok": true, "feature_type": typeName})
}
