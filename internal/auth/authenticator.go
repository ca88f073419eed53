package auth

import (
	"context"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/dinesh-gnapitech/insite/internal/db/models"
)

// KnownRoles returns the set of role names known to the system.
type KnownRoles func(ctx context.Context) (map[string]struct{}, error)

// KnownRolesFromDB reads the role table.
func KnownRolesFromDB(db *gorm.DB) KnownRoles {
	return func(ctx context.Context) (map[string]struct{}, error) {
		var names []string

		err := db.WithContext(ctx).Model(&models.Role{}).Pluck("name", &names).Error
		if err != nil {
			return nil, err //nolint:wrapcheck
		}

		known := make(map[string]struct{}, len(names))
		for _, n := range names {
			known[n] = struct{}{}
		}

		return known, nil
	}
}

// Authenticator dispatches authentication across the configured
// engines in order.
type Authenticator struct {
	engines    []Engine
	knownRoles KnownRoles
}

// NewAuthenticator creates an authenticator over the ordered engine
// list.
func NewAuthenticator(engines []Engine, knownRoles KnownRoles) *Authenticator {
	return &Authenticator{engines: engines, knownRoles: knownRoles}
}

// Engines returns the configured engines in dispatch order.
func (a *Authenticator) Engines() []Engine { return a.engines }

// Engine returns the loaded engine with the given id, or nil.
func (a *Authenticator) Engine(id string) Engine {
	for _, e := range a.engines {
		if e.ID() == id {
			return e
		}
	}

	return nil
}

// Authenticate tries each engine in configuration order and returns
// the first identity whose roles intersect the known role set.
// (nil, nil) means no engine claimed the request.
//
// An interactive login request skips engines with no login fields or
// controls, so a passthrough engine cannot shadow an explicit login
// POST. Engine errors are logged and the next engine is tried.
func (a *Authenticator) Authenticate(ctx context.Context, req *Request) (*Identity, error) {
	known, err := a.knownRoles(ctx)
	if err != nil {
		return nil, err
	}

	for _, e := range a.engines {
		if req.Interactive && len(e.AuthFields()) == 0 && len(e.AuthControls()) == 0 {
			continue
		}

		ident, err := e.Authenticate(ctx, req)
		if err != nil {
			log.Error().Err(err).Str("engine", e.ID()).Msg("auth engine failed")
			continue
		}

		if ident == nil {
			continue
		}

		ident.RoleNames = intersectRoles(ident.RoleNames, known)
		if len(ident.RoleNames) == 0 {
			log.Debug().Str("engine", e.ID()).Str("user", ident.UserName).
				Msg("identity has no known roles, trying next engine")
			continue
		}

		ident.EngineID = e.ID()

		return ident, nil
	}

	return nil, nil
}

// ReAuthenticate confirms a previously issued identity through the
// engine recorded on the session. An empty role intersection fails
// the check.
func (a *Authenticator) ReAuthenticate(ctx context.Context, engineID string, prior *Identity, req *Request) (*Identity, error) {
	e := a.Engine(engineID)
	if e == nil {
		return nil, ErrEngineMismatch
	}

	ident, err := e.ReAuthenticate(ctx, prior, req)
	if err != nil {
		return nil, err
	}

	if ident == nil {
		return nil, ErrReauthFailed
	}

	known, err := a.knownRoles(ctx)
	if err != nil {
		return nil, err
	}

	ident.RoleNames = intersectRoles(ident.RoleNames, known)
	if len(ident.RoleNames) == 0 {
		return nil, ErrNoRoles
	}

	ident.EngineID = engineID

	return ident, nil
}

func intersectRoles(roles []string, known map[string]struct{}) []string {
	var out []string

	seen := make(map[string]struct{}, len(roles))

	for _, r := range roles {
		if _, ok := known[r]; !ok {
			continue
		}

		if _, dup := seen[r]; dup {
			continue
		}

		seen[r] = struct{}{}
		out = append(out, r)
	}

	return out
}
