package auth

import (
	"context"

	"gorm.io/gorm"

	"github.com/dinesh-gnapitech/insite/internal/config"
)

// EngineIDAnonymous names the anonymous passthrough engine.
const EngineIDAnonymous = "anonymous"

func init() {
	Register(EngineIDAnonymous, func(cfg *config.Config, db *gorm.DB, opts map[string]interface{}) (Engine, error) {
		return NewAnonymousEngine(
			optString(opts, "user", "anonymous"),
			optStrings(opts, "roles"),
		), nil
	})
}

// AnonymousEngine grants every request a fixed identity with roles
// taken from configuration. It never takes part in interactive login,
// so it only fires when placed in the engine list and no earlier
// engine claims the request.
type AnonymousEngine struct {
	user  string
	roles []string
}

// NewAnonymousEngine creates the anonymous engine.
func NewAnonymousEngine(user string, roles []string) *AnonymousEngine {
	return &AnonymousEngine{user: user, roles: roles}
}

// ID implements Engine.
func (e *AnonymousEngine) ID() string { return EngineIDAnonymous }

// AuthFields implements Engine.
func (e *AnonymousEngine) AuthFields() []Field { return nil }

// AuthControls implements Engine.
func (e *AnonymousEngine) AuthControls() []Control { return nil }

// Authenticate always succeeds.
func (e *AnonymousEngine) Authenticate(ctx context.Context, req *Request) (*Identity, error) {
	return &Identity{UserName: e.user, RoleNames: append([]string(nil), e.roles...)}, nil
}

// ReAuthenticate always succeeds with the configured roles.
func (e *AnonymousEngine) ReAuthenticate(ctx context.Context, prior *Identity, req *Request) (*Identity, error) {
	return &Identity{UserName: e.user, RoleNames: append([]string(nil), e.roles...)}, nil
}
