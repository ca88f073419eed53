package auth

import (
	"context"
	"errors"

	"github.com/pquerna/otp/totp"
	"gorm.io/gorm"

	"github.com/dinesh-gnapitech/insite/internal/config"
	"github.com/dinesh-gnapitech/insite/internal/db/models"
)

// EngineIDLocal names the local database engine.
const EngineIDLocal = "local"

func init() {
	Register(EngineIDLocal, func(cfg *config.Config, db *gorm.DB, opts map[string]interface{}) (Engine, error) {
		return NewLocalEngine(db), nil
	})
}

// LocalEngine authenticates against the local user table with the
// legacy password digest. Accounts with a TOTP secret additionally
// require a one-time code.
type LocalEngine struct {
	db *gorm.DB
}

// NewLocalEngine creates the local database engine.
func NewLocalEngine(db *gorm.DB) *LocalEngine {
	return &LocalEngine{db: db}
}

// ID implements Engine.
func (e *LocalEngine) ID() string { return EngineIDLocal }

// AuthFields implements Engine.
func (e *LocalEngine) AuthFields() []Field {
	return []Field{
		{ID: "user", Label: "Username", Type: "text"},
		{ID: "pass", Label: "Password", Type: "password"},
	}
}

// AuthControls implements Engine.
func (e *LocalEngine) AuthControls() []Control { return nil }

// Authenticate validates the user/pass form fields against the user
// record. A request without both fields is not claimed.
func (e *LocalEngine) Authenticate(ctx context.Context, req *Request) (*Identity, error) {
	username := req.Form("user")
	password := req.Form("pass")

	if username == "" || password == "" {
		return nil, nil
	}

	user, err := e.lookup(ctx, username)
	if err != nil {
		return nil, err
	}

	if !VerifierFor(user.PasswordHash).Verify(password, user.PasswordHash) {
		return nil, ErrInvalidPassword
	}

	if user.TOTPSecret != "" {
		if !totp.Validate(req.Form("code"), user.TOTPSecret) {
			return nil, ErrInvalidTOTPCode
		}
	}

	return &Identity{UserName: user.Username, RoleNames: user.RoleNames()}, nil
}

// ReAuthenticate re-reads the user record, failing when the account
// has been removed or locked since login, and refreshes role names.
func (e *LocalEngine) ReAuthenticate(ctx context.Context, prior *Identity, req *Request) (*Identity, error) {
	user, err := e.lookup(ctx, prior.UserName)
	if err != nil {
		return nil, err
	}

	return &Identity{UserName: user.Username, RoleNames: user.RoleNames()}, nil
}

func (e *LocalEngine) lookup(ctx context.Context, username string) (*models.User, error) {
	var user models.User

	err := e.db.WithContext(ctx).
		Preload("Roles").
		Where("username = ?", username).
		First(&user).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}

	if err != nil {
		return nil, err //nolint:wrapcheck
	}

	if user.Locked {
		return nil, ErrUserLocked
	}

	return &user, nil
}
