package auth

import (
	"context"
	"sync"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/pkg/errors"
	"golang.org/x/oauth2"
	"gorm.io/gorm"

	"github.com/dinesh-gnapitech/insite/internal/config"
)

// EngineIDOIDC names the OpenID Connect engine.
const EngineIDOIDC = "oidc"

func init() {
	Register(EngineIDOIDC, func(cfg *config.Config, db *gorm.DB, opts map[string]interface{}) (Engine, error) {
		return NewOIDCEngine(OIDCOptions{
			Issuer:       optString(opts, "issuer", ""),
			ClientID:     optString(opts, "client_id", ""),
			ClientSecret: optString(opts, "client_secret", ""),
			RedirectURL:  optString(opts, "redirect_url", ""),
			Scopes:       optStrings(opts, "scopes"),
			RolesClaim:   optString(opts, "roles_claim", "roles"),
			UserClaim:    optString(opts, "user_claim", "preferred_username"),
		})
	})
}

// OIDCOptions configure the OpenID Connect engine.
type OIDCOptions struct {
	Issuer       string
	ClientID     string
	ClientSecret string
	RedirectURL  string
	Scopes       []string
	// RolesClaim is the ID token claim carrying role names.
	RolesClaim string
	// UserClaim is the ID token claim carrying the login name.
	UserClaim string
}

// OIDCEngine authenticates through an OpenID Connect provider. It is
// SSO-only: the login page shows a single control and the engine
// consumes the authorization-code callback. Provider discovery runs
// lazily on first use so a slow provider does not block startup.
type OIDCEngine struct {
	opts OIDCOptions

	once     sync.Once
	initErr  error
	verifier *oidc.IDTokenVerifier
	oauth2   oauth2.Config
}

// NewOIDCEngine creates the OIDC engine.
func NewOIDCEngine(opts OIDCOptions) (*OIDCEngine, error) {
	if opts.Issuer == "" || opts.ClientID == "" {
		return nil, errors.New("oidc: issuer and client_id are required")
	}

	if len(opts.Scopes) == 0 {
		opts.Scopes = []string{oidc.ScopeOpenID, "profile", "email"}
	}

	return &OIDCEngine{opts: opts}, nil
}

func (e *OIDCEngine) discover(ctx context.Context) error {
	e.once.Do(func() {
		provider, err := oidc.NewProvider(ctx, e.opts.Issuer)
		if err != nil {
			e.initErr = errors.Wrap(err, "oidc: provider discovery failed")
			return
		}

		e.verifier = provider.Verifier(&oidc.Config{ClientID: e.opts.ClientID})
		e.oauth2 = oauth2.Config{
			ClientID:     e.opts.ClientID,
			ClientSecret: e.opts.ClientSecret,
			RedirectURL:  e.opts.RedirectURL,
			Endpoint:     provider.Endpoint(),
			Scopes:       e.opts.Scopes,
		}
	})

	return e.initErr
}

// ID implements Engine.
func (e *OIDCEngine) ID() string { return EngineIDOIDC }

// AuthFields implements Engine.
func (e *OIDCEngine) AuthFields() []Field { return nil }

// AuthControls implements Engine.
func (e *OIDCEngine) AuthControls() []Control {
	return []Control{{ID: "oidc_sso", Label: "Sign in with OpenID Connect", Action: "/auth/sso/" + EngineIDOIDC}}
}

// SingleSignOn returns the provider's authorization URL.
func (e *OIDCEngine) SingleSignOn(ctx context.Context, req *Request) (string, error) {
	if err := e.discover(ctx); err != nil {
		return "", err
	}

	state, err := NewStateToken()
	if err != nil {
		return "", err
	}

	return e.oauth2.AuthCodeURL(state), nil
}

// Authenticate consumes the authorization-code callback. Requests
// without a code are not claimed.
func (e *OIDCEngine) Authenticate(ctx context.Context, req *Request) (*Identity, error) {
	code := req.Query("code")
	if code == "" {
		code = req.Form("code")
	}

	if code == "" {
		return nil, nil
	}

	if err := e.discover(ctx); err != nil {
		return nil, err
	}

	token, err := e.oauth2.Exchange(ctx, code)
	if err != nil {
		return nil, errors.Wrap(err, "oidc: code exchange failed")
	}

	rawIDToken, ok := token.Extra("id_token").(string)
	if !ok {
		return nil, errors.New("oidc: token response carries no id_token")
	}

	idToken, err := e.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return nil, errors.Wrap(err, "oidc: id_token verification failed")
	}

	var claims map[string]interface{}
	if err := idToken.Claims(&claims); err != nil {
		return nil, errors.Wrap(err, "oidc: claim decode failed")
	}

	user, _ := claims[e.opts.UserClaim].(string)
	if user == "" {
		user = idToken.Subject
	}

	return &Identity{
		UserName:  user,
		RoleNames: claimStrings(claims[e.opts.RolesClaim]),
	}, nil
}

// ReAuthenticate trusts the identity issued at login; the provider is
// not consulted per request.
func (e *OIDCEngine) ReAuthenticate(ctx context.Context, prior *Identity, req *Request) (*Identity, error) {
	return prior, nil
}

func claimStrings(v interface{}) []string {
	raw, ok := v.([]interface{})
	if !ok {
		if s, ok := v.(string); ok && s != "" {
			return []string{s}
		}

		return nil
	}

	out := make([]string, 0, len(raw))

	for _, item := range raw {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}

	return out
}
