package auth

import (
	"context"
	"net/http"

	"gorm.io/gorm"

	"github.com/dinesh-gnapitech/insite/internal/config"
)

// Field is one input field an engine contributes to the interactive
// login page.
type Field struct {
	ID    string `json:"id"`
	Label string `json:"label,omitempty"`
	// Type is the input type, "text" or "password".
	Type string `json:"type,omitempty"`
}

// Control is a non-field login-page control, e.g. an SSO button.
type Control struct {
	ID    string `json:"id"`
	Label string `json:"label,omitempty"`
	// Action is the target URL the control submits to.
	Action string `json:"action"`
}

// Identity is the result of a successful authentication.
type Identity struct {
	UserName string
	// RoleNames are the raw role names the engine resolved; the
	// authenticator intersects them with the system's known roles.
	RoleNames []string
	// EngineID is filled by the authenticator with the winning
	// engine's id.
	EngineID string
	// Metadata is opaque engine state persisted on the session, e.g. a
	// SAML name-id needed for single logout.
	Metadata map[string]string
	// RedirectHints are engine-supplied post-auth redirect hints.
	RedirectHints map[string]string
}

// Request is the transport-neutral view of an incoming request that
// engines and the evaluator operate on.
type Request struct {
	Method     string
	Path       string
	RemoteAddr string
	// Interactive tags an explicit login POST; engines with no login
	// fields or controls are skipped for such requests.
	Interactive bool

	headers func(string) string
	form    func(string) string
	query   func(string) string
	cookies func(string) string

	// HTTP is a net/http view of the request for engines whose
	// library needs one (SAML response validation). Nil when the
	// transport cannot provide it.
	HTTP *http.Request
}

// NewRequest builds a Request from accessor functions. Nil accessors
// are replaced with empty lookups.
func NewRequest(method, path string, headers, form, query, cookies func(string) string) *Request {
	empty := func(string) string { return "" }

	if headers == nil {
		headers = empty
	}

	if form == nil {
		form = empty
	}

	if query == nil {
		query = empty
	}

	if cookies == nil {
		cookies = empty
	}

	return &Request{
		Method:  method,
		Path:    path,
		headers: headers,
		form:    form,
		query:   query,
		cookies: cookies,
	}
}

// Header returns the named request header, or "".
func (r *Request) Header(name string) string { return r.headers(name) }

// Form returns the named form value, or "".
func (r *Request) Form(name string) string { return r.form(name) }

// Query returns the named query parameter, or "".
func (r *Request) Query(name string) string { return r.query(name) }

// Cookie returns the named cookie value, or "".
func (r *Request) Cookie(name string) string { return r.cookies(name) }

// Engine is one authentication mechanism. Authenticate returns
// (nil, nil) when the engine does not apply to the request, an error
// on a structured failure, and an identity on success.
type Engine interface {
	ID() string
	// AuthFields lists the interactive login inputs. Empty means the
	// engine does not take part in interactive login.
	AuthFields() []Field
	// AuthControls lists non-field login-page controls.
	AuthControls() []Control
	Authenticate(ctx context.Context, req *Request) (*Identity, error)
	// ReAuthenticate confirms a previously issued identity is still
	// valid and refreshes its role names.
	ReAuthenticate(ctx context.Context, prior *Identity, req *Request) (*Identity, error)
}

// SingleSignOnEngine starts an SSO flow, returning the redirect URL.
type SingleSignOnEngine interface {
	SingleSignOn(ctx context.Context, req *Request) (string, error)
}

// AnywhereEngine consumes an SSO callback on behalf of a mobile
// companion app, returning a custom-scheme URL for the app to open.
type AnywhereEngine interface {
	AuthenticateAnywhere(ctx context.Context, req *Request) (string, error)
}

// LogoutEngine notifies the identity provider on logout and may
// return a post-logout redirect URL.
type LogoutEngine interface {
	Logout(ctx context.Context, metadata map[string]string) (string, error)
}

// Factory constructs an engine from its opaque option block.
type Factory func(cfg *config.Config, db *gorm.DB, options map[string]interface{}) (Engine, error)

var factories = map[string]Factory{}

// Register makes an engine constructor available under the given name.
func Register(name string, f Factory) {
	factories[name] = f
}

// NewEngine constructs the named engine from configuration.
func NewEngine(name string, cfg *config.Config, db *gorm.DB) (Engine, error) {
	f, ok := factories[name]
	if !ok {
		return nil, ErrUnknownEngine
	}

	return f(cfg, db, cfg.Auth.EngineOptions(name))
}

// WithForm returns a copy of the request whose form lookup consults
// the given values first. Used to inject auto-login credentials.
func (r *Request) WithForm(values map[string]string) *Request {
	clone := *r
	inner := r.form
	clone.form = func(name string) string {
		if v, ok := values[name]; ok {
			return v
		}

		return inner(name)
	}

	return &clone
}
