package auth

import (
	"context"
	"net/url"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/dinesh-gnapitech/insite/internal/db/models"
	"github.com/dinesh-gnapitech/insite/internal/filter"
	"github.com/dinesh-gnapitech/insite/internal/rights"
	"github.com/dinesh-gnapitech/insite/internal/web/session"
)

// CurrentUser combines one request's session with the rights
// subsystem. All query accessors read from the rights snapshot; none
// hit the database beyond the snapshot build itself.
type CurrentUser struct {
	sub  *Subsystem
	sess *session.Session
	req  *Request
}

// Name returns the authenticated user name, or "".
func (u *CurrentUser) Name() string { return u.sess.Data.UserName }

// Authenticated reports whether the session carries an identity.
func (u *CurrentUser) Authenticated() bool { return u.sess.Data.Authenticated() }

// Session returns the bound session.
func (u *CurrentUser) Session() *session.Session { return u.sess }

// Authenticate establishes or refreshes the caller's identity.
//
// A session that already carries an engine id is re-checked through
// that engine (unless disabled by configuration). Otherwise the
// sealed auto-login cookie, when enabled and present, injects
// credentials, and the normal engine chain runs.
func (u *CurrentUser) Authenticate(ctx context.Context) (bool, error) {
	if u.sess.Data.Authenticated() {
		if u.sub.cfg.Auth.Options.DisableReauthCheck {
			return true, nil
		}

		return u.reauthenticate(ctx)
	}

	req := u.req

	if lc := u.sub.cfg.Auth.LoginCookie; lc.Enabled && lc.AutoLogin {
		if sealed := req.Cookie(session.LoginCookieName); sealed != "" {
			user, pass, err := session.OpenLoginCookie(sealed, u.sub.cfg.Webserver.CookieEncryptionKey)
			if err != nil {
				log.Debug().Err(err).Msg("ignoring unreadable auto-login cookie")
			} else {
				req = req.WithForm(map[string]string{"user": user, "pass": pass})
			}
		}
	}

	ident, err := u.sub.auth.Authenticate(ctx, req)
	if err != nil {
		return false, err
	}

	if ident == nil {
		return false, nil
	}

	return true, u.establish(ctx, ident, false)
}

func (u *CurrentUser) reauthenticate(ctx context.Context) (bool, error) {
	prior := &Identity{
		UserName:      u.sess.Data.UserName,
		RoleNames:     u.sess.Data.RoleNames,
		EngineID:      u.sess.Data.EngineID,
		Metadata:      u.sess.Data.EngineMeta,
		RedirectHints: u.sess.Data.RedirectHints,
	}

	ident, err := u.sub.auth.ReAuthenticate(ctx, u.sess.Data.EngineID, prior, u.req)
	if err != nil {
		log.Debug().Err(err).Str("user", prior.UserName).Msg("reauthentication rejected")
		return false, nil
	}

	return true, u.establish(ctx, ident, true)
}

// establish stores the identity on the session and recomputes the
// snapshot pointer. A fresh login invalidates the session so a new id
// is issued; a re-auth keeps the id and the CSRF token.
func (u *CurrentUser) establish(ctx context.Context, ident *Identity, reauth bool) error {
	if !reauth {
		oldID := u.sess.ID
		if err := u.sess.Invalidate(); err != nil {
			return err //nolint:wrapcheck
		}

		u.sub.dropSnapshot(oldID)
	}

	data := &u.sess.Data
	data.EngineID = ident.EngineID
	data.UserName = ident.UserName
	data.RoleNames = ident.RoleNames
	data.EngineMeta = ident.Metadata
	data.RedirectHints = ident.RedirectHints
	data.LastAccess = u.sub.now()

	if !reauth || data.CSRFToken == "" {
		token, err := session.NewCSRFToken()
		if err != nil {
			return err //nolint:wrapcheck
		}

		data.CSRFToken = token
	}

	if !reauth {
		data.RefererBase = RefererBase(u.req.Header("Referer"))
	}

	if _, err := u.sub.snapshotFor(ctx, u.sess); err != nil {
		return err
	}

	return u.sess.Save() //nolint:wrapcheck
}

// LogOut drops the identity. The engine's logout hook runs
// best-effort; its redirect URL, if any, is returned. Safe to call on
// an already-cleared session.
func (u *CurrentUser) LogOut(ctx context.Context) string {
	redirect := ""

	if u.sess.Data.Authenticated() {
		if e := u.sub.auth.Engine(u.sess.Data.EngineID); e != nil {
			if le, ok := e.(LogoutEngine); ok {
				r, err := le.Logout(ctx, u.sess.Data.EngineMeta)
				if err != nil {
					log.Warn().Err(err).Str("engine", e.ID()).Msg("engine logout hook failed")
				} else {
					redirect = r
				}
			}
		}
	}

	u.sub.dropSnapshot(u.sess.ID)
	u.sess.Clear()

	if err := u.sess.Save(); err != nil {
		log.Warn().Err(err).Msg("persisting cleared session failed")
	}

	if err := u.sess.Delete(); err != nil {
		log.Warn().Err(err).Msg("deleting session failed")
	}

	return redirect
}

// Snapshot returns the rights snapshot for this session, building it
// when absent.
func (u *CurrentUser) Snapshot(ctx context.Context) (*rights.Snapshot, error) {
	return u.sub.snapshotFor(ctx, u.sess)
}

// ApplicationNames lists the accessible applications.
func (u *CurrentUser) ApplicationNames(ctx context.Context) ([]string, error) {
	snap, err := u.Snapshot(ctx)
	if err != nil {
		return nil, err
	}

	return snap.ApplicationNames(), nil
}

// CanAccessApplication reports access to the named application.
func (u *CurrentUser) CanAccessApplication(ctx context.Context, name string) bool {
	snap, err := u.Snapshot(ctx)
	return err == nil && snap.CanAccessApplication(name)
}

// CanAccessTileLayer reports access to the named tile layer.
func (u *CurrentUser) CanAccessTileLayer(ctx context.Context, name string) bool {
	snap, err := u.Snapshot(ctx)
	return err == nil && snap.CanAccessTileLayer(name)
}

// CanAccessFeatureType reports access to a feature type.
func (u *CurrentUser) CanAccessFeatureType(ctx context.Context, datasource, name string) bool {
	snap, err := u.Snapshot(ctx)
	return err == nil && snap.CanAccessFeatureType(datasource, name)
}

// CanEditFeatureType reports edit access within an application,
// honouring any editFeatures restriction.
func (u *CurrentUser) CanEditFeatureType(ctx context.Context, application, datasource, name string) bool {
	snap, err := u.Snapshot(ctx)
	return err == nil && snap.CanEditFeatureType(application, datasource, name)
}

// HasRight reports whether the right is granted under the application.
func (u *CurrentUser) HasRight(ctx context.Context, right, application string) bool {
	snap, err := u.Snapshot(ctx)
	return err == nil && snap.HasRight(right, application)
}

// FeatureTypes lists the accessible feature-type descriptors of a
// datasource, optionally only the editable ones.
func (u *CurrentUser) FeatureTypes(ctx context.Context, datasource string, editableOnly bool) ([]*rights.FeatureTypeDesc, error) {
	snap, err := u.Snapshot(ctx)
	if err != nil {
		return nil, err
	}

	return snap.FeatureTypes(datasource, editableOnly), nil
}

// FeatureTypeDef returns the descriptor for one feature type, or nil.
func (u *CurrentUser) FeatureTypeDef(ctx context.Context, datasource, name string) (*rights.FeatureTypeDesc, error) {
	snap, err := u.Snapshot(ctx)
	if err != nil {
		return nil, err
	}

	return snap.FeatureType(datasource, name), nil
}

// FeatureTypeFilter returns the named compiled filter predicate of a
// feature type, or nil when not granted.
func (u *CurrentUser) FeatureTypeFilter(ctx context.Context, datasource, name, filterName string) (*filter.Predicate, error) {
	desc, err := u.FeatureTypeDef(ctx, datasource, name)
	if err != nil {
		return nil, err
	}

	return desc.Filter(filterName), nil
}

// SessionVars builds the variable environment for filter predicate
// evaluation. Server-side values win over any caller override, and
// group membership resolves lazily, at most once per request.
func (u *CurrentUser) SessionVars(ctx context.Context, overrides map[string]interface{}) filter.Resolver {
	var (
		groupsOnce sync.Once
		groups     []string
	)

	lazyGroups := func() []string {
		groupsOnce.Do(func() {
			var user models.User

			err := u.sub.db.WithContext(ctx).
				Preload("Roles").
				Where("username = ?", u.sess.Data.UserName).
				First(&user).Error
			if err != nil {
				log.Debug().Err(err).Msg("session vars: group lookup failed")
				return
			}

			groups = user.RoleNames()
		})

		return groups
	}

	return func(name string) (interface{}, bool) {
		switch name {
		case "user":
			return u.sess.Data.UserName, true
		case "roles":
			return u.sess.Data.RoleNames, true
		case "rights":
			return u.rightNames(ctx), true
		case "groups":
			return lazyGroups(), true
		}

		if v, ok := overrides[name]; ok {
			return v, true
		}

		return nil, false
	}
}

func (u *CurrentUser) rightNames(ctx context.Context) []string {
	snap, err := u.Snapshot(ctx)
	if err != nil {
		return nil
	}

	seen := make(map[string]struct{})

	var names []string

	for _, app := range snap.ApplicationNames() {
		for _, r := range snap.RightNames(app) {
			if _, ok := seen[r]; ok {
				continue
			}

			seen[r] = struct{}{}
			names = append(names, r)
		}
	}

	return names
}

// RefererBase strips the final path segment of a URL, leaving the
// base compared by the Referer check.
func RefererBase(referer string) string {
	if referer == "" {
		return ""
	}

	parsed, err := url.Parse(referer)
	if err != nil {
		return ""
	}

	parsed.RawQuery = ""
	parsed.Fragment = ""

	if i := strings.LastIndex(parsed.Path, "/"); i >= 0 {
		parsed.Path = parsed.Path[:i+1]
	}

	return parsed.String()
}
