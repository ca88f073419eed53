package auth

import (
	"context"
	"crypto/rsa"
	"crypto/tls"
	"crypto/x509"
	"net/http"
	"net/url"
	"sync"

	"github.com/crewjam/saml"
	"github.com/crewjam/saml/samlsp"
	"github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/dinesh-gnapitech/insite/internal/config"
	"github.com/dinesh-gnapitech/insite/internal/uniuri"
)

// EngineIDSAML names the SAML service-provider engine.
const EngineIDSAML = "saml"

// Metadata keys persisted on the session for single logout.
const (
	samlMetaNameID       = "saml_name_id"
	samlMetaSessionIndex = "saml_session_index"
)

func init() {
	Register(EngineIDSAML, func(cfg *config.Config, db *gorm.DB, opts map[string]interface{}) (Engine, error) {
		return NewSAMLEngine(SAMLOptions{
			MetadataURL:   optString(opts, "idp_metadata_url", ""),
			EntityID:      optString(opts, "entity_id", ""),
			RootURL:       optString(opts, "root_url", cfg.Webserver.URL),
			CertFile:      optString(opts, "sp_cert", ""),
			KeyFile:       optString(opts, "sp_key", ""),
			RoleAttribute: optString(opts, "role_attribute", "roles"),
		})
	})
}

// SAMLOptions configure the SAML engine.
type SAMLOptions struct {
	// MetadataURL is where the IdP's metadata document is fetched from.
	MetadataURL string
	EntityID    string
	// RootURL is this server's externally visible base URL; the ACS
	// endpoint is derived from it.
	RootURL  string
	CertFile string
	KeyFile  string
	// RoleAttribute is the assertion attribute carrying role names.
	RoleAttribute string
}

// SAMLEngine is an SSO-only SAML service provider. IdP metadata is
// fetched lazily on first use.
type SAMLEngine struct {
	opts SAMLOptions

	once    sync.Once
	initErr error
	sp      *saml.ServiceProvider
}

// NewSAMLEngine creates the SAML engine.
func NewSAMLEngine(opts SAMLOptions) (*SAMLEngine, error) {
	if opts.MetadataURL == "" {
		return nil, errors.New("saml: idp_metadata_url is required")
	}

	return &SAMLEngine{opts: opts}, nil
}

func (e *SAMLEngine) provider(ctx context.Context) (*saml.ServiceProvider, error) {
	e.once.Do(func() {
		metadata, err := samlsp.FetchMetadata(ctx, http.DefaultClient, mustParseURL(e.opts.MetadataURL))
		if err != nil {
			e.initErr = errors.Wrap(err, "saml: metadata fetch failed")
			return
		}

		root, err := url.Parse(e.opts.RootURL)
		if err != nil {
			e.initErr = errors.Wrap(err, "saml: invalid root_url")
			return
		}

		sp := &saml.ServiceProvider{
			EntityID:          e.opts.EntityID,
			AcsURL:            *root.JoinPath("auth", "sso", EngineIDSAML),
			SloURL:            *root.JoinPath("auth", "slo", EngineIDSAML),
			MetadataURL:       *root.JoinPath("auth", "metadata", EngineIDSAML),
			IDPMetadata:       metadata,
			AllowIDPInitiated: true,
		}

		if e.opts.CertFile != "" {
			pair, err := tls.LoadX509KeyPair(e.opts.CertFile, e.opts.KeyFile)
			if err != nil {
				e.initErr = errors.Wrap(err, "saml: sp keypair load failed")
				return
			}

			sp.Key = pair.PrivateKey.(*rsa.PrivateKey)
			sp.Certificate, _ = x509.ParseCertificate(pair.Certificate[0])
		}

		e.sp = sp
	})

	return e.sp, e.initErr
}

// ID implements Engine.
func (e *SAMLEngine) ID() string { return EngineIDSAML }

// AuthFields implements Engine.
func (e *SAMLEngine) AuthFields() []Field { return nil }

// AuthControls implements Engine.
func (e *SAMLEngine) AuthControls() []Control {
	return []Control{{ID: "saml_sso", Label: "Sign in with SAML", Action: "/auth/sso/" + EngineIDSAML}}
}

// SingleSignOn builds the IdP redirect URL that starts the flow.
func (e *SAMLEngine) SingleSignOn(ctx context.Context, req *Request) (string, error) {
	sp, err := e.provider(ctx)
	if err != nil {
		return "", err
	}

	authnReq, err := sp.MakeAuthenticationRequest(
		sp.GetSSOBindingLocation(saml.HTTPRedirectBinding),
		saml.HTTPRedirectBinding, saml.HTTPPostBinding)
	if err != nil {
		return "", errors.Wrap(err, "saml: authentication request failed")
	}

	redirect, err := authnReq.Redirect(req.Query("redirect_to"), sp)
	if err != nil {
		return "", errors.Wrap(err, "saml: redirect construction failed")
	}

	return redirect.String(), nil
}

// Authenticate validates a POSTed SAMLResponse. Requests without one
// are not claimed, so other engines may try.
func (e *SAMLEngine) Authenticate(ctx context.Context, req *Request) (*Identity, error) {
	if req.Method != http.MethodPost || req.Form("SAMLResponse") == "" || req.HTTP == nil {
		return nil, nil
	}

	sp, err := e.provider(ctx)
	if err != nil {
		return nil, err
	}

	assertion, err := sp.ParseResponse(req.HTTP, nil)
	if err != nil {
		return nil, errors.Wrap(err, "saml: response validation failed")
	}

	return e.identityFrom(assertion), nil
}

// ReAuthenticate trusts the assertion issued at login; the IdP is not
// consulted per request.
func (e *SAMLEngine) ReAuthenticate(ctx context.Context, prior *Identity, req *Request) (*Identity, error) {
	return prior, nil
}

// Logout builds the IdP single-logout redirect when the session
// recorded a name-id.
func (e *SAMLEngine) Logout(ctx context.Context, metadata map[string]string) (string, error) {
	nameID := metadata[samlMetaNameID]
	if nameID == "" {
		return "", nil
	}

	sp, err := e.provider(ctx)
	if err != nil {
		return "", err
	}

	redirect, err := sp.MakeRedirectLogoutRequest(nameID, "")
	if err != nil {
		return "", errors.Wrap(err, "saml: logout request failed")
	}

	return redirect.String(), nil
}

func (e *SAMLEngine) identityFrom(assertion *saml.Assertion) *Identity {
	ident := &Identity{Metadata: map[string]string{}}

	if assertion.Subject != nil && assertion.Subject.NameID != nil {
		ident.UserName = assertion.Subject.NameID.Value
		ident.Metadata[samlMetaNameID] = assertion.Subject.NameID.Value
	}

	for _, stmt := range assertion.AuthnStatements {
		if stmt.SessionIndex != "" {
			ident.Metadata[samlMetaSessionIndex] = stmt.SessionIndex
		}
	}

	for _, stmt := range assertion.AttributeStatements {
		for _, attr := range stmt.Attributes {
			if attr.Name != e.opts.RoleAttribute && attr.FriendlyName != e.opts.RoleAttribute {
				continue
			}

			for _, v := range attr.Values {
				if v.Value != "" {
					ident.RoleNames = append(ident.RoleNames, v.Value)
				}
			}
		}
	}

	return ident
}

func mustParseURL(raw string) url.URL {
	u, err := url.Parse(raw)
	if err != nil {
		return url.URL{}
	}

	return *u
}

// NewStateToken returns a random URL-safe token for OAuth2/SSO state.
func NewStateToken() (string, error) {
	return uniuri.NewLen(32), nil //nolint:mnd
}
