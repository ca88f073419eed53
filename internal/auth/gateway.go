package auth

import (
	"context"
	"strings"

	"gorm.io/gorm"

	"github.com/dinesh-gnapitech/insite/internal/config"
)

// EngineIDGateway names the trusted-gateway header engine.
const EngineIDGateway = "gateway"

// Default header names injected by the fronting gateway.
const (
	DefaultUserHeader   = "MYW-User"
	DefaultGroupsHeader = "MYW-Groups"
)

func init() {
	Register(EngineIDGateway, func(cfg *config.Config, db *gorm.DB, opts map[string]interface{}) (Engine, error) {
		return NewGatewayEngine(
			optString(opts, "user_header", DefaultUserHeader),
			optString(opts, "groups_header", DefaultGroupsHeader),
		), nil
	})
}

// GatewayEngine trusts identity headers injected by a fronting
// gateway. The headers must be present on every request; there is no
// interactive login.
type GatewayEngine struct {
	userHeader   string
	groupsHeader string
}

// NewGatewayEngine creates the gateway-header engine.
func NewGatewayEngine(userHeader, groupsHeader string) *GatewayEngine {
	return &GatewayEngine{userHeader: userHeader, groupsHeader: groupsHeader}
}

// ID implements Engine.
func (e *GatewayEngine) ID() string { return EngineIDGateway }

// AuthFields implements Engine.
func (e *GatewayEngine) AuthFields() []Field { return nil }

// AuthControls implements Engine.
func (e *GatewayEngine) AuthControls() []Control { return nil }

// Authenticate claims the request when both configured headers are
// present.
func (e *GatewayEngine) Authenticate(ctx context.Context, req *Request) (*Identity, error) {
	user := req.Header(e.userHeader)
	groups := req.Header(e.groupsHeader)

	if user == "" || groups == "" {
		return nil, nil
	}

	return &Identity{UserName: user, RoleNames: ParseGroupHeader(groups)}, nil
}

// ReAuthenticate requires the headers on every request and the user to
// match the one recorded at login.
func (e *GatewayEngine) ReAuthenticate(ctx context.Context, prior *Identity, req *Request) (*Identity, error) {
	ident, err := e.Authenticate(ctx, req)
	if err != nil {
		return nil, err
	}

	if ident == nil || ident.UserName != prior.UserName {
		return nil, ErrReauthFailed
	}

	return ident, nil
}

// ParseGroupHeader extracts group names from the gateway's group
// header. Entries are semicolon or comma separated and may be either
// bare names or full DNs, in which case the leading CN is taken.
func ParseGroupHeader(value string) []string {
	split := func(r rune) bool { return r == ';' || r == ',' }

	var groups []string

	for _, entry := range strings.FieldsFunc(value, split) {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}

		if eq := strings.Index(entry, "="); eq >= 0 {
			if !strings.EqualFold(entry[:eq], "cn") {
				// a non-CN DN component from a split full DN
				continue
			}

			entry = entry[eq+1:]
		}

		groups = append(groups, entry)
	}

	return groups
}
