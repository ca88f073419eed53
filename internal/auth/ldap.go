package auth

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/go-ldap/ldap/v3"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"
	"gorm.io/gorm"

	"github.com/dinesh-gnapitech/insite/internal/config"
)

// EngineIDLDAP names the LDAP / Active Directory engine.
const EngineIDLDAP = "ldap"

const defaultLDAPTimeout = 10 * time.Second

func init() {
	Register(EngineIDLDAP, func(cfg *config.Config, db *gorm.DB, opts map[string]interface{}) (Engine, error) {
		return NewLDAPEngine(LDAPOptions{
			URL:          optString(opts, "url", "ldap://localhost:389"),
			StartTLS:     optBool(opts, "start_tls", false),
			SkipVerify:   optBool(opts, "skip_verify", false),
			BindDN:       optString(opts, "bind_dn", ""),
			BindPassword: optString(opts, "bind_password", ""),
			BaseDN:       optString(opts, "base_dn", ""),
			UserAttr:     optString(opts, "user_attr", "sAMAccountName"),
			GroupAttr:    optString(opts, "group_attr", "memberOf"),
			Nested:       optBool(opts, "nested_groups", false),
			Timeout:      time.Duration(optInt(opts, "timeout_seconds", 0)) * time.Second,
		})
	})
}

// LDAPOptions configure the LDAP engine.
type LDAPOptions struct {
	URL          string
	StartTLS     bool
	SkipVerify   bool
	BindDN       string
	BindPassword string
	BaseDN       string
	// UserAttr is the attribute matched against the login name.
	UserAttr string
	// GroupAttr is the membership attribute walked for role names.
	GroupAttr string
	// Nested walks group-of-group membership recursively.
	Nested  bool
	Timeout time.Duration
}

// LDAPEngine authenticates against an LDAP directory. A service
// connection bound with BindDN resolves the user's DN and group
// membership; the user's own credentials are verified with a separate
// bind. The service connection is reconnected lazily, single-flight
// per engine.
type LDAPEngine struct {
	opts LDAPOptions

	mu      sync.Mutex
	conn    *ldap.Conn
	dialing singleflight.Group
}

// NewLDAPEngine creates the LDAP engine.
func NewLDAPEngine(opts LDAPOptions) (*LDAPEngine, error) {
	if opts.BaseDN == "" {
		return nil, errors.New("ldap: base_dn is required")
	}

	if opts.Timeout <= 0 {
		opts.Timeout = defaultLDAPTimeout
	}

	return &LDAPEngine{opts: opts}, nil
}

// ID implements Engine.
func (e *LDAPEngine) ID() string { return EngineIDLDAP }

// AuthFields implements Engine.
func (e *LDAPEngine) AuthFields() []Field {
	return []Field{
		{ID: "user", Label: "Username", Type: "text"},
		{ID: "pass", Label: "Password", Type: "password"},
	}
}

// AuthControls implements Engine.
func (e *LDAPEngine) AuthControls() []Control { return nil }

// Authenticate resolves the user through the service connection and
// verifies the password with a user bind.
func (e *LDAPEngine) Authenticate(ctx context.Context, req *Request) (*Identity, error) {
	username := req.Form("user")
	password := req.Form("pass")

	if username == "" || password == "" {
		return nil, nil
	}

	entry, err := e.findUser(username)
	if err != nil {
		return nil, err
	}

	if err := e.bindUser(entry.DN, password); err != nil {
		return nil, err
	}

	groups, err := e.resolveGroups(entry)
	if err != nil {
		return nil, err
	}

	return &Identity{UserName: username, RoleNames: groups}, nil
}

// ReAuthenticate confirms the directory still knows the user and
// refreshes group membership. The password is not re-checked.
func (e *LDAPEngine) ReAuthenticate(ctx context.Context, prior *Identity, req *Request) (*Identity, error) {
	entry, err := e.findUser(prior.UserName)
	if err != nil {
		return nil, err
	}

	groups, err := e.resolveGroups(entry)
	if err != nil {
		return nil, err
	}

	return &Identity{UserName: prior.UserName, RoleNames: groups}, nil
}

// service returns a live service connection, dialing one when needed.
// Concurrent callers share a single dial.
func (e *LDAPEngine) service() (*ldap.Conn, error) {
	e.mu.Lock()
	conn := e.conn
	e.mu.Unlock()

	if conn != nil && !conn.IsClosing() {
		return conn, nil
	}

	v, err, _ := e.dialing.Do("dial", func() (interface{}, error) {
		fresh, dialErr := e.dial()
		if dialErr != nil {
			return nil, dialErr
		}

		if e.opts.BindDN != "" {
			if bindErr := fresh.Bind(e.opts.BindDN, e.opts.BindPassword); bindErr != nil {
				fresh.Close()
				return nil, errors.Wrap(bindErr, "ldap: service bind failed")
			}
		}

		e.mu.Lock()
		if e.conn != nil && !e.conn.IsClosing() {
			e.conn.Close()
		}
		e.conn = fresh
		e.mu.Unlock()

		return fresh, nil
	})
	if err != nil {
		return nil, err
	}

	return v.(*ldap.Conn), nil
}

func (e *LDAPEngine) dial() (*ldap.Conn, error) {
	conn, err := ldap.DialURL(e.opts.URL,
		ldap.DialWithDialer(&net.Dialer{Timeout: e.opts.Timeout}))
	if err != nil {
		return nil, errors.Wrap(err, "ldap: dial failed")
	}

	conn.SetTimeout(e.opts.Timeout)

	if e.opts.StartTLS {
		tlsCfg := &tls.Config{InsecureSkipVerify: e.opts.SkipVerify} //nolint:gosec
		if err := conn.StartTLS(tlsCfg); err != nil {
			conn.Close()
			return nil, errors.Wrap(err, "ldap: starttls failed")
		}
	}

	return conn, nil
}

// findUser searches for the login name, retrying once on a dropped
// service connection.
func (e *LDAPEngine) findUser(username string) (*ldap.Entry, error) {
	result, err := e.searchUser(username)
	if err != nil {
		// the service connection may have idled out; drop and retry once
		log.Warn().Err(err).Msg("ldap search failed, reconnecting")

		e.mu.Lock()
		if e.conn != nil {
			e.conn.Close()
			e.conn = nil
		}
		e.mu.Unlock()

		result, err = e.searchUser(username)
		if err != nil {
			return nil, err
		}
	}

	if len(result.Entries) != 1 {
		return nil, ErrUserNotFound
	}

	return result.Entries[0], nil
}

func (e *LDAPEngine) searchUser(username string) (*ldap.SearchResult, error) {
	conn, err := e.service()
	if err != nil {
		return nil, err
	}

	search := ldap.NewSearchRequest(
		e.opts.BaseDN,
		ldap.ScopeWholeSubtree, ldap.NeverDerefAliases, 0, int(e.opts.Timeout.Seconds()), false,
		fmt.Sprintf("(%s=%s)", e.opts.UserAttr, ldap.EscapeFilter(username)),
		[]string{"dn", e.opts.GroupAttr},
		nil,
	)

	result, err := conn.Search(search)
	if err != nil {
		return nil, errors.Wrap(err, "ldap: user search failed")
	}

	return result, nil
}

// bindUser verifies the password on its own connection so the service
// bind is never disturbed.
func (e *LDAPEngine) bindUser(dn, password string) error {
	conn, err := e.dial()
	if err != nil {
		return err
	}
	defer conn.Close()

	if err := conn.Bind(dn, password); err != nil {
		return ErrInvalidPassword
	}

	return nil
}

// resolveGroups extracts group CNs from the membership attribute,
// walking nested groups when configured.
func (e *LDAPEngine) resolveGroups(entry *ldap.Entry) ([]string, error) {
	direct := entry.GetAttributeValues(e.opts.GroupAttr)

	seen := make(map[string]struct{})

	var names []string

	add := func(dn string) bool {
		if _, ok := seen[dn]; ok {
			return false
		}

		seen[dn] = struct{}{}

		if cn := firstCN(dn); cn != "" {
			names = append(names, cn)
		}

		return true
	}

	queue := append([]string(nil), direct...)

	for len(queue) > 0 {
		dn := queue[0]
		queue = queue[1:]

		if !add(dn) || !e.opts.Nested {
			continue
		}

		parents, err := e.groupParents(dn)
		if err != nil {
			return nil, err
		}

		queue = append(queue, parents...)
	}

	return names, nil
}

func (e *LDAPEngine) groupParents(groupDN string) ([]string, error) {
	conn, err := e.service()
	if err != nil {
		return nil, err
	}

	search := ldap.NewSearchRequest(
		groupDN,
		ldap.ScopeBaseObject, ldap.NeverDerefAliases, 0, int(e.opts.Timeout.Seconds()), false,
		"(objectClass=*)",
		[]string{e.opts.GroupAttr},
		nil,
	)

	result, err := conn.Search(search)
	if err != nil {
		return nil, errors.Wrap(err, "ldap: group search failed")
	}

	if len(result.Entries) == 0 {
		return nil, nil
	}

	return result.Entries[0].GetAttributeValues(e.opts.GroupAttr), nil
}

// firstCN returns the leading CN component of a DN, or "" when the DN
// has none.
func firstCN(dn string) string {
	parsed, err := ldap.ParseDN(dn)
	if err != nil || len(parsed.RDNs) == 0 {
		return ""
	}

	for _, attr := range parsed.RDNs[0].Attributes {
		if attr.Type == "CN" || attr.Type == "cn" {
			return attr.Value
		}
	}

	return ""
}
