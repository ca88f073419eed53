package config

import (
	"time"

	"github.com/dinesh-gnapitech/insite/internal/logger"
)

// Session settings.
type Session struct {
	ExpiryTime time.Duration
}

// Config overall data structure.
type Config struct {
	DevMode   bool // enable dev mode for development
	DB        DB
	Log       logger.Log
	Title     string
	Webserver Webserver
	Auth      Auth
}

// Webserver implement webserver settings.
type Webserver struct {
	CleanPath           bool    // use clean path middleware to allow multi slash requests
	DisableRecover      bool    // disable recover middleware
	Domain              string  // domain name for the webserver
	Port                int     // listening port for the webserver
	ShutDownTime        int     // wait time for shutdown
	URL                 string  // base url for the webserver
	CookieEncryptionKey string  // encryption key for sealed cookies (auto-login)
	Session             Session // session settings
}

// Auth groups the authentication option blocks.
type Auth struct {
	Options     AuthOptions
	LoginCookie LoginCookie
	// Engines is the ordered list of engine names to load. Order is
	// the dispatch order of the authenticator.
	Engines []string
	// Engine holds per-engine option blocks, keyed by engine name.
	// Contents are opaque to the core and passed through to the engine
	// at construction.
	Engine map[string]map[string]interface{}
}

// AuthOptions are the core authentication/authorization options.
type AuthOptions struct {
	LogLevel string
	// TimeoutHours enforces idle session expiry when > 0.
	TimeoutHours float64
	// EnableCSRFGetCheck extends the CSRF token check to GET requests.
	EnableCSRFGetCheck bool
	// EnableRefererCheck validates the Referer base on endpoints that
	// explicitly skip the CSRF check.
	EnableRefererCheck bool
	// DisableReauthCheck skips per-request re-authentication against
	// the winning engine.
	DisableReauthCheck bool
	// DisableCSRFCheck logs and accepts CSRF mismatches (development only).
	DisableCSRFCheck bool
}

// LoginCookie configures the sealed auto-login cookie.
type LoginCookie struct {
	Enabled      bool
	AutoLogin    bool
	TimeoutHours float64
}

// EngineOptions returns the opaque option block for the named engine,
// never nil.
func (a *Auth) EngineOptions(name string) map[string]interface{} {
	if opts, ok := a.Engine[name]; ok {
		return opts
	}

	return map[string]interface{}{}
}
