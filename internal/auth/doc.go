// Package auth implements the authentication engines and the
// authorization evaluator.
//
// Engines are constructed from the ordered auth.Engines configuration
// list and consulted in that order on every authentication attempt.
// Each engine extracts credentials from the request on its own (form
// fields, injected headers, an SSO callback) and returns an identity,
// a "does not apply" nil, or an error. The winning identity's role
// names are intersected with the roles known to the system before the
// session is established.
//
// The package also hosts the per-request authorization evaluator and
// the current-user facade that handlers use to query the caller's
// rights snapshot.
package auth
