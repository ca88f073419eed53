package auth

import "errors"

var (
	// ErrUserNotFound indicates the user does not exist locally.
	ErrUserNotFound = errors.New("user not found")

	// ErrUserLocked indicates the account is locked out.
	ErrUserLocked = errors.New("user account is locked")

	// ErrInvalidPassword indicates a password mismatch.
	ErrInvalidPassword = errors.New("invalid password")

	// ErrInvalidTOTPCode indicates a missing or wrong one-time code for
	// an account with two-factor enabled.
	ErrInvalidTOTPCode = errors.New("invalid one-time code")

	// ErrUnknownEngine indicates a configured engine name has no
	// registered factory.
	ErrUnknownEngine = errors.New("unknown auth engine")

	// ErrEngineMismatch indicates a session's recorded engine is no
	// longer loaded.
	ErrEngineMismatch = errors.New("session engine is not loaded")

	// ErrNoRoles indicates the identity's roles have an empty
	// intersection with the roles known to the system.
	ErrNoRoles = errors.New("no matching roles")

	// ErrReauthFailed indicates the per-request identity re-check failed.
	ErrReauthFailed = errors.New("reauthentication failed")

	// ErrNotApplicable is returned internally by engines that cannot
	// claim the request; the authenticator treats it as a nil result.
	ErrNotApplicable = errors.New("engine does not apply to this request")
)
