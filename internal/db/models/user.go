package models

import (
	"time"
)

// User represents a user account in the system.
// Users can authenticate via any configured auth engine; local
// password authentication verifies against PasswordHash.
type User struct {
	// ID is the unique identifier for the user.
	ID uint64 `gorm:"primaryKey"`
	// Username is the unique username for login.
	Username string `gorm:"unique;size:100;not null"`
	// DisplayName is the human-readable name shown in clients.
	DisplayName string `gorm:"size:200"`
	// Email is the user's email address, if any.
	Email string `gorm:"size:255"`
	// Locked prevents the account from authenticating.
	Locked bool
	// PasswordHash is the stored password hash. The legacy format is a
	// plain MD5 hex digest; modern schemes are recognised by prefix.
	PasswordHash string `gorm:"size:255"`
	// TOTPSecret enables a second factor on the local engine when set.
	TOTPSecret string `gorm:"size:64"`
	// Roles are the roles assigned to this user.
	Roles []Role `gorm:"many2many:user_roles"`
	// CreatedAt is the timestamp when the user was created (managed by GORM).
	CreatedAt time.Time
	// UpdatedAt is the timestamp when the user was last updated (managed by GORM).
	UpdatedAt time.Time
}

// RoleNames returns the names of the user's assigned roles.
func (u *User) RoleNames() []string {
	names := make([]string, len(u.Roles))
	for i, r := range u.Roles {
		names[i] = r.Name
	}

	return names
}
