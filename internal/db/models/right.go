package models

// Right names known to the authorization core. The rights table may
// carry more; these are the ones the evaluator treats specially.
const (
	// RightAccessApplication grants access to an application.
	RightAccessApplication = "accessApplication"
	// RightEditFeatures grants feature editing. It is the only right
	// that admits a restriction (a feature-type name list).
	RightEditFeatures = "editFeatures"
	// RightManageUsers grants access to user administration.
	RightManageUsers = "manageUsers"
)

// Right represents a grantable capability (e.g. accessApplication,
// editFeatures). Rights are bound to roles and applications through
// permissions.
type Right struct {
	// ID is the unique identifier for the right.
	ID uint `gorm:"primaryKey"`
	// Name is the unique right name.
	Name string `gorm:"unique;size:100;not null"`
	// Description provides a human-readable explanation of what this right grants.
	Description string `gorm:"size:255"`
	// Restricted marks a right as admitting a restriction list.
	// Only editFeatures is seeded with this flag.
	Restricted bool
}

// TableName specifies the database table name for the Right model.
func (Right) TableName() string {
	return "rights"
}
