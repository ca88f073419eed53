package models

import (
	"github.com/go-playground/validator/v10"
)

// permissionValidate validates permission shapes at config-write time.
var permissionValidate = validator.New() //nolint:gochecknoglobals

// Permission grants one right within one application to one role.
// The optional restriction narrows an editFeatures grant to a list of
// feature-type names; all other rights reject any restriction.
type Permission struct {
	// ID is the unique identifier for the permission.
	ID uint `gorm:"primaryKey"`
	// RoleID is the role receiving the grant.
	RoleID uint `gorm:"not null;index"`
	// Role is the associated role.
	Role Role `gorm:"foreignKey:RoleID;references:ID;constraint:OnDelete:CASCADE"`
	// RightID is the granted right.
	RightID uint `gorm:"not null"`
	// Right is the associated right.
	Right Right `gorm:"foreignKey:RightID;references:ID;constraint:OnDelete:CASCADE"`
	// ApplicationID is the application the grant applies to.
	ApplicationID uint `gorm:"not null"`
	// Application is the associated application.
	Application Application `gorm:"foreignKey:ApplicationID;references:ID;constraint:OnDelete:CASCADE"`
	// Restriction is either nil or a non-empty list of feature-type
	// names. Any other shape is invalid and blocks the config save.
	Restriction []string `gorm:"serializer:json" validate:"omitempty,min=1,dive,required"`
}

// TableName specifies the database table name for the Permission model.
func (Permission) TableName() string {
	return "permissions"
}

// Validate checks the permission shape. It is called by the
// configuration editor before a save is accepted.
func (p *Permission) Validate() error {
	if err := permissionValidate.Struct(p); err != nil {
		return err //nolint:wrapcheck
	}

	// nil means unrestricted; an empty list is a malformed grant
	if p.Restriction != nil && len(p.Restriction) == 0 {
		return ErrEmptyRestriction
	}

	if p.Restriction != nil && p.Right.Name != RightEditFeatures {
		return ErrRestrictionNotAllowed
	}

	return nil
}
