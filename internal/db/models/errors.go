package models

import "errors"

var (
	// ErrRestrictionNotAllowed is returned when a permission carries a
	// restriction for a right other than editFeatures.
	ErrRestrictionNotAllowed = errors.New("restriction is only allowed for the editFeatures right")
	// ErrEmptyRestriction is returned when a permission carries an
	// empty restriction list. A restriction must be nil or non-empty.
	ErrEmptyRestriction = errors.New("restriction must be nil or a non-empty list")
)
