package models

// Query is a predefined, named query on a feature type in one language.
type Query struct {
	ID            uint `gorm:"primaryKey"`
	FeatureTypeID uint `gorm:"not null;index"`
	// Lang is the language key (e.g. "en", "de").
	Lang string `gorm:"size:10;not null;default:'en'"`
	// Value is the query text shown to and matched against user input.
	Value string `gorm:"size:255"`
	// Description is the result description template.
	Description string `gorm:"size:255"`
	// FilterName optionally scopes the query to a named filter.
	FilterName string `gorm:"size:100"`
}

// TableName specifies the database table name for the Query model.
func (Query) TableName() string {
	return "queries"
}
