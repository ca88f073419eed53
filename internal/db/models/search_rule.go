package models

// SearchRule indexes a feature type for text search in one language.
type SearchRule struct {
	ID            uint `gorm:"primaryKey"`
	FeatureTypeID uint `gorm:"not null;index"`
	// Lang is the language key (e.g. "en", "de").
	Lang string `gorm:"size:10;not null;default:'en'"`
	// MatchValue is the searched text template (opaque to the core).
	MatchValue string `gorm:"size:255"`
	// MatchDescription is the result description template.
	MatchDescription string `gorm:"size:255"`
}

// TableName specifies the database table name for the SearchRule model.
func (SearchRule) TableName() string {
	return "search_rules"
}
