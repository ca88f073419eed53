package models

// Filter is a named row-level predicate on a feature type. The
// expression is compiled to a predicate AST when a rights snapshot is
// built; see the filter package for the expression language.
type Filter struct {
	ID            uint `gorm:"primaryKey"`
	FeatureTypeID uint `gorm:"not null;index;uniqueIndex:idx_filters_type_name"`
	// Name identifies the filter within its feature type.
	Name string `gorm:"size:100;not null;uniqueIndex:idx_filters_type_name"`
	// Expression is the filter predicate source text, e.g.
	// "[owner] = {user} & [status] <> 'retired'".
	Expression string `gorm:"not null"`
}

// TableName specifies the database table name for the Filter model.
func (Filter) TableName() string {
	return "filters"
}
