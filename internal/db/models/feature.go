package models

// FeatureType describes one feature type of a datasource: its key and
// geometry fields, behaviour flags, field layout and the named filters,
// search rules and queries defined on it.
type FeatureType struct {
	// ID is the unique identifier for the feature type.
	ID uint `gorm:"primaryKey"`
	// DatasourceID references the owning datasource.
	DatasourceID uint `gorm:"not null;index;uniqueIndex:idx_feature_types_ds_name"`
	// Datasource is the owning datasource.
	Datasource Datasource `gorm:"foreignKey:DatasourceID;references:ID"`
	// Name is the internal feature-type name, unique per datasource.
	Name string `gorm:"size:100;not null;uniqueIndex:idx_feature_types_ds_name"`
	// ExternalName is the name shown to users.
	ExternalName string `gorm:"size:200"`
	// KeyField is the name of the key field.
	KeyField string `gorm:"size:100;not null"`
	// GeometryField is the primary geometry field name; nil for
	// geometry-less types.
	GeometryField *string `gorm:"size:100"`
	// Editable allows feature editing (subject to rights).
	Editable bool
	// Versioned keeps full version history for features of this type.
	Versioned bool
	// TrackChanges records change sets for replication.
	TrackChanges bool
	// GeomIndexed maintains a spatial index on the geometry field.
	GeomIndexed bool
	// Fields is the ordered field list.
	Fields []FeatureField `gorm:"foreignKey:FeatureTypeID;constraint:OnDelete:CASCADE"`
	// FieldGroups is the field-group layout.
	FieldGroups []FieldGroup `gorm:"foreignKey:FeatureTypeID;constraint:OnDelete:CASCADE"`
	// Filters are the named row-level filters defined on this type.
	Filters []Filter `gorm:"foreignKey:FeatureTypeID;constraint:OnDelete:CASCADE"`
	// SearchRules index this type for text search, per language.
	SearchRules []SearchRule `gorm:"foreignKey:FeatureTypeID;constraint:OnDelete:CASCADE"`
	// Queries are the predefined queries on this type, per language.
	Queries []Query `gorm:"foreignKey:FeatureTypeID;constraint:OnDelete:CASCADE"`
}

// TableName specifies the database table name for the FeatureType model.
func (FeatureType) TableName() string {
	return "feature_types"
}

// FeatureField describes one field of a feature type.
type FeatureField struct {
	ID            uint `gorm:"primaryKey"`
	FeatureTypeID uint `gorm:"not null;index"`
	// Position orders the field within the type.
	Position int `gorm:"not null;default:0"`
	// Name is the field name, unique within the type.
	Name string `gorm:"size:100;not null"`
	// Type is the field data type (string, integer, double, ...).
	Type string `gorm:"size:50;not null"`
	// Mandatory requires a value on insert.
	Mandatory bool
	// Default is the default value expression, if any.
	Default string `gorm:"size:255"`
	// Indexed maintains an attribute index on this field.
	Indexed bool
	// Enumerator names the pick list serving this field, if any.
	Enumerator string `gorm:"size:100"`
	// Unit is the display unit, if any.
	Unit string `gorm:"size:30"`
	// Scale is the display scale factor applied with Unit.
	Scale float64
	// Min is the minimum accepted value for numeric fields.
	Min *float64
	// Max is the maximum accepted value for numeric fields.
	Max *float64
}

// TableName specifies the database table name for the FeatureField model.
func (FeatureField) TableName() string {
	return "feature_fields"
}

// FieldGroup lays out fields of a feature type for display.
type FieldGroup struct {
	ID            uint `gorm:"primaryKey"`
	FeatureTypeID uint `gorm:"not null;index"`
	// Name is the group title.
	Name string `gorm:"size:100;not null"`
	// Position orders the group.
	Position int `gorm:"not null;default:0"`
	// Expanded opens the group by default.
	Expanded bool
	// Fields is the ordered list of member field names.
	Fields []string `gorm:"serializer:json"`
}

// TableName specifies the database table name for the FieldGroup model.
func (FieldGroup) TableName() string {
	return "field_groups"
}
