package models

// Layer categories and types distinguished by the rights snapshot.
const (
	// LayerCategoryOverlay is a selectable overlay layer.
	LayerCategoryOverlay = "overlay"
	// LayerCategoryBasemap is a background layer.
	LayerCategoryBasemap = "basemap"

	// LayerTypeVector renders features from a datasource.
	LayerTypeVector = "vector"
	// LayerTypeTile serves pre-rendered tiles.
	LayerTypeTile = "tile"
)

// Layer is a renderable map layer. The rendering spec is opaque to the
// authorization core; the code is the short stable key clients use.
type Layer struct {
	// ID is the unique identifier for the layer.
	ID uint `gorm:"primaryKey"`
	// Code is the short stable key for the layer.
	Code string `gorm:"unique;size:50;not null"`
	// Name is the layer display name.
	Name string `gorm:"unique;size:200;not null"`
	// DatasourceID references the datasource serving this layer.
	DatasourceID uint `gorm:"not null"`
	// Datasource is the associated datasource.
	Datasource Datasource `gorm:"foreignKey:DatasourceID;references:ID"`
	// Category is overlay or basemap.
	Category string `gorm:"size:20;not null;default:'overlay'"`
	// Type is vector or tile.
	Type string `gorm:"size:20;not null;default:'vector'"`
	// Rendering is the rendering spec (opaque to the core).
	Rendering string
	// Features is the ordered list of feature-type bindings.
	Features []LayerFeature `gorm:"foreignKey:LayerID;constraint:OnDelete:CASCADE"`
}

// TableName specifies the database table name for the Layer model.
func (Layer) TableName() string {
	return "layers"
}

// LayerFeature binds a layer to a feature type with a zoom range for
// selection and an optional filter-name reference. A binding without a
// filter name grants the universal (unfiltered) view of the type.
type LayerFeature struct {
	ID      uint `gorm:"primaryKey"`
	LayerID uint `gorm:"not null;index"`
	// FeatureTypeID references the bound feature type.
	FeatureTypeID uint `gorm:"not null"`
	// FeatureType is the bound feature type.
	FeatureType FeatureType `gorm:"foreignKey:FeatureTypeID;references:ID;constraint:OnDelete:CASCADE"`
	// Position orders the binding within the layer.
	Position int `gorm:"not null;default:0"`
	// MinSelect is the minimum zoom level at which features are selectable.
	MinSelect int
	// MaxSelect is the maximum zoom level at which features are selectable.
	MaxSelect int
	// FilterName names the feature-type filter granted through this
	// binding; empty means the universal filter.
	FilterName string `gorm:"size:100"`
}

// TableName specifies the database table name for the LayerFeature model.
func (LayerFeature) TableName() string {
	return "layer_features"
}
