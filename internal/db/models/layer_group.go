package models

// LayerGroup bundles layers for presentation. A group is exposed to a
// user with the subset of its layers the user may access.
type LayerGroup struct {
	// ID is the unique identifier for the layer group.
	ID uint `gorm:"primaryKey"`
	// Name is the unique group name.
	Name string `gorm:"unique;size:100;not null"`
	// Description provides a human-readable description.
	Description string `gorm:"size:255"`
	// Exclusive allows at most one member layer to be visible at a time.
	Exclusive bool
	// Layers are the member layers.
	Layers []Layer `gorm:"many2many:layer_group_items"`
}

// TableName specifies the database table name for the LayerGroup model.
func (LayerGroup) TableName() string {
	return "layer_groups"
}
