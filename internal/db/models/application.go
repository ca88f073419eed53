package models

// Application is a client-facing application definition. The core only
// reads the name, the visibility flags and the ordered layer bindings;
// the JS entry point is opaque.
type Application struct {
	// ID is the unique identifier for the application.
	ID uint `gorm:"primaryKey"`
	// Name is the internal application name.
	Name string `gorm:"unique;size:100;not null"`
	// ExternalName is the name shown to users.
	ExternalName string `gorm:"size:200"`
	// JSEntry is the client entry point (opaque to the core).
	JSEntry string `gorm:"size:255"`
	// ForOnline makes the application available to online clients.
	ForOnline bool
	// ForNative makes the application available to native clients.
	ForNative bool
	// Layers is the ordered list of layer bindings.
	Layers []ApplicationLayer `gorm:"foreignKey:ApplicationID;constraint:OnDelete:CASCADE"`
}

// TableName specifies the database table name for the Application model.
func (Application) TableName() string {
	return "applications"
}

// ApplicationLayer binds an application to a layer with per-binding
// read-only and snapping flags.
type ApplicationLayer struct {
	ID            uint `gorm:"primaryKey"`
	ApplicationID uint `gorm:"not null;index"`
	LayerID       uint `gorm:"not null"`
	// Layer is the bound layer.
	Layer Layer `gorm:"foreignKey:LayerID;references:ID;constraint:OnDelete:CASCADE"`
	// Position orders the binding within the application.
	Position int `gorm:"not null;default:0"`
	// ReadOnly disables editing through this binding even when the
	// feature types themselves are editable.
	ReadOnly bool
	// Snap enables snapping against this layer's geometry.
	Snap bool
}

// TableName specifies the database table name for the ApplicationLayer model.
func (ApplicationLayer) TableName() string {
	return "application_layers"
}
