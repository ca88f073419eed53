package models

// Network is a connectivity model over feature types (telecom, gas,
// water...). The core only decides visibility; tracing is elsewhere.
type Network struct {
	// ID is the unique identifier for the network.
	ID uint `gorm:"primaryKey"`
	// Name is the unique network name.
	Name string `gorm:"unique;size:100;not null"`
	// ExternalName is the name shown to users.
	ExternalName string `gorm:"size:200"`
	// Topology identifies the network engine (opaque to the core).
	Topology string `gorm:"size:50"`
	// DatasourceID references the datasource the network spans.
	DatasourceID uint `gorm:"not null"`
	// Datasource is the associated datasource.
	Datasource Datasource `gorm:"foreignKey:DatasourceID;references:ID"`
}

// TableName specifies the database table name for the Network model.
func (Network) TableName() string {
	return "networks"
}
