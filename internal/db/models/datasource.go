package models

// DatasourceInternal is the name of the built-in datasource feature
// types are checked against by the authorization evaluator.
const DatasourceInternal = "myworld"

// Datasource is an external or internal source of feature data.
// The connection spec is opaque to the authorization core.
type Datasource struct {
	// ID is the unique identifier for the datasource.
	ID uint `gorm:"primaryKey"`
	// Name is the unique datasource name.
	Name string `gorm:"unique;size:100;not null"`
	// Type identifies the datasource driver (opaque to the core).
	Type string `gorm:"size:50"`
	// Spec is the connection spec (opaque to the core).
	Spec string
}

// TableName specifies the database table name for the Datasource model.
func (Datasource) TableName() string {
	return "datasources"
}
