package models

// SettingConfigVersion is the settings key carrying the configuration
// version stamp. The configuration editor bumps it on every save;
// rights snapshots are pinned to the value read at build time.
const SettingConfigVersion = "config_version"

// Setting is a server-wide key/value setting.
type Setting struct {
	// Key is the unique setting name.
	Key string `gorm:"primaryKey;size:100"`
	// Value is the setting value as text.
	Value string `gorm:"size:255"`
}

// TableName specifies the database table name for the Setting model.
func (Setting) TableName() string {
	return "settings"
}
