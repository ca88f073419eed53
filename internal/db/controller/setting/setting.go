// Package setting provides typed access to server-wide settings,
// including the configuration version stamp that keys the rights
// snapshot cache.
package setting

import (
	"errors"
	"strconv"

	"gorm.io/gorm"

	"github.com/dinesh-gnapitech/insite/internal/db/models"
)

const keyQueryPattern = "key = ?"

var (
	// ErrSettingNotFound is returned when a setting is not found.
	ErrSettingNotFound = errors.New("setting not found")
	// ErrSettingKeyEmpty is returned when the setting key is empty.
	ErrSettingKeyEmpty = errors.New("setting key cannot be empty")
	// ErrDBNil is returned when the database connection is nil.
	ErrDBNil = errors.New("database connection is nil")
)

// Get retrieves a setting by its key.
func Get(db *gorm.DB, key string) (*models.Setting, error) {
	if db == nil {
		return nil, ErrDBNil
	}

	if key == "" {
		return nil, ErrSettingKeyEmpty
	}

	var setting models.Setting

	result := db.Where(keyQueryPattern, key).First(&setting)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrSettingNotFound
		}

		return nil, result.Error
	}

	return &setting, nil
}

// GetAll retrieves all settings.
func GetAll(db *gorm.DB) ([]models.Setting, error) {
	if db == nil {
		return nil, ErrDBNil
	}

	var settings []models.Setting

	result := db.Order("key ASC").Find(&settings)
	if result.Error != nil {
		return nil, result.Error
	}

	return settings, nil
}

// Set creates or updates a setting.
func Set(db *gorm.DB, key, value string) error {
	if db == nil {
		return ErrDBNil
	}

	if key == "" {
		return ErrSettingKeyEmpty
	}

	return db.Save(&models.Setting{Key: key, Value: value}).Error
}

// Delete removes a setting by key.
func Delete(db *gorm.DB, key string) error {
	if db == nil {
		return ErrDBNil
	}

	if key == "" {
		return ErrSettingKeyEmpty
	}

	result := db.Where(keyQueryPattern, key).Delete(&models.Setting{})
	if result.Error != nil {
		return result.Error
	}

	if result.RowsAffected == 0 {
		return ErrSettingNotFound
	}

	return nil
}

// ConfigVersion reads the current configuration version stamp.
// A missing setting reads as version 0.
func ConfigVersion(db *gorm.DB) (int, error) {
	s, err := Get(db, models.SettingConfigVersion)
	if err != nil {
		if errors.Is(err, ErrSettingNotFound) {
			return 0, nil
		}

		return 0, err
	}

	return strconv.Atoi(s.Value) //nolint:wrapcheck
}

// BumpConfigVersion increments the configuration version stamp.
// Called after any change that affects what a role set may see, so
// rights snapshots keyed on the old version are superseded.
func BumpConfigVersion(db *gorm.DB) (int, error) {
	v, err := ConfigVersion(db)
	if err != nil {
		return 0, err
	}

	v++

	if err := Set(db, models.SettingConfigVersion, strconv.Itoa(v)); err != nil {
		return 0, err
	}

	return v, nil
}
