package daemon

import (
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/dinesh-gnapitech/insite/internal/auth"
	"github.com/dinesh-gnapitech/insite/internal/config"
	"github.com/dinesh-gnapitech/insite/internal/db/models"
)

// seed creates the built-in rights, the admin role and the default
// admin user on an empty database.
func seed(_ *config.Config, db *gorm.DB) {
	for _, name := range []string{
		models.RightAccessApplication,
		models.RightEditFeatures,
		models.RightManageUsers,
	} {
		right := models.Right{Name: name, Restricted: name == models.RightEditFeatures}
		if err := db.Where("name = ?", name).FirstOrCreate(&right).Error; err != nil {
			log.Error().Err(err).Str("right", name).Msg("seeding right failed")
		}
	}

	var count int64

	db.Model(&models.User{}).Count(&count)

	if count > 0 {
		return
	}

	admin := models.Role{Name: "admin"}
	if err := db.Where("name = ?", admin.Name).FirstOrCreate(&admin).Error; err != nil {
		log.Error().Err(err).Msg("seeding admin role failed")
		return
	}

	// change this password after first login
	user := models.User{
		Username:     "admin",
		PasswordHash: auth.HashMD5("changeme"),
		Roles:        []models.Role{admin},
	}
	if err := db.Create(&user).Error; err != nil {
		log.Error().Err(err).Msg("seeding admin user failed")
	}
}
