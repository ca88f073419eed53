// Package daemon wires the configuration database, the session
// storage backend and the web service into a running server.
package daemon

import (
	"fmt"

	"github.com/gofiber/storage"
	"github.com/gofiber/storage/memory"
	sessionmysql "github.com/gofiber/storage/mysql"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/glebarez/sqlite"
	gormmysql "gorm.io/driver/mysql"
	gormpostgres "gorm.io/driver/postgres"

	"github.com/dinesh-gnapitech/insite/internal/config"
	"github.com/dinesh-gnapitech/insite/internal/db/dsn"
	"github.com/dinesh-gnapitech/insite/internal/db/models"
	"github.com/dinesh-gnapitech/insite/internal/web"
)

// Daemon represents the main application daemon.
type Daemon struct {
	webService *web.Service
	cfg        *config.Config
}

// Start starts the Daemon's web service.
func (d *Daemon) Start() error {
	addr := fmt.Sprintf("%s:%d", d.cfg.Webserver.Domain, d.cfg.Webserver.Port)

	go d.webService.WaitShutdown()

	return d.webService.Start(addr)
}

// New creates a new Daemon instance with the provided configuration.
func New(cfg *config.Config) *Daemon {
	if cfg == nil {
		log.Fatal().Msg("config is nil")
		return nil
	}

	db := openDB(cfg)

	if err := db.AutoMigrate(
		&models.User{},
		&models.Role{},
		&models.Right{},
		&models.Permission{},
		&models.Application{},
		&models.ApplicationLayer{},
		&models.Datasource{},
		&models.Layer{},
		&models.LayerFeature{},
		&models.LayerGroup{},
		&models.Network{},
		&models.FeatureType{},
		&models.FeatureField{},
		&models.FieldGroup{},
		&models.Filter{},
		&models.SearchRule{},
		&models.Query{},
		&models.Setting{},
	); err != nil {
		log.Fatal().Err(err).Msg("database migration failed")
	}

	seed(cfg, db)

	webService, err := web.New(cfg, db, sessionStorage(cfg))
	if err != nil {
		log.Fatal().Err(err).Msg("web service init failed")
	}

	return &Daemon{webService: webService, cfg: cfg}
}

func openDB(cfg *config.Config) *gorm.DB {
	var dialector gorm.Dialector

	switch cfg.DB.GormEngine {
	case "postgres":
		dialector = gormpostgres.Open(dsn.Create(cfg))
	case "sqlite":
		dialector = sqlite.Open(dsn.Create(cfg))
	default:
		dialector = gormmysql.Open(dsn.Create(cfg))
	}

	db, err := gorm.Open(dialector, &gorm.Config{})
	if err != nil {
		log.Fatal().Err(err).Msg("database connection failed")
	}

	return db
}

// sessionStorage picks the session backend: the database for mysql
// deployments so sessions survive restarts, in-process memory
// otherwise.
func sessionStorage(cfg *config.Config) storage.Storage {
	if cfg.DB.GormEngine == "mysql" || cfg.DB.GormEngine == "" {
		return sessionmysql.New(sessionmysql.Config{
			ConnectionURI: dsn.Create(cfg),
			Table:         "sessions",
		})
	}

	return memory.New()
}
