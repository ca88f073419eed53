package web

import (
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/filesystem"
	"github.com/gofiber/storage"
	"github.com/gofiber/template/html/v2"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/dinesh-gnapitech/insite/internal/auth"
	"github.com/dinesh-gnapitech/insite/internal/config"
	fiberlogger "github.com/dinesh-gnapitech/insite/internal/logger/adapter/fiber"
	adminsettings "github.com/dinesh-gnapitech/insite/internal/web/handler/admin/settings"
	adminuser "github.com/dinesh-gnapitech/insite/internal/web/handler/admin/user"
	"github.com/dinesh-gnapitech/insite/internal/web/handler/attach"
	"github.com/dinesh-gnapitech/insite/internal/web/handler/authenticate"
	"github.com/dinesh-gnapitech/insite/internal/web/handler/feature"
	"github.com/dinesh-gnapitech/insite/internal/web/handler/index"
	"github.com/dinesh-gnapitech/insite/internal/web/handler/login"
	"github.com/dinesh-gnapitech/insite/internal/web/handler/logout"
	"github.com/dinesh-gnapitech/insite/internal/web/handler/sso"
	"github.com/dinesh-gnapitech/insite/internal/web/middleware/sessionmw"
	"github.com/dinesh-gnapitech/insite/internal/web/session"
)

// Service represents the web service.
type Service struct {
	App          *fiber.App
	cfg          *config.Config
	fastShutDown bool
	alive        atomic.Bool
	db           *gorm.DB
	sub          *auth.Subsystem
	store        *session.Store
}

// Start starts the web service on the given address.
func (s *Service) Start(addr string) error {
	var doneFiber = make(chan bool)

	go func() {
		if err := s.App.Listen(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Msgf("fiber listen error: %v", err)
		}

		doneFiber <- true
	}()

	<-doneFiber // wait for fiber to stop

	return nil
}

// WaitShutdown waits for graceful shutdown of the web service.
func (s *Service) WaitShutdown() {
	irqSig := make(chan os.Signal, 1)
	signal.Notify(irqSig, syscall.SIGINT, syscall.SIGTERM)

	sig := <-irqSig
	log.Info().Msgf("shutdown request (signal: %v)", sig)

	// Graceful shutdown for reverse proxies: report not-alive first so
	// the load balancer removes this instance from active targets.
	if !s.fastShutDown {
		log.Info().Msgf(
			"graceful shutdown: waiting %d seconds before closing the listener",
			s.cfg.Webserver.ShutDownTime,
		)

		s.alive.Store(false)
		time.Sleep(time.Duration(s.cfg.Webserver.ShutDownTime) * time.Second)
	}

	serverShutdown := make(chan struct{})

	go func() {
		log.Info().Msg("stopping http server ...")

		err := s.App.Shutdown()
		if err != nil {
			log.Error().Err(err).Msg("")
		}

		serverShutdown <- struct{}{}
	}()

	<-serverShutdown
	log.Info().Msg("http server stopped")
}

// Subsystem returns the auth subsystem the service was built with.
func (s *Service) Subsystem() *auth.Subsystem { return s.sub }

// Store returns the session store.
func (s *Service) Store() *session.Store { return s.store }

// New creates the web service: the fiber app, the session store over
// the given backend, the auth subsystem and all route handlers.
func New(cfg *config.Config, db *gorm.DB, backend storage.Storage) (*Service, error) {
	if cfg == nil || db == nil || backend == nil {
		return nil, errors.New("config, db and session backend are required")
	}

	sub, err := auth.NewSubsystem(cfg, db)
	if err != nil {
		return nil, err //nolint:wrapcheck
	}

	store := session.NewStore(backend, cfg.Webserver.Session.ExpiryTime)

	httpFS := http.FS(templateEmbedFS{embeddedTemplates})
	templateEngine := html.NewFileSystem(httpFS, ".gohtml")

	// in dev mode, use the local filesystem so templates hot-reload
	if cfg.DevMode {
		templateEngine = html.New("./internal/web/templates", ".gohtml")
		templateEngine.ShouldReload = true

		log.Warn().Msg("dev mode enabled: using local filesystem for templates")
	}

	app := fiber.New(
		fiber.Config{
			ReadBufferSize: 8192,
			AppName:        cfg.Title,
			CaseSensitive:  true,
			Prefork:        false,
			Immutable:      true,
			Views:          templateEngine,
		},
	)

	app.Use(fiberlogger.New(fiberlogger.Config{Config: cfg.Log}))

	app.Use("/static",
		filesystem.New(
			filesystem.Config{
				Root:       http.FS(embeddedStaticFiles),
				PathPrefix: "static",
			},
		),
	)

	app.Use(sessionmw.New(sub, store))

	service := &Service{
		cfg:   cfg,
		App:   app,
		db:    db,
		sub:   sub,
		store: store,
	}

	// handlers register their own routes
	inits := []func() error{
		func() error { return login.Handler.Init(app, cfg, sub) },
		func() error { return authenticate.Handler.Init(app, cfg, sub) },
		func() error { return sso.Handler.Init(app, cfg, sub) },
		func() error { return logout.Handler.Init(app, cfg, sub) },
		func() error { return attach.Handler.Init(app, cfg, sub, store) },
		func() error { return index.Handler.Init(app, cfg, sub) },
		func() error { return feature.Handler.Init(app, cfg, sub) },
		func() error { return adminuser.Handler.Init(app, cfg, sub) },
		func() error { return adminsettings.Handler.Init(app, cfg, sub) },
	}

	for _, init := range inits {
		if err := init(); err != nil {
			return nil, err
		}
	}

	return service, nil
}
