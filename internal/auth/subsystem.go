package auth

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/dinesh-gnapitech/insite/internal/config"
	"github.com/dinesh-gnapitech/insite/internal/db/controller/setting"
	"github.com/dinesh-gnapitech/insite/internal/rights"
	"github.com/dinesh-gnapitech/insite/internal/web/session"
)

// Subsystem is the long-lived authentication state: the engine chain,
// the rights cache and the per-session snapshot pointers. Built once
// at server start and discarded at shutdown; nothing here survives a
// restart.
type Subsystem struct {
	cfg  *config.Config
	db   *gorm.DB
	auth *Authenticator

	rights *rights.Cache
	// snaps maps session id to the snapshot pointer last computed for
	// it. Racy duplicate writes are fine: concurrently built values
	// for one key are interchangeable immutable snapshots.
	snaps sync.Map

	// now is the clock, replaceable in tests.
	now func() time.Time
}

// NewSubsystem constructs the engines named in auth.Engines, in order,
// and wires the rights cache.
func NewSubsystem(cfg *config.Config, db *gorm.DB) (*Subsystem, error) {
	if len(cfg.Auth.Engines) == 0 {
		return nil, config.ErrNoAuthEngines
	}

	engines := make([]Engine, 0, len(cfg.Auth.Engines))

	for _, name := range cfg.Auth.Engines {
		e, err := NewEngine(name, cfg, db)
		if err != nil {
			return nil, errors.Wrapf(err, "constructing auth engine %q", name)
		}

		engines = append(engines, e)
	}

	return &Subsystem{
		cfg:    cfg,
		db:     db,
		auth:   NewAuthenticator(engines, KnownRolesFromDB(db)),
		rights: rights.NewCache(rights.NewBuilder(db).Build),
		now:    time.Now,
	}, nil
}

// Authenticator returns the engine dispatcher.
func (s *Subsystem) Authenticator() *Authenticator { return s.auth }

// Config returns the server configuration.
func (s *Subsystem) Config() *config.Config { return s.cfg }

// DB returns the configuration database handle.
func (s *Subsystem) DB() *gorm.DB { return s.db }

// CurrentUser binds the subsystem to one request's session.
func (s *Subsystem) CurrentUser(sess *session.Session, req *Request) *CurrentUser {
	return &CurrentUser{sub: s, sess: sess, req: req}
}

// snapshotFor returns the rights snapshot for the session, pinned to
// the current configuration version. The per-session pointer is
// reused while the version matches; a version bump falls through to
// the cache, which builds at most once per (version, role-set).
func (s *Subsystem) snapshotFor(ctx context.Context, sess *session.Session) (*rights.Snapshot, error) {
	version, err := setting.ConfigVersion(s.db.WithContext(ctx))
	if err != nil {
		return nil, err //nolint:wrapcheck
	}

	if v, ok := s.snaps.Load(sess.ID); ok {
		snap := v.(*rights.Snapshot)
		if snap.Version == version && sess.Data.ConfigVersion == version {
			return snap, nil
		}
	}

	snap, err := s.rights.Get(ctx, rights.NewKey(version, sess.Data.RoleNames))
	if err != nil {
		return nil, err
	}

	s.snaps.Store(sess.ID, snap)
	sess.Data.ConfigVersion = version

	return snap, nil
}

// dropSnapshot forgets the process-local pointer for a session id.
func (s *Subsystem) dropSnapshot(sessID string) {
	s.snaps.Delete(sessID)
}
