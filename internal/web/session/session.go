// Package session manages the per-session mutable state of the auth
// core: the authenticated identity, CSRF token, Referer base, idle
// timestamp and the cached config-version pointer.
//
// The payload is JSON-marshalled into a server-side storage backend;
// the cookie only carries the session id. Invalidation allocates a new
// id so authentication never continues a pre-login session.
package session

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"time"

	"github.com/gofiber/storage"

	"github.com/dinesh-gnapitech/insite/internal/uniuri"
)

// CookieName is the session-id cookie.
const CookieName = "session"

// CSRFCookieName is the cookie mirroring the session CSRF token.
const CSRFCookieName = "csrf_token"

// ErrNoStorage is returned when the store was not initialised.
var ErrNoStorage = errors.New("session storage is nil")

// Data represents the session payload.
type Data struct {
	// EngineID names the auth engine that authenticated this session.
	// Empty means not authenticated.
	EngineID string
	// UserName is the authenticated user.
	UserName string
	// RoleNames are the role names captured at authentication time,
	// already intersected with the system's known role set.
	RoleNames []string
	// EngineMeta is opaque engine metadata (e.g. SAML name-id and
	// session index for single logout).
	EngineMeta map[string]string
	// RedirectHints are engine-supplied post-auth redirect hints.
	RedirectHints map[string]string
	// CSRFToken is the 160-bit token checked on state-changing requests.
	CSRFToken string
	// RefererBase is the Referer base captured at authentication.
	RefererBase string
	// LastAccess drives idle timeout.
	LastAccess time.Time
	// ConfigVersion is the configuration version of the rights
	// snapshot cached for this session.
	ConfigVersion int
}

// Authenticated reports whether the session carries an identity.
func (d *Data) Authenticated() bool {
	return d.EngineID != "" && d.UserName != ""
}

// Store wraps a storage backend with the session lifecycle operations.
type Store struct {
	storage storage.Storage
	expiry  time.Duration
}

// NewStore creates a session store over the given backend.
func NewStore(backend storage.Storage, expiry time.Duration) *Store {
	if backend == nil {
		panic("storage is nil")
	}

	return &Store{storage: backend, expiry: expiry}
}

// Session is one session: a stable id plus its payload.
type Session struct {
	ID   string
	Data Data

	store *Store
	// fresh is set when the id was allocated during this request and
	// the cookie has not been sent yet.
	fresh bool
}

// Fresh reports whether the id was allocated during this request and a
// cookie needs to be (re-)sent.
func (s *Session) Fresh() bool {
	return s.fresh
}

// Get loads the session for the given id. An empty or unknown id
// yields a new session with a fresh id, created lazily: nothing is
// persisted until Save.
func (st *Store) Get(id string) (*Session, error) {
	if st.storage == nil {
		return nil, ErrNoStorage
	}

	if id != "" {
		raw, err := st.storage.Get(id)
		if err == nil && len(raw) > 0 {
			var d Data
			if err = json.Unmarshal(raw, &d); err == nil {
				return &Session{ID: id, Data: d, store: st}, nil
			}
		}
	}

	newID, err := NewID()
	if err != nil {
		return nil, err
	}

	return &Session{ID: newID, store: st, fresh: true}, nil
}

// Save persists the payload under the current id.
func (s *Session) Save() error {
	raw, err := json.Marshal(&s.Data)
	if err != nil {
		return err //nolint:wrapcheck
	}

	return s.store.storage.Set(s.ID, raw, s.store.expiry) //nolint:wrapcheck
}

// Clear resets the payload, keeping the id.
func (s *Session) Clear() {
	s.Data = Data{}
}

// Invalidate clears the payload and allocates a new id, deleting the
// old record. Called on login so the authenticated session never
// continues a pre-auth id.
func (s *Session) Invalidate() error {
	if err := s.store.storage.Delete(s.ID); err != nil {
		return err //nolint:wrapcheck
	}

	newID, err := NewID()
	if err != nil {
		return err
	}

	s.ID = newID
	s.fresh = true
	s.Data = Data{}

	return nil
}

// Delete removes the persisted record. The next request allocates a
// new id.
func (s *Session) Delete() error {
	return s.store.storage.Delete(s.ID) //nolint:wrapcheck
}

// Touch updates the idle timestamp and persists.
func (s *Session) Touch(now time.Time) error {
	s.Data.LastAccess = now
	return s.Save()
}

// NewID generates a new secure random session ID.
func NewID() (string, error) {
	// 48 alphanumeric chars, ~285 bits
	return uniuri.NewLen(48), nil //nolint:mnd
}

// NewCSRFToken generates a random 160-bit token, hex encoded.
func NewCSRFToken() (string, error) {
	b := make([]byte, 20) //nolint:mnd
	if _, err := rand.Read(b); err != nil {
		return "", err //nolint:wrapcheck
	}

	return hex.EncodeToString(b), nil
}
