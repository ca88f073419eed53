package session

import (
	"sync"
	"testing"
	"time"

	"github.com/gofiber/storage"
)

// memStorage is a minimal in-memory implementation of storage.Storage for tests.
type memStorage struct {
	mu   sync.RWMutex
	data map[string][]byte
}

var _ storage.Storage = (*memStorage)(nil)

func newMemStorage() *memStorage {
	return &memStorage{data: make(map[string][]byte)}
}

func (s *memStorage) Get(key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v := s.data[key]
	out := make([]byte, len(v))
	copy(out, v)

	return out, nil
}

func (s *memStorage) Set(key string, val []byte, _ time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	buf := make([]byte, len(val))
	copy(buf, val)
	s.data[key] = buf

	return nil
}

func (s *memStorage) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.data, key)

	return nil
}

func (s *memStorage) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.data = make(map[string][]byte)

	return nil
}

func (s *memStorage) Close() error { return nil }

func TestStore_GetAllocatesFreshID(t *testing.T) {
	st := NewStore(newMemStorage(), time.Minute)

	sess, err := st.Get("")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}

	if sess.ID == "" || !sess.Fresh() {
		t.Fatalf("expected fresh session with id, got id=%q fresh=%v", sess.ID, sess.Fresh())
	}

	if sess.Data.Authenticated() {
		t.Fatal("new session must not be authenticated")
	}
}

func TestSession_SaveRoundTrip(t *testing.T) {
	st := NewStore(newMemStorage(), time.Minute)

	sess, _ := st.Get("")
	sess.Data.EngineID = "local"
	sess.Data.UserName = "alice"
	sess.Data.RoleNames = []string{"viewer"}
	sess.Data.CSRFToken = "tok"

	if err := sess.Save(); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	got, err := st.Get(sess.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}

	if got.Fresh() {
		t.Fatal("persisted session must not be fresh")
	}

	if got.Data.UserName != "alice" || got.Data.EngineID != "local" || got.Data.CSRFToken != "tok" {
		t.Fatalf("payload lost: %+v", got.Data)
	}
}

func TestSession_InvalidateAllocatesNewID(t *testing.T) {
	st := NewStore(newMemStorage(), time.Minute)

	sess, _ := st.Get("")
	sess.Data.UserName = "alice"
	_ = sess.Save()

	oldID := sess.ID

	if err := sess.Invalidate(); err != nil {
		t.Fatalf("Invalidate failed: %v", err)
	}

	if sess.ID == oldID {
		t.Fatal("Invalidate must allocate a new id")
	}

	if sess.Data.UserName != "" {
		t.Fatal("Invalidate must clear the payload")
	}

	// old record gone
	old, _ := st.Get(oldID)
	if !old.Fresh() {
		t.Fatal("old session record must be deleted")
	}
}

func TestSession_DeleteThenGetIsFresh(t *testing.T) {
	st := NewStore(newMemStorage(), time.Minute)

	sess, _ := st.Get("")
	sess.Data.UserName = "alice"
	_ = sess.Save()

	if err := sess.Delete(); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}

	got, _ := st.Get(sess.ID)
	if !got.Fresh() || got.Data.UserName != "" {
		t.Fatal("deleted session must come back fresh and empty")
	}
}

func TestNewCSRFToken(t *testing.T) {
	a, err := NewCSRFToken()
	if err != nil {
		t.Fatalf("NewCSRFToken failed: %v", err)
	}

	// 160 bits hex encoded
	if len(a) != 40 {
		t.Fatalf("token length = %d, want 40", len(a))
	}

	b, _ := NewCSRFToken()
	if a == b {
		t.Fatal("tokens must be random")
	}
}

func TestLoginCookie_RoundTrip(t *testing.T) {
	key := "0123456789abcdef0123456789abcdef"

	sealed, err := SealLoginCookie("alice", "pw", key)
	if err != nil {
		t.Fatalf("Seal failed: %v", err)
	}

	user, pass, err := OpenLoginCookie(sealed, key)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	if user != "alice" || pass != "pw" {
		t.Fatalf("round trip = %q/%q", user, pass)
	}

	// wrong key must not open
	if _, _, err := OpenLoginCookie(sealed, "fedcba9876543210fedcba9876543210"); err == nil {
		t.Fatal("expected error opening with wrong key")
	}

	// bad key length
	if _, err := SealLoginCookie("a", "b", "short"); err == nil {
		t.Fatal("expected error for short key")
	}
}
