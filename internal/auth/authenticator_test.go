package auth

import (
	"context"
	"errors"
	"testing"
)

// fakeEngine is a scriptable engine for dispatch tests.
type fakeEngine struct {
	id     string
	fields []Field
	ident  *Identity
	err    error
}

func (f *fakeEngine) ID() string              { return f.id }
func (f *fakeEngine) AuthFields() []Field     { return f.fields }
func (f *fakeEngine) AuthControls() []Control { return nil }

func (f *fakeEngine) Authenticate(ctx context.Context, req *Request) (*Identity, error) {
	if f.err != nil {
		return nil, f.err
	}

	if f.ident == nil {
		return nil, nil
	}

	ident := *f.ident
	ident.RoleNames = append([]string(nil), f.ident.RoleNames...)

	return &ident, nil
}

func (f *fakeEngine) ReAuthenticate(ctx context.Context, prior *Identity, req *Request) (*Identity, error) {
	return f.Authenticate(ctx, req)
}

func fixedRoles(names ...string) KnownRoles {
	return func(context.Context) (map[string]struct{}, error) {
		known := make(map[string]struct{}, len(names))
		for _, n := range names {
			known[n] = struct{}{}
		}

		return known, nil
	}
}

func plainRequest() *Request {
	return NewRequest("POST", "/auth", nil, nil, nil, nil)
}

func TestDispatchOrder(t *testing.T) {
	e1 := &fakeEngine{id: "e1"}
	e2 := &fakeEngine{id: "e2", ident: &Identity{UserName: "alice", RoleNames: []string{"viewer"}}}
	e3 := &fakeEngine{id: "e3", ident: &Identity{UserName: "other", RoleNames: []string{"viewer"}}}

	a := NewAuthenticator([]Engine{e1, e2, e3}, fixedRoles("viewer"))

	ident, err := a.Authenticate(context.Background(), plainRequest())
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}

	if ident == nil || ident.EngineID != "e2" || ident.UserName != "alice" {
		t.Fatalf("identity = %+v, want engine e2", ident)
	}
}

func TestDispatchSkipsErroringEngine(t *testing.T) {
	e1 := &fakeEngine{id: "e1", err: errors.New("directory down")}
	e2 := &fakeEngine{id: "e2", ident: &Identity{UserName: "alice", RoleNames: []string{"viewer"}}}

	a := NewAuthenticator([]Engine{e1, e2}, fixedRoles("viewer"))

	ident, err := a.Authenticate(context.Background(), plainRequest())
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}

	if ident == nil || ident.EngineID != "e2" {
		t.Fatalf("identity = %+v, want engine e2", ident)
	}
}

func TestDispatchRoleIntersection(t *testing.T) {
	// e1's roles are all unknown, so e2 must win; e2's unknown role is
	// dropped from the result
	e1 := &fakeEngine{id: "e1", ident: &Identity{UserName: "ghost", RoleNames: []string{"nobody"}}}
	e2 := &fakeEngine{id: "e2", ident: &Identity{UserName: "alice", RoleNames: []string{"viewer", "nobody", "viewer"}}}

	a := NewAuthenticator([]Engine{e1, e2}, fixedRoles("viewer", "editor"))

	ident, err := a.Authenticate(context.Background(), plainRequest())
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}

	if ident == nil || ident.EngineID != "e2" {
		t.Fatalf("identity = %+v, want engine e2", ident)
	}

	if len(ident.RoleNames) != 1 || ident.RoleNames[0] != "viewer" {
		t.Fatalf("roles = %v, want [viewer]", ident.RoleNames)
	}
}

func TestDispatchNoEngineSucceeds(t *testing.T) {
	a := NewAuthenticator([]Engine{&fakeEngine{id: "e1"}}, fixedRoles("viewer"))

	ident, err := a.Authenticate(context.Background(), plainRequest())
	if err != nil || ident != nil {
		t.Fatalf("want (nil, nil), got (%+v, %v)", ident, err)
	}
}

func TestInteractiveLoginSkipsFieldlessEngines(t *testing.T) {
	// a passthrough engine that would claim everything must not
	// shadow an explicit login POST
	passthrough := &fakeEngine{id: "anon", ident: &Identity{UserName: "anonymous", RoleNames: []string{"viewer"}}}
	login := &fakeEngine{
		id:     "local",
		fields: []Field{{ID: "user"}, {ID: "pass"}},
		ident:  &Identity{UserName: "alice", RoleNames: []string{"viewer"}},
	}

	a := NewAuthenticator([]Engine{passthrough, login}, fixedRoles("viewer"))

	req := plainRequest()
	req.Interactive = true

	ident, err := a.Authenticate(context.Background(), req)
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}

	if ident == nil || ident.EngineID != "local" {
		t.Fatalf("identity = %+v, want engine local", ident)
	}

	// the same request without the interactive tag is claimed by the
	// passthrough engine
	ident, err = a.Authenticate(context.Background(), plainRequest())
	if err != nil || ident == nil || ident.EngineID != "anon" {
		t.Fatalf("identity = %+v (%v), want engine anon", ident, err)
	}
}

func TestReAuthenticateUnknownEngine(t *testing.T) {
	a := NewAuthenticator([]Engine{&fakeEngine{id: "e1"}}, fixedRoles("viewer"))

	_, err := a.ReAuthenticate(context.Background(), "gone", &Identity{UserName: "alice"}, plainRequest())
	if !errors.Is(err, ErrEngineMismatch) {
		t.Fatalf("err = %v, want ErrEngineMismatch", err)
	}
}

func TestReAuthenticateEmptyIntersectionFails(t *testing.T) {
	e := &fakeEngine{id: "e1", ident: &Identity{UserName: "alice", RoleNames: []string{"revoked"}}}
	a := NewAuthenticator([]Engine{e}, fixedRoles("viewer"))

	_, err := a.ReAuthenticate(context.Background(), "e1", &Identity{UserName: "alice"}, plainRequest())
	if !errors.Is(err, ErrNoRoles) {
		t.Fatalf("err = %v, want ErrNoRoles", err)
	}
}
