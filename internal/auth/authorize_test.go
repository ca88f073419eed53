package auth

import (
	"context"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/gofiber/storage/memory"
	"gorm.io/gorm"

	"github.com/dinesh-gnapitech/insite/internal/config"
	"github.com/dinesh-gnapitech/insite/internal/db/models"
	"github.com/dinesh-gnapitech/insite/internal/web/session"
)

func authTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}

	err = db.AutoMigrate(
		&models.User{}, &models.Role{}, &models.Right{}, &models.Permission{},
		&models.Application{}, &models.ApplicationLayer{},
		&models.Datasource{}, &models.Layer{}, &models.LayerFeature{},
		&models.LayerGroup{}, &models.Network{},
		&models.FeatureType{}, &models.FeatureField{}, &models.FieldGroup{},
		&models.Filter{}, &models.SearchRule{}, &models.Query{},
		&models.Setting{},
	)
	if err != nil {
		t.Fatalf("migrate: %v", err)
	}

	return db
}

// seedAlice creates user alice (password "pw") with role viewer, which
// may access application "network" and edit only cable features there.
func seedAlice(t *testing.T, db *gorm.DB) {
	t.Helper()

	ds := models.Datasource{Name: models.DatasourceInternal, Type: "internal"}
	if err := db.Create(&ds).Error; err != nil {
		t.Fatalf("seed datasource: %v", err)
	}

	cable := models.FeatureType{DatasourceID: ds.ID, Name: "cable", KeyField: "id", Editable: true}
	pole := models.FeatureType{DatasourceID: ds.ID, Name: "pole", KeyField: "id", Editable: true}

	if err := db.Create(&cable).Error; err != nil {
		t.Fatalf("seed cable: %v", err)
	}

	if err := db.Create(&pole).Error; err != nil {
		t.Fatalf("seed pole: %v", err)
	}

	layer := models.Layer{
		Code: "assets", Name: "Assets", DatasourceID: ds.ID,
		Category: models.LayerCategoryOverlay, Type: models.LayerTypeVector,
		Features: []models.LayerFeature{
			{FeatureTypeID: cable.ID, Position: 0},
			{FeatureTypeID: pole.ID, Position: 1},
		},
	}
	if err := db.Create(&layer).Error; err != nil {
		t.Fatalf("seed layer: %v", err)
	}

	app := models.Application{Name: "network", Layers: []models.ApplicationLayer{{LayerID: layer.ID}}}
	if err := db.Create(&app).Error; err != nil {
		t.Fatalf("seed application: %v", err)
	}

	access := models.Right{Name: models.RightAccessApplication}
	edit := models.Right{Name: models.RightEditFeatures, Restricted: true}

	if err := db.Create(&access).Error; err != nil {
		t.Fatalf("seed right: %v", err)
	}

	if err := db.Create(&edit).Error; err != nil {
		t.Fatalf("seed right: %v", err)
	}

	viewer := models.Role{Name: "viewer"}
	ops := models.Role{Name: "ops"}

	if err := db.Create(&viewer).Error; err != nil {
		t.Fatalf("seed role: %v", err)
	}

	if err := db.Create(&ops).Error; err != nil {
		t.Fatalf("seed role: %v", err)
	}

	perms := []models.Permission{
		{RoleID: viewer.ID, RightID: access.ID, ApplicationID: app.ID},
		{RoleID: viewer.ID, RightID: edit.ID, ApplicationID: app.ID, Restriction: []string{"cable"}},
	}
	if err := db.Create(&perms).Error; err != nil {
		t.Fatalf("seed permissions: %v", err)
	}

	alice := models.User{Username: "alice", PasswordHash: HashMD5("pw"), Roles: []models.Role{viewer}}
	if err := db.Create(&alice).Error; err != nil {
		t.Fatalf("seed alice: %v", err)
	}
}

func testConfig(engines ...string) *config.Config {
	return &config.Config{Auth: config.Auth{Engines: engines}}
}

func testSubsystem(t *testing.T, cfg *config.Config) (*Subsystem, *session.Session) {
	t.Helper()

	db := authTestDB(t)
	seedAlice(t, db)

	sub, err := NewSubsystem(cfg, db)
	if err != nil {
		t.Fatalf("subsystem: %v", err)
	}

	store := session.NewStore(memory.New(), time.Hour)

	sess, err := store.Get("")
	if err != nil {
		t.Fatalf("session: %v", err)
	}

	return sub, sess
}

func formRequest(method string, form map[string]string, headers map[string]string) *Request {
	req := NewRequest(method, "/auth",
		func(name string) string { return headers[name] },
		func(name string) string { return form[name] },
		nil, nil)
	req.Interactive = method == http.MethodPost && form["user"] != ""

	return req
}

func login(t *testing.T, sub *Subsystem, sess *session.Session) {
	t.Helper()

	req := formRequest(http.MethodPost, map[string]string{"user": "alice", "pass": "pw"}, nil)

	ok, err := sub.CurrentUser(sess, req).Authenticate(context.Background())
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}

	if !ok {
		t.Fatal("login should succeed")
	}
}

func TestLocalLoginEstablishesSession(t *testing.T) {
	sub, sess := testSubsystem(t, testConfig("local"))
	login(t, sub, sess)

	if sess.Data.EngineID != EngineIDLocal || sess.Data.UserName != "alice" {
		t.Fatalf("session data = %+v", sess.Data)
	}

	if len(sess.Data.RoleNames) != 1 || sess.Data.RoleNames[0] != "viewer" {
		t.Fatalf("roles = %v", sess.Data.RoleNames)
	}

	if sess.Data.CSRFToken == "" {
		t.Fatal("login must issue a CSRF token")
	}
}

func TestWrongPasswordRejected(t *testing.T) {
	sub, sess := testSubsystem(t, testConfig("local"))

	req := formRequest(http.MethodPost, map[string]string{"user": "alice", "pass": "bad"}, nil)

	ok, err := sub.CurrentUser(sess, req).Authenticate(context.Background())
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}

	if ok || sess.Data.Authenticated() {
		t.Fatal("wrong password must not authenticate")
	}
}

func TestEngineOrderGatewayThenLocal(t *testing.T) {
	sub, sess := testSubsystem(t, testConfig("gateway", "local"))

	// an explicit login POST without gateway headers goes to local
	login(t, sub, sess)

	if sess.Data.EngineID != EngineIDLocal {
		t.Fatalf("engine = %q, want local", sess.Data.EngineID)
	}

	// a request carrying gateway headers is claimed by the gateway
	sub2, sess2 := testSubsystem(t, testConfig("gateway", "local"))

	req := formRequest(http.MethodGet, nil, map[string]string{
		DefaultUserHeader:   "bob",
		DefaultGroupsHeader: "CN=ops",
	})

	ok, err := sub2.CurrentUser(sess2, req).Authenticate(context.Background())
	if err != nil || !ok {
		t.Fatalf("gateway authenticate = %v, %v", ok, err)
	}

	if sess2.Data.EngineID != EngineIDGateway || sess2.Data.UserName != "bob" {
		t.Fatalf("session data = %+v, want gateway/bob", sess2.Data)
	}
}

func TestCSRFAsymmetry(t *testing.T) {
	sub, sess := testSubsystem(t, testConfig("local"))
	login(t, sub, sess)

	// GET without a token passes
	get := formRequest(http.MethodGet, nil, nil)

	d := sub.CurrentUser(sess, get).Authorize(context.Background(), Check{Application: "network"})
	if !d.OK {
		t.Fatalf("GET without token should pass, got %+v", d)
	}

	// POST without a token fails
	post := formRequest(http.MethodPost, nil, nil)

	d = sub.CurrentUser(sess, post).Authorize(context.Background(), Check{Application: "network"})
	if d.OK || d.Code != http.StatusForbidden || !strings.HasPrefix(d.Reason, "Invalid CSRF token") {
		t.Fatalf("POST without token should 403, got %+v", d)
	}

	// POST with the session token passes
	post = formRequest(http.MethodPost, nil, map[string]string{CSRFHeader: sess.Data.CSRFToken})

	d = sub.CurrentUser(sess, post).Authorize(context.Background(), Check{Application: "network"})
	if !d.OK {
		t.Fatalf("POST with token should pass, got %+v", d)
	}
}

func TestSessionTimeout(t *testing.T) {
	cfg := testConfig("local")
	cfg.Auth.Options.TimeoutHours = 1

	sub, sess := testSubsystem(t, cfg)
	login(t, sub, sess)

	sub.now = func() time.Time { return time.Now().Add(3600100 * time.Millisecond) }

	get := formRequest(http.MethodGet, nil, nil)

	d := sub.CurrentUser(sess, get).Authorize(context.Background(), Check{Application: "network"})
	if d.OK || d.Code != http.StatusUnauthorized || d.Reason != "Your session has timed out" {
		t.Fatalf("timed-out session should 401, got %+v", d)
	}
}

func TestRestrictedEditRejected(t *testing.T) {
	sub, sess := testSubsystem(t, testConfig("local"))
	login(t, sub, sess)

	token := sess.Data.CSRFToken
	post := formRequest(http.MethodPost, nil, map[string]string{CSRFHeader: token})

	d := sub.CurrentUser(sess, post).Authorize(context.Background(), Check{
		Right:       models.RightEditFeatures,
		Application: "network",
		FeatureType: "cable",
	})
	if !d.OK {
		t.Fatalf("cable edit should pass, got %+v", d)
	}

	d = sub.CurrentUser(sess, post).Authorize(context.Background(), Check{
		Right:       models.RightEditFeatures,
		Application: "network",
		FeatureType: "pole",
	})
	if d.OK || d.Code != http.StatusForbidden {
		t.Fatalf("pole edit should 403, got %+v", d)
	}
}

func TestRightImpliesReauthentication(t *testing.T) {
	sub, sess := testSubsystem(t, testConfig("local"))
	login(t, sub, sess)

	// lock the account after login; the next right-checked request
	// must fail re-authentication
	if err := sub.db.Model(&models.User{}).Where("username = ?", "alice").
		Update("locked", true).Error; err != nil {
		t.Fatalf("lock alice: %v", err)
	}

	post := formRequest(http.MethodPost, nil, map[string]string{CSRFHeader: sess.Data.CSRFToken})

	d := sub.CurrentUser(sess, post).Authorize(context.Background(), Check{
		Right:       models.RightEditFeatures,
		Application: "network",
		FeatureType: "cable",
	})
	if d.OK || d.Code != http.StatusUnauthorized || d.Reason != "Reauthentication failed" {
		t.Fatalf("locked account should fail reauth, got %+v", d)
	}

	// a plain read without a right skips the re-check
	get := formRequest(http.MethodGet, nil, nil)

	d = sub.CurrentUser(sess, get).Authorize(context.Background(), Check{Application: "network"})
	if !d.OK {
		t.Fatalf("read without right should pass, got %+v", d)
	}
}

func TestUnauthenticatedGets401(t *testing.T) {
	sub, sess := testSubsystem(t, testConfig("local"))

	get := formRequest(http.MethodGet, nil, nil)

	d := sub.CurrentUser(sess, get).Authorize(context.Background(), Check{Application: "network"})
	if d.OK || d.Code != http.StatusUnauthorized || d.Reason != "" {
		t.Fatalf("unauthenticated should 401 with empty reason, got %+v", d)
	}
}

func TestRedirectOnFail(t *testing.T) {
	sub, sess := testSubsystem(t, testConfig("local"))

	get := formRequest(http.MethodGet, nil, nil)

	d := sub.CurrentUser(sess, get).Authorize(context.Background(), Check{
		Application:    "network",
		RedirectOnFail: true,
	})
	if d.OK || d.Redirect == "" || !strings.HasPrefix(d.Redirect, "/login") {
		t.Fatalf("failure should carry a login redirect, got %+v", d)
	}
}

func TestLogoutIsIdempotent(t *testing.T) {
	sub, sess := testSubsystem(t, testConfig("local"))
	login(t, sub, sess)

	req := formRequest(http.MethodGet, nil, nil)

	if redirect := sub.CurrentUser(sess, req).LogOut(context.Background()); redirect != "" {
		t.Fatalf("local logout should not redirect, got %q", redirect)
	}

	if sess.Data.Authenticated() {
		t.Fatal("logout must clear the session")
	}

	// a second logout on the cleared session is a no-op
	if redirect := sub.CurrentUser(sess, req).LogOut(context.Background()); redirect != "" {
		t.Fatalf("repeated logout should be silent, got %q", redirect)
	}
}

func TestSessionVarsResistSpoofing(t *testing.T) {
	sub, sess := testSubsystem(t, testConfig("local"))
	login(t, sub, sess)

	req := formRequest(http.MethodGet, nil, nil)
	u := sub.CurrentUser(sess, req)

	vars := u.SessionVars(context.Background(), map[string]interface{}{
		"user":   "mallory",
		"region": "north",
	})

	if v, ok := vars("user"); !ok || v != "alice" {
		t.Fatalf("user var = %v, server value must win", v)
	}

	if v, ok := vars("region"); !ok || v != "north" {
		t.Fatalf("region var = %v, overrides should pass through", v)
	}

	if v, ok := vars("groups"); !ok {
		t.Fatal("groups var missing")
	} else if groups, _ := v.([]string); len(groups) != 1 || groups[0] != "viewer" {
		t.Fatalf("groups = %v", v)
	}
}
