package web

import (
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/gofiber/storage/memory"
	"gorm.io/gorm"

	"github.com/dinesh-gnapitech/insite/internal/auth"
	"github.com/dinesh-gnapitech/insite/internal/config"
	"github.com/dinesh-gnapitech/insite/internal/db/controller/setting"
	"github.com/dinesh-gnapitech/insite/internal/db/models"
	"github.com/dinesh-gnapitech/insite/internal/web/session"
)

func testConfig(engines ...string) *config.Config {
	cfg := &config.Config{Title: "insite"}
	cfg.Webserver.Session.ExpiryTime = time.Hour
	cfg.Auth.Engines = engines

	return cfg
}

func testDB(t *testing.T) *gorm.DB {
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

// seedWorld creates user alice (password "pw", role viewer) who may
// access applications "main" and "network", and edit only cable
// features under network.
func seedWorld(t *testing.T, db *gorm.DB) {
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

	main := models.Application{Name: "main"}
	network := models.Application{Name: "network", Layers: []models.ApplicationLayer{{LayerID: layer.ID}}}

	if err := db.Create(&main).Error; err != nil {
		t.Fatalf("seed main app: %v", err)
	}

	if err := db.Create(&network).Error; err != nil {
		t.Fatalf("seed network app: %v", err)
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
		{RoleID: viewer.ID, RightID: access.ID, ApplicationID: main.ID},
		{RoleID: viewer.ID, RightID: access.ID, ApplicationID: network.ID},
		{RoleID: viewer.ID, RightID: edit.ID, ApplicationID: network.ID, Restriction: []string{"cable"}},
	}
	if err := db.Create(&perms).Error; err != nil {
		t.Fatalf("seed permissions: %v", err)
	}

	alice := models.User{Username: "alice", PasswordHash: auth.HashMD5("pw"), Roles: []models.Role{viewer}}
	if err := db.Create(&alice).Error; err != nil {
		t.Fatalf("seed alice: %v", err)
	}

	// admin area: the manage right is granted under the config app
	manage := models.Right{Name: models.RightManageUsers}
	if err := db.Create(&manage).Error; err != nil {
		t.Fatalf("seed right: %v", err)
	}

	configApp := models.Application{Name: "config"}
	if err := db.Create(&configApp).Error; err != nil {
		t.Fatalf("seed config app: %v", err)
	}

	admin := models.Role{Name: "admin"}
	if err := db.Create(&admin).Error; err != nil {
		t.Fatalf("seed role: %v", err)
	}

	perm := models.Permission{RoleID: admin.ID, RightID: manage.ID, ApplicationID: configApp.ID}
	if err := db.Create(&perm).Error; err != nil {
		t.Fatalf("seed permission: %v", err)
	}

	root := models.User{Username: "root", PasswordHash: auth.HashMD5("pw"), Roles: []models.Role{admin}}
	if err := db.Create(&root).Error; err != nil {
		t.Fatalf("seed root: %v", err)
	}
}

func testService(t *testing.T, engines ...string) *Service {
	t.Helper()

	db := testDB(t)
	seedWorld(t, db)

	svc, err := New(testConfig(engines...), db, memory.New())
	if err != nil {
		t.Fatalf("web service: %v", err)
	}

	return svc
}

func formPost(path string, form url.Values) *http.Request {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	return req
}

func cookieValue(resp *http.Response, name string) string {
	for _, c := range resp.Cookies() {
		if c.Name == name {
			return c.Value
		}
	}

	return ""
}

// loginAlice performs the interactive login and returns the session
// and CSRF cookie values.
func loginAlice(t *testing.T, svc *Service) (sessionID, csrf string) {
	t.Helper()

	resp, err := svc.App.Test(formPost("/auth?redirect_to=main", url.Values{
		"user": {"alice"},
		"pass": {"pw"},
	}))
	if err != nil {
		t.Fatalf("login request: %v", err)
	}

	if resp.StatusCode != http.StatusFound {
		t.Fatalf("login status = %d", resp.StatusCode)
	}

	sessionID = cookieValue(resp, session.CookieName)
	csrf = cookieValue(resp, session.CSRFCookieName)

	if sessionID == "" || csrf == "" {
		t.Fatal("login must set session and csrf cookies")
	}

	return sessionID, csrf
}

func TestLocalLoginThenRead(t *testing.T) {
	svc := testService(t, "local")

	resp, err := svc.App.Test(formPost("/auth?redirect_to=main", url.Values{
		"user": {"alice"},
		"pass": {"pw"},
	}))
	if err != nil {
		t.Fatalf("login request: %v", err)
	}

	if resp.StatusCode != http.StatusFound {
		t.Fatalf("status = %d, want 302", resp.StatusCode)
	}

	if loc := resp.Header.Get("Location"); loc != "/main.html" {
		t.Fatalf("location = %q, want /main.html", loc)
	}

	if cookieValue(resp, session.CSRFCookieName) == "" {
		t.Fatal("csrf cookie missing")
	}

	sessionID := cookieValue(resp, session.CookieName)

	req := httptest.NewRequest(http.MethodGet, "/index", nil)
	req.AddCookie(&http.Cookie{Name: session.CookieName, Value: sessionID})

	resp, err = svc.App.Test(req)
	if err != nil {
		t.Fatalf("index request: %v", err)
	}

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("index status = %d, want 200", resp.StatusCode)
	}

	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "alice") {
		t.Fatalf("index body should greet alice, got %q", body)
	}
}

func TestWrongPasswordRedirectsToLogin(t *testing.T) {
	svc := testService(t, "local")

	resp, err := svc.App.Test(formPost("/auth?redirect_to=main", url.Values{
		"user": {"alice"},
		"pass": {"bad"},
	}))
	if err != nil {
		t.Fatalf("login request: %v", err)
	}

	if resp.StatusCode != http.StatusFound {
		t.Fatalf("status = %d, want 302", resp.StatusCode)
	}

	loc, err := url.Parse(resp.Header.Get("Location"))
	if err != nil || loc.Path != "/login" {
		t.Fatalf("location = %q, want /login", resp.Header.Get("Location"))
	}

	q := loc.Query()
	if q.Get("message_id") != "invalid_credentials" || q.Get("user") != "alice" || q.Get("redirect_to") != "main" {
		t.Fatalf("login redirect query = %q", loc.RawQuery)
	}
}

func TestEngineOrderOverHTTP(t *testing.T) {
	svc := testService(t, "gateway", "local")

	// explicit login POST without headers reaches local
	sessionID, _ := loginAlice(t, svc)

	sess, err := svc.Store().Get(sessionID)
	if err != nil || sess.Data.EngineID != auth.EngineIDLocal {
		t.Fatalf("engine = %q (%v), want local", sess.Data.EngineID, err)
	}

	// a header-carrying request is claimed by the gateway
	req := httptest.NewRequest(http.MethodGet, "/index", nil)
	req.Header.Set(auth.DefaultUserHeader, "bob")
	req.Header.Set(auth.DefaultGroupsHeader, "CN=ops")

	resp, err := svc.App.Test(req)
	if err != nil {
		t.Fatalf("gateway request: %v", err)
	}

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("gateway index status = %d", resp.StatusCode)
	}

	gwSession := cookieValue(resp, session.CookieName)
	if gwSession == "" {
		t.Fatal("gateway login must set a session cookie")
	}

	sess, err = svc.Store().Get(gwSession)
	if err != nil || sess.Data.EngineID != auth.EngineIDGateway || sess.Data.UserName != "bob" {
		t.Fatalf("session = %+v (%v), want gateway/bob", sess.Data, err)
	}
}

func TestCSRFRejectOnFeaturePost(t *testing.T) {
	svc := testService(t, "local")
	sessionID, _ := loginAlice(t, svc)

	req := formPost("/feature/pole?application=network", url.Values{})
	req.AddCookie(&http.Cookie{Name: session.CookieName, Value: sessionID})

	resp, err := svc.App.Test(req)
	if err != nil {
		t.Fatalf("feature request: %v", err)
	}

	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", resp.StatusCode)
	}

	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "Invalid CSRF token") {
		t.Fatalf("reason = %q, want CSRF failure", body)
	}
}

func TestRestrictedEditOverHTTP(t *testing.T) {
	svc := testService(t, "local")
	sessionID, csrf := loginAlice(t, svc)

	post := func(typeName string) *http.Response {
		req := formPost("/feature/"+typeName+"?application=network", url.Values{})
		req.AddCookie(&http.Cookie{Name: session.CookieName, Value: sessionID})
		req.Header.Set(auth.CSRFHeader, csrf)

		resp, err := svc.App.Test(req)
		if err != nil {
			t.Fatalf("feature request: %v", err)
		}

		return resp
	}

	if resp := post("cable"); resp.StatusCode != http.StatusOK {
		t.Fatalf("cable edit status = %d, want 200", resp.StatusCode)
	}

	if resp := post("pole"); resp.StatusCode != http.StatusForbidden {
		t.Fatalf("pole edit status = %d, want 403", resp.StatusCode)
	}
}

func TestLoginPageListsFields(t *testing.T) {
	svc := testService(t, "local")

	resp, err := svc.App.Test(httptest.NewRequest(http.MethodGet, "/login", nil))
	if err != nil {
		t.Fatalf("login page: %v", err)
	}

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), `name="user"`) || !strings.Contains(string(body), `name="pass"`) {
		t.Fatalf("login page should render the engine fields, got %q", body)
	}
}

func TestLogoutClearsSession(t *testing.T) {
	svc := testService(t, "local")
	sessionID, _ := loginAlice(t, svc)

	req := httptest.NewRequest(http.MethodGet, "/logout", nil)
	req.AddCookie(&http.Cookie{Name: session.CookieName, Value: sessionID})

	resp, err := svc.App.Test(req)
	if err != nil {
		t.Fatalf("logout request: %v", err)
	}

	if resp.StatusCode != http.StatusFound || resp.Header.Get("Location") != "/login" {
		t.Fatalf("logout = %d %q", resp.StatusCode, resp.Header.Get("Location"))
	}

	// the session is gone; a fresh one is anonymous
	sess, err := svc.Store().Get(sessionID)
	if err != nil {
		t.Fatalf("store get: %v", err)
	}

	if sess.Data.Authenticated() {
		t.Fatal("session should be cleared after logout")
	}

	// logout again: idempotent
	req = httptest.NewRequest(http.MethodGet, "/logout", nil)
	req.AddCookie(&http.Cookie{Name: session.CookieName, Value: sessionID})

	resp, err = svc.App.Test(req)
	if err != nil || resp.StatusCode != http.StatusFound {
		t.Fatalf("repeated logout = %v %d", err, resp.StatusCode)
	}
}

func TestAttachSharesSession(t *testing.T) {
	svc := testService(t, "local")
	sessionID, _ := loginAlice(t, svc)

	resp, err := svc.App.Test(formPost("/auth/attach", url.Values{"session_id": {sessionID}}))
	if err != nil {
		t.Fatalf("attach request: %v", err)
	}

	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("attach status = %d", resp.StatusCode)
	}

	if cookieValue(resp, session.CookieName) != sessionID {
		t.Fatal("attach must set the supplied session id as cookie")
	}

	// attaching an unknown id is refused
	resp, err = svc.App.Test(formPost("/auth/attach", url.Values{"session_id": {"nope"}}))
	if err != nil || resp.StatusCode != http.StatusForbidden {
		t.Fatalf("bogus attach = %v %d", err, resp.StatusCode)
	}
}

func loginAs(t *testing.T, svc *Service, user, pass string) (sessionID, csrf string) {
	t.Helper()

	resp, err := svc.App.Test(formPost("/auth", url.Values{
		"user": {user},
		"pass": {pass},
	}))
	if err != nil {
		t.Fatalf("login request: %v", err)
	}

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login status = %d", resp.StatusCode)
	}

	return cookieValue(resp, session.CookieName), cookieValue(resp, session.CSRFCookieName)
}

func TestAdminUserListRequiresManageRight(t *testing.T) {
	svc := testService(t, "local")

	// a viewer is bounced to the login page
	aliceSession, _ := loginAlice(t, svc)

	req := httptest.NewRequest(http.MethodGet, "/admin/user", nil)
	req.AddCookie(&http.Cookie{Name: session.CookieName, Value: aliceSession})

	resp, err := svc.App.Test(req)
	if err != nil {
		t.Fatalf("admin request: %v", err)
	}

	if resp.StatusCode != http.StatusFound {
		t.Fatalf("viewer admin status = %d, want 302", resp.StatusCode)
	}

	if loc := resp.Header.Get("Location"); !strings.HasPrefix(loc, "/login") {
		t.Fatalf("viewer admin redirect = %q, want /login", loc)
	}

	// an admin sees the user list
	rootSession, _ := loginAs(t, svc, "root", "pw")

	req = httptest.NewRequest(http.MethodGet, "/admin/user", nil)
	req.AddCookie(&http.Cookie{Name: session.CookieName, Value: rootSession})

	resp, err = svc.App.Test(req)
	if err != nil {
		t.Fatalf("admin request: %v", err)
	}

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("admin status = %d, want 200", resp.StatusCode)
	}

	body, _ := io.ReadAll(resp.Body)
	for _, name := range []string{"alice", "root"} {
		if !strings.Contains(string(body), name) {
			t.Fatalf("user list should show %q, got %q", name, body)
		}
	}
}

func TestAdminUserCreate(t *testing.T) {
	svc := testService(t, "local")
	rootSession, csrf := loginAs(t, svc, "root", "pw")

	var viewer models.Role
	if err := svc.db.Where("name = ?", "viewer").First(&viewer).Error; err != nil {
		t.Fatalf("load viewer role: %v", err)
	}

	req := formPost("/admin/user", url.Values{
		"username": {"carol"},
		"password": {"secret"},
		"role_ids": {strconv.Itoa(int(viewer.ID))},
	})
	req.AddCookie(&http.Cookie{Name: session.CookieName, Value: rootSession})
	req.Header.Set(auth.CSRFHeader, csrf)

	resp, err := svc.App.Test(req)
	if err != nil {
		t.Fatalf("create request: %v", err)
	}

	if resp.StatusCode != http.StatusFound {
		t.Fatalf("create status = %d, want 302", resp.StatusCode)
	}

	// the new user can log in; new hashes are bcrypt
	carolSession, _ := loginAs(t, svc, "carol", "secret")
	if carolSession == "" {
		t.Fatal("carol should be able to log in")
	}
}

func TestAdminSettingsBumpConfigVersion(t *testing.T) {
	svc := testService(t, "local")
	rootSession, csrf := loginAs(t, svc, "root", "pw")

	req := formPost("/admin/settings", url.Values{
		"key":   {"title"},
		"value": {"insite"},
	})
	req.AddCookie(&http.Cookie{Name: session.CookieName, Value: rootSession})
	req.Header.Set(auth.CSRFHeader, csrf)

	resp, err := svc.App.Test(req)
	if err != nil {
		t.Fatalf("settings request: %v", err)
	}

	if resp.StatusCode != http.StatusFound {
		t.Fatalf("settings status = %d, want 302", resp.StatusCode)
	}

	v, err := setting.ConfigVersion(svc.db)
	if err != nil {
		t.Fatalf("config version: %v", err)
	}

	if v != 1 {
		t.Fatalf("config version = %d, want 1", v)
	}
}
