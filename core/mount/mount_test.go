package mount_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/artpar/modelwire/adapters/metrics"
	"github.com/artpar/modelwire/adapters/router"
	"github.com/artpar/modelwire/config"
	"github.com/artpar/modelwire/core/apperr"
	"github.com/artpar/modelwire/core/binding"
	"github.com/artpar/modelwire/core/datalayer"
	"github.com/artpar/modelwire/core/mount"
	"github.com/artpar/modelwire/core/response"
	"github.com/artpar/modelwire/core/schema"
	"github.com/rs/zerolog"
)

const employeeYAML = `
identity: employee
attributes:
  firstName: string
  lastName: string
includes:
  - GET /info
  - "PUT [/,]*"
  - /POST \/.*/
  - /DELETE \/.*/
excludes:
  - /DELETE \/$/
`

const managerYAML = `
identity: manager
attributes:
  firstName: string
includes: ["GET /", "GET /:id"]
excludes: ["GET /:id"]
custom_routes:
  GET /: manager
`

const userYAML = `
identity: user
attributes:
  firstName: string
custom_routes:
  GET /custom_route:
    status: 200
    body: {message: "aloha!"}
  WRONG /custom_route: manager
`

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func apiManifest(dir string) string {
	return "routes:\n  - method: GET\n    path: /\n    status: 200\n    body: {directory: " + dir + "}\n"
}

type fixture struct {
	root     string
	app      *router.Router
	mounter  *mount.Mounter
	models   *datalayer.Collections
	handlers *binding.Handlers
}

func setup(t *testing.T, opts ...mount.Option) *fixture {
	t.Helper()

	root := t.TempDir()
	writeFile(t, filepath.Join(root, "routes/api/v1/api.yaml"), apiManifest("v1"))
	writeFile(t, filepath.Join(root, "routes/api/v2/api.yml"), apiManifest("v2"))
	writeFile(t, filepath.Join(root, "routes/api/v3"), "not a directory")
	os.MkdirAll(filepath.Join(root, "routes/api/v4"), 0o755)
	writeFile(t, filepath.Join(root, "routes/api/docs/api.yaml"), apiManifest("docs"))

	handlers := binding.NewHandlers()
	handlers.Register("manager", func(b *binding.Context, m *datalayer.Collection, w http.ResponseWriter, r *http.Request) {
		response.Write(w, http.StatusOK, map[string]any{"model": m.Name()})
	})

	reg := datalayer.NewRegistry(zerolog.Nop())
	for _, def := range []string{employeeYAML, managerYAML, userYAML} {
		m, err := schema.Parse([]byte(def))
		if err != nil {
			t.Fatalf("Parse() error = %v", err)
		}
		reg.LoadCollection(m)
	}
	models, err := reg.Initialize(context.Background(), config.DataLayerConfig{})
	if err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}

	app := router.New(nil)
	b := &binding.Context{Config: config.Default(), Logger: zerolog.Nop(), Models: models}
	return &fixture{
		root:     root,
		app:      app,
		mounter:  mount.New(app, b, handlers, opts...),
		models:   models,
		handlers: handlers,
	}
}

func request(t *testing.T, h http.Handler, method, path string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, path, nil))

	var env map[string]any
	json.Unmarshal(rec.Body.Bytes(), &env)
	return rec, env
}

func TestNormalizeRoot(t *testing.T) {
	tests := map[string]string{
		"":       "/api/",
		"/api":   "/api/",
		"api/":   "/api/",
		"/rest/": "/rest/",
		"/":      "/",
	}
	for in, want := range tests {
		if got := mount.NormalizeRoot(in); got != want {
			t.Errorf("NormalizeRoot(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestMount_Discovery(t *testing.T) {
	f := setup(t)

	bases, err := f.mounter.Mount(context.Background(), mount.Options{RootDir: f.root})
	if err != nil {
		t.Fatalf("Mount() error = %v", err)
	}
	if !reflect.DeepEqual(bases, []string{"v1", "v2"}) {
		t.Fatalf("Mount() = %v, want [v1 v2]", bases)
	}

	for _, base := range bases {
		rec, env := request(t, f.app, http.MethodGet, "/api/"+base)
		if rec.Code != http.StatusOK {
			t.Fatalf("GET /api/%s = %d", base, rec.Code)
		}
		result := env["result"].(map[string]any)
		if result["directory"] != base {
			t.Errorf("GET /api/%s result = %v", base, result)
		}
		if rec.Header().Get("X-Powered-By") != mount.PoweredBy {
			t.Errorf("X-Powered-By = %q", rec.Header().Get("X-Powered-By"))
		}
	}

	if rec, _ := request(t, f.app, http.MethodGet, "/api/docs"); rec.Code != http.StatusNotFound {
		t.Errorf("non-versioned directory mounted: %d", rec.Code)
	}
}

func TestMount_MissingDirectory(t *testing.T) {
	f := setup(t)

	_, err := f.mounter.Mount(context.Background(), mount.Options{RootDir: f.root, Path: "nope"})

	var ae *apperr.Error
	if !errors.As(err, &ae) || ae.Kind != apperr.KindDirectory {
		t.Fatalf("Mount() error = %v, want DirectoryError", err)
	}
	if !strings.HasPrefix(ae.Message, "Unable to read API directory: ") {
		t.Errorf("message = %q", ae.Message)
	}
}

func TestMount_ExplicitAPIs(t *testing.T) {
	f := setup(t)

	bases, err := f.mounter.Mount(context.Background(), mount.Options{
		RootDir: f.root,
		Root:    "/rest",
		APIs: []mount.API{
			{Base: "custom", Path: "routes/api/v2"},
			{Version: "v9", Path: "routes/api/v1"},
			{Version: "latest", Path: "routes/api/v1"},
			{Path: "routes/api/docs"},
			{Path: "routes/api/missing"},
		},
	})
	if err != nil {
		t.Fatalf("Mount() error = %v", err)
	}
	if !reflect.DeepEqual(bases, []string{"custom", "v9", "docs"}) {
		t.Fatalf("Mount() = %v, want [custom v9 docs]", bases)
	}

	_, env := request(t, f.app, http.MethodGet, "/rest/custom/")
	if env["result"].(map[string]any)["directory"] != "v2" {
		t.Errorf("GET /rest/custom/ = %v", env)
	}
}

func TestMount_ModelRoutes(t *testing.T) {
	f := setup(t)
	if _, err := f.mounter.Mount(context.Background(), mount.Options{RootDir: f.root}); err != nil {
		t.Fatalf("Mount() error = %v", err)
	}

	employee, _ := f.models.Get("employee")
	want := []string{"POST /", "PUT /", "GET /info", "POST /:id", "PUT /:id", "DELETE /:id"}
	if got := employee.Routes(); !reflect.DeepEqual(got, want) {
		t.Errorf("employee routes = %v, want %v", got, want)
	}

	manager, _ := f.models.Get("manager")
	if got := manager.Routes(); !reflect.DeepEqual(got, []string{"GET /"}) {
		t.Errorf("manager routes = %v, want [GET /]", got)
	}

	user, _ := f.models.Get("user")
	if got := user.Routes(); len(got) != 12 || got[11] != "GET /custom_route" {
		t.Errorf("user routes = %v", got)
	}

	// 0 means any client error: paths shadowed by other methods may
	// answer 405 instead of 404.
	tests := []struct {
		method, path string
		code         int
	}{
		{http.MethodGet, "/api/v1/employee", 0},
		{http.MethodGet, "/api/v1/employee/info", http.StatusOK},
		{http.MethodPost, "/api/v1/employee", http.StatusCreated},
		{http.MethodDelete, "/api/v2/employee/1", http.StatusOK},
		{http.MethodGet, "/api/v1/manager/1", 0},
		{http.MethodGet, "/api/v2/user/custom_route", http.StatusOK},
		{http.MethodGet, "/api/v1/user/", http.StatusOK},
	}
	for _, tt := range tests {
		rec, _ := request(t, f.app, tt.method, tt.path)
		if tt.code == 0 {
			if rec.Code/100 != 4 {
				t.Errorf("%s %s = %d, want a client error", tt.method, tt.path, rec.Code)
			}
			continue
		}
		if rec.Code != tt.code {
			t.Errorf("%s %s = %d, want %d", tt.method, tt.path, rec.Code, tt.code)
		}
	}

	_, env := request(t, f.app, http.MethodGet, "/api/v1/manager")
	if env["result"].(map[string]any)["model"] != "manager" {
		t.Errorf("custom GET /api/v1/manager = %v", env)
	}

	_, env = request(t, f.app, http.MethodGet, "/api/v1/user/custom_route")
	if env["result"].(map[string]any)["message"] != "aloha!" {
		t.Errorf("static custom route = %v", env)
	}
}

const aUserYAML = `
identity: a_user
attributes:
  name: string
custom_routes:
  "GET /{oops":
    status: 200
    body: {message: "never"}
`

const bBadYAML = `
identity: b_bad
attributes:
  name: string
custom_routes:
  GET /x: missing
`

// mountModels mounts the v1 API of a fresh tree with only the given models.
func mountModels(t *testing.T, defs ...string) (*router.Router, *datalayer.Collections, []string) {
	t.Helper()

	root := t.TempDir()
	writeFile(t, filepath.Join(root, "routes/api/v1/api.yaml"), apiManifest("v1"))

	reg := datalayer.NewRegistry(zerolog.Nop())
	for _, def := range defs {
		m, err := schema.Parse([]byte(def))
		if err != nil {
			t.Fatalf("Parse() error = %v", err)
		}
		reg.LoadCollection(m)
	}
	models, err := reg.Initialize(context.Background(), config.DataLayerConfig{})
	if err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}

	app := router.New(nil)
	b := &binding.Context{Config: config.Default(), Logger: zerolog.Nop(), Models: models}
	bases, err := mount.New(app, b, binding.NewHandlers()).Mount(context.Background(), mount.Options{RootDir: root})
	if err != nil {
		t.Fatalf("Mount() error = %v", err)
	}
	return app, models, bases
}

func TestMount_RouterSyntaxKeyDropped(t *testing.T) {
	app, models, bases := mountModels(t, aUserYAML)
	if !reflect.DeepEqual(bases, []string{"v1"}) {
		t.Fatalf("Mount() = %v, want [v1]", bases)
	}

	col, _ := models.Get("a_user")
	for _, key := range col.Routes() {
		if strings.Contains(key, "{") {
			t.Errorf("route %q attached", key)
		}
	}
	if rec, _ := request(t, app, http.MethodGet, "/api/v1/a_user"); rec.Code != http.StatusOK {
		t.Errorf("GET /api/v1/a_user = %d, want 200", rec.Code)
	}
}

func TestMount_FailedDescriptorLeavesNothing(t *testing.T) {
	app, _, bases := mountModels(t, aUserYAML, bBadYAML)
	if len(bases) != 0 {
		t.Fatalf("Mount() = %v, want none", bases)
	}

	for _, path := range []string{"/api/v1", "/api/v1/a_user", "/api/v1/b_bad"} {
		if rec, _ := request(t, app, http.MethodGet, path); rec.Code != http.StatusNotFound {
			t.Errorf("GET %s = %d, want 404", path, rec.Code)
		}
	}
}

func TestMount_HandlerManifest(t *testing.T) {
	f := setup(t)
	writeFile(t, filepath.Join(f.root, "apis/status/api.json"), `{"handler": "status"}`)
	writeFile(t, filepath.Join(f.root, "apis/broken/api.yaml"), "handler: nope\n")
	writeFile(t, filepath.Join(f.root, "apis/bad/api.yaml"), "routes:\n  - method: FETCH\n    path: /\n")

	f.handlers.Register("status", func(b *binding.Context, m *datalayer.Collection, w http.ResponseWriter, r *http.Request) {
		response.Write(w, http.StatusOK, map[string]any{"models": b.Models.Len(), "path": r.URL.Path})
	})

	bases, err := f.mounter.Mount(context.Background(), mount.Options{
		RootDir: f.root,
		APIs: []mount.API{
			{Path: "apis/status"},
			{Path: "apis/broken"},
			{Path: "apis/bad"},
		},
	})
	if err != nil {
		t.Fatalf("Mount() error = %v", err)
	}
	if !reflect.DeepEqual(bases, []string{"status"}) {
		t.Fatalf("Mount() = %v, want [status]", bases)
	}

	_, env := request(t, f.app, http.MethodGet, "/api/status/anything")
	result := env["result"].(map[string]any)
	if result["models"] != float64(3) || result["path"] != "/api/status/anything" {
		t.Errorf("handler result = %v", result)
	}
}

func TestMount_PoweredByDisabled(t *testing.T) {
	f := setup(t, mount.WithPoweredBy(false), mount.WithMetrics(metrics.New()))
	f.mounter.Mount(context.Background(), mount.Options{RootDir: f.root})

	rec, _ := request(t, f.app, http.MethodGet, "/api/v1/user")
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /api/v1/user = %d", rec.Code)
	}
	if h := rec.Header().Get("X-Powered-By"); h != "" {
		t.Errorf("X-Powered-By = %q, want none", h)
	}
}

func TestMount_Canceled(t *testing.T) {
	f := setup(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	bases, err := f.mounter.Mount(ctx, mount.Options{RootDir: f.root})
	if err != nil || len(bases) != 0 {
		t.Errorf("Mount() = %v, %v; want no APIs", bases, err)
	}
}

func TestReadManifest(t *testing.T) {
	dir := t.TempDir()
	if _, _, err := mount.ReadManifest(dir); err == nil {
		t.Error("ReadManifest() on empty directory succeeded")
	}

	writeFile(t, filepath.Join(dir, "api.yml"), "handler: a\n")
	writeFile(t, filepath.Join(dir, "api.json"), `{"handler": "b"}`)

	m, path, err := mount.ReadManifest(dir)
	if err != nil {
		t.Fatalf("ReadManifest() error = %v", err)
	}
	if m.Handler != "a" || filepath.Base(path) != "api.yml" {
		t.Errorf("ReadManifest() = %+v from %s, want api.yml first", m, path)
	}
}
