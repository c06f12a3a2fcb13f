package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/spf13/cobra"
)

func testCommand(out *bytes.Buffer) *cobra.Command {
	cmd := &cobra.Command{}
	cmd.SetOut(out)
	cmd.SetErr(out)
	cmd.SetContext(context.Background())
	return cmd
}

func setFlags(t *testing.T, root string, models []string) {
	t.Helper()
	oldRoot, oldConfig, oldProfile, oldModels := appRoot, configRoot, profile, modelPaths
	t.Cleanup(func() {
		appRoot, configRoot, profile, modelPaths = oldRoot, oldConfig, oldProfile, oldModels
	})
	appRoot = root
	configRoot = "config"
	profile = ""
	modelPaths = models
}

func TestVersion(t *testing.T) {
	var out bytes.Buffer
	versionCmd.SetOut(&out)
	versionCmd.Run(versionCmd, nil)

	if !strings.HasPrefix(out.String(), "modelwire dev") {
		t.Errorf("output = %q, want prefix %q", out.String(), "modelwire dev")
	}
}

func TestValidate(t *testing.T) {
	t.Setenv("MODELWIRE_PROFILE", "")
	setFlags(t, "../../bootstrap/testdata", nil)

	var out bytes.Buffer
	if err := runValidate(testCommand(&out), nil); err != nil {
		t.Fatalf("runValidate() error = %v\n%s", err, out.String())
	}
	for _, want := range []string{"user.yaml: model user", "All checks passed."} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("output missing %q:\n%s", want, out.String())
		}
	}
}

func TestValidate_NamedHandlerWarning(t *testing.T) {
	t.Setenv("MODELWIRE_PROFILE", "")
	setFlags(t, "../../bootstrap/testdata", []string{"model_routes"})

	var out bytes.Buffer
	if err := runValidate(testCommand(&out), nil); err != nil {
		t.Fatalf("runValidate() error = %v\n%s", err, out.String())
	}
	if !strings.Contains(out.String(), "uses handler") {
		t.Errorf("output missing handler warning:\n%s", out.String())
	}
}

func TestValidate_InvalidModels(t *testing.T) {
	t.Setenv("MODELWIRE_PROFILE", "")
	setFlags(t, "../../bootstrap/testdata", []string{"invalid_models"})

	var out bytes.Buffer
	err := runValidate(testCommand(&out), nil)
	if err == nil {
		t.Fatal("runValidate() error = nil, want error")
	}
	if !strings.Contains(out.String(), "bad_type.json") {
		t.Errorf("output missing bad_type.json:\n%s", out.String())
	}
	if strings.Contains(out.String(), "not_a_model.yaml") {
		t.Errorf("non-model file reported:\n%s", out.String())
	}
}

func TestValidate_MissingDirectory(t *testing.T) {
	t.Setenv("MODELWIRE_PROFILE", "")
	setFlags(t, "../../bootstrap/testdata", []string{"nope"})

	var out bytes.Buffer
	if err := runValidate(testCommand(&out), nil); err == nil {
		t.Fatal("runValidate() error = nil, want error")
	}
}

func TestListRoutes(t *testing.T) {
	mux := chi.NewRouter()
	noop := http.HandlerFunc(func(http.ResponseWriter, *http.Request) {})
	mux.Post("/b", noop)
	mux.Get("/b", noop)
	mux.Get("/a", noop)

	records, err := listRoutes(mux)
	if err != nil {
		t.Fatalf("listRoutes() error = %v", err)
	}

	var got []string
	for _, r := range records {
		got = append(got, r["method"].(string)+" "+r["path"].(string))
	}
	want := "GET /a,GET /b,POST /b"
	if strings.Join(got, ",") != want {
		t.Errorf("listRoutes() = %v, want %s", got, want)
	}
}

func TestRoutes_JSON(t *testing.T) {
	t.Setenv("MODELWIRE_PROFILE", "")
	setFlags(t, "../../bootstrap/testdata", nil)
	oldOutput := routesOutput
	t.Cleanup(func() { routesOutput = oldOutput })
	routesOutput = "json"

	var out, logs bytes.Buffer
	cmd := testCommand(&out)
	cmd.SetErr(&logs)
	if err := runRoutes(cmd, nil); err != nil {
		t.Fatalf("runRoutes() error = %v\n%s", err, logs.String())
	}

	var doc struct {
		Data []map[string]string `json:"data"`
	}
	if err := json.Unmarshal(out.Bytes(), &doc); err != nil {
		t.Fatalf("invalid json: %v\n%s", err, out.String())
	}

	found := false
	for _, r := range doc.Data {
		if r["method"] == http.MethodGet && r["path"] == "/api/v1/user/count" {
			found = true
		}
	}
	if !found {
		t.Errorf("GET /api/v1/user/count not listed:\n%s", out.String())
	}
}

func TestRoutes_UnknownFormat(t *testing.T) {
	oldOutput := routesOutput
	t.Cleanup(func() { routesOutput = oldOutput })
	routesOutput = "csv"

	var out bytes.Buffer
	if err := runRoutes(testCommand(&out), nil); err == nil {
		t.Fatal("runRoutes() error = nil, want error")
	}
}
