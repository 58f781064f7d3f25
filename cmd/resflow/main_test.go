package main

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rom8726/resflow"
	"github.com/rom8726/resflow/internal/config"
)

const catalogPath = "../../config/catalog.yaml"

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()

	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)

	err := cmd.Execute()

	return out.String(), err
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	return path
}

func TestSchemaCmd(t *testing.T) {
	out, err := execute(t, "schema")
	require.NoError(t, err)
	assert.Contains(t, out, "workflow_types")
}

func TestCatalogCmd(t *testing.T) {
	out, err := execute(t, "catalog", "validate", catalogPath)
	require.NoError(t, err)
	assert.Contains(t, out, "data_review: 2 steps")
	assert.Contains(t, out, "flood_study: 5 steps")
	assert.Contains(t, out, "catalog is valid")

	out, err = execute(t, "catalog", "show", catalogPath)
	require.NoError(t, err)
	assert.Contains(t, out, "Flood Study (flood_study)")
	assert.Contains(t, out, "locked for all users when finished")

	cfgPath := writeConfig(t, "catalog:\n  path: "+catalogPath+"\n")
	out, err = execute(t, "--config", cfgPath, "catalog", "validate")
	require.NoError(t, err)
	assert.Contains(t, out, "catalog is valid")

	broken := filepath.Join(t.TempDir(), "broken.yaml")
	require.NoError(t, os.WriteFile(broken, []byte("workflow_types:\n  - type: x\n    bogus: 1\n"), 0o600))
	_, err = execute(t, "catalog", "validate", broken)
	require.Error(t, err)
}

func TestMigrateCmd(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "resflow.db")
	cfgPath := writeConfig(t, "store:\n  driver: sqlite\n  sqlite_path: "+dbPath+"\n")

	out, err := execute(t, "--config", cfgPath, "migrate")
	require.NoError(t, err)
	assert.Contains(t, out, "migrations applied (sqlite)")
	assert.FileExists(t, dbPath)

	cfgPath = writeConfig(t, "store:\n  driver: memory\n")
	_, err = execute(t, "--config", cfgPath, "migrate")
	require.Error(t, err)
}

func TestBuildPermissions(t *testing.T) {
	cfg := &config.Config{}
	cfg.Access.Roles = map[string][]string{"rita": {resflow.RoleOrgReviewer}}
	cfg.Access.LockOverriders = []string{"root", "rita"}

	perms := buildPermissions(cfg)
	ctx := context.Background()

	ok, err := perms.HasPermission(ctx, resflow.Actor{Identity: "rita"}, resflow.RolePermission(resflow.RoleOrgReviewer))
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = perms.HasPermission(ctx, resflow.Actor{Identity: "root"}, resflow.PermissionOverrideUserLocks)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = perms.HasPermission(ctx, resflow.Actor{Identity: "bob"}, resflow.PermissionOverrideUserLocks)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestNewApp(t *testing.T) {
	cfgPath := writeConfig(t, "catalog:\n  path: "+catalogPath+"\nrate_limit:\n  per_second: 10\n")
	cfg, err := config.Load(cfgPath)
	require.NoError(t, err)

	a, err := newApp(context.Background(), cfg, prometheus.NewRegistry())
	require.NoError(t, err)
	t.Cleanup(a.Close)

	assert.Equal(t, []string{"data_review", "flood_study"}, a.engine.Catalog().Types())

	ctx := context.Background()
	resource := resflow.NewResource("Dam A", "")
	require.NoError(t, a.engine.CreateResource(ctx, resource))

	handler := newHandler(a)

	rec := httptest.NewRecorder()
	body := strings.NewReader(`{"type":"flood_study"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/resources/"+resource.ID+"/workflows", body)
	req.Header.Set("X-Resflow-User", "alice")
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	workflows, err := a.engine.ListWorkflows(ctx, resource.ID)
	require.NoError(t, err)
	require.Len(t, workflows, 1)

	details := workflows[0].Steps[0]
	_, err = a.engine.SubmitStep(ctx, workflows[0].ID, details.ID, resflow.Actor{Identity: "alice"}, resflow.Submission{
		Values: map[string]any{
			resflow.ParamFormValues:   map[string]any{"site_name": "Dam A"},
			resflow.ParamResourceName: "Dam A",
		},
	})
	require.ErrorIs(t, err, resflow.ErrValidation, "design_storm is required by the catalog")

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/resources/"+resource.ID+"/stats", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestNewApp_MissingCatalog(t *testing.T) {
	cfg := &config.Config{}
	cfg.Catalog.Path = filepath.Join(t.TempDir(), "missing.yaml")

	_, err := newApp(context.Background(), cfg, nil)
	require.Error(t, err)
}
