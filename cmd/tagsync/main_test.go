package main

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const snapshotJSON = `{
    "loadOrder": ["Skyrim.esm", "Keywords.esp", "Blades.esp"],
    "entities": [{"id": "000801", "editorID": "WeapTypeRapier", "mod": "Keywords.esp"}],
    "items": [
        {"id": "000D1F:Blades.esp", "editorID": "BladesSteelRapier", "name": "Steel Rapier", "mod": "Blades.esp",
         "tags": [], "equipCategory": "EitherHand", "animationCategory": "OneHandDagger"}
    ]
}`

const basePatch = `[
    {"op": "add", "path": "/tags", "value": {"Rapier": {"commonNames": ["rapier"], "keywords": ["WeapTypeRapier"], "animationDefault": "OneHandSword"}}},
    {"op": "add", "path": "/globalExcludes", "value": {"excludeMods": [], "excludeItems": [], "phrases": []}},
    {"op": "add", "path": "/sourceMods", "value": ["Keywords.esp"]},
    {"op": "add", "path": "/injectedTags", "value": {}},
    {"op": "add", "path": "/experimentalLevel", "value": 0}
]`

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestCLI_SyncImportRun(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/index.json":
			fmt.Fprintf(w, `["http://%s/0.json"]`, r.Host)
		case "/0.json":
			fmt.Fprint(w, basePatch)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "tagsync.yaml")
	cfg := fmt.Sprintf("data_dir: %s\nmanifest_url: %s/index.json\nstore_dsn: sqlite://%s\nlog_level: error\n",
		filepath.Join(dir, "data"), srv.URL, filepath.Join(dir, "items.db"))
	require.NoError(t, os.WriteFile(cfgPath, []byte(cfg), 0o644))
	snapPath := filepath.Join(dir, "snapshot.json")
	require.NoError(t, os.WriteFile(snapPath, []byte(snapshotJSON), 0o644))

	out, err := execute(t, "sync", "--config", cfgPath)
	require.NoError(t, err)
	assert.Contains(t, out, "Patch version 1 (applied 1)")

	out, err = execute(t, "validate", "--config", cfgPath)
	require.NoError(t, err)
	assert.Contains(t, out, "1 tags")

	out, err = execute(t, "import", snapPath, "--config", cfgPath)
	require.NoError(t, err)
	assert.Contains(t, out, "Imported 1 items")

	out, err = execute(t, "run", "--config", cfgPath)
	require.NoError(t, err)
	assert.Contains(t, out, "overridden 1")
	assert.Contains(t, out, "Changes: 1 tag, 0 equip, 1 animation, 0 scripts")

	out, err = execute(t, "run", "--config", cfgPath)
	require.NoError(t, err)
	assert.Contains(t, out, "overridden 0")
}

func TestCLI_SyncNetworkFailureIsNotAnError(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "tagsync.yaml")
	cfg := fmt.Sprintf("data_dir: %s\nmanifest_url: http://127.0.0.1:1/index.json\nfetch_timeout: 200ms\nlog_level: error\n", dir)
	require.NoError(t, os.WriteFile(cfgPath, []byte(cfg), 0o644))

	out, err := execute(t, "sync", "--config", cfgPath)
	require.NoError(t, err)
	assert.Contains(t, out, "Patch version 0 (applied 0)")
}

func TestCLI_ValidateWithoutDatabaseFails(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "tagsync.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("data_dir: "+dir+"\nlog_level: error\n"), 0o644))

	_, err := execute(t, "validate", "--config", cfgPath)
	assert.Error(t, err)
}

func TestCLI_BadConfigFails(t *testing.T) {
	_, err := execute(t, "validate", "--config", filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestCLI_Version(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "dev\n", out)
}
