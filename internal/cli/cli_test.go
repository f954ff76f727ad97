package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/docgraph/internal/jsonfile"
	"github.com/mesh-intelligence/docgraph/internal/paths"
	"github.com/mesh-intelligence/docgraph/pkg/types"
)

type env struct {
	configDir string
	dataDir   string
}

func newEnv(t *testing.T) env {
	t.Helper()
	for _, key := range []string{paths.EnvConfigDir, paths.EnvDataDir, "DOCGRAPH_BACKEND", "DOCGRAPH_SYNC_STRATEGY", "DOCGRAPH_BLOB_DRIVER"} {
		t.Setenv(key, "")
	}
	dir := t.TempDir()
	return env{configDir: filepath.Join(dir, "config"), dataDir: filepath.Join(dir, "data")}
}

// run executes one docgraph invocation and returns stdout and the exit code.
func (e env) run(t *testing.T, args ...string) (string, int) {
	t.Helper()
	root := NewRootCmd()
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(append([]string{"--config-dir", e.configDir, "--data-dir", e.dataDir}, args...))
	if err := root.Execute(); err != nil {
		return out.String() + err.Error(), exitCode(err)
	}
	return out.String(), exitSuccess
}

func (e env) mustRun(t *testing.T, args ...string) string {
	t.Helper()
	out, code := e.run(t, args...)
	require.Equal(t, exitSuccess, code, out)
	return strings.TrimSpace(out)
}

func TestVersion(t *testing.T) {
	e := newEnv(t)
	out := e.mustRun(t, "version")
	assert.Contains(t, out, "docgraph v"+Version)
	assert.Contains(t, out, modulePath)
}

func TestInitWritesConfigOnce(t *testing.T) {
	e := newEnv(t)
	out := e.mustRun(t, "init", "--backend", types.BackendJSON)
	assert.Contains(t, out, "json backend")

	data, err := os.ReadFile(paths.ConfigFile(e.configDir))
	require.NoError(t, err)
	assert.Contains(t, string(data), "backend: json")
	_, err = os.Stat(filepath.Join(e.dataDir, paths.DocumentFileName))
	require.NoError(t, err, "empty project stored")

	e.mustRun(t, "init", "--backend", types.BackendSQLite)
	again, err := os.ReadFile(paths.ConfigFile(e.configDir))
	require.NoError(t, err)
	assert.Equal(t, data, again, "existing config.yaml kept")
}

func TestInitRejectsUnknownBackend(t *testing.T) {
	e := newEnv(t)
	_, code := e.run(t, "init", "--backend", "csv")
	assert.Equal(t, exitUserError, code)
}

func TestEditSessionPersists(t *testing.T) {
	for _, backend := range []string{types.BackendSQLite, types.BackendJSON} {
		t.Run(backend, func(t *testing.T) {
			e := newEnv(t)
			e.mustRun(t, "init", "--backend", backend)
			e.mustRun(t, "set-title", "Beamline 4")

			display := e.mustRun(t, "add-display", "--title", "Spectrum", "--type", "line_plot")
			first := e.mustRun(t, "add-graphic", display, "--label", "peak", "--bounds", "0.1,0.2,0.3,0.4")
			e.mustRun(t, "add-graphic", display, "--type", "point", "--label", "origin", "--index", "0")

			show := e.mustRun(t, "show")
			assert.Contains(t, show, `"Beamline 4"`)
			assert.Contains(t, show, "line_plot")
			assert.Less(t, strings.Index(show, `"origin"`), strings.Index(show, `"peak"`))
			assert.Contains(t, show, "bounds [0.1 0.2 0.3 0.4]")

			e.mustRun(t, "remove-graphic", display, first)
			assert.NotContains(t, e.mustRun(t, "show"), "peak")

			out := e.mustRun(t, "remove-display", display)
			assert.Contains(t, out, "with 1 graphics")
			assert.NotContains(t, e.mustRun(t, "show"), "line_plot")
		})
	}
}

func TestShowJSON(t *testing.T) {
	e := newEnv(t)
	e.mustRun(t, "init", "--backend", types.BackendJSON)
	e.mustRun(t, "add-display", "--title", "Image")

	var doc map[string]any
	require.NoError(t, json.Unmarshal([]byte(e.mustRun(t, "--json", "show")), &doc))
	assert.Equal(t, "project", doc["type"])
	assert.Len(t, doc["displays"], 1)
	assert.Len(t, doc["data_items"], 1)
}

func TestUserErrors(t *testing.T) {
	e := newEnv(t)
	e.mustRun(t, "init", "--backend", types.BackendJSON)
	display := e.mustRun(t, "add-display")

	tests := []struct {
		name string
		args []string
	}{
		{"bad display id", []string{"remove-display", "not-a-uuid"}},
		{"unknown display", []string{"remove-display", "0190f2c4-0000-7000-8000-000000000001"}},
		{"unknown graphic type", []string{"add-graphic", display, "--type", "ellipse"}},
		{"unknown graphic", []string{"remove-graphic", display, "0190f2c4-0000-7000-8000-000000000001"}},
		{"missing argument", []string{"add-graphic"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, code := e.run(t, tt.args...)
			assert.Equal(t, exitUserError, code, out)
		})
	}
}

func TestExportJSONL(t *testing.T) {
	e := newEnv(t)
	e.mustRun(t, "init", "--backend", types.BackendJSON)
	display := e.mustRun(t, "add-display", "--title", "Image")
	e.mustRun(t, "add-graphic", display)

	out := e.mustRun(t, "export-jsonl")
	// project, data item, display, data channel, graphic
	assert.Contains(t, out, "exported 5 objects")

	records, err := jsonfile.ReadRecords(filepath.Join(e.dataDir, paths.ExportFileName))
	require.NoError(t, err)
	require.Len(t, records, 5)
	assert.Equal(t, "project", records[0].Type)
	assert.Empty(t, records[0].ParentUUID)
}

func TestConfigFromEnvironment(t *testing.T) {
	e := newEnv(t)
	t.Setenv("DOCGRAPH_BACKEND", types.BackendMemory)
	t.Setenv("DOCGRAPH_SYNC_STRATEGY", types.SyncOnClose)

	out := e.mustRun(t, "init")
	assert.Contains(t, out, "memory backend")
	data, err := os.ReadFile(paths.ConfigFile(e.configDir))
	require.NoError(t, err)
	assert.Contains(t, string(data), "sync_strategy: on_close")

	out = e.mustRun(t, "metrics")
	assert.Contains(t, out, "docgraph_registered_objects")
	assert.Contains(t, out, "docgraph_storage_flushes_total")
	_, err = os.Stat(filepath.Join(e.dataDir, paths.DatabaseFileName))
	assert.True(t, os.IsNotExist(err), "memory backend leaves no database")
}

func TestInvalidConfigFile(t *testing.T) {
	e := newEnv(t)
	require.NoError(t, os.MkdirAll(e.configDir, 0o755))
	require.NoError(t, os.WriteFile(paths.ConfigFile(e.configDir), []byte("sync_strategy: sometimes\n"), 0o644))

	_, code := e.run(t, "show")
	assert.Equal(t, exitUserError, code)
}

func TestLogLevel(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"debug", "DEBUG"},
		{"INFO", "INFO"},
		{"", "WARN"},
		{"loud", "WARN"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, logLevel(tt.in).String())
		})
	}
}

func TestEditScriptUndoRedo(t *testing.T) {
	e := newEnv(t)
	e.mustRun(t, "init", "--backend", types.BackendJSON)

	script := filepath.Join(t.TempDir(), "edits.txt")
	require.NoError(t, os.WriteFile(script, []byte(`# rename around a new display
set-title First
add-display --title Spectrum
set-title "Second title"
undo
redo
undo

show
`), 0o644))

	out := e.mustRun(t, "edit-script", script)
	assert.Contains(t, out, "Undo Change title")
	assert.Contains(t, out, "Redo Change title")

	show := e.mustRun(t, "show")
	assert.Contains(t, show, `"First"`)
	assert.NotContains(t, show, "Second title")
	assert.Contains(t, show, `"Spectrum"`)
}

func TestEditScriptErrors(t *testing.T) {
	e := newEnv(t)
	e.mustRun(t, "init", "--backend", types.BackendJSON)
	dir := t.TempDir()

	tests := []struct {
		name   string
		script string
		want   string
	}{
		{"nothing to undo", "undo\n", ":1: nothing to undo"},
		{"nothing to redo", "set-title x\nredo\n", ":2: nothing to redo"},
		{"unknown command", "set-title x\n\nexport-jsonl\n", ":3:"},
		{"unbalanced quote", "set-title \"x\n", ":1:"},
	}
	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(dir, fmt.Sprintf("script-%d.txt", i))
			require.NoError(t, os.WriteFile(path, []byte(tt.script), 0o644))
			out, code := e.run(t, "edit-script", path)
			assert.Equal(t, exitUserError, code, out)
			assert.Contains(t, out, tt.want)
		})
	}

	_, code := e.run(t, "edit-script", filepath.Join(dir, "missing.txt"))
	assert.Equal(t, exitUserError, code)
}

func TestSplitScriptLine(t *testing.T) {
	tests := []struct {
		line string
		want []string
	}{
		{"", nil},
		{"# note", nil},
		{"show", []string{"show"}},
		{`set-title  "two words" `, []string{"set-title", "two words"}},
		{"add-graphic abc --bounds 0.1,0.2,0.3,0.4", []string{"add-graphic", "abc", "--bounds", "0.1,0.2,0.3,0.4"}},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			got, err := splitScriptLine(tt.line)
			require.NoError(t, err)
			if tt.want == nil {
				assert.Empty(t, got)
				return
			}
			assert.Equal(t, tt.want, got)
		})
	}
}
