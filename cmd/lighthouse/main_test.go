package main

import (
	"bytes"
	"context"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/lighthouse/internal/monitoring"
)

func TestMain(m *testing.M) {
	monitoring.SetLogger(nil)
	log.SetOutput(io.Discard)
	os.Exit(m.Run())
}

const session = `{"type":"lighthouse","lighthouse_id":"qr-1","good":true,"lighthouse_type":"static"}
{"type":"frame","camera":{"position":{"x":0,"y":1.6,"z":0}},"hit":{"position":{"x":1,"y":0,"z":2},"normal":{"x":0,"y":1,"z":0}}}
{"type":"press"}
{"type":"frame","camera":{"position":{"x":0,"y":1.6,"z":0},"rotation":{"x":0,"y":0.70710678,"z":0,"w":0.70710678}},"hit":{"position":{"x":2,"y":0,"z":0}}}
{"type":"press"}
`

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	err := run(context.Background(), args, &stdout, &stderr)
	return stdout.String(), err
}

func writeSession(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "session.jsonl")
	require.NoError(t, os.WriteFile(path, []byte(session), 0o600))
	return path
}

func TestVersion(t *testing.T) {
	out, err := runCLI(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "lighthouse dev")
}

func TestRunThenDump_FileStore(t *testing.T) {
	prefsPath := filepath.Join(t.TempDir(), "prefs", "lighthouse_prefs.json")
	replay := writeSession(t)

	out, err := runCLI(t, "-store", "file", "-store-path", prefsPath, "-replay", replay, "run")
	require.NoError(t, err)
	assert.Contains(t, out, "calibrated=true")
	assert.Contains(t, out, "placements=2")

	// A second session restores the first two cubes and adds two more.
	out, err = runCLI(t, "-store", "file", "-store-path", prefsPath, "-replay", replay)
	require.NoError(t, err)
	assert.Contains(t, out, "placements=4")

	out, err = runCLI(t, "-store", "file", "-store-path", prefsPath, "dump")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 5)
	assert.Contains(t, lines[0], `4 placements under "_saveData"`)
	assert.Contains(t, lines[1], "pos=(1.000, 0.050, 2.000)")
	assert.Contains(t, lines[1], "yaw=   0.0")
	assert.Contains(t, lines[2], "pos=(2.000, 0.050, 0.000)")
	assert.Contains(t, lines[2], "yaw=  90.0")

	out, err = runCLI(t, "-store", "file", "-store-path", prefsPath, "dump", "-json")
	require.NoError(t, err)
	assert.Contains(t, out, `"cubes": [`)
	assert.Equal(t, 4, strings.Count(out, `"position"`))
}

func TestRun_CustomKeyAndSQLite(t *testing.T) {
	db := filepath.Join(t.TempDir(), "lighthouse.db")
	replay := writeSession(t)

	_, err := runCLI(t, "-store", "sqlite", "-store-path", db, "-key", "cubes", "-replay", replay)
	require.NoError(t, err)

	out, err := runCLI(t, "-store", "sqlite", "-store-path", db, "-key", "cubes", "dump")
	require.NoError(t, err)
	assert.Contains(t, out, `2 placements under "cubes"`)

	out, err = runCLI(t, "-store", "sqlite", "-store-path", db, "dump")
	require.NoError(t, err)
	assert.Contains(t, out, `0 placements under "_saveData"`)
}

func TestRun_CorruptSaveStartsEmpty(t *testing.T) {
	prefsPath := filepath.Join(t.TempDir(), "prefs.json")
	require.NoError(t, os.WriteFile(prefsPath, []byte(`{"version":1,"values":{"_saveData":"{\"cubes\":[{}]}"}}`), 0o600))

	out, err := runCLI(t, "-store", "file", "-store-path", prefsPath, "-replay", writeSession(t))
	require.NoError(t, err)
	assert.Contains(t, out, "placements=2")
	assert.Contains(t, out, "saved placements were not restored")

	_, err = runCLI(t, "-store", "file", "-store-path", prefsPath, "dump")
	require.NoError(t, err, "the session overwrote the corrupt save")
}

func TestMigrate(t *testing.T) {
	db := filepath.Join(t.TempDir(), "lighthouse.db")
	base := []string{"-store", "sqlite", "-store-path", db, "migrate"}

	out, err := runCLI(t, append(base, "status")...)
	require.NoError(t, err)
	assert.Contains(t, out, "version=0 latest=2")

	out, err = runCLI(t, append(base, "up")...)
	require.NoError(t, err)
	assert.Contains(t, out, "version=2 latest=2 dirty=false")

	out, err = runCLI(t, append(base, "down")...)
	require.NoError(t, err)
	assert.Contains(t, out, "version=1")

	_, err = runCLI(t, append(base, "sideways")...)
	assert.Error(t, err)
	_, err = runCLI(t, base...)
	assert.Error(t, err)
}

func TestErrors(t *testing.T) {
	replay := writeSession(t)
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"unknown command", []string{"-store", "memory", "explode"}, "unknown command"},
		{"run without feed", []string{"-store", "memory", "run"}, "-replay or -ws"},
		{"both feeds", []string{"-store", "memory", "-replay", replay, "-ws", "ws://localhost:1"}, "mutually exclusive"},
		{"missing replay", []string{"-store", "memory", "-replay", filepath.Join(t.TempDir(), "none.jsonl")}, "open replay"},
		{"bad backend", []string{"-store", "etcd", "dump"}, "store_backend"},
		{"migrate memory", []string{"-store", "memory", "migrate", "up"}, "sqlite backend"},
		{"config extension", []string{"-config", "settings.yaml", "dump"}, ".json extension"},
		{"unknown flag", []string{"-nope"}, "flag provided but not defined"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := runCLI(t, tt.args...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoadConfig_Overrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"store_backend":"file","save_key":"fromfile","cube_size":0.3}`), 0o600))

	cfg, err := loadConfig(options{configPath: path})
	require.NoError(t, err)
	assert.Equal(t, "file", cfg.GetStoreBackend())
	assert.Equal(t, "fromfile", cfg.GetSaveKey())
	assert.Equal(t, 0.3, cfg.GetCubeSize())

	cfg, err = loadConfig(options{configPath: path, store: "memory", key: "fromflag"})
	require.NoError(t, err)
	assert.Equal(t, "memory", cfg.GetStoreBackend())
	assert.Equal(t, "fromflag", cfg.GetSaveKey())
}
