package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"codeberg.org/mutker/unifanctl/internal/config"
	"codeberg.org/mutker/unifanctl/internal/errors"
	"codeberg.org/mutker/unifanctl/internal/logger"
	"codeberg.org/mutker/unifanctl/internal/protocol"
	"codeberg.org/mutker/unifanctl/internal/state"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("UNIFANCTL_CONFIG", "")

	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)

	err := root.Execute()

	return out.String(), err
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "unifanctl.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	return path
}

func TestStatusDisabled(t *testing.T) {
	path := writeConfig(t, `log_level = "error"`)

	out, err := execute(t, "status", "--config", path)
	require.NoError(t, err)
	assert.Contains(t, out, "state store disabled")
}

func TestStatusPrintsZones(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "state.db")
	store, err := state.NewStore(state.Config{DBPath: dbPath, Enabled: true}, logger.Nop())
	require.NoError(t, err)
	temp := 48.0
	require.NoError(t, store.Save(context.Background(), &state.ZoneState{
		Zone:        2,
		Color:       protocol.Color{R: 0, G: 128, B: 255},
		Brightness:  75,
		Speed:       1100,
		Mode:        "quietcpu",
		Temperature: &temp,
		AppliedAt:   time.Now(),
	}))
	require.NoError(t, store.Close())

	path := writeConfig(t, `
log_level = "error"
[state]
enabled = true
path = "`+dbPath+`"
`)

	out, err := execute(t, "status", "--config", path)
	require.NoError(t, err)
	assert.Contains(t, out, "ZONE")
	assert.Contains(t, out, "#0080ff")
	assert.Contains(t, out, "1100")
	assert.Contains(t, out, "quietcpu")
	assert.Contains(t, out, "48.0")
}

func TestApplyRejectsInvalidFlags(t *testing.T) {
	_, err := execute(t, "apply", "--brightness", "150")
	require.Error(t, err)

	var verrs config.ValidationErrors
	require.ErrorAs(t, err, &verrs)
	assert.Equal(t, "brightness", verrs[0].Field())
}

func TestRunRejectsUnknownMode(t *testing.T) {
	_, err := execute(t, "run", "--mode", "turbo")
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrInvalidMode))
}

func TestPreflightEncodesEnabledZones(t *testing.T) {
	cfg := &config.Config{
		Brightness: 100,
		Speed:      1350,
		Mode:       "fixed",
		Zones:      [protocol.ZoneCount]config.ZoneConfig{{Enabled: true}, {Enabled: false}, {Enabled: true}, {Enabled: true}},
		Quiet:      config.QuietConfig{MinTemp: 30, MaxTemp: 80},
	}
	require.NoError(t, preflight(cfg))

	cfg.Speed = 2000
	err := preflight(cfg)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, protocol.ErrInvalidSpeed))

	// speed is not sent from configuration in quiet modes
	cfg.Mode = "quietgpu"
	require.NoError(t, preflight(cfg))
}

func TestStatusDoesNotCreateDatabase(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "missing", "state.db")
	path := writeConfig(t, `
log_level = "error"
[state]
enabled = true
path = "`+dbPath+`"
`)

	out, err := execute(t, "status", "--config", path)
	require.NoError(t, err)
	assert.Contains(t, out, "no state recorded")

	_, err = os.Stat(filepath.Dir(dbPath))
	assert.True(t, os.IsNotExist(err))
}

func TestCloseShutsDownHIDWithoutController(t *testing.T) {
	calls := 0
	orig := shutdownHID
	shutdownHID = func() error {
		calls++
		return nil
	}
	t.Cleanup(func() { shutdownHID = orig })

	// device.Open failed after hidapi was initialized
	(&app{hidStarted: true}).close()
	assert.Equal(t, 1, calls)

	// failed before the device was touched
	(&app{}).close()
	assert.Equal(t, 1, calls)
}
