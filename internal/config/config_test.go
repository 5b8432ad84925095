package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"codeberg.org/mutker/unifanctl/internal/config"
	"codeberg.org/mutker/unifanctl/internal/errors"
	"codeberg.org/mutker/unifanctl/internal/policy"
	"codeberg.org/mutker/unifanctl/internal/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "unifanctl.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
color = "#00ff80"
brightness = 40
speed = 1500
mode = "quietgpu"
log_level = "debug"
interval = 5
speed_hysteresis = 25
pid_file = "/run/unifanctl.pid"

[quiet]
min_temp = 35
max_temp = 75

[zone1]
enabled = false

[state]
enabled = true
path = "/tmp/state.db"

[metrics]
textfile = "/var/lib/node_exporter/unifanctl.prom"
`)

	cfg, err := config.Load(nil, config.WithConfigFile(path))
	require.NoError(t, err)

	assert.Equal(t, protocol.Color{R: 0, G: 255, B: 128}, cfg.Color)
	assert.InDelta(t, 40.0, cfg.Brightness, 0.001)
	assert.Equal(t, 1500, cfg.Speed)
	assert.Equal(t, policy.ModeQuietGPU, cfg.Mode)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 5*time.Second, cfg.IntervalDuration())
	assert.Equal(t, 25, cfg.SpeedHysteresis)
	assert.Equal(t, "/run/unifanctl.pid", cfg.PIDFile)
	assert.InDelta(t, 35.0, cfg.Quiet.MinTemp, 0.001)
	assert.InDelta(t, 75.0, cfg.Quiet.MaxTemp, 0.001)
	assert.True(t, cfg.State.Enabled)
	assert.Equal(t, "/tmp/state.db", cfg.State.Path)
	assert.Equal(t, "/var/lib/node_exporter/unifanctl.prom", cfg.Metrics.Textfile)
	assert.Equal(t, path, cfg.ConfigFile)

	// external zone1 is the second zone
	assert.Equal(t, map[protocol.Zone]bool{1: true, 2: false, 3: true, 4: true}, cfg.EnabledZones())
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("UNIFANCTL_CONFIG", "")

	cfg, err := config.Load(nil, config.WithSearchPaths())
	require.NoError(t, err, "Failed to load config")

	assert.Equal(t, protocol.Color{R: 255, G: 5, B: 5}, cfg.Color)
	assert.InDelta(t, 100.0, cfg.Brightness, 0.001)
	assert.Equal(t, config.DefaultSpeed, cfg.Speed)
	assert.Equal(t, policy.ModeFixed, cfg.Mode)
	assert.Equal(t, config.DefaultLogLevel, cfg.LogLevel)
	assert.Equal(t, config.DefaultInterval, cfg.Interval)
	assert.Equal(t, 0, cfg.SpeedHysteresis)
	assert.False(t, cfg.State.Enabled)
	assert.Empty(t, cfg.Metrics.Textfile)
	assert.Empty(t, cfg.ConfigFile)
	for _, z := range cfg.Zones {
		assert.True(t, z.Enabled)
	}
}

func TestLoadFromEnvironmentPath(t *testing.T) {
	path := writeConfig(t, `brightness = 10`)
	t.Setenv("UNIFANCTL_CONFIG", path)

	cfg, err := config.Load(nil, config.WithSearchPaths())
	require.NoError(t, err)
	assert.InDelta(t, 10.0, cfg.Brightness, 0.001)
}

func TestLoadLegacyChannelKeys(t *testing.T) {
	path := writeConfig(t, `
red = 10
green = 20
blue = 30
`)

	cfg, err := config.Load(nil, config.WithConfigFile(path))
	require.NoError(t, err)
	assert.Equal(t, protocol.Color{R: 10, G: 20, B: 30}, cfg.Color)
}

func TestFlagsOverrideFile(t *testing.T) {
	path := writeConfig(t, `
color = "#0000ff"
brightness = 40
speed = 1000
mode = "fixed"
`)

	fs := config.NewFlagSet("test")
	require.NoError(t, fs.Parse([]string{
		"--config", path,
		"--red", "200",
		"--brightness", "80",
		"--speed", "1800",
	}))

	cfg, err := config.Load(fs, config.WithSearchPaths())
	require.NoError(t, err)

	// unset channel flags fall back to their defaults once any channel flag is used
	assert.Equal(t, protocol.Color{R: 200, G: 5, B: 5}, cfg.Color)
	assert.InDelta(t, 80.0, cfg.Brightness, 0.001)
	assert.Equal(t, 1800, cfg.Speed)
	assert.Equal(t, policy.ModeFixed, cfg.Mode)
}

func TestUnsetFlagsDoNotOverrideFile(t *testing.T) {
	path := writeConfig(t, `
brightness = 40
log_level = "error"
`)

	fs := config.NewFlagSet("test")
	require.NoError(t, fs.Parse([]string{"--config", path}))

	cfg, err := config.Load(fs, config.WithSearchPaths())
	require.NoError(t, err)
	assert.InDelta(t, 40.0, cfg.Brightness, 0.001)
	assert.Equal(t, "error", cfg.LogLevel)
}

func TestLogLevelFlag(t *testing.T) {
	fs := config.NewFlagSet("test")
	require.NoError(t, fs.Parse([]string{"--log-level", "warning"}))

	cfg, err := config.Load(fs, config.WithSearchPaths())
	require.NoError(t, err)
	assert.Equal(t, "warning", cfg.LogLevel)
}

func TestEnvironmentOverridesFile(t *testing.T) {
	path := writeConfig(t, `speed = 1000`)
	t.Setenv("UNIFANCTL_SPEED", "1200")

	cfg, err := config.Load(nil, config.WithConfigFile(path))
	require.NoError(t, err)
	assert.Equal(t, 1200, cfg.Speed)
}

func TestEnvFile(t *testing.T) {
	envPath := filepath.Join(t.TempDir(), "unifanctl.env")
	require.NoError(t, os.WriteFile(envPath, []byte("UNIFANCTL_MODE=quietcpu\n"), 0o600))
	t.Cleanup(func() { os.Unsetenv("UNIFANCTL_MODE") })

	fs := config.NewFlagSet("test")
	require.NoError(t, fs.Parse([]string{"--env-file", envPath}))

	cfg, err := config.Load(fs, config.WithSearchPaths())
	require.NoError(t, err)
	assert.Equal(t, policy.ModeQuietCPU, cfg.Mode)
}

func TestEnvFileMissing(t *testing.T) {
	fs := config.NewFlagSet("test")
	require.NoError(t, fs.Parse([]string{"--env-file", filepath.Join(t.TempDir(), "missing.env")}))

	_, err := config.Load(fs, config.WithSearchPaths())
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrReadEnvFile))
}

func TestLoadConfigFileInvalidFormat(t *testing.T) {
	path := writeConfig(t, `This is not a valid TOML file`)

	_, err := config.Load(nil, config.WithConfigFile(path))
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrReadConfig))
}

func TestLoadConfigFileMissing(t *testing.T) {
	_, err := config.Load(nil, config.WithConfigFile(filepath.Join(t.TempDir(), "nope.toml")))
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrReadConfig))
}

func TestInvalidHexColor(t *testing.T) {
	path := writeConfig(t, `color = "#12345"`)

	_, err := config.Load(nil, config.WithConfigFile(path))
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrInvalidColor))
}

func TestInvalidMode(t *testing.T) {
	path := writeConfig(t, `mode = "turbo"`)

	_, err := config.Load(nil, config.WithConfigFile(path))
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrInvalidMode))
}

func TestChannelOutOfRange(t *testing.T) {
	fs := config.NewFlagSet("test")
	require.NoError(t, fs.Parse([]string{"--green", "300"}))

	_, err := config.Load(fs, config.WithSearchPaths())
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrInvalidConfig))
}

func TestValidate(t *testing.T) {
	valid := func() config.Config {
		return config.Config{
			Brightness: 50,
			Speed:      1000,
			Mode:       policy.ModeFixed,
			LogLevel:   "info",
			Interval:   2,
			Quiet:      config.QuietConfig{MinTemp: 30, MaxTemp: 80},
		}
	}

	tests := []struct {
		name   string
		mutate func(*config.Config)
		field  string
	}{
		{"brightness above range", func(c *config.Config) { c.Brightness = 101 }, "brightness"},
		{"brightness below range", func(c *config.Config) { c.Brightness = -1 }, "brightness"},
		{"speed below range", func(c *config.Config) { c.Speed = 804 }, "speed"},
		{"speed above range", func(c *config.Config) { c.Speed = 1901 }, "speed"},
		{"unknown log level", func(c *config.Config) { c.LogLevel = "verbose" }, "log_level"},
		{"zero interval", func(c *config.Config) { c.Interval = 0 }, "interval"},
		{"negative hysteresis", func(c *config.Config) { c.SpeedHysteresis = -5 }, "speed_hysteresis"},
		{"inverted curve", func(c *config.Config) { c.Quiet.MinTemp = 90 }, "quiet.min_temp"},
		{"state without path", func(c *config.Config) { c.State.Enabled = true }, "state.path"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)

			err := cfg.Validate()
			require.Error(t, err)

			var verrs config.ValidationErrors
			require.ErrorAs(t, err, &verrs)
			require.Len(t, verrs, 1)
			assert.Equal(t, tt.field, verrs[0].Field())
		})
	}

	cfg := valid()
	require.NoError(t, cfg.Validate())

	// speed is only checked in fixed mode
	cfg.Mode = policy.ModeQuietCPU
	cfg.Speed = 0
	require.NoError(t, cfg.Validate())
}

func TestPolicyFromConfig(t *testing.T) {
	path := writeConfig(t, `
mode = "quietcpu"
[quiet]
min_temp = 40
max_temp = 60
[zone3]
enabled = false
`)

	cfg, err := config.Load(nil, config.WithConfigFile(path))
	require.NoError(t, err)

	p := cfg.Policy()
	assert.Equal(t, policy.ModeQuietCPU, p.Mode)
	assert.Equal(t, protocol.MinRPM, p.Curve.RPM(40))
	assert.Equal(t, protocol.MaxRPM, p.Curve.RPM(60))
	assert.False(t, p.Enabled[4])
	assert.True(t, p.Enabled[1])
}
