package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"codeberg.org/mutker/unifanctl/internal/errors"
	"codeberg.org/mutker/unifanctl/internal/policy"
	"codeberg.org/mutker/unifanctl/internal/protocol"
	"codeberg.org/mutker/unifanctl/internal/sensor"
	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	DefaultEnvPrefix  = "UNIFANCTL"
	DefaultConfigName = "unifanctl"
	DefaultLogLevel   = "info"
	DefaultSpeed      = 1350
	DefaultBrightness = 100
	DefaultInterval   = 2
	DefaultStatePath  = "/var/lib/unifanctl/state.db"
	DefaultPIDFile    = "unifanctl.pid"

	configPathEnv = "UNIFANCTL_CONFIG"
)

var defaultColor = protocol.Color{R: 255, G: 5, B: 5}

type QuietConfig struct {
	MinTemp float64 `mapstructure:"min_temp"`
	MaxTemp float64 `mapstructure:"max_temp"`
}

type StateConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

type MetricsConfig struct {
	Textfile string `mapstructure:"textfile"`
}

type ZoneConfig struct {
	Enabled bool
}

type Config struct {
	Red             int         `mapstructure:"red"`
	Green           int         `mapstructure:"green"`
	Blue            int         `mapstructure:"blue"`
	Brightness      float64     `mapstructure:"brightness"`
	Speed           int         `mapstructure:"speed"`
	Mode            policy.Mode `mapstructure:"mode"`
	LogLevel        string      `mapstructure:"log_level"`
	Interval        int         `mapstructure:"interval"`
	SpeedHysteresis int         `mapstructure:"speed_hysteresis"`
	PIDFile         string      `mapstructure:"pid_file"`

	Quiet   QuietConfig   `mapstructure:"quiet"`
	State   StateConfig   `mapstructure:"state"`
	Metrics MetricsConfig `mapstructure:"metrics"`

	// Zones is indexed by the external zone number 0-3.
	Zones [protocol.ZoneCount]ZoneConfig `mapstructure:"-"`

	// Color is resolved from the color key or the red/green/blue keys.
	Color protocol.Color `mapstructure:"-"`

	// ConfigFile is the file that was read, empty when none was found.
	ConfigFile string `mapstructure:"-"`
}

// NewFlagSet defines the command-line surface shared by every command.
func NewFlagSet(name string) *pflag.FlagSet {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.String("config", "", "Path to config file")
	fs.String("env-file", "", "Load environment variables from this file")
	fs.Int("red", int(defaultColor.R), "Red value (0-255)")
	fs.Int("green", int(defaultColor.G), "Green value (0-255)")
	fs.Int("blue", int(defaultColor.B), "Blue value (0-255)")
	fs.Float64("brightness", DefaultBrightness, "Brightness percentage (0-100)")
	fs.Int("speed", DefaultSpeed, "Fan speed in RPM (805-1900), ignored in quiet modes")
	fs.String("mode", string(policy.ModeFixed), "Fan mode: fixed, quietcpu, quietgpu")
	fs.String("log-level", DefaultLogLevel, "Log level: debug, info, warning, error")
	fs.Int("interval", DefaultInterval, "Seconds between control cycles")

	return fs
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("red", int(defaultColor.R))
	v.SetDefault("green", int(defaultColor.G))
	v.SetDefault("blue", int(defaultColor.B))
	v.SetDefault("brightness", DefaultBrightness)
	v.SetDefault("speed", DefaultSpeed)
	v.SetDefault("mode", string(policy.ModeFixed))
	v.SetDefault("log_level", DefaultLogLevel)
	v.SetDefault("interval", DefaultInterval)
	v.SetDefault("speed_hysteresis", 0)
	v.SetDefault("pid_file", DefaultPIDFile)
	v.SetDefault("quiet.min_temp", 30)
	v.SetDefault("quiet.max_temp", 80)
	v.SetDefault("state.enabled", false)
	v.SetDefault("state.path", DefaultStatePath)
	v.SetDefault("metrics.textfile", "")
	for i := 0; i < protocol.ZoneCount; i++ {
		v.SetDefault(zoneKey(i), true)
	}
}

func zoneKey(i int) string {
	return fmt.Sprintf("zone%d.enabled", i)
}

// Load merges defaults, the config file, the environment and the flags in
// that order of increasing precedence. Only flags the user set override the
// file. fs may be nil.
func Load(fs *pflag.FlagSet, opts ...Option) (*Config, error) {
	errFactory := errors.New()
	o := options{
		envPrefix:   DefaultEnvPrefix,
		searchPaths: []string{"/etc"},
	}
	for _, opt := range opts {
		if err := opt(&o); err != nil {
			return nil, errFactory.Wrap(errors.ErrInvalidConfig, err)
		}
	}

	v := viper.New()
	setDefaults(v)

	if fs != nil {
		if err := bindFlags(v, fs); err != nil {
			return nil, errFactory.Wrap(errors.ErrInvalidConfig, err)
		}
		if envFile := flagString(fs, "env-file"); envFile != "" {
			if err := godotenv.Load(envFile); err != nil {
				return nil, errFactory.Wrap(errors.ErrReadEnvFile, err)
			}
		}
		if path := flagString(fs, "config"); path != "" {
			o.configPath = path
		}
	}
	if o.configPath == "" {
		o.configPath = os.Getenv(configPathEnv)
	}

	v.SetEnvPrefix(o.envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if err := readConfigFile(v, o); err != nil {
		return nil, err
	}

	cfg := &Config{ConfigFile: v.ConfigFileUsed()}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, errFactory.Wrap(errors.ErrReadConfig, err)
	}

	mode, err := policy.ParseMode(string(cfg.Mode))
	if err != nil {
		return nil, err
	}
	cfg.Mode = mode

	if cfg.Color, err = resolveColor(v, fs); err != nil {
		return nil, err
	}

	for i := range cfg.Zones {
		cfg.Zones[i].Enabled = v.GetBool(zoneKey(i))
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func bindFlags(v *viper.Viper, fs *pflag.FlagSet) error {
	if err := v.BindPFlags(fs); err != nil {
		return err
	}

	// flag names use dashes, config keys underscores
	return v.BindPFlag("log_level", fs.Lookup("log-level"))
}

func flagString(fs *pflag.FlagSet, name string) string {
	if fs.Lookup(name) == nil {
		return ""
	}
	s, err := fs.GetString(name)
	if err != nil {
		return ""
	}

	return s
}

func readConfigFile(v *viper.Viper, o options) error {
	errFactory := errors.New()

	if o.configPath != "" {
		v.SetConfigFile(o.configPath)
		v.SetConfigType("toml")
		if err := v.ReadInConfig(); err != nil {
			return errFactory.Wrap(errors.ErrReadConfig, err)
		}

		return nil
	}

	v.SetConfigName(DefaultConfigName)
	v.SetConfigType("toml")
	for _, p := range o.searchPaths {
		v.AddConfigPath(p)
	}
	if len(o.searchPaths) == 0 {
		return nil
	}
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return errFactory.Wrap(errors.ErrReadConfig, err)
		}
	}

	return nil
}

// resolveColor applies, in order: channel flags set on the command line, the
// hex color key, then the red/green/blue keys.
func resolveColor(v *viper.Viper, fs *pflag.FlagSet) (protocol.Color, error) {
	channelFlagSet := false
	if fs != nil {
		for _, name := range []string{"red", "green", "blue"} {
			if f := fs.Lookup(name); f != nil && f.Changed {
				channelFlagSet = true
			}
		}
	}

	if hex := v.GetString("color"); hex != "" && !channelFlagSet {
		c, err := protocol.ParseHex(hex)
		if err != nil {
			return protocol.Color{}, errors.New().Wrap(errors.ErrInvalidColor, err)
		}

		return c, nil
	}

	r, g, b := v.GetInt("red"), v.GetInt("green"), v.GetInt("blue")
	for _, ch := range []struct {
		name  string
		value int
	}{{"red", r}, {"green", g}, {"blue", b}} {
		if ch.value < 0 || ch.value > 255 {
			return protocol.Color{}, errors.New().Wrap(errors.ErrInvalidConfig,
				ValidationErrors{&fieldError{ch.name, ch.value, "must be between 0 and 255"}})
		}
	}

	return protocol.Color{R: uint8(r), G: uint8(g), B: uint8(b)}, nil
}

// Validate checks ranges of every field. All problems are reported at once.
func (c *Config) Validate() error {
	var errs ValidationErrors
	add := func(field string, value interface{}, reason string) {
		errs = append(errs, &fieldError{field: field, value: value, reason: reason})
	}

	if c.Brightness < 0 || c.Brightness > 100 {
		add("brightness", c.Brightness, "must be between 0 and 100")
	}
	if c.Mode == policy.ModeFixed && (c.Speed < protocol.MinRPM || c.Speed > protocol.MaxRPM) {
		add("speed", c.Speed, fmt.Sprintf("must be between %d and %d", protocol.MinRPM, protocol.MaxRPM))
	}
	if !LogLevel(strings.ToLower(c.LogLevel)).IsValid() {
		add("log_level", c.LogLevel, "must be one of debug, info, warning, error")
	}
	if c.Interval <= 0 {
		add("interval", c.Interval, "must be positive")
	}
	if c.SpeedHysteresis < 0 {
		add("speed_hysteresis", c.SpeedHysteresis, "must not be negative")
	}
	if c.Quiet.MinTemp >= c.Quiet.MaxTemp {
		add("quiet.min_temp", c.Quiet.MinTemp, "must be below quiet.max_temp")
	}
	if c.State.Enabled && c.State.Path == "" {
		add("state.path", c.State.Path, "required when state is enabled")
	}

	if len(errs) == 0 {
		return nil
	}

	code := errors.ErrInvalidConfig
	for _, e := range errs {
		if e.Field() == "log_level" {
			code = errors.ErrInvalidLogLevel
		}
	}

	return errors.New().Wrap(code, errs)
}

// IntervalDuration returns the control cycle period.
func (c *Config) IntervalDuration() time.Duration {
	return time.Duration(c.Interval) * time.Second
}

// EnabledZones maps the external 0-3 zone sections to zones 1-4.
func (c *Config) EnabledZones() map[protocol.Zone]bool {
	enabled := make(map[protocol.Zone]bool, protocol.ZoneCount)
	for i, z := range c.Zones {
		enabled[protocol.Zone(i+1)] = z.Enabled
	}

	return enabled
}

// Policy returns the mapping policy described by the configuration.
func (c *Config) Policy() policy.Policy {
	curve := policy.DefaultCurve()
	curve.MinTemp = sensor.Celsius(c.Quiet.MinTemp)
	curve.MaxTemp = sensor.Celsius(c.Quiet.MaxTemp)

	return policy.Policy{
		Mode: c.Mode,
		Fixed: policy.Fixed{
			Color:      c.Color,
			Brightness: c.Brightness,
			Speed:      c.Speed,
		},
		Curve:   curve,
		Enabled: c.EnabledZones(),
	}
}
