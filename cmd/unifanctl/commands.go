package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"

	"codeberg.org/mutker/unifanctl/internal/config"
	"codeberg.org/mutker/unifanctl/internal/control"
	"codeberg.org/mutker/unifanctl/internal/device"
	"codeberg.org/mutker/unifanctl/internal/errors"
	"codeberg.org/mutker/unifanctl/internal/logger"
	"codeberg.org/mutker/unifanctl/internal/metrics"
	"codeberg.org/mutker/unifanctl/internal/pid"
	"codeberg.org/mutker/unifanctl/internal/policy"
	"codeberg.org/mutker/unifanctl/internal/protocol"
	"codeberg.org/mutker/unifanctl/internal/sensor"
	"codeberg.org/mutker/unifanctl/internal/state"
	"github.com/spf13/cobra"
	"github.com/tebeka/atexit"
)

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the control loop until SIGINT or SIGTERM",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			pidPath := pid.Path(cfg.PIDFile)
			if err := pid.Write(pidPath); err != nil {
				return err
			}
			atexit.Register(func() {
				if err := pid.Remove(pidPath); err != nil {
					logger.Warn().Err(err).Msg("Failed to remove PID file")
				}
			})

			a, err := newApp(cfg)
			if err != nil {
				return err
			}
			atexit.Register(a.close)

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()
			go handleSignals(cancel)

			if err := a.loop.Run(ctx); err != nil {
				return errors.New().Wrap(errors.ErrMainLoop, err)
			}
			logger.Info().Msg("Exiting...")

			return nil
		},
	}
}

func newApplyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "apply",
		Short: "Write the configured state to every enabled zone once",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			a, err := newApp(cfg)
			if err != nil {
				return err
			}
			atexit.Register(a.close)

			res, err := a.loop.ApplyOnce(cmd.Context())
			if err != nil {
				return err
			}
			logger.Info().Int("zones", len(res.Applied)).Msg("Configuration applied")

			return nil
		},
	}
}

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Print the last state applied to each zone",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if !cfg.State.Enabled {
				fmt.Fprintln(out, "state store disabled")
				return nil
			}

			// status must not create the database
			if _, err := os.Stat(cfg.State.Path); os.IsNotExist(err) {
				fmt.Fprintln(out, "no state recorded")
				return nil
			}

			store, err := state.NewStore(state.Config{DBPath: cfg.State.Path, Enabled: true}, logger.Get().WithComponent("state"))
			if err != nil {
				return err
			}
			defer store.Close()

			states, err := store.Load(cmd.Context())
			if err != nil {
				return err
			}
			if len(states) == 0 {
				fmt.Fprintln(out, "no state recorded")
				return nil
			}

			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ZONE\tCOLOR\tBRIGHTNESS\tSPEED\tMODE\tTEMP\tAPPLIED")
			for _, s := range states {
				temp := "-"
				if s.Temperature != nil {
					temp = strconv.FormatFloat(*s.Temperature, 'f', 1, 64)
				}
				fmt.Fprintf(w, "%d\t%s\t%.0f%%\t%d\t%s\t%s\t%s\n",
					s.Zone, s.Color, s.Brightness, s.Speed, s.Mode, temp,
					s.AppliedAt.Local().Format("2006-01-02 15:04:05"))
			}

			return w.Flush()
		},
	}
}

func newDevicesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "devices",
		Short: "List attached controllers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if _, err := loadConfig(cmd); err != nil {
				return err
			}
			defer device.Shutdown() //nolint:errcheck

			infos, err := device.Enumerate()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(infos) == 0 {
				fmt.Fprintln(out, "no supported controller found")
				return nil
			}

			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tPRODUCT\tSERIAL\tPATH")
			for _, info := range infos {
				fmt.Fprintf(w, "%04x:%04x\t%s\t%s\t%s\n",
					info.VendorID, info.ProductID, info.Product, info.Serial, info.Path)
			}

			return w.Flush()
		},
	}
}

// app holds everything a control loop needs, opened in dependency order.
type app struct {
	ctrl    *device.Controller
	source  sensor.Source
	store   state.Store
	metrics metrics.Collector
	loop    *control.Loop

	// hidStarted is set once device.Open may have initialized hidapi,
	// including when it then failed to find a controller.
	hidStarted bool
}

var shutdownHID = device.Shutdown

func newApp(cfg *config.Config) (*app, error) {
	if err := preflight(cfg); err != nil {
		return nil, err
	}

	log := logger.Get()
	a := &app{}

	store, err := state.NewStore(state.Config{DBPath: cfg.State.Path, Enabled: cfg.State.Enabled}, log.WithComponent("state"))
	if err != nil {
		return nil, err
	}
	a.store = store

	collector, err := metrics.NewService(metrics.Config{Textfile: cfg.Metrics.Textfile}, log.WithComponent("metrics"))
	if err != nil {
		a.close()
		return nil, err
	}
	a.metrics = collector

	a.hidStarted = true
	ctrl, err := device.Open(device.WithLogger(log.WithComponent("device")))
	if err != nil {
		a.close()
		return nil, err
	}
	a.ctrl = ctrl
	logger.Info().Str("product_id", fmt.Sprintf("%04x", ctrl.ProductID())).Msg("Controller opened")

	if err := ctrl.Init(); err != nil {
		a.close()
		return nil, err
	}

	a.source = sensor.Select(cfg.Mode.SensorKind(), log.WithComponent("sensor"))

	loop, err := control.New(ctrl, a.source, cfg.Policy(),
		control.WithInterval(cfg.IntervalDuration()),
		control.WithHysteresis(cfg.SpeedHysteresis),
		control.WithStore(a.store),
		control.WithMetrics(a.metrics),
		control.WithLogger(log.WithComponent("control")),
	)
	if err != nil {
		a.close()
		return nil, err
	}
	a.loop = loop

	return a, nil
}

// preflight encodes every enabled zone once so a bad configuration fails
// before the device is touched.
func preflight(cfg *config.Config) error {
	p := cfg.Policy()
	for _, zone := range protocol.Zones() {
		if !p.Enabled[zone] {
			continue
		}
		if _, err := protocol.Encode(zone, p.Fixed.Color, p.Fixed.Brightness); err != nil {
			return err
		}
		if p.Mode == policy.ModeFixed {
			if _, err := protocol.EncodeSpeed(zone, p.Fixed.Speed); err != nil {
				return err
			}
		}
	}

	return nil
}

func (a *app) close() {
	if a.source != nil {
		if err := a.source.Close(); err != nil {
			logger.Warn().Err(err).Msg("Failed to close temperature source")
		}
	}
	if a.ctrl != nil {
		if err := a.ctrl.Close(); err != nil {
			logError(err, "Failed to close device")
		}
	}
	if a.hidStarted {
		if err := shutdownHID(); err != nil {
			logger.Warn().Err(err).Msg("Failed to shut down hidapi")
		}
	}
	if a.metrics != nil {
		if err := a.metrics.Close(); err != nil {
			logger.Warn().Err(err).Msg("Failed to close metrics")
		}
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			logger.Warn().Err(err).Msg("Failed to close state store")
		}
	}
}
