package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"codeberg.org/mutker/unifanctl/internal/config"
	"codeberg.org/mutker/unifanctl/internal/errors"
	"codeberg.org/mutker/unifanctl/internal/logger"
	"github.com/spf13/cobra"
	"github.com/tebeka/atexit"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		logError(err, "unifanctl failed")
		atexit.Exit(1)
	}
	atexit.Exit(0)
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "unifanctl",
		Short: "Lighting and speed control for Lian Li UNI FAN controllers",
		Long: `unifanctl drives the RGB lighting and fan speed of a Lian Li UNI FAN ` +
			`controller. The run command keeps speeds tied to a CPU or GPU ` +
			`temperature; apply writes the configured state once.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().AddFlagSet(config.NewFlagSet("unifanctl"))

	root.AddCommand(
		newRunCmd(),
		newApplyCmd(),
		newStatusCmd(),
		newDevicesCmd(),
	)

	return root
}

// loadConfig reads configuration for cmd and initializes the global logger.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(cmd.Flags())
	if err != nil {
		return nil, err
	}

	level, _ := logger.ParseLevel(cfg.LogLevel)
	logger.Init(level, logger.IsService())
	logger.Debug().
		Str("config_file", cfg.ConfigFile).
		Str("mode", cfg.Mode.String()).
		Msg("Config loaded")

	return cfg, nil
}

func handleSignals(cancel context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	<-sigs
	logger.Info().Msg("Received termination signal.")
	cancel()
}

func logError(err error, msg string) {
	var appErr errors.Error
	if errors.As(err, &appErr) {
		logger.ErrorWithCode(appErr).Msg(msg)
		return
	}

	logger.Error().Err(err).Msg(msg)
}
