package main

import (
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/regador/esp32-simulator/internal/logging"
	"github.com/regador/esp32-simulator/internal/regador"
)

func main() {
	cfg := loadConfig()
	if err := newRootCmd(&cfg).Execute(); err != nil {
		log.Error().Err(err).Msg("esp32-sim failed")
		os.Exit(1)
	}
}

func newRootCmd(cfg *Config) *cobra.Command {
	root := &cobra.Command{
		Use:           "esp32-sim",
		Short:         "Simulated ESP32 irrigation device for the Regador API",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			return logging.Init(cfg.LogLevel, cfg.Pretty)
		},
	}
	pf := root.PersistentFlags()
	pf.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level (trace|debug|info|warn|error)")
	pf.BoolVar(&cfg.Pretty, "pretty", cfg.Pretty, "human readable console logs")
	pf.StringVar(&cfg.Sim.BaseURL, "api", cfg.Sim.BaseURL, "API base url")
	pf.StringVar(&cfg.Sim.DeviceID, "device", cfg.Sim.DeviceID, "device id")
	pf.DurationVar(&cfg.APITimeout, "timeout", cfg.APITimeout, "per-request HTTP timeout")

	root.AddCommand(
		newRunCmd(cfg),
		newCheckCmd(cfg),
		newSmokeCmd(cfg),
		newLoadCmd(cfg),
	)
	return root
}

func newAPIClient(cfg *Config, base string) (*regador.Client, error) {
	return regador.NewClient(regador.Config{
		BaseURL:         base,
		Timeout:         cfg.APITimeout,
		BreakerFailures: cfg.BreakerFailures,
	})
}
