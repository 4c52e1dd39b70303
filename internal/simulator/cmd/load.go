package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/regador/esp32-simulator/internal/probe"
)

func newLoadCmd(cfg *Config) *cobra.Command {
	lc := probe.LoadConfig{Requests: 5, Interval: 5 * time.Second}
	cmd := &cobra.Command{
		Use:   "load",
		Short: "POST a series of random readings to a URL and report the success rate",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if lc.URL == "" {
				lc.URL = cfg.Sim.BaseURL + "/sensors"
			}
			if lc.DeviceID == "" {
				lc.DeviceID = cfg.Sim.DeviceID
			}
			if lc.Requests <= 0 {
				return fmt.Errorf("requests must be positive")
			}
			client, err := newAPIClient(cfg, lc.URL)
			if err != nil {
				return err
			}
			res := probe.Load(cmd.Context(), client, lc)

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "requests: %d\nsuccesses: %d\nfailures: %d\nsuccess rate: %.1f%%\n",
				res.Total, res.Successes, res.Failures, res.SuccessRate())
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&lc.URL, "url", "", "target url (default: API base + /sensors)")
	f.IntVarP(&lc.Requests, "requests", "n", lc.Requests, "number of requests")
	f.DurationVar(&lc.Interval, "every", lc.Interval, "pause between requests")
	f.StringVar(&lc.DeviceID, "load-device", "", "device id in the payload (default: --device)")
	return cmd
}
