package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/regador/esp32-simulator/internal/probe"
)

func newSmokeCmd(cfg *Config) *cobra.Command {
	var (
		wait      time.Duration
		healthURL string
	)
	cmd := &cobra.Command{
		Use:   "smoke",
		Short: "Quick end-to-end sequence: send, activate, status, deactivate, stats",
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := newAPIClient(cfg, cfg.Sim.BaseURL)
			if err != nil {
				return err
			}
			if healthURL == "" {
				healthURL = strings.TrimSuffix(client.BaseURL(), "/api") + "/health"
			}
			steps := probe.Smoke(cmd.Context(), client, probe.SmokeConfig{
				HealthURL: healthURL,
				DeviceID:  cfg.Sim.DeviceID,
				Wait:      wait,
			})

			out := cmd.OutOrStdout()
			failed := 0
			for _, s := range steps {
				mark := "ok  "
				if !s.OK {
					mark = "FAIL"
					failed++
				}
				line := fmt.Sprintf("%s %s", mark, s.Name)
				if s.Detail != "" {
					line += ": " + s.Detail
				}
				if s.Err != nil {
					line += ": " + s.Err.Error()
				}
				fmt.Fprintln(out, line)
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d smoke steps failed", failed, len(steps))
			}
			return nil
		},
	}
	cmd.Flags().DurationVar(&wait, "wait", 3*time.Second, "pause between activation and the second status check")
	cmd.Flags().StringVar(&healthURL, "health-url", "", "health endpoint (default: API root + /health)")
	return cmd
}
