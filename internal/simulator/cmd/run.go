package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/regador/esp32-simulator/internal/control"
	"github.com/regador/esp32-simulator/internal/journal"
	"github.com/regador/esp32-simulator/internal/metrics"
	"github.com/regador/esp32-simulator/internal/mirror"
	"github.com/regador/esp32-simulator/internal/probe"
	"github.com/regador/esp32-simulator/internal/regador"
	"github.com/regador/esp32-simulator/internal/simulator"
	"github.com/regador/esp32-simulator/pkg/broker"
)

var errAborted = errors.New("aborted: API unreachable")

func newRunCmd(cfg *Config) *cobra.Command {
	var (
		interactive   bool
		force         bool
		skipPreflight bool
	)
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a simulated device session",
		RunE: func(cmd *cobra.Command, _ []string) error {
			var p *prompter
			if interactive {
				p = newPrompter(cmd.InOrStdin(), cmd.OutOrStdout())
				cfg.Sim = p.configure(cfg.Sim)
			}
			if err := cfg.Sim.Validate(); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			client, err := newAPIClient(cfg, cfg.Sim.BaseURL)
			if err != nil {
				return err
			}

			if !skipPreflight {
				res, err := preflight(ctx, cfg)
				if err != nil {
					return err
				}
				logPreflight(res)
				if !res.Reachable {
					switch {
					case p != nil:
						if !p.confirm("Could not reach the API. Continue anyway?") {
							return errAborted
						}
					case !force:
						return fmt.Errorf("%w at %s (use --force or --skip-preflight)", errAborted, cfg.Sim.BaseURL)
					}
					log.Warn().Msg("continuing without a reachable API")
				}
			}

			sum := runSession(ctx, cfg, client)
			printSummary(cmd.OutOrStdout(), sum)
			return nil
		},
	}
	f := cmd.Flags()
	f.DurationVar(&cfg.Sim.Duration, "duration", cfg.Sim.Duration, "session duration")
	f.DurationVar(&cfg.Sim.Interval, "interval", cfg.Sim.Interval, "cycle interval")
	f.IntVar(&cfg.Sim.AutoControlEvery, "auto-every", cfg.Sim.AutoControlEvery, "evaluate automatic pump control every N cycles")
	f.Float64Var(&cfg.Sim.ChaosProbability, "chaos", cfg.Sim.ChaosProbability, "per-cycle probability of a random pump toggle")
	f.IntVar(&cfg.Sim.Policy.Low, "low", cfg.Sim.Policy.Low, "activate below this soil humidity (%)")
	f.IntVar(&cfg.Sim.Policy.High, "high", cfg.Sim.Policy.High, "deactivate above this soil humidity (%)")
	f.IntVar(&cfg.BreakerFailures, "breaker-failures", cfg.BreakerFailures, "consecutive transport failures that open the circuit breaker (negative disables)")
	f.StringVar(&cfg.MQTT.URL, "mqtt", cfg.MQTT.URL, "MQTT broker url for event mirroring and remote commands (empty disables)")
	f.StringVar(&cfg.Influx.URL, "influx", cfg.Influx.URL, "InfluxDB url for the run journal (empty disables)")
	f.StringVar(&cfg.MetricsAddr, "metrics-addr", cfg.MetricsAddr, "address for /metrics and /healthz (empty disables)")
	f.StringVar(&cfg.GRPCAddr, "grpc-addr", cfg.GRPCAddr, "address for the gRPC health service (empty disables)")
	f.BoolVarP(&interactive, "interactive", "i", false, "prompt for url, device and duration")
	f.BoolVar(&force, "force", false, "start even if the pre-flight probe fails")
	f.BoolVar(&skipPreflight, "skip-preflight", false, "do not probe the API before starting")
	return cmd
}

// preflight probes the API with a client of its own and no breaker, so
// failed candidates never count against the session client.
func preflight(ctx context.Context, cfg *Config) (probe.PreflightResult, error) {
	c, err := regador.NewClient(regador.Config{
		BaseURL:         cfg.Sim.BaseURL,
		Timeout:         cfg.APITimeout,
		BreakerFailures: -1,
	})
	if err != nil {
		return probe.PreflightResult{}, err
	}
	return probe.Preflight(ctx, c, cfg.Sim.BaseURL), nil
}

// runSession wires the optional side services around one session. They
// outlive the stop signal so the final shutdown and stats are still
// mirrored, and are torn down when the session returns.
func runSession(ctx context.Context, cfg *Config, api simulator.API) simulator.Summary {
	runID := uuid.NewString()
	svcCtx, svcCancel := context.WithCancel(context.WithoutCancel(ctx))
	defer svcCancel()

	sessionCtx, stopSession := context.WithCancel(ctx)
	defer stopSession()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	opts := []simulator.Option{
		simulator.WithLogger(log.Logger),
		simulator.WithMetrics(m),
		simulator.WithRunID(runID),
	}
	var checks []metrics.Check

	if cfg.GRPCAddr != "" {
		h := control.NewHealth()
		go func() {
			if err := h.Serve(svcCtx, cfg.GRPCAddr); err != nil {
				log.Error().Err(err).Msg("grpc health server failed")
			}
		}()
		opts = append(opts, simulator.WithRunningHook(h.SetRunning))
	}

	if cfg.MQTT.URL != "" {
		mc := cfg.MQTT
		if mc.ClientID == "" {
			mc.ClientID = "esp32-sim-" + runID[:8]
		}
		client, err := broker.Connect(svcCtx, mc)
		if err != nil {
			log.Warn().Err(err).Msg("mqtt unavailable, running without mirror and remote commands")
		} else {
			pub := broker.NewPublisher(client, broker.Topic(cfg.EventsTopic, cfg.Sim.DeviceID), 0)
			opts = append(opts, simulator.WithSinks(mirror.New(pub)))

			cmds := control.NewCommands(cfg.Sim.DeviceID, stopSession)
			topic := broker.Topic(cfg.CommandsTopic, cfg.Sim.DeviceID)
			if err := broker.NewConsumer(client, topic, 1, cmds.Handle).Subscribe(svcCtx); err != nil {
				log.Warn().Err(err).Msg("remote commands disabled")
			}
		}
	}

	if cfg.Influx.URL != "" {
		j, err := journal.New(cfg.Influx)
		if err != nil {
			log.Warn().Err(err).Msg("influx journal disabled")
		} else {
			defer j.Close()
			pctx, cancel := context.WithTimeout(svcCtx, 5*time.Second)
			if err := j.Ping(pctx); err != nil {
				log.Warn().Err(err).Msg("influx not answering, writes may fail")
			}
			cancel()
			opts = append(opts, simulator.WithSinks(j))
			checks = append(checks, j.Check)
		}
	}

	if cfg.MetricsAddr != "" {
		go func() {
			if err := metrics.Serve(svcCtx, cfg.MetricsAddr, reg, checks...); err != nil {
				log.Error().Err(err).Msg("metrics server failed")
			}
		}()
	}

	s, err := simulator.New(cfg.Sim, api, opts...)
	if err != nil {
		// Validate already ran; only a nil client gets here.
		log.Error().Err(err).Msg("cannot start session")
		return simulator.Summary{RunID: runID}
	}
	return s.Run(sessionCtx)
}

func logPreflight(res probe.PreflightResult) {
	for _, a := range res.Attempts {
		var ev *zerolog.Event
		if a.Err != nil {
			ev = log.Warn().Err(a.Err)
		} else {
			ev = log.Info().Int("status", a.StatusCode)
		}
		ev.Str("url", a.URL).Bool("reachable", a.Reachable()).Msg("pre-flight")
	}
}

func printSummary(w io.Writer, s simulator.Summary) {
	fmt.Fprintf(w, "\nrun %s: %d cycles in %s", s.RunID, s.Cycles, s.Elapsed.Round(time.Second))
	if s.Stopped {
		fmt.Fprint(w, " (stopped)")
	}
	fmt.Fprintf(w, "\n  readings   sent=%d failed=%d\n", s.ReadingsSent, s.ReadingsFailed)
	fmt.Fprintf(w, "  commands   ok=%d failed=%d\n", s.CommandsOK, s.CommandsFailed)
	fmt.Fprintf(w, "  pump       active=%v\n", s.FinalState.IsActive)
	if s.Stats != nil {
		fmt.Fprintf(w, "  stats      activations=%d total=%.1fs avg=%.1fs\n",
			s.Stats.TotalActivations, s.Stats.TotalDurationSeconds, s.Stats.AvgDurationSeconds)
	} else {
		fmt.Fprintln(w, "  stats      unavailable")
	}
}
