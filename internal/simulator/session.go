package simulator

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/regador/esp32-simulator/internal/metrics"
	"github.com/regador/esp32-simulator/internal/model"
	"github.com/regador/esp32-simulator/internal/regador"
)

const (
	ReasonLowHumidity      = "soil humidity low"
	ReasonAdequateHumidity = "soil humidity adequate"
	ReasonSessionEnding    = "session ending"
	ReasonChaos            = "random simulated event"
)

// API is the subset of the regador client the loop talks to.
type API interface {
	SendReading(ctx context.Context, r model.SensorReading) (*regador.Response, error)
	LatestReading(ctx context.Context, deviceID string) (*regador.LatestReading, error)
	Control(ctx context.Context, deviceID string, cmd model.PumpCommand) error
	Status(ctx context.Context, deviceID string) (model.PumpStatus, error)
	Stats(ctx context.Context, deviceID string) (model.RunStatistics, error)
}

// Sink receives loop events. Errors are logged and otherwise ignored.
type Sink interface {
	Publish(ctx context.Context, ev model.Event) error
}

// Summary reports what a session did.
type Summary struct {
	RunID          string
	Cycles         int
	ReadingsSent   int
	ReadingsFailed int
	CommandsOK     int
	CommandsFailed int
	StatusFailures int
	FinalState     model.PumpState
	Stats          *model.RunStatistics
	Stopped        bool
	Elapsed        time.Duration
}

type Option func(*Session)

func WithClock(c Clock) Option                   { return func(s *Session) { s.clock = c } }
func WithRand(r Rand) Option                     { return func(s *Session) { s.rnd = r } }
func WithLogger(l zerolog.Logger) Option         { return func(s *Session) { s.log = l } }
func WithMetrics(m *metrics.Metrics) Option      { return func(s *Session) { s.metrics = m } }
func WithSinks(sinks ...Sink) Option             { return func(s *Session) { s.sinks = append(s.sinks, sinks...) } }
func WithRunID(id string) Option                 { return func(s *Session) { s.runID = id } }
func WithRunningHook(fn func(bool)) Option       { return func(s *Session) { s.onRunning = fn } }
func WithInitialState(st model.PumpState) Option { return func(s *Session) { s.state = st } }

// Session owns all mutable loop state. It is driven by a single goroutine
// and must not be shared.
type Session struct {
	cfg     Config
	api     API
	gen     *Generator
	clock   Clock
	rnd     Rand
	log     zerolog.Logger
	metrics *metrics.Metrics
	sinks   []Sink
	runID   string

	onRunning func(bool)

	state   model.PumpState
	summary Summary
}

func New(cfg Config, api API, opts ...Option) (*Session, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if api == nil {
		return nil, errors.New("simulator: api client is required")
	}
	s := &Session{
		cfg:   cfg,
		api:   api,
		clock: realClock{},
		log:   log.Logger,
	}
	for _, o := range opts {
		o(s)
	}
	if s.rnd == nil {
		s.rnd = rand.New(rand.NewSource(s.clock.Now().UnixNano()))
	}
	s.log = s.log.With().Str("device_id", cfg.DeviceID).Logger()
	if s.runID != "" {
		s.log = s.log.With().Str("run_id", s.runID).Logger()
	}
	s.gen = NewGenerator(cfg, s.rnd, s.clock)
	s.summary.RunID = s.runID
	return s, nil
}

// State returns the current local belief about the pump.
func (s *Session) State() model.PumpState { return s.state }

// Run cycles until the configured duration elapses or ctx is cancelled, then
// shuts the pump down if it is believed active and reports the API stats.
// Cancelling ctx never aborts a request already in flight.
func (s *Session) Run(ctx context.Context) Summary {
	reqCtx := context.WithoutCancel(ctx)
	start := s.clock.Now()
	deadline := start.Add(s.cfg.Duration)

	s.setRunning(true)
	s.log.Info().
		Str("api", s.cfg.BaseURL).
		Dur("duration", s.cfg.Duration).
		Dur("interval", s.cfg.Interval).
		Msg("simulation starting")
	s.emit(reqCtx, model.Event{Kind: model.EventSessionStart, Success: true})

loop:
	for cycle := 1; ; cycle++ {
		if ctx.Err() != nil {
			s.summary.Stopped = true
			break
		}
		if !s.clock.Now().Before(deadline) {
			break
		}

		s.runCycle(reqCtx, cycle)
		s.summary.Cycles = cycle

		if !s.clock.Now().Before(deadline) {
			break
		}
		s.log.Debug().Dur("wait", s.cfg.Interval).Msg("waiting for next cycle")
		select {
		case <-ctx.Done():
			s.summary.Stopped = true
			break loop
		case <-s.clock.After(s.cfg.Interval):
		}
	}

	if s.summary.Stopped {
		s.log.Info().Int("cycles", s.summary.Cycles).Msg("stop requested, ending simulation")
	}
	s.finish(reqCtx)
	s.summary.Elapsed = s.clock.Now().Sub(start)
	s.summary.FinalState = s.state
	s.setRunning(false)
	return s.summary
}

func (s *Session) runCycle(ctx context.Context, cycle int) {
	s.metrics.Cycle()
	l := s.log.With().Int("cycle", cycle).Logger()
	l.Info().Msg("cycle")

	r := s.gen.Next()
	l.Info().Float64("temperature", r.Temperature).Int("soil_humidity", r.SoilHumidity).Msg("sensors")
	if s.sendReading(ctx, cycle, r) {
		s.summary.ReadingsSent++
	} else {
		s.summary.ReadingsFailed++
	}

	if cycle%s.cfg.AutoControlEvery == 0 {
		l.Info().Msg("evaluating automatic pump control")
		s.evaluateAutoControl(ctx, cycle)
	}

	s.pollStatus(ctx, cycle)

	if s.rnd.Float64() < s.cfg.ChaosProbability {
		l.Info().Bool("pump_active", s.state.IsActive).Msg("random pump event")
		if s.state.IsActive {
			s.deactivate(ctx, cycle, ReasonChaos, model.TriggerAutomatic)
		} else {
			s.activate(ctx, cycle, ReasonChaos, model.TriggerAutomatic)
		}
	}
}

// sendReading makes a single attempt; the next cycle is the retry.
func (s *Session) sendReading(ctx context.Context, cycle int, r model.SensorReading) bool {
	resp, err := s.api.SendReading(ctx, r)
	ev := model.Event{Kind: model.EventReading, Cycle: cycle, Reading: &r}
	switch {
	case err != nil:
		s.transportFailure(err, "send sensor reading")
		s.metrics.Reading("transport_error", r.Temperature, r.SoilHumidity)
		ev.Error = err.Error()
	case resp.StatusCode != 201:
		s.log.Warn().Int("cycle", cycle).Int("status", resp.StatusCode).Msg("sensor reading rejected")
		s.metrics.Reading("rejected", r.Temperature, r.SoilHumidity)
		ev.Error = fmt.Sprintf("unexpected status %d", resp.StatusCode)
	default:
		s.log.Info().Int("cycle", cycle).Msg("sensor reading sent")
		s.metrics.Reading("ok", r.Temperature, r.SoilHumidity)
		ev.Success = true
	}
	s.emit(ctx, ev)
	return ev.Success
}

func (s *Session) evaluateAutoControl(ctx context.Context, cycle int) {
	latest, err := s.api.LatestReading(ctx, s.cfg.DeviceID)
	if err != nil {
		s.logErr(err, "automatic control: fetch latest reading")
		return
	}
	if latest == nil {
		s.log.Debug().Int("cycle", cycle).Msg("automatic control: no readings stored yet")
		return
	}
	switch Decide(latest.SoilHumidity, s.state.IsActive, s.cfg.Policy) {
	case Activate:
		s.activate(ctx, cycle, ReasonLowHumidity, model.TriggerAutomatic)
	case Deactivate:
		s.deactivate(ctx, cycle, ReasonAdequateHumidity, model.TriggerAutomatic)
	}
}

func (s *Session) finish(ctx context.Context) {
	s.log.Info().Int("cycles", s.summary.Cycles).Msg("simulation finished")
	if s.state.IsActive {
		s.deactivate(ctx, s.summary.Cycles, ReasonSessionEnding, model.TriggerAutomatic)
	}

	stats, err := s.api.Stats(ctx, s.cfg.DeviceID)
	end := model.Event{Kind: model.EventSessionEnd, Cycle: s.summary.Cycles}
	if err != nil {
		s.logErr(err, "fetch pump statistics")
		end.Error = err.Error()
	} else {
		s.summary.Stats = &stats
		end.Success = true
		s.log.Info().
			Int("total_activations", stats.TotalActivations).
			Float64("total_duration_s", stats.TotalDurationSeconds).
			Float64("avg_duration_s", stats.AvgDurationSeconds).
			Msg("pump statistics")
	}
	s.emit(ctx, end)
}

func (s *Session) emit(ctx context.Context, ev model.Event) {
	if len(s.sinks) == 0 {
		return
	}
	ev.RunID = s.runID
	ev.DeviceID = s.cfg.DeviceID
	ev.PumpOn = s.state.IsActive
	ev.Timestamp = s.clock.Now().UTC()
	for _, sink := range s.sinks {
		if err := sink.Publish(ctx, ev); err != nil {
			s.log.Warn().Err(err).Str("kind", string(ev.Kind)).Msg("telemetry sink failed")
		}
	}
}

// transportFailure logs request errors with their classification.
func (s *Session) transportFailure(err error, what string) {
	te, ok := regador.IsTransport(err)
	if !ok {
		s.log.Error().Err(err).Msg(what + " failed")
		return
	}
	s.metrics.TransportError(string(te.Kind))
	ev := s.log.Error().Err(err).Str("kind", string(te.Kind))
	if te.Kind == regador.KindConnectionRefused {
		ev = ev.Str("hint", "check that the API is online at "+s.cfg.BaseURL)
	}
	ev.Msg(what + " failed")
}

// logErr logs any client error, counting transport failures.
func (s *Session) logErr(err error, what string) {
	if _, ok := regador.IsTransport(err); ok {
		s.transportFailure(err, what)
		return
	}
	s.log.Error().Err(err).Msg(what + " failed")
}

func (s *Session) setRunning(running bool) {
	s.metrics.SetRunning(running)
	if s.onRunning != nil {
		s.onRunning(running)
	}
}
