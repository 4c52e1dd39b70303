package simulator

import (
	"context"
	"time"

	"github.com/regador/esp32-simulator/internal/model"
)

// activate updates the belief only when the API answers 200.
func (s *Session) activate(ctx context.Context, cycle int, reason string, by model.Trigger) bool {
	if !s.control(ctx, cycle, model.PumpCommand{Action: model.ActionActivate, Reason: reason, TriggeredBy: by}) {
		return false
	}
	now := s.clock.Now()
	s.state = model.PumpState{IsActive: true, ActivatedAt: &now}
	s.metrics.SetPumpActive(true)
	s.log.Info().Str("reason", reason).Str("triggered_by", string(by)).Msg("pump activated")
	return true
}

func (s *Session) deactivate(ctx context.Context, cycle int, reason string, by model.Trigger) bool {
	if !s.control(ctx, cycle, model.PumpCommand{Action: model.ActionDeactivate, Reason: reason, TriggeredBy: by}) {
		return false
	}
	var elapsed time.Duration
	if s.state.ActivatedAt != nil {
		elapsed = s.clock.Now().Sub(*s.state.ActivatedAt)
		if elapsed < 0 {
			elapsed = 0
		}
	}
	s.state = model.PumpState{}
	s.metrics.SetPumpActive(false)
	s.log.Info().
		Str("reason", reason).
		Str("triggered_by", string(by)).
		Float64("duration_s", elapsed.Seconds()).
		Msg("pump deactivated")
	return true
}

func (s *Session) control(ctx context.Context, cycle int, cmd model.PumpCommand) bool {
	err := s.api.Control(ctx, s.cfg.DeviceID, cmd)
	s.metrics.PumpCommand(string(cmd.Action), string(cmd.TriggeredBy), err == nil)

	ev := model.Event{Kind: model.EventPumpCommand, Cycle: cycle, Command: &cmd, Success: err == nil}
	if err != nil {
		s.summary.CommandsFailed++
		s.logErr(err, "pump "+string(cmd.Action))
		ev.Error = err.Error()
	} else {
		s.summary.CommandsOK++
	}
	s.emit(ctx, ev)
	return err == nil
}

// pollStatus overwrites the belief with the server's view. An active pump
// with no known local activation time is back-dated by duration_seconds.
func (s *Session) pollStatus(ctx context.Context, cycle int) {
	st, err := s.api.Status(ctx, s.cfg.DeviceID)
	s.metrics.StatusPoll(err == nil)
	ev := model.Event{Kind: model.EventPumpStatus, Cycle: cycle}
	if err != nil {
		s.summary.StatusFailures++
		s.logErr(err, "pump status")
		ev.Error = err.Error()
		s.emit(ctx, ev)
		return
	}

	prev := s.state.IsActive
	if st.IsActive {
		if s.state.ActivatedAt == nil {
			at := s.clock.Now()
			if st.DurationSeconds != nil {
				at = at.Add(-time.Duration(*st.DurationSeconds * float64(time.Second)))
			}
			s.state.ActivatedAt = &at
		}
	} else {
		s.state.ActivatedAt = nil
	}
	s.state.IsActive = st.IsActive
	s.metrics.SetPumpActive(st.IsActive)

	l := s.log.Info().Int("cycle", cycle).Bool("active", st.IsActive)
	if st.IsActive && st.DurationSeconds != nil {
		l = l.Float64("duration_s", *st.DurationSeconds)
	}
	l.Msg("pump status")
	if prev != st.IsActive {
		s.log.Info().Bool("was", prev).Bool("now", st.IsActive).Msg("pump belief resynchronised")
	}

	ev.Success = true
	s.emit(ctx, ev)
}
