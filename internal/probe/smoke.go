package probe

import (
	"context"
	"fmt"
	"math/rand"
	"net/http"
	"time"

	"github.com/regador/esp32-simulator/internal/model"
	"github.com/regador/esp32-simulator/internal/regador"
)

// SmokeAPI is the client surface the smoke sequence needs.
type SmokeAPI interface {
	Getter
	SendReading(ctx context.Context, r model.SensorReading) (*regador.Response, error)
	Control(ctx context.Context, deviceID string, cmd model.PumpCommand) error
	Status(ctx context.Context, deviceID string) (model.PumpStatus, error)
	Stats(ctx context.Context, deviceID string) (model.RunStatistics, error)
}

type SmokeConfig struct {
	HealthURL string
	DeviceID  string
	// Wait is the pause between activation and the second status check.
	Wait time.Duration
	Rand *rand.Rand
}

type Step struct {
	Name   string
	OK     bool
	Detail string
	Err    error
}

// Smoke runs the quick end-to-end sequence. Only a failed health check
// aborts; every later step runs regardless of earlier failures.
func Smoke(ctx context.Context, api SmokeAPI, cfg SmokeConfig) []Step {
	rnd := cfg.Rand
	if rnd == nil {
		rnd = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	var steps []Step

	resp, err := api.Get(ctx, cfg.HealthURL)
	health := Step{Name: "health"}
	switch {
	case err != nil:
		health.Err = err
	case resp.StatusCode != http.StatusOK:
		health.Err = fmt.Errorf("health answered %s", regador.StatusText(resp.StatusCode))
	default:
		health.OK = true
	}
	steps = append(steps, health)
	if !health.OK {
		return steps
	}

	reading := model.SensorReading{
		Temperature:  25.0,
		SoilHumidity: 30 + rnd.Intn(51),
		Timestamp:    time.Now().UnixMilli(),
		DeviceID:     cfg.DeviceID,
	}
	send := Step{Name: "send reading"}
	if resp, err := api.SendReading(ctx, reading); err != nil {
		send.Err = err
	} else if resp.StatusCode != http.StatusCreated {
		send.Err = fmt.Errorf("unexpected status %s", regador.StatusText(resp.StatusCode))
	} else {
		send.OK = true
		send.Detail = fmt.Sprintf("soil humidity %d%%", reading.SoilHumidity)
	}
	steps = append(steps, send)

	steps = append(steps, statusStep(ctx, api, cfg.DeviceID, "pump status"))
	steps = append(steps, controlStep(ctx, api, cfg.DeviceID, model.ActionActivate, "smoke test"))

	if cfg.Wait > 0 {
		select {
		case <-ctx.Done():
		case <-time.After(cfg.Wait):
		}
	}

	steps = append(steps, statusStep(ctx, api, cfg.DeviceID, "pump status after activation"))
	steps = append(steps, controlStep(ctx, api, cfg.DeviceID, model.ActionDeactivate, "smoke test finished"))

	stats := Step{Name: "pump statistics"}
	if st, err := api.Stats(ctx, cfg.DeviceID); err != nil {
		stats.Err = err
	} else {
		stats.OK = true
		stats.Detail = fmt.Sprintf("activations=%d total=%.1fs avg=%.1fs",
			st.TotalActivations, st.TotalDurationSeconds, st.AvgDurationSeconds)
	}
	return append(steps, stats)
}

func statusStep(ctx context.Context, api SmokeAPI, deviceID, name string) Step {
	s := Step{Name: name}
	st, err := api.Status(ctx, deviceID)
	if err != nil {
		s.Err = err
		return s
	}
	s.OK = true
	if st.IsActive {
		s.Detail = "active"
		if st.DurationSeconds != nil {
			s.Detail += fmt.Sprintf(" for %.1fs", *st.DurationSeconds)
		}
	} else {
		s.Detail = "inactive"
	}
	if st.TotalActivations != nil {
		s.Detail += fmt.Sprintf(", %d activations", *st.TotalActivations)
	}
	return s
}

func controlStep(ctx context.Context, api SmokeAPI, deviceID string, action model.PumpAction, reason string) Step {
	s := Step{Name: "pump " + string(action)}
	err := api.Control(ctx, deviceID, model.PumpCommand{Action: action, Reason: reason, TriggeredBy: model.TriggerManual})
	if err != nil {
		s.Err = err
		return s
	}
	s.OK = true
	return s
}
