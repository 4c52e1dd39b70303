// Package simulator runs the simulated ESP32 device session: it pushes
// synthetic sensor readings to the API, applies the automatic pump policy,
// polls pump status and injects random pump toggles.
package simulator

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	DefaultBaseURL  = "http://localhost:3000/api"
	DefaultDeviceID = "ESP32_002"
	DefaultDuration = 10 * time.Minute
	DefaultInterval = 5 * time.Second
)

// Config is built once at startup and never mutated by the loop.
type Config struct {
	BaseURL  string
	DeviceID string
	Duration time.Duration
	Interval time.Duration

	// AutoControlEvery runs the humidity policy on every Nth cycle.
	AutoControlEvery int

	BaseTemperature      float64
	TemperatureVariation float64
	BaseHumidity         float64
	HumidityVariation    float64

	// ChaosProbability is the per-cycle chance of an unsolicited pump toggle.
	ChaosProbability float64
	Policy           Policy
}

func DefaultConfig() Config {
	return Config{
		BaseURL:              DefaultBaseURL,
		DeviceID:             DefaultDeviceID,
		Duration:             DefaultDuration,
		Interval:             DefaultInterval,
		AutoControlEvery:     3,
		BaseTemperature:      25.0,
		TemperatureVariation: 5.0,
		BaseHumidity:         60,
		HumidityVariation:    20,
		ChaosProbability:     0.10,
		Policy:               DefaultPolicy(),
	}
}

func (c Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.BaseURL) == "" {
		errs = append(errs, errors.New("base url is required"))
	}
	if strings.TrimSpace(c.DeviceID) == "" {
		errs = append(errs, errors.New("device id is required"))
	}
	if c.Duration < 0 {
		errs = append(errs, fmt.Errorf("duration must not be negative (got %s)", c.Duration))
	}
	if c.Interval <= 0 {
		errs = append(errs, fmt.Errorf("interval must be positive (got %s)", c.Interval))
	}
	if c.AutoControlEvery < 1 {
		errs = append(errs, fmt.Errorf("auto-control frequency must be >= 1 (got %d)", c.AutoControlEvery))
	}
	if c.TemperatureVariation < 0 || c.HumidityVariation < 0 {
		errs = append(errs, errors.New("variations must not be negative"))
	}
	if c.ChaosProbability < 0 || c.ChaosProbability > 1 {
		errs = append(errs, fmt.Errorf("chaos probability must be in [0,1] (got %g)", c.ChaosProbability))
	}
	if err := c.Policy.Validate(); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return fmt.Errorf("simulator config: %w", errors.Join(errs...))
	}
	return nil
}
