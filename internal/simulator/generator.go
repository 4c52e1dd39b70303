package simulator

import (
	"math"

	"github.com/regador/esp32-simulator/internal/model"
)

// Generator produces synthetic readings around the configured base values.
type Generator struct {
	deviceID string
	cfg      Config
	rnd      Rand
	clock    Clock
}

func NewGenerator(cfg Config, rnd Rand, clock Clock) *Generator {
	return &Generator{deviceID: cfg.DeviceID, cfg: cfg, rnd: rnd, clock: clock}
}

// Next draws temperature then humidity. Temperature is rounded to one
// decimal; humidity is truncated toward zero and clamped to 0..100.
func (g *Generator) Next() model.SensorReading {
	dt := g.uniform(g.cfg.TemperatureVariation)
	dh := g.uniform(g.cfg.HumidityVariation)

	return model.SensorReading{
		Temperature:  math.Round((g.cfg.BaseTemperature+dt)*10) / 10,
		SoilHumidity: clampPercent(int(g.cfg.BaseHumidity + dh)),
		Timestamp:    g.clock.Now().UnixMilli(),
		DeviceID:     g.deviceID,
	}
}

// uniform returns a value in [-v, +v].
func (g *Generator) uniform(v float64) float64 {
	return -v + 2*v*g.rnd.Float64()
}

func clampPercent(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
