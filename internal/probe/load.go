package probe

import (
	"context"
	"math/rand"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/regador/esp32-simulator/internal/regador"
)

// Poster sends JSON to an absolute URL; *regador.Client satisfies it.
type Poster interface {
	Post(ctx context.Context, rawURL string, body any) (*regador.Response, error)
}

type LoadConfig struct {
	URL      string
	Requests int
	Interval time.Duration
	DeviceID string
	Rand     *rand.Rand
}

// loadPayload carries no temperature, matching a bare humidity sensor.
type loadPayload struct {
	SoilHumidity int    `json:"umidade_solo"`
	Timestamp    int64  `json:"timestamp"`
	DeviceID     string `json:"device_id"`
}

type LoadResult struct {
	Total     int
	Successes int
	Failures  int
	Codes     map[int]int
}

func (r LoadResult) SuccessRate() float64 {
	if r.Total == 0 {
		return 0
	}
	return float64(r.Successes) / float64(r.Total) * 100
}

// Load posts cfg.Requests readings with humidity in [20,90], waiting
// cfg.Interval between them. Any 2xx is a success. Cancelling ctx stops
// before the next request.
func Load(ctx context.Context, p Poster, cfg LoadConfig) LoadResult {
	rnd := cfg.Rand
	if rnd == nil {
		rnd = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	res := LoadResult{Codes: map[int]int{}}

	for i := 0; i < cfg.Requests; i++ {
		if ctx.Err() != nil {
			break
		}
		body := loadPayload{
			SoilHumidity: 20 + rnd.Intn(71),
			Timestamp:    time.Now().UnixMilli(),
			DeviceID:     cfg.DeviceID,
		}
		res.Total++
		resp, err := p.Post(context.WithoutCancel(ctx), cfg.URL, body)
		l := log.With().Int("request", i+1).Int("of", cfg.Requests).Int("soil_humidity", body.SoilHumidity).Logger()
		switch {
		case err != nil:
			res.Failures++
			l.Warn().Err(err).Msg("load request failed")
		case resp.StatusCode >= 200 && resp.StatusCode < 300:
			res.Successes++
			res.Codes[resp.StatusCode]++
			l.Info().Int("status", resp.StatusCode).Msg("load request ok")
		default:
			res.Failures++
			res.Codes[resp.StatusCode]++
			l.Warn().Int("status", resp.StatusCode).Str("body", truncate(string(resp.Body), 200)).Msg("load request rejected")
		}

		if i < cfg.Requests-1 && cfg.Interval > 0 {
			select {
			case <-ctx.Done():
			case <-time.After(cfg.Interval):
			}
		}
	}
	return res
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "…"
}
