// Package journal records simulator events in InfluxDB.
package journal

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/rs/zerolog/log"

	"github.com/regador/esp32-simulator/internal/model"
)

const Measurement = "simulator_event"

type Config struct {
	URL    string
	Token  string
	Org    string
	Bucket string
}

// UnhealthyFor is how long Check keeps failing after a rejected write.
const UnhealthyFor = 30 * time.Second

// Journal queues one point per event on the async write API and keeps the
// time of the last failed batch, reported by the client on Errors().
type Journal struct {
	client influxdb2.Client
	api    api.WriteAPI

	mu      sync.RWMutex
	lastErr time.Time
}

func New(cfg Config) (*Journal, error) {
	if strings.TrimSpace(cfg.URL) == "" {
		return nil, fmt.Errorf("journal: influx url is required")
	}
	if cfg.Org == "" || cfg.Bucket == "" {
		return nil, fmt.Errorf("journal: influx org and bucket are required")
	}
	client := influxdb2.NewClientWithOptions(cfg.URL, cfg.Token,
		influxdb2.DefaultOptions().
			SetHTTPRequestTimeout(10).
			SetBatchSize(50).
			SetFlushInterval(1000))
	j := &Journal{
		client: client,
		api:    client.WriteAPI(cfg.Org, cfg.Bucket),
	}
	// Errors must be requested before the first write or failures are dropped.
	errs := j.api.Errors()
	go func() {
		for err := range errs {
			if err == nil {
				continue
			}
			j.mu.Lock()
			j.lastErr = time.Now()
			j.mu.Unlock()
			log.Warn().Err(err).Msg("influx write failed")
		}
	}()
	return j, nil
}

// Ping reports whether the server answers; failure is not fatal to callers.
func (j *Journal) Ping(ctx context.Context) error {
	ok, err := j.client.Ping(ctx)
	if err != nil {
		return fmt.Errorf("journal: ping: %w", err)
	}
	if !ok {
		return fmt.Errorf("journal: influx not ready")
	}
	return nil
}

// Publish only enqueues the point, so a slow server never stalls the
// session loop. Write failures surface later through Check.
func (j *Journal) Publish(_ context.Context, ev model.Event) error {
	j.api.WritePoint(EventToPoint(ev))
	return nil
}

// LastErrorAge returns a large value if no write has failed yet.
func (j *Journal) LastErrorAge() time.Duration {
	j.mu.RLock()
	t := j.lastErr
	j.mu.RUnlock()
	if t.IsZero() {
		return 99999 * time.Hour
	}
	return time.Since(t)
}

// Check fails while the last rejected write is younger than UnhealthyFor.
func (j *Journal) Check() error {
	if age := j.LastErrorAge(); age < UnhealthyFor {
		return fmt.Errorf("influx write failed %s ago", age.Round(time.Second))
	}
	return nil
}

// Flush blocks until queued points have been sent.
func (j *Journal) Flush() {
	j.api.Flush()
}

func (j *Journal) Close() {
	j.api.Flush()
	j.client.Close()
	log.Debug().Msg("influx journal closed")
}

// EventToPoint maps an event onto the simulator_event measurement.
func EventToPoint(ev model.Event) *write.Point {
	tags := map[string]string{
		"device_id": ev.DeviceID,
		"kind":      string(ev.Kind),
	}
	if ev.RunID != "" {
		tags["run_id"] = ev.RunID
	}
	fields := map[string]interface{}{
		"cycle":   ev.Cycle,
		"success": ev.Success,
		"pump_on": ev.PumpOn,
	}
	if ev.Error != "" {
		fields["error"] = ev.Error
	}
	if r := ev.Reading; r != nil {
		fields["temperature"] = r.Temperature
		fields["soil_humidity"] = r.SoilHumidity
	}
	if c := ev.Command; c != nil {
		fields["action"] = string(c.Action)
		fields["reason"] = c.Reason
		fields["triggered_by"] = string(c.TriggeredBy)
	}
	ts := ev.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	return influxdb2.NewPoint(Measurement, tags, fields, ts)
}
