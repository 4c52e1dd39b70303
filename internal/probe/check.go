package probe

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/regador/esp32-simulator/internal/model"
	"github.com/regador/esp32-simulator/internal/regador"
)

// Outcome classifies one endpoint answer.
type Outcome string

const (
	OutcomeOK             Outcome = "ok"
	OutcomeNotFound       Outcome = "not-found"
	OutcomeServerError    Outcome = "server-error"
	OutcomeUnexpected     Outcome = "unexpected"
	OutcomeTransportError Outcome = "transport-error"
)

// Requester issues requests relative to the API base.
type Requester interface {
	Path(ctx context.Context, method, path string, body any) (*regador.Response, error)
}

type CheckResult struct {
	Name       string
	Method     string
	Path       string
	StatusCode int
	Outcome    Outcome
	// Records is the length of a {"data":[...]} body, or -1.
	Records int
	Err     error
}

// Classify maps a status code to an Outcome.
func Classify(code int) Outcome {
	switch {
	case code == http.StatusOK || code == http.StatusCreated:
		return OutcomeOK
	case code == http.StatusNotFound:
		return OutcomeNotFound
	case code >= 500:
		return OutcomeServerError
	default:
		return OutcomeUnexpected
	}
}

// SampleReading is what Check posts to the sensors endpoint.
func SampleReading(deviceID string) model.SensorReading {
	return model.SensorReading{
		Temperature:  25.5,
		SoilHumidity: 65,
		Timestamp:    1234567890,
		DeviceID:     deviceID,
	}
}

// Check hits the main endpoints once each. Every endpoint is tried even if
// earlier ones fail.
func Check(ctx context.Context, r Requester, deviceID string) []CheckResult {
	type target struct {
		name, method, path string
		body               any
	}
	targets := []target{
		{"list sensors", http.MethodGet, "/sensors", nil},
		{"list devices", http.MethodGet, "/devices", nil},
		{"pump status", http.MethodGet, regador.PumpPath(deviceID, "status"), nil},
		{"send sensor reading", http.MethodPost, "/sensors", SampleReading(deviceID)},
	}

	out := make([]CheckResult, 0, len(targets))
	for _, t := range targets {
		res := CheckResult{Name: t.name, Method: t.method, Path: t.path, Records: -1}
		resp, err := r.Path(ctx, t.method, t.path, t.body)
		if err != nil {
			res.Outcome = OutcomeTransportError
			res.Err = err
			out = append(out, res)
			continue
		}
		res.StatusCode = resp.StatusCode
		res.Outcome = Classify(resp.StatusCode)
		if res.Outcome == OutcomeOK {
			res.Records = countRecords(resp.Body)
		}
		out = append(out, res)
	}
	return out
}

func countRecords(body []byte) int {
	var env struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(body, &env); err != nil || len(env.Data) == 0 {
		return -1
	}
	var rows []json.RawMessage
	if err := json.Unmarshal(env.Data, &rows); err != nil {
		return -1
	}
	return len(rows)
}
