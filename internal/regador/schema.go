package regador

import (
	"encoding/json"

	"github.com/regador/esp32-simulator/internal/model"
)

// Response envelopes. Pointer fields let us tell "missing" from "zero".

type sensorRow struct {
	SoilHumidity *float64 `json:"umidade_solo"`
	Temperature  *float64 `json:"temperatura"`
	Timestamp    *int64   `json:"timestamp"`
	DeviceID     string   `json:"device_id"`
}

type sensorList struct {
	Data *[]sensorRow `json:"data"`
}

type statusBody struct {
	Data *struct {
		IsActive         *bool    `json:"is_active"`
		DurationSeconds  *float64 `json:"duration_seconds"`
		TotalActivations *int     `json:"total_activations"`
	} `json:"data"`
}

type statsBody struct {
	Data *struct {
		Stats *struct {
			TotalActivations     *int     `json:"total_activations"`
			TotalDurationSeconds *float64 `json:"total_duration_seconds"`
			AvgDurationSeconds   *float64 `json:"avg_duration_seconds"`
		} `json:"stats"`
	} `json:"data"`
}

// LatestReading is the subset of a stored reading the auto-control needs.
// SoilHumidity keeps the stored value as is; rounding it would move
// readings such as 29.6 across a threshold.
type LatestReading struct {
	SoilHumidity float64
	Temperature  *float64
	Timestamp    *int64
}

func decode(op string, body []byte, out any) error {
	if err := json.Unmarshal(body, out); err != nil {
		return &MalformedResponseError{Op: op, Reason: "invalid json", Err: err}
	}
	return nil
}

func parseLatest(op string, body []byte) (*LatestReading, error) {
	var l sensorList
	if err := decode(op, body, &l); err != nil {
		return nil, err
	}
	if l.Data == nil {
		return nil, &MalformedResponseError{Op: op, Reason: "missing data"}
	}
	rows := *l.Data
	if len(rows) == 0 {
		return nil, nil
	}
	if rows[0].SoilHumidity == nil {
		return nil, &MalformedResponseError{Op: op, Reason: "missing data[0].umidade_solo"}
	}
	return &LatestReading{
		SoilHumidity: *rows[0].SoilHumidity,
		Temperature:  rows[0].Temperature,
		Timestamp:    rows[0].Timestamp,
	}, nil
}

func parseStatus(op string, body []byte) (model.PumpStatus, error) {
	var s statusBody
	if err := decode(op, body, &s); err != nil {
		return model.PumpStatus{}, err
	}
	if s.Data == nil {
		return model.PumpStatus{}, &MalformedResponseError{Op: op, Reason: "missing data"}
	}
	if s.Data.IsActive == nil {
		return model.PumpStatus{}, &MalformedResponseError{Op: op, Reason: "missing data.is_active"}
	}
	return model.PumpStatus{
		IsActive:         *s.Data.IsActive,
		DurationSeconds:  s.Data.DurationSeconds,
		TotalActivations: s.Data.TotalActivations,
	}, nil
}

func parseStats(op string, body []byte) (model.RunStatistics, error) {
	var s statsBody
	if err := decode(op, body, &s); err != nil {
		return model.RunStatistics{}, err
	}
	switch {
	case s.Data == nil:
		return model.RunStatistics{}, &MalformedResponseError{Op: op, Reason: "missing data"}
	case s.Data.Stats == nil:
		return model.RunStatistics{}, &MalformedResponseError{Op: op, Reason: "missing data.stats"}
	}
	st := s.Data.Stats
	if st.TotalActivations == nil || st.TotalDurationSeconds == nil || st.AvgDurationSeconds == nil {
		return model.RunStatistics{}, &MalformedResponseError{Op: op, Reason: "incomplete data.stats"}
	}
	return model.RunStatistics{
		TotalActivations:     *st.TotalActivations,
		TotalDurationSeconds: *st.TotalDurationSeconds,
		AvgDurationSeconds:   *st.AvgDurationSeconds,
	}, nil
}
