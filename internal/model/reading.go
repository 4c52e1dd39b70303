package model

// SensorReading is one sample produced by the simulated device.
// Ownership passes to the remote API once sent; nothing is kept locally.
type SensorReading struct {
	Temperature  float64 `json:"temperatura"`  // °C, one decimal
	SoilHumidity int     `json:"umidade_solo"` // percentage 0..100
	Timestamp    int64   `json:"timestamp"`    // epoch millis
	DeviceID     string  `json:"device_id"`
}

