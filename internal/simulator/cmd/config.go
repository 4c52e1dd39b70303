package main

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/regador/esp32-simulator/internal/control"
	"github.com/regador/esp32-simulator/internal/journal"
	"github.com/regador/esp32-simulator/internal/mirror"
	"github.com/regador/esp32-simulator/internal/simulator"
	"github.com/regador/esp32-simulator/pkg/broker"
)

type Config struct {
	Sim simulator.Config

	APITimeout      time.Duration
	BreakerFailures int

	// Telemetry and control are enabled only when their URL is set.
	MQTT          broker.Config
	EventsTopic   string
	CommandsTopic string
	Influx        journal.Config

	MetricsAddr string // e.g. :9102
	GRPCAddr    string // e.g. :50061

	LogLevel string
	Pretty   bool
}

func getenv(k, d string) string {
	if v := strings.TrimSpace(os.Getenv(k)); v != "" {
		return v
	}
	return d
}

func getenvInt(k string, d int) int {
	if v := strings.TrimSpace(os.Getenv(k)); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return d
}

func getenvFloat(k string, d float64) float64 {
	if v := strings.TrimSpace(os.Getenv(k)); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return d
}

func getenvBool(k string, d bool) bool {
	if v := strings.TrimSpace(os.Getenv(k)); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return d
}

// loadConfig layers the environment over the defaults. Flags are bound on
// top of the result, so they win over both.
func loadConfig() Config {
	sim := simulator.DefaultConfig()
	sim.BaseURL = getenv("SIM_API_URL", sim.BaseURL)
	sim.DeviceID = getenv("SIM_DEVICE_ID", sim.DeviceID)
	sim.Duration = time.Duration(getenvInt("SIM_DURATION_MINUTES", int(sim.Duration/time.Minute))) * time.Minute
	sim.Interval = time.Duration(getenvInt("SIM_INTERVAL_SECONDS", int(sim.Interval/time.Second))) * time.Second
	sim.AutoControlEvery = getenvInt("SIM_AUTO_CONTROL_EVERY", sim.AutoControlEvery)
	sim.BaseTemperature = getenvFloat("SIM_BASE_TEMPERATURE", sim.BaseTemperature)
	sim.TemperatureVariation = getenvFloat("SIM_TEMPERATURE_VARIATION", sim.TemperatureVariation)
	sim.BaseHumidity = getenvFloat("SIM_BASE_HUMIDITY", sim.BaseHumidity)
	sim.HumidityVariation = getenvFloat("SIM_HUMIDITY_VARIATION", sim.HumidityVariation)
	sim.ChaosProbability = getenvFloat("SIM_CHAOS_PROBABILITY", sim.ChaosProbability)
	sim.Policy.Low = getenvInt("SIM_LOW_THRESHOLD", sim.Policy.Low)
	sim.Policy.High = getenvInt("SIM_HIGH_THRESHOLD", sim.Policy.High)

	return Config{
		Sim:             sim,
		APITimeout:      time.Duration(getenvInt("SIM_TIMEOUT_MS", 10000)) * time.Millisecond,
		BreakerFailures: getenvInt("SIM_BREAKER_FAILURES", 5),

		MQTT: broker.Config{
			URL:      getenv("MQTT_URL", ""),
			User:     getenv("MQTT_USER", ""),
			Password: os.Getenv("MQTT_PASSWORD"),
			ClientID: getenv("MQTT_CLIENT_ID", ""),
		},
		EventsTopic:   getenv("MQTT_EVENTS_TOPIC", mirror.DefaultTopic),
		CommandsTopic: getenv("MQTT_COMMANDS_TOPIC", control.DefaultCommandTopic),
		Influx: journal.Config{
			URL:    getenv("INFLUX_URL", ""),
			Token:  os.Getenv("INFLUX_TOKEN"),
			Org:    getenv("INFLUX_ORG", "regador"),
			Bucket: getenv("INFLUX_BUCKET", "simulator"),
		},

		MetricsAddr: getenv("SIM_METRICS_ADDR", ""),
		GRPCAddr:    getenv("SIM_GRPC_ADDR", ""),

		LogLevel: getenv("LOG_LEVEL", "info"),
		Pretty:   getenvBool("LOG_PRETTY", false),
	}
}
