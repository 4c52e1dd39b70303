package main

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/regador/esp32-simulator/internal/regador"
	"github.com/regador/esp32-simulator/internal/simulator"
)

func TestPrompterConfigure(t *testing.T) {
	in := strings.NewReader("https://api.example.com/api\n\n25\n")
	out := &bytes.Buffer{}
	cfg := newPrompter(in, out).configure(simulator.DefaultConfig())

	if cfg.BaseURL != "https://api.example.com/api" {
		t.Errorf("base url = %q", cfg.BaseURL)
	}
	if cfg.DeviceID != simulator.DefaultDeviceID {
		t.Errorf("device id = %q", cfg.DeviceID)
	}
	if cfg.Duration != 25*time.Minute {
		t.Errorf("duration = %s", cfg.Duration)
	}
	if !strings.Contains(out.String(), "default: ESP32_002") {
		t.Errorf("prompt output = %q", out.String())
	}
}

func TestPrompterBadDurationKeepsDefault(t *testing.T) {
	cfg := newPrompter(strings.NewReader("\n\nten\n"), &bytes.Buffer{}).configure(simulator.DefaultConfig())
	if cfg.Duration != simulator.DefaultDuration {
		t.Fatalf("duration = %s", cfg.Duration)
	}
}

func TestPrompterEOFKeepsDefaults(t *testing.T) {
	cfg := newPrompter(strings.NewReader(""), &bytes.Buffer{}).configure(simulator.DefaultConfig())
	if cfg.BaseURL != simulator.DefaultBaseURL || cfg.Duration != simulator.DefaultDuration {
		t.Fatalf("cfg = %+v", cfg)
	}
}

func TestConfirm(t *testing.T) {
	for answer, want := range map[string]bool{
		"s": true, "SIM": true, "y": true, "Yes": true,
		"": false, "n": false, "nao": false,
	} {
		p := newPrompter(strings.NewReader(answer+"\n"), &bytes.Buffer{})
		if got := p.confirm("continue?"); got != want {
			t.Errorf("confirm(%q) = %v, want %v", answer, got, want)
		}
	}
}

func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv("SIM_API_URL", "http://10.0.0.5:3000/api")
	t.Setenv("SIM_DURATION_MINUTES", "2")
	t.Setenv("SIM_CHAOS_PROBABILITY", "0.25")
	t.Setenv("SIM_LOW_THRESHOLD", "20")
	t.Setenv("SIM_TIMEOUT_MS", "1500")
	t.Setenv("SIM_INTERVAL_SECONDS", "not-a-number")
	t.Setenv("MQTT_URL", "tcp://broker:1883")

	cfg := loadConfig()
	if cfg.Sim.BaseURL != "http://10.0.0.5:3000/api" || cfg.Sim.Duration != 2*time.Minute {
		t.Errorf("sim = %+v", cfg.Sim)
	}
	if cfg.Sim.ChaosProbability != 0.25 || cfg.Sim.Policy.Low != 20 || cfg.Sim.Policy.High != 70 {
		t.Errorf("tuning = %+v", cfg.Sim)
	}
	if cfg.Sim.Interval != simulator.DefaultInterval {
		t.Errorf("bad interval should fall back, got %s", cfg.Sim.Interval)
	}
	if cfg.APITimeout != 1500*time.Millisecond || cfg.MQTT.URL != "tcp://broker:1883" {
		t.Errorf("cfg = %+v", cfg)
	}
	if cfg.Influx.URL != "" {
		t.Errorf("influx should be disabled by default")
	}
}

func TestFlagsOverrideEnv(t *testing.T) {
	t.Setenv("SIM_DEVICE_ID", "FROM_ENV")
	cfg := loadConfig()
	root := newRootCmd(&cfg)
	root.SetArgs([]string{"run", "--device", "FROM_FLAG", "--duration", "0s", "--skip-preflight", "--api", "http://127.0.0.1:1/api", "--breaker-failures", "-1", "--log-level", "error"})
	root.SetOut(&bytes.Buffer{})
	if err := root.Execute(); err != nil {
		t.Fatalf("run: %v", err)
	}
	if cfg.Sim.DeviceID != "FROM_FLAG" {
		t.Fatalf("device = %q", cfg.Sim.DeviceID)
	}
}

func TestRunFailsPreflightWithoutForce(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	base := srv.URL + "/api"
	srv.Close()

	cfg := loadConfig()
	root := newRootCmd(&cfg)
	root.SetArgs([]string{"run", "--api", base, "--duration", "0s", "--log-level", "error"})
	root.SetOut(&bytes.Buffer{})
	if err := root.Execute(); err == nil {
		t.Fatal("expected pre-flight failure")
	}
}

func TestPreflightIgnoresBreakerSetting(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	base := srv.URL + "/api"
	srv.Close()

	cfg := loadConfig()
	cfg.Sim.BaseURL = base
	cfg.BreakerFailures = 1
	res, err := preflight(context.Background(), &cfg)
	if err != nil {
		t.Fatalf("preflight: %v", err)
	}
	if res.Reachable || len(res.Attempts) != 3 {
		t.Fatalf("result = %+v", res)
	}
	// An open breaker would short-circuit the later candidates.
	for _, a := range res.Attempts {
		var te *regador.TransportError
		if !errors.As(a.Err, &te) || te.Kind != regador.KindConnectionRefused {
			t.Errorf("%s: err = %v", a.URL, a.Err)
		}
	}
}

func TestCheckCommand(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			w.WriteHeader(http.StatusCreated)
			return
		}
		_, _ = w.Write([]byte(`{"data":[]}`))
	}))
	defer srv.Close()

	cfg := loadConfig()
	root := newRootCmd(&cfg)
	out := &bytes.Buffer{}
	root.SetOut(out)
	root.SetArgs([]string{"check", "--api", srv.URL + "/api", "--log-level", "error"})
	if err := root.Execute(); err != nil {
		t.Fatalf("check: %v", err)
	}
	if !strings.Contains(out.String(), "list sensors") || !strings.Contains(out.String(), "ok") {
		t.Fatalf("output:\n%s", out.String())
	}
}
