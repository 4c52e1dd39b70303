package metrics

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCounters(t *testing.T) {
	m := New(prometheus.NewRegistry())
	m.Cycle()
	m.Cycle()
	m.Reading("ok", 24.5, 41)
	m.Reading("transport_error", 25.0, 43)
	m.PumpCommand("activate", "automatic", true)
	m.TransportError("connection-refused")
	m.SetPumpActive(true)

	if got := testutil.ToFloat64(m.Cycles); got != 2 {
		t.Errorf("cycles = %v", got)
	}
	if got := testutil.ToFloat64(m.Readings.WithLabelValues("ok")); got != 1 {
		t.Errorf("readings ok = %v", got)
	}
	if got := testutil.ToFloat64(m.SoilHumidity); got != 43 {
		t.Errorf("humidity gauge = %v", got)
	}
	if got := testutil.ToFloat64(m.PumpCommands.WithLabelValues("activate", "automatic", "ok")); got != 1 {
		t.Errorf("pump commands = %v", got)
	}
	if got := testutil.ToFloat64(m.TransportErrors.WithLabelValues("connection-refused")); got != 1 {
		t.Errorf("transport errors = %v", got)
	}
	if got := testutil.ToFloat64(m.PumpActive); got != 1 {
		t.Errorf("pump active = %v", got)
	}
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.Cycle()
	m.Reading("ok", 1, 1)
	m.PumpCommand("activate", "manual", false)
	m.StatusPoll(true)
	m.TransportError("timeout")
	m.SetPumpActive(true)
	m.SetRunning(true)
}

func TestRouter(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)
	m.Cycle()

	srv := httptest.NewServer(Router(reg))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if !strings.Contains(string(body), "regador_sim_cycles_total 1") {
		t.Fatalf("metrics output missing counter:\n%s", body)
	}

	resp, err = http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("healthz status = %d", resp.StatusCode)
	}
}

func TestHealthzFailingCheck(t *testing.T) {
	failing := errors.New("influx write failed 2s ago")
	srv := httptest.NewServer(Router(prometheus.NewRegistry(),
		func() error { return nil },
		func() error { return failing },
	))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("healthz status = %d", resp.StatusCode)
	}
	if !strings.Contains(string(body), "influx write failed") {
		t.Fatalf("healthz body = %q", body)
	}
}
