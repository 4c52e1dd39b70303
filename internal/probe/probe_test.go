package probe

import (
	"context"
	"encoding/json"
	"io"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/regador/esp32-simulator/internal/regador"
)

func newClient(t *testing.T, base string) *regador.Client {
	t.Helper()
	c, err := regador.NewClient(regador.Config{BaseURL: base, Timeout: 2 * time.Second, BreakerFailures: -1})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return c
}

func TestPreflightURLs(t *testing.T) {
	got := PreflightURLs("https://api-regador.example.com/api/")
	want := []string{
		"https://api-regador.example.com/api/sensors",
		"https://api-regador.example.com/health",
		"https://api-regador.example.com/",
	}
	if strings.Join(got, " ") != strings.Join(want, " ") {
		t.Fatalf("got %v", got)
	}
}

func TestPreflightStopsAtFirstReachable(t *testing.T) {
	var (
		mu   sync.Mutex
		hits []string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		hits = append(hits, r.URL.Path)
		mu.Unlock()
		switch r.URL.Path {
		case "/api/sensors":
			w.WriteHeader(http.StatusServiceUnavailable)
		default:
			// 404 still counts as an answering API
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	res := Preflight(context.Background(), newClient(t, srv.URL+"/api"), srv.URL+"/api")
	if !res.Reachable {
		t.Fatalf("expected reachable: %+v", res)
	}
	if len(res.Attempts) != 2 || res.Attempts[1].StatusCode != http.StatusNotFound {
		t.Fatalf("attempts = %+v", res.Attempts)
	}
	mu.Lock()
	defer mu.Unlock()
	if len(hits) != 2 || hits[1] != "/health" {
		t.Fatalf("hits = %v", hits)
	}
}

func TestPreflightUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	base := srv.URL + "/api"
	srv.Close()

	res := Preflight(context.Background(), newClient(t, base), base)
	if res.Reachable || len(res.Attempts) != 3 {
		t.Fatalf("result = %+v", res)
	}
	for _, a := range res.Attempts {
		if a.Err == nil {
			t.Fatalf("attempt %s has no error", a.URL)
		}
	}
}

func TestClassify(t *testing.T) {
	tests := map[int]Outcome{
		200: OutcomeOK,
		201: OutcomeOK,
		404: OutcomeNotFound,
		500: OutcomeServerError,
		503: OutcomeServerError,
		400: OutcomeUnexpected,
		204: OutcomeUnexpected,
	}
	for code, want := range tests {
		if got := Classify(code); got != want {
			t.Errorf("Classify(%d) = %s, want %s", code, got, want)
		}
	}
}

func TestCheck(t *testing.T) {
	var posted map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/api/sensors":
			_, _ = w.Write([]byte(`{"data":[{"umidade_solo":40},{"umidade_solo":41}]}`))
		case r.URL.Path == "/api/devices":
			http.NotFound(w, r)
		case r.URL.Path == "/api/pump/ESP32_001/status":
			w.WriteHeader(http.StatusInternalServerError)
		case r.Method == http.MethodPost && r.URL.Path == "/api/sensors":
			b, _ := io.ReadAll(r.Body)
			_ = json.Unmarshal(b, &posted)
			w.WriteHeader(http.StatusCreated)
			_, _ = w.Write([]byte(`{"data":{"id":1}}`))
		}
	}))
	defer srv.Close()

	res := Check(context.Background(), newClient(t, srv.URL+"/api"), "ESP32_001")
	if len(res) != 4 {
		t.Fatalf("results = %d", len(res))
	}
	want := []Outcome{OutcomeOK, OutcomeNotFound, OutcomeServerError, OutcomeOK}
	for i, w := range want {
		if res[i].Outcome != w {
			t.Errorf("%s: outcome %s, want %s", res[i].Name, res[i].Outcome, w)
		}
	}
	if res[0].Records != 2 {
		t.Errorf("records = %d", res[0].Records)
	}
	if res[3].Records != -1 {
		t.Errorf("object data should not count records, got %d", res[3].Records)
	}
	if posted["umidade_solo"] != float64(65) || posted["device_id"] != "ESP32_001" {
		t.Errorf("posted = %v", posted)
	}
}

func TestCheckEscapesDeviceID(t *testing.T) {
	var got string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/api/pump/") {
			got = r.URL.EscapedPath()
		}
		_, _ = w.Write([]byte(`{"data":[]}`))
	}))
	defer srv.Close()

	res := Check(context.Background(), newClient(t, srv.URL+"/api"), "bed 1/a")
	if want := "/api/pump/bed%201%2Fa/status"; got != want {
		t.Fatalf("server saw %q, want %q", got, want)
	}
	if res[2].Path != "/pump/bed%201%2Fa/status" || res[2].Outcome != OutcomeOK {
		t.Errorf("pump status result = %+v", res[2])
	}
}

func TestCheckTransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	base := srv.URL + "/api"
	srv.Close()

	for _, r := range Check(context.Background(), newClient(t, base), "ESP32_001") {
		if r.Outcome != OutcomeTransportError || r.Err == nil {
			t.Fatalf("result = %+v", r)
		}
	}
}

// fakePumpAPI serves the smoke sequence endpoints with an in-memory pump.
func fakePumpAPI(t *testing.T, healthCode int) (*httptest.Server, *[]string) {
	t.Helper()
	var (
		mu     sync.Mutex
		calls  []string
		active bool
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		calls = append(calls, r.Method+" "+r.URL.Path)
		switch r.URL.Path {
		case "/health":
			w.WriteHeader(healthCode)
		case "/api/sensors":
			w.WriteHeader(http.StatusCreated)
		case "/api/pump/ESP32_002/control":
			var cmd struct {
				Action      string `json:"action"`
				TriggeredBy string `json:"triggered_by"`
			}
			_ = json.NewDecoder(r.Body).Decode(&cmd)
			if cmd.TriggeredBy != "manual" {
				w.WriteHeader(http.StatusBadRequest)
				return
			}
			active = cmd.Action == "activate"
			_, _ = w.Write([]byte(`{"success":true}`))
		case "/api/pump/ESP32_002/status":
			if active {
				_, _ = w.Write([]byte(`{"data":{"is_active":true,"duration_seconds":3,"total_activations":1}}`))
			} else {
				_, _ = w.Write([]byte(`{"data":{"is_active":false,"total_activations":1}}`))
			}
		case "/api/pump/ESP32_002/stats":
			_, _ = w.Write([]byte(`{"data":{"stats":{"total_activations":1,"total_duration_seconds":3,"avg_duration_seconds":3}}}`))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func TestSmoke(t *testing.T) {
	srv, calls := fakePumpAPI(t, http.StatusOK)
	steps := Smoke(context.Background(), newClient(t, srv.URL+"/api"), SmokeConfig{
		HealthURL: srv.URL + "/health",
		DeviceID:  "ESP32_002",
		Rand:      rand.New(rand.NewSource(1)),
	})
	if len(steps) != 7 {
		t.Fatalf("steps = %+v", steps)
	}
	for _, s := range steps {
		if !s.OK {
			t.Errorf("step %s failed: %v", s.Name, s.Err)
		}
	}
	if !strings.HasPrefix(steps[4].Detail, "active") {
		t.Errorf("status after activation = %q", steps[4].Detail)
	}
	if len(*calls) != 7 {
		t.Errorf("calls = %v", *calls)
	}
}

func TestSmokeAbortsOnHealthFailure(t *testing.T) {
	srv, calls := fakePumpAPI(t, http.StatusServiceUnavailable)
	steps := Smoke(context.Background(), newClient(t, srv.URL+"/api"), SmokeConfig{
		HealthURL: srv.URL + "/health",
		DeviceID:  "ESP32_002",
	})
	if len(steps) != 1 || steps[0].OK {
		t.Fatalf("steps = %+v", steps)
	}
	if len(*calls) != 1 {
		t.Fatalf("calls = %v", *calls)
	}
}

func TestLoad(t *testing.T) {
	var (
		mu sync.Mutex
		n  int
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var p struct {
			SoilHumidity int `json:"umidade_solo"`
		}
		_ = json.NewDecoder(r.Body).Decode(&p)
		if p.SoilHumidity < 20 || p.SoilHumidity > 90 {
			t.Errorf("humidity out of range: %d", p.SoilHumidity)
		}
		mu.Lock()
		n++
		cur := n
		mu.Unlock()
		if cur == 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	res := Load(context.Background(), newClient(t, srv.URL), LoadConfig{
		URL:      srv.URL + "/hook",
		Requests: 4,
		DeviceID: "ESP32_001",
		Rand:     rand.New(rand.NewSource(3)),
	})
	if res.Total != 4 || res.Successes != 3 || res.Failures != 1 {
		t.Fatalf("result = %+v", res)
	}
	if res.SuccessRate() != 75 {
		t.Fatalf("rate = %v", res.SuccessRate())
	}
	if res.Codes[http.StatusBadGateway] != 1 {
		t.Fatalf("codes = %v", res.Codes)
	}
}

func TestLoadStopsOnCancel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res := Load(ctx, newClient(t, srv.URL), LoadConfig{URL: srv.URL, Requests: 5})
	if res.Total != 0 || res.SuccessRate() != 0 {
		t.Fatalf("result = %+v", res)
	}
}
