// Package regador is a client for the irrigation-monitoring REST API
// ("API Regador"): sensor readings, pump control, status and statistics.
package regador

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"

	"github.com/regador/esp32-simulator/internal/model"
)

const (
	DefaultTimeout   = 10 * time.Second
	DefaultUserAgent = "ESP32-Simulator/1.0"

	maxBody = 1 << 20
)

// Config for NewClient. Zero values fall back to defaults.
type Config struct {
	BaseURL   string
	Timeout   time.Duration
	UserAgent string

	// BreakerFailures is the number of consecutive transport failures that
	// open the breaker. Negative disables the breaker; zero means 5.
	BreakerFailures int
	BreakerOpenFor  time.Duration

	HTTPClient *http.Client
}

// Response is a raw API answer.
type Response struct {
	StatusCode int
	Body       []byte
}

// Client talks to the API. Every call is a single attempt: nothing is retried.
type Client struct {
	base      string
	http      *http.Client
	breaker   *gobreaker.CircuitBreaker
	userAgent string
}

func NewClient(cfg Config) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		return nil, fmt.Errorf("regador: base url is required")
	}
	u, err := url.Parse(base)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("regador: invalid base url %q", cfg.BaseURL)
	}

	hc := cfg.HTTPClient
	if hc == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = DefaultTimeout
		}
		hc = &http.Client{Timeout: timeout}
	}
	ua := cfg.UserAgent
	if ua == "" {
		ua = DefaultUserAgent
	}

	c := &Client{base: base, http: hc, userAgent: ua}
	if cfg.BreakerFailures >= 0 {
		c.breaker = newBreaker(u.Host, cfg.BreakerFailures, cfg.BreakerOpenFor)
	}
	return c, nil
}

func newBreaker(name string, fails int, openFor time.Duration) *gobreaker.CircuitBreaker {
	if fails == 0 {
		fails = 5
	}
	if openFor <= 0 {
		openFor = 30 * time.Second
	}
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    name,
		Timeout: openFor,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= uint32(fails)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("api breaker state change")
		},
	})
}

// BaseURL returns the normalised API base.
func (c *Client) BaseURL() string { return c.base }

// SendReading posts one reading. A non-nil error is always a *TransportError;
// the caller decides what status counts as success (the API answers 201).
func (c *Client) SendReading(ctx context.Context, r model.SensorReading) (*Response, error) {
	return c.do(ctx, http.MethodPost, "/sensors", nil, r)
}

// LatestReading returns the most recent stored reading for the device, or
// nil if the API has none.
func (c *Client) LatestReading(ctx context.Context, deviceID string) (*LatestReading, error) {
	q := url.Values{}
	q.Set("device_id", deviceID)
	q.Set("limit", "1")
	q.Set("order", "desc")
	const op = "GET /sensors"
	resp, err := c.do(ctx, http.MethodGet, "/sensors", q, nil)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, statusErr(op, resp)
	}
	return parseLatest(op, resp.Body)
}

// Control sends an activate/deactivate command. Only 200 is success.
func (c *Client) Control(ctx context.Context, deviceID string, cmd model.PumpCommand) error {
	const op = "POST /pump/control"
	resp, err := c.do(ctx, http.MethodPost, PumpPath(deviceID, "control"), nil, cmd)
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		return statusErr(op, resp)
	}
	return nil
}

// Status fetches the server-side pump state.
func (c *Client) Status(ctx context.Context, deviceID string) (model.PumpStatus, error) {
	const op = "GET /pump/status"
	resp, err := c.do(ctx, http.MethodGet, PumpPath(deviceID, "status"), nil, nil)
	if err != nil {
		return model.PumpStatus{}, err
	}
	if resp.StatusCode != http.StatusOK {
		return model.PumpStatus{}, statusErr(op, resp)
	}
	return parseStatus(op, resp.Body)
}

// Stats fetches aggregate pump statistics.
func (c *Client) Stats(ctx context.Context, deviceID string) (model.RunStatistics, error) {
	const op = "GET /pump/stats"
	resp, err := c.do(ctx, http.MethodGet, PumpPath(deviceID, "stats"), nil, nil)
	if err != nil {
		return model.RunStatistics{}, err
	}
	if resp.StatusCode != http.StatusOK {
		return model.RunStatistics{}, statusErr(op, resp)
	}
	return parseStats(op, resp.Body)
}

// Path issues a request against a path relative to the base URL and returns
// the raw answer whatever its status.
func (c *Client) Path(ctx context.Context, method, path string, body any) (*Response, error) {
	return c.do(ctx, method, path, nil, body)
}

// Get fetches an absolute URL through the same transport. Used by probes
// that look outside the API prefix (e.g. /health).
func (c *Client) Get(ctx context.Context, rawURL string) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, &TransportError{Kind: KindRequest, Op: "GET " + rawURL, Err: err}
	}
	return c.send(req, "GET "+rawURL)
}

// Post sends a JSON body to an absolute URL and returns the raw answer.
func (c *Client) Post(ctx context.Context, rawURL string, body any) (*Response, error) {
	op := "POST " + rawURL
	b, err := json.Marshal(body)
	if err != nil {
		return nil, &TransportError{Kind: KindRequest, Op: op, Err: fmt.Errorf("encode body: %w", err)}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, rawURL, bytes.NewReader(b))
	if err != nil {
		return nil, &TransportError{Kind: KindRequest, Op: op, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	return c.send(req, op)
}

func (c *Client) do(ctx context.Context, method, path string, q url.Values, body any) (*Response, error) {
	op := method + " " + path
	endpoint := c.base + "/" + strings.TrimLeft(path, "/")
	if len(q) > 0 {
		endpoint += "?" + q.Encode()
	}

	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, &TransportError{Kind: KindRequest, Op: op, Err: fmt.Errorf("encode body: %w", err)}
		}
		rdr = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, rdr)
	if err != nil {
		return nil, &TransportError{Kind: KindRequest, Op: op, Err: err}
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.send(req, op)
}

func (c *Client) send(req *http.Request, op string) (*Response, error) {
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	roundTrip := func() (any, error) {
		resp, err := c.http.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()
		b, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
		if err != nil {
			return nil, fmt.Errorf("read body: %w", err)
		}
		return &Response{StatusCode: resp.StatusCode, Body: b}, nil
	}

	var (
		out any
		err error
	)
	if c.breaker != nil {
		out, err = c.breaker.Execute(roundTrip)
	} else {
		out, err = roundTrip()
	}
	if err != nil {
		return nil, transportErr(op, err)
	}
	return out.(*Response), nil
}

// PumpPath builds /pump/{device}/{leaf} with the device id path-escaped.
func PumpPath(deviceID, leaf string) string {
	return "/pump/" + url.PathEscape(deviceID) + "/" + leaf
}

func statusErr(op string, resp *Response) *StatusError {
	body := strings.TrimSpace(string(resp.Body))
	if len(body) > 256 {
		body = body[:256] + "…"
	}
	return &StatusError{Op: op, Code: resp.StatusCode, Body: body}
}

// StatusText renders a status code the way probe output shows it.
func StatusText(code int) string {
	return strconv.Itoa(code) + " " + http.StatusText(code)
}
