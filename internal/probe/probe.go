// Package probe holds the one-shot API checks: the pre-flight reachability
// probe run before a session, an endpoint check, a smoke sequence and a
// repeated-POST load test.
package probe

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/regador/esp32-simulator/internal/regador"
)

// PreflightTimeout bounds each pre-flight attempt.
const PreflightTimeout = 10 * time.Second

// Getter fetches absolute URLs; *regador.Client satisfies it.
type Getter interface {
	Get(ctx context.Context, rawURL string) (*regador.Response, error)
}

type Attempt struct {
	URL        string
	StatusCode int
	Err        error
}

// Reachable is true for 200, 201 and 404: a 404 still means something answered.
func (a Attempt) Reachable() bool {
	if a.Err != nil {
		return false
	}
	switch a.StatusCode {
	case http.StatusOK, http.StatusCreated, http.StatusNotFound:
		return true
	}
	return false
}

type PreflightResult struct {
	Attempts  []Attempt
	Reachable bool
}

// PreflightURLs lists the candidates in probe order: the sensors endpoint,
// then /health and / on the API root (base without its /api suffix).
func PreflightURLs(base string) []string {
	base = strings.TrimRight(base, "/")
	root := strings.TrimSuffix(base, "/api")
	return []string{
		base + "/sensors",
		root + "/health",
		root + "/",
	}
}

// Preflight stops at the first reachable candidate.
func Preflight(ctx context.Context, g Getter, base string) PreflightResult {
	var res PreflightResult
	for _, u := range PreflightURLs(base) {
		actx, cancel := context.WithTimeout(ctx, PreflightTimeout)
		resp, err := g.Get(actx, u)
		cancel()

		a := Attempt{URL: u, Err: err}
		if resp != nil {
			a.StatusCode = resp.StatusCode
		}
		res.Attempts = append(res.Attempts, a)
		if a.Reachable() {
			res.Reachable = true
			return res
		}
		if ctx.Err() != nil {
			return res
		}
	}
	return res
}
