package health

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

type pinger struct{ err error }

func (p pinger) Ping(context.Context) error { return p.err }

func TestRun(t *testing.T) {
	cases := []struct {
		name   string
		checks map[string]Check
		want   Status
		code   int
	}{
		{"empty", nil, StatusUp, http.StatusOK},
		{"all up", map[string]Check{"db": PingCheck(pinger{})}, StatusUp, http.StatusOK},
		{
			"degraded",
			map[string]Check{"db": PingCheck(pinger{}), "cache": Optional(PingCheck(pinger{errors.New("refused")}))},
			StatusDegraded, http.StatusOK,
		},
		{
			"down wins",
			map[string]Check{
				"index": func(context.Context) error { return errors.New("not ready") },
				"cache": Optional(PingCheck(pinger{errors.New("refused")})),
			},
			StatusDown, http.StatusServiceUnavailable,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := NewChecker()
			for name, check := range tc.checks {
				c.Register(name, check)
			}
			report := c.Run(context.Background())
			if report.Status != tc.want {
				t.Errorf("status = %s; want %s (%+v)", report.Status, tc.want, report.Components)
			}
			if len(report.Components) != len(tc.checks) {
				t.Errorf("components = %d", len(report.Components))
			}

			rec := httptest.NewRecorder()
			c.ReadyHandler()(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
			if rec.Code != tc.code {
				t.Errorf("ready code = %d; want %d", rec.Code, tc.code)
			}
		})
	}
}

func TestLiveHandler(t *testing.T) {
	rec := httptest.NewRecorder()
	NewChecker().LiveHandler()(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("code = %d", rec.Code)
	}
}
