package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func serve(t *testing.T, h http.HandlerFunc, path string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	h(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

func TestHealthHandlerReportsChecks(t *testing.T) {
	handler := NewHandler("v1.0.0")
	handler.RegisterChecker("postgres", NewSimpleChecker("postgres", func() error { return nil }))

	w := serve(t, handler.ServeHTTP, "/healthz")
	require.Equal(t, http.StatusOK, w.Code)

	var response Response
	require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
	require.Equal(t, StatusHealthy, response.Status)
	require.Equal(t, "v1.0.0", response.Version)
	require.Len(t, response.Checks, 1)
}

func TestHealthHandlerStatusAggregation(t *testing.T) {
	failing := func(context.Context) error { return errors.New("connection refused") }
	ok := func(context.Context) error { return nil }

	cases := []struct {
		name     string
		checkers map[string]Checker
		status   Status
		code     int
		ready    bool
	}{
		{
			name:     "no checkers",
			checkers: nil,
			status:   StatusHealthy,
			code:     http.StatusOK,
			ready:    true,
		},
		{
			name: "optional dependency down",
			checkers: map[string]Checker{
				"postgres": NewPingChecker("postgres", time.Second, ok),
				"kafka":    NewPingChecker("kafka", time.Second, failing).Optional(),
			},
			status: StatusDegraded,
			code:   http.StatusOK,
			ready:  true,
		},
		{
			name: "required dependency down",
			checkers: map[string]Checker{
				"postgres": NewPingChecker("postgres", time.Second, failing),
				"kafka":    NewPingChecker("kafka", time.Second, failing).Optional(),
			},
			status: StatusUnhealthy,
			code:   http.StatusServiceUnavailable,
			ready:  false,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			handler := NewHandler("test")
			for name, c := range tc.checkers {
				handler.RegisterChecker(name, c)
			}

			w := serve(t, handler.ServeHTTP, "/healthz")
			require.Equal(t, tc.code, w.Code)
			var response Response
			require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
			require.Equal(t, tc.status, response.Status)

			ready := serve(t, handler.ReadinessHandler, "/readyz")
			if tc.ready {
				require.Equal(t, http.StatusOK, ready.Code)
				require.Equal(t, "ready", ready.Body.String())
			} else {
				require.Equal(t, http.StatusServiceUnavailable, ready.Code)
				require.Equal(t, "not ready", ready.Body.String())
			}
		})
	}
}

func TestLivenessHandler(t *testing.T) {
	w := serve(t, LivenessHandler, "/livez")
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "ok", w.Body.String())
}

func TestPingCheckerAppliesTimeout(t *testing.T) {
	checker := NewPingChecker("slow", 20*time.Millisecond, func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})

	check := checker.Check(context.Background())
	require.Equal(t, StatusUnhealthy, check.Status)
	require.Equal(t, context.DeadlineExceeded.Error(), check.Message)
	require.GreaterOrEqual(t, check.Duration, 20*time.Millisecond)
}

func TestSimpleCheckerMeasuresDuration(t *testing.T) {
	check := NewSimpleChecker("test", func() error {
		time.Sleep(10 * time.Millisecond)
		return nil
	}).Check(context.Background())

	require.Equal(t, StatusHealthy, check.Status)
	require.GreaterOrEqual(t, check.Duration, 10*time.Millisecond)
}
