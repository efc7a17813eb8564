package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixed(name string, status Status) Checker {
	return NewCheckerFunc(name, func(context.Context) CheckResult {
		return CheckResult{Name: name, Status: status}
	})
}

func TestRegistryCheck(t *testing.T) {
	tests := []struct {
		name     string
		statuses []Status
		want     Status
	}{
		{"no checks", nil, StatusHealthy},
		{"all healthy", []Status{StatusHealthy, StatusHealthy}, StatusHealthy},
		{"one degraded", []Status{StatusHealthy, StatusDegraded}, StatusDegraded},
		{"unhealthy wins", []Status{StatusDegraded, StatusUnhealthy, StatusHealthy}, StatusUnhealthy},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRegistry()
			for i, s := range tt.statuses {
				r.Register(fixed(string(rune('a'+i)), s))
			}

			health := r.Check(context.Background())
			assert.Equal(t, tt.want, health.Status)
			assert.Len(t, health.Checks, len(tt.statuses))
		})
	}
}

func TestRegistryCheckTimeout(t *testing.T) {
	r := NewRegistry()
	r.Register(fixed("fast", StatusHealthy))
	r.Register(NewCheckerFunc("slow", func(ctx context.Context) CheckResult {
		<-ctx.Done()
		time.Sleep(50 * time.Millisecond)
		return CheckResult{Name: "slow", Status: StatusHealthy}
	}))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	health := r.Check(ctx)
	assert.Equal(t, StatusUnhealthy, health.Status)
	assert.Equal(t, StatusUnhealthy, health.Checks["slow"].Status)
	assert.NotEmpty(t, health.Checks["slow"].Error)
}

func TestRegistryRegisterUnregister(t *testing.T) {
	r := NewRegistry()
	r.Register(fixed("broker", StatusUnhealthy))
	r.Register(fixed("broker", StatusHealthy))
	r.SetMetadata("service", "Orders")

	health := r.Check(context.Background())
	assert.Equal(t, StatusHealthy, health.Status)
	assert.Equal(t, "Orders", health.Metadata["service"])

	r.Unregister("broker")
	assert.Empty(t, r.Check(context.Background()).Checks)
}

func TestHandler(t *testing.T) {
	tests := []struct {
		name     string
		status   Status
		wantCode int
	}{
		{"healthy", StatusHealthy, http.StatusOK},
		{"degraded", StatusDegraded, http.StatusOK},
		{"unhealthy", StatusUnhealthy, http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRegistry()
			r.Register(fixed("publisher", tt.status))

			rec := httptest.NewRecorder()
			NewHandler(r, time.Second).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

			assert.Equal(t, tt.wantCode, rec.Code)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

			var body Report
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tt.status, body.Status)
			assert.Contains(t, body.Checks, "publisher")
		})
	}

	t.Run("head reports the status only", func(t *testing.T) {
		r := NewRegistry()
		r.Register(fixed("publisher", StatusUnhealthy))

		rec := httptest.NewRecorder()
		NewHandler(r, time.Second).ServeHTTP(rec, httptest.NewRequest(http.MethodHead, "/health", nil))
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
		assert.Empty(t, rec.Body.String())
	})

	t.Run("check parameter limits the run", func(t *testing.T) {
		r := NewRegistry()
		r.Register(fixed("publisher:Orders.Events", StatusHealthy))
		r.Register(fixed("broker", StatusUnhealthy))

		rec := httptest.NewRecorder()
		NewHandler(r, time.Second).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health?check=publisher:Orders.Events,missing", nil))
		assert.Equal(t, http.StatusOK, rec.Code)

		var body Report
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Len(t, body.Checks, 1)
		assert.Contains(t, body.Checks, "publisher:Orders.Events")
	})

	t.Run("rejects other methods", func(t *testing.T) {
		rec := httptest.NewRecorder()
		NewHandler(NewRegistry(), time.Second).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/health", nil))
		assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	})
}

func TestReadinessAndLiveness(t *testing.T) {
	r := NewRegistry()

	rec := httptest.NewRecorder()
	ReadinessHandler(r)(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ready", rec.Body.String())

	r.Register(NewCheckerFunc("broker", func(context.Context) CheckResult {
		return CheckResult{Status: StatusUnhealthy, Error: errors.New("refused").Error()}
	}))
	r.Register(fixed("tail", StatusUnhealthy), Optional())
	rec = httptest.NewRecorder()
	ReadinessHandler(r)(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "not ready: broker", rec.Body.String())

	rec = httptest.NewRecorder()
	LivenessHandler()(rec, httptest.NewRequest(http.MethodGet, "/live", nil))
	assert.Equal(t, "alive", rec.Body.String())
}

func TestOptionalChecksOnlyDegrade(t *testing.T) {
	r := NewRegistry()
	r.Register(fixed("commands", StatusHealthy))
	r.Register(fixed("events", StatusUnhealthy), Optional())

	report := r.Check(context.Background())
	assert.Equal(t, StatusDegraded, report.Status)
	assert.Equal(t, []string{"events"}, report.Failing)
	assert.True(t, report.Checks["events"].Optional)
	assert.Equal(t, StatusUnhealthy, report.Checks["events"].Status)
}

func TestRegistryFillsResultFields(t *testing.T) {
	r := NewRegistry()
	r.Register(NewCheckerFunc("broker", func(context.Context) CheckResult {
		time.Sleep(5 * time.Millisecond)
		return CheckResult{Status: StatusDegraded}
	}))

	report := r.Check(context.Background())
	result := report.Checks["broker"]
	assert.Equal(t, "broker", result.Name)
	assert.False(t, result.Timestamp.IsZero())
	assert.Greater(t, result.Duration, time.Duration(0))
	assert.Equal(t, []string{"broker"}, report.Failing)
}
