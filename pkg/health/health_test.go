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

func up(context.Context) error   { return nil }
func down(context.Context) error { return errors.New("connection refused") }

func serve(t *testing.T, h http.HandlerFunc) (int, Response) {
	t.Helper()
	rec := httptest.NewRecorder()
	h(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))

	var resp Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	return rec.Code, resp
}

func TestLivenessHandler(t *testing.T) {
	h := NewHandler()
	h.RegisterCritical("store", down)

	code, resp := serve(t, h.LivenessHandler())
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, StatusUp, resp.Status)
	assert.Empty(t, resp.Checks)
	assert.WithinDuration(t, time.Now(), resp.Timestamp, 5*time.Second)
}

func TestReadinessHandler(t *testing.T) {
	tests := []struct {
		name        string
		critical    map[string]Checker
		nonCritical map[string]Checker
		wantCode    int
		wantStatus  Status
	}{
		{"no checks", nil, nil, http.StatusOK, StatusUp},
		{"all up", map[string]Checker{"store": up}, map[string]Checker{"kafka": up}, http.StatusOK, StatusUp},
		{"store down", map[string]Checker{"store": down}, map[string]Checker{"kafka": up}, http.StatusServiceUnavailable, StatusDown},
		{"kafka down", map[string]Checker{"store": up}, map[string]Checker{"kafka": down}, http.StatusOK, StatusDegraded},
		{"both down", map[string]Checker{"store": down}, map[string]Checker{"kafka": down}, http.StatusServiceUnavailable, StatusDown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHandler()
			for name, c := range tt.critical {
				h.RegisterCritical(name, c)
			}
			for name, c := range tt.nonCritical {
				h.RegisterNonCritical(name, c)
			}

			code, resp := serve(t, h.ReadinessHandler())
			assert.Equal(t, tt.wantCode, code)
			assert.Equal(t, tt.wantStatus, resp.Status)
			assert.Len(t, resp.Checks, len(tt.critical)+len(tt.nonCritical))
		})
	}
}

func TestReadinessHandler_ReportsCheckDetail(t *testing.T) {
	h := NewHandler()
	h.RegisterCritical("store", down)
	h.RegisterNonCritical("kafka", up)

	_, resp := serve(t, h.ReadinessHandler())
	assert.Equal(t, CheckResult{Status: StatusDown, Critical: true, Error: "connection refused"}, resp.Checks["store"])
	assert.Equal(t, CheckResult{Status: StatusUp}, resp.Checks["kafka"])
}

func TestReadinessHandler_ReregisterReplaces(t *testing.T) {
	h := NewHandler()
	h.RegisterCritical("store", down)
	h.RegisterNonCritical("store", down)

	code, resp := serve(t, h.ReadinessHandler())
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, StatusDegraded, resp.Status)
}

func TestReadinessHandler_ChecksRunConcurrentlyUnderDeadline(t *testing.T) {
	slow := func(ctx context.Context) error {
		select {
		case <-time.After(200 * time.Millisecond):
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	h := NewHandler()
	h.RegisterCritical("store", slow)
	h.RegisterNonCritical("kafka", slow)

	start := time.Now()
	code, _ := serve(t, h.ReadinessHandler())
	assert.Equal(t, http.StatusOK, code)
	assert.Less(t, time.Since(start), 390*time.Millisecond)
}
