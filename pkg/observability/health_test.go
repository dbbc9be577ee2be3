package observability

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

type fakePinger struct {
	err error
}

func (f fakePinger) Ping(ctx context.Context) error {
	return f.err
}

func TestHealthChecker_Check(t *testing.T) {
	tests := []struct {
		name       string
		db         Pinger
		wantStatus string
		wantDB     string
	}{
		{name: "no database", db: nil, wantStatus: "healthy", wantDB: "not configured"},
		{name: "database up", db: fakePinger{}, wantStatus: "healthy", wantDB: "healthy"},
		{name: "database down", db: fakePinger{err: errors.New("refused")}, wantStatus: "unhealthy", wantDB: "unhealthy: refused"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status := NewHealthChecker(tt.db).Check(context.Background())
			assert.Equal(t, tt.wantStatus, status.Status)
			assert.Equal(t, tt.wantDB, status.Checks["database"])
		})
	}
}

func TestHealthChecker_Handlers(t *testing.T) {
	down := NewHealthChecker(fakePinger{err: errors.New("refused")})

	rec := httptest.NewRecorder()
	down.HealthHandler()(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"unhealthy"`)

	rec = httptest.NewRecorder()
	down.ReadyHandler()(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	up := NewHealthChecker(fakePinger{})
	rec = httptest.NewRecorder()
	up.ReadyHandler()(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ready", rec.Body.String())
}
