package monitoring

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/akeren/lasting-loves-waitlist/config/router"
	"github.com/akeren/lasting-loves-waitlist/internal/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type fakeCache struct{ err error }

func (f fakeCache) Ping(context.Context) error { return f.err }

func newRouter(t *testing.T, db *gorm.DB, cache Cache) *router.RouterService {
	t.Helper()

	l := log.NewLogger(&bytes.Buffer{}, "error")
	rs := router.CreateRouterService(l, nil, &router.RouterConfig{
		RateLimitRequests: 1000,
		RateLimitWindow:   time.Minute,
	})
	rs.MountController(NewMonitoringControllerFactory(db, l, cache).CreateController())
	return rs
}

func get(rs *router.RouterService, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	rs.GetEngine().ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

func TestLiveness(t *testing.T) {
	w := get(newRouter(t, nil, nil), "/")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/plain")
	assert.Equal(t, LivenessMessage, w.Body.String())
}

func TestHealthCheck(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Discard})
	require.NoError(t, err)

	cases := []struct {
		name  string
		db    *gorm.DB
		cache Cache
		want  HealthStatus
	}{
		{name: "all healthy", db: db, cache: fakeCache{}, want: HealthStatus{Database: 1, Cache: 1}},
		{name: "cache down", db: db, cache: fakeCache{err: errors.New("dial tcp: connection refused")}, want: HealthStatus{Database: 1}},
		{name: "nothing configured", want: HealthStatus{}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := get(newRouter(t, tc.db, tc.cache), "/health")
			require.Equal(t, http.StatusOK, w.Code)

			var body struct {
				Code    int          `json:"code"`
				Data    HealthStatus `json:"data"`
				Message string       `json:"message"`
			}
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))

			assert.Equal(t, "lasting-loves-waitlist health check completed", body.Message)
			assert.Equal(t, tc.want.Database, body.Data.Database)
			assert.Equal(t, tc.want.Cache, body.Data.Cache)
		})
	}
}
