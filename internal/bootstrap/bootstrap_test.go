package bootstrap

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slc-run/slc-demo-backend/config"
	httpapi "github.com/slc-run/slc-demo-backend/internal/api/http"
	"github.com/slc-run/slc-demo-backend/internal/demo/controlplane"
	"github.com/slc-run/slc-demo-backend/internal/demo/domain"
	"github.com/slc-run/slc-demo-backend/internal/demo/service"
)

func testRouter(t *testing.T, dep RouterDeps) *gin.Engine {
	t.Helper()
	SetGinMode("test")

	platform := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v1/_control/create-project":
			_, _ = w.Write([]byte(`{"apiKey":"k"}`))
		default:
			_, _ = w.Write([]byte(`{}`))
		}
	}))
	t.Cleanup(platform.Close)

	cp := controlplane.NewClient(platform.URL, controlplane.Options{AdminToken: "admin"})
	dep.Demo = service.NewDemoService(cp, nil, nil, service.Options{})
	dep.Health = httpapi.HealthDeps{ServiceName: "test", ControlPlane: cp}
	return BuildRouter(dep)
}

func post(r http.Handler, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestBuildRouter_RateLimitsStart(t *testing.T) {
	r := testRouter(t, RouterDeps{RateLimitPerMinute: 1, RateLimitBurst: 1})

	w := post(r, "/api/demo/start", `{"boilerplateId":"counter"}`, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.NotEmpty(t, w.Header().Get("X-Request-Id"))

	w = post(r, "/api/demo/start", `{"boilerplateId":"counter"}`, nil)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)

	// status is not rate limited
	for i := 0; i < 3; i++ {
		w = post(r, "/api/demo/status", `{"expiresAt":"2030-01-01T00:00:00Z"}`, nil)
		assert.Equal(t, http.StatusOK, w.Code)
	}
}

func TestBuildRouter_CleanupKey(t *testing.T) {
	r := testRouter(t, RouterDeps{CleanupAPIKey: "secret"})

	w := post(r, "/api/demo/cleanup", `{"projectId":"demo-1"}`, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = post(r, "/api/demo/cleanup", `{"projectId":"demo-1"}`, map[string]string{"X-API-Key": "secret"})
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestBuildRouter_CORS(t *testing.T) {
	r := testRouter(t, RouterDeps{CORSAllowedOrigins: []string{"https://slc.run"}})

	req := httptest.NewRequest(http.MethodOptions, "/api/demo/start", nil)
	req.Header.Set("Origin", "https://slc.run")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, "https://slc.run", w.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/healthz", nil)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestOpenTracking_Redis(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	cfg := &config.Config{Tracking: config.TrackingConfig{Backend: config.TrackingBackendRedis}}
	cfg.Redis.Addr = mr.Addr()

	tr, err := OpenTracking(context.Background(), cfg)
	require.NoError(t, err)
	defer tr.Close()

	require.NotNil(t, tr.Sink)
	require.NotNil(t, tr.Store)

	ctx := context.Background()
	expires := time.Now().Add(-time.Minute)
	require.NoError(t, tr.Sink.Record(ctx, domain.TrackingRecord{ProjectID: "demo-1", Kind: domain.SourceCustom, ExpiresAt: expires}))

	rows, err := tr.Store.ListExpired(ctx, time.Now(), 10)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "demo-1", rows[0].ProjectID)
}

func TestOpenTracking_NoneAndREST(t *testing.T) {
	tr, err := OpenTracking(context.Background(), &config.Config{Tracking: config.TrackingConfig{Backend: config.TrackingBackendNone}})
	require.NoError(t, err)
	assert.Nil(t, tr.Sink)
	assert.Nil(t, tr.Store)

	tr, err = OpenTracking(context.Background(), &config.Config{Tracking: config.TrackingConfig{
		Backend: config.TrackingBackendREST, URL: "https://x.supabase.co", ServiceKey: "k",
	}})
	require.NoError(t, err)
	assert.NotNil(t, tr.Sink)
	assert.Nil(t, tr.Store)

	_, err = OpenTracking(context.Background(), &config.Config{Tracking: config.TrackingConfig{Backend: "mongo"}})
	assert.Error(t, err)
}

func TestOpenDB_RequiresDSN(t *testing.T) {
	_, err := OpenDB(context.Background(), DBOptions{})
	assert.Error(t, err)
}
