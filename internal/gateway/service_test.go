package gateway

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medimart/platform/pkg/config"
	"github.com/medimart/platform/pkg/logger"
	"github.com/medimart/platform/pkg/monitoring"
)

var (
	gatewayMetricsOnce sync.Once
	gatewayMetrics     *monitoring.MetricsCollector
)

func metricsForTest() *monitoring.MetricsCollector {
	gatewayMetricsOnce.Do(func() {
		gatewayMetrics = monitoring.NewMetricsCollector("gateway-test")
	})
	return gatewayMetrics
}

// echoBackend records the identity headers it receives.
type echoBackend struct {
	server   *httptest.Server
	lastPath string
	userID   string
	userRole string
}

func newEchoBackend() *echoBackend {
	b := &echoBackend{}
	b.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b.lastPath = r.URL.Path
		b.userID = r.Header.Get("X-User-ID")
		b.userRole = r.Header.Get("X-User-Role")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"ok":true}`))
	}))
	return b
}

func newTestGateway(t *testing.T, onboarding, admin, settings, notifications string) *Service {
	t.Helper()
	svc, err := NewService(&config.GatewayConfig{
		JWTSecret:       "gateway-test-secret",
		OnboardingURL:   onboarding,
		AdminURL:        admin,
		SettingsURL:     settings,
		NotificationURL: notifications,
	}, &config.RateLimitConfig{RequestsPerMin: 1000}, logger.New("error"), metricsForTest())
	require.NoError(t, err)
	return svc
}

func TestOnboardingPrefixIsPublic(t *testing.T) {
	backend := newEchoBackend()
	defer backend.server.Close()

	svc := newTestGateway(t, backend.server.URL, backend.server.URL, backend.server.URL, backend.server.URL)
	gw := httptest.NewServer(svc.Handler())
	defer gw.Close()

	resp, err := http.Post(gw.URL+"/api/v1/onboarding/sessions", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "/api/v1/onboarding/sessions", backend.lastPath)
}

func TestProtectedPrefixRequiresToken(t *testing.T) {
	backend := newEchoBackend()
	defer backend.server.Close()

	svc := newTestGateway(t, backend.server.URL, backend.server.URL, backend.server.URL, backend.server.URL)
	gw := httptest.NewServer(svc.Handler())
	defer gw.Close()

	resp, err := http.Get(gw.URL + "/api/v1/notifications")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestValidTokenInjectsIdentityHeaders(t *testing.T) {
	backend := newEchoBackend()
	defer backend.server.Close()

	svc := newTestGateway(t, backend.server.URL, backend.server.URL, backend.server.URL, backend.server.URL)
	gw := httptest.NewServer(svc.Handler())
	defer gw.Close()

	token, err := svc.validator.Issue("u-7", "user@medimart.io", "user", time.Hour)
	require.NoError(t, err)

	req, _ := http.NewRequest(http.MethodGet, gw.URL+"/api/v1/notifications", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	// A forged identity header must be replaced with the verified one.
	req.Header.Set("X-User-ID", "someone-else")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "u-7", backend.userID)
	assert.Equal(t, "user", backend.userRole)
}

func TestForgedIdentityHeaderStrippedOnPublicRoute(t *testing.T) {
	backend := newEchoBackend()
	defer backend.server.Close()

	svc := newTestGateway(t, backend.server.URL, backend.server.URL, backend.server.URL, backend.server.URL)
	gw := httptest.NewServer(svc.Handler())
	defer gw.Close()

	req, _ := http.NewRequest(http.MethodPost, gw.URL+"/api/v1/onboarding/sessions", nil)
	req.Header.Set("X-User-ID", "forged")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Empty(t, backend.userID)
}

func TestAdminPrefixRequiresAdminRole(t *testing.T) {
	backend := newEchoBackend()
	defer backend.server.Close()

	svc := newTestGateway(t, backend.server.URL, backend.server.URL, backend.server.URL, backend.server.URL)
	gw := httptest.NewServer(svc.Handler())
	defer gw.Close()

	userToken, err := svc.validator.Issue("u-7", "", "user", time.Hour)
	require.NoError(t, err)
	adminToken, err := svc.validator.Issue("a-1", "", RoleAdmin, time.Hour)
	require.NoError(t, err)

	req, _ := http.NewRequest(http.MethodGet, gw.URL+"/api/v1/admin/chemists", nil)
	req.Header.Set("Authorization", "Bearer "+userToken)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	req, _ = http.NewRequest(http.MethodGet, gw.URL+"/api/v1/admin/chemists", nil)
	req.Header.Set("Authorization", "Bearer "+adminToken)
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "a-1", backend.userID)
}

func TestSettingsPrefixRequiresAdminRole(t *testing.T) {
	backend := newEchoBackend()
	defer backend.server.Close()

	svc := newTestGateway(t, backend.server.URL, backend.server.URL, backend.server.URL, backend.server.URL)
	gw := httptest.NewServer(svc.Handler())
	defer gw.Close()

	userToken, err := svc.validator.Issue("u-7", "", "user", time.Hour)
	require.NoError(t, err)

	req, _ := http.NewRequest(http.MethodGet, gw.URL+"/api/v1/settings/smtp", nil)
	req.Header.Set("Authorization", "Bearer "+userToken)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestProfileLoginIsPublicButProfileIsNot(t *testing.T) {
	backend := newEchoBackend()
	defer backend.server.Close()

	svc := newTestGateway(t, backend.server.URL, backend.server.URL, backend.server.URL, backend.server.URL)
	gw := httptest.NewServer(svc.Handler())
	defer gw.Close()

	resp, err := http.Post(gw.URL+"/api/v1/profile/login", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "/api/v1/profile/login", backend.lastPath)

	resp, err = http.Get(gw.URL + "/api/v1/profile")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	token, err := svc.validator.Issue("c-9", "", "chemist", time.Hour)
	require.NoError(t, err)
	req, _ := http.NewRequest(http.MethodGet, gw.URL+"/api/v1/profile", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "c-9", backend.userID)
}

func TestUnknownPrefixIs404(t *testing.T) {
	backend := newEchoBackend()
	defer backend.server.Close()

	svc := newTestGateway(t, backend.server.URL, backend.server.URL, backend.server.URL, backend.server.URL)
	gw := httptest.NewServer(svc.Handler())
	defer gw.Close()

	resp, err := http.Get(gw.URL + "/api/v1/unknown/thing")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestSecurityHeadersAndPreflight(t *testing.T) {
	backend := newEchoBackend()
	defer backend.server.Close()

	svc := newTestGateway(t, backend.server.URL, backend.server.URL, backend.server.URL, backend.server.URL)
	gw := httptest.NewServer(svc.Handler())
	defer gw.Close()

	resp, err := http.Get(gw.URL + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, "nosniff", resp.Header.Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", resp.Header.Get("X-Frame-Options"))

	req, _ := http.NewRequest(http.MethodOptions, gw.URL+"/api/v1/onboarding/sessions", nil)
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestRateLimitReturns429(t *testing.T) {
	backend := newEchoBackend()
	defer backend.server.Close()

	svc, err := NewService(&config.GatewayConfig{
		JWTSecret:     "gateway-test-secret",
		OnboardingURL: backend.server.URL,
	}, &config.RateLimitConfig{RequestsPerMin: 2}, logger.New("error"), metricsForTest())
	require.NoError(t, err)
	gw := httptest.NewServer(svc.Handler())
	defer gw.Close()

	var last int
	for i := 0; i < 3; i++ {
		resp, err := http.Get(gw.URL + "/api/v1/onboarding/sessions/abc")
		require.NoError(t, err)
		resp.Body.Close()
		last = resp.StatusCode
	}
	assert.Equal(t, http.StatusTooManyRequests, last)
}

func TestHealthReportsBackends(t *testing.T) {
	backend := newEchoBackend()
	defer backend.server.Close()

	svc := newTestGateway(t, backend.server.URL, backend.server.URL, backend.server.URL, backend.server.URL)
	gw := httptest.NewServer(svc.Handler())
	defer gw.Close()

	resp, err := http.Get(gw.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
