package gateway

import (
	"fmt"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/medimart/platform/pkg/config"
	"github.com/medimart/platform/pkg/logger"
	"github.com/medimart/platform/pkg/monitoring"
)

// route binds a path prefix to one backend.
type route struct {
	prefix    string
	target    *url.URL
	proxy     *httputil.ReverseProxy
	public    bool
	adminOnly bool
}

// Service is the API gateway: it authenticates callers, throttles them, and
// proxies requests to the backend services by path prefix. Backends trust the
// X-User-ID and X-User-Role headers the gateway injects, so inbound copies of
// those headers are always stripped.
type Service struct {
	router      *mux.Router
	routes      []route
	validator   *TokenValidator
	rateLimiter *RateLimiter
	logger      *logger.Logger
	metrics     *monitoring.MetricsCollector
}

// NewService builds the gateway from configuration.
func NewService(cfg *config.GatewayConfig, rateCfg *config.RateLimitConfig, log *logger.Logger, metrics *monitoring.MetricsCollector) (*Service, error) {
	limit := 120
	if rateCfg != nil && rateCfg.RequestsPerMin > 0 {
		limit = rateCfg.RequestsPerMin
	}

	s := &Service{
		router:      mux.NewRouter(),
		validator:   NewTokenValidator(cfg.JWTSecret),
		rateLimiter: NewRateLimiter(limit, time.Minute),
		logger:      log,
		metrics:     metrics,
	}

	// The onboarding wizard and the application registry serve labs that do
	// not have accounts yet, so those prefixes stay public.
	table := []struct {
		prefix    string
		rawURL    string
		public    bool
		adminOnly bool
	}{
		{prefix: "/api/v1/onboarding", rawURL: cfg.OnboardingURL, public: true},
		{prefix: "/api/v1/applications", rawURL: cfg.OnboardingURL, public: true},
		{prefix: "/api/v1/admin", rawURL: cfg.AdminURL, adminOnly: true},
		{prefix: "/api/v1/profile/login", rawURL: cfg.AdminURL, public: true},
		{prefix: "/api/v1/profile", rawURL: cfg.AdminURL},
		{prefix: "/api/v1/settings", rawURL: cfg.SettingsURL, adminOnly: true},
		{prefix: "/api/v1/notifications", rawURL: cfg.NotificationURL},
	}
	for _, entry := range table {
		if entry.rawURL == "" {
			continue
		}
		target, err := url.Parse(entry.rawURL)
		if err != nil {
			return nil, fmt.Errorf("invalid backend url for %s: %w", entry.prefix, err)
		}
		s.routes = append(s.routes, route{
			prefix:    entry.prefix,
			target:    target,
			proxy:     httputil.NewSingleHostReverseProxy(target),
			public:    entry.public,
			adminOnly: entry.adminOnly,
		})
	}

	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")
	s.router.Handle("/metrics", metrics.Handler()).Methods("GET")
	s.router.PathPrefix("/api/v1/").HandlerFunc(s.handleProxy)

	s.router.Use(s.corsMiddleware)
	s.router.Use(s.securityHeadersMiddleware)
	s.router.Use(s.loggingMiddleware)
	s.router.Use(s.authMiddleware)
	s.router.Use(s.rateLimitMiddleware)

	return s, nil
}

// Handler returns the gateway's HTTP handler.
func (s *Service) Handler() http.Handler {
	return s.router
}

// StartCleanup starts background eviction of idle rate-limit buckets.
func (s *Service) StartCleanup(interval time.Duration, stop <-chan struct{}) {
	s.rateLimiter.StartCleanup(interval, stop)
}

// match returns the route owning a path, longest prefix first.
func (s *Service) match(path string) *route {
	var best *route
	for i := range s.routes {
		r := &s.routes[i]
		if !strings.HasPrefix(path, r.prefix) {
			continue
		}
		if best == nil || len(r.prefix) > len(best.prefix) {
			best = r
		}
	}
	return best
}

// handleProxy forwards the request to the backend owning its prefix.
func (s *Service) handleProxy(w http.ResponseWriter, r *http.Request) {
	rt := s.match(r.URL.Path)
	if rt == nil {
		s.writeError(w, http.StatusNotFound, "no backend for path")
		return
	}
	r.Header.Set("X-Forwarded-Host", r.Host)
	rt.proxy.ServeHTTP(w, r)
}
