package router

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/akeren/lasting-loves-waitlist/internal/log"
	"github.com/akeren/lasting-loves-waitlist/pkg/constants"
	apperrors "github.com/akeren/lasting-loves-waitlist/pkg/errors"
	"github.com/akeren/lasting-loves-waitlist/pkg/factory"
	"github.com/akeren/lasting-loves-waitlist/pkg/ratelimit"
	"github.com/akeren/lasting-loves-waitlist/pkg/utils"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

const DefaultRequestTimeout = 30 * time.Second

type RouterService struct {
	engine   *gin.Engine
	server   *http.Server
	logger   *log.Logger
	limiters *factory.DefaultRateLimiterFactory
	registry *prometheus.Registry

	rateLimiter       ratelimit.RateLimiter
	rateLimitRequests int
	rateLimitWindow   time.Duration
	requestTimeout    time.Duration

	handlerToControllerMap map[string]*RESTController
	rateLimitOverrides     map[string]ratelimit.RateLimiter
}

type RouterConfig struct {
	RateLimitRequests int
	RateLimitWindow   time.Duration
	RequestTimeout    time.Duration
}

// CreateRouterService builds the gin engine and its middleware chain. cache may
// be nil; when it exposes a Redis client the limiters become distributed.
func CreateRouterService(logger *log.Logger, cache any, routerConfig *RouterConfig) *RouterService {
	if routerConfig.RequestTimeout <= 0 {
		routerConfig.RequestTimeout = DefaultRequestTimeout
	}

	if mode, ok := os.LookupEnv("GIN_MODE"); ok && mode != "" {
		logger.Info("Setting Gin mode", "mode", mode)
		gin.SetMode(mode)
	}

	ginRouter := gin.New()
	ginRouter.Use(gin.Recovery())

	if utils.IsTracingEnabled() {
		ginRouter.Use(otelgin.Middleware(utils.OTelServiceName()))
		logger.Info("Tracing middleware enabled")
	}

	// ClientIP() only honours X-Forwarded-For from proxies listed in TRUSTED_PROXIES.
	trustedProxies := parseTrustedProxiesEnv(os.Getenv("TRUSTED_PROXIES"))
	if err := ginRouter.SetTrustedProxies(trustedProxies); err != nil {
		logger.Error("Invalid TRUSTED_PROXIES; disabling trusted proxies", "error", err)
		_ = ginRouter.SetTrustedProxies(nil)
	}

	rs := &RouterService{
		engine:            ginRouter,
		logger:            logger,
		limiters:          factory.NewRateLimiterFactory(cache, ratelimit.DefaultKeyPrefix, logger),
		rateLimitRequests: routerConfig.RateLimitRequests,
		rateLimitWindow:   routerConfig.RateLimitWindow,
		requestTimeout:    routerConfig.RequestTimeout,

		rateLimitOverrides:     make(map[string]ratelimit.RateLimiter),
		handlerToControllerMap: make(map[string]*RESTController),
	}

	// RateLimitRequests <= 0 leaves routes without an override unlimited.
	if rs.rateLimitRequests > 0 {
		rs.rateLimiter = rs.limiters.CreateRateLimiter(rs.rateLimitRequests, rs.rateLimitWindow)
		logger.Info("Rate limiting initialized",
			"distributed", rs.limiters.Distributed(),
			"requests", rs.rateLimitRequests,
			"window", rs.rateLimitWindow)
	} else {
		logger.Info("Default rate limiting disabled")
	}

	// Registered before the limiter so scrapes are never throttled.
	rs.mountMetrics()

	ginRouter.Use(rs.correlationIDMiddleware())
	ginRouter.Use(rs.loggerInjectionMiddleware())
	ginRouter.Use(rs.requestLoggingMiddleware())

	ginRouter.Use(rs.securityHeadersMiddleware())
	ginRouter.Use(rs.maxBodySizeMiddleware())
	ginRouter.Use(rs.corsMiddleware())
	ginRouter.Use(rs.rateLimitMiddleware())
	ginRouter.Use(rs.timeoutMiddleware())

	ginRouter.HandleMethodNotAllowed = true
	ginRouter.RedirectTrailingSlash = true

	ginRouter.NoRoute(func(c *gin.Context) {
		GetLogger(c).Warn("Route not found", "path", c.Request.URL.Path)
		ErrorResult(apperrors.StatusNotFound, "Route not found", nil).render(c)
	})

	ginRouter.NoMethod(func(c *gin.Context) {
		GetLogger(c).Warn("Method not allowed", "method", c.Request.Method, "path", c.Request.URL.Path)
		ErrorResult(apperrors.StatusMethodNotAllowed, "Method not allowed", nil).render(c)
	})

	rs.server = &http.Server{
		Handler: ginRouter,

		// Gin's Context is not goroutine-safe, so time limits are enforced here
		// rather than by running handlers in a separate goroutine.
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       routerConfig.RequestTimeout,
		WriteTimeout:      routerConfig.RequestTimeout,
		IdleTimeout:       60 * time.Second,
	}

	logger.Info("Router service initialized")
	return rs
}

func parseTrustedProxiesEnv(v string) []string {
	s := strings.TrimSpace(v)
	if s == "" {
		return nil
	}
	if s == "*" {
		return []string{"0.0.0.0/0", "::/0"}
	}

	var proxies []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			proxies = append(proxies, p)
		}
	}
	return proxies
}

// RateLimiterFactory hands controllers a factory bound to the same backend as
// the default limiter.
func (routerService *RouterService) RateLimiterFactory() factory.RateLimiterFactory {
	return routerService.limiters
}

func (routerService *RouterService) GetEngine() *gin.Engine {
	return routerService.engine
}

func (routerService *RouterService) GetLogger(c *RequestContext) *log.Logger {
	return GetLogger(c)
}

// MetricsRegistry is where application collectors register so they appear
// on /metrics. With metrics disabled it is a private, unexposed registry.
func (routerService *RouterService) MetricsRegistry() prometheus.Registerer {
	if routerService.registry == nil {
		routerService.registry = prometheus.NewRegistry()
	}
	return routerService.registry
}

func (routerService *RouterService) Cleanup() {
	closed := map[ratelimit.RateLimiter]bool{}
	limiters := []ratelimit.RateLimiter{routerService.rateLimiter}
	for _, l := range routerService.rateLimitOverrides {
		limiters = append(limiters, l)
	}

	for _, l := range limiters {
		if l == nil || closed[l] {
			continue
		}
		closed[l] = true
		if err := l.Close(); err != nil {
			routerService.logger.Error("Failed to close rate limiter", "error", err)
		}
	}
	routerService.logger.Info("Router service cleanup completed")
}

func (routerService *RouterService) MountController(controller *RESTController) {
	controller.prepare(routerService, controller)

	routerService.logger.Info("Controller mounted",
		"name", controller.name,
		"path", controller.mountPoint,
		"handlers", controller.handlerCount,
	)
}

// ListenAddr resolves the listen address: APP_PORT, then PORT, then 5000.
func ListenAddr() string {
	port := utils.GetEnvTrimmed("APP_PORT")
	if port == "" {
		port = utils.GetEnvTrimmedOrDefault("PORT", constants.DefaultHTTPPort)
	}
	return ":" + port
}

func (routerService *RouterService) RunHTTPServer() error {
	routerService.server.Addr = ListenAddr()

	routerService.logger.Info("Starting HTTP server", "addr", routerService.server.Addr)

	if err := routerService.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		routerService.logger.Error("Failed to start HTTP server", "error", err)
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}

	return nil
}

func (routerService *RouterService) Shutdown(ctx context.Context) error {
	routerService.logger.Info("Shutting down HTTP server gracefully")
	return routerService.server.Shutdown(ctx)
}
