package router

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/akeren/lasting-loves-waitlist/internal/log"
	apperrors "github.com/akeren/lasting-loves-waitlist/pkg/errors"
	"github.com/akeren/lasting-loves-waitlist/pkg/ratelimit"
	"github.com/akeren/lasting-loves-waitlist/pkg/utils"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

const defaultMaxBodyBytes = 1 << 20

func (routerService *RouterService) correlationIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader("X-Correlation-ID")
		if id == "" {
			id = log.GenerateCorrelationID()
		}
		ctx := context.WithValue(c.Request.Context(), log.CorrelatedIDKey, id)
		c.Request = c.Request.WithContext(ctx)
		c.Header("X-Correlation-ID", id)
		c.Next()
	}
}

func (routerService *RouterService) loggerInjectionMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		correlatedLogger := routerService.logger.WithCorrelationID(c.Request.Context())
		ctx := context.WithValue(c.Request.Context(), log.LoggerKeyForContext, correlatedLogger)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

func (routerService *RouterService) requestLoggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		GetLogger(c).Info("HTTP request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"latency_ms", time.Since(start).Milliseconds(),
			"remote_addr", c.ClientIP(),
		)
	}
}

func (routerService *RouterService) securityHeadersMiddleware() gin.HandlerFunc {
	hsts := hstsValue()

	return func(c *gin.Context) {
		h := c.Writer.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Referrer-Policy", "no-referrer")

		if hsts != "" && isHTTPS(c) {
			h.Set("Strict-Transport-Security", hsts)
		}
		c.Next()
	}
}

// hstsValue is empty when HSTS is off. It defaults to on in production and
// can be forced either way with HSTS_ENABLED.
func hstsValue() string {
	appEnv := strings.ToLower(utils.GetEnvTrimmed("APP_ENV"))
	if !utils.GetEnvBool("HSTS_ENABLED", appEnv == "production" || appEnv == "prod") {
		return ""
	}

	maxAge := utils.GetEnvPositiveInt("HSTS_MAX_AGE", 31536000)
	value := fmt.Sprintf("max-age=%d", maxAge)
	if utils.GetEnvBool("HSTS_INCLUDE_SUBDOMAINS", true) {
		value += "; includeSubDomains"
	}
	return value
}

func isHTTPS(c *gin.Context) bool {
	return c.Request.TLS != nil || strings.EqualFold(strings.TrimSpace(c.GetHeader("X-Forwarded-Proto")), "https")
}

func (routerService *RouterService) maxBodySizeMiddleware() gin.HandlerFunc {
	maxBytes := int64(utils.GetEnvPositiveInt("MAX_REQUEST_BODY_BYTES", defaultMaxBodyBytes))

	return func(c *gin.Context) {
		if c.Request.ContentLength > maxBytes {
			c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, ErrorResult(
				http.StatusRequestEntityTooLarge,
				"Request payload too large",
				nil,
			).ToJSON())
			return
		}
		if c.Request.Body != nil {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		}
		c.Next()
	}
}

// corsConfig allows any origin unless CORS_ALLOWED_ORIGIN lists specific ones.
func corsConfig() cors.Config {
	cfg := cors.DefaultConfig()
	cfg.AllowHeaders = append(cfg.AllowHeaders, "Accept", "Authorization", "X-Correlation-ID", "X-Requested-With")
	cfg.ExposeHeaders = []string{"X-Correlation-ID", "X-RateLimit-Limit", "X-RateLimit-Window", "Retry-After"}
	cfg.MaxAge = 12 * time.Hour

	origins := utils.GetEnvList("CORS_ALLOWED_ORIGIN")
	if len(origins) == 0 || slices.Contains(origins, "*") {
		cfg.AllowAllOrigins = true
		return cfg
	}

	cfg.AllowOrigins = origins
	cfg.AllowCredentials = true
	return cfg
}

func (routerService *RouterService) corsMiddleware() gin.HandlerFunc {
	cfg := corsConfig()
	if err := cfg.Validate(); err != nil {
		routerService.logger.Error("Invalid CORS_ALLOWED_ORIGIN; allowing all origins", "error", err)
		cfg.AllowOrigins = nil
		cfg.AllowCredentials = false
		cfg.AllowAllOrigins = true
	}

	routerService.logger.Info("CORS configured", "allow_all", cfg.AllowAllOrigins, "origins", cfg.AllowOrigins)
	return cors.New(cfg)
}

func (routerService *RouterService) timeoutMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), routerService.requestTimeout)
		defer cancel()

		c.Request = c.Request.WithContext(ctx)

		// c.Next must stay on this goroutine; gin.Context is not safe for concurrent use.
		c.Next()

		if ctx.Err() == context.DeadlineExceeded && !c.Writer.Written() {
			GetLogger(c).Warn("Request timeout detected")
			c.AbortWithStatusJSON(http.StatusRequestTimeout, ErrorResult(
				apperrors.StatusRequestTimeout,
				"Request timeout",
				nil,
			).ToJSON())
		}
	}
}

// limiterFor resolves handler override, then controller override, then the
// default, which is nil when default limiting is off. scope names the override so limiters sharing a Redis prefix keep
// separate windows; it is empty for the default limiter.
func (routerService *RouterService) limiterFor(controller *RESTController, key string) (limiter ratelimit.RateLimiter, scope string) {
	if l, ok := routerService.rateLimitOverrides[key]; ok {
		return l, key
	}
	if l, ok := routerService.rateLimitOverrides[controller.mountPoint]; ok {
		return l, controller.mountPoint
	}
	return routerService.rateLimiter, ""
}

func (routerService *RouterService) rateLimitMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		limiter := routerService.rateLimiter
		scope := ""

		// Unmatched paths fall through to NoRoute/NoMethod under the default limiter.
		if route := c.FullPath(); route != "" {
			key := routeKey(route, c.Request.Method)
			controller, found := routerService.handlerToControllerMap[key]
			if !found || controller == nil {
				GetLogger(c).Error("Handler registered without a controller mapping", "route", key)
				c.AbortWithStatusJSON(http.StatusNotFound, NotFoundResult(
					fmt.Sprintf("There is no handler configured to handle any resource at the path %s", c.Request.URL.Path),
				).ToJSON())
				return
			}
			limiter, scope = routerService.limiterFor(controller, key)
		}

		if limiter == nil {
			c.Next()
			return
		}

		limit, window := limiter.Limits()
		c.Header("X-RateLimit-Limit", strconv.Itoa(limit))
		c.Header("X-RateLimit-Window", window.String())

		clientIP := c.ClientIP()
		bucket := clientIP
		if scope != "" {
			bucket = scope + ":" + clientIP
		}
		limited, err := limiter.IsLimited(c.Request.Context(), bucket)
		if err != nil {
			// Fail open on limiter errors.
			GetLogger(c).Error("Rate limiter error", "error", err, "client_ip", clientIP)
			c.Next()
			return
		}

		if limited {
			retryAfter := strconv.Itoa(max(int(math.Ceil(window.Seconds())), 1))
			GetLogger(c).Warn("Rate limit exceeded", "client_ip", clientIP)
			c.Header("Retry-After", retryAfter)
			c.AbortWithStatusJSON(http.StatusTooManyRequests, TooManyRequestsResult(RateLimitResponse{
				Limit:      limit,
				Window:     window.String(),
				RetryAfter: retryAfter,
			}).ToJSON())
			return
		}

		c.Next()
	}
}
