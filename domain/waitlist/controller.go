package waitlist

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/akeren/lasting-loves-waitlist/config/router"
	"github.com/akeren/lasting-loves-waitlist/internal/i18n"
	apperrors "github.com/akeren/lasting-loves-waitlist/pkg/errors"
	"github.com/akeren/lasting-loves-waitlist/pkg/ratelimit"
	"github.com/gin-gonic/gin/binding"
)

// NewWaitlistController mounts join and count under /api/waitlist. A positive
// joinRequestsPerMinute gives the join route its own per-client limit; zero
// leaves it under the router's default limiter.
func NewWaitlistController(service WaitlistService, translator *i18n.Translator, joinRequestsPerMinute int) *router.RESTController {
	return router.NewRESTController(
		"WaitlistController",
		"/api/waitlist",
		func(rs *router.RouterService, c *router.RESTController) {
			var joinLimiter ratelimit.RateLimiter
			if joinRequestsPerMinute > 0 {
				joinLimiter = rs.RateLimiterFactory().CreateRateLimiter(joinRequestsPerMinute, time.Minute)
			}

			rs.AddPostHandler(c, joinLimiter, "join", joinWaitlistHandler(service, translator))
			rs.AddGetHandler(c, nil, "count", countWaitlistHandler(service))
		},
	)
}

func joinWaitlistHandler(service WaitlistService, translator *i18n.Translator) router.HandlerFunction {
	return func(ctx *router.RequestContext) *router.ServiceResult {
		logger := router.GetLogger(ctx)

		var req JoinWaitlistRequest
		if err := json.NewDecoder(ctx.Request.Body).Decode(&req); err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				logger.Warn("Join request body exceeds limit", "limit", tooLarge.Limit)
				return router.ErrorResult(http.StatusRequestEntityTooLarge, "Request payload too large", nil)
			}
			logger.Warn("Failed to decode join request", "error", err)
			return router.JSONResult(http.StatusBadRequest, ValidationFailureResponse{
				Message: MessageInvalidEmail,
				Errors:  apperrors.FormatValidationErrors(err, &req),
			})
		}

		req.Normalize()
		if err := binding.Validator.ValidateStruct(&req); err != nil {
			logger.Warn("Join request failed validation", "error", err)
			return router.JSONResult(http.StatusBadRequest, ValidationFailureResponse{
				Message: MessageInvalidEmail,
				Errors:  apperrors.FormatValidationErrors(err, &req),
			})
		}

		if translator != nil {
			req.Locale = translator.Match(ctx.GetHeader("Accept-Language"))
		}

		if err := service.Join(ctx.Request.Context(), &req); err != nil {
			if apperrors.IsType(err, apperrors.ErrorTypeConflict) {
				return router.JSONResult(http.StatusBadRequest, MessageResponse{Message: MessageAlreadyJoined})
			}
			return router.JSONResult(http.StatusInternalServerError, MessageResponse{Message: MessageJoinFailed})
		}

		return router.JSONResult(http.StatusCreated, MessageResponse{Message: MessageJoined})
	}
}

func countWaitlistHandler(service WaitlistService) router.HandlerFunction {
	return func(ctx *router.RequestContext) *router.ServiceResult {
		count, err := service.Count(ctx.Request.Context())
		if err != nil {
			return router.JSONResult(http.StatusInternalServerError, MessageResponse{Message: MessageCountFailed})
		}

		return router.JSONResult(http.StatusOK, CountResponse{Count: count})
	}
}
