package router

import (
	"fmt"
	"path"
	"strings"

	"github.com/akeren/lasting-loves-waitlist/pkg/ratelimit"
)

func normalizePath(controller *RESTController, relativePath string) string {
	return path.Clean("/" + controller.mountPoint + "/" + relativePath)
}

func routeKey(route, method string) string {
	return method + " " + route
}

func (routerService *RouterService) bindHandlerToController(controller *RESTController, route, method string) {
	key := routeKey(route, method)

	if other, found := routerService.handlerToControllerMap[key]; found {
		panic(fmt.Sprintf("a handler for %s is already registered by controller %q", key, other.name))
	}

	routerService.handlerToControllerMap[key] = controller
}

func (routerService *RouterService) bindOverrideRateLimiter(key string, limiter ratelimit.RateLimiter) {
	if limiter == nil {
		return
	}

	if _, found := routerService.rateLimitOverrides[key]; found {
		panic(fmt.Sprintf("a rate limiter is already registered for %s", key))
	}

	routerService.rateLimitOverrides[key] = limiter
}

func createHandler(handler HandlerFunction) MiddlewareFunc {
	return func(c *RequestContext) {
		result := handler(c)

		if result == nil {
			InternalServerErrorResult("A handler returned an undefined result. This typically indicates a bug in a handler's implementation.").render(c)
			return
		}

		result.render(c)
	}
}

func NewRESTController(name, mountPoint string, prepare func(*RouterService, *RESTController)) *RESTController {
	return &RESTController{
		name:       name,
		mountPoint: path.Clean("/" + strings.TrimSpace(mountPoint)),
		prepare:    prepare,
	}
}

// RateLimitWith applies limiter to every handler of the controller that has no
// handler-level override.
func (controller *RESTController) RateLimitWith(routerService *RouterService, limiter ratelimit.RateLimiter) *RESTController {
	routerService.bindOverrideRateLimiter(controller.mountPoint, limiter)
	return controller
}

func (routerService *RouterService) addHandler(
	method string,
	controller *RESTController,
	limiter ratelimit.RateLimiter,
	relativePath string,
	handler HandlerFunction,
	middlewares []MiddlewareFunc,
) {
	controller.handlerCount++
	fullPath := normalizePath(controller, relativePath)

	routerService.bindHandlerToController(controller, fullPath, method)
	routerService.bindOverrideRateLimiter(routeKey(fullPath, method), limiter)
	routerService.engine.Handle(method, fullPath, append(middlewares, createHandler(handler))...)
	routerService.logger.Debug("Handler registered", "method", method, "path", fullPath)
}

func (routerService *RouterService) AddPostHandler(
	controller *RESTController,
	limiter ratelimit.RateLimiter,
	relativePath string,
	handler HandlerFunction,
	middlewares ...MiddlewareFunc,
) {
	routerService.addHandler("POST", controller, limiter, relativePath, handler, middlewares)
}

func (routerService *RouterService) AddGetHandler(
	controller *RESTController,
	limiter ratelimit.RateLimiter,
	relativePath string,
	handler HandlerFunction,
	middlewares ...MiddlewareFunc,
) {
	routerService.addHandler("GET", controller, limiter, relativePath, handler, middlewares)
}
