// Package middleware provides HTTP rate limiting for the laneview API.
//
// # Overview
//
// Requests are limited per client IP. Two Limiter implementations exist:
//
//	MemoryRateLimiter: token bucket per key, local to one process
//	RedisRateLimiter:  fixed window counter shared by every instance using the same Redis
//
// # Usage
//
//	limiter := middleware.NewMemoryRateLimiter(middleware.DefaultRateLimitConfig())
//	limiter.StartCleanup(ctx)
//	router.Use(middleware.RateLimitMiddleware(limiter, logger))
//
// Allowed responses carry X-RateLimit-Limit, X-RateLimit-Remaining and
// X-RateLimit-Reset headers. Rejected requests get 429 with a Retry-After
// header and a JSON body. When the limiter itself fails (Redis unreachable)
// the request is let through and a warning is logged.
package middleware
