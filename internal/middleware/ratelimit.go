package middleware

import (
	"fmt"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/vibescrow/backend/internal/http/dto"
)

const rateLimitPrefix = "rl:"

// rateLimitKey buckets by client IP and path. Proxy routes also bucket by
// action since each action hits a different upstream endpoint.
func rateLimitKey(c *fiber.Ctx) string {
	key := rateLimitPrefix + c.IP() + ":" + c.Path()
	if action := c.Query("action"); action != "" {
		key += ":" + action
	}
	return key
}

// RateLimitMiddleware allows limit requests per window per bucket. A nil
// client or a non-positive limit disables it and Redis failures let the
// request through.
func RateLimitMiddleware(rdb *redis.Client, limit int, window time.Duration) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if rdb == nil || limit <= 0 {
			return c.Next()
		}

		ctx := c.UserContext()
		key := rateLimitKey(c)

		var incr *redis.IntCmd
		var ttl *redis.DurationCmd
		_, err := rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			incr = pipe.Incr(ctx, key)
			pipe.ExpireNX(ctx, key, window)
			ttl = pipe.TTL(ctx, key)
			return nil
		})
		if err != nil {
			return c.Next()
		}

		count := incr.Val()
		c.Set("X-RateLimit-Limit", strconv.Itoa(limit))
		c.Set("X-RateLimit-Remaining", strconv.FormatInt(max(int64(limit)-count, 0), 10))
		if count > int64(limit) {
			retry := ttl.Val()
			if retry <= 0 {
				retry = window
			}
			c.Set(fiber.HeaderRetryAfter, strconv.Itoa(int(retry.Round(time.Second).Seconds())))
			reqID, _ := c.Locals(CtxRequestID).(string)
			return c.Status(fiber.StatusTooManyRequests).JSON(dto.ErrorResponse{
				Error:     fmt.Sprintf("rate limit exceeded, %d requests per %s", limit, window),
				RequestID: reqID,
			})
		}

		return c.Next()
	}
}
