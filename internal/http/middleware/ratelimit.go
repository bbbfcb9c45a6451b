package middleware

import (
	"context"
	"net/http"
	"strconv"
	"time"

	echo "github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
)

// RateLimitConfig config for Redis-based RPS limiter.
type RateLimitConfig struct {
	Redis          *redis.Client
	DefaultRPS     int           // per-account requests per Window
	KeyPrefix      string        // e.g. "rl:acct:"
	Window         time.Duration // usually 1s
	RetryAfterHint bool          // set Retry-After header when limited
}

// RateLimit applies a simple fixed-window per-account RPS limit.
// It expects the account in echo.Context (set by Auth).
func RateLimit(cfg RateLimitConfig) echo.MiddlewareFunc {
	if cfg.Window <= 0 {
		cfg.Window = time.Second
	}
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = "rl:acct:"
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			acct, ok := AccountFromCtx(c)
			if !ok || acct.ID <= 0 {
				return next(c)
			}

			max := cfg.DefaultRPS
			if max <= 0 || cfg.Redis == nil {
				// no limit configured or redis missing (dev): allow
				return next(c)
			}

			// fixed-window key: rl:acct:{id}:{unix_sec}
			now := time.Now()
			key := cfg.KeyPrefix + strconv.FormatInt(acct.ID, 10) + ":" + strconv.FormatInt(now.Unix(), 10)

			pipe := cfg.Redis.Pipeline()
			cnt := pipe.Incr(c.Request().Context(), key)
			pipe.Expire(c.Request().Context(), key, cfg.Window*2)
			_, err := pipe.Exec(c.Request().Context())
			if err != nil {
				return next(c)
			}

			if cnt.Val() > int64(max) {
				if cfg.RetryAfterHint {
					remain := cfg.Window - time.Duration(now.UnixNano()%int64(cfg.Window))
					if remain > 0 {
						c.Response().Header().Set("Retry-After", strconv.Itoa(int(remain.Round(time.Second)/time.Second)))
					}
				}
				return c.JSON(http.StatusTooManyRequests, map[string]any{"success": false, "error": "rate limited"})
			}
			return next(c)
		}
	}
}

// AllowRotation enforces the per-account credential-rotation budget with a
// fixed window (default 3 per hour). Fails open when Redis is unavailable.
func AllowRotation(ctx context.Context, rds *redis.Client, accountID int64, max int, window time.Duration) bool {
	if rds == nil || max <= 0 {
		return true
	}
	if window <= 0 {
		window = time.Hour
	}

	bucket := time.Now().Unix() / int64(window.Seconds())
	key := "rot:acct:" + strconv.FormatInt(accountID, 10) + ":" + strconv.FormatInt(bucket, 10)

	pipe := rds.Pipeline()
	cnt := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, window*2)
	if _, err := pipe.Exec(ctx); err != nil {
		return true
	}
	return cnt.Val() <= int64(max)
}
