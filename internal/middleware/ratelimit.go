package middleware

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"inkwell/internal/observability"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

// FailPolicy defines the behavior when the rate limit store (Redis) is unavailable.
type FailPolicy int

const (
	// FailOpen allows the request to proceed if Redis is unavailable.
	FailOpen FailPolicy = iota
	// FailClosed blocks the request (503 Service Unavailable) if Redis is unavailable.
	FailClosed
)

// Limit is a named fixed-window request budget.
type Limit struct {
	Name     string
	Requests int
	Window   time.Duration
}

// Budgets for the write endpoints.
var (
	SignupLimit     = Limit{Name: "signup", Requests: 5, Window: 10 * time.Minute}
	SigninLimit     = Limit{Name: "signin", Requests: 10, Window: 5 * time.Minute}
	PostLimit       = Limit{Name: "create_post", Requests: 10, Window: time.Minute}
	CommentLimit    = Limit{Name: "create_comment", Requests: 20, Window: time.Minute}
	UploadLimit     = Limit{Name: "upload_image", Requests: 10, Window: time.Minute}
	ChatLimit       = Limit{Name: "send_chat", Requests: 30, Window: time.Minute}
	FinderGuessRate = Limit{Name: "finder_guess", Requests: 120, Window: time.Minute}
)

var errNoStore = errors.New("rate limit store unavailable")

func rateLimitBypassed() bool {
	switch os.Getenv("APP_ENV") {
	case "test", "stress":
		return true
	}
	return false
}

// CheckRateLimit counts one hit against resource/id in a fixed window and reports whether
// the hit is within limit. The window starts with the first hit. Rate limiting is disabled
// when APP_ENV is "test" or "stress".
func CheckRateLimit(ctx context.Context, rdb *redis.Client, resource, id string, limit int, window time.Duration) (bool, error) {
	if rateLimitBypassed() {
		return true, nil
	}
	if rdb == nil {
		return false, errNoStore
	}

	key := "rl:" + resource + ":" + id
	cnt, err := rdb.Incr(ctx, key).Result()
	if err != nil {
		return false, err
	}
	if cnt == 1 {
		if err := rdb.Expire(ctx, key, window).Err(); err != nil {
			return false, err
		}
	}
	return cnt <= int64(limit), nil
}

// RateLimit enforces l per caller, failing open when Redis is unavailable. Callers are keyed
// by user ID when authenticated and by remote IP otherwise.
func RateLimit(rdb *redis.Client, l Limit) fiber.Handler {
	return RateLimitWithPolicy(rdb, l, FailOpen)
}

// RateLimitWithPolicy is RateLimit with an explicit store failure policy.
func RateLimitWithPolicy(rdb *redis.Client, l Limit, policy FailPolicy) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := "ip:" + c.IP()
		if uid := UserID(c); uid != 0 {
			id = fmt.Sprintf("user:%d", uid)
		}
		resource := l.Name
		if resource == "" {
			resource = c.Path()
		}

		allowed, err := CheckRateLimit(c.UserContext(), rdb, resource, id, l.Requests, l.Window)
		switch {
		case err != nil:
			observability.RateLimitDecisions.WithLabelValues(resource, "store_error").Inc()
			if policy == FailOpen {
				return c.Next()
			}
			Logger.WarnContext(c.UserContext(), "Rate limit store unavailable, failing closed",
				slog.String("resource", resource),
				slog.String("error", err.Error()),
			)
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
				"error": fiber.Map{"name": "ServiceUnavailableError", "message": "rate limit unavailable"},
			})
		case !allowed:
			observability.RateLimitDecisions.WithLabelValues(resource, "rejected").Inc()
			c.Set(fiber.HeaderRetryAfter, strconv.Itoa(int(l.Window.Seconds())))
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": fiber.Map{"name": "RateLimitError", "message": "rate limit exceeded"},
			})
		default:
			observability.RateLimitDecisions.WithLabelValues(resource, "allowed").Inc()
			return c.Next()
		}
	}
}
