package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckRateLimit_Bypass(t *testing.T) {
	t.Setenv("APP_ENV", "test")
	allowed, err := CheckRateLimit(context.Background(), nil, "test", "1", 1, time.Minute)
	assert.NoError(t, err)
	assert.True(t, allowed)
}

func TestCheckRateLimit_NilRedis(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	allowed, err := CheckRateLimit(context.Background(), nil, "test", "1", 1, time.Minute)
	assert.Error(t, err)
	assert.False(t, allowed)
}

func TestCheckRateLimit_FixedWindow(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		allowed, err := CheckRateLimit(ctx, rdb, "signin", "ip:1.2.3.4", 2, time.Minute)
		require.NoError(t, err)
		assert.True(t, allowed)
	}
	allowed, err := CheckRateLimit(ctx, rdb, "signin", "ip:1.2.3.4", 2, time.Minute)
	require.NoError(t, err)
	assert.False(t, allowed)

	assert.True(t, mr.TTL("rl:signin:ip:1.2.3.4") > 0)

	mr.FastForward(time.Minute + time.Second)
	allowed, err = CheckRateLimit(ctx, rdb, "signin", "ip:1.2.3.4", 2, time.Minute)
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestRateLimitMiddleware(t *testing.T) {
	ok := func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusOK) }
	get := func(t *testing.T, app *fiber.App, path string) int {
		t.Helper()
		resp, err := app.Test(httptest.NewRequest(http.MethodGet, path, nil))
		require.NoError(t, err)
		_ = resp.Body.Close()
		return resp.StatusCode
	}

	t.Run("Bypass in test mode", func(t *testing.T) {
		t.Setenv("APP_ENV", "test")
		app := fiber.New()
		app.Get("/test", RateLimit(nil, Limit{Requests: 1, Window: time.Minute}), ok)
		assert.Equal(t, http.StatusOK, get(t, app, "/test"))
		assert.Equal(t, http.StatusOK, get(t, app, "/test"))
	})

	t.Run("FailOpen with nil redis in production", func(t *testing.T) {
		t.Setenv("APP_ENV", "production")
		app := fiber.New()
		app.Get("/test", RateLimit(nil, Limit{Requests: 1, Window: time.Minute}), ok)
		assert.Equal(t, http.StatusOK, get(t, app, "/test"))
	})

	t.Run("FailClosed with nil redis in production", func(t *testing.T) {
		t.Setenv("APP_ENV", "production")
		app := fiber.New()
		app.Get("/sensitive", RateLimitWithPolicy(nil, Limit{Name: "sensitive", Requests: 1, Window: time.Minute}, FailClosed), ok)
		assert.Equal(t, http.StatusServiceUnavailable, get(t, app, "/sensitive"))
	})

	t.Run("Limits with redis", func(t *testing.T) {
		t.Setenv("APP_ENV", "production")
		mr := miniredis.RunT(t)
		rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		t.Cleanup(func() { _ = rdb.Close() })

		app := fiber.New()
		app.Get("/limited", RateLimit(rdb, Limit{Name: "limited", Requests: 1, Window: time.Minute}), ok)
		assert.Equal(t, http.StatusOK, get(t, app, "/limited"))
		assert.Equal(t, http.StatusTooManyRequests, get(t, app, "/limited"))
		assert.Len(t, mr.Keys(), 1)
	})

	t.Run("Authenticated callers are keyed by user", func(t *testing.T) {
		t.Setenv("APP_ENV", "production")
		mr := miniredis.RunT(t)
		rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		t.Cleanup(func() { _ = rdb.Close() })

		app := fiber.New()
		app.Get("/mine", func(c *fiber.Ctx) error {
			c.Locals("userID", uint(7))
			return c.Next()
		}, RateLimit(rdb, Limit{Name: "mine", Requests: 5, Window: time.Minute}), ok)
		assert.Equal(t, http.StatusOK, get(t, app, "/mine"))
		assert.True(t, mr.Exists("rl:mine:user:7"))
	})
}
