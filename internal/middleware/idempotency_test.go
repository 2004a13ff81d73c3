package middleware

import (
	"io"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newIdempotencyTestApp(t *testing.T) (*fiber.App, *miniredis.Miniredis, *atomic.Int32) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	var handled atomic.Int32
	app := fiber.New()
	app.Use(IdempotencyMiddleware(client, time.Minute))
	app.Post("/charge", func(c *fiber.Ctx) error {
		handled.Add(1)
		return c.JSON(fiber.Map{"success": true, "attempt": handled.Load()})
	})
	app.Get("/charge", func(c *fiber.Ctx) error {
		handled.Add(1)
		return c.JSON(fiber.Map{"success": true})
	})
	return app, mr, &handled
}

func TestIdempotencyReplaysCachedResponse(t *testing.T) {
	app, mr, handled := newIdempotencyTestApp(t)

	req, _ := http.NewRequest("POST", "/charge", nil)
	req.Header.Set("X-Correlation-ID", "corr-1")
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, 200, resp.StatusCode)
	assert.Empty(t, resp.Header.Get("X-Idempotent-Replay"))
	first, _ := io.ReadAll(resp.Body)

	// The response is cached after the handler returns; wait for the key.
	require.Eventually(t, func() bool {
		return mr.Exists("idempotency:corr-1")
	}, time.Second, 10*time.Millisecond)

	req, _ = http.NewRequest("POST", "/charge", nil)
	req.Header.Set("X-Correlation-ID", "corr-1")
	resp, err = app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, 200, resp.StatusCode)
	assert.Equal(t, "true", resp.Header.Get("X-Idempotent-Replay"))

	replayed, _ := io.ReadAll(resp.Body)
	assert.Equal(t, string(first), string(replayed))
	assert.Equal(t, int32(1), handled.Load())
}

func TestIdempotencySkipsWithoutCorrelationID(t *testing.T) {
	app, mr, handled := newIdempotencyTestApp(t)

	for range 2 {
		req, _ := http.NewRequest("POST", "/charge", nil)
		resp, err := app.Test(req, -1)
		require.NoError(t, err)
		require.Equal(t, 200, resp.StatusCode)
		assert.Empty(t, resp.Header.Get("X-Idempotent-Replay"))
	}

	assert.Equal(t, int32(2), handled.Load())
	assert.Empty(t, mr.Keys())
}

func TestIdempotencyIgnoresReads(t *testing.T) {
	app, mr, handled := newIdempotencyTestApp(t)

	for range 2 {
		req, _ := http.NewRequest("GET", "/charge", nil)
		req.Header.Set("X-Correlation-ID", "corr-get")
		resp, err := app.Test(req, -1)
		require.NoError(t, err)
		require.Equal(t, 200, resp.StatusCode)
		assert.Empty(t, resp.Header.Get("X-Idempotent-Replay"))
	}

	assert.Equal(t, int32(2), handled.Load())
	assert.False(t, mr.Exists("idempotency:corr-get"))
}
