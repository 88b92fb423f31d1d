package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"lumen/internal/auth"
	"lumen/internal/observability"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

const secret = "test-secret-key-12345678901234567890123456789012"

func whoAmI(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"userID": UserID(c)})
}

func TestAuthRequired(t *testing.T) {
	app := fiber.New()
	app.Get("/test", AuthRequired(secret), whoAmI)

	valid, err := auth.GenerateToken(secret, "user-123", "ann", time.Hour)
	require.NoError(t, err)
	expired, err := auth.GenerateToken(secret, "user-123", "ann", -time.Hour)
	require.NoError(t, err)

	tests := []struct {
		name           string
		authHeader     string
		expectedStatus int
		expectedUserID string
	}{
		{"Happy Path", "Bearer " + valid, http.StatusOK, "user-123"},
		{"Missing Header", "", http.StatusUnauthorized, ""},
		{"Invalid Format", "Basic dXNlcjpwYXNz", http.StatusUnauthorized, ""},
		{"Malformed Token", "Bearer malformed.token.here", http.StatusUnauthorized, ""},
		{"Expired Token", "Bearer " + expired, http.StatusUnauthorized, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/test", nil)
			if tt.authHeader != "" {
				req.Header.Set("Authorization", tt.authHeader)
			}

			resp, err := app.Test(req)
			require.NoError(t, err)
			assert.Equal(t, tt.expectedStatus, resp.StatusCode)

			if tt.expectedStatus == http.StatusOK {
				var body map[string]string
				require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
				assert.Equal(t, tt.expectedUserID, body["userID"])
			}
		})
	}
}

func TestOptionalAuth(t *testing.T) {
	app := fiber.New()
	app.Get("/test", OptionalAuth(secret), whoAmI)

	valid, err := auth.GenerateToken(secret, "user-9", "bob", time.Hour)
	require.NoError(t, err)

	for header, want := range map[string]string{
		"":                        "",
		"Bearer " + valid:         "user-9",
		"Bearer not-a-real-token": "",
	} {
		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)

		var body map[string]string
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		assert.Equal(t, want, body["userID"])
	}
}

func TestContextMiddlewareAndStructuredLogger(t *testing.T) {
	var buf bytes.Buffer
	prev := observability.Logger
	observability.Logger = observability.NewLogger(&buf, "production", "info")
	t.Cleanup(func() { observability.Logger = prev })

	token, err := auth.GenerateToken(secret, "user-7", "cat", time.Hour)
	require.NoError(t, err)

	app := fiber.New()
	app.Use(requestid.New())
	app.Use(StructuredLogger())
	app.Get("/test", OptionalAuth(secret), ContextMiddleware(), func(c *fiber.Ctx) error {
		ctx := c.UserContext()
		assert.Equal(t, "user-7", ctx.Value(observability.UserIDKey))
		observability.Logger.InfoContext(ctx, "inside handler")
		return c.SendStatus(http.StatusNoContent)
	})

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	logs := buf.String()
	assert.Contains(t, logs, `"msg":"inside handler"`)
	assert.Contains(t, logs, `"user_id":"user-7"`)
	assert.Contains(t, logs, `"request_id"`)
	assert.Contains(t, logs, `"msg":"request processed"`)
}

func TestTracingMiddleware(t *testing.T) {
	app := fiber.New()
	app.Use(TracingMiddleware())
	app.Get("/test", func(c *fiber.Ctx) error {
		return c.SendString("ok")
	})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/test", nil))
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, "ok", string(body))
	assert.Empty(t, resp.Header.Get("X-Trace-ID"), "no trace id without a recording tracer")
}

func TestTracingMiddleware_SampledTraceID(t *testing.T) {
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	prev := observability.Tracer
	observability.Tracer = tp.Tracer("lumen-test")
	t.Cleanup(func() { observability.Tracer = prev })

	var logged string
	app := fiber.New()
	app.Use(TracingMiddleware())
	app.Use(ContextMiddleware())
	app.Get("/test", func(c *fiber.Ctx) error {
		logged, _ = c.UserContext().Value(observability.TraceIDKey).(string)
		return c.SendStatus(http.StatusTeapot)
	})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/test", nil))
	require.NoError(t, err)

	spans := rec.Ended()
	require.Len(t, spans, 1)
	tid := spans[0].SpanContext().TraceID().String()
	assert.Equal(t, "GET /test", spans[0].Name())
	assert.Equal(t, tid, resp.Header.Get("X-Trace-ID"))
	assert.Equal(t, tid, logged)
	assert.Contains(t, spans[0].Attributes(), attribute.Int("http.status_code", http.StatusTeapot))
}

func TestMetricsMiddleware(t *testing.T) {
	p := InitMetrics("lumen-test")
	assert.Same(t, p, InitMetrics("other-name"))

	app := fiber.New()
	app.Use(MetricsMiddleware(p))
	p.RegisterAt(app, "/metrics")
	app.Get("/ping", func(c *fiber.Ctx) error { return c.SendString("pong") })

	_, err := app.Test(httptest.NewRequest(http.MethodGet, "/ping", nil))
	require.NoError(t, err)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "http_requests_total")
}
