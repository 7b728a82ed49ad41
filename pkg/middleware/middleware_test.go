package middleware

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/Rohianon/folio/pkg/logger"
)

func init() {
	logger.Init("test", "error", false)
}

func TestRequestID(t *testing.T) {
	app := fiber.New()
	app.Use(RequestID())
	app.Get("/", func(c *fiber.Ctx) error {
		return c.SendString(GetRequestID(c))
	})

	t.Run("generates new request ID", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/", nil)
		resp, err := app.Test(req)
		if err != nil {
			t.Fatalf("app.Test error: %v", err)
		}
		defer resp.Body.Close()

		body, _ := io.ReadAll(resp.Body)
		if len(body) == 0 {
			t.Error("RequestID should be generated")
		}

		if resp.Header.Get("X-Request-ID") == "" {
			t.Error("X-Request-ID header should be set")
		}
	})

	t.Run("uses existing request ID", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/", nil)
		req.Header.Set("X-Request-ID", "test-request-id")
		resp, err := app.Test(req)
		if err != nil {
			t.Fatalf("app.Test error: %v", err)
		}
		defer resp.Body.Close()

		body, _ := io.ReadAll(resp.Body)
		if string(body) != "test-request-id" {
			t.Errorf("RequestID = %v, want test-request-id", string(body))
		}
	})
}

func TestGetRequestID(t *testing.T) {
	app := fiber.New()
	app.Get("/", func(c *fiber.Ctx) error {
		return c.SendString(GetRequestID(c))
	})

	resp, err := app.Test(httptest.NewRequest("GET", "/", nil))
	if err != nil {
		t.Fatalf("app.Test error: %v", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if string(body) != "" {
		t.Error("GetRequestID should return empty string when no ID is set")
	}
}

func TestLogger(t *testing.T) {
	app := fiber.New()
	app.Use(RequestID())
	app.Use(Logger())
	app.Get("/", func(c *fiber.Ctx) error {
		return c.SendString("ok")
	})

	resp, err := app.Test(httptest.NewRequest("GET", "/", nil))
	if err != nil {
		t.Fatalf("app.Test error: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		t.Errorf("Status = %v, want 200", resp.StatusCode)
	}
}

func TestCORS(t *testing.T) {
	t.Run("default config", func(t *testing.T) {
		app := fiber.New()
		app.Use(CORS(CORSConfig{}))
		app.Get("/", func(c *fiber.Ctx) error {
			return c.SendString("ok")
		})

		resp, _ := app.Test(httptest.NewRequest("GET", "/", nil))
		defer resp.Body.Close()

		if resp.Header.Get("Access-Control-Allow-Origin") != "*" {
			t.Error("Default CORS should allow all origins")
		}
	})

	t.Run("custom config", func(t *testing.T) {
		app := fiber.New()
		app.Use(CORS(CORSConfig{
			AllowOrigins:     []string{"https://example.com"},
			AllowCredentials: true,
			MaxAge:           600,
		}))
		app.Get("/", func(c *fiber.Ctx) error {
			return c.SendString("ok")
		})

		resp, _ := app.Test(httptest.NewRequest("GET", "/", nil))
		defer resp.Body.Close()

		if resp.Header.Get("Access-Control-Allow-Origin") != "https://example.com" {
			t.Errorf("CORS origin = %v, want https://example.com", resp.Header.Get("Access-Control-Allow-Origin"))
		}
		if resp.Header.Get("Access-Control-Allow-Credentials") != "true" {
			t.Error("CORS credentials should be true")
		}
		if got := resp.Header.Get("Access-Control-Max-Age"); got != "600" {
			t.Errorf("Max-Age = %q, want 600", got)
		}
	})

	t.Run("preflight request", func(t *testing.T) {
		app := fiber.New()
		app.Use(CORS(CORSConfig{}))
		app.Get("/", func(c *fiber.Ctx) error {
			return c.SendString("ok")
		})

		resp, _ := app.Test(httptest.NewRequest("OPTIONS", "/", nil))
		defer resp.Body.Close()

		if resp.StatusCode != 204 {
			t.Errorf("Preflight status = %v, want 204", resp.StatusCode)
		}
	})
}

func faultApp(cfg FaultConfig) *fiber.App {
	app := fiber.New()
	app.Use(Faults(cfg))
	app.Get("/health", func(c *fiber.Ctx) error { return c.SendString("ok") })
	app.Get("/stocks", func(c *fiber.Ctx) error { return c.JSON([]string{"AAPL"}) })
	return app
}

func TestFaults(t *testing.T) {
	always := func() float64 { return 0 }
	never := func() float64 { return 0.99 }

	tests := []struct {
		name       string
		cfg        FaultConfig
		path       string
		wantStatus int
		wantBody   string
	}{
		{"disabled", FaultConfig{}, "/stocks", 200, `["AAPL"]`},
		{"failure", FaultConfig{FailRate: 0.5, Rand: always}, "/stocks", 500, ""},
		{"failure not rolled", FaultConfig{FailRate: 0.5, Rand: never}, "/stocks", 200, `["AAPL"]`},
		{"corrupt body", FaultConfig{CorruptRate: 1, Rand: always}, "/stocks", 200, `{"truncated": [`},
		{"skipped path", FaultConfig{FailRate: 1, Rand: always, SkipPaths: []string{"/health"}}, "/health", 200, "ok"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := faultApp(tt.cfg).Test(httptest.NewRequest("GET", tt.path, nil))
			if err != nil {
				t.Fatalf("app.Test error: %v", err)
			}
			defer resp.Body.Close()

			if resp.StatusCode != tt.wantStatus {
				t.Errorf("Status = %v, want %v", resp.StatusCode, tt.wantStatus)
			}
			if tt.wantBody != "" {
				body, _ := io.ReadAll(resp.Body)
				if string(body) != tt.wantBody {
					t.Errorf("Body = %q, want %q", body, tt.wantBody)
				}
			}
		})
	}
}

func TestFaults_Latency(t *testing.T) {
	app := faultApp(FaultConfig{Latency: 50 * time.Millisecond})

	start := time.Now()
	resp, err := app.Test(httptest.NewRequest("GET", "/stocks", nil))
	if err != nil {
		t.Fatalf("app.Test error: %v", err)
	}
	resp.Body.Close()

	if elapsed := time.Since(start); elapsed < 50*time.Millisecond {
		t.Errorf("elapsed = %v, want at least 50ms", elapsed)
	}
}
