package swagger

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"testing/fstest"

	"github.com/gofiber/fiber/v2"
)

func newApp(cfg Config) *fiber.App {
	app := fiber.New()
	app.Use(Handler(cfg))
	app.Get("/api/holders", func(c *fiber.Ctx) error {
		return c.SendString("holders")
	})
	return app
}

func get(t *testing.T, app *fiber.App, target string) (int, string, string) {
	t.Helper()
	resp, err := app.Test(httptest.NewRequest("GET", target, nil))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, resp.Header.Get("Content-Type"), string(body)
}

func TestHandler(t *testing.T) {
	specs := fstest.MapFS{
		"openapi.yaml": {Data: []byte("openapi: 3.0.3\n")},
	}
	app := newApp(Config{SpecFS: specs, SpecFile: "openapi.yaml", Title: "Portfolio API"})

	tests := []struct {
		target      string
		wantStatus  int
		wantType    string
		wantContain string
	}{
		{"/docs", 200, "text/html", `url: "/docs/openapi.yaml"`},
		{"/docs/", 200, "text/html", "<title>Portfolio API</title>"},
		{"/docs/redoc", 200, "text/html", `spec-url="/docs/openapi.yaml"`},
		{"/docs/openapi.yaml", 200, "application/x-yaml", "openapi: 3.0.3"},
		{"/api/holders", 200, "", "holders"},
		{"/docs/missing", 404, "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.target, func(t *testing.T) {
			status, ctype, body := get(t, app, tt.target)
			if status != tt.wantStatus {
				t.Errorf("status = %d, want %d", status, tt.wantStatus)
			}
			if tt.wantType != "" && !strings.HasPrefix(ctype, tt.wantType) {
				t.Errorf("content-type = %s, want %s", ctype, tt.wantType)
			}
			if !strings.Contains(body, tt.wantContain) {
				t.Errorf("body does not contain %q", tt.wantContain)
			}
		})
	}
}

func TestHandler_ExternalSpec(t *testing.T) {
	app := newApp(Config{SpecURL: "https://example.com/openapi.json", BasePath: "api-docs/"})

	status, _, body := get(t, app, "/api-docs")
	if status != 200 {
		t.Fatalf("status = %d, want 200", status)
	}
	if !strings.Contains(body, "https://example.com/openapi.json") {
		t.Error("page should point at the external spec")
	}
	if !strings.Contains(body, "<title>API Documentation</title>") {
		t.Error("default title should be used")
	}
}

func TestHandler_MissingSpecFile(t *testing.T) {
	app := fiber.New()
	app.Use(Handler(Config{SpecFS: fstest.MapFS{}, SpecFile: "openapi.yaml"}))

	status, _, _ := get(t, app, "/docs/openapi.yaml")
	if status != 404 {
		t.Errorf("status = %d, want 404", status)
	}
}

func TestPaths(t *testing.T) {
	cfg := Config{SpecFS: fstest.MapFS{}, SpecFile: "spec/openapi.yaml", BasePath: "/docs"}
	got := cfg.Paths()
	want := []string{"/docs", "/docs/", "/docs/redoc", "/docs/openapi.yaml"}

	if len(got) != len(want) {
		t.Fatalf("Paths() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Paths()[%d] = %s, want %s", i, got[i], want[i])
		}
	}

	external := Config{SpecURL: "https://example.com/x.json"}.Paths()
	if len(external) != 3 {
		t.Errorf("external Paths() = %v, want 3 entries", external)
	}
}
