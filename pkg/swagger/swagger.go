package swagger

import (
	"io/fs"
	"path"
	"strings"
	"text/template"

	"github.com/gofiber/fiber/v2"
)

// =============================================================================
// API documentation
// =============================================================================
// Serves an OpenAPI document together with Swagger UI and Redoc pages.
//
// Usage:
//
//	//go:embed openapi.yaml
//	var specs embed.FS
//
//	app.Use(swagger.Handler(swagger.Config{
//	    SpecFS:   specs,
//	    SpecFile: "openapi.yaml",
//	    Title:    "Portfolio API",
//	}))
//
// GET /docs renders Swagger UI, /docs/redoc renders Redoc and
// /docs/openapi.yaml returns the document itself.
// =============================================================================

type Config struct {
	// SpecFS holds SpecFile. Ignored when SpecURL is set.
	SpecFS   fs.FS
	SpecFile string

	// SpecURL points the pages at an externally hosted document.
	SpecURL string

	Title    string
	BasePath string
}

// Paths lists the routes Handler answers, for middleware skip lists.
func (c Config) Paths() []string {
	c = withDefaults(c)
	paths := []string{c.BasePath, c.BasePath + "/", c.BasePath + "/redoc"}
	if c.SpecURL == "" && c.SpecFS != nil {
		paths = append(paths, c.BasePath+"/"+path.Base(c.SpecFile))
	}
	return paths
}

func withDefaults(c Config) Config {
	if c.Title == "" {
		c.Title = "API Documentation"
	}
	if c.BasePath == "" {
		c.BasePath = "/docs"
	}
	c.BasePath = "/" + strings.Trim(c.BasePath, "/")
	return c
}

func (c Config) specURL() string {
	if c.SpecURL != "" {
		return c.SpecURL
	}
	return c.BasePath + "/" + path.Base(c.SpecFile)
}

var pages = template.Must(template.New("pages").Parse(`
{{define "swagger"}}<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>{{.Title}}</title>
    <link rel="stylesheet" type="text/css" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css">
    <style>
        body { margin: 0; background: #fafafa; }
        .swagger-ui .topbar { display: none; }
    </style>
</head>
<body>
    <div id="swagger-ui"></div>
    <script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js"></script>
    <script>
        window.onload = function() {
            SwaggerUIBundle({
                url: "{{.URL}}",
                dom_id: '#swagger-ui',
                deepLinking: true,
                displayRequestDuration: true,
                filter: true,
                tryItOutEnabled: true
            });
        };
    </script>
</body>
</html>{{end}}
{{define "redoc"}}<!DOCTYPE html>
<html>
<head>
    <title>{{.Title}}</title>
    <meta charset="utf-8"/>
    <meta name="viewport" content="width=device-width, initial-scale=1">
    <style>body { margin: 0; padding: 0; }</style>
</head>
<body>
    <redoc spec-url="{{.URL}}"></redoc>
    <script src="https://cdn.redoc.ly/redoc/latest/bundles/redoc.standalone.js"></script>
</body>
</html>{{end}}
`))

// Handler serves the documentation routes and passes everything else on.
func Handler(config Config) fiber.Handler {
	config = withDefaults(config)
	data := struct{ Title, URL string }{config.Title, config.specURL()}

	return func(c *fiber.Ctx) error {
		p := c.Path()
		if !strings.HasPrefix(p, config.BasePath) || c.Method() != fiber.MethodGet {
			return c.Next()
		}

		switch strings.TrimPrefix(p, config.BasePath) {
		case "", "/":
			return render(c, "swagger", data)
		case "/redoc":
			return render(c, "redoc", data)
		case "/" + path.Base(config.SpecFile):
			if config.SpecURL == "" && config.SpecFS != nil {
				return serveSpec(c, config.SpecFS, config.SpecFile)
			}
		}
		return c.Next()
	}
}

func render(c *fiber.Ctx, name string, data any) error {
	var b strings.Builder
	if err := pages.ExecuteTemplate(&b, name, data); err != nil {
		return err
	}
	c.Set(fiber.HeaderContentType, fiber.MIMETextHTMLCharsetUTF8)
	return c.SendString(b.String())
}

func serveSpec(c *fiber.Ctx, fsys fs.FS, file string) error {
	data, err := fs.ReadFile(fsys, file)
	if err != nil {
		return fiber.NewError(fiber.StatusNotFound, "Spec not found")
	}

	switch {
	case strings.HasSuffix(file, ".yaml"), strings.HasSuffix(file, ".yml"):
		c.Set(fiber.HeaderContentType, "application/x-yaml")
	case strings.HasSuffix(file, ".json"):
		c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	}
	return c.Send(data)
}
