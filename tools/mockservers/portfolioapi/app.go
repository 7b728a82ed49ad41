package main

import (
	"embed"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/Rohianon/folio/pkg/metrics"
	"github.com/Rohianon/folio/pkg/middleware"
	"github.com/Rohianon/folio/pkg/response"
	"github.com/Rohianon/folio/pkg/swagger"
)

const serviceName = "portfolioapi-mock"

//go:embed openapi.yaml
var specs embed.FS

var docs = swagger.Config{
	SpecFS:   specs,
	SpecFile: "openapi.yaml",
	Title:    "Portfolio API Mock",
}

// untouched by fault injection and request metrics
var controlPaths = append([]string{"/health", "/metrics", "/admin/reset", "/admin/tick", "/admin/state"}, docs.Paths()...)

type Options struct {
	Faults middleware.FaultConfig
}

func newApp(s *Server, opts Options) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               "Portfolio API Mock Server",
		ErrorHandler:          response.ErrorHandler,
		DisableStartupMessage: true,
	})

	faults := opts.Faults
	faults.SkipPaths = append(faults.SkipPaths, controlPaths...)

	app.Use(recover.New())
	app.Use(middleware.RequestID())
	app.Use(middleware.Logger())
	app.Use(middleware.CORS(middleware.CORSConfig{}))
	app.Use(metrics.Middleware(metrics.Config{
		ServiceName: serviceName,
		SkipPaths:   controlPaths,
	}))
	app.Use(middleware.Faults(faults))

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "healthy", "service": serviceName})
	})
	app.Get("/metrics", metrics.Handler())
	app.Use(swagger.Handler(docs))

	s.AdminRoutes(app.Group("/admin"))
	s.Routes(app.Group("/api"))

	return app
}
