package middleware

import (
	"math/rand/v2"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	apperrors "github.com/Rohianon/folio/pkg/errors"
	"github.com/Rohianon/folio/pkg/logger"
	"github.com/Rohianon/folio/pkg/metrics"
)

func RequestID() fiber.Handler {
	return func(c *fiber.Ctx) error {
		requestID := c.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.New().String()
		}

		c.Locals("request_id", requestID)
		c.Set("X-Request-ID", requestID)

		return c.Next()
	}
}

func GetRequestID(c *fiber.Ctx) string {
	if id, ok := c.Locals("request_id").(string); ok {
		return id
	}
	return ""
}

func Logger() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()

		err := c.Next()

		logger.Info().
			Str("method", c.Method()).
			Str("path", c.Path()).
			Int("status", c.Response().StatusCode()).
			Dur("latency", time.Since(start)).
			Str("request_id", GetRequestID(c)).
			Msg("request")

		return err
	}
}

type CORSConfig struct {
	AllowOrigins     []string
	AllowMethods     []string
	AllowHeaders     []string
	AllowCredentials bool
	MaxAge           int
}

func CORS(config CORSConfig) fiber.Handler {
	allowOrigins := strings.Join(config.AllowOrigins, ",")
	if len(config.AllowOrigins) == 0 {
		allowOrigins = "*"
	}

	allowMethods := strings.Join(config.AllowMethods, ",")
	if len(config.AllowMethods) == 0 {
		allowMethods = "GET,POST,OPTIONS"
	}

	allowHeaders := strings.Join(config.AllowHeaders, ",")
	if len(config.AllowHeaders) == 0 {
		allowHeaders = "Origin,Content-Type,Accept,X-Request-ID"
	}

	return func(c *fiber.Ctx) error {
		c.Set("Access-Control-Allow-Origin", allowOrigins)
		c.Set("Access-Control-Allow-Methods", allowMethods)
		c.Set("Access-Control-Allow-Headers", allowHeaders)

		if config.AllowCredentials {
			c.Set("Access-Control-Allow-Credentials", "true")
		}

		if config.MaxAge > 0 {
			c.Set("Access-Control-Max-Age", strconv.Itoa(config.MaxAge))
		}

		if c.Method() == fiber.MethodOptions {
			return c.SendStatus(fiber.StatusNoContent)
		}

		return c.Next()
	}
}

// =============================================================================
// Fault injection
// =============================================================================

// FaultConfig makes a server misbehave on purpose so clients can be
// exercised against slow, failing and malformed responses. Rates are
// probabilities in [0, 1].
type FaultConfig struct {
	FailRate    float64
	CorruptRate float64
	Latency     time.Duration
	SkipPaths   []string

	// Rand returns a value in [0, 1). Tests pin it.
	Rand func() float64
}

// Faults injects latency, 500s and truncated JSON bodies.
func Faults(cfg FaultConfig) fiber.Handler {
	skipPaths := make(map[string]bool)
	for _, path := range cfg.SkipPaths {
		skipPaths[path] = true
	}

	roll := cfg.Rand
	if roll == nil {
		roll = rand.Float64
	}

	return func(c *fiber.Ctx) error {
		if skipPaths[c.Path()] {
			return c.Next()
		}

		if cfg.Latency > 0 {
			metrics.RecordInjectedFault("latency")
			time.Sleep(cfg.Latency)
		}

		if cfg.FailRate > 0 && roll() < cfg.FailRate {
			metrics.RecordInjectedFault("error")
			logger.Debug().Str("path", c.Path()).Msg("Injected failure")
			return apperrors.ErrInternal.WithMessage("injected failure")
		}

		if cfg.CorruptRate > 0 && roll() < cfg.CorruptRate {
			metrics.RecordInjectedFault("corrupt")
			logger.Debug().Str("path", c.Path()).Msg("Injected corrupt body")
			c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
			return c.Status(fiber.StatusOK).SendString(`{"truncated": [`)
		}

		return c.Next()
	}
}
