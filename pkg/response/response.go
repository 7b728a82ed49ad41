package response

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
)

// =============================================================================
// Response bodies
// =============================================================================
// Success bodies are sent bare: lists as JSON arrays, records as objects.
// Only errors carry an envelope:
//
//	{
//	  "error": {
//	    "code": "VALIDATION_ERROR",
//	    "message": "Invalid input",
//	    "details": ["quantity: must be at least 1"]
//	  },
//	  "request_id": "uuid"
//	}
// =============================================================================

type ErrorResponse struct {
	Error     ErrorBody `json:"error"`
	RequestID string    `json:"request_id,omitempty"`
}

type ErrorBody struct {
	Code    string   `json:"code"`
	Message string   `json:"message"`
	Details []string `json:"details,omitempty"`
}

// OK sends data as the whole body.
func OK(c *fiber.Ctx, data any) error {
	return c.JSON(data)
}

// Created returns a 201 Created response
func Created(c *fiber.Ctx, data any) error {
	return c.Status(fiber.StatusCreated).JSON(data)
}

// NoContent returns a 204 No Content response
func NoContent(c *fiber.Ctx) error {
	return c.SendStatus(fiber.StatusNoContent)
}

// List sends items as a JSON array, cut to ?limit when given. An empty
// list is sent as [] rather than null.
func List[T any](c *fiber.Ctx, items []T) error {
	if items == nil {
		items = []T{}
	}
	if limit := Limit(c, 0); limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return c.JSON(items)
}

// Limit reads the ?limit query parameter, falling back to def when it is
// missing or not a positive integer.
func Limit(c *fiber.Ctx, def int) int {
	n, err := strconv.Atoi(c.Query("limit"))
	if err != nil || n <= 0 {
		return def
	}
	return n
}

// Error returns an error response
func Error(c *fiber.Ctx, status int, code, message string, details ...string) error {
	return c.Status(status).JSON(ErrorResponse{
		Error: ErrorBody{
			Code:    code,
			Message: message,
			Details: details,
		},
		RequestID: requestID(c),
	})
}

func requestID(c *fiber.Ctx) string {
	if id, ok := c.Locals("request_id").(string); ok {
		return id
	}
	return c.Get("X-Request-ID")
}
