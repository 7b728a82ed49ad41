package response

import (
	"errors"
	"fmt"
	"sort"

	"github.com/gofiber/fiber/v2"

	apperrors "github.com/Rohianon/folio/pkg/errors"
)

// ErrorHandler is a Fiber error handler that converts errors to the error
// envelope.
func ErrorHandler(c *fiber.Ctx, err error) error {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		status := appErr.HTTPStatus
		if status == 0 {
			status = fiber.StatusInternalServerError
		}
		return Error(c, status, appErr.Code, appErr.Message, detailLines(appErr.Details)...)
	}

	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		return Error(c, fiberErr.Code, httpStatusToErrorCode(fiberErr.Code), fiberErr.Message)
	}

	return Error(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "An unexpected error occurred")
}

// detailLines flattens the detail shapes used across the codebase.
func detailLines(details any) []string {
	switch d := details.(type) {
	case nil:
		return nil
	case string:
		return []string{d}
	case []string:
		return d
	case map[string]string:
		keys := make([]string, 0, len(d))
		for k := range d {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		lines := make([]string, 0, len(keys))
		for _, k := range keys {
			lines = append(lines, fmt.Sprintf("%s: %s", k, d[k]))
		}
		return lines
	default:
		return []string{fmt.Sprint(d)}
	}
}

func httpStatusToErrorCode(status int) string {
	switch status {
	case fiber.StatusBadRequest:
		return "BAD_REQUEST"
	case fiber.StatusNotFound:
		return "NOT_FOUND"
	case fiber.StatusMethodNotAllowed:
		return "METHOD_NOT_ALLOWED"
	case fiber.StatusConflict:
		return "CONFLICT"
	case fiber.StatusTooManyRequests:
		return "RATE_LIMITED"
	case fiber.StatusInternalServerError:
		return "INTERNAL_ERROR"
	case fiber.StatusServiceUnavailable:
		return "SERVICE_UNAVAILABLE"
	default:
		return "UNKNOWN_ERROR"
	}
}
