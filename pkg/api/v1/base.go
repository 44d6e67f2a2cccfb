package apiv1

import (
	"github.com/labstack/echo/v4"
)

const (
	HttpServerBaseRoute string = "/api"
	HttpServerRootRoute string = ""
)

const (
	msgInvalidPayload  = "Invalid payload"
	msgServerError     = "Server error"
	msgKBNotConfigured = "Knowledge Base not configured"
)

// TextResponse returns a plain-text body; proxy routes pass upstream errors through this way
func TextResponse(c echo.Context, code int, message string) error {
	if message == "" {
		message = msgServerError
	}
	return c.String(code, message)
}
