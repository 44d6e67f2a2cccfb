package cli

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"

	"github.com/beam-cloud/kbpicker/pkg/picker"
	"github.com/beam-cloud/kbpicker/pkg/types"
)

// HTTPErrorMessages maps gateway status codes to human-readable messages
var HTTPErrorMessages = map[int]string{
	http.StatusBadRequest:          "The gateway rejected the request",
	http.StatusUnauthorized:        "The backend rejected the service session",
	http.StatusForbidden:           "Access denied by the backend",
	http.StatusNotFound:            "Resource not found",
	http.StatusTooManyRequests:     "Rate limit exceeded - please try again later",
	http.StatusInternalServerError: "The gateway failed to handle the request",
	http.StatusBadGateway:          "The backend is unreachable",
	http.StatusServiceUnavailable:  "The gateway is not ready",
}

// HTTPErrorSuggestions provides helpful suggestions for specific status codes
var HTTPErrorSuggestions = map[int][]string{
	http.StatusUnauthorized: {
		"The session token may have expired; restart the gateway to log in again",
		"Check " + CodeStyle.Render(types.EnvVarFor("auth.email")) + " and " + CodeStyle.Render(types.EnvVarFor("auth.password")),
	},
	http.StatusServiceUnavailable: {
		"Run " + CodeStyle.Render("kbpicker health") + " to see why the gateway can't open a session",
	},
}

// FormatError converts an error to a human-readable message
func FormatError(err error) string {
	if err == nil {
		return ""
	}

	var httpErr *picker.HTTPError
	if errors.As(err, &httpErr) {
		msg, ok := HTTPErrorMessages[httpErr.StatusCode]
		if !ok {
			msg = fmt.Sprintf("Gateway returned %d", httpErr.StatusCode)
		}
		// Include the gateway's text if it adds context
		if httpErr.Body != "" && !strings.Contains(strings.ToLower(msg), strings.ToLower(httpErr.Body)) {
			return fmt.Sprintf("%s (%s)", msg, httpErr.Body)
		}
		return msg
	}

	if isConnectionError(err) {
		return "Cannot connect to gateway"
	}

	return cleanErrorMessage(err.Error())
}

// GetErrorSuggestions returns helpful suggestions for an error
func GetErrorSuggestions(err error) []string {
	if err == nil {
		return nil
	}

	var httpErr *picker.HTTPError
	if errors.As(err, &httpErr) {
		if httpErr.StatusCode == http.StatusBadRequest && strings.Contains(httpErr.Body, "Knowledge Base") {
			return []string{"Set " + CodeStyle.Render(types.EnvVarFor("backend.knowledgeBaseId")) + " for the gateway"}
		}
		return HTTPErrorSuggestions[httpErr.StatusCode]
	}

	if isConnectionError(err) {
		return []string{
			"Check that the gateway is running",
			"Verify the gateway address: " + CodeStyle.Render("--gateway <url>"),
			"Check your " + CodeStyle.Render(types.EnvVarFor("client.gatewayUrl")) + " environment variable",
		}
	}

	return nil
}

func isConnectionError(err error) bool {
	var opErr *net.OpError
	return errors.As(err, &opErr)
}

// cleanErrorMessage cleans up common error message patterns
func cleanErrorMessage(msg string) string {
	msg = strings.TrimPrefix(msg, "error: ")
	msg = strings.TrimPrefix(msg, "Error: ")

	// For deeply nested errors, just show the most relevant part
	if parts := strings.Split(msg, ": "); len(parts) > 3 {
		msg = parts[0] + ": " + parts[len(parts)-1]
	}

	return msg
}

// PrintFormattedError prints an error with styling and optional suggestions
func PrintFormattedError(title string, err error) {
	fmt.Fprintln(stdout)
	PrintErrorMsg(title)

	if err != nil {
		fmt.Fprintf(stdout, "  %s\n", DimStyle.Render(FormatError(err)))

		if suggestions := GetErrorSuggestions(err); len(suggestions) > 0 {
			PrintSuggestions("Suggestions:", suggestions)
		}
	}
	fmt.Fprintln(stdout)
}
