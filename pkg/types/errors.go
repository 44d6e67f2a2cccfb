package types

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrKnowledgeBaseNotConfigured is returned by operations that need a knowledge base id
var ErrKnowledgeBaseNotConfigured = errors.New("knowledge base not configured")

// ConfigError is returned when a required configuration value is absent
type ConfigError struct {
	Variable string // environment variable that supplies the value
	Key      string // config key, e.g. auth.password
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("%s is not configured. Set %s in your environment", e.Key, e.Variable)
}

// UpstreamError is returned when a backend call answers with a non-2xx status
type UpstreamError struct {
	Op         string
	StatusCode int
	Body       string
}

func (e *UpstreamError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("failed to %s: %d", e.Op, e.StatusCode)
	}
	return fmt.Sprintf("failed to %s: %d %s", e.Op, e.StatusCode, e.Body)
}

// Message is the text forwarded to gateway callers: the upstream body when present
func (e *UpstreamError) Message() string {
	if e.Body != "" {
		return e.Body
	}
	return fmt.Sprintf("Failed to %s: %d", e.Op, e.StatusCode)
}

// IsUnauthorized reports whether the backend rejected the session token
func (e *UpstreamError) IsUnauthorized() bool {
	return e.StatusCode == http.StatusUnauthorized
}
