package ddns

import "fmt"

// APIError is a non-2xx response from the DNS provider's API.
type APIError struct {
	// Status is the HTTP status code, or 0 when the request never completed.
	Status int
	// Message carries the provider's own error body when present.
	Message string
}

func (e *APIError) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("provider API error: %s", e.Message)
	}
	return fmt.Sprintf("provider API error (HTTP %d): %s", e.Status, e.Message)
}

// ConfigError reports invalid startup configuration. It is fatal:
// no reconciliation tick is attempted when one is returned.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Field, e.Reason)
}
