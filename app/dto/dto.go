// Package dto defines the request and response shapes of the HTTP API
package dto

// APIResponse is the envelope every endpoint returns. Data carries the
// operation result on success; Error is set only on failure.
type APIResponse struct {
	Success bool         `json:"success"`
	Message string       `json:"message"`
	Data    any          `json:"data,omitempty"`
	Error   *ErrorDetail `json:"error,omitempty"`
}

// ErrorDetail pairs a machine-readable error code with optional context for
// the caller (validation messages, conflicting state)
type ErrorDetail struct {
	Code    string `json:"code"`
	Details any    `json:"details,omitempty"`
}
