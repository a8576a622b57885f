package apiclient

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
)

// Failure classes returned by the backend client. Match with errors.Is.
var (
	ErrAuth       = errors.New("api: authentication required")
	ErrValidation = errors.New("api: validation failed")
	ErrNotFound   = errors.New("api: resource not found")
	ErrTransport  = errors.New("api: transport failure")
)

// Error describes a failed backend call.
type Error struct {
	Method     string
	URL        string
	StatusCode int
	Message    string
	Cause      error

	kind error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Method)
	b.WriteByte(' ')
	b.WriteString(e.URL)
	if e.StatusCode > 0 {
		fmt.Fprintf(&b, ": status %d", e.StatusCode)
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.Cause != nil {
		b.WriteString(": ")
		b.WriteString(e.Cause.Error())
	}
	return b.String()
}

// Is reports whether target is the failure class of this error.
func (e *Error) Is(target error) bool {
	return e.kind != nil && target == e.kind
}

// Unwrap exposes the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Kind returns the failure class sentinel.
func (e *Error) Kind() error {
	return e.kind
}

// UserMessage returns the text suitable for an error banner.
func UserMessage(err error) string {
	var apiErr *Error
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	switch {
	case errors.Is(err, ErrAuth):
		return "session expired, sign in again"
	case errors.Is(err, ErrNotFound):
		return "resource not found"
	case errors.Is(err, ErrValidation):
		return "invalid request"
	case err == nil:
		return ""
	default:
		return "could not reach the server"
	}
}

func kindForStatus(status int) error {
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return ErrAuth
	case http.StatusBadRequest:
		return ErrValidation
	case http.StatusNotFound:
		return ErrNotFound
	default:
		return ErrTransport
	}
}

// extractMessage pulls a readable message out of an error body.
func extractMessage(status int, body []byte) string {
	text := strings.TrimSpace(string(body))
	if text == "" {
		return fmt.Sprintf("status %d", status)
	}
	var payload map[string]any
	if err := json.Unmarshal(body, &payload); err != nil {
		return text
	}
	for _, key := range []string{"message", "error", "detail"} {
		if v, ok := payload[key].(string); ok && strings.TrimSpace(v) != "" {
			return v
		}
	}
	keys := make([]string, 0, len(payload))
	for k := range payload {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		if v, ok := payload[k].(string); ok && v != "" {
			parts = append(parts, v)
		}
	}
	if len(parts) == 0 {
		return fmt.Sprintf("status %d", status)
	}
	return strings.Join(parts, ", ")
}
