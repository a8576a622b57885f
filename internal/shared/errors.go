package shared

import "errors"

var (
	// ErrNoSession indicates the request carries no operator session.
	ErrNoSession = errors.New("shared: no operator session")
	// ErrCSRFTokenMissing means the request or the session lacks a CSRF token.
	ErrCSRFTokenMissing = errors.New("shared: csrf token missing")
	// ErrCSRFTokenMismatch means the submitted token does not match the session token.
	ErrCSRFTokenMismatch = errors.New("shared: csrf token mismatch")
)
