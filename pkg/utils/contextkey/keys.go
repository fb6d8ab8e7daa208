// Package contextkey names the request-scoped values shared by the HTTP
// middleware and the logger.
package contextkey

// Key is a distinct type so values cannot collide with other packages.
type Key string

const (
	TraceID   Key = "trace_id"
	RequestID Key = "request_id"
	// Language carries the resolved language id of the request being executed.
	Language Key = "language"
)
