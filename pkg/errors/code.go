package errors

import "net/http"

// ErrorCode identifies a failure class in responses and logs.
type ErrorCode int

// 10000-10999 common, 13000-13099 request limits, 13100-13199 executor,
// 13300-13399 security.
const (
	Success             ErrorCode = 10000
	InternalServerError ErrorCode = 10001
	InvalidParams       ErrorCode = 10002

	ValidationFailed ErrorCode = 10300

	CodeTooLarge         ErrorCode = 13002
	LanguageNotSupported ErrorCode = 13003
	TooManyTestCases     ErrorCode = 13006
	TooManyPeers         ErrorCode = 13007
	RequestTooLarge      ErrorCode = 13008
	TestDataTooLarge     ErrorCode = 13009

	ExecutorBusy        ErrorCode = 13100
	ExecutorSystemError ErrorCode = 13101
	WorkspaceError      ErrorCode = 13108

	SecurityViolation ErrorCode = 13300
)

var errorMessages = map[ErrorCode]string{
	Success:             "Success",
	InternalServerError: "Internal server error",
	InvalidParams:       "Invalid parameters",

	ValidationFailed: "Validation failed",

	CodeTooLarge:         "Code is too large",
	LanguageNotSupported: "Programming language not supported",
	TooManyTestCases:     "Too many test cases",
	TooManyPeers:         "Too many peer submissions",
	RequestTooLarge:      "Request body is too large",
	TestDataTooLarge:     "Test data is too large",

	ExecutorBusy:        "Executor is busy, please try again later",
	ExecutorSystemError: "Executor system error",
	WorkspaceError:      "Workspace operation failed",

	SecurityViolation: "Security violation",
}

// Message returns the default message for the code.
func (c ErrorCode) Message() string {
	if msg, ok := errorMessages[c]; ok {
		return msg
	}
	return "Unknown error"
}

// HTTPStatus maps the code to the status of a request-level error response.
func (c ErrorCode) HTTPStatus() int {
	switch {
	case c == Success:
		return http.StatusOK
	case c == ExecutorBusy:
		return http.StatusServiceUnavailable
	case c == SecurityViolation:
		return http.StatusUnprocessableEntity
	case c == RequestTooLarge:
		return http.StatusRequestEntityTooLarge
	case c == InvalidParams, c == ValidationFailed:
		return http.StatusBadRequest
	case c >= 13000 && c < 13100:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
