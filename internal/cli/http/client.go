package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// ResponseInfo carries response details.
type ResponseInfo struct {
	StatusCode int
	Headers    http.Header
	Body       []byte
	Duration   time.Duration
}

// APIError is a request-level failure reported by the executor.
type APIError struct {
	StatusCode int
	Code       int
	Message    string
	TraceID    string
}

func (e *APIError) Error() string {
	msg := fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Message)
	if e.Code != 0 {
		msg += fmt.Sprintf(" (code %d)", e.Code)
	}
	if e.TraceID != "" {
		msg += " trace_id=" + e.TraceID
	}
	return msg
}

// errorBody mirrors the executor's error envelope.
type errorBody struct {
	Status  string `json:"status"`
	Error   string `json:"error"`
	Code    int    `json:"code"`
	TraceID string `json:"trace_id"`
}

// Client wraps HTTP requests for CLI.
type Client struct {
	baseURL string
	timeout time.Duration
}

func New(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		timeout: timeout,
	}
}

func (c *Client) SetTimeout(timeout time.Duration) {
	if timeout > 0 {
		c.timeout = timeout
	}
}

func (c *Client) Do(ctx context.Context, method, path string, body []byte) (ResponseInfo, error) {
	var info ResponseInfo
	client := &http.Client{Timeout: c.timeout}

	var reader io.Reader
	if len(body) > 0 {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return info, fmt.Errorf("build request failed: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := client.Do(req)
	info.Duration = time.Since(start)
	if err != nil {
		return info, fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	info.StatusCode = resp.StatusCode
	info.Headers = resp.Header
	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return info, fmt.Errorf("read response body failed: %w", err)
	}
	info.Body = bodyBytes
	return info, nil
}

// Call sends in as JSON (nil for no body) and decodes a 2xx body into out.
// Other statuses become *APIError. The raw response is returned either way.
func (c *Client) Call(ctx context.Context, method, path string, in, out interface{}) (ResponseInfo, error) {
	var body []byte
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return ResponseInfo{}, fmt.Errorf("encode request failed: %w", err)
		}
		body = data
	}
	info, err := c.Do(ctx, method, path, body)
	if err != nil {
		return info, err
	}
	if info.StatusCode < 200 || info.StatusCode >= 300 {
		return info, decodeAPIError(info)
	}
	if out != nil {
		if err := json.Unmarshal(info.Body, out); err != nil {
			return info, fmt.Errorf("decode response failed: %w", err)
		}
	}
	return info, nil
}

func decodeAPIError(info ResponseInfo) error {
	apiErr := &APIError{StatusCode: info.StatusCode, Message: http.StatusText(info.StatusCode)}
	var body errorBody
	if err := json.Unmarshal(info.Body, &body); err == nil && body.Error != "" {
		apiErr.Code = body.Code
		apiErr.Message = body.Error
		apiErr.TraceID = body.TraceID
	}
	return apiErr
}
