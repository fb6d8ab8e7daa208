package response

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"gradebox/pkg/errors"

	"github.com/gin-gonic/gin"
)

func newContext(traceID string) (*gin.Context, *httptest.ResponseRecorder) {
	gin.SetMode(gin.TestMode)
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodPost, "/execute", nil)
	if traceID != "" {
		c.Set("trace_id", traceID)
	}
	return c, rec
}

func TestSuccessWritesBareBody(t *testing.T) {
	c, rec := newContext("")
	Success(c, map[string]string{"status": "success"})
	if rec.Code != http.StatusOK || rec.Body.String() != `{"status":"success"}` {
		t.Fatalf("unexpected response %d %s", rec.Code, rec.Body.String())
	}
}

func TestErrorEnvelope(t *testing.T) {
	cases := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   errors.ErrorCode
		wantMsg    string
		details    bool
	}{
		{name: "validation", err: errors.ValidationError("code", "required"), wantStatus: 400, wantCode: errors.ValidationFailed, wantMsg: "code: required", details: true},
		{name: "busy", err: errors.New(errors.ExecutorBusy), wantStatus: 503, wantCode: errors.ExecutorBusy, wantMsg: errors.ExecutorBusy.Message()},
		{name: "plain error", err: http.ErrHandlerTimeout, wantStatus: 500, wantCode: errors.InternalServerError, wantMsg: http.ErrHandlerTimeout.Error()},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c, rec := newContext("trace-9")
			Error(c, tc.err)
			if rec.Code != tc.wantStatus {
				t.Fatalf("expected %d, got %d", tc.wantStatus, rec.Code)
			}
			var body ErrorBody
			if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
				t.Fatalf("decode body failed: %v", err)
			}
			if body.Status != StatusError || body.Code != tc.wantCode || body.Error != tc.wantMsg || body.TraceID != "trace-9" {
				t.Fatalf("unexpected body: %+v", body)
			}
			if (body.Details != nil) != tc.details {
				t.Fatalf("unexpected details: %+v", body.Details)
			}
		})
	}
}

func TestBadRequest(t *testing.T) {
	c, rec := newContext("")
	BadRequest(c, "Invalid request body")
	var body ErrorBody
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body failed: %v", err)
	}
	if rec.Code != http.StatusBadRequest || body.Code != errors.InvalidParams || body.Error != "Invalid request body" || body.TraceID != "" {
		t.Fatalf("unexpected response %d %+v", rec.Code, body)
	}
}
