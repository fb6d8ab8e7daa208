package controller

import (
	"errors"
	"net/http"

	"gradebox/internal/executor/model"
	"gradebox/internal/executor/service"
	appErr "gradebox/pkg/errors"
	"gradebox/pkg/utils/response"

	"github.com/gin-gonic/gin"
)

// ExecutorController handles executor HTTP requests.
type ExecutorController struct {
	svc *service.Service
}

// NewExecutorController creates a new controller.
func NewExecutorController(svc *service.Service) *ExecutorController {
	return &ExecutorController{svc: svc}
}

// Register mounts every executor route on r.
func (h *ExecutorController) Register(r gin.IRoutes) {
	r.POST("/execute", h.Execute)
	r.POST("/execute-with-tests", h.ExecuteWithTests)
	r.POST("/execute-code-with-plagiarism-checks", h.ExecuteWithPlagiarism)
	r.POST("/plagiarism-check", h.CheckPlagiarism)
	r.GET("/supported-languages", h.SupportedLanguages)
	r.GET("/health", h.Health)
}

// Execute runs code once.
func (h *ExecutorController) Execute(c *gin.Context) {
	var req model.ExecuteRequest
	if !bind(c, &req) {
		return
	}
	resp, err := h.svc.Execute(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, resp)
}

// ExecuteWithTests grades code against visible test cases.
func (h *ExecutorController) ExecuteWithTests(c *gin.Context) {
	var req model.ExecuteWithTestsRequest
	if !bind(c, &req) {
		return
	}
	resp, err := h.svc.ExecuteWithTests(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, resp)
}

// ExecuteWithPlagiarism grades all categories and checks peers.
func (h *ExecutorController) ExecuteWithPlagiarism(c *gin.Context) {
	var req model.PlagiarismExecutionRequest
	if !bind(c, &req) {
		return
	}
	resp, err := h.svc.ExecuteWithPlagiarism(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, resp)
}

// CheckPlagiarism compares two submissions.
func (h *ExecutorController) CheckPlagiarism(c *gin.Context) {
	var req model.PlagiarismCheckRequest
	if !bind(c, &req) {
		return
	}
	resp, err := h.svc.CheckPlagiarism(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, resp)
}

// SupportedLanguages lists the language table.
func (h *ExecutorController) SupportedLanguages(c *gin.Context) {
	response.Success(c, h.svc.SupportedLanguages())
}

// Health reports liveness.
func (h *ExecutorController) Health(c *gin.Context) {
	response.Success(c, h.svc.Health())
}

// bind decodes the JSON body into req and writes the error response on failure.
func bind(c *gin.Context, req interface{}) bool {
	err := c.ShouldBindJSON(req)
	if err == nil {
		return true
	}
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		response.Error(c, appErr.Newf(appErr.RequestTooLarge, "request body exceeds %d bytes", tooLarge.Limit))
		return false
	}
	response.BadRequest(c, "Invalid request body")
	return false
}
