// internal/common/errors/handler.go
package errors

import (
	"encoding/json"
	"net/http"
)

// ErrorHandler renders errors as HTTP responses with standardized logging.
type ErrorHandler struct {
	logger Logger
}

type Logger interface {
	Warn(msg string, fields map[string]interface{})
	Error(msg string, fields map[string]interface{})
}

// ErrorBody is the wire shape of every failed response.
type ErrorBody struct {
	Detail string `json:"detail"`
}

// ValidationIssue is one entry of a request validation failure, located by
// source and field name, e.g. loc ["query", "email"].
type ValidationIssue struct {
	Loc  []string `json:"loc"`
	Msg  string   `json:"msg"`
	Type string   `json:"type"`
}

// ValidationErrorBody is the wire shape of a 422: detail lists every issue.
type ValidationErrorBody struct {
	Detail []ValidationIssue `json:"detail"`
}

func NewErrorHandler(logger Logger) *ErrorHandler {
	return &ErrorHandler{logger: logger}
}

// WriteError normalizes err, logs it and writes {"detail": message}.
// A missing parameter is written as a ValidationErrorBody instead.
func (h *ErrorHandler) WriteError(w http.ResponseWriter, r *http.Request, err error) {
	stdErr := Normalize(err)
	status := HTTPStatus(stdErr.Code)

	h.logError(r, stdErr, status)

	var body interface{} = ErrorBody{Detail: stdErr.Message}
	if stdErr.Code == ErrCodeMissingParameter {
		param, _ := stdErr.Metadata["param"].(string)
		body = ValidationErrorBody{Detail: []ValidationIssue{{
			Loc:  []string{"query", param},
			Msg:  "field required",
			Type: "missing",
		}}}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func (h *ErrorHandler) logError(r *http.Request, stdErr *StandardError, status int) {
	fields := map[string]interface{}{
		"method":        r.Method,
		"path":          r.URL.Path,
		"status":        status,
		"errorCode":     string(stdErr.Code),
		"message":       stdErr.Message,
		"details":       stdErr.Details,
		"errorCategory": GetErrorCategory(stdErr.Code),
	}
	if IsClientError(stdErr.Code) {
		h.logger.Warn("request rejected", fields)
		return
	}
	h.logger.Error("request failed", fields)
}
