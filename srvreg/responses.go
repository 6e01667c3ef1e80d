package srvreg

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/ahmadzakiakmal/dossierflow/repository"
	"github.com/ahmadzakiakmal/dossierflow/workflow"
)

var defaultHeaders = map[string]string{"Content-Type": "application/json"}

type errorBody struct {
	Error  string `json:"error"`
	Code   string `json:"code,omitempty"`
	Detail string `json:"detail,omitempty"`
}

func jsonResponse(status int, v any) (*Response, error) {
	body, err := json.Marshal(v)
	if err != nil {
		return errorResponse(http.StatusInternalServerError, "Internal server error"), err
	}
	return &Response{StatusCode: status, Headers: defaultHeaders, Body: string(body)}, nil
}

func errorResponse(status int, message string) *Response {
	body, _ := json.Marshal(errorBody{Error: message})
	return &Response{StatusCode: status, Headers: defaultHeaders, Body: string(body), Error: message}
}

// statusFor maps repository and workflow codes to HTTP statuses
func statusFor(code string) int {
	switch code {
	case repository.ErrCodeNotFound:
		return http.StatusNotFound
	case workflow.CodeInvalidState, workflow.CodeCapacity, repository.ErrCodeDuplicate, repository.ErrCodeConflict:
		return http.StatusConflict
	case workflow.CodeMissingField, workflow.CodeConstraint, repository.ErrCodeInvalidInput:
		return http.StatusUnprocessableEntity
	case repository.ErrCodeDeliveryFailed:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (sr *ServiceRegistry) repoErrorResponse(req *Request, dbErr *repository.RepositoryError) (*Response, error) {
	status := statusFor(dbErr.Code)
	body := errorBody{Error: dbErr.Message, Code: dbErr.Code, Detail: dbErr.Detail}
	if status == http.StatusInternalServerError {
		sr.logger.Error("Request failed", "method", req.Method, "path", req.Path, "code", dbErr.Code, "err", dbErr.Detail)
		body = errorBody{Error: "Internal server error", Code: dbErr.Code}
	}
	encoded, _ := json.Marshal(body)
	return &Response{
		StatusCode: status,
		Headers:    defaultHeaders,
		Body:       string(encoded),
		Error:      body.Error,
	}, fmt.Errorf("%s: %s", dbErr.Code, dbErr.Message)
}

// decodeBody unmarshals the request body into v. An empty body leaves v untouched.
func decodeBody(req *Request, v any) (*Response, error) {
	if req.Body == "" {
		return nil, nil
	}
	if err := json.Unmarshal([]byte(req.Body), v); err != nil {
		return errorResponse(http.StatusUnprocessableEntity, "Invalid body format: "+err.Error()), fmt.Errorf("invalid body format: %w", err)
	}
	return nil, nil
}

// pathParam returns the i-th segment of the request path, /api being segment 0
func pathParam(req *Request, i int) string {
	parts := strings.Split(strings.Trim(req.Path, "/"), "/")
	if i < 0 || i >= len(parts) {
		return ""
	}
	return parts[i]
}

// requireOperator rejects requests that do not name an operator
func requireOperator(req *Request) (string, *Response) {
	operatorID := req.OperatorID()
	if operatorID == "" {
		return "", errorResponse(http.StatusBadRequest, "operator ID is required ("+OperatorHeader+" header)")
	}
	return operatorID, nil
}
