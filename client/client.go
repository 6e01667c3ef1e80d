// Package client is a thin JSON client for the dossierflow HTTP API
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// OperatorHeader names the operator performing a request
const OperatorHeader = "X-Operator-ID"

type RequestOptions struct {
	Headers    map[string]string
	Timeout    time.Duration
	OperatorID string
	Context    context.Context
}

type Response struct {
	StatusCode int
	Headers    http.Header
	Body       []byte
	Latency    time.Duration
}

// APIError is returned for every response with a status of 400 or more
type APIError struct {
	StatusCode int
	Message    string `json:"error"`
	Code       string `json:"code"`
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%d %s: %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("%d: %s", e.StatusCode, e.Message)
}

type HTTPClient struct {
	BaseURL     string
	Client      *http.Client
	DefaultOpts RequestOptions
}

func NewHTTPClient(baseURL string) *HTTPClient {
	return &HTTPClient{
		BaseURL: baseURL,
		Client: &http.Client{
			Timeout: 30 * time.Second,
		},
		DefaultOpts: RequestOptions{
			Headers: map[string]string{},
			Timeout: 30 * time.Second,
		},
	}
}

// As returns a copy of the default options acting as operatorID
func (c *HTTPClient) As(operatorID string) *RequestOptions {
	opts := c.DefaultOpts
	opts.OperatorID = operatorID
	return &opts
}

// Call sends body as JSON and returns the raw response. A status of 400 or
// more is reported as an *APIError alongside the response.
func (c *HTTPClient) Call(method, endpoint string, body any, opts *RequestOptions) (*Response, error) {
	if opts == nil {
		opts = &c.DefaultOpts
	}

	var bodyReader io.Reader
	if body != nil {
		bodyJSON, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encoding request body: %w", err)
		}
		bodyReader = bytes.NewBuffer(bodyJSON)
	}

	ctx := opts.Context
	if ctx == nil {
		ctx = context.Background()
	}
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+endpoint, bodyReader)
	if err != nil {
		return nil, err
	}
	for key, value := range opts.Headers {
		req.Header.Set(key, value)
	}
	if opts.OperatorID != "" {
		req.Header.Set(OperatorHeader, opts.OperatorID)
	}
	if body != nil && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.Client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}
	out := &Response{
		StatusCode: resp.StatusCode,
		Headers:    resp.Header,
		Body:       respBody,
		Latency:    time.Since(start),
	}
	if resp.StatusCode >= http.StatusBadRequest {
		apiErr := &APIError{StatusCode: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
		_ = json.Unmarshal(respBody, apiErr)
		return out, apiErr
	}
	return out, nil
}

func (c *HTTPClient) GET(endpoint string, opts *RequestOptions) (*Response, error) {
	return c.Call(http.MethodGet, endpoint, nil, opts)
}

func (c *HTTPClient) POST(endpoint string, body any, opts *RequestOptions) (*Response, error) {
	return c.Call(http.MethodPost, endpoint, body, opts)
}

func (c *HTTPClient) PUT(endpoint string, body any, opts *RequestOptions) (*Response, error) {
	return c.Call(http.MethodPut, endpoint, body, opts)
}

func (c *HTTPClient) PATCH(endpoint string, body any, opts *RequestOptions) (*Response, error) {
	return c.Call(http.MethodPatch, endpoint, body, opts)
}

func UnmarshalBody(resp *Response, target any) error {
	if len(resp.Body) == 0 {
		return fmt.Errorf("empty response body")
	}
	if err := json.Unmarshal(resp.Body, target); err != nil {
		return fmt.Errorf("failed to unmarshal response body: %w", err)
	}
	return nil
}
