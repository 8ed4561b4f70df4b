// Package httpcall provides the outbound HTTP request node processor.
package httpcall

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/aubira/flowd/pkg/models"
	"github.com/aubira/flowd/pkg/processors"
)

var typeTags = []string{"http", "webhook", "api-call", "rest"}

var validMethods = map[string]bool{
	http.MethodGet:     true,
	http.MethodPost:    true,
	http.MethodPut:     true,
	http.MethodDelete:  true,
	http.MethodPatch:   true,
	http.MethodHead:    true,
	http.MethodOptions: true,
}

const (
	defaultTimeout = 30 * time.Second
	userAgent      = "flowd-workflow-engine/1.0"
)

type Processor struct {
	client *http.Client
	logger *slog.Logger
}

func New(client *http.Client, logger *slog.Logger) *Processor {
	if client == nil {
		client = &http.Client{}
	}

	return &Processor{
		client: client,
		logger: logger.With("processor", "http"),
	}
}

// Types lists the node type tags this processor handles.
func Types() []string {
	return append([]string(nil), typeTags...)
}

func (p *Processor) CanProcess(nodeType string) bool {
	for _, tag := range typeTags {
		if tag == nodeType {
			return true
		}
	}

	return false
}

func (p *Processor) RequiredInputs(_ *models.Node) []string {
	return []string{"url", "method"}
}

func (p *Processor) ValidateInputs(node *models.Node, inputs map[string]any) error {
	for _, key := range p.RequiredInputs(node) {
		value, ok := inputs[key].(string)
		if !ok || value == "" {
			return fmt.Errorf("missing required input %q for node %s", key, node.ID)
		}
	}

	rawURL, _ := inputs["url"].(string)

	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("invalid URL: %s", rawURL)
	}

	method, _ := inputs["method"].(string)
	if !validMethods[strings.ToUpper(method)] {
		return fmt.Errorf("invalid HTTP method: %s", method)
	}

	return nil
}

func (p *Processor) Process(ctx context.Context, node *models.Node, inputs map[string]any, execCtx *models.ExecutionContext) *models.NodeExecutionResult {
	started := time.Now()

	p.logger.InfoContext(ctx, "Processing HTTP node",
		"node_id", node.ID, "url", inputs["url"], "method", inputs["method"],
		"execution_id", execCtx.ExecutionID)

	if err := p.ValidateInputs(node, inputs); err != nil {
		return processors.FailedResult(node, inputs, err, started)
	}

	request, err := p.prepareRequest(node, inputs)
	if err != nil {
		return processors.FailedResult(node, inputs, err, started)
	}

	status, body, headers, err := p.do(ctx, request)
	if err != nil {
		p.logger.ErrorContext(ctx, "HTTP node failed",
			"node_id", node.ID, "error", err, "execution_id", execCtx.ExecutionID)

		result := processors.FailedResult(node, inputs, err, started)
		result.Outputs = map[string]any{"success": false, "error": err.Error()}

		return result
	}

	outputs := make(map[string]any, len(inputs)+7)
	for k, v := range inputs {
		outputs[k] = v
	}

	outputs["status_code"] = status
	outputs["response_data"] = body
	outputs["response_headers"] = headers
	outputs["request_url"] = request.url
	outputs["request_method"] = request.method
	outputs["success"] = status >= 200 && status < 300
	outputs["executed_at"] = time.Now().UTC().Format(time.RFC3339)

	p.logger.InfoContext(ctx, "HTTP node completed",
		"node_id", node.ID, "status_code", status)

	return processors.CompletedResult(node, inputs, outputs, started)
}

type preparedRequest struct {
	url     string
	method  string
	headers map[string]string
	body    []byte
	timeout time.Duration
}

func (p *Processor) prepareRequest(node *models.Node, inputs map[string]any) (*preparedRequest, error) {
	rawURL, _ := inputs["url"].(string)
	method, _ := inputs["method"].(string)

	request := &preparedRequest{
		url:    rawURL,
		method: strings.ToUpper(method),
		headers: map[string]string{
			"Content-Type": "application/json",
			"User-Agent":   userAgent,
		},
		timeout: defaultTimeout,
	}

	// Node configuration headers first so per-run inputs win.
	if configured, ok := processors.ConfigMap(node, "headers"); ok {
		mergeHeaders(request.headers, configured)
	}

	if supplied, ok := inputs["headers"].(map[string]any); ok {
		mergeHeaders(request.headers, supplied)
	}

	if timeout := timeoutOption(node, inputs); timeout > 0 {
		request.timeout = timeout
	}

	if request.method == http.MethodPost || request.method == http.MethodPut || request.method == http.MethodPatch {
		body := firstPresent(inputs["body"], inputs["data"], node.Config["body"])
		if body != nil {
			encoded, err := encodeBody(body)
			if err != nil {
				return nil, err
			}

			request.body = encoded
		}
	}

	if err := applyQueryParams(request, node, inputs); err != nil {
		return nil, err
	}

	applyAuth(request, node, inputs)

	return request, nil
}

func mergeHeaders(headers map[string]string, extra map[string]any) {
	for key, value := range extra {
		headers[key] = fmt.Sprintf("%v", value)
	}
}

func timeoutOption(node *models.Node, inputs map[string]any) time.Duration {
	for _, raw := range []any{inputs["timeout_ms"], node.Config["timeout_ms"]} {
		if ms, ok := raw.(float64); ok && ms > 0 {
			return time.Duration(ms) * time.Millisecond
		}
	}

	return 0
}

func encodeBody(body any) ([]byte, error) {
	if text, ok := body.(string); ok {
		return []byte(text), nil
	}

	encoded, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize request body: %w", err)
	}

	return encoded, nil
}

func applyQueryParams(request *preparedRequest, node *models.Node, inputs map[string]any) error {
	params := map[string]any{}

	if configured, ok := processors.ConfigMap(node, "params"); ok {
		for k, v := range configured {
			params[k] = v
		}
	}

	if supplied, ok := inputs["params"].(map[string]any); ok {
		for k, v := range supplied {
			params[k] = v
		}
	}

	if len(params) == 0 {
		return nil
	}

	parsed, err := url.Parse(request.url)
	if err != nil {
		return fmt.Errorf("invalid URL: %s", request.url)
	}

	query := parsed.Query()
	for key, value := range params {
		query.Set(key, fmt.Sprintf("%v", value))
	}

	parsed.RawQuery = query.Encode()
	request.url = parsed.String()

	return nil
}

func applyAuth(request *preparedRequest, node *models.Node, inputs map[string]any) {
	auth := map[string]any{}

	if configured, ok := processors.ConfigMap(node, "auth"); ok {
		for k, v := range configured {
			auth[k] = v
		}
	}

	if supplied, ok := inputs["auth"].(map[string]any); ok {
		for k, v := range supplied {
			auth[k] = v
		}
	}

	kind, _ := auth["type"].(string)

	switch kind {
	case "bearer":
		token, _ := auth["token"].(string)
		request.headers["Authorization"] = "Bearer " + token
	case "basic":
		username, _ := auth["username"].(string)
		password, _ := auth["password"].(string)
		credentials := base64.StdEncoding.EncodeToString([]byte(username + ":" + password))
		request.headers["Authorization"] = "Basic " + credentials
	case "api-key":
		key, _ := auth["key"].(string)

		header, _ := auth["header"].(string)
		if header == "" {
			header = "X-API-Key"
		}

		request.headers[header] = key
	case "custom":
		if headers, ok := auth["headers"].(map[string]any); ok {
			mergeHeaders(request.headers, headers)
		}
	}
}

func (p *Processor) do(ctx context.Context, request *preparedRequest) (int, any, map[string]string, error) {
	ctx, cancel := context.WithTimeout(ctx, request.timeout)
	defer cancel()

	var reader io.Reader
	if request.body != nil {
		reader = bytes.NewReader(request.body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, request.method, request.url, reader)
	if err != nil {
		return 0, nil, nil, fmt.Errorf("failed to build request: %w", err)
	}

	for key, value := range request.headers {
		httpReq.Header.Set(key, value)
	}

	response, err := p.client.Do(httpReq)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return 0, nil, nil, fmt.Errorf("request timeout after %s", request.timeout)
		}

		return 0, nil, nil, err
	}
	defer response.Body.Close()

	raw, err := io.ReadAll(response.Body)
	if err != nil {
		return 0, nil, nil, fmt.Errorf("failed to read response body: %w", err)
	}

	headers := make(map[string]string, len(response.Header))
	for key := range response.Header {
		headers[strings.ToLower(key)] = response.Header.Get(key)
	}

	return response.StatusCode, parseBody(response.Header.Get("Content-Type"), raw), headers, nil
}

// parseBody decodes JSON responses and falls back to plain text.
func parseBody(contentType string, raw []byte) any {
	if strings.Contains(contentType, "application/json") {
		var decoded any
		if err := json.Unmarshal(raw, &decoded); err == nil {
			return decoded
		}
	}

	return string(raw)
}

func firstPresent(values ...any) any {
	for _, v := range values {
		if v != nil {
			return v
		}
	}

	return nil
}
