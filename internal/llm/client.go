package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/user/infercore/internal/llmtypes"
)

// Type aliases shared across the llm package
type Message = llmtypes.Message
type ContentPart = llmtypes.ContentPart
type ToolCallRequest = llmtypes.ToolCallRequest
type ToolCallFragment = llmtypes.ToolCallFragment
type CompletionRequest = llmtypes.CompletionRequest
type CompletionResponse = llmtypes.CompletionResponse
type TokenUsage = llmtypes.TokenUsage
type ToolDefinition = llmtypes.ToolDefinition

// LLMClient is the interface for LLM transports
type LLMClient interface {
	// GenerateCompletion generates a completion from the LLM
	GenerateCompletion(ctx context.Context, req CompletionRequest) (CompletionResponse, error)

	// SupportsStreaming returns true if the transport can stream text deltas
	SupportsStreaming() bool

	// GetProvider returns the provider name
	GetProvider() string
}

// TransportError is returned for any non-2xx upstream response. It preserves
// the numeric status, headers and raw body so the rate-limit classifier can
// inspect them without knowing provider-specific error shapes.
type TransportError struct {
	Provider   string
	StatusCode int
	Header     http.Header
	Body       []byte
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("provider %s returned status %d: %s", e.Provider, e.StatusCode, string(e.Body))
}

// BaseLLMClient provides common functionality for all LLM transports
type BaseLLMClient struct {
	retryClient *RetryClient
}

// NewBaseLLMClient creates a new base LLM client
func NewBaseLLMClient(retryClient *RetryClient) *BaseLLMClient {
	// If no retry client provided, create a default one
	if retryClient == nil {
		retryClient = NewRetryClient(nil) // Uses default config
	}
	return &BaseLLMClient{
		retryClient: retryClient,
	}
}

// doHTTPRequest executes an HTTP request with JSON payload and returns the response.
// It handles JSON marshaling, request creation, header setting, and execution with retry.
// The caller is responsible for closing the response body and handling status codes.
func (b *BaseLLMClient) doHTTPRequest(
	ctx context.Context,
	method string,
	url string,
	headers map[string]string,
	payload interface{},
) (*http.Response, error) {
	var body *bytes.Reader
	if payload != nil {
		jsonData, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(jsonData)
	}

	var httpReq *http.Request
	var err error
	if body != nil {
		httpReq, err = http.NewRequestWithContext(ctx, method, url, body)
	} else {
		httpReq, err = http.NewRequestWithContext(ctx, method, url, nil)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	for key, value := range headers {
		httpReq.Header.Set(key, value)
	}

	resp, err := b.retryClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}

	return resp, nil
}

// transportError drains the response body into a TransportError for the classifier
func transportError(provider string, resp *http.Response, body []byte) *TransportError {
	return &TransportError{
		Provider:   provider,
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       body,
	}
}
