package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// NativeClient implements LLMClient for providers whose request/response
// shapes are incompatible with chat completions: a single JSON request and a
// single JSON response, no chunking. Tool calling is replaced by an in-band
// envelope — the model's JSON output may carry an "action" field naming one
// tool and its arguments, which is surfaced as exactly one accumulated
// tool-call request.
type NativeClient struct {
	*BaseLLMClient
	provider string
	apiKey   string
	baseURL  string
	model    string
	headers  map[string]string
}

// nativeRequest represents the generateContent request body
type nativeRequest struct {
	Contents          []nativeContent        `json:"contents"`
	SystemInstruction *nativeContent         `json:"systemInstruction,omitempty"`
	GenerationConfig  nativeGenerationConfig `json:"generationConfig,omitempty"`
}

// nativeContent represents content in native format
type nativeContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []nativePart `json:"parts"`
}

// nativePart represents a part of content
type nativePart struct {
	Text       string           `json:"text,omitempty"`
	InlineData *nativeImagePart `json:"inlineData,omitempty"`
}

type nativeImagePart struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
}

// nativeGenerationConfig represents generation configuration
type nativeGenerationConfig struct {
	Temperature     float64 `json:"temperature,omitempty"`
	MaxOutputTokens int     `json:"maxOutputTokens,omitempty"`
}

// nativeResponse represents the generateContent response
type nativeResponse struct {
	Candidates    []nativeCandidate    `json:"candidates"`
	UsageMetadata *nativeUsageMetadata `json:"usageMetadata,omitempty"`
	Error         *nativeError         `json:"error,omitempty"`
}

type nativeCandidate struct {
	Content      nativeContent `json:"content"`
	FinishReason string        `json:"finishReason,omitempty"`
}

type nativeUsageMetadata struct {
	PromptTokenCount     int `json:"promptTokenCount"`
	CandidatesTokenCount int `json:"candidatesTokenCount"`
	TotalTokenCount      int `json:"totalTokenCount"`
}

type nativeError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Status  string `json:"status"`
}

// actionEnvelope is the in-band tool-call shape native providers emit inside
// their JSON text output.
type actionEnvelope struct {
	Action *struct {
		Name      string          `json:"name"`
		Arguments json.RawMessage `json:"arguments"`
	} `json:"action"`
}

// NewNativeClient creates a native transport client from a routing snapshot
func NewNativeClient(resolved *Resolved, model string, retryClient *RetryClient) *NativeClient {
	return &NativeClient{
		BaseLLMClient: NewBaseLLMClient(retryClient),
		provider:      resolved.Provider,
		apiKey:        resolved.APIKey,
		baseURL:       resolved.BaseURL,
		model:         model,
		headers:       resolved.Headers,
	}
}

// GenerateCompletion issues a single generateContent round trip
func (c *NativeClient) GenerateCompletion(ctx context.Context, req CompletionRequest) (CompletionResponse, error) {
	nReq := c.convertRequest(req)

	modelName := c.model
	if !strings.HasPrefix(modelName, "models/") {
		modelName = "models/" + modelName
	}
	url := fmt.Sprintf("%s/%s:generateContent", c.baseURL, modelName)

	headers := map[string]string{
		"x-goog-api-key": c.apiKey,
	}
	for k, v := range c.headers {
		headers[k] = v
	}

	resp, err := c.doHTTPRequest(ctx, "POST", url, headers, nReq)
	if err != nil {
		return CompletionResponse{}, err
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return CompletionResponse{}, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return CompletionResponse{}, transportError(c.provider, resp, body)
	}

	var nResp nativeResponse
	if err := json.Unmarshal(body, &nResp); err != nil {
		return CompletionResponse{}, fmt.Errorf("failed to parse response: %w", err)
	}
	if nResp.Error != nil {
		return CompletionResponse{}, fmt.Errorf("API error: %s", nResp.Error.Message)
	}

	return c.convertResponse(nResp), nil
}

// SupportsStreaming returns false; the native transport never chunks
func (c *NativeClient) SupportsStreaming() bool {
	return false
}

// GetProvider returns the provider name
func (c *NativeClient) GetProvider() string {
	return c.provider
}

// convertRequest converts the internal request to native format
func (c *NativeClient) convertRequest(req CompletionRequest) nativeRequest {
	contents := []nativeContent{}

	for _, msg := range req.Messages {
		role := "user"
		if msg.Role == "assistant" {
			role = "model"
		}

		var parts []nativePart
		if len(msg.Parts) > 0 {
			for _, p := range msg.Parts {
				if p.Type == "text" && p.Text != "" {
					parts = append(parts, nativePart{Text: p.Text})
				}
			}
		} else if msg.Role == "tool" {
			// Tool results travel in-band as user text
			parts = append(parts, nativePart{
				Text: fmt.Sprintf("Result of %s: %s", msg.Name, msg.Content),
			})
		} else if msg.Content != "" {
			parts = append(parts, nativePart{Text: msg.Content})
		}

		if len(parts) == 0 {
			continue
		}
		contents = append(contents, nativeContent{Role: role, Parts: parts})
	}

	nReq := nativeRequest{
		Contents: contents,
		GenerationConfig: nativeGenerationConfig{
			Temperature:     req.Temperature,
			MaxOutputTokens: req.MaxTokens,
		},
	}

	if req.SystemPrompt != "" {
		nReq.SystemInstruction = &nativeContent{
			Parts: []nativePart{{Text: req.SystemPrompt}},
		}
	}

	return nReq
}

// convertResponse converts the native response, extracting any in-band action
func (c *NativeClient) convertResponse(resp nativeResponse) CompletionResponse {
	result := CompletionResponse{}
	if resp.UsageMetadata != nil {
		result.Usage = TokenUsage{
			InputTokens:  resp.UsageMetadata.PromptTokenCount,
			OutputTokens: resp.UsageMetadata.CandidatesTokenCount,
			TotalTokens:  resp.UsageMetadata.TotalTokenCount,
		}
	}

	if len(resp.Candidates) == 0 {
		return result
	}

	var text strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		text.WriteString(part.Text)
	}
	result.Content = text.String()

	if call, ok := extractAction(result.Content); ok {
		result.ToolCalls = []ToolCallRequest{call}
	}

	return result
}

// extractAction looks for the in-band action envelope in the model's text.
// The single-shot intent becomes one tool-call request with a synthesized id.
func extractAction(text string) (ToolCallRequest, bool) {
	raw := strings.TrimSpace(text)
	if fenced, ok := stripJSONFence(raw); ok {
		raw = fenced
	}

	var env actionEnvelope
	if err := json.Unmarshal([]byte(raw), &env); err != nil || env.Action == nil || env.Action.Name == "" {
		return ToolCallRequest{}, false
	}

	args := "{}"
	if len(env.Action.Arguments) > 0 {
		args = string(env.Action.Arguments)
	}

	return ToolCallRequest{
		ID:        synthesizeCallID(0, 0),
		Name:      env.Action.Name,
		Arguments: args,
	}, true
}

// stripJSONFence unwraps ```json fenced blocks
func stripJSONFence(s string) (string, bool) {
	if !strings.HasPrefix(s, "```") {
		return "", false
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	if idx := strings.LastIndex(s, "```"); idx >= 0 {
		s = s[:idx]
	}
	return strings.TrimSpace(s), true
}
