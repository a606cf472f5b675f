package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// StandardClient implements LLMClient for OpenAI-compatible chat completion
// APIs, with optional SSE streaming. It serves every provider the router does
// not mark as requiring native inference.
type StandardClient struct {
	*BaseLLMClient
	provider  string
	apiKey    string
	baseURL   string
	model     string
	headers   map[string]string
	streaming bool
}

// chatRequest represents the request body for chat completion APIs
type chatRequest struct {
	Model           string        `json:"model"`
	Messages        []chatMessage `json:"messages"`
	MaxTokens       int           `json:"max_tokens,omitempty"`
	Temperature     float64       `json:"temperature"`
	Tools           []chatTool    `json:"tools,omitempty"`
	Stream          bool          `json:"stream,omitempty"`
	ReasoningEffort string        `json:"reasoning_effort,omitempty"`
}

// chatMessage represents a message in chat completion format
type chatMessage struct {
	Role       string         `json:"role"`
	Content    interface{}    `json:"content"`
	Name       string         `json:"name,omitempty"`
	ToolCalls  []chatToolCall `json:"tool_calls,omitempty"`
	ToolCallID string         `json:"tool_call_id,omitempty"`
}

// chatContentPart represents one typed part of a multi-part message
type chatContentPart struct {
	Type     string            `json:"type"`
	Text     string            `json:"text,omitempty"`
	ImageURL *chatImageURLPart `json:"image_url,omitempty"`
}

type chatImageURLPart struct {
	URL string `json:"url"`
}

// chatTool represents a tool definition in function-declaration shape
type chatTool struct {
	Type     string           `json:"type"`
	Function chatToolFunction `json:"function"`
}

type chatToolFunction struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	Parameters  map[string]interface{} `json:"parameters"`
}

// chatToolCall represents a complete tool call on the wire
type chatToolCall struct {
	ID       string           `json:"id"`
	Type     string           `json:"type"`
	Function chatToolCallFunc `json:"function"`
}

type chatToolCallFunc struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// chatResponse represents a non-streamed chat completion response
type chatResponse struct {
	ID      string           `json:"id"`
	Choices []chatChoice     `json:"choices"`
	Usage   chatUsage        `json:"usage"`
	Error   *chatErrorDetail `json:"error,omitempty"`
}

type chatChoice struct {
	Index        int                 `json:"index"`
	Message      chatResponseMessage `json:"message"`
	FinishReason string              `json:"finish_reason"`
}

type chatResponseMessage struct {
	Role      string         `json:"role"`
	Content   string         `json:"content"`
	ToolCalls []chatToolCall `json:"tool_calls,omitempty"`
}

type chatUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

type chatErrorDetail struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    string `json:"code"`
}

// chatStreamChunk represents one streamed SSE chunk
type chatStreamChunk struct {
	Choices []chatStreamChoice `json:"choices"`
	Usage   *chatUsage         `json:"usage,omitempty"`
	Error   *chatErrorDetail   `json:"error,omitempty"`
}

type chatStreamChoice struct {
	Index        int             `json:"index"`
	Delta        chatStreamDelta `json:"delta"`
	FinishReason *string         `json:"finish_reason"`
}

type chatStreamDelta struct {
	Content   string               `json:"content"`
	ToolCalls []chatStreamToolCall `json:"tool_calls,omitempty"`
}

// chatStreamToolCall is a partial tool-call delta; id, name and arguments may
// each arrive in separate chunks, keyed by index and/or id.
type chatStreamToolCall struct {
	Index    *int             `json:"index,omitempty"`
	ID       string           `json:"id,omitempty"`
	Function chatToolCallFunc `json:"function"`
}

// NewStandardClient creates a chat-completion client from a routing snapshot
func NewStandardClient(resolved *Resolved, model string, retryClient *RetryClient) *StandardClient {
	return &StandardClient{
		BaseLLMClient: NewBaseLLMClient(retryClient),
		provider:      resolved.Provider,
		apiKey:        resolved.APIKey,
		baseURL:       resolved.BaseURL,
		model:         model,
		headers:       resolved.Headers,
		streaming:     Capabilities(resolved.Provider).SupportsStreaming,
	}
}

// GenerateCompletion generates a completion, streaming when a delta sink is
// set and the provider supports it.
func (c *StandardClient) GenerateCompletion(ctx context.Context, req CompletionRequest) (CompletionResponse, error) {
	stream := c.streaming && req.OnTextDelta != nil
	chReq := c.convertRequest(req, stream)

	url := fmt.Sprintf("%s/chat/completions", c.baseURL)
	headers := map[string]string{
		"Authorization": fmt.Sprintf("Bearer %s", c.apiKey),
	}
	for k, v := range c.headers {
		headers[k] = v
	}

	resp, err := c.doHTTPRequest(ctx, "POST", url, headers, chReq)
	if err != nil {
		return CompletionResponse{}, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return CompletionResponse{}, transportError(c.provider, resp, body)
	}

	if stream {
		return c.parseStreamingResponse(resp.Body, req.OnTextDelta)
	}
	return c.parseResponse(resp.Body)
}

// SupportsStreaming reports whether this provider streams
func (c *StandardClient) SupportsStreaming() bool {
	return c.streaming
}

// GetProvider returns the provider name
func (c *StandardClient) GetProvider() string {
	return c.provider
}

// parseResponse handles the request/response (non-streamed) path
func (c *StandardClient) parseResponse(body io.Reader) (CompletionResponse, error) {
	data, err := io.ReadAll(body)
	if err != nil {
		return CompletionResponse{}, fmt.Errorf("failed to read response: %w", err)
	}

	var chResp chatResponse
	if err := json.Unmarshal(data, &chResp); err != nil {
		return CompletionResponse{}, fmt.Errorf("failed to parse response: %w", err)
	}
	if chResp.Error != nil {
		return CompletionResponse{}, fmt.Errorf("API error: %s", chResp.Error.Message)
	}

	usage := TokenUsage{
		InputTokens:  chResp.Usage.PromptTokens,
		OutputTokens: chResp.Usage.CompletionTokens,
		TotalTokens:  chResp.Usage.TotalTokens,
	}

	if len(chResp.Choices) == 0 {
		return CompletionResponse{Usage: usage}, nil
	}

	choice := chResp.Choices[0]
	result := CompletionResponse{
		Content: choice.Message.Content,
		Usage:   usage,
	}

	for _, tc := range choice.Message.ToolCalls {
		result.ToolCalls = append(result.ToolCalls, ToolCallRequest{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: tc.Function.Arguments,
		})
	}

	return result, nil
}

// parseStreamingResponse consumes the SSE stream, forwarding text deltas and
// feeding tool-call deltas into the accumulator as fragments.
func (c *StandardClient) parseStreamingResponse(body io.Reader, onDelta func(string)) (CompletionResponse, error) {
	parser := NewSSEParser(body)
	accumulator := NewToolCallAccumulator()

	var content []byte
	var usage TokenUsage

	for {
		event, err := parser.NextEvent()
		if err == io.EOF {
			break
		}
		if err != nil {
			return CompletionResponse{}, fmt.Errorf("stream parsing error: %w", err)
		}

		if IsSSEDone(event.Data) {
			break
		}

		var chunk chatStreamChunk
		if err := ParseSSEData(event.Data, &chunk); err != nil {
			return CompletionResponse{}, fmt.Errorf("failed to parse stream chunk: %w", err)
		}
		if chunk.Error != nil {
			return CompletionResponse{}, fmt.Errorf("API error: %s", chunk.Error.Message)
		}

		if chunk.Usage != nil {
			usage = TokenUsage{
				InputTokens:  chunk.Usage.PromptTokens,
				OutputTokens: chunk.Usage.CompletionTokens,
				TotalTokens:  chunk.Usage.TotalTokens,
			}
		}

		if len(chunk.Choices) == 0 {
			continue
		}
		delta := chunk.Choices[0].Delta

		if delta.Content != "" {
			content = append(content, delta.Content...)
			if onDelta != nil {
				onDelta(delta.Content)
			}
		}

		for _, tc := range delta.ToolCalls {
			accumulator.Add(ToolCallFragment{
				Index:     tc.Index,
				ID:        tc.ID,
				Name:      tc.Function.Name,
				Arguments: tc.Function.Arguments,
			})
		}
	}

	return CompletionResponse{
		Content:   string(content),
		ToolCalls: accumulator.Finalize(),
		Usage:     usage,
	}, nil
}

// convertRequest converts the internal request to chat completion format
func (c *StandardClient) convertRequest(req CompletionRequest, stream bool) chatRequest {
	messages := []chatMessage{}

	if req.SystemPrompt != "" {
		messages = append(messages, chatMessage{
			Role:    "system",
			Content: req.SystemPrompt,
		})
	}

	for _, msg := range req.Messages {
		messages = append(messages, convertChatMessage(msg))
	}

	chReq := chatRequest{
		Model:           c.model,
		Messages:        messages,
		MaxTokens:       req.MaxTokens,
		Temperature:     req.Temperature,
		Stream:          stream,
		ReasoningEffort: req.ReasoningEffort,
	}

	if len(req.Tools) > 0 {
		chReq.Tools = make([]chatTool, len(req.Tools))
		for i, tool := range req.Tools {
			chReq.Tools[i] = chatTool{
				Type: "function",
				Function: chatToolFunction{
					Name:        tool.Name,
					Description: tool.Description,
					Parameters:  tool.Parameters,
				},
			}
		}
	}

	return chReq
}

// convertChatMessage maps one internal message onto the wire shape
func convertChatMessage(msg Message) chatMessage {
	out := chatMessage{Role: msg.Role}

	if len(msg.Parts) > 0 {
		parts := make([]chatContentPart, 0, len(msg.Parts))
		for _, p := range msg.Parts {
			switch p.Type {
			case "image":
				parts = append(parts, chatContentPart{
					Type:     "image_url",
					ImageURL: &chatImageURLPart{URL: p.ImageURL},
				})
			default:
				parts = append(parts, chatContentPart{Type: "text", Text: p.Text})
			}
		}
		out.Content = parts
	} else {
		out.Content = msg.Content
	}

	if msg.Role == "assistant" {
		for _, tc := range msg.ToolCalls {
			out.ToolCalls = append(out.ToolCalls, chatToolCall{
				ID:   tc.ID,
				Type: "function",
				Function: chatToolCallFunc{
					Name:      tc.Name,
					Arguments: tc.Arguments,
				},
			})
		}
	}

	if msg.Role == "tool" {
		out.Name = msg.Name
		out.ToolCallID = msg.ToolCallID
	}

	return out
}
