package llmtypes

// Message represents a chat message
type Message struct {
	Role       string // "system", "user", "assistant", "tool"
	Content    string
	Parts      []ContentPart     // Optional typed parts; Content is used when empty
	Name       string            // Tool name (for role="tool")
	ToolCallID string            // ID of the tool call being answered (for role="tool")
	ToolCalls  []ToolCallRequest // Tool calls made by assistant (for role="assistant")
}

// ContentPart is one typed segment of a multi-part message
type ContentPart struct {
	Type     string // "text" or "image"
	Text     string
	ImageURL string
}

// ToolCallRequest is a complete, accumulated tool invocation
type ToolCallRequest struct {
	ID        string
	Name      string
	Arguments string // Raw JSON, parsed lazily at execution time
}

// ToolCallFragment is a partial streamed piece of a tool invocation.
// Fragments for the same logical call may arrive with or without a stable ID.
type ToolCallFragment struct {
	Index     *int   // Position in the provider's stream, nil when absent
	ID        string // Stable call ID, may arrive late or never
	Name      string // Name delta (replaces, never appends)
	Arguments string // Argument-string delta (appends)
}

// ToolCallResult is the outcome of executing one tool call.
// Err carries execution failures distinctly from application results;
// a nil Result with a nil Err is a void acknowledgement.
type ToolCallResult struct {
	ID     string
	Name   string
	Result interface{}
	Err    error
}

// ToolDefinition defines a tool in provider wire shape
type ToolDefinition struct {
	Name        string
	Description string
	Parameters  map[string]interface{}
}

// CompletionRequest is a request for one LLM completion round
type CompletionRequest struct {
	SystemPrompt    string
	Messages        []Message
	Tools           []ToolDefinition
	MaxTokens       int
	Temperature     float64
	ReasoningEffort string // "low", "medium", "high"; empty means provider default

	// OnTextDelta, when set, receives newly streamed text segments.
	// Transports that cannot stream ignore it.
	OnTextDelta func(delta string)
}

// CompletionResponse is the normalized response from any transport
type CompletionResponse struct {
	Content   string
	ToolCalls []ToolCallRequest
	Usage     TokenUsage
}

// TokenUsage tracks token usage
type TokenUsage struct {
	InputTokens  int
	OutputTokens int
	TotalTokens  int
}
