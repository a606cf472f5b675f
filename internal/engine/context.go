package engine

import (
	"github.com/user/infercore/internal/llmtypes"
)

// CompletionSignal marks that a designated "I am done" tool has executed.
// It is set at most once per context by the first recognized completion
// result; once signaled it is immutable for the rest of the call chain.
type CompletionSignal struct {
	Signaled bool
	ToolName string
	Summary  string
}

// ToolCallContext is owned exclusively by one in-flight recursive inference
// call. It holds the accumulated message history for this tool-calling round,
// the recursion depth, and the completion state. Context values are derived,
// never mutated in place across recursion boundaries.
type ToolCallContext struct {
	Messages    []llmtypes.Message
	Depth       int
	Completion  CompletionSignal
	DepthWarned bool // A "max depth" warning was already injected
}

// NewToolCallContext creates a fresh context at depth 0
func NewToolCallContext() *ToolCallContext {
	return &ToolCallContext{}
}

// clone copies the context value; the message slice is copied shallowly since
// messages themselves are treated as immutable once appended.
func (c *ToolCallContext) clone() *ToolCallContext {
	out := &ToolCallContext{
		Depth:       c.Depth,
		Completion:  c.Completion,
		DepthWarned: c.DepthWarned,
	}
	if len(c.Messages) > 0 {
		out.Messages = make([]llmtypes.Message, len(c.Messages))
		copy(out.Messages, c.Messages)
	}
	return out
}

// WithMessages derives a context with messages appended
func (c *ToolCallContext) WithMessages(msgs ...llmtypes.Message) *ToolCallContext {
	out := c.clone()
	out.Messages = append(out.Messages, msgs...)
	return out
}

// WithNextDepth derives a context for the next recursion step
func (c *ToolCallContext) WithNextDepth() *ToolCallContext {
	out := c.clone()
	out.Depth++
	return out
}

// WithDepthWarning derives a context carrying the injected warning message
// and the flag that prevents injecting it twice.
func (c *ToolCallContext) WithDepthWarning(notice string) *ToolCallContext {
	out := c.clone()
	out.Messages = append(out.Messages, llmtypes.Message{
		Role:    "system",
		Content: notice,
	})
	out.DepthWarned = true
	return out
}

// WithCompletion derives a context with the completion signal set. If the
// signal was already set, the existing value wins and the receiver's clone is
// returned unchanged.
func (c *ToolCallContext) WithCompletion(toolName, summary string) *ToolCallContext {
	out := c.clone()
	if out.Completion.Signaled {
		return out
	}
	out.Completion = CompletionSignal{
		Signaled: true,
		ToolName: toolName,
		Summary:  summary,
	}
	return out
}
