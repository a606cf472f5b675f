package tools

import (
	"context"
)

// CompleteTool is the built-in "I am done" tool. Executing it sets the
// completion signal on the inference context and ends the recursive loop.
type CompleteTool struct {
	BaseTool
}

// NewCompleteTool creates the completion tool
func NewCompleteTool() *CompleteTool {
	return &CompleteTool{}
}

// Name returns the tool name
func (t *CompleteTool) Name() string {
	return "complete"
}

// Description returns the tool description
func (t *CompleteTool) Description() string {
	return "Signal that the requested task is finished. Call this exactly once, when no further work remains."
}

// Parameters returns the JSON schema for the tool's parameters
func (t *CompleteTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"summary": map[string]interface{}{
				"type":        "string",
				"description": "Short human-readable summary of what was accomplished",
			},
		},
	}
}

// SignalsCompletion marks this tool as the loop terminator
func (t *CompleteTool) SignalsCompletion() bool {
	return true
}

// Execute acknowledges the completion and echoes the summary
func (t *CompleteTool) Execute(ctx context.Context, params map[string]interface{}) (interface{}, error) {
	summary, _ := params["summary"].(string)
	return map[string]interface{}{
		"status":  "done",
		"summary": summary,
	}, nil
}
