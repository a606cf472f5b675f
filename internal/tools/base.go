package tools

import (
	"context"
	"fmt"
)

// ModelRetryError is raised when a tool encounters a recoverable error
// that the model should be told about and asked to try again
type ModelRetryError struct {
	Message string
}

func (e *ModelRetryError) Error() string {
	return e.Message
}

// Tool is the interface that all tools must implement
type Tool interface {
	// Name returns the tool name, unique within one inference call
	Name() string

	// Description returns a description of what the tool does
	Description() string

	// Parameters returns the JSON schema for the tool's parameters
	Parameters() map[string]interface{}

	// Dependencies returns names of tools whose results this tool needs.
	// Dependent calls are sequenced after their dependencies complete.
	Dependencies() []string

	// Execute runs the tool with the given parameters
	Execute(ctx context.Context, params map[string]interface{}) (interface{}, error)
}

// CompletionSignaler marks tools whose successful execution ends the
// recursive inference loop.
type CompletionSignaler interface {
	SignalsCompletion() bool
}

// BaseTool provides common functionality for all tools
type BaseTool struct {
	MaxRetries int
}

// NewBaseTool creates a new base tool
func NewBaseTool(maxRetries int) BaseTool {
	return BaseTool{
		MaxRetries: maxRetries,
	}
}

// Dependencies returns no dependencies by default
func (bt *BaseTool) Dependencies() []string {
	return nil
}

// RetryableExecute executes a function with retry logic
func (bt *BaseTool) RetryableExecute(ctx context.Context, fn func() (interface{}, error)) (interface{}, error) {
	var lastErr error

	for attempt := 0; attempt < bt.MaxRetries; attempt++ {
		result, err := fn()
		if err == nil {
			return result, nil
		}

		lastErr = err

		// Check if error is recoverable (ModelRetryError)
		if _, ok := err.(*ModelRetryError); !ok {
			// Not recoverable, return immediately
			return nil, err
		}

		// If it's the last attempt, don't wait
		if attempt == bt.MaxRetries-1 {
			break
		}
	}

	if lastErr != nil {
		return nil, fmt.Errorf("tool failed after %d retries: %w", bt.MaxRetries, lastErr)
	}

	return nil, fmt.Errorf("tool failed after %d retries", bt.MaxRetries)
}
