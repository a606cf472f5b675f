package errors

import (
	stderrors "errors"
	"fmt"
)

// RateLimitError is raised when a provider rejects a call with HTTP 429.
// It is never caught locally; the caller owns retry and backoff policy.
type RateLimitError struct {
	*InferCoreError
	Provider     string
	RetryDelayMs int64
}

// NewRateLimitError creates a new rate limit error with the retry delay in milliseconds
func NewRateLimitError(provider string, retryDelayMs int64, cause error) *RateLimitError {
	return &RateLimitError{
		InferCoreError: &InferCoreError{
			Message: fmt.Sprintf("Rate limited by provider '%s', retry after %dms", provider, retryDelayMs),
			Cause:   cause,
			Context: &ErrorContext{
				Operation: "LLM API Call",
				Component: "Rate Limit Classifier",
				Details: map[string]interface{}{
					"provider":       provider,
					"retry_delay_ms": retryDelayMs,
				},
				Suggestions: []string{
					"Wait for the indicated delay before retrying",
					"Reduce request frequency or upgrade the provider plan",
				},
				Recoverable: true,
			},
			ExitCode: ExitRateLimited,
		},
		Provider:     provider,
		RetryDelayMs: retryDelayMs,
	}
}

// AbortError marks a user-cancelled inference round. It carries whatever
// partial transcript existed at the moment of cancellation so that
// partially-completed agentic work is not lost.
type AbortError struct {
	*InferCoreError
	PartialText string
}

// NewAbortError creates a new abort error carrying the partial transcript
func NewAbortError(partialText string, cause error) *AbortError {
	return &AbortError{
		InferCoreError: &InferCoreError{
			Message:  "Inference aborted by caller",
			Cause:    cause,
			ExitCode: ExitPartialSuccess,
		},
		PartialText: partialText,
	}
}

// ParseError is raised when the model's final text fails structured-output
// parsing or schema validation. Never silently defaulted.
type ParseError struct {
	*InferCoreError
	RawText string      // The model's raw output
	Parsed  interface{} // The pre-repair parsed value, nil if parsing itself failed
	Detail  string      // Validation error detail
}

// NewParseError creates a new structured-output parse error
func NewParseError(rawText string, parsed interface{}, detail string, cause error) *ParseError {
	return &ParseError{
		InferCoreError: &InferCoreError{
			Message: "Structured output failed validation",
			Cause:   cause,
			Context: &ErrorContext{
				Operation: "Schema Validation",
				Component: "Output Validator",
				Details: map[string]interface{}{
					"detail": detail,
				},
				Suggestions: []string{
					"Check that the schema matches what the prompt asks for",
					"Try a model with stronger structured-output support",
				},
				Recoverable: true,
			},
			ExitCode: ExitValidationError,
		},
		RawText: rawText,
		Parsed:  parsed,
		Detail:  detail,
	}
}

// MaxDepthError is raised when a structured-output call starts at or beyond
// the recursion depth limit for its action key.
type MaxDepthError struct {
	*InferCoreError
	Depth     int
	ActionKey string
}

// NewMaxDepthError creates a new max depth exceeded error
func NewMaxDepthError(depth int, actionKey string) *MaxDepthError {
	return &MaxDepthError{
		InferCoreError: &InferCoreError{
			Message: fmt.Sprintf("Maximum tool-calling depth (%d) exceeded for action '%s'", depth, actionKey),
			Context: &ErrorContext{
				Operation: "Recursive Inference",
				Component: "Inference Loop",
				Details: map[string]interface{}{
					"depth":      depth,
					"action_key": actionKey,
				},
				Recoverable: false,
			},
			ExitCode: ExitInferenceError,
		},
		Depth:     depth,
		ActionKey: actionKey,
	}
}

// CompletionSignaledError is a well-defined abort for structured-output
// callers when a completion tool terminates the loop before final text.
type CompletionSignaledError struct {
	*InferCoreError
	ToolName string
	Summary  string
}

// NewCompletionSignaledError creates a completion-signaled abort
func NewCompletionSignaledError(toolName, summary string) *CompletionSignaledError {
	return &CompletionSignaledError{
		InferCoreError: &InferCoreError{
			Message:  fmt.Sprintf("Inference completed early via tool '%s'", toolName),
			ExitCode: ExitSuccess,
		},
		ToolName: toolName,
		Summary:  summary,
	}
}

// IsRateLimit reports whether err is (or wraps) a RateLimitError
func IsRateLimit(err error) bool {
	var rle *RateLimitError
	return stderrors.As(err, &rle)
}

// IsAbort reports whether err is (or wraps) an AbortError
func IsAbort(err error) bool {
	var ae *AbortError
	return stderrors.As(err, &ae)
}

// IsParseFailure reports whether err is (or wraps) a ParseError
func IsParseFailure(err error) bool {
	var pe *ParseError
	return stderrors.As(err, &pe)
}

// IsMaxDepth reports whether err is (or wraps) a MaxDepthError
func IsMaxDepth(err error) bool {
	var mde *MaxDepthError
	return stderrors.As(err, &mde)
}
