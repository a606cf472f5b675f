package engine

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/user/infercore/internal/llmtypes"
	"github.com/user/infercore/internal/logging"
	"github.com/user/infercore/internal/tools"
	"github.com/user/infercore/internal/worker_pool"
)

// Result size guard before tool output is folded back into context
const (
	maxToolResponseTokens = 15000
	tokenEstimateRatio    = 4
)

// CompletionDetector inspects one tool execution result and decides whether
// it signals completion of the whole inference. Returns the summary to carry.
type CompletionDetector func(tool tools.Tool, res llmtypes.ToolCallResult) (summary string, ok bool)

// DefaultCompletionDetector recognizes tools that declare themselves as
// completion signalers and executed without error.
func DefaultCompletionDetector(tool tools.Tool, res llmtypes.ToolCallResult) (string, bool) {
	if res.Err != nil {
		return "", false
	}
	cs, ok := tool.(tools.CompletionSignaler)
	if !ok || !cs.SignalsCompletion() {
		return "", false
	}
	if m, ok := res.Result.(map[string]interface{}); ok {
		if s, ok := m["summary"].(string); ok {
			return s, true
		}
	}
	return "", true
}

// Executor runs accumulated tool calls against the registered tool set,
// honoring declared dependencies and running independent calls concurrently.
type Executor struct {
	pool     *worker_pool.WorkerPool
	logger   *logging.Logger
	detector CompletionDetector
}

// NewExecutor creates a tool executor. maxWorkers <= 0 uses the CPU count.
func NewExecutor(maxWorkers int, logger *logging.Logger, detector CompletionDetector) *Executor {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	if detector == nil {
		detector = DefaultCompletionDetector
	}
	return &Executor{
		pool:     worker_pool.NewWorkerPool(maxWorkers),
		logger:   logger,
		detector: detector,
	}
}

// ExecuteBatch runs the requested calls. Independent calls within one
// dependency wave run concurrently; a call depending on another tool's result
// only starts after that dependency has produced a result. Individual
// failures (unknown tool, malformed arguments, execution error) become
// result-level errors so one bad call cannot abort its siblings.
//
// aborted is true when the caller's context was cancelled mid-batch; the
// returned results then cover whatever completed, in request order.
func (e *Executor) ExecuteBatch(ctx context.Context, registry *tools.Registry, calls []llmtypes.ToolCallRequest) (results []llmtypes.ToolCallResult, aborted bool) {
	results = make([]llmtypes.ToolCallResult, 0, len(calls))

	type pendingCall struct {
		call llmtypes.ToolCallRequest
		tool tools.Tool
	}

	pending := make([]pendingCall, 0, len(calls))
	produced := make(map[string]bool) // tool name -> a result exists

	for _, call := range calls {
		tool := registry.Get(call.Name)
		if tool == nil {
			e.logger.Warn("Tool not found", logging.String("tool", call.Name))
			results = append(results, llmtypes.ToolCallResult{
				ID:   call.ID,
				Name: call.Name,
				Err:  fmt.Errorf("tool '%s' not found", call.Name),
			})
			produced[call.Name] = true
			continue
		}
		pending = append(pending, pendingCall{call: call, tool: tool})
	}

	for len(pending) > 0 {
		if ctx.Err() != nil {
			return results, true
		}

		// Select the wave of calls whose dependencies are satisfied
		ready := make([]pendingCall, 0, len(pending))
		blocked := pending[:0]
		for _, pc := range pending {
			if dependenciesMet(pc.tool, produced) {
				ready = append(ready, pc)
			} else {
				blocked = append(blocked, pc)
			}
		}

		if len(ready) == 0 {
			// Unsatisfiable dependencies (missing or cyclic): fail them all
			// at result level rather than spinning.
			for _, pc := range blocked {
				results = append(results, llmtypes.ToolCallResult{
					ID:   pc.call.ID,
					Name: pc.call.Name,
					Err:  fmt.Errorf("tool '%s' has unsatisfied dependencies %v", pc.call.Name, pc.tool.Dependencies()),
				})
			}
			break
		}

		tasks := make([]worker_pool.Task, len(ready))
		for i, pc := range ready {
			pc := pc
			tasks[i] = func(taskCtx context.Context) (interface{}, error) {
				return e.executeOne(taskCtx, pc.tool, pc.call)
			}
		}

		waveResults := e.pool.Run(ctx, tasks)
		cancelled := false
		for i, wr := range waveResults {
			call := ready[i].call
			if wr.Error != nil && ctx.Err() != nil {
				// User-initiated cancellation: capture what completed,
				// stop executing further pending calls.
				cancelled = true
				continue
			}
			results = append(results, llmtypes.ToolCallResult{
				ID:     call.ID,
				Name:   call.Name,
				Result: wr.Value,
				Err:    wr.Error,
			})
			produced[call.Name] = true
		}

		if cancelled {
			return results, true
		}
		pending = blocked
	}

	return results, false
}

// executeOne parses the argument payload and invokes the tool
func (e *Executor) executeOne(ctx context.Context, tool tools.Tool, call llmtypes.ToolCallRequest) (interface{}, error) {
	params := map[string]interface{}{}
	if call.Arguments != "" {
		if err := json.Unmarshal([]byte(call.Arguments), &params); err != nil {
			return nil, fmt.Errorf("malformed tool arguments: %w", err)
		}
	}

	e.logger.Info("Executing tool",
		logging.String("tool", tool.Name()),
		logging.String("call_id", call.ID),
	)

	return tool.Execute(ctx, params)
}

// DetectCompletion applies the pluggable detector to the result set and sets
// the context's completion signal at most once: the first recognized
// completion tool in list order wins, later ones never overwrite it.
func (e *Executor) DetectCompletion(tcc *ToolCallContext, registry *tools.Registry, results []llmtypes.ToolCallResult) *ToolCallContext {
	if tcc.Completion.Signaled {
		return tcc
	}
	for _, res := range results {
		tool := registry.Get(res.Name)
		if tool == nil {
			continue
		}
		if summary, ok := e.detector(tool, res); ok {
			return tcc.WithCompletion(res.Name, summary)
		}
	}
	return tcc
}

// FoldResults derives the next context: the originating assistant message
// (with the full tool_calls it issued) followed by one tool message per
// executed result, in request order.
func FoldResults(tcc *ToolCallContext, assistantText string, calls []llmtypes.ToolCallRequest, results []llmtypes.ToolCallResult) *ToolCallContext {
	msgs := make([]llmtypes.Message, 0, len(results)+1)
	msgs = append(msgs, llmtypes.Message{
		Role:      "assistant",
		Content:   assistantText,
		ToolCalls: calls,
	})

	for _, res := range results {
		msgs = append(msgs, llmtypes.Message{
			Role:       "tool",
			Name:       res.Name,
			ToolCallID: res.ID,
			Content:    formatToolResult(res),
		})
	}

	return tcc.WithMessages(msgs...)
}

// dependenciesMet reports whether every declared dependency has a result
func dependenciesMet(tool tools.Tool, produced map[string]bool) bool {
	for _, dep := range tool.Dependencies() {
		if !produced[dep] {
			return false
		}
	}
	return true
}

// formatToolResult serializes one result for the conversation history.
// A void acknowledgement becomes a literal "done" marker.
func formatToolResult(res llmtypes.ToolCallResult) string {
	if res.Err != nil {
		return fmt.Sprintf("Error: %v", res.Err)
	}
	if res.Result == nil {
		return "done"
	}
	jsonBytes, err := json.Marshal(res.Result)
	if err != nil {
		return fmt.Sprintf("%v", res.Result)
	}
	return truncateToolResponse(string(jsonBytes), maxToolResponseTokens)
}

// truncateToolResponse truncates a tool response if it exceeds the limit
func truncateToolResponse(response string, maxTokens int) string {
	maxChars := maxTokens * tokenEstimateRatio
	if len(response) <= maxChars {
		return response
	}

	return response[:maxChars] + "\n\n[TRUNCATED - tool response exceeded " + fmt.Sprintf("%d", maxTokens) + " token limit]"
}
