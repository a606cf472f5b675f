package engine

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/user/infercore/internal/config"
	"github.com/user/infercore/internal/errors"
	"github.com/user/infercore/internal/llm"
	"github.com/user/infercore/internal/llmtypes"
	"github.com/user/infercore/internal/logging"
	"github.com/user/infercore/internal/schema"
	"github.com/user/infercore/internal/tools"
)

// maxDepthNotice is returned to free-text callers that hit the depth limit
const maxDepthNotice = "Maximum tool-calling depth reached; stopping here with the work completed so far."

// depthWarningNotice is injected once when the next round is the last one
const depthWarningNotice = "You are approaching the maximum number of tool-calling rounds. Finish the task now; call the completion tool if the work is done."

// Request is the caller boundary for one logical inference call
type Request struct {
	SystemPrompt    string
	Messages        []llmtypes.Message
	Provider        string
	Model           string
	Temperature     float64
	MaxTokens       int
	ReasoningEffort string

	// Tools available to the model for this call
	Tools []tools.Tool

	// OnChunk, when set, receives newly-appended text segments as they
	// stream, flushed at the configured chunk size or stream end.
	OnChunk func(chunk string)

	// APIKeys maps provider name to a runtime credential override
	APIKeys map[string]string
	// GatewayURLOverride forces a gateway base URL for this call
	GatewayURLOverride string

	// ActionKey selects the recursion depth limit for this kind of call
	ActionKey string

	// Context carries tool-calling state across recursive rounds.
	// Nil starts a fresh context at depth 0.
	Context *ToolCallContext

	// Schema, when set, makes the call structured: the final text is parsed,
	// repaired and validated against it. SchemaName names the root schema.
	Schema     map[string]interface{}
	SchemaName string
}

// Result is the outcome of one logical inference call
type Result struct {
	Text    string
	Object  interface{} // Validated value for structured calls
	Context *ToolCallContext
	Usage   llmtypes.TokenUsage
}

// Engine is the multi-provider recursive inference engine
type Engine struct {
	cfg      *config.EngineConfig
	router   *llm.Router
	factory  *llm.Factory
	executor *Executor
	logger   *logging.Logger
}

// NewEngine creates an inference engine
func NewEngine(cfg *config.EngineConfig, logger *logging.Logger) *Engine {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	retryClient := llm.NewRetryClientWithTimeout(cfg.Inference.GetTimeout(), &llm.RetryConfig{
		MaxAttempts:       cfg.Retry.GetMaxAttempts(),
		Multiplier:        cfg.Retry.GetMultiplier(),
		MaxWaitPerAttempt: cfg.Retry.GetMaxWaitPerAttempt(),
		MaxTotalWait:      cfg.Retry.GetMaxTotalWait(),
	})
	return &Engine{
		cfg:      cfg,
		router:   llm.NewRouter(cfg, logger),
		factory:  llm.NewFactory(retryClient),
		executor: NewExecutor(0, logger, nil),
		logger:   logger,
	}
}

// NewEngineWithDeps wires an engine from explicit collaborators, for tests
func NewEngineWithDeps(cfg *config.EngineConfig, router *llm.Router, factory *llm.Factory, executor *Executor, logger *logging.Logger) *Engine {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Engine{cfg: cfg, router: router, factory: factory, executor: executor, logger: logger}
}

// Infer runs a free-text inference call through the recursive loop
func (e *Engine) Infer(ctx context.Context, req Request) (*Result, error) {
	req.Schema = nil
	return e.run(ctx, req)
}

// InferStructured runs a structured-output call: the final text must parse
// and validate against req.Schema or the call fails with a parse error.
func (e *Engine) InferStructured(ctx context.Context, req Request) (*Result, error) {
	if req.Schema == nil {
		return nil, errors.NewConfigError("InferStructured requires a schema")
	}
	return e.run(ctx, req)
}

// run drives the recursive state machine. Each iteration is one state step
// over an immutable context value: call the provider, execute any tool calls,
// then either terminate or derive the next context and continue.
func (e *Engine) run(ctx context.Context, req Request) (*Result, error) {
	structured := req.Schema != nil

	registry, err := tools.NewRegistry(req.Tools)
	if err != nil {
		return nil, errors.WrapError(err, "Invalid tool set", errors.ExitInferenceError)
	}

	tcc := req.Context
	if tcc == nil {
		tcc = NewToolCallContext()
	}

	logger := e.logger.With(
		logging.String("request_id", uuid.NewString()),
		logging.String("provider", req.Provider),
		logging.String("model", req.Model),
	)

	maxDepth := e.cfg.Inference.MaxDepthFor(req.ActionKey)
	var usage llmtypes.TokenUsage

	for {
		// Entry guard: at or beyond the limit, never touch the network
		if tcc.Depth >= maxDepth {
			logger.Warn("Max tool-calling depth reached",
				logging.Int("depth", tcc.Depth),
				logging.String("action_key", req.ActionKey),
			)
			if structured {
				return nil, errors.NewMaxDepthError(tcc.Depth, req.ActionKey)
			}
			return &Result{Text: maxDepthNotice, Context: tcc, Usage: usage}, nil
		}

		// One round left: warn the model, once
		if tcc.Depth == maxDepth-1 && !tcc.DepthWarned {
			tcc = tcc.WithDepthWarning(depthWarningNotice)
		}

		resolved, err := e.router.Resolve(req.Provider, llm.ResolveOptions{
			APIKeys:            req.APIKeys,
			GatewayURLOverride: req.GatewayURLOverride,
		})
		if err != nil {
			return nil, err
		}
		client := e.factory.CreateClient(resolved, req.Model)

		sink := newChunkSink(req.OnChunk, e.cfg.Inference.GetStreamChunkSize())

		creq := llmtypes.CompletionRequest{
			SystemPrompt:    llm.NormalizeText(req.SystemPrompt),
			Messages:        llm.SanitizeMessages(req.Messages, tcc.Messages),
			MaxTokens:       req.MaxTokens,
			Temperature:     req.Temperature,
			ReasoningEffort: req.ReasoningEffort,
			OnTextDelta:     sink.OnDelta,
		}
		// Native providers receive tool intent in-band; declarations are
		// only serialized for the standard transport.
		if !resolved.Native && registry.Len() > 0 {
			creq.Tools = registry.Definitions()
		}

		logger.Info("Calling provider",
			logging.Int("depth", tcc.Depth),
			logging.Int("history_messages", len(creq.Messages)),
			logging.Int("tool_count", registry.Len()),
		)

		resp, err := client.GenerateCompletion(ctx, creq)
		sink.Flush()
		if err != nil {
			classified := llm.ClassifyTransportError(ctx, err, logger, resolved.DefaultRetryDelayMs)
			if errors.IsAbort(classified) {
				return nil, errors.NewAbortError(sink.Received(), err)
			}
			return nil, classified
		}

		usage.InputTokens += resp.Usage.InputTokens
		usage.OutputTokens += resp.Usage.OutputTokens
		usage.TotalTokens += resp.Usage.TotalTokens

		logger.Info("Provider response",
			logging.Int("input_tokens", resp.Usage.InputTokens),
			logging.Int("output_tokens", resp.Usage.OutputTokens),
			logging.Int("tool_calls", len(resp.ToolCalls)),
		)

		// Genuinely empty turns are not fatal
		if resp.Content == "" && len(resp.ToolCalls) == 0 {
			if structured {
				return nil, errors.NewParseError("", nil, "model returned an empty turn", nil)
			}
			return &Result{Text: "", Context: tcc, Usage: usage}, nil
		}

		if len(resp.ToolCalls) == 0 {
			return e.finish(resp.Content, tcc, usage, req)
		}

		// Execute the round's tool calls and fold results into the context
		results, aborted := e.executor.ExecuteBatch(ctx, registry, resp.ToolCalls)
		tcc = FoldResults(tcc, resp.Content, resp.ToolCalls, results)
		tcc = e.executor.DetectCompletion(tcc, registry, results)

		if aborted {
			// User cancellation mid-batch: terminal best-effort result, the
			// partially-completed work is preserved, nothing is re-thrown.
			logger.Warn("Tool execution aborted, returning partial transcript")
			return &Result{Text: resp.Content, Context: tcc, Usage: usage}, nil
		}

		if tcc.Completion.Signaled {
			if structured {
				return nil, errors.NewCompletionSignaledError(tcc.Completion.ToolName, tcc.Completion.Summary)
			}
			text := resp.Content
			if text == "" {
				text = tcc.Completion.Summary
			}
			return &Result{Text: text, Context: tcc, Usage: usage}, nil
		}

		if !anyUsableResult(registry, results) {
			logger.Warn("No usable tool result, terminating loop",
				logging.Int("depth", tcc.Depth),
			)
			if structured {
				return e.finish(resp.Content, tcc, usage, req)
			}
			return &Result{Text: resp.Content, Context: tcc, Usage: usage}, nil
		}

		tcc = tcc.WithNextDepth()
	}
}

// finish produces the terminal result: structured calls parse, repair and
// validate the final text; free-text calls return it verbatim.
func (e *Engine) finish(text string, tcc *ToolCallContext, usage llmtypes.TokenUsage, req Request) (*Result, error) {
	if req.Schema == nil {
		return &Result{Text: text, Context: tcc, Usage: usage}, nil
	}

	value, err := schema.ValidateAndRepair(text, req.Schema, req.SchemaName)
	if err != nil {
		return nil, err
	}
	return &Result{Text: text, Object: value, Context: tcc, Usage: usage}, nil
}

// anyUsableResult reports whether at least one tool produced an application
// result: executed without error and not a completion-only tool.
func anyUsableResult(registry *tools.Registry, results []llmtypes.ToolCallResult) bool {
	for _, res := range results {
		if res.Err != nil {
			continue
		}
		if tool := registry.Get(res.Name); tool != nil {
			if cs, ok := tool.(tools.CompletionSignaler); ok && cs.SignalsCompletion() {
				continue
			}
		}
		return true
	}
	return false
}

// chunkSink buffers streamed deltas and forwards only newly-appended text
// once the buffer reaches the configured size. Flush drains the remainder.
type chunkSink struct {
	cb        func(string)
	buf       strings.Builder
	received  strings.Builder
	threshold int
}

func newChunkSink(cb func(string), threshold int) *chunkSink {
	return &chunkSink{cb: cb, threshold: threshold}
}

// OnDelta is nil-safe to hand to transports even when no sink was requested
func (s *chunkSink) OnDelta(delta string) {
	s.received.WriteString(delta)
	if s.cb == nil {
		return
	}
	s.buf.WriteString(delta)
	if s.buf.Len() >= s.threshold {
		s.cb(s.buf.String())
		s.buf.Reset()
	}
}

// Flush forwards any buffered tail
func (s *chunkSink) Flush() {
	if s.cb != nil && s.buf.Len() > 0 {
		s.cb(s.buf.String())
		s.buf.Reset()
	}
}

// Received returns everything streamed so far, for partial transcripts
func (s *chunkSink) Received() string {
	return s.received.String()
}
