package engine

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/user/infercore/internal/config"
	"github.com/user/infercore/internal/errors"
	"github.com/user/infercore/internal/llmtypes"
	itesting "github.com/user/infercore/internal/testing"
	"github.com/user/infercore/internal/tools"
)

func engineConfigFor(baseURL string) *config.EngineConfig {
	return &config.EngineConfig{
		Providers: map[string]config.ProviderConfig{
			"openai": {APIKey: "sk-test-key-123", BaseURL: baseURL, Direct: true},
		},
		Inference: config.InferenceConfig{
			DefaultMaxDepth: 8,
		},
	}
}

func userRequest(prompt string) Request {
	return Request{
		Messages:  []llmtypes.Message{{Role: "user", Content: prompt}},
		Provider:  "openai",
		Model:     "gpt-4",
		MaxTokens: 100,
	}
}

func TestInferSimpleCompletion(t *testing.T) {
	server := itesting.NewMockServer(t, itesting.OpenAICompletionHandler("the answer"))
	defer server.Close()

	eng := NewEngine(engineConfigFor(server.URL), nil)
	result, err := eng.Infer(context.Background(), userRequest("question"))
	if err != nil {
		t.Fatalf("Infer failed: %v", err)
	}
	if result.Text != "the answer" {
		t.Errorf("Expected 'the answer', got '%s'", result.Text)
	}
	if result.Context == nil || result.Context.Depth != 0 {
		t.Errorf("Expected untouched context at depth 0, got %+v", result.Context)
	}
	if result.Usage.InputTokens != 10 {
		t.Errorf("Usage not accumulated: %+v", result.Usage)
	}
}

func TestInferDepthBoundaryNeverTouchesNetwork(t *testing.T) {
	server := itesting.NewMockServer(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("Network request issued at depth boundary")
	})
	defer server.Close()

	cfg := engineConfigFor(server.URL)
	cfg.Inference.DefaultMaxDepth = 3
	eng := NewEngine(cfg, nil)

	tcc := NewToolCallContext()
	tcc.Depth = 3

	req := userRequest("question")
	req.Context = tcc

	result, err := eng.Infer(context.Background(), req)
	if err != nil {
		t.Fatalf("Free-text depth boundary must not error: %v", err)
	}
	if !strings.Contains(result.Text, "depth") {
		t.Errorf("Expected terminal depth notice, got '%s'", result.Text)
	}
	if result.Context.Depth != 3 {
		t.Errorf("Context must be returned untouched, got depth %d", result.Context.Depth)
	}
}

func TestInferStructuredDepthBoundaryFails(t *testing.T) {
	cfg := engineConfigFor("http://unused.invalid")
	cfg.Inference.DefaultMaxDepth = 2
	eng := NewEngine(cfg, nil)

	tcc := NewToolCallContext()
	tcc.Depth = 2

	req := userRequest("question")
	req.Context = tcc
	req.Schema = map[string]interface{}{"type": "object"}

	_, err := eng.InferStructured(context.Background(), req)
	if !errors.IsMaxDepth(err) {
		t.Errorf("Expected max depth error, got %v", err)
	}
}

func TestInferToolCallRoundTrip(t *testing.T) {
	var round int32
	server := itesting.NewMockServer(t, func(w http.ResponseWriter, r *http.Request) {
		itesting.SetJSONHeaders(w)
		if atomic.AddInt32(&round, 1) == 1 {
			w.Write([]byte(itesting.OpenAIToolCallCompletion("call_1", "lookup", `{"key":"k"}`)))
			return
		}
		w.Write([]byte(itesting.OpenAICompletion("found it")))
	})
	defer server.Close()

	eng := NewEngine(engineConfigFor(server.URL), nil)

	req := userRequest("look up k")
	req.Tools = []tools.Tool{
		&stubTool{name: "lookup", execute: func(ctx context.Context, params map[string]interface{}) (interface{}, error) {
			if params["key"] != "k" {
				t.Errorf("Tool received wrong arguments: %v", params)
			}
			return map[string]interface{}{"value": 42}, nil
		}},
	}

	result, err := eng.Infer(context.Background(), req)
	if err != nil {
		t.Fatalf("Infer failed: %v", err)
	}
	if result.Text != "found it" {
		t.Errorf("Expected final text 'found it', got '%s'", result.Text)
	}
	if atomic.LoadInt32(&round) != 2 {
		t.Errorf("Expected 2 provider rounds, got %d", round)
	}
	if result.Context.Depth != 1 {
		t.Errorf("Expected depth 1 after one tool round, got %d", result.Context.Depth)
	}
	// Context carries the assistant tool_calls message and the tool result
	if len(result.Context.Messages) != 2 {
		t.Fatalf("Expected 2 context messages, got %d", len(result.Context.Messages))
	}
	if result.Context.Messages[1].Role != "tool" || result.Context.Messages[1].ToolCallID != "call_1" {
		t.Errorf("Unexpected tool message: %+v", result.Context.Messages[1])
	}
}

func TestInferCompletionToolEndsLoop(t *testing.T) {
	server := itesting.NewMockServer(t, func(w http.ResponseWriter, r *http.Request) {
		itesting.SetJSONHeaders(w)
		w.Write([]byte(itesting.OpenAIToolCallCompletion("call_1", "complete", `{"summary":"all done"}`)))
	})
	defer server.Close()

	eng := NewEngine(engineConfigFor(server.URL), nil)

	req := userRequest("finish the task")
	req.Tools = []tools.Tool{tools.NewCompleteTool()}

	result, err := eng.Infer(context.Background(), req)
	if err != nil {
		t.Fatalf("Infer failed: %v", err)
	}
	if result.Text != "all done" {
		t.Errorf("Expected completion summary, got '%s'", result.Text)
	}
	if !result.Context.Completion.Signaled {
		t.Errorf("Expected completion signal set")
	}
}

func TestInferStructuredCompletionSignalIsTypedAbort(t *testing.T) {
	server := itesting.NewMockServer(t, func(w http.ResponseWriter, r *http.Request) {
		itesting.SetJSONHeaders(w)
		w.Write([]byte(itesting.OpenAIToolCallCompletion("call_1", "complete", `{"summary":"all done"}`)))
	})
	defer server.Close()

	eng := NewEngine(engineConfigFor(server.URL), nil)

	req := userRequest("finish the task")
	req.Tools = []tools.Tool{tools.NewCompleteTool()}
	req.Schema = map[string]interface{}{"type": "object"}

	_, err := eng.InferStructured(context.Background(), req)
	var cse *errors.CompletionSignaledError
	if !stderrors.As(err, &cse) {
		t.Fatalf("Expected CompletionSignaledError, got %v", err)
	}
	if cse.Summary != "all done" {
		t.Errorf("Expected summary carried on the abort, got '%s'", cse.Summary)
	}
}

func TestInferStructuredValidatesOutput(t *testing.T) {
	server := itesting.NewMockServer(t, itesting.OpenAICompletionHandler(`{\"title\":\"hello\"}`))
	defer server.Close()

	eng := NewEngine(engineConfigFor(server.URL), nil)

	req := userRequest("give me a title")
	req.Schema = map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"title": map[string]interface{}{"type": "string"},
		},
		"required": []interface{}{"title"},
	}

	result, err := eng.InferStructured(context.Background(), req)
	if err != nil {
		t.Fatalf("InferStructured failed: %v", err)
	}
	obj, ok := result.Object.(map[string]interface{})
	if !ok || obj["title"] != "hello" {
		t.Errorf("Unexpected validated object: %+v", result.Object)
	}
}

func TestInferStructuredInvalidOutputRaisesParseFailure(t *testing.T) {
	server := itesting.NewMockServer(t, itesting.OpenAICompletionHandler(`{\"title\":7}`))
	defer server.Close()

	eng := NewEngine(engineConfigFor(server.URL), nil)

	req := userRequest("give me a title")
	req.Schema = map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"title": map[string]interface{}{"type": "string"},
		},
		"required": []interface{}{"title"},
	}

	_, err := eng.InferStructured(context.Background(), req)
	if !errors.IsParseFailure(err) {
		t.Errorf("Expected parse failure, got %v", err)
	}
}

func TestInferStreamingChunkSink(t *testing.T) {
	server := itesting.NewMockServer(t, itesting.OpenAIStreamHandler("streamed response text"))
	defer server.Close()

	cfg := engineConfigFor(server.URL)
	cfg.Inference.StreamChunkSize = 4
	eng := NewEngine(cfg, nil)

	var chunks []string
	req := userRequest("stream it")
	req.OnChunk = func(chunk string) { chunks = append(chunks, chunk) }

	result, err := eng.Infer(context.Background(), req)
	if err != nil {
		t.Fatalf("Infer failed: %v", err)
	}
	if strings.Join(chunks, "") != "streamed response text" {
		t.Errorf("Chunks must concatenate to the full text, got %q", strings.Join(chunks, ""))
	}
	if result.Text != "streamed response text" {
		t.Errorf("Unexpected result text: %q", result.Text)
	}
}

func TestInferRateLimitPropagates(t *testing.T) {
	server := itesting.NewMockServer(t, itesting.RateLimitHandlerWithRetryAfter("3", ""))
	defer server.Close()

	eng := NewEngine(engineConfigFor(server.URL), nil)

	_, err := eng.Infer(context.Background(), userRequest("question"))
	if !errors.IsRateLimit(err) {
		t.Fatalf("Expected rate limit error, got %v", err)
	}
	var rle *errors.RateLimitError
	if stderrors.As(err, &rle) && rle.RetryDelayMs != 3000 {
		t.Errorf("Expected 3000ms delay, got %d", rle.RetryDelayMs)
	}
}

func TestInferEmptyTurnIsNotFatal(t *testing.T) {
	server := itesting.NewMockServer(t, itesting.OpenAICompletionHandler(""))
	defer server.Close()

	eng := NewEngine(engineConfigFor(server.URL), nil)

	result, err := eng.Infer(context.Background(), userRequest("question"))
	if err != nil {
		t.Fatalf("Empty turn must not be fatal: %v", err)
	}
	if result.Text != "" {
		t.Errorf("Expected empty text, got %q", result.Text)
	}
}

func TestInferDepthWarningInjectedOnLastRound(t *testing.T) {
	var captured struct {
		Messages []struct {
			Role    string `json:"role"`
			Content any    `json:"content"`
		} `json:"messages"`
	}
	server := itesting.NewMockServer(t, func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &captured); err != nil {
			t.Errorf("Failed to decode request: %v", err)
		}
		itesting.SetJSONHeaders(w)
		w.Write([]byte(itesting.OpenAICompletion("done")))
	})
	defer server.Close()

	cfg := engineConfigFor(server.URL)
	cfg.Inference.DefaultMaxDepth = 1
	eng := NewEngine(cfg, nil)

	_, err := eng.Infer(context.Background(), userRequest("question"))
	if err != nil {
		t.Fatalf("Infer failed: %v", err)
	}

	warned := false
	for _, msg := range captured.Messages {
		if msg.Role == "system" {
			if s, ok := msg.Content.(string); ok && strings.Contains(s, "maximum number of tool-calling rounds") {
				warned = true
			}
		}
	}
	if !warned {
		t.Errorf("Expected depth warning in transmitted messages: %+v", captured.Messages)
	}
}

func TestInferStructuredRequiresSchema(t *testing.T) {
	eng := NewEngine(engineConfigFor("http://unused.invalid"), nil)
	_, err := eng.InferStructured(context.Background(), userRequest("question"))
	if err == nil {
		t.Fatal("Expected error for missing schema")
	}
}

