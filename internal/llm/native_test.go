package llm

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"testing"

	itesting "github.com/user/infercore/internal/testing"
)

func nativeClientFor(url string) *NativeClient {
	return NewNativeClient(&Resolved{
		Provider: "google-ai-studio",
		BaseURL:  url,
		APIKey:   "AIza-test-key",
		Native:   true,
	}, "gemini-pro", fastRetryClient())
}

func TestNativeClientCompletion(t *testing.T) {
	server := itesting.NewMockServer(t, itesting.NativeCompletionHandler("native says hi"),
		itesting.WithAuthValidation("x-goog-api-key", "AIza-test-key"))
	defer server.Close()

	client := nativeClientFor(server.URL)
	resp, err := client.GenerateCompletion(context.Background(), CompletionRequest{
		Messages: []Message{{Role: "user", Content: "Hi"}},
	})
	if err != nil {
		t.Fatalf("GenerateCompletion failed: %v", err)
	}
	if resp.Content != "native says hi" {
		t.Errorf("Expected 'native says hi', got '%s'", resp.Content)
	}
	if resp.Usage.InputTokens != 10 || resp.Usage.OutputTokens != 5 {
		t.Errorf("Unexpected usage: %+v", resp.Usage)
	}
	if client.SupportsStreaming() {
		t.Errorf("Native transport must not report streaming support")
	}
}

func TestNativeClientModelPathAndRoles(t *testing.T) {
	var captured nativeRequest
	var path string
	server := itesting.NewMockServer(t, func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &captured); err != nil {
			t.Errorf("Failed to decode request body: %v", err)
		}
		itesting.SetJSONHeaders(w)
		w.Write([]byte(itesting.NativeCompletion("ok", 1, 1)))
	})
	defer server.Close()

	client := nativeClientFor(server.URL)
	_, err := client.GenerateCompletion(context.Background(), CompletionRequest{
		SystemPrompt: "be brief",
		Messages: []Message{
			{Role: "user", Content: "question"},
			{Role: "assistant", Content: "answer"},
			{Role: "tool", Name: "search", Content: `{"hits":3}`},
		},
	})
	if err != nil {
		t.Fatalf("GenerateCompletion failed: %v", err)
	}

	if !strings.HasSuffix(path, "/models/gemini-pro:generateContent") {
		t.Errorf("Unexpected request path: %s", path)
	}
	if captured.SystemInstruction == nil || captured.SystemInstruction.Parts[0].Text != "be brief" {
		t.Errorf("System instruction not carried: %+v", captured.SystemInstruction)
	}
	if len(captured.Contents) != 3 {
		t.Fatalf("Expected 3 contents, got %d", len(captured.Contents))
	}
	if captured.Contents[1].Role != "model" {
		t.Errorf("Assistant role must map to 'model', got '%s'", captured.Contents[1].Role)
	}
	toolText := captured.Contents[2].Parts[0].Text
	if !strings.HasPrefix(toolText, "Result of search:") {
		t.Errorf("Tool result not carried in-band: %q", toolText)
	}
}

func TestNativeClientExtractsActionEnvelope(t *testing.T) {
	tests := []struct {
		name string
		text string
	}{
		{
			name: "plain envelope",
			text: `{"action":{"name":"search","arguments":{"q":"x"}}}`,
		},
		{
			name: "fenced envelope",
			text: "```json\n{\"action\":{\"name\":\"search\",\"arguments\":{\"q\":\"x\"}}}\n```",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := itesting.NewMockServer(t, itesting.NativeCompletionHandler(tt.text))
			defer server.Close()

			client := nativeClientFor(server.URL)
			resp, err := client.GenerateCompletion(context.Background(), CompletionRequest{
				Messages: []Message{{Role: "user", Content: "find x"}},
			})
			if err != nil {
				t.Fatalf("GenerateCompletion failed: %v", err)
			}
			if len(resp.ToolCalls) != 1 {
				t.Fatalf("Expected 1 tool call, got %d", len(resp.ToolCalls))
			}
			call := resp.ToolCalls[0]
			if call.Name != "search" {
				t.Errorf("Expected action name 'search', got '%s'", call.Name)
			}
			if call.Arguments != `{"q":"x"}` {
				t.Errorf("Unexpected action arguments: %s", call.Arguments)
			}
			if call.ID == "" {
				t.Errorf("Expected a synthesized call id")
			}
		})
	}
}

func TestNativeClientPlainTextHasNoToolCalls(t *testing.T) {
	server := itesting.NewMockServer(t, itesting.NativeCompletionHandler("just prose, no envelope"))
	defer server.Close()

	client := nativeClientFor(server.URL)
	resp, err := client.GenerateCompletion(context.Background(), CompletionRequest{
		Messages: []Message{{Role: "user", Content: "Hi"}},
	})
	if err != nil {
		t.Fatalf("GenerateCompletion failed: %v", err)
	}
	if len(resp.ToolCalls) != 0 {
		t.Errorf("Expected no tool calls, got %+v", resp.ToolCalls)
	}
}

func TestNativeClientRateLimitSurfacesTransportError(t *testing.T) {
	server := itesting.NewMockServer(t, itesting.RateLimitHandler(`{"error":{"code":429,"message":"quota","status":"RESOURCE_EXHAUSTED"}}`))
	defer server.Close()

	client := nativeClientFor(server.URL)
	_, err := client.GenerateCompletion(context.Background(), CompletionRequest{
		Messages: []Message{{Role: "user", Content: "Hi"}},
	})
	if err == nil {
		t.Fatal("Expected error for 429 response")
	}
	te, ok := err.(*TransportError)
	if !ok {
		t.Fatalf("Expected TransportError, got %T: %v", err, err)
	}
	if te.StatusCode != 429 || te.Provider != "google-ai-studio" {
		t.Errorf("Unexpected transport error: %+v", te)
	}
}
