package testing

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func WriteSSE(w http.ResponseWriter, event, data string) {
	if event != "" {
		fmt.Fprintf(w, "event: %s\n", event)
	}
	fmt.Fprintf(w, "data: %s\n\n", data)
}

func WriteSSEDone(w http.ResponseWriter) {
	fmt.Fprintln(w, "data: [DONE]")
	fmt.Fprintln(w)
}

func SetSSEHeaders(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/event-stream")
}

func SetJSONHeaders(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
}

type MockServerOption func(*mockServerConfig)

type mockServerConfig struct {
	validateAuth bool
	authHeader   string
	authValue    string
}

func WithAuthValidation(header, value string) MockServerOption {
	return func(cfg *mockServerConfig) {
		cfg.validateAuth = true
		cfg.authHeader = header
		cfg.authValue = value
	}
}

func NewMockServer(t *testing.T, handler http.HandlerFunc, opts ...MockServerOption) *httptest.Server {
	t.Helper()
	cfg := &mockServerConfig{}
	for _, opt := range opts {
		opt(cfg)
	}

	wrappedHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if cfg.validateAuth {
			if r.Header.Get(cfg.authHeader) != cfg.authValue {
				t.Errorf("Expected %s header '%s', got '%s'", cfg.authHeader, cfg.authValue, r.Header.Get(cfg.authHeader))
			}
		}
		handler(w, r)
	})

	return httptest.NewServer(wrappedHandler)
}

func UnauthorizedHandler(errorBody string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(errorBody))
	}
}

func RateLimitHandler(errorBody string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(errorBody))
	}
}

func RateLimitHandlerWithRetryAfter(retryAfter, errorBody string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", retryAfter)
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(errorBody))
	}
}

func InternalErrorHandler(errorBody string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(errorBody))
	}
}

func OpenAIStreamChunk(content string, finishReason string) string {
	fr := "null"
	if finishReason != "" {
		fr = fmt.Sprintf(`"%s"`, finishReason)
	}
	deltaContent := ""
	if content != "" {
		deltaContent = fmt.Sprintf(`"content":"%s"`, content)
	}
	return fmt.Sprintf(`{"id":"chatcmpl-123","object":"chat.completion.chunk","created":1234567890,"model":"gpt-4","choices":[{"index":0,"delta":{%s},"finish_reason":%s}]}`, deltaContent, fr)
}

func OpenAIToolCallChunk(index int, id, name, args string) string {
	idPart := ""
	if id != "" {
		idPart = fmt.Sprintf(`"id":"%s","type":"function",`, id)
	}
	namePart := ""
	if name != "" {
		namePart = fmt.Sprintf(`"name":"%s",`, name)
	}
	return fmt.Sprintf(`{"id":"chatcmpl-123","object":"chat.completion.chunk","created":1234567890,"model":"gpt-4","choices":[{"index":0,"delta":{"tool_calls":[{"index":%d,%s"function":{%s"arguments":"%s"}}]},"finish_reason":null}]}`, index, idPart, namePart, strings.ReplaceAll(args, `"`, `\"`))
}

func OpenAIStreamHandler(content string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		SetSSEHeaders(w)
		WriteSSE(w, "", OpenAIStreamChunk("", ""))
		WriteSSE(w, "", OpenAIStreamChunk(content, ""))
		WriteSSE(w, "", OpenAIStreamChunk("", "stop"))
		WriteSSEDone(w)
	}
}

func OpenAICompletion(content string) string {
	return fmt.Sprintf(`{"id":"chatcmpl-123","object":"chat.completion","created":1234567890,"model":"gpt-4","choices":[{"index":0,"message":{"role":"assistant","content":"%s"},"finish_reason":"stop"}],"usage":{"prompt_tokens":10,"completion_tokens":5,"total_tokens":15}}`, content)
}

func OpenAIToolCallCompletion(id, name, args string) string {
	return fmt.Sprintf(`{"id":"chatcmpl-123","object":"chat.completion","created":1234567890,"model":"gpt-4","choices":[{"index":0,"message":{"role":"assistant","content":"","tool_calls":[{"id":"%s","type":"function","function":{"name":"%s","arguments":"%s"}}]},"finish_reason":"tool_calls"}],"usage":{"prompt_tokens":10,"completion_tokens":5,"total_tokens":15}}`, id, name, strings.ReplaceAll(args, `"`, `\"`))
}

func OpenAICompletionHandler(content string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		SetJSONHeaders(w)
		w.Write([]byte(OpenAICompletion(content)))
	}
}

func NativeCompletion(text string, inputTokens, outputTokens int) string {
	return fmt.Sprintf(`{"candidates":[{"content":{"parts":[{"text":%q}],"role":"model"},"finishReason":"STOP","index":0}],"usageMetadata":{"promptTokenCount":%d,"candidatesTokenCount":%d,"totalTokenCount":%d}}`, text, inputTokens, outputTokens, inputTokens+outputTokens)
}

func NativeCompletionHandler(text string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		SetJSONHeaders(w)
		w.Write([]byte(NativeCompletion(text, 10, 5)))
	}
}

type RetryHandler struct {
	callCount      int
	failUntil      int
	failStatusCode int
	failBody       string
	successHandler http.HandlerFunc
}

func NewRetryHandler(failUntil, failStatusCode int, failBody string, successHandler http.HandlerFunc) *RetryHandler {
	return &RetryHandler{
		failUntil:      failUntil,
		failStatusCode: failStatusCode,
		failBody:       failBody,
		successHandler: successHandler,
	}
}

func (h *RetryHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.callCount++
	if h.callCount <= h.failUntil {
		w.WriteHeader(h.failStatusCode)
		w.Write([]byte(h.failBody))
		return
	}
	h.successHandler(w, r)
}

func (h *RetryHandler) CallCount() int {
	return h.callCount
}
