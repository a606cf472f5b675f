package llm

// Factory creates LLM clients from routing snapshots
type Factory struct {
	retryClient *RetryClient
}

// NewFactory creates a new LLM client factory
func NewFactory(retryClient *RetryClient) *Factory {
	return &Factory{retryClient: retryClient}
}

// CreateClient builds the transport chosen by the router: native for
// providers the capability table marks as such, chat completions otherwise.
func (f *Factory) CreateClient(resolved *Resolved, model string) LLMClient {
	if resolved.Native {
		return NewNativeClient(resolved, model, f.retryClient)
	}
	return NewStandardClient(resolved, model, f.retryClient)
}
