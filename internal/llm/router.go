package llm

import (
	"net/url"
	"os"
	"strings"

	"github.com/user/infercore/internal/config"
	"github.com/user/infercore/internal/errors"
	"github.com/user/infercore/internal/logging"
)

// minAPIKeyLength rejects placeholder values passed as runtime overrides
const minAPIKeyLength = 8

// defaultGatewayBaseURL is used when no gateway is configured and the
// configured override turns out to be malformed.
const defaultGatewayBaseURL = "https://gateway.infercore.dev/v1"

// genericGatewaySegment routes unknown providers through the gateway's
// OpenAI-compatible endpoint.
const genericGatewaySegment = "compat"

// ProviderCapabilities describes how a provider can be reached
type ProviderCapabilities struct {
	RequiresNative      bool   // Needs the native transport instead of chat completions
	SupportsStreaming   bool   // Standard transport can stream SSE deltas
	ForbidsGateway      bool   // Provider terms forbid proxying through the shared gateway
	DirectBaseURL       string // Provider's own API endpoint
	EnvVar              string // Environment variable carrying the provider credential
	DefaultRetryDelayMs int64  // Fallback retry delay for 429s without any hint
}

// providerTable is the static capability matrix. Unknown providers default to
// the standard transport through the gateway's compatibility segment.
var providerTable = map[string]ProviderCapabilities{
	"openai": {
		SupportsStreaming:   true,
		DirectBaseURL:       "https://api.openai.com/v1",
		EnvVar:              "OPENAI_API_KEY",
		DefaultRetryDelayMs: 2000,
	},
	"anthropic": {
		SupportsStreaming:   true,
		DirectBaseURL:       "https://api.anthropic.com/v1",
		EnvVar:              "ANTHROPIC_API_KEY",
		DefaultRetryDelayMs: 2000,
	},
	"google-ai-studio": {
		RequiresNative:      true,
		DirectBaseURL:       "https://generativelanguage.googleapis.com/v1beta",
		EnvVar:              "GOOGLE_AI_STUDIO_API_KEY",
		DefaultRetryDelayMs: 5000,
	},
	"groq": {
		SupportsStreaming:   true,
		DirectBaseURL:       "https://api.groq.com/openai/v1",
		EnvVar:              "GROQ_API_KEY",
		DefaultRetryDelayMs: 2000,
	},
	"mistral": {
		SupportsStreaming:   true,
		DirectBaseURL:       "https://api.mistral.ai/v1",
		EnvVar:              "MISTRAL_API_KEY",
		DefaultRetryDelayMs: 2000,
	},
	"cerebras": {
		SupportsStreaming:   true,
		ForbidsGateway:      true,
		DirectBaseURL:       "https://api.cerebras.ai/v1",
		EnvVar:              "CEREBRAS_API_KEY",
		DefaultRetryDelayMs: 3000,
	},
	"openrouter": {
		SupportsStreaming:   true,
		DirectBaseURL:       "https://openrouter.ai/api/v1",
		EnvVar:              "OPENROUTER_API_KEY",
		DefaultRetryDelayMs: 2000,
	},
}

// Capabilities returns the capability entry for a provider. Unknown providers
// get a zero entry: standard transport, no streaming guarantee, no direct URL.
func Capabilities(provider string) ProviderCapabilities {
	return providerTable[provider]
}

// RequiresNativeInference reports whether the provider needs the native
// (non-chat-completion) transport.
func RequiresNativeInference(provider string) bool {
	return providerTable[provider].RequiresNative
}

// Resolved is an immutable per-call routing snapshot
type Resolved struct {
	Provider            string
	BaseURL             string
	APIKey              string
	Headers             map[string]string // Extra headers (billing attribution, BYOK-over-gateway)
	Native              bool
	DefaultRetryDelayMs int64
}

// ResolveOptions carries per-request routing inputs
type ResolveOptions struct {
	// APIKeys maps provider name to a runtime credential override
	APIKeys map[string]string
	// GatewayURLOverride forces a specific gateway base URL for this call
	GatewayURLOverride string
}

// Router resolves the transport endpoint and credentials for one call.
// It reads process-wide configuration but produces an immutable result;
// nothing here writes shared state.
type Router struct {
	cfg    *config.EngineConfig
	logger *logging.Logger
}

// NewRouter creates a provider router
func NewRouter(cfg *config.EngineConfig, logger *logging.Logger) *Router {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Router{cfg: cfg, logger: logger}
}

// Resolve returns the effective base URL, credential and extra headers for a
// provider. Credential order: runtime override, configured/env provider key,
// gateway token — except providers that forbid gateway proxying, which fail
// fast with a configuration error instead of silently falling back.
func (r *Router) Resolve(provider string, opts ResolveOptions) (*Resolved, error) {
	caps := Capabilities(provider)

	apiKey, byok := r.resolveCredential(provider, caps, opts)
	gatewayToken := r.cfg.Gateway.Token

	if apiKey == "" {
		if caps.ForbidsGateway {
			return nil, errors.NewGatewayForbiddenError(provider, caps.EnvVar)
		}
		if gatewayToken == "" {
			return nil, errors.NewMissingCredentialError(provider, caps.EnvVar)
		}
		apiKey = gatewayToken
	}

	baseURL, viaGateway := r.resolveBaseURL(provider, caps, opts)

	headers := map[string]string{}
	if byok && viaGateway && gatewayToken != "" {
		// Bring-your-own-key through the shared gateway: the provider key
		// goes in the primary authorization slot, the gateway token rides in
		// a secondary header so the call is still attributed for billing.
		headers["X-Gateway-Authorization"] = "Bearer " + gatewayToken
	}

	return &Resolved{
		Provider:            provider,
		BaseURL:             baseURL,
		APIKey:              apiKey,
		Headers:             headers,
		Native:              caps.RequiresNative,
		DefaultRetryDelayMs: caps.DefaultRetryDelayMs,
	}, nil
}

// resolveCredential returns the provider credential and whether it is a
// caller-owned key (as opposed to the shared gateway token, handled above).
func (r *Router) resolveCredential(provider string, caps ProviderCapabilities, opts ResolveOptions) (string, bool) {
	if key, ok := opts.APIKeys[provider]; ok {
		if isUsableAPIKey(key) {
			return key, true
		}
		r.logger.Warn("Ignoring placeholder API key override",
			logging.String("provider", provider),
		)
	}

	if pc, ok := r.cfg.Providers[provider]; ok && isUsableAPIKey(pc.APIKey) {
		return pc.APIKey, true
	}

	if caps.EnvVar != "" {
		if key := os.Getenv(caps.EnvVar); isUsableAPIKey(key) {
			return key, true
		}
	}

	return "", false
}

// isUsableAPIKey rejects empty and placeholder credential values
func isUsableAPIKey(key string) bool {
	switch strings.ToLower(strings.TrimSpace(key)) {
	case "", "default", "none":
		return false
	}
	return len(key) >= minAPIKeyLength
}

// resolveBaseURL picks the effective endpoint and reports whether the call
// routes through the shared gateway.
func (r *Router) resolveBaseURL(provider string, caps ProviderCapabilities, opts ResolveOptions) (string, bool) {
	segment := provider
	if _, known := providerTable[provider]; !known {
		segment = genericGatewaySegment
	}

	// Explicit per-call gateway override wins
	if opts.GatewayURLOverride != "" {
		if base, ok := validGatewayURL(opts.GatewayURLOverride); ok {
			return base + "/" + segment, true
		}
		// A malformed override is never fatal: log and bypass it
		r.logger.Warn("Malformed gateway URL override, falling back",
			logging.String("url", opts.GatewayURLOverride),
			logging.String("provider", provider),
		)
	}

	pc := r.cfg.Providers[provider]

	// Direct routing: provider endpoint, no gateway involvement
	if pc.Direct || caps.ForbidsGateway {
		if pc.BaseURL != "" {
			return strings.TrimRight(pc.BaseURL, "/"), false
		}
		if caps.DirectBaseURL != "" {
			return caps.DirectBaseURL, false
		}
	}

	// Gateway from configuration, validated; malformed values are bypassed
	if r.cfg.Gateway.URL != "" {
		if base, ok := validGatewayURL(r.cfg.Gateway.URL); ok {
			return base + "/" + segment, true
		}
		r.logger.Warn("Malformed configured gateway URL, using default",
			logging.String("url", r.cfg.Gateway.URL),
		)
	}

	// No usable gateway configuration: default gateway construction. The
	// resolved credential may be the shared gateway token, which only the
	// gateway can authenticate, so the provider's own endpoint is not a
	// substitute here.
	return defaultGatewayBaseURL + "/" + segment, true
}

// validGatewayURL checks that a gateway URL is well-formed http(s)
func validGatewayURL(raw string) (string, bool) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", false
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", false
	}
	return strings.TrimRight(u.String(), "/"), true
}
