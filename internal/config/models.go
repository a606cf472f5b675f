package config

import (
	"time"
)

// ProviderConfig holds per-provider overrides
type ProviderConfig struct {
	APIKey  string `mapstructure:"api_key"`
	BaseURL string `mapstructure:"base_url"` // Optional direct endpoint override
	Direct  bool   `mapstructure:"direct"`   // Route directly instead of through the gateway
}

// GatewayConfig holds shared inference gateway configuration
type GatewayConfig struct {
	URL   string `mapstructure:"url"`   // Gateway base URL; provider name is appended as a path segment
	Token string `mapstructure:"token"` // Shared gateway token, usable where provider terms allow it
}

// RetryConfig holds HTTP retry configuration
type RetryConfig struct {
	MaxAttempts       int `mapstructure:"max_attempts"`         // Default: 5
	Multiplier        int `mapstructure:"multiplier"`           // Default: 1
	MaxWaitPerAttempt int `mapstructure:"max_wait_per_attempt"` // Default: 60 seconds
	MaxTotalWait      int `mapstructure:"max_total_wait"`       // Default: 300 seconds
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	LogDir       string `mapstructure:"log_dir"`
	FileLevel    string `mapstructure:"file_level"`    // debug, info, warn, error
	ConsoleLevel string `mapstructure:"console_level"` // debug, info, warn, error
}

// InferenceConfig holds defaults for the recursive inference loop
type InferenceConfig struct {
	MaxTokens       int            `mapstructure:"max_tokens"`
	Temperature     float64        `mapstructure:"temperature"`
	Timeout         int            `mapstructure:"timeout"` // Seconds; 0 means default
	DefaultMaxDepth int            `mapstructure:"default_max_depth"`
	MaxDepth        map[string]int `mapstructure:"max_depth"` // Per action key
	StreamChunkSize int            `mapstructure:"stream_chunk_size"`
}

// EngineConfig is the top-level configuration loaded from .infercore/config.yaml
type EngineConfig struct {
	Providers map[string]ProviderConfig `mapstructure:"providers"`
	Gateway   GatewayConfig             `mapstructure:"gateway"`
	Retry     RetryConfig               `mapstructure:"retry"`
	Inference InferenceConfig           `mapstructure:"inference"`
	Logging   LoggingConfig             `mapstructure:"logging"`
}

// GetTimeout returns the inference timeout as a time.Duration
func (c *InferenceConfig) GetTimeout() time.Duration {
	if c.Timeout == 0 {
		return 180 * time.Second // Default timeout
	}
	return time.Duration(c.Timeout) * time.Second
}

// GetMaxTokens returns the max tokens with a sane default
func (c *InferenceConfig) GetMaxTokens() int {
	if c.MaxTokens == 0 {
		return 8192
	}
	return c.MaxTokens
}

// GetStreamChunkSize returns the streaming flush threshold in bytes
func (c *InferenceConfig) GetStreamChunkSize() int {
	if c.StreamChunkSize == 0 {
		return 64
	}
	return c.StreamChunkSize
}

// MaxDepthFor returns the recursion depth limit for an action key
func (c *InferenceConfig) MaxDepthFor(actionKey string) int {
	if d, ok := c.MaxDepth[actionKey]; ok && d > 0 {
		return d
	}
	if c.DefaultMaxDepth > 0 {
		return c.DefaultMaxDepth
	}
	return 8
}

// GetMaxAttempts returns the retry attempt count with a sane default
func (c *RetryConfig) GetMaxAttempts() int {
	if c.MaxAttempts == 0 {
		return 5
	}
	return c.MaxAttempts
}

// GetMultiplier returns the backoff multiplier with a sane default
func (c *RetryConfig) GetMultiplier() int {
	if c.Multiplier == 0 {
		return 1
	}
	return c.Multiplier
}

// GetMaxWaitPerAttempt returns the per-attempt wait cap as a duration
func (c *RetryConfig) GetMaxWaitPerAttempt() time.Duration {
	if c.MaxWaitPerAttempt == 0 {
		return 60 * time.Second
	}
	return time.Duration(c.MaxWaitPerAttempt) * time.Second
}

// GetMaxTotalWait returns the total wait cap as a duration
func (c *RetryConfig) GetMaxTotalWait() time.Duration {
	if c.MaxTotalWait == 0 {
		return 300 * time.Second
	}
	return time.Duration(c.MaxTotalWait) * time.Second
}
