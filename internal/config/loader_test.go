package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := NewLoader().Load(t.TempDir(), nil)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Retry.MaxAttempts != 5 {
		t.Errorf("Expected default max_attempts 5, got %d", cfg.Retry.MaxAttempts)
	}
	if cfg.Inference.MaxTokens != 8192 {
		t.Errorf("Expected default max_tokens 8192, got %d", cfg.Inference.MaxTokens)
	}
	if cfg.Inference.GetStreamChunkSize() != 64 {
		t.Errorf("Expected default stream chunk size 64, got %d", cfg.Inference.GetStreamChunkSize())
	}
	if cfg.Inference.MaxDepthFor("anything") != 8 {
		t.Errorf("Expected default max depth 8, got %d", cfg.Inference.MaxDepthFor("anything"))
	}
}

func TestLoadProjectConfig(t *testing.T) {
	dir := t.TempDir()
	configDir := filepath.Join(dir, ".infercore")
	if err := os.MkdirAll(configDir, 0755); err != nil {
		t.Fatalf("Failed to create config dir: %v", err)
	}

	content := `
providers:
  openai:
    api_key: sk-from-project-file
    direct: true
gateway:
  url: https://gw.example.com/v1
  token: gw-project-token
inference:
  default_max_depth: 4
  max_depth:
    blueprint: 12
  timeout: 30
`
	if err := os.WriteFile(filepath.Join(configDir, "config.yaml"), []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}

	cfg, err := NewLoader().Load(dir, nil)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Providers["openai"].APIKey != "sk-from-project-file" {
		t.Errorf("Provider key not loaded: %+v", cfg.Providers["openai"])
	}
	if !cfg.Providers["openai"].Direct {
		t.Errorf("Direct flag not loaded")
	}
	if cfg.Gateway.URL != "https://gw.example.com/v1" {
		t.Errorf("Gateway URL not loaded: %s", cfg.Gateway.URL)
	}
	if cfg.Inference.MaxDepthFor("blueprint") != 12 {
		t.Errorf("Per-action max depth not loaded: %d", cfg.Inference.MaxDepthFor("blueprint"))
	}
	if cfg.Inference.MaxDepthFor("other") != 4 {
		t.Errorf("Default max depth not loaded: %d", cfg.Inference.MaxDepthFor("other"))
	}
	if cfg.Inference.GetTimeout() != 30*time.Second {
		t.Errorf("Timeout not loaded: %v", cfg.Inference.GetTimeout())
	}
}

func TestLoadCLIOverridesWin(t *testing.T) {
	dir := t.TempDir()
	configDir := filepath.Join(dir, ".infercore")
	if err := os.MkdirAll(configDir, 0755); err != nil {
		t.Fatalf("Failed to create config dir: %v", err)
	}
	content := "inference:\n  max_tokens: 1000\n"
	if err := os.WriteFile(filepath.Join(configDir, "config.yaml"), []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}

	cfg, err := NewLoader().Load(dir, map[string]interface{}{
		"inference.max_tokens": 2000,
	})
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Inference.MaxTokens != 2000 {
		t.Errorf("CLI override did not win: %d", cfg.Inference.MaxTokens)
	}
}

func TestLoadMalformedProjectConfig(t *testing.T) {
	dir := t.TempDir()
	configDir := filepath.Join(dir, ".infercore")
	if err := os.MkdirAll(configDir, 0755); err != nil {
		t.Fatalf("Failed to create config dir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(configDir, "config.yaml"), []byte("::: not yaml {"), 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}

	if _, err := NewLoader().Load(dir, nil); err == nil {
		t.Error("Expected error for malformed config file")
	}
}

func TestInferenceConfigAccessors(t *testing.T) {
	var c InferenceConfig
	if c.GetTimeout() != 180*time.Second {
		t.Errorf("Expected default timeout 180s, got %v", c.GetTimeout())
	}
	if c.GetMaxTokens() != 8192 {
		t.Errorf("Expected default max tokens 8192, got %d", c.GetMaxTokens())
	}

	var r RetryConfig
	if r.GetMaxAttempts() != 5 || r.GetMultiplier() != 1 {
		t.Errorf("Unexpected retry defaults: %d %d", r.GetMaxAttempts(), r.GetMultiplier())
	}
	if r.GetMaxWaitPerAttempt() != 60*time.Second || r.GetMaxTotalWait() != 300*time.Second {
		t.Errorf("Unexpected retry wait defaults")
	}
}
