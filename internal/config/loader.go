package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"github.com/user/infercore/internal/errors"
)

// Loader handles loading configuration from multiple sources
type Loader struct {
	v *viper.Viper
}

// NewLoader creates a new configuration loader
func NewLoader() *Loader {
	// Load .env file if exists
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigType("yaml")
	v.AutomaticEnv()
	v.SetEnvPrefix("INFERCORE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	return &Loader{v: v}
}

// Load loads the engine configuration.
// Precedence: CLI > .infercore/config.yaml > ~/.infercore.yaml > Environment > Defaults
func (l *Loader) Load(projectPath string, cliOverrides map[string]interface{}) (*EngineConfig, error) {
	l.setDefaults()

	if err := l.loadGlobalConfig(); err != nil {
		return nil, err
	}

	if err := l.loadProjectConfig(projectPath); err != nil {
		return nil, err
	}

	for key, value := range cliOverrides {
		l.v.Set(key, value)
	}

	var cfg EngineConfig
	if err := l.v.Unmarshal(&cfg); err != nil {
		return nil, errors.WrapError(err, "Failed to parse configuration", errors.ExitConfigError)
	}

	return &cfg, nil
}

// setDefaults registers default values for all settings
func (l *Loader) setDefaults() {
	l.v.SetDefault("retry.max_attempts", 5)
	l.v.SetDefault("retry.multiplier", 1)
	l.v.SetDefault("retry.max_wait_per_attempt", 60)
	l.v.SetDefault("retry.max_total_wait", 300)
	l.v.SetDefault("inference.max_tokens", 8192)
	l.v.SetDefault("inference.temperature", 0.0)
	l.v.SetDefault("inference.default_max_depth", 8)
	l.v.SetDefault("inference.stream_chunk_size", 64)
	l.v.SetDefault("logging.log_dir", ".infercore/logs")
	l.v.SetDefault("logging.file_level", "info")
	l.v.SetDefault("logging.console_level", "info")
}

// loadGlobalConfig loads configuration from ~/.infercore.yaml
func (l *Loader) loadGlobalConfig() error {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil // Not a fatal error
	}

	globalConfig := filepath.Join(homeDir, ".infercore.yaml")
	if _, err := os.Stat(globalConfig); err != nil {
		return nil // File doesn't exist, skip
	}

	l.v.SetConfigFile(globalConfig)
	if err := l.v.ReadInConfig(); err != nil {
		return errors.NewConfigFileError(globalConfig, err)
	}

	return nil
}

// loadProjectConfig loads configuration from .infercore/config.yaml
func (l *Loader) loadProjectConfig(projectPath string) error {
	if projectPath == "" {
		projectPath = "."
	}

	projectConfig := filepath.Join(projectPath, ".infercore", "config.yaml")
	if _, err := os.Stat(projectConfig); err != nil {
		return nil // File doesn't exist, skip
	}

	l.v.SetConfigFile(projectConfig)
	if err := l.v.MergeInConfig(); err != nil {
		return errors.NewConfigFileError(projectConfig, err)
	}

	return nil
}
