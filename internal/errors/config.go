package errors

import (
	"fmt"
)

// ConfigError is the base error for configuration problems
type ConfigError struct {
	*InferCoreError
}

// NewConfigError creates a new configuration error
func NewConfigError(message string) *ConfigError {
	return &ConfigError{
		InferCoreError: &InferCoreError{
			Message:  message,
			ExitCode: ExitConfigError,
		},
	}
}

// ConfigFileError is raised when a configuration file cannot be read or parsed
type ConfigFileError struct {
	*InferCoreError
}

// NewConfigFileError creates a new configuration file error
func NewConfigFileError(path string, cause error) *ConfigFileError {
	return &ConfigFileError{
		InferCoreError: &InferCoreError{
			Message: fmt.Sprintf("Failed to load configuration file: %s", path),
			Cause:   cause,
			Context: &ErrorContext{
				Operation: "Loading Configuration",
				Component: "Config Loader",
				Details: map[string]interface{}{
					"path": path,
				},
				Suggestions: []string{
					"Check the file exists and is readable",
					"Validate the YAML syntax",
				},
				Recoverable: false,
			},
			ExitCode: ExitConfigError,
		},
	}
}

// MissingCredentialError is raised when no usable API key can be resolved for
// a provider. Providers whose terms forbid gateway proxying fail fast here
// instead of silently falling back to the shared gateway token.
type MissingCredentialError struct {
	*InferCoreError
	Provider string
}

// NewMissingCredentialError creates a new missing credential error
func NewMissingCredentialError(provider, envVar string) *MissingCredentialError {
	return &MissingCredentialError{
		InferCoreError: &InferCoreError{
			Message: fmt.Sprintf("No API key configured for provider '%s'", provider),
			Context: &ErrorContext{
				Operation: "Credential Resolution",
				Component: "Provider Router",
				Details: map[string]interface{}{
					"provider": provider,
					"env_var":  envVar,
				},
				Suggestions: []string{
					fmt.Sprintf("Set the %s environment variable", envVar),
					"Pass a per-request API key override",
				},
				Recoverable: false,
			},
			ExitCode: ExitConfigError,
		},
		Provider: provider,
	}
}

// GatewayForbiddenError is raised when a provider that forbids gateway
// proxying has no direct credential configured.
type GatewayForbiddenError struct {
	*InferCoreError
	Provider string
}

// NewGatewayForbiddenError creates a new gateway forbidden error
func NewGatewayForbiddenError(provider, envVar string) *GatewayForbiddenError {
	return &GatewayForbiddenError{
		InferCoreError: &InferCoreError{
			Message: fmt.Sprintf("Provider '%s' requires a direct API key; gateway proxying is not permitted", provider),
			Context: &ErrorContext{
				Operation: "Credential Resolution",
				Component: "Provider Router",
				Details: map[string]interface{}{
					"provider": provider,
					"env_var":  envVar,
				},
				Suggestions: []string{
					fmt.Sprintf("Set the %s environment variable with a provider-issued key", envVar),
				},
				Recoverable: false,
			},
			ExitCode: ExitConfigError,
		},
		Provider: provider,
	}
}
