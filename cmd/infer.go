package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/user/infercore/internal/config"
	"github.com/user/infercore/internal/engine"
	"github.com/user/infercore/internal/llmtypes"
	"github.com/user/infercore/internal/logging"
	"github.com/user/infercore/internal/tools"
)

var (
	inferProvider    string
	inferModel       string
	inferSystem      string
	inferSchemaPath  string
	inferSchemaName  string
	inferStream      bool
	inferMaxTokens   int
	inferTemperature float64
	inferAPIKeys     []string
	inferGatewayURL  string
	inferProjectPath string
	inferWithTools   bool
)

// inferCmd represents the infer command
var inferCmd = &cobra.Command{
	Use:   "infer [prompt]",
	Short: "Run a one-shot inference call",
	Long: `Send a prompt to the selected provider and print the response.

With --schema, the response is parsed, repaired, and validated against the
given JSON schema (JSON or YAML file) and printed as JSON. With --stream,
response text is printed as it arrives.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runInfer,
}

func init() {
	rootCmd.AddCommand(inferCmd)

	inferCmd.Flags().StringVarP(&inferProvider, "provider", "p", "openai", "Provider name")
	inferCmd.Flags().StringVarP(&inferModel, "model", "m", "", "Model identifier (required)")
	inferCmd.Flags().StringVar(&inferSystem, "system", "", "System prompt")
	inferCmd.Flags().StringVar(&inferSchemaPath, "schema", "", "Path to an output schema file (JSON or YAML)")
	inferCmd.Flags().StringVar(&inferSchemaName, "schema-name", "", "Name of the output schema")
	inferCmd.Flags().BoolVar(&inferStream, "stream", false, "Stream response text to stdout")
	inferCmd.Flags().IntVar(&inferMaxTokens, "max-tokens", 0, "Max tokens (0 uses the configured default)")
	inferCmd.Flags().Float64Var(&inferTemperature, "temperature", 0, "Sampling temperature")
	inferCmd.Flags().StringArrayVar(&inferAPIKeys, "api-key", nil, "Per-provider API key override, provider=key (repeatable)")
	inferCmd.Flags().StringVar(&inferGatewayURL, "gateway-url", "", "Gateway base URL override")
	inferCmd.Flags().StringVar(&inferProjectPath, "project-path", ".", "Project path for configuration and logs")
	inferCmd.Flags().BoolVar(&inferWithTools, "with-tools", false, "Register the built-in completion tool")

	_ = inferCmd.MarkFlagRequired("model")
}

func runInfer(cmd *cobra.Command, args []string) error {
	cfg, err := config.NewLoader().Load(inferProjectPath, map[string]interface{}{
		"debug": debugFlag,
	})
	if err != nil {
		return HandleCommandError(err)
	}

	logger, err := InitLogger(inferProjectPath, debugFlag, verboseFlag)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	apiKeys, err := parseAPIKeyOverrides(inferAPIKeys)
	if err != nil {
		return err
	}

	req := engine.Request{
		SystemPrompt:       inferSystem,
		Messages:           []llmtypes.Message{{Role: "user", Content: strings.Join(args, " ")}},
		Provider:           inferProvider,
		Model:              inferModel,
		Temperature:        inferTemperature,
		MaxTokens:          inferMaxTokens,
		APIKeys:            apiKeys,
		GatewayURLOverride: inferGatewayURL,
		ActionKey:          "cli.infer",
	}
	if req.MaxTokens == 0 {
		req.MaxTokens = cfg.Inference.GetMaxTokens()
	}
	if inferWithTools {
		req.Tools = []tools.Tool{tools.NewCompleteTool()}
	}
	if inferStream {
		req.OnChunk = func(chunk string) {
			fmt.Print(chunk)
		}
	}

	eng := engine.NewEngine(cfg, logger)

	logger.Info("Starting inference",
		logging.String("provider", inferProvider),
		logging.String("model", inferModel),
	)

	if inferSchemaPath != "" {
		schemaMap, err := loadSchemaFile(inferSchemaPath)
		if err != nil {
			return err
		}
		req.Schema = schemaMap
		req.SchemaName = inferSchemaName

		result, err := eng.InferStructured(cmd.Context(), req)
		if err != nil {
			return HandleCommandError(err)
		}
		out, err := json.MarshalIndent(result.Object, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(out))
		return nil
	}

	result, err := eng.Infer(cmd.Context(), req)
	if err != nil {
		return HandleCommandError(err)
	}
	if inferStream {
		fmt.Println()
	} else {
		fmt.Println(result.Text)
	}
	return nil
}

// parseAPIKeyOverrides parses repeated provider=key flags
func parseAPIKeyOverrides(pairs []string) (map[string]string, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	keys := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		provider, key, found := strings.Cut(pair, "=")
		if !found || provider == "" || key == "" {
			return nil, fmt.Errorf("invalid --api-key value %q, expected provider=key", pair)
		}
		keys[provider] = key
	}
	return keys, nil
}

// loadSchemaFile reads a JSON or YAML schema document into a map.
// YAML is a superset of JSON here, so one decoder covers both.
func loadSchemaFile(path string) (map[string]interface{}, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read schema file: %w", err)
	}
	var schemaMap map[string]interface{}
	if err := yaml.Unmarshal(data, &schemaMap); err != nil {
		return nil, fmt.Errorf("failed to parse schema file %s: %w", path, err)
	}
	return schemaMap, nil
}
