// ABOUTME: Root command for the fabric CLI
// ABOUTME: Handles global flags, logging setup and configuration

package cmd

import (
	"fmt"
	"os"

	"github.com/markalston/fabric-planner/backend/logger"
	"github.com/markalston/fabric-planner/backend/services"
	"github.com/spf13/cobra"
)

var (
	apiURL      string
	jsonOutput  bool
	catalogPath string
)

const defaultAPIURL = "http://localhost:8080"

// rootCmd is the base command
var rootCmd = &cobra.Command{
	Use:   "fabric",
	Short: "CLI for the spine/leaf fabric planner",
	Long: `fabric compiles declarative spine/leaf fabric specs into wiring diagrams.

Local commands (compile, validate, import, schema) run the pipeline in-process.
Remote commands (check, health) talk to a running fabric planner backend.

Environment Variables:
  FABRIC_API_URL         Backend API URL (default: http://localhost:8080)
  FABRIC_SWITCH_CATALOG  YAML switch catalog merged over the built-in one
  LOG_LEVEL, LOG_FORMAT  Diagnostic logging on stderr`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logger.InitWriter(os.Stderr)
	},
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&apiURL, "api-url", "", "Backend API URL (overrides FABRIC_API_URL)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output JSON instead of human-readable text")
	rootCmd.PersistentFlags().StringVar(&catalogPath, "catalog", "", "Switch catalog YAML (overrides FABRIC_SWITCH_CATALOG)")
}

// GetAPIURL returns the API URL from flag, env, or default (in priority order)
func GetAPIURL() string {
	if apiURL != "" {
		return apiURL
	}
	if envURL := os.Getenv("FABRIC_API_URL"); envURL != "" {
		return envURL
	}
	return defaultAPIURL
}

// IsJSONOutput returns whether JSON output is requested
func IsJSONOutput() bool {
	return jsonOutput
}

// GetCatalogPath returns the switch catalog path from flag or env
func GetCatalogPath() string {
	if catalogPath != "" {
		return catalogPath
	}
	return os.Getenv("FABRIC_SWITCH_CATALOG")
}

// newCompiler builds an in-process compiler over the built-in registry,
// merged with the configured catalog file if any
func newCompiler() (*services.Compiler, error) {
	registry := services.DefaultRegistry()

	if path := GetCatalogPath(); path != "" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open switch catalog: %w", err)
		}
		defer f.Close()

		extra, err := services.LoadRegistry(f)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		registry = registry.Merge(extra)
	}

	return services.NewCompiler(registry, nil), nil
}
