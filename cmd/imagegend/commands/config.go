package commands

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/dreamforge/imagegen/internal/config"
)

// ConfigCmd groups configuration introspection subcommands.
var ConfigCmd = &cobra.Command{
	Use:   "config",
	Short: "Show and validate the loaded configuration",
	Long: `Show and validate the configuration imagegend loads from (in
ascending precedence) built-in defaults, /etc/imagegen/config.yaml,
~/.imagegen/config.yaml, ./imagegen.yaml, and IMAGEGEN_* environment
variables.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the loaded configuration",
	RunE:  runConfigShow,
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the loaded configuration",
	RunE:  runConfigValidate,
}

var configFormat string
var configFile string

func init() {
	configShowCmd.Flags().StringVar(&configFormat, "format", "yaml", "Output format: yaml or json")
	configShowCmd.Flags().StringVar(&configFile, "file", "", "Show a specific config file instead of the merged cascade")
	configValidateCmd.Flags().StringVar(&configFile, "file", "", "Validate a specific config file instead of the merged cascade")

	ConfigCmd.AddCommand(configShowCmd)
	ConfigCmd.AddCommand(configValidateCmd)
}

func loadConfig() (*config.Config, error) {
	if configFile != "" {
		return config.LoadFromFile(configFile)
	}
	return config.Load()
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	switch configFormat {
	case "json":
		data, err := json.MarshalIndent(cfg, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal config to JSON: %w", err)
		}
		fmt.Println(string(data))
	case "yaml":
		data, err := yaml.Marshal(cfg)
		if err != nil {
			return fmt.Errorf("failed to marshal config to YAML: %w", err)
		}
		fmt.Printf("# imagegend configuration\n%s", string(data))
	default:
		return fmt.Errorf("unsupported format: %s (supported: yaml, json)", configFormat)
	}

	return nil
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}

	fmt.Println("configuration is valid")
	return nil
}
