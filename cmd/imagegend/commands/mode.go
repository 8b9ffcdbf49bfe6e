package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/dreamforge/imagegen/internal/config"
	"github.com/dreamforge/imagegen/internal/modeconfig"
)

// ModeCmd groups mode-config inspection and reload subcommands.
var ModeCmd = &cobra.Command{
	Use:   "mode",
	Short: "List configured modes and trigger a reload on a running server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

var modeListCmd = &cobra.Command{
	Use:     "ls",
	Aliases: []string{"list"},
	Short:   "List the modes defined in the mode config document",
	RunE:    runModeList,
}

var modeReloadCmd = &cobra.Command{
	Use:   "reload",
	Short: "Trigger a mode-config reload on a running server",
	RunE:  runModeReload,
}

var serverBaseURL string

func init() {
	modeReloadCmd.Flags().StringVar(&serverBaseURL, "server", "", "Server base URL, default http://localhost:<server.port>")

	ModeCmd.AddCommand(modeListCmd)
	ModeCmd.AddCommand(modeReloadCmd)
}

func runModeList(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	doc, err := modeconfig.ReadDocument(cfg.ModeConfig.Path)
	if err != nil {
		return fmt.Errorf("failed to load mode config %s: %w", cfg.ModeConfig.Path, err)
	}

	fmt.Printf("default mode: %s\n\n", doc.DefaultMode)

	tableData := pterm.TableData{{"", "mode", "model", "loras", "size", "steps", "guidance"}}
	for name, mode := range doc.Modes {
		marker := ""
		if name == doc.DefaultMode {
			marker = "*"
		}
		tableData = append(tableData, []string{
			marker, name, mode.Model, fmt.Sprintf("%d", len(mode.Loras)),
			mode.DefaultSize, fmt.Sprintf("%d", mode.DefaultSteps), fmt.Sprintf("%.1f", mode.DefaultGuidance),
		})
	}

	table, err := pterm.DefaultTable.WithHasHeader().WithBoxed().WithData(tableData).Srender()
	if err != nil {
		return fmt.Errorf("failed to render mode table: %w", err)
	}
	fmt.Println(table)

	return nil
}

func runModeReload(cmd *cobra.Command, args []string) error {
	cfg, _ := config.Load()
	base := resolveServerBase(serverBaseURL, cfg)

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Post(base+"/v1/admin/modes/reload", "application/json", nil)
	if err != nil {
		return fmt.Errorf("failed to reach server at %s: %w", base, err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("reload failed (%s): %s", resp.Status, string(body))
	}

	var result map[string]string
	if err := json.Unmarshal(body, &result); err == nil {
		fmt.Println(result["status"])
		return nil
	}
	fmt.Println(string(body))
	return nil
}

func resolveServerBase(flagValue string, cfg *config.Config) string {
	if flagValue != "" {
		return flagValue
	}
	port := 8080
	if cfg != nil && cfg.Server.Port != 0 {
		port = cfg.Server.Port
	}
	return fmt.Sprintf("http://localhost:%d", port)
}
