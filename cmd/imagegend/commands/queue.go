package commands

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/dreamforge/imagegen/internal/config"
)

// QueueCmd groups worker-pool queue inspection subcommands.
var QueueCmd = &cobra.Command{
	Use:   "queue",
	Short: "Inspect the worker pool's queue on a running server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

var queueListCmd = &cobra.Command{
	Use:     "ls",
	Aliases: []string{"list"},
	Short:   "List queued and running jobs",
	RunE:    runQueueList,
}

func init() {
	queueListCmd.Flags().StringVar(&serverBaseURL, "server", "", "Server base URL, default http://localhost:<server.port>")
	QueueCmd.AddCommand(queueListCmd)
}

type queueSnapshot struct {
	Pending int `json:"pending"`
	Running int `json:"running"`
	Jobs    []struct {
		ID       string `json:"id"`
		JobType  string `json:"jobType"`
		Priority string `json:"priority"`
		Source   string `json:"source"`
	} `json:"jobs"`
}

func runQueueList(cmd *cobra.Command, args []string) error {
	cfg, _ := config.Load()
	base := resolveServerBase(serverBaseURL, cfg)

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Get(base + "/v1/admin/queue")
	if err != nil {
		return fmt.Errorf("failed to reach server at %s: %w", base, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("queue inspection failed: %s", resp.Status)
	}

	var snap queueSnapshot
	if err := json.NewDecoder(resp.Body).Decode(&snap); err != nil {
		return fmt.Errorf("failed to decode queue snapshot: %w", err)
	}

	fmt.Printf("running: %d  pending: %d\n", snap.Running, snap.Pending)
	for _, j := range snap.Jobs {
		fmt.Printf("  %s  %-10s %-8s source=%s\n", j.ID, j.JobType, j.Priority, j.Source)
	}

	return nil
}
