// ABOUTME: Health command for the fabric CLI
// ABOUTME: Checks backend connectivity, catalog size and artifact store status

package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/markalston/fabric-planner/cli/internal/client"
	"github.com/spf13/cobra"
)

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check backend connectivity",
	Long: `Check connectivity to the fabric planner backend and verify service status.

Exit codes:
  0 - Backend is healthy
  1 - Backend is degraded (artifact store not writable)
  2 - Error (connectivity)`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer cancel()

		exitCode := runHealth(ctx, os.Stdout)
		if exitCode != 0 {
			os.Exit(exitCode)
		}
	},
}

func init() {
	rootCmd.AddCommand(healthCmd)
}

// runHealth executes the health check and returns exit code
func runHealth(ctx context.Context, w io.Writer) int {
	url := GetAPIURL()
	c := client.New(url)

	resp, err := c.Health(ctx)
	if err != nil {
		fmt.Fprintf(w, "Error: %v\n", err)
		return 2
	}

	if IsJSONOutput() {
		fmt.Fprintln(w, formatHealthJSON(url, resp))
	} else {
		fmt.Fprintln(w, formatHealthHuman(url, resp))
	}

	if resp.Status != "ok" {
		return 1
	}
	return 0
}

// formatHealthHuman formats health response for human readability
func formatHealthHuman(url string, resp *client.HealthResponse) string {
	writable := "writable"
	if !resp.StoreWritable {
		writable = "NOT writable"
	}
	return fmt.Sprintf(`Backend:       %s
Status:        %s
Switch models: %d
Store:         %s (%s)`, url, resp.Status, resp.CatalogModels, resp.StoreDir, writable)
}

// formatHealthJSON formats health response as JSON
func formatHealthJSON(url string, resp *client.HealthResponse) string {
	output := map[string]interface{}{
		"backend":        url,
		"status":         resp.Status,
		"catalog_models": resp.CatalogModels,
		"store": map[string]interface{}{
			"dir":      resp.StoreDir,
			"writable": resp.StoreWritable,
		},
	}
	data, _ := json.MarshalIndent(output, "", "  ")
	return string(data)
}
