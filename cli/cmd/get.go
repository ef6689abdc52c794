// ABOUTME: Get command for the fabric CLI
// ABOUTME: Downloads a saved fabric's wiring documents from the backend

package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/markalston/fabric-planner/cli/internal/client"
	"github.com/spf13/cobra"
)

var getOut string

var getCmd = &cobra.Command{
	Use:   "get <fabric-id>",
	Short: "Download a saved fabric as multi-document YAML",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer cancel()

		exitCode := runGet(ctx, os.Stdout, args[0])
		if exitCode != 0 {
			os.Exit(exitCode)
		}
	},
}

func init() {
	rootCmd.AddCommand(getCmd)
	getCmd.Flags().StringVarP(&getOut, "out", "o", "", "Write the documents to a file instead of stdout")
}

func runGet(ctx context.Context, w io.Writer, fabricID string) int {
	c := client.New(GetAPIURL())
	data, err := c.FabricYAML(ctx, fabricID)
	if err != nil {
		fmt.Fprintf(w, "Error: %v\n", err)
		return 2
	}

	if getOut == "" {
		w.Write(data)
		return 0
	}
	if err := os.WriteFile(getOut, data, 0o644); err != nil {
		fmt.Fprintf(w, "Error: %v\n", err)
		return 2
	}
	fmt.Fprintf(w, "Wrote fabric %s to %s\n", fabricID, getOut)
	return 0
}
