// ABOUTME: Schema command for the fabric CLI
// ABOUTME: Prints the JSON Schema of the fabric spec for editor integration

package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/markalston/fabric-planner/backend/services"
	"github.com/spf13/cobra"
)

var schemaOut string

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Print the fabric spec JSON Schema",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		exitCode := runSchema(os.Stdout)
		if exitCode != 0 {
			os.Exit(exitCode)
		}
	},
}

func init() {
	rootCmd.AddCommand(schemaCmd)
	schemaCmd.Flags().StringVarP(&schemaOut, "out", "o", "", "Write the schema to a file instead of stdout")
}

func runSchema(w io.Writer) int {
	data, err := json.MarshalIndent(services.SpecSchema(), "", "  ")
	if err != nil {
		fmt.Fprintf(w, "Error: %v\n", err)
		return 2
	}
	data = append(data, '\n')

	if schemaOut == "" {
		w.Write(data)
		return 0
	}
	if err := os.WriteFile(schemaOut, data, 0o644); err != nil {
		fmt.Fprintf(w, "Error: %v\n", err)
		return 2
	}
	fmt.Fprintf(w, "Wrote schema to %s\n", schemaOut)
	return 0
}
