// ABOUTME: Validate command for the fabric CLI
// ABOUTME: Compiles a spec in-process and reports every problem without writing anything

package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/markalston/fabric-planner/backend/models"
	"github.com/markalston/fabric-planner/backend/services"
	"github.com/markalston/fabric-planner/backend/store"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate <spec>",
	Short: "Validate a fabric spec",
	Long: `Validate a fabric spec and list its errors and warnings.

Exit codes:
  0 - No errors (warnings allowed)
  1 - One or more errors
  2 - Error (unreadable spec or catalog)`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer cancel()

		exitCode := runValidate(ctx, os.Stdout, args[0])
		if exitCode != 0 {
			os.Exit(exitCode)
		}
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

// runValidate validates the spec at path and returns exit code
func runValidate(ctx context.Context, w io.Writer, path string) int {
	spec, err := store.ReadSpecFile(path)
	if err != nil {
		fmt.Fprintf(w, "Error: %v\n", err)
		return 2
	}

	var fs []finding
	if err := services.ValidateSpec(spec); err != nil {
		fs = specFindings(err)
	} else {
		compiler, err := newCompiler()
		if err != nil {
			fmt.Fprintf(w, "Error: %v\n", err)
			return 2
		}
		result, err := compiler.Compile(ctx, spec)
		var notFound *services.ProfileNotFoundError
		switch {
		case errors.As(err, &notFound):
			fs = []finding{{Severity: models.SeverityError, Code: models.CodeCatalogModelUnknown, Message: notFound.Error()}}
		case err != nil:
			fmt.Fprintf(w, "Error: %v\n", err)
			return 2
		default:
			fs = findings(result)
		}
	}

	errCount := countSeverity(fs, models.SeverityError)
	if IsJSONOutput() {
		fmt.Fprintln(w, formatValidateJSON(path, fs))
	} else {
		fmt.Fprintln(w, formatValidateHuman(path, fs))
	}

	if errCount > 0 {
		return 1
	}
	return 0
}

// formatValidateHuman lists findings followed by a VALID/INVALID summary
func formatValidateHuman(path string, fs []finding) string {
	output := formatFindings(fs)
	if len(fs) > 0 {
		output += "\n"
	}

	errCount := countSeverity(fs, models.SeverityError)
	warnCount := countSeverity(fs, models.SeverityWarning)
	if errCount > 0 {
		output += fmt.Sprintf("INVALID: %s has %d error(s), %d warning(s)", path, errCount, warnCount)
	} else {
		output += fmt.Sprintf("VALID: %s has %d warning(s)", path, warnCount)
	}
	return output
}

// formatValidateJSON formats findings as JSON
func formatValidateJSON(path string, fs []finding) string {
	if fs == nil {
		fs = []finding{}
	}
	output := map[string]interface{}{
		"spec":     path,
		"valid":    countSeverity(fs, models.SeverityError) == 0,
		"errors":   countSeverity(fs, models.SeverityError),
		"warnings": countSeverity(fs, models.SeverityWarning),
		"findings": fs,
	}
	data, _ := json.MarshalIndent(output, "", "  ")
	return string(data)
}
