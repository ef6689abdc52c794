// ABOUTME: Check command for the fabric CLI
// ABOUTME: Compiles a spec through the backend and gates CI/CD pipelines on the result

package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/markalston/fabric-planner/backend/models"
	"github.com/markalston/fabric-planner/backend/store"
	"github.com/markalston/fabric-planner/cli/internal/client"
	"github.com/spf13/cobra"
)

var (
	maxOversubscription float64
	checkSave           string
)

var checkCmd = &cobra.Command{
	Use:   "check <spec>",
	Short: "Check a fabric spec against the backend",
	Long: `Compile a spec through the backend and exit non-zero if it is blocking
or exceeds the oversubscription threshold.

With --save, a passing spec is also persisted under the given fabric id.

Exit codes:
  0 - All checks passed
  1 - One or more checks failed
  2 - Error (connectivity, unreadable spec, invalid input)`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer cancel()

		exitCode := runCheck(ctx, os.Stdout, args[0])
		if exitCode != 0 {
			os.Exit(exitCode)
		}
	},
}

func init() {
	rootCmd.AddCommand(checkCmd)
	checkCmd.Flags().Float64Var(&maxOversubscription, "max-oversubscription", models.MaxOversubscriptionRatio, "Maximum endpoint to uplink port ratio")
	checkCmd.Flags().StringVar(&checkSave, "save", "", "Save the fabric under this id when every check passes")
}

// checkResult represents the result of a single check
type checkResult struct {
	name      string
	detail    string
	value     float64
	threshold float64
	unit      string
	passed    bool
}

// runCheck executes the checks and returns exit code
func runCheck(ctx context.Context, w io.Writer, path string) int {
	if err := validateThreshold(maxOversubscription); err != nil {
		fmt.Fprintf(w, "Error: %v\n", err)
		return 2
	}

	spec, err := store.ReadSpecFile(path)
	if err != nil {
		fmt.Fprintf(w, "Error: %v\n", err)
		return 2
	}

	c := client.New(GetAPIURL())
	resp, err := c.Compile(ctx, spec)
	if err != nil {
		fmt.Fprintf(w, "Error: %v\n", err)
		return 2
	}

	results := performChecks(resp)
	_, failed := countResults(results)

	var saved *client.SaveResponse
	if failed == 0 && checkSave != "" {
		saved, err = c.SaveFabric(ctx, checkSave, spec)
		if err != nil {
			fmt.Fprintf(w, "Error: %v\n", err)
			return 2
		}
	}

	if IsJSONOutput() {
		fmt.Fprintln(w, formatCheckJSON(results, saved))
	} else {
		fmt.Fprintln(w, formatCheckHuman(results, saved))
	}

	if failed > 0 {
		return 1
	}
	return 0
}

// validateThreshold ensures the ratio threshold is usable
func validateThreshold(ratio float64) error {
	if ratio <= 0 {
		return fmt.Errorf("--max-oversubscription must be positive")
	}
	return nil
}

// performChecks runs all checks against a compile response
func performChecks(resp *client.CompileResponse) []checkResult {
	topo := resp.Topology
	var results []checkResult

	topoCheck := checkResult{
		name:   "Topology",
		detail: fmt.Sprintf("%d leaves, %d spines", topo.LeavesNeeded, topo.SpinesNeeded),
		passed: topo.IsValid,
	}
	if !topo.IsValid {
		topoCheck.detail = strings.Join(topo.ValidationErrors, "; ")
	}
	results = append(results, topoCheck)

	guards := make([]string, 0, len(topo.Guards))
	for _, g := range topo.Guards {
		guards = append(guards, g.Message())
	}
	guardCheck := checkResult{
		name:   "Structural guards",
		detail: "none",
		passed: len(guards) == 0,
	}
	if len(guards) > 0 {
		guardCheck.detail = strings.Join(guards, "; ")
	}
	results = append(results, guardCheck)

	results = append(results, checkResult{
		name:   "Rules",
		detail: fmt.Sprintf("%d error(s), %d warning(s)", len(resp.Rules.Errors), len(resp.Rules.Warnings)),
		passed: !resp.Rules.HasErrors(),
	})

	wiringCheck := checkResult{
		name:   "Wiring",
		detail: fmt.Sprintf("%d error(s), %d warning(s)", len(resp.Validation.Errors), len(resp.Validation.Warnings)),
		passed: resp.Validation.Valid(),
	}
	if resp.Wiring != nil {
		wiringCheck.detail = fmt.Sprintf("%d connections, %s", resp.Wiring.Metadata.ConnectionCount, wiringCheck.detail)
	}
	results = append(results, wiringCheck)

	results = append(results, checkResult{
		name:      "Oversubscription",
		value:     topo.OversubscriptionRatio,
		threshold: maxOversubscription,
		unit:      ":1",
		passed:    topo.OversubscriptionRatio <= maxOversubscription,
	})

	return results
}

// countResults returns the count of passed and failed checks
func countResults(results []checkResult) (passed, failed int) {
	for _, r := range results {
		if r.passed {
			passed++
		} else {
			failed++
		}
	}
	return
}

// formatCheckHuman formats check results for human readability
func formatCheckHuman(results []checkResult, saved *client.SaveResponse) string {
	var output string

	for _, r := range results {
		symbol := "✓"
		if !r.passed {
			symbol = "✗"
		}
		if r.unit != "" {
			output += fmt.Sprintf("%s %s: %.2f%s (threshold: %.2f%s)\n",
				symbol, r.name, r.value, r.unit, r.threshold, r.unit)
		} else {
			output += fmt.Sprintf("%s %s: %s\n", symbol, r.name, r.detail)
		}
	}

	passed, failed := countResults(results)
	if failed > 0 {
		output += fmt.Sprintf("\nFAILED: %d check(s) failed", failed)
	} else {
		output += fmt.Sprintf("\nPASSED: All %d check(s) passed", passed)
	}
	if saved != nil {
		output += fmt.Sprintf("\nSaved fabric %s (%s)", saved.FabricID, saved.Fingerprint)
	}

	return output
}

// formatCheckJSON formats check results as JSON
func formatCheckJSON(results []checkResult, saved *client.SaveResponse) string {
	_, failed := countResults(results)

	checks := make([]map[string]interface{}, len(results))
	for i, r := range results {
		check := map[string]interface{}{
			"name":   r.name,
			"passed": r.passed,
		}
		if r.unit != "" {
			check["value"] = r.value
			check["threshold"] = r.threshold
			check["unit"] = r.unit
		} else {
			check["detail"] = r.detail
		}
		checks[i] = check
	}

	status := "passed"
	if failed > 0 {
		status = "failed"
	}

	output := map[string]interface{}{
		"status": status,
		"checks": checks,
	}
	if saved != nil {
		output["saved"] = saved
	}

	data, _ := json.MarshalIndent(output, "", "  ")
	return string(data)
}
