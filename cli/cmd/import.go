// ABOUTME: Import command for the fabric CLI
// ABOUTME: Reconciles an imported spec with the current one and writes the merged spec

package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/google/uuid"
	"github.com/markalston/fabric-planner/backend/models"
	"github.com/markalston/fabric-planner/backend/services"
	"github.com/markalston/fabric-planner/backend/store"
	"github.com/markalston/fabric-planner/cli/internal/tui/prompt"
	"github.com/markalston/fabric-planner/cli/internal/tui/widgets"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
)

var (
	importCurrent   string
	importAcceptAll bool
	importRejectAll bool
	importOut       string
)

// resolver decides how to resolve one conflict
type resolver func(ctx context.Context, c models.ImportConflict) (models.ResolutionAction, any, error)

// promptResolver and isInteractive are replaced in tests
var (
	promptResolver resolver = prompt.ResolveConflict
	isInteractive           = func() bool {
		return isatty.IsTerminal(os.Stdin.Fd()) && isatty.IsTerminal(os.Stdout.Fd())
	}
)

var importCmd = &cobra.Command{
	Use:   "import <imported-spec>",
	Short: "Merge an imported spec into the current one",
	Long: `Compare an imported spec with the current spec, resolve each conflict and
write the merged spec.

Conflicts are resolved with --accept-all or --reject-all, or interactively
when running in a terminal.

Exit codes:
  0 - Merged spec written
  1 - Invalid spec or unresolved conflicts
  2 - Error (unreadable spec, unwritable output, aborted prompt)`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer cancel()

		exitCode := runImport(ctx, os.Stdout, args[0])
		if exitCode != 0 {
			os.Exit(exitCode)
		}
	},
}

func init() {
	rootCmd.AddCommand(importCmd)
	importCmd.Flags().StringVar(&importCurrent, "current", "", "Current spec the import is merged into")
	importCmd.Flags().BoolVar(&importAcceptAll, "accept-all", false, "Accept every imported value")
	importCmd.Flags().BoolVar(&importRejectAll, "reject-all", false, "Keep every current value")
	importCmd.Flags().StringVarP(&importOut, "out", "o", "", "Write the merged spec to a file (.json for JSON, otherwise YAML)")
	importCmd.MarkFlagRequired("current")
	importCmd.MarkFlagsMutuallyExclusive("accept-all", "reject-all")
}

// runImport merges the imported spec into --current and returns exit code
func runImport(ctx context.Context, w io.Writer, importedPath string) int {
	if importAcceptAll && importRejectAll {
		fmt.Fprintln(w, "Error: --accept-all and --reject-all are mutually exclusive")
		return 2
	}

	imported, err := store.ReadSpecFile(importedPath)
	if err != nil {
		fmt.Fprintf(w, "Error: %v\n", err)
		return 2
	}
	current, err := store.ReadSpecFile(importCurrent)
	if err != nil {
		fmt.Fprintf(w, "Error: %v\n", err)
		return 2
	}
	for _, spec := range []struct {
		path string
		spec models.FabricSpec
	}{{importedPath, imported}, {importCurrent, current}} {
		if err := services.ValidateSpec(spec.spec); err != nil {
			fmt.Fprintf(w, "%s:\n", spec.path)
			fmt.Fprint(w, formatFindings(specFindings(err)))
			return 1
		}
	}

	compiler, err := newCompiler()
	if err != nil {
		fmt.Fprintf(w, "Error: %v\n", err)
		return 2
	}

	session := services.NewImportSession(uuid.NewString(), current)
	conflicts, err := session.Detect(imported, compiler.Topology().Compute(imported))
	if err != nil {
		fmt.Fprintf(w, "Error: %v\n", err)
		return 2
	}
	slog.Debug("Import conflicts detected", "session", session.ID, "conflicts", len(conflicts))

	resolve, ok := chooseResolver()
	if len(conflicts) > 0 && !ok {
		fmt.Fprint(w, formatConflicts(conflicts))
		fmt.Fprintf(w, "\n%d unresolved conflict(s): pass --accept-all or --reject-all, or run in a terminal\n", len(conflicts))
		return 1
	}

	for _, c := range conflicts {
		action, value, err := resolve(ctx, c)
		if err != nil {
			fmt.Fprintf(w, "Error: %v\n", err)
			return 2
		}
		if _, err := session.Resolve(c.ID, action, value); err != nil {
			fmt.Fprintf(w, "Error: %v\n", err)
			return 1
		}
	}

	merged, err := session.Apply()
	if err != nil {
		fmt.Fprintf(w, "Error: %v\n", err)
		return 2
	}
	return writeMerged(w, merged, conflicts, session.Resolutions())
}

// chooseResolver picks the resolution policy from the flags, falling back
// to prompting when interactive. ok is false when no policy applies.
func chooseResolver() (resolve resolver, ok bool) {
	switch {
	case importAcceptAll:
		return fixedResolver(models.ActionAccept), true
	case importRejectAll:
		return fixedResolver(models.ActionReject), true
	case isInteractive():
		return promptResolver, true
	default:
		return nil, false
	}
}

func fixedResolver(action models.ResolutionAction) resolver {
	return func(ctx context.Context, c models.ImportConflict) (models.ResolutionAction, any, error) {
		return action, nil, nil
	}
}

// writeMerged emits the merged spec to importOut or w
func writeMerged(w io.Writer, merged models.FabricSpec, conflicts []models.ImportConflict, resolutions []models.Resolution) int {
	asJSON := IsJSONOutput()
	if importOut != "" {
		asJSON = strings.EqualFold(filepath.Ext(importOut), ".json")
	}

	data, err := store.EncodeSpec(merged, asJSON)
	if err != nil {
		fmt.Fprintf(w, "Error: %v\n", err)
		return 2
	}

	if importOut == "" {
		if IsJSONOutput() {
			output := map[string]interface{}{
				"conflicts":   conflicts,
				"resolutions": resolutions,
				"spec":        merged,
			}
			data, _ = json.MarshalIndent(output, "", "  ")
			data = append(data, '\n')
		}
		w.Write(data)
		return 0
	}

	if err := os.WriteFile(importOut, data, 0o644); err != nil {
		fmt.Fprintf(w, "Error: %v\n", err)
		return 2
	}
	fmt.Fprint(w, formatResolutions(resolutions))
	fmt.Fprintf(w, "Wrote merged spec to %s (%d conflict(s) resolved)\n", importOut, len(resolutions))
	return 0
}

// formatConflicts lists conflicts with their severity and supported actions
func formatConflicts(conflicts []models.ImportConflict) string {
	var b strings.Builder
	for _, c := range conflicts {
		b.WriteString(widgets.StatusText(c.ID, widgets.LevelForSeverity(c.Severity)))
		fmt.Fprintf(&b, " %s\n    %s\n", c.Message, prompt.Describe(c))
	}
	return b.String()
}

func formatResolutions(resolutions []models.Resolution) string {
	var b strings.Builder
	for _, r := range resolutions {
		fmt.Fprintf(&b, "  %-7s %s = %v\n", r.Action, r.Path, r.Value)
	}
	return b.String()
}
