// ABOUTME: Compile command for the fabric CLI
// ABOUTME: Runs the pipeline in-process and writes the wiring documents to a fabric directory

package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/markalston/fabric-planner/backend/models"
	"github.com/markalston/fabric-planner/backend/services"
	"github.com/markalston/fabric-planner/backend/store"
	"github.com/spf13/cobra"
)

var (
	compileOutDir   string
	compileFabricID string
	compileWatch    bool
)

// watchDebounce collapses the burst of events editors emit on save
const watchDebounce = 200 * time.Millisecond

var compileCmd = &cobra.Command{
	Use:   "compile <spec>",
	Short: "Compile a fabric spec into wiring documents",
	Long: `Compile a fabric spec (YAML or JSON) into a wiring diagram.

With --out, the switches, servers and connections documents are written to
<out>/<fabric-id>/. Blocking results are never written.

Exit codes:
  0 - Compiled without blocking problems
  1 - Spec is invalid or the result is blocking
  2 - Error (unreadable spec, catalog or output directory)`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer cancel()

		var exitCode int
		if compileWatch {
			exitCode = watchCompile(ctx, os.Stdout, args[0])
		} else {
			exitCode = runCompile(ctx, os.Stdout, args[0])
		}
		if exitCode != 0 {
			os.Exit(exitCode)
		}
	},
}

func init() {
	rootCmd.AddCommand(compileCmd)
	compileCmd.Flags().StringVarP(&compileOutDir, "out", "o", "", "Directory to write fabric documents into")
	compileCmd.Flags().StringVar(&compileFabricID, "fabric-id", "", "Fabric directory name (default: spec name)")
	compileCmd.Flags().BoolVar(&compileWatch, "watch", false, "Recompile whenever the spec file changes")
}

// compileOutput is the JSON form of a compile run
type compileOutput struct {
	Fabric      string                 `json:"fabric"`
	Fingerprint string                 `json:"fingerprint"`
	Blocking    bool                   `json:"blocking"`
	Topology    models.DerivedTopology `json:"topology"`
	Metadata    *models.WiringMetadata `json:"metadata,omitempty"`
	Findings    []finding              `json:"findings"`
	WrittenTo   string                 `json:"writtenTo,omitempty"`
}

// runCompile compiles the spec at path and returns exit code
func runCompile(ctx context.Context, w io.Writer, path string) int {
	spec, err := store.ReadSpecFile(path)
	if err != nil {
		fmt.Fprintf(w, "Error: %v\n", err)
		return 2
	}
	if err := services.ValidateSpec(spec); err != nil {
		fmt.Fprint(w, formatFindings(specFindings(err)))
		return 1
	}

	compiler, err := newCompiler()
	if err != nil {
		fmt.Fprintf(w, "Error: %v\n", err)
		return 2
	}

	result, err := compiler.Compile(ctx, spec)
	if err != nil {
		var notFound *services.ProfileNotFoundError
		if errors.As(err, &notFound) {
			fmt.Fprintf(w, "Error: %v\n", notFound)
			return 1
		}
		fmt.Fprintf(w, "Error: %v\n", err)
		return 2
	}

	out := compileOutput{
		Fabric:      spec.Name,
		Fingerprint: result.Fingerprint,
		Blocking:    result.Blocking(),
		Topology:    result.Topology,
		Findings:    findings(result),
	}
	if result.Wiring != nil {
		out.Metadata = &result.Wiring.Metadata
	}

	if !out.Blocking && compileOutDir != "" {
		dir, err := writeFabric(ctx, spec.Name, result)
		if err != nil {
			fmt.Fprintf(w, "Error: %v\n", err)
			return 2
		}
		out.WrittenTo = dir
	}

	if IsJSONOutput() {
		data, _ := json.MarshalIndent(out, "", "  ")
		fmt.Fprintln(w, string(data))
	} else {
		fmt.Fprint(w, formatSummary(spec.Name, result))
		if len(out.Findings) > 0 {
			fmt.Fprintln(w)
			fmt.Fprint(w, formatFindings(out.Findings))
		}
		if out.WrittenTo != "" {
			fmt.Fprintf(w, "\nWrote fabric documents to %s\n", out.WrittenTo)
		}
		if out.Blocking {
			fmt.Fprintln(w, "\nBLOCKED: fix the errors above before the fabric can be written")
		}
	}

	if out.Blocking {
		return 1
	}
	return 0
}

// writeFabric serializes the wiring and saves it under compileOutDir
func writeFabric(ctx context.Context, specName string, result *models.CompileResult) (string, error) {
	fabricID := compileFabricID
	if fabricID == "" {
		fabricID = specName
	}

	docs, err := services.EmitYAML(result.Wiring)
	if err != nil {
		return "", fmt.Errorf("failed to serialize wiring: %w", err)
	}

	fabrics := store.New(compileOutDir)
	if err := fabrics.Save(ctx, fabricID, docs); err != nil {
		return "", err
	}
	return filepath.Join(compileOutDir, fabricID), nil
}

// watchCompile compiles once, then again after every change to the spec
// file until ctx is canceled. The directory is watched because editors
// often replace files by rename.
func watchCompile(ctx context.Context, w io.Writer, path string) int {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		fmt.Fprintf(w, "Error: %v\n", err)
		return 2
	}
	defer watcher.Close()

	target := filepath.Clean(path)
	if err := watcher.Add(filepath.Dir(target)); err != nil {
		fmt.Fprintf(w, "Error: cannot watch %s: %v\n", path, err)
		return 2
	}

	runCompile(ctx, w, path)
	fmt.Fprintf(w, "\nWatching %s for changes (Ctrl+C to stop)\n", path)

	var debounce <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return 0
		case event, ok := <-watcher.Events:
			if !ok {
				return 0
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			debounce = time.After(watchDebounce)
		case <-debounce:
			debounce = nil
			fmt.Fprintf(w, "\n%s changed, recompiling\n", path)
			runCompile(ctx, w, path)
		case err, ok := <-watcher.Errors:
			if !ok {
				return 0
			}
			slog.Warn("Spec watch error", "path", path, "error", err)
		}
	}
}
