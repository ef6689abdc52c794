// ABOUTME: Shared report formatting for commands that compile a spec
// ABOUTME: Flattens topology, guard, rule and wiring problems into one findings list

package cmd

import (
	"errors"
	"fmt"
	"strings"

	"github.com/markalston/fabric-planner/backend/models"
	"github.com/markalston/fabric-planner/backend/services"
	"github.com/markalston/fabric-planner/cli/internal/tui/icons"
	"github.com/markalston/fabric-planner/cli/internal/tui/styles"
	"github.com/markalston/fabric-planner/cli/internal/tui/widgets"
)

// Finding codes for problems that do not come from the rules engine
const (
	codeTopology    = "TOPOLOGY_INVALID"
	codeWiring      = "WIRING_INVALID"
	codeWiringIssue = "WIRING_ISSUE"
	codeSpec        = "SPEC_INVALID"
)

// finding is one problem reported for a spec
type finding struct {
	Severity models.Severity `json:"severity"`
	Code     string          `json:"code"`
	Message  string          `json:"message"`
	Path     string          `json:"path,omitempty"`
}

// findings lists every problem in a compile result, errors first
func findings(r *models.CompileResult) []finding {
	var errs, warns, infos []finding

	for _, msg := range r.Topology.ValidationErrors {
		errs = append(errs, finding{Severity: models.SeverityError, Code: codeTopology, Message: msg})
	}
	for _, g := range r.Topology.Guards {
		errs = append(errs, finding{Severity: models.SeverityError, Code: string(g.Kind()), Message: g.Message()})
	}

	add := func(d models.Diagnostic) finding {
		return finding{Severity: d.Severity, Code: d.Code, Message: d.Message, Path: d.Path}
	}
	for _, d := range r.Rules.Errors {
		errs = append(errs, add(d))
	}
	for _, d := range r.Rules.Warnings {
		warns = append(warns, add(d))
	}
	for _, d := range r.Rules.Info {
		infos = append(infos, add(d))
	}

	for _, msg := range r.Validation.Errors {
		errs = append(errs, finding{Severity: models.SeverityError, Code: codeWiring, Message: msg})
	}
	for _, msg := range r.Validation.Warnings {
		warns = append(warns, finding{Severity: models.SeverityWarning, Code: codeWiring, Message: msg})
	}
	if r.Wiring != nil {
		for _, msg := range r.Wiring.Issues {
			warns = append(warns, finding{Severity: models.SeverityWarning, Code: codeWiringIssue, Message: msg})
		}
	}

	out := make([]finding, 0, len(errs)+len(warns)+len(infos))
	out = append(out, errs...)
	out = append(out, warns...)
	return append(out, infos...)
}

// specFindings converts structural spec problems into findings
func specFindings(err error) []finding {
	var out []finding
	for _, p := range specProblems(err) {
		out = append(out, finding{Severity: models.SeverityError, Code: codeSpec, Message: p})
	}
	return out
}

func countSeverity(fs []finding, s models.Severity) int {
	n := 0
	for _, f := range fs {
		if f.Severity == s {
			n++
		}
	}
	return n
}

// formatFindings renders findings one per line with a severity icon
func formatFindings(fs []finding) string {
	var b strings.Builder
	for _, f := range fs {
		b.WriteString(widgets.DiagnosticLine(models.Diagnostic{
			Code:     f.Code,
			Severity: f.Severity,
			Message:  f.Message,
			Path:     f.Path,
		}))
		b.WriteString("\n")
	}
	return b.String()
}

// formatSummary renders the sizing and wiring counts of a compile result
func formatSummary(name string, r *models.CompileResult) string {
	var b strings.Builder
	topo := r.Topology

	fmt.Fprintf(&b, "%s %s\n", styles.Title.Render("Fabric "+name), widgets.StatusBadge(widgets.ResultLevel(r)))

	row := func(icon icons.Icon, label, value string) {
		fmt.Fprintf(&b, "  %s %s %s\n", icon.String(), styles.KeyStyle.Render(fmt.Sprintf("%-18s", label+":")), styles.ValueStyle.Render(value))
	}
	row(icons.Spine, "Spines", fmt.Sprintf("%d x %s", topo.SpinesNeeded, topo.SpineModelID))
	row(icons.Leaf, "Leaves", fmt.Sprintf("%d", topo.LeavesNeeded))
	if r.Wiring != nil {
		row(icons.Server, "Servers", fmt.Sprintf("%d", r.Wiring.Metadata.ServerCount))
		row(icons.Link, "Connections", fmt.Sprintf("%d", r.Wiring.Metadata.ConnectionCount))
	}
	row(icons.Link, "Oversubscription", fmt.Sprintf("%.2f:1", topo.OversubscriptionRatio))

	if topo.TotalPorts > 0 {
		pct := float64(topo.UsedPorts) / float64(topo.TotalPorts) * 100
		row(icons.Info, "Port utilization", fmt.Sprintf("%s %.0f%% (%d/%d)", styles.ProgressBar(pct, 20), pct, topo.UsedPorts, topo.TotalPorts))
	}
	return b.String()
}

// specProblems unpacks a structural validation error into its problem list
func specProblems(err error) []string {
	var verr *services.SpecValidationError
	if errors.As(err, &verr) {
		return verr.Problems
	}
	return []string{err.Error()}
}
