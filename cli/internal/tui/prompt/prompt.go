// ABOUTME: Interactive huh forms for resolving import conflicts one at a time
// ABOUTME: Themed with the shared palette so prompts match the rest of the CLI output

package prompt

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/markalston/fabric-planner/backend/models"
	"github.com/markalston/fabric-planner/cli/internal/tui/styles"
)

// createTheme returns a huh theme built from the shared palette
func createTheme() *huh.Theme {
	t := huh.ThemeBase()

	t.Group.Title = lipgloss.NewStyle().
		Foreground(styles.Primary).
		Bold(true).
		MarginBottom(1)
	t.Group.Description = lipgloss.NewStyle().
		Foreground(styles.Muted).
		MarginBottom(1)

	t.Focused.Base = lipgloss.NewStyle().
		PaddingLeft(1).
		BorderStyle(lipgloss.ThickBorder()).
		BorderLeft(true).
		BorderForeground(styles.Primary)
	t.Focused.Title = lipgloss.NewStyle().
		Foreground(styles.Text).
		Bold(true)
	t.Focused.Description = lipgloss.NewStyle().
		Foreground(styles.Muted)
	t.Focused.ErrorIndicator = lipgloss.NewStyle().
		Foreground(styles.Danger).
		SetString(" *")
	t.Focused.ErrorMessage = lipgloss.NewStyle().
		Foreground(styles.Danger)

	t.Focused.SelectSelector = lipgloss.NewStyle().
		Foreground(styles.Primary).
		SetString("> ")
	t.Focused.SelectedOption = lipgloss.NewStyle().
		Foreground(styles.Primary).
		Bold(true)

	t.Blurred = t.Focused
	t.Blurred.Base = lipgloss.NewStyle().
		PaddingLeft(1).
		BorderStyle(lipgloss.HiddenBorder()).
		BorderLeft(true)
	t.Blurred.Title = lipgloss.NewStyle().
		Foreground(styles.Muted)

	return t
}

var actionLabels = map[models.ResolutionAction]string{
	models.ActionAccept: "Accept imported value",
	models.ActionReject: "Keep current value",
	models.ActionModify: "Enter a different value",
}

// ActionOptions lists the select options for a conflict's supported actions
func ActionOptions(c models.ImportConflict) []huh.Option[models.ResolutionAction] {
	opts := make([]huh.Option[models.ResolutionAction], 0, len(c.SupportedActions))
	for _, a := range c.SupportedActions {
		label := actionLabels[a]
		if a == models.ActionAccept {
			label = fmt.Sprintf("%s (%v)", label, display(c.ImportedValue))
		}
		if a == models.ActionReject {
			label = fmt.Sprintf("%s (%v)", label, display(c.CurrentValue))
		}
		opts = append(opts, huh.NewOption(label, a))
	}
	return opts
}

// Describe renders the one-line context shown under a conflict's title
func Describe(c models.ImportConflict) string {
	desc := fmt.Sprintf("[%s/%s] %s: current %v, imported %v",
		c.Category, c.Severity, c.Path, display(c.CurrentValue), display(c.ImportedValue))
	if c.SuggestedValue != nil {
		desc += fmt.Sprintf(", suggested %v", c.SuggestedValue)
	}
	return desc
}

// ResolveConflict asks how to resolve c. A modify answer is followed by a
// prompt for the replacement value.
func ResolveConflict(ctx context.Context, c models.ImportConflict) (models.ResolutionAction, any, error) {
	action := c.SupportedActions[0]
	err := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[models.ResolutionAction]().
				Title(c.Message).
				Description(Describe(c)).
				Options(ActionOptions(c)...).
				Value(&action),
		),
	).WithTheme(createTheme()).RunWithContext(ctx)
	if err != nil {
		return "", nil, err
	}
	if action != models.ActionModify {
		return action, nil, nil
	}

	var raw string
	if c.SuggestedValue != nil {
		raw = fmt.Sprintf("%v", c.SuggestedValue)
	}
	err = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("New value for " + c.Path).
				Description("JSON values are parsed; anything else is kept as text").
				Value(&raw).
				Validate(validateNonEmpty),
		),
	).WithTheme(createTheme()).RunWithContext(ctx)
	if err != nil {
		return "", nil, err
	}
	return action, ParseValue(raw), nil
}

// ParseValue decodes s as JSON, falling back to the trimmed string
func ParseValue(s string) any {
	s = strings.TrimSpace(s)
	var v any
	if err := json.Unmarshal([]byte(s), &v); err == nil {
		return v
	}
	return s
}

func validateNonEmpty(s string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("a value is required")
	}
	return nil
}

func display(v any) any {
	if v == nil {
		return "<unset>"
	}
	return v
}
