package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"gopkg.in/yaml.v3"

	"github.com/beam-cloud/kbpicker/pkg/picker"
	"github.com/beam-cloud/kbpicker/pkg/types"
)

type OutputFormat string

const (
	FormatText OutputFormat = "text"
	FormatJSON OutputFormat = "json"
	FormatYAML OutputFormat = "yaml"
)

var (
	outputFormat           = FormatText
	stdout       io.Writer = os.Stdout
)

// SetOutputFormat sets how commands print their results
func SetOutputFormat(format OutputFormat) {
	outputFormat = format
}

// IsStructuredOutput returns true if JSON or YAML output is enabled
func IsStructuredOutput() bool {
	return outputFormat == FormatJSON || outputFormat == FormatYAML
}

// PrintStructured outputs data as JSON or YAML if enabled, returns true if it did
func PrintStructured(data any) bool {
	switch outputFormat {
	case FormatJSON:
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		enc.Encode(data)
		return true
	case FormatYAML:
		enc := yaml.NewEncoder(stdout)
		enc.SetIndent(2)
		enc.Encode(data)
		enc.Close()
		return true
	}
	return false
}

// PrintSuccess prints a success message with a green checkmark
func PrintSuccess(msg string) {
	fmt.Fprintf(stdout, "  %s %s\n", SuccessStyle.Render(SymbolSuccess), msg)
}

// PrintSuccessf prints a formatted success message
func PrintSuccessf(format string, args ...any) {
	PrintSuccess(fmt.Sprintf(format, args...))
}

// PrintErrorMsg prints a simple error message string
func PrintErrorMsg(msg string) {
	fmt.Fprintf(stdout, "  %s %s\n", ErrorStyle.Render(SymbolError), ErrorStyle.Render(msg))
}

// PrintWarning prints a warning message with a yellow indicator
func PrintWarning(msg string) {
	fmt.Fprintf(stdout, "  %s %s\n", WarningStyle.Render(SymbolWarning), WarningStyle.Render(msg))
}

// PrintInfo prints an info message with an arrow
func PrintInfo(msg string) {
	fmt.Fprintf(stdout, "  %s %s\n", InfoStyle.Render(SymbolInfo), msg)
}

// PrintInfof prints a formatted info message
func PrintInfof(format string, args ...any) {
	PrintInfo(fmt.Sprintf(format, args...))
}

// PrintHint prints a subtle hint/suggestion
func PrintHint(msg string) {
	fmt.Fprintf(stdout, "\n  %s\n", HintStyle.Render(msg))
}

// PrintSuggestions prints a list of suggestions
func PrintSuggestions(title string, suggestions []string) {
	fmt.Fprintln(stdout)
	fmt.Fprintf(stdout, "  %s\n", DimStyle.Render(title))
	for _, s := range suggestions {
		fmt.Fprintf(stdout, "    %s %s\n", DimStyle.Render(SymbolBullet), s)
	}
}

// PrintHeader prints a section header
func PrintHeader(title string) {
	fmt.Fprintf(stdout, "\n  %s\n\n", BoldStyle.Render(title))
}

// PrintKeyValue prints a key-value pair with consistent alignment
func PrintKeyValue(key, value string) {
	fmt.Fprintf(stdout, "  %s %s\n", KeyStyle.Render(key), value)
}

// Table represents a styled table
type Table struct {
	Headers []string
	Rows    [][]string
	Widths  []int
}

// NewTable creates a new table with the given headers
func NewTable(headers ...string) *Table {
	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = len(h)
	}
	return &Table{
		Headers: headers,
		Widths:  widths,
	}
}

// AddRow adds a row to the table. Widths are measured on the unstyled cell text.
func (t *Table) AddRow(cells ...string) {
	row := make([]string, len(t.Headers))
	for i := range row {
		if i < len(cells) {
			row[i] = cells[i]
			if w := lipgloss.Width(cells[i]); w > t.Widths[i] {
				t.Widths[i] = w
			}
		}
	}
	t.Rows = append(t.Rows, row)
}

// Print renders the table to stdout
func (t *Table) Print() {
	if len(t.Rows) == 0 {
		return
	}

	fmt.Fprint(stdout, "  ")
	for i, h := range t.Headers {
		fmt.Fprint(stdout, TableHeaderStyle.Width(t.Widths[i]+2).Render(h))
	}
	fmt.Fprintln(stdout)

	fmt.Fprint(stdout, "  ")
	for i := range t.Headers {
		fmt.Fprint(stdout, DimStyle.Render(strings.Repeat("─", t.Widths[i])), "  ")
	}
	fmt.Fprintln(stdout)

	for _, row := range t.Rows {
		fmt.Fprint(stdout, "  ")
		for i, cell := range row {
			fmt.Fprint(stdout, TableCellStyle.Width(t.Widths[i]+2).Render(cell))
		}
		fmt.Fprintln(stdout)
	}
}

// PrintItems renders drive items with their badge. selected may be nil.
func PrintItems(items []types.DriveItem, selected func(id string) bool) {
	if len(items) == 0 {
		fmt.Fprintf(stdout, "  %s\n", DimStyle.Render("No files in this folder"))
		return
	}

	headers := []string{"NAME", "STATUS", "MODIFIED", "ID"}
	if selected != nil {
		headers = append([]string{""}, headers...)
	}
	table := NewTable(headers...)
	for _, item := range items {
		name := item.Name
		if item.IsFolder() {
			name = SymbolFolder + " " + name
		}
		row := []string{
			Truncate(name, 48),
			RenderBadge(picker.Badge(item)),
			FormatRelativeTime(item.ModifiedAt),
			item.ID,
		}
		if selected != nil {
			mark := SymbolEmpty
			if selected(item.ID) {
				mark = SymbolSelected
			}
			row = append([]string{mark}, row...)
		}
		table.AddRow(row...)
	}
	table.Print()
}

// PrintBreadcrumb prints the folder trail
func PrintBreadcrumb(trail []picker.Breadcrumb) {
	labels := make([]string, len(trail))
	for i, b := range trail {
		labels[i] = b.Label
		if i == len(trail)-1 {
			labels[i] = BoldStyle.Render(b.Label)
		}
	}
	fmt.Fprintf(stdout, "  %s\n", strings.Join(labels, DimStyle.Render(" / ")))
}

// FormatRelativeTime formats a timestamp as relative time (e.g., "2 hours ago")
func FormatRelativeTime(timestamp string) string {
	t, err := time.Parse(time.RFC3339, timestamp)
	if err != nil {
		return timestamp
	}

	duration := time.Since(t)

	switch {
	case duration < time.Minute:
		return "just now"
	case duration < time.Hour:
		mins := int(duration.Minutes())
		if mins == 1 {
			return "1 minute ago"
		}
		return fmt.Sprintf("%d minutes ago", mins)
	case duration < 24*time.Hour:
		hours := int(duration.Hours())
		if hours == 1 {
			return "1 hour ago"
		}
		return fmt.Sprintf("%d hours ago", hours)
	case duration < 7*24*time.Hour:
		days := int(duration.Hours() / 24)
		if days == 1 {
			return "1 day ago"
		}
		return fmt.Sprintf("%d days ago", days)
	default:
		return t.Format("Jan 2, 2006")
	}
}

// Truncate truncates a string to maxLen runes, adding "..." if needed
func Truncate(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(r[:maxLen])
	}
	return string(r[:maxLen-3]) + "..."
}
