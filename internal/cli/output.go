// Package cli provides the command-line interface for the margin monitor.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/lemollon/AlphaGEX-sub013/internal/models"
)

// Output handles formatted output for the CLI. Color is delegated to
// fatih/color, which disables itself on non-terminals; JSON mode
// disables it unconditionally.
type Output struct {
	writer   io.Writer
	jsonMode bool
}

// NewOutput creates an Output bound to the command's stdout.
func NewOutput(cmd *cobra.Command) *Output {
	jsonMode, _ := cmd.Flags().GetBool("json")
	return &Output{
		writer:   cmd.OutOrStdout(),
		jsonMode: jsonMode,
	}
}

// IsJSON returns true if JSON output mode is enabled.
func (o *Output) IsJSON() bool {
	return o.jsonMode
}

// JSON outputs data as indented JSON.
func (o *Output) JSON(data interface{}) error {
	encoder := json.NewEncoder(o.writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(data)
}

// Println prints a message with newline.
func (o *Output) Println(args ...interface{}) {
	fmt.Fprintln(o.writer, args...)
}

// Printf prints a formatted message.
func (o *Output) Printf(format string, args ...interface{}) {
	fmt.Fprintf(o.writer, format, args...)
}

// Success prints a success message in green.
func (o *Output) Success(format string, args ...interface{}) {
	o.colored(color.FgGreen, format, args...)
}

// Error prints an error message in red.
func (o *Output) Error(format string, args ...interface{}) {
	o.colored(color.FgRed, format, args...)
}

// Warning prints a warning message in yellow.
func (o *Output) Warning(format string, args ...interface{}) {
	o.colored(color.FgYellow, format, args...)
}

// Info prints an info message in cyan.
func (o *Output) Info(format string, args ...interface{}) {
	o.colored(color.FgCyan, format, args...)
}

// Bold prints a bold message.
func (o *Output) Bold(format string, args ...interface{}) {
	fmt.Fprintln(o.writer, color.New(color.Bold).Sprintf(format, args...))
}

// Dim prints a dimmed message.
func (o *Output) Dim(format string, args ...interface{}) {
	fmt.Fprintln(o.writer, color.New(color.Faint).Sprintf(format, args...))
}

func (o *Output) colored(attr color.Attribute, format string, args ...interface{}) {
	fmt.Fprintln(o.writer, color.New(attr).Sprintf(format, args...))
}

// Green returns green colored text.
func (o *Output) Green(text string) string {
	return color.GreenString(text)
}

// Red returns red colored text.
func (o *Output) Red(text string) string {
	return color.RedString(text)
}

// Yellow returns yellow colored text.
func (o *Output) Yellow(text string) string {
	return color.YellowString(text)
}

// Cyan returns cyan colored text.
func (o *Output) Cyan(text string) string {
	return color.CyanString(text)
}

// HealthText renders a health status in its severity color.
func (o *Output) HealthText(h models.HealthStatus) string {
	switch h {
	case models.HealthHealthy:
		return o.Green(h.String())
	case models.HealthWarning:
		return o.Yellow(h.String())
	case models.HealthDanger:
		return o.Red(h.String())
	case models.HealthCritical:
		return color.New(color.FgRed, color.Bold).Sprint(h.String())
	default:
		return h.String()
	}
}

// LevelText renders an alert level in its severity color.
func (o *Output) LevelText(l models.AlertLevel) string {
	switch l {
	case models.AlertInfo:
		return o.Cyan(l.String())
	case models.AlertWarning:
		return o.Yellow(l.String())
	case models.AlertDanger:
		return o.Red(l.String())
	case models.AlertCritical:
		return color.New(color.FgRed, color.Bold).Sprint(l.String())
	default:
		return l.String()
	}
}

// SignedText colors a signed amount green for gains, red for losses.
func (o *Output) SignedText(v float64, formatted string) string {
	switch {
	case v > 0:
		return o.Green(formatted)
	case v < 0:
		return o.Red(formatted)
	default:
		return formatted
	}
}

// VerdictText renders an approval verdict.
func (o *Output) VerdictText(approved bool) string {
	if approved {
		return o.Green("APPROVED")
	}
	return color.New(color.FgRed, color.Bold).Sprint("REJECTED")
}

// Table is a simple aligned table for terminal output.
type Table struct {
	headers []string
	rows    [][]string
	output  *Output
}

// NewTable creates a table with the given headers.
func NewTable(output *Output, headers ...string) *Table {
	return &Table{
		headers: headers,
		rows:    make([][]string, 0),
		output:  output,
	}
}

// AddRow adds a row to the table.
func (t *Table) AddRow(cells ...string) {
	t.rows = append(t.rows, cells)
}

// Render prints the table with columns padded to their widest cell.
// Widths are computed on the visible text, ignoring color codes.
func (t *Table) Render() {
	if len(t.headers) == 0 {
		return
	}

	widths := make([]int, len(t.headers))
	for i, h := range t.headers {
		widths[i] = visibleLen(h)
	}
	for _, row := range t.rows {
		for i, cell := range row {
			if i < len(widths) && visibleLen(cell) > widths[i] {
				widths[i] = visibleLen(cell)
			}
		}
	}

	t.printRow(t.headers, widths, true)
	t.printSeparator(widths)
	for _, row := range t.rows {
		t.printRow(row, widths, false)
	}
}

func (t *Table) printRow(cells []string, widths []int, isHeader bool) {
	parts := make([]string, 0, len(cells))
	for i, cell := range cells {
		if i >= len(widths) {
			break
		}
		padding := widths[i] - visibleLen(cell)
		if padding < 0 {
			padding = 0
		}
		padded := cell + strings.Repeat(" ", padding)
		if isHeader {
			padded = color.New(color.Bold).Sprint(padded)
		}
		parts = append(parts, padded)
	}
	t.output.Println(strings.Join(parts, "  "))
}

func (t *Table) printSeparator(widths []int) {
	parts := make([]string, 0, len(widths))
	for _, w := range widths {
		parts = append(parts, strings.Repeat("─", w))
	}
	t.output.Println(color.New(color.Faint).Sprint(strings.Join(parts, "──")))
}

// visibleLen measures the rune count of a string with SGR escape
// sequences removed.
func visibleLen(s string) int {
	n := 0
	inEscape := false
	for _, r := range s {
		switch {
		case inEscape:
			if r == 'm' {
				inEscape = false
			}
		case r == '\x1b':
			inEscape = true
		default:
			n++
		}
	}
	return n
}
