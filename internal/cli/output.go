package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"gopkg.in/yaml.v3"
)

// useColor gates ANSI escapes. Set once at startup from --no-color and
// whether stdout is a terminal.
var useColor bool

// All codes are the same width so tabwriter columns stay aligned.
const (
	ansiReset  = "\033[0m"
	ansiRed    = "\033[31m"
	ansiGreen  = "\033[32m"
	ansiYellow = "\033[33m"
	ansiCyan   = "\033[36m"
	ansiBright = "\033[91m"
)

func colorize(code, s string) string {
	if !useColor {
		return s
	}
	return code + s + ansiReset
}

// Table renders data as a formatted table.
type Table struct {
	headers []string
	rows    [][]string
	writer  io.Writer
}

// NewTable creates a new table with the given headers.
func NewTable(headers ...string) *Table {
	return &Table{
		headers: headers,
		writer:  os.Stdout,
	}
}

// AddRow adds a row to the table.
func (t *Table) AddRow(cols ...string) {
	t.rows = append(t.rows, cols)
}

// Render writes the table to stdout.
func (t *Table) Render() {
	w := tabwriter.NewWriter(t.writer, 0, 0, 2, ' ', 0)

	fmt.Fprintln(w, strings.Join(t.headers, "\t"))

	sep := make([]string, len(t.headers))
	for i, h := range t.headers {
		sep[i] = strings.Repeat("-", len(h))
	}
	fmt.Fprintln(w, strings.Join(sep, "\t"))

	for _, row := range t.rows {
		fmt.Fprintln(w, strings.Join(row, "\t"))
	}

	w.Flush()
}

// printOutput prints data in the requested format.
func printOutput(data interface{}) error {
	switch getOutputFormat() {
	case "yaml":
		return printYAML(data)
	default:
		return printJSON(data)
	}
}

func printJSON(data interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(data)
}

func printYAML(data interface{}) error {
	enc := yaml.NewEncoder(os.Stdout)
	enc.SetIndent(2)
	defer enc.Close()
	return enc.Encode(data)
}

// truncate shortens a string to maxLen, adding "..." if truncated.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}

// formatSeverity returns a severity string with visual indicator.
func formatSeverity(severity string) string {
	switch strings.ToLower(severity) {
	case "critical":
		return colorize(ansiBright, "[!] CRITICAL")
	case "high":
		return colorize(ansiRed, "[H] HIGH")
	case "medium":
		return colorize(ansiYellow, "[M] MEDIUM")
	case "low":
		return colorize(ansiCyan, "[L] LOW")
	default:
		return severity
	}
}

// formatState returns a lifecycle state string with visual indicator.
func formatState(state string) string {
	switch strings.ToUpper(state) {
	case "ACTIVE":
		return colorize(ansiRed, "[*] ACTIVE")
	case "ACKNOWLEDGED":
		return colorize(ansiYellow, "[~] ACKNOWLEDGED")
	case "RESOLVED":
		return colorize(ansiGreen, "[+] RESOLVED")
	default:
		return state
	}
}

// formatConnection returns a connection state string with visual
// indicator.
func formatConnection(state string) string {
	switch state {
	case "OPEN":
		return colorize(ansiGreen, "[+] connected")
	case "CONNECTING":
		return colorize(ansiYellow, "[*] connecting")
	case "CLOSED_RETRYING":
		return colorize(ansiRed, "[-] reconnecting")
	default:
		return state
	}
}

// formatReading renders the breached value against its threshold.
func formatReading(current, threshold, deviation float64) string {
	return fmt.Sprintf("%.2f/%.2f (%+.1f%%)", current, threshold, deviation)
}

// formatAge renders how long ago t was, compactly.
func formatAge(t time.Time, now time.Time) string {
	if t.IsZero() {
		return "-"
	}
	d := now.Sub(t)
	switch {
	case d < time.Minute:
		return fmt.Sprintf("%ds", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh%02dm", int(d.Hours()), int(d.Minutes())%60)
	default:
		return t.Format("2006-01-02 15:04")
	}
}
