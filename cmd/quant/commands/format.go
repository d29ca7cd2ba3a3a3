package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
)

// ═══════════════════════════════════════════════════════════
// Common Formatting Utilities
// stdout = 결과 (JSON 또는 표), stderr = 로그
// ═══════════════════════════════════════════════════════════

// output is where command results go
var output io.Writer = os.Stdout

// printJSON writes v as indented JSON
func printJSON(v interface{}) error {
	enc := json.NewEncoder(output)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// PrintHeader prints a titled double-line header
func PrintHeader(title string) {
	fmt.Fprintln(output)
	PrintDoubleSeparator()
	fmt.Fprintf(output, "  %s\n", title)
	PrintSeparator()
}

// PrintSeparator prints a visual separator
func PrintSeparator() {
	fmt.Fprintln(output, "───────────────────────────────────────────────────────────")
}

// PrintDoubleSeparator prints a double-line separator
func PrintDoubleSeparator() {
	fmt.Fprintln(output, "═══════════════════════════════════════════════════════════")
}

// PrintWarning prints a warning message
func PrintWarning(message string) {
	fmt.Fprintf(output, "⚠️  %s\n", message)
}

// PrintSuccess prints a success message
func PrintSuccess(message string) {
	fmt.Fprintf(output, "✅ %s\n", message)
}

// PrintError prints an error message
func PrintError(message string) {
	fmt.Fprintf(output, "❌ %s\n", message)
}

// PrintTableHeader prints a table header
func PrintTableHeader(columns []string, widths []int) {
	PrintTableRow(columns, widths)

	totalWidth := 0
	for i, width := range widths {
		totalWidth += width
		if i < len(widths)-1 {
			totalWidth += 2 // spacing
		}
	}
	fmt.Fprintln(output, strings.Repeat("─", totalWidth))
}

// PrintTableRow prints a table row
func PrintTableRow(values []string, widths []int) {
	for i, val := range values {
		fmt.Fprintf(output, "%-*s", widths[i], val)
		if i < len(values)-1 {
			fmt.Fprint(output, "  ")
		}
	}
	fmt.Fprintln(output)
}

// PrintList prints a bulleted list
func PrintList(items []string) {
	for _, item := range items {
		fmt.Fprintf(output, "   • %s\n", item)
	}
}

// PrintKeyValue prints key-value pairs
func PrintKeyValue(key string, value string, keyWidth int) {
	fmt.Fprintf(output, "   %-*s : %s\n", keyWidth, key, value)
}
