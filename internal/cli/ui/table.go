package ui

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
)

// Table prints aligned columns with a colored header
type Table struct {
	w       io.Writer
	headers []string
	rows    [][]string
	noColor bool
}

// NewTable creates a table with the given headers
func NewTable(w io.Writer, noColor bool, headers ...string) *Table {
	return &Table{w: w, headers: headers, noColor: noColor}
}

// AddRow adds a row; missing cells render empty and extra cells are dropped
func (t *Table) AddRow(cells ...string) {
	t.rows = append(t.rows, cells)
}

// Len returns the number of rows
func (t *Table) Len() int {
	return len(t.rows)
}

// Render writes the table
func (t *Table) Render() {
	if len(t.headers) == 0 {
		return
	}

	widths := make([]int, len(t.headers))
	for i, h := range t.headers {
		widths[i] = len(h)
	}
	for _, row := range t.rows {
		for i := 0; i < len(widths) && i < len(row); i++ {
			widths[i] = max(widths[i], len(plain(row[i])))
		}
	}

	head := t.color(color.Bold, color.FgCyan)
	rule := t.color(color.FgHiBlack)

	cells := make([]string, len(widths))
	for i, h := range t.headers {
		cells[i] = head.Sprint(pad(h, widths[i]))
	}
	fmt.Fprintln(t.w, strings.Join(cells, "  "))

	for i, width := range widths {
		cells[i] = rule.Sprint(strings.Repeat("─", width))
	}
	fmt.Fprintln(t.w, strings.Join(cells, "  "))

	for _, row := range t.rows {
		for i := range widths {
			cell := ""
			if i < len(row) {
				cell = row[i]
			}
			cells[i] = cell + strings.Repeat(" ", max(0, widths[i]-len(plain(cell))))
		}
		fmt.Fprintln(t.w, strings.TrimRight(strings.Join(cells, "  "), " "))
	}
}

func (t *Table) color(attrs ...color.Attribute) *color.Color {
	c := color.New(attrs...)
	if t.noColor {
		c.DisableColor()
	}
	return c
}

// Fields prints key: value pairs with aligned keys
type Fields struct {
	w       io.Writer
	keys    []string
	values  []string
	noColor bool
}

// NewFields creates an empty key/value listing
func NewFields(w io.Writer, noColor bool) *Fields {
	return &Fields{w: w, noColor: noColor}
}

// Add appends a pair
func (f *Fields) Add(key, value string) {
	f.keys = append(f.keys, key)
	f.values = append(f.values, value)
}

// Render writes the pairs
func (f *Fields) Render() {
	width := 0
	for _, k := range f.keys {
		width = max(width, len(k)+1)
	}

	key := color.New(color.FgCyan)
	if f.noColor {
		key.DisableColor()
	}
	for i, k := range f.keys {
		key.Fprint(f.w, pad(k+":", width))
		fmt.Fprintf(f.w, " %s\n", f.values[i])
	}
}

// Status colors a reconciliation outcome for display
func Status(outcome string, noColor bool) string {
	var c *color.Color
	switch outcome {
	case "matched", "fetched":
		c = color.New(color.FgGreen)
	case "created":
		c = color.New(color.FgCyan)
	case "unmatched", "skipped":
		c = color.New(color.FgYellow)
	default:
		c = color.New(color.FgRed)
	}
	if noColor {
		c.DisableColor()
	}
	return c.Sprint(outcome)
}

func pad(s string, width int) string {
	if len(s) >= width {
		return s
	}
	return s + strings.Repeat(" ", width-len(s))
}

// plain strips ANSI color sequences so colored cells align
func plain(s string) string {
	if !strings.Contains(s, "\x1b[") {
		return s
	}
	var b strings.Builder
	inEscape := false
	for _, r := range s {
		switch {
		case r == '\x1b':
			inEscape = true
		case inEscape && r == 'm':
			inEscape = false
		case !inEscape:
			b.WriteRune(r)
		}
	}
	return b.String()
}
