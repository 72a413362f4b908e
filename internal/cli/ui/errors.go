package ui

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
)

// Problem is an error explained for a terminal user
type Problem struct {
	Title       string
	Detail      string
	Suggestions []string
	Hint        string
}

// Render writes the problem in red with optional suggestions and a hint
func (p Problem) Render(w io.Writer, noColor bool) {
	head := color.New(color.FgRed, color.Bold)
	body := color.New(color.FgRed)
	hint := color.New(color.FgHiBlack)
	if noColor {
		head.DisableColor()
		body.DisableColor()
		hint.DisableColor()
	}

	head.Fprintf(w, "Error: %s\n", p.Title)
	if p.Detail != "" {
		body.Fprintf(w, "  %s\n", p.Detail)
	}
	if len(p.Suggestions) > 0 {
		fmt.Fprintf(w, "\n  Did you mean: %s?\n", strings.Join(p.Suggestions, ", "))
	}
	if p.Hint != "" {
		hint.Fprintf(w, "\n  → %s\n", p.Hint)
	}
}
