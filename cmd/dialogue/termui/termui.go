// Package termui holds the terminal helpers shared by the interactive
// commands.
package termui

import (
	"strings"

	"github.com/charmbracelet/glamour"
	"golang.org/x/term"
)

// IsTerminal reports whether v is a file attached to a terminal.
func IsTerminal(v any) bool {
	f, ok := v.(interface{ Fd() uintptr })
	return ok && term.IsTerminal(int(f.Fd()))
}

// Renderer renders model replies as markdown when writing to a terminal and
// passes them through untouched otherwise, so piped output stays plain.
type Renderer struct {
	md *glamour.TermRenderer
}

// NewRenderer returns a renderer for out.
func NewRenderer(out any, width int) *Renderer {
	if !IsTerminal(out) {
		return &Renderer{}
	}
	return newMarkdownRenderer(width)
}

func newMarkdownRenderer(width int) *Renderer {
	md, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return &Renderer{}
	}
	return &Renderer{md: md}
}

// Render returns content ready to print. Rendering errors fall back to the
// raw text.
func (r *Renderer) Render(content string) string {
	if r == nil || r.md == nil {
		return content
	}
	out, err := r.md.Render(content)
	if err != nil {
		return content
	}
	return strings.Trim(out, "\n")
}
