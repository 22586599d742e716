package main

import (
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"

	"github.com/Strob0t/devorch/internal/domain/run"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7D56F4"))
	labelStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	statusOK    = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	statusWIP   = lipgloss.NewStyle().Foreground(lipgloss.Color("208"))
	statusErr   = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
)

// styler renders with lipgloss on a terminal and passes text through
// unchanged when output is piped or captured.
type styler struct {
	color bool
}

func newStyler(w io.Writer) styler {
	f, ok := w.(*os.File)
	return styler{color: ok && term.IsTerminal(int(f.Fd()))}
}

func (s styler) render(st lipgloss.Style, text string) string {
	if !s.color {
		return text
	}
	return st.Render(text)
}

func (s styler) header(text string) string { return s.render(headerStyle, text) }

func (s styler) label(text string) string { return s.render(labelStyle, text) }

func (s styler) status(st run.Status) string {
	switch st {
	case run.StatusCompleted:
		return s.render(statusOK, string(st))
	case run.StatusFailed, run.StatusAborted:
		return s.render(statusErr, string(st))
	default:
		return s.render(statusWIP, string(st))
	}
}
