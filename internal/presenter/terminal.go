package presenter

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"

	"ticket-scanner/internal/domain/scan"
)

const boxWidth = 48

var (
	colorValid   = lipgloss.Color("#22c55e")
	colorInvalid = lipgloss.Color("#ef4444")
	colorMuted   = lipgloss.Color("245")
)

// Terminal draws each result as a bordered box on an attached console.
type Terminal struct {
	mu  sync.Mutex
	out io.Writer
}

func NewTerminal(out io.Writer) *Terminal {
	return &Terminal{out: out}
}

func (t *Terminal) Present(r scan.Result) {
	box := Render(NewView(r))
	t.mu.Lock()
	defer t.mu.Unlock()
	fmt.Fprintln(t.out, box)
}

// Render lays a view out as a bordered box.
func Render(v View) string {
	accent, icon := colorInvalid, "✗"
	if v.Valid {
		accent, icon = colorValid, "✓"
	}

	title := lipgloss.NewStyle().
		Bold(true).
		Foreground(accent).
		Width(boxWidth - 4).
		Align(lipgloss.Center).
		Render(icon + " " + v.Title)

	labelStyle := lipgloss.NewStyle().Foreground(colorMuted)
	valueStyle := lipgloss.NewStyle().Bold(true)

	var body string
	if v.Valid {
		rows := make([]string, 0, len(v.Fields))
		for _, f := range v.Fields {
			label := labelStyle.Render(f.Label + ":")
			value := valueStyle.Render(f.Value)
			gap := boxWidth - 4 - lipgloss.Width(label) - lipgloss.Width(value)
			if gap < 1 {
				gap = 1
			}
			rows = append(rows, label+strings.Repeat(" ", gap)+value)
		}
		body = strings.Join(rows, "\n")
	} else {
		body = labelStyle.
			Width(boxWidth - 4).
			Align(lipgloss.Center).
			Render(v.Message)
	}

	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(accent).
		Padding(0, 1).
		Render(title + "\n\n" + body)
}
