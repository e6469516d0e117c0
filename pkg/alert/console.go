package alert

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/invisible-tech/keylogger-sensor/internal/types"
)

var (
	colorRed    = lipgloss.Color("#FF5555")
	colorOrange = lipgloss.Color("#FFB86C")
	colorGray   = lipgloss.Color("#6272A4")
	colorWhite  = lipgloss.Color("#F8F8F2")
)

// ConsoleHandler prints a banner for each alert.
type ConsoleHandler struct {
	out   io.Writer
	panel lipgloss.Style
	title lipgloss.Style
	label lipgloss.Style
	value lipgloss.Style
}

// NewConsoleHandler creates a ConsoleHandler writing to out. Colors are
// only emitted when out is a terminal.
func NewConsoleHandler(out io.Writer) *ConsoleHandler {
	r := lipgloss.NewRenderer(out)
	return &ConsoleHandler{
		out: out,
		panel: r.NewStyle().
			Border(lipgloss.RoundedBorder()).
			Padding(0, 1),
		title: r.NewStyle().Bold(true),
		label: r.NewStyle().Foreground(colorGray),
		value: r.NewStyle().Foreground(colorWhite),
	}
}

func (c *ConsoleHandler) HandleAlert(_ context.Context, event types.AlertEvent) error {
	accent := colorOrange
	if event.Severity == types.SeverityCritical {
		accent = colorRed
	}

	res := event.Result
	rows := [][2]string{}
	if event.Process != nil {
		rows = append(rows, [2]string{"Process", fmt.Sprintf("%s (PID %d)", event.Process.Name, event.Process.PID)})
	}
	rows = append(rows,
		[2]string{"File", res.FilePath},
		[2]string{"Level", res.ThreatLevel.String()},
		[2]string{"Confidence", fmt.Sprintf("%.1f%%", res.Confidence*100)},
		[2]string{"Size", humanize.Bytes(res.Features.FileSize)},
		[2]string{"Detected", event.Timestamp.Format("2006-01-02 15:04:05")},
		[2]string{"ID", event.EventID},
	)

	lines := []string{c.title.Foreground(accent).Render(fmt.Sprintf("THREAT DETECTED [%s]", event.Severity))}
	for _, row := range rows {
		lines = append(lines, c.label.Render(fmt.Sprintf("%-11s", row[0]+":"))+c.value.Render(row[1]))
	}

	_, err := fmt.Fprintln(c.out, c.panel.BorderForeground(accent).Render(strings.Join(lines, "\n")))
	return err
}
