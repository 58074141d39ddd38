package output

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"

	"github.com/rbright/parley/internal/recognize"
)

// speakerColors cycles by speaker id.
var speakerColors = []lipgloss.Color{
	"#00ff9f",
	"#00b8ff",
	"#ff6ac1",
	"#f1fa8c",
	"#bd93f9",
	"#ffb86c",
}

// Styles holds the terminal styles for text output.
type Styles struct {
	Speakers []lipgloss.Style
	Time     lipgloss.Style
	Text     lipgloss.Style
	Dim      lipgloss.Style
}

// NewStyles builds styles bound to renderer, so a non-terminal destination
// gets plain text.
func NewStyles(renderer *lipgloss.Renderer) Styles {
	styles := Styles{
		Time: renderer.NewStyle().Foreground(lipgloss.Color("#6e7681")),
		Text: renderer.NewStyle(),
		Dim:  renderer.NewStyle().Faint(true),
	}
	for _, color := range speakerColors {
		styles.Speakers = append(styles.Speakers, renderer.NewStyle().Bold(true).Foreground(color))
	}
	return styles
}

func (s Styles) line(line recognize.Line) string {
	span := s.Time.Render(fmt.Sprintf("%.2fs - %.2fs:", line.Start, line.End))
	text := s.Text.Render(line.Text)
	if line.Speaker == nil {
		return span + " " + text
	}
	speaker := s.Speakers[*line.Speaker%len(s.Speakers)]
	return speaker.Render("["+line.SpeakerLabel()+"]") + " " + span + " " + text
}
