// Package output renders recognition results for the terminal or for tools.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/rbright/parley/internal/recognize"
)

// Format selects how results are written.
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
)

// ParseFormat accepts a case-insensitive format name.
func ParseFormat(value string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(value))) {
	case FormatText:
		return FormatText, nil
	case FormatJSON:
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("unknown output format %q (want text or json)", value)
	}
}

// Writer renders results and lines to one destination.
type Writer struct {
	out    io.Writer
	format Format
	styles Styles
}

// New returns a writer whose styling follows the color support of out.
func New(out io.Writer, format Format) *Writer {
	return &Writer{
		out:    out,
		format: format,
		styles: NewStyles(lipgloss.NewRenderer(out)),
	}
}

// Result writes a whole transcript. JSON output is one indented document.
func (w *Writer) Result(result recognize.Result) error {
	if w.format == FormatJSON {
		enc := json.NewEncoder(w.out)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}
	for _, line := range result.Lines {
		if err := w.Line(line); err != nil {
			return err
		}
	}
	return nil
}

// Line writes one transcript line as soon as it is available. JSON output is
// one compact object per line.
func (w *Writer) Line(line recognize.Line) error {
	if w.format == FormatJSON {
		return json.NewEncoder(w.out).Encode(line)
	}
	_, err := fmt.Fprintln(w.out, w.styles.line(line))
	return err
}

// Summary writes the latency footer of a text result.
func (w *Writer) Summary(result recognize.Result) error {
	summary := fmt.Sprintf("%d lines, diarization %.2fs, transcription %.2fs",
		len(result.Lines),
		result.DiarizationLatency.Seconds(),
		result.TranscriptionLatency.Seconds(),
	)
	_, err := fmt.Fprintln(w.out, w.styles.Dim.Render(summary))
	return err
}
