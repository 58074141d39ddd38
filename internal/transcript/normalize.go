// Package transcript normalizes recognized segment text.
package transcript

import "strings"

// Options controls per-line text normalization.
type Options struct {
	CapitalizeSentences bool
}

// Normalize collapses whitespace and optionally applies sentence case.
//
// Output is stable under repeated application.
func Normalize(text string, opts Options) string {
	normalized := strings.Join(strings.Fields(text), " ")
	if normalized == "" || !opts.CapitalizeSentences {
		return normalized
	}
	return capitalizeSentences(normalized)
}

// Join normalizes several fragments as one run of text.
func Join(fragments []string, opts Options) string {
	return Normalize(strings.Join(fragments, " "), opts)
}
