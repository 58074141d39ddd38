package transcript

import (
	"regexp"
	"strings"
	"unicode"
)

var (
	pronounIContractionPattern = regexp.MustCompile(`\bi['’](?:m|d|ll|ve|re|s)\b`)
	pronounIWordPattern        = regexp.MustCompile(`\bi\b`)

	// nonTerminalAbbreviations end in a period without ending the sentence.
	nonTerminalAbbreviations = map[string]struct{}{
		"cf": {}, "dr": {}, "e.g": {}, "etc": {}, "i.e": {}, "jr": {},
		"mr": {}, "mrs": {}, "ms": {}, "prof": {}, "sr": {}, "vs": {},
	}
)

func capitalizeSentences(text string) string {
	text = capitalizeSentenceStarts(text)
	text = pronounIContractionPattern.ReplaceAllStringFunc(text, func(match string) string {
		return "I" + match[1:]
	})
	return capitalizePronounI(text)
}

// capitalizePronounI uppercases a standalone "i" unless it is part of a
// dotted token such as "i.e.".
func capitalizePronounI(text string) string {
	var out strings.Builder
	last := 0
	for _, match := range pronounIWordPattern.FindAllStringIndex(text, -1) {
		start, end := match[0], match[1]
		out.WriteString(text[last:start])
		if end+1 < len(text) && text[end] == '.' && isASCIILetter(text[end+1]) {
			out.WriteString(text[start:end])
		} else {
			out.WriteString("I")
		}
		last = end
	}
	out.WriteString(text[last:])
	return out.String()
}

func isASCIILetter(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}

// capitalizeSentenceStarts uppercases the first letter of the text and of
// every word following a terminal . ! or ? and whitespace.
func capitalizeSentenceStarts(text string) string {
	runes := []rune(text)
	capitalize := true
	for i, r := range runes {
		switch {
		case capitalize && unicode.IsLetter(r):
			if !isAbbreviationAt(runes, i) {
				runes[i] = unicode.ToUpper(r)
			}
			capitalize = false
		case capitalize && unicode.IsDigit(r):
			capitalize = false
		case r == '!' || r == '?':
			capitalize = followedBySpace(runes, i)
		case r == '.':
			capitalize = followedBySpace(runes, i) && !isAbbreviationBefore(runes, i)
		}
	}
	return string(runes)
}

func followedBySpace(runes []rune, idx int) bool {
	return idx+1 < len(runes) && unicode.IsSpace(runes[idx+1])
}

// isAbbreviationBefore reports whether the period at idx closes a known
// abbreviation such as "e.g." or "Dr.".
func isAbbreviationBefore(runes []rune, idx int) bool {
	start := idx
	for start > 0 && (unicode.IsLetter(runes[start-1]) || runes[start-1] == '.') {
		start--
	}
	token := strings.ToLower(strings.Trim(string(runes[start:idx]), "."))
	_, ok := nonTerminalAbbreviations[token]
	return ok
}

// isAbbreviationAt keeps sentence-initial lowercase abbreviations lowercase.
func isAbbreviationAt(runes []rune, idx int) bool {
	end := idx
	for end < len(runes) && (unicode.IsLetter(runes[end]) || runes[end] == '.') {
		end++
	}
	word := string(runes[idx:end])
	if !strings.HasSuffix(word, ".") {
		return false
	}
	token := strings.Trim(word, ".")
	switch token {
	case "e.g", "i.e", "etc", "vs":
		return true
	}
	return false
}
