package transcript

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNormalizeCollapsesWhitespaceAndSentenceCase(t *testing.T) {
	t.Parallel()

	got := Join([]string{" hello", "world.", "\nfrom", "parley"}, Options{CapitalizeSentences: true})
	require.Equal(t, "Hello world. From parley", got)
}

func TestNormalizeWithoutCapitalization(t *testing.T) {
	t.Parallel()

	require.Equal(t, "hello world", Normalize("  hello \t world ", Options{}))
}

func TestNormalizeEmptyInput(t *testing.T) {
	t.Parallel()

	require.Empty(t, Normalize(" \n\t ", Options{CapitalizeSentences: true}))
	require.Empty(t, Join(nil, Options{CapitalizeSentences: true}))
}

func TestNormalizeCapitalizesPronounI(t *testing.T) {
	t.Parallel()

	got := Normalize("when i speak i'm clearer. i think i will keep using it.", Options{CapitalizeSentences: true})
	require.Equal(t, "When I speak I'm clearer. I think I will keep using it.", got)
}

func TestNormalizeRespectsAbbreviationsAndDecimals(t *testing.T) {
	t.Parallel()

	got := Normalize("we met dr. smith at 3.5 pm. e.g. this stays lower! ok? sure", Options{CapitalizeSentences: true})
	require.Equal(t, "We met dr. smith at 3.5 pm. e.g. this stays lower! Ok? Sure", got)
}

func TestNormalizeKeepsDottedI(t *testing.T) {
	t.Parallel()

	got := Normalize("the model, i.e. the decoder, is what i load.", Options{CapitalizeSentences: true})
	require.Equal(t, "The model, i.e. the decoder, is what I load.", got)
}

func TestNormalizeIsIdempotent(t *testing.T) {
	t.Parallel()

	opts := Options{CapitalizeSentences: true}
	first := Normalize("hello world. this is parley", opts)
	require.Equal(t, first, Normalize(first, opts))
}
