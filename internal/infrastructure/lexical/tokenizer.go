package lexical

import (
	"strings"
	"unicode"
)

// Tokenize lower-cases text and splits it on anything that is not a letter or digit.
// Underscore-joined identifiers such as fault codes also yield the joined form,
// so "ALM_3021" produces "alm", "3021" and "alm_3021".
func Tokenize(s string) []string {
	if s == "" {
		return nil
	}
	out := make([]string, 0, 24)
	var (
		word     strings.Builder
		compound strings.Builder
		parts    int
	)
	flushWord := func() {
		if word.Len() == 0 {
			return
		}
		out = append(out, word.String())
		if compound.Len() > 0 {
			compound.WriteByte('_')
		}
		compound.WriteString(word.String())
		parts++
		word.Reset()
	}
	flushCompound := func() {
		if parts > 1 {
			out = append(out, compound.String())
		}
		compound.Reset()
		parts = 0
	}

	for _, r := range s {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			word.WriteRune(unicode.ToLower(r))
		case r == '_':
			flushWord()
		default:
			flushWord()
			flushCompound()
		}
	}
	flushWord()
	flushCompound()
	return out
}
