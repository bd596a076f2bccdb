package core

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
)

// disallowed matches runes stripped from text values: anything that is not
// printable except newline, carriage return and tab. Ill-formed UTF-8 reaches
// the predicate as utf8.RuneError and is stripped too.
var disallowed = runes.Predicate(func(r rune) bool {
	switch r {
	case '\n', '\r', '\t':
		return false
	case utf8.RuneError:
		return true
	}
	return !unicode.IsPrint(r)
})

// CleanText removes characters that are not printable UTF-8 (keeping \n, \r
// and \t) and trims surrounding whitespace.
func CleanText(s string) string {
	if isPlainASCII(s) {
		return strings.TrimSpace(s)
	}
	cleaned, _, err := transform.String(runes.Remove(disallowed), s)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(cleaned)
}

// isPlainASCII reports whether s holds only printable ASCII plus \n, \r, \t.
// This is a fast path since most spreadsheet text is ASCII.
func isPlainASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		b := s[i]
		if b >= 0x7f || (b < 0x20 && b != '\n' && b != '\r' && b != '\t') {
			return false
		}
	}
	return true
}

// truncateRunes cuts s to at most n characters without splitting a
// multi-byte sequence.
func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}
