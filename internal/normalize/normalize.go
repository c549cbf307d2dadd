// Package normalize turns scraped page text into a compact prompt-ready string.
package normalize

import (
	"html"
	"regexp"
	"strings"
	"unicode"
)

var (
	htmlTagRegex = regexp.MustCompile(`<[^>]*>`)
	urlRegex     = regexp.MustCompile(`(?i)\b(?:https?://|www\.)[^\s<>"']+`)
)

// essential punctuation kept in the output; everything else that is not a
// letter, digit or space is dropped.
const essential = `.,;:!?'"()/&+#%-@$`

// Text collapses whitespace, strips markup leftovers, links and decorative
// symbols from raw page text. The result has no leading or trailing
// whitespace and no runs of more than one space.
func Text(raw string) string {
	if raw == "" {
		return ""
	}

	text := html.UnescapeString(raw)
	text = htmlTagRegex.ReplaceAllString(text, " ")
	text = urlRegex.ReplaceAllString(text, " ")
	text = strings.Map(keepRune, text)

	return strings.Join(strings.Fields(text), " ")
}

func keepRune(r rune) rune {
	switch {
	case unicode.IsSpace(r):
		return ' '
	case unicode.IsLetter(r), unicode.IsDigit(r):
		return r
	case unicode.IsMark(r):
		// combining accents belong to the preceding letter
		return r
	case strings.ContainsRune(essential, r):
		return r
	case r == '’' || r == '‘':
		return '\''
	case r == '“' || r == '”':
		return '"'
	case r == '–' || r == '—':
		return '-'
	case r == '•' || r == '·':
		// bullets separate list items
		return ' '
	default:
		return -1
	}
}
