package indexer

import (
	"strings"
	"unicode"
)

// Preprocess trims text and collapses every whitespace run into a single space.
// Extracted PDF text is full of hard line breaks and column padding.
func Preprocess(text string) string {
	text = strings.TrimSpace(text)
	var b strings.Builder
	b.Grow(len(text))
	wasSpace := false
	for _, r := range text {
		if unicode.IsSpace(r) {
			if !wasSpace {
				b.WriteRune(' ')
				wasSpace = true
			}
		} else {
			b.WriteRune(r)
			wasSpace = false
		}
	}
	return b.String()
}
