package rag

import (
	"regexp"
	"strings"
)

var (
	// "... langkah: 1. Buka" -> item on its own line. One or two digits only,
	// so amounts and years ("Rp 1.500", "2024.") stay put.
	inlineListItem = regexp.MustCompile(`(\S)[ \t]+(\d{1,2}\.)[ \t]+`)
	boldMarkup     = regexp.MustCompile(`\*\*|__`)
	starEmphasis   = regexp.MustCompile(`(^|[\s(])\*([^\s*][^*\n]*?)\*`)
	underEmphasis  = regexp.MustCompile(`(^|[\s(])_([^\s_][^_\n]*?)_([\s.,;:!?)]|$)`)
	headingMarker  = regexp.MustCompile(`(?m)^[ \t]*#{1,6}[ \t]+`)
	trailingSpace  = regexp.MustCompile(`(?m)[ \t]+$`)
	blankRun       = regexp.MustCompile(`\n{3,}`)
)

// PostProcessor cleans raw model output for display.
type PostProcessor struct{}

func (PostProcessor) Clean(raw string) string {
	return Clean(raw)
}

// Clean normalizes numbered lists, strips emphasis and heading markup and
// trims whitespace. Every step only removes characters or turns spaces into
// newlines, so iterating to a fixed point terminates and clean(clean(x)) ==
// clean(x).
func Clean(raw string) string {
	s := raw
	for {
		next := cleanOnce(s)
		if next == s {
			return s
		}
		s = next
	}
}

func cleanOnce(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = boldMarkup.ReplaceAllString(s, "")
	s = starEmphasis.ReplaceAllString(s, "$1$2")
	s = underEmphasis.ReplaceAllString(s, "$1$2$3")
	s = headingMarker.ReplaceAllString(s, "")
	s = inlineListItem.ReplaceAllString(s, "$1\n$2 ")
	s = trailingSpace.ReplaceAllString(s, "")
	s = blankRun.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}
