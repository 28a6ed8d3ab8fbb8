package search

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	markOpen  = "<mark>"
	markClose = "</mark>"

	// snippetLength bounds the description highlight to its leading
	// characters, regardless of where the match sits.
	snippetLength = 150
)

// Highlights returns up to two highlight strings for a candidate, title
// first. With empty free text no highlights are produced.
func Highlights(rec CandidateRecord, freeText string) []string {
	if freeText == "" {
		return nil
	}
	needle := strings.ToLower(freeText)
	var out []string
	if strings.Contains(strings.ToLower(rec.Title), needle) {
		out = append(out, wrapMatches(rec.Title, freeText))
	}
	if strings.Contains(strings.ToLower(rec.Description), needle) {
		out = append(out, descriptionSnippet(rec.Description, freeText))
	}
	return out
}

// wrapMatches wraps every case-insensitive occurrence of needle in s
// with the highlight marker, preserving the matched text's casing.
// Matching runs over a lowered copy of s whose byte offsets are mapped
// back to the original, because lowering can change a rune's width.
func wrapMatches(s, needle string) string {
	needle = strings.ToLower(needle)
	if needle == "" {
		return s
	}
	lowered, offsets := foldWithOffsets(s)
	var b strings.Builder
	i := 0    // cursor in lowered
	last := 0 // cursor in s
	for {
		j := strings.Index(lowered[i:], needle)
		if j < 0 {
			b.WriteString(s[last:])
			return b.String()
		}
		j += i
		from, to := offsets[j], offsets[j+len(needle)]
		b.WriteString(s[last:from])
		b.WriteString(markOpen)
		b.WriteString(s[from:to])
		b.WriteString(markClose)
		i = j + len(needle)
		last = to
	}
}

// foldWithOffsets lowers s rune by rune and records, for every byte of
// the lowered form plus its end, the position in s of the originating
// rune. Match offsets found in the lowered form stay on rune boundaries
// there, so mapping them through the table yields valid slices of s.
func foldWithOffsets(s string) (string, []int) {
	var b strings.Builder
	b.Grow(len(s))
	offsets := make([]int, 0, len(s)+1)
	for i, r := range s {
		lower := unicode.ToLower(r)
		for n := utf8.RuneLen(lower); n > 0; n-- {
			offsets = append(offsets, i)
		}
		b.WriteRune(lower)
	}
	offsets = append(offsets, len(s))
	return b.String(), offsets
}

// descriptionSnippet highlights matches inside the first snippetLength
// characters of the description and appends a trailing ellipsis. The
// window is measured in runes so the cut never splits a character.
func descriptionSnippet(description, needle string) string {
	window := description
	runes := 0
	for i := range window {
		if runes == snippetLength {
			window = window[:i]
			break
		}
		runes++
	}
	return wrapMatches(window, needle) + "..."
}
