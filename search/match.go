package search

import (
	"slices"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// normalizeQuery trims and NFC-normalizes a raw query. Case is left alone:
// matching folds each rune, and lowercasing first can expand one rune into
// several that no longer fold back to the text.
// Invalid UTF-8 is dropped rather than rejected.
func normalizeQuery(q string) string {
	q = strings.ToValidUTF8(q, "")
	q = strings.TrimSpace(q)
	if q == "" {
		return ""
	}
	return norm.NFC.String(q)
}

// normalizeField prepares record text for matching.
func normalizeField(s string) string {
	return norm.NFC.String(strings.ToValidUTF8(s, ""))
}

// nfcIndex is a text in NFC together with the offsets of its
// normalization segments in both the NFC form and the original bytes.
type nfcIndex struct {
	text string
	nfc  []int // segment starts in text, then len(text)
	orig []int // segment starts in the original, then its length
}

func newNFCIndex(s string) nfcIndex {
	var b strings.Builder
	var idx nfcIndex
	for i := 0; i < len(s); {
		n := norm.NFC.NextBoundaryInString(s[i:], true)
		if n <= 0 {
			_, n = utf8.DecodeRuneInString(s[i:])
		}
		idx.nfc = append(idx.nfc, b.Len())
		idx.orig = append(idx.orig, i)
		b.WriteString(normalizeField(s[i : i+n]))
		i += n
	}
	idx.nfc = append(idx.nfc, b.Len())
	idx.orig = append(idx.orig, len(s))
	idx.text = b.String()
	return idx
}

// span widens the NFC byte range [start, end) to whole segments and
// returns it in original bytes, plus the NFC offset where it ends.
// Segments that normalize to nothing (invalid bytes) stay outside the span.
func (x nfcIndex) span(start, end int) (origStart, origEnd, nfcEnd int) {
	i, found := slices.BinarySearch(x.nfc, start)
	if found {
		for i+1 < len(x.nfc) && x.nfc[i+1] == start {
			i++
		}
	} else {
		i--
	}
	j, _ := slices.BinarySearch(x.nfc, end)
	return x.orig[i], x.orig[j], x.nfc[j]
}

// containsFold reports whether sub occurs in s under simple case folding.
func containsFold(s, sub string) bool {
	start, _ := indexFold(s, sub)
	return start >= 0
}

// indexFold returns the byte range [start, end) of the first case-insensitive
// occurrence of sub in s, or (-1, -1). The range is expressed in s's own
// bytes so callers can slice the original text even when folded runes
// differ in encoded width.
func indexFold(s, sub string) (start, end int) {
	if sub == "" {
		return -1, -1
	}
	for i := 0; i < len(s); {
		if n := prefixFold(s[i:], sub); n > 0 {
			return i, i + n
		}
		_, w := utf8.DecodeRuneInString(s[i:])
		i += w
	}
	return -1, -1
}

// prefixFold returns the number of bytes of s matched by sub when s starts
// with sub under case folding, or 0.
func prefixFold(s, sub string) int {
	i := 0
	for _, want := range sub {
		if i >= len(s) {
			return 0
		}
		got, w := utf8.DecodeRuneInString(s[i:])
		if !equalFoldRune(got, want) {
			return 0
		}
		i += w
	}
	return i
}

func equalFoldRune(a, b rune) bool {
	if a == b {
		return true
	}
	for r := unicode.SimpleFold(a); r != a; r = unicode.SimpleFold(r) {
		if r == b {
			return true
		}
	}
	return false
}
