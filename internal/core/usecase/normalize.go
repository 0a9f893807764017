package usecase

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// QueryNormalizer canonicalizes free text before it reaches search: Unicode
// space collapse, trim, and acronym/synonym expansion. It never fails; input
// that matches nothing comes back unchanged apart from whitespace.
//
// Re-running Normalize on its own output keeps the search-relevant content
// stable: expansion phrases already present in the query are not appended
// again. Byte-equality across runs is not promised (quoting may differ).
type QueryNormalizer struct {
	table SynonymTable
}

func NewQueryNormalizer(table SynonymTable) *QueryNormalizer {
	return &QueryNormalizer{table: table}
}

func (n *QueryNormalizer) Normalize(raw string) string {
	q := collapseSpaces(raw)
	if q == "" {
		return q
	}

	lower := strings.ToLower(q)
	for _, phrase := range n.table.expansions(q) {
		if strings.Contains(lower, strings.ToLower(phrase)) {
			continue
		}
		// Quoted to favor phrase match on backends that support it.
		q += ` "` + phrase + `"`
		lower = strings.ToLower(q)
	}
	return q
}

// collapseSpaces maps every Unicode space run to a single ASCII space and trims.
func collapseSpaces(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	inSpace := false
	for _, r := range s {
		if unicode.IsSpace(r) {
			inSpace = true
			continue
		}
		if inSpace && b.Len() > 0 {
			b.WriteByte(' ')
		}
		inSpace = false
		b.WriteRune(r)
	}
	return b.String()
}

var diacriticStripper = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// asciiFold strips diacritics and drops any remaining non-ASCII runes, since
// lexical indexes may be accent-sensitive and both variants are attempted.
func asciiFold(s string) string {
	folded, _, err := transform.String(diacriticStripper, s)
	if err != nil {
		folded = s
	}
	var b strings.Builder
	b.Grow(len(folded))
	for _, r := range folded {
		if r < 128 {
			b.WriteRune(r)
		}
	}
	return b.String()
}
