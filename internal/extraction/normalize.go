package extraction

import (
	"io"
	"strings"
	"unicode"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html/charset"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Normalize folds a label for comparison: compatibility decomposition,
// diacritics and any remaining non-ASCII removed, upper case, single spaces.
func Normalize(s string) string {
	t := transform.Chain(
		norm.NFKD,
		runes.Remove(runes.In(unicode.Mn)),
		runes.Remove(runes.Predicate(func(r rune) bool { return r > unicode.MaxASCII })),
	)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}
	return strings.Join(strings.Fields(strings.ToUpper(folded)), " ")
}

// CleanText trims and collapses whitespace without folding case or accents.
func CleanText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// ParseHTML parses a snapshot taken from the driver, which is already UTF-8.
func ParseHTML(raw string) (*goquery.Document, error) {
	return goquery.NewDocumentFromReader(strings.NewReader(raw))
}

// ParseDocument parses raw page bytes, decoding them according to
// contentType or the document's own meta charset.
func ParseDocument(r io.Reader, contentType string) (*goquery.Document, error) {
	utf8Reader, err := charset.NewReader(r, contentType)
	if err != nil {
		return nil, err
	}
	return goquery.NewDocumentFromReader(utf8Reader)
}

// HTMLTextContains reports whether the visible text of raw contains needle,
// comparing both sides with Normalize.
func HTMLTextContains(raw, needle string) bool {
	doc, err := ParseHTML(raw)
	if err != nil {
		return false
	}
	doc.Find("script, style, noscript").Remove()
	return strings.Contains(Normalize(doc.Text()), Normalize(needle))
}
