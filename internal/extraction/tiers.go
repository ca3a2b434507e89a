package extraction

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Tier is one pass of the extraction cascade. A tier only fills fields that
// are still empty in rec.
type Tier interface {
	Name() string
	Apply(doc *goquery.Document, rec *Record, fields FieldMap)
}

// IdentifierTier reads fields from elements with known ids.
type IdentifierTier struct{}

func (IdentifierTier) Name() string { return "identifier" }

func (IdentifierTier) Apply(doc *goquery.Document, rec *Record, fields FieldMap) {
	for _, spec := range fields {
		if spec.Identifier == "" || rec.Has(spec.Field) {
			continue
		}
		sel := doc.Find(`[id="` + spec.Identifier + `"]`).First()
		if sel.Length() == 0 {
			continue
		}
		rec.Set(spec.Field, sel.Text())
	}
}

// SchemaTier recognises the two table layouts the result page uses: a
// COLUMNAS/DATOS label-value table and a wide affiliation table whose header
// names ESTADO, ENTIDAD and REGIMEN.
type SchemaTier struct{}

func (SchemaTier) Name() string { return "schema" }

func (SchemaTier) Apply(doc *goquery.Document, rec *Record, fields FieldMap) {
	doc.Find("table").Each(func(_ int, table *goquery.Selection) {
		t := readTable(table)
		switch {
		case t.hasHeaders("COLUMNAS", "DATOS"):
			for _, row := range t.rows {
				if len(row) < 2 {
					continue
				}
				if spec, ok := fields.MatchExactLabel(Normalize(row[0])); ok {
					rec.Set(spec.Field, row[1])
				}
			}
		case t.hasHeaders("ESTADO", "ENTIDAD", "REGIMEN"):
			row := t.firstRowWith(3)
			if row == nil {
				return
			}
			for i, header := range t.headers {
				if i >= len(row) {
					break
				}
				if spec, ok := fields.MatchExactLabel(header); ok {
					rec.Set(spec.Field, row[i])
				}
			}
		}
	})
}

// ScanTier walks every row of every table and matches the first cell, td or
// th, against the accepted labels. Header rows are skipped. It is the
// permissive last resort.
type ScanTier struct{}

func (ScanTier) Name() string { return "scan" }

func (ScanTier) Apply(doc *goquery.Document, rec *Record, fields FieldMap) {
	doc.Find("tr").Each(func(_ int, tr *goquery.Selection) {
		if isHeaderRow(tr) {
			return
		}
		cells := cellTexts(tr.ChildrenFiltered(cellSelector))
		if len(cells) < 2 {
			return
		}
		label := Normalize(cells[0])
		if label == "" {
			return
		}
		value := firstNonEmpty(cells[1:])
		if value == "" {
			return
		}
		for _, spec := range fields {
			if rec.Has(spec.Field) || !spec.Matches(label) {
				continue
			}
			rec.Set(spec.Field, value)
			return
		}
	})
}

const cellSelector = "td, th"

type parsedTable struct {
	headers []string
	rows    [][]string
}

// readTable takes the first all-th row as the header, or the first row when
// there is none. Every other row is data, with th and td cells in order.
func readTable(table *goquery.Selection) parsedTable {
	var t parsedTable
	rows := table.Find("tr").FilterFunction(func(_ int, tr *goquery.Selection) bool {
		return tr.Closest("table").IsSelection(table)
	})

	headerAt := -1
	rows.EachWithBreak(func(i int, tr *goquery.Selection) bool {
		if isHeaderRow(tr) {
			headerAt = i
			return false
		}
		return true
	})
	if headerAt < 0 && rows.Length() > 0 {
		headerAt = 0
	}

	rows.Each(func(i int, tr *goquery.Selection) {
		cells := tr.ChildrenFiltered(cellSelector)
		if i == headerAt {
			t.headers = normalizeAll(cellTexts(cells))
			return
		}
		if cells.Length() == 0 {
			return
		}
		t.rows = append(t.rows, cellTexts(cells))
	})
	return t
}

// isHeaderRow reports whether every cell of tr is a th.
func isHeaderRow(tr *goquery.Selection) bool {
	th := tr.ChildrenFiltered("th").Length()
	return th > 0 && th == tr.ChildrenFiltered(cellSelector).Length()
}

func (t parsedTable) hasHeaders(names ...string) bool {
	for _, name := range names {
		found := false
		for _, h := range t.headers {
			if h == name {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func (t parsedTable) firstRowWith(minCells int) []string {
	for _, row := range t.rows {
		n := 0
		for _, c := range row {
			if c != "" {
				n++
			}
		}
		if n >= minCells {
			return row
		}
	}
	return nil
}

func cellTexts(sel *goquery.Selection) []string {
	out := make([]string, 0, sel.Length())
	sel.Each(func(_ int, c *goquery.Selection) {
		out = append(out, CleanText(c.Text()))
	})
	return out
}

func normalizeAll(in []string) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = Normalize(s)
	}
	return out
}

func firstNonEmpty(values []string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
