package goquery

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// DefaultPlaceholderTitle is the site-wide <title> the legacy site puts on
// every page. It carries no information about the page itself.
const DefaultPlaceholderTitle = "Inside Doll"

// UntitledTitle is used when no strategy finds a title.
const UntitledTitle = "Untitled"

// TitleStrategy finds a page title in a parsed document.
// Func returns false when the strategy does not apply to the page.
type TitleStrategy struct {
	Name string
	Func func(doc *goquery.Document) (string, bool)
}

// DefaultTitleStrategies returns the title heuristics in priority order.
// Pages on the legacy site put their title in a bold element of a centered
// table; <title> is the same placeholder everywhere.
func DefaultTitleStrategies(placeholder string) []TitleStrategy {
	return []TitleStrategy{
		{Name: "centered-table-bold", Func: centeredTableBold},
		{Name: "centered-block-bold", Func: centeredBlockBold},
		{Name: "document-title", Func: documentTitle(placeholder)},
	}
}

// centeredTableBold returns the first non-empty bold text inside a table,
// row or cell aligned center.
func centeredTableBold(doc *goquery.Document) (string, bool) {
	return firstBold(doc, func(b *goquery.Selection) bool {
		return b.ParentsFiltered("table, tr, td, th").FilterFunction(isCentered).Length() > 0
	})
}

// centeredBlockBold returns the first non-empty bold text inside a <center>
// element or a centered div or paragraph.
func centeredBlockBold(doc *goquery.Document) (string, bool) {
	return firstBold(doc, func(b *goquery.Selection) bool {
		if b.ParentsFiltered("center").Length() > 0 {
			return true
		}
		return b.ParentsFiltered("div, p").FilterFunction(isCentered).Length() > 0
	})
}

func documentTitle(placeholder string) func(doc *goquery.Document) (string, bool) {
	return func(doc *goquery.Document) (string, bool) {
		title := normalizeSpace(doc.Find("title").First().Text())
		if title == "" || title == placeholder {
			return "", false
		}
		return title, true
	}
}

func firstBold(doc *goquery.Document, match func(*goquery.Selection) bool) (string, bool) {
	var title string
	doc.Find("b, strong").EachWithBreak(func(_ int, b *goquery.Selection) bool {
		if !match(b) {
			return true
		}
		title = normalizeSpace(b.Text())
		return title == ""
	})
	return title, title != ""
}

func isCentered(_ int, s *goquery.Selection) bool {
	align, ok := s.Attr("align")
	return ok && strings.EqualFold(strings.TrimSpace(align), "center")
}

// normalizeSpace collapses runs of whitespace, including the ideographic
// space, into single spaces.
func normalizeSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
