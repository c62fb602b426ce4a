package news

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// plainText strips markup some publishers leave in descriptions and
// collapses whitespace.
func plainText(s string) string {
	s = strings.TrimSpace(s)
	if s == "" || !strings.ContainsAny(s, "<&") {
		return s
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		return s
	}
	return strings.Join(strings.Fields(doc.Text()), " ")
}
