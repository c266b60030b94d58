package portal

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/antchfx/htmlquery"
	"golang.org/x/net/html"
)

// EditionXPath matches listing elements whose own text names an edition and a year.
const EditionXPath = `//*[contains(text(),'Edição') and contains(text(),'Ano')]`

// ParseListing extracts edition candidates from the rendered listing HTML.
// When no element matches EditionXPath, anchors pointing at /diario/ pages are scanned instead.
func ParseListing(page string) ([]Candidate, error) {
	root, err := htmlquery.Parse(strings.NewReader(page))
	if err != nil {
		return nil, fmt.Errorf("parse listing: %w", err)
	}
	nodes, err := htmlquery.QueryAll(root, EditionXPath)
	if err != nil {
		return nil, fmt.Errorf("query listing: %w", err)
	}
	cands := make([]Candidate, 0, len(nodes))
	for i, n := range nodes {
		label := normalizeLabel(htmlquery.InnerText(n))
		if label == "" {
			continue
		}
		cands = append(cands, Candidate{Label: label, Href: nearestHref(n), Index: i})
	}
	if len(cands) > 0 {
		return cands, nil
	}
	return scanAnchors(page)
}

func scanAnchors(page string) ([]Candidate, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page))
	if err != nil {
		return nil, fmt.Errorf("parse listing anchors: %w", err)
	}
	var cands []Candidate
	doc.Find(`a[href*="/diario/"]`).Each(func(_ int, s *goquery.Selection) {
		label := normalizeLabel(s.Text())
		if !strings.Contains(label, "Edição") || !strings.Contains(label, "Ano") {
			return
		}
		href, _ := s.Attr("href")
		cands = append(cands, Candidate{Label: label, Href: href, Index: -1})
	})
	return cands, nil
}

// nearestHref returns the href of n or of its closest anchor ancestor.
func nearestHref(n *html.Node) string {
	for cur := n; cur != nil; cur = cur.Parent {
		if cur.Type == html.ElementNode && cur.Data == "a" {
			if href := strings.TrimSpace(htmlquery.SelectAttr(cur, "href")); href != "" {
				return href
			}
		}
	}
	return ""
}
