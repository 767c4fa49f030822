package parser

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/sidiya/voursa-scraper/internal/models"
)

// Classify resolves the category (and subcategory, when the breadcrumb is
// deep enough) of a detail page. Breadcrumb first, URL pattern second, and
// "Autres" as the last resort so unclassifiable listings are kept rather
// than dropped.
func (p *Parser) Classify(doc *goquery.Document, pageURL string) (category, subcategory string) {
	breadcrumb := doc.Find(`.breadcrumb, [class*="breadcrumb"]`).First()
	if breadcrumb.Length() > 0 {
		items := breadcrumb.Find("a, span")
		if items.Length() > 1 {
			category = strings.TrimSpace(items.Eq(1).Text())
		}
		if items.Length() > 2 {
			subcategory = strings.TrimSpace(items.Eq(2).Text())
		}
	}
	if category != "" {
		return category, subcategory
	}

	for _, c := range models.Categories {
		if strings.Contains(pageURL, "/categories/"+c.Key) {
			return c.DisplayName, subcategory
		}
	}

	return "Autres", subcategory
}
