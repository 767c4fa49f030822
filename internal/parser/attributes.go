package parser

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Selectors likely to hold structured key:value rows on a detail page.
var detailSelectors = []string{
	".detail-item",
	".property-detail",
	`[class*="detail"]`,
	".specs li",
	".characteristics li",
}

type attrRule struct {
	key     string
	pattern *regexp.Regexp
}

// Vertical-specific heuristics run against the full page text. Both sets run
// unconditionally: verticals coexist and listings get misfiled, and a rule
// that matches nothing simply contributes nothing.
var realEstateRules = []attrRule{
	{"surface", regexp.MustCompile(`(?i)(\d+)\s*m[²2]`)},
	{"rooms", regexp.MustCompile(`(?i)(\d+)\s*(?:pièces?|rooms?|chambres?)`)},
	{"bedrooms", regexp.MustCompile(`(?i)(\d+)\s*(?:chambres?|bedrooms?)`)},
	{"bathrooms", regexp.MustCompile(`(?i)(\d+)\s*(?:salles? de bain|bathrooms?)`)},
	{"floor", regexp.MustCompile(`(?i)(\d+)(?:er?|ème)?\s*étage`)},
	{"year", regexp.MustCompile(`(?i)(?:année|year|construit?)\s*:?\s*(\d{4})`)},
}

var vehicleRules = []attrRule{
	{"mileage", regexp.MustCompile(`(?i)(\d+[\d\s]*)\s*(?:km|kilomètres?)`)},
	{"year", regexp.MustCompile(`(?i)(?:année|year|modèle)\s*:?\s*(\d{4})`)},
	{"fuel", regexp.MustCompile(`(?i)(?:carburant|fuel)\s*:?\s*(diesel|essence|électrique|hybride)`)},
	{"transmission", regexp.MustCompile(`(?i)(?:transmission|boîte)\s*:?\s*(manuelle?|automatique?)`)},
	{"power", regexp.MustCompile(`(?i)(\d+)\s*(?:cv|ch|hp)`)},
}

// Source-language detail labels mapped to canonical keys.
var keyTranslations = map[string]string{
	"superficie":        "surface",
	"pièces":            "rooms",
	"chambres":          "bedrooms",
	"année":             "year",
	"kilométrage":       "mileage",
	"carburant":         "fuel",
	"boîte de vitesse":  "transmission",
	"puissance":         "power",
	"étage":             "floor",
}

// DeriveAttributes merges structured key:value rows with vertical regex
// heuristics. Structured rows run first and every key is written at most
// once, so a later heuristic never overwrites a value the page stated
// explicitly. Running it twice on the same document yields the same map.
func (p *Parser) DeriveAttributes(doc *goquery.Document) map[string]string {
	details := make(map[string]string)

	for _, selector := range detailSelectors {
		doc.Find(selector).Each(func(_ int, s *goquery.Selection) {
			text := strings.TrimSpace(s.Text())

			key, value, found := strings.Cut(text, ":")
			if !found {
				key, value, found = strings.Cut(text, "：")
			}
			if !found {
				return
			}

			key = normalizeKey(strings.TrimSpace(key))
			value = strings.TrimSpace(value)
			if key == "" || value == "" {
				return
			}
			if _, exists := details[key]; !exists {
				details[key] = value
			}
		})
	}

	text := doc.Text()
	applyRules(details, realEstateRules, text)
	applyRules(details, vehicleRules, text)

	return details
}

func applyRules(details map[string]string, rules []attrRule, text string) {
	for _, rule := range rules {
		if _, exists := details[rule.key]; exists {
			continue
		}
		if m := rule.pattern.FindStringSubmatch(text); m != nil {
			details[rule.key] = strings.TrimSpace(m[1])
		}
	}
}

// normalizeKey maps a raw detail label to its canonical key. Unknown labels
// degrade to a slug so no structured row is ever discarded.
func normalizeKey(key string) string {
	lower := strings.ToLower(key)
	if canonical, ok := keyTranslations[lower]; ok {
		return canonical
	}
	return strings.ReplaceAll(lower, " ", "_")
}
