package parser

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Known field names for ExtractField.
const (
	FieldTitle       = "title"
	FieldPrice       = "price"
	FieldDescription = "description"
	FieldLocation    = "location"
	FieldSellerName  = "seller_name"
	FieldSellerPhone = "seller_phone"
	FieldPostedDate  = "posted_date"
)

// Locator chains per field, most specific first. The chains are data so new
// markup variants are an additive change.
func defaultFieldLocators() map[string][]string {
	return map[string][]string{
		FieldTitle:       {"h1", ".ad-title", ".title", `[class*="title"]`},
		FieldPrice:       {".price", ".ad-price", `[class*="price"]`},
		FieldDescription: {".description", ".ad-description", `[class*="description"]`},
		FieldLocation:    {".location", ".ad-location", `[class*="location"]`, `[class*="address"]`},
		FieldSellerName:  {".seller-name", ".vendor-name", `[class*="seller"]`},
		FieldSellerPhone: {`a[href^="tel:"]`, ".phone", `[class*="phone"]`},
		FieldPostedDate:  {".posted-date", ".publish-date", `[class*="date"]`},
	}
}

// ExtractField walks the field's locator chain and returns the first
// non-empty trimmed text. Absence is an empty string, never an error.
func (p *Parser) ExtractField(doc *goquery.Document, field string) string {
	for _, selector := range p.fieldLocators[field] {
		text := strings.TrimSpace(doc.Find(selector).First().Text())
		if text != "" {
			return text
		}
	}
	return ""
}

// amountPattern matches a numeric token with thousands and decimal
// separators. It requires a leading digit so plain words never match.
var amountPattern = regexp.MustCompile(`\d[\d,.\s\x{00A0}]*`)

var knownCurrencies = []string{"MRU", "EUR", "$", "€", "USD"}

// ParsePrice splits raw price text into a canonical amount and a currency.
// It is total: with no numeric token the raw text passes through as the
// amount, and with no known currency the configured default applies.
func (p *Parser) ParsePrice(priceText string) (amount, currency string) {
	amount = priceText

	if token := amountPattern.FindString(priceText); token != "" {
		token = strings.TrimSpace(token)
		token = strings.ReplaceAll(token, " ", "")
		token = strings.ReplaceAll(token, " ", "")
		amount = strings.ReplaceAll(token, ",", ".")
	}

	currency = p.defaultCurrency
	for _, c := range knownCurrencies {
		if strings.Contains(priceText, c) {
			currency = c
			break
		}
	}

	return amount, currency
}
