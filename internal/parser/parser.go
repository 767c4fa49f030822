package parser

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/sidiya/voursa-scraper/internal/models"
)

var adIDPattern = regexp.MustCompile(`-(\d+)$`)

// Parser extracts one listing record from a rendered detail page. Markup on
// the site is inconsistent across listing types, so every field goes through
// an ordered locator chain and every miss degrades to an empty value.
type Parser struct {
	baseURL         *url.URL
	defaultCurrency string

	fieldLocators map[string][]string
	viewsPattern  *regexp.Regexp
}

func New(baseURL, defaultCurrency string) (*Parser, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if defaultCurrency == "" {
		defaultCurrency = "MRU"
	}

	return &Parser{
		baseURL:         base,
		defaultCurrency: defaultCurrency,
		fieldLocators:   defaultFieldLocators(),
		viewsPattern:    regexp.MustCompile(`(?i)(\d+)\s*(?:vues?|views?)`),
	}, nil
}

// ParseListingPage builds a full listing record from rendered HTML. Missing
// fields come back empty; the only hard failure is unparseable HTML.
func (p *Parser) ParseListingPage(html, pageURL string) (*models.Listing, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	listing := models.NewListing(pageURL, AdID(pageURL))

	listing.Title = p.ExtractField(doc, FieldTitle)
	listing.Description = p.ExtractField(doc, FieldDescription)
	listing.Location = p.ExtractField(doc, FieldLocation)

	priceText := p.ExtractField(doc, FieldPrice)
	listing.Price, listing.Currency = p.ParsePrice(priceText)

	listing.Images = p.CollectImages(doc, p.baseURL)
	listing.Details = p.DeriveAttributes(doc)
	listing.Seller = p.extractSeller(doc)
	listing.Metadata = p.extractMetadata(doc)
	listing.Category, listing.Subcategory = p.Classify(doc, pageURL)

	return listing, nil
}

// AdID derives a stable listing id from its URL: the trailing numeric suffix
// when present, otherwise a truncated hash. Same URL, same id.
func AdID(rawURL string) string {
	if m := adIDPattern.FindStringSubmatch(rawURL); m != nil {
		return m[1]
	}
	sum := md5.Sum([]byte(rawURL))
	return hex.EncodeToString(sum[:])[:10]
}

func (p *Parser) extractSeller(doc *goquery.Document) models.Seller {
	seller := models.Seller{
		Name: p.ExtractField(doc, FieldSellerName),
		Type: models.SellerUnknown,
	}

	seller.Phone = p.ExtractField(doc, FieldSellerPhone)
	if seller.Phone == "" {
		// tel: links often carry the number only in the href
		if href, ok := doc.Find(`a[href^="tel:"]`).First().Attr("href"); ok {
			seller.Phone = strings.TrimPrefix(href, "tel:")
		}
	}

	text := strings.ToLower(doc.Text())
	switch {
	case strings.Contains(text, "professionnel") || strings.Contains(text, "agence"):
		seller.Type = models.SellerProfessional
	case strings.Contains(text, "particulier"):
		seller.Type = models.SellerIndividual
	}

	return seller
}

func (p *Parser) extractMetadata(doc *goquery.Document) models.Metadata {
	meta := models.Metadata{
		PostedDate: p.ExtractField(doc, FieldPostedDate),
	}

	if m := p.viewsPattern.FindStringSubmatch(doc.Text()); m != nil {
		if views, err := strconv.Atoi(m[1]); err == nil {
			meta.Views = views
		}
	}

	return meta
}
