package parser

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/sidiya/voursa-scraper/internal/models"
)

// Gallery/carousel/upload-path image selectors, checked in order. Unlike
// field locators the matches of every rule are collected; duplicates are
// removed afterwards.
var imageSelectors = []string{
	".gallery img",
	".carousel img",
	`[class*="gallery"] img`,
	`[class*="slider"] img`,
	".ad-images img",
	`img[src*="/uploads/"]`,
	`img[src*="/images/"]`,
}

// CollectImages gathers every candidate listing image, resolves relative
// sources against base, and deduplicates by resolved URL keeping first-seen
// order.
func (p *Parser) CollectImages(doc *goquery.Document, base *url.URL) []models.ImageRef {
	var images []models.ImageRef

	for _, selector := range imageSelectors {
		doc.Find(selector).Each(func(_ int, s *goquery.Selection) {
			src, ok := s.Attr("src")
			if !ok || src == "" {
				// lazy-loaded galleries keep the real source here
				src, ok = s.Attr("data-src")
			}
			if !ok || src == "" || strings.HasSuffix(src, ".svg") {
				return
			}

			images = append(images, models.ImageRef{
				URL:   resolveURL(base, src),
				Alt:   s.AttrOr("alt", ""),
				Title: s.AttrOr("title", ""),
			})
		})
	}

	return dedupeImages(images)
}

func resolveURL(base *url.URL, src string) string {
	if strings.HasPrefix(src, "http://") || strings.HasPrefix(src, "https://") {
		return src
	}
	ref, err := url.Parse(src)
	if err != nil {
		return src
	}
	return base.ResolveReference(ref).String()
}

func dedupeImages(images []models.ImageRef) []models.ImageRef {
	seen := make(map[string]struct{}, len(images))
	unique := make([]models.ImageRef, 0, len(images))
	for _, img := range images {
		if _, ok := seen[img.URL]; ok {
			continue
		}
		seen[img.URL] = struct{}{}
		unique = append(unique, img)
	}
	return unique
}
