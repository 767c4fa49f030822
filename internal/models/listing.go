package models

import (
	"time"
)

// SellerType classifies who posted a listing.
type SellerType string

const (
	SellerIndividual   SellerType = "individual"
	SellerProfessional SellerType = "professional"
	SellerUnknown      SellerType = "unknown"
)

// Listing is one classified-ad detail page, fully extracted. Field names are
// the persisted JSON contract; downstream tools depend on them.
type Listing struct {
	URL          string            `json:"url"`
	AdID         string            `json:"ad_id"`
	ScrapingDate time.Time         `json:"scraping_date"`
	Title        string            `json:"title"`
	Price        string            `json:"price"`
	Currency     string            `json:"currency"`
	Description  string            `json:"description"`
	Location     string            `json:"location"`
	Category     string            `json:"category"`
	Subcategory  string            `json:"subcategory"`
	Images       []ImageRef        `json:"images"`
	Details      map[string]string `json:"details"`
	Seller       Seller            `json:"seller"`
	Metadata     Metadata          `json:"metadata"`
}

// ImageRef points at one listing image. LocalPath is filled in by the asset
// fetcher after download; empty means not downloaded.
type ImageRef struct {
	URL       string `json:"url"`
	Alt       string `json:"alt"`
	Title     string `json:"title"`
	LocalPath string `json:"local_path,omitempty"`
}

type Seller struct {
	Name  string     `json:"name"`
	Phone string     `json:"phone"`
	Type  SellerType `json:"type"`
}

type Metadata struct {
	Views        int    `json:"views"`
	PostedDate   string `json:"posted_date"`
	ModifiedDate string `json:"modified_date"`
}

func NewListing(url, adID string) *Listing {
	return &Listing{
		URL:          url,
		AdID:         adID,
		ScrapingDate: time.Now(),
		Images:       make([]ImageRef, 0),
		Details:      make(map[string]string),
		Seller:       Seller{Type: SellerUnknown},
	}
}
