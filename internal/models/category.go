package models

// Category is one top-level taxonomy bucket on the marketplace.
type Category struct {
	Key         string `json:"key"`
	DisplayName string `json:"display_name"`
}

// Categories is the static category set of the site, in crawl order.
var Categories = []Category{
	{Key: "real_estate", DisplayName: "Immobilier"},
	{Key: "vehicles", DisplayName: "Véhicules"},
	{Key: "electronics", DisplayName: "Électronique"},
	{Key: "furniture", DisplayName: "Meubles"},
	{Key: "jobs", DisplayName: "Emplois"},
	{Key: "services", DisplayName: "Services"},
	{Key: "fashion", DisplayName: "Mode"},
	{Key: "sports", DisplayName: "Sports & Loisirs"},
	{Key: "animals", DisplayName: "Animaux"},
	{Key: "others", DisplayName: "Autres"},
}

// CategoryByKey returns the descriptor for key, if known.
func CategoryByKey(key string) (Category, bool) {
	for _, c := range Categories {
		if c.Key == key {
			return c, true
		}
	}
	return Category{}, false
}
