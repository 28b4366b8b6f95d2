package section

// Producer is the expert/author record used for placeholder substitution.
type Producer struct {
	Name          string `json:"name" yaml:"name"`
	Authority     string `json:"authority" yaml:"authority"`
	BrandPhotoURL string `json:"brandPhotoUrl" yaml:"brand_photo_url"`
	BrandLogoURL  string `json:"brandLogoUrl" yaml:"brand_logo_url"`
}

// Product is the offer record used for placeholder substitution.
type Product struct {
	Name        string  `json:"name" yaml:"name"`
	Price       float64 `json:"price" yaml:"price"`
	ImageURL    string  `json:"imageUrl" yaml:"image_url"`
	IsExternal  bool    `json:"isExternal" yaml:"is_external"`
	ExternalURL string  `json:"externalUrl" yaml:"external_url"`
	Description string  `json:"description" yaml:"description"`
}

// CheckoutURL returns the external checkout URL, or "" when the product is
// sold in-app.
func (p Product) CheckoutURL() string {
	if !p.IsExternal {
		return ""
	}
	return p.ExternalURL
}
