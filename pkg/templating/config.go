package templating

// TemplateConfig holds the site-wide values every page can read.
type TemplateConfig struct {
	// SiteName is shown in page titles.
	SiteName string `json:"site_name"`

	// HomeURL is the target of the "Return to Homepage" link.
	HomeURL string `json:"home_url"`

	// Language is the value of the html lang attribute.
	Language string `json:"language"`

	// SearchPlaceholder is the hint shown in the not-found search box.
	SearchPlaceholder string `json:"search_placeholder"`
}

// DefaultConfig returns a TemplateConfig with usable defaults.
func DefaultConfig() TemplateConfig {
	return TemplateConfig{
		SiteName:          "Signpost",
		HomeURL:           "/",
		Language:          "en",
		SearchPlaceholder: "Search...",
	}
}
