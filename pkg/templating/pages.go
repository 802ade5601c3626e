package templating

import (
	"github.com/CTAG07/Signpost/pkg/content"
	"github.com/CTAG07/Signpost/pkg/settings"
)

// Names of the full page templates.
const (
	NotFoundTemplate = "404.tmpl.html"
	SitemapTemplate  = "sitemap.tmpl.html"
)

// Image is a featured image. A nil *Image means none is configured.
type Image struct {
	URL    string
	Alt    string
	Width  int
	Height int
}

// Page carries what the shared head and layout blocks need.
type Page struct {
	Title           string
	MetaDescription string
	StylesheetURL   string
	CustomCSS       string
	Image           *Image
}

// NotFoundPage is the view model of the not-found page.
type NotFoundPage struct {
	Page
	Heading     string
	Message     string
	Buttons     []settings.ButtonLink
	SearchURL   string
	SearchToken string
}

// SitemapPage is the view model of the sitemap page.
type SitemapPage struct {
	Page
	Heading        string
	Message        string
	ColumnsDesktop int
	ColumnsTablet  int
	ColumnsMobile  int
	Sections       []content.Section
}
