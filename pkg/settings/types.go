package settings

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Group names one bundle of settings that is sanitized and persisted as a unit.
type Group string

const (
	GroupColors   Group = "colors"
	GroupNotFound Group = "not_found"
	GroupSitemap  Group = "sitemap"
)

// ErrUnknownGroup is returned for any group name the registry does not declare.
var ErrUnknownGroup = errors.New("unknown settings group")

// ParseGroup maps a group name to a Group. The short tab names used by the
// admin form ("general", "404") are accepted as aliases.
func ParseGroup(name string) (Group, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "colors", "general":
		return GroupColors, nil
	case "not_found", "404", "not-found":
		return GroupNotFound, nil
	case "sitemap":
		return GroupSitemap, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownGroup, name)
}

// Config is implemented by the typed configuration of every group.
type Config interface {
	Group() Group
}

// ColorRole is one semantic color slot of the palette.
type ColorRole string

const (
	RoleHeadings         ColorRole = "headings"
	RoleParagraph        ColorRole = "paragraph"
	RoleLinks            ColorRole = "links"
	RoleButtons          ColorRole = "buttons"
	RoleButtonText       ColorRole = "button_text"
	RoleSearchBorder     ColorRole = "search_border"
	RoleSearchText       ColorRole = "search_text"
	RoleSearchBackground ColorRole = "search_background"
)

// ColorRoles lists every role in its canonical order.
var ColorRoles = []ColorRole{
	RoleHeadings,
	RoleParagraph,
	RoleLinks,
	RoleButtons,
	RoleButtonText,
	RoleSearchBorder,
	RoleSearchText,
	RoleSearchBackground,
}

// ColorConfig is the admin palette. An empty value means the role inherits
// from the surrounding theme.
type ColorConfig struct {
	Headings         string `json:"headings"`
	Paragraph        string `json:"paragraph"`
	Links            string `json:"links"`
	Buttons          string `json:"buttons"`
	ButtonText       string `json:"button_text"`
	SearchBorder     string `json:"search_border"`
	SearchText       string `json:"search_text"`
	SearchBackground string `json:"search_background"`
}

func (ColorConfig) Group() Group { return GroupColors }

// Color returns the value assigned to a role.
func (c ColorConfig) Color(role ColorRole) string {
	if p := c.slot(role); p != nil {
		return *p
	}
	return ""
}

// SetColor assigns a role. Unknown roles are ignored.
func (c *ColorConfig) SetColor(role ColorRole, value string) {
	if p := c.slot(role); p != nil {
		*p = value
	}
}

func (c *ColorConfig) slot(role ColorRole) *string {
	switch role {
	case RoleHeadings:
		return &c.Headings
	case RoleParagraph:
		return &c.Paragraph
	case RoleLinks:
		return &c.Links
	case RoleButtons:
		return &c.Buttons
	case RoleButtonText:
		return &c.ButtonText
	case RoleSearchBorder:
		return &c.SearchBorder
	case RoleSearchText:
		return &c.SearchText
	case RoleSearchBackground:
		return &c.SearchBackground
	}
	return nil
}

// ButtonLink is a quick link shown under the not-found search box.
type ButtonLink struct {
	Text string `json:"text"`
	URL  string `json:"url"`
}

// NotFoundConfig configures the not-found page.
type NotFoundConfig struct {
	Heading         string       `json:"heading"`
	Message         string       `json:"message"`
	ButtonLinks     []ButtonLink `json:"button_links"`
	SearchPostTypes []string     `json:"search_post_types"`
	MetaDescription string       `json:"meta_description"`
	CustomCSS       string       `json:"custom_css"`
	FeaturedImage   int64        `json:"featured_image"`
}

func (NotFoundConfig) Group() Group { return GroupNotFound }

// SitemapConfig configures the sitemap page.
type SitemapConfig struct {
	Heading         string   `json:"heading"`
	Message         string   `json:"message"`
	URLSlug         string   `json:"url_slug"`
	PostTypes       []string `json:"post_types"`
	ExcludedIDs     string   `json:"excluded_ids"`
	MetaDescription string   `json:"meta_description"`
	CustomCSS       string   `json:"custom_css"`
	FeaturedImage   int64    `json:"featured_image"`
	ColumnsDesktop  int      `json:"columns_desktop"`
	ColumnsTablet   int      `json:"columns_tablet"`
	ColumnsMobile   int      `json:"columns_mobile"`
}

func (SitemapConfig) Group() Group { return GroupSitemap }

// ExcludedIDList parses the stored comma separated id list. Entries that do
// not parse are skipped.
func (c SitemapConfig) ExcludedIDList() []int64 {
	if c.ExcludedIDs == "" {
		return nil
	}
	var ids []int64
	for _, part := range strings.Split(c.ExcludedIDs, ",") {
		id, err := strconv.ParseInt(strings.TrimSpace(part), 10, 64)
		if err == nil && id > 0 {
			ids = append(ids, id)
		}
	}
	return ids
}
