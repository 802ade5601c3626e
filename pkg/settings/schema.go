package settings

// FieldType tags how a field is validated.
type FieldType string

const (
	TypeHexColor     FieldType = "hex-color"
	TypeShortText    FieldType = "short-text"
	TypeLongText     FieldType = "long-text"
	TypeURL          FieldType = "url"
	TypeSlug         FieldType = "slug"
	TypeIntegerRange FieldType = "integer-range"
	TypeIDList       FieldType = "id-list"
	TypeSetMember    FieldType = "boolean-set-membership"
	TypeButtonLinks  FieldType = "button-links"
	TypeCSS          FieldType = "css"
	TypeMediaRef     FieldType = "media-ref"
)

// Field declares one recognized setting.
type Field struct {
	Name    string
	Type    FieldType
	Default any

	// Min and Max bound TypeIntegerRange fields.
	Min int
	Max int

	// MaxItems is the list length the admin form offers. The sanitizer does
	// not enforce it.
	MaxItems int

	// Required text fields fall back to Default when they sanitize to empty.
	Required bool
}

// Schema is the declared field set of one group, in form order.
type Schema struct {
	Group  Group
	Fields []Field
}

// Field looks a field up by name.
func (s Schema) Field(name string) (Field, bool) {
	for _, f := range s.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// Registry is the source of truth for which fields exist per group and what
// counts as valid. It is immutable after construction.
type Registry struct {
	schemas map[Group]Schema
	order   []Group
}

// NewRegistry builds the registry for the three settings groups.
func NewRegistry() *Registry {
	colors := DefaultColors()
	notFound := DefaultNotFound()
	sitemap := DefaultSitemap()

	colorFields := make([]Field, 0, len(ColorRoles))
	for _, role := range ColorRoles {
		colorFields = append(colorFields, Field{Name: string(role), Type: TypeHexColor, Default: colors.Color(role)})
	}

	r := &Registry{schemas: make(map[Group]Schema)}
	r.add(Schema{Group: GroupColors, Fields: colorFields})
	r.add(Schema{Group: GroupNotFound, Fields: []Field{
		{Name: "heading", Type: TypeShortText, Default: notFound.Heading, Required: true},
		{Name: "message", Type: TypeLongText, Default: notFound.Message, Required: true},
		{Name: "button_links", Type: TypeButtonLinks, Default: []ButtonLink{}, MaxItems: 4},
		{Name: "search_post_types", Type: TypeSetMember, Default: notFound.SearchPostTypes},
		{Name: "meta_description", Type: TypeShortText, Default: notFound.MetaDescription},
		{Name: "custom_css", Type: TypeCSS, Default: ""},
		{Name: "featured_image", Type: TypeMediaRef, Default: int64(0)},
	}})
	r.add(Schema{Group: GroupSitemap, Fields: []Field{
		{Name: "heading", Type: TypeShortText, Default: sitemap.Heading, Required: true},
		{Name: "message", Type: TypeLongText, Default: sitemap.Message, Required: true},
		{Name: "url_slug", Type: TypeSlug, Default: sitemap.URLSlug},
		{Name: "post_types", Type: TypeSetMember, Default: sitemap.PostTypes},
		{Name: "excluded_ids", Type: TypeIDList, Default: ""},
		{Name: "meta_description", Type: TypeShortText, Default: sitemap.MetaDescription},
		{Name: "custom_css", Type: TypeCSS, Default: ""},
		{Name: "featured_image", Type: TypeMediaRef, Default: int64(0)},
		{Name: "columns_desktop", Type: TypeIntegerRange, Default: sitemap.ColumnsDesktop, Min: 1, Max: 4},
		{Name: "columns_tablet", Type: TypeIntegerRange, Default: sitemap.ColumnsTablet, Min: 1, Max: 4},
		{Name: "columns_mobile", Type: TypeIntegerRange, Default: sitemap.ColumnsMobile, Min: 1, Max: 2},
	}})
	return r
}

func (r *Registry) add(s Schema) {
	r.schemas[s.Group] = s
	r.order = append(r.order, s.Group)
}

// Schema returns the schema of a group.
func (r *Registry) Schema(group Group) (Schema, bool) {
	s, ok := r.schemas[group]
	return s, ok
}

// Groups lists the declared groups in registration order.
func (r *Registry) Groups() []Group {
	return append([]Group(nil), r.order...)
}

// Defaults returns a fresh copy of the hard-coded defaults of a group, or nil
// for an unknown group.
func (r *Registry) Defaults(group Group) Config {
	return Defaults(group)
}

// Defaults returns a fresh copy of the hard-coded defaults of a group.
func Defaults(group Group) Config {
	switch group {
	case GroupColors:
		return DefaultColors()
	case GroupNotFound:
		return DefaultNotFound()
	case GroupSitemap:
		return DefaultSitemap()
	}
	return nil
}

// DefaultColors returns the default palette.
func DefaultColors() ColorConfig {
	return ColorConfig{
		Headings:         "#333333",
		Paragraph:        "#666666",
		Links:            "#0073aa",
		Buttons:          "#0073aa",
		ButtonText:       "#ffffff",
		SearchBorder:     "#dddddd",
		SearchText:       "#333333",
		SearchBackground: "#ffffff",
	}
}

// DefaultNotFound returns the default not-found page settings.
func DefaultNotFound() NotFoundConfig {
	return NotFoundConfig{
		Heading:         "Oops! That page can't be found.",
		Message:         "Looks like this page took a wrong turn. Let's get you back to where you need to be.",
		ButtonLinks:     []ButtonLink{},
		SearchPostTypes: []string{"post", "page"},
		MetaDescription: "Page not found. Use our search or navigation to find what you are looking for.",
		CustomCSS:       "",
		FeaturedImage:   0,
	}
}

// DefaultSitemap returns the default sitemap page settings.
func DefaultSitemap() SitemapConfig {
	return SitemapConfig{
		Heading:         "Sitemap",
		Message:         "Here's our website at a glance. Use this sitemap to quickly find what you're looking for.",
		URLSlug:         "sitemap",
		PostTypes:       []string{"post", "page"},
		ExcludedIDs:     "",
		MetaDescription: "Looking for something specific? Use our sitemap to easily navigate all our website content.",
		CustomCSS:       "",
		FeaturedImage:   0,
		ColumnsDesktop:  4,
		ColumnsTablet:   2,
		ColumnsMobile:   1,
	}
}
