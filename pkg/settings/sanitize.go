package settings

import (
	"context"
	"fmt"
	"strconv"
	"strings"
)

// ContentLookup is the part of the content store the sanitizer consults.
type ContentLookup interface {
	Exists(ctx context.Context, id int64) (bool, error)
	PublicTypeNames(ctx context.Context) ([]string, error)
}

// MediaLookup confirms that a media reference resolves.
type MediaLookup interface {
	MediaExists(ctx context.Context, id int64) (bool, error)
}

// Result is the outcome of sanitizing one group submission.
type Result struct {
	Group    Group          `json:"group"`
	Config   Config         `json:"config"`
	Warnings []FieldWarning `json:"warnings"`
}

// Sanitizer turns raw input into validated, typed configuration. Field
// problems never fail a call; they are replaced by defaults and reported as
// warnings. An error means a collaborator could not be reached.
type Sanitizer struct {
	registry *Registry
	content  ContentLookup
	media    MediaLookup
	slugs    *SlugResolver
}

// NewSanitizer wires a sanitizer. media may be nil, in which case any
// non-zero featured image is kept as submitted.
func NewSanitizer(registry *Registry, content ContentLookup, media MediaLookup, slugs *SlugResolver) *Sanitizer {
	if registry == nil {
		registry = NewRegistry()
	}
	if slugs == nil {
		slugs = NewSlugResolver(nil)
	}
	return &Sanitizer{registry: registry, content: content, media: media, slugs: slugs}
}

// Registry returns the schema registry the sanitizer validates against.
func (s *Sanitizer) Registry() *Registry {
	return s.registry
}

// Sanitize validates a submission for group.
func (s *Sanitizer) Sanitize(ctx context.Context, group Group, in Input) (Result, error) {
	schema, ok := s.registry.Schema(group)
	if !ok {
		return Result{}, fmt.Errorf("%w: %q", ErrUnknownGroup, group)
	}

	res := Result{Group: group}
	for _, key := range in.Keys() {
		if _, known := schema.Field(key); !known {
			res.warn(FieldWarning{Field: key, Reason: ReasonUnknownField})
		}
	}

	var err error
	switch group {
	case GroupColors:
		res.Config = s.colors(in, &res)
	case GroupNotFound:
		res.Config, err = s.notFound(ctx, schema, in, &res)
	case GroupSitemap:
		res.Config, err = s.sitemap(ctx, schema, in, &res)
	}
	if err != nil {
		return Result{}, err
	}
	if res.Warnings == nil {
		res.Warnings = []FieldWarning{}
	}
	return res, nil
}

// SanitizeColors is Sanitize for the colors group.
func (s *Sanitizer) SanitizeColors(ctx context.Context, in Input) (ColorConfig, []FieldWarning, error) {
	res, err := s.Sanitize(ctx, GroupColors, in)
	if err != nil {
		return ColorConfig{}, nil, err
	}
	return res.Config.(ColorConfig), res.Warnings, nil
}

// SanitizeNotFound is Sanitize for the not_found group.
func (s *Sanitizer) SanitizeNotFound(ctx context.Context, in Input) (NotFoundConfig, []FieldWarning, error) {
	res, err := s.Sanitize(ctx, GroupNotFound, in)
	if err != nil {
		return NotFoundConfig{}, nil, err
	}
	return res.Config.(NotFoundConfig), res.Warnings, nil
}

// SanitizeSitemap is Sanitize for the sitemap group.
func (s *Sanitizer) SanitizeSitemap(ctx context.Context, in Input) (SitemapConfig, []FieldWarning, error) {
	res, err := s.Sanitize(ctx, GroupSitemap, in)
	if err != nil {
		return SitemapConfig{}, nil, err
	}
	return res.Config.(SitemapConfig), res.Warnings, nil
}

func (r *Result) warn(w FieldWarning) {
	r.Warnings = append(r.Warnings, w)
}

func (s *Sanitizer) colors(in Input, res *Result) ColorConfig {
	defaults := DefaultColors()
	var out ColorConfig
	for _, role := range ColorRoles {
		key := string(role)
		fallback := defaults.Color(role)
		if !in.Has(key) {
			out.SetColor(role, fallback)
			continue
		}
		v := strings.TrimSpace(in.String(key))
		if in.Scalar(key) && ValidColor(v) {
			out.SetColor(role, v)
			continue
		}
		out.SetColor(role, fallback)
		res.warn(FieldWarning{Field: key, Reason: ReasonInvalidColor, Fallback: fallback, Original: v})
	}
	return out
}

func (s *Sanitizer) notFound(ctx context.Context, schema Schema, in Input, res *Result) (NotFoundConfig, error) {
	out := NotFoundConfig{
		Heading:         s.text(schema, in, "heading", res),
		Message:         s.text(schema, in, "message", res),
		ButtonLinks:     s.buttons(in, res),
		MetaDescription: SanitizeText(in.String("meta_description")),
		CustomCSS:       SanitizeCSS(in.String("custom_css")),
	}

	var err error
	if out.SearchPostTypes, err = s.publicTypes(ctx, in.Strings("search_post_types")); err != nil {
		return NotFoundConfig{}, err
	}
	if out.FeaturedImage, err = s.mediaRef(ctx, in, "featured_image", res); err != nil {
		return NotFoundConfig{}, err
	}
	return out, nil
}

func (s *Sanitizer) sitemap(ctx context.Context, schema Schema, in Input, res *Result) (SitemapConfig, error) {
	out := SitemapConfig{
		Heading:         s.text(schema, in, "heading", res),
		Message:         s.text(schema, in, "message", res),
		MetaDescription: SanitizeText(in.String("meta_description")),
		CustomCSS:       SanitizeCSS(in.String("custom_css")),
		ColumnsDesktop:  s.intRange(schema, in, "columns_desktop"),
		ColumnsTablet:   s.intRange(schema, in, "columns_tablet"),
		ColumnsMobile:   s.intRange(schema, in, "columns_mobile"),
	}

	var err error
	if out.URLSlug, err = s.slug(ctx, schema, in, res); err != nil {
		return SitemapConfig{}, err
	}
	if out.PostTypes, err = s.publicTypes(ctx, in.Strings("post_types")); err != nil {
		return SitemapConfig{}, err
	}
	if out.ExcludedIDs, err = s.idList(ctx, in, "excluded_ids", res); err != nil {
		return SitemapConfig{}, err
	}
	if out.FeaturedImage, err = s.mediaRef(ctx, in, "featured_image", res); err != nil {
		return SitemapConfig{}, err
	}
	return out, nil
}

func (s *Sanitizer) text(schema Schema, in Input, key string, res *Result) string {
	f, _ := schema.Field(key)
	var v string
	if f.Type == TypeLongText {
		v = SanitizeLongText(in.String(key))
	} else {
		v = SanitizeText(in.String(key))
	}
	if v == "" && f.Required {
		fallback, _ := f.Default.(string)
		res.warn(FieldWarning{Field: key, Reason: ReasonRequired, Fallback: fallback})
		return fallback
	}
	return v
}

func (s *Sanitizer) buttons(in Input, res *Result) []ButtonLink {
	links := []ButtonLink{}
	for _, entry := range in.Objects("button_links") {
		text := SanitizeText(entry["text"])
		raw := entry["url"]
		if text == "" || strings.TrimSpace(raw) == "" {
			continue
		}
		u, ok := SanitizeURL(raw)
		if !ok {
			res.warn(FieldWarning{Field: "button_links", Reason: ReasonInvalidURL, Original: raw})
			continue
		}
		links = append(links, ButtonLink{Text: text, URL: u})
	}
	return links
}

// publicTypes keeps the submitted identifiers that name a current public
// content type, in submitted order. Unknown identifiers are dropped silently.
func (s *Sanitizer) publicTypes(ctx context.Context, submitted []string) ([]string, error) {
	out := []string{}
	if len(submitted) == 0 {
		return out, nil
	}
	allowed := make(map[string]struct{})
	if s.content != nil {
		names, err := s.content.PublicTypeNames(ctx)
		if err != nil {
			return nil, fmt.Errorf("listing public content types: %w", err)
		}
		for _, n := range names {
			allowed[n] = struct{}{}
		}
	}
	seen := make(map[string]struct{})
	for _, name := range submitted {
		name = strings.TrimSpace(name)
		if _, ok := allowed[name]; !ok {
			continue
		}
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	return out, nil
}

func (s *Sanitizer) slug(ctx context.Context, schema Schema, in Input, res *Result) (string, error) {
	f, _ := schema.Field("url_slug")
	fallback, _ := f.Default.(string)

	requested := SanitizeSlug(strings.TrimSpace(in.String("url_slug")))
	if requested == "" {
		res.warn(FieldWarning{Field: "url_slug", Reason: ReasonInvalidSlug, Fallback: fallback, Original: in.String("url_slug")})
		requested = fallback
	}
	final, err := s.slugs.Unique(ctx, requested)
	if err != nil {
		return "", err
	}
	if final != requested {
		res.warn(FieldWarning{Field: "url_slug", Reason: ReasonSlugModified, Original: requested, Final: final})
	}
	return final, nil
}

// absint mirrors the integer coercion admin forms rely on: the absolute value
// of the leading integer.
func absint(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}

func (s *Sanitizer) intRange(schema Schema, in Input, key string) int {
	f, _ := schema.Field(key)
	v := absint(in.Int(key))
	if v < int64(f.Min) {
		return f.Min
	}
	if v > int64(f.Max) {
		return f.Max
	}
	return int(v)
}

func (s *Sanitizer) idList(ctx context.Context, in Input, key string, res *Result) (string, error) {
	var kept, rejected []string
	seen := make(map[int64]struct{})
	for _, part := range in.List(key) {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil || id <= 0 {
			rejected = append(rejected, part)
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		exists := false
		if s.content != nil {
			if exists, err = s.content.Exists(ctx, id); err != nil {
				return "", fmt.Errorf("looking up content %d: %w", id, err)
			}
		}
		if !exists {
			rejected = append(rejected, part)
			continue
		}
		seen[id] = struct{}{}
		kept = append(kept, strconv.FormatInt(id, 10))
	}
	if len(rejected) > 0 {
		res.warn(FieldWarning{Field: key, Reason: ReasonInvalidID, Original: strings.Join(rejected, ","), Final: strings.Join(kept, ",")})
	}
	return strings.Join(kept, ","), nil
}

func (s *Sanitizer) mediaRef(ctx context.Context, in Input, key string, res *Result) (int64, error) {
	id := absint(in.Int(key))
	if id == 0 || s.media == nil {
		return id, nil
	}
	ok, err := s.media.MediaExists(ctx, id)
	if err != nil {
		return 0, fmt.Errorf("looking up media %d: %w", id, err)
	}
	if !ok {
		res.warn(FieldWarning{Field: key, Reason: ReasonInvalidImage, Original: strconv.FormatInt(id, 10)})
		return 0, nil
	}
	return id, nil
}
