package settings

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const maxSlugLength = 200

// SanitizeSlug lowercases s, transliterates accented letters to their base
// form and reduces the result to [a-z0-9-]. Applying it twice changes nothing.
func SanitizeSlug(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}
	folded = strings.ToLower(stripTags(folded, true))

	var b strings.Builder
	dash := false
	for _, r := range folded {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			dash = false
		case r == '-' || r == '_' || unicode.IsSpace(r) || r == '/' || r == '.':
			if b.Len() > 0 && !dash {
				b.WriteByte('-')
				dash = true
			}
		}
	}
	slug := b.String()
	if len(slug) > maxSlugLength {
		slug = slug[:maxSlugLength]
	}
	return strings.Trim(slug, "-")
}

// PageLookup answers whether published page-like content owns a path segment.
type PageLookup interface {
	PublishedPageExists(ctx context.Context, slug string) (bool, error)
}

// ReservedSlugs are the fixed paths of this service that a sitemap slug may
// never take.
var ReservedSlugs = []string{
	"api",
	"search",
	"signpost-assets",
	"static",
	"feed",
	"embed",
	"sitemap.xml",
	"page",
	"comments",
	"author",
	"favicon.ico",
	"robots.txt",
}

// SlugResolver decides whether a slug is free and renumbers it when it is not.
// Only published pages and the reserved set are consulted; routes registered
// by anything else are not known to it.
type SlugResolver struct {
	pages    PageLookup
	reserved map[string]struct{}
}

// NewSlugResolver builds a resolver over pages. Extra reserved words are added
// to ReservedSlugs.
func NewSlugResolver(pages PageLookup, extraReserved ...string) *SlugResolver {
	r := &SlugResolver{pages: pages, reserved: make(map[string]struct{})}
	for _, s := range ReservedSlugs {
		r.reserved[s] = struct{}{}
	}
	for _, s := range extraReserved {
		r.reserved[strings.ToLower(strings.TrimSpace(s))] = struct{}{}
	}
	return r
}

// Reserved reports whether slug is one of the fixed paths.
func (r *SlugResolver) Reserved(slug string) bool {
	_, ok := r.reserved[slug]
	return ok
}

// IsAvailable reports whether slug is neither reserved nor used by a
// published page.
func (r *SlugResolver) IsAvailable(ctx context.Context, slug string) (bool, error) {
	if r.Reserved(slug) {
		return false, nil
	}
	if r.pages == nil {
		return true, nil
	}
	taken, err := r.pages.PublishedPageExists(ctx, slug)
	if err != nil {
		return false, fmt.Errorf("checking slug %q: %w", slug, err)
	}
	return !taken, nil
}

// Unique returns base when it is available, otherwise the first free one of
// base-2, base-3, ...
func (r *SlugResolver) Unique(ctx context.Context, base string) (string, error) {
	slug := base
	for n := 2; ; n++ {
		ok, err := r.IsAvailable(ctx, slug)
		if err != nil {
			return "", err
		}
		if ok {
			return slug, nil
		}
		if err := ctx.Err(); err != nil {
			return "", err
		}
		slug = base + "-" + strconv.Itoa(n)
	}
}
