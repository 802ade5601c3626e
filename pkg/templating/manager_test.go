package templating

import (
	"bytes"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/CTAG07/Signpost/pkg/content"
	"github.com/CTAG07/Signpost/pkg/settings"
)

// setupTestManager creates a TemplateManager over a fresh theme directory.
func setupTestManager(tb testing.TB) (*TemplateManager, string) {
	tb.Helper()

	themeDir := filepath.Join(tb.TempDir(), "templates")
	if err := os.Mkdir(themeDir, 0755); err != nil {
		tb.Fatalf("failed to create templates dir: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	tm, err := NewTemplateManager(logger, nil, themeDir)
	if err != nil {
		tb.Fatalf("NewTemplateManager() failed: %v", err)
	}
	return tm, themeDir
}

func writeTheme(tb testing.TB, dir, name, text string) {
	tb.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(text), 0644); err != nil {
		tb.Fatalf("failed to write %s: %v", name, err)
	}
}

func render(tb testing.TB, tm *TemplateManager, name string, data any) string {
	tb.Helper()
	var buf bytes.Buffer
	if err := tm.Execute(&buf, name, data); err != nil {
		tb.Fatalf("Execute(%s) failed: %v", name, err)
	}
	return buf.String()
}

func TestTemplateManager_Defaults(t *testing.T) {
	tm, _ := setupTestManager(t)

	pages := tm.GetPageNames()
	if len(pages) != 2 || pages[0] != NotFoundTemplate || pages[1] != SitemapTemplate {
		t.Errorf("GetPageNames() = %v, want [%s %s]", pages, NotFoundTemplate, SitemapTemplate)
	}
	names := tm.GetTemplateNames()
	for _, want := range []string{"layout.part.html", "search.part.html", NotFoundTemplate} {
		found := false
		for _, n := range names {
			if n == want {
				found = true
			}
		}
		if !found {
			t.Errorf("GetTemplateNames() is missing %s: %v", want, names)
		}
	}
	if !tm.Has("sitemap-items") {
		t.Error("Has(sitemap-items) = false, want true")
	}
	if tm.Has("missing.tmpl.html") {
		t.Error("Has(missing.tmpl.html) = true, want false")
	}
}

func TestTemplateManager_RenderNotFound(t *testing.T) {
	tm, _ := setupTestManager(t)

	page := NotFoundPage{
		Page: Page{
			Title:           "Page not found",
			MetaDescription: "Nothing here",
			StylesheetURL:   "/signpost-assets/custom-colors.css?ver=3",
			CustomCSS:       ".x { color: red; }</style><script>",
			Image:           &Image{URL: "/media/lost.png", Width: 640, Height: 480},
		},
		Heading:     "Oops <b>gone</b>",
		Message:     "First paragraph.\n\nSecond paragraph.",
		Buttons:     []settings.ButtonLink{{Text: "Shop", URL: "/shop"}},
		SearchURL:   "/search",
		SearchToken: "tok123",
	}
	out := render(t, tm, NotFoundTemplate, page)

	for _, want := range []string{
		`class="signpost-404-page"`,
		`Oops &lt;b&gt;gone&lt;/b&gt;`,
		`<p>First paragraph.</p>`,
		`<p>Second paragraph.</p>`,
		`<a href="/shop" class="signpost-404-button">Shop</a>`,
		`data-token="tok123"`,
		`data-endpoint="/search"`,
		`href="/signpost-assets/custom-colors.css?ver=3"`,
		`src="/media/lost.png"`,
		`width="640"`,
		`placeholder="Search..."`,
		`<title>Page not found | Signpost</title>`,
		`href="/"`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("rendered page is missing %q", want)
		}
	}
	if strings.Contains(out, "</style><script>") {
		t.Error("custom CSS was able to close the style element")
	}
}

func TestTemplateManager_RenderNotFound_NoButtons(t *testing.T) {
	tm, _ := setupTestManager(t)

	out := render(t, tm, NotFoundTemplate, NotFoundPage{Page: Page{Title: "x"}, Heading: "h", Message: "m"})
	if strings.Contains(out, "signpost-404-buttons") {
		t.Error("button block rendered without buttons")
	}
	if strings.Contains(out, "signpost-image") {
		t.Error("image block rendered without an image")
	}
	if strings.Contains(out, "<style>") {
		t.Error("style element rendered without custom CSS")
	}
}

func TestTemplateManager_RenderSitemap(t *testing.T) {
	tm, _ := setupTestManager(t)

	page := SitemapPage{
		Page:           Page{Title: "Sitemap"},
		Heading:        "Sitemap",
		Message:        "Everything.",
		ColumnsDesktop: 3,
		ColumnsTablet:  2,
		ColumnsMobile:  1,
		Sections: []content.Section{
			{
				Type: content.Type{Name: "page", Label: "Pages"},
				Items: []content.Item{
					{ID: 1, Type: "page", Slug: "about", Title: "About", Children: []content.Item{
						{ID: 2, Type: "page", Slug: "team", Title: "Team & Co"},
					}},
				},
			},
			{
				Type:  content.Type{Name: "product", Label: "Products"},
				Items: []content.Item{{ID: 3, Type: "product", Slug: "hat", Title: "Hat"}},
			},
		},
	}
	out := render(t, tm, SitemapTemplate, page)

	for _, want := range []string{
		`class="signpost-sitemap desktop-cols-3 tablet-cols-2 mobile-cols-1"`,
		`<h2>Pages</h2>`,
		`<h2>Products</h2>`,
		`href="/about/"`,
		`href="/team/"`,
		`href="/product/hat/"`,
		`Team &amp; Co`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("rendered sitemap is missing %q", want)
		}
	}
	// The child list is nested inside the parent's list item.
	about := strings.Index(out, `href="/about/"`)
	team := strings.Index(out, `href="/team/"`)
	if strings.Count(out[about:team], "<ul>") != 1 {
		t.Error("child page is not nested under its parent")
	}
}

func TestTemplateManager_Override(t *testing.T) {
	tm, themeDir := setupTestManager(t)

	writeTheme(t, themeDir, NotFoundTemplate, `custom {{.Heading}} on {{siteName}}`)
	writeTheme(t, themeDir, "extra.tmpl.html", `extra page`)

	// Nothing changes until Refresh.
	if out := render(t, tm, NotFoundTemplate, NotFoundPage{Heading: "h"}); strings.HasPrefix(out, "custom") {
		t.Fatal("override was picked up before Refresh")
	}
	if err := tm.Refresh(); err != nil {
		t.Fatalf("Refresh() failed: %v", err)
	}

	if out := render(t, tm, NotFoundTemplate, NotFoundPage{Heading: "h"}); out != "custom h on Signpost" {
		t.Errorf("override rendered %q", out)
	}
	if got := len(tm.GetPageNames()); got != 3 {
		t.Errorf("GetPageNames() has %d pages, want 3", got)
	}
	// The built-in sitemap still renders.
	render(t, tm, SitemapTemplate, SitemapPage{})
}

func TestTemplateManager_OverrideParseError(t *testing.T) {
	tm, themeDir := setupTestManager(t)
	writeTheme(t, themeDir, "broken.tmpl.html", `{{ .Unclosed `)

	if err := tm.Refresh(); err == nil {
		t.Fatal("Refresh() with a broken template succeeded")
	}
	// The previous set stays in place.
	render(t, tm, NotFoundTemplate, NotFoundPage{})
}

func TestTemplateManager_MissingDir(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	tm, err := NewTemplateManager(logger, nil, filepath.Join(t.TempDir(), "nope"))
	if err != nil {
		t.Fatalf("NewTemplateManager() with missing dir failed: %v", err)
	}
	if len(tm.GetPageNames()) != 2 {
		t.Errorf("GetPageNames() = %v", tm.GetPageNames())
	}
}

func TestTemplateManager_Execute_EmptyName(t *testing.T) {
	tm, _ := setupTestManager(t)
	if err := tm.Execute(io.Discard, "", nil); err == nil {
		t.Error("Execute with empty name succeeded")
	}
}

func TestTemplateManager_Config(t *testing.T) {
	tm, _ := setupTestManager(t)
	tm.SetConfig(&TemplateConfig{SiteName: "Acme", HomeURL: "https://acme.test/", Language: "de", SearchPlaceholder: "Suchen"})

	out := render(t, tm, NotFoundTemplate, NotFoundPage{Page: Page{Title: "x"}})
	for _, want := range []string{`lang="de"`, `| Acme</title>`, `href="https://acme.test/"`, `placeholder="Suchen"`} {
		if !strings.Contains(out, want) {
			t.Errorf("rendered page is missing %q", want)
		}
	}
	if got := tm.GetConfig().SiteName; got != "Acme" {
		t.Errorf("GetConfig().SiteName = %q", got)
	}
}

func TestTemplateManager_ExecuteTemplateString(t *testing.T) {
	tm, _ := setupTestManager(t)

	var buf bytes.Buffer
	err := tm.ExecuteTemplateString(&buf, `{{template "buttons" .}}`, []settings.ButtonLink{{Text: "A", URL: "/a"}})
	if err != nil {
		t.Fatalf("ExecuteTemplateString() failed: %v", err)
	}
	if !strings.Contains(buf.String(), `href="/a"`) {
		t.Errorf("preview = %q", buf.String())
	}

	if err = tm.ExecuteTemplateString(io.Discard, `{{ .Broken `, nil); err == nil {
		t.Error("ExecuteTemplateString() with bad syntax succeeded")
	}
	// Previews do not leak into the loaded set.
	if tm.Has("preview") {
		t.Error("preview template was stored")
	}
}

func TestDefaultSource(t *testing.T) {
	src, err := DefaultSource(NotFoundTemplate)
	if err != nil {
		t.Fatalf("DefaultSource() failed: %v", err)
	}
	if !bytes.Contains(src, []byte("signpost-404-page")) {
		t.Error("DefaultSource returned unexpected text")
	}
	if _, err = DefaultSource("missing.html"); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("DefaultSource(missing) error = %v, want not exist", err)
	}
	if _, err = DefaultSource("../manager.go"); err == nil {
		t.Error("DefaultSource accepted a path")
	}
}

func TestFuncs(t *testing.T) {
	if got := responsiveClasses(4, 2, 1); got != "desktop-cols-4 tablet-cols-2 mobile-cols-1" {
		t.Errorf("responsiveClasses() = %q", got)
	}

	got := paragraphs("one\r\n\r\ntwo\n\n\n\n  \n\nthree")
	if len(got) != 3 || got[0] != "one" || got[2] != "three" {
		t.Errorf("paragraphs() = %q", got)
	}
	if paragraphs("   ") != nil {
		t.Error("paragraphs of blank text is not empty")
	}

	if got := safeCSS("a{}</style>"); string(got) != "a{}/style>" {
		t.Errorf("safeCSS() = %q", got)
	}
	if add(2, 3) != 5 {
		t.Error("add(2, 3) != 5")
	}
}

func TestStylesheet(t *testing.T) {
	css := Stylesheet()
	for _, want := range []string{".signpost-404-page", ".desktop-cols-4", ".mobile-cols-2"} {
		if !bytes.Contains(css, []byte(want)) {
			t.Errorf("base stylesheet is missing %s", want)
		}
	}
}
