package templating

import (
	"fmt"
	"html/template"
	"strings"

	"github.com/CTAG07/Signpost/pkg/content"
)

func (tm *TemplateManager) makeFuncMap() template.FuncMap {
	return template.FuncMap{
		"siteName":          tm.siteName,
		"homeURL":           tm.homeURL,
		"language":          tm.language,
		"searchPlaceholder": tm.searchPlaceholder,

		"responsiveClasses": responsiveClasses,
		"permalink":         content.Permalink,
		"paragraphs":        paragraphs,
		"safeCSS":           safeCSS,
		"join":              strings.Join,
		"add":               add,
	}
}

func (tm *TemplateManager) siteName() string {
	tm.cfgMu.RLock()
	defer tm.cfgMu.RUnlock()
	return tm.config.SiteName
}

func (tm *TemplateManager) homeURL() string {
	tm.cfgMu.RLock()
	defer tm.cfgMu.RUnlock()
	if tm.config.HomeURL == "" {
		return "/"
	}
	return tm.config.HomeURL
}

func (tm *TemplateManager) language() string {
	tm.cfgMu.RLock()
	defer tm.cfgMu.RUnlock()
	return tm.config.Language
}

func (tm *TemplateManager) searchPlaceholder() string {
	tm.cfgMu.RLock()
	defer tm.cfgMu.RUnlock()
	return tm.config.SearchPlaceholder
}

// responsiveClasses builds the column classes of the sitemap grid.
func responsiveClasses(desktop, tablet, mobile int) string {
	return fmt.Sprintf("desktop-cols-%d tablet-cols-%d mobile-cols-%d", desktop, tablet, mobile)
}

// paragraphs splits text on blank lines, dropping empty parts.
func paragraphs(text string) []string {
	var out []string
	for _, p := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n\n") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// safeCSS marks stored custom CSS as trusted for a style element. The CSS was
// sanitized on save; any '<' left is removed so the element cannot be closed.
func safeCSS(css string) template.CSS {
	return template.CSS(strings.ReplaceAll(css, "<", ""))
}

// add returns a + b.
func add(a, b int) int {
	return a + b
}
