package stylegen

import (
	"strings"

	"github.com/CTAG07/Signpost/pkg/settings"
)

// Surface selectors.
const (
	NotFoundSelector = ".signpost-404-page"
	SearchSelector   = `.signpost-404-search input[type="text"]`
	ButtonSelector   = ".signpost-404-button"
	SitemapSelector  = ".signpost-sitemap"
)

type decl struct {
	prop, value string
}

type sheet struct {
	b strings.Builder
}

// rule writes one block, skipping declarations with no value. Nothing is
// written if every declaration is empty.
func (s *sheet) rule(selectors []string, decls ...decl) {
	var kept []decl
	for _, d := range decls {
		if d.value != "" {
			kept = append(kept, d)
		}
	}
	if len(kept) == 0 {
		return
	}
	s.b.WriteString(strings.Join(selectors, ",\n"))
	s.b.WriteString(" {\n")
	for _, d := range kept {
		s.b.WriteString("\t")
		s.b.WriteString(d.prop)
		s.b.WriteString(": ")
		s.b.WriteString(d.value)
		s.b.WriteString(";\n")
	}
	s.b.WriteString("}\n\n")
}

func (s *sheet) comment(text string) {
	s.b.WriteString("/* ")
	s.b.WriteString(text)
	s.b.WriteString(" */\n")
}

// CSS renders the stylesheet for c. Output depends only on c.
func CSS(c settings.ColorConfig) string {
	var s sheet

	s.comment("Not found page")
	s.rule([]string{NotFoundSelector + " h1", NotFoundSelector + " h2", NotFoundSelector + " h3"},
		decl{"color", c.Headings})
	s.rule([]string{NotFoundSelector + " p"}, decl{"color", c.Paragraph})
	s.rule([]string{NotFoundSelector + " a"}, decl{"color", c.Links})
	s.rule([]string{SearchSelector},
		decl{"color", c.SearchText},
		decl{"background-color", c.SearchBackground},
		decl{"border-color", c.SearchBorder})
	s.rule([]string{ButtonSelector},
		decl{"background-color", c.Buttons},
		decl{"color", c.ButtonText})

	s.comment("Sitemap")
	s.rule([]string{SitemapSelector + " h1", SitemapSelector + " h2"}, decl{"color", c.Headings})
	s.rule([]string{SitemapSelector + " p"}, decl{"color", c.Paragraph})
	s.rule([]string{SitemapSelector + " a"}, decl{"color", c.Links})

	s.comment("Hover states")
	s.rule([]string{ButtonSelector + ":hover"}, decl{"background-color", hover(c.Buttons)})
	s.rule([]string{NotFoundSelector + " a:hover", SitemapSelector + " a:hover"}, decl{"color", hover(c.Links)})

	return s.b.String()
}

func hover(hex string) string {
	if hex == "" {
		return ""
	}
	return AdjustBrightness(hex, HoverSteps)
}
