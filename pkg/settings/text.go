package settings

import (
	"io"
	"net/url"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// stripTags removes markup, keeping text content. When dropRaw is set the
// bodies of script and style elements are discarded as well.
func stripTags(s string, dropRaw bool) string {
	if !strings.ContainsAny(s, "<>") {
		return s
	}
	var b strings.Builder
	z := html.NewTokenizer(strings.NewReader(s))
	skip := 0
	for {
		tt := z.Next()
		switch tt {
		case html.ErrorToken:
			if z.Err() == io.EOF {
				return b.String()
			}
			return b.String()
		case html.TextToken:
			if skip == 0 {
				b.Write(z.Raw())
			}
		case html.StartTagToken:
			if dropRaw && isRawElement(z) {
				skip++
			}
		case html.EndTagToken:
			if dropRaw && skip > 0 && isRawElement(z) {
				skip--
			}
		}
	}
}

func isRawElement(z *html.Tokenizer) bool {
	name, _ := z.TagName()
	a := atom.Lookup(name)
	return a == atom.Script || a == atom.Style
}

// stripControl removes null bytes and control characters. Newlines and tabs
// survive only when keepNewlines is set.
func stripControl(s string, keepNewlines bool) string {
	return strings.Map(func(r rune) rune {
		if keepNewlines && (r == '\n' || r == '\t') {
			return r
		}
		if r == '\r' && keepNewlines {
			return -1
		}
		if unicode.IsControl(r) || r == unicode.ReplacementChar {
			return -1
		}
		return r
	}, s)
}

var (
	runsOfSpace      = regexp.MustCompile(`\s+`)
	runsOfLineSpace  = regexp.MustCompile(`[^\S\n]+`)
	runsOfBlankLines = regexp.MustCompile(`\n{3,}`)
)

// SanitizeText cleans a single line text field: tags, control characters and
// surrounding whitespace are removed and inner whitespace is collapsed.
func SanitizeText(s string) string {
	s = stripTags(s, true)
	s = strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' || r == '\r' {
			return ' '
		}
		return r
	}, s)
	s = stripControl(s, false)
	return strings.TrimSpace(runsOfSpace.ReplaceAllString(s, " "))
}

// SanitizeLongText cleans a multi-line text field. Line breaks are kept.
func SanitizeLongText(s string) string {
	s = stripTags(s, true)
	s = stripControl(s, true)
	s = strings.ReplaceAll(s, "\t", " ")
	s = runsOfLineSpace.ReplaceAllString(s, " ")
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(line)
	}
	s = strings.Join(lines, "\n")
	return strings.TrimSpace(runsOfBlankLines.ReplaceAllString(s, "\n\n"))
}

var (
	absoluteScheme  = regexp.MustCompile(`(?i)^(?:f|ht)tps?://`)
	cssComments     = regexp.MustCompile(`/\*[^*]*\*+([^/][^*]*\*+)*/`)
	cssDangerous    = regexp.MustCompile(`(?i)javascript:|expression\(|vbscript:`)
	cssSpaceBefore  = regexp.MustCompile(`\s+:`)
	allowedSchemes  = map[string]struct{}{"http": {}, "https": {}, "ftp": {}, "ftps": {}}
	whitespaceChars = func(r rune) rune {
		if unicode.IsSpace(r) || unicode.IsControl(r) {
			return -1
		}
		return r
	}
)

// SanitizeURL accepts an absolute http(s)/ftp(s) URL or a site-relative
// path. Input without a scheme is treated as relative and given a leading
// slash. The second result is false for an empty or protocol-relative value
// and for an absolute URL that fails validation.
func SanitizeURL(raw string) (string, bool) {
	raw = strings.TrimSpace(stripTags(raw, true))
	raw = strings.Map(whitespaceChars, raw)
	if raw == "" {
		return "", false
	}
	// Browsers resolve "//host" and "/\host" against another host.
	if strings.HasPrefix(raw, "//") || strings.HasPrefix(raw, `/\`) {
		return "", false
	}
	if strings.HasPrefix(raw, "/") {
		return escapePath(raw), true
	}
	if !absoluteScheme.MatchString(raw) {
		return escapePath("/" + strings.TrimLeft(raw, "/")), true
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "", false
	}
	if _, ok := allowedSchemes[strings.ToLower(u.Scheme)]; !ok {
		return "", false
	}
	return u.String(), true
}

// escapePath percent-encodes a relative reference without touching its
// structure.
func escapePath(p string) string {
	u, err := url.Parse(p)
	if err != nil || u.Scheme != "" || u.Host != "" {
		return (&url.URL{Path: p}).EscapedPath()
	}
	return u.String()
}

// SanitizeCSS removes markup, null bytes, script-capable tokens and comments
// from custom CSS and normalizes whitespace. It is not a CSS parser.
func SanitizeCSS(css string) string {
	if css == "" {
		return ""
	}
	css = stripTags(css, false)
	css = strings.ReplaceAll(css, "\x00", "")
	for {
		cleaned := cssDangerous.ReplaceAllString(css, "")
		if cleaned == css {
			break
		}
		css = cleaned
	}
	css = cssComments.ReplaceAllString(css, "")
	css = cssSpaceBefore.ReplaceAllString(css, ":")
	css = runsOfSpace.ReplaceAllString(css, " ")
	return strings.TrimSpace(css)
}
