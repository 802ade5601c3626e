package main

import (
	"context"
	"net/http"
	"net/url"
	"os"
	"regexp"
	"strconv"
	"strings"
	"testing"

	"github.com/CTAG07/Signpost/pkg/content"
	"github.com/CTAG07/Signpost/pkg/settings"
	"github.com/CTAG07/Signpost/pkg/stylegen"
	"github.com/CTAG07/Signpost/pkg/templating"
)

var tokenAttr = regexp.MustCompile(`data-token="([0-9a-f]+)"`)

func TestNotFoundPage(t *testing.T) {
	s := newTestServer(t, nil)

	rr := doSite(s, http.MethodGet, "/no/such/page", nil, nil)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", rr.Code)
	}
	body := rr.Body.String()
	for _, want := range []string{
		`class="signpost-404-page"`,
		"That page can",
		`data-endpoint="/search"`,
		`href="/signpost-assets/signpost.css"`,
		"<title>Page not found | Signpost</title>",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("body does not contain %q", want)
		}
	}

	m := tokenAttr.FindStringSubmatch(body)
	if m == nil {
		t.Fatal("page carries no search token")
	}
	if !s.nonces.Verify(actionSearch, m[1]) {
		t.Error("embedded search token does not verify")
	}

	if got := rr.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Errorf("X-Content-Type-Options = %q", got)
	}
	if rr.Header().Get(requestIDHeader) == "" {
		t.Error("response has no request id")
	}
}

func TestNotFoundPage_Head(t *testing.T) {
	s := newTestServer(t, nil)
	rr := doSite(s, http.MethodHead, "/missing", nil, nil)
	if rr.Code != http.StatusNotFound {
		t.Errorf("expected status 404, got %d", rr.Code)
	}
	if rr.Body.Len() != 0 {
		t.Errorf("HEAD response has a body of %d bytes", rr.Body.Len())
	}
}

func TestPage_MethodNotAllowed(t *testing.T) {
	s := newTestServer(t, nil)
	rr := doSite(s, http.MethodPost, "/missing", nil, nil)
	if rr.Code != http.StatusMethodNotAllowed {
		t.Errorf("expected status 405, got %d", rr.Code)
	}
}

func TestNotFoundPage_StoredSettings(t *testing.T) {
	s := newTestServer(t, nil)
	ctx := context.Background()

	img, err := s.app.content.AddMedia(ctx, content.Media{URL: "/uploads/lost.png", Alt: "Lost", Width: 300, Height: 200})
	if err != nil {
		t.Fatalf("AddMedia failed: %v", err)
	}
	cfg := settings.DefaultNotFound()
	cfg.Heading = "Nothing here"
	cfg.ButtonLinks = []settings.ButtonLink{{Text: "Blog", URL: "/blog/"}}
	cfg.FeaturedImage = img
	if err = s.app.settings.Set(ctx, cfg); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	body := doSite(s, http.MethodGet, "/gone", nil, nil).Body.String()
	for _, want := range []string{
		"<h1>Nothing here</h1>",
		`href="/blog/" class="signpost-404-button">Blog</a>`,
		`src="/uploads/lost.png"`,
		`alt="Lost"`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("body does not contain %q", want)
		}
	}
}

func TestNotFoundPage_MissingImage(t *testing.T) {
	s := newTestServer(t, nil)
	cfg := settings.DefaultNotFound()
	cfg.FeaturedImage = 42
	if err := s.app.settings.Set(context.Background(), cfg); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	rr := doSite(s, http.MethodGet, "/gone", nil, nil)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", rr.Code)
	}
	if strings.Contains(rr.Body.String(), "<img") {
		t.Error("a dangling image reference rendered an image")
	}
}

func TestSitemapPage(t *testing.T) {
	s := newTestServer(t, nil)
	ctx := context.Background()

	about := mustInsert(t, s, content.Item{Type: "page", Slug: "about", Title: "About Us"})
	mustInsert(t, s, content.Item{Type: "page", Slug: "team", Title: "The Team", ParentID: about})
	secret := mustInsert(t, s, content.Item{Type: "page", Slug: "secret", Title: "Secret Page"})
	mustInsert(t, s, content.Item{Type: "post", Slug: "hello", Title: "Hello World"})
	mustInsert(t, s, content.Item{Type: "post", Slug: "draft", Title: "Draft Post", Status: "draft"})

	cfg := settings.DefaultSitemap()
	cfg.ExcludedIDs = strconv.FormatInt(secret, 10)
	if err := s.app.settings.Set(ctx, cfg); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	for _, path := range []string{"/sitemap", "/sitemap/"} {
		rr := doSite(s, http.MethodGet, path, nil, nil)
		if rr.Code != http.StatusOK {
			t.Fatalf("GET %s: expected status 200, got %d", path, rr.Code)
		}
		body := rr.Body.String()
		for _, want := range []string{
			`class="signpost-sitemap`,
			"desktop-cols-4 tablet-cols-2 mobile-cols-1",
			"<h2>Posts</h2>",
			"<h2>Pages</h2>",
			`href="/about/"`,
			`href="/team/"`,
			"Hello World",
		} {
			if !strings.Contains(body, want) {
				t.Errorf("GET %s: body does not contain %q", path, want)
			}
		}
		for _, unwanted := range []string{"Secret Page", "Draft Post"} {
			if strings.Contains(body, unwanted) {
				t.Errorf("GET %s: body contains %q", path, unwanted)
			}
		}
	}

	// Only the exact slug is the sitemap.
	if rr := doSite(s, http.MethodGet, "/sitemap/extra", nil, nil); rr.Code != http.StatusNotFound {
		t.Errorf("GET /sitemap/extra: expected status 404, got %d", rr.Code)
	}
}

func TestSitemapPage_CustomSlug(t *testing.T) {
	s := newTestServer(t, nil)
	cfg := settings.DefaultSitemap()
	cfg.URLSlug = "site-index"
	if err := s.app.settings.Set(context.Background(), cfg); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if rr := doSite(s, http.MethodGet, "/site-index/", nil, nil); rr.Code != http.StatusOK {
		t.Errorf("GET /site-index/: expected status 200, got %d", rr.Code)
	}
	if rr := doSite(s, http.MethodGet, "/sitemap/", nil, nil); rr.Code != http.StatusNotFound {
		t.Errorf("GET /sitemap/: expected status 404, got %d", rr.Code)
	}
}

func TestStylesheetLink(t *testing.T) {
	s := newTestServer(t, nil)
	ctx := context.Background()

	body := doSite(s, http.MethodGet, "/x", nil, nil).Body.String()
	if strings.Contains(body, stylegen.FileName) {
		t.Error("page links the derived stylesheet before it was generated")
	}

	if err := s.app.styles.Regenerate(ctx); err != nil {
		t.Fatalf("Regenerate failed: %v", err)
	}
	body = doSite(s, http.MethodGet, "/x", nil, nil).Body.String()
	if !strings.Contains(body, assetPrefix+"/"+stylegen.FileName+"?ver=") {
		t.Error("page does not link the versioned derived stylesheet")
	}
}

func TestAssets(t *testing.T) {
	s := newTestServer(t, nil)

	rr := doSite(s, http.MethodGet, assetPrefix+"/"+templating.StylesheetName, nil, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("base stylesheet: expected status 200, got %d", rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/css") {
		t.Errorf("base stylesheet Content-Type = %q", ct)
	}

	// The derived stylesheet is generated on first request.
	rr = doSite(s, http.MethodGet, assetPrefix+"/"+stylegen.FileName, nil, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("derived stylesheet: expected status 200, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), stylegen.NotFoundSelector) {
		t.Error("derived stylesheet does not style the not-found page")
	}
	if _, err := os.Stat(s.app.styles.Path()); err != nil {
		t.Errorf("derived stylesheet was not written: %v", err)
	}

	if rr = doSite(s, http.MethodGet, assetPrefix+"/other.css", nil, nil); rr.Code != http.StatusNotFound {
		t.Errorf("unknown asset: expected status 404, got %d", rr.Code)
	}
}

func TestFavicon(t *testing.T) {
	s := newTestServer(t, nil)
	rr := doSite(s, http.MethodGet, "/favicon.ico", nil, nil)
	if rr.Code != http.StatusNoContent {
		t.Errorf("expected status 204, got %d", rr.Code)
	}
}

func TestRequestIDPropagation(t *testing.T) {
	s := newTestServer(t, nil)

	const id = "3f1c2b9e-8d6a-4c2e-9a51-0b7d4e6f8a13"
	rr := doSite(s, http.MethodGet, "/favicon.ico", nil, http.Header{requestIDHeader: {id}})
	if got := rr.Header().Get(requestIDHeader); got != id {
		t.Errorf("request id = %q, want %q", got, id)
	}

	rr = doSite(s, http.MethodGet, "/favicon.ico", nil, http.Header{requestIDHeader: {"not a uuid"}})
	if got := rr.Header().Get(requestIDHeader); got == "not a uuid" || got == "" {
		t.Errorf("malformed request id was not replaced, got %q", got)
	}
}

func TestGetClientIP(t *testing.T) {
	s := newTestServer(t, func(cfg *ServerConfig) {
		cfg.TrustedProxies = []string{"10.0.0.0/8", "192.0.2.99"}
	})

	tests := []struct {
		name   string
		remote string
		header http.Header
		want   string
	}{
		{"direct", "203.0.113.5:1234", nil, "203.0.113.5"},
		{"untrusted peer ignores headers", "203.0.113.5:1234", http.Header{"X-Forwarded-For": {"198.51.100.1"}}, "203.0.113.5"},
		{"trusted cidr uses real ip", "10.1.2.3:1234", http.Header{"X-Real-Ip": {"198.51.100.2"}}, "198.51.100.2"},
		{"trusted ip uses cloudflare", "192.0.2.99:1234", http.Header{"Cf-Connecting-Ip": {"198.51.100.3"}}, "198.51.100.3"},
		{"first forwarded entry", "10.1.2.3:1234", http.Header{"X-Forwarded-For": {"198.51.100.4, 10.1.2.3"}}, "198.51.100.4"},
		{"garbage header falls back", "10.1.2.3:1234", http.Header{"X-Forwarded-For": {"nonsense"}}, "10.1.2.3"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, _ := http.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remote
			for k, v := range tt.header {
				req.Header[http.CanonicalHeaderKey(k)] = v
			}
			if got := s.getClientIP(req); got != tt.want {
				t.Errorf("getClientIP() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSearchFormEncoded(t *testing.T) {
	s := newTestServer(t, nil)
	mustInsert(t, s, content.Item{Type: "post", Slug: "kittens", Title: "Kittens"})

	form := url.Values{"search": {"kit"}, "nonce": {s.nonces.Create(actionSearch)}}
	rr := doSite(s, http.MethodPost, searchPath, strings.NewReader(form.Encode()),
		http.Header{"Content-Type": {"application/x-www-form-urlencoded"}})
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var resp SearchResponse
	decodeJSON(t, rr, &resp)
	if resp.Count != 1 || resp.Results[0].URL != "/kittens/" {
		t.Errorf("unexpected results %+v", resp)
	}
}
