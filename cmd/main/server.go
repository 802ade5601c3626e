package main

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strings"

	"github.com/CTAG07/Signpost/pkg/content"
	"github.com/CTAG07/Signpost/pkg/stylegen"
	"github.com/CTAG07/Signpost/pkg/templating"
)

const (
	notFoundTitle = "Page not found"
	searchPath    = "/search"
)

// defaultSitemapTypes is used when no content type is selected for the sitemap.
var defaultSitemapTypes = []string{"post", "page"}

type Server struct {
	cm          *ConfigManager
	app         *App
	logger      *slog.Logger
	tm          *templating.TemplateManager
	nonces      *Nonces
	authAPI     *AuthAPI
	settingsAPI *SettingsAPI
	contentAPI  *ContentAPI
	templateAPI *TemplateAPI
	serverAPI   *ServerAPI
	siteMux     *http.ServeMux
	apiMux      *http.ServeMux
}

func NewServer(cm *ConfigManager, app *App, logger *slog.Logger, actionChan chan string) (*Server, error) {
	config := cm.Get()

	tm, err := templating.NewTemplateManager(logger, config.Templates, config.Server.TemplateDir)
	if err != nil {
		return nil, err
	}
	cm.SetTemplateManager(tm)

	secret, err := loadNonceSecret(context.Background(), app.settings, config.Server.NonceSecret)
	if err != nil {
		return nil, err
	}
	nonces := NewNonces(secret)

	server := &Server{
		cm:          cm,
		app:         app,
		logger:      logger,
		tm:          tm,
		nonces:      nonces,
		authAPI:     NewAuthAPI(app.authDB, logger),
		settingsAPI: NewSettingsAPI(app, nonces, logger),
		contentAPI:  NewContentAPI(app.content, logger),
		serverAPI:   NewServerAPI(cm, actionChan, logger),
		siteMux:     http.NewServeMux(),
		apiMux:      http.NewServeMux(),
	}

	server.templateAPI = NewTemplateAPI(tm, server.pageData, logger)

	apiMux := http.NewServeMux()

	server.authAPI.RegisterRoutes(apiMux)
	server.settingsAPI.RegisterRoutes(apiMux)
	server.contentAPI.RegisterRoutes(apiMux)
	server.templateAPI.RegisterRoutes(apiMux)
	server.serverAPI.RegisterRoutes(apiMux)

	// Every api route passes through authentication first, except the health
	// check, which docker and friends poll without a key.
	server.apiMux.HandleFunc("/api/health", server.serverAPI.handleHealthCheck)
	server.apiMux.Handle("/api/", server.authAPI.Authenticate(apiMux))

	server.siteMux.HandleFunc("/favicon.ico", handleFavicon)
	server.siteMux.HandleFunc(searchPath, server.handleSearch)
	server.siteMux.HandleFunc(assetPrefix+"/", server.handleAsset)
	server.siteMux.HandleFunc("/", server.handlePage)

	return server, nil
}

// SiteHandler is the public site with request logging.
func (s *Server) SiteHandler() http.Handler {
	return withRequestLogging(s.logger, s.siteMux)
}

// APIHandler is the admin api with request logging.
func (s *Server) APIHandler() http.Handler {
	return withRequestLogging(s.logger, s.apiMux)
}

// handlePage serves the sitemap at its configured slug and the not-found
// page everywhere else.
func (s *Server) handlePage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
		return
	}
	ctx := r.Context()
	cfg, err := s.app.settings.Sitemap(ctx)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to load sitemap settings", "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	segment := strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, "/"), "/")
	if cfg.URLSlug != "" && segment == cfg.URLSlug {
		s.serveSitemap(w, r)
		return
	}
	s.serveNotFound(w, r)
}

func (s *Server) serveNotFound(w http.ResponseWriter, r *http.Request) {
	page, err := s.notFoundPage(r.Context())
	if err != nil {
		s.logger.ErrorContext(r.Context(), "Failed to build not-found page", "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	s.render(w, r, http.StatusNotFound, templating.NotFoundTemplate, page)
}

func (s *Server) serveSitemap(w http.ResponseWriter, r *http.Request) {
	page, err := s.sitemapPage(r.Context())
	if err != nil {
		s.logger.ErrorContext(r.Context(), "Failed to build sitemap", "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	s.render(w, r, http.StatusOK, templating.SitemapTemplate, page)
}

// notFoundPage builds the not-found view from the stored settings.
func (s *Server) notFoundPage(ctx context.Context) (templating.NotFoundPage, error) {
	cfg, err := s.app.settings.NotFound(ctx)
	if err != nil {
		return templating.NotFoundPage{}, err
	}
	return templating.NotFoundPage{
		Page: templating.Page{
			Title:           notFoundTitle,
			MetaDescription: cfg.MetaDescription,
			StylesheetURL:   s.app.stylesheetURL(ctx),
			CustomCSS:       cfg.CustomCSS,
			Image:           s.featuredImage(ctx, cfg.FeaturedImage),
		},
		Heading:     cfg.Heading,
		Message:     cfg.Message,
		Buttons:     cfg.ButtonLinks,
		SearchURL:   searchPath,
		SearchToken: s.nonces.Create(actionSearch),
	}, nil
}

// sitemapPage builds the sitemap view from the stored settings and content.
func (s *Server) sitemapPage(ctx context.Context) (templating.SitemapPage, error) {
	cfg, err := s.app.settings.Sitemap(ctx)
	if err != nil {
		return templating.SitemapPage{}, err
	}
	types := cfg.PostTypes
	if len(types) == 0 {
		types = defaultSitemapTypes
	}
	sections, err := s.app.content.Sections(ctx, types, cfg.ExcludedIDList())
	if err != nil {
		return templating.SitemapPage{}, err
	}
	return templating.SitemapPage{
		Page: templating.Page{
			Title:           cfg.Heading,
			MetaDescription: cfg.MetaDescription,
			StylesheetURL:   s.app.stylesheetURL(ctx),
			CustomCSS:       cfg.CustomCSS,
			Image:           s.featuredImage(ctx, cfg.FeaturedImage),
		},
		Heading:        cfg.Heading,
		Message:        cfg.Message,
		ColumnsDesktop: cfg.ColumnsDesktop,
		ColumnsTablet:  cfg.ColumnsTablet,
		ColumnsMobile:  cfg.ColumnsMobile,
		Sections:       sections,
	}, nil
}

// pageData returns the live view model of a page template, nil for others.
func (s *Server) pageData(ctx context.Context, name string) (any, error) {
	switch name {
	case templating.NotFoundTemplate:
		return s.notFoundPage(ctx)
	case templating.SitemapTemplate:
		return s.sitemapPage(ctx)
	}
	return nil, nil
}

// featuredImage resolves a media id. A missing asset renders no image.
func (s *Server) featuredImage(ctx context.Context, id int64) *templating.Image {
	if id <= 0 {
		return nil
	}
	m, err := s.app.content.Media(ctx, id)
	if err != nil {
		if !errors.Is(err, content.ErrNotFound) {
			s.logger.WarnContext(ctx, "Failed to resolve featured image", "id", id, "error", err)
		}
		return nil
	}
	return &templating.Image{URL: m.URL, Alt: m.Alt, Width: m.Width, Height: m.Height}
}

func (s *Server) render(w http.ResponseWriter, r *http.Request, status int, name string, data any) {
	var buf bytes.Buffer
	if err := s.tm.Execute(&buf, name, data); err != nil {
		s.logger.ErrorContext(r.Context(), "Failed to execute template", "template", name, "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	s.setPageHeaders(w)
	w.WriteHeader(status)
	if r.Method != http.MethodHead {
		_, _ = buf.WriteTo(w)
	}
}

func (s *Server) setPageHeaders(w http.ResponseWriter) {
	for k, v := range s.cm.Get().Server.Headers {
		w.Header().Set(k, v)
	}
	if w.Header().Get("Content-Type") == "" {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
	}
}

// handleAsset serves the base and the derived stylesheet. A derived
// stylesheet missing from disk is regenerated from the stored colors.
func (s *Server) handleAsset(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimPrefix(r.URL.Path, assetPrefix+"/")
	switch name {
	case templating.StylesheetName:
		w.Header().Set("Content-Type", "text/css; charset=utf-8")
		w.Header().Set("Cache-Control", "public, max-age=86400")
		_, _ = w.Write(templating.Stylesheet())
	case stylegen.FileName:
		path := s.app.styles.Path()
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			if err = s.app.styles.Regenerate(r.Context()); err != nil {
				s.logger.ErrorContext(r.Context(), "Failed to regenerate missing stylesheet", "error", err)
				http.NotFound(w, r)
				return
			}
		}
		w.Header().Set("Content-Type", "text/css; charset=utf-8")
		http.ServeFile(w, r, path)
	default:
		http.NotFound(w, r)
	}
}

// getClientIP returns the address the rate limit is keyed by. Forwarding
// headers are honored only when the direct peer is a trusted proxy.
func (s *Server) getClientIP(r *http.Request) string {
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		ip = r.RemoteAddr
	}
	if !s.cm.IsTrusted(ip) {
		return ip
	}

	// The X-Real-Ip header contains the forwarded IP in some cases (like from nginx)
	if realIP := strings.TrimSpace(r.Header.Get("X-Real-Ip")); net.ParseIP(realIP) != nil {
		return realIP
	}
	if cfIP := strings.TrimSpace(r.Header.Get("CF-Connecting-IP")); net.ParseIP(cfIP) != nil {
		return cfIP
	}
	// The first entry of X-Forwarded-For is the original client.
	if forwardedFor := r.Header.Get("X-Forwarded-For"); forwardedFor != "" {
		first, _, _ := strings.Cut(forwardedFor, ",")
		if first = strings.TrimSpace(first); net.ParseIP(first) != nil {
			return first
		}
	}
	return ip
}

// handleFavicon answers favicon requests with no content so they never render
// the not-found page.
func handleFavicon(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusNoContent)
}
