package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/CTAG07/Signpost/pkg/templating"
	"github.com/natefinch/atomic"
)

const (
	maxTemplateBody = 256 << 10

	// templateSourceHeader tells whether a returned file is an override or built in.
	templateSourceHeader = "X-Signpost-Template-Source"
)

// PageDataFunc returns the live view model of a page template.
type PageDataFunc func(ctx context.Context, name string) (any, error)

// TemplateAPI holds the dependencies for the template API handlers.
type TemplateAPI struct {
	tm       *templating.TemplateManager
	pageData PageDataFunc
	logger   *slog.Logger
}

// NewTemplateAPI creates a new instance of the TemplateAPI.
func NewTemplateAPI(tm *templating.TemplateManager, pageData PageDataFunc, logger *slog.Logger) *TemplateAPI {
	return &TemplateAPI{
		tm:       tm,
		pageData: pageData,
		logger:   logger,
	}
}

// RegisterRoutes sets up the routing for all /api/templates endpoints.
func (t *TemplateAPI) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/templates/refresh", t.handleRefresh)
	mux.HandleFunc("/api/templates/test", t.handleTest)
	mux.HandleFunc("/api/templates/preview", t.handlePreview)
	mux.HandleFunc("/api/templates", t.handleList)
	mux.HandleFunc("/api/templates/", t.handleFile)
}

// handleRefresh triggers a manual refresh of templates from disk.
func (t *TemplateAPI) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST")
		respondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	if !requireScope(w, r, scopeTemplatesWrite) {
		return
	}
	if err := t.tm.Refresh(); err != nil {
		t.logger.ErrorContext(r.Context(), "API triggered refresh failed", "error", err)
		respondWithError(w, http.StatusBadRequest, fmt.Sprintf("Failed to refresh templates: %v", err))
		return
	}
	t.logger.InfoContext(r.Context(), "Templates refreshed via API")
	w.WriteHeader(http.StatusNoContent)
}

// TemplateList lists the loaded files and which of them are full pages.
type TemplateList struct {
	Templates []string `json:"templates"`
	Pages     []string `json:"pages"`
}

// handleList returns the names of all loaded templates.
func (t *TemplateAPI) handleList(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", "GET")
		respondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	if !requireScope(w, r, scopeTemplatesRead) {
		return
	}
	respondWithJSON(w, http.StatusOK, TemplateList{
		Templates: t.tm.GetTemplateNames(),
		Pages:     t.tm.GetPageNames(),
	})
}

// handleTest renders a posted template string against the live data of a
// page, the not-found page unless ?page= names another. Nothing is saved.
func (t *TemplateAPI) handleTest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST")
		respondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	if !requireScope(w, r, scopeTemplatesRead) {
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxTemplateBody))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, fmt.Sprintf("Failed to read request body: %v", err))
		return
	}

	page := r.URL.Query().Get("page")
	if page == "" {
		page = templating.NotFoundTemplate
	}
	data, err := t.pageData(r.Context(), page)
	if err != nil {
		t.logger.ErrorContext(r.Context(), "Failed to build preview data", "page", page, "error", err)
		respondWithError(w, http.StatusInternalServerError, "Failed to build preview data")
		return
	}

	var buf bytes.Buffer
	if err = t.tm.ExecuteTemplateString(&buf, string(body), data); err != nil {
		respondWithError(w, http.StatusBadRequest, fmt.Sprintf("Template execution failed: %v", err))
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = buf.WriteTo(w)
}

// handlePreview renders a loaded page template with the current settings.
func (t *TemplateAPI) handlePreview(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", "GET")
		respondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	if !requireScope(w, r, scopeTemplatesRead) {
		return
	}

	name := r.URL.Query().Get("name")
	if name == "" {
		respondWithError(w, http.StatusBadRequest, "Query parameter 'name' is required")
		return
	}
	if !t.tm.Has(name) {
		respondWithError(w, http.StatusNotFound, fmt.Sprintf("Template '%s' not found", name))
		return
	}

	data, err := t.pageData(r.Context(), name)
	if err != nil {
		t.logger.ErrorContext(r.Context(), "Failed to build preview data", "page", name, "error", err)
		respondWithError(w, http.StatusInternalServerError, "Failed to build preview data")
		return
	}

	var buf bytes.Buffer
	if err = t.tm.Execute(&buf, name, data); err != nil {
		respondWithError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to render preview: %v", err))
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = buf.WriteTo(w)
}

// validTemplateName accepts plain page and partial file names.
func validTemplateName(name string) bool {
	if name == "" || name != filepath.Base(name) || strings.Contains(name, "..") {
		return false
	}
	return strings.HasSuffix(name, ".tmpl.html") || strings.HasSuffix(name, ".part.html")
}

// handleFile manages the override file of a single template. Reading a name
// with no override returns the built-in source.
func (t *TemplateAPI) handleFile(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimPrefix(r.URL.Path, "/api/templates/")
	if name == "" || strings.HasSuffix(name, "/") {
		respondWithError(w, http.StatusNotFound, "Not Found")
		return
	}
	if !validTemplateName(name) {
		respondWithError(w, http.StatusBadRequest, "Invalid template name format")
		return
	}

	templateDir, err := filepath.Abs(t.tm.GetTemplateDir())
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "Failed to resolve template directory")
		return
	}
	path := filepath.Join(templateDir, name)

	switch r.Method {
	case http.MethodGet:
		if !requireScope(w, r, scopeTemplatesRead) {
			return
		}
		source := "override"
		content, err := os.ReadFile(path)
		if errors.Is(err, os.ErrNotExist) {
			source = "default"
			content, err = templating.DefaultSource(name)
		}
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				respondWithError(w, http.StatusNotFound, "Template not found")
				return
			}
			respondWithError(w, http.StatusInternalServerError, "Failed to read template")
			return
		}
		w.Header().Set(templateSourceHeader, source)
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write(content)

	case http.MethodPut:
		if !requireScope(w, r, scopeTemplatesWrite) {
			return
		}
		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxTemplateBody))
		if err != nil {
			respondWithError(w, http.StatusBadRequest, fmt.Sprintf("Failed to read request body: %v", err))
			return
		}
		previous, readErr := os.ReadFile(path)
		if err = os.MkdirAll(templateDir, 0755); err != nil {
			respondWithError(w, http.StatusInternalServerError, "Failed to create template directory")
			return
		}
		if err = atomic.WriteFile(path, bytes.NewReader(body)); err != nil {
			respondWithError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to write template file: %v", err))
			return
		}
		if err = t.tm.Refresh(); err != nil {
			// Put back what was there so the live set keeps parsing.
			if readErr == nil {
				_ = atomic.WriteFile(path, bytes.NewReader(previous))
			} else {
				_ = os.Remove(path)
			}
			_ = t.tm.Refresh()
			respondWithError(w, http.StatusBadRequest, fmt.Sprintf("Template rejected: %v", err))
			return
		}
		t.logger.InfoContext(r.Context(), "Template override saved via API", "template", name)
		w.WriteHeader(http.StatusNoContent)

	case http.MethodDelete:
		if !requireScope(w, r, scopeTemplatesWrite) {
			return
		}
		if err := os.Remove(path); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				respondWithError(w, http.StatusNotFound, "Template not found")
				return
			}
			respondWithError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to delete template file: %v", err))
			return
		}
		_ = t.tm.Refresh()
		t.logger.InfoContext(r.Context(), "Template override removed via API", "template", name)
		w.WriteHeader(http.StatusNoContent)

	default:
		w.Header().Set("Allow", "GET, PUT, DELETE")
		respondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}
