package main

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/CTAG07/Signpost/pkg/content"
)

// ContentAPI lets a publishing system feed the content the sitemap and the
// search draw from.
type ContentAPI struct {
	store  *content.Store
	logger *slog.Logger
}

// NewContentAPI creates a new instance of the ContentAPI.
func NewContentAPI(store *content.Store, logger *slog.Logger) *ContentAPI {
	return &ContentAPI{store: store, logger: logger}
}

// RegisterRoutes sets up the routing for all /api/content and /api/media endpoints.
func (c *ContentAPI) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/content/types", c.handleTypes)
	mux.HandleFunc("/api/content", c.handleItems)
	mux.HandleFunc("/api/content/", c.handleItem)
	mux.HandleFunc("/api/media", c.handleMediaCreate)
	mux.HandleFunc("/api/media/", c.handleMedia)
}

func (c *ContentAPI) handleTypes(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		if !requireScope(w, r, scopeContentRead) {
			return
		}
		types, err := c.store.PublicTypes(r.Context())
		if err != nil {
			c.logger.ErrorContext(r.Context(), "Failed to list content types", "error", err)
			respondWithError(w, http.StatusInternalServerError, "Failed to list content types")
			return
		}
		respondWithJSON(w, http.StatusOK, types)
	case http.MethodPost:
		if !requireScope(w, r, scopeContentWrite) {
			return
		}
		var t content.Type
		if err := json.NewDecoder(r.Body).Decode(&t); err != nil || t.Name == "" {
			respondWithError(w, http.StatusBadRequest, "Invalid content type")
			return
		}
		if err := c.store.RegisterType(r.Context(), t); err != nil {
			c.logger.ErrorContext(r.Context(), "Failed to register content type", "type", t.Name, "error", err)
			respondWithError(w, http.StatusInternalServerError, "Failed to register content type")
			return
		}
		registered, err := c.store.Type(r.Context(), t.Name)
		if err != nil {
			respondWithError(w, http.StatusInternalServerError, "Failed to load content type")
			return
		}
		respondWithJSON(w, http.StatusCreated, registered)
	default:
		w.Header().Set("Allow", "GET, POST")
		respondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

func (c *ContentAPI) handleItems(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		if !requireScope(w, r, scopeContentRead) {
			return
		}
		q := r.URL.Query()
		opts := content.ListOptions{
			Type:    q.Get("type"),
			OrderBy: q.Get("orderby"),
			Order:   q.Get("order"),
		}
		if limit, err := strconv.ParseUint(q.Get("limit"), 10, 64); err == nil {
			opts.Limit = limit
		}
		items, err := c.store.List(r.Context(), opts)
		if err != nil {
			c.logger.ErrorContext(r.Context(), "Failed to list content", "error", err)
			respondWithError(w, http.StatusInternalServerError, "Failed to list content")
			return
		}
		if items == nil {
			items = []content.Item{}
		}
		respondWithJSON(w, http.StatusOK, items)
	case http.MethodPost:
		if !requireScope(w, r, scopeContentWrite) {
			return
		}
		var it content.Item
		if err := json.NewDecoder(r.Body).Decode(&it); err != nil {
			respondWithError(w, http.StatusBadRequest, "Invalid JSON request body")
			return
		}
		if _, err := c.store.Type(r.Context(), it.Type); err != nil {
			respondWithError(w, http.StatusBadRequest, "Unknown content type")
			return
		}
		id, err := c.store.Insert(r.Context(), it)
		if err != nil {
			c.logger.ErrorContext(r.Context(), "Failed to insert content", "error", err)
			respondWithError(w, http.StatusBadRequest, "Failed to save content")
			return
		}
		c.respondWithItem(w, r, http.StatusCreated, id)
	default:
		w.Header().Set("Allow", "GET, POST")
		respondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

func (c *ContentAPI) handleItem(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", "GET")
		respondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	if !requireScope(w, r, scopeContentRead) {
		return
	}
	id, err := strconv.ParseInt(strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/content/"), "/"), 10, 64)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid content ID format in URL")
		return
	}
	c.respondWithItem(w, r, http.StatusOK, id)
}

func (c *ContentAPI) respondWithItem(w http.ResponseWriter, r *http.Request, code int, id int64) {
	it, err := c.store.Get(r.Context(), id)
	if errors.Is(err, content.ErrNotFound) {
		respondWithError(w, http.StatusNotFound, "Content not found")
		return
	}
	if err != nil {
		c.logger.ErrorContext(r.Context(), "Failed to load content", "id", id, "error", err)
		respondWithError(w, http.StatusInternalServerError, "Failed to load content")
		return
	}
	respondWithJSON(w, code, struct {
		content.Item
		URL string `json:"url"`
	}{it, content.Permalink(it)})
}

func (c *ContentAPI) handleMediaCreate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST")
		respondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	if !requireScope(w, r, scopeContentWrite) {
		return
	}
	var m content.Media
	if err := json.NewDecoder(r.Body).Decode(&m); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid JSON request body")
		return
	}
	id, err := c.store.AddMedia(r.Context(), m)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Failed to save media")
		return
	}
	m.ID = id
	respondWithJSON(w, http.StatusCreated, m)
}

func (c *ContentAPI) handleMedia(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", "GET")
		respondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	if !requireScope(w, r, scopeContentRead) {
		return
	}
	id, err := strconv.ParseInt(strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/media/"), "/"), 10, 64)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid media ID format in URL")
		return
	}
	m, err := c.store.Media(r.Context(), id)
	if errors.Is(err, content.ErrNotFound) {
		respondWithError(w, http.StatusNotFound, "Media not found")
		return
	}
	if err != nil {
		c.logger.ErrorContext(r.Context(), "Failed to load media", "id", id, "error", err)
		respondWithError(w, http.StatusInternalServerError, "Failed to load media")
		return
	}
	respondWithJSON(w, http.StatusOK, m)
}
