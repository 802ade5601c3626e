package main

import (
	"encoding/json"
	"io"
	"mime"
	"net/http"
	"strconv"

	"github.com/CTAG07/Signpost/pkg/content"
	"github.com/CTAG07/Signpost/pkg/settings"
)

// maxSearchBody bounds the search request body.
const maxSearchBody = 4 << 10

// SearchRequest is the body of a public search.
type SearchRequest struct {
	SearchTerm string `json:"search_term"`
	CSRFToken  string `json:"csrf_token"`
}

// SearchResponse is the success payload of a public search.
type SearchResponse struct {
	Results []content.SearchResult `json:"results"`
	Count   int                    `json:"count"`
}

// defaultSearchTypes is used when no content type is selected for search.
var defaultSearchTypes = []string{"post", "page"}

// handleSearch runs the not-found page search. Checks run in order: token,
// rate limit, term. A refused request never reaches the content store.
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST")
		respondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	ctx := r.Context()

	req, err := decodeSearchRequest(w, r)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if !s.nonces.Verify(actionSearch, req.CSRFToken) {
		respondWithError(w, http.StatusForbidden, http.StatusText(http.StatusForbidden))
		return
	}

	allowed, err := s.app.limiter.Allow(ctx, s.getClientIP(r))
	if err != nil {
		s.logger.ErrorContext(ctx, "Rate limit check failed", "error", err)
		respondWithError(w, http.StatusInternalServerError, "Search failed")
		return
	}
	if !allowed {
		w.Header().Set("Retry-After", strconv.Itoa(int(s.app.limiter.Window().Seconds())))
		respondWithError(w, http.StatusTooManyRequests, "Too many requests. Please try again shortly.")
		return
	}

	term := settings.SanitizeText(req.SearchTerm)
	if term == "" {
		respondWithError(w, http.StatusBadRequest, "Search term is required.")
		return
	}

	cfg, err := s.app.settings.NotFound(ctx)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to load not-found settings", "error", err)
		respondWithError(w, http.StatusInternalServerError, "Search failed")
		return
	}
	types := cfg.SearchPostTypes
	if len(types) == 0 {
		types = defaultSearchTypes
	}

	var limit uint64
	if sc := s.cm.Get().Server.SearchConfig; sc != nil && sc.MaxResults > 0 {
		limit = uint64(sc.MaxResults)
	}
	results, err := s.app.content.Search(ctx, term, types, limit)
	if err != nil {
		s.logger.ErrorContext(ctx, "Search query failed", "error", err)
		respondWithError(w, http.StatusInternalServerError, "Search failed")
		return
	}
	s.logger.DebugContext(ctx, "Search served", "results", len(results), "request_id", requestID(ctx))
	respondWithJSON(w, http.StatusOK, SearchResponse{Results: results, Count: len(results)})
}

// decodeSearchRequest reads a JSON or form encoded search. Form posts may use
// the short field names "search" and "nonce".
func decodeSearchRequest(w http.ResponseWriter, r *http.Request) (SearchRequest, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxSearchBody)
	var req SearchRequest

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "application/json" {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			return req, err
		}
		err = json.Unmarshal(body, &req)
		return req, err
	}

	if err := r.ParseForm(); err != nil {
		return req, err
	}
	req.SearchTerm = r.PostForm.Get("search_term")
	if req.SearchTerm == "" {
		req.SearchTerm = r.PostForm.Get("search")
	}
	req.CSRFToken = r.PostForm.Get("csrf_token")
	if req.CSRFToken == "" {
		req.CSRFToken = r.PostForm.Get("nonce")
	}
	return req, nil
}
