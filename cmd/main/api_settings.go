package main

import (
	"errors"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strings"

	"github.com/CTAG07/Signpost/pkg/settings"
)

const (
	// tokenHeader may carry the anti-forgery token instead of the body.
	tokenHeader = "X-Signpost-Token"
	tokenField  = "csrf_token"

	maxSettingsBody = 64 << 10
)

// SettingsAPI exposes the settings groups to the admin api.
type SettingsAPI struct {
	app    *App
	nonces *Nonces
	logger *slog.Logger
}

// NewSettingsAPI creates a new instance of the SettingsAPI.
func NewSettingsAPI(app *App, nonces *Nonces, logger *slog.Logger) *SettingsAPI {
	return &SettingsAPI{app: app, nonces: nonces, logger: logger}
}

// RegisterRoutes sets up the routing for all /api/settings endpoints.
func (a *SettingsAPI) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/settings/schema", a.handleSchema)
	mux.HandleFunc("/api/settings/", a.handleGroup)
}

// FieldInfo describes one field of a group for api clients.
type FieldInfo struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Default  any    `json:"default"`
	Min      int    `json:"min,omitempty"`
	Max      int    `json:"max,omitempty"`
	MaxItems int    `json:"max_items,omitempty"`
	Required bool   `json:"required,omitempty"`
}

// GroupInfo describes the fields of one group.
type GroupInfo struct {
	Group  settings.Group `json:"group"`
	Fields []FieldInfo    `json:"fields"`
}

// describeSchema flattens the registry for the api and the cli.
func describeSchema(r *settings.Registry) []GroupInfo {
	var groups []GroupInfo
	for _, g := range r.Groups() {
		schema, _ := r.Schema(g)
		info := GroupInfo{Group: g, Fields: make([]FieldInfo, 0, len(schema.Fields))}
		for _, f := range schema.Fields {
			info.Fields = append(info.Fields, FieldInfo{
				Name:     f.Name,
				Type:     string(f.Type),
				Default:  f.Default,
				Min:      f.Min,
				Max:      f.Max,
				MaxItems: f.MaxItems,
				Required: f.Required,
			})
		}
		groups = append(groups, info)
	}
	return groups
}

// GroupResponse is returned when reading a group.
type GroupResponse struct {
	Group  settings.Group  `json:"group"`
	Config settings.Config `json:"config"`
	Token  string          `json:"csrf_token"`
}

// SaveResponse is returned after a group was saved or reset.
type SaveResponse struct {
	settings.Result
	Messages []string `json:"messages"`
	Token    string   `json:"csrf_token"`
}

func (a *SettingsAPI) handleSchema(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", "GET")
		respondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	if !requireScope(w, r, scopeSettingsRead) {
		return
	}
	respondWithJSON(w, http.StatusOK, describeSchema(a.app.sanitizer.Registry()))
}

// handleGroup serves /api/settings/{group} and /api/settings/{group}/reset.
func (a *SettingsAPI) handleGroup(w http.ResponseWriter, r *http.Request) {
	rest := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/settings/"), "/")
	name, action, _ := strings.Cut(rest, "/")

	group, err := settings.ParseGroup(name)
	if err != nil {
		respondWithError(w, http.StatusNotFound, "Unknown settings group")
		return
	}

	switch action {
	case "":
		switch r.Method {
		case http.MethodGet:
			a.getGroup(w, r, group)
		case http.MethodPut, http.MethodPost:
			a.saveGroup(w, r, group)
		default:
			w.Header().Set("Allow", "GET, PUT, POST")
			respondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	case "reset":
		if r.Method != http.MethodPost {
			w.Header().Set("Allow", "POST")
			respondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
			return
		}
		a.resetGroup(w, r, group)
	default:
		respondWithError(w, http.StatusNotFound, "Not Found")
	}
}

func (a *SettingsAPI) getGroup(w http.ResponseWriter, r *http.Request, group settings.Group) {
	if !requireScope(w, r, scopeSettingsRead) {
		return
	}
	cfg, err := a.app.settings.Get(r.Context(), group)
	if err != nil {
		a.logger.ErrorContext(r.Context(), "Failed to load settings", "group", group, "error", err)
		respondWithError(w, http.StatusInternalServerError, "Failed to load settings")
		return
	}
	respondWithJSON(w, http.StatusOK, GroupResponse{
		Group:  group,
		Config: cfg,
		Token:  a.nonces.Create(settingsAction(group)),
	})
}

// saveGroup sanitizes and stores a submission. Authorization failures
// answer with the same generic denial and write nothing.
func (a *SettingsAPI) saveGroup(w http.ResponseWriter, r *http.Request, group settings.Group) {
	ctx := r.Context()
	if !requireScope(w, r, scopeSettingsWrite) {
		return
	}

	in, err := readSettingsInput(w, r)
	if err != nil {
		if errors.Is(err, settings.ErrInvalidInput) {
			respondWithError(w, http.StatusBadRequest, err.Error())
			return
		}
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	token := r.Header.Get(tokenHeader)
	if token == "" {
		token = in.String(tokenField)
	}
	if !a.nonces.Verify(settingsAction(group), token) {
		respondWithError(w, http.StatusForbidden, http.StatusText(http.StatusForbidden))
		return
	}

	res, err := a.app.sanitizer.Sanitize(ctx, group, in.Without(tokenField))
	if err != nil {
		a.logger.ErrorContext(ctx, "Failed to sanitize settings", "group", group, "error", err)
		respondWithError(w, http.StatusInternalServerError, "Failed to validate settings")
		return
	}
	if err = a.app.settings.Set(ctx, res.Config); err != nil {
		a.logger.ErrorContext(ctx, "Failed to save settings", "group", group, "error", err)
		respondWithError(w, http.StatusInternalServerError, "Failed to save settings")
		return
	}

	messages := make([]string, 0, len(res.Warnings)+1)
	for _, warn := range res.Warnings {
		messages = append(messages, warn.Message())
	}
	messages = append(messages, "Settings saved successfully.")

	a.logger.InfoContext(ctx, "Settings saved via API", "group", group, "warnings", len(res.Warnings))
	respondWithJSON(w, http.StatusOK, SaveResponse{
		Result:   res,
		Messages: messages,
		Token:    a.nonces.Create(settingsAction(group)),
	})
}

func (a *SettingsAPI) resetGroup(w http.ResponseWriter, r *http.Request, group settings.Group) {
	ctx := r.Context()
	if !requireScope(w, r, scopeSettingsWrite) {
		return
	}
	token := r.Header.Get(tokenHeader)
	if token == "" {
		token = r.URL.Query().Get(tokenField)
	}
	if !a.nonces.Verify(settingsAction(group), token) {
		respondWithError(w, http.StatusForbidden, http.StatusText(http.StatusForbidden))
		return
	}

	if err := a.app.settings.Reset(ctx, group); err != nil {
		a.logger.ErrorContext(ctx, "Failed to reset settings", "group", group, "error", err)
		respondWithError(w, http.StatusInternalServerError, "Failed to reset settings")
		return
	}
	respondWithJSON(w, http.StatusOK, SaveResponse{
		Result:   settings.Result{Group: group, Config: settings.Defaults(group), Warnings: []settings.FieldWarning{}},
		Messages: []string{"Settings reset to defaults."},
		Token:    a.nonces.Create(settingsAction(group)),
	})
}

// readSettingsInput parses a JSON or form encoded body into settings input.
func readSettingsInput(w http.ResponseWriter, r *http.Request) (settings.Input, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxSettingsBody)

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch mediaType {
	case "application/x-www-form-urlencoded", "multipart/form-data":
		if err := r.ParseMultipartForm(maxSettingsBody); err != nil && !errors.Is(err, http.ErrNotMultipart) {
			return settings.Input{}, err
		}
		return settings.ParseForm(r.PostForm)
	default:
		body, err := io.ReadAll(r.Body)
		if err != nil {
			return settings.Input{}, err
		}
		return settings.ParseJSON(body)
	}
}
