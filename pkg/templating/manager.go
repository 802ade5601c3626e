package templating

import (
	"embed"
	"errors"
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

//go:embed defaults/*.html
var defaultTheme embed.FS

// TemplateManager loads the theme and renders pages from it.
// All methods are concurrent-safe.
type TemplateManager struct {
	logger         *slog.Logger
	config         *TemplateConfig
	templates      *template.Template
	cleanTemplates *template.Template
	templateNames  []string
	funcMap        template.FuncMap
	templateDir    string
	mu             sync.RWMutex

	// cfgMu guards config separately, since template funcs read it while
	// mu is held for execution.
	cfgMu sync.RWMutex
}

// NewTemplateManager creates a manager over the built-in theme, overridden by
// any files in templateDir. An empty or missing templateDir uses the built-in
// theme alone. It performs an initial Refresh.
func NewTemplateManager(logger *slog.Logger, config *TemplateConfig, templateDir string) (*TemplateManager, error) {
	if config == nil {
		cfg := DefaultConfig()
		config = &cfg
	}
	tm := &TemplateManager{
		logger:      logger,
		templateDir: templateDir,
		config:      config,
	}
	tm.funcMap = tm.makeFuncMap()

	if err := tm.Refresh(); err != nil {
		return nil, err
	}

	logger.Info("Template manager initialized", "template_dir", templateDir)
	return tm, nil
}

// SetConfig replaces the site-wide values without reloading templates.
func (tm *TemplateManager) SetConfig(config *TemplateConfig) {
	tm.cfgMu.Lock()
	defer tm.cfgMu.Unlock()
	tm.config = config
}

// GetConfig returns a copy of the current configuration.
func (tm *TemplateManager) GetConfig() TemplateConfig {
	tm.cfgMu.RLock()
	defer tm.cfgMu.RUnlock()
	return *tm.config
}

// Refresh rebuilds the template set: the built-in theme first, then pages
// and partials from the theme directory, which replace built-in files of
// the same name.
func (tm *TemplateManager) Refresh() error {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	parsed, err := template.New("").Funcs(tm.funcMap).ParseFS(defaultTheme, "defaults/*.tmpl.html", "defaults/*.part.html")
	if err != nil {
		tm.logger.Error("failed to parse built-in theme", "error", err)
		return err
	}

	overrides := 0
	if tm.templateDir != "" {
		for _, pattern := range []string{"*.tmpl.html", "*.part.html"} {
			var n int
			if parsed, n, err = parseGlob(parsed, filepath.Join(tm.templateDir, pattern)); err != nil {
				tm.logger.Error("failed to parse theme files", "pattern", pattern, "error", err)
				return err
			}
			overrides += n
		}
	}

	var names []string
	for _, t := range parsed.Templates() {
		if strings.HasSuffix(t.Name(), ".tmpl.html") {
			names = append(names, t.Name())
		}
	}
	sort.Strings(names)

	clean, err := parsed.Clone()
	if err != nil {
		tm.logger.Error("failed to create a clean clone of templates", "error", err)
		return err
	}

	tm.templates = parsed
	tm.cleanTemplates = clean
	tm.templateNames = names
	tm.logger.Info("Loaded templates", "pages", len(names), "overrides", overrides)
	return nil
}

// parseGlob is ParseGlob that treats a missing directory or no matches as
// nothing to do.
func parseGlob(t *template.Template, pattern string) (*template.Template, int, error) {
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return t, 0, err
	}
	if len(matches) == 0 {
		return t, 0, nil
	}
	parsed, err := t.ParseFiles(matches...)
	if err != nil {
		return t, 0, err
	}
	return parsed, len(matches), nil
}

// Execute renders a template by name into w.
func (tm *TemplateManager) Execute(w io.Writer, name string, data any) error {
	if name == "" {
		return errors.New("no template name given")
	}
	tm.mu.RLock()
	defer tm.mu.RUnlock()
	return tm.templates.ExecuteTemplate(w, name, data)
}

// Has reports whether a template with the given name is loaded.
func (tm *TemplateManager) Has(name string) bool {
	tm.mu.RLock()
	defer tm.mu.RUnlock()
	return tm.templates.Lookup(name) != nil
}

// GetTemplateNames returns the names of all loaded page and partial files.
func (tm *TemplateManager) GetTemplateNames() []string {
	tm.mu.RLock()
	defer tm.mu.RUnlock()
	var names []string
	for _, t := range tm.templates.Templates() {
		// The root template has no name, and define blocks are not files.
		if strings.HasSuffix(t.Name(), ".html") {
			names = append(names, t.Name())
		}
	}
	sort.Strings(names)
	return names
}

// GetPageNames returns the names of the full page templates.
func (tm *TemplateManager) GetPageNames() []string {
	tm.mu.RLock()
	defer tm.mu.RUnlock()
	return append([]string(nil), tm.templateNames...)
}

// GetTemplateDir returns the theme directory.
func (tm *TemplateManager) GetTemplateDir() string {
	tm.mu.RLock()
	defer tm.mu.RUnlock()
	return tm.templateDir
}

// DefaultSource returns the text of a built-in theme file, for use as a
// starting point for overrides.
func DefaultSource(name string) ([]byte, error) {
	if name != filepath.Base(name) {
		return nil, fmt.Errorf("invalid template name %q", name)
	}
	data, err := defaultTheme.ReadFile("defaults/" + name)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("no built-in template %q: %w", name, os.ErrNotExist)
	}
	return data, err
}

// ExecuteTemplateString parses and executes a raw template string against
// the loaded set. It is meant for previews; nothing is stored.
func (tm *TemplateManager) ExecuteTemplateString(w io.Writer, content string, data any) error {
	tm.mu.RLock()
	defer tm.mu.RUnlock()

	tempSet, err := tm.cleanTemplates.Clone()
	if err != nil {
		return fmt.Errorf("failed to clone clean templates for string execution: %w", err)
	}

	t, err := tempSet.New("preview").Parse(content)
	if err != nil {
		return fmt.Errorf("failed to parse string template: %w", err)
	}
	return t.Execute(w, data)
}
