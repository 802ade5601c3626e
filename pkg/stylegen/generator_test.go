package stylegen

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/CTAG07/Signpost/pkg/settings"
	_ "modernc.org/sqlite"
)

func setupTestGenerator(t *testing.T, now func() time.Time) (*settings.Store, *Generator) {
	t.Helper()
	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "settings.db"))
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })
	if err = settings.SetupSchema(db); err != nil {
		t.Fatalf("failed to set up schema: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	var gen *Generator
	store := settings.NewStore(db, logger, settings.WithRegenerator(settings.RegeneratorFunc(func(ctx context.Context) error {
		return gen.Regenerate(ctx)
	})))
	gen = NewGenerator(store, filepath.Join(t.TempDir(), "assets"), "/signpost-assets/", logger, WithClock(now))
	return store, gen
}

func TestAdjustBrightness(t *testing.T) {
	tests := []struct {
		hex   string
		steps int
		want  string
	}{
		{"#0073aa", -15, "#00649b"},
		{"#0073AA", -15, "#00649b"},
		{"#0073aa80", -15, "#00649b80"},
		{"#0073AAC0", -15, "#00649bc0"},
		{"#000000", -15, "#000000"},
		{"#fafafa", 20, "#ffffff"},
		{"#101010", 0, "#101010"},
		{"garbage", -15, "garbage"},
	}
	for _, tt := range tests {
		if got := AdjustBrightness(tt.hex, tt.steps); got != tt.want {
			t.Errorf("AdjustBrightness(%q, %d) = %q, want %q", tt.hex, tt.steps, got, tt.want)
		}
	}
}

func TestCSSIsPure(t *testing.T) {
	colors := settings.DefaultColors()
	first := CSS(colors)
	second := CSS(colors)
	if first != second {
		t.Fatal("CSS() produced different output for identical input")
	}

	for _, want := range []string{
		".signpost-404-page h1,\n.signpost-404-page h2,\n.signpost-404-page h3 {\n\tcolor: #333333;\n}",
		".signpost-404-page p {\n\tcolor: #666666;\n}",
		".signpost-404-search input[type=\"text\"] {\n\tcolor: #333333;\n\tbackground-color: #ffffff;\n\tborder-color: #dddddd;\n}",
		".signpost-404-button {\n\tbackground-color: #0073aa;\n\tcolor: #ffffff;\n}",
		".signpost-sitemap h1,\n.signpost-sitemap h2 {\n\tcolor: #333333;\n}",
		".signpost-404-button:hover {\n\tbackground-color: #00649b;\n}",
		".signpost-404-page a:hover,\n.signpost-sitemap a:hover {\n\tcolor: #00649b;\n}",
	} {
		if !strings.Contains(first, want) {
			t.Errorf("CSS() missing block:\n%s\n--- got ---\n%s", want, first)
		}
	}
}

func TestCSSSkipsEmptyRoles(t *testing.T) {
	css := CSS(settings.ColorConfig{ButtonText: "#ffffff"})
	if strings.Contains(css, "input[type=\"text\"]") {
		t.Error("search block emitted with no search colors")
	}
	if strings.Contains(css, ":hover") {
		t.Error("hover block emitted with no button or link color")
	}
	if !strings.Contains(css, ".signpost-404-button {\n\tcolor: #ffffff;\n}") {
		t.Errorf("expected text-only button block, got:\n%s", css)
	}
	if strings.Contains(css, " h1") || strings.Contains(css, " p {") {
		t.Error("heading or paragraph block emitted for empty roles")
	}
}

func TestRegenerateWritesArtifactAndBumpsVersion(t *testing.T) {
	frozen := time.Unix(1700000000, 0)
	store, gen := setupTestGenerator(t, func() time.Time { return frozen })
	ctx := context.Background()

	if err := gen.Regenerate(ctx); err != nil {
		t.Fatalf("Regenerate() error = %v", err)
	}
	body, err := os.ReadFile(gen.Path())
	if err != nil {
		t.Fatalf("failed to read artifact: %v", err)
	}
	if string(body) != CSS(settings.DefaultColors()) {
		t.Error("artifact does not match CSS(defaults)")
	}
	v1, _ := gen.Version(ctx)
	if v1 != frozen.Unix() {
		t.Errorf("first version = %d, want %d", v1, frozen.Unix())
	}

	if err = gen.Regenerate(ctx); err != nil {
		t.Fatalf("second Regenerate() error = %v", err)
	}
	again, _ := os.ReadFile(gen.Path())
	if string(again) != string(body) {
		t.Error("unchanged colors produced a different stylesheet")
	}
	v2, _ := gen.Version(ctx)
	if v2 <= v1 {
		t.Errorf("version did not advance: %d then %d", v1, v2)
	}

	url, err := gen.URL(ctx)
	if err != nil {
		t.Fatalf("URL() error = %v", err)
	}
	if want := "/signpost-assets/custom-colors.css?ver=1700000001"; url != want {
		t.Errorf("URL() = %q, want %q", url, want)
	}

	colors := settings.DefaultColors()
	colors.Links = "#ff0000"
	if err = store.Set(ctx, colors); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	updated, _ := os.ReadFile(gen.Path())
	if !strings.Contains(string(updated), "color: #f00000;") {
		t.Errorf("saving colors did not regenerate the artifact:\n%s", updated)
	}
}

func TestRegenerateFailureDoesNotFailSave(t *testing.T) {
	store, gen := setupTestGenerator(t, time.Now)
	ctx := context.Background()

	// A regular file where the asset directory should be makes the write fail.
	if err := os.WriteFile(gen.dir, []byte("x"), 0o644); err != nil {
		t.Fatalf("setup failed: %v", err)
	}
	if err := gen.Regenerate(ctx); err == nil {
		t.Fatal("expected Regenerate() to fail")
	}
	if err := store.Set(ctx, settings.DefaultColors()); err != nil {
		t.Errorf("Set() must succeed when regeneration fails, got %v", err)
	}
	if v, _ := gen.Version(ctx); v != 0 {
		t.Errorf("version advanced despite failed write: %d", v)
	}
}

func TestRemove(t *testing.T) {
	_, gen := setupTestGenerator(t, time.Now)
	ctx := context.Background()

	if err := gen.Regenerate(ctx); err != nil {
		t.Fatalf("Regenerate() error = %v", err)
	}
	if err := gen.Remove(ctx); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}
	if _, err := os.Stat(gen.Path()); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("artifact still present: %v", err)
	}
	if v, _ := gen.Version(ctx); v != 0 {
		t.Errorf("version = %d after Remove, want 0", v)
	}
	if err := gen.Remove(ctx); err != nil {
		t.Errorf("second Remove() error = %v", err)
	}
}
