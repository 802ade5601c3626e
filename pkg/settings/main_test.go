package settings

import (
	"context"
	"database/sql"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	_ "modernc.org/sqlite"
)

// fakeContent is an in-memory ContentLookup, PageLookup and MediaLookup.
type fakeContent struct {
	ids   map[int64]bool
	pages map[string]bool
	media map[int64]bool
	types []string
}

func newFakeContent() *fakeContent {
	return &fakeContent{
		ids:   map[int64]bool{},
		pages: map[string]bool{},
		media: map[int64]bool{},
		types: []string{"post", "page"},
	}
}

func (f *fakeContent) Exists(_ context.Context, id int64) (bool, error) { return f.ids[id], nil }

func (f *fakeContent) PublicTypeNames(context.Context) ([]string, error) { return f.types, nil }

func (f *fakeContent) PublishedPageExists(_ context.Context, slug string) (bool, error) {
	return f.pages[slug], nil
}

func (f *fakeContent) MediaExists(_ context.Context, id int64) (bool, error) { return f.media[id], nil }

func newTestSanitizer(fc *fakeContent) *Sanitizer {
	return NewSanitizer(NewRegistry(), fc, fc, NewSlugResolver(fc))
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// setupTestStore opens a file backed SQLite database in a temp dir.
func setupTestStore(t *testing.T, opts ...StoreOption) (*sql.DB, *Store) {
	t.Helper()
	dbFile := filepath.Join(t.TempDir(), "settings.db")
	db, err := sql.Open("sqlite", dbFile)
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	if err := SetupSchema(db); err != nil {
		t.Fatalf("failed to set up schema: %v", err)
	}
	return db, NewStore(db, discardLogger(), opts...)
}

// fakeClock is a settable time source.
type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func mustJSON(t *testing.T, body string) Input {
	t.Helper()
	in, err := ParseJSON([]byte(body))
	if err != nil {
		t.Fatalf("ParseJSON(%s) failed: %v", body, err)
	}
	return in
}

func hasWarning(ws []FieldWarning, code string) bool {
	for _, w := range ws {
		if w.String() == code {
			return true
		}
	}
	return false
}
