package content

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Masterminds/squirrel"
)

// ErrNotFound is returned when a lookup matches nothing.
var ErrNotFound = errors.New("content not found")

// StatusPublish marks content visible on the public site.
const StatusPublish = "publish"

const contentSchema = `
CREATE TABLE IF NOT EXISTS content_types (
    name            TEXT    PRIMARY KEY,
    label           TEXT    NOT NULL,
    singular_label  TEXT    NOT NULL,
    public          INTEGER NOT NULL DEFAULT 1,
    hierarchical    INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS content (
    id            INTEGER PRIMARY KEY,
    type          TEXT    NOT NULL REFERENCES content_types (name),
    slug          TEXT    NOT NULL,
    title         TEXT    NOT NULL,
    body          TEXT    NOT NULL DEFAULT '',
    status        TEXT    NOT NULL DEFAULT 'publish',
    parent_id     INTEGER NOT NULL DEFAULT 0,
    menu_order    INTEGER NOT NULL DEFAULT 0,
    published_at  INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_content_type_status ON content (type, status);
CREATE INDEX IF NOT EXISTS idx_content_slug ON content (slug);

CREATE TABLE IF NOT EXISTS media (
    id      INTEGER PRIMARY KEY,
    url     TEXT    NOT NULL,
    alt     TEXT    NOT NULL DEFAULT '',
    width   INTEGER NOT NULL DEFAULT 0,
    height  INTEGER NOT NULL DEFAULT 0
);

INSERT OR IGNORE INTO content_types (name, label, singular_label, public, hierarchical)
VALUES ('post', 'Posts', 'Post', 1, 0), ('page', 'Pages', 'Page', 1, 1);
`

// SetupSchema creates the content tables and the built-in post and page
// types. It is idempotent.
func SetupSchema(db *sql.DB) error {
	if _, err := db.Exec(contentSchema); err != nil {
		return fmt.Errorf("failed to create content schema: %w", err)
	}
	return nil
}

// TransientCache is the expiring key/value store the type cache lives in.
type TransientCache interface {
	Transient(ctx context.Context, name string) (string, bool, error)
	SetTransient(ctx context.Context, name, value string, ttl time.Duration) error
	DeleteTransient(ctx context.Context, name string) error
}

// Store reads and writes site content.
type Store struct {
	db     *sql.DB
	cache  TransientCache
	logger *slog.Logger
	now    func() time.Time
}

// NewStore returns a content store. cache may be nil to disable type caching.
func NewStore(db *sql.DB, cache TransientCache, logger *slog.Logger) *Store {
	return &Store{db: db, cache: cache, logger: logger, now: time.Now}
}

// Item is one piece of content.
type Item struct {
	ID          int64     `json:"id"`
	Type        string    `json:"type"`
	Slug        string    `json:"slug"`
	Title       string    `json:"title"`
	Body        string    `json:"body,omitempty"`
	Status      string    `json:"status"`
	ParentID    int64     `json:"parent_id"`
	MenuOrder   int       `json:"menu_order"`
	PublishedAt time.Time `json:"published_at"`
	Children    []Item    `json:"children,omitempty"`
}

var itemColumns = []string{"id", "type", "slug", "title", "body", "status", "parent_id", "menu_order", "published_at"}

func scanItem(row interface{ Scan(...any) error }) (Item, error) {
	var it Item
	var published int64
	if err := row.Scan(&it.ID, &it.Type, &it.Slug, &it.Title, &it.Body, &it.Status, &it.ParentID, &it.MenuOrder, &published); err != nil {
		return Item{}, err
	}
	it.PublishedAt = time.Unix(published, 0).UTC()
	return it, nil
}

// Permalink is the public path of an item. Posts and pages live at the
// root; other types are prefixed with their type name.
func Permalink(it Item) string {
	switch it.Type {
	case "post", "page":
		return "/" + it.Slug + "/"
	}
	return "/" + it.Type + "/" + it.Slug + "/"
}

// Insert adds an item and returns its id. Status defaults to publish and
// PublishedAt to now.
func (s *Store) Insert(ctx context.Context, it Item) (int64, error) {
	if it.Type == "" || it.Slug == "" {
		return 0, fmt.Errorf("content needs a type and a slug")
	}
	if it.Status == "" {
		it.Status = StatusPublish
	}
	if it.PublishedAt.IsZero() {
		it.PublishedAt = s.now()
	}
	query, args, err := squirrel.
		Insert("content").
		Columns("type", "slug", "title", "body", "status", "parent_id", "menu_order", "published_at").
		Values(it.Type, it.Slug, it.Title, it.Body, it.Status, it.ParentID, it.MenuOrder, it.PublishedAt.Unix()).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("failed to build insert: %w", err)
	}
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to insert content %q: %w", it.Slug, err)
	}
	return res.LastInsertId()
}

// Get returns one item by id regardless of status.
func (s *Store) Get(ctx context.Context, id int64) (Item, error) {
	query, args, err := squirrel.
		Select(itemColumns...).
		From("content").
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return Item{}, fmt.Errorf("failed to build query: %w", err)
	}
	it, err := scanItem(s.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return Item{}, fmt.Errorf("%w: id %d", ErrNotFound, id)
	}
	if err != nil {
		return Item{}, fmt.Errorf("failed to load content %d: %w", id, err)
	}
	return it, nil
}

// Exists reports whether any content item has the given id.
func (s *Store) Exists(ctx context.Context, id int64) (bool, error) {
	return s.exists(ctx, squirrel.Select("1").From("content").Where(squirrel.Eq{"id": id}).Limit(1))
}

// PublishedPageExists reports whether a published page uses slug as its
// path segment.
func (s *Store) PublishedPageExists(ctx context.Context, slug string) (bool, error) {
	return s.exists(ctx, squirrel.
		Select("1").
		From("content").
		Where(squirrel.Eq{"slug": slug, "type": "page", "status": StatusPublish}).
		Limit(1))
}

// BySlug returns the published item of type typeName with the given slug.
func (s *Store) BySlug(ctx context.Context, typeName, slug string) (Item, error) {
	query, args, err := squirrel.
		Select(itemColumns...).
		From("content").
		Where(squirrel.Eq{"type": typeName, "slug": slug, "status": StatusPublish}).
		OrderBy("id").
		Limit(1).
		ToSql()
	if err != nil {
		return Item{}, fmt.Errorf("failed to build query: %w", err)
	}
	it, err := scanItem(s.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return Item{}, fmt.Errorf("%w: %s/%s", ErrNotFound, typeName, slug)
	}
	if err != nil {
		return Item{}, fmt.Errorf("failed to load content %s/%s: %w", typeName, slug, err)
	}
	return it, nil
}

func (s *Store) exists(ctx context.Context, b squirrel.SelectBuilder) (bool, error) {
	query, args, err := b.ToSql()
	if err != nil {
		return false, fmt.Errorf("failed to build query: %w", err)
	}
	var one int
	err = s.db.QueryRowContext(ctx, query, args...).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to query content: %w", err)
	}
	return true, nil
}
