package settings

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// OptionPrefix namespaces every option row this service writes.
const OptionPrefix = "signpost_"

const storeSchema = `
CREATE TABLE IF NOT EXISTS options (
    name        TEXT    PRIMARY KEY,
    value       TEXT    NOT NULL,
    updated_at  INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS transients (
    name        TEXT    PRIMARY KEY,
    value       TEXT    NOT NULL,
    expires_at  INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_transients_expires_at ON transients (expires_at);
`

// SetupSchema creates the options and transients tables. It is idempotent.
func SetupSchema(db *sql.DB) error {
	if _, err := db.Exec(storeSchema); err != nil {
		return fmt.Errorf("failed to create settings schema: %w", err)
	}
	return nil
}

// Regenerator is invoked after the colors group has been committed.
type Regenerator interface {
	Regenerate(ctx context.Context) error
}

// RegeneratorFunc adapts a function to Regenerator.
type RegeneratorFunc func(ctx context.Context) error

func (f RegeneratorFunc) Regenerate(ctx context.Context) error { return f(ctx) }

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithRegenerator sets the post-commit hook run whenever colors are saved or
// reset.
func WithRegenerator(r Regenerator) StoreOption {
	return func(s *Store) { s.regen = r }
}

// WithClock replaces time.Now, which drives transient expiry.
func WithClock(now func() time.Time) StoreOption {
	return func(s *Store) { s.now = now }
}

// Store persists validated group configs as JSON options, plus expiring
// transients and counters. Writes are last-write-wins; the store adds no
// locking of its own.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
	regen  Regenerator
	now    func() time.Time
}

// NewStore returns a store over db. SetupSchema must have been run.
func NewStore(db *sql.DB, logger *slog.Logger, opts ...StoreOption) *Store {
	s := &Store{db: db, logger: logger, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func optionName(group Group) string {
	return OptionPrefix + string(group)
}

// Get returns the stored config of a group, or its defaults when nothing is
// stored. Keys missing from the stored document keep their default values.
func (s *Store) Get(ctx context.Context, group Group) (Config, error) {
	cfg := Defaults(group)
	if cfg == nil {
		return nil, fmt.Errorf("%w: %q", ErrUnknownGroup, group)
	}
	raw, ok, err := s.Option(ctx, optionName(group))
	if err != nil {
		return nil, err
	}
	if !ok {
		return cfg, nil
	}
	switch c := cfg.(type) {
	case ColorConfig:
		err = json.Unmarshal([]byte(raw), &c)
		cfg = c
	case NotFoundConfig:
		err = json.Unmarshal([]byte(raw), &c)
		if c.ButtonLinks == nil {
			c.ButtonLinks = []ButtonLink{}
		}
		cfg = c
	case SitemapConfig:
		err = json.Unmarshal([]byte(raw), &c)
		cfg = c
	}
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s settings: %w", group, err)
	}
	return cfg, nil
}

// Colors returns the stored palette.
func (s *Store) Colors(ctx context.Context) (ColorConfig, error) {
	cfg, err := s.Get(ctx, GroupColors)
	if err != nil {
		return ColorConfig{}, err
	}
	return cfg.(ColorConfig), nil
}

// NotFound returns the stored not-found page settings.
func (s *Store) NotFound(ctx context.Context) (NotFoundConfig, error) {
	cfg, err := s.Get(ctx, GroupNotFound)
	if err != nil {
		return NotFoundConfig{}, err
	}
	return cfg.(NotFoundConfig), nil
}

// Sitemap returns the stored sitemap page settings.
func (s *Store) Sitemap(ctx context.Context) (SitemapConfig, error) {
	cfg, err := s.Get(ctx, GroupSitemap)
	if err != nil {
		return SitemapConfig{}, err
	}
	return cfg.(SitemapConfig), nil
}

// Set replaces the stored value of cfg's group. Saving colors runs the
// regenerator after the write; its failure is logged and not returned.
func (s *Store) Set(ctx context.Context, cfg Config) error {
	if cfg == nil {
		return errors.New("nil settings config")
	}
	group := cfg.Group()
	raw, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to encode %s settings: %w", group, err)
	}
	if err = s.SetOption(ctx, optionName(group), string(raw)); err != nil {
		return err
	}
	s.logger.DebugContext(ctx, "Settings saved", "group", group)

	if group == GroupColors && s.regen != nil {
		if err = s.regen.Regenerate(ctx); err != nil {
			s.logger.ErrorContext(ctx, "Failed to regenerate stylesheet", "error", err)
		}
	}
	return nil
}

// Reset restores the hard-coded defaults of a group.
func (s *Store) Reset(ctx context.Context, group Group) error {
	cfg := Defaults(group)
	if cfg == nil {
		return fmt.Errorf("%w: %q", ErrUnknownGroup, group)
	}
	if err := s.Set(ctx, cfg); err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "Settings reset to defaults", "group", group)
	return nil
}

// Delete removes the stored value of a group. Get then yields defaults.
func (s *Store) Delete(ctx context.Context, group Group) error {
	if Defaults(group) == nil {
		return fmt.Errorf("%w: %q", ErrUnknownGroup, group)
	}
	return s.DeleteOption(ctx, optionName(group))
}

// Seed stores defaults for every group that has no stored value and returns
// the groups it wrote.
func (s *Store) Seed(ctx context.Context) ([]Group, error) {
	var seeded []Group
	for _, group := range []Group{GroupColors, GroupNotFound, GroupSitemap} {
		raw, err := json.Marshal(Defaults(group))
		if err != nil {
			return seeded, fmt.Errorf("failed to encode %s defaults: %w", group, err)
		}
		res, err := s.db.ExecContext(ctx,
			"INSERT INTO options (name, value, updated_at) VALUES (?, ?, ?) ON CONFLICT(name) DO NOTHING",
			optionName(group), string(raw), s.now().Unix())
		if err != nil {
			return seeded, fmt.Errorf("failed to seed %s settings: %w", group, err)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			seeded = append(seeded, group)
		}
	}
	return seeded, nil
}

// Purge deletes every option and transient.
func (s *Store) Purge(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func(tx *sql.Tx) {
		_ = tx.Rollback()
	}(tx)

	if _, err = tx.ExecContext(ctx, "DELETE FROM options WHERE name LIKE ?", OptionPrefix+"%"); err != nil {
		return fmt.Errorf("failed to purge options: %w", err)
	}
	if _, err = tx.ExecContext(ctx, "DELETE FROM transients"); err != nil {
		return fmt.Errorf("failed to purge transients: %w", err)
	}
	return tx.Commit()
}

// Option reads a raw option. The bool is false when it is not set.
func (s *Store) Option(ctx context.Context, name string) (string, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx, "SELECT value FROM options WHERE name = ?", name).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read option %s: %w", name, err)
	}
	return value, true, nil
}

// SetOption writes a raw option.
func (s *Store) SetOption(ctx context.Context, name, value string) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO options (name, value, updated_at) VALUES (?, ?, ?)
ON CONFLICT(name) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		name, value, s.now().Unix())
	if err != nil {
		return fmt.Errorf("failed to write option %s: %w", name, err)
	}
	return nil
}

// DeleteOption removes a raw option. Deleting a missing option is not an error.
func (s *Store) DeleteOption(ctx context.Context, name string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM options WHERE name = ?", name); err != nil {
		return fmt.Errorf("failed to delete option %s: %w", name, err)
	}
	return nil
}
