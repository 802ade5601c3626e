// Package stylegen derives the public stylesheet from the color settings.
//
// The stylesheet body is a pure function of a settings.ColorConfig. Writing
// it to disk and bumping the cache-busting version stamp is the only side
// effect, and repeating it is always safe.
package stylegen

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/CTAG07/Signpost/pkg/settings"
	"github.com/natefinch/atomic"
)

const (
	// FileName is the artifact name inside the asset directory.
	FileName = "custom-colors.css"

	// VersionOption is the option holding the current version stamp.
	VersionOption = settings.OptionPrefix + "css_version"

	// HoverSteps is the per-channel delta applied to interactive colors on hover.
	HoverSteps = -15
)

// Store is what the generator needs from the settings store.
type Store interface {
	Colors(ctx context.Context) (settings.ColorConfig, error)
	Option(ctx context.Context, name string) (string, bool, error)
	SetOption(ctx context.Context, name, value string) error
}

// Generator writes the derived stylesheet and tracks its version stamp.
type Generator struct {
	store     Store
	dir       string
	urlPrefix string
	logger    *slog.Logger
	now       func() time.Time
}

// Option configures a Generator.
type Option func(*Generator)

// WithClock replaces time.Now as the source of version stamps.
func WithClock(now func() time.Time) Option {
	return func(g *Generator) { g.now = now }
}

// NewGenerator returns a generator that writes into dir and serves the
// artifact under urlPrefix.
func NewGenerator(store Store, dir, urlPrefix string, logger *slog.Logger, opts ...Option) *Generator {
	g := &Generator{
		store:     store,
		dir:       dir,
		urlPrefix: strings.TrimSuffix(urlPrefix, "/"),
		logger:    logger,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Path is the artifact location on disk.
func (g *Generator) Path() string {
	return filepath.Join(g.dir, FileName)
}

// Regenerate renders the stylesheet from the stored colors, replaces the
// artifact atomically and advances the version stamp.
func (g *Generator) Regenerate(ctx context.Context) error {
	colors, err := g.store.Colors(ctx)
	if err != nil {
		return fmt.Errorf("failed to load colors: %w", err)
	}
	css := CSS(colors)

	if err = os.MkdirAll(g.dir, 0o755); err != nil {
		return fmt.Errorf("failed to create asset directory: %w", err)
	}
	if err = atomic.WriteFile(g.Path(), strings.NewReader(css)); err != nil {
		return fmt.Errorf("failed to write stylesheet: %w", err)
	}

	stamp, err := g.nextStamp(ctx)
	if err != nil {
		return err
	}
	if err = g.store.SetOption(ctx, VersionOption, strconv.FormatInt(stamp, 10)); err != nil {
		return fmt.Errorf("failed to store stylesheet version: %w", err)
	}
	g.logger.InfoContext(ctx, "Stylesheet regenerated", "path", g.Path(), "version", stamp, "bytes", len(css))
	return nil
}

// nextStamp is the current unix time, or one past the previous stamp when the
// clock has not moved on.
func (g *Generator) nextStamp(ctx context.Context) (int64, error) {
	stamp := g.now().Unix()
	prev, err := g.Version(ctx)
	if err != nil {
		return 0, err
	}
	if stamp <= prev {
		stamp = prev + 1
	}
	return stamp, nil
}

// Version returns the current stamp, 0 if the stylesheet was never written.
func (g *Generator) Version(ctx context.Context) (int64, error) {
	raw, ok, err := g.store.Option(ctx, VersionOption)
	if err != nil {
		return 0, fmt.Errorf("failed to read stylesheet version: %w", err)
	}
	if !ok {
		return 0, nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, nil
	}
	return v, nil
}

// URL returns the cache-busted address of the stylesheet.
func (g *Generator) URL(ctx context.Context) (string, error) {
	v, err := g.Version(ctx)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s/%s?ver=%d", g.urlPrefix, FileName, v), nil
}

// Remove deletes the artifact and its version stamp. A missing file is fine.
func (g *Generator) Remove(ctx context.Context) error {
	if err := os.Remove(g.Path()); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove stylesheet: %w", err)
	}
	_ = os.Remove(g.dir)
	if s, ok := g.store.(interface {
		DeleteOption(ctx context.Context, name string) error
	}); ok {
		return s.DeleteOption(ctx, VersionOption)
	}
	return nil
}
