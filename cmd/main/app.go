package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/CTAG07/Signpost/pkg/content"
	"github.com/CTAG07/Signpost/pkg/ratelimit"
	"github.com/CTAG07/Signpost/pkg/settings"
	"github.com/CTAG07/Signpost/pkg/stylegen"
)

// assetPrefix is the public path the stylesheets are served under.
const assetPrefix = "/signpost-assets"

// App holds the storage-backed services shared by the servers and the CLI.
type App struct {
	logger     *slog.Logger
	settingsDB *sql.DB
	contentDB  *sql.DB
	authDB     *sql.DB

	settings  *settings.Store
	content   *content.Store
	sanitizer *settings.Sanitizer
	styles    *stylegen.Generator
	limiter   *ratelimit.Limiter
}

// openApp opens the databases named in cfg, creates their schemas and wires
// the services.
func openApp(cfg *ServerConfig, logger *slog.Logger) (*App, error) {
	var dbs []*sql.DB
	closeAll := func() {
		for _, db := range dbs {
			_ = db.Close()
		}
	}
	for _, path := range []string{cfg.SettingsDatabasePath, cfg.ContentDatabasePath, cfg.AuthDatabasePath} {
		if err := ensureDBDir(path); err != nil {
			closeAll()
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
		db, err := openDB(path)
		if err != nil {
			closeAll()
			return nil, fmt.Errorf("failed to open database %s: %w", path, err)
		}
		dbs = append(dbs, db)
	}

	if err := setupSchemas(dbs[0], dbs[1], dbs[2]); err != nil {
		closeAll()
		return nil, err
	}
	return newApp(cfg, logger, dbs[0], dbs[1], dbs[2]), nil
}

func setupSchemas(settingsDB, contentDB, authDB *sql.DB) error {
	if err := settings.SetupSchema(settingsDB); err != nil {
		return err
	}
	if err := content.SetupSchema(contentDB); err != nil {
		return err
	}
	if err := setupAuthSchema(authDB); err != nil {
		return fmt.Errorf("failed to create auth schema: %w", err)
	}
	return nil
}

// newApp wires the services over already prepared databases.
func newApp(cfg *ServerConfig, logger *slog.Logger, settingsDB, contentDB, authDB *sql.DB) *App {
	a := &App{
		logger:     logger,
		settingsDB: settingsDB,
		contentDB:  contentDB,
		authDB:     authDB,
	}

	// Saving colors rewrites the stylesheet once the new palette is committed.
	a.settings = settings.NewStore(settingsDB, logger,
		settings.WithRegenerator(settings.RegeneratorFunc(func(ctx context.Context) error {
			return a.styles.Regenerate(ctx)
		})))
	a.styles = stylegen.NewGenerator(a.settings, cfg.AssetDir, assetPrefix, logger)
	a.content = content.NewStore(contentDB, a.settings, logger)
	a.sanitizer = settings.NewSanitizer(nil, a.content, a.content, settings.NewSlugResolver(a.content))

	sc := cfg.SearchConfig
	if sc == nil {
		sc = DefaultServerConfig().SearchConfig
	}
	a.limiter = ratelimit.New(a.settings, sc.RateLimit, time.Duration(sc.RateWindowSec)*time.Second)
	return a
}

// Close closes every database.
func (a *App) Close() error {
	return errors.Join(a.settingsDB.Close(), a.contentDB.Close(), a.authDB.Close())
}

// stylesheetURL is the versioned address of the derived stylesheet, or ""
// when it has never been generated.
func (a *App) stylesheetURL(ctx context.Context) string {
	v, err := a.styles.Version(ctx)
	if err != nil {
		a.logger.WarnContext(ctx, "Failed to read stylesheet version", "error", err)
		return ""
	}
	if v == 0 {
		return ""
	}
	u, _ := a.styles.URL(ctx)
	return u
}
