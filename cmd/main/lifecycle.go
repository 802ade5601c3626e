package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/CTAG07/Signpost/pkg/settings"
)

// InstallReport describes what install changed.
type InstallReport struct {
	Seeded     []settings.Group `json:"seeded"`
	Stylesheet string           `json:"stylesheet"`
}

// install stores the defaults of every group that has none yet and writes
// the derived stylesheet. Running it again keeps existing settings.
func (a *App) install(ctx context.Context) (InstallReport, error) {
	seeded, err := a.settings.Seed(ctx)
	if err != nil {
		return InstallReport{Seeded: seeded}, fmt.Errorf("failed to seed settings: %w", err)
	}
	if err = a.styles.Regenerate(ctx); err != nil {
		// The page still renders with the base stylesheet.
		a.logger.ErrorContext(ctx, "Failed to generate stylesheet during install", "error", err)
		return InstallReport{Seeded: seeded}, nil
	}
	a.logger.InfoContext(ctx, "Install complete", "seeded", seeded)
	return InstallReport{Seeded: seeded, Stylesheet: a.styles.Path()}, nil
}

// uninstall removes every trace the service left: the stylesheet, the stored
// options, transients and counters, and the api keys.
func (a *App) uninstall(ctx context.Context) error {
	err := errors.Join(
		a.styles.Remove(ctx),
		a.settings.Purge(ctx),
		purgeAPIKeys(ctx, a.authDB),
	)
	if err != nil {
		return err
	}
	a.logger.InfoContext(ctx, "Uninstall complete")
	return nil
}
