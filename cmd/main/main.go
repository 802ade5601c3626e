package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
)

var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

const (
	defaultConfigPath = "./config.json"

	// purgeInterval is how often expired transients and counters are dropped.
	purgeInterval = time.Hour
)

func currentVersion() VersionInfo {
	return VersionInfo{Version: Version, Commit: Commit, BuildDate: BuildDate}
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "signpost",
		Short:         "Serves a configurable not-found page, a sitemap and their admin API",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(configPath)
		},
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", defaultConfigPath, "Path to the JSON configuration file")

	root.AddCommand(
		newServeCommand(&configPath),
		newInstallCommand(&configPath),
		newUninstallCommand(&configPath),
		newResetCommand(&configPath),
		newSchemaCommand(),
		newKeysCommand(&configPath),
		newVersionCommand(),
	)
	return root
}

func newServeCommand(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the public site and the admin API until stopped",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(*configPath)
		},
	}
}

// serve runs server cycles until a shutdown is requested. A restart from the
// API reloads the configuration and reopens the databases.
func serve(configPath string) error {
	baseLogger := newLogger(os.Stdout, "info", "auto")

	actionChan := make(chan string, 1)

	go func() {
		osSignalChan := make(chan os.Signal, 1)
		signal.Notify(osSignalChan, syscall.SIGINT, syscall.SIGTERM)
		<-osSignalChan
		baseLogger.Info("OS signal received, initiating shutdown.")
		actionChan <- actionShutdown
	}()

	for {
		action, err := run(configPath, actionChan)
		if err != nil {
			baseLogger.Error("An error occurred during server run, shutting down.", "error", err)
			return err
		}
		if action != actionRestart {
			break
		}
		baseLogger.Info("--- Server Restarting ---")
	}

	baseLogger.Info("Signpost has shut down.")
	return nil
}

// run hosts both servers and returns whenever the server is shut down or restarted.
func run(configPath string, actionChan chan string) (string, error) {
	cm, err := NewConfigManager(configPath)
	if err != nil {
		return "", fmt.Errorf("failed to load configuration: %w", err)
	}
	config := cm.Get()

	logger := newLogger(os.Stdout, config.Server.LogLevel, config.Server.LogFormat)
	cm.SetLogger(logger)
	logger.Info("Starting server cycle...", "version", Version)

	app, err := openApp(config.Server, logger)
	if err != nil {
		return "", err
	}

	server, err := NewServer(cm, app, logger, actionChan)
	if err != nil {
		_ = app.Close()
		return "", fmt.Errorf("failed to create server object: %w", err)
	}

	siteHttpServer := &http.Server{
		Addr:              config.Server.ServerAddr,
		Handler:           server.SiteHandler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	apiHttpServer := &http.Server{
		Addr:              config.Server.ApiAddr,
		Handler:           server.APIHandler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("Starting api server", "address", apiHttpServer.Addr)
		if err := apiHttpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Api server failed", "error", err)
		}
	}()

	go func() {
		logger.Info("Starting site server", "address", siteHttpServer.Addr)
		if err := siteHttpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Site server failed", "error", err)
		}
	}()

	purgeCtx, stopPurge := context.WithCancel(context.Background())
	go app.purgeLoop(purgeCtx, purgeInterval)

	action := <-actionChan // Block here until API or OS signal sends an action.
	stopPurge()

	logger.Info("Stopping servers for " + action + "...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err = apiHttpServer.Shutdown(ctx); err != nil {
		logger.Error("Api server shutdown failed", "error", err)
	}
	if err = siteHttpServer.Shutdown(ctx); err != nil {
		logger.Error("Site server shutdown failed", "error", err)
	}
	logger.Info("HTTP servers stopped.")

	logger.Info("Closing database connections.")
	if err = app.Close(); err != nil {
		logger.Error("Failed to close databases", "error", err)
	}

	return action, nil
}

// purgeLoop drops expired transients and counters until ctx is done.
func (a *App) purgeLoop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := a.settings.PurgeExpired(ctx)
			if err != nil {
				a.logger.Warn("Failed to purge expired transients", "error", err)
				continue
			}
			if n > 0 {
				a.logger.Debug("Purged expired transients", "count", n)
			}
		}
	}
}

// withApp opens the application for a one-shot command. Logs go to stderr so
// command output stays clean.
func withApp(configPath string, fn func(ctx context.Context, app *App) error) error {
	cfg, err := LoadConfig(configPath)
	if err != nil {
		return err
	}
	logger := newLogger(os.Stderr, cfg.Server.LogLevel, cfg.Server.LogFormat)
	app, err := openApp(cfg.Server, logger)
	if err != nil {
		return err
	}
	defer func(app *App) {
		if err := app.Close(); err != nil {
			logger.Error("Failed to close databases", "error", err)
		}
	}(app)
	return fn(context.Background(), app)
}
