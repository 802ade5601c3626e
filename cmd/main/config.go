package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/CTAG07/Signpost/pkg/templating"
	"github.com/natefinch/atomic"
)

// ServerConfig holds the configuration for the HTTP servers and storage.
type ServerConfig struct {
	ServerAddr           string            `json:"server_addr"`
	ApiAddr              string            `json:"api_addr"`
	LogLevel             string            `json:"log_level"`
	LogFormat            string            `json:"log_format"`
	TrustedProxies       []string          `json:"trusted_proxies"`
	DataDir              string            `json:"data_dir"`
	SettingsDatabasePath string            `json:"settings_database_path"`
	ContentDatabasePath  string            `json:"content_database_path"`
	AuthDatabasePath     string            `json:"auth_database_path"`
	TemplateDir          string            `json:"template_dir"`
	AssetDir             string            `json:"asset_dir"`
	NonceSecret          string            `json:"nonce_secret"`
	Headers              map[string]string `json:"headers"`
	SearchConfig         *SearchConfig     `json:"search_config"`
}

// SearchConfig holds the public search limits.
type SearchConfig struct {
	RateLimit     int `json:"rate_limit"`
	RateWindowSec int `json:"rate_window_sec"`
	MaxResults    int `json:"max_results"`
}

// Config is the top-level configuration struct that aggregates all other configs.
type Config struct {
	Server    *ServerConfig              `json:"server_config"`
	Templates *templating.TemplateConfig `json:"template_config"`
}

// DefaultServerConfig creates a server configuration with default values.
func DefaultServerConfig() *ServerConfig {
	return &ServerConfig{
		ServerAddr:           ":7277",
		ApiAddr:              ":7278",
		LogLevel:             "info",
		LogFormat:            "auto",
		TrustedProxies:       []string{},
		DataDir:              "./data",
		SettingsDatabasePath: "./data/signpost_settings.db?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)",
		ContentDatabasePath:  "./data/signpost_content.db?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)",
		AuthDatabasePath:     "./data/signpost_auth.db?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)",
		TemplateDir:          "./data/templates",
		AssetDir:             "./data/assets",
		Headers: map[string]string{
			"Cache-Control":           "no-cache",
			"Content-Security-Policy": "default-src 'self'; script-src 'self' 'unsafe-inline'; style-src 'self' 'unsafe-inline'; img-src 'self' https: data:;",
			"Content-Type":            "text/html; charset=utf-8",
			"X-Content-Type-Options":  "nosniff",
		},
		SearchConfig: &SearchConfig{
			RateLimit:     5,
			RateWindowSec: 10,
			MaxResults:    20,
		},
	}
}

// DefaultConfig returns a complete configuration with default values.
func DefaultConfig() *Config {
	tmpl := templating.DefaultConfig()
	return &Config{
		Server:    DefaultServerConfig(),
		Templates: &tmpl,
	}
}

// LoadConfig reads the configuration from a JSON file at the given path.
// If the file doesn't exist, it creates one with default values.
func LoadConfig(path string) (*Config, error) {
	config := DefaultConfig()

	file, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			var data []byte
			data, err = json.MarshalIndent(config, "", "  ")
			if err != nil {
				return nil, fmt.Errorf("failed to marshal default config: %w", err)
			}
			if dir := filepath.Dir(path); dir != "." {
				_ = os.MkdirAll(dir, 0755)
			}
			if err = atomic.WriteFile(path, bytes.NewReader(data)); err != nil {
				// The server can still run with defaults.
				fmt.Fprintf(os.Stderr, "warning: failed to write default config file: %v\n", err)
			}
			return config, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err = json.Unmarshal(file, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	config.fillDefaults()
	return config, nil
}

// fillDefaults restores sections a hand-edited file left out.
func (c *Config) fillDefaults() {
	def := DefaultConfig()
	if c.Server == nil {
		c.Server = def.Server
	}
	if c.Server.SearchConfig == nil {
		c.Server.SearchConfig = def.Server.SearchConfig
	}
	if c.Server.Headers == nil {
		c.Server.Headers = def.Server.Headers
	}
	if c.Templates == nil {
		c.Templates = def.Templates
	}
}

// ConfigManager handles thread-safe access to configuration and derived state (trusted proxies).
type ConfigManager struct {
	config       *Config
	mu           sync.RWMutex
	trustedCIDRs []*net.IPNet
	trustedIPs   []net.IP
	configPath   string
	logger       *slog.Logger
	tm           *templating.TemplateManager
}

// NewConfigManager loads the config and initializes the manager.
func NewConfigManager(path string) (*ConfigManager, error) {
	cfg, err := LoadConfig(path)
	if err != nil {
		return nil, err
	}

	cm := &ConfigManager{
		config:     cfg,
		configPath: path,
		// Log to stderr before the application logger is set.
		logger: slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{})),
	}
	cm.refreshCache()

	return cm, nil
}

// SetTemplateManager registers the template manager to receive config updates.
func (cm *ConfigManager) SetTemplateManager(tm *templating.TemplateManager) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.tm = tm
	if tm != nil {
		tm.SetConfig(cm.config.Templates)
	}
}

// SetLogger replaces the bootstrap logger.
func (cm *ConfigManager) SetLogger(logger *slog.Logger) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.logger = logger
}

// Get returns a thread-safe copy of the current configuration.
func (cm *ConfigManager) Get() Config {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return *cm.config
}

// Update validates and applies a new configuration, then saves it to disk.
func (cm *ConfigManager) Update(newConfig Config) error {
	newConfig.fillDefaults()

	cm.mu.Lock()
	defer cm.mu.Unlock()

	if cm.tm != nil {
		oldTmplConfig := cm.config.Templates

		cm.tm.SetConfig(newConfig.Templates)
		if err := cm.tm.Refresh(); err != nil {
			cm.tm.SetConfig(oldTmplConfig)
			_ = cm.tm.Refresh()
			return fmt.Errorf("template configuration rejected: %w", err)
		}
	}

	*cm.config = newConfig
	cm.refreshCache()

	data, err := json.MarshalIndent(cm.config, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err = atomic.WriteFile(cm.configPath, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// IsTrusted checks if an IP is in the trusted proxies list using the cache.
func (cm *ConfigManager) IsTrusted(ipAddr string) bool {
	parsedIP := net.ParseIP(ipAddr)
	if parsedIP == nil {
		return false
	}

	cm.mu.RLock()
	defer cm.mu.RUnlock()

	for _, ipNet := range cm.trustedCIDRs {
		if ipNet.Contains(parsedIP) {
			return true
		}
	}

	for _, trustedIP := range cm.trustedIPs {
		if trustedIP.Equal(parsedIP) {
			return true
		}
	}

	return false
}

// refreshCache rebuilds the binary IP lists from the config strings.
func (cm *ConfigManager) refreshCache() {
	var cidrs []*net.IPNet
	var ips []net.IP

	for _, t := range cm.config.Server.TrustedProxies {
		if strings.Contains(t, "/") {
			_, ipNet, err := net.ParseCIDR(t)
			if err == nil {
				cidrs = append(cidrs, ipNet)
			} else {
				cm.logger.Warn("Failed to parse trusted proxy CIDR", "cidr", t, "error", err)
			}
		} else {
			ip := net.ParseIP(t)
			if ip != nil {
				ips = append(ips, ip)
			} else {
				cm.logger.Warn("Failed to parse trusted proxy IP", "ip", t)
			}
		}
	}
	cm.trustedCIDRs = cidrs
	cm.trustedIPs = ips
}
