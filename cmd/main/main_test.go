package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/CTAG07/Signpost/pkg/content"
)

const testRemoteAddr = "192.0.2.10:40000"

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// testServerConfig points every path at dir.
func testServerConfig(dir string) *ServerConfig {
	cfg := DefaultServerConfig()
	cfg.DataDir = dir
	cfg.SettingsDatabasePath = filepath.Join(dir, "settings.db")
	cfg.ContentDatabasePath = filepath.Join(dir, "content.db")
	cfg.AuthDatabasePath = filepath.Join(dir, "auth.db")
	cfg.AssetDir = filepath.Join(dir, "assets")
	cfg.TemplateDir = filepath.Join(dir, "templates")
	cfg.NonceSecret = "test-secret"
	return cfg
}

// newTestServer builds a server over fresh databases in a temp dir. mutate
// may adjust the config before anything is opened.
func newTestServer(t *testing.T, mutate func(*ServerConfig)) *Server {
	t.Helper()
	dir := t.TempDir()
	cfg := testServerConfig(dir)
	if mutate != nil {
		mutate(cfg)
	}

	cm, err := NewConfigManager(filepath.Join(dir, "config.json"))
	if err != nil {
		t.Fatalf("NewConfigManager failed: %v", err)
	}
	base := cm.Get()
	if err = cm.Update(Config{Server: cfg, Templates: base.Templates}); err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	cm.SetLogger(discardLogger())

	app, err := openApp(cfg, discardLogger())
	if err != nil {
		t.Fatalf("openApp failed: %v", err)
	}
	t.Cleanup(func() { _ = app.Close() })

	s, err := NewServer(cm, app, discardLogger(), make(chan string, 1))
	if err != nil {
		t.Fatalf("NewServer failed: %v", err)
	}
	return s
}

func mustInsert(t *testing.T, s *Server, it content.Item) int64 {
	t.Helper()
	id, err := s.app.content.Insert(context.Background(), it)
	if err != nil {
		t.Fatalf("Insert(%+v) failed: %v", it, err)
	}
	return id
}

// doSite sends a request to the public site handler.
func doSite(s *Server, method, target string, body io.Reader, header http.Header) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, body)
	req.RemoteAddr = testRemoteAddr
	for k, v := range header {
		req.Header[k] = v
	}
	rr := httptest.NewRecorder()
	s.SiteHandler().ServeHTTP(rr, req)
	return rr
}

// doAPI sends a request to the admin api handler, with key when not empty.
func doAPI(s *Server, method, target string, body any, key string) *httptest.ResponseRecorder {
	var r io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		r = bytes.NewBufferString(b)
	case []byte:
		r = bytes.NewReader(b)
	default:
		raw, _ := json.Marshal(b)
		r = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, target, r)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if key != "" {
		req.Header.Set(authHeader, key)
	}
	rr := httptest.NewRecorder()
	s.APIHandler().ServeHTTP(rr, req)
	return rr
}

func decodeJSON(t *testing.T, rr *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(rr.Body.Bytes(), v); err != nil {
		t.Fatalf("failed to decode response %q: %v", rr.Body.String(), err)
	}
}

// mustCreateKey stores a key directly and returns it in raw form.
func mustCreateKey(t *testing.T, s *Server, scopes ...string) string {
	t.Helper()
	key, err := createAPIKey(context.Background(), s.app.authDB, "test", scopes)
	if err != nil {
		t.Fatalf("createAPIKey failed: %v", err)
	}
	return key.RawKey
}
