package main

import (
	"net/http"
	"strconv"
	"strings"
	"testing"
)

func TestAuth_OpenUntilFirstKey(t *testing.T) {
	s := newTestServer(t, nil)

	rr := doAPI(s, http.MethodGet, "/api/auth/me", nil, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200 with no keys, got %d", rr.Code)
	}

	rr = doAPI(s, http.MethodPost, "/api/auth/keys", CreateKeyRequest{Description: "admin", Scopes: []string{scopeSettingsRead}}, "")
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", rr.Code, rr.Body.String())
	}
	var first CreateKeyResponse
	decodeJSON(t, rr, &first)
	if !strings.HasPrefix(first.RawKey, "sp_") {
		t.Errorf("raw key %q lacks the sp_ prefix", first.RawKey)
	}
	if len(first.Scopes) != 1 || first.Scopes[0] != scopeMaster {
		t.Errorf("first key scopes = %v, want master", first.Scopes)
	}

	if rr = doAPI(s, http.MethodGet, "/api/auth/me", nil, ""); rr.Code != http.StatusUnauthorized {
		t.Errorf("no key after first key: expected status 401, got %d", rr.Code)
	}
	if rr = doAPI(s, http.MethodGet, "/api/auth/me", nil, "sp_wrong"); rr.Code != http.StatusUnauthorized {
		t.Errorf("wrong key: expected status 401, got %d", rr.Code)
	}
	if rr = doAPI(s, http.MethodGet, "/api/auth/me", nil, first.RawKey); rr.Code != http.StatusOK {
		t.Errorf("valid key: expected status 200, got %d", rr.Code)
	}
}

func TestAuth_Scopes(t *testing.T) {
	s := newTestServer(t, nil)
	master := mustCreateKey(t, s)
	limited := mustCreateKey(t, s, scopeSettingsRead, scopeContentRead)

	rr := doAPI(s, http.MethodGet, "/api/auth/me", nil, limited)
	var me struct {
		Scopes []string `json:"scopes"`
	}
	decodeJSON(t, rr, &me)
	if strings.Join(me.Scopes, " ") != "content:read settings:read" {
		t.Errorf("scopes = %v, want them sorted", me.Scopes)
	}

	tests := []struct {
		method string
		path   string
		key    string
		want   int
	}{
		{http.MethodGet, "/api/settings/colors", limited, http.StatusOK},
		{http.MethodGet, "/api/content/types", limited, http.StatusOK},
		{http.MethodGet, "/api/auth/keys", limited, http.StatusForbidden},
		{http.MethodGet, "/api/templates", limited, http.StatusForbidden},
		{http.MethodGet, "/api/server/config", limited, http.StatusForbidden},
		{http.MethodPost, "/api/server/shutdown", limited, http.StatusForbidden},
		{http.MethodGet, "/api/auth/keys", master, http.StatusOK},
		{http.MethodGet, "/api/templates", master, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			if rr := doAPI(s, tt.method, tt.path, nil, tt.key); rr.Code != tt.want {
				t.Errorf("expected status %d, got %d", tt.want, rr.Code)
			}
		})
	}
}

func TestAuth_KeyManagement(t *testing.T) {
	s := newTestServer(t, nil)
	master := mustCreateKey(t, s)

	rr := doAPI(s, http.MethodPost, "/api/auth/keys", CreateKeyRequest{Scopes: []string{"bogus:scope"}}, master)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("unknown scope: expected status 400, got %d", rr.Code)
	}

	rr = doAPI(s, http.MethodPost, "/api/auth/keys", CreateKeyRequest{Description: "ci", Scopes: []string{scopeContentWrite}}, master)
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d", rr.Code)
	}
	var created CreateKeyResponse
	decodeJSON(t, rr, &created)

	rr = doAPI(s, http.MethodGet, "/api/auth/keys", nil, master)
	var keys []APIKeyInfo
	decodeJSON(t, rr, &keys)
	if len(keys) != 2 {
		t.Fatalf("expected 2 keys, got %d", len(keys))
	}
	if strings.Contains(rr.Body.String(), created.RawKey) {
		t.Error("key listing leaks a raw key")
	}

	if rr = doAPI(s, http.MethodDelete, "/api/auth/keys/1", nil, master); rr.Code != http.StatusBadRequest {
		t.Errorf("deleting the primary key: expected status 400, got %d", rr.Code)
	}
	if rr = doAPI(s, http.MethodDelete, "/api/auth/keys/999", nil, master); rr.Code != http.StatusNotFound {
		t.Errorf("deleting a missing key: expected status 404, got %d", rr.Code)
	}
	path := "/api/auth/keys/" + strconv.Itoa(created.ID)
	if rr = doAPI(s, http.MethodDelete, path, nil, master); rr.Code != http.StatusNoContent {
		t.Errorf("deleting a key: expected status 204, got %d", rr.Code)
	}
	if rr = doAPI(s, http.MethodGet, "/api/content", nil, created.RawKey); rr.Code != http.StatusUnauthorized {
		t.Errorf("deleted key still authenticates, got %d", rr.Code)
	}
}

func TestHealthCheckSkipsAuth(t *testing.T) {
	s := newTestServer(t, nil)
	mustCreateKey(t, s)

	rr := doAPI(s, http.MethodGet, "/api/health", nil, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), `"ok"`) {
		t.Errorf("unexpected body %s", rr.Body.String())
	}
}

func TestHashAPIKey(t *testing.T) {
	if hashAPIKey("a") == hashAPIKey("b") {
		t.Error("different keys hash alike")
	}
	if got := len(hashAPIKey("sp_x")); got != 64 {
		t.Errorf("hash length = %d, want 64", got)
	}
	k1, _ := generateAPIKey()
	k2, _ := generateAPIKey()
	if k1 == k2 {
		t.Error("generated keys repeat")
	}
}
