package main

import (
	"net/http"
	"strconv"
	"testing"

	"github.com/CTAG07/Signpost/pkg/content"
)

func TestContentAPI_Types(t *testing.T) {
	s := newTestServer(t, nil)

	rr := doAPI(s, http.MethodPost, "/api/content/types", content.Type{Name: "product", Label: "Products", Public: true}, "")
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", rr.Code, rr.Body.String())
	}
	if rr = doAPI(s, http.MethodPost, "/api/content/types", content.Type{Name: "revision", Public: true}, ""); rr.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d", rr.Code)
	}
	if rr = doAPI(s, http.MethodPost, "/api/content/types", content.Type{}, ""); rr.Code != http.StatusBadRequest {
		t.Errorf("nameless type: expected status 400, got %d", rr.Code)
	}

	rr = doAPI(s, http.MethodGet, "/api/content/types", nil, "")
	var types []content.Type
	decodeJSON(t, rr, &types)
	var names []string
	for _, ty := range types {
		names = append(names, ty.Name)
	}
	if len(names) != 3 || names[0] != "post" || names[1] != "page" || names[2] != "product" {
		t.Errorf("public types = %v, want [post page product]", names)
	}
}

func TestContentAPI_Items(t *testing.T) {
	s := newTestServer(t, nil)

	rr := doAPI(s, http.MethodPost, "/api/content", content.Item{Type: "page", Slug: "about", Title: "About"}, "")
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", rr.Code, rr.Body.String())
	}
	var created struct {
		content.Item
		URL string `json:"url"`
	}
	decodeJSON(t, rr, &created)
	if created.URL != "/about/" || created.Status != content.StatusPublish {
		t.Errorf("unexpected item %+v", created)
	}

	if rr = doAPI(s, http.MethodPost, "/api/content", content.Item{Type: "nope", Slug: "x"}, ""); rr.Code != http.StatusBadRequest {
		t.Errorf("unknown type: expected status 400, got %d", rr.Code)
	}
	if rr = doAPI(s, http.MethodPost, "/api/content", content.Item{Type: "page"}, ""); rr.Code != http.StatusBadRequest {
		t.Errorf("missing slug: expected status 400, got %d", rr.Code)
	}

	mustInsert(t, s, content.Item{Type: "post", Slug: "hello", Title: "Hello"})
	rr = doAPI(s, http.MethodGet, "/api/content?type=post", nil, "")
	var items []content.Item
	decodeJSON(t, rr, &items)
	if len(items) != 1 || items[0].Slug != "hello" {
		t.Errorf("listed %+v, want only the post", items)
	}

	rr = doAPI(s, http.MethodGet, "/api/content/"+strconv.FormatInt(created.ID, 10), nil, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	if rr = doAPI(s, http.MethodGet, "/api/content/999", nil, ""); rr.Code != http.StatusNotFound {
		t.Errorf("missing item: expected status 404, got %d", rr.Code)
	}
	if rr = doAPI(s, http.MethodGet, "/api/content/abc", nil, ""); rr.Code != http.StatusBadRequest {
		t.Errorf("bad id: expected status 400, got %d", rr.Code)
	}
}

func TestContentAPI_Media(t *testing.T) {
	s := newTestServer(t, nil)

	rr := doAPI(s, http.MethodPost, "/api/media", content.Media{URL: "/img/lost.png", Alt: "Lost", Width: 640, Height: 480}, "")
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", rr.Code, rr.Body.String())
	}
	var m content.Media
	decodeJSON(t, rr, &m)
	if m.ID == 0 {
		t.Fatal("created media has no id")
	}

	rr = doAPI(s, http.MethodGet, "/api/media/"+strconv.FormatInt(m.ID, 10), nil, "")
	var got content.Media
	decodeJSON(t, rr, &got)
	if got != m {
		t.Errorf("media = %+v, want %+v", got, m)
	}

	if rr = doAPI(s, http.MethodPost, "/api/media", content.Media{Alt: "no url"}, ""); rr.Code != http.StatusBadRequest {
		t.Errorf("media without url: expected status 400, got %d", rr.Code)
	}
	if rr = doAPI(s, http.MethodGet, "/api/media/0", nil, ""); rr.Code != http.StatusNotFound {
		t.Errorf("media 0: expected status 404, got %d", rr.Code)
	}
}
