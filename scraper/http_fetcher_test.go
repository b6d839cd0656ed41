package scraper

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"immo_scrooper/config"
)

func TestHTTPFetcher(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/expose/6000001":
			if r.Header.Get("User-Agent") != "immo-test" {
				w.WriteHeader(http.StatusForbidden)
				return
			}
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			w.Write([]byte(listingPage("Altbau", 390000, 74, "1050")))
		case "/blocked":
			w.Write([]byte("<html>Request unsuccessful. Incapsula incident ID: 1</html>"))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	site := &config.SiteConfig{ID: "test", Source: "generic", TimeoutS: 5}
	f := NewHTTPFetcher(site, nil, "immo-test")

	doc, err := f.Fetch(context.Background(), srv.URL+"/expose/6000001")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if doc.Source != "generic" || !strings.Contains(doc.Body, "Wohnfläche") {
		t.Fatalf("unexpected document %+v", doc)
	}

	_, err = f.Fetch(context.Background(), srv.URL+"/missing")
	var se *StatusError
	if !errors.As(err, &se) || se.Code != http.StatusNotFound {
		t.Fatalf("expected status error 404, got %v", err)
	}
	if !permanent(err) {
		t.Fatalf("404 should be permanent")
	}

	_, err = f.Fetch(context.Background(), srv.URL+"/blocked")
	if !errors.Is(err, errBlocked) {
		t.Fatalf("expected block detection, got %v", err)
	}
}
