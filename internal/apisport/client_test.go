package apisport

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
)

func TestClientListMatches(t *testing.T) {
	var gotPath, gotAuth string
	var gotQuery url.Values
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		gotQuery = r.URL.Query()
		_, _ = w.Write([]byte(`{"matches": [{"id": 90411, "round": 21}]}`))
	}))
	defer srv.Close()

	c := NewClient("secret-key", srv.URL+"/")
	payload, err := c.ListMatches(context.Background(), "2026-03-14", 19, 25)
	if err != nil {
		t.Fatalf("ListMatches: %v", err)
	}

	assertEq(t, gotPath, "/football/matches")
	assertEq(t, gotAuth, "secret-key")
	assertEq(t, gotQuery.Get("date"), "2026-03-14")
	assertEq(t, gotQuery.Get("tournamentId"), "19")
	assertEq(t, gotQuery.Get("seasonId"), "25")

	items := Matches(payload)
	assertEq(t, len(items), 1)
	id, ok := ExternalID(items[0])
	assertEq(t, ok, true)
	assertEq(t, id, int64(90411))
}

func TestClientGetMatch(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		_, _ = w.Write([]byte(`{"id": 421, "status": "finished"}`))
	}))
	defer srv.Close()

	c := NewClient("k", srv.URL)
	payload, err := c.GetMatch(context.Background(), 421)
	if err != nil {
		t.Fatalf("GetMatch: %v", err)
	}

	assertEq(t, gotPath, "/football/matches/421")
	m, ok := payload.(map[string]any)
	assertEq(t, ok, true)
	assertEq(t, Status(m), "finished")
}

func TestClientHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "key expired", http.StatusForbidden)
	}))
	defer srv.Close()

	c := NewClient("k", srv.URL)
	_, err := c.GetMatch(context.Background(), 1)
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "HTTP 403") || !strings.Contains(err.Error(), "key expired") {
		t.Fatalf("unexpected error: %v", err)
	}
}
