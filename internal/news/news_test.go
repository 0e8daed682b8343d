package news

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func rssBody(title string, items ...string) string {
	body := `<?xml version="1.0"?><rss version="2.0"><channel><title>` + title + `</title>`
	for i, item := range items {
		body += fmt.Sprintf(
			`<item><title>%s</title><link>http://example.com/%d</link><guid>guid-%s-%d</guid><pubDate>Mon, 0%d Jan 2024 00:00:00 GMT</pubDate></item>`,
			item, i, title, i, i+1)
	}
	return body + `</channel></rss>`
}

func TestFetchParsesFeed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		fmt.Fprint(w, rssBody("Markets", "Fed holds rates", "Oil climbs"))
	}))
	defer server.Close()

	f := NewFetcher(5 * time.Second)
	headlines, err := f.Fetch(context.Background(), Source{Name: "Markets", URL: server.URL})
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(headlines) != 2 {
		t.Fatalf("headlines = %d, want 2", len(headlines))
	}
	if headlines[0].Title != "Fed holds rates" {
		t.Errorf("title = %q", headlines[0].Title)
	}
	if headlines[0].Source != "Markets" {
		t.Errorf("source = %q", headlines[0].Source)
	}
	if headlines[0].ID == "" || headlines[0].ID == headlines[1].ID {
		t.Error("headline IDs not distinct")
	}
}

func TestFetchHTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	f := NewFetcher(5 * time.Second)
	if _, err := f.Fetch(context.Background(), Source{Name: "x", URL: server.URL}); err == nil {
		t.Error("expected error for 503")
	}
}

func TestFetchAllMergesAndSkipsFailures(t *testing.T) {
	good := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		fmt.Fprint(w, rssBody("Good", "headline one", "headline two"))
	}))
	defer good.Close()
	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer bad.Close()

	f := NewFetcher(5 * time.Second)
	merged, err := f.FetchAll(context.Background(), []Source{
		{Name: "Good", URL: good.URL},
		{Name: "Bad", URL: bad.URL},
	})

	if len(merged) != 2 {
		t.Fatalf("merged = %d, want 2 (failed source skipped)", len(merged))
	}
	// Newest first.
	if !merged[0].Published.After(merged[1].Published) {
		t.Errorf("not sorted newest first: %v, %v", merged[0].Published, merged[1].Published)
	}
	// The healthy feed survives, but the failure is still reported.
	if err == nil || !strings.Contains(err.Error(), "Bad") {
		t.Errorf("err = %v, want the failed source named", err)
	}
}

func TestFetchAllNoFailures(t *testing.T) {
	good := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		fmt.Fprint(w, rssBody("Good", "headline one"))
	}))
	defer good.Close()

	f := NewFetcher(5 * time.Second)
	merged, err := f.FetchAll(context.Background(), []Source{{Name: "Good", URL: good.URL}})
	if err != nil {
		t.Fatalf("FetchAll: %v", err)
	}
	if len(merged) != 1 {
		t.Fatalf("merged = %d, want 1", len(merged))
	}
}
