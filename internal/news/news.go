// Package news fetches market headlines for the news tab.
//
// Headlines are decoration, not analysis input: fetch failures degrade to an
// empty panel and are never fatal.
package news

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/mmcdole/gofeed"
	"golang.org/x/sync/errgroup"

	"github.com/dimakrest/trading-analyst/internal/logging"
)

// maxConcurrentFetches limits parallel feed fetches.
const maxConcurrentFetches = 4

// Source is one headline feed.
type Source struct {
	Name string
	URL  string
}

// Headline is one feed entry, trimmed to what the news tab renders.
type Headline struct {
	ID        string
	Source    string
	Title     string
	URL       string
	Published time.Time
}

// Fetcher retrieves headlines from RSS/Atom feeds.
type Fetcher struct {
	client *http.Client
}

// NewFetcher creates a Fetcher with the given HTTP timeout.
func NewFetcher(timeout time.Duration) *Fetcher {
	return &Fetcher{
		client: &http.Client{Timeout: timeout},
	}
}

// Fetch retrieves headlines from a single source.
func (f *Fetcher) Fetch(ctx context.Context, src Source) ([]Headline, error) {
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", "trading-analyst/1.0")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch feed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP error: %d %s", resp.StatusCode, resp.Status)
	}

	feed, err := gofeed.NewParser().Parse(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse feed: %w", err)
	}

	now := time.Now()
	headlines := make([]Headline, 0, len(feed.Items))
	for _, item := range feed.Items {
		headlines = append(headlines, convertItem(item, src, now))
	}
	return headlines, nil
}

// FetchAll fetches every source in parallel and returns the merged
// headlines, newest first. A failed source is logged and skipped; the
// returned error reports which sources failed so the caller can show a
// non-blocking hint without losing the healthy feeds.
func (f *Fetcher) FetchAll(ctx context.Context, sources []Source) ([]Headline, error) {
	results := make([][]Headline, len(sources))
	errs := make([]error, len(sources))

	var g errgroup.Group
	g.SetLimit(maxConcurrentFetches)
	for i, src := range sources {
		g.Go(func() error {
			headlines, err := f.Fetch(ctx, src)
			if err != nil {
				logging.Debug("headline fetch failed", "source", src.Name, "error", err)
				errs[i] = fmt.Errorf("%s: %w", src.Name, err)
				return nil // never fail the group - a dead feed is not news
			}
			results[i] = headlines
			return nil
		})
	}
	_ = g.Wait()

	var merged []Headline
	for _, r := range results {
		merged = append(merged, r...)
	}
	sort.Slice(merged, func(i, j int) bool {
		return merged[i].Published.After(merged[j].Published)
	})
	return merged, errors.Join(errs...)
}

// convertItem converts a gofeed.Item into a Headline.
func convertItem(item *gofeed.Item, src Source, fetchTime time.Time) Headline {
	published := fetchTime
	if item.PublishedParsed != nil {
		published = *item.PublishedParsed
	} else if item.UpdatedParsed != nil {
		published = *item.UpdatedParsed
	}

	return Headline{
		ID:        headlineID(item),
		Source:    src.Name,
		Title:     item.Title,
		URL:       item.Link,
		Published: published,
	}
}

// headlineID creates a deterministic ID for a feed item. Prefers the GUID,
// falls back to the link, then the title.
func headlineID(item *gofeed.Item) string {
	key := item.GUID
	if key == "" {
		key = item.Link
	}
	if key == "" {
		key = item.Title
	}
	h := sha256.Sum256([]byte(key))
	return hex.EncodeToString(h[:8])
}
