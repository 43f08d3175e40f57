// Package daily reads Statistics Canada's "The Daily" RSS feeds, the
// agency's official release channel, and returns recent releases.
package daily

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/mmcdole/gofeed"
	"golang.org/x/sync/errgroup"

	"github.com/ocandata/statcango/internal/infra"
	"github.com/ocandata/statcango/pkg/models"
)

// Feed is one RSS source.
type Feed struct {
	Name string
	URL  string
}

// DefaultFeeds lists The Daily's release feeds.
var DefaultFeeds = []Feed{
	{
		Name: "The Daily",
		URL:  "https://www150.statcan.gc.ca/n1/dai-quo/ssi/homepage/daily-rss-en.xml",
	},
	{
		Name: "New products",
		URL:  "https://www150.statcan.gc.ca/n1/dai-quo/ssi/homepage/new-products-en.xml",
	},
}

// Client fetches and caches release feeds.
type Client struct {
	feeds   []Feed
	parser  *gofeed.Parser
	cache   *infra.Cache
	limiter *infra.RateLimiter
}

// NewClient creates a client over the default feeds.
func NewClient() *Client {
	return NewClientWithFeeds(DefaultFeeds)
}

// NewClientWithFeeds creates a client over custom feeds.
func NewClientWithFeeds(feeds []Feed) *Client {
	return &Client{
		feeds:   feeds,
		parser:  gofeed.NewParser(),
		cache:   infra.NewCache(10 * time.Minute),
		limiter: infra.NewRateLimiter(2, time.Second),
	}
}

// Releases returns recent releases across all configured feeds, newest
// first, truncated to limit when limit > 0. Feeds are fetched
// concurrently; a failing feed is skipped unless every feed fails.
func (c *Client) Releases(ctx context.Context, limit int) ([]models.Release, error) {
	cacheKey := "daily:releases"
	if cached, ok := c.cache.Get(cacheKey); ok {
		return truncate(cached.([]models.Release), limit), nil
	}

	var (
		mu       sync.Mutex
		releases []models.Release
		failures []error
	)
	g, gctx := errgroup.WithContext(ctx)
	for _, feed := range c.feeds {
		feed := feed
		g.Go(func() error {
			items, err := c.fetchFeed(gctx, feed)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failures = append(failures, err)
				return nil // non-fatal: other feeds may still succeed
			}
			releases = append(releases, items...)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if len(releases) == 0 && len(failures) > 0 {
		return nil, fmt.Errorf("all release feeds failed: %v", failures[0])
	}

	sort.SliceStable(releases, func(i, j int) bool {
		return releases[i].Published.After(releases[j].Published)
	})

	c.cache.Set(cacheKey, releases)
	return truncate(releases, limit), nil
}

func (c *Client) fetchFeed(ctx context.Context, feed Feed) ([]models.Release, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	parsed, err := c.parser.ParseURLWithContext(feed.URL, ctx)
	if err != nil {
		return nil, fmt.Errorf("parse feed %s: %w", feed.Name, err)
	}
	releases := make([]models.Release, 0, len(parsed.Items))
	for _, item := range parsed.Items {
		r := models.Release{
			Title:   item.Title,
			Link:    item.Link,
			Summary: item.Description,
			Source:  feed.Name,
		}
		if item.PublishedParsed != nil {
			r.Published = *item.PublishedParsed
		}
		releases = append(releases, r)
	}
	return releases, nil
}

func truncate(releases []models.Release, limit int) []models.Release {
	if limit > 0 && len(releases) > limit {
		return releases[:limit]
	}
	return releases
}
