// Package lookup resolves a StatCan product id (PID) to its full-table
// zip download URL by scraping the dataset's landing page for the CSV
// download link.
package lookup

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/ocandata/statcango/internal/infra"
)

const defaultBaseURL = "https://www150.statcan.gc.ca"

// Client scrapes dataset landing pages.
type Client struct {
	baseURL string
	client  *http.Client
	cache   *infra.Cache
	limiter *infra.RateLimiter
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL overrides the site base URL (tests point it at a stub).
func WithBaseURL(base string) Option {
	return func(c *Client) { c.baseURL = strings.TrimSuffix(base, "/") }
}

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.client = hc }
}

// NewClient creates a landing-page resolver.
func NewClient(opts ...Option) *Client {
	c := &Client{
		baseURL: defaultBaseURL,
		client:  &http.Client{Timeout: 30 * time.Second},
		cache:   infra.NewCache(24 * time.Hour),
		limiter: infra.NewRateLimiter(1, time.Second),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// pagePath builds the table-viewer landing page path for a product id.
// The viewer expects the 8-digit PID followed by the "01" view suffix.
func pagePath(pid string) string {
	return "/t1/tbl1/en/tv.action?pid=" + pid + "01"
}

// ResolveZipURL returns the absolute URL of the full-table CSV zip
// linked from the product's landing page.
func (c *Client) ResolveZipURL(ctx context.Context, pid string) (string, error) {
	cacheKey := "lookup:" + pid
	if cached, ok := c.cache.Get(cacheKey); ok {
		return cached.(string), nil
	}

	doc, err := c.fetchPage(ctx, c.baseURL+pagePath(pid))
	if err != nil {
		return "", err
	}

	var href string
	doc.Find("a[href]").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		h, _ := sel.Attr("href")
		if strings.Contains(h, "/n1/tbl/csv/") && strings.HasSuffix(h, ".zip") {
			href = h
			return false
		}
		return true
	})
	if href == "" {
		return "", fmt.Errorf("no full-table csv link on landing page for pid %s", pid)
	}

	abs, err := c.absolute(href)
	if err != nil {
		return "", err
	}
	c.cache.Set(cacheKey, abs)
	return abs, nil
}

func (c *Client) fetchPage(ctx context.Context, pageURL string) (*goquery.Document, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "text/html")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("landing page HTTP %d", resp.StatusCode)
	}
	return goquery.NewDocumentFromReader(resp.Body)
}

func (c *Client) absolute(href string) (string, error) {
	u, err := url.Parse(href)
	if err != nil {
		return "", fmt.Errorf("bad download link %q: %w", href, err)
	}
	if u.IsAbs() {
		return href, nil
	}
	base, err := url.Parse(c.baseURL)
	if err != nil {
		return "", err
	}
	return base.ResolveReference(u).String(), nil
}
