// Package repo implements the fetch collaborator: it downloads a
// StatCan full-table zip, extracts its CSV members into a local cache
// directory, and hands back the data and metadata file paths. A zip
// already present on disk is not downloaded again.
package repo

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ocandata/statcango/internal/infra"
	"github.com/ocandata/statcango/internal/statcan"
)

// DefaultDirName is the cache directory created under the user's home
// when no directory is configured.
const DefaultDirName = ".statcango"

// Repo fetches dataset zips into a cache directory.
type Repo struct {
	dir     string
	client  *http.Client
	limiter *infra.RateLimiter
}

// Option configures a Repo.
type Option func(*Repo)

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(r *Repo) { r.client = c }
}

// WithRateLimit sets the request budget per window.
func WithRateLimit(requests int, window time.Duration) Option {
	return func(r *Repo) { r.limiter = infra.NewRateLimiter(requests, window) }
}

// New creates a Repo caching into dir, which is created if needed.
func New(dir string, opts ...Option) (*Repo, error) {
	if dir == "" {
		dir = AtUserHome()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}
	r := &Repo{
		dir:     dir,
		client:  &http.Client{Timeout: 5 * time.Minute},
		limiter: infra.NewRateLimiter(2, time.Second),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// AtUserHome returns the default cache directory path.
func AtUserHome() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return DefaultDirName
	}
	return filepath.Join(home, DefaultDirName)
}

// Dir returns the cache directory.
func (r *Repo) Dir() string { return r.dir }

// FetchAndExtract downloads the zip at url (unless its members are
// already cached) and returns the local paths of {resourceID}.csv and
// {resourceID}_MetaData.csv.
func (r *Repo) FetchAndExtract(ctx context.Context, url, resourceID string) (string, string, error) {
	dataPath := filepath.Join(r.dir, resourceID+".csv")
	metaPath := filepath.Join(r.dir, resourceID+"_MetaData.csv")
	if exists(dataPath) && exists(metaPath) {
		return dataPath, metaPath, nil
	}

	if err := r.limiter.Wait(ctx); err != nil {
		return "", "", &statcan.FetchError{URL: url, Err: err}
	}

	body, err := r.download(ctx, url)
	if err != nil {
		return "", "", &statcan.FetchError{URL: url, Err: err}
	}

	if err := r.extract(body); err != nil {
		return "", "", &statcan.FetchError{URL: url, Err: err}
	}

	for _, p := range []string{dataPath, metaPath} {
		if !exists(p) {
			return "", "", &statcan.FetchError{
				URL: url,
				Err: fmt.Errorf("zip did not contain expected member %s", filepath.Base(p)),
			}
		}
	}
	return dataPath, metaPath, nil
}

func (r *Repo) download(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/zip")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("HTTP %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

// extract writes every zip member into the cache directory. Member
// names are constrained to the directory so a hostile archive cannot
// write elsewhere.
func (r *Repo) extract(data []byte) error {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return fmt.Errorf("open zip: %w", err)
	}
	for _, f := range zr.File {
		name := filepath.Base(f.Name)
		if name == "." || name == ".." || strings.HasPrefix(name, "/") {
			continue
		}
		if err := r.extractFile(f, filepath.Join(r.dir, name)); err != nil {
			return fmt.Errorf("extract %s: %w", f.Name, err)
		}
	}
	return nil
}

func (r *Repo) extractFile(f *zip.File, dest string) error {
	rc, err := f.Open()
	if err != nil {
		return err
	}
	defer rc.Close()

	out, err := os.Create(dest)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, rc); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

func exists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
