package repo

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/ocandata/statcango/internal/statcan"
)

// buildZip assembles an in-memory zip with the given members.
func buildZip(t *testing.T, members map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for name, content := range members {
		f, err := w.Create(name)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := f.Write([]byte(content)); err != nil {
			t.Fatal(err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestFetchAndExtract(t *testing.T) {
	archive := buildZip(t, map[string]string{
		"12345.csv":          "GEO,VALUE\nToronto,1\n",
		"12345_MetaData.csv": "Cube Title\nTest\n",
	})

	var hits int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.Write(archive)
	}))
	defer srv.Close()

	r, err := New(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	dataPath, metaPath, err := r.FetchAndExtract(context.Background(), srv.URL+"/12345-eng.zip", "12345")
	if err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(dataPath)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "GEO,VALUE\nToronto,1\n" {
		t.Errorf("data member = %q", data)
	}
	if _, err := os.Stat(metaPath); err != nil {
		t.Errorf("metadata member: %v", err)
	}

	// Second call is served from the cache directory.
	if _, _, err := r.FetchAndExtract(context.Background(), srv.URL+"/12345-eng.zip", "12345"); err != nil {
		t.Fatal(err)
	}
	if hits != 1 {
		t.Errorf("server hits = %d, want 1", hits)
	}
}

func TestFetchAndExtractMissingMember(t *testing.T) {
	archive := buildZip(t, map[string]string{
		"12345.csv": "GEO,VALUE\n",
		// No metadata member.
	})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(archive)
	}))
	defer srv.Close()

	r, err := New(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	_, _, err = r.FetchAndExtract(context.Background(), srv.URL+"/x.zip", "12345")
	if err == nil {
		t.Fatal("expected error for missing zip member")
	}
	var fetchErr *statcan.FetchError
	if !errors.As(err, &fetchErr) {
		t.Errorf("error type %T, want *FetchError", err)
	}
}

func TestFetchAndExtractHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	r, err := New(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	_, _, err = r.FetchAndExtract(context.Background(), srv.URL+"/gone.zip", "99999")
	if err == nil {
		t.Fatal("expected error for HTTP 404")
	}
	var fetchErr *statcan.FetchError
	if !errors.As(err, &fetchErr) {
		t.Errorf("error type %T, want *FetchError", err)
	}
}

func TestFetchAndExtractBadZip(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("this is not a zip"))
	}))
	defer srv.Close()

	r, err := New(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if _, _, err := r.FetchAndExtract(context.Background(), srv.URL+"/bad.zip", "12345"); err == nil {
		t.Fatal("expected error for corrupt archive")
	}
}
