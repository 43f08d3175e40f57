// Package api provides the HTTP REST API server for statcango.
//
// It exposes dataset metadata, dimensions, reshaped data, units of
// measure, and the release feed.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/ocandata/statcango/internal/config"
	"github.com/ocandata/statcango/internal/daily"
	"github.com/ocandata/statcango/internal/repo"
	"github.com/ocandata/statcango/internal/statcan"
	"github.com/ocandata/statcango/internal/table"
	"github.com/ocandata/statcango/pkg/models"
)

// Server is the HTTP API server.
type Server struct {
	router chi.Router
	cfg    *config.Config
	repo   *repo.Repo
	daily  *daily.Client

	// Dataset handles are not safe for concurrent use; mu serializes
	// access to them (the data pipeline is synchronous end to end).
	mu       sync.Mutex
	datasets map[string]*statcan.Dataset
}

// NewServer creates a configured API server with all routes and middleware.
func NewServer(cfg *config.Config) (*Server, error) {
	r, err := repo.New(cfg.Cache.Dir,
		repo.WithHTTPClient(&http.Client{Timeout: time.Duration(cfg.HTTP.TimeoutSec) * time.Second}),
		repo.WithRateLimit(cfg.HTTP.RatePerSec, time.Second),
	)
	if err != nil {
		return nil, err
	}
	srv := &Server{
		cfg:      cfg,
		repo:     r,
		daily:    daily.NewClient(),
		datasets: make(map[string]*statcan.Dataset),
	}
	srv.router = srv.buildRouter()
	return srv, nil
}

// Router returns the chi router for testing.
func (s *Server) Router() chi.Router {
	return s.router
}

// ListenAndServe starts the HTTP server with graceful shutdown.
func (s *Server) ListenAndServe(addr string) error {
	httpSrv := &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP server error: %v", err)
		}
	}()

	<-done
	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	return httpSrv.Shutdown(ctx)
}

// buildRouter configures all routes and middleware.
func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(120 * time.Second))

	origins := []string{"*"}
	if len(s.cfg.API.CORSOrigins) > 0 {
		origins = s.cfg.API.CORSOrigins
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         300,
	}))

	r.Get("/health", s.handleHealth)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/releases", s.handleReleases)

		r.Route("/datasets/{pid}", func(r chi.Router) {
			r.Get("/metadata", s.handleMetadata)
			r.Get("/dimensions", s.handleDimensions)
			r.Get("/data", s.handleData)
			r.Get("/units", s.handleUnits)
		})
	})

	return r
}

// --- Handlers ---

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReleases(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 25)
	releases, err := s.daily.Releases(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusBadGateway, err)
		return
	}
	writeJSON(w, http.StatusOK, releases)
}

func (s *Server) handleMetadata(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ds, err := s.dataset(chi.URLParam(r, "pid"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	meta, err := ds.GetMetadata(r.Context())
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, datasetInfo(ds, meta))
}

func (s *Server) handleDimensions(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ds, err := s.dataset(chi.URLParam(r, "pid"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	dims, err := ds.Dimensions(r.Context())
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, tableJSON(dims))
}

func (s *Server) handleData(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ds, err := s.dataset(chi.URLParam(r, "pid"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	opts := statcan.DefaultDataOptions()
	opts.Wide = queryBool(r, "wide", true)
	opts.DropControlCols = queryBool(r, "drop_controls", true)
	opts.IndexCol = r.URL.Query().Get("index_col")

	data, err := ds.GetData(r.Context(), opts)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, tableJSON(data))
}

func (s *Server) handleUnits(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ds, err := s.dataset(chi.URLParam(r, "pid"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	units, err := ds.UnitsOfMeasure(r.Context())
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, tableJSON(units))
}

// --- Helpers ---

// dataset returns the cached handle for a product id. Caller holds mu.
func (s *Server) dataset(pid string) (*statcan.Dataset, error) {
	if ds, ok := s.datasets[pid]; ok {
		return ds, nil
	}
	ds, err := statcan.NewDataset(s.cfg.ZipURL(pid), statcan.WithFetcher(s.repo))
	if err != nil {
		return nil, err
	}
	s.datasets[pid] = ds
	return ds, nil
}

func datasetInfo(ds *statcan.Dataset, meta *statcan.Metadata) models.DatasetInfo {
	info := models.DatasetInfo{
		ProductID:        ds.URLInfo().ResourceID,
		Title:            meta.CubeInfo.Cell(0, "Value"),
		Survey:           meta.Name(),
		PrimaryDimension: meta.PivotColumn(),
	}
	if meta.Subject.Len() > 0 {
		info.Subject = meta.Subject.Rows[0][1]
	}
	for _, row := range meta.Dimensions.Rows {
		info.Dimensions = append(info.Dimensions, models.DimensionInfo{
			ID:    row[0],
			Name:  row[1],
			Notes: row[2],
		})
	}
	return info
}

func tableJSON(t *table.Table) models.TableJSON {
	rows := t.Rows
	if rows == nil {
		rows = [][]string{}
	}
	return models.TableJSON{Columns: t.Columns, Rows: rows}
}

// statusFor maps domain errors to HTTP statuses: caller mistakes are
// 400s, upstream failures and malformed source data are 502s.
func statusFor(err error) int {
	var parseErr *statcan.ParseError
	var reshapeErr *statcan.ReshapeError
	var metaErr *statcan.MetadataFormatError
	var fetchErr *statcan.FetchError
	switch {
	case errors.As(err, &parseErr), errors.As(err, &reshapeErr):
		return http.StatusBadRequest
	case errors.As(err, &metaErr), errors.As(err, &fetchErr):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func queryBool(r *http.Request, key string, def bool) bool {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func queryInt(r *http.Request, key string, def int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}
