// Package server exposes processed years over HTTP for map preview. It is a
// read-only view over the store, not a tile server; the tiling step consumes
// the exported files instead.
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"
	"go.uber.org/zap"

	"github.com/chronomaps/footsteps/internal/lod"
	"github.com/chronomaps/footsteps/internal/store"
)

// Server serves aggregated settlements for preview.
type Server struct {
	store  store.Store
	router chi.Router
}

// New creates a Server with its routes registered.
func New(st store.Store) *Server {
	s := &Server{store: st}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodHead, http.MethodOptions},
		MaxAge:         300,
	}))

	r.Get("/healthz", s.handleHealth)
	r.Get("/years", s.handleYears)
	r.Get("/years/{year}/lod/{level}", s.handleLevel)
	r.Get("/runs", s.handleRuns)

	s.router = r
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler { return s.router }

// ListenAndServe runs the server until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	zap.L().Info("server: listening", zap.String("addr", addr))

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return eris.Wrap(err, "server: shutdown")
		}
		return nil
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return eris.Wrap(err, "server: listen")
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleYears(w http.ResponseWriter, r *http.Request) {
	years, err := s.store.ListYears(r.Context())
	if err != nil {
		zap.L().Error("server: list years", zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if years == nil {
		years = []int{}
	}
	writeJSON(w, years)
}

func (s *Server) handleLevel(w http.ResponseWriter, r *http.Request) {
	year, err := parseYear(chi.URLParam(r, "year"))
	if err != nil {
		http.Error(w, "invalid year", http.StatusBadRequest)
		return
	}

	levelParam := strings.TrimSuffix(chi.URLParam(r, "level"), ".geojson")
	level, ok := lod.ParseLevel(levelParam)
	if !ok {
		http.Error(w, "unknown detail level", http.StatusNotFound)
		return
	}

	aggs, err := s.store.ListAggregates(r.Context(), year, level)
	if err != nil {
		zap.L().Error("server: list aggregates",
			zap.Int("year", year),
			zap.String("level", level.String()),
			zap.Error(err),
		)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	fc := &geojson.FeatureCollection{Features: make([]*geojson.Feature, 0, len(aggs))}
	for _, a := range aggs {
		fc.Features = append(fc.Features, &geojson.Feature{
			Geometry: geom.NewPointFlat(geom.XY, []float64{a.Coordinates.Lon, a.Coordinates.Lat}),
			Properties: map[string]any{
				"population": a.TotalPopulation,
				"density":    a.AverageDensity,
				"dots":       a.SourceDotCount,
			},
		})
	}

	data, err := fc.MarshalJSON()
	if err != nil {
		zap.L().Error("server: marshal feature collection", zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/geo+json")
	_, _ = w.Write(data)
}

func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	filter := store.RunFilter{}
	if status := r.URL.Query().Get("status"); status != "" {
		filter.Status = store.RunStatus(status)
	}
	if yearStr := r.URL.Query().Get("year"); yearStr != "" {
		year, err := parseYear(yearStr)
		if err != nil {
			http.Error(w, "invalid year", http.StatusBadRequest)
			return
		}
		filter.Year = &year
	}

	runs, err := s.store.ListRuns(r.Context(), filter)
	if err != nil {
		zap.L().Error("server: list runs", zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if runs == nil {
		runs = []store.Run{}
	}
	writeJSON(w, runs)
}

// parseYear accepts plain integers ("-1000", "1500") and the BC/AD labels
// the source grids use ("1000BC", "1500AD").
func parseYear(raw string) (int, error) {
	if n := len(raw); n > 2 {
		switch suffix := strings.ToUpper(raw[n-2:]); suffix {
		case "BC":
			year, err := strconv.Atoi(raw[:n-2])
			if err != nil || year < 0 {
				return 0, eris.Errorf("server: invalid year %q", raw)
			}
			return -year, nil
		case "AD":
			year, err := strconv.Atoi(raw[:n-2])
			if err != nil || year < 0 {
				return 0, eris.Errorf("server: invalid year %q", raw)
			}
			return year, nil
		}
	}
	year, err := strconv.Atoi(raw)
	if err != nil {
		return 0, eris.Errorf("server: invalid year %q", raw)
	}
	return year, nil
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Error("server: encode response", zap.Error(err))
	}
}
