// Package server exposes the persisted records and the rendered map over a
// read-only HTTP API.
package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/venuemap/venue-cli/internal/model"
	"github.com/venuemap/venue-cli/internal/render"
	"github.com/venuemap/venue-cli/internal/store"
)

// Options configures the HTTP API.
type Options struct {
	// AllowedOrigins for CORS. Defaults to any origin.
	AllowedOrigins []string
	// MapName is the GeoJSON collection name.
	MapName string
}

// Server serves views over the record and cache stores.
type Server struct {
	records  *store.RecordStore
	cache    *store.CacheStore
	renderer render.Renderer
	opts     Options
}

// New creates a Server. A nil renderer defaults to GeoJSON.
func New(records *store.RecordStore, cache *store.CacheStore, renderer render.Renderer, opts Options) *Server {
	if renderer == nil {
		renderer = render.GeoJSON{Name: opts.MapName}
	}
	if len(opts.AllowedOrigins) == 0 {
		opts.AllowedOrigins = []string{"*"}
	}
	return &Server{records: records, cache: cache, renderer: renderer, opts: opts}
}

// Handler returns the routed HTTP handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(zap.L().With(zap.String("component", "server"))))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.opts.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/healthz", s.health)
	r.Route("/records", func(r chi.Router) {
		r.Get("/", s.listRecords(false))
		r.Get("/resolved", s.listRecords(true))
	})
	r.Get("/cache/stats", s.cacheStats)
	r.Get("/map.geojson", s.mapGeoJSON)
	return r
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) listRecords(resolvedOnly bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		recs, err := s.records.Load(r.Context())
		if err != nil {
			writeError(w, r, err)
			return
		}
		if resolvedOnly {
			out := make([]model.Record, 0, len(recs))
			for _, rec := range recs {
				if rec.HasCoordinates() {
					out = append(out, rec)
				}
			}
			recs = out
		}
		writeJSON(w, http.StatusOK, recs)
	}
}

type cacheStatsResponse struct {
	Entries  int `json:"entries"`
	Found    int `json:"found"`
	NotFound int `json:"not_found"`
}

func (s *Server) cacheStats(w http.ResponseWriter, r *http.Request) {
	cache, err := s.cache.Load(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	found, notFound := cache.Stats()
	writeJSON(w, http.StatusOK, cacheStatsResponse{Entries: len(cache), Found: found, NotFound: notFound})
}

func (s *Server) mapGeoJSON(w http.ResponseWriter, r *http.Request) {
	recs, err := s.records.Load(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	var buf bytes.Buffer
	if err := s.renderer.Render(r.Context(), &buf, render.Renderable(recs)); err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/geo+json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	zap.L().Error("request failed",
		zap.String("component", "server"),
		zap.String("path", r.URL.Path),
		zap.Error(err),
	)
	writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
}

func requestLogger(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			log.Debug("http request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", middleware.GetReqID(r.Context())),
			)
		})
	}
}
