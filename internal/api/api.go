// Package api serves the query endpoints over plain JSON. Handlers read the
// snapshot through the holder on every request, so an import finishing
// mid-flight is picked up without coordination.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/paulmach/orb"
	"github.com/redis/go-redis/v9"

	"github.com/HSLdevcom/digitransit-geocoder/internal/index"
	"github.com/HSLdevcom/digitransit-geocoder/internal/logger"
	"github.com/HSLdevcom/digitransit-geocoder/internal/metrics"
	"github.com/HSLdevcom/digitransit-geocoder/internal/query"
)

// Server owns the HTTP surface. rdb may be nil; response caching is then
// disabled.
type Server struct {
	holder *index.Holder
	rdb    *redis.Client
}

func NewServer(holder *index.Holder, rdb *redis.Client) *Server {
	return &Server{holder: holder, rdb: rdb}
}

// Routes builds the endpoint mux.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /address/{city}/{street}", s.instrument("address", s.handleStreet))
	mux.HandleFunc("GET /address/{city}/{street}/{housenumber}", s.instrument("address", s.handleAddress))
	mux.HandleFunc("GET /suggest/{term}", s.instrument("suggest", s.handleSuggest))
	mux.HandleFunc("GET /reverse/{coords}", s.instrument("reverse", s.handleReverse))
	mux.HandleFunc("GET /interpolate/{street}/{housenumber}", s.instrument("interpolate", s.handleInterpolate))
	mux.HandleFunc("GET /meta", s.instrument("meta", s.handleMeta))
	mux.HandleFunc("GET /healthz", s.handleHealth)
	return corsMiddleware(mux)
}

// corsMiddleware mirrors the request origin so browser clients on any host
// can call the API.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin == "" {
			origin = "*"
		}
		w.Header().Set("Access-Control-Allow-Origin", origin)
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

type snapHandler func(w http.ResponseWriter, r *http.Request, snap *index.Snapshot)

// instrument wraps a handler with the request metrics and the
// snapshot-availability check.
func (s *Server) instrument(endpoint string, h snapHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		metrics.RequestsTotal.WithLabelValues(endpoint).Inc()
		snap := s.holder.Get()
		if snap == nil {
			writeError(w, http.StatusServiceUnavailable, "index not loaded")
			return
		}
		h(w, r, snap)
		metrics.RequestDurationMs.WithLabelValues(endpoint).
			Observe(float64(time.Since(start).Milliseconds()))
	}
}

func (s *Server) handleStreet(w http.ResponseWriter, r *http.Request, snap *index.Snapshot) {
	addrs, err := query.StreetAddresses(snap, r.PathValue("city"), r.PathValue("street"))
	if err != nil {
		writeQueryError(w, "address", err)
		return
	}
	writeJSON(w, http.StatusOK, toAddressList(addrs))
}

func (s *Server) handleAddress(w http.ResponseWriter, r *http.Request, snap *index.Snapshot) {
	addrs, err := query.LookupAddress(snap,
		r.PathValue("city"), r.PathValue("street"), r.PathValue("housenumber"))
	if err != nil {
		writeQueryError(w, "address", err)
		return
	}
	writeJSON(w, http.StatusOK, toAddressList(addrs))
}

func (s *Server) handleSuggest(w http.ResponseWriter, r *http.Request, snap *index.Snapshot) {
	term := r.PathValue("term")
	cities := r.URL.Query()["city"]
	key := cacheKey(snap, append([]string{"suggest", term}, cities...)...)
	if s.serveCached(w, r, key) {
		return
	}
	got, err := query.Suggest(snap, term, cities)
	if err != nil {
		writeQueryError(w, "suggest", err)
		return
	}
	s.writeAndCache(w, r, key, got)
}

func (s *Server) handleReverse(w http.ResponseWriter, r *http.Request, snap *index.Snapshot) {
	coords := r.PathValue("coords")
	parts := strings.Split(coords, ",")
	if len(parts) != 2 {
		writeError(w, http.StatusBadRequest, "coordinates must be lat,lon")
		return
	}
	lat, errLat := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	lon, errLon := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if errLat != nil || errLon != nil {
		writeError(w, http.StatusBadRequest, "coordinates must be lat,lon")
		return
	}
	zoom := query.DefaultZoomThreshold
	if z := r.URL.Query().Get("zoom"); z != "" {
		n, err := strconv.Atoi(z)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "zoom must be a non-negative integer")
			return
		}
		zoom = n
	}

	key := cacheKey(snap, "reverse", coords, strconv.Itoa(zoom))
	if s.serveCached(w, r, key) {
		return
	}
	got, err := query.Reverse(snap, orb.Point{lon, lat}, zoom)
	if err != nil {
		writeQueryError(w, "reverse", err)
		return
	}
	s.writeAndCache(w, r, key, toReverseResponse(got))
}

func (s *Server) handleInterpolate(w http.ResponseWriter, r *http.Request, snap *index.Snapshot) {
	n, err := strconv.Atoi(r.PathValue("housenumber"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "housenumber must be an integer")
		return
	}
	got, err := query.Interpolate(snap, r.PathValue("street"), n)
	if err != nil {
		writeQueryError(w, "interpolate", err)
		return
	}
	writeJSON(w, http.StatusOK, InterpolateResponse{
		Street:       got.Street,
		Municipality: got.Municipality,
		Number:       got.Number,
		Location:     got.Location,
	})
}

func (s *Server) handleMeta(w http.ResponseWriter, r *http.Request, snap *index.Snapshot) {
	resp := MetaResponse{Generation: snap.Generation}
	if !snap.UpdatedAt.IsZero() {
		d := snap.UpdatedAt.Format("2006-01-02")
		resp.Updated = &d
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.holder.Get() == nil {
		writeError(w, http.StatusServiceUnavailable, "index not loaded")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeQueryError(w http.ResponseWriter, endpoint string, err error) {
	switch {
	case errors.Is(err, query.ErrBadRequest):
		writeError(w, http.StatusBadRequest, "bad request")
	case errors.Is(err, query.ErrNotFound):
		metrics.NotFoundTotal.WithLabelValues(endpoint).Inc()
		writeError(w, http.StatusNotFound, "not found")
	default:
		logger.L().Error("query_error", "endpoint", endpoint, "err", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, errorResponse{Error: msg})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.L().Error("response_encode_error", "err", err)
	}
}
