package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/HSLdevcom/digitransit-geocoder/internal/index"
	"github.com/HSLdevcom/digitransit-geocoder/internal/logger"
	"github.com/HSLdevcom/digitransit-geocoder/internal/metrics"
)

const cacheTTL = 10 * time.Minute

// cacheKey includes the snapshot generation so a swap naturally invalidates
// every cached response.
func cacheKey(snap *index.Snapshot, parts ...string) string {
	return "geo:g" + strconv.FormatInt(snap.Generation, 10) + ":" + strings.Join(parts, ":")
}

// serveCached replays a cached response body; false means a miss or no
// cache configured.
func (s *Server) serveCached(w http.ResponseWriter, r *http.Request, key string) bool {
	if s.rdb == nil {
		return false
	}
	body, err := s.rdb.Get(r.Context(), key).Bytes()
	if err == redis.Nil {
		metrics.RedisMissesTotal.Inc()
		return false
	}
	if err != nil {
		logger.L().Warn("redis_get_error", "err", err)
		return false
	}
	metrics.RedisHitsTotal.Inc()
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write(body)
	return true
}

// writeAndCache sends the response and stores the encoded body.
func (s *Server) writeAndCache(w http.ResponseWriter, r *http.Request, key string, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		logger.L().Error("response_encode_error", "err", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if s.rdb != nil {
		if err := s.rdb.Set(r.Context(), key, body, cacheTTL).Err(); err != nil {
			logger.L().Warn("redis_set_error", "err", err)
		}
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write(body)
}
