package utils

import (
	"os"
	"strconv"

	"github.com/redis/go-redis/v9"

	"github.com/HSLdevcom/digitransit-geocoder/internal/logger"
)

// OpenRedisFromEnv opens a Redis client from REDIS_* variables. Returns nil
// when REDIS_DISABLE=true; the API treats a nil client as "no cache".
func OpenRedisFromEnv() *redis.Client {
	if os.Getenv("REDIS_DISABLE") == "true" {
		return nil
	}
	host := os.Getenv("REDIS_HOST")
	if host == "" {
		host = "127.0.0.1"
	}
	port := os.Getenv("REDIS_PORT")
	if port == "" {
		port = "6379"
	}
	db := 0
	if v := os.Getenv("REDIS_DB"); v != "" {
		// parse errors fall back to db 0
		if n, _ := strconv.Atoi(v); n >= 0 {
			db = n
		}
	}
	addr := host + ":" + port
	logger.L().Debug("redis_env", "addr", addr, "db", db)
	return redis.NewClient(&redis.Options{Addr: addr, Password: os.Getenv("REDIS_PASS"), DB: db})
}
