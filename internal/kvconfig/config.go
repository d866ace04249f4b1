// Package kvconfig loads server/client configuration from environment
// variables (optionally seeded from a local .env file), following the
// env-var-with-default pattern this codebase uses elsewhere.
package kvconfig

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds everything needed to start a kvs server.
type Config struct {
	Addr                string  // KV TCP listen address
	AdminAddr           string  // admin HTTP address; empty disables it
	DataDir             string  // directory holding the log/db
	Engine              string  // "kvs" or "sqlite"
	PoolVariant         string  // "naive", "shared_queue", or "stealing"
	PoolSize            int     // worker count
	ConnRateLimit       float64 // connections/sec; 0 disables
	ConnRateBurst       int
	Dev                 bool // development-mode logging
}

// Defaults returns the baseline configuration a server starts from
// before environment overrides are applied.
func Defaults() Config {
	return Config{
		Addr:        "127.0.0.1:4000",
		AdminAddr:   "127.0.0.1:4001",
		DataDir:     ".",
		Engine:      "kvs",
		PoolVariant: "shared_queue",
		PoolSize:    8,
	}
}

// Load reads Config fields from environment variables, optionally seeded
// by a .env file in the working directory (silently absent in
// production, matching godotenv.Load's own behavior). Any unset variable
// keeps its Defaults() value.
func Load() Config {
	_ = godotenv.Load() // best-effort; a missing .env file is not an error

	cfg := Defaults()
	cfg.Addr = envOr("KVS_ADDR", cfg.Addr)
	cfg.AdminAddr = envOr("KVS_ADMIN_ADDR", cfg.AdminAddr)
	cfg.DataDir = envOr("KVS_DATA_DIR", cfg.DataDir)
	cfg.Engine = envOr("KVS_ENGINE", cfg.Engine)
	cfg.PoolVariant = envOr("KVS_POOL_VARIANT", cfg.PoolVariant)
	cfg.PoolSize = envIntOr("KVS_POOL_SIZE", cfg.PoolSize)
	cfg.ConnRateLimit = envFloatOr("KVS_CONN_RATE_LIMIT", cfg.ConnRateLimit)
	cfg.ConnRateBurst = envIntOr("KVS_CONN_RATE_BURST", cfg.ConnRateBurst)
	cfg.Dev = envBoolOr("KVS_DEV", cfg.Dev)
	return cfg
}

func envOr(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envFloatOr(key string, fallback float64) float64 {
	if v, ok := os.LookupEnv(key); ok {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envBoolOr(key string, fallback bool) bool {
	if v, ok := os.LookupEnv(key); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}
