// Package config loads the ambient settings a host process embedding
// the core needs, mirroring the teacher's pkg/config shape (env vars
// read once at startup, defaults applied, passed in explicitly rather
// than read from module-level state — spec §9 "Global state /
// singletons... are constructed once at process startup and passed in
// explicitly"). The core itself consumes none of these directly (spec
// §6.3): they exist for a host's convenience, under the LEGALIS_
// namespace since the core has no HTTP surface of its own to inherit a
// bare-name convention from.
package config

import (
	"os"
	"strconv"
)

// Config holds the settings a host may read to configure logging, the
// Simulator's default worker pool size, and where it sends Audit
// records.
type Config struct {
	LogLevel    string
	WorkerCount int
	AuditSink   string
	DatabaseURL string
	RedisAddr   string
}

// Load reads configuration from environment variables, applying
// defaults for anything unset.
func Load() *Config {
	logLevel := os.Getenv("LEGALIS_LOG_LEVEL")
	if logLevel == "" {
		logLevel = "INFO"
	}

	workerCount := 1
	if raw := os.Getenv("LEGALIS_WORKER_COUNT"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			workerCount = n
		}
	}

	auditSink := os.Getenv("LEGALIS_AUDIT_SINK")
	if auditSink == "" {
		auditSink = "memory"
	}

	dbURL := os.Getenv("LEGALIS_DATABASE_URL")
	if dbURL == "" {
		dbURL = "postgres://legalis@localhost:5432/legalis?sslmode=disable"
	}

	redisAddr := os.Getenv("LEGALIS_REDIS_ADDR")
	if redisAddr == "" {
		redisAddr = "localhost:6379"
	}

	return &Config{
		LogLevel:    logLevel,
		WorkerCount: workerCount,
		AuditSink:   auditSink,
		DatabaseURL: dbURL,
		RedisAddr:   redisAddr,
	}
}
