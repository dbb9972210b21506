// Package database owns the pooled Postgres connection the Persistence
// Gateway runs its transactions against. The teacher repo's own
// internal/database/database.go was absent from the retrieval pack (only
// its test file survived) — this file restores it in the same idiom as
// internal/cache's Service type, targeting pgx's pool instead of
// database/sql since pgx is the teacher's actual driver dependency.
package database

import (
	"context"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	_ "github.com/joho/godotenv/autoload"
)

// Service exposes the pooled connection plus a health check, mirroring
// internal/cache.Service.
type Service interface {
	Pool() *pgxpool.Pool
	Health() map[string]string
	Close() error
}

type service struct {
	pool *pgxpool.Pool
}

var (
	host     = getEnv("BLUEPRINT_DB_HOST", "localhost")
	port     = getEnv("BLUEPRINT_DB_PORT", "5432")
	username = getEnv("BLUEPRINT_DB_USERNAME", "postgres")
	password = getEnv("BLUEPRINT_DB_PASSWORD", "postgres")
	database = getEnv("BLUEPRINT_DB_DATABASE", "crashdb")
	dbSchema = getEnv("BLUEPRINT_DB_SCHEMA", "public")
	maxConns = getEnvAsInt("DATABASE_MAX_CONNS", 20)

	dbInstance *service
)

// New returns the process-wide pooled connection, lazily creating it on
// first call (matching internal/cache.New's singleton pattern).
func New() Service {
	if dbInstance != nil {
		return dbInstance
	}

	dsn := fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable&search_path=%s",
		username, password, host, port, database, dbSchema)

	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		log.Fatalf("[DB] invalid connection string: %v", err)
	}
	cfg.MaxConns = int32(maxConns)
	cfg.MaxConnLifetime = time.Hour

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		log.Fatalf("[DB] failed to connect: %v", err)
	}

	dbInstance = &service{pool: pool}
	return dbInstance
}

func (s *service) Pool() *pgxpool.Pool {
	return s.pool
}

func (s *service) Health() map[string]string {
	stats := make(map[string]string)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := s.pool.Ping(ctx); err != nil {
		stats["status"] = "down"
		stats["error"] = fmt.Sprintf("db down: %v", err)
		return stats
	}

	stats["status"] = "up"
	stats["message"] = "It's healthy"

	poolStats := s.pool.Stat()
	stats["acquired_conns"] = strconv.Itoa(int(poolStats.AcquiredConns()))
	stats["idle_conns"] = strconv.Itoa(int(poolStats.IdleConns()))
	stats["total_conns"] = strconv.Itoa(int(poolStats.TotalConns()))

	return stats
}

func (s *service) Close() error {
	log.Printf("[DB] Disconnected from database: %s", database)
	s.pool.Close()
	return nil
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvAsInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if intVal, err := strconv.Atoi(val); err == nil {
			return intVal
		}
	}
	return defaultVal
}
