// Package config loads operator-tunable parameters from the environment,
// following the getEnv/getEnvAsInt convention already used throughout the
// teacher repo (internal/cache, cmd/migrate) rather than introducing a new
// configuration library.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Game holds the Round Engine's fixed, operator-tunable parameters (spec §4.4, §6).
type Game struct {
	CountdownDuration time.Duration
	TickMs            time.Duration
	PostCrashPause    time.Duration
	MinBet            float64
	MaxBet            float64
	DefaultBalance    float64
	HouseEdge         float64
	MaxBetsPerRound   int
	MailboxSize       int
	CrashHistorySize  int
}

// Farming holds the farming-points reward loop's parameters.
type Farming struct {
	Cycle  time.Duration
	Reward int64
}

// DailyLimits holds operator defaults for per-user daily wagering limits.
type DailyLimits struct {
	Enabled       bool
	MaxWager      float64
	MaxLoss       float64
	MaxGames      int
}

// Token holds Credential Service parameters.
type Token struct {
	AccessTTL        time.Duration
	RefreshTTL       time.Duration
	Secret           string
	InactivityReaper time.Duration
}

// Admin holds administrative-route gating parameters.
type Admin struct {
	IPAllowlist        []string
	RegistrationEnabled bool
	RegistrationKey    string
}

// External holds the shared secret used to verify an external platform's
// signed WebApp payload (spec §4.3).
type External struct {
	BotToken string
}

// CORS holds allowed origins for the Request Front-End.
type CORS struct {
	AllowedOrigins string
}

// Database holds the Postgres connection DSN and pool sizing.
type Database struct {
	DSN             string
	MaxConns        int32
	MigrationsPath  string
}

// Redis holds the cache connection parameters.
type Redis struct {
	Addr     string
	Password string
	DB       int
}

// SeedReveal holds the fairness-audit grace period.
type SeedReveal struct {
	Grace time.Duration
}

// Config is the top-level, process-wide configuration.
type Config struct {
	Game        Game
	Farming     Farming
	DailyLimits DailyLimits
	Token       Token
	Admin       Admin
	External    External
	CORS        CORS
	Database    Database
	Redis       Redis
	SeedReveal  SeedReveal
	ListenAddr  string
	Environment string
}

// Load reads Config from the process environment, applying spec §6 defaults
// for anything unset.
func Load() Config {
	return Config{
		Game: Game{
			CountdownDuration: getEnvAsDuration("COUNTDOWN_DURATION", 5*time.Second),
			TickMs:            getEnvAsDuration("TICK_MS", 50*time.Millisecond),
			PostCrashPause:    getEnvAsDuration("POST_CRASH_PAUSE", 3*time.Second),
			MinBet:            getEnvAsFloat("MIN_BET", 1.0),
			MaxBet:            getEnvAsFloat("MAX_BET", 10000.0),
			DefaultBalance:    getEnvAsFloat("DEFAULT_BALANCE", 1000.0),
			HouseEdge:         getEnvAsFloat("HOUSE_EDGE", 0.01),
			MaxBetsPerRound:   getEnvAsInt("MAX_BETS_PER_ROUND_PER_USER", 1),
			MailboxSize:       getEnvAsInt("ENGINE_MAILBOX_SIZE", 1000),
			CrashHistorySize:  getEnvAsInt("CRASH_HISTORY_SIZE", 10),
		},
		Farming: Farming{
			Cycle:  getEnvAsDuration("FARMING_CYCLE", 6*time.Hour),
			Reward: int64(getEnvAsInt("FARMING_REWARD", 6000)),
		},
		DailyLimits: DailyLimits{
			Enabled:  getEnvAsBool("DAILY_LIMITS_ENABLED", true),
			MaxWager: getEnvAsFloat("DAILY_MAX_WAGER", 5000.0),
			MaxLoss:  getEnvAsFloat("DAILY_MAX_LOSS", 2000.0),
			MaxGames: getEnvAsInt("DAILY_MAX_GAMES", 500),
		},
		Token: Token{
			AccessTTL:        getEnvAsDuration("TOKEN_ACCESS_TTL", 7*24*time.Hour),
			RefreshTTL:       getEnvAsDuration("TOKEN_REFRESH_TTL", 30*24*time.Hour),
			Secret:           getEnv("TOKEN_SECRET", "dev-insecure-secret-change-me"),
			InactivityReaper: getEnvAsDuration("SESSION_INACTIVITY_TTL", 24*time.Hour),
		},
		Admin: Admin{
			IPAllowlist:         getEnvAsList("ADMIN_IP_ALLOWLIST"),
			RegistrationEnabled: getEnvAsBool("ADMIN_REGISTRATION_ENABLED", false),
			RegistrationKey:     getEnv("ADMIN_REGISTRATION_KEY", ""),
		},
		External: External{
			BotToken: getEnv("EXTERNAL_BOT_TOKEN", ""),
		},
		CORS: CORS{
			AllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "*"),
		},
		Database: Database{
			DSN:            buildPostgresDSN(),
			MaxConns:       int32(getEnvAsInt("DATABASE_MAX_CONNS", 20)),
			MigrationsPath: getEnv("MIGRATIONS_PATH", "./internal/database/migrations"),
		},
		Redis: Redis{
			Addr:     getEnv("REDIS_URL", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		SeedReveal: SeedReveal{
			Grace: getEnvAsDuration("SEED_REVEAL_GRACE", 5*time.Minute),
		},
		ListenAddr:  getEnv("LISTEN_ADDR", ":8080"),
		Environment: getEnv("ENVIRONMENT", "development"),
	}
}

func buildPostgresDSN() string {
	if dsn := os.Getenv("DATABASE_URL"); dsn != "" {
		return dsn
	}
	return "postgres://" +
		getEnv("BLUEPRINT_DB_USERNAME", "postgres") + ":" +
		getEnv("BLUEPRINT_DB_PASSWORD", "postgres") + "@" +
		getEnv("BLUEPRINT_DB_HOST", "localhost") + ":" +
		getEnv("BLUEPRINT_DB_PORT", "5432") + "/" +
		getEnv("BLUEPRINT_DB_DATABASE", "crashdb") +
		"?sslmode=disable&search_path=" + getEnv("BLUEPRINT_DB_SCHEMA", "public")
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

func getEnvAsFloat(key string, defaultVal float64) float64 {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func getEnvAsBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return defaultVal
}

func getEnvAsDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}

func getEnvAsList(key string) []string {
	val := os.Getenv(key)
	if val == "" {
		return nil
	}
	parts := strings.Split(val, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
