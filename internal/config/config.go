package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Load reads the .env file specified by BELIEFGRAPH_ENV (or .env by default),
// then loads the corresponding .secret file if it exists.
// All config is flat env vars read via os.Getenv after loading.
func Load() error {
	envFile := os.Getenv("BELIEFGRAPH_ENV")
	if envFile == "" {
		envFile = ".env"
	}

	// Load main env file (ignore error if file doesn't exist)
	_ = godotenv.Load(envFile)

	// Load secret sidecar if it exists
	_ = godotenv.Load(envFile + ".secret")

	return nil
}

func ServerPort() int {
	port, err := strconv.Atoi(os.Getenv("SERVER_PORT"))
	if err != nil {
		return 8080
	}
	return port
}

func ServerAddr() string {
	return fmt.Sprintf(":%d", ServerPort())
}

func DatabaseURL() string {
	return os.Getenv("DATABASE_URL")
}

func MigrationsPath() string {
	p := os.Getenv("MIGRATIONS_PATH")
	if p == "" {
		return "migrations"
	}
	return p
}

func floatEnv(key string, def float64) float64 {
	v, err := strconv.ParseFloat(os.Getenv(key), 64)
	if err != nil {
		return def
	}
	return v
}

func intEnv(key string, def int) int {
	v, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return def
	}
	return v
}

func durationEnv(key string, def time.Duration) time.Duration {
	v, err := time.ParseDuration(os.Getenv(key))
	if err != nil {
		return def
	}
	return v
}

// Hybrid score weights. They must sum to 1.0; the score engine validates this
// at startup and the server refuses to boot otherwise.
func ScoreWeightReasonRank() float64 { return floatEnv("SCORE_WEIGHT_REASONRANK", 0.50) }
func ScoreWeightVotes() float64      { return floatEnv("SCORE_WEIGHT_VOTES", 0.35) }
func ScoreWeightAspects() float64    { return floatEnv("SCORE_WEIGHT_ASPECTS", 0.15) }

// NetworkDamping is the influence iteration damping term. The exact constant
// is a tunable, not a contract.
func NetworkDamping() float64 { return floatEnv("NETWORK_DAMPING", 0.15) }

func InfluenceMaxRounds() int { return intEnv("INFLUENCE_MAX_ROUNDS", 100) }

func InfluenceEpsilon() float64 { return floatEnv("INFLUENCE_EPSILON", 1e-6) }

// AnalyticsInterval is the full-pass cadence; IncrementalInterval is how often
// the touched set is drained between full passes.
func AnalyticsInterval() time.Duration { return durationEnv("ANALYTICS_INTERVAL", 5*time.Minute) }

func IncrementalInterval() time.Duration { return durationEnv("INCREMENTAL_INTERVAL", 30*time.Second) }

func EventWorkers() int { return intEnv("EVENT_WORKERS", 4) }

func EventQueueSize() int { return intEnv("EVENT_QUEUE_SIZE", 256) }

// SignalTimeout bounds a single read from the upstream signal source.
func SignalTimeout() time.Duration { return durationEnv("SIGNAL_TIMEOUT", 2*time.Second) }

func RecomputeMaxRetries() int { return intEnv("RECOMPUTE_MAX_RETRIES", 3) }

func RecomputeBackoff() time.Duration { return durationEnv("RECOMPUTE_BACKOFF", 100*time.Millisecond) }

func TopKLimit() int { return intEnv("TOPK_LIMIT", 10) }

// RateLimitRPS returns requests per second limit.
// Defaults to 100 if not set.
func RateLimitRPS() float64 {
	rps, err := strconv.ParseFloat(os.Getenv("RATE_LIMIT_RPS"), 64)
	if err != nil || rps <= 0 {
		return 100
	}
	return rps
}

// RateLimitBurst returns the burst size for rate limiting.
// Defaults to 20 if not set.
func RateLimitBurst() int {
	burst, err := strconv.Atoi(os.Getenv("RATE_LIMIT_BURST"))
	if err != nil || burst <= 0 {
		return 20
	}
	return burst
}

// LogLevel returns the log level (debug, info, warn, error).
// Defaults to "info" if not set.
func LogLevel() string {
	level := os.Getenv("LOG_LEVEL")
	if level == "" {
		return "info"
	}
	return level
}
