// internal/config/config.go
package config

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/jason-s-yu/yudh/internal/game"
	"github.com/sirupsen/logrus"
)

// Config is the process configuration read from the environment. Values from a
// .env file are loaded by the godotenv autoload import in each command.
type Config struct {
	Port      string
	LogLevel  logrus.Level
	LogFormat string

	PostgresUser     string
	PostgresPassword string
	PostgresHost     string
	PostgresPort     string
	PostgresDatabase string

	RedisAddr string
	RedisDB   int

	HistorianQueue     string
	HistorianBatchSize int
	HistorianFlush     time.Duration
	MatchInactivity    time.Duration
	TokenExpire        time.Duration
	Timing             game.Timing
}

// Load reads the configuration, applying defaults for unset variables.
func Load() (Config, error) {
	level, err := logrus.ParseLevel(getEnv("LOG_LEVEL", "info"))
	if err != nil {
		return Config{}, fmt.Errorf("LOG_LEVEL: %w", err)
	}
	tokenExpire, err := parseTokenExpire(os.Getenv("TOKEN_EXPIRE_TIME"))
	if err != nil {
		return Config{}, err
	}

	def := game.DefaultTiming()
	return Config{
		Port:      getEnv("PORT", "8080"),
		LogLevel:  level,
		LogFormat: getEnv("LOG_FORMAT", "text"),

		PostgresUser:     os.Getenv("POSTGRES_USER"),
		PostgresPassword: os.Getenv("POSTGRES_PASSWORD"),
		PostgresHost:     os.Getenv("PG_HOST"),
		PostgresPort:     getEnv("PG_PORT", "5432"),
		PostgresDatabase: os.Getenv("PG_DATABASE"),

		RedisAddr: os.Getenv("REDIS_ADDR"),
		RedisDB:   getEnvInt("REDIS_DB", 0),

		HistorianQueue:     getEnv("HISTORIAN_QUEUE_NAME", "yudh_actions"),
		HistorianBatchSize: getEnvInt("HISTORIAN_BATCH_SIZE", 20),
		HistorianFlush:     getEnvMillis("HISTORIAN_FLUSH_MS", 500*time.Millisecond),
		MatchInactivity:    time.Duration(getEnvInt("MATCH_INACTIVITY_TIMEOUT_SEC", 600)) * time.Second,
		TokenExpire:        tokenExpire,
		Timing: game.Timing{
			TossStart:      getEnvMillis("TOSS_START_DELAY_MS", def.TossStart),
			TossReveal:     getEnvMillis("TOSS_REVEAL_DELAY_MS", def.TossReveal),
			PhaseAnnounce:  getEnvMillis("PHASE_ANNOUNCE_DELAY_MS", def.PhaseAnnounce),
			CombatInterval: getEnvMillis("COMBAT_ACTION_INTERVAL_MS", def.CombatInterval),
			Settle:         getEnvMillis("SETTLE_DELAY_MS", def.Settle),
			RoundReset:     getEnvMillis("ROUND_RESET_DELAY_MS", def.RoundReset),
		},
	}, nil
}

// PostgresDSN returns the connection string, or "" when Postgres is not configured.
func (c Config) PostgresDSN() string {
	if c.PostgresHost == "" || c.PostgresDatabase == "" {
		return ""
	}
	dsn := url.URL{
		Scheme: "postgres",
		Host:   net.JoinHostPort(c.PostgresHost, c.PostgresPort),
		Path:   "/" + c.PostgresDatabase,
	}
	if c.PostgresUser != "" {
		dsn.User = url.UserPassword(c.PostgresUser, c.PostgresPassword)
	}
	return dsn.String()
}

// Logger builds the process logger.
func (c Config) Logger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(c.LogLevel)
	if c.LogFormat == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}
	return logger
}

// parseTokenExpire accepts a Go duration, or "never"/"0"/"" for no expiry.
func parseTokenExpire(v string) (time.Duration, error) {
	if v == "" || v == "never" || v == "0" {
		return 0, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("failed to parse token expire time: %w", err)
	}
	return d, nil
}

// getEnv retrieves an environment variable's value or returns a default.
func getEnv(key, defVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defVal
}

// getEnvInt retrieves an integer value from an environment variable or returns a default value.
func getEnvInt(key string, defVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defVal
	}
	return i
}

func getEnvMillis(key string, defVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defVal
	}
	ms, err := strconv.Atoi(v)
	if err != nil || ms < 0 {
		return defVal
	}
	return time.Duration(ms) * time.Millisecond
}
