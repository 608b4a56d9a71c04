package config

import (
	"net/url"
	"testing"
	"time"

	"github.com/jason-s-yu/yudh/internal/game"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	for _, k := range []string{"PORT", "LOG_LEVEL", "PG_HOST", "PG_DATABASE", "REDIS_ADDR", "TOKEN_EXPIRE_TIME", "TOSS_REVEAL_DELAY_MS"} {
		t.Setenv(k, "")
	}

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, logrus.InfoLevel, cfg.LogLevel)
	assert.Empty(t, cfg.PostgresDSN())
	assert.Empty(t, cfg.RedisAddr)
	assert.Zero(t, cfg.TokenExpire)
	assert.Equal(t, game.DefaultTiming(), cfg.Timing)
	assert.Equal(t, 600*time.Second, cfg.MatchInactivity)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("POSTGRES_USER", "yudh")
	t.Setenv("POSTGRES_PASSWORD", "secret")
	t.Setenv("PG_HOST", "db")
	t.Setenv("PG_PORT", "6543")
	t.Setenv("PG_DATABASE", "kurukshetra")
	t.Setenv("REDIS_DB", "3")
	t.Setenv("TOKEN_EXPIRE_TIME", "72h")
	t.Setenv("COMBAT_ACTION_INTERVAL_MS", "250")
	t.Setenv("SETTLE_DELAY_MS", "bogus")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "9000", cfg.Port)
	assert.Equal(t, logrus.DebugLevel, cfg.LogLevel)
	assert.Equal(t, "postgres://yudh:secret@db:6543/kurukshetra", cfg.PostgresDSN())
	assert.Equal(t, 3, cfg.RedisDB)
	assert.Equal(t, 72*time.Hour, cfg.TokenExpire)
	assert.Equal(t, 250*time.Millisecond, cfg.Timing.CombatInterval)
	assert.Equal(t, game.DefaultTiming().Settle, cfg.Timing.Settle, "unparsable values fall back")
}

func TestPostgresDSNEscapesCredentials(t *testing.T) {
	cfg := Config{
		PostgresUser:     "yudh",
		PostgresPassword: "p@ss:w/rd",
		PostgresHost:     "db",
		PostgresPort:     "5432",
		PostgresDatabase: "kurukshetra",
	}
	dsn := cfg.PostgresDSN()
	assert.Equal(t, "postgres://yudh:p%40ss%3Aw%2Frd@db:5432/kurukshetra", dsn)

	u, err := url.Parse(dsn)
	require.NoError(t, err)
	pw, _ := u.User.Password()
	assert.Equal(t, "p@ss:w/rd", pw)
	assert.Equal(t, "db:5432", u.Host)
}

func TestLoadRejectsBadValues(t *testing.T) {
	t.Setenv("LOG_LEVEL", "loud")
	_, err := Load()
	assert.Error(t, err)

	t.Setenv("LOG_LEVEL", "info")
	t.Setenv("TOKEN_EXPIRE_TIME", "soon")
	_, err = Load()
	assert.Error(t, err)
}

func TestLoggerFormat(t *testing.T) {
	cfg := Config{LogLevel: logrus.WarnLevel, LogFormat: "json"}
	logger := cfg.Logger()
	assert.Equal(t, logrus.WarnLevel, logger.GetLevel())
	assert.IsType(t, &logrus.JSONFormatter{}, logger.Formatter)
}
