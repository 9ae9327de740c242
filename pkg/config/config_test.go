package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm/logger"
)

func TestLoadRejectsUnknownDriver(t *testing.T) {
	t.Setenv("DB_DRIVER", "mysql")

	cfg, err := Load()
	require.Error(t, err)
	require.Nil(t, cfg)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("DB_DRIVER", "SQLite")
	t.Setenv("DB_SQLITE_PATH", "file::memory:")
	t.Setenv("JWT_EXPIRATION_HOURS", "not-a-number")
	t.Setenv("DB_CONN_MAX_LIFETIME", "30m")
	t.Setenv("DB_LOG_LEVEL", "silent")
	t.Setenv("MAIL_HOST", "smtp.example.com")
	t.Setenv("MAIL_TLS", "true")
	t.Setenv("PAYMENT_CURRENCY", "inr")
	t.Setenv("CLIENT_APP_URL", "https://app.example.com/")

	cfg, err := Load()
	require.NoError(t, err)

	require.Equal(t, "sqlite", cfg.DB.Driver)
	require.Equal(t, "file::memory:", cfg.DB.GetDSN())
	require.Equal(t, 120, cfg.JWT.ExpirationHours)
	require.Equal(t, 30*time.Minute, cfg.DB.ConnMaxLifetime)
	require.Equal(t, logger.Silent, cfg.DB.LogLevel)
	require.True(t, cfg.Mail.Enabled())
	require.True(t, cfg.Mail.TLS)
	require.Equal(t, "INR", cfg.Payment.Currency)
	require.False(t, cfg.Payment.Enabled())
	require.Equal(t, "https://app.example.com", cfg.App.ClientAppURL)
}

func TestPostgresDSN(t *testing.T) {
	c := DBConfig{Driver: "postgres", Host: "db", Port: "5432", User: "u", Password: "p", DBName: "inv", SSLMode: "disable"}
	require.Equal(t, "host=db port=5432 user=u password=p dbname=inv sslmode=disable", c.GetDSN())
}
