package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// clearEnv blanks variables that a developer machine or CI runner may already export.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{"PORT", "SMTP_HOST", "CORS_ALLOWED_ORIGINS", "JWT_TOKEN_DURATION",
		"PASSWORD_RESET_DURATION", "BCRYPT_COST", "DB_POOL_SIZE", "DB_PORT", "RESET_SWEEP_INTERVAL", "MONGODB_DATABASE"} {
		t.Setenv(key, "")
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("STORE_DRIVER", "memory")
	t.Setenv("JWT_SECRET", "s3cret")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	require.Equal(t, StoreDriverMemory, cfg.Store.Driver)
	require.Equal(t, 30*24*time.Hour, cfg.Auth.TokenDuration)
	require.Equal(t, 10*time.Minute, cfg.Auth.PasswordResetDuration)
	require.Equal(t, 10, cfg.Auth.BcryptCost)
	require.Equal(t, "5000", cfg.Server.Port)
	require.Equal(t, []string{"*"}, cfg.Server.CORSAllowedOrigins)
	require.Empty(t, cfg.Mail.Host)
}

func TestLoadConfigCollectsAllErrors(t *testing.T) {
	clearEnv(t)
	t.Setenv("STORE_DRIVER", "postgres")
	t.Setenv("JWT_SECRET", "")
	t.Setenv("DB_USER", "")
	t.Setenv("DB_PASSWORD", "")
	t.Setenv("DB_NAME", "")
	t.Setenv("JWT_TOKEN_DURATION", "forever")

	_, err := LoadConfig()
	require.Error(t, err)
	msg := err.Error()
	for _, key := range []string{"JWT_SECRET", "DB_USER", "DB_PASSWORD", "DB_NAME", "JWT_TOKEN_DURATION"} {
		require.Contains(t, msg, key)
	}
}

func TestLoadConfigMongo(t *testing.T) {
	clearEnv(t)
	t.Setenv("STORE_DRIVER", "mongo")
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("MONGODB_URL", "mongodb://localhost:27017")
	t.Setenv("CORS_ALLOWED_ORIGINS", "http://a.test, http://b.test,")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	require.Equal(t, "blog", cfg.Store.Mongo.Database)
	require.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.Server.CORSAllowedOrigins)
}

func TestLoadConfigRejectsUnknownDriver(t *testing.T) {
	clearEnv(t)
	t.Setenv("STORE_DRIVER", "cassandra")
	t.Setenv("JWT_SECRET", "s3cret")

	_, err := LoadConfig()
	require.ErrorContains(t, err, "STORE_DRIVER")
}

func TestClampPoolSize(t *testing.T) {
	var errs []string
	require.Equal(t, 5, clampPoolSize(1, "DB_POOL_SIZE", &errs))
	require.Equal(t, 100, clampPoolSize(500, "DB_POOL_SIZE", &errs))
	require.Equal(t, 20, clampPoolSize(20, "DB_POOL_SIZE", &errs))
	require.Len(t, errs, 2)
}
