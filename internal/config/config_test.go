package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// unset clears key for the test and restores it afterwards.
func unset(t *testing.T, keys ...string) {
	t.Helper()
	for _, k := range keys {
		t.Setenv(k, "")
		require.NoError(t, os.Unsetenv(k))
	}
}

func TestLoad_Defaults(t *testing.T) {
	unset(t, "APP_ENV", "QUEUE_NAME", "JWT_TTL", "SUMMARY_CACHE_TTL", "DEFAULT_PROJECT_NAME", "CORS_ALLOWED_ORIGINS", "KAFKA_BROKERS")

	require.NoError(t, Load(""))
	c := Get()

	assert.Equal(t, "dev", c.AppEnv)
	assert.False(t, c.IsProduction())
	assert.Equal(t, "ledger-events", c.QueueName)
	assert.Equal(t, 24*time.Hour, c.JWTTTL)
	assert.Equal(t, 5*time.Minute, c.SummaryCacheTTL)
	assert.Equal(t, "Main Field", c.DefaultProjectName)
	assert.Equal(t, []string{"*"}, c.CorsOrigins())
	assert.Empty(t, c.KafkaBrokerList())
}

func TestLoad_FromFile(t *testing.T) {
	unset(t, "APP_ENV", "JWT_SECRET", "NATIONAL_ID_KEY", "KAFKA_BROKERS", "SCANNER_URLS", "POSTGRES_WRITE_HOST", "POSTGRES_SSLMODE")

	path := filepath.Join(t.TempDir(), ".env")
	content := "APP_ENV=staging\n" +
		"JWT_SECRET=jwt-secret\n" +
		"NATIONAL_ID_KEY=id-key\n" +
		"KAFKA_BROKERS=k1:9092, k2:9092 ,\n" +
		"SCANNER_URLS=http://scanner:8081\n" +
		"POSTGRES_WRITE_HOST=db\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	require.NoError(t, Load(path))
	c := Get()

	assert.Equal(t, "staging", c.AppEnv)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, c.KafkaBrokerList())
	assert.Equal(t, []string{"http://scanner:8081"}, c.ScannerURLList())
	assert.Equal(t, "db", c.PostgresWrite().Host)
	assert.Equal(t, "disable", c.PostgresWrite().SSLMode)
	assert.NoError(t, c.ValidateSecrets())
}

func TestLoad_MissingFile(t *testing.T) {
	err := Load(filepath.Join(t.TempDir(), "nope.env"))
	assert.Error(t, err)
}

func TestValidateSecrets(t *testing.T) {
	long := "0123456789abcdef0123456789abcdef"

	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"dev with secrets", Config{AppEnv: "dev", JWTSecret: "a", NationalIDKey: "b"}, false},
		{"missing jwt", Config{AppEnv: "dev", NationalIDKey: "b"}, true},
		{"missing id key", Config{AppEnv: "dev", JWTSecret: "a"}, true},
		{"production short", Config{AppEnv: "production", JWTSecret: "short", NationalIDKey: long}, true},
		{"production long", Config{AppEnv: "production", JWTSecret: long, NationalIDKey: long}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.ValidateSecrets()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestRedisOptions(t *testing.T) {
	c := &Config{RedisAddr: "localhost:6379", RedisDatabase: 2, RedisPassword: "pw"}
	opts := c.RedisOptions("api")

	assert.Equal(t, []string{"localhost:6379"}, opts.Addrs)
	assert.Equal(t, "api", opts.ClientName)
	assert.Equal(t, 2, opts.DB)
	assert.Equal(t, "pw", opts.Password)
}
