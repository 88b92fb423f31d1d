package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		Env:                 "development",
		Port:                "8080",
		StoreDriver:         DriverMemory,
		JWTSecret:           "secure-secret-at-least-32-chars-long",
		DBHost:              "db",
		DBName:              "lumen",
		DBPassword:          "secure-password",
		DBSSLMode:           "require",
		MongoURI:            "mongodb://mongo:27017",
		MongoDatabase:       "lumen",
		TracingSamplerRatio: 1,
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name        string
		mutate      func(c *Config)
		expectError bool
	}{
		{"valid development memory", func(c *Config) {}, false},
		{"missing port", func(c *Config) { c.Port = "" }, true},
		{"missing secret", func(c *Config) { c.JWTSecret = "" }, true},
		{"unknown driver", func(c *Config) { c.StoreDriver = "cassandra" }, true},
		{"mongo without uri", func(c *Config) { c.StoreDriver = DriverMongo; c.MongoURI = "" }, true},
		{"postgres ok", func(c *Config) { c.StoreDriver = DriverPostgres }, false},
		{"sampler out of range", func(c *Config) { c.TracingSamplerRatio = 1.5 }, true},
		{"production memory store", func(c *Config) { c.Env = "production" }, true},
		{"production default secret", func(c *Config) {
			c.Env = "production"
			c.StoreDriver = DriverMongo
			c.JWTSecret = defaultJWTSecret
		}, true},
		{"production short secret", func(c *Config) {
			c.Env = "prod"
			c.StoreDriver = DriverMongo
			c.JWTSecret = "short"
		}, true},
		{"production weak db password", func(c *Config) {
			c.Env = "production"
			c.StoreDriver = DriverPostgres
			c.DBPassword = "password"
		}, true},
		{"production mongo", func(c *Config) {
			c.Env = "production"
			c.StoreDriver = DriverMongo
		}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := validConfig()
			tt.mutate(c)
			err := c.Validate()
			if tt.expectError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestLoad_DefaultsAndEnv(t *testing.T) {
	t.Setenv("APP_ENV", "development")
	t.Setenv("STORE_DRIVER", "postgres")
	t.Setenv("CACHE_TTL_SECONDS", "60")

	c, err := load(viper.New(), t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, "8375", c.Port)
	assert.Equal(t, DriverPostgres, c.StoreDriver)
	assert.Equal(t, time.Minute, c.CacheTTL())
	assert.Equal(t, 25, c.DBMaxOpenConns)
	assert.Equal(t, 100, c.RateLimitPerMinute)
	assert.Equal(t, 7*24*time.Hour, c.TokenTTL())
	assert.Equal(t, 7*24*time.Hour, (&Config{}).TokenTTL())
	assert.Contains(t, c.AllowedOrigins, "http://localhost:5173")
	assert.Contains(t, c.PostgresDSN(), "dbname=lumen")
	assert.Contains(t, c.PostgresDSN(), "sslmode=disable")
}

func TestLoad_ProfileFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yml"), []byte("PORT: \"9000\"\n"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.staging.yml"), []byte("LOG_LEVEL: debug\n"), 0o600))
	t.Setenv("APP_ENV", "staging")

	c, err := load(viper.New(), dir)
	require.NoError(t, err)
	assert.Equal(t, "9000", c.Port)
	assert.Equal(t, "debug", c.LogLevel)
	assert.False(t, c.IsProduction())
}

func TestLoad_MissingProfileFile(t *testing.T) {
	t.Setenv("APP_ENV", "staging")

	_, err := load(viper.New(), t.TempDir())
	assert.Error(t, err)
}
