package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcoot/playeraccounts/internal/factory"
)

func writeFile(t *testing.T, dir, name, contents string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))
	return path
}

func TestLoadDefaultsWithoutFile(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv(EnvPrefix+"JWT_SECRET", "s3cret")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, factory.StorageTypeMemory, cfg.Storage.Type)
	assert.Equal(t, factory.TokenModeLocal, cfg.Token.Mode)
	assert.Equal(t, factory.NotifierModeLog, cfg.Notifier.Mode)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 5, cfg.Lockout.Threshold)
	assert.Equal(t, time.Minute, cfg.SweepInterval)
	assert.Equal(t, "s3cret", cfg.Token.Secret)
}

func TestLoadExplicitPathMustExist(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestLoadFileThenEnv(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	path := writeFile(t, dir, "service.yaml", `
log_level: debug
server:
  port: 9000
  write_timeout: 45s
storage:
  type: mongo
  mongo_uri: mongodb://db:27017
  mongo_database: players
lockout:
  store: redis
  redis_url: redis://cache:6379
  threshold: 3
token:
  secret: from-file
  audiences: [game, web]
notifier:
  mode: kafka
  kafka_brokers: [k1:9092]
sweep_interval: 30s
`)
	t.Setenv(EnvPrefix+"PORT", "9100")
	t.Setenv(EnvPrefix+"LOCKOUT_THRESHOLD", "not-a-number")
	t.Setenv(EnvPrefix+"KAFKA_BROKERS", "k1:9092, k2:9092,")
	t.Setenv(EnvPrefix+"MAINTENANCE", "true")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 9100, cfg.Server.Port)
	assert.Equal(t, 45*time.Second, cfg.Server.WriteTimeout)
	assert.Equal(t, 15*time.Second, cfg.Server.ReadTimeout, "unset keys keep their defaults")
	assert.Equal(t, 3, cfg.Lockout.Threshold, "invalid env values are ignored")
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Notifier.KafkaBrokers)
	assert.Equal(t, 30*time.Second, cfg.SweepInterval)
	assert.True(t, cfg.Maintenance)

	fc := cfg.Factory(nil)
	require.NotNil(t, fc.MongoConfig)
	assert.Equal(t, "mongodb://db:27017", fc.MongoConfig.URI)
	assert.Equal(t, "players", fc.MongoConfig.Database)
	require.NotNil(t, fc.RedisConfig)
	assert.Equal(t, "redis://cache:6379", fc.RedisConfig.URL)
	assert.Equal(t, 3, fc.Lockout.Threshold)
	assert.Equal(t, []string{"game", "web"}, fc.Audiences)
	assert.Equal(t, "from-file", fc.Signer.Secret)
	assert.True(t, fc.Maintenance)

	assert.Equal(t, 9100, cfg.HTTPServer().Port)
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	writeFile(t, dir, ".env", "PLAYERSERVICE_JWT_SECRET=from-dotenv\nPLAYERSERVICE_STORAGE_TYPE=MEMORY\n")
	// .env never overrides a variable that is already set
	for _, key := range []string{"JWT_SECRET", "STORAGE_TYPE"} {
		t.Setenv(EnvPrefix+key, "")
		require.NoError(t, os.Unsetenv(EnvPrefix+key))
	}

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "from-dotenv", cfg.Token.Secret)
	assert.Equal(t, factory.StorageTypeMemory, cfg.Storage.Type)
}

func TestValidate(t *testing.T) {
	valid := Default()
	valid.Token.Secret = "s3cret"
	require.NoError(t, valid.Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing secret", func(c *Config) { c.Token.Secret = "" }},
		{"unknown storage", func(c *Config) { c.Storage.Type = "postgres" }},
		{"unknown lockout store", func(c *Config) { c.Lockout.Store = "etcd" }},
		{"remote without authority", func(c *Config) { c.Token.Mode = factory.TokenModeRemote }},
		{"http notifier without url", func(c *Config) { c.Notifier.Mode = factory.NotifierModeHTTP }},
		{"kafka without brokers", func(c *Config) { c.Notifier.Mode = factory.NotifierModeKafka }},
		{"bad log level", func(c *Config) { c.LogLevel = "chatty" }},
		{"zero sweep interval", func(c *Config) { c.SweepInterval = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestConfirmationPages(t *testing.T) {
	cfg := Default()
	cfg.Pages.ConfirmSuccess = "https://play.example/ok/{otp}"

	pages := cfg.ConfirmationPages()
	assert.Equal(t, "https://play.example/ok/{otp}", pages.Success)
	assert.Equal(t, cfg.Pages.ConfirmFailure, pages.Failure)
}
