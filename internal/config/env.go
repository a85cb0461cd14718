package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// EnvPrefix prefixes every environment override
const EnvPrefix = "PLAYERSERVICE_"

func applyEnv(cfg *Config) {
	cfg.LogLevel = envOrDefault("LOG_LEVEL", cfg.LogLevel)

	cfg.Server.Host = envOrDefault("HOST", cfg.Server.Host)
	cfg.Server.Port = envInt("PORT", cfg.Server.Port)
	cfg.Server.ReadHeaderTimeout = envDuration("READ_HEADER_TIMEOUT", cfg.Server.ReadHeaderTimeout)
	cfg.Server.ReadTimeout = envDuration("READ_TIMEOUT", cfg.Server.ReadTimeout)
	cfg.Server.WriteTimeout = envDuration("WRITE_TIMEOUT", cfg.Server.WriteTimeout)
	cfg.Server.IdleTimeout = envDuration("IDLE_TIMEOUT", cfg.Server.IdleTimeout)
	cfg.Server.ShutdownTimeout = envDuration("SHUTDOWN_TIMEOUT", cfg.Server.ShutdownTimeout)

	cfg.Storage.Type = strings.ToLower(envOrDefault("STORAGE_TYPE", cfg.Storage.Type))
	cfg.Storage.MongoURI = envOrDefault("MONGO_URI", cfg.Storage.MongoURI)
	cfg.Storage.MongoDatabase = envOrDefault("MONGO_DATABASE", cfg.Storage.MongoDatabase)

	cfg.Lockout.Store = strings.ToLower(envOrDefault("LOCKOUT_STORE", cfg.Lockout.Store))
	cfg.Lockout.RedisURL = envOrDefault("REDIS_URL", cfg.Lockout.RedisURL)
	cfg.Lockout.Threshold = envInt("LOCKOUT_THRESHOLD", cfg.Lockout.Threshold)
	cfg.Lockout.CooldownMinutes = envInt("LOCKOUT_COOLDOWN_MINUTES", cfg.Lockout.CooldownMinutes)

	cfg.Token.Mode = strings.ToLower(envOrDefault("TOKEN_MODE", cfg.Token.Mode))
	cfg.Token.Secret = envOrDefault("JWT_SECRET", cfg.Token.Secret)
	cfg.Token.Issuer = envOrDefault("JWT_ISSUER", cfg.Token.Issuer)
	cfg.Token.TTL = envDuration("TOKEN_TTL", cfg.Token.TTL)
	cfg.Token.AuthorityURL = envOrDefault("AUTHORITY_URL", cfg.Token.AuthorityURL)
	cfg.Token.AuthorityAdminToken = envOrDefault("AUTHORITY_ADMIN_TOKEN", cfg.Token.AuthorityAdminToken)
	cfg.Token.Audiences = envCSV("AUDIENCES", cfg.Token.Audiences)

	cfg.Notifier.Mode = strings.ToLower(envOrDefault("NOTIFIER_MODE", cfg.Notifier.Mode))
	cfg.Notifier.BaseURL = envOrDefault("NOTIFIER_URL", cfg.Notifier.BaseURL)
	cfg.Notifier.AdminToken = envOrDefault("NOTIFIER_ADMIN_TOKEN", cfg.Notifier.AdminToken)
	cfg.Notifier.KafkaBrokers = envCSV("KAFKA_BROKERS", cfg.Notifier.KafkaBrokers)
	cfg.Notifier.KafkaTopic = envOrDefault("KAFKA_TOPIC", cfg.Notifier.KafkaTopic)

	cfg.Identity.GoogleJWKSURL = envOrDefault("GOOGLE_JWKS_URL", cfg.Identity.GoogleJWKSURL)
	cfg.Identity.GoogleClientIDs = envCSV("GOOGLE_CLIENT_IDS", cfg.Identity.GoogleClientIDs)
	cfg.Identity.AppleJWKSURL = envOrDefault("APPLE_JWKS_URL", cfg.Identity.AppleJWKSURL)
	cfg.Identity.AppleClientIDs = envCSV("APPLE_CLIENT_IDS", cfg.Identity.AppleClientIDs)
	cfg.Identity.PlariumTokenURL = envOrDefault("PLARIUM_TOKEN_URL", cfg.Identity.PlariumTokenURL)
	cfg.Identity.PlariumAuthURL = envOrDefault("PLARIUM_AUTH_URL", cfg.Identity.PlariumAuthURL)
	cfg.Identity.PlariumGameID = envOrDefault("PLARIUM_GAME_ID", cfg.Identity.PlariumGameID)
	cfg.Identity.PlariumSecret = envOrDefault("PLARIUM_SECRET", cfg.Identity.PlariumSecret)
	cfg.Identity.PlariumPrivateKey = envOrDefault("PLARIUM_PRIVATE_KEY", cfg.Identity.PlariumPrivateKey)
	cfg.Identity.PlariumClientID = envInt("PLARIUM_CLIENT_ID", cfg.Identity.PlariumClientID)
	cfg.Identity.PlariumRedirect = envOrDefault("PLARIUM_REDIRECT_URI", cfg.Identity.PlariumRedirect)

	cfg.Outbound.Retries = envInt("OUTBOUND_RETRIES", cfg.Outbound.Retries)
	cfg.Outbound.BaseDelay = envDuration("OUTBOUND_BASE_DELAY", cfg.Outbound.BaseDelay)
	cfg.Outbound.MaxDelay = envDuration("OUTBOUND_MAX_DELAY", cfg.Outbound.MaxDelay)
	cfg.Outbound.Timeout = envDuration("OUTBOUND_TIMEOUT", cfg.Outbound.Timeout)

	cfg.Pages.ConfirmSuccess = envOrDefault("CONFIRM_SUCCESS_URL", cfg.Pages.ConfirmSuccess)
	cfg.Pages.ConfirmFailure = envOrDefault("CONFIRM_FAILURE_URL", cfg.Pages.ConfirmFailure)

	cfg.Admin.KeyHash = envOrDefault("ADMIN_KEY_HASH", cfg.Admin.KeyHash)
	cfg.Admin.ErasePlaceholder = envOrDefault("ERASE_PLACEHOLDER", cfg.Admin.ErasePlaceholder)

	cfg.SweepInterval = envDuration("SWEEP_INTERVAL", cfg.SweepInterval)
	cfg.Maintenance = envBool("MAINTENANCE", cfg.Maintenance)
}

// envOrDefault returns the prefixed env var when present, otherwise fallback
func envOrDefault(name, fallback string) string {
	if value := os.Getenv(EnvPrefix + name); value != "" {
		return value
	}
	return fallback
}

// envInt falls back on empty or invalid values
func envInt(name string, fallback int) int {
	raw := os.Getenv(EnvPrefix + name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}

func envDuration(name string, fallback time.Duration) time.Duration {
	raw := os.Getenv(EnvPrefix + name)
	if raw == "" {
		return fallback
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}
	return v
}

func envBool(name string, fallback bool) bool {
	raw := os.Getenv(EnvPrefix + name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return fallback
	}
	return v
}

// envCSV splits a comma-separated env var, dropping empty segments
func envCSV(name string, fallback []string) []string {
	raw := os.Getenv(EnvPrefix + name)
	if raw == "" {
		return fallback
	}
	var parts []string
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			parts = append(parts, trimmed)
		}
	}
	if len(parts) == 0 {
		return fallback
	}
	return parts
}
