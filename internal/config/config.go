// Package config resolves the player service configuration from defaults,
// a YAML file and the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"slices"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/mcoot/playeraccounts/internal/api"
	"github.com/mcoot/playeraccounts/internal/api/handler"
	"github.com/mcoot/playeraccounts/internal/factory"
	"github.com/mcoot/playeraccounts/internal/services/identity"
	"github.com/mcoot/playeraccounts/internal/services/lockout"
	"github.com/mcoot/playeraccounts/internal/services/notify"
	"github.com/mcoot/playeraccounts/internal/services/outbound"
	"github.com/mcoot/playeraccounts/internal/services/token"
	mongostorage "github.com/mcoot/playeraccounts/internal/storage/mongo"
	redisstorage "github.com/mcoot/playeraccounts/internal/storage/redis"
)

// DefaultPath is read when Load is given no path
const DefaultPath = "configs/playerservice.yaml"

// Config is the resolved runtime configuration
type Config struct {
	LogLevel string `yaml:"log_level"`

	Server   ServerConfig   `yaml:"server"`
	Storage  StorageConfig  `yaml:"storage"`
	Lockout  LockoutConfig  `yaml:"lockout"`
	Token    TokenConfig    `yaml:"token"`
	Notifier NotifierConfig `yaml:"notifier"`
	Identity IdentityConfig `yaml:"identity"`
	Outbound OutboundConfig `yaml:"outbound"`
	Pages    PagesConfig    `yaml:"pages"`
	Admin    AdminConfig    `yaml:"admin"`

	SweepInterval time.Duration `yaml:"sweep_interval"`
	Maintenance   bool          `yaml:"maintenance"`
}

type ServerConfig struct {
	Host              string        `yaml:"host"`
	Port              int           `yaml:"port"`
	ReadHeaderTimeout time.Duration `yaml:"read_header_timeout"`
	ReadTimeout       time.Duration `yaml:"read_timeout"`
	WriteTimeout      time.Duration `yaml:"write_timeout"`
	IdleTimeout       time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout   time.Duration `yaml:"shutdown_timeout"`
}

type StorageConfig struct {
	Type          string `yaml:"type"`
	MongoURI      string `yaml:"mongo_uri"`
	MongoDatabase string `yaml:"mongo_database"`
}

type LockoutConfig struct {
	// Store defaults to the player store when empty
	Store           string `yaml:"store"`
	RedisURL        string `yaml:"redis_url"`
	Threshold       int    `yaml:"threshold"`
	CooldownMinutes int    `yaml:"cooldown_minutes"`
}

type TokenConfig struct {
	Mode                string        `yaml:"mode"`
	Secret              string        `yaml:"secret"`
	Issuer              string        `yaml:"issuer"`
	TTL                 time.Duration `yaml:"ttl"`
	AuthorityURL        string        `yaml:"authority_url"`
	AuthorityAdminToken string        `yaml:"authority_admin_token"`
	Audiences           []string      `yaml:"audiences"`
}

type NotifierConfig struct {
	Mode         string   `yaml:"mode"`
	BaseURL      string   `yaml:"base_url"`
	AdminToken   string   `yaml:"admin_token"`
	KafkaBrokers []string `yaml:"kafka_brokers"`
	KafkaTopic   string   `yaml:"kafka_topic"`
}

type IdentityConfig struct {
	GoogleJWKSURL     string   `yaml:"google_jwks_url"`
	GoogleClientIDs   []string `yaml:"google_client_ids"`
	AppleJWKSURL      string   `yaml:"apple_jwks_url"`
	AppleClientIDs    []string `yaml:"apple_client_ids"`
	PlariumTokenURL   string   `yaml:"plarium_token_url"`
	PlariumAuthURL    string   `yaml:"plarium_auth_url"`
	PlariumGameID     string   `yaml:"plarium_game_id"`
	PlariumSecret     string   `yaml:"plarium_secret"`
	PlariumPrivateKey string   `yaml:"plarium_private_key"`
	PlariumClientID   int      `yaml:"plarium_client_id"`
	PlariumRedirect   string   `yaml:"plarium_redirect_uri"`
}

type OutboundConfig struct {
	Retries   int           `yaml:"retries"`
	BaseDelay time.Duration `yaml:"base_delay"`
	MaxDelay  time.Duration `yaml:"max_delay"`
	Timeout   time.Duration `yaml:"timeout"`
}

// PagesConfig are the web pages confirmation links redirect to
type PagesConfig struct {
	ConfirmSuccess string `yaml:"confirm_success"`
	ConfirmFailure string `yaml:"confirm_failure"`
}

type AdminConfig struct {
	// KeyHash is a bcrypt hash of the admin key; empty disables admin routes
	KeyHash          string `yaml:"key_hash"`
	ErasePlaceholder string `yaml:"erase_placeholder"`
}

// Default returns the configuration used before the file and environment are applied
func Default() Config {
	server := api.DefaultServerConfig()
	mongo := mongostorage.DefaultConfig()
	lockoutCfg := lockout.DefaultConfig()
	out := outbound.DefaultConfig()

	return Config{
		LogLevel: "info",
		Server: ServerConfig{
			Host:              server.Host,
			Port:              server.Port,
			ReadHeaderTimeout: server.ReadHeaderTimeout,
			ReadTimeout:       server.ReadTimeout,
			WriteTimeout:      server.WriteTimeout,
			IdleTimeout:       server.IdleTimeout,
			ShutdownTimeout:   server.ShutdownTimeout,
		},
		Storage: StorageConfig{
			Type:          factory.StorageTypeMemory,
			MongoURI:      mongo.URI,
			MongoDatabase: mongo.Database,
		},
		Lockout: LockoutConfig{
			RedisURL:        redisstorage.DefaultConfig().URL,
			Threshold:       lockoutCfg.Threshold,
			CooldownMinutes: lockoutCfg.CooldownMinutes,
		},
		Token: TokenConfig{
			Mode:   factory.TokenModeLocal,
			Issuer: "player-service",
			TTL:    24 * time.Hour,
		},
		Notifier: NotifierConfig{
			Mode:       factory.NotifierModeLog,
			KafkaTopic: "player-account-notifications",
		},
		Outbound: OutboundConfig{
			Retries:   out.Retries,
			BaseDelay: out.BaseDelay,
			MaxDelay:  out.MaxDelay,
			Timeout:   out.Timeout,
		},
		Pages: PagesConfig{
			ConfirmSuccess: "https://localhost/email/success?otp={otp}",
			ConfirmFailure: "https://localhost/email/failure?reason={reason}",
		},
		Admin: AdminConfig{
			ErasePlaceholder: handler.DefaultErasePlaceholder,
		},
		SweepInterval: time.Minute,
	}
}

// Load resolves configuration in priority order: defaults, then the YAML file
// at path, then environment variables. A .env file in the working directory is
// loaded into the environment first without overriding variables already set.
// An empty path reads DefaultPath, which may be absent.
func Load(path string) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	cfg := Default()

	optional := path == ""
	if optional {
		path = DefaultPath
	}
	raw, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config file %s: %w", path, err)
		}
	case optional && errors.Is(err, fs.ErrNotExist):
	default:
		return Config{}, fmt.Errorf("read config file: %w", err)
	}

	applyEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects settings the factory cannot wire
func (c Config) Validate() error {
	var errs []error
	if !slices.Contains([]string{factory.StorageTypeMemory, factory.StorageTypeMongo}, c.Storage.Type) {
		errs = append(errs, fmt.Errorf("storage.type must be memory or mongo, got %q", c.Storage.Type))
	}
	if c.Lockout.Store != "" && !slices.Contains([]string{factory.StorageTypeMemory, factory.StorageTypeMongo, factory.StorageTypeRedis}, c.Lockout.Store) {
		errs = append(errs, fmt.Errorf("lockout.store must be memory, mongo or redis, got %q", c.Lockout.Store))
	}
	switch c.Token.Mode {
	case factory.TokenModeLocal:
	case factory.TokenModeRemote:
		if c.Token.AuthorityURL == "" {
			errs = append(errs, errors.New("token.authority_url is required in remote mode"))
		}
	default:
		errs = append(errs, fmt.Errorf("token.mode must be local or remote, got %q", c.Token.Mode))
	}
	if c.Token.Secret == "" {
		errs = append(errs, errors.New("token.secret is required"))
	}
	switch c.Notifier.Mode {
	case factory.NotifierModeLog:
	case factory.NotifierModeHTTP:
		if c.Notifier.BaseURL == "" {
			errs = append(errs, errors.New("notifier.base_url is required in http mode"))
		}
	case factory.NotifierModeKafka:
		if len(c.Notifier.KafkaBrokers) == 0 || c.Notifier.KafkaTopic == "" {
			errs = append(errs, errors.New("notifier.kafka_brokers and notifier.kafka_topic are required in kafka mode"))
		}
	default:
		errs = append(errs, fmt.Errorf("notifier.mode must be log, http or kafka, got %q", c.Notifier.Mode))
	}
	if c.Server.Port <= 0 {
		errs = append(errs, fmt.Errorf("server.port must be positive, got %d", c.Server.Port))
	}
	if c.SweepInterval <= 0 {
		errs = append(errs, errors.New("sweep_interval must be positive"))
	}
	if _, err := c.Level(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Level parses LogLevel
func (c Config) Level() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("log_level: %w", err)
	}
	return level, nil
}

// HTTPServer returns the API server settings
func (c Config) HTTPServer() api.ServerConfig {
	return api.ServerConfig(c.Server)
}

// ConfirmationPages returns the confirmation redirect targets
func (c Config) ConfirmationPages() handler.ConfirmationPages {
	return handler.ConfirmationPages{
		Success: c.Pages.ConfirmSuccess,
		Failure: c.Pages.ConfirmFailure,
	}
}

// Factory translates the configuration into factory settings
func (c Config) Factory(logger *slog.Logger) factory.Config {
	fc := factory.Config{
		Logger:           logger,
		StorageType:      c.Storage.Type,
		LockoutStoreType: c.Lockout.Store,
		Lockout: &lockout.Config{
			Threshold:       c.Lockout.Threshold,
			CooldownMinutes: c.Lockout.CooldownMinutes,
		},
		TokenMode: c.Token.Mode,
		Signer: token.SignerConfig{
			Secret:    c.Token.Secret,
			Issuer:    c.Token.Issuer,
			TTL:       c.Token.TTL,
			Audiences: c.Token.Audiences,
		},
		Authority: token.AuthorityConfig{
			BaseURL:    c.Token.AuthorityURL,
			AdminToken: c.Token.AuthorityAdminToken,
		},
		Audiences:    c.Token.Audiences,
		NotifierMode: c.Notifier.Mode,
		NotifierHTTP: notify.HTTPConfig{
			BaseURL:    c.Notifier.BaseURL,
			AdminToken: c.Notifier.AdminToken,
		},
		KafkaBrokers: c.Notifier.KafkaBrokers,
		KafkaTopic:   c.Notifier.KafkaTopic,
		Google: identity.GoogleConfig{
			JWKSURL:   c.Identity.GoogleJWKSURL,
			ClientIDs: c.Identity.GoogleClientIDs,
		},
		Apple: identity.AppleConfig{
			JWKSURL:   c.Identity.AppleJWKSURL,
			ClientIDs: c.Identity.AppleClientIDs,
		},
		Plarium: identity.PlariumConfig{
			TokenURL:    c.Identity.PlariumTokenURL,
			AuthURL:     c.Identity.PlariumAuthURL,
			GameID:      c.Identity.PlariumGameID,
			Secret:      c.Identity.PlariumSecret,
			PrivateKey:  c.Identity.PlariumPrivateKey,
			ClientID:    c.Identity.PlariumClientID,
			RedirectURI: c.Identity.PlariumRedirect,
		},
		Outbound: outbound.Config{
			Retries:   c.Outbound.Retries,
			BaseDelay: c.Outbound.BaseDelay,
			MaxDelay:  c.Outbound.MaxDelay,
			Timeout:   c.Outbound.Timeout,
		},
		Maintenance: c.Maintenance,
	}

	if c.Storage.Type == factory.StorageTypeMongo || c.Lockout.Store == factory.StorageTypeMongo {
		mongo := mongostorage.DefaultConfig()
		mongo.URI = c.Storage.MongoURI
		mongo.Database = c.Storage.MongoDatabase
		fc.MongoConfig = &mongo
	}
	if c.Lockout.Store == factory.StorageTypeRedis {
		redis := redisstorage.DefaultConfig()
		redis.URL = c.Lockout.RedisURL
		fc.RedisConfig = &redis
	}
	return fc
}
