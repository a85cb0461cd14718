package factory

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/mcoot/playeraccounts/internal/dependencies/clock"
	"github.com/mcoot/playeraccounts/internal/dependencies/random"
	"github.com/mcoot/playeraccounts/internal/services/account"
	"github.com/mcoot/playeraccounts/internal/services/confirmation"
	"github.com/mcoot/playeraccounts/internal/services/discriminator"
	"github.com/mcoot/playeraccounts/internal/services/identity"
	"github.com/mcoot/playeraccounts/internal/services/lockout"
	"github.com/mcoot/playeraccounts/internal/services/login"
	"github.com/mcoot/playeraccounts/internal/services/names"
	"github.com/mcoot/playeraccounts/internal/services/notify"
	"github.com/mcoot/playeraccounts/internal/services/outbound"
	"github.com/mcoot/playeraccounts/internal/services/token"
	"github.com/mcoot/playeraccounts/internal/storage"
	"github.com/mcoot/playeraccounts/internal/storage/memory"
	mongostorage "github.com/mcoot/playeraccounts/internal/storage/mongo"
	redisstorage "github.com/mcoot/playeraccounts/internal/storage/redis"
)

// Storage type constants
const (
	StorageTypeMemory = "memory"
	StorageTypeMongo  = "mongo"
	StorageTypeRedis  = "redis"
)

// Token modes
const (
	TokenModeLocal  = "local"
	TokenModeRemote = "remote"
)

// Notifier modes
const (
	NotifierModeLog   = "log"
	NotifierModeHTTP  = "http"
	NotifierModeKafka = "kafka"
)

// App contains all wired application components
type App struct {
	// Storage
	Storage    storage.Players
	AccessLogs storage.AccessLogs

	// External dependencies
	Clock            clock.Clock
	Random           random.Random
	Notifier         notify.Notifier
	Issuer           token.Issuer
	Verifier         *token.Signer
	OneTimePasswords token.OneTimePasswords
	Validator        identity.Validator

	// Services
	Names         *names.Generator
	Discriminator *discriminator.Assigner
	Confirmation  *confirmation.Service
	Lockout       *lockout.Guard
	Resolver      *account.Resolver
	Orchestrator  *login.Orchestrator

	closers []func(context.Context) error
}

// Config holds configuration for the application factory
type Config struct {
	// Logger is the application logger (optional)
	// If nil, a no-op logger is used
	Logger *slog.Logger

	// StorageType selects the player store ("memory" or "mongo")
	// If empty, defaults to "memory"
	StorageType string
	// MongoConfig holds MongoDB connection settings (required if either store is "mongo")
	MongoConfig *mongostorage.Config

	// LockoutStoreType selects where failed logins are kept ("memory", "mongo" or "redis")
	// If empty, the player store is used
	LockoutStoreType string
	// RedisConfig holds Redis connection settings (required if LockoutStoreType is "redis")
	RedisConfig *redisstorage.Config
	// Lockout holds the lockout thresholds
	// If nil, defaults to lockout.DefaultConfig()
	Lockout *lockout.Config

	// TokenMode selects local signing or the remote token authority
	// If empty, defaults to "local"
	TokenMode string
	// Signer signs tokens in local mode and verifies bearer tokens in both modes
	Signer    token.SignerConfig
	Authority token.AuthorityConfig
	Audiences []string

	// NotifierMode selects how account emails are delivered ("log", "http" or "kafka")
	// If empty, defaults to "log"
	NotifierMode string
	NotifierHTTP notify.HTTPConfig
	KafkaBrokers []string
	KafkaTopic   string

	// Providers without a configured endpoint reject their credentials
	Google  identity.GoogleConfig
	Apple   identity.AppleConfig
	Plarium identity.PlariumConfig

	// Outbound holds retry settings for collaborator calls
	// If zero value, defaults to outbound.DefaultConfig()
	Outbound outbound.Config

	Maintenance bool
}

// dependencies are the collaborators newWithDependencies wires services over
type dependencies struct {
	players   storage.Players
	logs      storage.AccessLogs
	clock     clock.Clock
	random    random.Random
	notifier  notify.Notifier
	issuer    token.Issuer
	verifier  *token.Signer
	otp       token.OneTimePasswords
	validator identity.Validator
	lockout   lockout.Config
	audiences []string
	login     login.Config
	logger    *slog.Logger
}

// New creates a new application with all dependencies wired
func New(ctx context.Context, cfg Config) (*App, error) {
	// Use no-op logger if not provided
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}

	var closers []func(context.Context) error
	fail := func(err error) (*App, error) {
		for _, c := range closers {
			_ = c(ctx)
		}
		return nil, err
	}

	clk := clock.New()
	rnd := random.New()

	outboundCfg := cfg.Outbound
	if outboundCfg == (outbound.Config{}) {
		outboundCfg = outbound.DefaultConfig()
	}
	client := outbound.New(outboundCfg, logger)

	// Create storage based on type
	storageType := cfg.StorageType
	if storageType == "" {
		storageType = StorageTypeMemory
	}

	var players storage.Players
	var playerLogs storage.AccessLogs
	var mongoStore *mongostorage.Storage
	connectMongo := func() (*mongostorage.Storage, error) {
		if mongoStore != nil {
			return mongoStore, nil
		}
		if cfg.MongoConfig == nil {
			return nil, errors.New("MongoConfig required when a store is mongo")
		}
		store, err := mongostorage.New(ctx, *cfg.MongoConfig)
		if err != nil {
			return nil, err
		}
		closers = append(closers, store.Close)
		mongoStore = store
		return store, nil
	}

	switch storageType {
	case StorageTypeMemory:
		store := memory.New()
		players, playerLogs = store, store
	case StorageTypeMongo:
		store, err := connectMongo()
		if err != nil {
			return fail(err)
		}
		players, playerLogs = store, store
	default:
		return fail(errors.New("invalid StorageType: must be 'memory' or 'mongo'"))
	}

	var logs storage.AccessLogs
	switch cfg.LockoutStoreType {
	case "":
		logs = playerLogs
	case StorageTypeMemory:
		logs = memory.New()
	case StorageTypeMongo:
		store, err := connectMongo()
		if err != nil {
			return fail(err)
		}
		logs = store
	case StorageTypeRedis:
		if cfg.RedisConfig == nil {
			return fail(errors.New("RedisConfig required when LockoutStoreType is redis"))
		}
		redisStore, err := redisstorage.New(*cfg.RedisConfig)
		if err != nil {
			return fail(err)
		}
		closers = append(closers, func(context.Context) error { return redisStore.Close() })
		logs = redisStore
	default:
		return fail(errors.New("invalid LockoutStoreType: must be 'memory', 'mongo' or 'redis'"))
	}

	// Tokens are always verified locally; remote mode only changes who signs them
	signer, err := token.NewSigner(cfg.Signer, clk)
	if err != nil {
		return fail(err)
	}
	var issuer token.Issuer = signer
	var otp token.OneTimePasswords = signer
	switch cfg.TokenMode {
	case "", TokenModeLocal:
	case TokenModeRemote:
		authority := token.NewAuthorityClient(client, cfg.Authority)
		issuer, otp = authority, authority
	default:
		return fail(fmt.Errorf("invalid TokenMode %q: must be 'local' or 'remote'", cfg.TokenMode))
	}

	var sender notify.Sender
	switch cfg.NotifierMode {
	case "", NotifierModeLog:
		sender = notify.NewLogSender(logger)
	case NotifierModeHTTP:
		sender = notify.NewHTTPSender(client, cfg.NotifierHTTP)
	case NotifierModeKafka:
		kafkaSender, err := notify.NewKafkaSender(cfg.KafkaBrokers, cfg.KafkaTopic)
		if err != nil {
			return fail(err)
		}
		closers = append(closers, func(context.Context) error { return kafkaSender.Close() })
		sender = kafkaSender
	default:
		return fail(fmt.Errorf("invalid NotifierMode %q: must be 'log', 'http' or 'kafka'", cfg.NotifierMode))
	}

	lockoutCfg := lockout.DefaultConfig()
	if cfg.Lockout != nil {
		lockoutCfg = *cfg.Lockout
	}

	app := newWithDependencies(dependencies{
		players:   players,
		logs:      logs,
		clock:     clk,
		random:    rnd,
		notifier:  notify.New(sender),
		issuer:    issuer,
		verifier:  signer,
		otp:       otp,
		validator: newValidator(cfg, client, clk),
		lockout:   lockoutCfg,
		audiences: cfg.Audiences,
		login:     login.Config{Maintenance: cfg.Maintenance},
		logger:    logger,
	})
	app.closers = closers
	return app, nil
}

func newValidator(cfg Config, client *outbound.Client, clk clock.Clock) *identity.Service {
	var google *identity.GoogleValidator
	if cfg.Google.JWKSURL != "" {
		google = identity.NewGoogleValidator(cfg.Google, client, clk)
	}
	var apple *identity.AppleValidator
	if cfg.Apple.JWKSURL != "" {
		apple = identity.NewAppleValidator(cfg.Apple, client, clk)
	}
	var plarium *identity.PlariumValidator
	if cfg.Plarium.TokenURL != "" || cfg.Plarium.AuthURL != "" {
		plarium = identity.NewPlariumValidator(cfg.Plarium, client)
	}
	return identity.New(google, apple, plarium)
}

// newWithDependencies creates an App with the given dependencies (useful for testing)
func newWithDependencies(d dependencies) *App {
	generator := names.New(d.random)
	assigner := discriminator.New(d.players, d.random, d.logger)
	confirmationService := confirmation.New(d.players, d.notifier, d.clock, d.random, d.logger)
	guard := lockout.New(d.logs, d.clock, d.lockout, d.logger)
	resolver := account.New(d.players, assigner, generator, confirmationService, guard, d.issuer, d.clock,
		account.Config{Audiences: d.audiences}, d.logger)
	orchestrator := login.New(resolver, confirmationService, d.validator, guard, assigner, generator,
		d.players, d.notifier, d.clock, d.login, d.logger)

	return &App{
		Storage:          d.players,
		AccessLogs:       d.logs,
		Clock:            d.clock,
		Random:           d.random,
		Notifier:         d.notifier,
		Issuer:           d.issuer,
		Verifier:         d.verifier,
		OneTimePasswords: d.otp,
		Validator:        d.validator,
		Names:            generator,
		Discriminator:    assigner,
		Confirmation:     confirmationService,
		Lockout:          guard,
		Resolver:         resolver,
		Orchestrator:     orchestrator,
	}
}

// Close releases store connections and flushes the notifier
func (a *App) Close(ctx context.Context) error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
