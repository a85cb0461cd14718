package factory

import (
	"time"

	"github.com/mcoot/playeraccounts/internal/dependencies/mocks"
	"github.com/mcoot/playeraccounts/internal/dependencies/random"
	"github.com/mcoot/playeraccounts/internal/services/lockout"
	"github.com/mcoot/playeraccounts/internal/services/login"
	"github.com/mcoot/playeraccounts/internal/services/token"
	"github.com/mcoot/playeraccounts/internal/storage/memory"
	"github.com/mcoot/playeraccounts/internal/testutil"
)

// TestSecret signs the tokens issued by a TestApp
const TestSecret = "test-secret"

// TestApp extends App with test-specific helpers
type TestApp struct {
	*App

	// Mocks for test control
	MemoryStorage *memory.Storage
	MockClock     *mocks.MockClock
	MockNotifier  *mocks.MockNotifier
	MockValidator *mocks.MockValidator
}

// TestOption adjusts a TestApp before its services are wired
type TestOption func(*testOptions)

type testOptions struct {
	lockout lockout.Config
	login   login.Config
}

// WithLockout overrides the lockout thresholds
func WithLockout(cfg lockout.Config) TestOption {
	return func(o *testOptions) { o.lockout = cfg }
}

// WithMaintenance puts the login flow into maintenance
func WithMaintenance() TestOption {
	return func(o *testOptions) { o.login.Maintenance = true }
}

// NewTestApp creates an App configured for testing with mocked dependencies.
// Tokens are signed locally against the mock clock.
func NewTestApp(opts ...TestOption) *TestApp {
	o := testOptions{lockout: lockout.DefaultConfig()}
	for _, opt := range opts {
		opt(&o)
	}

	store := memory.New()
	mockClock := mocks.NewMockClock(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
	mockNotifier := mocks.NewMockNotifier()
	mockValidator := mocks.NewMockValidator()

	signer, err := token.NewSigner(token.SignerConfig{
		Secret: TestSecret,
		Issuer: "player-service",
		TTL:    time.Hour,
	}, mockClock)
	if err != nil {
		panic(err)
	}

	app := newWithDependencies(dependencies{
		players:   store,
		logs:      store,
		clock:     mockClock,
		random:    random.New(),
		notifier:  mockNotifier,
		issuer:    signer,
		verifier:  signer,
		otp:       signer,
		validator: mockValidator,
		lockout:   o.lockout,
		login:     o.login,
		logger:    testutil.NopLogger(),
	})

	return &TestApp{
		App:           app,
		MemoryStorage: store,
		MockClock:     mockClock,
		MockNotifier:  mockNotifier,
		MockValidator: mockValidator,
	}
}
