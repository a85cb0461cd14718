package lockout

import (
	"context"
	"log/slog"
	"slices"
	"time"

	"github.com/mcoot/playeraccounts/internal/dependencies/clock"
	"github.com/mcoot/playeraccounts/internal/model"
	"github.com/mcoot/playeraccounts/internal/storage"
)

// Config holds lockout thresholds
type Config struct {
	// Threshold is the number of failures within the cooldown that locks an
	// (email, ip) pair. Zero or negative disables the guard.
	Threshold int
	// CooldownMinutes is the window failures are counted over; minimum 1
	CooldownMinutes int
}

// DefaultConfig returns the default lockout configuration
func DefaultConfig() Config {
	return Config{
		Threshold:       5,
		CooldownMinutes: 5,
	}
}

// maxAttemptsKept bounds each access log regardless of threshold
const maxAttemptsKept = 100

// Guard tracks failed password logins per (email, ip)
type Guard struct {
	logs   storage.AccessLogs
	clock  clock.Clock
	cfg    Config
	logger *slog.Logger
}

// New creates a new Guard
func New(logs storage.AccessLogs, clock clock.Clock, cfg Config, logger *slog.Logger) *Guard {
	if cfg.CooldownMinutes < 1 {
		cfg.CooldownMinutes = 1
	}
	return &Guard{
		logs:   logs,
		clock:  clock,
		cfg:    cfg,
		logger: logger,
	}
}

// Enabled reports whether lockouts are enforced
func (g *Guard) Enabled() bool {
	return g.cfg.Threshold > 0
}

// AttemptsToKeep is the ring size for each access log
func (g *Guard) AttemptsToKeep() int {
	return min(maxAttemptsKept, g.cfg.Threshold*5)
}

func (g *Guard) cooldown() time.Duration {
	return time.Duration(g.cfg.CooldownMinutes) * time.Minute
}

// EnsureNotLockedOut returns a *model.LockoutError when the pair has reached the
// threshold within the cooldown. Requests without an ip are never locked.
func (g *Guard) EnsureNotLockedOut(ctx context.Context, email, ip string) error {
	if ip == "" || !g.Enabled() {
		return nil
	}

	attempts, err := g.logs.RecentFailures(ctx, email, ip)
	if err != nil {
		return err
	}

	now := g.clock.Now()
	cutoff := now.Add(-g.cooldown())
	var recent []time.Time
	for _, at := range attempts {
		if at.After(cutoff) {
			recent = append(recent, at)
		}
	}
	if len(recent) < g.cfg.Threshold {
		return nil
	}

	// the threshold-th newest attempt decides when the lock lifts
	slices.SortFunc(recent, func(a, b time.Time) int { return b.Compare(a) })
	pivot := recent[g.cfg.Threshold-1]
	remaining := g.cooldown() - now.Sub(pivot)

	g.logger.Warn("login locked out",
		slog.String("email", email),
		slog.String("ip", ip),
		slog.Int("attempts", len(recent)),
	)
	return &model.LockoutError{
		Email:            email,
		IPAddress:        ip,
		SecondsRemaining: int64(remaining.Seconds()),
	}
}

// RegisterError records a failed password attempt
func (g *Guard) RegisterError(ctx context.Context, email, ip string) error {
	if ip == "" || !g.Enabled() {
		return nil
	}
	return g.logs.RecordFailure(ctx, email, ip, g.clock.Now(), g.AttemptsToKeep())
}

// EraseEmail scrubs the email from every access log
func (g *Guard) EraseEmail(ctx context.Context, email, placeholder string) (int64, error) {
	return g.logs.EraseEmail(ctx, email, placeholder)
}
