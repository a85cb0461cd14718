package confirmation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/mcoot/playeraccounts/internal/dependencies/clock"
	"github.com/mcoot/playeraccounts/internal/dependencies/random"
	"github.com/mcoot/playeraccounts/internal/model"
	"github.com/mcoot/playeraccounts/internal/services/notify"
	"github.com/mcoot/playeraccounts/internal/storage"
)

// CodeTTL is how long any emailed code stays valid
const CodeTTL = 15 * time.Minute

// DefaultSweepInterval is how often RunSweeper clears expired state
const DefaultSweepInterval = 4 * time.Hour

var awaiting = []model.RumbleStatus{model.RumbleEmailInvalid, model.RumbleNeedsConfirmation}

// Service drives the Rumble account lifecycle: confirmation, password reset and two-factor codes
type Service struct {
	players  storage.Players
	notifier notify.Notifier
	clock    clock.Clock
	random   random.Random
	logger   *slog.Logger
}

// New creates a new confirmation service
func New(players storage.Players, notifier notify.Notifier, clock clock.Clock, random random.Random, logger *slog.Logger) *Service {
	return &Service{
		players:  players,
		notifier: notifier,
		clock:    clock,
		random:   random,
		logger:   logger,
	}
}

// IssueConfirmation prepares a freshly attached Rumble account on player for
// confirmation and emails the code. The record is not persisted here. When the
// email cannot be sent the account is marked EmailInvalid instead.
func (s *Service) IssueConfirmation(ctx context.Context, player *model.Player) error {
	r := player.Rumble
	if r == nil {
		return fmt.Errorf("no rumble account to confirm: %w", model.ErrInvalidIdentity)
	}
	if !r.Status.CanTransition(model.EventAttach) {
		return fmt.Errorf("attach from %s: %w", r.Status, model.ErrInvalidTransition)
	}

	r.Status = model.RumbleNeedsConfirmation
	r.ConfirmationCode = GenerateCode(s.random, ConfirmationSegments)
	r.CodeExpiration = s.clock.Now().Add(CodeTTL)

	if err := s.notifier.SendConfirmation(ctx, r.Email, player.ID, r.ConfirmationCode, r.CodeExpiration); err != nil {
		r.Status = model.RumbleEmailInvalid
		s.logger.Error("unable to send rumble account confirmation email",
			slog.String("player_id", string(player.ID)),
			slog.String("email", r.Email),
			slog.Any("error", err),
		)
	}
	return nil
}

// UseConfirmationCode confirms the Rumble account on id. Returns
// model.ErrConfirmationNotAccepted when the code is wrong, expired or the
// account is not awaiting confirmation.
func (s *Service) UseConfirmationCode(ctx context.Context, id model.PlayerID, code string) (*model.Player, error) {
	if code == "" {
		return nil, model.ErrConfirmationNotAccepted
	}

	player, err := s.players.UpdateOne(ctx, storage.PlayerQuery{
		IDs:              []model.PlayerID{id},
		RumbleCode:       code,
		RumbleStatuses:   model.StatusesFor(model.EventUseConfirmationCode),
		RumbleCodeLiveAt: s.clock.Now(),
	}, storage.PlayerUpdate{
		RumbleStatus:         storage.Ptr(model.RumbleConfirmed),
		RumbleCode:           storage.Ptr(""),
		RumbleCodeExpiration: storage.Ptr(time.Time{}),
		AddConfirmedID:       id,
	})
	if errors.Is(err, model.ErrPlayerNotFound) {
		return nil, model.ErrConfirmationNotAccepted
	}
	if err != nil {
		return nil, fmt.Errorf("failed to confirm account: %w", err)
	}

	email := player.Rumble.Email
	if err := s.notifier.SendWelcome(ctx, email); err != nil {
		s.logger.Error("unable to send welcome email",
			slog.String("player_id", string(id)),
			slog.Any("error", err),
		)
	}

	cleared, err := s.players.UpdatePlayers(ctx, storage.PlayerQuery{
		ExcludeIDs:     []model.PlayerID{id},
		RumbleEmail:    email,
		RumbleStatuses: awaiting,
	}, storage.PlayerUpdate{ClearRumble: true})
	if err != nil {
		return nil, fmt.Errorf("failed to clear unconfirmed accounts: %w", err)
	}
	if cleared > 0 {
		s.logger.Warn("cleared other unconfirmed accounts for confirmed email",
			slog.String("player_id", string(id)),
			slog.Int64("count", cleared),
		)
	}
	return player, nil
}

// IsConfirmed reports whether the record id already holds a confirmed Rumble account
func (s *Service) IsConfirmed(ctx context.Context, id model.PlayerID) (bool, error) {
	player, err := s.players.GetPlayer(ctx, id)
	if errors.Is(err, model.ErrPlayerNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to load player: %w", err)
	}
	return player.Rumble != nil && player.Rumble.Status.IsConfirmed(), nil
}

// BeginReset issues a password reset code for the confirmed account using email
func (s *Service) BeginReset(ctx context.Context, email string) (*model.Player, error) {
	player, err := s.issueShortCode(ctx, email, model.EventBeginReset, model.RumbleResetRequested)
	if err != nil {
		return nil, err
	}
	r := player.Rumble
	if err := s.notifier.SendReset(ctx, email, player.ID, r.ConfirmationCode, r.CodeExpiration); err != nil {
		s.logger.Error("unable to send password reset email",
			slog.String("player_id", string(player.ID)),
			slog.Any("error", err),
		)
	}
	return player, nil
}

// SendTwoFactorNotification issues a two-factor code for the confirmed account using email
func (s *Service) SendTwoFactorNotification(ctx context.Context, email string) (*model.Player, error) {
	player, err := s.issueShortCode(ctx, email, model.EventSendTwoFactor, model.RumbleNeedsTwoFactor)
	if err != nil {
		return nil, err
	}
	r := player.Rumble
	if err := s.notifier.SendTwoFactor(ctx, email, r.ConfirmationCode, r.CodeExpiration); err != nil {
		s.logger.Error("unable to send 2FA code",
			slog.String("player_id", string(player.ID)),
			slog.Any("error", err),
		)
	}
	return player, nil
}

func (s *Service) issueShortCode(ctx context.Context, email string, event model.RumbleEvent, to model.RumbleStatus) (*model.Player, error) {
	player, err := s.players.UpdateOne(ctx, storage.PlayerQuery{
		RumbleEmail:    email,
		RumbleStatuses: model.StatusesFor(event),
		LiveOnly:       true,
	}, storage.PlayerUpdate{
		RumbleStatus:         storage.Ptr(to),
		RumbleCode:           storage.Ptr(GenerateCode(s.random, ShortCodeSegments)),
		RumbleCodeExpiration: storage.Ptr(s.clock.Now().Add(CodeTTL)),
	})
	if errors.Is(err, model.ErrPlayerNotFound) {
		return nil, &model.UnlinkedError{Provider: model.ProviderRumble}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to issue %s code: %w", event, err)
	}
	return player, nil
}

// CompleteReset accepts a reset or two-factor code and primes the account for
// a new hash. Failures are diagnosed.
func (s *Service) CompleteReset(ctx context.Context, username, code string, actor model.PlayerID) (*model.Player, error) {
	if code != "" {
		player, err := s.players.UpdateOne(ctx, storage.PlayerQuery{
			RumbleUsername:   username,
			RumbleCode:       code,
			RumbleStatuses:   model.StatusesFor(model.EventCompleteReset),
			RumbleCodeLiveAt: s.clock.Now(),
		}, storage.PlayerUpdate{
			RumbleStatus:         storage.Ptr(model.RumbleResetPrimed),
			RumbleCode:           storage.Ptr(""),
			RumbleCodeExpiration: storage.Ptr(time.Time{}),
			AddConfirmedID:       actor,
		})
		if err == nil {
			return player, nil
		}
		if !errors.Is(err, model.ErrPlayerNotFound) {
			return nil, fmt.Errorf("failed to complete reset: %w", err)
		}
	}

	diagnosis, err := s.Diagnose(ctx, username, "", code)
	if err != nil {
		return nil, err
	}
	return nil, diagnosis.Err()
}

// UpdateHash changes the account password. With oldHash it is a regular
// change; without it the account must have completed a reset.
func (s *Service) UpdateHash(ctx context.Context, username, oldHash, newHash string, actor model.PlayerID) (*model.Player, error) {
	if newHash == "" || newHash == oldHash {
		return nil, model.ErrInvalidPassword
	}

	q := storage.PlayerQuery{RumbleUsername: username}
	u := storage.PlayerUpdate{
		RumbleHash:     storage.Ptr(newHash),
		AddConfirmedID: actor,
	}
	if oldHash != "" {
		q.RumbleHash = oldHash
		q.RumbleStatuses = model.StatusesFor(model.EventUpdateHash)
	} else {
		q.RumbleStatuses = []model.RumbleStatus{model.RumbleResetPrimed}
		u.RumbleStatus = storage.Ptr(model.RumbleConfirmed)
	}

	player, err := s.players.UpdateOne(ctx, q, u)
	if errors.Is(err, model.ErrPlayerNotFound) {
		return nil, fmt.Errorf("no account to update for %s: %w", username, model.ErrRecordNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update hash: %w", err)
	}
	return player, nil
}

// UseTwoFactorCode accepts a two-factor code for any account sharing
// accountID's current link code.
func (s *Service) UseTwoFactorCode(ctx context.Context, accountID model.PlayerID, code string) (*model.Player, error) {
	invalid := fmt.Errorf("invalid or expired code: %w", model.ErrRecordNotFound)

	caller, err := s.players.GetPlayer(ctx, accountID)
	if errors.Is(err, model.ErrPlayerNotFound) {
		return nil, invalid
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load player: %w", err)
	}
	if caller.LinkCode == "" || code == "" {
		return nil, invalid
	}

	player, err := s.players.UpdateOne(ctx, storage.PlayerQuery{
		LinkCode:         caller.LinkCode,
		HasRumble:        true,
		RumbleCode:       code,
		RumbleStatuses:   model.StatusesFor(model.EventUseTwoFactorCode),
		RumbleCodeLiveAt: s.clock.Now(),
	}, storage.PlayerUpdate{
		RumbleStatus:         storage.Ptr(model.RumbleConfirmed),
		RumbleCode:           storage.Ptr(""),
		RumbleCodeExpiration: storage.Ptr(time.Time{}),
		AddConfirmedID:       accountID,
	})
	if errors.Is(err, model.ErrPlayerNotFound) {
		return nil, invalid
	}
	if err != nil {
		return nil, fmt.Errorf("failed to use two factor code: %w", err)
	}
	return player, nil
}

// SweepResult counts the records changed by a sweep
type SweepResult struct {
	UnconfirmedCleared int64
	LinkCodesCleared   int64
}

// Sweep removes Rumble accounts whose confirmation window has passed and
// clears expired link codes.
func (s *Service) Sweep(ctx context.Context) (SweepResult, error) {
	var result SweepResult
	now := s.clock.Now()

	n, err := s.players.UpdatePlayers(ctx, storage.PlayerQuery{
		RumbleStatuses:      awaiting,
		RumbleCodeExpiredAt: now,
	}, storage.PlayerUpdate{ClearRumble: true})
	if err != nil {
		return result, fmt.Errorf("failed to clear unconfirmed accounts: %w", err)
	}
	result.UnconfirmedCleared = n

	n, err = s.players.UpdatePlayers(ctx, storage.PlayerQuery{
		LinkExpiredAt: now,
	}, storage.PlayerUpdate{
		LinkCode:       storage.Ptr(""),
		LinkExpiration: storage.Ptr(time.Time{}),
	})
	if err != nil {
		return result, fmt.Errorf("failed to clear link codes: %w", err)
	}
	result.LinkCodesCleared = n

	s.logger.Info("sweep complete",
		slog.Int64("unconfirmed_cleared", result.UnconfirmedCleared),
		slog.Int64("link_codes_cleared", result.LinkCodesCleared),
	)
	return result, nil
}

// RunSweeper calls Sweep every interval until ctx is cancelled
func (s *Service) RunSweeper(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if _, err := s.Sweep(ctx); err != nil {
			s.logger.ErrorContext(ctx, "sweep failed", slog.Any("error", err))
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Diagnose works out why an email login or code check failed
func (s *Service) Diagnose(ctx context.Context, email, hash, code string) (Diagnosis, error) {
	records, err := s.players.FindPlayers(ctx, storage.PlayerQuery{
		RumbleEmail: email,
		LiveOnly:    true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load accounts for diagnosis: %w", err)
	}
	slices.SortStableFunc(records, func(a, b *model.Player) int {
		if a.Rumble.Status != b.Rumble.Status {
			return int(b.Rumble.Status) - int(a.Rumble.Status)
		}
		return b.Rumble.CodeExpiration.Compare(a.Rumble.CodeExpiration)
	})

	now := s.clock.Now()
	confirmed := 0
	for _, p := range records {
		if p.Rumble.Status.IsConfirmed() {
			confirmed++
		}
	}

	switch {
	case confirmed > 1:
		s.logger.Error("multiple confirmed rumble accounts share an email",
			slog.String("email", email),
			slog.Int("count", confirmed),
			slog.Any("player_ids", model.DistinctAccountIDs(records...)),
		)
		return DuplicateRecords{Email: email, Count: confirmed}, nil

	case confirmed == 0:
		if len(records) == 0 {
			return NotLinked{Email: email}, nil
		}
		for _, p := range records {
			if p.Rumble.Status.AwaitingConfirmation() && p.Rumble.CodeExpiration.After(now) {
				return NotConfirmed{Email: email}, nil
			}
		}
		return CodeExpired{Email: email}, nil
	}

	if code != "" {
		idx := slices.IndexFunc(records, func(p *model.Player) bool {
			return p.Rumble.ConfirmationCode == code
		})
		if idx < 0 {
			return CodeInvalid{Email: email}, nil
		}
		if !records[idx].Rumble.CodeExpiration.After(now) {
			return CodeExpired{Email: email}, nil
		}
	}

	s.logger.Debug("rumble login rejected",
		slog.String("email", email),
		slog.Bool("hash_supplied", hash != ""),
	)
	return PasswordInvalid{Email: email}, nil
}
