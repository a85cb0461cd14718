package discriminator

import (
	"context"
	"errors"
	"log/slog"

	"github.com/mcoot/playeraccounts/internal/dependencies/random"
	"github.com/mcoot/playeraccounts/internal/model"
	"github.com/mcoot/playeraccounts/internal/storage"
)

const (
	// MaxAttempts bounds the random search before falling back to 0
	MaxAttempts = 50
	// MaxValue is the largest discriminator handed out
	MaxValue = 9999
)

// ErrScreennameRequired is returned when a discriminator is requested for an
// empty screenname. Uniqueness is only defined within a screenname.
var ErrScreennameRequired = errors.New("screenname required for a discriminator")

// Assigner hands out (screenname, discriminator) pairs unique among live accounts
type Assigner struct {
	players storage.Players
	random  random.Random
	logger  *slog.Logger
}

// New creates a new Assigner
func New(players storage.Players, random random.Random, logger *slog.Logger) *Assigner {
	return &Assigner{
		players: players,
		random:  random,
		logger:  logger,
	}
}

// Lookup returns the player's discriminator, assigning one if it has none
func (a *Assigner) Lookup(ctx context.Context, player *model.Player) (int, error) {
	if player.HasDiscriminator() {
		return player.DiscriminatorValue(), nil
	}
	return a.Assign(ctx, player)
}

// Assign picks a fresh discriminator for the player's current screenname
func (a *Assigner) Assign(ctx context.Context, player *model.Player) (int, error) {
	return a.assign(ctx, player, player.Screenname, 0)
}

// Reassign picks a discriminator for a new screenname, keeping the current
// value when it is still free
func (a *Assigner) Reassign(ctx context.Context, player *model.Player, screenname string) (int, error) {
	return a.assign(ctx, player, screenname, player.DiscriminatorValue())
}

func (a *Assigner) assign(ctx context.Context, player *model.Player, screenname string, preferred int) (int, error) {
	if screenname == "" {
		return 0, ErrScreennameRequired
	}
	if preferred > 0 {
		free, err := a.isFree(ctx, player.ID, screenname, preferred)
		if err != nil {
			return 0, err
		}
		if free {
			return preferred, a.set(ctx, player, preferred)
		}
	}

	for range MaxAttempts {
		candidate := a.random.Intn(MaxValue) + 1
		free, err := a.isFree(ctx, player.ID, screenname, candidate)
		if err != nil {
			return 0, err
		}
		if free {
			return candidate, a.set(ctx, player, candidate)
		}
	}

	a.logger.Error("discriminator space exhausted; assigning 0",
		slog.String("player_id", string(player.ID)),
		slog.String("screenname", screenname),
		slog.Int("attempts", MaxAttempts),
	)
	return 0, a.set(ctx, player, 0)
}

func (a *Assigner) isFree(ctx context.Context, self model.PlayerID, screenname string, candidate int) (bool, error) {
	taken, err := a.players.FindPlayers(ctx, storage.PlayerQuery{
		Screenname:    screenname,
		Discriminator: &candidate,
		LiveOnly:      true,
		ExcludeIDs:    []model.PlayerID{self},
		Limit:         1,
	})
	if err != nil {
		return false, err
	}
	return len(taken) == 0, nil
}

func (a *Assigner) set(ctx context.Context, player *model.Player, value int) error {
	player.Discriminator = &value
	_, err := a.players.UpdatePlayers(ctx,
		storage.PlayerQuery{IDs: []model.PlayerID{player.ID}},
		storage.PlayerUpdate{Discriminator: &value},
	)
	return err
}
