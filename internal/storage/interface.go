package storage

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/mcoot/playeraccounts/internal/model"
)

// Storage defines the interface for data persistence
type Storage interface {
	Players
	AccessLogs
}

// Players persists Player records
type Players interface {
	GetPlayer(ctx context.Context, id model.PlayerID) (*model.Player, error)
	FindByInstallID(ctx context.Context, installID string) (*model.Player, error)
	FindPlayers(ctx context.Context, q PlayerQuery) ([]*model.Player, error)

	// SavePlayer inserts or replaces the record by ID. Changes to an existing
	// record go through UpdateOne so concurrent field writes are kept.
	SavePlayer(ctx context.Context, player *model.Player) error

	// UpdatePlayers applies u to every match and returns the affected count
	UpdatePlayers(ctx context.Context, q PlayerQuery, u PlayerUpdate) (int64, error)

	// UpdateOne applies u to the first match and returns the updated record.
	// Returns model.ErrPlayerNotFound when nothing matches.
	UpdateOne(ctx context.Context, q PlayerQuery, u PlayerUpdate) (*model.Player, error)

	// TouchSsoLogins records a validation against every provider identity named
	// in t, then returns the records matching q.
	TouchSsoLogins(ctx context.Context, q PlayerQuery, t SsoTouch) ([]*model.Player, error)

	// RunInTransaction runs fn atomically; any error rolls back its writes
	RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// AccessLogs persists failed login attempts per (email, ip)
type AccessLogs interface {
	// RecentFailures returns recorded attempts, newest first
	RecentFailures(ctx context.Context, email, ip string) ([]time.Time, error)

	// RecordFailure prepends at and trims the log to keep entries
	RecordFailure(ctx context.Context, email, ip string, at time.Time, keep int) error

	// EraseEmail rewrites every log for email onto the placeholder
	EraseEmail(ctx context.Context, email, placeholder string) (int64, error)
}

// SsoTouch describes a successful SSO validation to record on matching identities
type SsoTouch struct {
	GoogleID       string
	AppleID        string
	PlariumID      string
	RumbleUsername string
	RumbleHash     string
	IPAddress      string
	Web            bool
	At             time.Time
}

// NewPlayerID allocates an id for a new Player
func NewPlayerID() model.PlayerID {
	return model.PlayerID(primitive.NewObjectID().Hex())
}

// Ptr returns a pointer to v, for building PlayerUpdate values
func Ptr[T any](v T) *T {
	return &v
}
