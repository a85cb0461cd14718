package memory

import (
	"context"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/mcoot/playeraccounts/internal/model"
	"github.com/mcoot/playeraccounts/internal/storage"
)

// Storage is an in-memory implementation of the storage interface
type Storage struct {
	mu sync.RWMutex
	// txMu serializes transactions
	txMu sync.Mutex

	players    map[model.PlayerID]*model.Player
	order      []model.PlayerID
	accessLogs map[accessKey][]time.Time
}

type accessKey struct {
	email string
	ip    string
}

// New creates a new in-memory storage instance
func New() *Storage {
	return &Storage{
		players:    make(map[model.PlayerID]*model.Player),
		accessLogs: make(map[accessKey][]time.Time),
	}
}

// Ensure Storage implements the interface
var _ storage.Storage = (*Storage)(nil)

// Player operations

func (s *Storage) GetPlayer(ctx context.Context, id model.PlayerID) (*model.Player, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	player, ok := s.players[id]
	if !ok {
		return nil, model.ErrPlayerNotFound
	}
	return player.Clone(), nil
}

func (s *Storage) FindByInstallID(ctx context.Context, installID string) (*model.Player, error) {
	found, err := s.FindPlayers(ctx, storage.PlayerQuery{InstallID: installID, Limit: 1})
	if err != nil {
		return nil, err
	}
	if len(found) == 0 {
		return nil, model.ErrPlayerNotFound
	}
	return found[0], nil
}

func (s *Storage) FindPlayers(ctx context.Context, q storage.PlayerQuery) ([]*model.Player, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*model.Player
	for _, p := range s.matching(q) {
		out = append(out, p.Clone())
	}
	return out, nil
}

func (s *Storage) SavePlayer(ctx context.Context, player *model.Player) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.players[player.ID]; !ok {
		s.order = append(s.order, player.ID)
	}
	s.record(ctx, player.ID)
	stored := player.Clone()
	stored.Children = nil
	stored.Token = ""
	s.players[player.ID] = stored
	return nil
}

func (s *Storage) UpdatePlayers(ctx context.Context, q storage.PlayerQuery, u storage.PlayerUpdate) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	matches := s.matching(q)
	for _, p := range matches {
		s.record(ctx, p.ID)
		u.Apply(p)
	}
	return int64(len(matches)), nil
}

func (s *Storage) UpdateOne(ctx context.Context, q storage.PlayerQuery, u storage.PlayerUpdate) (*model.Player, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	q.Limit = 1
	matches := s.matching(q)
	if len(matches) == 0 {
		return nil, model.ErrPlayerNotFound
	}
	s.record(ctx, matches[0].ID)
	u.Apply(matches[0])
	return matches[0].Clone(), nil
}

func (s *Storage) TouchSsoLogins(ctx context.Context, q storage.PlayerQuery, t storage.SsoTouch) ([]*model.Player, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	matches := s.matching(q)
	for _, p := range matches {
		s.record(ctx, p.ID)
		if t.GoogleID != "" && p.Google != nil && p.Google.ID == t.GoogleID {
			p.Google.Touch(t.IPAddress, t.Web, t.At)
		}
		if t.AppleID != "" && p.Apple != nil && p.Apple.ID == t.AppleID {
			p.Apple.Touch(t.IPAddress, t.Web, t.At)
		}
		if t.PlariumID != "" && p.Plarium != nil && p.Plarium.ID == t.PlariumID {
			p.Plarium.Touch(t.IPAddress, t.Web, t.At)
		}
		if r := p.Rumble; t.RumbleUsername != "" && r != nil &&
			r.Username == t.RumbleUsername && r.Hash == t.RumbleHash && r.Status.IsConfirmed() {
			r.Touch(t.IPAddress, t.Web, t.At)
		}
	}
	var out []*model.Player
	for _, p := range matches {
		out = append(out, p.Clone())
	}
	return out, nil
}

type txKey struct{}

// journal holds the pre-transaction state of every record a transaction
// wrote. A nil entry marks a record the transaction created.
type journal struct {
	before map[model.PlayerID]*model.Player
}

// record notes id's current state the first time a transaction writes it;
// callers hold mu
func (s *Storage) record(ctx context.Context, id model.PlayerID) {
	j, ok := ctx.Value(txKey{}).(*journal)
	if !ok {
		return
	}
	if _, seen := j.before[id]; seen {
		return
	}
	j.before[id] = s.players[id].Clone()
}

// RunInTransaction serializes fn against other transactions. When fn fails
// the records it wrote through the passed context are restored; writes made
// outside the transaction are kept.
func (s *Storage) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	j := &journal{before: make(map[model.PlayerID]*model.Player)}
	if err := fn(context.WithValue(ctx, txKey{}, j)); err != nil {
		s.mu.Lock()
		defer s.mu.Unlock()
		for id, p := range j.before {
			if p == nil {
				delete(s.players, id)
				s.order = slices.DeleteFunc(s.order, func(o model.PlayerID) bool { return o == id })
				continue
			}
			s.players[id] = p
		}
		return err
	}
	return nil
}

// matching returns stored records (not copies) in insertion order; callers hold mu
func (s *Storage) matching(q storage.PlayerQuery) []*model.Player {
	var out []*model.Player
	for _, id := range s.order {
		p, ok := s.players[id]
		if !ok || !q.Matches(p) {
			continue
		}
		out = append(out, p)
		if q.Limit > 0 && len(out) >= q.Limit {
			break
		}
	}
	return out
}

// Access log operations

func (s *Storage) RecentFailures(ctx context.Context, email, ip string) ([]time.Time, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.accessLogs[accessKey{email: email, ip: ip}]), nil
}

func (s *Storage) RecordFailure(ctx context.Context, email, ip string, at time.Time, keep int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := accessKey{email: email, ip: ip}
	attempts := append([]time.Time{at}, s.accessLogs[key]...)
	if keep > 0 && len(attempts) > keep {
		attempts = attempts[:keep]
	}
	s.accessLogs[key] = attempts
	return nil
}

func (s *Storage) EraseEmail(ctx context.Context, email, placeholder string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var affected int64
	for _, key := range slices.Collect(maps.Keys(s.accessLogs)) {
		if key.email != email {
			continue
		}
		erased := accessKey{email: placeholder, ip: model.ErasedIPAddress}
		s.accessLogs[erased] = append(s.accessLogs[erased], s.accessLogs[key]...)
		delete(s.accessLogs, key)
		affected++
	}
	return affected, nil
}
