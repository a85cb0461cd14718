package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/mcoot/playeraccounts/internal/model"
	"github.com/mcoot/playeraccounts/internal/storage"
)

// Storage is a MongoDB-backed implementation of the storage interface
type Storage struct {
	client   *mongo.Client
	db       *mongo.Database
	players  *mongo.Collection
	lockouts *mongo.Collection
}

// New connects to MongoDB and ensures the required indexes exist
func New(ctx context.Context, cfg Config) (*Storage, error) {
	connectCtx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("connect to mongodb: %w", err)
	}
	if err := client.Ping(connectCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongodb: %w", err)
	}

	s := NewWithClient(client, cfg.Database)
	if err := s.EnsureIndexes(connectCtx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	return s, nil
}

// NewWithClient creates a storage over an existing client
func NewWithClient(client *mongo.Client, database string) *Storage {
	db := client.Database(database)
	return &Storage{
		client:   client,
		db:       db,
		players:  db.Collection(playersCollection),
		lockouts: db.Collection(lockoutsCollection),
	}
}

// Close disconnects the client
func (s *Storage) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

// Ensure Storage implements the interface
var _ storage.Storage = (*Storage)(nil)

// EnsureIndexes creates the lookup indexes the account flows rely on
func (s *Storage) EnsureIndexes(ctx context.Context) error {
	_, err := s.players.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: fieldInstall, Value: 1}}, Options: options.Index().SetUnique(true).SetSparse(true)},
		{Keys: bson.D{{Key: fieldGoogle + ".id", Value: 1}}, Options: options.Index().SetSparse(true)},
		{Keys: bson.D{{Key: fieldApple + ".id", Value: 1}}, Options: options.Index().SetSparse(true)},
		{Keys: bson.D{{Key: fieldPlarium + ".id", Value: 1}}, Options: options.Index().SetSparse(true)},
		{Keys: bson.D{{Key: "rumble.email", Value: 1}, {Key: "rumble.hash", Value: 1}}},
		{Keys: bson.D{{Key: "rumble.username", Value: 1}, {Key: "rumble.hash", Value: 1}}},
		{Keys: bson.D{{Key: fieldParent, Value: 1}}, Options: options.Index().SetSparse(true)},
		{Keys: bson.D{{Key: fieldLinkCode, Value: 1}}, Options: options.Index().SetSparse(true)},
		{Keys: bson.D{{Key: fieldScreenname, Value: 1}, {Key: fieldDiscriminator, Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("create player indexes: %w", err)
	}

	_, err = s.lockouts.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}, {Key: "ip", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("create lockout index: %w", err)
	}
	return nil
}

// Player operations

func (s *Storage) GetPlayer(ctx context.Context, id model.PlayerID) (*model.Player, error) {
	var player model.Player
	err := s.players.FindOne(ctx, bson.M{fieldID: id}).Decode(&player)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, model.ErrPlayerNotFound
		}
		return nil, err
	}
	return &player, nil
}

func (s *Storage) FindByInstallID(ctx context.Context, installID string) (*model.Player, error) {
	var player model.Player
	err := s.players.FindOne(ctx, bson.M{fieldInstall: installID}).Decode(&player)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, model.ErrPlayerNotFound
		}
		return nil, err
	}
	return &player, nil
}

func (s *Storage) FindPlayers(ctx context.Context, q storage.PlayerQuery) ([]*model.Player, error) {
	opts := options.Find()
	if q.Limit > 0 {
		opts.SetLimit(int64(q.Limit))
	}
	cursor, err := s.players.Find(ctx, buildFilter(q), opts)
	if err != nil {
		return nil, err
	}
	var players []*model.Player
	if err := cursor.All(ctx, &players); err != nil {
		return nil, err
	}
	return players, nil
}

func (s *Storage) SavePlayer(ctx context.Context, player *model.Player) error {
	_, err := s.players.ReplaceOne(ctx, bson.M{fieldID: player.ID}, player, options.Replace().SetUpsert(true))
	return err
}

func (s *Storage) UpdatePlayers(ctx context.Context, q storage.PlayerQuery, u storage.PlayerUpdate) (int64, error) {
	filter := buildFilter(q)
	pipeline := buildUpdate(u)
	if len(pipeline) == 0 {
		return s.players.CountDocuments(ctx, filter)
	}
	result, err := s.players.UpdateMany(ctx, filter, pipeline)
	if err != nil {
		return 0, err
	}
	return result.MatchedCount, nil
}

func (s *Storage) UpdateOne(ctx context.Context, q storage.PlayerQuery, u storage.PlayerUpdate) (*model.Player, error) {
	filter := buildFilter(q)
	pipeline := buildUpdate(u)

	var player model.Player
	var err error
	if len(pipeline) == 0 {
		err = s.players.FindOne(ctx, filter).Decode(&player)
	} else {
		opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
		err = s.players.FindOneAndUpdate(ctx, filter, pipeline, opts).Decode(&player)
	}
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, model.ErrPlayerNotFound
		}
		return nil, err
	}
	return &player, nil
}

// TouchSsoLogins records the validation on the records q selects, so the
// touch is bounded by q.Limit like the lookup itself
func (s *Storage) TouchSsoLogins(ctx context.Context, q storage.PlayerQuery, t storage.SsoTouch) ([]*model.Player, error) {
	matched, err := s.FindPlayers(ctx, q)
	if err != nil {
		return nil, err
	}
	if len(matched) == 0 {
		return nil, nil
	}
	ids := make([]model.PlayerID, 0, len(matched))
	for _, p := range matched {
		ids = append(ids, p.ID)
	}

	touches := []struct {
		field  string
		filter bson.M
	}{
		{fieldGoogle, bson.M{"google.id": t.GoogleID}},
		{fieldApple, bson.M{"apple.id": t.AppleID}},
		{fieldPlarium, bson.M{"plarium.id": t.PlariumID}},
		{fieldRumble, bson.M{
			"rumble.username": t.RumbleUsername,
			"rumble.hash":     t.RumbleHash,
			"rumble.status":   bson.M{"$gte": int(model.RumbleConfirmed)},
		}},
	}
	present := []bool{t.GoogleID != "", t.AppleID != "", t.PlariumID != "", t.RumbleUsername != ""}

	counter := "clientValidationCount"
	if t.Web {
		counter = "webValidationCount"
	}
	for i, touch := range touches {
		if !present[i] {
			continue
		}
		touch.filter[fieldID] = bson.M{"$in": ids}
		_, err := s.players.UpdateMany(ctx, touch.filter, bson.M{
			"$inc": bson.M{
				touch.field + "." + counter:              1,
				touch.field + ".lifetimeValidationCount": 1,
			},
			"$set": bson.M{
				touch.field + ".rollingLoginTimestamp": t.At,
				touch.field + ".ip":                    t.IPAddress,
			},
		})
		if err != nil {
			return nil, fmt.Errorf("touch %s logins: %w", touch.field, err)
		}
	}
	return s.FindPlayers(ctx, storage.PlayerQuery{IDs: ids})
}

// RunInTransaction runs fn inside a MongoDB session transaction. Store calls
// made with the context passed to fn join the transaction.
func (s *Storage) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	session, err := s.client.StartSession()
	if err != nil {
		return fmt.Errorf("start session: %w", err)
	}
	defer session.EndSession(context.Background())

	if err := session.StartTransaction(); err != nil {
		return fmt.Errorf("start transaction: %w", err)
	}
	sessCtx := mongo.NewSessionContext(ctx, session)

	if err := fn(sessCtx); err != nil {
		_ = session.AbortTransaction(context.Background())
		return err
	}
	if err := session.CommitTransaction(sessCtx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// Access log operations

type accessLogDocument struct {
	Email    string      `bson:"email"`
	IP       string      `bson:"ip"`
	Attempts []time.Time `bson:"attempts"`
}

func (s *Storage) RecentFailures(ctx context.Context, email, ip string) ([]time.Time, error) {
	var doc accessLogDocument
	err := s.lockouts.FindOne(ctx, bson.M{"email": email, "ip": ip}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, err
	}
	return doc.Attempts, nil
}

func (s *Storage) RecordFailure(ctx context.Context, email, ip string, at time.Time, keep int) error {
	push := bson.M{"$each": bson.A{at}, "$position": 0}
	if keep > 0 {
		push["$slice"] = keep
	}
	_, err := s.lockouts.UpdateOne(ctx,
		bson.M{"email": email, "ip": ip},
		bson.M{"$push": bson.M{"attempts": push}},
		options.Update().SetUpsert(true),
	)
	return err
}

func (s *Storage) EraseEmail(ctx context.Context, email, placeholder string) (int64, error) {
	cursor, err := s.lockouts.Find(ctx, bson.M{"email": email})
	if err != nil {
		return 0, err
	}
	var docs []accessLogDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return 0, err
	}

	var affected int64
	for _, doc := range docs {
		_, err := s.lockouts.UpdateOne(ctx,
			bson.M{"email": placeholder, "ip": model.ErasedIPAddress},
			bson.M{"$push": bson.M{"attempts": bson.M{"$each": doc.Attempts}}},
			options.Update().SetUpsert(true),
		)
		if err != nil {
			return affected, err
		}
		if _, err := s.lockouts.DeleteOne(ctx, bson.M{"email": doc.Email, "ip": doc.IP}); err != nil {
			return affected, err
		}
		affected++
	}
	return affected, nil
}
