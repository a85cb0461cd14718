package account

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/mcoot/playeraccounts/internal/dependencies/clock"
	"github.com/mcoot/playeraccounts/internal/model"
	"github.com/mcoot/playeraccounts/internal/services/confirmation"
	"github.com/mcoot/playeraccounts/internal/services/discriminator"
	"github.com/mcoot/playeraccounts/internal/services/lockout"
	"github.com/mcoot/playeraccounts/internal/services/names"
	"github.com/mcoot/playeraccounts/internal/services/token"
	"github.com/mcoot/playeraccounts/internal/storage"
)

const (
	// LinkCodeTTL is how long a link code stays usable
	LinkCodeTTL = 15 * time.Minute
	// maxSsoMatches bounds the records touched by a single SSO lookup
	maxSsoMatches = 100
)

// Config holds resolver settings
type Config struct {
	// Audiences are passed to the token issuer for every player token
	Audiences []string
}

// Resolver finds, creates and links Player records
type Resolver struct {
	players       storage.Players
	discriminator *discriminator.Assigner
	names         *names.Generator
	confirmation  *confirmation.Service
	lockout       *lockout.Guard
	issuer        token.Issuer
	clock         clock.Clock
	cfg           Config
	logger        *slog.Logger
}

// New creates a new Resolver
func New(
	players storage.Players,
	discriminator *discriminator.Assigner,
	names *names.Generator,
	confirmation *confirmation.Service,
	lockout *lockout.Guard,
	issuer token.Issuer,
	clock clock.Clock,
	cfg Config,
	logger *slog.Logger,
) *Resolver {
	return &Resolver{
		players:       players,
		discriminator: discriminator,
		names:         names,
		confirmation:  confirmation,
		lockout:       lockout,
		issuer:        issuer,
		clock:         clock,
		cfg:           cfg,
		logger:        logger,
	}
}

// ResolveByDevice finds or creates the record for an install. The returned
// player is the account owner: a child's parent is returned in its place.
func (r *Resolver) ResolveByDevice(ctx context.Context, device *model.DeviceInfo) (*model.Player, error) {
	if device == nil {
		return nil, model.ErrDeviceRequired
	}
	incoming := *device
	incoming.Normalize()
	if incoming.InstallID == "" {
		return nil, model.ErrDeviceRequired
	}

	stored, err := r.players.FindByInstallID(ctx, incoming.InstallID)
	if err != nil && !errors.Is(err, model.ErrPlayerNotFound) {
		return nil, fmt.Errorf("failed to look up install: %w", err)
	}

	var storedDevice *model.DeviceInfo
	if stored != nil {
		storedDevice = stored.Device
	}
	identical, authorized := incoming.Compare(storedDevice)
	if !identical && !authorized {
		return nil, model.ErrDeviceMismatch
	}
	// an identical device presenting the wrong key
	if incoming.PrivateKey != "" && identical && !authorized {
		return nil, model.ErrDeviceMismatch
	}

	now := r.clock.Now()
	update := storage.PlayerUpdate{Device: &incoming, LastLogin: &now}
	if incoming.PrivateKey != "" {
		update.DeviceKey = model.EncodeDeviceKey(incoming.PrivateKey)
	}
	if stored == nil {
		stored = &model.Player{
			ID:         storage.NewPlayerID(),
			Screenname: r.names.Next(),
			CreatedOn:  now,
		}
		update.Apply(stored)
		if err := r.players.SavePlayer(ctx, stored); err != nil {
			return nil, fmt.Errorf("failed to save device record: %w", err)
		}
	} else {
		stored, err = r.players.UpdateOne(ctx, storage.PlayerQuery{IDs: []model.PlayerID{stored.ID}}, update)
		if err != nil {
			return nil, fmt.Errorf("failed to update device record: %w", err)
		}
	}
	// records without a screenname get one, and a discriminator, at login
	if !stored.HasDiscriminator() && stored.Screenname != "" {
		if _, err := r.discriminator.Assign(ctx, stored); err != nil {
			return nil, fmt.Errorf("failed to assign discriminator: %w", err)
		}
	}

	stored.Device.PrivateKey = ""
	stored.Device.CalculatePrivateKey()

	if stored.IsChild() {
		parent, err := r.players.GetPlayer(ctx, stored.ParentID)
		if err != nil {
			return nil, fmt.Errorf("failed to load parent %s: %w", stored.ParentID, err)
		}
		return parent, nil
	}
	return stored, nil
}

// ResolveBySso returns every record matching one of the identities, recording
// the validation on each. A supplied identity that matches nothing fails with
// that provider's unlinked error; Rumble failures are diagnosed instead.
func (r *Resolver) ResolveBySso(ctx context.Context, ids model.SsoIdentities, ip string, web bool) ([]*model.Player, error) {
	if !ids.HasAny() {
		return nil, nil
	}

	var clauses []storage.PlayerQuery
	touch := storage.SsoTouch{IPAddress: ip, Web: web, At: r.clock.Now()}
	if ids.Google != nil {
		clauses = append(clauses, storage.PlayerQuery{GoogleID: ids.Google.ID})
		touch.GoogleID = ids.Google.ID
	}
	if ids.Apple != nil {
		clauses = append(clauses, storage.PlayerQuery{AppleID: ids.Apple.ID})
		touch.AppleID = ids.Apple.ID
	}
	if ids.Plarium != nil {
		clauses = append(clauses, storage.PlayerQuery{PlariumID: ids.Plarium.ID})
		touch.PlariumID = ids.Plarium.ID
	}
	if ids.Rumble != nil {
		clauses = append(clauses, storage.PlayerQuery{
			RumbleUsername:  ids.Rumble.Username,
			RumbleHash:      ids.Rumble.Hash,
			RumbleMinStatus: model.RumbleConfirmed,
		})
		touch.RumbleUsername = ids.Rumble.Username
		touch.RumbleHash = ids.Rumble.Hash
	}

	found, err := r.players.TouchSsoLogins(ctx, storage.PlayerQuery{Any: clauses, Limit: maxSsoMatches}, touch)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve sso accounts: %w", err)
	}

	matched := func(provider model.Provider, subject string) bool {
		for _, p := range found {
			if id := p.Identities().Get(provider); id != nil && id.Subject() == subject {
				return true
			}
		}
		return false
	}
	if ids.Google != nil && !matched(model.ProviderGoogle, ids.Google.ID) {
		return nil, &model.UnlinkedError{Provider: model.ProviderGoogle}
	}
	if ids.Apple != nil && !matched(model.ProviderApple, ids.Apple.ID) {
		return nil, &model.UnlinkedError{Provider: model.ProviderApple}
	}
	if ids.Plarium != nil && !matched(model.ProviderPlarium, ids.Plarium.ID) {
		return nil, &model.UnlinkedError{Provider: model.ProviderPlarium}
	}
	if ids.Rumble != nil && !matched(model.ProviderRumble, ids.Rumble.Email) {
		diagnosis, err := r.confirmation.Diagnose(ctx, ids.Rumble.Email, ids.Rumble.Hash, "")
		if err != nil {
			return nil, err
		}
		return nil, diagnosis.Err()
	}
	return found, nil
}

// EnsureIdentityNotClaimed fails when a live account other than requestingID
// already owns the identity, or when requestingID owns it already.
func (r *Resolver) EnsureIdentityNotClaimed(ctx context.Context, requestingID model.PlayerID, identity model.Identity) error {
	q := storage.PlayerQuery{LiveOnly: true}
	switch identity.Provider() {
	case model.ProviderGoogle:
		q.GoogleID = identity.Subject()
	case model.ProviderApple:
		q.AppleID = identity.Subject()
	case model.ProviderPlarium:
		q.PlariumID = identity.Subject()
	case model.ProviderRumble:
		q.RumbleEmail = identity.Subject()
		q.RumbleMinStatus = model.RumbleConfirmed
	}

	owners, err := r.players.FindPlayers(ctx, q)
	if err != nil {
		return fmt.Errorf("failed to check identity ownership: %w", err)
	}
	ids := model.DistinctAccountIDs(owners...)

	switch {
	case len(ids) == 0:
		return nil
	case len(ids) > 1:
		r.logger.Error("identity is attached to multiple accounts",
			slog.String("provider", string(identity.Provider())),
			slog.Any("account_ids", ids),
		)
		return &model.RecordsFoundError{
			Expected: 1,
			Found:    len(ids),
			Reason:   fmt.Sprintf("%s identity attached to multiple accounts", identity.Provider()),
		}
	case ids[0] == requestingID:
		return &model.AlreadyLinkedError{Provider: identity.Provider()}
	default:
		return &model.OwnershipError{
			Provider:     identity.Provider(),
			RequestingID: requestingID,
			OwnerID:      ids[0],
		}
	}
}

// AttachIdentity stores the identity on player, persists it and issues a new
// token. A Rumble identity starts unconfirmed and a confirmation email is sent.
func (r *Resolver) AttachIdentity(ctx context.Context, player *model.Player, identity model.Identity, ip string) (*model.Player, error) {
	identity.Stats().ResetStats(r.clock.Now())

	if rumble, ok := identity.(*model.RumbleAccount); ok {
		player.Rumble = rumble
		if err := r.confirmation.IssueConfirmation(ctx, player); err != nil {
			return nil, err
		}
	}

	var update storage.PlayerUpdate
	update.Attach(identity)
	updated, err := r.players.UpdateOne(ctx, storage.PlayerQuery{IDs: []model.PlayerID{player.ID}}, update)
	if err != nil {
		return nil, fmt.Errorf("failed to attach %s identity: %w", identity.Provider(), err)
	}
	updated.Children = player.Children

	if err := r.IssueToken(ctx, updated, ip); err != nil {
		return nil, err
	}
	return updated, nil
}

// SetLinkCode stamps a fresh link code on the accounts and their children
func (r *Resolver) SetLinkCode(ctx context.Context, ids []model.PlayerID) (string, error) {
	var clean []model.PlayerID
	for _, id := range ids {
		if id != "" {
			clean = append(clean, id)
		}
	}
	if len(clean) == 0 {
		return "", fmt.Errorf("no accounts to link: %w", model.ErrRecordNotFound)
	}

	code := uuid.NewString()
	_, err := r.players.UpdatePlayers(ctx, storage.PlayerQuery{
		Any: []storage.PlayerQuery{
			{IDs: clean},
			{ParentIDs: clean},
		},
	}, storage.PlayerUpdate{
		LinkCode:       storage.Ptr(code),
		LinkExpiration: storage.Ptr(r.clock.Now().Add(LinkCodeTTL)),
	})
	if err != nil {
		return "", fmt.Errorf("failed to set link code: %w", err)
	}
	return code, nil
}

// LinkAccounts merges every account sharing accountID's link code into
// accountID. The others become children and lose their SSO identities; an
// unconfirmed Rumble record on the primary survives.
// Nothing is written when the group holds conflicting identities.
func (r *Resolver) LinkAccounts(ctx context.Context, accountID model.PlayerID, ip string) (*model.Player, error) {
	var output *model.Player
	err := r.players.RunInTransaction(ctx, func(ctx context.Context) error {
		primary, err := r.players.GetPlayer(ctx, accountID)
		if errors.Is(err, model.ErrPlayerNotFound) {
			return fmt.Errorf("no player account %s: %w", accountID, model.ErrRecordNotFound)
		}
		if err != nil {
			return err
		}
		if primary.LinkCode == "" {
			return fmt.Errorf("%w: %w", model.ErrLinkCodeMissing, model.ErrRecordNotFound)
		}
		if !primary.HasLiveLinkCode(r.clock.Now()) {
			return model.ErrLinkExpired
		}

		others, err := r.players.FindPlayers(ctx, storage.PlayerQuery{
			ExcludeIDs: []model.PlayerID{primary.ID},
			Any: []storage.PlayerQuery{
				{LinkCode: primary.LinkCode},
				{ParentIDs: []model.PlayerID{primary.ID}},
			},
		})
		if err != nil {
			return err
		}
		if len(others) == 0 {
			return fmt.Errorf("no other accounts found to link: %w", model.ErrRecordNotFound)
		}

		merged, err := mergeIdentities(append([]*model.Player{primary}, others...))
		if err != nil {
			r.logger.Error("link group holds conflicting identities",
				slog.String("account_id", string(primary.ID)),
				slog.Any("error", err),
			)
			return err
		}
		update := storage.PlayerUpdate{
			LinkCode:       storage.Ptr(""),
			LinkExpiration: storage.Ptr(time.Time{}),
		}
		own := primary.Identities()
		for _, identity := range merged.All() {
			if own.Get(identity.Provider()) != identity {
				update.Attach(identity)
			}
		}
		updated, err := r.players.UpdateOne(ctx, storage.PlayerQuery{IDs: []model.PlayerID{primary.ID}}, update)
		if err != nil {
			return err
		}

		var otherIDs []model.PlayerID
		for _, o := range others {
			otherIDs = append(otherIDs, o.ID)
		}
		if _, err := r.players.UpdatePlayers(ctx, storage.PlayerQuery{IDs: otherIDs}, storage.PlayerUpdate{
			ParentID:       storage.Ptr(primary.ID),
			ClearSso:       true,
			LinkCode:       storage.Ptr(""),
			LinkExpiration: storage.Ptr(time.Time{}),
		}); err != nil {
			return err
		}

		r.logger.Info("linked accounts",
			slog.String("account_id", string(primary.ID)),
			slog.Any("children", otherIDs),
		)
		output = updated
		return nil
	})
	if err != nil {
		return nil, err
	}

	if err := r.IssueToken(ctx, output, ip); err != nil {
		return nil, err
	}
	return output, nil
}

// mergeIdentities collects at most one identity per provider across players.
// Unconfirmed Rumble accounts are ignored.
func mergeIdentities(players []*model.Player) (model.SsoIdentities, error) {
	var out model.SsoIdentities
	counts := map[model.Provider]int{}
	for _, p := range players {
		if p.Google != nil {
			out.Google = p.Google
			counts[model.ProviderGoogle]++
		}
		if p.Apple != nil {
			out.Apple = p.Apple
			counts[model.ProviderApple]++
		}
		if p.Plarium != nil {
			out.Plarium = p.Plarium
			counts[model.ProviderPlarium]++
		}
		if p.Rumble != nil && p.Rumble.Status.IsConfirmed() {
			out.Rumble = p.Rumble
			counts[model.ProviderRumble]++
		}
	}
	for _, provider := range []model.Provider{model.ProviderGoogle, model.ProviderApple, model.ProviderPlarium, model.ProviderRumble} {
		if n := counts[provider]; n > 1 {
			return out, &model.RecordsFoundError{
				Expected: 1,
				Found:    n,
				Reason:   fmt.Sprintf("multiple %s accounts found", provider),
			}
		}
	}
	return out, nil
}

// LinkPlayerAccounts makes childID a child of parentID. Without force it
// refuses children that already have another parent or carry SSO identities.
func (r *Resolver) LinkPlayerAccounts(ctx context.Context, childID, parentID model.PlayerID, force bool, actor string) (*model.Player, error) {
	if childID == parentID {
		return nil, fmt.Errorf("cannot link an account to itself: %w", model.ErrInvalidIdentity)
	}

	var output *model.Player
	err := r.players.RunInTransaction(ctx, func(ctx context.Context) error {
		child, err := r.load(ctx, childID)
		if err != nil {
			return err
		}
		parent, err := r.load(ctx, parentID)
		if err != nil {
			return err
		}
		owner := parent.AccountID()

		if child.ParentID != "" && child.ParentID != owner && !force {
			return fmt.Errorf("%s is a child of %s: %w", child.ID, child.ParentID, model.ErrHasParent)
		}
		if child.HasSso() && !force {
			return fmt.Errorf("%s: %w", child.ID, model.ErrHasSso)
		}

		updated, err := r.players.UpdateOne(ctx, storage.PlayerQuery{IDs: []model.PlayerID{child.ID}}, storage.PlayerUpdate{
			ClearSso:       true,
			ParentID:       storage.Ptr(owner),
			LinkCode:       storage.Ptr(""),
			LinkExpiration: storage.Ptr(time.Time{}),
		})
		if err != nil {
			return err
		}
		if _, err := r.players.UpdatePlayers(ctx, storage.PlayerQuery{ParentIDs: []model.PlayerID{child.ID}}, storage.PlayerUpdate{
			ParentID: storage.Ptr(owner),
		}); err != nil {
			return err
		}

		r.logger.Info("admin linked accounts",
			slog.String("child_id", string(child.ID)),
			slog.String("parent_id", string(owner)),
			slog.Bool("force", force),
			slog.String("actor", actor),
		)
		output = updated
		return nil
	})
	if err != nil {
		return nil, err
	}
	return output, nil
}

// SyncScreenname changes the screenname on an account and its children,
// keeping the current discriminator when it is still free. Returns the number
// of records changed.
func (r *Resolver) SyncScreenname(ctx context.Context, accountID model.PlayerID, screenname string) (int64, error) {
	player, err := r.load(ctx, accountID)
	if err != nil {
		return 0, err
	}
	if _, err := r.discriminator.Reassign(ctx, player, screenname); err != nil {
		return 0, fmt.Errorf("failed to reassign discriminator: %w", err)
	}
	n, err := r.players.UpdatePlayers(ctx, storage.PlayerQuery{
		Any: []storage.PlayerQuery{
			{IDs: []model.PlayerID{player.ID}},
			{ParentIDs: []model.PlayerID{player.ID}},
		},
	}, storage.PlayerUpdate{Screenname: storage.Ptr(screenname)})
	if err != nil {
		return 0, fmt.Errorf("failed to update screenname: %w", err)
	}
	return n, nil
}

// Find returns the account owning accountID with its children listed
func (r *Resolver) Find(ctx context.Context, accountID model.PlayerID) (*model.Player, error) {
	player, err := r.load(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if player.IsChild() {
		if player, err = r.load(ctx, player.ParentID); err != nil {
			return nil, err
		}
	}

	children, err := r.players.FindPlayers(ctx, storage.PlayerQuery{ParentIDs: []model.PlayerID{player.ID}})
	if err != nil {
		return nil, err
	}
	player.Children = nil
	for _, c := range children {
		player.Children = append(player.Children, c.ID)
	}
	return player, nil
}

// IssueToken requests a bearer token for player and stores it on the record
func (r *Resolver) IssueToken(ctx context.Context, player *model.Player, ip string) error {
	tok, err := r.issuer.Issue(ctx, token.RequestFor(player, ip, r.cfg.Audiences))
	if err != nil {
		return fmt.Errorf("failed to issue token for %s: %w", player.AccountID(), err)
	}
	player.Token = tok
	return nil
}

// Erase overwrites every email held by the account with placeholder and
// scrubs the matching lockout logs. Returns the number of logs rewritten.
func (r *Resolver) Erase(ctx context.Context, accountID model.PlayerID, placeholder string) (*model.Player, int64, error) {
	player, err := r.Find(ctx, accountID)
	if err != nil {
		return nil, 0, err
	}

	var emails []string
	for _, identity := range player.Identities().All() {
		if email := identity.EmailAddress(); email != "" && email != placeholder && !slices.Contains(emails, email) {
			emails = append(emails, email)
		}
	}

	erased, err := r.players.UpdateOne(ctx, storage.PlayerQuery{IDs: []model.PlayerID{player.ID}}, storage.PlayerUpdate{
		EraseEmails: placeholder,
	})
	if err != nil {
		return nil, 0, fmt.Errorf("failed to erase player: %w", err)
	}
	erased.Children = player.Children

	var scrubbed int64
	for _, email := range emails {
		n, err := r.lockout.EraseEmail(ctx, email, placeholder)
		if err != nil {
			return nil, scrubbed, fmt.Errorf("failed to scrub lockout logs: %w", err)
		}
		scrubbed += n
	}

	r.logger.Info("erased account pii",
		slog.String("account_id", string(erased.ID)),
		slog.Int("emails", len(emails)),
		slog.Int64("lockout_logs", scrubbed),
	)
	return erased, scrubbed, nil
}

func (r *Resolver) load(ctx context.Context, id model.PlayerID) (*model.Player, error) {
	player, err := r.players.GetPlayer(ctx, id)
	if errors.Is(err, model.ErrPlayerNotFound) {
		return nil, fmt.Errorf("no player account %s: %w", id, model.ErrRecordNotFound)
	}
	if err != nil {
		return nil, err
	}
	return player, nil
}
