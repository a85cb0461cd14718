package login

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/mcoot/playeraccounts/internal/dependencies/clock"
	"github.com/mcoot/playeraccounts/internal/model"
	"github.com/mcoot/playeraccounts/internal/services/account"
	"github.com/mcoot/playeraccounts/internal/services/confirmation"
	"github.com/mcoot/playeraccounts/internal/services/discriminator"
	"github.com/mcoot/playeraccounts/internal/services/identity"
	"github.com/mcoot/playeraccounts/internal/services/lockout"
	"github.com/mcoot/playeraccounts/internal/services/names"
	"github.com/mcoot/playeraccounts/internal/services/notify"
	"github.com/mcoot/playeraccounts/internal/storage"
)

var errMissingCredential = errors.New("no credential supplied")

// webDeviceType is reported in login notifications for requests without a device
const webDeviceType = "web"

// Config holds orchestrator settings
type Config struct {
	// Maintenance rejects every login while set
	Maintenance bool
}

// Request is a single login attempt
type Request struct {
	Device      *model.DeviceInfo
	Credentials identity.Credentials
	Location    *model.Location
	IPAddress   string
	// Web marks requests from the web portal rather than a game client
	Web bool
}

// Orchestrator runs the login flow and the SSO attach use cases
type Orchestrator struct {
	resolver      *account.Resolver
	confirmation  *confirmation.Service
	validator     identity.Validator
	lockout       *lockout.Guard
	discriminator *discriminator.Assigner
	names         *names.Generator
	players       storage.Players
	notifier      notify.Notifier
	clock         clock.Clock
	cfg           Config
	logger        *slog.Logger
}

// New creates a new Orchestrator
func New(
	resolver *account.Resolver,
	confirmation *confirmation.Service,
	validator identity.Validator,
	lockout *lockout.Guard,
	discriminator *discriminator.Assigner,
	names *names.Generator,
	players storage.Players,
	notifier notify.Notifier,
	clock clock.Clock,
	cfg Config,
	logger *slog.Logger,
) *Orchestrator {
	return &Orchestrator{
		resolver:      resolver,
		confirmation:  confirmation,
		validator:     validator,
		lockout:       lockout,
		discriminator: discriminator,
		names:         names,
		players:       players,
		notifier:      notifier,
		clock:         clock,
		cfg:           cfg,
		logger:        logger,
	}
}

// Login resolves the device and SSO credentials in req to one account. It
// never returns nil; failures are reported as a KindFailed result.
func (o *Orchestrator) Login(ctx context.Context, req Request) *Result {
	if o.cfg.Maintenance {
		d := model.DiagnoseError(model.ErrMaintenance)
		return &Result{Kind: KindMaintenance, Diagnosis: &d, Err: model.ErrMaintenance}
	}

	result, err := o.login(ctx, req)
	if err != nil {
		return o.fail(ctx, req, err)
	}
	return result
}

func (o *Orchestrator) login(ctx context.Context, req Request) (*Result, error) {
	email := req.Credentials.RumbleEmail()
	if email != "" {
		if err := o.lockout.EnsureNotLockedOut(ctx, email, req.IPAddress); err != nil {
			return nil, err
		}
	}

	ids, err := o.validator.Validate(ctx, req.Credentials)
	if err != nil {
		return nil, err
	}
	matches, err := o.resolver.ResolveBySso(ctx, ids, req.IPAddress, req.Web)
	if err != nil {
		return nil, err
	}

	var primary *model.Player
	if req.Device != nil {
		if primary, err = o.resolver.ResolveByDevice(ctx, req.Device); err != nil {
			return nil, err
		}
	} else {
		if len(matches) == 0 {
			return nil, &model.RecordsFoundError{Expected: 1, Found: 0, Reason: "no player exists with the supplied credentials"}
		}
		if primary, err = o.resolver.Find(ctx, matches[0].AccountID()); err != nil {
			return nil, err
		}
	}

	update, err := o.stamp(ctx, primary, req.Location)
	if err != nil {
		return nil, err
	}
	if err := o.resolver.IssueToken(ctx, primary, req.IPAddress); err != nil {
		return nil, err
	}

	var conflicts []*model.Player
	for _, m := range matches {
		if m.AccountID() != primary.ID && !slices.ContainsFunc(conflicts, func(c *model.Player) bool { return c.ID == m.ID }) {
			conflicts = append(conflicts, m)
		}
	}
	if len(conflicts) > 0 {
		return o.conflict(ctx, req, ids, primary, update, conflicts)
	}

	update.Google = ids.Google
	update.Apple = ids.Apple
	update.Plarium = ids.Plarium
	update.AttachIfAbsent = true
	update.ClearExpiredLinkCodeAt = storage.Ptr(o.clock.Now())
	saved, err := o.persist(ctx, primary, update)
	if err != nil {
		return nil, err
	}

	return &Result{Kind: KindSuccess, Player: saved.Prune()}, nil
}

// stamp builds the login bookkeeping for the account owner and applies it to
// the in-memory record
func (o *Orchestrator) stamp(ctx context.Context, player *model.Player, location *model.Location) (storage.PlayerUpdate, error) {
	if player.Screenname == "" {
		if err := o.repairScreenname(ctx, player); err != nil {
			return storage.PlayerUpdate{}, err
		}
	}
	if _, err := o.discriminator.Lookup(ctx, player); err != nil {
		return storage.PlayerUpdate{}, fmt.Errorf("failed to look up discriminator: %w", err)
	}

	now := o.clock.Now()
	update := storage.PlayerUpdate{
		LastLogin:   &now,
		CreatedOn:   &now,
		AddSessions: 1,
		Location:    location,
	}
	update.Apply(player)
	return update, nil
}

// persist writes only the fields the login changed, so writes made while the
// login was in flight are kept. The returned record carries player's token
// and the device key issued for this request.
func (o *Orchestrator) persist(ctx context.Context, player *model.Player, update storage.PlayerUpdate) (*model.Player, error) {
	saved, err := o.players.UpdateOne(ctx, storage.PlayerQuery{IDs: []model.PlayerID{player.ID}}, update)
	if err != nil {
		return nil, fmt.Errorf("failed to save player: %w", err)
	}
	saved.Token = player.Token
	saved.Children = player.Children
	if saved.Device != nil && player.Device != nil {
		saved.Device.PrivateKey = player.Device.PrivateKey
	}
	return saved, nil
}

func (o *Orchestrator) repairScreenname(ctx context.Context, player *model.Player) error {
	name := o.names.Next()
	o.logger.Warn("player has no screenname; assigning a generated one",
		slog.String("player_id", string(player.ID)),
	)
	count, err := o.resolver.SyncScreenname(ctx, player.ID, name)
	if err != nil {
		return fmt.Errorf("failed to repair screenname: %w", err)
	}
	o.logger.Info("screenname has been updated", slog.Int64("linked_accounts_affected", count))

	synced, err := o.players.GetPlayer(ctx, player.ID)
	if err != nil {
		return err
	}
	player.Screenname = synced.Screenname
	player.Discriminator = synced.Discriminator
	return nil
}

func (o *Orchestrator) conflict(ctx context.Context, req Request, ids model.SsoIdentities, primary *model.Player, update storage.PlayerUpdate, conflicts []*model.Player) (*Result, error) {
	group := append([]*model.Player{primary}, conflicts...)
	groupIDs := model.DistinctAccountIDs(group...)

	var rumbles []*model.RumbleAccount
	for _, p := range group {
		if p.Rumble != nil && p.Rumble.Status.IsConfirmed() {
			rumbles = append(rumbles, p.Rumble)
		}
	}
	if len(rumbles) > 1 {
		return nil, &model.RecordsFoundError{Expected: 1, Found: len(rumbles), Reason: "more than one rumble account found"}
	}

	if len(rumbles) == 1 && !rumbles[0].IsConfirmedFor(primary.ID) && !ids.SkipTwoFactor() {
		rumble := rumbles[0]
		if _, err := o.resolver.SetLinkCode(ctx, groupIDs); err != nil {
			return nil, err
		}
		if _, err := o.confirmation.SendTwoFactorNotification(ctx, rumble.Email); err != nil {
			return nil, err
		}
		pruned := *rumble
		pruned.Hash = ""
		pruned.ConfirmationCode = ""
		return &Result{Kind: KindTwoFactorRequired, Player: primary.Prune(), Rumble: &pruned}, nil
	}

	saved, err := o.persist(ctx, primary, update)
	if err != nil {
		return nil, err
	}
	var out []*model.Player
	for _, c := range conflicts {
		// a record without a screenname cannot hold a discriminator
		if c.Screenname != "" {
			if _, err := o.discriminator.Lookup(ctx, c); err != nil {
				return nil, fmt.Errorf("failed to look up discriminator: %w", err)
			}
		}
		if err := o.resolver.IssueToken(ctx, c, req.IPAddress); err != nil {
			return nil, err
		}
		out = append(out, c.Prune())
	}

	if _, err := o.resolver.SetLinkCode(ctx, groupIDs); err != nil {
		return nil, err
	}

	deviceType := webDeviceType
	if req.Device != nil && req.Device.Type != "" {
		deviceType = req.Device.Type
	}
	for _, email := range notificationEmails(group) {
		if err := o.notifier.SendLoginNotification(ctx, email, deviceType); err != nil {
			o.logger.Error("unable to send login notification",
				slog.String("player_id", string(primary.ID)),
				slog.Any("error", err),
			)
		}
	}

	return &Result{Kind: KindAccountConflict, Player: saved.Prune(), Conflicts: out}, nil
}

func notificationEmails(players []*model.Player) []string {
	var emails []string
	add := func(email string) {
		if email != "" && !slices.Contains(emails, email) {
			emails = append(emails, email)
		}
	}
	for _, p := range players {
		if p.Google != nil {
			add(p.Google.Email)
		}
		if p.Rumble != nil {
			add(p.Rumble.Email)
		}
	}
	return emails
}

func (o *Orchestrator) fail(ctx context.Context, req Request, err error) *Result {
	d := model.DiagnoseError(err)

	if d.PasswordInvalid {
		if email := req.Credentials.RumbleEmail(); email != "" {
			if rerr := o.lockout.RegisterError(ctx, email, req.IPAddress); rerr != nil {
				o.logger.Error("unable to record failed login", slog.Any("error", rerr))
			}
		}
	}
	if !d.IsClassified() {
		o.logger.Error("login failed",
			slog.Any("error", err),
			slog.String("ip", req.IPAddress),
			slog.Bool("web", req.Web),
			slog.Bool("has_device", req.Device != nil),
		)
	}
	return &Result{Kind: KindFailed, Diagnosis: &d, Err: err}
}

// AttachGoogle links a Google identity to the device's account
func (o *Orchestrator) AttachGoogle(ctx context.Context, device *model.DeviceInfo, token, ip string) (*model.Player, error) {
	return o.attachToDevice(ctx, device, identity.Credentials{GoogleToken: token}, model.ProviderGoogle, ip)
}

// AttachApple links an Apple identity to the device's account
func (o *Orchestrator) AttachApple(ctx context.Context, device *model.DeviceInfo, token, nonce, ip string) (*model.Player, error) {
	return o.attachToDevice(ctx, device, identity.Credentials{AppleToken: token, AppleNonce: nonce}, model.ProviderApple, ip)
}

// AttachPlarium links a Plarium identity to the device's account
func (o *Orchestrator) AttachPlarium(ctx context.Context, device *model.DeviceInfo, code, token, ip string) (*model.Player, error) {
	return o.attachToDevice(ctx, device, identity.Credentials{PlariumCode: code, PlariumToken: token}, model.ProviderPlarium, ip)
}

// AttachRumble links an email account to the caller's account, found by
// accountID when authenticated and by device otherwise. The account starts
// unconfirmed and a confirmation email is sent.
func (o *Orchestrator) AttachRumble(ctx context.Context, accountID model.PlayerID, device *model.DeviceInfo, creds *identity.RumbleCredentials, ip string) (*model.Player, error) {
	var player *model.Player
	var err error
	switch {
	case accountID != "":
		player, err = o.resolver.Find(ctx, accountID)
	case device != nil:
		player, err = o.resolver.ResolveByDevice(ctx, device)
	default:
		err = model.ErrDeviceRequired
	}
	if err != nil {
		return nil, err
	}

	rumble := identity.NormalizeRumble(creds)
	if rumble == nil {
		return nil, &model.ValidationError{Provider: model.ProviderRumble, Err: errMissingCredential}
	}
	if player.Rumble != nil && player.Rumble.Status.IsConfirmed() {
		return nil, &model.AlreadyLinkedError{Provider: model.ProviderRumble}
	}
	return o.attach(ctx, player, rumble, ip)
}

func (o *Orchestrator) attachToDevice(ctx context.Context, device *model.DeviceInfo, creds identity.Credentials, provider model.Provider, ip string) (*model.Player, error) {
	player, err := o.resolver.ResolveByDevice(ctx, device)
	if err != nil {
		return nil, err
	}

	ids, err := o.validator.Validate(ctx, creds)
	if err != nil {
		return nil, err
	}
	id := ids.Get(provider)
	if id == nil {
		return nil, &model.ValidationError{Provider: provider, Err: errMissingCredential}
	}
	return o.attach(ctx, player, id, ip)
}

func (o *Orchestrator) attach(ctx context.Context, player *model.Player, id model.Identity, ip string) (*model.Player, error) {
	if err := o.resolver.EnsureIdentityNotClaimed(ctx, player.AccountID(), id); err != nil {
		return nil, err
	}
	attached, err := o.resolver.AttachIdentity(ctx, player, id, ip)
	if err != nil {
		return nil, err
	}
	o.logger.Info("attached identity",
		slog.String("account_id", string(attached.AccountID())),
		slog.String("provider", string(id.Provider())),
	)
	return attached.Prune(), nil
}

// Refresh reissues the account's token
func (o *Orchestrator) Refresh(ctx context.Context, accountID model.PlayerID, ip string) (*model.Player, error) {
	player, err := o.resolver.Find(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if err := o.resolver.IssueToken(ctx, player, ip); err != nil {
		return nil, err
	}
	return player.Prune(), nil
}
