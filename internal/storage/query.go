package storage

import (
	"slices"
	"time"

	"github.com/mcoot/playeraccounts/internal/model"
)

// PlayerQuery selects Player records. Set fields are combined with AND; Any
// adds an OR group that must match at least one entry.
type PlayerQuery struct {
	IDs        []model.PlayerID
	ExcludeIDs []model.PlayerID
	ParentIDs  []model.PlayerID

	InstallID string
	GoogleID  string
	AppleID   string
	PlariumID string

	RumbleEmail    string
	RumbleUsername string
	RumbleHash     string
	RumbleCode     string
	RumbleStatuses []model.RumbleStatus
	// RumbleMinStatus matches records whose status is at least this value
	RumbleMinStatus model.RumbleStatus
	// RumbleCodeLiveAt matches codes expiring after the instant
	RumbleCodeLiveAt time.Time
	// RumbleCodeExpiredAt matches codes expiring at or before the instant
	RumbleCodeExpiredAt time.Time
	HasRumble           bool

	Screenname    string
	Discriminator *int

	LinkCode string
	// LinkExpiredAt matches records holding a link code that expired at or before the instant
	LinkExpiredAt time.Time

	// LiveOnly excludes child records
	LiveOnly bool

	Any []PlayerQuery

	// Limit caps the number of results; zero means unlimited
	Limit int
}

// usesRumble reports whether the query constrains the Rumble sub-record
func (q PlayerQuery) usesRumble() bool {
	return q.HasRumble || q.RumbleEmail != "" || q.RumbleUsername != "" || q.RumbleHash != "" ||
		q.RumbleCode != "" || len(q.RumbleStatuses) > 0 || q.RumbleMinStatus > model.RumbleNone ||
		!q.RumbleCodeLiveAt.IsZero() || !q.RumbleCodeExpiredAt.IsZero()
}

// Matches evaluates the query against a record
func (q PlayerQuery) Matches(p *model.Player) bool {
	if len(q.IDs) > 0 && !slices.Contains(q.IDs, p.ID) {
		return false
	}
	if slices.Contains(q.ExcludeIDs, p.ID) {
		return false
	}
	if len(q.ParentIDs) > 0 && !slices.Contains(q.ParentIDs, p.ParentID) {
		return false
	}
	if q.LiveOnly && p.ParentID != "" {
		return false
	}
	if q.InstallID != "" && (p.Device == nil || p.Device.InstallID != q.InstallID) {
		return false
	}
	if q.GoogleID != "" && (p.Google == nil || p.Google.ID != q.GoogleID) {
		return false
	}
	if q.AppleID != "" && (p.Apple == nil || p.Apple.ID != q.AppleID) {
		return false
	}
	if q.PlariumID != "" && (p.Plarium == nil || p.Plarium.ID != q.PlariumID) {
		return false
	}
	if q.usesRumble() && !q.matchesRumble(p.Rumble) {
		return false
	}
	if q.Screenname != "" && p.Screenname != q.Screenname {
		return false
	}
	if q.Discriminator != nil && (p.Discriminator == nil || *p.Discriminator != *q.Discriminator) {
		return false
	}
	if q.LinkCode != "" && p.LinkCode != q.LinkCode {
		return false
	}
	if !q.LinkExpiredAt.IsZero() && (p.LinkCode == "" || p.LinkExpiration.After(q.LinkExpiredAt)) {
		return false
	}
	if len(q.Any) > 0 && !slices.ContainsFunc(q.Any, func(sub PlayerQuery) bool { return sub.Matches(p) }) {
		return false
	}
	return true
}

func (q PlayerQuery) matchesRumble(r *model.RumbleAccount) bool {
	if r == nil {
		return false
	}
	if q.RumbleEmail != "" && r.Email != q.RumbleEmail {
		return false
	}
	if q.RumbleUsername != "" && r.Username != q.RumbleUsername {
		return false
	}
	if q.RumbleHash != "" && r.Hash != q.RumbleHash {
		return false
	}
	if q.RumbleCode != "" && r.ConfirmationCode != q.RumbleCode {
		return false
	}
	if len(q.RumbleStatuses) > 0 && !slices.Contains(q.RumbleStatuses, r.Status) {
		return false
	}
	if r.Status < q.RumbleMinStatus {
		return false
	}
	if !q.RumbleCodeLiveAt.IsZero() && !r.CodeExpiration.After(q.RumbleCodeLiveAt) {
		return false
	}
	if !q.RumbleCodeExpiredAt.IsZero() && r.CodeExpiration.After(q.RumbleCodeExpiredAt) {
		return false
	}
	return true
}

// PlayerUpdate describes field changes applied by UpdatePlayers and UpdateOne.
// Nil pointers leave a field untouched; pointers to zero values clear it.
// Writes go through PlayerUpdate rather than SavePlayer whenever the record
// already exists, so concurrent changes to other fields survive.
type PlayerUpdate struct {
	RumbleStatus         *model.RumbleStatus
	RumbleCode           *string
	RumbleCodeExpiration *time.Time
	RumbleHash           *string
	// AddConfirmedID appends to Rumble.ConfirmedIDs, keeping the newest model.MaxConfirmedIDs
	AddConfirmedID model.PlayerID
	ClearRumble    bool
	ClearSso       bool

	// Google, Apple, Plarium and Rumble replace a provider sub-record.
	// With AttachIfAbsent an occupied slot is left alone.
	Google         *model.GoogleAccount
	Apple          *model.AppleAccount
	Plarium        *model.PlariumAccount
	Rumble         *model.RumbleAccount
	AttachIfAbsent bool

	// EraseEmails overwrites every stored SSO email, the Plarium login and the
	// Rumble username with the placeholder it holds
	EraseEmails string

	// Device replaces the descriptive device fields. A confirmed key is kept;
	// DeviceKey is stored only when none has been confirmed yet.
	Device    *model.DeviceInfo
	DeviceKey string

	LastLogin *time.Time
	// CreatedOn is written only when the record has no creation time
	CreatedOn   *time.Time
	AddSessions int64
	Location    *model.Location

	LinkCode       *string
	LinkExpiration *time.Time
	// ClearExpiredLinkCodeAt removes a link code that expired at or before the
	// instant. Ignored when LinkCode is set.
	ClearExpiredLinkCodeAt *time.Time
	Screenname             *string
	Discriminator          *int
	ParentID               *model.PlayerID
}

// Attach sets the identity's provider slot on the update
func (u *PlayerUpdate) Attach(identity model.Identity) {
	switch id := identity.(type) {
	case *model.GoogleAccount:
		u.Google = id
	case *model.AppleAccount:
		u.Apple = id
	case *model.PlariumAccount:
		u.Plarium = id
	case *model.RumbleAccount:
		u.Rumble = id
	}
}

// Apply mutates the record in place. Rumble changes are skipped when no Rumble record exists.
func (u PlayerUpdate) Apply(p *model.Player) {
	if u.ClearSso {
		p.ClearSso()
	}
	if u.ClearRumble {
		p.Rumble = nil
	}
	u.applyIdentities(p)
	if u.EraseEmails != "" {
		eraseEmails(p, u.EraseEmails)
	}
	if r := p.Rumble; r != nil {
		if u.RumbleStatus != nil {
			r.Status = *u.RumbleStatus
		}
		if u.RumbleCode != nil {
			r.ConfirmationCode = *u.RumbleCode
		}
		if u.RumbleCodeExpiration != nil {
			r.CodeExpiration = *u.RumbleCodeExpiration
		}
		if u.RumbleHash != nil {
			r.Hash = *u.RumbleHash
		}
		if u.AddConfirmedID != "" {
			r.AddConfirmedID(u.AddConfirmedID)
		}
	}

	if u.Device != nil {
		d := *u.Device
		d.PrivateKey = ""
		d.ConfirmedPrivateKey = u.DeviceKey
		if p.Device != nil && p.Device.ConfirmedPrivateKey != "" {
			d.ConfirmedPrivateKey = p.Device.ConfirmedPrivateKey
		}
		p.Device = &d
	}
	if u.LastLogin != nil {
		p.LastLogin = *u.LastLogin
	}
	if u.CreatedOn != nil && p.CreatedOn.IsZero() {
		p.CreatedOn = *u.CreatedOn
	}
	p.SessionCount += u.AddSessions
	if u.Location != nil {
		loc := *u.Location
		p.Location = &loc
	}

	if u.LinkCode != nil {
		p.LinkCode = *u.LinkCode
	} else if u.ClearExpiredLinkCodeAt != nil && p.LinkCode != "" && !p.LinkExpiration.After(*u.ClearExpiredLinkCodeAt) {
		p.LinkCode = ""
		p.LinkExpiration = time.Time{}
	}
	if u.LinkExpiration != nil {
		p.LinkExpiration = *u.LinkExpiration
	}
	if u.Screenname != nil {
		p.Screenname = *u.Screenname
	}
	if u.Discriminator != nil {
		d := *u.Discriminator
		p.Discriminator = &d
	}
	if u.ParentID != nil {
		p.ParentID = *u.ParentID
	}
}

// applyIdentities copies the update's identities so the record never shares
// memory with the caller
func (u PlayerUpdate) applyIdentities(p *model.Player) {
	if g := u.Google; g != nil && (!u.AttachIfAbsent || p.Google == nil) {
		c := *g
		p.Google = &c
	}
	if a := u.Apple; a != nil && (!u.AttachIfAbsent || p.Apple == nil) {
		c := *a
		p.Apple = &c
	}
	if pl := u.Plarium; pl != nil && (!u.AttachIfAbsent || p.Plarium == nil) {
		c := *pl
		p.Plarium = &c
	}
	if r := u.Rumble; r != nil && (!u.AttachIfAbsent || p.Rumble == nil) {
		c := *r
		c.ConfirmedIDs = slices.Clone(r.ConfirmedIDs)
		p.Rumble = &c
	}
}

func eraseEmails(p *model.Player, placeholder string) {
	erase := func(email *string) {
		if *email != "" {
			*email = placeholder
		}
	}
	if g := p.Google; g != nil {
		erase(&g.Email)
	}
	if a := p.Apple; a != nil {
		erase(&a.Email)
	}
	if pl := p.Plarium; pl != nil {
		erase(&pl.Email)
		pl.Login = placeholder
	}
	if r := p.Rumble; r != nil {
		erase(&r.Email)
		r.Username = placeholder
	}
}
