package model

import (
	"slices"
	"time"
)

// PlayerID uniquely identifies a player record
type PlayerID string

// Player is the canonical account record. A Player with a ParentID is a child:
// its SSO identities have been moved to the parent and logins resolve to the parent.
type Player struct {
	ID       PlayerID    `json:"id" bson:"_id"`
	ParentID PlayerID    `json:"parent_id,omitempty" bson:"parent,omitempty"`
	Device   *DeviceInfo `json:"device,omitempty" bson:"device,omitempty"`

	Google  *GoogleAccount  `json:"google,omitempty" bson:"google,omitempty"`
	Apple   *AppleAccount   `json:"apple,omitempty" bson:"apple,omitempty"`
	Plarium *PlariumAccount `json:"plarium,omitempty" bson:"plarium,omitempty"`
	Rumble  *RumbleAccount  `json:"rumble,omitempty" bson:"rumble,omitempty"`

	Screenname    string `json:"screenname,omitempty" bson:"screenname,omitempty"`
	Discriminator *int   `json:"discriminator,omitempty" bson:"discriminator,omitempty"`

	LinkCode       string    `json:"-" bson:"linkCode,omitempty"`
	LinkExpiration time.Time `json:"-" bson:"linkExpiration,omitempty"`

	LastLogin    time.Time `json:"last_login" bson:"lastLogin,omitempty"`
	CreatedOn    time.Time `json:"created_on" bson:"createdOn,omitempty"`
	SessionCount int64     `json:"session_count" bson:"sessions"`
	Location     *Location `json:"location,omitempty" bson:"location,omitempty"`

	// Transient fields, never persisted
	Children []PlayerID `json:"children,omitempty" bson:"-"`
	Token    string     `json:"token,omitempty" bson:"-"`
}

// Location is client-reported geographic data attached at login
type Location struct {
	CountryCode string `json:"country_code,omitempty" bson:"country,omitempty"`
	Region      string `json:"region,omitempty" bson:"region,omitempty"`
	City        string `json:"city,omitempty" bson:"city,omitempty"`
	PostalCode  string `json:"postal_code,omitempty" bson:"postal,omitempty"`
}

// AccountID returns the id that owns this record's identities
func (p *Player) AccountID() PlayerID {
	if p.ParentID != "" {
		return p.ParentID
	}
	return p.ID
}

// IsChild reports whether the record has been merged into a parent
func (p *Player) IsChild() bool {
	return p.ParentID != ""
}

// HasDiscriminator reports whether a discriminator has ever been assigned
func (p *Player) HasDiscriminator() bool {
	return p.Discriminator != nil
}

// DiscriminatorValue returns the assigned discriminator or 0
func (p *Player) DiscriminatorValue() int {
	if p.Discriminator == nil {
		return 0
	}
	return *p.Discriminator
}

// HasLiveLinkCode reports whether the record holds a link code that has not expired
func (p *Player) HasLiveLinkCode(now time.Time) bool {
	return p.LinkCode != "" && p.LinkExpiration.After(now)
}

// Identities returns the SSO identities attached to the record
func (p *Player) Identities() SsoIdentities {
	return SsoIdentities{
		Google:  p.Google,
		Apple:   p.Apple,
		Plarium: p.Plarium,
		Rumble:  p.Rumble,
	}
}

// HasSso reports whether any SSO identity is attached
func (p *Player) HasSso() bool {
	return p.Identities().HasAny()
}

// ClearSso detaches every SSO identity
func (p *Player) ClearSso() {
	p.Google = nil
	p.Apple = nil
	p.Plarium = nil
	p.Rumble = nil
}

// Attach stores the identity in its provider slot, replacing any existing value
func (p *Player) Attach(identity Identity) {
	switch id := identity.(type) {
	case *GoogleAccount:
		p.Google = id
	case *AppleAccount:
		p.Apple = id
	case *PlariumAccount:
		p.Plarium = id
	case *RumbleAccount:
		p.Rumble = id
	}
}

// AttachIfAbsent stores the identity only when its provider slot is empty.
// Returns true when the identity was attached.
func (p *Player) AttachIfAbsent(identity Identity) bool {
	if identity == nil || p.Identities().Get(identity.Provider()) != nil {
		return false
	}
	p.Attach(identity)
	return true
}

// Clone returns a deep copy of the record
func (p *Player) Clone() *Player {
	if p == nil {
		return nil
	}
	c := *p
	if p.Device != nil {
		d := *p.Device
		c.Device = &d
	}
	if p.Google != nil {
		g := *p.Google
		c.Google = &g
	}
	if p.Apple != nil {
		a := *p.Apple
		c.Apple = &a
	}
	if p.Plarium != nil {
		pl := *p.Plarium
		c.Plarium = &pl
	}
	if p.Rumble != nil {
		r := *p.Rumble
		r.ConfirmedIDs = slices.Clone(p.Rumble.ConfirmedIDs)
		c.Rumble = &r
	}
	if p.Discriminator != nil {
		d := *p.Discriminator
		c.Discriminator = &d
	}
	if p.Location != nil {
		l := *p.Location
		c.Location = &l
	}
	c.Children = slices.Clone(p.Children)
	return &c
}

// Prune returns a copy safe to hand to clients: secrets and codes are removed
func (p *Player) Prune() *Player {
	c := p.Clone()
	if c == nil {
		return nil
	}
	if c.Device != nil {
		c.Device.ConfirmedPrivateKey = ""
	}
	if c.Rumble != nil {
		c.Rumble.Hash = ""
		c.Rumble.ConfirmationCode = ""
	}
	return c
}

// DistinctAccountIDs returns the account ids of the given players, first occurrence order
func DistinctAccountIDs(players ...*Player) []PlayerID {
	var ids []PlayerID
	for _, p := range players {
		if p == nil {
			continue
		}
		if id := p.AccountID(); !slices.Contains(ids, id) {
			ids = append(ids, id)
		}
	}
	return ids
}
