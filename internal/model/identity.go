package model

import "time"

// Provider names an SSO identity source
type Provider string

const (
	ProviderGoogle  Provider = "google"
	ProviderApple   Provider = "apple"
	ProviderPlarium Provider = "plarium"
	ProviderRumble  Provider = "rumble"
)

// Identity is a normalized SSO identity attached to a Player
type Identity interface {
	Provider() Provider
	// Subject is the value that must be unique across live accounts:
	// the provider id, or the email for Rumble.
	Subject() string
	// EmailAddress returns the address associated with the identity, if any
	EmailAddress() string
	Stats() *ValidationStats
}

// ValidationStats tracks how often an identity has been used to log in
type ValidationStats struct {
	WebValidationCount      int64     `json:"web_validation_count" bson:"webValidationCount"`
	ClientValidationCount   int64     `json:"client_validation_count" bson:"clientValidationCount"`
	LifetimeValidationCount int64     `json:"lifetime_validation_count" bson:"lifetimeValidationCount"`
	RollingLoginTimestamp   time.Time `json:"rolling_login_timestamp" bson:"rollingLoginTimestamp,omitempty"`
	AddedOn                 time.Time `json:"added_on" bson:"addedOn,omitempty"`
	IPAddress               string    `json:"-" bson:"ip,omitempty"`
}

// ResetStats clears the counters for a freshly attached identity
func (v *ValidationStats) ResetStats(now time.Time) {
	v.WebValidationCount = 0
	v.ClientValidationCount = 0
	v.LifetimeValidationCount = 0
	v.RollingLoginTimestamp = now
	v.AddedOn = now
	v.IPAddress = ""
}

// Touch records a successful validation
func (v *ValidationStats) Touch(ip string, web bool, now time.Time) {
	if web {
		v.WebValidationCount++
	} else {
		v.ClientValidationCount++
	}
	v.LifetimeValidationCount++
	v.RollingLoginTimestamp = now
	v.IPAddress = ip
}

// Stats exposes the embedded counters so callers can treat identities uniformly
func (v *ValidationStats) Stats() *ValidationStats {
	return v
}

// GoogleAccount is a validated Google identity
type GoogleAccount struct {
	ID            string `json:"id" bson:"id"`
	Email         string `json:"email,omitempty" bson:"email,omitempty"`
	EmailVerified bool   `json:"email_verified,omitempty" bson:"verified,omitempty"`
	Name          string `json:"name,omitempty" bson:"name,omitempty"`
	Picture       string `json:"picture,omitempty" bson:"picture,omitempty"`

	ValidationStats `bson:",inline"`
}

func (g *GoogleAccount) Provider() Provider   { return ProviderGoogle }
func (g *GoogleAccount) Subject() string      { return g.ID }
func (g *GoogleAccount) EmailAddress() string { return g.Email }

// AppleAccount is a validated Apple identity
type AppleAccount struct {
	ID    string `json:"id" bson:"id"`
	Email string `json:"email,omitempty" bson:"email,omitempty"`

	ValidationStats `bson:",inline"`
}

func (a *AppleAccount) Provider() Provider   { return ProviderApple }
func (a *AppleAccount) Subject() string      { return a.ID }
func (a *AppleAccount) EmailAddress() string { return a.Email }

// PlariumAccount is a validated Plarium identity
type PlariumAccount struct {
	ID    string `json:"id" bson:"id"`
	Email string `json:"email,omitempty" bson:"email,omitempty"`
	Login string `json:"login,omitempty" bson:"login,omitempty"`

	ValidationStats `bson:",inline"`
}

func (p *PlariumAccount) Provider() Provider   { return ProviderPlarium }
func (p *PlariumAccount) Subject() string      { return p.ID }
func (p *PlariumAccount) EmailAddress() string { return p.Email }

// SsoIdentities is the bundle of identities presented in a single request
type SsoIdentities struct {
	Google  *GoogleAccount
	Apple   *AppleAccount
	Plarium *PlariumAccount
	Rumble  *RumbleAccount
}

// HasAny reports whether at least one identity is present
func (s SsoIdentities) HasAny() bool {
	return s.Google != nil || s.Apple != nil || s.Plarium != nil || s.Rumble != nil
}

// SkipTwoFactor is true when a third-party provider vouches for the request
func (s SsoIdentities) SkipTwoFactor() bool {
	return s.Google != nil || s.Apple != nil || s.Plarium != nil
}

// Get returns the identity for the provider, or nil
func (s SsoIdentities) Get(provider Provider) Identity {
	switch provider {
	case ProviderGoogle:
		if s.Google != nil {
			return s.Google
		}
	case ProviderApple:
		if s.Apple != nil {
			return s.Apple
		}
	case ProviderPlarium:
		if s.Plarium != nil {
			return s.Plarium
		}
	case ProviderRumble:
		if s.Rumble != nil {
			return s.Rumble
		}
	}
	return nil
}

// All returns the present identities in provider order
func (s SsoIdentities) All() []Identity {
	var out []Identity
	for _, p := range []Provider{ProviderGoogle, ProviderApple, ProviderPlarium, ProviderRumble} {
		if id := s.Get(p); id != nil {
			out = append(out, id)
		}
	}
	return out
}
