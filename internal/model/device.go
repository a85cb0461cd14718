package model

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// DeviceInfo describes a client install. InstallID maps to exactly one Player.
type DeviceInfo struct {
	InstallID       string `json:"install_id" bson:"install"`
	ClientVersion   string `json:"client_version,omitempty" bson:"clientVersion,omitempty"`
	DataVersion     string `json:"data_version,omitempty" bson:"dataVersion,omitempty"`
	Language        string `json:"language,omitempty" bson:"language,omitempty"`
	OperatingSystem string `json:"os_version,omitempty" bson:"osVersion,omitempty"`
	Type            string `json:"type,omitempty" bson:"type,omitempty"`

	// ConfirmedPrivateKey is set exactly once, the first time a client echoes back
	// the PrivateKey it was issued. It holds the encoded key and never leaves the service.
	ConfirmedPrivateKey string `json:"-" bson:"privateKey,omitempty"`

	// PrivateKey is the client-held half of the pairing. On requests it is whatever
	// the client sent; on responses it is exposed only until a key is confirmed.
	PrivateKey string `json:"private_key,omitempty" bson:"-"`
}

// Field limits applied by Normalize
const (
	maxLanguageLength   = 10
	maxTypeLength       = 20
	maxVersionLength    = 20
	maxInstallIDLength  = 50
	maxPrivateKeyLength = 64
)

// Normalize trims and truncates client supplied fields
func (d *DeviceInfo) Normalize() {
	d.InstallID = limit(d.InstallID, maxInstallIDLength)
	d.Language = limit(d.Language, maxLanguageLength)
	d.Type = limit(d.Type, maxTypeLength)
	d.ClientVersion = limit(d.ClientVersion, maxVersionLength)
	d.DataVersion = limit(d.DataVersion, maxVersionLength)
	d.PrivateKey = limit(d.PrivateKey, maxPrivateKeyLength)
}

// CalculatePrivateKey derives the pairing key from the descriptive fields.
// It is only populated while no key has been confirmed for the device.
func (d *DeviceInfo) CalculatePrivateKey() {
	if d.ConfirmedPrivateKey != "" {
		d.PrivateKey = ""
		return
	}
	if d.PrivateKey != "" {
		return
	}
	sum := sha256.Sum256([]byte(strings.Join([]string{
		"DeviceInfo",
		d.InstallID,
		d.ClientVersion,
		d.DataVersion,
		d.Language,
		d.OperatingSystem,
		d.Type,
	}, "|")))
	d.PrivateKey = hex.EncodeToString(sum[:])
}

// EncodeDeviceKey returns the stored form of a client supplied private key
func EncodeDeviceKey(key string) string {
	sum := sha256.Sum256([]byte("DeviceKey|" + key))
	return hex.EncodeToString(sum[:])
}

// Equal reports whether two devices share every descriptive field
func (d *DeviceInfo) Equal(other *DeviceInfo) bool {
	if d == nil || other == nil {
		return false
	}
	return d.InstallID == other.InstallID &&
		d.Language == other.Language &&
		d.Type == other.Type &&
		d.ClientVersion == other.ClientVersion &&
		d.DataVersion == other.DataVersion &&
		d.OperatingSystem == other.OperatingSystem
}

// Compare checks an incoming device against a stored one. identical is true when
// the descriptive fields match; authorized is true when the pairing keys agree.
// The incoming PrivateKey is encoded before it is checked against the stored
// confirmed key. A nil stored device is always authorized.
func (d *DeviceInfo) Compare(stored *DeviceInfo) (identical, authorized bool) {
	identical = d.Equal(stored)

	var storedConfirmed, storedKey string
	if stored != nil {
		storedConfirmed = stored.ConfirmedPrivateKey
		storedKey = stored.PrivateKey
	}

	authorized = (d.ConfirmedPrivateKey == "" && storedConfirmed == "") ||
		(d.ConfirmedPrivateKey != "" && d.ConfirmedPrivateKey == storedKey) ||
		(storedConfirmed != "" && d.PrivateKey != "" && storedConfirmed == EncodeDeviceKey(d.PrivateKey))
	return identical, authorized
}

func limit(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) > n {
		return s[:n]
	}
	return s
}
