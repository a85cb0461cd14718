package mongo

import (
	"go.mongodb.org/mongo-driver/bson"

	"github.com/mcoot/playeraccounts/internal/model"
	"github.com/mcoot/playeraccounts/internal/storage"
)

// Document field paths, matching the bson tags on model types
const (
	fieldID             = "_id"
	fieldParent         = "parent"
	fieldInstall        = "device.install"
	fieldGoogle         = "google"
	fieldApple          = "apple"
	fieldPlarium        = "plarium"
	fieldRumble         = "rumble"
	fieldScreenname     = "screenname"
	fieldDiscriminator  = "discriminator"
	fieldLinkCode       = "linkCode"
	fieldLinkExpiration = "linkExpiration"
	fieldDevice         = "device"
	fieldDeviceKey      = "device.privateKey"
	fieldLastLogin      = "lastLogin"
	fieldCreatedOn      = "createdOn"
	fieldSessions       = "sessions"
	fieldLocation       = "location"
)

// buildFilter translates a PlayerQuery into a MongoDB filter document
func buildFilter(q storage.PlayerQuery) bson.M {
	var and []bson.M
	add := func(m bson.M) { and = append(and, m) }

	if len(q.IDs) > 0 {
		add(bson.M{fieldID: bson.M{"$in": q.IDs}})
	}
	if len(q.ExcludeIDs) > 0 {
		add(bson.M{fieldID: bson.M{"$nin": q.ExcludeIDs}})
	}
	if len(q.ParentIDs) > 0 {
		add(bson.M{fieldParent: bson.M{"$in": q.ParentIDs}})
	}
	if q.LiveOnly {
		add(bson.M{fieldParent: bson.M{"$in": bson.A{nil, ""}}})
	}
	if q.InstallID != "" {
		add(bson.M{fieldInstall: q.InstallID})
	}
	if q.GoogleID != "" {
		add(bson.M{fieldGoogle + ".id": q.GoogleID})
	}
	if q.AppleID != "" {
		add(bson.M{fieldApple + ".id": q.AppleID})
	}
	if q.PlariumID != "" {
		add(bson.M{fieldPlarium + ".id": q.PlariumID})
	}

	if q.HasRumble {
		add(bson.M{fieldRumble: bson.M{"$type": "object"}})
	}
	if q.RumbleEmail != "" {
		add(bson.M{"rumble.email": q.RumbleEmail})
	}
	if q.RumbleUsername != "" {
		add(bson.M{"rumble.username": q.RumbleUsername})
	}
	if q.RumbleHash != "" {
		add(bson.M{"rumble.hash": q.RumbleHash})
	}
	if q.RumbleCode != "" {
		add(bson.M{"rumble.code": q.RumbleCode})
	}
	if len(q.RumbleStatuses) > 0 {
		statuses := make(bson.A, len(q.RumbleStatuses))
		for i, st := range q.RumbleStatuses {
			statuses[i] = int(st)
		}
		add(bson.M{"rumble.status": bson.M{"$in": statuses}})
	}
	if q.RumbleMinStatus > model.RumbleNone {
		add(bson.M{"rumble.status": bson.M{"$gte": int(q.RumbleMinStatus)}})
	}
	if !q.RumbleCodeLiveAt.IsZero() {
		add(bson.M{"rumble.exp": bson.M{"$gt": q.RumbleCodeLiveAt}})
	}
	if !q.RumbleCodeExpiredAt.IsZero() {
		add(bson.M{fieldRumble: bson.M{"$type": "object"}})
		add(bson.M{"$or": bson.A{
			bson.M{"rumble.exp": bson.M{"$lte": q.RumbleCodeExpiredAt}},
			bson.M{"rumble.exp": bson.M{"$exists": false}},
		}})
	}

	if q.Screenname != "" {
		add(bson.M{fieldScreenname: q.Screenname})
	}
	if q.Discriminator != nil {
		add(bson.M{fieldDiscriminator: *q.Discriminator})
	}
	if q.LinkCode != "" {
		add(bson.M{fieldLinkCode: q.LinkCode})
	}
	if !q.LinkExpiredAt.IsZero() {
		add(bson.M{fieldLinkCode: bson.M{"$exists": true, "$ne": ""}})
		add(bson.M{fieldLinkExpiration: bson.M{"$lte": q.LinkExpiredAt}})
	}

	if len(q.Any) > 0 {
		ors := make(bson.A, len(q.Any))
		for i, sub := range q.Any {
			ors[i] = buildFilter(sub)
		}
		add(bson.M{"$or": ors})
	}

	switch len(and) {
	case 0:
		return bson.M{}
	case 1:
		return and[0]
	default:
		return bson.M{"$and": and}
	}
}
