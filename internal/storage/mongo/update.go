package mongo

import (
	"go.mongodb.org/mongo-driver/bson"

	"github.com/mcoot/playeraccounts/internal/model"
	"github.com/mcoot/playeraccounts/internal/storage"
)

// buildUpdate translates a PlayerUpdate into an aggregation pipeline update.
// Stages run in the same order as PlayerUpdate.Apply: clears, then whole
// field writes, then merges into existing sub-documents, then removals.
// Merges leave records without the sub-document untouched. Returns nil when
// the update changes nothing.
func buildUpdate(u storage.PlayerUpdate) bson.A {
	var pipeline bson.A

	if u.ClearSso {
		pipeline = append(pipeline, bson.M{"$unset": bson.A{fieldGoogle, fieldApple, fieldPlarium, fieldRumble}})
	} else if u.ClearRumble {
		pipeline = append(pipeline, bson.M{"$unset": bson.A{fieldRumble}})
	}

	set := bson.M{}
	var unset bson.A

	identities := []struct {
		field string
		value any
		ok    bool
	}{
		{fieldGoogle, u.Google, u.Google != nil},
		{fieldApple, u.Apple, u.Apple != nil},
		{fieldPlarium, u.Plarium, u.Plarium != nil},
		{fieldRumble, u.Rumble, u.Rumble != nil},
	}
	for _, id := range identities {
		if !id.ok {
			continue
		}
		if u.AttachIfAbsent {
			set[id.field] = bson.M{"$ifNull": bson.A{"$" + id.field, literal(id.value)}}
		} else {
			set[id.field] = literal(id.value)
		}
	}

	if u.Device != nil {
		set[fieldDevice] = deviceUpdate(u.Device, u.DeviceKey)
	}
	if u.LastLogin != nil {
		set[fieldLastLogin] = literal(*u.LastLogin)
	}
	if u.CreatedOn != nil {
		set[fieldCreatedOn] = bson.M{"$ifNull": bson.A{"$" + fieldCreatedOn, literal(*u.CreatedOn)}}
	}
	if u.AddSessions != 0 {
		set[fieldSessions] = bson.M{"$add": bson.A{
			bson.M{"$ifNull": bson.A{"$" + fieldSessions, 0}},
			literal(u.AddSessions),
		}}
	}
	if u.Location != nil {
		set[fieldLocation] = literal(u.Location)
	}

	if u.LinkCode != nil {
		if *u.LinkCode == "" {
			unset = append(unset, fieldLinkCode)
		} else {
			set[fieldLinkCode] = literal(*u.LinkCode)
		}
	} else if u.ClearExpiredLinkCodeAt != nil {
		expired := bson.M{"$lte": bson.A{"$" + fieldLinkExpiration, literal(*u.ClearExpiredLinkCodeAt)}}
		set[fieldLinkCode] = bson.M{"$cond": bson.A{expired, "$$REMOVE", "$" + fieldLinkCode}}
		if u.LinkExpiration == nil {
			set[fieldLinkExpiration] = bson.M{"$cond": bson.A{expired, "$$REMOVE", "$" + fieldLinkExpiration}}
		}
	}
	if u.LinkExpiration != nil {
		if u.LinkExpiration.IsZero() {
			unset = append(unset, fieldLinkExpiration)
		} else {
			set[fieldLinkExpiration] = literal(*u.LinkExpiration)
		}
	}
	if u.Screenname != nil {
		if *u.Screenname == "" {
			unset = append(unset, fieldScreenname)
		} else {
			set[fieldScreenname] = literal(*u.Screenname)
		}
	}
	if u.Discriminator != nil {
		set[fieldDiscriminator] = literal(*u.Discriminator)
	}
	if u.ParentID != nil {
		if *u.ParentID == "" {
			unset = append(unset, fieldParent)
		} else {
			set[fieldParent] = literal(string(*u.ParentID))
		}
	}
	if len(set) > 0 {
		pipeline = append(pipeline, bson.M{"$set": set})
	}

	merges := eraseChanges(u.EraseEmails)
	rumble, cleared := rumbleChanges(u)
	for k, v := range rumble {
		if merges[fieldRumble] == nil {
			merges[fieldRumble] = bson.M{}
		}
		merges[fieldRumble][k] = v
	}
	if len(merges) > 0 {
		merged := bson.M{}
		for field, merge := range merges {
			merged[field] = mergeInto(field, merge)
		}
		pipeline = append(pipeline, bson.M{"$set": merged})
	}

	for _, path := range cleared {
		unset = append(unset, path)
	}
	if len(unset) > 0 {
		pipeline = append(pipeline, bson.M{"$unset": unset})
	}
	return pipeline
}

// mergeInto merges fields into the sub-document at field when it exists
func mergeInto(field string, merge bson.M) bson.M {
	return bson.M{"$cond": bson.A{
		bson.M{"$eq": bson.A{bson.M{"$type": "$" + field}, "object"}},
		bson.M{"$mergeObjects": bson.A{"$" + field, merge}},
		"$" + field,
	}}
}

// deviceUpdate replaces the descriptive device fields while keeping a
// confirmed key. key is stored only when none is confirmed yet.
func deviceUpdate(d *model.DeviceInfo, key string) bson.M {
	descriptive := *d
	descriptive.PrivateKey = ""
	descriptive.ConfirmedPrivateKey = ""

	confirmed := any("$" + fieldDeviceKey)
	if key != "" {
		confirmed = bson.M{"$ifNull": bson.A{"$" + fieldDeviceKey, literal(key)}}
	}
	return bson.M{"$mergeObjects": bson.A{
		literal(descriptive),
		bson.M{"privateKey": confirmed},
	}}
}

// eraseChanges returns per sub-document merges that overwrite stored emails
func eraseChanges(placeholder string) map[string]bson.M {
	merges := map[string]bson.M{}
	if placeholder == "" {
		return merges
	}
	email := func(field string) bson.M {
		path := "$" + field + ".email"
		return bson.M{"$cond": bson.A{
			bson.M{"$eq": bson.A{bson.M{"$ifNull": bson.A{path, ""}}, ""}},
			path,
			literal(placeholder),
		}}
	}
	merges[fieldGoogle] = bson.M{"email": email(fieldGoogle)}
	merges[fieldApple] = bson.M{"email": email(fieldApple)}
	merges[fieldPlarium] = bson.M{"email": email(fieldPlarium), "login": literal(placeholder)}
	merges[fieldRumble] = bson.M{"email": email(fieldRumble), "username": literal(placeholder)}
	return merges
}

// rumbleChanges returns the fields to merge into the rumble sub-document and
// the dotted paths to remove
func rumbleChanges(u storage.PlayerUpdate) (bson.M, []string) {
	merge := bson.M{}
	var cleared []string

	if u.RumbleStatus != nil {
		merge["status"] = literal(int(*u.RumbleStatus))
	}
	if u.RumbleCode != nil {
		if *u.RumbleCode == "" {
			cleared = append(cleared, "rumble.code")
		} else {
			merge["code"] = literal(*u.RumbleCode)
		}
	}
	if u.RumbleCodeExpiration != nil {
		if u.RumbleCodeExpiration.IsZero() {
			cleared = append(cleared, "rumble.exp")
		} else {
			merge["exp"] = literal(*u.RumbleCodeExpiration)
		}
	}
	if u.RumbleHash != nil {
		merge["hash"] = literal(*u.RumbleHash)
	}
	if u.AddConfirmedID != "" {
		id := string(u.AddConfirmedID)
		merge["verified"] = bson.M{"$let": bson.M{
			"vars": bson.M{"v": bson.M{"$ifNull": bson.A{"$rumble.verified", bson.A{}}}},
			"in": bson.M{"$cond": bson.A{
				bson.M{"$in": bson.A{literal(id), "$$v"}},
				"$$v",
				bson.M{"$slice": bson.A{
					bson.M{"$concatArrays": bson.A{"$$v", bson.A{literal(id)}}},
					-model.MaxConfirmedIDs,
				}},
			}},
		}}
	}
	return merge, cleared
}

// literal stops the pipeline from reading values such as "$abc" as field paths
func literal(v any) bson.M {
	return bson.M{"$literal": v}
}
