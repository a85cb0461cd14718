package mongo

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/mcoot/playeraccounts/internal/model"
	"github.com/mcoot/playeraccounts/internal/storage"
)

func TestBuildFilterEmpty(t *testing.T) {
	assert.Equal(t, bson.M{}, buildFilter(storage.PlayerQuery{}))
}

func TestBuildFilterSingleClause(t *testing.T) {
	assert.Equal(t, bson.M{fieldInstall: "install-1"}, buildFilter(storage.PlayerQuery{InstallID: "install-1"}))
}

func TestBuildFilterCombinesWithAnd(t *testing.T) {
	filter := buildFilter(storage.PlayerQuery{
		RumbleUsername:  "a@b.com",
		RumbleHash:      "h",
		RumbleMinStatus: model.RumbleConfirmed,
	})

	and, ok := filter["$and"].([]bson.M)
	require.True(t, ok)
	assert.Len(t, and, 3)
	assert.Contains(t, and, bson.M{"rumble.status": bson.M{"$gte": int(model.RumbleConfirmed)}})
}

func TestBuildFilterAnyBecomesOr(t *testing.T) {
	filter := buildFilter(storage.PlayerQuery{
		Any: []storage.PlayerQuery{{GoogleID: "g"}, {AppleID: "a"}},
	})

	assert.Equal(t, bson.M{"$or": bson.A{
		bson.M{"google.id": "g"},
		bson.M{"apple.id": "a"},
	}}, filter)
}

func TestBuildFilterLinkExpiredRequiresCode(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	filter := buildFilter(storage.PlayerQuery{LinkExpiredAt: now})

	and, ok := filter["$and"].([]bson.M)
	require.True(t, ok)
	assert.Contains(t, and, bson.M{fieldLinkCode: bson.M{"$exists": true, "$ne": ""}})
	assert.Contains(t, and, bson.M{fieldLinkExpiration: bson.M{"$lte": now}})
}

func TestBuildUpdateEmpty(t *testing.T) {
	assert.Nil(t, buildUpdate(storage.PlayerUpdate{}))
}

func TestBuildUpdateClearsWithUnset(t *testing.T) {
	pipeline := buildUpdate(storage.PlayerUpdate{
		LinkCode:       storage.Ptr(""),
		LinkExpiration: storage.Ptr(time.Time{}),
	})

	require.Len(t, pipeline, 1)
	assert.Equal(t, bson.M{"$unset": []string{fieldLinkCode, fieldLinkExpiration}}, pipeline[0])
}

func TestBuildUpdateClearSsoSkipsRumbleMerge(t *testing.T) {
	pipeline := buildUpdate(storage.PlayerUpdate{
		ClearSso:     true,
		RumbleStatus: storage.Ptr(model.RumbleConfirmed),
		ParentID:     storage.Ptr(model.PlayerID("parent")),
	})

	require.Len(t, pipeline, 2)
	set := pipeline[0].(bson.M)["$set"].(bson.M)
	assert.NotContains(t, set, fieldRumble)
	assert.Equal(t, literal("parent"), set[fieldParent])
	assert.Equal(t, bson.M{"$unset": []string{fieldGoogle, fieldApple, fieldPlarium, fieldRumble}}, pipeline[1])
}

func TestBuildUpdateRumbleMerge(t *testing.T) {
	pipeline := buildUpdate(storage.PlayerUpdate{
		RumbleStatus: storage.Ptr(model.RumbleConfirmed),
		RumbleCode:   storage.Ptr(""),
	})

	require.Len(t, pipeline, 2)
	set := pipeline[0].(bson.M)["$set"].(bson.M)
	assert.Contains(t, set, fieldRumble)
	assert.Equal(t, bson.M{"$unset": []string{"rumble.code"}}, pipeline[1])
}
