package middleware

import (
	"context"
	"net/http"

	"golang.org/x/crypto/bcrypt"

	"github.com/mcoot/playeraccounts/internal/api/apierr"
)

const (
	// AdminKeyHeader carries the shared admin key
	AdminKeyHeader = "X-Admin-Key"
	// AdminActorHeader names the operator making an admin call
	AdminActorHeader = "X-Admin-Actor"

	defaultActor = "admin"
)

// AdminKey rejects requests whose key does not match keyHash.
// An empty keyHash disables every admin route.
func AdminKey(keyHash []byte) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get(AdminKeyHeader)
			if len(keyHash) == 0 || key == "" || bcrypt.CompareHashAndPassword(keyHash, []byte(key)) != nil {
				apierr.WriteError(w, apierr.NewForbiddenError())
				return
			}

			actor := r.Header.Get(AdminActorHeader)
			if actor == "" {
				actor = defaultActor
			}
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), actorContextKey, actor)))
		})
	}
}

// GetActor returns the operator recorded by AdminKey
func GetActor(ctx context.Context) string {
	actor, _ := ctx.Value(actorContextKey).(string)
	return actor
}
