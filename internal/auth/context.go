package auth

import (
	"context"

	"github.com/DukeRupert/resumezen/internal/domain"
	"github.com/google/uuid"
)

type userKey struct{}

// SetUser returns a copy of ctx carrying the signed-in user.
func SetUser(ctx context.Context, user *domain.User) context.Context {
	return context.WithValue(ctx, userKey{}, user)
}

// GetUser returns the signed-in user, or nil for anonymous requests.
func GetUser(ctx context.Context) *domain.User {
	user, _ := ctx.Value(userKey{}).(*domain.User)
	return user
}

// UserID returns the signed-in user's id. ok is false for anonymous
// requests.
func UserID(ctx context.Context) (id uuid.UUID, ok bool) {
	if user := GetUser(ctx); user != nil {
		return user.ID, true
	}
	return uuid.Nil, false
}
