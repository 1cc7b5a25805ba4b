// Package userctx keeps authenticated user in request context
package userctx

import (
	"context"

	"github.com/nkiryanov/walletledger/internal/models"
)

type userKey struct{}

// New returns a copy of ctx carrying the user
func New(ctx context.Context, u models.User) context.Context {
	return context.WithValue(ctx, userKey{}, u)
}

// FromContext returns the user set by auth middleware
func FromContext(ctx context.Context) (models.User, bool) {
	u, ok := ctx.Value(userKey{}).(models.User)
	return u, ok
}
