package identity

import (
	"context"

	"github.com/google/uuid"
)

// Identity is the authenticated tenant/operator pair carried on request
// contexts by the auth middleware and read by every protected handler.
type Identity struct {
	TenantID   uuid.UUID
	OperatorID uuid.UUID
}

type contextKey struct{}

// WithIdentity returns a context carrying the identity.
func WithIdentity(ctx context.Context, ident Identity) context.Context {
	return context.WithValue(ctx, contextKey{}, ident)
}

// FromContext extracts the identity set by the middleware.
func FromContext(ctx context.Context) (Identity, bool) {
	ident, ok := ctx.Value(contextKey{}).(Identity)
	return ident, ok
}
