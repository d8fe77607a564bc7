// ABOUTME: Owner identity propagation through request handlers
// ABOUTME: Provides WithOwner/OwnerFromContext for carrying the authenticated owner via context

package auth

import (
	"context"
)

// ownerKey is the key type for storing the owner id in context.Context.
type ownerKey struct{}

// WithOwner returns a new context with the authenticated owner id attached.
func WithOwner(ctx context.Context, owner string) context.Context {
	return context.WithValue(ctx, ownerKey{}, owner)
}

// OwnerFromContext retrieves the owner id from the context. The boolean is
// false when no owner is present (unauthenticated request).
func OwnerFromContext(ctx context.Context) (string, bool) {
	owner, ok := ctx.Value(ownerKey{}).(string)
	if !ok || owner == "" {
		return "", false
	}
	return owner, true
}
