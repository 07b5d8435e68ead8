package auth

import (
	"context"

	"github.com/roach88/fluxora/internal/domain"
)

// Principal is the identity attached to a request.
type Principal struct {
	// Identity the caller claims.
	Identity domain.Identity

	// Authenticated is true once the claim has been proven.
	Authenticated bool

	// Method records how the claim was proven ("jwt", "local"), or "" for
	// an unproven claim.
	Method string
}

// Trusted returns an authenticated principal for local use.
func Trusted(id domain.Identity) Principal {
	return Principal{Identity: id, Authenticated: true, Method: "local"}
}

// Claimed returns an unauthenticated principal.
func Claimed(id domain.Identity) Principal {
	return Principal{Identity: id}
}

// principalKey is the key type for storing a Principal in context.Context.
type principalKey struct{}

// WithPrincipal returns a new context with the principal attached.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// FromContext retrieves the principal, reporting false if none is present.
func FromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(Principal)
	return p, ok
}
