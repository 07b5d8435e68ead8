package auth

import (
	"context"
	"fmt"

	"github.com/roach88/fluxora/internal/domain"
)

// ContextAuthorizer answers the engine's authorization questions from the
// Principal carried in the context.
type ContextAuthorizer struct{}

// Caller returns the claimed identity, or "" when the context carries none.
func (ContextAuthorizer) Caller(ctx context.Context) domain.Identity {
	p, ok := FromContext(ctx)
	if !ok {
		return ""
	}
	return p.Identity
}

// RequireAuth succeeds only when the context carries an authenticated
// principal for exactly id.
func (ContextAuthorizer) RequireAuth(ctx context.Context, id domain.Identity) error {
	p, ok := FromContext(ctx)
	switch {
	case !ok || p.Identity.IsZero():
		return fmt.Errorf("%w: no caller identity", domain.ErrUnauthorized)
	case !p.Authenticated:
		return fmt.Errorf("%w: claim for %s is not authenticated", domain.ErrUnauthorized, p.Identity)
	case p.Identity != id:
		return fmt.Errorf("%w: %s cannot act as %s", domain.ErrUnauthorized, p.Identity, id)
	}
	return nil
}
