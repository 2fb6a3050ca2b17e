// Package http provides HTTP middleware and utilities for authentication.
package http

import (
	"context"

	authDomain "github.com/allisson/rotator/internal/auth/domain"
)

// clientKey is a context key type for storing authenticated clients.
type clientKey struct{}

// WithClient stores an authenticated client in the context.
// Called by the authentication middleware after the bearer token is validated.
func WithClient(ctx context.Context, client *authDomain.Client) context.Context {
	return context.WithValue(ctx, clientKey{}, client)
}

// GetClient retrieves an authenticated client from the context.
// Returns (nil, false) if no client was set.
func GetClient(ctx context.Context) (*authDomain.Client, bool) {
	client, ok := ctx.Value(clientKey{}).(*authDomain.Client)
	return client, ok
}

// ActorFromRequest returns the actor stored by the authentication middleware.
// Requests that reached a handler without it are treated as anonymous users,
// which every permission check rejects.
func ActorFromRequest(ctx context.Context) authDomain.Actor {
	if actor, ok := authDomain.ActorFromContext(ctx); ok {
		return actor
	}
	return authDomain.Actor{Type: authDomain.ActorUser}
}
