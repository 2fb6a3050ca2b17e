package domain

import (
	"context"
	"fmt"
)

// ActorType distinguishes API callers from the engine itself.
type ActorType string

const (
	ActorUser   ActorType = "user"
	ActorSystem ActorType = "system"
)

// Actor identifies who performs an operation. For users ID is the client ID.
type Actor struct {
	Type ActorType
	ID   string
}

// SystemActor is used by the scheduler and by the rotation engine when it writes
// mapped secrets.
var SystemActor = Actor{Type: ActorSystem, ID: "rotation-engine"}

// UserActor returns the actor for an authenticated client.
func UserActor(client *Client) Actor {
	return Actor{Type: ActorUser, ID: client.ID.String()}
}

// IsSystem reports whether the actor is the engine.
func (a Actor) IsSystem() bool {
	return a.Type == ActorSystem
}

func (a Actor) String() string {
	return fmt.Sprintf("%s:%s", a.Type, a.ID)
}

type actorKey struct{}

// WithActor stores actor in ctx.
func WithActor(ctx context.Context, actor Actor) context.Context {
	return context.WithValue(ctx, actorKey{}, actor)
}

// ActorFromContext returns the actor stored in ctx.
func ActorFromContext(ctx context.Context) (Actor, bool) {
	actor, ok := ctx.Value(actorKey{}).(Actor)
	return actor, ok
}
