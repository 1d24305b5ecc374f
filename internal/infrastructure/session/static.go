package session

import (
	"context"
	"strings"
)

// Static resolves a fixed user, configured per deployment or per CLI
// invocation. An empty id means nobody is signed in.
type Static struct {
	userID string
}

func NewStatic(userID string) *Static {
	return &Static{userID: strings.TrimSpace(userID)}
}

func (s *Static) CurrentUserID(_ context.Context) (string, error) {
	return s.userID, nil
}

type ctxKey struct{}

// WithUser attaches a user id resolved by an inbound adapter, such as an
// authenticated HTTP request.
func WithUser(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, ctxKey{}, strings.TrimSpace(userID))
}

// Contextual prefers the user attached to the context and falls back to a
// static user.
type Contextual struct {
	fallback *Static
}

func NewContextual(fallbackUserID string) *Contextual {
	return &Contextual{fallback: NewStatic(fallbackUserID)}
}

func (c *Contextual) CurrentUserID(ctx context.Context) (string, error) {
	if userID, ok := ctx.Value(ctxKey{}).(string); ok && userID != "" {
		return userID, nil
	}
	return c.fallback.CurrentUserID(ctx)
}
