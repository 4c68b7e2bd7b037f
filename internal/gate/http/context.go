package http

import (
	"context"

	"github.com/hatchway/gatehouse/internal/gate/domain"
	"github.com/hatchway/gatehouse/internal/gate/session"
)

type ctxKey int

const (
	ctxKeySession ctxKey = iota
	ctxKeyUser
)

func contextWithSession(ctx context.Context, st session.State) context.Context {
	return context.WithValue(ctx, ctxKeySession, st)
}

func sessionFromContext(ctx context.Context) (session.State, bool) {
	st, ok := ctx.Value(ctxKeySession).(session.State)
	return st, ok
}

func contextWithUser(ctx context.Context, u domain.User) context.Context {
	return context.WithValue(ctx, ctxKeyUser, u)
}

func userFromContext(ctx context.Context) (domain.User, bool) {
	u, ok := ctx.Value(ctxKeyUser).(domain.User)
	return u, ok
}
