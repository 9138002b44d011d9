package auth

import "context"

// ctxKey is unexported so no other package can collide with or replace
// the auth entry.
type ctxKey struct{}

// AuthInfo is the identity the middleware resolved for a request: which
// key called, and the limits attached to it.
type AuthInfo struct {
	KeyID              string
	Name               string
	RPMLimit           int
	DailyDispatchLimit int
}

func ContextWithAuth(ctx context.Context, info *AuthInfo) context.Context {
	return context.WithValue(ctx, ctxKey{}, info)
}

func AuthFromContext(ctx context.Context) (*AuthInfo, bool) {
	info, ok := ctx.Value(ctxKey{}).(*AuthInfo)
	return info, ok
}
