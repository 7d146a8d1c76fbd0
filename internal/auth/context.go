package auth

import "context"

type principalContextKey struct{}

// ContextWithPrincipal binds principal to ctx. Binding happens at most
// once per request: when ctx already carries a principal, or principal is
// empty, ctx is returned unchanged.
func ContextWithPrincipal(ctx context.Context, principal Principal) context.Context {
	if principal.IsZero() {
		return ctx
	}
	if _, ok := PrincipalFromContext(ctx); ok {
		return ctx
	}
	return context.WithValue(ctx, principalContextKey{}, principal)
}

// PrincipalFromContext extracts the bound principal, if any.
func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	if ctx == nil {
		return Principal{}, false
	}
	v, ok := ctx.Value(principalContextKey{}).(Principal)
	if !ok || v.IsZero() {
		return Principal{}, false
	}
	return v, true
}

// CurrentPrincipal returns the bound principal or ErrUnauthenticated.
func CurrentPrincipal(ctx context.Context) (Principal, error) {
	p, ok := PrincipalFromContext(ctx)
	if !ok {
		return Principal{}, ErrUnauthenticated
	}
	return p, nil
}

// UserIDFromContext extracts the authenticated user ID from context.
func UserIDFromContext(ctx context.Context) (string, bool) {
	p, ok := PrincipalFromContext(ctx)
	if !ok {
		return "", false
	}
	return p.UserID, true
}
