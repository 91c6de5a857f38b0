package rbac

import "context"

type principalContextKey struct{}

type authState struct {
	principal *Principal
	ability   Ability
}

// ContextWithPrincipal stores the principal and its derived ability in context.
func ContextWithPrincipal(ctx context.Context, principal *Principal, ability Ability) context.Context {
	return context.WithValue(ctx, principalContextKey{}, &authState{principal: principal, ability: ability})
}

// PrincipalFromContext extracts the authenticated principal, or nil.
func PrincipalFromContext(ctx context.Context) *Principal {
	state, _ := ctx.Value(principalContextKey{}).(*authState)
	if state == nil {
		return nil
	}
	return state.principal
}

// AbilityFromContext extracts the derived ability. The second result is false
// when the request was not authenticated.
func AbilityFromContext(ctx context.Context) (Ability, bool) {
	state, _ := ctx.Value(principalContextKey{}).(*authState)
	if state == nil {
		return Ability{}, false
	}
	return state.ability, true
}
