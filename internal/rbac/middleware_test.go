package rbac

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubVerifier map[string]int64

func (s stubVerifier) Verify(_ context.Context, token string) (int64, error) {
	id, ok := s[token]
	if !ok {
		return 0, errors.New("invalid token")
	}
	return id, nil
}

type stubResolver struct {
	mu         sync.Mutex
	principals map[int64]*Principal
	err        error
	calls      int
}

func (s *stubResolver) ResolvePrincipal(_ context.Context, id int64) (*Principal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	p, ok := s.principals[id]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *p
	return &copied, nil
}

type countingRecorder struct {
	outcomes map[string]int
}

func (c *countingRecorder) RecordDecision(outcome string) {
	if c.outcomes == nil {
		c.outcomes = map[string]int{}
	}
	c.outcomes[outcome]++
}

func newGuard() (Middleware, *stubResolver, *countingRecorder) {
	resolver := &stubResolver{principals: map[int64]*Principal{
		1: {ID: 1, Status: StatusActive, Roles: []Role{{Name: "admin_b", Permissions: []Permission{perm("user", ActionRead)}}}},
		2: {ID: 2, Status: StatusSuspended, Roles: []Role{{Name: "root", Permissions: []Permission{perm("user", ActionManage)}}}},
		3: {ID: 3, Status: StatusActive, Roles: []Role{{Name: "admin_a", Permissions: []Permission{perm("route", ActionManage)}}}},
		4: {ID: 4, Status: StatusActive},
	}}
	recorder := &countingRecorder{}
	return Middleware{
		Credentials: stubVerifier{"tok-1": 1, "tok-2": 2, "tok-3": 3, "tok-4": 4, "tok-ghost": 99},
		Principals:  resolver,
		Recorder:    recorder,
	}, resolver, recorder
}

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
})

func serve(h http.Handler, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/api/users", nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestGuardRejectsUnauthenticated(t *testing.T) {
	guard, _, recorder := newGuard()
	h := guard.Require(ActionRead, "user")(okHandler)

	cases := map[string]string{
		"missing credential": "",
		"invalid credential": "forged",
		"unknown principal":  "tok-ghost",
		"suspended account":  "tok-2",
	}
	for name, token := range cases {
		rr := serve(h, token)
		assert.Equal(t, http.StatusUnauthorized, rr.Code, name)
	}
	assert.Equal(t, len(cases), recorder.outcomes[OutcomeUnauthenticated])
}

func TestGuardForbiddenVersusAuthorized(t *testing.T) {
	guard, _, recorder := newGuard()

	rr := serve(guard.Require(ActionCreate, "user")(okHandler), "tok-1")
	assert.Equal(t, http.StatusForbidden, rr.Code)

	rr = serve(guard.Require(ActionRead, "user")(okHandler), "tok-1")
	assert.Equal(t, http.StatusOK, rr.Code)

	assert.Equal(t, 1, recorder.outcomes[OutcomeForbidden])
	assert.Equal(t, 1, recorder.outcomes[OutcomeAuthorized])
}

func TestGuardManageWildcard(t *testing.T) {
	guard, _, _ := newGuard()

	rr := serve(guard.Require(ActionCreate, "route")(okHandler), "tok-3")
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestGuardRequireAny(t *testing.T) {
	guard, _, _ := newGuard()
	h := guard.RequireAny(Need(ActionCreate, "user"), Need(ActionRead, "user"))(okHandler)

	assert.Equal(t, http.StatusOK, serve(h, "tok-1").Code)
	assert.Equal(t, http.StatusForbidden, serve(h, "tok-4").Code)
}

func TestGuardAttachesPrincipalAndAbility(t *testing.T) {
	guard, _, _ := newGuard()
	var got *Principal
	var ability Ability
	h := guard.Authenticate(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = PrincipalFromContext(r.Context())
		ability, _ = AbilityFromContext(r.Context())
	}))

	serve(h, "tok-1")

	require.NotNil(t, got)
	assert.Equal(t, int64(1), got.ID)
	assert.Equal(t, []string{"user:READ"}, ability.Grants())
}

func TestGuardReusesUpstreamAuthentication(t *testing.T) {
	guard, resolver, _ := newGuard()
	h := guard.Authenticate(guard.Require(ActionRead, "user")(okHandler))

	rr := serve(h, "tok-1")

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, 1, resolver.calls)
}

func TestGuardReadsCookie(t *testing.T) {
	guard, _, _ := newGuard()
	guard.CookieName = "session_token"
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: "session_token", Value: "tok-1"})
	rr := httptest.NewRecorder()

	guard.Require(ActionRead, "user")(okHandler).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestGuardRejectsNonBearerScheme(t *testing.T) {
	guard, _, _ := newGuard()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Basic tok-1")
	rr := httptest.NewRecorder()

	guard.Authenticate(okHandler).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestGuardSurfacesStoreFailureAsServerError(t *testing.T) {
	guard, resolver, recorder := newGuard()
	resolver.err = errors.New("connection reset")

	rr := serve(guard.Require(ActionRead, "user")(okHandler), "tok-1")

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Equal(t, 1, recorder.outcomes[OutcomeError])
}

func TestGuardUsesCurrentRolesOnEveryRequest(t *testing.T) {
	guard, resolver, _ := newGuard()
	h := guard.Require(ActionCreate, "user")(okHandler)

	assert.Equal(t, http.StatusForbidden, serve(h, "tok-1").Code)

	resolver.mu.Lock()
	resolver.principals[1].Roles = append(resolver.principals[1].Roles, Role{Permissions: []Permission{perm("user", ActionCreate)}})
	resolver.mu.Unlock()

	assert.Equal(t, http.StatusOK, serve(h, "tok-1").Code)
}

func TestOptionalProceedsWithoutPrincipal(t *testing.T) {
	guard, _, _ := newGuard()
	var authenticated bool
	h := guard.Optional(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, authenticated = AbilityFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	rr := serve(h, "forged")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.False(t, authenticated)

	rr = serve(h, "tok-1")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.True(t, authenticated)
}
