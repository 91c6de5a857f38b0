package rbac

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/odyssey-erp/odyssey-admin/internal/platform/httpx"
)

// CredentialVerifier turns a bearer credential into a principal id.
type CredentialVerifier interface {
	Verify(ctx context.Context, token string) (int64, error)
}

// PrincipalResolver loads a principal with its current role assignments.
// Implementations return ErrNotFound for unknown ids.
type PrincipalResolver interface {
	ResolvePrincipal(ctx context.Context, id int64) (*Principal, error)
}

// DecisionRecorder receives the outcome of each guard decision.
type DecisionRecorder interface {
	RecordDecision(outcome string)
}

// Guard outcomes reported to the DecisionRecorder.
const (
	OutcomeAuthorized      = "authorized"
	OutcomeForbidden       = "forbidden"
	OutcomeUnauthenticated = "unauthenticated"
	OutcomeError           = "error"
)

// DefaultCookieName is used when Middleware.CookieName is empty.
const DefaultCookieName = "odyssey_token"

// Middleware wires RBAC authentication and authorization for HTTP handlers.
type Middleware struct {
	Credentials CredentialVerifier
	Principals  PrincipalResolver
	Logger      *slog.Logger
	Recorder    DecisionRecorder
	CookieName  string
}

// Authenticate resolves the principal, derives its ability and stores both in
// the request context. Requests without a valid, active principal get 401.
func (m Middleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := AbilityFromContext(r.Context()); ok {
			next.ServeHTTP(w, r)
			return
		}
		ctx, err := m.authenticate(r)
		if err != nil {
			m.reject(w, r, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Optional behaves like Authenticate but lets the request through without a
// principal when any authentication step fails.
func (m Middleware) Optional(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := AbilityFromContext(r.Context()); ok {
			next.ServeHTTP(w, r)
			return
		}
		ctx, err := m.authenticate(r)
		if err != nil {
			if !errors.Is(err, ErrUnauthenticated) {
				m.logError("rbac optional authenticate", err)
			}
			next.ServeHTTP(w, r)
			return
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Require ensures the principal may perform action on resource.
func (m Middleware) Require(action Action, resource string) func(http.Handler) http.Handler {
	return m.RequireAny(Need(action, resource))
}

// RequireAny ensures the principal satisfies at least one requirement.
func (m Middleware) RequireAny(reqs ...Requirement) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			ability, ok := AbilityFromContext(ctx)
			if !ok {
				var err error
				ctx, err = m.authenticate(r)
				if err != nil {
					m.reject(w, r, err)
					return
				}
				ability, _ = AbilityFromContext(ctx)
			}
			if !ability.CanPerformAny(reqs...) {
				m.record(OutcomeForbidden)
				httpx.Problem(w, http.StatusForbidden, "Forbidden", "missing required permission")
				return
			}
			m.record(OutcomeAuthorized)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func (m Middleware) authenticate(r *http.Request) (context.Context, error) {
	token := m.extractToken(r)
	if token == "" {
		return nil, errors.Join(ErrUnauthenticated, errors.New("missing credential"))
	}
	if m.Credentials == nil || m.Principals == nil {
		return nil, errors.New("rbac: middleware not configured")
	}
	principalID, err := m.Credentials.Verify(r.Context(), token)
	if err != nil {
		return nil, errors.Join(ErrUnauthenticated, err)
	}
	principal, err := m.Principals.ResolvePrincipal(r.Context(), principalID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, errors.Join(ErrUnauthenticated, err)
		}
		return nil, err
	}
	if !principal.IsActive() {
		return nil, errors.Join(ErrUnauthenticated, errors.New("principal not active"))
	}
	return ContextWithPrincipal(r.Context(), principal, DeriveAbility(principal.Roles)), nil
}

func (m Middleware) extractToken(r *http.Request) string {
	return BearerToken(r, m.CookieName)
}

// BearerToken returns the credential from the Authorization header or, when
// no header is present, from the named cookie. A header with another scheme
// yields "".
func BearerToken(r *http.Request, cookieName string) string {
	if header := strings.TrimSpace(r.Header.Get("Authorization")); header != "" {
		scheme, token, found := strings.Cut(header, " ")
		if found && strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(token)
		}
		return ""
	}
	if cookieName == "" {
		cookieName = DefaultCookieName
	}
	if cookie, err := r.Cookie(cookieName); err == nil {
		return strings.TrimSpace(cookie.Value)
	}
	return ""
}

func (m Middleware) reject(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, ErrUnauthenticated) {
		m.record(OutcomeUnauthenticated)
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "authentication required")
		return
	}
	m.record(OutcomeError)
	m.logError("rbac authenticate", err, slog.String("path", r.URL.Path))
	httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
}

func (m Middleware) record(outcome string) {
	if m.Recorder != nil {
		m.Recorder.RecordDecision(outcome)
	}
}

func (m Middleware) logError(msg string, err error, attrs ...any) {
	if m.Logger == nil {
		return
	}
	m.Logger.Error(msg, append([]any{slog.Any("error", err)}, attrs...)...)
}
