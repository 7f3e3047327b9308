package auth

import (
	"crypto/subtle"
	"net/http"
)

// APIKeySubject is the subject recorded for requests authenticated by API key.
const APIKeySubject = "api-key"

// Middleware validates JWTs and enforces RBAC.
type Middleware struct {
	Secret     []byte
	Policy     Policy
	CookieName string

	apiKey      []byte
	apiKeyRole  Role
	apiTenantID string
}

// MiddlewareOption configures the middleware.
type MiddlewareOption func(*Middleware)

// WithCookieName overrides the session cookie name.
func WithCookieName(name string) MiddlewareOption {
	return func(m *Middleware) {
		if name != "" {
			m.CookieName = name
		}
	}
}

// WithAPIKey accepts an X-API-Key header for machine clients acting as role
// within tenantID.
func WithAPIKey(key, tenantID string, role Role) MiddlewareOption {
	return func(m *Middleware) {
		if key != "" && tenantID != "" {
			m.apiKey = []byte(key)
			m.apiTenantID = tenantID
			m.apiKeyRole = role
		}
	}
}

// NewMiddleware constructs an auth middleware.
func NewMiddleware(secret []byte, policy Policy, opts ...MiddlewareOption) *Middleware {
	m := &Middleware{Secret: secret, Policy: policy, CookieName: DefaultCookieName}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Wrap applies auth and RBAC to the handler.
func (m *Middleware) Wrap(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.Policy.IsExempt(r) {
			next.ServeHTTP(w, r)
			return
		}

		required, ok := m.Policy.RequiredRole(r)
		if !ok {
			next.ServeHTTP(w, r)
			return
		}

		if key := r.Header.Get("X-API-Key"); key != "" {
			if len(m.apiKey) == 0 || subtle.ConstantTimeCompare([]byte(key), m.apiKey) != 1 {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			m.serve(w, r, next, required, m.apiTenantID, m.apiKeyRole, APIKeySubject)
			return
		}

		claims, err := ParseJWT(extractToken(r, m.CookieName), m.Secret)
		if err != nil {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		role, _ := NormalizeRole(claims.Role)
		m.serve(w, r, next, required, claims.TenantID, role, claims.Subject)
	})
}

func (m *Middleware) serve(w http.ResponseWriter, r *http.Request, next http.Handler, required Role, tenantID string, role Role, subject string) {
	if !RoleAtLeast(role, required) {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}
	ctx := WithIdentity(r.Context(), tenantID, role, subject)
	next.ServeHTTP(w, r.WithContext(ctx))
}
