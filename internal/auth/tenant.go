package auth

import "context"

// ResolveTenant returns the tenant of the caller, or fallback when the
// request carried no identity.
func ResolveTenant(ctx context.Context, fallback string) string {
	if tenantID := TenantIDFromContext(ctx); tenantID != "" {
		return tenantID
	}
	return fallback
}

// EnsureClientAccess rejects clients acting on another client's records.
// Agents, admins and calls without identity pass.
func EnsureClientAccess(ctx context.Context, ownerClientID string) error {
	if RoleFromContext(ctx) != RoleClient {
		return nil
	}
	if ownerClientID == "" || SubjectFromContext(ctx) != ownerClientID {
		return ErrForbidden
	}
	return nil
}
