package auth

// =============================================================================
// Instance Authorization
// =============================================================================

// Any logged-in user may view and control every instance visible to the
// configured provider credentials.

// CanViewInstances checks if the user can list instances.
func CanViewInstances(ctx Context) bool {
	return ctx.Authenticated
}

// CanManageInstances checks if the user can start or stop instances.
func CanManageInstances(ctx Context) bool {
	return ctx.Authenticated
}

// RequireAuthentication checks that the request is authenticated.
// Returns (allowed, reason).
func RequireAuthentication(ctx Context) (bool, string) {
	if !ctx.Authenticated {
		return false, "authentication required"
	}
	return true, ""
}
