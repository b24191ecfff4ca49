package domain

// Role is the coarse permission level carried in the actor context. The core
// trusts it completely; it is resolved upstream by the identity provider.
type Role string

const (
	// RolePlatformAdmin may act across tenant boundaries.
	RolePlatformAdmin Role = "platform_admin"

	// RoleAdmin administers a single tenant.
	RoleAdmin Role = "admin"

	// RoleTeacher records attendance and reads rosters within one tenant.
	RoleTeacher Role = "teacher"

	// RoleBursar manages invoices and payments within one tenant.
	RoleBursar Role = "bursar"
)

// CrossTenant reports whether the role grants access to records outside the
// actor's own tenant.
func (r Role) CrossTenant() bool {
	return r == RolePlatformAdmin
}

// Known reports whether the role is one this service understands.
func (r Role) Known() bool {
	switch r {
	case RolePlatformAdmin, RoleAdmin, RoleTeacher, RoleBursar:
		return true
	default:
		return false
	}
}
