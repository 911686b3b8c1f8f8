package auth

// Role is the user's authorization level, fetched from the backend keyed by
// identity. It is recomputed on every session establishment and never cached
// past process lifetime.
type Role = string

const (
	// RoleUser is the least-privileged role and the fail-open default.
	RoleUser Role = "user"
	// RoleDecorator grants access to decorator dashboards.
	RoleDecorator Role = "decorator"
	// RoleAdmin grants access to admin dashboards plus every decorator view.
	RoleAdmin Role = "admin"
)

// DefaultRole is what role resolution falls back to on any failure. Failing
// open to the least-privileged role is deliberate: an admin momentarily
// resolving to user is safe, the reverse would not be.
const DefaultRole = RoleUser

// ParseRole safely parses a string into a Role
func ParseRole(roleStr string) (Role, bool) {
	role := Role(roleStr)
	return role, ValidRole(role)
}

// ValidRole reports whether role is one of the predefined roles.
func ValidRole(r Role) bool {
	switch r {
	case RoleUser, RoleDecorator, RoleAdmin:
		return true
	default:
		return false
	}
}

// RoleAtLeast checks if r meets the minimum required level.
func RoleAtLeast(r, minRole Role) bool {
	roleHierarchy := map[Role]int{
		RoleUser:      0,
		RoleDecorator: 1,
		RoleAdmin:     2,
	}

	currentLevel, exists := roleHierarchy[r]
	if !exists {
		return false
	}

	minLevel, exists := roleHierarchy[minRole]
	if !exists {
		return false
	}

	return currentLevel >= minLevel
}

// CanAccessDecoratorViews reports whether r may enter the decorator subtree.
// Admins may access decorator views.
func CanAccessDecoratorViews(r Role) bool {
	return r == RoleDecorator || r == RoleAdmin
}

// CanAccessAdminViews reports whether r may enter the admin subtree.
func CanAccessAdminViews(r Role) bool {
	return r == RoleAdmin
}

// AllRoles returns the predefined roles in hierarchical order.
func AllRoles() []Role {
	return []Role{RoleUser, RoleDecorator, RoleAdmin}
}
