package domain

// Role is the campus role carried in a bearer token.
type Role string

// Roles.
const (
	RoleStudent Role = "student"
	RoleCoach   Role = "coach"
	RoleAdmin   Role = "admin"
	RoleService Role = "service"
)

// IsValid checks if the role is valid.
func (r Role) IsValid() bool {
	switch r {
	case RoleStudent, RoleCoach, RoleAdmin, RoleService:
		return true
	}
	return false
}

// RoleGuard decides access from an allowlist and an exclusion list.
//
// A role on Authorized is always allowed, even when it is also on Excluded.
// A non-empty Authorized denies every role it does not name. An empty
// Authorized allows every role that is not Excluded.
type RoleGuard struct {
	Authorized []Role
	Excluded   []Role
}

// Allows reports whether role passes the guard.
func (g RoleGuard) Allows(role Role) bool {
	if containsRole(g.Authorized, role) {
		return true
	}
	if len(g.Authorized) > 0 {
		return false
	}
	return !containsRole(g.Excluded, role)
}

func containsRole(roles []Role, role Role) bool {
	for _, r := range roles {
		if r == role {
			return true
		}
	}
	return false
}
