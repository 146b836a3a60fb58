package jobsculpt

import "strings"

// UserRole is the user's role
type UserRole string

const (
	// RoleJobSeeker browses and applies to jobs
	RoleJobSeeker UserRole = "job-seeker"
	// RoleEmployer posts jobs and reviews applicants
	RoleEmployer UserRole = "employer"
)

// IsValid checks if the role is one of the predefined valid roles
func (r UserRole) IsValid() bool {
	switch r {
	case RoleJobSeeker, RoleEmployer:
		return true
	default:
		return false
	}
}

// CanPostJobs reports whether the role may publish job listings
func (r UserRole) CanPostJobs() bool {
	return r == RoleEmployer
}

// GetAllRoles returns all predefined roles
func GetAllRoles() []UserRole {
	return []UserRole{
		RoleJobSeeker,
		RoleEmployer,
	}
}

// ParseRole parses a role string. An empty string yields the default
// job-seeker role.
func ParseRole(roleStr string) (UserRole, bool) {
	roleStr = strings.ToLower(strings.TrimSpace(roleStr))
	if roleStr == "" {
		return RoleJobSeeker, true
	}
	role := UserRole(roleStr)
	return role, role.IsValid()
}
