package models

import "strings"

// Role is a position in the clinic's role hierarchy.
type Role string

const (
	RoleSuperAdmin   Role = "SUPER_ADMIN"
	RoleAdmin        Role = "ADMIN"
	RoleProfessional Role = "PROFESSIONAL"
	RolePatient      Role = "PATIENT"
)

// AllRoles lists every known role, highest first.
var AllRoles = []Role{RoleSuperAdmin, RoleAdmin, RoleProfessional, RolePatient}

// SelfServiceRoles are the roles a visitor may pick at registration.
var SelfServiceRoles = map[Role]bool{
	RoleProfessional: true,
	RolePatient:      true,
}

// ParseRole normalizes a role name. Unknown names yield ok=false.
func ParseRole(s string) (Role, bool) {
	r := Role(strings.ToUpper(strings.TrimSpace(s)))
	for _, known := range AllRoles {
		if r == known {
			return r, true
		}
	}
	return "", false
}

func (r Role) String() string {
	return string(r)
}
