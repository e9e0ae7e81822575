package auth

import (
	"github.com/BradenHooton/clinicauth/internal/models"
)

// Grants maps a role to every role requirement it satisfies.
type Grants map[models.Role][]models.Role

// DefaultGrants is the clinic's role hierarchy. Adding a role is a change to this table only.
func DefaultGrants() Grants {
	return Grants{
		models.RoleSuperAdmin:   {models.RoleSuperAdmin, models.RoleAdmin, models.RoleProfessional, models.RolePatient},
		models.RoleAdmin:        {models.RoleAdmin, models.RoleProfessional, models.RolePatient},
		models.RoleProfessional: {models.RoleProfessional, models.RolePatient},
		models.RolePatient:      {models.RolePatient},
	}
}

// Resolver answers role requirement checks from a grant table.
type Resolver struct {
	grants map[models.Role]map[models.Role]bool
}

func NewResolver(grants Grants) *Resolver {
	index := make(map[models.Role]map[models.Role]bool, len(grants))
	for role, granted := range grants {
		set := make(map[models.Role]bool, len(granted))
		for _, g := range granted {
			set[g] = true
		}
		index[role] = set
	}
	return &Resolver{grants: index}
}

// Allows reports whether current satisfies required. An empty current role
// means unauthenticated and is always denied.
func (r *Resolver) Allows(current, required models.Role) bool {
	if current == "" {
		return false
	}
	return r.grants[current][required]
}
