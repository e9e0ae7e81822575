package auth

import (
	"testing"

	"github.com/BradenHooton/clinicauth/internal/models"
	"github.com/stretchr/testify/assert"
)

func TestResolver_DefaultGrantTable(t *testing.T) {
	r := NewResolver(DefaultGrants())

	tests := []struct {
		current  models.Role
		required models.Role
		want     bool
	}{
		{models.RoleSuperAdmin, models.RoleSuperAdmin, true},
		{models.RoleSuperAdmin, models.RoleAdmin, true},
		{models.RoleSuperAdmin, models.RolePatient, true},
		{models.RoleAdmin, models.RoleSuperAdmin, false},
		{models.RoleAdmin, models.RoleAdmin, true},
		{models.RoleAdmin, models.RoleProfessional, true},
		{models.RoleAdmin, models.RolePatient, true},
		{models.RoleProfessional, models.RoleSuperAdmin, false},
		{models.RoleProfessional, models.RoleAdmin, false},
		{models.RoleProfessional, models.RoleProfessional, true},
		{models.RoleProfessional, models.RolePatient, true},
		{models.RolePatient, models.RoleProfessional, false},
		{models.RolePatient, models.RolePatient, true},
		{"", models.RolePatient, false},
		{"", models.RoleSuperAdmin, false},
		{models.Role("RECEPTIONIST"), models.RolePatient, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.current)+"->"+string(tt.required), func(t *testing.T) {
			assert.Equal(t, tt.want, r.Allows(tt.current, tt.required))
		})
	}
}

func TestResolver_NewRoleIsDataOnly(t *testing.T) {
	grants := DefaultGrants()
	receptionist := models.Role("RECEPTIONIST")
	grants[receptionist] = []models.Role{receptionist, models.RolePatient}
	grants[models.RoleAdmin] = append(grants[models.RoleAdmin], receptionist)

	r := NewResolver(grants)

	assert.True(t, r.Allows(receptionist, models.RolePatient))
	assert.False(t, r.Allows(receptionist, models.RoleProfessional))
	assert.True(t, r.Allows(models.RoleAdmin, receptionist))
	assert.False(t, r.Allows(models.RoleProfessional, receptionist))
}
