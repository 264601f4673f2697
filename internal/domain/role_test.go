package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRoleGuard_Allows(t *testing.T) {
	tests := []struct {
		name  string
		guard RoleGuard
		role  Role
		want  bool
	}{
		{"empty guard allows everyone", RoleGuard{}, RoleStudent, true},
		{"authorized role", RoleGuard{Authorized: []Role{RoleService}}, RoleService, true},
		{"role outside allowlist", RoleGuard{Authorized: []Role{RoleService}}, RoleAdmin, false},
		{"excluded role", RoleGuard{Excluded: []Role{RoleStudent}}, RoleStudent, false},
		{"not excluded role", RoleGuard{Excluded: []Role{RoleStudent}}, RoleCoach, true},
		{
			name:  "allowlist wins over exclusion",
			guard: RoleGuard{Authorized: []Role{RoleAdmin}, Excluded: []Role{RoleAdmin}},
			role:  RoleAdmin,
			want:  true,
		},
		{
			name:  "excluded and not authorized",
			guard: RoleGuard{Authorized: []Role{RoleService}, Excluded: []Role{RoleStudent}},
			role:  RoleStudent,
			want:  false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.guard.Allows(tt.role))
		})
	}
}

func TestRole_IsValid(t *testing.T) {
	assert.True(t, RoleCoach.IsValid())
	assert.False(t, Role("janitor").IsValid())
}
